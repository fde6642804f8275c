package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio/blogapi/internal/engagement"
	"github.com/folio/blogapi/internal/model"
)

func TestCommentHandler_UpdateComment(t *testing.T) {
	var gotActor engagement.Actor
	ledger := &mockEngagement{
		updateCommentFn: func(ctx context.Context, actor engagement.Actor, commentID, text string) (*model.Comment, error) {
			gotActor = actor
			return &model.Comment{ID: commentID, Text: text, IsEdited: true}, nil
		},
	}
	h := NewCommentHandler(ledger, &mockUserService{})

	req := httptest.NewRequest(http.MethodPut, "/api/comments/c1", strings.NewReader(`{"text":"edited"}`))
	req = withClaims(withChiURLParam(req, "id", "c1"), "u1", false)
	w := httptest.NewRecorder()
	h.UpdateComment(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "local-u1", gotActor.UserID)
	body := decodeBody(t, w)
	assert.Equal(t, "edited", body["text"])
	assert.Equal(t, true, body["is_edited"])
}

func TestCommentHandler_UpdateComment_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"投稿者以外", model.NewForbiddenError("not author"), http.StatusForbidden},
		{"削除済み", model.NewCommentNotFoundError("c1"), http.StatusNotFound},
		{"本文が長すぎる", model.NewInvalidCommentTextError("too long"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &mockEngagement{
				updateCommentFn: func(ctx context.Context, actor engagement.Actor, commentID, text string) (*model.Comment, error) {
					return nil, tt.err
				},
			}
			h := NewCommentHandler(ledger, &mockUserService{})

			req := httptest.NewRequest(http.MethodPut, "/api/comments/c1", strings.NewReader(`{"text":"x"}`))
			req = withClaims(withChiURLParam(req, "id", "c1"), "u2", false)
			w := httptest.NewRecorder()
			h.UpdateComment(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestCommentHandler_DeleteComment(t *testing.T) {
	var gotID string
	ledger := &mockEngagement{
		deleteCommentFn: func(ctx context.Context, actor engagement.Actor, commentID string) error {
			gotID = commentID
			return nil
		},
	}
	h := NewCommentHandler(ledger, &mockUserService{})

	req := withChiURLParam(httptest.NewRequest(http.MethodDelete, "/api/comments/c1", nil), "id", "c1")
	w := httptest.NewRecorder()
	h.DeleteComment(w, withClaims(req, "u1", false))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "c1", gotID)
}

func TestCommentHandler_DeleteComment_Forbidden(t *testing.T) {
	ledger := &mockEngagement{
		deleteCommentFn: func(ctx context.Context, actor engagement.Actor, commentID string) error {
			return model.NewForbiddenError("not author")
		},
	}
	h := NewCommentHandler(ledger, &mockUserService{})

	req := withChiURLParam(httptest.NewRequest(http.MethodDelete, "/api/comments/c1", nil), "id", "c1")
	w := httptest.NewRecorder()
	h.DeleteComment(w, withClaims(req, "u2", false))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, model.ErrCodeForbidden, parseAPIErrorResponse(t, w).Code)
}
