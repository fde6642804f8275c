package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// CommentHandler はコメントの編集・削除のHTTPハンドラー。
// 操作できるのはコメントの投稿者のみ。
type CommentHandler struct {
	ledger EngagementServiceInterface
	users  UserResolver
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(ledger EngagementServiceInterface, users UserResolver) *CommentHandler {
	return &CommentHandler{
		ledger: ledger,
		users:  users,
	}
}

type updateCommentRequest struct {
	Text string `json:"text"`
}

// UpdateComment はコメント本文を編集する。
// PUT /api/comments/{id}
func (h *CommentHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := resolveActor(w, r, h.users)
	if !ok {
		return
	}

	var req updateCommentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	comment, err := h.ledger.UpdateComment(r.Context(), actor, chi.URLParam(r, "id"), req.Text)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

// DeleteComment はコメントを論理削除する。
// DELETE /api/comments/{id}
func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := resolveActor(w, r, h.users)
	if !ok {
		return
	}

	if err := h.ledger.DeleteComment(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
