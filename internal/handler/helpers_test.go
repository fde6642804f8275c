package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/folio/blogapi/internal/auth"
	"github.com/folio/blogapi/internal/contact"
	"github.com/folio/blogapi/internal/engagement"
	"github.com/folio/blogapi/internal/middleware"
	"github.com/folio/blogapi/internal/model"
	"github.com/folio/blogapi/internal/post"
)

// --- モック定義 ---

type mockAuthService struct {
	loginFn      func(ctx context.Context, token string) (*auth.LoginResult, error)
	adminLoginFn func(ctx context.Context, token string) (*auth.LoginResult, error)
}

func (m *mockAuthService) Login(ctx context.Context, token string) (*auth.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, token)
	}
	return nil, nil
}

func (m *mockAuthService) AdminLogin(ctx context.Context, token string) (*auth.LoginResult, error) {
	if m.adminLoginFn != nil {
		return m.adminLoginFn(ctx, token)
	}
	return nil, nil
}

type mockUserService struct {
	lookupFn        func(ctx context.Context, subjectID string) (*model.User, error)
	resolveFn       func(ctx context.Context, subjectID string) (*model.User, error)
	updateProfileFn func(ctx context.Context, subjectID string, update model.ProfileUpdate) (*model.User, error)
}

func (m *mockUserService) Lookup(ctx context.Context, subjectID string) (*model.User, error) {
	if m.lookupFn != nil {
		return m.lookupFn(ctx, subjectID)
	}
	return nil, nil
}

func (m *mockUserService) Resolve(ctx context.Context, subjectID string) (*model.User, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, subjectID)
	}
	return &model.User{ID: "local-" + subjectID, SubjectID: subjectID}, nil
}

func (m *mockUserService) UpdateProfile(ctx context.Context, subjectID string, update model.ProfileUpdate) (*model.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, subjectID, update)
	}
	return nil, nil
}

type mockEngagement struct {
	toggleLikeFn       func(ctx context.Context, actor engagement.Actor, postID string) (*engagement.ToggleResult, error)
	toggleSaveFn       func(ctx context.Context, actor engagement.Actor, postID string) (*engagement.ToggleResult, error)
	hasLikedFn         func(ctx context.Context, postID, userID string) (bool, error)
	hasSavedFn         func(ctx context.Context, postID, userID string) (bool, error)
	listLikedPostsFn   func(ctx context.Context, userID string) ([]model.InteractedPost, error)
	listSavedPostsFn   func(ctx context.Context, userID string) ([]model.InteractedPost, error)
	createCommentFn    func(ctx context.Context, actor engagement.Actor, postID, text string, parentID *string) (*model.Comment, error)
	updateCommentFn    func(ctx context.Context, actor engagement.Actor, commentID, text string) (*model.Comment, error)
	deleteCommentFn    func(ctx context.Context, actor engagement.Actor, commentID string) error
	listCommentsFn     func(ctx context.Context, actor engagement.Actor, postID string) ([]model.CommentView, error)
	listUserCommentsFn func(ctx context.Context, userID string) ([]model.UserCommentView, error)
}

func (m *mockEngagement) ToggleLike(ctx context.Context, actor engagement.Actor, postID string) (*engagement.ToggleResult, error) {
	if m.toggleLikeFn != nil {
		return m.toggleLikeFn(ctx, actor, postID)
	}
	return &engagement.ToggleResult{}, nil
}

func (m *mockEngagement) ToggleSave(ctx context.Context, actor engagement.Actor, postID string) (*engagement.ToggleResult, error) {
	if m.toggleSaveFn != nil {
		return m.toggleSaveFn(ctx, actor, postID)
	}
	return &engagement.ToggleResult{}, nil
}

func (m *mockEngagement) HasLiked(ctx context.Context, postID, userID string) (bool, error) {
	if m.hasLikedFn != nil {
		return m.hasLikedFn(ctx, postID, userID)
	}
	return false, nil
}

func (m *mockEngagement) HasSaved(ctx context.Context, postID, userID string) (bool, error) {
	if m.hasSavedFn != nil {
		return m.hasSavedFn(ctx, postID, userID)
	}
	return false, nil
}

func (m *mockEngagement) ListLikedPosts(ctx context.Context, userID string) ([]model.InteractedPost, error) {
	if m.listLikedPostsFn != nil {
		return m.listLikedPostsFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockEngagement) ListSavedPosts(ctx context.Context, userID string) ([]model.InteractedPost, error) {
	if m.listSavedPostsFn != nil {
		return m.listSavedPostsFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockEngagement) CreateComment(ctx context.Context, actor engagement.Actor, postID, text string, parentID *string) (*model.Comment, error) {
	if m.createCommentFn != nil {
		return m.createCommentFn(ctx, actor, postID, text, parentID)
	}
	return &model.Comment{ID: "c-new"}, nil
}

func (m *mockEngagement) UpdateComment(ctx context.Context, actor engagement.Actor, commentID, text string) (*model.Comment, error) {
	if m.updateCommentFn != nil {
		return m.updateCommentFn(ctx, actor, commentID, text)
	}
	return &model.Comment{ID: commentID, Text: text, IsEdited: true}, nil
}

func (m *mockEngagement) DeleteComment(ctx context.Context, actor engagement.Actor, commentID string) error {
	if m.deleteCommentFn != nil {
		return m.deleteCommentFn(ctx, actor, commentID)
	}
	return nil
}

func (m *mockEngagement) ListComments(ctx context.Context, actor engagement.Actor, postID string) ([]model.CommentView, error) {
	if m.listCommentsFn != nil {
		return m.listCommentsFn(ctx, actor, postID)
	}
	return nil, nil
}

func (m *mockEngagement) ListUserComments(ctx context.Context, userID string) ([]model.UserCommentView, error) {
	if m.listUserCommentsFn != nil {
		return m.listUserCommentsFn(ctx, userID)
	}
	return nil, nil
}

type mockPostService struct {
	viewFn          func(ctx context.Context, id string, isAdmin bool) (*model.Post, error)
	listPublishedFn func(ctx context.Context, filter model.PostFilter) ([]model.Post, error)
	createFn        func(ctx context.Context, in post.CreateInput) (*model.Post, error)
	updateFn        func(ctx context.Context, id string, in model.PostUpdate) (*model.Post, error)
	updateStatusFn  func(ctx context.Context, id string, status model.PostStatus) error
	deleteFn        func(ctx context.Context, id string) error
}

func (m *mockPostService) ListPublished(ctx context.Context, filter model.PostFilter) ([]model.Post, error) {
	if m.listPublishedFn != nil {
		return m.listPublishedFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockPostService) Update(ctx context.Context, id string, in model.PostUpdate) (*model.Post, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, in)
	}
	return &model.Post{ID: id}, nil
}

func (m *mockPostService) View(ctx context.Context, id string, isAdmin bool) (*model.Post, error) {
	if m.viewFn != nil {
		return m.viewFn(ctx, id, isAdmin)
	}
	return &model.Post{ID: id, Status: model.PostStatusPublished}, nil
}

func (m *mockPostService) Create(ctx context.Context, in post.CreateInput) (*model.Post, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return &model.Post{ID: "p-new", Title: in.Title}, nil
}

func (m *mockPostService) UpdateStatus(ctx context.Context, id string, status model.PostStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil
}

func (m *mockPostService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockContactService struct {
	listVisibleFn func(ctx context.Context) ([]model.ContactInfo, error)
	listAllFn     func(ctx context.Context) ([]model.ContactInfo, error)
	createFn      func(ctx context.Context, in contact.CreateInput) (*model.ContactInfo, error)
	updateFn      func(ctx context.Context, id string, in model.ContactInfoUpdate) (*model.ContactInfo, error)
	deleteFn      func(ctx context.Context, id string) error
}

func (m *mockContactService) ListVisible(ctx context.Context) ([]model.ContactInfo, error) {
	if m.listVisibleFn != nil {
		return m.listVisibleFn(ctx)
	}
	return nil, nil
}

func (m *mockContactService) ListAll(ctx context.Context) ([]model.ContactInfo, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}

func (m *mockContactService) Create(ctx context.Context, in contact.CreateInput) (*model.ContactInfo, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return &model.ContactInfo{ID: "ct-new", Label: in.Label}, nil
}

func (m *mockContactService) Update(ctx context.Context, id string, in model.ContactInfoUpdate) (*model.ContactInfo, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, in)
	}
	return &model.ContactInfo{ID: id}, nil
}

func (m *mockContactService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// --- ヘルパー ---

// withClaims はテスト用にセッションクレームをコンテキストに注入するヘルパー。
func withClaims(r *http.Request, subjectID string, isAdmin bool) *http.Request {
	claims := &auth.SessionClaims{
		Email:     subjectID + "@x.com",
		SubjectID: subjectID,
		IsAdmin:   isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)),
		},
	}
	return r.WithContext(middleware.ContextWithClaims(r.Context(), claims))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var result middleware.ErrorResponseBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	return result
}

// decodeBody はレスポンスボディをmapにデコードするヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	return result
}
