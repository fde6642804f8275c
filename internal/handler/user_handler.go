package handler

import (
	"context"
	"net/http"

	"github.com/folio/blogapi/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	UserResolver
	// UpdateProfile はプロフィールを部分更新する。nilのフィールドは変更しない。
	UpdateProfile(ctx context.Context, subjectID string, update model.ProfileUpdate) (*model.User, error)
}

// UserHandler はログインユーザー自身のプロフィールと履歴のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	ledger  EngagementServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, ledger EngagementServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
		ledger:  ledger,
	}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
type updateProfileRequest struct {
	DisplayName *string           `json:"display_name,omitempty"`
	PhotoURL    *string           `json:"photo_url,omitempty"`
	Bio         *string           `json:"bio,omitempty"`
	Preferences model.Preferences `json:"preferences,omitempty"`
}

// GetMe はログインユーザーのプロフィールを返す。
// GET /api/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	_, user, ok := resolveActor(w, r, h.service)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateMe はログインユーザーのプロフィールを更新する。
// PUT /api/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireClaims(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), claims.SubjectID, model.ProfileUpdate{
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
		Bio:         req.Bio,
		Preferences: req.Preferences,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ListLikedPosts はいいねした記事を新しい順に返す。
// GET /api/users/me/liked-posts
func (h *UserHandler) ListLikedPosts(w http.ResponseWriter, r *http.Request) {
	h.listInteracted(w, r, h.ledger.ListLikedPosts)
}

// ListSavedPosts は保存した記事を新しい順に返す。
// GET /api/users/me/saved-posts
func (h *UserHandler) ListSavedPosts(w http.ResponseWriter, r *http.Request) {
	h.listInteracted(w, r, h.ledger.ListSavedPosts)
}

func (h *UserHandler) listInteracted(
	w http.ResponseWriter,
	r *http.Request,
	list func(ctx context.Context, userID string) ([]model.InteractedPost, error),
) {
	actor, _, ok := resolveActor(w, r, h.service)
	if !ok {
		return
	}

	posts, err := list(r.Context(), actor.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if posts == nil {
		posts = []model.InteractedPost{}
	}
	writeJSON(w, http.StatusOK, posts)
}

// ListComments はログインユーザーのコメントを新しい順に返す。
// GET /api/users/me/comments
func (h *UserHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := resolveActor(w, r, h.service)
	if !ok {
		return
	}

	comments, err := h.ledger.ListUserComments(r.Context(), actor.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if comments == nil {
		comments = []model.UserCommentView{}
	}
	writeJSON(w, http.StatusOK, comments)
}
