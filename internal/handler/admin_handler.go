package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/folio/blogapi/internal/model"
	"github.com/folio/blogapi/internal/post"
)

// PostAdminService は管理者向け記事操作のサービスインターフェース。
type PostAdminService interface {
	Create(ctx context.Context, in post.CreateInput) (*model.Post, error)
	Update(ctx context.Context, id string, in model.PostUpdate) (*model.Post, error)
	UpdateStatus(ctx context.Context, id string, status model.PostStatus) error
	Delete(ctx context.Context, id string) error
}

// AdminHandler は管理者専用の記事管理HTTPハンドラー。
// ルーターでNewAdminGateの後ろに配置する。
type AdminHandler struct {
	posts PostAdminService
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(posts PostAdminService) *AdminHandler {
	return &AdminHandler{posts: posts}
}

type updateStatusRequest struct {
	Status model.PostStatus `json:"status"`
}

// CreatePost は記事を作成する。
// POST /api/admin/posts
func (h *AdminHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var in post.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	created, err := h.posts.Create(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdatePost は記事を更新する。省略したフィールドは変更しない。
// PUT /api/admin/posts/{id}
func (h *AdminHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	var in model.PostUpdate
	if !decodeJSON(w, r, &in) {
		return
	}

	updated, err := h.posts.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// UpdatePostStatus は記事の公開状態を変更する。
// PATCH /api/admin/posts/{id}/status
func (h *AdminHandler) UpdatePostStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.posts.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeletePost は記事を削除する。いいね・保存・コメントも連鎖削除される。
// DELETE /api/admin/posts/{id}
func (h *AdminHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.posts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
