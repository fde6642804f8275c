package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/folio/blogapi/internal/contact"
	"github.com/folio/blogapi/internal/model"
)

// ContactServiceInterface は連絡先のサービスインターフェース。
type ContactServiceInterface interface {
	ListVisible(ctx context.Context) ([]model.ContactInfo, error)
	ListAll(ctx context.Context) ([]model.ContactInfo, error)
	Create(ctx context.Context, in contact.CreateInput) (*model.ContactInfo, error)
	Update(ctx context.Context, id string, in model.ContactInfoUpdate) (*model.ContactInfo, error)
	Delete(ctx context.Context, id string) error
}

// ContactHandler は連絡先のHTTPハンドラー。
// 管理用のメソッドはルーターでNewAdminGateの後ろに配置する。
type ContactHandler struct {
	contacts ContactServiceInterface
}

// NewContactHandler はContactHandlerを生成する。
func NewContactHandler(contacts ContactServiceInterface) *ContactHandler {
	return &ContactHandler{contacts: contacts}
}

// ListPublic は公開中の連絡先を表示順に返す。
// GET /api/contact-info
func (h *ContactHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.contacts.ListVisible)
}

// ListAll は非公開を含む全連絡先を返す。
// GET /api/admin/contact-info
func (h *ContactHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.contacts.ListAll)
}

func (h *ContactHandler) list(
	w http.ResponseWriter,
	r *http.Request,
	fetch func(ctx context.Context) ([]model.ContactInfo, error),
) {
	contacts, err := fetch(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if contacts == nil {
		contacts = []model.ContactInfo{}
	}
	writeJSON(w, http.StatusOK, contacts)
}

// Create は連絡先を作成する。
// POST /api/admin/contact-info
func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in contact.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	created, err := h.contacts.Create(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Update は連絡先を更新する。
// PUT /api/admin/contact-info/{id}
func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in model.ContactInfoUpdate
	if !decodeJSON(w, r, &in) {
		return
	}

	updated, err := h.contacts.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete は連絡先を削除する。
// DELETE /api/admin/contact-info/{id}
func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.contacts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
