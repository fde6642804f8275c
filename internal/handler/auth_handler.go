// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/folio/blogapi/internal/auth"
	"github.com/folio/blogapi/internal/middleware"
	"github.com/folio/blogapi/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, identityToken string) (*auth.LoginResult, error)
	AdminLogin(ctx context.Context, identityToken string) (*auth.LoginResult, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	// AcceptUserData が真の場合、user_dataを開発用の本人情報トークンとして受け付ける。
	AcceptUserData bool
}

// AuthHandler はログインとセッション確認のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// loginRequest はログインリクエストのボディ。
// tokenとfirebase_tokenはどちらか一方を指定する。
type loginRequest struct {
	Token         string          `json:"token"`
	FirebaseToken string          `json:"firebase_token"`
	UserData      json.RawMessage `json:"user_data,omitempty"`
}

// loginResponse はログイン成功時のレスポンス。
// user.is_adminには保存済みのフラグではなく、発行したセッショントークンと同じ値を入れる。
type loginResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	User        *model.User `json:"user"`
}

// verifyResponse はセッション確認のレスポンス。
type verifyResponse struct {
	Valid     bool      `json:"valid"`
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login は外部IDトークンをセッショントークンに交換する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.service.Login)
}

// AdminLogin は管理者としてログインする。ホワイトリスト外のメールアドレスは403。
// POST /api/auth/admin-login
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.service.AdminLogin)
}

func (h *AuthHandler) login(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, identityToken string) (*auth.LoginResult, error),
) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token := h.identityToken(req)
	if token == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("tokenは必須です。"))
		return
	}

	result, err := fn(r.Context(), token)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var user *model.User
	if result.User != nil {
		u := *result.User
		u.IsAdmin = result.IsAdmin
		user = &u
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: result.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   result.ExpiresIn,
		User:        user,
	})
}

// identityToken はリクエストから検証対象のトークンを取り出す。
func (h *AuthHandler) identityToken(req loginRequest) string {
	if h.config.AcceptUserData && len(req.UserData) > 0 && string(req.UserData) != "null" {
		return string(req.UserData)
	}
	if token := strings.TrimSpace(req.Token); token != "" {
		return token
	}
	return strings.TrimSpace(req.FirebaseToken)
}

// Verify はセッショントークンのクレームを返す。
// GET /api/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	resp := verifyResponse{
		Valid:   true,
		UID:     claims.SubjectID,
		Email:   claims.Email,
		IsAdmin: claims.IsAdmin,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	writeJSON(w, http.StatusOK, resp)
}
