package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio/blogapi/internal/auth"
	"github.com/folio/blogapi/internal/model"
)

func successfulLogin(token string) (*auth.LoginResult, error) {
	return &auth.LoginResult{
		AccessToken: "session-" + token,
		ExpiresAt:   time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		ExpiresIn:   86400,
		User:        &model.User{ID: "local-1", SubjectID: "u1", Email: "a@x.com"},
	}, nil
}

func TestAuthHandler_Login_Success(t *testing.T) {
	var gotToken string
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, token string) (*auth.LoginResult, error) {
			gotToken = token
			return successfulLogin(token)
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"token":"id-token"}`))
	w := httptest.NewRecorder()
	h.Login(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "id-token", gotToken)

	body := decodeBody(t, w)
	assert.Equal(t, "session-id-token", body["access_token"])
	assert.Equal(t, "bearer", body["token_type"])
	assert.Equal(t, float64(86400), body["expires_in"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "a@x.com", user["email"])
}

func TestAuthHandler_Login_UserAdminFlagMatchesSession(t *testing.T) {
	tests := []struct {
		name         string
		storedAdmin  bool
		sessionAdmin bool
	}{
		{"ホワイトリストに追加された既存ユーザー", false, true},
		{"ホワイトリストから外された既存ユーザー", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				loginFn: func(ctx context.Context, token string) (*auth.LoginResult, error) {
					result, _ := successfulLogin(token)
					result.User.IsAdmin = tt.storedAdmin
					result.IsAdmin = tt.sessionAdmin
					return result, nil
				},
			}
			h := NewAuthHandler(svc, AuthHandlerConfig{})

			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"token":"id-token"}`))
			w := httptest.NewRecorder()
			h.Login(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			user := decodeBody(t, w)["user"].(map[string]any)
			assert.Equal(t, tt.sessionAdmin, user["is_admin"])
		})
	}
}

func TestAuthHandler_Login_AcceptsFirebaseTokenField(t *testing.T) {
	var gotToken string
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, token string) (*auth.LoginResult, error) {
			gotToken = token
			return successfulLogin(token)
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"firebase_token":"fb"}`))
	w := httptest.NewRecorder()
	h.Login(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fb", gotToken)
}

func TestAuthHandler_Login_UserData(t *testing.T) {
	body := `{"token":"ignored","user_data":{"uid":"u1","email":"a@x.com"}}`

	t.Run("開発モードではuser_dataをトークンとして渡す", func(t *testing.T) {
		var gotToken string
		svc := &mockAuthService{
			loginFn: func(ctx context.Context, token string) (*auth.LoginResult, error) {
				gotToken = token
				return successfulLogin("dev")
			},
		}
		h := NewAuthHandler(svc, AuthHandlerConfig{AcceptUserData: true})

		w := httptest.NewRecorder()
		h.Login(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body)))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"uid":"u1","email":"a@x.com"}`, gotToken)
	})

	t.Run("本番ではuser_dataを無視する", func(t *testing.T) {
		var gotToken string
		svc := &mockAuthService{
			loginFn: func(ctx context.Context, token string) (*auth.LoginResult, error) {
				gotToken = token
				return successfulLogin(token)
			},
		}
		h := NewAuthHandler(svc, AuthHandlerConfig{})

		w := httptest.NewRecorder()
		h.Login(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body)))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ignored", gotToken)
	})
}

func TestAuthHandler_Login_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"不正なJSON", `{`, nil, http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"トークンなし", `{}`, nil, http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"無効なIDトークン", `{"token":"bad"}`, model.NewInvalidIdentityTokenError(errors.New("bad sig")), http.StatusUnauthorized, model.ErrCodeInvalidIdentityToken},
		{"ストレージ障害", `{"token":"t"}`, model.NewStorageError(errors.New("db down")), http.StatusInternalServerError, model.ErrCodeInternal},
		{"想定外のエラー", `{"token":"t"}`, errors.New("boom"), http.StatusInternalServerError, model.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				loginFn: func(ctx context.Context, token string) (*auth.LoginResult, error) {
					return nil, tt.err
				},
			}
			h := NewAuthHandler(svc, AuthHandlerConfig{})

			w := httptest.NewRecorder()
			h.Login(w, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, w.Code)
			errBody := parseAPIErrorResponse(t, w)
			assert.Equal(t, tt.wantCode, errBody.Code)
			assert.NotContains(t, errBody.Message, "db down")
		})
	}
}

func TestAuthHandler_AdminLogin_Forbidden(t *testing.T) {
	svc := &mockAuthService{
		adminLoginFn: func(ctx context.Context, token string) (*auth.LoginResult, error) {
			return nil, model.NewForbiddenError("not admin")
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	w := httptest.NewRecorder()
	h.AdminLogin(w, httptest.NewRequest(http.MethodPost, "/api/auth/admin-login", strings.NewReader(`{"token":"t"}`)))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, model.ErrCodeForbidden, parseAPIErrorResponse(t, w).Code)
}

func TestAuthHandler_Verify(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, AuthHandlerConfig{})

	req := withClaims(httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil), "u1", true)
	w := httptest.NewRecorder()
	h.Verify(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "u1", body["uid"])
	assert.Equal(t, "u1@x.com", body["email"])
	assert.Equal(t, true, body["is_admin"])
	assert.Equal(t, "2026-03-02T12:00:00Z", body["expires_at"])
}

func TestAuthHandler_Verify_NoClaims(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, AuthHandlerConfig{})

	w := httptest.NewRecorder()
	h.Verify(w, httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
