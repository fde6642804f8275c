// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/folio/blogapi/internal/auth"
	"github.com/folio/blogapi/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// claimsContextKey はリクエストコンテキストにセッションクレームを格納するためのキー。
var claimsContextKey = contextKey("session_claims")

// NewSessionMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// クレームをリクエストコンテキストに注入するミドルウェアを返す。
// トークンがない場合、または検証に失敗した場合は401を返す。
func NewSessionMiddleware(verifier auth.SessionVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				writeAuthError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// NewOptionalSessionMiddleware は有効なBearerトークンがあればクレームを注入し、
// なければ未認証のまま次に渡すミドルウェアを返す。公開ルートで使用する。
func NewOptionalSessionMiddleware(verifier auth.SessionVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok {
				if claims, err := verifier.Verify(token); err == nil {
					r = r.WithContext(ContextWithClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext はリクエストコンテキストからセッションクレームを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func ClaimsFromContext(ctx context.Context) (*auth.SessionClaims, error) {
	claims, ok := ctx.Value(claimsContextKey).(*auth.SessionClaims)
	if !ok || claims == nil {
		return nil, errors.New("session claims not found in context")
	}
	return claims, nil
}

// ContextWithClaims はコンテキストにセッションクレームを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClaims(ctx context.Context, claims *auth.SessionClaims) context.Context {
	if h, ok := ctx.Value(claimsHolderKey).(*claimsHolder); ok && claims != nil {
		h.subjectID = claims.SubjectID
	}
	return context.WithValue(ctx, claimsContextKey, claims)
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// writeAuthError はトークン検証エラーを401で返す。
func writeAuthError(w http.ResponseWriter, err error) {
	WriteAPIError(w, http.StatusUnauthorized, err, model.NewTokenInvalidError(err))
}
