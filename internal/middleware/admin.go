package middleware

import (
	"log/slog"
	"net/http"

	"github.com/folio/blogapi/internal/auth"
	"github.com/folio/blogapi/internal/model"
)

// NewAdminGate はセッションクレームのis_adminが真でなければ403を返すミドルウェアを返す。
// NewSessionMiddlewareの後に配置する。
func NewAdminGate() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := ClaimsFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if err := auth.CheckAdmin(claims); err != nil {
				slog.Warn("admin route rejected",
					slog.String("subject_id", claims.SubjectID),
					slog.String("path", r.URL.Path),
				)
				WriteAPIError(w, http.StatusForbidden, err, model.NewForbiddenError("管理者権限が必要です"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
