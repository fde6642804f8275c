package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// NewRecoveryMiddleware はハンドラー内のpanicを捕捉し、500のJSONエラーを返すミドルウェアを返す。
// ログにはrequest_idと認証済みのsubject_idを含める。
// レスポンスの書き込みが始まった後のpanicではボディを追記しない。
func NewRecoveryMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			holder, ok := r.Context().Value(claimsHolderKey).(*claimsHolder)
			if !ok {
				holder = &claimsHolder{}
				r = r.WithContext(withClaimsHolder(r.Context(), holder))
			}
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				args := []any{
					slog.Any("panic", v),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				}
				if reqID := chimw.GetReqID(r.Context()); reqID != "" {
					args = append(args, slog.String("request_id", reqID))
				}
				if holder.subjectID != "" {
					args = append(args, slog.String("subject_id", holder.subjectID))
				}
				logger.Error("panic recovered", args...)

				if rec.written {
					return
				}
				WriteInternalServerError(rec)
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
