package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/folio/blogapi/internal/model"
)

// ErrorResponseBody はすべてのエラーレスポンスで共通のJSONボディ。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse はapiErrを指定ステータスで書き込む。
// 原因エラー（apiErr.Err）はクライアントに返さない。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}); err != nil {
		slog.Debug("failed to write error response", slog.String("error", err.Error()))
	}
}

// WriteAPIError はerrがAPIErrorならそれを、そうでなければfallbackを指定ステータスで書き込む。
func WriteAPIError(w http.ResponseWriter, statusCode int, err error, fallback *model.APIError) {
	if apiErr, ok := model.AsAPIError(err); ok {
		WriteErrorResponse(w, statusCode, apiErr)
		return
	}
	WriteErrorResponse(w, statusCode, fallback)
}

// WriteInternalServerError は汎用の500レスポンスを書き込む。詳細はログにのみ残す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
