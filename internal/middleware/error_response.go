package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/sharebnb/internal/model"
)

// ErrorResponseBody は単一メッセージのエラーレスポンス。
type ErrorResponseBody struct {
	Error string `json:"error"`
}

// FieldErrorsResponseBody はフィールド単位のバリデーションエラーレスポンス。
type FieldErrorsResponseBody struct {
	Errors map[string][]string `json:"errors"`
}

// WriteErrorResponse はAPIエラーをJSONで書き込む。
// Fieldsを持つエラーは{"errors": {...}}、それ以外は{"error": "..."}の形式にする。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if len(apiErr.Fields) > 0 {
		json.NewEncoder(w).Encode(FieldErrorsResponseBody{Errors: apiErr.Fields})
		return
	}
	json.NewEncoder(w).Encode(ErrorResponseBody{Error: apiErr.Message})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
