package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/rfdstore/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// WriteError はドメインエラーをHTTPステータスコードに対応付けてレスポンスを書き込む。
// 対応:
//   - ValidationError -> 400
//   - NotFoundError   -> 404
//   - ConflictError   -> 409
//   - DurabilityError および未知のエラー -> 500
//
// 500系の詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		writeErrorBody(w, http.StatusBadRequest, ErrorResponseBody{
			Code:    "VALIDATION_ERROR",
			Message: verr.Reason,
			Field:   verr.Field,
		})
		return
	}

	var nerr *model.NotFoundError
	if errors.As(err, &nerr) {
		writeErrorBody(w, http.StatusNotFound, ErrorResponseBody{
			Code:    "NOT_FOUND",
			Message: nerr.Error(),
		})
		return
	}

	var cerr *model.ConflictError
	if errors.As(err, &cerr) {
		writeErrorBody(w, http.StatusConflict, ErrorResponseBody{
			Code:    "CONFLICT",
			Message: cerr.Error(),
			Field:   cerr.Field,
		})
		return
	}

	slog.Error("内部エラー",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", RequestIDFromContext(r.Context())),
		slog.Any("error", err),
	)
	writeErrorBody(w, http.StatusInternalServerError, ErrorResponseBody{
		Code:    "INTERNAL_ERROR",
		Message: "内部エラーが発生しました。",
	})
}

func writeErrorBody(w http.ResponseWriter, statusCode int, body ErrorResponseBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
