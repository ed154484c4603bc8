package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/sheetshot/sheetshot/pkg/errors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error code onto an HTTP status and writes the
// {"error", "code"} body.
func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, statusFor(code), map[string]string{
		"error": errors.UserMessage(err),
		"code":  string(code),
	})
}

func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeConfig, errors.ErrCodeRange:
		return http.StatusBadRequest
	case errors.ErrCodeTaskNotFound, errors.ErrCodeFileNotFound, errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeConcurrencyTimeout:
		return http.StatusServiceUnavailable
	case errors.ErrCodeCancelled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
