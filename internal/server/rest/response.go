package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/tflic/internal/common"
)

// Error codes returned in {"error": "...", "code": "..."} bodies.
const (
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorized"
	ErrCodeForbidden      = "forbidden"
	ErrCodeLoginInUse     = "login_in_use"
	ErrCodeInvalidToken   = "invalid_token"
	ErrCodeTokenExpired   = "token_expired"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeInternal       = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeErr sends {"error": message, "code": errCode}. An empty errCode is
// derived from the status.
func writeErr(w http.ResponseWriter, status int, errCode string, message string) {
	if errCode == "" {
		errCode = defaultErrCode(status)
	}
	writeJSON(w, status, errorResponse{Error: message, Code: errCode})
}

func defaultErrCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return ErrCodeInvalidRequest
	case http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case http.StatusForbidden:
		return ErrCodeForbidden
	case http.StatusNotFound:
		return ErrCodeNotFound
	case http.StatusTooManyRequests:
		return ErrCodeRateLimited
	case http.StatusServiceUnavailable:
		return ErrCodeUnavailable
	default:
		return ErrCodeInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps service errors onto HTTP. Anything unknown is a 500 and
// its text is not sent to the client.
func statusFor(err error) (int, string, string) {
	switch {
	case errors.Is(err, common.ErrLoginInUse):
		return http.StatusBadRequest, ErrCodeLoginInUse, common.ErrLoginInUse.Error()
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest, ErrCodeInvalidRequest, err.Error()
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, ErrCodeNotFound, "not found"
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, ErrCodeUnauthorized, "invalid refresh token"
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, ErrCodeForbidden, "forbidden"
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, ErrCodeTokenExpired, "token expired"
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, ErrCodeInvalidToken, "invalid token"
	default:
		return http.StatusInternalServerError, ErrCodeInternal, "internal error"
	}
}
