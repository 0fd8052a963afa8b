package http

import (
	"net/http"

	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

// statusForErr maps an apperrors.AppError code to an HTTP status and a
// wire-facing error code, following the vocabulary error codes carry
// through the domain layer. Unrecognized/nil-code errors map to 500.
func statusForErr(err error) (status int, code string) {
	for _, candidate := range []struct {
		appCode string
		status  int
	}{
		{"invalid_input", http.StatusBadRequest},
		{"unauthorized", http.StatusUnauthorized},
		{"invalid_token", http.StatusUnauthorized},
		{"invalid_credentials", http.StatusUnauthorized},
		{"forbidden", http.StatusForbidden},
		{"not_found", http.StatusNotFound},
		{"email_exists", http.StatusConflict},
		{"username_exists", http.StatusConflict},
		{"rate_limited", http.StatusTooManyRequests},
		{"upstream_unavailable", http.StatusBadGateway},
		{"storage_error", http.StatusInternalServerError},
		{"embedding_error", http.StatusInternalServerError},
		{"auth_error", http.StatusInternalServerError},
		{"internal", http.StatusInternalServerError},
	} {
		if apperrors.IsCode(err, candidate.appCode) {
			return candidate.status, candidate.appCode
		}
	}
	return http.StatusInternalServerError, "internal"
}
