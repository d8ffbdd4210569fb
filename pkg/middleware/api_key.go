package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	apperrors "coworking/pkg/errors"
	httputil "coworking/pkg/http"
	"coworking/pkg/logger"
)

const APIKeyHeader = "X-API-Key"

// APIKey admits requests carrying key in the X-API-Key header. Unlike
// WebhookSignature an empty key does not disable the check: every request is
// refused.
func APIKey(key string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received := strings.TrimSpace(r.Header.Get(APIKeyHeader))
			switch {
			case key == "":
				rejectAPIKey(w, log, r, "Admin API key not configured")
				return
			case received == "":
				rejectAPIKey(w, log, r, "Missing "+APIKeyHeader+" header")
				return
			case subtle.ConstantTimeCompare([]byte(received), []byte(key)) != 1:
				rejectAPIKey(w, log, r, "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectAPIKey(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	log.Warn("API key verification failed",
		"request_id", RequestIDFrom(r.Context()),
		"reason", reason,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)

	_ = httputil.WriteError(w, apperrors.Unauthorized("Unauthorized"))
}
