package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sofatutor/httpcapture/internal/logging"
)

// NewRequestIDMiddleware propagates request and correlation IDs: incoming
// headers are honored, missing ones are filled with UUIDs, and both are
// placed in the request context and echoed on the response.
func NewRequestIDMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := getOrGenerateID(r.Header.Get("X-Request-ID"))
			correlationID := getOrGenerateID(r.Header.Get("X-Correlation-ID"))

			ctx := logging.WithRequestID(r.Context(), requestID)
			ctx = logging.WithCorrelationID(ctx, correlationID)

			w.Header().Set("X-Request-ID", requestID)
			w.Header().Set("X-Correlation-ID", correlationID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// getOrGenerateID returns the provided ID if non-empty, otherwise a new
// UUID.
func getOrGenerateID(existingID string) string {
	existingID = strings.TrimSpace(existingID)
	if existingID == "" {
		return uuid.New().String()
	}
	return existingID
}
