package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mwork/rewards-api/internal/pkg/logger"
)

// RequestID adds a unique request ID to each request and a request scoped
// logger to its context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)
		r.Header.Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), requestID)))
	})
}
