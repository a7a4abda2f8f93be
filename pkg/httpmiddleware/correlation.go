package httpmiddleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/mkantor-dev/research_agent/pkg/logger"
)

// CorrelationID middleware ensures every request has a unique correlation ID.
// Always generates a new correlation ID and ignores any client-provided
// correlation headers, so we control our own IDs for consistency.
// Also enriches the request context with the correlation ID.
func CorrelationID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := uuid.New().String()

			r.Header.Set("X-Correlation-ID", correlationID)

			ctx := logger.WithCorrelationIDContext(r.Context(), correlationID)
			r = r.WithContext(ctx)

			next.ServeHTTP(w, r)
		})
	}
}
