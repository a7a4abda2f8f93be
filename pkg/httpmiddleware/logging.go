package httpmiddleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/mkantor-dev/research_agent/pkg/logger"
)

// HTTPLogger provides HTTP request/response logging middleware
type HTTPLogger struct {
	logger logger.Logger
}

// NewHTTPLogger creates a new HTTP logger middleware
func NewHTTPLogger(log logger.Logger) *HTTPLogger {
	return &HTTPLogger{
		logger: log,
	}
}

// Middleware returns the HTTP logging middleware
func (h *HTTPLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Correlation ID is guaranteed valid by the correlation middleware
		correlationID := r.Header.Get("X-Correlation-ID")

		requestLogger := h.logger.WithFields(
			logger.StringField("client_ip", r.RemoteAddr),
			logger.StringField("http_method", r.Method),
			logger.StringField("http_path", r.URL.Path),
			logger.CorrelationIDField(correlationID),
		)

		requestLogger.Info("HTTP request received")

		wrappedWriter := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(wrappedWriter, r)

		duration := time.Since(start)

		responseLogger := requestLogger.WithFields(
			logger.StringField("http_status", strconv.Itoa(wrappedWriter.Status())),
			logger.StringField("response_bytes", strconv.Itoa(wrappedWriter.BytesWritten())),
			logger.DurationField("duration", duration),
		)

		responseLogger.Info("HTTP response sent")
	})
}

// RequestLogger creates a logger with request context for use in handlers
func (h *HTTPLogger) RequestLogger(r *http.Request) logger.Logger {
	correlationID := r.Header.Get("X-Correlation-ID")

	return h.logger.WithFields(
		logger.StringField("client_ip", r.RemoteAddr),
		logger.StringField("http_method", r.Method),
		logger.StringField("http_path", r.URL.Path),
		logger.CorrelationIDField(correlationID),
	)
}
