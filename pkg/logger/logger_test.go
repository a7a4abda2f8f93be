package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level Level) (Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	log := NewLogger(Config{
		Level:   level,
		Format:  "json",
		Service: "test-service",
		Output:  buf,
	})
	return log, buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name       string
		level      Level
		logFn      func(Logger)
		wantOutput bool
	}{
		{
			name:       "info visible at info level",
			level:      InfoLevel,
			logFn:      func(l Logger) { l.Info("hello") },
			wantOutput: true,
		},
		{
			name:       "debug hidden at info level",
			level:      InfoLevel,
			logFn:      func(l Logger) { l.Debug("hidden") },
			wantOutput: false,
		},
		{
			name:       "warn visible at warn level",
			level:      WarnLevel,
			logFn:      func(l Logger) { l.Warn("careful") },
			wantOutput: true,
		},
		{
			name:       "info hidden at error level",
			level:      ErrorLevel,
			logFn:      func(l Logger) { l.Info("hidden") },
			wantOutput: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, buf := newBufferLogger(tt.level)
			tt.logFn(log)
			if tt.wantOutput {
				assert.NotEmpty(t, buf.String())
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestWithFieldsImmutable(t *testing.T) {
	log, buf := newBufferLogger(InfoLevel)

	derived := log.WithFields(StringField("component", "loop"))
	derived.Info("derived message")

	entry := decodeLine(t, buf)
	assert.Equal(t, "loop", entry["component"])
	assert.Equal(t, "test-service", entry["service"])

	buf.Reset()
	log.Info("base message")
	entry = decodeLine(t, buf)
	_, hasComponent := entry["component"]
	assert.False(t, hasComponent, "base logger must not inherit derived fields")
}

func TestFieldHelpers(t *testing.T) {
	assert.Equal(t, LogField{Key: "k", Value: "v"}, StringField("k", "v"))
	assert.Equal(t, LogField{Key: "n", Value: "42"}, IntField("n", 42))
	assert.Equal(t, LogField{Key: "b", Value: "true"}, BoolField("b", true))
	assert.Equal(t, LogField{Key: "d", Value: "5s"}, DurationField("d", 5*time.Second))
	assert.Equal(t, "error", ErrorField(nil).Key)
	assert.Equal(t, "<nil>", ErrorField(nil).Value)
}

func TestCorrelationIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetCorrelationIDFromContext(ctx))

	ctx = WithCorrelationIDContext(ctx, "abc-123")
	assert.Equal(t, "abc-123", GetCorrelationIDFromContext(ctx))
}

func TestHTTPMiddlewareLogsRequest(t *testing.T) {
	log, buf := newBufferLogger(InfoLevel)

	handler := log.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), "HTTP request received")
	assert.Contains(t, buf.String(), "HTTP response sent")
	assert.Contains(t, buf.String(), "/chat")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("warn"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel("bogus"))
}
