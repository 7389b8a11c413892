package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/dustguard/dustguard/internal/api/middleware"
	"github.com/dustguard/dustguard/internal/auth"
)

// logLines serves req through h and returns the decoded JSON log lines.
func logLines(t *testing.T, buf *bytes.Buffer, h http.Handler, req *http.Request) []map[string]any {
	t.Helper()
	h.ServeHTTP(httptest.NewRecorder(), req)

	var lines []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var entry map[string]any
		require.NoError(t, dec.Decode(&entry))
		lines = append(lines, entry)
	}
	require.NotEmpty(t, lines)
	return lines
}

func TestLogger_CompletionLine(t *testing.T) {
	var buf bytes.Buffer
	h := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"score":7}`))
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/metadata/scales?lat=24.7&lon=46.7", http.NoBody)
	req.Header.Set("User-Agent", "dustguard-pwa/1.0")
	lines := logLines(t, &buf, h, req)

	entry := lines[len(lines)-1]
	assert.Equal(t, "request completed", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/v1/metadata/scales", entry["path"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, float64(11), entry["bytes"])
	assert.Equal(t, "dustguard-pwa/1.0", entry["user_agent"])
	assert.NotContains(t, buf.String(), "46.7")
}

func TestLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "info"},
		{http.StatusBadRequest, "warn"},
		{http.StatusConflict, "warn"},
		{http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			h := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))

			lines := logLines(t, &buf, h, httptest.NewRequest(http.MethodPost, "/v1/risk:compute", http.NoBody))
			entry := lines[len(lines)-1]
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, float64(tt.status), entry["status"])
			assert.Equal(t, "/v1/risk:compute", entry["route"])
		})
	}
}

func TestLogger_HandlersShareRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	h := middleware.RequestID(middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("assessing")
		w.WriteHeader(http.StatusCreated)
	})))

	lines := logLines(t, &buf, h, httptest.NewRequest(http.MethodPost, "/v1/me/risk/assessments", http.NoBody))
	require.Len(t, lines, 2)

	assert.Equal(t, "assessing", lines[0]["message"])
	id, ok := lines[0]["request_id"].(string)
	require.True(t, ok)
	assert.Contains(t, id, "req_")
	assert.Equal(t, id, lines[1]["request_id"])
}

func TestLogger_TagsAuthenticatedUser(t *testing.T) {
	svc, err := auth.NewJWTService(auth.JWTConfig{SigningKey: "log-test-key"})
	require.NoError(t, err)
	token, _, err := svc.GenerateAccessToken("user-42", "", 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	h := middleware.Logger(zerolog.New(&buf))(middleware.Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodDelete, "/v1/me", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	lines := logLines(t, &buf, h, req)

	assert.Equal(t, "user-42", lines[len(lines)-1]["user_id"])
}

func TestLogger_IncludesTraceID(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var buf bytes.Buffer
	h := middleware.Tracing("test-service")(middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	lines := logLines(t, &buf, h, httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))
	entry := lines[len(lines)-1]

	assert.Len(t, entry["trace_id"], 32)
	assert.Len(t, entry["span_id"], 16)
	require.Len(t, sr.Ended(), 1)
	assert.Equal(t, sr.Ended()[0].SpanContext().TraceID().String(), entry["trace_id"])
}
