package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger returns a middleware that attaches a request-scoped logger to the
// context and writes one line per request when the handler returns.
//
// Handlers and later middleware reach the logger with zerolog.Ctx. Auth adds
// the user ID to it, so the completion line carries user_id for
// authenticated requests. Query strings are never logged because they can
// carry coordinates.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lc := log.With().Str("request_id", GetRequestID(r.Context()))
			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				lc = lc.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
			}
			reqLog := lc.Logger()
			ctx := reqLog.WithContext(r.Context())

			rec := newStatusRecorder(w)
			r = r.WithContext(ctx)
			next.ServeHTTP(rec, r)

			l := zerolog.Ctx(ctx)
			var event *zerolog.Event
			switch {
			case rec.statusCode >= 500:
				event = l.Error()
			case rec.statusCode >= 400:
				event = l.Warn()
			default:
				event = l.Info()
			}

			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", routePattern(r)).
				Int("status", rec.statusCode).
				Int64("bytes", rec.written).
				Dur("duration", time.Since(start)).
				Str("user_agent", r.UserAgent()).
				Msg("request completed")
		})
	}
}

// tagRequestLog adds the authenticated user to the request logger.
func tagRequestLog(ctx context.Context, userID string) {
	zerolog.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("user_id", userID)
	})
}
