package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// StructuredLogger writes one line per served request at a level derived
// from the response status. Requests whose path is in skipPaths (health checks,
// metrics scrapes) are only logged when they fail.
func StructuredLogger(logger *slog.Logger, skipPaths ...string) func(next http.Handler) http.Handler {
	quiet := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		quiet[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				level := levelFor(status)
				if _, skip := quiet[r.URL.Path]; skip && level == slog.LevelInfo {
					return
				}
				logger.LogAttrs(r.Context(), level, "Served request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("route", logRoutePattern(r)),
					slog.String("proto", r.Proto),
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("user_agent", r.UserAgent()),
					slog.Int("status", status),
					slog.Float64("latency_ms", float64(time.Since(start).Nanoseconds())/1e6),
					slog.Int("bytes_written", ww.BytesWritten()),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// logRoutePattern is the matched chi pattern, e.g. /loans/{loanId}, so log
// lines group by endpoint instead of by loan ID.
func logRoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
