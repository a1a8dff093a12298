package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// RequestLogger attaches log to every request context and writes one access
// line per request. Place it after chi's RequestID.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	access := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		event := hlog.FromRequest(r).Info()
		if status >= http.StatusInternalServerError {
			event = hlog.FromRequest(r).Error()
		}
		event.
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})
	requestID := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := chimiddleware.GetReqID(r.Context()); id != "" {
				l := zerolog.Ctx(r.Context()).With().Str("request_id", id).Logger()
				r = r.WithContext(l.WithContext(r.Context()))
			}
			next.ServeHTTP(w, r)
		})
	}
	return func(next http.Handler) http.Handler {
		return hlog.NewHandler(log)(requestID(access(next)))
	}
}
