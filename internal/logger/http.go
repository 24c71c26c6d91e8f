package logger

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// HTTPMiddleware attaches a per-request logger (request id, method, path,
// client ip) to the request context and writes one access line per request.
// It fits both router.Use and plain http.Handler wrapping.
func HTTPMiddleware(l zerolog.Logger) func(http.Handler) http.Handler {
	access := hlog.AccessHandler(func(r *http.Request, status, _ int, elapsed time.Duration) {
		hlog.FromRequest(r).Info().
			Int(FieldStatus, status).
			Float64(FieldLatency, float64(elapsed.Microseconds())/1000).
			Msg("request completed")
	})
	return func(next http.Handler) http.Handler {
		return hlog.NewHandler(l)(requestFields(access(next)))
	}
}

// requestFields stamps the request id onto the response and enriches the
// logger hlog.NewHandler placed in the context.
func requestFields(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(headerRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(headerRequestID, reqID)

		zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.
				Str(FieldRequestID, reqID).
				Str(FieldMethod, r.Method).
				Str(FieldPath, r.URL.Path).
				Str(FieldClientIP, clientIP(r))
		})
		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
