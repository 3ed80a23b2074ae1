// Package middleware holds the HTTP middleware shared by every route.
//
// WHAT IS MIDDLEWARE?
// A middleware takes the next http.Handler and returns a handler that runs
// code around it:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // before: read headers, start timers, attach values to the context
//	        next.ServeHTTP(w, r)
//	        // after: inspect what the handler wrote
//	    })
//	}
//
// chi stacks them with router.Use, outermost first. A request passes
// RequestID → RealIP → Logger → Recoverer → handler and the response comes
// back out in reverse order.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// responseWriter records the status code and body size, which
// http.ResponseWriter does not expose.
//
// EMBEDDING:
// Embedding http.ResponseWriter promotes its methods (Header, Write,
// WriteHeader) onto responseWriter. Declaring Write and WriteHeader again
// shadows the promoted ones, so calls go through our bookkeeping first and
// then to the real writer.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	written     int64
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	// only the first call counts, the same rule net/http applies
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	// a Write without WriteHeader is an implicit 200
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logger logs one line per request. Server errors log at error level and
// client errors at warn, so a quiet log means healthy traffic.
// Mount it after chi's RequestID to get the request_id attribute.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// 200 is what net/http sends when the handler never calls
			// WriteHeader
			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			// LEVEL BY STATUS:
			// slog handlers drop records below their configured level, so
			// LOG_LEVEL=warn keeps only failed requests.
			level := slog.LevelInfo
			switch {
			case wrapped.statusCode >= 500:
				level = slog.LevelError
			case wrapped.statusCode >= 400:
				level = slog.LevelWarn
			}

			// LogAttrs takes typed slog.Attr values instead of alternating
			// key/value arguments, which avoids boxing each value in an any.
			logger.LogAttrs(r.Context(), level, "request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", wrapped.written),
				slog.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}
