package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/maruel/ksid"
	"github.com/maruel/wikimark/internal/server/reqctx"
)

// RequestIDHeader carries the id assigned to each request.
const RequestIDHeader = "X-Request-ID"

// statusWriter records the status code written by the next handler.
type statusWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (s *statusWriter) WriteHeader(statusCode int) {
	if s.status == 0 {
		s.status = statusCode
	}
	s.ResponseWriter.WriteHeader(statusCode)
}

func (s *statusWriter) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.size += n
	return n, err
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController.
func (s *statusWriter) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// RequestMiddleware assigns a request id, records the client IP in the
// context and logs each request once it completes.
func RequestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := ksid.NewID()
		ip := reqctx.GetClientIP(r)
		ctx := reqctx.WithRequestID(reqctx.WithClientIP(r.Context(), ip), id)
		w.Header().Set(RequestIDHeader, id.String())
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(ctx))
		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		slog.InfoContext(ctx, "http",
			"id", id.String(),
			"m", r.Method,
			"p", r.URL.Path,
			"s", sw.status,
			"b", sw.size,
			"ip", ip,
			"d", time.Since(start).Round(time.Millisecond),
		)
	})
}
