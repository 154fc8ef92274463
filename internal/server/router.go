// Package server implements the HTTP server and routing logic.
package server

import (
	"net/http"
	"time"

	apierrors "github.com/maruel/wikimark/internal/errors"
	"github.com/maruel/wikimark/internal/server/handlers"
	"github.com/maruel/wikimark/internal/server/ratelimit"
	"github.com/maruel/wikimark/internal/wiki"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Version is reported by the health endpoint.
	Version string
	// User, when set, is the identity of every writer regardless of the
	// X-Forwarded-User header.
	User string
	// WriteRatePerMin limits saves and deletes per identity. 0 disables it.
	WriteRatePerMin int
	// MaxRequestBodyBytes limits request bodies. 0 disables it.
	MaxRequestBodyBytes int64
}

// Router is the HTTP handler of the wiki API.
type Router struct {
	http.Handler
	limiter *ratelimit.Limiter
}

// Close releases the rate limiter.
func (r *Router) Close() {
	r.limiter.Close()
}

// NewRouter creates and configures the HTTP router.
// Serves API endpoints at /api/*.
func NewRouter(w *wiki.Wiki, cfg *Config) *Router {
	if cfg == nil {
		cfg = &Config{}
	}
	// Burst of a sixth of the rate, as for the write tier of a multi-user server.
	limiter := ratelimit.NewLimiter(cfg.WriteRatePerMin, time.Minute, max(cfg.WriteRatePerMin/6, 1))
	mux := &http.ServeMux{}
	ph := handlers.NewPageHandler(w)
	hh := handlers.NewHealthHandler(cfg.Version, w.Branch())

	mux.Handle("GET /api/health", Wrap(hh.Health, cfg))

	mux.Handle("GET /api/pages", Wrap(ph.ListPages, cfg))
	mux.Handle("GET /api/pages/{link...}", Wrap(ph.GetPage, cfg))
	mux.Handle("GET /api/raw/{link...}", Wrap(ph.GetRawPage, cfg))
	mux.Handle("POST /api/pages", WrapAuth(ph.SavePage, cfg, limiter))
	mux.Handle("DELETE /api/pages/{link...}", WrapAuth(ph.DeletePage, cfg, limiter))

	mux.Handle("GET /api/log", Wrap(ph.Log, cfg))

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteErrorResponse(w, apierrors.NotFound("endpoint"))
	})
	return &Router{Handler: RequestMiddleware(mux), limiter: limiter}
}
