package gateway

import (
	"net/http"

	"github.com/af-corp/medullar-gateway/internal/credentials"
	"github.com/af-corp/medullar-gateway/internal/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterOptions wires optional pieces into the router.
type RouterOptions struct {
	Version string
	// RateLimit is applied to authenticated routes when set.
	RateLimit func(http.Handler) http.Handler
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

func NewRouter(h *Handler, opts RouterOptions) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestID)

	// Unauthenticated routes
	r.Get("/medullar/v1/health", healthHandler(opts.Version))
	r.Get("/v1/nodes/medullar", h.Describe)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(credentials.Middleware())
		if opts.RateLimit != nil {
			r.Use(opts.RateLimit)
		}
		r.Post("/v1/nodes/medullar/execute", h.Execute)
		r.Post("/v1/nodes/medullar/options/{method}", h.LoadOptions)
		r.Post("/v1/credentials/medullar/test", h.TestCredential)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, w.Header().Get("X-Request-ID"), "Unknown route "+r.Method+" "+r.URL.Path)
	})
	return r
}

func healthHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, "", http.StatusOK, map[string]string{
			"status":  "healthy",
			"version": version,
		})
	}
}
