package httpapi

import (
	"net/http"

	"github.com/MrEthical07/jwtsession"
	"github.com/MrEthical07/jwtsession/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Options configures the router.
type Options struct {
	CookieDomain string
	CookiePath   string
	CookieSecure bool

	// Gatherer backs GET /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// NewRouter returns the HTTP surface for engine.
func NewRouter(engine *jwtsession.Engine, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CookiePath == "" {
		opts.CookiePath = "/"
	}

	h := &SessionHandler{
		engine: engine,
		opts:   opts,
		logger: logger.Named("httpapi"),
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(chimw.Recoverer)
	r.Use(engineContext)

	r.Get("/healthz", h.Health)
	r.Get("/readyz", h.Ready)
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v2", func(r chi.Router) {
		r.Post("/sessions", h.Create)
		r.Delete("/sessions", h.Destroy)

		r.With(middleware.Guard(engine)).Get("/me", h.Me)
		r.With(middleware.RequireSession(engine)).Get("/session", h.Current)
	})

	return r
}
