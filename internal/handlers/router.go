package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tamil-braille/api/internal/platform/httpx"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

// Route groups under /api/v1. A group without a registrar still answers, with
// 501, so clients can tell a disabled feature from a typo.
const (
	groupBraille     = "braille"
	groupConversions = "conversions"
	groupExtractions = "extractions"
)

var placeholderPaths = map[string][]string{
	groupBraille:     {"/braille:convert", "/braille:render", "/braille/table"},
	groupConversions: {"/", "/*"},
	groupExtractions: {"/extractions"},
}

const (
	apiPrefix      = "/api/v1"
	requestTimeout = 60 * time.Second
)

type routerConfig struct {
	middlewares []func(http.Handler) http.Handler
	health      *HealthHandlers
	groups      map[string]RouteRegistrar
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

// NewRouter builds the chi router: request ID, real IP and a request timeout
// first, then any WithMiddlewares, then probes and the API groups.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{groups: make(map[string]RouteRegistrar, len(placeholderPaths))}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Timeout(requestTimeout))
	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found", fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	mountProbes(r, cfg.health)
	r.Route(apiPrefix, func(api chi.Router) {
		mountProbes(api, cfg.health)
		mountGroup(api, groupBraille, cfg.groups[groupBraille])
		api.Route("/conversions", func(history chi.Router) {
			mountGroup(history, groupConversions, cfg.groups[groupConversions])
		})
		mountGroup(api, groupExtractions, cfg.groups[groupExtractions])
	})
	return r
}

func mountProbes(r chi.Router, h *HealthHandlers) {
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
}

func mountGroup(r chi.Router, group string, register RouteRegistrar) {
	if register != nil {
		register(r)
		return
	}
	unavailable := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", fmt.Sprintf("%s routes not enabled on this server", group), http.StatusNotImplemented))
	}
	for _, path := range placeholderPaths[group] {
		r.HandleFunc(path, unavailable)
	}
}

// WithMiddlewares appends global middleware, run after the built-in ones.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithHealthHandlers overrides the handlers used for /healthz and /readyz endpoints.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

// WithBrailleRoutes mounts the stateless convert, render and table endpoints.
func WithBrailleRoutes(reg RouteRegistrar) Option {
	return withGroup(groupBraille, reg)
}

// WithConversionRoutes mounts history routes beneath /conversions.
func WithConversionRoutes(reg RouteRegistrar) Option {
	return withGroup(groupConversions, reg)
}

// WithExtractionRoutes mounts the upload endpoints.
func WithExtractionRoutes(reg RouteRegistrar) Option {
	return withGroup(groupExtractions, reg)
}

func withGroup(group string, reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.groups[group] = reg
	}
}
