package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/services"
	"github.com/yash-217/yash.fun/interfaces/http/rest/handlers"
	"github.com/yash-217/yash.fun/interfaces/http/rest/middleware"
	"github.com/yash-217/yash.fun/internal/infrastructure/observability"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Options configures the router's outer surface.
type Options struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	CORSMaxAge     int
	MaxBodyBytes   int64
	// MetricsPath is served when metrics are enabled; empty disables it.
	MetricsPath string
	Tracing     bool
	Checks      map[string]ReadinessCheck
}

// Router creates and configures the HTTP router
type Router struct {
	workspace *services.Workspace
	catalog   *services.Catalog
	metrics   *observability.Collector
	logger    *zap.Logger
	opts      Options
}

// NewRouter creates a new router instance
func NewRouter(ws *services.Workspace, metrics *observability.Collector, logger *zap.Logger, opts Options) *Router {
	return &Router{
		workspace: ws,
		metrics:   metrics,
		logger:    logger,
		opts:      opts,
	}
}

// NewCatalogRouter creates a router for the stateless catalog surface.
func NewCatalogRouter(catalog *services.Catalog, metrics *observability.Collector, logger *zap.Logger, opts Options) *Router {
	return &Router{
		catalog: catalog,
		metrics: metrics,
		logger:  logger,
		opts:    opts,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := rt.base()

	residues := handlers.NewResidueHandler(rt.workspace, rt.logger)
	structure := handlers.NewStructureHandler(rt.workspace, rt.logger)
	searches := handlers.NewSearchHandler(rt.workspace, rt.logger)
	snapshots := handlers.NewSnapshotHandler(rt.workspace, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.BodyLimit(rt.opts.MaxBodyBytes))

		r.Route("/residues", func(r chi.Router) {
			r.Get("/", residues.ListResidues)
			r.Post("/", residues.AddResidue)
			r.Get("/{residueID}", residues.GetResidue)
			r.Patch("/{residueID}", residues.UpdateResidue)
			r.Delete("/{residueID}", residues.DeleteResidue)
			r.Post("/{residueID}/connect", residues.Connect)
			r.Delete("/{residueID}/connect", residues.Disconnect)
			r.Post("/{residueID}/drop", residues.Drop)
		})
		r.Put("/selection", residues.Select)
		r.Delete("/graph", residues.Clear)

		r.Route("/structure", func(r chi.Router) {
			r.Get("/export", structure.Export)
			r.Post("/import", structure.Import)
			r.Post("/load", structure.Load)
		})

		r.Route("/searches", func(r chi.Router) {
			r.Post("/", searches.StartSearch)
			r.Get("/{jobID}", searches.GetSearch)
			r.Delete("/{jobID}", searches.CancelSearch)
		})

		r.Route("/snapshots", func(r chi.Router) {
			r.Post("/", snapshots.SaveSnapshot)
			r.Get("/", snapshots.ListSnapshots)
			r.Post("/{snapshotID}/restore", snapshots.RestoreSnapshot)
			r.Delete("/{snapshotID}", snapshots.DeleteSnapshot)
		})
	})

	return router
}

// SetupCatalog serves snapshots from the store and runs searches inside
// the request. Nothing outlives a request.
func (rt *Router) SetupCatalog() http.Handler {
	router := rt.base()
	catalog := handlers.NewCatalogHandler(rt.catalog, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.BodyLimit(rt.opts.MaxBodyBytes))

		r.Post("/searches", catalog.RunSearch)

		r.Route("/snapshots", func(r chi.Router) {
			r.Post("/", catalog.ImportSnapshot)
			r.Get("/", catalog.ListSnapshots)
			r.Get("/{snapshotID}", catalog.GetSnapshot)
			r.Get("/{snapshotID}/export", catalog.ExportSnapshot)
			r.Post("/{snapshotID}/search", catalog.SearchSnapshot)
			r.Delete("/{snapshotID}", catalog.DeleteSnapshot)
		})
	})

	return router
}

// base installs the middleware, health and metrics routes shared by both
// surfaces.
func (rt *Router) base() *chi.Mux {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Logger(rt.logger))
	router.Use(chimiddleware.Recoverer)
	if rt.opts.Tracing {
		router.Use(observability.TracingMiddleware())
	}
	if rt.metrics != nil {
		router.Use(observability.MetricsMiddleware(rt.metrics))
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.opts.AllowedOrigins,
		AllowedMethods: rt.opts.AllowedMethods,
		AllowedHeaders: rt.opts.AllowedHeaders,
		ExposedHeaders: []string{"X-Request-ID", "X-Structure-Valid", "X-Structure-Warnings", "Location"},
		MaxAge:         rt.opts.CORSMaxAge,
	}))

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.metrics != nil && rt.opts.MetricsPath != "" {
		router.Handle(rt.opts.MetricsPath, rt.metrics.Handler())
	}
	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck runs every registered check with a short deadline.
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
	defer cancel()

	failures := make(map[string]string)
	for name, check := range rt.opts.Checks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if len(failures) > 0 {
		rt.logger.Warn("Readiness check failed", zap.Any("failures", failures))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
