// Package server exposes the loaders, the join and the report exports over
// HTTP.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sells-group/concession-cli/internal/cache"
	"github.com/sells-group/concession-cli/internal/config"
	"github.com/sells-group/concession-cli/internal/model"
	"github.com/sells-group/concession-cli/internal/report"
)

// multipartMemory is the part of an upload kept in memory before spilling
// to temporary files.
const multipartMemory = 32 << 20

// Server holds the configuration and the upload caches shared by handlers.
type Server struct {
	cfg      *config.Config
	schema   model.Schema
	catalog  report.Catalog
	tables   *cache.Cache[model.Table]
	shapes   *cache.Cache[model.FeatureSet]
	validate *validator.Validate
	limiter  *RateLimiter
	metrics  *metrics
	log      *zap.Logger
}

// New creates a server. catalog must already be validated.
func New(cfg *config.Config, catalog report.Catalog) *Server {
	return &Server{
		cfg:      cfg,
		schema:   cfg.Schema.Schema(),
		catalog:  catalog,
		tables:   cache.New[model.Table](cfg.Cache.MaxEntries, cfg.Cache.CacheTTL()),
		shapes:   cache.New[model.FeatureSet](cfg.Cache.MaxEntries, cfg.Cache.CacheTTL()),
		validate: validator.New(),
		limiter:  NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst),
		metrics:  newMetrics(),
		log:      zap.L().With(zap.String("component", "server")),
	}
}

// Router builds the HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if s.cfg.Server.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition", "X-Export-ID"},
		MaxAge:         300,
	}))
	r.Use(s.metrics.middleware)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Handler)
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/sections", s.handleSections)
		r.Get("/cache", s.handleCacheStats)
		r.Post("/companies", s.handleCompanies)
		r.Post("/view", s.handleView)
		r.Post("/tables", s.handleTables)
		r.Post("/export", s.handleExport)
	})

	return r
}

// HTTPServer returns an http.Server listening on port with the configured
// timeouts.
func (s *Server) HTTPServer(port int) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(s.cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Server.WriteTimeoutSecs) * time.Second,
	}
}

func (s *Server) maxUploadBytes() int64 {
	return int64(s.cfg.Server.MaxUploadMB) << 20
}
