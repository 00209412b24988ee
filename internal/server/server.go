// Package server exposes the service over HTTP: ingestion endpoints,
// collection administration, the query catalogue, a raw select
// passthrough, and the health and metrics probes.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/IntelCompH2020/ewbsearch/internal/config"
	"github.com/IntelCompH2020/ewbsearch/internal/engine"
	"github.com/IntelCompH2020/ewbsearch/internal/index"
	"github.com/IntelCompH2020/ewbsearch/internal/query"
	"github.com/IntelCompH2020/ewbsearch/internal/telemetry"
)

// Server wires the indexer and executor behind a chi router.
type Server struct {
	cfg      *config.Config
	engine   *engine.Client
	indexer  *index.Indexer
	executor *query.Executor
	metrics  *telemetry.Metrics
	logger   *slog.Logger
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics installs the Prometheus collectors and the /metrics
// endpoint.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New builds a Server around an engine client.
func New(cfg *config.Config, client *engine.Client, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		engine: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	indexOpts := []index.Option{index.WithLogger(s.logger)}
	if s.metrics != nil {
		indexOpts = append(indexOpts, index.WithProgress(s.observeIngest))
	}
	s.indexer = index.New(client, cfg, indexOpts...)
	s.executor = query.New(client, s.indexer.Registry(), cfg, query.WithLogger(s.logger))

	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Post("/corpora/index", s.handleIndexCorpus)
	r.Post("/corpora/delete", s.handleDeleteCorpus)
	r.Get("/corpora", s.handleListCorpora)

	r.Post("/models/index", s.handleIndexModel)
	r.Post("/models/delete", s.handleDeleteModel)
	r.Get("/models", s.handleListModels)

	r.Get("/collections", s.handleListCollections)
	r.Post("/collections/create", s.handleCreateCollection)
	r.Post("/collections/delete", s.handleDeleteCollection)

	r.Get("/query", s.handleRawQuery)
	r.Get("/queries/{id}", s.handleCatalogueQuery)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil && s.cfg.Server.Metrics {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return r
}

// ServeHTTP makes the server usable directly under httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("http server listening", "addr", s.cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// logRequests writes one structured line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}

func (s *Server) observeIngest(p index.Progress) {
	if s.metrics == nil || p.Delta == 0 {
		return
	}
	s.metrics.ObserveDocuments(p.Collection, p.Delta)
}
