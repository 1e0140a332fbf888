// Package server wires the redline services together and runs the HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redlinehq/redline/internal/analysis"
	"github.com/redlinehq/redline/internal/api"
	"github.com/redlinehq/redline/internal/blob"
	"github.com/redlinehq/redline/internal/config"
	"github.com/redlinehq/redline/internal/engine"
	"github.com/redlinehq/redline/internal/extraction"
	"github.com/redlinehq/redline/internal/process"
	"github.com/redlinehq/redline/internal/server/endpoints"
	"github.com/redlinehq/redline/internal/store"
	"github.com/redlinehq/redline/internal/svcctx"
)

// Server is the main Redline HTTP server. It owns the content store,
// blob store, worker pool, and processing facade for its lifetime.
type Server struct {
	httpServer *http.Server
	configMgr  *config.Manager
	logger     *slog.Logger

	content  store.ContentStore
	blobs    blob.Store
	pool     *extraction.Pool
	analyzer *analysis.Orchestrator
	facade   *process.Facade

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: from config manager)
	Host string
	// Port is the port to listen on (default: from config manager)
	Port int
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	appCfg := cfg.ConfigManager.Get()
	if cfg.Host == "" {
		cfg.Host = appCfg.Server.Host
	}
	if cfg.Port == 0 {
		cfg.Port = appCfg.Server.Port
	}

	s := &Server{
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      s.withServices(mux),
		ReadTimeout:  5 * time.Minute, // multipart uploads can be large
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts the server. It blocks until the context is cancelled or
// an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.initServices(ctx); err != nil {
		s.setNotRunning()
		return err
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// initServices builds the store, engines, pool, and facade from config.
func (s *Server) initServices(ctx context.Context) error {
	cfg := s.configMgr.Get()

	content, err := buildContentStore(cfg)
	if err != nil {
		return fmt.Errorf("opening content store: %w", err)
	}
	s.content = content
	s.logger.Info("content store ready", "backend", cfg.Storage.Backend)

	blobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		_ = content.Close()
		return fmt.Errorf("opening blob store: %w", err)
	}
	s.blobs = blobs
	s.logger.Info("blob store ready", "backend", cfg.Blob.Backend)

	s.pool = extraction.NewPool(extraction.PoolConfig{
		Workers:   cfg.Pool.Workers,
		QueueSize: cfg.Pool.QueueSize,
		Logger:    s.logger,
	})
	s.pool.Start(ctx)

	coordinator := extraction.NewCoordinator(extraction.CoordinatorConfig{
		Pool:        s.pool,
		Blobs:       blobs,
		Engine:      buildExtractionEngine(cfg),
		Content:     content,
		PageTimeout: time.Duration(cfg.Extraction.TimeoutSeconds) * time.Second,
		Logger:      s.logger,
	})

	s.analyzer = analysis.NewOrchestrator(analysis.Config{
		Content: content,
		Engine:  buildAnalysisEngine(cfg),
		Mode:    analysis.ParseMode(cfg.Analysis.Mode),
		Timeout: time.Duration(cfg.Analysis.TimeoutSeconds) * time.Second,
		Logger:  s.logger,
	})

	s.facade = process.NewFacade(process.FacadeConfig{
		Content:     content,
		Coordinator: coordinator,
		Analyzer:    s.analyzer,
		StatusTTL:   time.Duration(cfg.Server.StatusCacheTTLSeconds) * time.Second,
		Logger:      s.logger,
	})

	s.services = &svcctx.Services{
		Facade:  s.facade,
		Content: content,
		Logger:  s.logger,
	}
	return nil
}

func buildContentStore(cfg *config.Config) (store.ContentStore, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return store.NewDuckStore(cfg.Storage.Path)
	}
}

func buildBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch cfg.Blob.Backend {
	case "memory":
		return blob.NewMemoryStore(), nil
	case "gcs":
		return blob.NewGCSStore(ctx, cfg.Blob.Bucket)
	default:
		return blob.NewLocalStore(cfg.Blob.Dir)
	}
}

func buildExtractionEngine(cfg *config.Config) engine.ExtractionEngine {
	return engine.NewHTTPExtractionEngine(engine.HTTPExtractionConfig{
		BaseURL:    cfg.Extraction.BaseURL,
		APIKey:     config.ResolveEnvVars(cfg.Extraction.APIKey),
		Timeout:    time.Duration(cfg.Extraction.TimeoutSeconds) * time.Second,
		RateLimit:  cfg.Extraction.RateLimit,
		MaxRetries: uint(cfg.Extraction.MaxRetries),
	})
}

func buildAnalysisEngine(cfg *config.Config) engine.AnalysisEngine {
	switch cfg.Analysis.Provider {
	case "http":
		return engine.NewHTTPAnalysisEngine(engine.HTTPAnalysisConfig{
			BaseURL:    cfg.Analysis.BaseURL,
			APIKey:     config.ResolveEnvVars(cfg.Analysis.APIKey),
			Timeout:    time.Duration(cfg.Analysis.TimeoutSeconds) * time.Second,
			MaxRetries: uint(cfg.Analysis.MaxRetries),
		})
	case "mock":
		return engine.NewMockAnalysisEngine()
	default:
		return engine.NewOpenAIAnalysisEngine(engine.OpenAIAnalysisConfig{
			APIKey:     config.ResolveEnvVars(cfg.Analysis.APIKey),
			Model:      cfg.Analysis.Model,
			BaseURL:    cfg.Analysis.BaseURL,
			Timeout:    time.Duration(cfg.Analysis.TimeoutSeconds) * time.Second,
			MaxRetries: cfg.Analysis.MaxRetries,
		})
	}
}

// shutdown performs graceful shutdown of the HTTP server and services.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Let in-flight background analysis runs finish recording outcomes.
	if s.analyzer != nil {
		s.analyzer.Wait()
	}

	if s.content != nil {
		if err := s.content.Close(); err != nil {
			s.logger.Error("content store close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Facade returns the processing facade.
// Returns nil if the server hasn't started yet.
func (s *Server) Facade() *process.Facade {
	return s.facade
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if the store and facade aren't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.facade == nil || s.content == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
