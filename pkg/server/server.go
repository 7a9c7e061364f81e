package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/litlmike/anthropic-api-server/pkg/audit"
	"github.com/litlmike/anthropic-api-server/pkg/batch"
	"github.com/litlmike/anthropic-api-server/pkg/catalog"
	"github.com/litlmike/anthropic-api-server/pkg/config"
	"github.com/litlmike/anthropic-api-server/pkg/dispatch"
	"github.com/litlmike/anthropic-api-server/pkg/gateway"
	"github.com/litlmike/anthropic-api-server/pkg/gateway/middleware"
	"github.com/litlmike/anthropic-api-server/pkg/relay"
	"github.com/litlmike/anthropic-api-server/pkg/telemetry/health"
	"github.com/litlmike/anthropic-api-server/pkg/telemetry/metrics"
	"github.com/litlmike/anthropic-api-server/pkg/telemetry/tracing"
	"github.com/litlmike/anthropic-api-server/pkg/upstream"
	"github.com/litlmike/anthropic-api-server/pkg/usage"
)

// Server runs the assembled gateway: HTTP listener, background jobs, and
// component teardown.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger

	handler    http.Handler
	httpServer *http.Server

	metrics  *metrics.Metrics
	tracer   *tracing.Tracer
	checker  *health.Checker
	catalog  *catalog.Catalog
	sweeper  *batch.Sweeper
	pruner   *audit.Pruner
	watcher  *catalog.Watcher
	recorder *audit.Recorder
	ledger   *usage.Ledger

	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	stopped      bool
}

// New wires every gateway component from cfg and returns a server ready
// to Start. The configuration must already be validated.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		logger: logger.With("component", "server"),
	}

	s.metrics = metrics.New(metrics.Config{
		Enabled:   cfg.Telemetry.Metrics.IsEnabled(),
		Namespace: cfg.Telemetry.Metrics.Namespace,
	}, nil)

	tracer, err := tracing.New(tracing.Config{
		Enabled:     cfg.Telemetry.Tracing.Enabled,
		Endpoint:    cfg.Telemetry.Tracing.Endpoint,
		Insecure:    cfg.Telemetry.Tracing.IsInsecure(),
		ServiceName: cfg.Telemetry.Tracing.ServiceName,
		SampleRatio: cfg.Telemetry.Tracing.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing setup: %w", err)
	}
	s.tracer = tracer

	client, err := upstream.NewClient(upstream.Config{
		APIKey:     cfg.Anthropic.APIKey,
		BaseURL:    cfg.Anthropic.BaseURL,
		Timeout:    cfg.Anthropic.Timeout,
		MaxRetries: cfg.Anthropic.MaxRetries,
		APIVersion: cfg.Anthropic.APIVersion,
		OnAttempt:  s.metrics.RecordUpstreamAttempt,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("upstream client: %w", err)
	}

	transcoder := relay.NewTranscoder(client, relay.Config{
		IdleTimeout:       cfg.Stream.IdleTimeout,
		KeepAliveInterval: cfg.Stream.KeepAliveInterval,
		BufferSize:        cfg.Stream.BufferSize,
	}, logger)

	manager := batch.NewManager(client, batch.Config{
		StalenessThreshold: cfg.Batch.StalenessThreshold,
		RegistryTTL:        cfg.Batch.RegistryTTL,
		ListDefaultLimit:   cfg.Batch.ListDefaultLimit,
		ListMaxLimit:       cfg.Batch.ListMaxLimit,
	}, logger)
	s.sweeper = batch.NewSweeper(manager, cfg.Batch.SweepSchedule, logger)
	s.metrics.ObserveBatchRegistry(manager.Len)

	if err := s.buildCatalog(logger); err != nil {
		return nil, err
	}

	auditStorage, err := s.buildAudit(logger)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveAuditDrops(s.recorder.Dropped)

	if err := s.buildUsage(logger); err != nil {
		return nil, err
	}

	dispatcher, err := dispatch.NewDispatcher(dispatch.Deps{
		Client:     client,
		Transcoder: transcoder,
		Batches:    manager,
		Catalog:    s.catalog,
		Ledger:     s.ledger,
		Auditor:    s.recorder,
		Metrics:    s.metrics,
		Tracer:     s.tracer,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}

	gw, err := gateway.NewHandler(dispatcher, gateway.Config{}, logger)
	if err != nil {
		return nil, fmt.Errorf("gateway handler: %w", err)
	}

	s.checker = health.New(0)
	s.checker.Register("catalog", func(ctx context.Context) error {
		if s.catalog.Len() == 0 {
			return fmt.Errorf("catalog is empty")
		}
		return nil
	})
	if auditStorage != nil {
		s.checker.Register("audit_storage", func(ctx context.Context) error {
			_, err := auditStorage.Recent(ctx, 1)
			return err
		})
	}
	if s.ledger != nil {
		ledger := s.ledger
		s.checker.Register("usage_ledger", func(ctx context.Context) error {
			_, err := ledger.Report(ctx, 1)
			return err
		})
	}

	s.handler = s.buildHandler(gw, logger)
	return s, nil
}

// buildCatalog loads the model catalog and, when configured, its file
// watcher.
func (s *Server) buildCatalog(logger *slog.Logger) error {
	if s.cfg.Catalog.Path == "" {
		s.catalog = catalog.New(logger)
		return nil
	}

	cat, err := catalog.NewFromFile(s.cfg.Catalog.Path, logger)
	if err != nil {
		return fmt.Errorf("catalog %q: %w", s.cfg.Catalog.Path, err)
	}
	s.catalog = cat

	if s.cfg.Catalog.Watch {
		w, err := catalog.NewWatcher(cat, s.cfg.Catalog.Path, 0, logger)
		if err != nil {
			return fmt.Errorf("catalog watcher: %w", err)
		}
		s.watcher = w
	}
	return nil
}

// buildAudit builds the audit pipeline when enabled. The returned storage
// is also owned by the recorder; it is exposed only for health probes.
func (s *Server) buildAudit(logger *slog.Logger) (audit.Storage, error) {
	if !s.cfg.Audit.IsEnabled() {
		return nil, nil
	}

	var storage audit.Storage
	switch s.cfg.Audit.Backend {
	case "sqlite":
		st, err := audit.NewSQLiteStorageWithConfig(audit.SQLiteConfig{
			Path:        s.cfg.Audit.SQLite.Path,
			BusyTimeout: s.cfg.Audit.SQLite.BusyTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("audit storage: %w", err)
		}
		storage = st
	default:
		storage = audit.NewMemoryStorage(0)
	}

	s.recorder = audit.NewRecorder(storage, audit.Config{
		BufferSize: s.cfg.Audit.BufferSize,
	}, logger)
	s.pruner = audit.NewPruner(storage, s.cfg.Audit.Retention.MaxAge, s.cfg.Audit.Retention.Schedule, logger)
	return storage, nil
}

// buildUsage builds the usage ledger when enabled.
func (s *Server) buildUsage(logger *slog.Logger) error {
	if !s.cfg.Usage.IsEnabled() {
		return nil
	}

	var storage usage.Storage
	switch s.cfg.Usage.Backend {
	case "sqlite":
		st, err := usage.NewSQLiteStorageWithConfig(usage.SQLiteConfig{
			Path: s.cfg.Usage.SQLite.Path,
		})
		if err != nil {
			return fmt.Errorf("usage storage: %w", err)
		}
		storage = st
	default:
		storage = usage.NewMemoryStorage()
	}

	s.ledger = usage.NewLedger(storage, logger)
	return nil
}

// buildHandler mounts the API and operational endpoints and wraps them in
// the middleware chain.
func (s *Server) buildHandler(gw *gateway.Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	gw.Register(mux)
	mux.Handle("/health", s.checker.Handler())
	if s.cfg.Telemetry.Metrics.IsEnabled() {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = middleware.TimeoutMiddleware(s.cfg.Server.WriteTimeout)(handler)
	handler = middleware.CORSMiddleware(corsFromConfig(&s.cfg.Server.CORS))(handler)
	handler = middleware.LoggingMiddleware(logger)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.RecoveryMiddleware(logger)(handler)
	return handler
}

// corsFromConfig converts the config section into the middleware's form.
func corsFromConfig(c *config.CORSConfig) *middleware.CORSConfig {
	return &middleware.CORSConfig{
		Enabled:        c.IsEnabled(),
		AllowedOrigins: c.AllowedOrigins,
		AllowedMethods: c.AllowedMethods,
		AllowedHeaders: c.AllowedHeaders,
		MaxAge:         c.MaxAge,
	}
}

// Start launches the background jobs and the HTTP listener and blocks
// until the context is canceled, a shutdown signal arrives, the listener
// fails, or Shutdown is called. A server can be started once.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("server is stopped")
	}
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.startBackground(runCtx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:           s.cfg.Server.ListenAddress,
		Handler:        s.handler,
		ReadTimeout:    s.cfg.Server.ReadTimeout,
		WriteTimeout:   s.cfg.Server.WriteTimeout,
		IdleTimeout:    s.cfg.Server.IdleTimeout,
		MaxHeaderBytes: s.cfg.Server.MaxHeaderBytes,
	}

	s.mu.Lock()
	if s.stopped {
		// Shutdown won the race during setup; the deferred cancel stops
		// the background jobs it could not see.
		s.mu.Unlock()
		return fmt.Errorf("server is stopped")
	}
	s.httpServer = srv
	s.isRunning = true
	s.mu.Unlock()

	listenDone := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", "address", s.cfg.Server.ListenAddress)
		listenDone <- srv.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-listenDone:
		if err != nil && err != http.ErrServerClosed {
			_ = s.Shutdown(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
		// The listener was closed by a direct Shutdown call.
		return nil
	}
}

// startBackground starts the scheduled jobs and the catalog watcher.
func (s *Server) startBackground(ctx context.Context) error {
	if err := s.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("batch sweeper: %w", err)
	}
	if s.pruner != nil {
		if err := s.pruner.Start(ctx); err != nil {
			return fmt.Errorf("audit retention: %w", err)
		}
	}
	if s.watcher != nil {
		go func() {
			if err := s.watcher.Watch(ctx); err != nil {
				s.logger.Error("catalog watcher failed", "error", err)
			}
		}()
	}
	return nil
}

// Shutdown stops the listener, drains in-flight requests within the
// configured window, and tears down every component. It is idempotent;
// the first call wins.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		hs := s.httpServer
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.cfg.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
		defer cancel()

		if hs != nil {
			if err := hs.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during listener shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		if s.watcher != nil {
			if err := s.watcher.Stop(); err != nil {
				s.logger.Warn("catalog watcher stop failed", "error", err)
			}
		}
		s.sweeper.Stop()
		if s.pruner != nil {
			s.pruner.Stop()
		}
		if err := s.recorder.Close(); err != nil {
			s.logger.Warn("audit recorder close failed", "error", err)
		}
		if err := s.ledger.Close(); err != nil {
			s.logger.Warn("usage ledger close failed", "error", err)
		}
		if err := s.tracer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("trace exporter shutdown failed", "error", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("gateway stopped")
	})

	return shutdownErr
}

// IsRunning reports whether Start is active.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the fully assembled HTTP handler. Useful for tests and
// for embedding the gateway in another server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Health runs the component checks and reports the first degradation.
func (s *Server) Health(ctx context.Context) error {
	status := s.checker.Check(ctx)
	if status.Status != health.StatusOK {
		for name, result := range status.Checks {
			if result.Status != health.StatusOK {
				return fmt.Errorf("%s: %s", name, result.Message)
			}
		}
		return fmt.Errorf("gateway degraded")
	}
	return nil
}
