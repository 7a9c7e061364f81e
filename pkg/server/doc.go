// Package server assembles the gateway from configuration and runs it.
//
// This package is the composition root: it builds the upstream client,
// stream transcoder, batch manager, model catalog, audit and usage
// pipelines, and telemetry from one config.Config, mounts the HTTP
// surface, and owns the process lifecycle including graceful shutdown
// and OS signals (SIGTERM, SIGINT).
//
// # Basic Usage
//
//	cfg, err := config.LoadConfigWithEnvOverrides(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger, err := logging.New(logging.Config{
//	    Level:  cfg.Telemetry.Logging.Level,
//	    Format: cfg.Telemetry.Logging.Format,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv, err := server.New(cfg, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// Start blocks until the context is canceled, a shutdown signal
// arrives, or Shutdown is called from another goroutine.
//
// # Routes
//
// The gateway API is mounted under /api/v1 (see package gateway for the
// endpoint list). The server adds two operational endpoints:
//
//   - GET /health  - component health checks, JSON body
//   - GET /metrics - Prometheus exposition (when metrics are enabled)
//
// # Middleware Chain
//
// Requests pass through, outermost first: recovery, request id,
// logging, CORS, timeout. The timeout middleware is driven by
// server.write_timeout and stays disabled by default so streaming
// responses are not cut off.
//
// # Shutdown
//
// Shutdown stops the listener, waits up to server.shutdown_timeout for
// in-flight requests, then stops the batch sweeper, audit retention,
// and catalog watcher, flushes the audit recorder, and closes the
// usage ledger and trace exporter.
package server
