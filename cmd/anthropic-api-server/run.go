package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/litlmike/anthropic-api-server/pkg/cli"
	"github.com/litlmike/anthropic-api-server/pkg/config"
	"github.com/litlmike/anthropic-api-server/pkg/server"
	"github.com/litlmike/anthropic-api-server/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway server",
	Long: `Start the gateway server with the specified configuration.

The server listens on the configured address and forwards message, stream,
and batch requests to the Anthropic API, normalizing every outcome into
the gateway's response envelope.

Examples:
  # Start with defaults (reads ANTHROPIC_API_KEY)
  anthropic-api-server run

  # Start with a config file
  anthropic-api-server run --config /etc/gateway/config.yaml

  # Override the listen address
  anthropic-api-server run --listen 0.0.0.0:8080

  # Validate config without starting the server
  anthropic-api-server run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Anthropic API Server v%s\n", Version)
	if cfgFile != "" {
		fmt.Printf("Loading configuration from: %s\n", cfgFile)
	}
	fmt.Println("✓ Configuration loaded")

	srv, err := server.New(cfg, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/health\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.IsEnabled() {
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Server.ListenAddress)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Start blocks until a shutdown signal, context cancellation, or a
	// listener failure; the signal context covers cancellation raised
	// before the server's own signal handler is installed.
	ctx := cli.SetupSignalHandler()
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Println("✓ Server stopped")
	return nil
}
