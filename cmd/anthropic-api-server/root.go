package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "anthropic-api-server",
	Short: "Local gateway for the Anthropic Messages API",
	Long: `Anthropic API Server is a local gateway that fronts the Anthropic
Messages API with a stable REST/SSE surface.

It provides:
  - Unary and streaming (SSE) message generation
  - Message batch lifecycle tracking with idempotent polling and cancel
  - A stable response envelope and error taxonomy
  - Token usage accounting and request audit trails

Clients talk to the gateway instead of the provider directly; the gateway
absorbs protocol changes, transient failures, and batch eventual
consistency.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults plus environment when omitted)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
