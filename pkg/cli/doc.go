/*
Package cli provides command-line helpers for the anthropic-api-server
command: typed exit errors, output formatting, and signal handling.

Output Formatting:

Commands that support machine-readable output use a Formatter:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, report); err != nil {
		return err
	}

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
	// Use ctx for operations that should be cancelled on shutdown
*/
package cli
