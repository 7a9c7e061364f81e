package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/litlmike/anthropic-api-server/pkg/cli"
	"github.com/litlmike/anthropic-api-server/pkg/config"
)

var validateFlags struct {
	format string
}

// validationReport is the machine-readable result of a config check.
type validationReport struct {
	Valid  bool              `json:"valid"`
	Config string            `json:"config,omitempty"`
	Errors []validationIssue `json:"errors,omitempty"`
}

type validationIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate gateway configuration",
	Long: `Check a gateway configuration without starting the server.

The full loading sequence is applied: the YAML file (when given), defaults,
and environment overrides. Every validation failure is reported with the
dotted path of the offending field.

Examples:
  # Validate the environment-only configuration
  anthropic-api-server validate

  # Validate a config file
  anthropic-api-server validate --config /etc/gateway/config.yaml

  # Machine-readable output for CI
  anthropic-api-server validate --config config.yaml --format json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	report := validationReport{Valid: true, Config: cfgFile}

	_, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		report.Valid = false
		var verr config.ValidationError
		if errors.As(err, &verr) {
			for _, fe := range verr.Errors {
				report.Errors = append(report.Errors, validationIssue{Field: fe.Field, Message: fe.Message})
			}
		} else {
			report.Errors = append(report.Errors, validationIssue{Message: err.Error()})
		}
	}

	if cli.OutputFormat(validateFlags.format) == cli.FormatJSON {
		formatter := cli.NewFormatter(cli.FormatJSON)
		if err := formatter.FormatTo(os.Stdout, report); err != nil {
			return cli.NewCommandError("validate", err)
		}
	} else {
		if report.Valid {
			fmt.Println("✓ Configuration valid")
		} else {
			fmt.Println("✗ Configuration invalid:")
			for _, issue := range report.Errors {
				if issue.Field != "" {
					fmt.Printf("  - %s: %s\n", issue.Field, issue.Message)
				} else {
					fmt.Printf("  - %s\n", issue.Message)
				}
			}
		}
	}

	if !report.Valid {
		return cli.NewConfigError("", "configuration validation failed")
	}
	return nil
}
