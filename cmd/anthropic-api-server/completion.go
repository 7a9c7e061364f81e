package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for anthropic-api-server.

To load completions:

Bash:
  $ source <(anthropic-api-server completion bash)
  # To load permanently:
  $ anthropic-api-server completion bash > /etc/bash_completion.d/anthropic-api-server

Zsh:
  $ anthropic-api-server completion zsh > "${fpath[1]}/_anthropic-api-server"
  $ compinit

Fish:
  $ anthropic-api-server completion fish | source
  # To load permanently:
  $ anthropic-api-server completion fish > ~/.config/fish/completions/anthropic-api-server.fish

PowerShell:
  PS> anthropic-api-server completion powershell | Out-String | Invoke-Expression
  # To load permanently, add to your PowerShell profile
`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return fmt.Errorf("unsupported shell: %s", args[0])
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
