// Package cmd provides the CLI commands for agentgate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cognefi/agentgate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "agentgate",
	Short: "agentgate - multi-tenant AI agent access gateway",
	Long: `agentgate is a multi-tenant backend that grants scoped access to AI agents.

Every operation passes through an external policy decision point before it
touches data, and agent executions run behind a versioned configuration
gate with full session history.

Quick start:
  1. Create a config file: agentgate.yaml
  2. Run: agentgate serve --dev

Configuration:
  Config is loaded from agentgate.yaml in the current directory,
  $HOME/.agentgate/, or /etc/agentgate/.

  Environment variables can override config values with the AGENTGATE_ prefix.
  Example: AGENTGATE_SERVER_HTTP_ADDR=:9090

Commands:
  serve       Start the API server
  seed        Load demo tenants, users, and agents
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./agentgate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
