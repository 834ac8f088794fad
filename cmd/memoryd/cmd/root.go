// Package cmd provides the CLI commands for memoryd.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cerplabs/memoryd/internal/config"
	"github.com/cerplabs/memoryd/pkg/version"
)

var (
	cfgPath  string
	logLevel string
)

// NewRootCmd creates the root command for the memoryd CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memoryd",
		Short: "Persistent memory store and task queue for coding assistants",
		Long: `memoryd stores and retrieves memories across coding sessions, over hybrid
vector+keyword search, and runs a small scheduled task queue alongside it.

Run 'memoryd serve' to start the MCP server over stdio. Use 'memoryd doctor'
and 'memoryd status' for diagnostics.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("memoryd version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to a memoryd config YAML file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	cmd.PersistentPreRunE = setupLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func setupLogging(_ *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if cfg, err := config.Load(cfgPath); err == nil && cfg.Server.LogLevel != "" {
		_ = level.UnmarshalText([]byte(cfg.Server.LogLevel))
	}
	if logLevel != "" {
		_ = level.UnmarshalText([]byte(logLevel))
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return nil
}
