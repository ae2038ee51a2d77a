package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tablewright/tablewright/internal/config"
	"github.com/tablewright/tablewright/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	version  = "dev"
	commit   = "none"
	date     = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "tablewright",
	Short: "Tablewright: cross-dialect table alteration",
	Long: `Tablewright reshapes existing tables on MySQL, PostgreSQL, SQLite,
SQL Server and Oracle. Describe the table you want; tablewright reads the
table you have, plans the smallest set of statements between them, and
rebuilds the table through a shadow copy when the engine cannot alter it
in place.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.tablewright/tablewright.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// newLogger returns the file-backed logger for cfg, echoing to stderr.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.Setup(cfg.Logging, os.Stderr)
}
