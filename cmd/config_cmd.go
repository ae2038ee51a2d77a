package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tablewright/tablewright/internal/config"
	"github.com/tablewright/tablewright/internal/dialect"
	"github.com/tablewright/tablewright/internal/drivers"
)

var (
	initDialect string
	initForce   bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Create, view and validate the tablewright configuration file.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.ExpandHome(config.DefaultPath)
		}
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists; use --force to overwrite", path)
		}
		canonical, err := dialect.Canonical(initDialect)
		if err != nil {
			return err
		}

		cfg := &config.Config{
			Version: config.CurrentVersion,
			Connection: config.ConnectionConfig{
				Dialect:  canonical,
				Host:     "localhost",
				Database: "app",
				Username: "app",
				Password: "${ENV:TABLEWRIGHT_PASSWORD}",
			},
			Alter: config.AlterConfig{VerifyRowCounts: true, Confirm: true},
		}
		if canonical == "sqlite" {
			cfg.Connection = config.ConnectionConfig{Dialect: canonical, Database: "app.db"}
		}
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Printf("Config written to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current config (secrets masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		c := cfg.Connection

		fmt.Println("Current configuration:")
		fmt.Println()
		fmt.Printf("  Connection:\n")
		fmt.Printf("    Dialect:        %s\n", c.Dialect)
		fmt.Printf("    Target:         %s\n", drivers.Describe(c))
		fmt.Printf("    Schema:         %s\n", c.Schema)
		fmt.Printf("    Username:       %s\n", c.Username)
		fmt.Printf("    Password:       %s\n", maskSecret(c.Password))
		if c.DSN != "" {
			fmt.Printf("    DSN:            %s\n", maskSecret(c.DSN))
		}
		fmt.Println()
		fmt.Printf("  Alter:\n")
		fmt.Printf("    Verify:         %t\n", cfg.Alter.VerifyRowCounts)
		fmt.Printf("    Confirm:        %t\n", cfg.Alter.Confirm)
		fmt.Printf("    Shadow infix:   %s\n", cfg.Alter.ShadowInfix)
		if len(cfg.Alter.TypeAliases) > 0 {
			keys := make([]string, 0, len(cfg.Alter.TypeAliases))
			for k := range cfg.Alter.TypeAliases {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("    Alias:          %s -> %s\n", k, cfg.Alter.TypeAliases[k])
			}
		}
		fmt.Println()
		fmt.Printf("  Server port:      %d\n", cfg.Server.Port)
		fmt.Printf("  Log level:        %s\n", cfg.Logging.Level)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}

		problems := validateConnection(cfg.Connection)
		if len(problems) > 0 {
			fmt.Println("Validation errors:")
			for _, p := range problems {
				fmt.Printf("  - %s\n", p)
			}
			return fmt.Errorf("%d validation error(s)", len(problems))
		}

		fmt.Println("Configuration is valid.")
		return nil
	},
}

func validateConnection(c config.ConnectionConfig) []string {
	var problems []string
	if _, err := dialect.Canonical(c.Dialect); err != nil {
		problems = append(problems, "connection.dialect: "+err.Error())
	}
	if c.DSN != "" {
		return problems
	}
	if c.Database == "" {
		problems = append(problems, "connection.database is required")
	}
	if strings.EqualFold(c.Dialect, "sqlite") {
		return problems
	}
	if c.Host == "" {
		problems = append(problems, "connection.host is required")
	}
	if c.Username == "" {
		problems = append(problems, "connection.username is required")
	}
	return problems
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

func init() {
	configInitCmd.Flags().StringVar(&initDialect, "dialect", "mysql", "dialect of the database (mysql, postgresql, sqlite, mssql, oracle)")
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
