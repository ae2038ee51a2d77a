package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tablewright/tablewright/internal/config"
	"github.com/tablewright/tablewright/internal/discovery"
	"github.com/tablewright/tablewright/internal/engine"
	"github.com/tablewright/tablewright/internal/schema"
)

var (
	discoverScript bool
	discoverOutput string
)

var discoverCmd = &cobra.Command{
	Use:   "discover <table>...",
	Short: "Describe existing tables",
	Long: `Connect to the database and write the current shape of each table
(columns, indexes, foreign keys, triggers and options) as YAML. The output
is a starting point for a desired-shape file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if discoverScript {
			return runDiscoverScript(args)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		eng := engine.New(cfg, logger)
		ctx := context.Background()

		out := &schema.Schema{Dialect: cfg.Connection.Dialect, Database: cfg.Connection.Database, SchemaName: cfg.Connection.Schema}
		for _, table := range args {
			t, err := eng.Describe(ctx, table)
			if err != nil {
				return fmt.Errorf("describing %s: %w", table, err)
			}
			out.Tables = append(out.Tables, *t)
		}
		fmt.Fprintln(os.Stderr, out.Summary())

		if discoverOutput == "" {
			data, err := out.ToYAML()
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		}
		if err := out.WriteYAML(discoverOutput); err != nil {
			return fmt.Errorf("writing schema: %w", err)
		}
		fmt.Printf("Schema written to %s\n", discoverOutput)
		return nil
	},
}

// runDiscoverScript prints the catalog queries for hosts tablewright
// cannot reach; the config only supplies the dialect and schema.
func runDiscoverScript(tables []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	r, err := discovery.New(cfg.Connection.Dialect, nil, cfg.Connection.Schema)
	if err != nil {
		return err
	}

	var script string
	for _, table := range tables {
		sg := &discovery.ScriptGenerator{Reader: r, Table: table}
		s, err := sg.GenerateScript()
		if err != nil {
			return err
		}
		script += s
	}

	if discoverOutput == "" {
		fmt.Print(script)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(discoverOutput), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(discoverOutput, []byte(script), 0o644); err != nil {
		return fmt.Errorf("writing script: %w", err)
	}
	fmt.Printf("Discovery script written to %s\n", discoverOutput)
	return nil
}

func init() {
	discoverCmd.Flags().BoolVar(&discoverScript, "script", false, "print the catalog queries instead of running them")
	discoverCmd.Flags().StringVarP(&discoverOutput, "output", "o", "", "output path (default: stdout)")
	rootCmd.AddCommand(discoverCmd)
}
