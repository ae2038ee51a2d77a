package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tablewright/tablewright/internal/dialect"
	"github.com/tablewright/tablewright/internal/engine"
)

var (
	indexesFile  string
	indexesTable string
)

// indexFile is the YAML layout of an index change file.
type indexFile struct {
	Table string            `yaml:"table"`
	Ops   []dialect.IndexOp `yaml:"ops"`
}

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Add or drop indexes on a table",
	Long: `Apply the index changes listed in a YAML file. Changes the engine
cannot make in place, such as replacing a SQLite primary key, rebuild the
table.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		f, err := loadIndexFile(indexesFile)
		if err != nil {
			return err
		}
		if indexesTable != "" {
			f.Table = indexesTable
		}
		if f.Table == "" {
			return fmt.Errorf("no table named in %s; use --table", indexesFile)
		}
		ctx := context.Background()

		plan, err := engine.New(cfg, logger).PlanAlterIndexes(ctx, f.Table, f.Ops)
		if err != nil {
			return err
		}
		if plan.Empty() {
			printPlan(plan)
			return nil
		}
		return confirmAndRun(cfg, logger, plan, func(e *engine.Engine) (*engine.Result, error) {
			return e.AlterIndexes(ctx, f.Table, f.Ops)
		})
	},
}

func loadIndexFile(path string) (*indexFile, error) {
	if path == "" {
		return nil, fmt.Errorf("an index change file is required (-f)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading index file: %w", err)
	}
	f := &indexFile{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parsing index file: %w", err)
	}
	if len(f.Ops) == 0 {
		return nil, fmt.Errorf("%s lists no index changes", path)
	}
	return f, nil
}

func init() {
	indexesCmd.Flags().StringVarP(&indexesFile, "file", "f", "", "YAML file listing index changes")
	indexesCmd.Flags().StringVar(&indexesTable, "table", "", "table to change (overrides the file)")
	addRunFlags(indexesCmd)
	rootCmd.AddCommand(indexesCmd)
}
