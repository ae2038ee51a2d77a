package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tablewright/tablewright/internal/engine"
	"github.com/tablewright/tablewright/internal/schema"
)

var (
	planFile        string
	planTable       string
	planFrom        string
	planDropIndexes []string
	planJSON        bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the statements that reshape a table",
	Long: `Read the desired shape from a YAML file, compare it with the live
table and print the statements an alter would run. Nothing is executed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		desired, err := loadDesired(planFile, planTable)
		if err != nil {
			return err
		}

		plan, err := engine.New(cfg, logger).Plan(context.Background(), desired, planOptions())
		if err != nil {
			return err
		}
		if planJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(plan)
		}
		printPlan(plan)
		return nil
	},
}

func planOptions() engine.PlanOptions {
	return engine.PlanOptions{From: planFrom, DropIndexes: planDropIndexes}
}

// loadDesired reads a schema file and returns the named table, or the
// only table when name is empty.
func loadDesired(path, name string) (*schema.Table, error) {
	if path == "" {
		return nil, fmt.Errorf("a desired-shape file is required (-f)")
	}
	s, err := schema.LoadYAML(path)
	if err != nil {
		return nil, err
	}
	if name != "" {
		t := s.Table(name)
		if t == nil {
			return nil, fmt.Errorf("table %s is not in %s", name, path)
		}
		return t, nil
	}
	if len(s.Tables) != 1 {
		return nil, fmt.Errorf("%s describes %d tables; choose one with --table", path, len(s.Tables))
	}
	return &s.Tables[0], nil
}

func printPlan(p *engine.Plan) {
	if p.Empty() {
		fmt.Printf("%s already matches the desired shape.\n", p.Table)
		return
	}
	fmt.Printf("Table %s (%s, %s):\n\n", p.Table, p.Dialect, p.Mode)
	for _, stmt := range p.Statements {
		fmt.Printf("  %s;\n", stmt)
	}
	for _, w := range p.Warnings {
		fmt.Printf("\n  warning: %s", w)
	}
	if len(p.Warnings) > 0 {
		fmt.Println()
	}
}

func addShapeFlags(c *cobra.Command, file, table, from *string, drops *[]string) {
	c.Flags().StringVarP(file, "file", "f", "", "YAML file with the desired table shape")
	c.Flags().StringVar(table, "table", "", "table to take from the file when it describes several")
	c.Flags().StringVar(from, "from", "", "existing table name when the desired shape renames it")
	c.Flags().StringSliceVar(drops, "drop-index", nil, "index to drop even though the desired shape omits it (PRIMARY for the primary key)")
}

func init() {
	addShapeFlags(planCmd, &planFile, &planTable, &planFrom, &planDropIndexes)
	planCmd.Flags().BoolVar(&planJSON, "json", false, "print the plan as JSON")
	rootCmd.AddCommand(planCmd)
}
