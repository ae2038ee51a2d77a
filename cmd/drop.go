package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tablewright/tablewright/internal/engine"
)

var dropDryRun bool

var dropCmd = &cobra.Command{
	Use:   "drop <table>",
	Short: "Drop a table",
	Long: `Show the DROP TABLE statement and any foreign keys that still reference
the table, ask for confirmation, then drop it. With --dry-run only the
plan is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		table := args[0]
		ctx := context.Background()

		plan, err := engine.New(cfg, logger).PlanDropTable(ctx, table)
		if err != nil {
			return err
		}
		if dropDryRun {
			printPlan(plan)
			return nil
		}
		return confirmAndRun(cfg, logger, plan, func(e *engine.Engine) (*engine.Result, error) {
			return e.DropTable(ctx, table)
		})
	},
}

func init() {
	dropCmd.Flags().BoolVar(&dropDryRun, "dry-run", false, "print the plan without dropping anything")
	addRunFlags(dropCmd)
	rootCmd.AddCommand(dropCmd)
}
