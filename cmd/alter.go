package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tablewright/tablewright/internal/config"
	"github.com/tablewright/tablewright/internal/engine"
	"github.com/tablewright/tablewright/internal/lock"
	"github.com/tablewright/tablewright/internal/migration"
	"github.com/tablewright/tablewright/internal/report"
	"github.com/tablewright/tablewright/internal/wizard"
)

var (
	alterYes    bool
	alterVerify bool
	alterReport string
)

var alterCmd = &cobra.Command{
	Use:   "alter",
	Short: "Reshape a table to the desired shape",
	Long: `Plan the alteration like the plan command, ask for confirmation,
then run it. Alterations the engine cannot do in place rebuild the table
through a shadow copy; with --verify the copy is checked against the
original before the swap is trusted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("verify") {
			cfg.Alter.VerifyRowCounts = alterVerify
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		desired, err := loadDesired(planFile, planTable)
		if err != nil {
			return err
		}
		ctx := context.Background()

		plan, err := engine.New(cfg, logger).Plan(ctx, desired, planOptions())
		if err != nil {
			return err
		}
		if plan.Empty() {
			printPlan(plan)
			return nil
		}

		return confirmAndRun(cfg, logger, plan, func(e *engine.Engine) (*engine.Result, error) {
			return e.Apply(ctx, desired, planOptions())
		})
	},
}

// confirmAndRun shows plan, asks for confirmation unless --yes, then runs
// the alteration under the table's lock and writes its report.
func confirmAndRun(cfg *config.Config, logger *slog.Logger, plan *engine.Plan, run func(*engine.Engine) (*engine.Result, error)) error {
	interactive := cfg.Alter.Confirm && !alterYes
	if interactive {
		ok, err := wizard.Confirm(plan)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Cancelled; nothing was changed.")
			return nil
		}
	} else {
		printPlan(plan)
	}

	l, err := lock.Acquire("", lock.Target(cfg.Connection, plan.Table))
	if err != nil {
		return err
	}
	defer l.Release()

	var (
		result *engine.Result
		e      *engine.Engine
	)
	if interactive {
		progress := wizard.NewProgressModel(func() (*engine.Result, error) {
			return run(e)
		})
		e = engine.New(cfg, logger, progress.Callback())
		result, err = wizard.RunWithProgress(progress)
	} else {
		e = engine.New(cfg, logger, logStatus(logger))
		result, err = run(e)
	}
	return finishRun(e, result, err)
}

// logStatus logs each finished statement.
func logStatus(logger *slog.Logger) migration.StatusCallback {
	return func(s *migration.Status) {
		if s.Phase == migration.PhaseRunning && s.Statement != "" {
			logger.Info("statement", "done", s.Overall.Done, "total", s.Overall.Total)
		}
	}
}

func finishRun(e *engine.Engine, result *engine.Result, runErr error) error {
	rpt := e.LastReport()
	if rpt != nil {
		fmt.Print(report.FormatText(rpt))
		if alterReport != "" {
			if err := report.WriteJSON(rpt, alterReport); err != nil {
				return errors.Join(runErr, fmt.Errorf("writing report: %w", err))
			}
			fmt.Printf("Report written to %s\n", alterReport)
		}
	}
	if runErr != nil {
		return runErr
	}
	if result != nil && result.Validation != nil && result.Validation.Status == "FAIL" {
		return fmt.Errorf("verification failed for %s", result.Plan.Final)
	}
	return nil
}

func addRunFlags(c *cobra.Command) {
	c.Flags().BoolVarP(&alterYes, "yes", "y", false, "skip the confirmation prompt")
	c.Flags().StringVar(&alterReport, "report", "", "write the alteration report as JSON to this path")
}

func init() {
	addShapeFlags(alterCmd, &planFile, &planTable, &planFrom, &planDropIndexes)
	addRunFlags(alterCmd)
	alterCmd.Flags().BoolVar(&alterVerify, "verify", false, "verify row counts and sums after a rebuild (overrides the config file)")
	rootCmd.AddCommand(alterCmd)
}
