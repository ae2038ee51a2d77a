package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tablewright/tablewright/internal/engine"
)

var verifyExpect int64

var verifyCmd = &cobra.Command{
	Use:   "verify <table>",
	Short: "Check a table's row count",
	Long:  `Count the rows of a table and compare them with an expected figure, such as the count recorded before an alteration.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		result, err := engine.New(cfg, logger).VerifyRowCount(context.Background(), args[0], verifyExpect)
		if err != nil {
			return err
		}
		for _, t := range result.Tables {
			fmt.Printf("%s: %s", t.Name, t.Status)
			if rc := t.RowCountCheck; rc != nil {
				fmt.Printf(" (%d rows", rc.AfterCount)
				if rc.Message != "" {
					fmt.Printf("; %s", rc.Message)
				}
				fmt.Print(")")
			}
			fmt.Println()
		}
		if result.Status != "PASS" {
			return fmt.Errorf("verification failed")
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().Int64Var(&verifyExpect, "expect", 0, "expected row count")
	verifyCmd.MarkFlagRequired("expect")
	rootCmd.AddCommand(verifyCmd)
}
