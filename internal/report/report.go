// Package report writes what an alteration did: the statements, how far
// execution got, the verification figures and what to do next.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tablewright/tablewright/internal/migration"
	"github.com/tablewright/tablewright/internal/validation"
)

// AlterationReport is the report of one alteration.
type AlterationReport struct {
	Version     string             `json:"version"`
	GeneratedAt time.Time          `json:"generated_at"`
	Dialect     string             `json:"dialect"`
	Table       string             `json:"table"`
	Mode        string             `json:"mode"` // direct, rebuild, create
	Execution   ExecutionSummary   `json:"execution"`
	Validation  *validation.Result `json:"validation,omitempty"`
	Warnings    []string           `json:"warnings,omitempty"`
	NextSteps   []string           `json:"next_steps"`
}

// ExecutionSummary describes how far the statements got.
type ExecutionSummary struct {
	Phase      string   `json:"phase"`
	Statements []string `json:"statements"`
	Executed   []string `json:"executed,omitempty"`
	Failed     string   `json:"failed,omitempty"`
	Remaining  []string `json:"remaining,omitempty"`
	ErrorKind  string   `json:"error_kind,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// GenerateReport creates an AlterationReport. status and runErr come from
// the run; either may be nil.
func GenerateReport(
	dialectName, table, mode string,
	statements []string,
	status *migration.Status,
	runErr error,
	validationResult *validation.Result,
	warnings []string,
) *AlterationReport {
	exec := ExecutionSummary{Phase: migration.PhaseCompleted, Statements: statements}
	if status != nil {
		exec.Phase = status.Phase
		exec.Executed = status.Executed
		exec.Failed = status.Failed
		exec.Remaining = status.Remaining
	}
	if runErr != nil {
		exec.Error = runErr.Error()
		exec.ErrorKind = string(migration.Kind(runErr))
		if exec.Phase == migration.PhaseCompleted || exec.Phase == migration.PhaseRunning {
			exec.Phase = migration.PhaseFailed
		}
	}

	return &AlterationReport{
		Version:     "1",
		GeneratedAt: time.Now(),
		Dialect:     dialectName,
		Table:       table,
		Mode:        mode,
		Execution:   exec,
		Validation:  validationResult,
		Warnings:    warnings,
		NextSteps:   nextSteps(exec, validationResult),
	}
}

func nextSteps(exec ExecutionSummary, v *validation.Result) []string {
	var steps []string
	switch exec.Phase {
	case migration.PhasePartialFailure:
		steps = append(steps,
			fmt.Sprintf("%d statement(s) were applied and are not rolled back", len(exec.Executed)),
			fmt.Sprintf("Resolve the %s error on: %s", exec.ErrorKind, exec.Failed),
			"Re-run plan against the live table; only the remaining changes will be emitted")
	case migration.PhaseRolledBack:
		steps = append(steps,
			"The table was left unchanged",
			fmt.Sprintf("Resolve the %s error on: %s and re-run", exec.ErrorKind, exec.Failed))
	case migration.PhaseFailed:
		steps = append(steps, "Nothing was applied; resolve the error and re-run")
	default:
		if len(exec.Statements) == 0 {
			steps = append(steps, "The table already matches the desired shape")
		}
	}
	if v != nil && v.Status != "PASS" {
		steps = append(steps, "Verification failed: compare row counts and sums before relying on the table")
	}
	if len(steps) == 0 {
		steps = append(steps, "No further action required")
	}
	return steps
}

// Succeeded reports whether every statement ran and verification, when
// run, passed.
func (r *AlterationReport) Succeeded() bool {
	if r.Execution.Phase != migration.PhaseCompleted {
		return false
	}
	return r.Validation == nil || r.Validation.Status == "PASS"
}

// WriteJSON writes the report as JSON.
func WriteJSON(report *AlterationReport, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadJSON reads a report from a JSON file.
func ReadJSON(path string) (*AlterationReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	r := &AlterationReport{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	if r.Version == "" {
		return nil, errors.New("parsing report: missing version")
	}
	return r, nil
}

// WriteText writes the report as human-readable text.
func WriteText(report *AlterationReport, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	return os.WriteFile(path, []byte(FormatText(report)), 0o644)
}

// FormatText renders the report as human-readable text.
func FormatText(report *AlterationReport) string {
	var b strings.Builder

	b.WriteString("=== Tablewright Alteration Report ===\n")
	b.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.Format(time.RFC3339)))

	b.WriteString(fmt.Sprintf("Dialect: %s\n", report.Dialect))
	b.WriteString(fmt.Sprintf("Table:   %s\n", report.Table))
	b.WriteString(fmt.Sprintf("Mode:    %s\n\n", report.Mode))

	b.WriteString("Execution:\n")
	b.WriteString(fmt.Sprintf("  Phase:    %s\n", report.Execution.Phase))
	b.WriteString(fmt.Sprintf("  Executed: %d/%d\n", len(report.Execution.Executed), len(report.Execution.Statements)))
	if report.Execution.Failed != "" {
		b.WriteString(fmt.Sprintf("  Failed:   %s\n", report.Execution.Failed))
	}
	if report.Execution.Error != "" {
		b.WriteString(fmt.Sprintf("  Error:    [%s] %s\n", report.Execution.ErrorKind, report.Execution.Error))
	}
	for _, s := range report.Execution.Remaining {
		b.WriteString(fmt.Sprintf("  remaining: %s\n", s))
	}
	b.WriteString("\n")

	if report.Validation != nil {
		b.WriteString(fmt.Sprintf("Validation: %s\n", report.Validation.Status))
		for _, t := range report.Validation.Tables {
			b.WriteString(fmt.Sprintf("  %s: %s\n", t.Name, t.Status))
			if t.RowCountCheck != nil && t.RowCountCheck.Message != "" {
				b.WriteString(fmt.Sprintf("    %s\n", t.RowCountCheck.Message))
			}
		}
		b.WriteString("\n")
	}

	if len(report.Warnings) > 0 {
		b.WriteString("Warnings:\n")
		for _, w := range report.Warnings {
			b.WriteString(fmt.Sprintf("  - %s\n", w))
		}
		b.WriteString("\n")
	}

	b.WriteString("Next Steps:\n")
	for i, s := range report.NextSteps {
		b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, s))
	}

	return b.String()
}
