// Package migration runs rendered DDL statements in order against one
// connection and reports how far it got.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tablewright/tablewright/internal/conn"
	"github.com/tablewright/tablewright/internal/drivers"
)

// Phases a run can end in.
const (
	PhaseRunning        = "running"
	PhaseCompleted      = "completed"
	PhaseFailed         = "failed"
	PhasePartialFailure = "partial_failure"
	PhaseRolledBack     = "rolled_back"
)

// Status represents the current execution state.
type Status struct {
	Phase string `yaml:"phase" json:"phase"`
	// Statement is the statement being run, or the last one run.
	Statement string   `yaml:"statement,omitempty" json:"statement,omitempty"`
	Executed  []string `yaml:"executed,omitempty" json:"executed,omitempty"`
	Failed    string   `yaml:"failed,omitempty" json:"failed,omitempty"`
	// Remaining lists the statements that did not take effect, starting
	// with the failed one.
	Remaining   []string      `yaml:"remaining,omitempty" json:"remaining,omitempty"`
	Overall     ProgressInfo  `yaml:"overall" json:"overall"`
	ElapsedTime time.Duration `yaml:"elapsed_time" json:"elapsed_time"`
	Errors      []string      `yaml:"errors,omitempty" json:"errors,omitempty"`
}

// ProgressInfo tracks overall progress.
type ProgressInfo struct {
	Done            int     `yaml:"done" json:"done"`
	Total           int     `yaml:"total" json:"total"`
	PercentComplete float64 `yaml:"percent_complete" json:"percent_complete"`
}

// StatusCallback is called after every statement and when the run ends.
type StatusCallback func(status *Status)

// ExecError is a statement the engine rejected. Err is the native driver
// error, unaltered.
type ExecError struct {
	Statement string
	Kind      drivers.ErrorKind
	Err       error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s: executing %q: %v", e.Kind, e.Statement, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// PartialAlterFailureError is returned when statements succeeded before a
// failure on a path without a transaction. The executed statements are
// not rolled back.
type PartialAlterFailureError struct {
	Executed  []string
	Remaining []string
	Cause     *ExecError
}

func (e *PartialAlterFailureError) Error() string {
	return fmt.Sprintf("partial alteration: %d statement(s) applied, %d remaining: %v",
		len(e.Executed), len(e.Remaining), e.Cause)
}

func (e *PartialAlterFailureError) Unwrap() error { return e.Cause }

// Check is a query run inside the transaction before it commits. Any row
// it returns is a violation and aborts the run.
type Check struct {
	Name  string
	Query string
}

// CheckFailedError reports the rows a Check found.
type CheckFailedError struct {
	Check Check
	Rows  int
}

func (e *CheckFailedError) Error() string {
	return fmt.Sprintf("%s found %d violating row(s)", e.Check.Name, e.Rows)
}

// Driver executes statements over one connection.
type Driver struct {
	conn   conn.Conn
	logger *slog.Logger
}

// NewDriver creates a driver. A nil logger discards output.
func NewDriver(c conn.Conn, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Driver{conn: c, logger: logger}
}

// Run executes statements in order and stops at the first failure. With
// no transaction around it, statements that ran stay applied; a failure
// after at least one success is a *PartialAlterFailureError.
func (d *Driver) Run(ctx context.Context, statements []string, callback StatusCallback) (*Status, error) {
	start := time.Now()
	status := newStatus(statements)
	d.notify(callback, status)

	for i, stmt := range statements {
		if err := ctx.Err(); err != nil {
			return d.fail(callback, status, start, statements, i, &ExecError{Statement: stmt, Kind: drivers.Unknown, Err: err}, false)
		}
		status.Statement = stmt
		d.logger.Debug("executing statement", "sql", stmt)
		if _, err := d.conn.Exec(ctx, stmt); err != nil {
			return d.fail(callback, status, start, statements, i, newExecError(stmt, err), false)
		}
		status.Executed = append(status.Executed, stmt)
		status.progress(i + 1)
		d.notify(callback, status)
	}

	status.Phase = PhaseCompleted
	status.ElapsedTime = time.Since(start)
	d.notify(callback, status)
	return status, nil
}

// RunTx executes statements inside one transaction. Any failure rolls
// everything back and the status ends rolled_back. The checks run after
// the last statement, before the commit.
func (d *Driver) RunTx(ctx context.Context, statements []string, callback StatusCallback, checks ...Check) (*Status, error) {
	start := time.Now()
	status := newStatus(statements)
	d.notify(callback, status)

	tx, err := d.conn.Begin(ctx)
	if err != nil {
		status.Phase = PhaseFailed
		status.Remaining = statements
		status.Errors = append(status.Errors, err.Error())
		d.notify(callback, status)
		return status, err
	}

	for i, stmt := range statements {
		if err := ctx.Err(); err != nil {
			d.rollback(tx)
			return d.fail(callback, status, start, statements, i, &ExecError{Statement: stmt, Kind: drivers.Unknown, Err: err}, true)
		}
		status.Statement = stmt
		d.logger.Debug("executing statement", "sql", stmt, "transaction", true)
		if _, err := tx.Exec(ctx, stmt); err != nil {
			d.rollback(tx)
			return d.fail(callback, status, start, statements, i, newExecError(stmt, err), true)
		}
		status.Executed = append(status.Executed, stmt)
		status.progress(i + 1)
		d.notify(callback, status)
	}

	for _, c := range checks {
		d.logger.Debug("running check", "check", c.Name, "sql", c.Query)
		rows, err := tx.Query(ctx, c.Query)
		if err == nil && len(rows) > 0 {
			err = &CheckFailedError{Check: c, Rows: len(rows)}
		}
		if err != nil {
			d.rollback(tx)
			execErr := newExecError(c.Query, err)
			if errors.As(err, new(*CheckFailedError)) {
				execErr.Kind = drivers.ConstraintViolation
			}
			return d.fail(callback, status, start, statements, 0, execErr, true)
		}
	}

	if err := tx.Commit(); err != nil {
		return d.fail(callback, status, start, statements, 0, newExecError("COMMIT", err), true)
	}
	status.Phase = PhaseCompleted
	status.ElapsedTime = time.Since(start)
	d.notify(callback, status)
	return status, nil
}

func (d *Driver) rollback(tx conn.Tx) {
	if err := tx.Rollback(); err != nil {
		d.logger.Error("rollback failed", "error", err)
	}
}

func (d *Driver) fail(callback StatusCallback, status *Status, start time.Time, statements []string, i int, execErr *ExecError, rolledBack bool) (*Status, error) {
	status.Failed = execErr.Statement
	status.Errors = append(status.Errors, execErr.Err.Error())
	status.ElapsedTime = time.Since(start)
	d.logger.Error("statement failed", "sql", execErr.Statement, "kind", execErr.Kind, "error", execErr.Err)

	if rolledBack {
		status.Phase = PhaseRolledBack
		status.Executed = nil
		status.Remaining = statements
		status.progress(0)
		d.notify(callback, status)
		return status, execErr
	}

	status.Remaining = statements[i:]
	if len(status.Executed) == 0 {
		status.Phase = PhaseFailed
		d.notify(callback, status)
		return status, execErr
	}
	status.Phase = PhasePartialFailure
	d.notify(callback, status)
	return status, &PartialAlterFailureError{Executed: status.Executed, Remaining: status.Remaining, Cause: execErr}
}

func newExecError(stmt string, err error) *ExecError {
	return &ExecError{Statement: stmt, Kind: drivers.Classify(err), Err: err}
}

func newStatus(statements []string) *Status {
	return &Status{Phase: PhaseRunning, Overall: ProgressInfo{Total: len(statements)}}
}

func (s *Status) progress(done int) {
	s.Overall.Done = done
	if s.Overall.Total > 0 {
		s.Overall.PercentComplete = float64(done) / float64(s.Overall.Total) * 100
	}
}

func (d *Driver) notify(callback StatusCallback, status *Status) {
	if callback != nil {
		callback(status)
	}
}

// Kind returns the classified kind of a failure from Run or RunTx, or ""
// when err carries no statement failure.
func Kind(err error) drivers.ErrorKind {
	var execErr *ExecError
	if errors.As(err, &execErr) {
		return execErr.Kind
	}
	return ""
}
