// Package engine is the alteration facade shared by the CLI and the HTTP
// API. A Session binds one connection and one dialect; the Engine opens
// sessions from configuration and serialises alterations.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tablewright/tablewright/internal/config"
	"github.com/tablewright/tablewright/internal/conn"
	"github.com/tablewright/tablewright/internal/dialect"
	"github.com/tablewright/tablewright/internal/drivers"
	"github.com/tablewright/tablewright/internal/migration"
	"github.com/tablewright/tablewright/internal/rebuild"
	"github.com/tablewright/tablewright/internal/report"
	"github.com/tablewright/tablewright/internal/schema"
	"github.com/tablewright/tablewright/internal/typemap"
	"github.com/tablewright/tablewright/internal/validation"
)

// ErrBusy is returned when an alteration is already running.
var ErrBusy = errors.New("an alteration is already running")

// Opener opens the connection a session runs on.
type Opener func(ctx context.Context, cfg config.ConnectionConfig) (conn.Conn, error)

// Engine opens sessions from configuration. Alterations run one at a
// time per engine.
type Engine struct {
	Config *config.Config
	Logger *slog.Logger

	open    Opener
	monitor *migration.Monitor

	mu         sync.Mutex // held for the duration of an alteration
	stateMu    sync.Mutex
	lastReport *report.AlterationReport
}

// New creates a new Engine with the given config and logger. Callbacks
// receive every status update of every run.
func New(cfg *config.Config, logger *slog.Logger, callbacks ...migration.StatusCallback) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		Config: cfg,
		Logger: logger,
		open: func(ctx context.Context, cfg config.ConnectionConfig) (conn.Conn, error) {
			return drivers.Open(ctx, cfg)
		},
		monitor: migration.NewMonitor(logger, callbacks...),
	}
}

// WithOpener replaces how connections are opened.
func (e *Engine) WithOpener(open Opener) *Engine {
	e.open = open
	return e
}

// Open connects and returns a session configured from the alter
// settings. The caller closes the session's connection.
func (e *Engine) Open(ctx context.Context) (*Session, error) {
	if e.Config == nil {
		return nil, fmt.Errorf("no configuration loaded")
	}
	d, err := dialect.New(e.Config.Connection.Dialect)
	if err != nil {
		return nil, err
	}
	if aliases := e.Config.Alter.TypeAliases; len(aliases) > 0 {
		if u, ok := d.(interface{ UseCatalog(*typemap.Catalog) }); ok {
			u.UseCatalog(d.Catalog().WithAliases(aliases))
		}
	}

	c, err := e.open(ctx, e.Config.Connection)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", drivers.Describe(e.Config.Connection), err)
	}
	s, err := NewSession(c, d, e.Config.Connection.Schema, e.Logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	s.ShadowInfix = e.Config.Alter.ShadowInfix
	if s.ShadowInfix == "" {
		s.ShadowInfix = rebuild.DefaultShadowInfix
	}
	s.Verify = e.Config.Alter.VerifyRowCounts
	s.Callback = e.monitor.Callback()
	return s, nil
}

// withSession opens a session, runs fn and closes the connection.
func (e *Engine) withSession(ctx context.Context, fn func(*Session) error) error {
	s, err := e.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Conn.Close()
	return fn(s)
}

// Describe reads the current shape of a table.
func (e *Engine) Describe(ctx context.Context, table string) (*schema.Table, error) {
	var t *schema.Table
	err := e.withSession(ctx, func(s *Session) error {
		var err error
		t, err = s.Describe(ctx, table)
		return err
	})
	return t, err
}

// Plan renders the statements that reshape a table into desired.
func (e *Engine) Plan(ctx context.Context, desired *schema.Table, opts PlanOptions) (*Plan, error) {
	var p *Plan
	err := e.withSession(ctx, func(s *Session) error {
		var err error
		p, err = s.Plan(ctx, desired, opts)
		return err
	})
	return p, err
}

// PlanAlterTable renders an explicit alteration without running it.
func (e *Engine) PlanAlterTable(ctx context.Context, req AlterTableRequest) (*Plan, error) {
	var p *Plan
	err := e.withSession(ctx, func(s *Session) error {
		var err error
		p, err = s.PlanAlterTable(ctx, req)
		return err
	})
	return p, err
}

// PlanAlterIndexes renders index changes without running them.
func (e *Engine) PlanAlterIndexes(ctx context.Context, table string, ops []dialect.IndexOp) (*Plan, error) {
	var p *Plan
	err := e.withSession(ctx, func(s *Session) error {
		var err error
		p, err = s.PlanAlterIndexes(ctx, table, ops)
		return err
	})
	return p, err
}

// Apply plans and runs an alteration and records its report.
func (e *Engine) Apply(ctx context.Context, desired *schema.Table, opts PlanOptions) (*Result, error) {
	return e.run(ctx, desired.Name, func(s *Session) (*Result, error) {
		return s.Apply(ctx, desired, opts)
	})
}

// AlterTable runs an explicit alteration and records its report.
func (e *Engine) AlterTable(ctx context.Context, req AlterTableRequest) (*Result, error) {
	return e.run(ctx, req.Table, func(s *Session) (*Result, error) {
		return s.AlterTable(ctx, req)
	})
}

// AlterIndexes runs index changes and records their report.
func (e *Engine) AlterIndexes(ctx context.Context, table string, ops []dialect.IndexOp) (*Result, error) {
	return e.run(ctx, table, func(s *Session) (*Result, error) {
		return s.AlterIndexes(ctx, table, ops)
	})
}

// PlanDropTable renders a table removal without running it.
func (e *Engine) PlanDropTable(ctx context.Context, table string) (*Plan, error) {
	var p *Plan
	err := e.withSession(ctx, func(s *Session) error {
		var err error
		p, err = s.PlanDropTable(ctx, table)
		return err
	})
	return p, err
}

// DropTable removes a table and records the report.
func (e *Engine) DropTable(ctx context.Context, table string) (*Result, error) {
	return e.run(ctx, table, func(s *Session) (*Result, error) {
		return s.DropTable(ctx, table)
	})
}

// VerifyRowCount checks a table's row count against an expected figure.
func (e *Engine) VerifyRowCount(ctx context.Context, table string, expected int64) (*validation.Result, error) {
	var r *validation.Result
	err := e.withSession(ctx, func(s *Session) error {
		v := &validation.Validator{Source: s.Source}
		var err error
		r, err = v.ExpectRowCount(ctx, table, expected)
		return err
	})
	return r, err
}

func (e *Engine) run(ctx context.Context, table string, fn func(*Session) (*Result, error)) (*Result, error) {
	if !e.mu.TryLock() {
		return nil, ErrBusy
	}
	defer e.mu.Unlock()

	var result *Result
	err := e.withSession(ctx, func(s *Session) error {
		var err error
		result, err = fn(s)
		return err
	})
	e.record(table, result, err)
	return result, err
}

func (e *Engine) record(table string, result *Result, runErr error) {
	if result == nil || result.Plan == nil {
		return
	}
	p := result.Plan
	r := report.GenerateReport(p.Dialect, table, p.Mode, p.Statements, result.Status, runErr, result.Validation, p.Warnings)
	e.stateMu.Lock()
	e.lastReport = r
	e.stateMu.Unlock()
}

// Status returns the latest execution status, or nil before any run.
func (e *Engine) Status() *migration.Status {
	return e.monitor.Last()
}

// LastReport returns the report of the latest alteration, or nil.
func (e *Engine) LastReport() *report.AlterationReport {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.lastReport
}

// Busy reports whether an alteration is running.
func (e *Engine) Busy() bool {
	if e.mu.TryLock() {
		e.mu.Unlock()
		return false
	}
	return true
}
