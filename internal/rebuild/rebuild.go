// Package rebuild reshapes a table that cannot be altered in place: it
// creates a shadow table in the final shape, copies the rows across,
// swaps it in and restores indexes, triggers and the auto-increment
// counter, all inside one transaction.
package rebuild

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/tablewright/tablewright/internal/conn"
	"github.com/tablewright/tablewright/internal/dialect"
	"github.com/tablewright/tablewright/internal/diff"
	"github.com/tablewright/tablewright/internal/discovery"
	"github.com/tablewright/tablewright/internal/indexes"
	"github.com/tablewright/tablewright/internal/migration"
	"github.com/tablewright/tablewright/internal/schema"
)

// DefaultShadowInfix separates the table name from the random suffix of
// the shadow table.
const DefaultShadowInfix = "_tw_"

// Request describes one rebuild.
type Request struct {
	// Current is the table as described from the catalog.
	Current *schema.Table
	// Fields is the final column list in order. A kept column names its
	// current column in Original; a field without Original is new. Nil
	// keeps every current column unchanged.
	Fields      []schema.Field
	NewName     string
	Indexes     []dialect.IndexOp
	ForeignKeys []dialect.ForeignKeyOp
	// Checks replaces the CHECK constraints of the table. Nil carries the
	// current ones.
	Checks []schema.Check
	// AutoIncrement is the next value to generate; nil restores the
	// current counter.
	AutoIncrement *int64
	// Inbound lists foreign keys of other tables pointing at this one.
	Inbound     []discovery.InboundReference
	ShadowInfix string
}

// Script is the ordered statement list of a rebuild.
type Script struct {
	Table      string       `json:"table" yaml:"table"`
	Shadow     string       `json:"shadow" yaml:"shadow"`
	Final      string       `json:"final" yaml:"final"`
	Target     schema.Table `json:"target" yaml:"target"`
	Copied     []string     `json:"copied,omitempty" yaml:"copied,omitempty"`
	Statements []string     `json:"statements" yaml:"statements"`
	Warnings   []string     `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	// ForeignKeyChecks verify the rebuilt table and the tables referencing
	// it before the commit, on engines whose foreign keys are switched
	// off around the rebuild.
	ForeignKeyChecks []string `json:"foreign_key_checks,omitempty" yaml:"foreign_key_checks,omitempty"`
}

// RebuildAbortedError is returned when any step fails. The transaction
// was rolled back, so the original table is untouched.
type RebuildAbortedError struct {
	Table     string
	Statement string
	Err       error
}

func (e *RebuildAbortedError) Error() string {
	return fmt.Sprintf("rebuild of %s aborted at %q: %v", e.Table, e.Statement, e.Err)
}

func (e *RebuildAbortedError) Unwrap() error { return e.Err }

type sequencer interface {
	SequenceStatements(table string, next int64) []string
}

// foreignKeyChecker is implemented by dialects whose DROP TABLE acts on
// referencing rows unless enforcement is switched off first.
type foreignKeyChecker interface {
	ForeignKeyCheck(table string) string
}

// Build renders the rebuild script.
func Build(d dialect.Dialect, req Request) (*Script, error) {
	if req.Current == nil || len(req.Current.Fields) == 0 {
		return nil, fmt.Errorf("rebuild needs the current table shape")
	}
	cur := req.Current
	final := cur.Name
	if req.NewName != "" {
		final = req.NewName
	}
	infix := req.ShadowInfix
	if infix == "" {
		infix = DefaultShadowInfix
	}
	shadow := final
	if final == cur.Name {
		shadow = cur.Name + infix + uuid.NewString()[:8]
	}

	fields, err := finalFields(cur, req.Fields)
	if err != nil {
		return nil, err
	}
	renames := make(map[string]string)
	kept := make(map[string]bool)
	for _, f := range fields {
		if f.Original == "" {
			continue
		}
		kept[f.Original] = true
		if f.Original != f.Name {
			renames[f.Original] = f.Name
		}
	}

	target := schema.Table{
		Name:      final,
		Engine:    cur.Engine,
		Collation: cur.Collation,
		Comment:   cur.Comment,
		Fields:    make([]schema.Field, len(fields)),
	}
	for i, f := range fields {
		f.Original = ""
		target.Fields[i] = f
	}
	reshape := indexes.Reshape{Renames: renames, Kept: kept, Dropped: make(map[string]bool), Quote: d.Quote}
	for _, f := range cur.Fields {
		if !kept[f.Name] {
			reshape.Dropped[f.Name] = true
		}
	}
	script := &Script{Table: cur.Name, Shadow: shadow, Final: final}

	carried := dropIndexes(cur.Indexes, req.Indexes)
	target.Indexes = indexes.Carry(carried, reshape)
	if n := len(carried) - len(target.Indexes); n > 0 {
		script.Warnings = append(script.Warnings, fmt.Sprintf("%d index(es) of %s refer to dropped columns and are not recreated", n, cur.Name))
	}
	target.Indexes = append(target.Indexes, addedIndexes(req.Indexes)...)
	target.ForeignKeys = append(indexes.CarryForeignKeys(dropForeignKeys(cur.ForeignKeys, req.ForeignKeys), reshape), addedForeignKeys(req.ForeignKeys)...)
	if req.Checks != nil {
		target.Checks = req.Checks
	} else {
		var lost []schema.Check
		target.Checks, lost = indexes.CarryChecks(cur.Checks, reshape)
		for _, ck := range lost {
			script.Warnings = append(script.Warnings, fmt.Sprintf("check %s refers to a dropped column and is not recreated", checkLabel(ck)))
		}
	}
	for i, fk := range target.ForeignKeys {
		// Self references follow the table and its renamed columns.
		if fk.RefTable == cur.Name && fk.RefSchema == "" {
			target.ForeignKeys[i].RefTable = final
			target.ForeignKeys[i].RefColumns = renamed(fk.RefColumns, renames)
		}
	}

	shadowTable := target
	shadowTable.Name = shadow
	shadowTable.Indexes = nil
	var secondary []dialect.IndexOp
	for _, ix := range target.Indexes {
		if ix.Kind == schema.IndexPrimary {
			shadowTable.Indexes = append(shadowTable.Indexes, ix)
		} else {
			secondary = append(secondary, dialect.IndexOp{Kind: dialect.OpAdd, Index: ix})
		}
	}
	create, err := d.CreateTable(shadowTable)
	if err != nil {
		return nil, fmt.Errorf("rendering shadow table: %w", err)
	}
	script.Statements = append(script.Statements, create...)

	var to, from []string
	for _, f := range fields {
		if f.Original != "" {
			to = append(to, d.Quote(f.Name))
			from = append(from, d.Quote(f.Original))
			script.Copied = append(script.Copied, f.Name)
		}
	}
	if len(to) > 0 {
		script.Statements = append(script.Statements, fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
			d.Quote(shadow), strings.Join(to, ", "), strings.Join(from, ", "), d.Quote(cur.Name)))
	}

	script.Statements = append(script.Statements, "DROP TABLE "+d.Quote(cur.Name))
	if shadow != final {
		script.Statements = append(script.Statements, d.RenameTable(shadow, final))
	}

	if len(secondary) > 0 {
		stmts, err := d.AlterIndexes(final, secondary)
		if err != nil {
			return nil, fmt.Errorf("rendering indexes: %w", err)
		}
		script.Statements = append(script.Statements, stmts...)
	}

	for _, tr := range cur.Triggers {
		stmt, err := discovery.RetargetTrigger(tr.Statement, final, d.Quote)
		if err != nil {
			return nil, fmt.Errorf("trigger %s: %w", tr.Name, err)
		}
		target.Triggers = append(target.Triggers, schema.Trigger{Name: tr.Name, Timing: tr.Timing, Event: tr.Event, Statement: stmt})
		script.Statements = append(script.Statements, stmt)
	}

	next := req.AutoIncrement
	if next == nil {
		next = cur.AutoIncrement
	}
	if seq, ok := d.(sequencer); ok && next != nil && hasAutoIncrement(target.Fields) {
		target.AutoIncrement = next
		script.Statements = append(script.Statements, seq.SequenceStatements(final, *next)...)
	}

	if fc, ok := d.(foreignKeyChecker); ok {
		seen := map[string]bool{final: true}
		script.ForeignKeyChecks = append(script.ForeignKeyChecks, fc.ForeignKeyCheck(final))
		for _, ref := range req.Inbound {
			if !seen[ref.Table] && ref.Table != cur.Name {
				seen[ref.Table] = true
				script.ForeignKeyChecks = append(script.ForeignKeyChecks, fc.ForeignKeyCheck(ref.Table))
			}
		}
	}

	for _, ref := range req.Inbound {
		if ref.Table == cur.Name {
			continue
		}
		w := fmt.Sprintf("%s(%s) references %s(%s); the reference is not re-validated",
			ref.Table, strings.Join(ref.Columns, ", "), cur.Name, strings.Join(ref.RefColumns, ", "))
		if final != cur.Name {
			w += " and keeps pointing at the old name"
		}
		script.Warnings = append(script.Warnings, w)
	}

	script.Target = target
	return script, nil
}

// finalFields validates fields against the current columns, or derives
// them from the current columns when nil.
func finalFields(cur *schema.Table, fields []schema.Field) ([]schema.Field, error) {
	if fields == nil {
		out := make([]schema.Field, len(cur.Fields))
		for i, f := range cur.Fields {
			f.Original = f.Name
			out[i] = f
		}
		return out, nil
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("rebuild of %s leaves no columns", cur.Name)
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			return nil, fmt.Errorf("%w: %s", diff.ErrDuplicateField, f.Name)
		}
		seen[f.Name] = true
		if f.Original != "" && cur.Field(f.Original) == nil {
			return nil, &diff.UnknownColumnError{Field: f.Name, Original: f.Original}
		}
	}
	return fields, nil
}

// ApplyOps folds field ops into the current column list, producing the
// final fields with Original set on every kept column.
func ApplyOps(current []schema.Field, ops []dialect.FieldOp) ([]schema.Field, error) {
	fields := make([]schema.Field, len(current))
	for i, f := range current {
		f.Original = f.Name
		fields[i] = f
	}
	find := func(name string) int {
		for i, f := range fields {
			if f.Original == name {
				return i
			}
		}
		return -1
	}

	for _, op := range ops {
		switch op.Kind {
		case dialect.OpAdd:
			f := op.Field
			if f.Name == "" {
				f.Name = op.Name
			}
			f.Original = ""
			fields = insertAt(fields, f, op)
		case dialect.OpDrop:
			i := find(op.Name)
			if i < 0 {
				return nil, &diff.UnknownColumnError{Field: op.Name, Original: op.Name}
			}
			fields = append(fields[:i], fields[i+1:]...)
		case dialect.OpModify, dialect.OpRename:
			i := find(op.Name)
			if i < 0 {
				return nil, &diff.UnknownColumnError{Field: op.Field.Name, Original: op.Name}
			}
			f := op.Field
			if op.Kind == dialect.OpRename || f.Type == "" {
				// A bare rename keeps the column definition.
				name := f.Name
				f = fields[i]
				if name != "" {
					f.Name = name
				}
			}
			f.Original = op.Name
			fields = append(fields[:i], fields[i+1:]...)
			if op.Positioned() {
				fields = insertAt(fields, f, op)
			} else {
				fields = append(fields[:i], append([]schema.Field{f}, fields[i:]...)...)
			}
		default:
			return nil, fmt.Errorf("unknown field operation %q", op.Kind)
		}
	}
	return fields, nil
}

// insertAt places f first, after its anchor, or at the end.
func insertAt(fields []schema.Field, f schema.Field, op dialect.FieldOp) []schema.Field {
	pos := len(fields)
	switch {
	case op.First:
		pos = 0
	case op.After != "":
		for i, g := range fields {
			if g.Name == op.After {
				pos = i + 1
				break
			}
		}
	}
	return append(fields[:pos], append([]schema.Field{f}, fields[pos:]...)...)
}

func dropIndexes(current []schema.Index, ops []dialect.IndexOp) []schema.Index {
	var out []schema.Index
	for _, ix := range current {
		dropped := false
		for _, op := range ops {
			if op.Kind == dialect.OpDrop && sameIndex(ix, op.Index) {
				dropped = true
				break
			}
		}
		if !dropped {
			out = append(out, ix)
		}
	}
	return out
}

func sameIndex(a, b schema.Index) bool {
	switch {
	case a.Kind == schema.IndexPrimary && b.Kind == schema.IndexPrimary:
		return true
	case b.Name != "":
		return strings.EqualFold(a.Name, b.Name)
	default:
		return indexes.Equal(a, b)
	}
}

func addedIndexes(ops []dialect.IndexOp) []schema.Index {
	var out []schema.Index
	for _, op := range ops {
		if op.Kind == dialect.OpAdd {
			out = append(out, op.Index)
		}
	}
	return out
}

func dropForeignKeys(current []schema.ForeignKey, ops []dialect.ForeignKeyOp) []schema.ForeignKey {
	var out []schema.ForeignKey
	for _, fk := range current {
		dropped := false
		for _, op := range ops {
			if op.Kind == dialect.OpDrop && strings.EqualFold(op.ForeignKey.Name, fk.Name) {
				dropped = true
				break
			}
		}
		if !dropped {
			out = append(out, fk)
		}
	}
	return out
}

func addedForeignKeys(ops []dialect.ForeignKeyOp) []schema.ForeignKey {
	var out []schema.ForeignKey
	for _, op := range ops {
		if op.Kind == dialect.OpAdd {
			out = append(out, op.ForeignKey)
		}
	}
	return out
}

func renamed(cols []string, renames map[string]string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		if n, ok := renames[c]; ok {
			c = n
		}
		out[i] = c
	}
	return out
}

func checkLabel(ck schema.Check) string {
	if ck.Name != "" {
		return ck.Name
	}
	return "(" + ck.Expression + ")"
}

func hasAutoIncrement(fields []schema.Field) bool {
	for _, f := range fields {
		if f.AutoIncrement {
			return true
		}
	}
	return false
}

// Executor runs rebuild scripts.
type Executor struct {
	conn   conn.Conn
	driver *migration.Driver
	logger *slog.Logger
}

// NewExecutor creates an executor over one connection.
func NewExecutor(c conn.Conn, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{conn: c, driver: migration.NewDriver(c, logger), logger: logger}
}

const (
	foreignKeysState = "PRAGMA foreign_keys"
	foreignKeysOff   = "PRAGMA foreign_keys = OFF"
	foreignKeysOn    = "PRAGMA foreign_keys = ON"
)

// Execute runs the script in one transaction. On failure everything is
// rolled back and the error is a *RebuildAbortedError.
//
// When the script carries foreign key checks and enforcement is on, it is
// switched off for the transaction, so dropping the old table cannot
// cascade into referencing tables, and the checks run before the commit.
// The setting cannot change inside a transaction.
func (e *Executor) Execute(ctx context.Context, s *Script, callback migration.StatusCallback) (*migration.Status, error) {
	for _, w := range s.Warnings {
		e.logger.Warn("rebuild", "table", s.Table, "warning", w)
	}
	e.logger.Info("rebuilding table", "table", s.Table, "shadow", s.Shadow, "statements", len(s.Statements))

	var checks []migration.Check
	if len(s.ForeignKeyChecks) > 0 {
		on, err := e.foreignKeysEnforced(ctx)
		if err != nil {
			return nil, &RebuildAbortedError{Table: s.Table, Statement: foreignKeysState, Err: err}
		}
		if on {
			if _, err := e.conn.Exec(ctx, foreignKeysOff); err != nil {
				return nil, &RebuildAbortedError{Table: s.Table, Statement: foreignKeysOff, Err: err}
			}
			defer func() {
				if _, err := e.conn.Exec(context.WithoutCancel(ctx), foreignKeysOn); err != nil {
					e.logger.Error("restoring foreign key enforcement", "table", s.Table, "error", err)
				}
			}()
			for _, q := range s.ForeignKeyChecks {
				checks = append(checks, migration.Check{Name: "foreign key check", Query: q})
			}
		}
	}

	status, err := e.driver.RunTx(ctx, s.Statements, callback, checks...)
	if err != nil {
		aborted := &RebuildAbortedError{Table: s.Table, Err: err}
		if status != nil {
			aborted.Statement = status.Failed
		}
		return status, aborted
	}
	return status, nil
}

func (e *Executor) foreignKeysEnforced(ctx context.Context) (bool, error) {
	rows, err := e.conn.Query(ctx, foreignKeysState)
	if err != nil {
		return false, err
	}
	return len(rows) > 0 && rows[0].Int("foreign_keys") == 1, nil
}
