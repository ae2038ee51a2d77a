package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tablewright/tablewright/internal/conn"
	"github.com/tablewright/tablewright/internal/dialect"
	"github.com/tablewright/tablewright/internal/diff"
	"github.com/tablewright/tablewright/internal/discovery"
	"github.com/tablewright/tablewright/internal/indexes"
	"github.com/tablewright/tablewright/internal/migration"
	"github.com/tablewright/tablewright/internal/rebuild"
	"github.com/tablewright/tablewright/internal/schema"
	"github.com/tablewright/tablewright/internal/source"
	"github.com/tablewright/tablewright/internal/typemap"
	"github.com/tablewright/tablewright/internal/validation"
)

// Plan modes.
const (
	ModeNone    = "none"
	ModeDirect  = "direct"
	ModeRebuild = "rebuild"
	ModeCreate  = "create"
	ModeDrop    = "drop"
)

// Session binds one connection to one dialect. It is not safe for
// concurrent use: alterations on a session run one at a time.
type Session struct {
	Conn    conn.Conn
	Dialect dialect.Dialect
	Reader  discovery.Reader
	// Source reads the counts used for verification. Nil disables it.
	Source source.Reader
	Logger *slog.Logger

	ShadowInfix string
	// Verify compares row counts and sums across rebuilds.
	Verify   bool
	Callback migration.StatusCallback
}

// NewSession creates a session with the catalog and row readers of the
// dialect. schemaName selects the schema or owner; empty means the
// connection's current one.
func NewSession(c conn.Conn, d dialect.Dialect, schemaName string, logger *slog.Logger) (*Session, error) {
	r, err := discovery.New(d.Name(), c, schemaName)
	if err != nil {
		return nil, err
	}
	if s, ok := r.(interface{ SetCatalog(*typemap.Catalog) }); ok {
		s.SetCatalog(d.Catalog())
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		Conn:    c,
		Dialect: d,
		Reader:  r,
		Source:  source.NewSQLReader(c, d, schemaName),
		Logger:  logger,
	}, nil
}

// PlanOptions tunes Plan.
type PlanOptions struct {
	// From names the existing table when desired renames it.
	From string
	// DropIndexes names indexes to drop that would otherwise be kept,
	// such as a primary key absent from the desired shape ("PRIMARY").
	DropIndexes []string
}

// Plan is the dry-run outcome: the statements an Apply would run.
type Plan struct {
	Dialect    string            `json:"dialect" yaml:"dialect"`
	Table      string            `json:"table" yaml:"table"`
	Final      string            `json:"final" yaml:"final"`
	Mode       string            `json:"mode" yaml:"mode"`
	Fields     *diff.FieldPlan   `json:"fields,omitempty" yaml:"fields,omitempty"`
	Indexes    *indexes.Plan     `json:"indexes,omitempty" yaml:"indexes,omitempty"`
	Rebuild    *rebuild.Script   `json:"rebuild,omitempty" yaml:"rebuild,omitempty"`
	Statements []string          `json:"statements" yaml:"statements"`
	Warnings   []string          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Check      validation.Target `json:"-" yaml:"-"`
}

// Empty reports whether the plan has nothing to run.
func (p *Plan) Empty() bool {
	return len(p.Statements) == 0
}

// Result is the outcome of running a plan.
type Result struct {
	Plan       *Plan              `json:"plan"`
	Status     *migration.Status  `json:"status,omitempty"`
	Validation *validation.Result `json:"validation,omitempty"`
	// Partial is set when statements ran before a failure and stay applied.
	Partial bool `json:"partial,omitempty"`
	// Aborted is set when a rebuild failed and was rolled back.
	Aborted bool `json:"aborted,omitempty"`
}

// Executed returns the statements that took effect.
func (r *Result) Executed() []string {
	if r.Status == nil || r.Status.Phase == migration.PhaseRolledBack {
		return nil
	}
	return r.Status.Executed
}

// Remaining returns the statements that did not take effect.
func (r *Result) Remaining() []string {
	if r.Status == nil {
		if r.Plan != nil {
			return r.Plan.Statements
		}
		return nil
	}
	return r.Status.Remaining
}

// Describe reads the current shape of a table.
func (s *Session) Describe(ctx context.Context, table string) (*schema.Table, error) {
	return s.Reader.Describe(ctx, table)
}

// Plan compares the live table with desired and renders the statements
// that reshape it. Matching shapes give an empty plan.
func (s *Session) Plan(ctx context.Context, desired *schema.Table, opts PlanOptions) (*Plan, error) {
	if err := desired.Validate(); err != nil {
		return nil, err
	}
	from := opts.From
	if from == "" {
		from = desired.Name
	}
	plan := &Plan{Dialect: s.Dialect.Name(), Table: from, Final: desired.Name, Mode: ModeNone}

	current, err := s.Reader.Describe(ctx, from)
	var notFound *discovery.TableNotFoundError
	if errors.As(err, &notFound) {
		return s.planCreate(plan, desired)
	}
	if err != nil {
		return nil, fmt.Errorf("describing %s: %w", from, err)
	}

	fields, err := diff.Plan(current.Fields, desired.Fields, s.Dialect.Capabilities(), s.Dialect.Catalog())
	if err != nil {
		return nil, err
	}
	plan.Fields = fields
	plan.Indexes = indexes.Reconcile(current, desired, opts.DropIndexes)

	alter := s.tableOptions(current, desired)
	alter.Table = current.Name
	if desired.Name != current.Name {
		alter.NewName = desired.Name
	}
	alter.Fields = fields.Ops
	alter.ForeignKeys = plan.Indexes.ForeignKeys

	checksChanged := desired.Checks != nil && !indexes.SameChecks(current.Checks, desired.Checks)
	if checksChanged && s.Dialect.Capabilities().InPlaceAlter {
		return nil, &dialect.UnsupportedFeatureError{Dialect: s.Dialect.Name(), Feature: "changing CHECK constraints"}
	}

	if !fields.RebuildRequired && !checksChanged {
		stmts, err := s.direct(alter, plan.Indexes.Indexes)
		if err == nil {
			if len(stmts) > 0 {
				plan.Mode = ModeDirect
			}
			plan.Statements = stmts
			return plan, nil
		}
		if !errors.Is(err, dialect.ErrRebuildRequired) {
			return nil, err
		}
	}

	resolved, err := diff.Resolve(current.Fields, desired.Fields)
	if err != nil {
		return nil, err
	}
	return s.planRebuild(ctx, plan, current, rebuild.Request{
		Fields:        resolved,
		NewName:       alter.NewName,
		Indexes:       plan.Indexes.Indexes,
		ForeignKeys:   plan.Indexes.ForeignKeys,
		Checks:        desired.Checks,
		AutoIncrement: desired.AutoIncrement,
	})
}

func (s *Session) planCreate(plan *Plan, desired *schema.Table) (*Plan, error) {
	stmts, err := s.Dialect.CreateTable(*desired)
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", desired.Name, err)
	}
	fields, err := diff.Plan(nil, desired.Fields, s.Dialect.Capabilities(), s.Dialect.Catalog())
	if err != nil {
		return nil, err
	}
	plan.Mode = ModeCreate
	plan.Table = desired.Name
	plan.Fields = fields
	plan.Statements = stmts
	return plan, nil
}

// direct renders an in-place alteration. Foreign key drops come first,
// since an index backing a foreign key cannot be dropped while the key
// exists. Index drops precede the ALTER so no index outlives its columns;
// additions follow it, under the final table name.
func (s *Session) direct(alter dialect.AlterTable, ixOps []dialect.IndexOp) ([]string, error) {
	var drops, adds []dialect.IndexOp
	for _, op := range ixOps {
		if op.Kind == dialect.OpDrop {
			drops = append(drops, op)
		} else {
			adds = append(adds, op)
		}
	}
	var fkDrops, fkAdds []dialect.ForeignKeyOp
	for _, op := range alter.ForeignKeys {
		if op.Kind == dialect.OpDrop {
			fkDrops = append(fkDrops, op)
		} else {
			fkAdds = append(fkAdds, op)
		}
	}
	alter.ForeignKeys = fkAdds

	var stmts []string
	if len(fkDrops) > 0 {
		out, err := s.Dialect.AlterTable(dialect.AlterTable{Table: alter.Table, ForeignKeys: fkDrops})
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, out...)
	}
	if len(drops) > 0 {
		out, err := s.Dialect.AlterIndexes(alter.Table, drops)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, out...)
	}
	if !alter.Empty() {
		out, err := s.Dialect.AlterTable(alter)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, out...)
	}
	if len(adds) > 0 {
		out, err := s.Dialect.AlterIndexes(alter.FinalName(), adds)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, out...)
	}
	return stmts, nil
}

func (s *Session) planRebuild(ctx context.Context, plan *Plan, current *schema.Table, req rebuild.Request) (*Plan, error) {
	req.Current = current
	req.ShadowInfix = s.ShadowInfix
	if l, ok := s.Reader.(discovery.InboundLister); ok {
		inbound, err := l.InboundForeignKeys(ctx, current.Name)
		if err != nil {
			return nil, fmt.Errorf("listing references to %s: %w", current.Name, err)
		}
		req.Inbound = inbound
	}
	script, err := rebuild.Build(s.Dialect, req)
	if err != nil {
		return nil, err
	}
	fields := req.Fields
	if fields == nil {
		fields, _ = rebuild.ApplyOps(current.Fields, nil)
	}
	plan.Mode = ModeRebuild
	plan.Final = script.Final
	plan.Rebuild = script
	plan.Statements = script.Statements
	plan.Warnings = append(plan.Warnings, script.Warnings...)
	plan.Check = validation.TargetFor(current, fields, script.Final)
	return plan, nil
}

// tableOptions carries the table-level changes the dialect can express.
func (s *Session) tableOptions(current, desired *schema.Table) dialect.AlterTable {
	caps := s.Dialect.Capabilities()
	var alter dialect.AlterTable
	if caps.ColumnComments && desired.Comment != current.Comment {
		c := desired.Comment
		alter.Comment = &c
	}
	if caps.TableOptions {
		if desired.Engine != "" && !strings.EqualFold(desired.Engine, current.Engine) {
			alter.Engine = desired.Engine
		}
		if desired.Collation != "" && !strings.EqualFold(desired.Collation, current.Collation) {
			alter.Collation = desired.Collation
		}
	}
	if caps.Partitioning && desired.Partitioning != nil && !samePartitioning(current.Partitioning, desired.Partitioning) {
		alter.Partitioning = desired.Partitioning
	}
	if desired.AutoIncrement != nil && (current.AutoIncrement == nil || *current.AutoIncrement != *desired.AutoIncrement) {
		alter.AutoIncrement = desired.AutoIncrement
		alter.AutoIncrementColumn = autoIncrementColumn(desired.Fields)
	}
	return alter
}

func samePartitioning(a, b *schema.Partitioning) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !strings.EqualFold(a.Method, b.Method) || a.Expression != b.Expression || a.Partitions != b.Partitions {
		return false
	}
	if len(a.Definitions) != len(b.Definitions) {
		return false
	}
	for i := range a.Definitions {
		if a.Definitions[i] != b.Definitions[i] {
			return false
		}
	}
	return true
}

func autoIncrementColumn(fields []schema.Field) string {
	for _, f := range fields {
		if f.AutoIncrement {
			return f.Name
		}
	}
	return ""
}

// Apply plans desired and runs the plan.
func (s *Session) Apply(ctx context.Context, desired *schema.Table, opts PlanOptions) (*Result, error) {
	plan, err := s.Plan(ctx, desired, opts)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, plan)
}

// Run executes a plan. Direct plans run statement by statement without a
// transaction; rebuilds run in one transaction and are verified when
// Verify is set.
func (s *Session) Run(ctx context.Context, plan *Plan) (*Result, error) {
	result := &Result{Plan: plan}
	if plan.Empty() {
		s.Logger.Info("table already matches", "table", plan.Table)
		return result, nil
	}
	for _, w := range plan.Warnings {
		s.Logger.Warn("plan warning", "table", plan.Table, "warning", w)
	}

	if plan.Mode != ModeRebuild {
		status, err := migration.NewDriver(s.Conn, s.Logger).Run(ctx, plan.Statements, s.Callback)
		result.Status = status
		var partial *migration.PartialAlterFailureError
		result.Partial = errors.As(err, &partial)
		return result, err
	}

	verify := s.Verify && s.Source != nil
	v := &validation.Validator{Source: s.Source}
	var before *validation.Snapshot
	if verify {
		snap, err := v.Capture(ctx, plan.Check)
		if err != nil {
			return result, err
		}
		before = snap
	}

	status, err := rebuild.NewExecutor(s.Conn, s.Logger).Execute(ctx, plan.Rebuild, s.Callback)
	result.Status = status
	if err != nil {
		result.Aborted = true
		return result, err
	}

	if verify {
		vr, err := v.Verify(ctx, plan.Check, before)
		if err != nil {
			return result, fmt.Errorf("verifying %s: %w", plan.Final, err)
		}
		result.Validation = vr
		if vr.Status != "PASS" {
			s.Logger.Error("verification failed", "table", plan.Final, "status", vr.Status)
		}
	}
	return result, nil
}

// AlterTableRequest is an explicit alteration: field ops and table
// options, applied to the table as it stands.
type AlterTableRequest struct {
	Table         string                 `json:"table" yaml:"table"`
	NewName       string                 `json:"new_name,omitempty" yaml:"new_name,omitempty"`
	Fields        []dialect.FieldOp      `json:"fields,omitempty" yaml:"fields,omitempty"`
	ForeignKeys   []dialect.ForeignKeyOp `json:"foreign_keys,omitempty" yaml:"foreign_keys,omitempty"`
	Comment       *string                `json:"comment,omitempty" yaml:"comment,omitempty"`
	Engine        string                 `json:"engine,omitempty" yaml:"engine,omitempty"`
	Collation     string                 `json:"collation,omitempty" yaml:"collation,omitempty"`
	AutoIncrement *int64                 `json:"auto_increment,omitempty" yaml:"auto_increment,omitempty"`
	Partitioning  *schema.Partitioning   `json:"partitioning,omitempty" yaml:"partitioning,omitempty"`
}

// PlanAlterTable renders an explicit alteration, falling back to a
// rebuild when the dialect cannot express it in place.
func (s *Session) PlanAlterTable(ctx context.Context, req AlterTableRequest) (*Plan, error) {
	current, err := s.Reader.Describe(ctx, req.Table)
	if err != nil {
		return nil, err
	}
	ops, err := completeOps(current, req.Fields)
	if err != nil {
		return nil, err
	}
	alter := dialect.AlterTable{
		Table:         current.Name,
		NewName:       req.NewName,
		Fields:        ops,
		ForeignKeys:   req.ForeignKeys,
		Comment:       req.Comment,
		Engine:        req.Engine,
		Collation:     req.Collation,
		AutoIncrement: req.AutoIncrement,
		Partitioning:  req.Partitioning,
	}
	if alter.AutoIncrement != nil {
		alter.AutoIncrementColumn = autoIncrementColumn(current.Fields)
	}

	plan := &Plan{Dialect: s.Dialect.Name(), Table: current.Name, Final: alter.FinalName(), Mode: ModeNone}
	if alter.Empty() {
		return plan, nil
	}
	stmts, err := s.Dialect.AlterTable(alter)
	if err == nil {
		plan.Mode = ModeDirect
		plan.Statements = stmts
		return plan, nil
	}
	if !errors.Is(err, dialect.ErrRebuildRequired) {
		return nil, err
	}

	fields, err := rebuild.ApplyOps(current.Fields, ops)
	if err != nil {
		return nil, err
	}
	return s.planRebuild(ctx, plan, current, rebuild.Request{
		Fields:        fields,
		NewName:       req.NewName,
		ForeignKeys:   req.ForeignKeys,
		AutoIncrement: req.AutoIncrement,
	})
}

// AlterTable runs an explicit alteration.
func (s *Session) AlterTable(ctx context.Context, req AlterTableRequest) (*Result, error) {
	plan, err := s.PlanAlterTable(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, plan)
}

// PlanAlterIndexes renders index changes, falling back to a rebuild when
// the dialect cannot change them in place.
func (s *Session) PlanAlterIndexes(ctx context.Context, table string, ops []dialect.IndexOp) (*Plan, error) {
	plan := &Plan{Dialect: s.Dialect.Name(), Table: table, Final: table, Mode: ModeNone}
	if len(ops) == 0 {
		return plan, nil
	}
	stmts, err := s.Dialect.AlterIndexes(table, ops)
	if err == nil {
		plan.Mode = ModeDirect
		plan.Statements = stmts
		return plan, nil
	}
	if !errors.Is(err, dialect.ErrRebuildRequired) {
		return nil, err
	}
	current, err := s.Reader.Describe(ctx, table)
	if err != nil {
		return nil, err
	}
	return s.planRebuild(ctx, plan, current, rebuild.Request{Indexes: ops})
}

// AlterIndexes runs index changes.
func (s *Session) AlterIndexes(ctx context.Context, table string, ops []dialect.IndexOp) (*Result, error) {
	plan, err := s.PlanAlterIndexes(ctx, table, ops)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, plan)
}

// PlanDropTable renders the removal of an existing table. Foreign keys of
// other tables pointing at it are reported as warnings.
func (s *Session) PlanDropTable(ctx context.Context, table string) (*Plan, error) {
	current, err := s.Reader.Describe(ctx, table)
	if err != nil {
		return nil, err
	}
	plan := &Plan{
		Dialect:    s.Dialect.Name(),
		Table:      current.Name,
		Mode:       ModeDrop,
		Statements: []string{s.Dialect.DropTable(current.Name)},
	}
	if l, ok := s.Reader.(discovery.InboundLister); ok {
		inbound, err := l.InboundForeignKeys(ctx, current.Name)
		if err != nil {
			return nil, fmt.Errorf("listing references to %s: %w", current.Name, err)
		}
		for _, ref := range inbound {
			if ref.Table == current.Name {
				continue
			}
			plan.Warnings = append(plan.Warnings, fmt.Sprintf("%s(%s) references %s(%s)",
				ref.Table, strings.Join(ref.Columns, ", "), current.Name, strings.Join(ref.RefColumns, ", ")))
		}
	}
	return plan, nil
}

// DropTable removes a table.
func (s *Session) DropTable(ctx context.Context, table string) (*Result, error) {
	plan, err := s.PlanDropTable(ctx, table)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, plan)
}

// completeOps fills in what explicit ops leave out: the previous column
// definition, and for bare renames the definition itself.
func completeOps(current *schema.Table, ops []dialect.FieldOp) ([]dialect.FieldOp, error) {
	out := make([]dialect.FieldOp, len(ops))
	for i, op := range ops {
		if op.Kind == dialect.OpAdd {
			if op.Field.Name == "" {
				op.Field.Name = op.Name
			}
			out[i] = op
			continue
		}
		prev := current.Field(op.Name)
		if prev == nil {
			return nil, &diff.UnknownColumnError{Field: op.Name, Original: op.Name}
		}
		p := *prev
		op.Previous = &p
		if op.Kind == dialect.OpRename || (op.Kind == dialect.OpModify && op.Field.Type == "") {
			name := op.Field.Name
			op.Field = p
			if name != "" {
				op.Field.Name = name
			}
		}
		if op.Field.Name == "" {
			op.Field.Name = op.Name
		}
		out[i] = op
	}
	return out, nil
}
