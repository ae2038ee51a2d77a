// Package indexes reconciles index and foreign key sets. It only plans
// structure; duplicate data behind a new UNIQUE or PRIMARY index is
// rejected by the engine when the statement runs.
package indexes

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tablewright/tablewright/internal/dialect"
	"github.com/tablewright/tablewright/internal/schema"
)

// Plan is the set of index and foreign key operations for one table.
type Plan struct {
	Table        string                 `yaml:"table"`
	Indexes      []dialect.IndexOp      `yaml:"indexes,omitempty"`
	ForeignKeys  []dialect.ForeignKeyOp `yaml:"foreign_keys,omitempty"`
	Explanations []string               `yaml:"explanations,omitempty"`
}

// Empty reports whether the plan changes nothing.
func (p *Plan) Empty() bool {
	return len(p.Indexes) == 0 && len(p.ForeignKeys) == 0
}

// Reconcile diffs the indexes and foreign keys of two table shapes.
func Reconcile(current, desired *schema.Table, explicitDrops []string) *Plan {
	plan := &Plan{
		Table:       desired.Name,
		Indexes:     ReconcileIndexes(current.Indexes, desired.Indexes, explicitDrops),
		ForeignKeys: ReconcileForeignKeys(current.ForeignKeys, desired.ForeignKeys),
	}
	for _, op := range plan.Indexes {
		plan.Explanations = append(plan.Explanations,
			fmt.Sprintf("%s %s %s(%s)%s", op.Kind, op.Index.Kind, label(op.Index.Name), strings.Join(keys(op.Index), ", "), where(op.Index)))
	}
	for _, op := range plan.ForeignKeys {
		fk := op.ForeignKey
		plan.Explanations = append(plan.Explanations,
			fmt.Sprintf("%s FOREIGN KEY %s(%s) -> %s(%s)", op.Kind, fk.Name,
				strings.Join(fk.Columns, ", "), fk.RefTable, strings.Join(fk.RefColumns, ", ")))
	}
	return plan
}

func keys(ix schema.Index) []string {
	out := make([]string, len(ix.Columns))
	for i, c := range ix.Columns {
		out[i] = c.Name
		if c.Expression != "" {
			out[i] = c.Expression
		}
	}
	return out
}

func where(ix schema.Index) string {
	if ix.Where == "" {
		return ""
	}
	return " WHERE " + ix.Where
}

func label(name string) string {
	if name == "" {
		return "<unnamed>"
	}
	return name
}

// ReconcileIndexes compares index sets. Named indexes match by name,
// PRIMARY by kind, and unnamed indexes by kind and columns. A changed
// index is dropped and re-added; a current PRIMARY with no desired
// counterpart is dropped only when named in explicitDrops (or as
// "PRIMARY"). Drops come before adds.
func ReconcileIndexes(current, desired []schema.Index, explicitDrops []string) []dialect.IndexOp {
	claimed := make([]bool, len(current))
	var drops, adds []dialect.IndexOp

	for _, want := range desired {
		i := match(current, claimed, want)
		if i < 0 {
			adds = append(adds, dialect.IndexOp{Kind: dialect.OpAdd, Index: want})
			continue
		}
		claimed[i] = true
		if !Equal(current[i], want) {
			drops = append(drops, dialect.IndexOp{Kind: dialect.OpDrop, Index: current[i]})
			adds = append(adds, dialect.IndexOp{Kind: dialect.OpAdd, Index: want})
		}
	}

	for i, ix := range current {
		if claimed[i] {
			continue
		}
		if ix.Kind == schema.IndexPrimary && !explicitlyDropped(ix, explicitDrops) {
			continue
		}
		drops = append(drops, dialect.IndexOp{Kind: dialect.OpDrop, Index: ix})
	}
	return append(drops, adds...)
}

// match returns the index in current that want corresponds to, or -1.
func match(current []schema.Index, claimed []bool, want schema.Index) int {
	if want.Kind == schema.IndexPrimary {
		for i, ix := range current {
			if !claimed[i] && ix.Kind == schema.IndexPrimary {
				return i
			}
		}
		return -1
	}
	if want.Name != "" {
		for i, ix := range current {
			if !claimed[i] && ix.Kind != schema.IndexPrimary && strings.EqualFold(ix.Name, want.Name) {
				return i
			}
		}
	}
	// An unnamed side (inline UNIQUE, autoindex) matches by content.
	for i, ix := range current {
		if claimed[i] || ix.Kind == schema.IndexPrimary {
			continue
		}
		if (ix.Name == "" || want.Name == "") && Equal(ix, want) {
			return i
		}
	}
	return -1
}

func explicitlyDropped(ix schema.Index, names []string) bool {
	for _, n := range names {
		if strings.EqualFold(n, "PRIMARY") && ix.Kind == schema.IndexPrimary {
			return true
		}
		if ix.Name != "" && strings.EqualFold(n, ix.Name) {
			return true
		}
	}
	return false
}

// Equal reports whether two indexes have the same kind, the same ordered
// keys with their prefix lengths and sort directions, and the same
// predicate. Names are not compared.
func Equal(a, b schema.Index) bool {
	if a.Kind != b.Kind || len(a.Columns) != len(b.Columns) {
		return false
	}
	if schema.NormalizeExpr(a.Where) != schema.NormalizeExpr(b.Where) {
		return false
	}
	for i := range a.Columns {
		x, y := a.Columns[i], b.Columns[i]
		if x.Name != y.Name || x.Desc != y.Desc {
			return false
		}
		if schema.NormalizeExpr(x.Expression) != schema.NormalizeExpr(y.Expression) {
			return false
		}
		if (x.Length == nil) != (y.Length == nil) || (x.Length != nil && *x.Length != *y.Length) {
			return false
		}
	}
	return true
}

// ReconcileForeignKeys compares foreign keys by constraint name. A changed
// constraint is dropped and re-added. Drops come before adds.
func ReconcileForeignKeys(current, desired []schema.ForeignKey) []dialect.ForeignKeyOp {
	byName := make(map[string]int, len(current))
	for i, fk := range current {
		byName[strings.ToLower(fk.Name)] = i
	}

	claimed := make(map[int]bool, len(current))
	var drops, adds []dialect.ForeignKeyOp
	for _, want := range desired {
		i, ok := byName[strings.ToLower(want.Name)]
		if !ok {
			adds = append(adds, dialect.ForeignKeyOp{Kind: dialect.OpAdd, ForeignKey: want})
			continue
		}
		claimed[i] = true
		if !SameForeignKey(current[i], want) {
			drops = append(drops, dialect.ForeignKeyOp{Kind: dialect.OpDrop, ForeignKey: current[i]})
			adds = append(adds, dialect.ForeignKeyOp{Kind: dialect.OpAdd, ForeignKey: want})
		}
	}
	for i, fk := range current {
		if !claimed[i] {
			drops = append(drops, dialect.ForeignKeyOp{Kind: dialect.OpDrop, ForeignKey: fk})
		}
	}
	return append(drops, adds...)
}

// SameForeignKey compares columns, referenced table and columns, and
// actions. The referenced schema is compared only when both sides name
// one. RESTRICT, NO ACTION and no action at all are equivalent.
func SameForeignKey(a, b schema.ForeignKey) bool {
	if !sameList(a.Columns, b.Columns) || !sameList(a.RefColumns, b.RefColumns) {
		return false
	}
	if a.RefTable != b.RefTable {
		return false
	}
	if a.RefSchema != "" && b.RefSchema != "" && a.RefSchema != b.RefSchema {
		return false
	}
	return action(a.OnDelete) == action(b.OnDelete) && action(a.OnUpdate) == action(b.OnUpdate)
}

func action(a string) string {
	switch strings.ToUpper(strings.TrimSpace(a)) {
	case "", "RESTRICT", "NO ACTION":
		return ""
	default:
		return strings.ToUpper(strings.TrimSpace(a))
	}
}

func sameList(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Reshape describes how a rebuild changes a table's columns. Renames maps
// current to final names; Kept and Dropped hold current names. Quote
// renders identifiers written into rewritten expressions.
type Reshape struct {
	Renames map[string]string
	Kept    map[string]bool
	Dropped map[string]bool
	Quote   func(string) string
}

// dropsAny reports whether expr refers to a dropped column.
func (r Reshape) dropsAny(expr string) bool {
	if expr == "" || len(r.Dropped) == 0 {
		return false
	}
	names := make([]string, 0, len(r.Dropped))
	for n := range r.Dropped {
		names = append(names, n)
	}
	return len(schema.ExprReferences(expr, names)) > 0
}

func (r Reshape) rewrite(expr string) string {
	if expr == "" {
		return ""
	}
	return schema.RenameInExpr(expr, r.Renames, r.Quote)
}

// Carry maps indexes onto a reshaped table: renamed columns take their
// new names, also inside key expressions and predicates, and an index
// touching a column that no longer exists is left out.
func Carry(ixs []schema.Index, r Reshape) []schema.Index {
	var out []schema.Index
	for _, ix := range ixs {
		if !ix.Covers(r.Kept) || r.dropsAny(ix.Where) {
			continue
		}
		next := ix
		next.Where = r.rewrite(ix.Where)
		next.Columns = make([]schema.IndexColumn, len(ix.Columns))
		gone := false
		for i, c := range ix.Columns {
			if c.Expression != "" {
				gone = gone || r.dropsAny(c.Expression)
				c.Expression = r.rewrite(c.Expression)
			} else if n, ok := r.Renames[c.Name]; ok {
				c.Name = n
			}
			next.Columns[i] = c
		}
		if !gone {
			out = append(out, next)
		}
	}
	return out
}

// CarryForeignKeys is Carry for foreign keys. Only the local columns are
// rewritten; the referenced side belongs to another table.
func CarryForeignKeys(fks []schema.ForeignKey, r Reshape) []schema.ForeignKey {
	var out []schema.ForeignKey
	for _, fk := range fks {
		ok := true
		for _, c := range fk.Columns {
			if !r.Kept[c] {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		next := fk
		next.Columns = make([]string, len(fk.Columns))
		for i, c := range fk.Columns {
			if n, found := r.Renames[c]; found {
				c = n
			}
			next.Columns[i] = c
		}
		out = append(out, next)
	}
	return out
}

// CarryChecks is Carry for CHECK constraints. It also returns the checks
// left out because they refer to a dropped column.
func CarryChecks(checks []schema.Check, r Reshape) (kept, lost []schema.Check) {
	for _, ck := range checks {
		if r.dropsAny(ck.Expression) {
			lost = append(lost, ck)
			continue
		}
		ck.Expression = r.rewrite(ck.Expression)
		kept = append(kept, ck)
	}
	return kept, lost
}

// SameChecks compares CHECK constraint lists in order, by name and
// normalized expression.
func SameChecks(a, b []schema.Check) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i].Name, b[i].Name) ||
			schema.NormalizeExpr(a[i].Expression) != schema.NormalizeExpr(b[i].Expression) {
			return false
		}
	}
	return true
}

// WriteYAML writes the plan to a YAML file.
func (p *Plan) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling index plan: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadYAML reads a plan from a YAML file. Op kinds are upper-cased so
// hand-written files may say "add" or "drop".
func LoadYAML(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading index plan: %w", err)
	}
	p := &Plan{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parsing index plan: %w", err)
	}
	if p.Table == "" {
		return nil, fmt.Errorf("parsing index plan: table is required")
	}
	for i := range p.Indexes {
		kind, err := opKind(p.Indexes[i].Kind)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		p.Indexes[i].Kind = kind
		p.Indexes[i].Index.Kind = schema.IndexKind(strings.ToUpper(string(p.Indexes[i].Index.Kind)))
	}
	for i := range p.ForeignKeys {
		kind, err := opKind(p.ForeignKeys[i].Kind)
		if err != nil {
			return nil, fmt.Errorf("foreign key %d: %w", i, err)
		}
		p.ForeignKeys[i].Kind = kind
	}
	return p, nil
}

func opKind(k dialect.OpKind) (dialect.OpKind, error) {
	switch dialect.OpKind(strings.ToUpper(string(k))) {
	case dialect.OpAdd:
		return dialect.OpAdd, nil
	case dialect.OpDrop:
		return dialect.OpDrop, nil
	default:
		return "", fmt.Errorf("unknown operation %q (want ADD or DROP)", k)
	}
}
