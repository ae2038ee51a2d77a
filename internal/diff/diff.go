// Package diff plans the column operations that turn a table's current
// field list into a desired one.
package diff

import (
	"errors"
	"fmt"

	"github.com/tablewright/tablewright/internal/dialect"
	"github.com/tablewright/tablewright/internal/schema"
	"github.com/tablewright/tablewright/internal/typemap"
)

// FieldPlan is the ordered list of column operations for one table.
type FieldPlan struct {
	Ops []dialect.FieldOp `json:"ops" yaml:"ops"`
	// Create is set when the table has no columns yet; every op is an ADD
	// and the table is created rather than altered.
	Create bool `json:"create,omitempty" yaml:"create,omitempty"`
	// RebuildRequired is set when the dialect cannot express the ops in
	// place and the table must be rebuilt.
	RebuildRequired bool `json:"rebuild_required,omitempty" yaml:"rebuild_required,omitempty"`
	// Reordered lists kept columns whose position changed.
	Reordered []string `json:"reordered,omitempty" yaml:"reordered,omitempty"`
}

// Empty reports whether the plan changes nothing.
func (p *FieldPlan) Empty() bool {
	return len(p.Ops) == 0 && !p.Create
}

// UnknownColumnError is returned when a desired field names an original
// column the table does not have.
type UnknownColumnError struct {
	Field    string
	Original string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("field %s: original column %s does not exist", e.Field, e.Original)
}

var (
	// ErrDuplicateField is returned when two desired fields share a name.
	ErrDuplicateField = errors.New("duplicate field name")
	// ErrDuplicateOriginal is returned when two desired fields claim the
	// same original column.
	ErrDuplicateOriginal = errors.New("original column claimed by more than one field")
)

// Plan compares the desired fields against the current columns.
//
// A desired field with an empty Original is new, unless its name matches a
// current column no other field claims, in which case it is that column.
// Ops come in desired order, ADD / MODIFY / RENAME interleaved, followed by
// DROPs. Every ADD carries the anchor of its desired position; kept
// columns carry one only when they move on a dialect with positional
// ALTER. The catalog normalizes types for comparison; a malformed length
// fails here, before any statement exists.
func Plan(current, desired []schema.Field, caps dialect.Capabilities, cat *typemap.Catalog) (*FieldPlan, error) {
	originals, err := resolveOriginals(current, desired)
	if err != nil {
		return nil, err
	}
	for _, f := range desired {
		if _, err := cat.Signature(f); err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
	}

	plan := &FieldPlan{Create: len(current) == 0}
	if plan.Create {
		for i, f := range desired {
			plan.Ops = append(plan.Ops, addOp(f, desired, i))
		}
		return plan, nil
	}

	index := make(map[string]int, len(current))
	for i, f := range current {
		index[f.Name] = i
	}

	// Positions of kept columns in desired order; those outside the
	// longest increasing run are the ones that moved.
	var keptPos []int
	for _, orig := range originals {
		if orig != "" {
			keptPos = append(keptPos, index[orig])
		}
	}
	moved := movedPositions(keptPos)

	for i, f := range desired {
		orig := originals[i]
		if orig == "" {
			plan.Ops = append(plan.Ops, addOp(f, desired, i))
			continue
		}
		prev := current[index[orig]]
		isMoved := caps.PositionalColumns && moved[index[orig]]
		if isMoved {
			plan.Reordered = append(plan.Reordered, f.Name)
		}

		changed, err := Changed(prev, f, caps, cat)
		if err != nil {
			return nil, err
		}
		renamed := f.Name != prev.Name
		anchored := isMoved && caps.PositionalAlter
		if !changed && !renamed && !anchored {
			continue
		}

		if caps.ColumnCollation {
			f = keepCollation(prev, f)
		}
		op := dialect.FieldOp{Kind: dialect.OpModify, Name: prev.Name, Field: f, Previous: &current[index[orig]]}
		if !changed && !anchored {
			op.Kind = dialect.OpRename
		}
		if anchored {
			op.First, op.After = anchor(desired, i)
		}
		plan.Ops = append(plan.Ops, op)
	}

	claimed := make(map[string]bool, len(originals))
	for _, orig := range originals {
		claimed[orig] = true
	}
	for i := range current {
		if !claimed[current[i].Name] {
			plan.Ops = append(plan.Ops, dialect.FieldOp{Kind: dialect.OpDrop, Name: current[i].Name, Previous: &current[i]})
		}
	}

	if len(plan.Reordered) > 0 && !caps.PositionalAlter {
		plan.RebuildRequired = true
	}
	if NeedsRebuild(current, plan.Ops, caps) {
		plan.RebuildRequired = true
	}
	return plan, nil
}

// resolveOriginals returns, per desired field, the current column it
// corresponds to or "" for a new field.
func resolveOriginals(current, desired []schema.Field) ([]string, error) {
	exists := make(map[string]bool, len(current))
	for _, f := range current {
		exists[f.Name] = true
	}

	names := make(map[string]bool, len(desired))
	claimed := make(map[string]bool, len(desired))
	originals := make([]string, len(desired))
	for i, f := range desired {
		if names[f.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateField, f.Name)
		}
		names[f.Name] = true
		if f.Original == "" {
			continue
		}
		if !exists[f.Original] {
			return nil, &UnknownColumnError{Field: f.Name, Original: f.Original}
		}
		if claimed[f.Original] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateOriginal, f.Original)
		}
		claimed[f.Original] = true
		originals[i] = f.Original
	}
	for i, f := range desired {
		if f.Original == "" && exists[f.Name] && !claimed[f.Name] {
			claimed[f.Name] = true
			originals[i] = f.Name
		}
	}
	return originals, nil
}

// Resolve returns a copy of desired with Original set on every field that
// corresponds to a current column, following the same matching as Plan.
func Resolve(current, desired []schema.Field) ([]schema.Field, error) {
	originals, err := resolveOriginals(current, desired)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]schema.Field, len(current))
	for _, f := range current {
		byName[f.Name] = f
	}
	out := make([]schema.Field, len(desired))
	for i, f := range desired {
		f.Original = originals[i]
		if prev, ok := byName[f.Original]; ok {
			f = keepCollation(prev, f)
		}
		out[i] = f
	}
	return out, nil
}

// keepCollation fills an empty desired collation from the current column,
// since an empty one leaves the collation unchanged.
func keepCollation(prev, f schema.Field) schema.Field {
	if f.Collation == "" && prev.Collation != "" && typemap.Collatable(f.Type) {
		f.Collation = prev.Collation
	}
	return f
}

func addOp(f schema.Field, desired []schema.Field, i int) dialect.FieldOp {
	op := dialect.FieldOp{Kind: dialect.OpAdd, Name: f.Name, Field: f}
	op.First, op.After = anchor(desired, i)
	return op
}

// anchor returns the position of desired[i]: first, or after the
// previous desired field.
func anchor(desired []schema.Field, i int) (first bool, after string) {
	if i == 0 {
		return true, ""
	}
	return false, desired[i-1].Name
}

// movedPositions returns the positions not on a longest strictly
// increasing subsequence of pos: the smallest set of columns whose
// relocation restores the desired order.
func movedPositions(pos []int) map[int]bool {
	n := len(pos)
	moved := make(map[int]bool)
	if n == 0 {
		return moved
	}
	// Patience sorting with predecessor links.
	tails := make([]int, 0, n) // index into pos of the smallest tail per length
	prev := make([]int, n)
	for i, p := range pos {
		lo, hi := 0, len(tails)
		for lo < hi {
			mid := (lo + hi) / 2
			if pos[tails[mid]] < p {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo > 0 {
			prev[i] = tails[lo-1]
		} else {
			prev[i] = -1
		}
		if lo == len(tails) {
			tails = append(tails, i)
		} else {
			tails[lo] = i
		}
	}
	keep := make(map[int]bool, len(tails))
	for i := tails[len(tails)-1]; i >= 0; i = prev[i] {
		keep[pos[i]] = true
	}
	for _, p := range pos {
		if !keep[p] {
			moved[p] = true
		}
	}
	return moved
}

// NeedsRebuild reports whether ops cannot be applied in place. On a
// dialect without in-place ALTER only ADDs of trailing columns qualify;
// an ADD anchored anywhere but after the last column needs a rebuild.
func NeedsRebuild(current []schema.Field, ops []dialect.FieldOp, caps dialect.Capabilities) bool {
	if caps.InPlaceAlter {
		return false
	}
	tail := ""
	if len(current) > 0 {
		tail = current[len(current)-1].Name
	}
	for _, op := range ops {
		if op.Kind != dialect.OpAdd {
			return true
		}
		switch {
		case op.First:
			if len(current) > 0 {
				return true
			}
		case op.After == "" || op.After == tail:
		default:
			return true
		}
		tail = op.Field.Name
	}
	return false
}
