// Package validation checks that an alteration preserved a table's data:
// a snapshot of counts and aggregates is taken before the statements run
// and compared with the same figures afterwards.
package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/tablewright/tablewright/internal/schema"
	"github.com/tablewright/tablewright/internal/source"
	"github.com/tablewright/tablewright/internal/typemap"
)

// Result holds the outcome of a verification.
type Result struct {
	Status      string        `json:"status"` // PASS, FAIL, PARTIAL
	Tables      []TableResult `json:"tables"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}

// TableResult holds the checks for one table.
type TableResult struct {
	Name           string          `json:"name"`
	RowCountCheck  *RowCountCheck  `json:"row_count_check,omitempty"`
	AggregateCheck *AggregateCheck `json:"aggregate_check,omitempty"`
	Status         string          `json:"status"` // PASS, FAIL
}

// Column pairs a column's name before the alteration with its name after.
type Column struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// Target names what to compare across one alteration.
type Target struct {
	Before string   `json:"before"`
	After  string   `json:"after"`
	Key    *Column  `json:"key,omitempty"`
	Sums   []Column `json:"sums,omitempty"`
}

// Snapshot is the data summary taken before an alteration.
type Snapshot struct {
	RowCount     int64              `json:"row_count"`
	DistinctKeys int64              `json:"distinct_keys,omitempty"`
	Sums         map[string]float64 `json:"sums,omitempty"` // keyed by the column's name before
	TakenAt      time.Time          `json:"taken_at"`
}

// TargetFor derives the checks for reshaping current into fields (each
// kept field naming its column in Original) under newName. The key is
// the first primary key column when it survives; sums cover kept columns
// that are numeric on both sides.
func TargetFor(current *schema.Table, fields []schema.Field, newName string) Target {
	t := Target{Before: current.Name, After: current.Name}
	if newName != "" {
		t.After = newName
	}
	after := make(map[string]schema.Field, len(fields))
	for _, f := range fields {
		if f.Original != "" {
			after[f.Original] = f
		}
	}
	if pk := current.PrimaryKey(); pk != nil && len(pk.Columns) > 0 {
		if f, ok := after[pk.Columns[0].Name]; ok {
			t.Key = &Column{Before: pk.Columns[0].Name, After: f.Name}
		}
	}
	for _, f := range current.Fields {
		g, ok := after[f.Name]
		if !ok || (t.Key != nil && f.Name == t.Key.Before) {
			continue
		}
		if typemap.IsNumeric(f.Type) && typemap.IsNumeric(g.Type) {
			t.Sums = append(t.Sums, Column{Before: f.Name, After: g.Name})
		}
	}
	return t
}

// Validator compares snapshots.
type Validator struct {
	Source   source.Reader
	Callback func(table, checkType string, passed bool)
}

// Capture takes the snapshot before an alteration.
func (v *Validator) Capture(ctx context.Context, t Target) (*Snapshot, error) {
	s := &Snapshot{TakenAt: time.Now()}
	n, err := v.Source.RowCount(ctx, t.Before)
	if err != nil {
		return nil, fmt.Errorf("capturing row count: %w", err)
	}
	s.RowCount = n
	if t.Key != nil {
		if s.DistinctKeys, err = v.Source.AggregateCountDistinct(ctx, t.Before, t.Key.Before); err != nil {
			return nil, fmt.Errorf("capturing distinct keys: %w", err)
		}
	}
	for _, c := range t.Sums {
		sum, err := v.Source.AggregateSum(ctx, t.Before, c.Before)
		if err != nil {
			return nil, fmt.Errorf("capturing sum of %s: %w", c.Before, err)
		}
		if s.Sums == nil {
			s.Sums = make(map[string]float64)
		}
		s.Sums[c.Before] = sum
	}
	return s, nil
}

// Verify compares the table after an alteration with the snapshot.
func (v *Validator) Verify(ctx context.Context, t Target, before *Snapshot) (*Result, error) {
	result := &Result{StartedAt: time.Now()}
	tr := TableResult{Name: t.After, Status: "PASS"}

	rc, err := v.compareRowCount(ctx, t.After, before.RowCount)
	if err != nil {
		return nil, err
	}
	tr.RowCountCheck = rc
	if !rc.Match {
		tr.Status = "FAIL"
	}
	v.notify(t.After, "row_count", rc.Match)

	if t.Key != nil || len(t.Sums) > 0 {
		ac, err := v.compareAggregates(ctx, t, before)
		if err != nil {
			return nil, err
		}
		tr.AggregateCheck = ac
		if !ac.Match {
			tr.Status = "FAIL"
		}
		v.notify(t.After, "aggregate", ac.Match)
	}

	result.Tables = append(result.Tables, tr)
	result.CompletedAt = time.Now()
	result.Status = computeOverallStatus(result.Tables)
	return result, nil
}

// ExpectRowCount checks a table's row count against a known figure.
func (v *Validator) ExpectRowCount(ctx context.Context, table string, expected int64) (*Result, error) {
	result := &Result{StartedAt: time.Now()}
	tr := TableResult{Name: table, Status: "PASS"}
	rc, err := v.compareRowCount(ctx, table, expected)
	if err != nil {
		return nil, err
	}
	tr.RowCountCheck = rc
	if !rc.Match {
		tr.Status = "FAIL"
	}
	v.notify(table, "row_count", rc.Match)
	result.Tables = append(result.Tables, tr)
	result.CompletedAt = time.Now()
	result.Status = computeOverallStatus(result.Tables)
	return result, nil
}

func (v *Validator) notify(table, checkType string, passed bool) {
	if v.Callback != nil {
		v.Callback(table, checkType, passed)
	}
}

func computeOverallStatus(tables []TableResult) string {
	if len(tables) == 0 {
		return "PASS"
	}
	failCount := 0
	for _, t := range tables {
		if t.Status == "FAIL" {
			failCount++
		}
	}
	if failCount == 0 {
		return "PASS"
	}
	if failCount == len(tables) {
		return "FAIL"
	}
	return "PARTIAL"
}
