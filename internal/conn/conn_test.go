package conn

import (
	"context"
	"errors"
	"testing"
)

func TestRowAccessors(t *testing.T) {
	r := Row{
		"name":    []byte("id"),
		"n":       int64(7),
		"s":       "42",
		"f":       float64(3),
		"null":    nil,
		"yes":     "YES",
		"flag":    true,
		"no":      "NO",
		"numbool": int64(1),
	}
	if r.String("name") != "id" {
		t.Errorf("String(name) = %q", r.String("name"))
	}
	if r.String("null") != "" {
		t.Errorf("String(null) = %q", r.String("null"))
	}
	if r.NullString("null") != nil {
		t.Error("NullString(null) should be nil")
	}
	if p := r.NullString("s"); p == nil || *p != "42" {
		t.Errorf("NullString(s) = %v", p)
	}
	if r.Int("n") != 7 || r.Int("s") != 42 || r.Int("f") != 3 || r.Int("null") != 0 {
		t.Errorf("Int mismatch: %d %d %d", r.Int("n"), r.Int("s"), r.Int("f"))
	}
	if !r.Bool("yes") || !r.Bool("flag") || r.Bool("no") || !r.Bool("numbool") {
		t.Error("Bool mismatch")
	}
}

func TestMockConn_RecordsAndFails(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	m := &MockConn{FailOn: map[string]error{"DROP": boom}}

	if _, err := m.Exec(ctx, "ALTER TABLE t ADD c int"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if _, err := m.Exec(ctx, "DROP TABLE t"); !errors.Is(err, boom) {
		t.Errorf("expected injected error, got %v", err)
	}
	if len(m.Executed) != 1 {
		t.Errorf("Executed = %q", m.Executed)
	}
}

func TestMockConn_Transactions(t *testing.T) {
	ctx := context.Background()
	m := &MockConn{}
	tx, err := m.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO t VALUES (1)"); err != nil {
		t.Fatal(err)
	}
	tx.Rollback()
	tx.Commit()
	if m.Begun != 1 || m.RolledBack != 1 || m.Committed != 0 {
		t.Errorf("begun=%d rolled=%d committed=%d", m.Begun, m.RolledBack, m.Committed)
	}

	m.BeginErr = errors.New("no tx")
	if _, err := m.Begin(ctx); err == nil {
		t.Error("expected BeginErr")
	}
}

func TestMockConn_Query(t *testing.T) {
	m := &MockConn{QueryFunc: func(q string, args []interface{}) ([]Row, error) {
		return []Row{{"q": q, "arg": args[0]}}, nil
	}}
	rows, err := m.Query(context.Background(), "SELECT ?", "x")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].String("arg") != "x" {
		t.Errorf("rows = %v", rows)
	}
	if len(m.Queries) != 1 {
		t.Errorf("Queries = %q", m.Queries)
	}
}
