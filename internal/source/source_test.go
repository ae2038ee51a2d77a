package source

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/tablewright/tablewright/internal/conn"
	"github.com/tablewright/tablewright/internal/dialect"
)

func TestMockReader_RowCount(t *testing.T) {
	m := &MockReader{
		RowCounts: map[string]int64{
			"users":  1000,
			"orders": 5000,
		},
	}

	tests := []struct {
		table string
		want  int64
	}{
		{"users", 1000},
		{"orders", 5000},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			got, err := m.RowCount(context.Background(), tt.table)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("RowCount(%s) = %d, want %d", tt.table, got, tt.want)
			}
		})
	}
}

func TestMockReader_RowCount_Missing(t *testing.T) {
	m := &MockReader{RowCounts: map[string]int64{}}
	if _, err := m.RowCount(context.Background(), "missing"); err == nil {
		t.Error("expected error for missing table")
	}
}

func TestMockReader_Errors(t *testing.T) {
	boom := errors.New("boom")
	m := &MockReader{RowCountErr: boom, SumErr: boom, CountDistinctErr: boom, SampleErr: boom}
	ctx := context.Background()
	if _, err := m.RowCount(ctx, "t"); !errors.Is(err, boom) {
		t.Errorf("RowCount err = %v", err)
	}
	if _, err := m.AggregateSum(ctx, "t", "c"); !errors.Is(err, boom) {
		t.Errorf("AggregateSum err = %v", err)
	}
	if _, err := m.AggregateCountDistinct(ctx, "t", "c"); !errors.Is(err, boom) {
		t.Errorf("AggregateCountDistinct err = %v", err)
	}
	if _, err := m.SampleRows(ctx, "t", nil, "", 1); !errors.Is(err, boom) {
		t.Errorf("SampleRows err = %v", err)
	}
}

func TestSQLReader_SQLite(t *testing.T) {
	ctx := context.Background()
	c, err := conn.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "source.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	for _, stmt := range []string{
		`CREATE TABLE items (id INTEGER PRIMARY KEY, price REAL, tag TEXT)`,
		`INSERT INTO items (price, tag) VALUES (1.5, 'a'), (2.5, 'a'), (3, 'b')`,
	} {
		if _, err := c.Exec(ctx, stmt); err != nil {
			t.Fatal(err)
		}
	}

	r := NewSQLReader(c, dialect.NewSQLite(), "")
	n, err := r.RowCount(ctx, "items")
	if err != nil || n != 3 {
		t.Errorf("RowCount = %d, %v", n, err)
	}
	sum, err := r.AggregateSum(ctx, "items", "price")
	if err != nil || sum != 7 {
		t.Errorf("AggregateSum = %v, %v", sum, err)
	}
	distinct, err := r.AggregateCountDistinct(ctx, "items", "tag")
	if err != nil || distinct != 2 {
		t.Errorf("AggregateCountDistinct = %d, %v", distinct, err)
	}
	rows, err := r.SampleRows(ctx, "items", []string{"id", "tag"}, "id", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1]["tag"] != "a" {
		t.Errorf("SampleRows = %v", rows)
	}

	if _, err := r.RowCount(ctx, "missing"); err == nil {
		t.Error("expected error for missing table")
	}
}

func TestSQLReader_Queries(t *testing.T) {
	tests := []struct {
		d      dialect.Dialect
		schema string
		want   string
	}{
		{dialect.NewMySQL(), "", "SELECT `a` FROM `t` ORDER BY `a` LIMIT 5"},
		{dialect.NewPostgres(), "app", `SELECT "a" FROM "app"."t" ORDER BY "a" LIMIT 5`},
		{dialect.NewMSSQL(), "dbo", "SELECT TOP 5 [a] FROM [dbo].[t] ORDER BY [a]"},
		{dialect.NewOracle(), "", `SELECT "a" FROM "t" ORDER BY "a" FETCH FIRST 5 ROWS ONLY`},
	}
	for _, tt := range tests {
		t.Run(tt.d.Name(), func(t *testing.T) {
			mc := &conn.MockConn{}
			if _, err := NewSQLReader(mc, tt.d, tt.schema).SampleRows(context.Background(), "t", []string{"a"}, "a", 5); err != nil {
				t.Fatal(err)
			}
			if len(mc.Queries) != 1 || mc.Queries[0] != tt.want {
				t.Errorf("query = %v, want %q", mc.Queries, tt.want)
			}
		})
	}
}
