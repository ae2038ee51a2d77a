package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tablewright/tablewright/internal/conn"
	"github.com/tablewright/tablewright/internal/dialect"
)

// SQLReader implements Reader over the session connection, so counts see
// the same database state as the statements that ran on it.
type SQLReader struct {
	conn    conn.Execer
	dialect dialect.Dialect
	schema  string
}

var _ Reader = (*SQLReader)(nil)

// NewSQLReader creates a reader. schemaName qualifies table names when set.
func NewSQLReader(c conn.Execer, d dialect.Dialect, schemaName string) *SQLReader {
	return &SQLReader{conn: c, dialect: d, schema: schemaName}
}

func (r *SQLReader) table(name string) string {
	if r.schema == "" {
		return r.dialect.Quote(name)
	}
	return r.dialect.Quote(r.schema) + "." + r.dialect.Quote(name)
}

func (r *SQLReader) scalar(ctx context.Context, query string) (string, error) {
	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("no result")
	}
	return rows[0].String("v"), nil
}

func (r *SQLReader) RowCount(ctx context.Context, table string) (int64, error) {
	v, err := r.scalar(ctx, fmt.Sprintf("SELECT COUNT(*) AS v FROM %s", r.table(table)))
	if err != nil {
		return 0, fmt.Errorf("counting rows in %s: %w", table, err)
	}
	return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
}

func (r *SQLReader) AggregateSum(ctx context.Context, table, column string) (float64, error) {
	v, err := r.scalar(ctx, fmt.Sprintf("SELECT COALESCE(SUM(%s), 0) AS v FROM %s", r.dialect.Quote(column), r.table(table)))
	if err != nil {
		return 0, fmt.Errorf("summing %s.%s: %w", table, column, err)
	}
	return strconv.ParseFloat(strings.TrimSpace(v), 64)
}

func (r *SQLReader) AggregateCountDistinct(ctx context.Context, table, column string) (int64, error) {
	v, err := r.scalar(ctx, fmt.Sprintf("SELECT COUNT(DISTINCT %s) AS v FROM %s", r.dialect.Quote(column), r.table(table)))
	if err != nil {
		return 0, fmt.Errorf("counting distinct %s.%s: %w", table, column, err)
	}
	return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
}

// SampleRows returns up to limit rows ordered by orderBy. Each dialect
// spells the row limit differently.
func (r *SQLReader) SampleRows(ctx context.Context, table string, columns []string, orderBy string, limit int) ([]map[string]interface{}, error) {
	cols := "*"
	if len(columns) > 0 {
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = r.dialect.Quote(c)
		}
		cols = strings.Join(quoted, ", ")
	}
	order := ""
	if orderBy != "" {
		order = " ORDER BY " + r.dialect.Quote(orderBy)
	}

	var query string
	switch r.dialect.Name() {
	case "mssql":
		query = fmt.Sprintf("SELECT TOP %d %s FROM %s%s", limit, cols, r.table(table), order)
	case "oracle":
		query = fmt.Sprintf("SELECT %s FROM %s%s FETCH FIRST %d ROWS ONLY", cols, r.table(table), order, limit)
	default:
		query = fmt.Sprintf("SELECT %s FROM %s%s LIMIT %d", cols, r.table(table), order, limit)
	}

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sampling rows from %s: %w", table, err)
	}
	out := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		out[i] = row
	}
	return out, nil
}
