package conn

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Row is one result row keyed by lower-cased column name.
type Row map[string]interface{}

// String returns the column as a string; NULL is "".
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// NullString returns the column as a string pointer; NULL is nil.
func (r Row) NullString(col string) *string {
	if r[col] == nil {
		return nil
	}
	s := r.String(col)
	return &s
}

// Int returns the column as an int64; NULL and unparsable values are 0.
func (r Row) Int(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case nil:
		return 0
	default:
		n, _ := strconv.ParseInt(strings.TrimSpace(r.String(col)), 10, 64)
		return n
	}
}

// Bool reports whether the column holds a true value (1, true, YES, Y).
func (r Row) Bool(col string) bool {
	if b, ok := r[col].(bool); ok {
		return b
	}
	switch strings.ToUpper(strings.TrimSpace(r.String(col))) {
	case "1", "TRUE", "YES", "Y", "T":
		return true
	}
	return false
}

// Execer runs statements and queries.
type Execer interface {
	// Exec runs one statement and returns the affected row count.
	Exec(ctx context.Context, query string) (int64, error)
	// Query runs a query and materializes every row.
	Query(ctx context.Context, query string, args ...interface{}) ([]Row, error)
}

// Conn is one reserved database connection.
type Conn interface {
	Execer
	Begin(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is a transaction on a Conn.
type Tx interface {
	Execer
	Commit() error
	Rollback() error
}

// queryer is satisfied by *sql.Conn and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func execOn(ctx context.Context, q queryer, query string) (int64, error) {
	res, err := q.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// DDL on some drivers reports no row count.
		return 0, nil
	}
	return n, nil
}

func queryOn(ctx context.Context, q queryer, query string, args ...interface{}) ([]Row, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}
	var out []Row
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[strings.ToLower(c)] = string(b)
			} else {
				row[strings.ToLower(c)] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
