package conn

import (
	"context"
	"strings"
)

// MockConn is a test double for Conn. It records every executed statement
// and fails statements whose text contains a FailOn key.
type MockConn struct {
	FailOn   map[string]error // substring of a statement -> error
	BeginErr    error
	QueryErr    error
	RollbackErr error
	// QueryFunc answers Query; nil returns no rows.
	QueryFunc func(query string, args []interface{}) ([]Row, error)

	Executed   []string // statements that succeeded, including rolled back ones
	Queries    []string
	Begun      int
	Committed  int
	RolledBack int
	Closed     bool
}

var _ Conn = (*MockConn)(nil)

func (m *MockConn) Exec(_ context.Context, query string) (int64, error) {
	for key, err := range m.FailOn {
		if strings.Contains(query, key) {
			return 0, err
		}
	}
	m.Executed = append(m.Executed, query)
	return 0, nil
}

func (m *MockConn) Query(_ context.Context, query string, args ...interface{}) ([]Row, error) {
	m.Queries = append(m.Queries, query)
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	if m.QueryFunc != nil {
		return m.QueryFunc(query, args)
	}
	return nil, nil
}

func (m *MockConn) Begin(_ context.Context) (Tx, error) {
	if m.BeginErr != nil {
		return nil, m.BeginErr
	}
	m.Begun++
	return &mockTx{conn: m}, nil
}

func (m *MockConn) Close() error {
	m.Closed = true
	return nil
}

type mockTx struct {
	conn *MockConn
	done bool
}

func (t *mockTx) Exec(ctx context.Context, query string) (int64, error) {
	return t.conn.Exec(ctx, query)
}

func (t *mockTx) Query(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	return t.conn.Query(ctx, query, args...)
}

func (t *mockTx) Commit() error {
	if !t.done {
		t.done = true
		t.conn.Committed++
	}
	return nil
}

func (t *mockTx) Rollback() error {
	if !t.done {
		t.done = true
		t.conn.RolledBack++
	}
	return t.conn.RollbackErr
}
