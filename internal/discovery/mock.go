package discovery

import (
	"context"

	"github.com/tablewright/tablewright/internal/schema"
)

// MockReader serves descriptors from memory. Tables maps a table name to
// its descriptor; a missing name behaves like a table that does not exist.
type MockReader struct {
	DialectName string
	Tables      map[string]*schema.Table
	Inbound     map[string][]InboundReference
	Err         error
	Calls       int
}

var (
	_ Reader        = (*MockReader)(nil)
	_ InboundLister = (*MockReader)(nil)
)

func (m *MockReader) Dialect() string { return m.DialectName }

func (m *MockReader) table(table string) (*schema.Table, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Tables[table], nil
}

func (m *MockReader) ListColumns(_ context.Context, table string) ([]schema.Field, error) {
	t, err := m.table(table)
	if err != nil || t == nil {
		return nil, err
	}
	return append([]schema.Field(nil), t.Fields...), nil
}

func (m *MockReader) ListIndexes(_ context.Context, table string) ([]schema.Index, error) {
	t, err := m.table(table)
	if err != nil || t == nil {
		return nil, err
	}
	return append([]schema.Index(nil), t.Indexes...), nil
}

func (m *MockReader) ListForeignKeys(_ context.Context, table string) ([]schema.ForeignKey, error) {
	t, err := m.table(table)
	if err != nil || t == nil {
		return nil, err
	}
	return append([]schema.ForeignKey(nil), t.ForeignKeys...), nil
}

func (m *MockReader) ListTriggers(_ context.Context, table string) ([]schema.Trigger, error) {
	t, err := m.table(table)
	if err != nil || t == nil {
		return nil, err
	}
	return append([]schema.Trigger(nil), t.Triggers...), nil
}

// Describe returns a copy of the stored descriptor with its own slices.
func (m *MockReader) Describe(_ context.Context, table string) (*schema.Table, error) {
	t, err := m.table(table)
	if err != nil {
		return nil, err
	}
	if t == nil || len(t.Fields) == 0 {
		return nil, &TableNotFoundError{Table: table}
	}
	cp := *t
	cp.Fields = append([]schema.Field(nil), t.Fields...)
	cp.Indexes = append([]schema.Index(nil), t.Indexes...)
	cp.ForeignKeys = append([]schema.ForeignKey(nil), t.ForeignKeys...)
	cp.Triggers = append([]schema.Trigger(nil), t.Triggers...)
	if t.Checks != nil {
		cp.Checks = append([]schema.Check{}, t.Checks...)
	}
	return &cp, nil
}

func (m *MockReader) InboundForeignKeys(_ context.Context, table string) ([]InboundReference, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Inbound[table], nil
}
