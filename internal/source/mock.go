package source

import (
	"context"
	"fmt"
)

// MockReader is a test double for the Reader interface.
type MockReader struct {
	RowCounts        map[string]int64
	RowCountErr      error
	Samples          map[string][]map[string]interface{}
	SampleErr        error
	Sums             map[string]float64 // key: "table.column"
	SumErr           error
	CountDistincts   map[string]int64 // key: "table.column"
	CountDistinctErr error

	// AfterCount, when set, is called after every RowCount. Tests use it
	// to change the data between a before and an after snapshot.
	AfterCount func(table string)
}

var _ Reader = (*MockReader)(nil)

func (m *MockReader) RowCount(_ context.Context, table string) (int64, error) {
	if m.RowCountErr != nil {
		return 0, m.RowCountErr
	}
	c, ok := m.RowCounts[table]
	if !ok {
		return 0, fmt.Errorf("no row count configured for table %s", table)
	}
	if m.AfterCount != nil {
		m.AfterCount(table)
	}
	return c, nil
}

func (m *MockReader) SampleRows(_ context.Context, table string, _ []string, _ string, limit int) ([]map[string]interface{}, error) {
	if m.SampleErr != nil {
		return nil, m.SampleErr
	}
	rows := m.Samples[table]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *MockReader) AggregateSum(_ context.Context, table, column string) (float64, error) {
	if m.SumErr != nil {
		return 0, m.SumErr
	}
	return m.Sums[table+"."+column], nil
}

func (m *MockReader) AggregateCountDistinct(_ context.Context, table, column string) (int64, error) {
	if m.CountDistinctErr != nil {
		return 0, m.CountDistinctErr
	}
	return m.CountDistincts[table+"."+column], nil
}
