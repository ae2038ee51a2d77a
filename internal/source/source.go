// Package source reads table data for verification queries: row counts
// and aggregates compared before and after an alteration.
package source

import "context"

// Reader provides read-only access to table data.
type Reader interface {
	RowCount(ctx context.Context, table string) (int64, error)
	AggregateSum(ctx context.Context, table, column string) (float64, error)
	AggregateCountDistinct(ctx context.Context, table, column string) (int64, error)
	SampleRows(ctx context.Context, table string, columns []string, orderBy string, limit int) ([]map[string]interface{}, error)
}
