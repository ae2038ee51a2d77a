package validation

import (
	"context"
	"fmt"
)

// RowCountCheck holds the result of a row count comparison.
type RowCountCheck struct {
	BeforeCount int64  `json:"before_count"`
	AfterCount  int64  `json:"after_count"`
	Match       bool   `json:"match"`
	Message     string `json:"message,omitempty"`
}

// compareRowCount counts the table's rows and compares them with the
// expected figure.
func (v *Validator) compareRowCount(ctx context.Context, table string, expected int64) (*RowCountCheck, error) {
	count, err := v.Source.RowCount(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("counting rows for %s: %w", table, err)
	}

	check := &RowCountCheck{
		BeforeCount: expected,
		AfterCount:  count,
		Match:       expected == count,
	}
	if !check.Match {
		check.Message = fmt.Sprintf("count mismatch: before=%d, after=%d (diff=%d)",
			expected, count, expected-count)
	}
	return check, nil
}
