package validation

import (
	"context"
	"fmt"
	"math"
)

// AggregateCheck holds the result of aggregate comparison.
type AggregateCheck struct {
	Match  bool              `json:"match"`
	Checks []AggregateDetail `json:"checks,omitempty"`
}

// AggregateDetail describes a single aggregate comparison.
type AggregateDetail struct {
	Type        string  `json:"type"` // "count_distinct" or "sum"
	Column      string  `json:"column"`
	BeforeValue float64 `json:"before_value"`
	AfterValue  float64 `json:"after_value"`
	Match       bool    `json:"match"`
}

// compareAggregates recomputes COUNT(DISTINCT key) and the sums of the
// numeric columns under their new names.
func (v *Validator) compareAggregates(ctx context.Context, t Target, before *Snapshot) (*AggregateCheck, error) {
	check := &AggregateCheck{Match: true}

	if t.Key != nil {
		distinct, err := v.Source.AggregateCountDistinct(ctx, t.After, t.Key.After)
		if err != nil {
			return nil, fmt.Errorf("count distinct %s.%s: %w", t.After, t.Key.After, err)
		}
		match := distinct == before.DistinctKeys
		check.Checks = append(check.Checks, AggregateDetail{
			Type:        "count_distinct",
			Column:      t.Key.After,
			BeforeValue: float64(before.DistinctKeys),
			AfterValue:  float64(distinct),
			Match:       match,
		})
		if !match {
			check.Match = false
		}
	}

	for _, c := range t.Sums {
		sum, err := v.Source.AggregateSum(ctx, t.After, c.After)
		if err != nil {
			return nil, fmt.Errorf("sum %s.%s: %w", t.After, c.After, err)
		}
		want := before.Sums[c.Before]
		match := floatClose(want, sum)
		check.Checks = append(check.Checks, AggregateDetail{
			Type:        "sum",
			Column:      c.After,
			BeforeValue: want,
			AfterValue:  sum,
			Match:       match,
		})
		if !match {
			check.Match = false
		}
	}
	return check, nil
}

// floatClose checks if two floats are approximately equal (within 0.01% relative tolerance).
func floatClose(a, b float64) bool {
	if a == b {
		return true
	}
	if a == 0 || b == 0 {
		return math.Abs(a-b) < 0.01
	}
	return math.Abs(a-b)/math.Max(math.Abs(a), math.Abs(b)) < 0.0001
}
