package budget

import (
	"context"
	"time"
)

// Store is the outbound port to the remote budget aggregate: one table per
// year with a column per category, a fixed target row, and one row per month
// holding running debit totals in cents.
type Store interface {
	// EnsureYear makes sure the year's aggregate table exists with its
	// header and target row. Idempotent.
	EnsureYear(ctx context.Context, year int) error

	// Cell returns the running total for (year, month, category). ok is
	// false when the month has no row yet or the cell is empty.
	Cell(ctx context.Context, year int, month time.Month, category string) (cents int64, ok bool, err error)

	// SetCell writes the running total for (year, month, category),
	// creating the month row lazily.
	SetCell(ctx context.Context, year int, month time.Month, category string, cents int64) error

	// Targets returns the fixed per-category budget ceilings for the year.
	Targets(ctx context.Context, year int) (map[string]int64, error)
}
