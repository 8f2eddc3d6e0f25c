// Package budget maintains the per-month, per-category running totals that
// sit next to the ledger.
//
// The aggregate is a derived cache over the ledger: it is updated
// incrementally on each debit append and can drift when ledger rows are
// edited or deleted. Reconcile recomputes a month from the partition rows;
// it is an explicit operation, never automatic.
package budget

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"kharcha/internal/classify"
	"kharcha/internal/core"
)

// DefaultTargetsTTL bounds how long the read-only target row is served from
// memory before re-reading the store.
const DefaultTargetsTTL = 5 * time.Minute

type Aggregator struct {
	store Store

	mu sync.Mutex // serializes read-add-write cycles on cells

	targetsMu  sync.Mutex
	targetsTTL time.Duration
	targets    map[int]targetsEntry
	now        func() time.Time
}

type targetsEntry struct {
	values    map[string]int64
	fetchedAt time.Time
}

func NewAggregator(store Store, targetsTTL time.Duration, now func() time.Time) *Aggregator {
	if targetsTTL <= 0 {
		targetsTTL = DefaultTargetsTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		store:      store,
		targetsTTL: targetsTTL,
		targets:    make(map[int]targetsEntry),
		now:        now,
	}
}

// Accumulate adds cents into the aggregate cell for (year, month, category).
// Categories without their own budget column are bucketed under the
// catch-all. A missing or non-numeric prior value counts as zero.
func (a *Aggregator) Accumulate(ctx context.Context, year int, month time.Month, category string, cents int64) error {
	if !classify.IsBudgetCategory(category) {
		category = classify.DefaultCategory
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.store.EnsureYear(ctx, year); err != nil {
		return fmt.Errorf("ensure budget year %d: %w", year, err)
	}
	current, _, err := a.store.Cell(ctx, year, month, category)
	if err != nil {
		return fmt.Errorf("read budget cell: %w", err)
	}
	if err := a.store.SetCell(ctx, year, month, category, current+cents); err != nil {
		return fmt.Errorf("write budget cell: %w", err)
	}
	slog.InfoContext(ctx, "Accumulated budget cell",
		"year", year,
		"month", month.String(),
		"category", category,
		"amount_cents", cents,
		"total_cents", current+cents)
	return nil
}

// Targets returns the fixed budget ceilings for the year, cached with a TTL:
// the target row is read-only configuration, not transaction state.
func (a *Aggregator) Targets(ctx context.Context, year int) (map[string]int64, error) {
	a.targetsMu.Lock()
	defer a.targetsMu.Unlock()

	if entry, ok := a.targets[year]; ok && a.now().Sub(entry.fetchedAt) < a.targetsTTL {
		return entry.values, nil
	}
	values, err := a.store.Targets(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("read budget targets: %w", err)
	}
	a.targets[year] = targetsEntry{values: values, fetchedAt: a.now()}
	return values, nil
}

// Reconcile rewrites the month's aggregate row from the partition rows,
// overwriting every category cell including zeroes. rows is the full
// partition content, header included.
func (a *Aggregator) Reconcile(ctx context.Context, year int, month time.Month, rows [][]string) error {
	sums := SumDebitsByCategory(rows)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.store.EnsureYear(ctx, year); err != nil {
		return fmt.Errorf("ensure budget year %d: %w", year, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, category := range classify.BudgetCategories() {
		g.Go(func() error {
			return a.store.SetCell(gctx, year, month, category, sums[category])
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("reconcile %s %d: %w", month, year, err)
	}
	slog.InfoContext(ctx, "Reconciled budget month",
		"year", year,
		"month", month.String(),
		"categories", len(classify.BudgetCategories()))
	return nil
}

// SumDebitsByCategory totals debit amounts per budget category over ledger
// rows (header included; non-debit and unparseable rows are skipped).
func SumDebitsByCategory(rows [][]string) map[string]int64 {
	sums := make(map[string]int64)
	for i, row := range rows {
		if i == 0 || len(row) < 5 {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(row[2]), string(core.Debit)) {
			continue
		}
		cents, err := core.ParseAmountToCents(row[0])
		if err != nil {
			continue
		}
		category := strings.TrimSpace(row[4])
		if !classify.IsBudgetCategory(category) {
			category = classify.DefaultCategory
		}
		sums[category] += cents
	}
	return sums
}
