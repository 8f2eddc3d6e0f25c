// Package ledger writes transactions into month-partitioned append-only
// storage.
//
// Each partition moves through three states: absent, provisioned (header
// written, formatted, frozen) and populated. Provisioning is idempotent and
// self-repairing: every access re-asserts the header content, formatting and
// frozen row, so a drifted partition is fixed on the next write. Provisioning
// and the subsequent mutation run as one critical section per partition.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"kharcha/internal/core"
)

type Writer struct {
	store Store
	retry RetryConfig
	loc   *time.Location
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewWriter(store Store, loc *time.Location, now func() time.Time, retry RetryConfig) *Writer {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig()
	}
	return &Writer{
		store: store,
		retry: retry,
		loc:   loc,
		now:   now,
		locks: make(map[string]*sync.Mutex),
	}
}

// partitionLock returns the mutex serializing provision+mutate for one
// partition.
func (w *Writer) partitionLock(title string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	m, ok := w.locks[title]
	if !ok {
		m = &sync.Mutex{}
		w.locks[title] = m
	}
	return m
}

// CurrentTitle returns the partition title for "now" in the reference
// timezone. Edit and delete operations are scoped to this partition.
func (w *Writer) CurrentTitle() string {
	return w.now().In(w.loc).Format("January 2006")
}

// Append persists tx into its month's partition, provisioning the partition
// first if needed.
func (w *Writer) Append(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	title := tx.PartitionTitle()
	lock := w.partitionLock(title)
	lock.Lock()
	defer lock.Unlock()

	if err := w.ensureProvisioned(ctx, title); err != nil {
		return err
	}
	if err := withRetry(ctx, w.retry, "append row", func() error {
		return w.store.AppendRow(ctx, title, tx.Row())
	}); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Appended ledger row",
		"partition", title,
		"amount_cents", tx.Amount.Cents,
		"category", tx.Category,
		"type", string(tx.Kind))
	return nil
}

// EditLast replaces the most recent data row of the current month's
// partition with tx. Returns core.ErrNoEntries when the partition has no
// data rows.
func (w *Writer) EditLast(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	title := w.CurrentTitle()
	lock := w.partitionLock(title)
	lock.Lock()
	defer lock.Unlock()

	if err := w.ensureProvisioned(ctx, title); err != nil {
		return err
	}
	last, err := w.lastRowIndex(ctx, title)
	if err != nil {
		return err
	}
	if err := withRetry(ctx, w.retry, "update row", func() error {
		return w.store.UpdateRow(ctx, title, last, tx.Row())
	}); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Replaced last ledger row", "partition", title, "row", last)
	return nil
}

// DeleteLast removes the most recent data row of the current month's
// partition and returns its contents. Returns core.ErrNoEntries when there
// is nothing to delete.
func (w *Writer) DeleteLast(ctx context.Context) ([]string, error) {
	title := w.CurrentTitle()
	lock := w.partitionLock(title)
	lock.Lock()
	defer lock.Unlock()

	if err := w.ensureProvisioned(ctx, title); err != nil {
		return nil, err
	}
	rows, err := w.readRows(ctx, title)
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return nil, core.ErrNoEntries
	}
	last := len(rows)
	removed := rows[last-1]
	if err := withRetry(ctx, w.retry, "delete row", func() error {
		return w.store.DeleteRow(ctx, title, last)
	}); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Deleted last ledger row", "partition", title, "row", last)
	return removed, nil
}

// ReadPartition returns all rows (header included) of the named partition.
// An absent partition reads as empty rather than erroring; reconciliation
// over a month with no entries is a valid request.
func (w *Writer) ReadPartition(ctx context.Context, title string) ([][]string, error) {
	titles, err := w.listPartitions(ctx)
	if err != nil {
		return nil, err
	}
	found := false
	for _, t := range titles {
		if t == title {
			found = true
			break
		}
	}
	if !found {
		return nil, nil
	}
	return w.readRows(ctx, title)
}

// ensureProvisioned drives the partition state machine: create when absent,
// then repair header content, formatting and the frozen row. Safe to call on
// every access.
func (w *Writer) ensureProvisioned(ctx context.Context, title string) error {
	titles, err := w.listPartitions(ctx)
	if err != nil {
		return err
	}
	exists := false
	for _, t := range titles {
		if t == title {
			exists = true
			break
		}
	}
	if !exists {
		if err := withRetry(ctx, w.retry, "create partition", func() error {
			return w.store.CreatePartition(ctx, title)
		}); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Created ledger partition", "partition", title)
	}

	var header []string
	if err := withRetry(ctx, w.retry, "read header", func() error {
		var rerr error
		header, rerr = w.store.ReadHeader(ctx, title)
		return rerr
	}); err != nil {
		return err
	}
	if !headerMatches(header) {
		if err := withRetry(ctx, w.retry, "write header", func() error {
			return w.store.WriteHeader(ctx, title, Header)
		}); err != nil {
			return fmt.Errorf("%w: repair header for %q: %v", core.ErrPartitionState, title, err)
		}
		slog.WarnContext(ctx, "Repaired drifted partition header", "partition", title)
	}
	if err := withRetry(ctx, w.retry, "format header", func() error {
		return w.store.FormatHeader(ctx, title)
	}); err != nil {
		return err
	}
	if err := withRetry(ctx, w.retry, "freeze header", func() error {
		return w.store.FreezeRows(ctx, title, 1)
	}); err != nil {
		return err
	}
	return nil
}

func headerMatches(header []string) bool {
	if len(header) != len(Header) {
		return false
	}
	for i, h := range header {
		if strings.TrimSpace(h) != Header[i] {
			return false
		}
	}
	return true
}

// lastRowIndex returns the highest-index data row, or core.ErrNoEntries.
func (w *Writer) lastRowIndex(ctx context.Context, title string) (int, error) {
	rows, err := w.readRows(ctx, title)
	if err != nil {
		return 0, err
	}
	if len(rows) <= 1 {
		return 0, core.ErrNoEntries
	}
	return len(rows), nil
}

func (w *Writer) readRows(ctx context.Context, title string) ([][]string, error) {
	var rows [][]string
	err := withRetry(ctx, w.retry, "read rows", func() error {
		var rerr error
		rows, rerr = w.store.ReadRows(ctx, title)
		return rerr
	})
	return rows, err
}

func (w *Writer) listPartitions(ctx context.Context) ([]string, error) {
	var titles []string
	err := withRetry(ctx, w.retry, "list partitions", func() error {
		var lerr error
		titles, lerr = w.store.ListPartitions(ctx)
		return lerr
	})
	return titles, err
}
