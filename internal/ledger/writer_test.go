package ledger_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/ledger"
	"kharcha/internal/sheets/memory"
)

var kolkata = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		panic(err)
	}
	return loc
}()

func fixedNow() time.Time {
	return time.Date(2025, time.August, 25, 12, 0, 0, 0, kolkata)
}

func testTx(cents int64, notes string) core.Transaction {
	return core.Transaction{
		Amount:     core.Money{Cents: cents},
		OccurredOn: time.Date(2025, time.August, 25, 0, 0, 0, 0, kolkata),
		Kind:       core.Debit,
		Notes:      notes,
		Category:   "Grocery",
		Sender:     "alice",
	}
}

func fastRetry() ledger.RetryConfig {
	return ledger.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestAppendProvisionsPartitionOnce(t *testing.T) {
	store := memory.New()
	w := ledger.NewWriter(store, kolkata, fixedNow, fastRetry())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := w.Append(ctx, testTx(50000, "Milk")); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	const title = "August 2025"
	if got := store.HeaderWrites(title); got != 1 {
		t.Fatalf("header writes = %d, want 1", got)
	}
	if !store.Formatted(title) {
		t.Fatal("header not formatted")
	}
	if got := store.FrozenRows(title); got != 1 {
		t.Fatalf("frozen rows = %d, want 1", got)
	}

	rows, err := store.ReadRows(ctx, title)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want header + 3", len(rows))
	}
	if !reflect.DeepEqual(rows[0], ledger.Header) {
		t.Fatalf("header row = %v", rows[0])
	}
	want := []string{"500", "2025-08-25", "Debit", "Milk", "Grocery"}
	if !reflect.DeepEqual(rows[1], want) {
		t.Fatalf("data row = %v, want %v", rows[1], want)
	}
}

func TestAppendRepairsDriftedHeader(t *testing.T) {
	store := memory.New()
	w := ledger.NewWriter(store, kolkata, fixedNow, fastRetry())
	ctx := context.Background()

	if err := w.Append(ctx, testTx(10000, "Tea")); err != nil {
		t.Fatalf("append: %v", err)
	}
	const title = "August 2025"
	store.SetHeader(title, []string{"amount", "when"})

	if err := w.Append(ctx, testTx(20000, "Coffee")); err != nil {
		t.Fatalf("append after drift: %v", err)
	}
	header, err := store.ReadHeader(ctx, title)
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if !reflect.DeepEqual(header, ledger.Header) {
		t.Fatalf("header = %v, want %v", header, ledger.Header)
	}
	if got := store.HeaderWrites(title); got != 2 {
		t.Fatalf("header writes = %d, want 2 (initial + repair)", got)
	}
}

func TestEditLastReplacesMostRecentRow(t *testing.T) {
	store := memory.New()
	w := ledger.NewWriter(store, kolkata, fixedNow, fastRetry())
	ctx := context.Background()

	if err := w.Append(ctx, testTx(10000, "Tea")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Append(ctx, testTx(20000, "Coffee")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.EditLast(ctx, testTx(25000, "Espresso")); err != nil {
		t.Fatalf("edit last: %v", err)
	}

	rows, err := store.ReadRows(ctx, "August 2025")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if rows[1][3] != "Tea" {
		t.Fatalf("first row touched: %v", rows[1])
	}
	if rows[2][0] != "250" || rows[2][3] != "Espresso" {
		t.Fatalf("last row = %v", rows[2])
	}
}

func TestEditLastEmptyPartition(t *testing.T) {
	store := memory.New()
	w := ledger.NewWriter(store, kolkata, fixedNow, fastRetry())

	err := w.EditLast(context.Background(), testTx(10000, "Tea"))
	if !errors.Is(err, core.ErrNoEntries) {
		t.Fatalf("err = %v, want ErrNoEntries", err)
	}
}

func TestDeleteLastReturnsRemovedRow(t *testing.T) {
	store := memory.New()
	w := ledger.NewWriter(store, kolkata, fixedNow, fastRetry())
	ctx := context.Background()

	if err := w.Append(ctx, testTx(10000, "Tea")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Append(ctx, testTx(20000, "Coffee")); err != nil {
		t.Fatalf("append: %v", err)
	}

	removed, err := w.DeleteLast(ctx)
	if err != nil {
		t.Fatalf("delete last: %v", err)
	}
	if removed[3] != "Coffee" {
		t.Fatalf("removed = %v, want the Coffee row", removed)
	}
	rows, err := store.ReadRows(ctx, "August 2025")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}

	if _, err := w.DeleteLast(ctx); err != nil {
		t.Fatalf("delete last: %v", err)
	}
	if _, err := w.DeleteLast(ctx); !errors.Is(err, core.ErrNoEntries) {
		t.Fatalf("err = %v, want ErrNoEntries on empty partition", err)
	}
}

func TestReadPartitionAbsentIsEmpty(t *testing.T) {
	store := memory.New()
	w := ledger.NewWriter(store, kolkata, fixedNow, fastRetry())

	rows, err := w.ReadPartition(context.Background(), "March 2020")
	if err != nil {
		t.Fatalf("read partition: %v", err)
	}
	if rows != nil {
		t.Fatalf("rows = %v, want nil for absent partition", rows)
	}
}

func TestAppendRejectsInvalidTransaction(t *testing.T) {
	store := memory.New()
	w := ledger.NewWriter(store, kolkata, fixedNow, fastRetry())

	tx := testTx(0, "Tea")
	if err := w.Append(context.Background(), tx); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
	titles, err := store.ListPartitions(context.Background())
	if err != nil {
		t.Fatalf("list partitions: %v", err)
	}
	if len(titles) != 0 {
		t.Fatal("invalid transaction must not provision a partition")
	}
}

// flakyStore fails AppendRow with a transient error a fixed number of times.
type flakyStore struct {
	*memory.Store
	remaining int
	calls     int
}

func (f *flakyStore) AppendRow(ctx context.Context, title string, row []string) error {
	f.calls++
	if f.remaining > 0 {
		f.remaining--
		return core.ErrStoreUnavailable
	}
	return f.Store.AppendRow(ctx, title, row)
}

func TestAppendRetriesTransientErrors(t *testing.T) {
	store := &flakyStore{Store: memory.New(), remaining: 2}
	w := ledger.NewWriter(store, kolkata, fixedNow, fastRetry())

	if err := w.Append(context.Background(), testTx(10000, "Tea")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if store.calls != 3 {
		t.Fatalf("append calls = %d, want 3", store.calls)
	}
}

func TestAppendExhaustsRetries(t *testing.T) {
	store := &flakyStore{Store: memory.New(), remaining: 10}
	w := ledger.NewWriter(store, kolkata, fixedNow, fastRetry())

	err := w.Append(context.Background(), testTx(10000, "Tea"))
	if !errors.Is(err, core.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want wrapped ErrStoreUnavailable", err)
	}
	if store.calls != 3 {
		t.Fatalf("append calls = %d, want MaxAttempts", store.calls)
	}
}

func TestIsTransient(t *testing.T) {
	if ledger.IsTransient(nil) {
		t.Fatal("nil is not transient")
	}
	if !ledger.IsTransient(core.ErrStoreUnavailable) {
		t.Fatal("ErrStoreUnavailable should be transient")
	}
	if ledger.IsTransient(core.ErrInvalidAmount) {
		t.Fatal("domain errors are not transient")
	}
}
