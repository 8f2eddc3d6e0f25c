package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "kharcha.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestPartitionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreatePartition(ctx, "August 2025"); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Creating twice is a no-op.
	if err := repo.CreatePartition(ctx, "August 2025"); err != nil {
		t.Fatalf("create again: %v", err)
	}
	titles, err := repo.ListPartitions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(titles, []string{"August 2025"}) {
		t.Fatalf("titles = %v", titles)
	}

	header := []string{"Amount", "Date", "Type", "Notes", "Category"}
	if err := repo.WriteHeader(ctx, "August 2025", header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	got, err := repo.ReadHeader(ctx, "August 2025")
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if !reflect.DeepEqual(got, header) {
		t.Fatalf("header = %v", got)
	}
	if err := repo.FormatHeader(ctx, "August 2025"); err != nil {
		t.Fatalf("format: %v", err)
	}
	if err := repo.FreezeRows(ctx, "August 2025", 1); err != nil {
		t.Fatalf("freeze: %v", err)
	}
}

func TestEntryIndexing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	const title = "August 2025"

	if err := repo.CreatePartition(ctx, title); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.WriteHeader(ctx, title, []string{"Amount", "Date", "Type", "Notes", "Category"}); err != nil {
		t.Fatalf("write header: %v", err)
	}
	first := []string{"500", "2025-08-01", "Debit", "Milk", "Grocery"}
	second := []string{"80", "2025-08-02", "Debit", "Cab", "Travel"}
	for _, row := range [][]string{first, second} {
		if err := repo.AppendRow(ctx, title, row); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	rows, err := repo.ReadRows(ctx, title)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if !reflect.DeepEqual(rows[2], second) {
		t.Fatalf("row 3 = %v", rows[2])
	}

	edited := []string{"90", "2025-08-02", "Debit", "Auto", "Travel"}
	if err := repo.UpdateRow(ctx, title, 3, edited); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := repo.DeleteRow(ctx, title, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rows, err = repo.ReadRows(ctx, title)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 2 || !reflect.DeepEqual(rows[1], edited) {
		t.Fatalf("rows after edit+delete = %v", rows)
	}

	if err := repo.UpdateRow(ctx, title, 9, edited); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestBudgetCellsAndTargets(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.EnsureYear(ctx, 2025); err != nil {
		t.Fatalf("ensure year: %v", err)
	}
	if err := repo.EnsureYear(ctx, 2025); err != nil {
		t.Fatalf("ensure year again: %v", err)
	}

	if _, ok, err := repo.Cell(ctx, 2025, time.August, "Grocery"); err != nil || ok {
		t.Fatalf("empty cell: ok=%v err=%v", ok, err)
	}
	if err := repo.SetCell(ctx, 2025, time.August, "Grocery", 35000); err != nil {
		t.Fatalf("set cell: %v", err)
	}
	got, ok, err := repo.Cell(ctx, 2025, time.August, "Grocery")
	if err != nil || !ok || got != 35000 {
		t.Fatalf("cell = %d ok=%v err=%v", got, ok, err)
	}
	if err := repo.SetCell(ctx, 2025, time.August, "Grocery", 40000); err != nil {
		t.Fatalf("overwrite cell: %v", err)
	}
	got, _, _ = repo.Cell(ctx, 2025, time.August, "Grocery")
	if got != 40000 {
		t.Fatalf("cell after overwrite = %d", got)
	}

	targets, err := repo.Targets(ctx, 2025)
	if err != nil {
		t.Fatalf("targets: %v", err)
	}
	if targets["Rent"] != 1700000 {
		t.Fatalf("Rent target = %d", targets["Rent"])
	}
	if targets["Withdrawal"] != 0 {
		t.Fatalf("Withdrawal target = %d", targets["Withdrawal"])
	}
}
