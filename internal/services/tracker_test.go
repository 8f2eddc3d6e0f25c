package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"kharcha/internal/budget"
	"kharcha/internal/classify"
	"kharcha/internal/core"
	"kharcha/internal/dupe"
	"kharcha/internal/ledger"
	"kharcha/internal/parse"
	"kharcha/internal/services"
	"kharcha/internal/sheets/memory"
)

var kolkata = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		panic(err)
	}
	return loc
}()

type fixture struct {
	tracker *services.Tracker
	store   *memory.Store
	clock   *fakeClock
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, time.August, 25, 12, 0, 0, 0, kolkata)}
	store := memory.New()
	retry := ledger.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	tracker := services.NewTracker(
		parse.New(kolkata, clock.Now),
		classify.Default(),
		dupe.New(30*time.Second, clock.Now),
		ledger.NewWriter(store, kolkata, clock.Now, retry),
		budget.NewAggregator(store, 0, clock.Now),
		nil,
		kolkata,
		clock.Now,
	)
	return &fixture{tracker: tracker, store: store, clock: clock}
}

func TestLogMessageSimpleDebit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conf, err := f.tracker.LogMessage(ctx, "alice", "500 milk d")
	if err != nil {
		t.Fatalf("log message: %v", err)
	}
	if conf.Amount != "500" || conf.Category != "Grocery" || conf.Type != "Debit" {
		t.Fatalf("confirmation = %+v", conf)
	}
	if conf.Date != "2025-08-25" {
		t.Fatalf("date = %q, want today in reference timezone", conf.Date)
	}

	rows, err := f.store.ReadRows(ctx, "August 2025")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}

	cents, ok, err := f.store.Cell(ctx, 2025, time.August, "Grocery")
	if err != nil || !ok || cents != 50000 {
		t.Fatalf("budget cell = %d ok=%v err=%v, want 50000", cents, ok, err)
	}
}

func TestLogMessageCreditSkipsBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conf, err := f.tracker.LogMessage(ctx, "alice", "a 5000 n salary t c")
	if err != nil {
		t.Fatalf("log message: %v", err)
	}
	if conf.Type != "Credit" || conf.Category != "Income" {
		t.Fatalf("confirmation = %+v", conf)
	}
	if _, ok, _ := f.store.Cell(ctx, 2025, time.August, "Others"); ok {
		t.Fatal("credits must not touch the budget aggregate")
	}
}

func TestLogMessageTaggedDateLandsInItsMonth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conf, err := f.tracker.LogMessage(ctx, "alice", "a 1580 n brush t d d 28-07-2025")
	if err != nil {
		t.Fatalf("log message: %v", err)
	}
	if conf.Date != "2025-07-28" {
		t.Fatalf("date = %q", conf.Date)
	}
	rows, err := f.store.ReadRows(ctx, "July 2025")
	if err != nil || len(rows) != 2 {
		t.Fatalf("July partition rows = %v err=%v", rows, err)
	}
	if cents, ok, _ := f.store.Cell(ctx, 2025, time.July, "Others"); !ok || cents != 158000 {
		t.Fatalf("July budget cell = %d ok=%v", cents, ok)
	}
}

func TestLogMessageDuplicateSuppressed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.tracker.LogMessage(ctx, "alice", "500 milk d"); err != nil {
		t.Fatalf("first message: %v", err)
	}
	_, err := f.tracker.LogMessage(ctx, "alice", "500 milk d")
	if !errors.Is(err, core.ErrDuplicateSuppressed) {
		t.Fatalf("err = %v, want ErrDuplicateSuppressed", err)
	}
	// A different sender is not affected.
	if _, err := f.tracker.LogMessage(ctx, "bob", "500 milk d"); err != nil {
		t.Fatalf("other sender: %v", err)
	}
	// After the window the same text is accepted again.
	f.clock.t = f.clock.t.Add(31 * time.Second)
	if _, err := f.tracker.LogMessage(ctx, "alice", "500 milk d"); err != nil {
		t.Fatalf("after window: %v", err)
	}
}

func TestLogMessageInvalidInputs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		text string
		want error
	}{
		{"hello there", core.ErrInvalidFormat},
		{"500 milk x", core.ErrInvalidFormat},
		{"a 0 n tea t d", core.ErrInvalidAmount},
		{"a 500 n tea t d d 31-02-2025", core.ErrInvalidDate},
	}
	for _, tc := range cases {
		_, err := f.tracker.LogMessage(ctx, "alice", tc.text)
		if !errors.Is(err, tc.want) {
			t.Errorf("%q: err = %v, want %v", tc.text, err, tc.want)
		}
	}
	// Failed messages must not occupy the duplicate slot.
	if _, err := f.tracker.LogMessage(ctx, "alice", "500 milk d"); err != nil {
		t.Fatalf("valid message after failures: %v", err)
	}
}

func TestEditLastBypassesDuplicateGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.tracker.LogMessage(ctx, "alice", "500 milk d"); err != nil {
		t.Fatalf("log message: %v", err)
	}
	conf, err := f.tracker.EditLast(ctx, "alice", "550 milk and bread d")
	if err != nil {
		t.Fatalf("edit last: %v", err)
	}
	if conf.Amount != "550" {
		t.Fatalf("confirmation = %+v", conf)
	}
	rows, err := f.store.ReadRows(ctx, "August 2025")
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != 2 || rows[1][0] != "550" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestDeleteLastThenEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.tracker.LogMessage(ctx, "alice", "500 milk d"); err != nil {
		t.Fatalf("log message: %v", err)
	}
	row, err := f.tracker.DeleteLast(ctx, "alice")
	if err != nil {
		t.Fatalf("delete last: %v", err)
	}
	if row[3] != "milk" {
		t.Fatalf("removed row = %v", row)
	}
	if _, err := f.tracker.DeleteLast(ctx, "alice"); !errors.Is(err, core.ErrNoEntries) {
		t.Fatalf("err = %v, want ErrNoEntries", err)
	}
}

func TestReconcileRepairsDriftAfterDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.tracker.LogMessage(ctx, "alice", "500 milk d"); err != nil {
		t.Fatalf("log message: %v", err)
	}
	if _, err := f.tracker.LogMessage(ctx, "alice", "250 rice d"); err != nil {
		t.Fatalf("log message: %v", err)
	}
	if _, err := f.tracker.DeleteLast(ctx, "alice"); err != nil {
		t.Fatalf("delete last: %v", err)
	}

	// The incremental aggregate still counts the deleted debit.
	cents, _, _ := f.store.Cell(ctx, 2025, time.August, "Grocery")
	if cents != 75000 {
		t.Fatalf("cell before reconcile = %d, want stale 75000", cents)
	}
	if err := f.tracker.Reconcile(ctx, 2025, time.August); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	cents, _, _ = f.store.Cell(ctx, 2025, time.August, "Grocery")
	if cents != 50000 {
		t.Fatalf("cell after reconcile = %d, want 50000", cents)
	}
}

func TestReconcileAbsentMonth(t *testing.T) {
	f := newFixture(t)
	if err := f.tracker.Reconcile(context.Background(), 2024, time.January); err != nil {
		t.Fatalf("reconcile of absent month: %v", err)
	}
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) PublishBudgetAccumulate(context.Context, int, time.Month, string, int64) error {
	p.calls++
	return errors.New("broker down")
}

func TestPublisherFailureDoesNotFailLogMessage(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, time.August, 25, 12, 0, 0, 0, kolkata)}
	store := memory.New()
	pub := &failingPublisher{}
	retry := ledger.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	tracker := services.NewTracker(
		parse.New(kolkata, clock.Now),
		classify.Default(),
		dupe.New(30*time.Second, clock.Now),
		ledger.NewWriter(store, kolkata, clock.Now, retry),
		budget.NewAggregator(store, 0, clock.Now),
		pub,
		kolkata,
		clock.Now,
	)

	if _, err := tracker.LogMessage(context.Background(), "alice", "500 milk d"); err != nil {
		t.Fatalf("log message: %v", err)
	}
	if pub.calls != 1 {
		t.Fatalf("publisher calls = %d, want 1", pub.calls)
	}
	// With a publisher wired, accumulation never runs inline.
	if _, ok, _ := store.Cell(context.Background(), 2025, time.August, "Grocery"); ok {
		t.Fatal("inline accumulation must not run when a publisher is set")
	}
}
