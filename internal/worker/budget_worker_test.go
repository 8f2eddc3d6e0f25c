package worker

import (
	"context"
	"testing"
	"time"

	"kharcha/internal/amqp"
	"kharcha/internal/budget"
	"kharcha/internal/sheets/memory"
)

func TestHandleAccumulate(t *testing.T) {
	store := memory.New()
	w := NewBudgetWorker(budget.NewAggregator(store, 0, nil))
	ctx := context.Background()

	msg := &amqp.BudgetAccumulateMessage{
		Year: 2025, Month: 8, Category: "Grocery", AmountCents: 50000,
	}
	if err := w.HandleAccumulate(ctx, msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := w.HandleAccumulate(ctx, msg); err != nil {
		t.Fatalf("handle again: %v", err)
	}

	cents, ok, err := store.Cell(ctx, 2025, time.August, "Grocery")
	if err != nil || !ok || cents != 100000 {
		t.Fatalf("cell = %d ok=%v err=%v", cents, ok, err)
	}
}

func TestHandleAccumulateRejectsBadMonth(t *testing.T) {
	w := NewBudgetWorker(budget.NewAggregator(memory.New(), 0, nil))
	msg := &amqp.BudgetAccumulateMessage{Year: 2025, Month: 13, Category: "Grocery", AmountCents: 100}
	if err := w.HandleAccumulate(context.Background(), msg); err == nil {
		t.Fatal("expected error for month 13")
	}
}

func TestHandleAccumulateDropsNonPositiveAmount(t *testing.T) {
	store := memory.New()
	w := NewBudgetWorker(budget.NewAggregator(store, 0, nil))
	msg := &amqp.BudgetAccumulateMessage{Year: 2025, Month: 8, Category: "Grocery", AmountCents: 0}
	if err := w.HandleAccumulate(context.Background(), msg); err != nil {
		t.Fatalf("zero amount must ack, got %v", err)
	}
	if _, ok, _ := store.Cell(context.Background(), 2025, time.August, "Grocery"); ok {
		t.Fatal("zero amount must not write a cell")
	}
}
