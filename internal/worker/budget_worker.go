// Package worker applies queued budget accumulate messages to the budget
// aggregate.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kharcha/internal/amqp"
	"kharcha/internal/budget"
)

type BudgetWorker struct {
	agg *budget.Aggregator
}

func NewBudgetWorker(agg *budget.Aggregator) *BudgetWorker {
	return &BudgetWorker{agg: agg}
}

// HandleAccumulate processes a single budget accumulate message. A returned
// error causes a nack with requeue, so the store write is retried later.
func (w *BudgetWorker) HandleAccumulate(ctx context.Context, msg *amqp.BudgetAccumulateMessage) error {
	if msg.Month < 1 || msg.Month > 12 {
		return fmt.Errorf("invalid month %d in message", msg.Month)
	}
	if msg.AmountCents <= 0 {
		slog.WarnContext(ctx, "Dropping non-positive accumulate message",
			"category", msg.Category,
			"amount_cents", msg.AmountCents)
		return nil
	}

	slog.InfoContext(ctx, "Processing budget accumulate message",
		"year", msg.Year,
		"month", time.Month(msg.Month).String(),
		"category", msg.Category,
		"amount_cents", msg.AmountCents)

	if err := w.agg.Accumulate(ctx, msg.Year, time.Month(msg.Month), msg.Category, msg.AmountCents); err != nil {
		return fmt.Errorf("accumulate budget cell: %w", err)
	}
	return nil
}
