// Package services wires the message pipeline: parse, classify, duplicate
// check, ledger write, budget accumulate.
package services

import (
	"context"
	"log/slog"
	"time"

	"kharcha/internal/budget"
	"kharcha/internal/classify"
	"kharcha/internal/core"
	"kharcha/internal/dupe"
	"kharcha/internal/ledger"
	"kharcha/internal/parse"
)

// BudgetPublisher hands a debit's budget contribution to the queue. Nil means
// accumulation runs inline against the aggregator.
type BudgetPublisher interface {
	PublishBudgetAccumulate(ctx context.Context, year int, month time.Month, category string, amountCents int64) error
}

type Tracker struct {
	parser     *parse.Parser
	classifier *classify.Classifier
	guard      *dupe.Guard
	writer     *ledger.Writer
	agg        *budget.Aggregator
	publisher  BudgetPublisher
	loc        *time.Location
	now        func() time.Time
}

func NewTracker(
	parser *parse.Parser,
	classifier *classify.Classifier,
	guard *dupe.Guard,
	writer *ledger.Writer,
	agg *budget.Aggregator,
	publisher BudgetPublisher,
	loc *time.Location,
	now func() time.Time,
) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		parser:     parser,
		classifier: classifier,
		guard:      guard,
		writer:     writer,
		agg:        agg,
		publisher:  publisher,
		loc:        loc,
		now:        now,
	}
}

// LogMessage runs the full pipeline for one chat message. The duplicate check
// happens after parsing, so malformed resubmissions never occupy the sender's
// slot. Budget accumulation is best-effort: a failure there is logged but the
// saved transaction is still confirmed.
func (t *Tracker) LogMessage(ctx context.Context, sender, text string) (core.Confirmation, error) {
	res, err := t.parser.Parse(text)
	if err != nil {
		return core.Confirmation{}, err
	}

	occurredOn := res.Date
	if occurredOn.IsZero() {
		n := t.now().In(t.loc)
		occurredOn = time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, t.loc)
	}

	tx := core.Transaction{
		Amount:     res.Amount,
		OccurredOn: occurredOn,
		Kind:       res.Kind,
		Notes:      res.Notes,
		Category:   t.classifier.Categorize(res.Notes),
		Sender:     sender,
	}
	if err := tx.Validate(); err != nil {
		return core.Confirmation{}, err
	}

	if !t.guard.CheckAndRecord(sender, text) {
		slog.InfoContext(ctx, "Suppressed duplicate message", "sender", sender)
		return core.Confirmation{}, core.ErrDuplicateSuppressed
	}

	if err := t.writer.Append(ctx, tx); err != nil {
		return core.Confirmation{}, err
	}

	if tx.Kind == core.Debit {
		t.accumulate(ctx, tx)
	}
	return tx.Confirm(), nil
}

func (t *Tracker) accumulate(ctx context.Context, tx core.Transaction) {
	year, month := tx.OccurredOn.Year(), tx.OccurredOn.Month()
	var err error
	if t.publisher != nil {
		err = t.publisher.PublishBudgetAccumulate(ctx, year, month, tx.Category, tx.Amount.Cents)
	} else {
		err = t.agg.Accumulate(ctx, year, month, tx.Category, tx.Amount.Cents)
	}
	if err != nil {
		// The ledger row is already written; the aggregate catches up on the
		// next reconcile.
		slog.ErrorContext(ctx, "Budget accumulation failed",
			"category", tx.Category,
			"amount_cents", tx.Amount.Cents,
			"error", err)
	}
}

// EditLast reparses text and replaces the most recent entry of the current
// month. The duplicate guard is not consulted: an edit is an explicit
// correction, resubmitting the same text is its point.
func (t *Tracker) EditLast(ctx context.Context, sender, text string) (core.Confirmation, error) {
	res, err := t.parser.Parse(text)
	if err != nil {
		return core.Confirmation{}, err
	}
	occurredOn := res.Date
	if occurredOn.IsZero() {
		n := t.now().In(t.loc)
		occurredOn = time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, t.loc)
	}
	tx := core.Transaction{
		Amount:     res.Amount,
		OccurredOn: occurredOn,
		Kind:       res.Kind,
		Notes:      res.Notes,
		Category:   t.classifier.Categorize(res.Notes),
		Sender:     sender,
	}
	if err := tx.Validate(); err != nil {
		return core.Confirmation{}, err
	}
	if err := t.writer.EditLast(ctx, tx); err != nil {
		return core.Confirmation{}, err
	}
	slog.InfoContext(ctx, "Edited last entry", "sender", sender, "category", tx.Category)
	return tx.Confirm(), nil
}

// DeleteLast removes the most recent entry of the current month and returns
// the removed row.
func (t *Tracker) DeleteLast(ctx context.Context, sender string) ([]string, error) {
	row, err := t.writer.DeleteLast(ctx)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Deleted last entry", "sender", sender)
	return row, nil
}

// Reconcile recomputes the (year, month) budget row from the ledger partition.
func (t *Tracker) Reconcile(ctx context.Context, year int, month time.Month) error {
	title := time.Date(year, month, 1, 0, 0, 0, 0, t.loc).Format("January 2006")
	rows, err := t.writer.ReadPartition(ctx, title)
	if err != nil {
		return err
	}
	return t.agg.Reconcile(ctx, year, month, rows)
}
