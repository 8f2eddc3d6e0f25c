package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

const (
	Debit  Kind = "Debit"
	Credit Kind = "Credit"
)

// PlaceholderNotes is substituted when a message carries no usable notes text,
// so persisted rows never have an empty Notes column.
const PlaceholderNotes = "Transaction"

type (
	Kind string

	Money struct {
		Cents int64
	}

	// Transaction is the unit of ledger truth: one parsed, normalized and
	// classified entry destined for a monthly partition.
	Transaction struct {
		Amount     Money
		OccurredOn time.Time
		Kind       Kind
		Notes      string
		Category   string
		Sender     string
	}

	// Confirmation is the structured success payload returned to the caller.
	Confirmation struct {
		Amount   string `json:"amount"`
		Notes    string `json:"notes"`
		Date     string `json:"date"`
		Category string `json:"category"`
		Type     string `json:"type"`
	}
)

var (
	ErrInvalidFormat       = errors.New("invalid message format")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidType         = errors.New("invalid transaction type")
	ErrInvalidDate         = errors.New("invalid date")
	ErrDuplicateSuppressed = errors.New("duplicate message suppressed")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrPartitionState      = errors.New("partition state error")
	ErrNoEntries           = errors.New("no entries to operate on")
	ErrEmptyCategory       = errors.New("empty category")
)

// ParseKind normalizes a type token: anything starting with d/D is Debit,
// c/C is Credit.
func ParseKind(tok string) (Kind, error) {
	tok = strings.TrimSpace(strings.ToLower(tok))
	switch {
	case strings.HasPrefix(tok, "d"):
		return Debit, nil
	case strings.HasPrefix(tok, "c"):
		return Credit, nil
	default:
		return "", ErrInvalidType
	}
}

func (k Kind) Valid() bool {
	return k == Debit || k == Credit
}

var (
	notesDisallowed = regexp.MustCompile(`[^A-Za-z0-9 ]`)
	notesSpaces     = regexp.MustCompile(`\s+`)
)

// SanitizeNotes restricts notes to letters, digits and single spaces. Empty
// results collapse to PlaceholderNotes.
func SanitizeNotes(s string) string {
	s = notesDisallowed.ReplaceAllString(s, " ")
	s = strings.TrimSpace(notesSpaces.ReplaceAllString(s, " "))
	if s == "" {
		return PlaceholderNotes
	}
	return s
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.OccurredOn.IsZero() {
		return ErrInvalidDate
	}
	if !t.Kind.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(t.Notes) == "" {
		return errors.New("empty notes")
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// PartitionTitle returns the monthly partition key, e.g. "August 2025".
func (t Transaction) PartitionTitle() string {
	return t.OccurredOn.Format("January 2006")
}

// DateString returns the date as stored in the ledger Date column.
func (t Transaction) DateString() string {
	return t.OccurredOn.Format("2006-01-02")
}

// Row returns the canonical ledger tuple in fixed column order.
func (t Transaction) Row() []string {
	return []string{FormatCents(t.Amount.Cents), t.DateString(), string(t.Kind), t.Notes, t.Category}
}

// Confirm builds the caller-facing payload for a saved transaction.
func (t Transaction) Confirm() Confirmation {
	return Confirmation{
		Amount:   FormatCentsDisplay(t.Amount.Cents),
		Notes:    t.Notes,
		Date:     t.DateString(),
		Category: t.Category,
		Type:     string(t.Kind),
	}
}
