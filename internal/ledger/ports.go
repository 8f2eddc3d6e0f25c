package ledger

import "context"

// Header is the fixed column set of every monthly partition, in canonical
// order.
var Header = []string{"Amount", "Date", "Type", "Notes", "Category"}

// Store is the outbound port to the remote tabular ledger. Row indexes are
// 1-based and include the header row, matching spreadsheet conventions; the
// first data row is index 2.
//
// Implementations: sheets/google (Google Sheets), storage (SQLite),
// sheets/memory (tests and local runs).
type Store interface {
	// ListPartitions returns existing partition titles.
	ListPartitions(ctx context.Context) ([]string, error)

	// CreatePartition creates an empty partition. Creating an existing
	// partition is a no-op.
	CreatePartition(ctx context.Context, title string) error

	// ReadHeader returns the current header row, empty if none was written.
	ReadHeader(ctx context.Context, title string) ([]string, error)

	// WriteHeader replaces the header row.
	WriteHeader(ctx context.Context, title string, header []string) error

	// FormatHeader applies the canonical header formatting (bold, centered).
	FormatHeader(ctx context.Context, title string) error

	// FreezeRows pins the first n rows.
	FreezeRows(ctx context.Context, title string, n int) error

	// AppendRow appends one data row after the last occupied row.
	AppendRow(ctx context.Context, title string, row []string) error

	// ReadRows returns all rows including the header.
	ReadRows(ctx context.Context, title string) ([][]string, error)

	// UpdateRow replaces the row at index in place.
	UpdateRow(ctx context.Context, title string, index int, row []string) error

	// DeleteRow removes the row at index entirely.
	DeleteRow(ctx context.Context, title string, index int) error
}
