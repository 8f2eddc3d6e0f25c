package core

import (
	"testing"
	"time"
)

func TestParseKind(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"d", Debit, true},
		{"D", Debit, true},
		{"debit", Debit, true},
		{"c", Credit, true},
		{"Credit", Credit, true},
		{"x", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseKind(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("ParseKind(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseKind(%q) expected error", tc.in)
		}
	}
}

func TestSanitizeNotes(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Tea", "Tea"},
		{"  Tea   time ", "Tea time"},
		{"EB & EC!!", "EB EC"},
		{"", PlaceholderNotes},
		{"@#$", PlaceholderNotes},
	}
	for _, tc := range cases {
		if got := SanitizeNotes(tc.in); got != tc.want {
			t.Fatalf("SanitizeNotes(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTransactionRow(t *testing.T) {
	tx := Transaction{
		Amount:     Money{Cents: 158000},
		OccurredOn: time.Date(2025, 8, 28, 0, 0, 0, 0, time.UTC),
		Kind:       Debit,
		Notes:      "Brush",
		Category:   "Others",
	}
	if err := tx.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := tx.PartitionTitle(); got != "August 2025" {
		t.Fatalf("PartitionTitle = %q", got)
	}
	row := tx.Row()
	want := []string{"1580", "2025-08-28", "Debit", "Brush", "Others"}
	if len(row) != len(want) {
		t.Fatalf("row length %d, want %d", len(row), len(want))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Fatalf("row[%d] = %q, want %q", i, row[i], want[i])
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	base := Transaction{
		Amount:     Money{Cents: 100},
		OccurredOn: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Kind:       Credit,
		Notes:      "Salary",
		Category:   "Income",
	}
	bads := []Transaction{
		func() Transaction { t := base; t.Amount.Cents = 0; return t }(),
		func() Transaction { t := base; t.OccurredOn = time.Time{}; return t }(),
		func() Transaction { t := base; t.Kind = "Transfer"; return t }(),
		func() Transaction { t := base; t.Notes = " "; return t }(),
		func() Transaction { t := base; t.Category = ""; return t }(),
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
