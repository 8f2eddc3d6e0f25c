package google

import "testing"

func TestColumnLetter(t *testing.T) {
	cases := map[int]string{
		0:  "A",
		1:  "B",
		12: "M",
		25: "Z",
		26: "AA",
		27: "AB",
	}
	for idx, want := range cases {
		if got := columnLetter(idx); got != want {
			t.Errorf("columnLetter(%d) = %q, want %q", idx, got, want)
		}
	}
}

func TestCategoryColumn(t *testing.T) {
	col, ok := categoryColumn("Rent")
	if !ok || col != "B" {
		t.Fatalf("Rent column = %q ok=%v, want B", col, ok)
	}
	col, ok = categoryColumn("Emergency Fund")
	if !ok || col != "M" {
		t.Fatalf("Emergency Fund column = %q ok=%v, want M", col, ok)
	}
	if _, ok := categoryColumn("Income"); ok {
		t.Fatal("Income must not map to a budget column")
	}
}

func TestRowFromRange(t *testing.T) {
	cases := []struct {
		in   string
		row  int
		ok   bool
	}{
		{"'Budget 2025'!A5", 5, true},
		{"'Budget 2025'!A5:M5", 5, true},
		{"Sheet1!B12", 12, true},
		{"nonsense", 0, false},
	}
	for _, tc := range cases {
		row, ok := rowFromRange(tc.in)
		if row != tc.row || ok != tc.ok {
			t.Errorf("rowFromRange(%q) = %d,%v want %d,%v", tc.in, row, ok, tc.row, tc.ok)
		}
	}
}

func TestParseCellCents(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"0", 0, false},
		{"0.00", 0, false},
		{"500", 50000, false},
		{"1,580.50", 158050, false},
		{"abc", 0, true},
		{"-5", 0, true},
	}
	for _, tc := range cases {
		got, err := parseCellCents(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseCellCents(%q) err = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseCellCents(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestBudgetTitle(t *testing.T) {
	if got := budgetTitle(2025); got != "Budget 2025" {
		t.Fatalf("budgetTitle = %q", got)
	}
}
