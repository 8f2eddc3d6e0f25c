package classify

// Target is a monthly budget ceiling for one category, in cents.
type Target struct {
	Category string
	Cents    int64
}

// DefaultTargets defines the budget sheet column order and the fixed target
// row. Spending in categories outside this list (e.g. Income) is bucketed
// under the catch-all column by the aggregator.
var DefaultTargets = []Target{
	{"Rent", 1700000},
	{"Grocery", 1000000},
	{"Travel", 800000},
	{"Entertainment", 1000000},
	{"Investment", 2500000},
	{"Petrol", 200000},
	{"Gas & Water", 100000},
	{"Medicine", 300000},
	{"EB & EC", 300000},
	{"Others", 1500000},
	{"Withdrawal", 0},
	{"Emergency Fund", 2000000},
}

// BudgetCategories returns the ordered category columns of the budget sheet.
func BudgetCategories() []string {
	out := make([]string, len(DefaultTargets))
	for i, t := range DefaultTargets {
		out[i] = t.Category
	}
	return out
}

// IsBudgetCategory reports whether category has its own budget column.
func IsBudgetCategory(category string) bool {
	for _, t := range DefaultTargets {
		if t.Category == category {
			return true
		}
	}
	return false
}
