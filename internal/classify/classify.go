// Package classify maps free-text notes to a fixed spending category.
//
// The taxonomy is an ordered list of (keyword, category) pairs scanned
// first-match over the lower-cased notes. Order is semantically significant:
// earlier entries win when notes contain several keywords. Do not replace the
// scan with longest-match or word-boundary matching; callers depend on the
// first-match priority.
package classify

import "strings"

// DefaultCategory is the catch-all for notes matching no keyword.
const DefaultCategory = "Others"

type Rule struct {
	Keyword  string
	Category string
}

// DefaultRules is the stock taxonomy, in priority order.
var DefaultRules = []Rule{
	{"rent", "Rent"},
	{"stock", "Investment"},
	{"insurance", "Investment"},
	{"gold", "Investment"},
	{"eb", "EB & EC"},
	{"ec", "EB & EC"},
	{"internet bill", "EB & EC"},
	{"recharge", "EB & EC"},
	{"withdrawal", "Withdrawal"},
	{"petrol", "Petrol"},
	{"bus", "Travel"},
	{"irctc", "Travel"},
	{"fasttag", "Travel"},
	{"car", "Travel"},
	{"gas", "Gas & Water"},
	{"water", "Gas & Water"},
	{"grocery", "Grocery"},
	{"flour", "Grocery"},
	{"chicken", "Grocery"},
	{"coconut", "Grocery"},
	{"food", "Entertainment"},
	{"snacks", "Entertainment"},
	{"trip", "Entertainment"},
	{"medicine", "Medicine"},
	{"medical", "Medicine"},
	{"rice", "Grocery"},
	{"oil", "Grocery"},
	{"flower", "Grocery"},
	{"income", "Income"},
	{"salary", "Income"},
	{"investment", "Investment"},
	{"milk", "Grocery"},
	{"tea", "Entertainment"},
	{"icecream", "Entertainment"},
	{"ef", "Emergency Fund"},
}

// Classifier performs the ordered first-match scan. It is immutable after
// construction; load it once at startup.
type Classifier struct {
	rules    []Rule
	fallback string
}

func New(rules []Rule, fallback string) *Classifier {
	if fallback == "" {
		fallback = DefaultCategory
	}
	return &Classifier{rules: append([]Rule(nil), rules...), fallback: fallback}
}

func Default() *Classifier {
	return New(DefaultRules, DefaultCategory)
}

// Categorize returns the category of the first keyword found as a substring
// of the lower-cased notes, or the fallback.
func (c *Classifier) Categorize(notes string) string {
	lower := strings.ToLower(notes)
	for _, r := range c.rules {
		if strings.Contains(lower, r.Keyword) {
			return r.Category
		}
	}
	return c.fallback
}
