// Package parse implements the two message grammars and their disambiguation.
//
// Two input formats are accepted:
//
//	simple:  <amount> [<notes>...] <type>        e.g. "500 Tea d"
//	tagged:  a <amount> n <notes> t <type> [d <date>], tags in any order,
//	         tag letters may be glued to their value ("a500", "tc")
//
// A message is treated as tagged when it carries both an amount tag and a
// type tag as whole tokens; everything else falls back to the simple grammar.
// The two grammars are parsed independently so each stays testable on its own.
package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"kharcha/internal/core"
)

// Result is a normalized parse outcome. Date is the zero time when the
// message carried no date tag; the caller substitutes "now" in the reference
// timezone.
type Result struct {
	Amount core.Money
	Kind   core.Kind
	Notes  string
	Date   time.Time
	Tagged bool
}

// Parser holds the reference timezone and clock used for date defaults.
type Parser struct {
	loc *time.Location
	now func() time.Time
}

func New(loc *time.Location, now func() time.Time) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Parser{loc: loc, now: now}
}

// Per-token tag patterns. Matching is token-boundary aware: a tag either
// stands alone ("a 500") or is glued to a value of the right shape ("a500").
var (
	gluedAmountTag = regexp.MustCompile(`^[aA][0-9]`)
	gluedTypeTag   = regexp.MustCompile(`^[tT][cCdD]$`)
	gluedDateTag   = regexp.MustCompile(`^[dD][0-9]{1,2}[-/.][0-9]`)
	gluedNotesTag  = regexp.MustCompile(`^[nN][A-Za-z0-9]`)
	typeValue      = regexp.MustCompile(`^[cCdD]`)
	digitStart     = regexp.MustCompile(`^[0-9]`)
)

// Parse applies the grammar selection heuristic and runs exactly one grammar.
// Ambiguous inputs that satisfy both patterns are always parsed as tagged.
func (p *Parser) Parse(text string) (Result, error) {
	tokens := strings.Fields(text)
	if isTagged(tokens) {
		return p.parseTagged(tokens)
	}
	return p.parseSimple(tokens)
}

func isTagged(tokens []string) bool {
	var amount, typ bool
	for i, tok := range tokens {
		if gluedAmountTag.MatchString(tok) {
			amount = true
		}
		if gluedTypeTag.MatchString(tok) {
			typ = true
		}
		if i+1 < len(tokens) {
			next := tokens[i+1]
			if strings.EqualFold(tok, "a") && digitStart.MatchString(next) {
				amount = true
			}
			if strings.EqualFold(tok, "t") && typeValue.MatchString(next) {
				typ = true
			}
		}
	}
	return amount && typ
}

func (p *Parser) parseSimple(tokens []string) (Result, error) {
	if len(tokens) < 2 {
		return Result{}, core.ErrInvalidFormat
	}
	cents, err := core.ParseAmountToCents(tokens[0])
	if err != nil {
		// First token is not a number: the message matches neither grammar.
		return Result{}, core.ErrInvalidFormat
	}
	var kind core.Kind
	switch strings.ToLower(tokens[len(tokens)-1]) {
	case "d", "debit":
		kind = core.Debit
	case "c", "credit":
		kind = core.Credit
	default:
		return Result{}, core.ErrInvalidFormat
	}
	notes := core.SanitizeNotes(strings.Join(tokens[1:len(tokens)-1], " "))
	return Result{
		Amount: core.Money{Cents: cents},
		Kind:   kind,
		Notes:  notes,
	}, nil
}

func (p *Parser) parseTagged(tokens []string) (Result, error) {
	fields := scanTags(tokens)

	rawAmount := strings.Join(fields['a'], " ")
	if rawAmount == "" {
		return Result{}, core.ErrInvalidFormat
	}
	cents, err := core.ParseAmountToCents(rawAmount)
	if err != nil {
		return Result{}, fmt.Errorf("amount %q: %w", rawAmount, core.ErrInvalidAmount)
	}

	rawType := strings.Join(fields['t'], " ")
	if rawType == "" {
		return Result{}, core.ErrInvalidFormat
	}
	kind, err := core.ParseKind(rawType)
	if err != nil {
		return Result{}, err
	}

	notes := core.SanitizeNotes(strings.Join(fields['n'], " "))

	res := Result{
		Amount: core.Money{Cents: cents},
		Kind:   kind,
		Notes:  notes,
		Tagged: true,
	}

	// A present-but-malformed date tag rejects the whole message; it must not
	// silently fall back to today.
	if rawDate := strings.Join(fields['d'], " "); rawDate != "" {
		date, err := p.parseDate(rawDate)
		if err != nil {
			return Result{}, err
		}
		res.Date = date
	}
	return res, nil
}

// scanTags walks tokens left to right, switching the active tag whenever a
// token starts one, and collecting everything else as the active tag's value.
func scanTags(tokens []string) map[byte][]string {
	fields := make(map[byte][]string)
	var active byte
	for _, tok := range tokens {
		// A lone c/d right after a bare "t" is the type value, not a new tag.
		if active == 't' && len(fields['t']) == 0 && gluedTypeTag.MatchString("t"+tok) {
			fields['t'] = append(fields['t'], tok)
			continue
		}
		if tag, rest, ok := splitTag(tok); ok {
			// While notes are being captured, a word that merely starts with
			// n ("nice", "naan") belongs to the notes. Only a standalone
			// letter or a value-shaped tag ends the capture.
			if active == 'n' && tag == 'n' && rest != "" {
				fields['n'] = append(fields['n'], tok)
				continue
			}
			active = tag
			if rest != "" {
				fields[tag] = append(fields[tag], rest)
			}
			continue
		}
		if active != 0 {
			fields[active] = append(fields[active], tok)
		}
	}
	return fields
}

func splitTag(tok string) (byte, string, bool) {
	if len(tok) == 1 {
		switch tok[0] {
		case 'a', 'A':
			return 'a', "", true
		case 'n', 'N':
			return 'n', "", true
		case 't', 'T':
			return 't', "", true
		case 'd', 'D':
			return 'd', "", true
		}
		return 0, "", false
	}
	switch {
	case gluedAmountTag.MatchString(tok):
		return 'a', tok[1:], true
	case gluedTypeTag.MatchString(tok):
		return 't', tok[1:], true
	case gluedDateTag.MatchString(tok):
		return 'd', tok[1:], true
	case gluedNotesTag.MatchString(tok):
		return 'n', tok[1:], true
	}
	return 0, "", false
}

// parseDate accepts dd-mm-yyyy, dd-mm-yy (promoted by adding 2000) and dd-mm
// (current year in the reference timezone). Separators -, / and . are
// interchangeable. The date must be a real calendar date.
func (p *Parser) parseDate(raw string) (time.Time, error) {
	s := strings.NewReplacer("/", "-", ".", "-").Replace(strings.TrimSpace(raw))
	parts := strings.Split(s, "-")
	if len(parts) < 2 || len(parts) > 3 {
		return time.Time{}, fmt.Errorf("date %q: %w", raw, core.ErrInvalidDate)
	}
	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", raw, core.ErrInvalidDate)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", raw, core.ErrInvalidDate)
	}
	year := p.now().In(p.loc).Year()
	if len(parts) == 3 {
		y, err := strconv.Atoi(parts[2])
		if err != nil {
			return time.Time{}, fmt.Errorf("date %q: %w", raw, core.ErrInvalidDate)
		}
		switch len(parts[2]) {
		case 4:
			year = y
		case 2:
			year = 2000 + y
		default:
			return time.Time{}, fmt.Errorf("date %q: %w", raw, core.ErrInvalidDate)
		}
	}
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, fmt.Errorf("date %q: %w", raw, core.ErrInvalidDate)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, p.loc)
	// time.Date normalizes overflow (31-02 becomes 03-03); reject that.
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, fmt.Errorf("date %q: %w", raw, core.ErrInvalidDate)
	}
	return t, nil
}
