// Package memory is an in-process implementation of the ledger and budget
// store ports. It backs local runs and tests; header, formatting and frozen
// state are tracked explicitly so provisioning idempotence is observable.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kharcha/internal/classify"
)

type partition struct {
	header    []string
	formatted bool
	frozen    int
	rows      [][]string // data rows only
}

type budgetYear struct {
	targets map[string]int64
	cells   map[time.Month]map[string]int64
}

type Store struct {
	mu    sync.Mutex
	parts map[string]*partition
	order []string
	years map[int]*budgetYear

	// Call counters, readable in tests.
	headerWrites map[string]int
	freezeCalls  map[string]int
	formatCalls  map[string]int
}

func New() *Store {
	return &Store{
		parts:        make(map[string]*partition),
		years:        make(map[int]*budgetYear),
		headerWrites: make(map[string]int),
		freezeCalls:  make(map[string]int),
		formatCalls:  make(map[string]int),
	}
}

// --- ledger.Store ---

func (s *Store) ListPartitions(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...), nil
}

func (s *Store) CreatePartition(_ context.Context, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.parts[title]; ok {
		return nil
	}
	s.parts[title] = &partition{}
	s.order = append(s.order, title)
	return nil
}

func (s *Store) ReadHeader(_ context.Context, title string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.part(title)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), p.header...), nil
}

func (s *Store) WriteHeader(_ context.Context, title string, header []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.part(title)
	if err != nil {
		return err
	}
	p.header = append([]string(nil), header...)
	s.headerWrites[title]++
	return nil
}

func (s *Store) FormatHeader(_ context.Context, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.part(title)
	if err != nil {
		return err
	}
	p.formatted = true
	s.formatCalls[title]++
	return nil
}

func (s *Store) FreezeRows(_ context.Context, title string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.part(title)
	if err != nil {
		return err
	}
	p.frozen = n
	s.freezeCalls[title]++
	return nil
}

func (s *Store) AppendRow(_ context.Context, title string, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.part(title)
	if err != nil {
		return err
	}
	p.rows = append(p.rows, append([]string(nil), row...))
	return nil
}

func (s *Store) ReadRows(_ context.Context, title string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.part(title)
	if err != nil {
		return nil, err
	}
	var out [][]string
	if len(p.header) > 0 {
		out = append(out, append([]string(nil), p.header...))
	}
	for _, r := range p.rows {
		out = append(out, append([]string(nil), r...))
	}
	return out, nil
}

func (s *Store) UpdateRow(_ context.Context, title string, index int, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.part(title)
	if err != nil {
		return err
	}
	i := index - 2 // 1-based, row 1 is the header
	if i < 0 || i >= len(p.rows) {
		return fmt.Errorf("update row %d in %q: out of range", index, title)
	}
	p.rows[i] = append([]string(nil), row...)
	return nil
}

func (s *Store) DeleteRow(_ context.Context, title string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.part(title)
	if err != nil {
		return err
	}
	i := index - 2
	if i < 0 || i >= len(p.rows) {
		return fmt.Errorf("delete row %d in %q: out of range", index, title)
	}
	p.rows = append(p.rows[:i], p.rows[i+1:]...)
	return nil
}

func (s *Store) part(title string) (*partition, error) {
	p, ok := s.parts[title]
	if !ok {
		return nil, fmt.Errorf("partition %q not found", title)
	}
	return p, nil
}

// --- budget.Store ---

func (s *Store) EnsureYear(_ context.Context, year int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureYearLocked(year)
	return nil
}

func (s *Store) ensureYearLocked(year int) *budgetYear {
	y, ok := s.years[year]
	if !ok {
		targets := make(map[string]int64, len(classify.DefaultTargets))
		for _, t := range classify.DefaultTargets {
			targets[t.Category] = t.Cents
		}
		y = &budgetYear{
			targets: targets,
			cells:   make(map[time.Month]map[string]int64),
		}
		s.years[year] = y
	}
	return y
}

func (s *Store) Cell(_ context.Context, year int, month time.Month, category string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	y, ok := s.years[year]
	if !ok {
		return 0, false, nil
	}
	row, ok := y.cells[month]
	if !ok {
		return 0, false, nil
	}
	v, ok := row[category]
	return v, ok, nil
}

func (s *Store) SetCell(_ context.Context, year int, month time.Month, category string, cents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	y := s.ensureYearLocked(year)
	row, ok := y.cells[month]
	if !ok {
		row = make(map[string]int64)
		y.cells[month] = row
	}
	row[category] = cents
	return nil
}

func (s *Store) Targets(_ context.Context, year int) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	y := s.ensureYearLocked(year)
	out := make(map[string]int64, len(y.targets))
	for k, v := range y.targets {
		out[k] = v
	}
	return out, nil
}

// --- test inspection helpers ---

// HeaderWrites returns how often the partition's header row was rewritten.
func (s *Store) HeaderWrites(title string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headerWrites[title]
}

// FrozenRows returns the partition's current frozen-row setting.
func (s *Store) FrozenRows(title string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.parts[title]; ok {
		return p.frozen
	}
	return 0
}

// Formatted reports whether header formatting was applied.
func (s *Store) Formatted(title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.parts[title]; ok {
		return p.formatted
	}
	return false
}

// SetHeader overwrites a partition header directly, simulating drift.
func (s *Store) SetHeader(title string, header []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.parts[title]; ok {
		p.header = append([]string(nil), header...)
	}
}
