// Package memory is an in-process calculation archive for development and tests.
package memory

import (
	"context"
	"sync"

	ports "nebenkosten/internal/sheets"
)

type Archive struct {
	mu   sync.Mutex
	rows map[int][]ports.CalculationRow
}

var (
	_ ports.CalculationArchiver = (*Archive)(nil)
	_ ports.EntryChecker        = (*Archive)(nil)
)

func New() *Archive {
	return &Archive{rows: make(map[int][]ports.CalculationRow)}
}

func (a *Archive) AppendCalculation(_ context.Context, year int, rows []ports.CalculationRow) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows[year] = append(a.rows[year], rows...)
	return nil
}

func (a *Archive) HasEntry(_ context.Context, year int, entryID string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range a.rows[year] {
		if r.EntryID == entryID {
			return true, nil
		}
	}
	return false, nil
}

// Rows returns a copy of the rows archived for year.
func (a *Archive) Rows(year int) []ports.CalculationRow {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ports.CalculationRow(nil), a.rows[year]...)
}
