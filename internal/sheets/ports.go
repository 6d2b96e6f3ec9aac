package sheets

import (
	"context"
	"time"
)

// CalculationRow is one tenant's line of an archived calculation.
// Amounts are pre-formatted euro strings with two decimals.
type CalculationRow struct {
	EntryID     string
	RecordedAt  time.Time
	Year        int
	Tenant      int
	Start       string
	End         string
	Days        int
	PropertyTax string
	SharedCosts string
	Heating     string
	Basis       string
	Warnings    string
}

// Ports for outbound adapters.
type (
	// CalculationArchiver appends the rows of one calculation to the archive
	// for its year.
	CalculationArchiver interface {
		AppendCalculation(ctx context.Context, year int, rows []CalculationRow) error
	}

	// EntryChecker reports whether an entry was already archived, so that
	// redelivered events are not written twice.
	EntryChecker interface {
		HasEntry(ctx context.Context, year int, entryID string) (bool, error)
	}
)

// Values renders the row in archive column order.
func (r CalculationRow) Values() []any {
	return []any{
		r.EntryID,
		r.RecordedAt.UTC().Format(time.RFC3339),
		r.Tenant,
		r.Start,
		r.End,
		r.Days,
		r.PropertyTax,
		r.SharedCosts,
		r.Heating,
		r.Basis,
		r.Warnings,
	}
}
