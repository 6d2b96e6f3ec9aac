package core

import (
	"errors"
	"fmt"
	"time"
)

// MaxHeatingPeriods is the number of heating-bill sub-periods a form can carry.
const MaxHeatingPeriods = 3

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// OptionalMoney is an amount that may have been left empty.
	// An unset amount is distinct from an explicit zero.
	OptionalMoney struct {
		Money
		Set bool
	}

	// Period is an inclusive tenancy range. A zero Start or End means the bound is missing.
	Period struct {
		Start Date
		End   Date
	}

	CostInputs struct {
		PropertyTax OptionalMoney
		SharedCosts OptionalMoney
		Heating     [MaxHeatingPeriods]OptionalMoney
	}

	HeatingConfig struct {
		IncludedInShared    bool
		SubPeriodCount      int // 1..3
		PeriodsMatchTenancy bool
	}

	// Snapshot is the complete input state of one calculation.
	Snapshot struct {
		TenantA    Period
		HasTenantB bool
		TenantB    Period
		Costs      CostInputs
		Heating    HeatingConfig
	}
)

var (
	ErrInvalidDay            = errors.New("invalid day")
	ErrInvalidMonth          = errors.New("invalid month")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrNegativeAmount        = errors.New("amount must not be negative")
	ErrInvalidSubPeriodCount = errors.New("heating sub-period count must be 1, 2 or 3")
	ErrDateOutsideYear       = errors.New("date outside reference year")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// IsEmpty reports whether the date was left blank.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// ISO formats the date as YYYY-MM-DD, or "" when empty.
func (d Date) ISO() string {
	if d.IsEmpty() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// ParseISODate parses YYYY-MM-DD. An empty string yields an empty Date.
func ParseISODate(s string) (Date, error) {
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// Some wraps a present amount.
func Some(cents int64) OptionalMoney {
	return OptionalMoney{Money: Money{Cents: cents}, Set: true}
}

// OrZero converts an absent amount to zero for arithmetic.
func (o OptionalMoney) OrZero() Money {
	if !o.Set {
		return Money{}
	}
	return o.Money
}

// Valid reports whether both bounds are present and Start <= End.
func (p Period) Valid() bool {
	if p.Start.IsEmpty() || p.End.IsEmpty() {
		return false
	}
	return !p.End.Before(p.Start.Time)
}

// Days returns the inclusive day count, or 0 for an invalid period.
func (p Period) Days() int {
	return OccupiedDayCount(p.Start, p.End)
}

// Clamp restricts the period to the given year. The result may be invalid
// when the period lies entirely outside the year.
func (p Period) Clamp(year int) Period {
	if !p.Valid() {
		return p
	}
	first, last := NewDate(year, 1, 1), NewDate(year, 12, 31)
	out := p
	if out.Start.Before(first.Time) {
		out.Start = first
	}
	if out.End.After(last.Time) {
		out.End = last
	}
	return out
}

func (p Period) String() string {
	return "[" + p.Start.ISO() + ", " + p.End.ISO() + "]"
}

// TotalHeating sums the active heating sub-period amounts.
func (s Snapshot) TotalHeating() Money {
	var total int64
	for i := 0; i < s.Heating.SubPeriodCount && i < MaxHeatingPeriods; i++ {
		total += s.Costs.Heating[i].OrZero().Cents
	}
	return Money{Cents: total}
}

// Tenants returns the active tenancy periods, tenant A first.
func (s Snapshot) Tenants() []Period {
	if s.HasTenantB {
		return []Period{s.TenantA, s.TenantB}
	}
	return []Period{s.TenantA}
}

// Validate checks the snapshot against the input-boundary rules for the given
// reference year. Invalid periods (end before start, missing bound) are allowed.
func (s Snapshot) Validate(year int) error {
	if s.Heating.SubPeriodCount < 1 || s.Heating.SubPeriodCount > MaxHeatingPeriods {
		return ErrInvalidSubPeriodCount
	}
	amounts := []OptionalMoney{s.Costs.PropertyTax, s.Costs.SharedCosts}
	amounts = append(amounts, s.Costs.Heating[:]...)
	for _, a := range amounts {
		if err := a.OrZero().Validate(); err != nil {
			return err
		}
	}
	for _, p := range s.Tenants() {
		for _, d := range []Date{p.Start, p.End} {
			if !d.IsEmpty() && d.Year() != year {
				return fmt.Errorf("%w: %s", ErrDateOutsideYear, d.ISO())
			}
		}
	}
	return nil
}

// DefaultSnapshot is the blank form for a reference year: tenant A for the
// first half, tenant B (inactive) for the second half, no amounts entered.
func DefaultSnapshot(year int) Snapshot {
	return Snapshot{
		TenantA: Period{Start: NewDate(year, 1, 1), End: NewDate(year, 6, 30)},
		TenantB: Period{Start: NewDate(year, 7, 1), End: NewDate(year, 12, 31)},
		Heating: HeatingConfig{SubPeriodCount: 1},
	}
}
