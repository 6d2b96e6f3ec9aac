// Package apportion splits a year's property tax, shared operating costs and
// heating costs between up to two tenants.
//
// Property tax and shared costs are prorated by occupied days. Heating is
// either prorated by the degree-day weighted share of each tenancy, or, when
// the heating bill's sub-periods coincide with the tenancies, assigned
// directly from the matching sub-period.
package apportion

import (
	"fmt"

	"nebenkosten/internal/core"
	"nebenkosten/internal/degreeday"
)

// WarningCode identifies a non-fatal condition found while apportioning.
type WarningCode string

const (
	// WarnHeatingExceedsShared: heating is included in shared costs but is
	// larger than them; the shared-cost basis was clamped to zero.
	WarnHeatingExceedsShared WarningCode = "heating_exceeds_shared"
	// WarnPeriodCountMismatch: direct heating assignment was requested but the
	// number of tenants differs from the number of heating sub-periods.
	// Sub-periods are still assigned by position.
	WarnPeriodCountMismatch WarningCode = "period_count_mismatch"
)

type Warning struct {
	Code    WarningCode
	Message string
}

// Method names the formula behind a heating share.
type Method string

const (
	MethodDirect    Method = "direct"
	MethodDegreeDay Method = "degree_day"
)

// Basis records how a heating share was obtained, for display and audit.
type Basis struct {
	Method        Method
	SubPeriod     int     // 1-based, MethodDirect only
	WeightedShare float64 // MethodDegreeDay only
}

// Note renders the basis as shown next to the heating share.
func (b Basis) Note() string {
	if b.Method == MethodDirect {
		return fmt.Sprintf("(Direkt Zeitraum %d)", b.SubPeriod)
	}
	return fmt.Sprintf("(Anteilig HGZ: %.2f)", b.WeightedShare)
}

// TenantShare is one tenant's part of each cost category.
type TenantShare struct {
	Tenant        int // 1 or 2
	Period        core.Period
	Days          int
	WeightedShare float64
	PropertyTax   float64
	SharedCosts   float64
	Heating       float64
	Basis         Basis
}

type Result struct {
	Year            int
	YearDays        int
	TotalHeating    float64
	EffectiveShared float64
	Tenants         []TenantShare
	Warnings        []Warning
}

// HasWarning reports whether the result carries the given warning.
func (r Result) HasWarning(code WarningCode) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// Calculate apportions the snapshot's costs for the reference year. Absent
// amounts count as zero; invalid periods count as zero occupancy. It never
// fails: problems are reported as warnings on the result.
func Calculate(year int, s core.Snapshot) Result {
	yearDays := core.YearDays(year)
	totalHeating := s.TotalHeating().Euros()
	propertyTax := s.Costs.PropertyTax.OrZero().Euros()
	shared := s.Costs.SharedCosts.OrZero().Euros()

	res := Result{
		Year:         year,
		YearDays:     yearDays,
		TotalHeating: totalHeating,
	}

	effectiveShared := shared
	if s.Heating.IncludedInShared {
		effectiveShared = shared - totalHeating
		if effectiveShared < 0 {
			res.Warnings = append(res.Warnings, Warning{
				Code: WarnHeatingExceedsShared,
				Message: fmt.Sprintf("Heizkosten (%s) > Umlagekosten (%s)!",
					core.FormatAmount(totalHeating), core.FormatAmount(shared)),
			})
			effectiveShared = 0
		}
	}
	res.EffectiveShared = effectiveShared

	tenants := s.Tenants()
	if s.Heating.PeriodsMatchTenancy && len(tenants) != s.Heating.SubPeriodCount {
		res.Warnings = append(res.Warnings, Warning{
			Code: WarnPeriodCountMismatch,
			Message: fmt.Sprintf("%d Mieter, aber %d Heizkosten-Zeiträume: Zuordnung erfolgt nach Reihenfolge",
				len(tenants), s.Heating.SubPeriodCount),
		})
	}

	for i, p := range tenants {
		st := degreeday.Stats(p, year)
		share := TenantShare{
			Tenant:        i + 1,
			Period:        p,
			Days:          st.Days,
			WeightedShare: st.WeightedShare,
			PropertyTax:   propertyTax / float64(yearDays) * float64(st.Days),
			SharedCosts:   effectiveShared / float64(yearDays) * float64(st.Days),
		}
		switch {
		case s.Heating.PeriodsMatchTenancy:
			// Positional: tenant i takes sub-period i. The date ranges are not compared.
			share.Basis = Basis{Method: MethodDirect, SubPeriod: i + 1}
			if st.Days > 0 {
				share.Heating = directHeating(s, i)
			}
		default:
			share.Heating = totalHeating * (st.WeightedShare / degreeday.Scale)
			share.Basis = Basis{Method: MethodDegreeDay, WeightedShare: st.WeightedShare}
		}
		res.Tenants = append(res.Tenants, share)
	}
	return res
}

// directHeating returns the i-th sub-period amount, or 0 when that sub-period
// is not active.
func directHeating(s core.Snapshot, i int) float64 {
	if i >= s.Heating.SubPeriodCount || i >= core.MaxHeatingPeriods {
		return 0
	}
	return s.Costs.Heating[i].OrZero().Euros()
}
