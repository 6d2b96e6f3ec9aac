package apportion

import (
	"math"
	"testing"

	"nebenkosten/internal/core"
)

const eps = 1e-6

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func period(m1, d1, m2, d2 int) core.Period {
	return core.Period{Start: core.NewDate(2024, m1, d1), End: core.NewDate(2024, m2, d2)}
}

func baseSnapshot() core.Snapshot {
	s := core.DefaultSnapshot(2024)
	s.Costs.PropertyTax = core.Some(120000)
	s.Costs.SharedCosts = core.Some(200000)
	s.Costs.Heating[0] = core.Some(60000)
	return s
}

func TestCalculate_FirstHalfScenario(t *testing.T) {
	s := baseSnapshot()
	s.TenantA = period(1, 1, 6, 30)

	res := Calculate(2024, s)
	if res.YearDays != 366 || len(res.Tenants) != 1 {
		t.Fatalf("unexpected result shape: %+v", res)
	}
	a := res.Tenants[0]
	if a.Days != 182 {
		t.Fatalf("days=%d want 182", a.Days)
	}
	if !near(a.PropertyTax, 1200.0*182/366) || core.FormatAmount(a.PropertyTax) != "596.72 €" {
		t.Errorf("property tax=%v", a.PropertyTax)
	}
	if !near(a.SharedCosts, 2000.0*182/366) || core.FormatAmount(a.SharedCosts) != "994.54 €" {
		t.Errorf("shared costs=%v", a.SharedCosts)
	}
	wantShare := 170.0 + 150 + 130 + 80 + 40 + 40.0/3
	if !near(a.WeightedShare, wantShare) {
		t.Errorf("weighted share=%v want %v", a.WeightedShare, wantShare)
	}
	if !near(a.Heating, 600*wantShare/1000) || core.FormatAmount(a.Heating) != "350.00 €" {
		t.Errorf("heating=%v", a.Heating)
	}
	if a.Basis.Method != MethodDegreeDay || a.Basis.Note() != "(Anteilig HGZ: 583.33)" {
		t.Errorf("basis=%+v note=%q", a.Basis, a.Basis.Note())
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %+v", res.Warnings)
	}
}

func TestCalculate_FullYearSingleTenantGetsEverything(t *testing.T) {
	s := baseSnapshot()
	s.TenantA = period(1, 1, 12, 31)

	a := Calculate(2024, s).Tenants[0]
	if !near(a.PropertyTax, 1200) || !near(a.SharedCosts, 2000) || !near(a.Heating, 600) {
		t.Fatalf("full-year tenant should carry full costs: %+v", a)
	}
}

func TestCalculate_PartitionedYearSumsToTotals(t *testing.T) {
	splits := [][2]core.Period{
		{period(1, 1, 6, 30), period(7, 1, 12, 31)},
		{period(1, 1, 2, 29), period(3, 1, 12, 31)},
		{period(1, 1, 1, 1), period(1, 2, 12, 31)},
	}
	for _, sp := range splits {
		s := baseSnapshot()
		s.HasTenantB = true
		s.TenantA, s.TenantB = sp[0], sp[1]

		res := Calculate(2024, s)
		a, b := res.Tenants[0], res.Tenants[1]
		if a.Days+b.Days != 366 {
			t.Errorf("%v/%v: days %d+%d", sp[0], sp[1], a.Days, b.Days)
		}
		if !near(a.PropertyTax+b.PropertyTax, 1200) {
			t.Errorf("%v/%v: property tax sum=%v", sp[0], sp[1], a.PropertyTax+b.PropertyTax)
		}
		if !near(a.SharedCosts+b.SharedCosts, 2000) {
			t.Errorf("%v/%v: shared sum=%v", sp[0], sp[1], a.SharedCosts+b.SharedCosts)
		}
		if !near(a.Heating+b.Heating, 600) {
			t.Errorf("%v/%v: heating sum=%v", sp[0], sp[1], a.Heating+b.Heating)
		}
	}
}

func TestCalculate_HeatingIncludedInShared(t *testing.T) {
	s := baseSnapshot()
	s.TenantA = period(1, 1, 12, 31)
	s.Heating.IncludedInShared = true

	res := Calculate(2024, s)
	if !near(res.EffectiveShared, 1400) || !near(res.Tenants[0].SharedCosts, 1400) {
		t.Fatalf("effective shared=%v tenant=%v", res.EffectiveShared, res.Tenants[0].SharedCosts)
	}
	if res.HasWarning(WarnHeatingExceedsShared) {
		t.Fatalf("no clamp expected")
	}
}

func TestCalculate_HeatingExceedsSharedIsClamped(t *testing.T) {
	s := baseSnapshot()
	s.TenantA = period(1, 1, 12, 31)
	s.Heating.IncludedInShared = true
	s.Costs.SharedCosts = core.Some(50000)

	res := Calculate(2024, s)
	if res.EffectiveShared != 0 {
		t.Fatalf("effective shared must be exactly 0, got %v", res.EffectiveShared)
	}
	if res.Tenants[0].SharedCosts != 0 {
		t.Fatalf("shared share must be 0, got %v", res.Tenants[0].SharedCosts)
	}
	if !res.HasWarning(WarnHeatingExceedsShared) {
		t.Fatalf("expected clamp warning, got %+v", res.Warnings)
	}
	if res.Warnings[0].Message != "Heizkosten (600.00 €) > Umlagekosten (500.00 €)!" {
		t.Errorf("message=%q", res.Warnings[0].Message)
	}

	// Without the flag nothing is subtracted.
	s.Heating.IncludedInShared = false
	res = Calculate(2024, s)
	if !near(res.EffectiveShared, 500) || res.HasWarning(WarnHeatingExceedsShared) {
		t.Fatalf("unexpected result without inclusion: %+v", res)
	}
}

func TestCalculate_DirectAssignmentSingleTenant(t *testing.T) {
	s := baseSnapshot()
	s.TenantA = period(3, 15, 9, 2)
	s.Costs.Heating[0] = core.Some(61234)
	s.Heating.PeriodsMatchTenancy = true

	res := Calculate(2024, s)
	a := res.Tenants[0]
	if a.Heating != 612.34 {
		t.Fatalf("heating must equal the entered amount exactly, got %v", a.Heating)
	}
	if a.Basis.Method != MethodDirect || a.Basis.Note() != "(Direkt Zeitraum 1)" {
		t.Fatalf("basis=%+v", a.Basis)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %+v", res.Warnings)
	}
}

func TestCalculate_DirectAssignmentTwoTenants(t *testing.T) {
	s := baseSnapshot()
	s.HasTenantB = true
	s.TenantA, s.TenantB = period(1, 1, 4, 30), period(5, 1, 12, 31)
	s.Heating.SubPeriodCount = 2
	s.Heating.PeriodsMatchTenancy = true
	s.Costs.Heating[0] = core.Some(45000)
	s.Costs.Heating[1] = core.Some(30000)

	res := Calculate(2024, s)
	if res.Tenants[0].Heating != 450 || res.Tenants[1].Heating != 300 {
		t.Fatalf("direct assignment failed: %+v", res.Tenants)
	}
	if res.Tenants[1].Basis.Note() != "(Direkt Zeitraum 2)" {
		t.Fatalf("note=%q", res.Tenants[1].Basis.Note())
	}
}

func TestCalculate_DirectAssignmentCountMismatchIsFlagged(t *testing.T) {
	s := baseSnapshot()
	s.HasTenantB = true
	s.TenantA, s.TenantB = period(1, 1, 6, 30), period(7, 1, 12, 31)
	s.Heating.SubPeriodCount = 1
	s.Heating.PeriodsMatchTenancy = true
	s.Costs.Heating[1] = core.Some(99900) // inactive field

	res := Calculate(2024, s)
	if !res.HasWarning(WarnPeriodCountMismatch) {
		t.Fatalf("expected mismatch warning")
	}
	if res.Tenants[0].Heating != 600 || res.Tenants[1].Heating != 0 {
		t.Fatalf("inactive sub-period must not be assigned: %+v", res.Tenants)
	}
}

func TestCalculate_ZeroDayTenantHasZeroShares(t *testing.T) {
	for _, match := range []bool{false, true} {
		s := baseSnapshot()
		s.TenantA = period(6, 30, 1, 1) // end before start
		s.Heating.PeriodsMatchTenancy = match

		a := Calculate(2024, s).Tenants[0]
		if a.Days != 0 || a.PropertyTax != 0 || a.SharedCosts != 0 || a.Heating != 0 || a.WeightedShare != 0 {
			t.Fatalf("match=%v: expected all-zero shares, got %+v", match, a)
		}
	}
}

func TestCalculate_AbsentAmountsAreZero(t *testing.T) {
	s := core.DefaultSnapshot(2024)
	s.TenantA = period(1, 1, 12, 31)

	res := Calculate(2024, s)
	a := res.Tenants[0]
	if a.PropertyTax != 0 || a.SharedCosts != 0 || a.Heating != 0 {
		t.Fatalf("absent amounts must compute as zero: %+v", a)
	}
	if a.Days != 366 {
		t.Fatalf("days=%d", a.Days)
	}
}

func TestCalculate_SubPeriodsSummedForDegreeDays(t *testing.T) {
	s := baseSnapshot()
	s.TenantA = period(1, 1, 12, 31)
	s.Heating.SubPeriodCount = 3
	s.Costs.Heating = [core.MaxHeatingPeriods]core.OptionalMoney{core.Some(10000), core.Some(20000), {}}

	res := Calculate(2024, s)
	if !near(res.TotalHeating, 300) || !near(res.Tenants[0].Heating, 300) {
		t.Fatalf("total=%v heating=%v", res.TotalHeating, res.Tenants[0].Heating)
	}
}

func TestCalculate_OverlappingTenancies(t *testing.T) {
	s := baseSnapshot()
	s.HasTenantB = true
	s.TenantA, s.TenantB = period(1, 1, 12, 31), period(1, 1, 12, 31)

	res := Calculate(2024, s)
	for _, ts := range res.Tenants {
		if !near(ts.PropertyTax, 1200) {
			t.Fatalf("each full-year tenant is prorated independently: %+v", ts)
		}
	}
}
