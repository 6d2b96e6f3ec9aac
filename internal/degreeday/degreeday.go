// Package degreeday weights heating costs by month using a fixed table of
// heating degree-days (Heizgradtage, HGZ).
package degreeday

import "nebenkosten/internal/core"

// Scale is the weighted share of a full year: the table sums to 1000, so a
// tenant's heating fraction is WeightedShare / Scale.
const Scale = 1000.0

// Table maps calendar month (index 1-12) to its relative heating intensity.
// The three summer months split 40 evenly. Index 0 is unused.
var Table = [13]float64{
	0,
	170, 150, 130, 80, 40,
	40.0 / 3, 40.0 / 3, 40.0 / 3,
	30, 80, 120, 160,
}

// OccupancyStats is the occupancy of one tenancy period within the reference year.
type OccupancyStats struct {
	Days          int
	WeightedShare float64
}

// DailyWeight is the share of its month's weight carried by a single day.
// Days outside the reference year weigh nothing.
func DailyWeight(d core.Date, year int) float64 {
	if d.IsEmpty() || d.Year() != year {
		return 0
	}
	m := d.Month()
	return Table[m] / float64(core.DaysInMonth(m, year))
}

// Stats walks the period day by day, so every month it crosses contributes
// its own per-day weight. Invalid or absent periods yield zero stats.
func Stats(p core.Period, year int) OccupancyStats {
	if !p.Valid() {
		return OccupancyStats{}
	}
	var st OccupancyStats
	for d := p.Start; !d.After(p.End.Time); d = d.AddDays(1) {
		if d.Year() != year {
			continue
		}
		st.Days++
		st.WeightedShare += DailyWeight(d, year)
	}
	return st
}

// TableTotal is the unscaled sum of the twelve monthly weights.
func TableTotal() float64 {
	total := 0.0
	for m := 1; m <= 12; m++ {
		total += Table[m]
	}
	return total
}
