package core

// IsLeapYear uses the simplified every-fourth-year rule, without the
// century exception. Only single reference years are supported.
func IsLeapYear(year int) bool {
	return year%4 == 0
}

// DaysInMonth returns the number of days in month (1-12) of year.
func DaysInMonth(month, year int) int {
	switch month {
	case 2:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

// YearDays returns the number of days in year under the same leap rule as DaysInMonth.
func YearDays(year int) int {
	total := 0
	for m := 1; m <= 12; m++ {
		total += DaysInMonth(m, year)
	}
	return total
}

// OccupiedDayCount counts the days from start to end, both inclusive.
// It returns 0 when a bound is missing or end is before start.
func OccupiedDayCount(start, end Date) int {
	if start.IsEmpty() || end.IsEmpty() || end.Before(start.Time) {
		return 0
	}
	// Dates are UTC midnights, so the difference is a whole number of days.
	return int(end.Sub(start.Time).Hours()/24) + 1
}
