package subscription

import (
	"math"
	"time"
)

// Day is the length of a billing day. Date math is done in UTC.
const Day = 24 * time.Hour

// AddTime adds n billing periods to from.
// Months are added calendar-wise: the day of month is clamped to the length of the
// target month, and the last day of a month maps to the last day of the target month
// (Jan 31 + 1 month = Feb 28/29, Feb 28 + 1 month = Mar 31 in non-leap years).
func AddTime(n int, period BillingPeriod, from time.Time) time.Time {
	if from.IsZero() {
		return from
	}
	switch period {
	case PeriodDay:
		return from.AddDate(0, 0, n)
	case PeriodWeek:
		return from.AddDate(0, 0, 7*n)
	case PeriodMonth:
		return addMonths(from, n)
	case PeriodYear:
		return addMonths(from, 12*n)
	}
	return from
}

func addMonths(from time.Time, n int) time.Time {
	y, m, d := from.Date()
	hh, mm, ss := from.Clock()
	lastDay := d == daysInMonth(y, m)

	target := time.Date(y, m+time.Month(n), 1, hh, mm, ss, from.Nanosecond(), from.Location())
	limit := daysInMonth(target.Year(), target.Month())
	if lastDay || d > limit {
		d = limit
	}
	return time.Date(target.Year(), target.Month(), d, hh, mm, ss, from.Nanosecond(), from.Location())
}

func daysInMonth(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysInCycle returns the average number of days in one billing cycle.
func DaysInCycle(period BillingPeriod, interval int) float64 {
	var days float64
	switch period {
	case PeriodDay:
		days = 1
	case PeriodWeek:
		days = 7
	case PeriodMonth:
		days = 30.4375
	case PeriodYear:
		days = 365.25
	}
	return days * float64(interval)
}

// DaysBetween returns the fractional number of days from a to b.
func DaysBetween(a, b time.Time) float64 {
	return b.Sub(a).Seconds() / Day.Seconds()
}

// RoundDays rounds a fractional day count half away from zero.
func RoundDays(days float64) int {
	return int(math.Round(days))
}

// SameDate reports whether a and b fall on the same UTC calendar day.
// Two zero times are considered equal.
func SameDate(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return a.IsZero() == b.IsZero()
	}
	return a.UTC().Format(time.DateOnly) == b.UTC().Format(time.DateOnly)
}
