package httpapi

import (
	"regexp"
	"strconv"
	"time"
)

var (
	lastNDaysPattern     = regexp.MustCompile(`^last-(\d+)-days$`)
	explicitRangePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})_to_(\d{4}-\d{2}-\d{2})$`)
)

const defaultRangeDays = 30

// ParseDateRange resolves the dashboard's date-range grammar
// (last-N-days, this-month, last-month, this-year, or an explicit
// YYYY-MM-DD_to_YYYY-MM-DD span) against now, in now's location. Anything
// it doesn't recognize falls back to the last 30 days rather than erroring,
// per the external-interfaces contract.
func ParseDateRange(raw string, now time.Time) (time.Time, time.Time) {
	loc := now.Location()
	today := dayStart(now, loc)

	switch raw {
	case "this-month":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return start, dayEnd(today, loc)
	case "last-month":
		firstOfThisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		lastDayOfPriorMonth := firstOfThisMonth.AddDate(0, 0, -1)
		start := time.Date(lastDayOfPriorMonth.Year(), lastDayOfPriorMonth.Month(), 1, 0, 0, 0, 0, loc)
		return start, dayEnd(lastDayOfPriorMonth, loc)
	case "this-year":
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, loc)
		return start, dayEnd(today, loc)
	}

	if m := explicitRangePattern.FindStringSubmatch(raw); m != nil {
		start, err1 := time.ParseInLocation("2006-01-02", m[1], loc)
		end, err2 := time.ParseInLocation("2006-01-02", m[2], loc)
		if err1 == nil && err2 == nil && !end.Before(start) {
			return dayStart(start, loc), dayEnd(end, loc)
		}
	}

	if m := lastNDaysPattern.FindStringSubmatch(raw); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return today.AddDate(0, 0, -(n - 1)), dayEnd(today, loc)
		}
	}

	return today.AddDate(0, 0, -(defaultRangeDays - 1)), dayEnd(today, loc)
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func dayEnd(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999000000, loc)
}
