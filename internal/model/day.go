package model

import (
	"fmt"
	"time"
)

// DayLayout is the storage format for calendar days. Lexical order of
// the formatted strings matches chronological order, so range queries
// on day columns can be pushed to the database.
const DayLayout = "2006-01-02"

// DayOf formats t as a calendar day in loc.
func DayOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayLayout)
}

// ParseDay parses a stored day string as midnight in loc.
func ParseDay(day string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, day, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", day, err)
	}
	return t, nil
}

// AddDays shifts a day string by n calendar days.
func AddDays(day string, n int) (string, error) {
	t, err := time.Parse(DayLayout, day)
	if err != nil {
		return "", fmt.Errorf("parse day %q: %w", day, err)
	}
	return t.AddDate(0, 0, n).Format(DayLayout), nil
}

// DaysBetween returns the number of calendar days from a to b (b - a).
func DaysBetween(a, b string) (int, error) {
	ta, err := time.Parse(DayLayout, a)
	if err != nil {
		return 0, fmt.Errorf("parse day %q: %w", a, err)
	}
	tb, err := time.Parse(DayLayout, b)
	if err != nil {
		return 0, fmt.Errorf("parse day %q: %w", b, err)
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}
