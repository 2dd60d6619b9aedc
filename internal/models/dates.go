package models

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used for every stage date (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date as a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// FormatDate renders the calendar date of t, ignoring its time of day.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// AddDays adds a number of calendar days to a YYYY-MM-DD date.
func AddDays(date string, days int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return FormatDate(t.AddDate(0, 0, days)), nil
}

// DaysUntil returns the number of whole calendar days from the date of now until date.
// Dates in the past produce a negative count.
func DaysUntil(now time.Time, date string) (int, error) {
	t, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	today, _ := ParseDate(FormatDate(now))
	return int(t.Sub(today).Hours() / 24), nil
}
