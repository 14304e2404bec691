// Package calendar works with local calendar dates in yyyy-mm-dd form.
package calendar

import (
	"fmt"
	"time"
)

// Layout is the date key format used for streak caches and heatmaps.
const Layout = "2006-01-02"

// Key returns the yyyy-mm-dd date of t in loc.
func Key(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(Layout)
}

// Parse parses a yyyy-mm-dd key as midnight in loc.
func Parse(key string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", key, err)
	}
	return t, nil
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays shifts a date key by n calendar days.
func AddDays(key string, n int) (string, error) {
	t, err := Parse(key, time.UTC)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(Layout), nil
}

// DaysBetween returns the number of calendar days from a to b (negative if b
// is before a). Both keys are compared as UTC dates so DST never skews the count.
func DaysBetween(a, b string) (int, error) {
	ta, err := Parse(a, time.UTC)
	if err != nil {
		return 0, err
	}
	tb, err := Parse(b, time.UTC)
	if err != nil {
		return 0, err
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}

// Valid reports whether key is a well-formed yyyy-mm-dd date.
func Valid(key string) bool {
	_, err := time.Parse(Layout, key)
	return err == nil
}
