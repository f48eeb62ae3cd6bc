// utils/clock.go
package utils

import (
	"fmt"
	"time"
)

// LoadLocation resolves the civil calendar used for streak days. Empty means UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// CivilDate drops the clock component of t as seen in t's own location and returns
// that calendar day at midnight UTC, the form dates are stored and compared in.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today is the current civil date in loc.
func Today(loc *time.Location) time.Time {
	return CivilDate(time.Now().In(loc))
}

// DaysBetween counts whole calendar days from a to b (negative when b is before a).
func DaysBetween(a, b time.Time) int {
	return int(CivilDate(b).Sub(CivilDate(a)).Hours() / 24)
}
