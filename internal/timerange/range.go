// Package timerange normalizes caller-supplied date windows into the
// canonical cache keys used by the timetable cache: either a full ISO
// calendar week or a day-bounded span.
package timerange

import (
	"fmt"
	"time"
)

// Spans covering at least this many calendar days (inclusive) snap to the
// ISO week containing the start date. Most real traffic asks for a visible
// week; snapping collapses near-duplicate windows (Mon-Fri vs Mon-Sun) onto
// one cache key.
const weekSnapDays = 5

// Normalize maps optional ISO date strings onto a canonical window.
// If either input is empty both bounds are nil and the caller falls back to
// an unscoped "today" request. Otherwise a span covering 5 or more calendar
// days becomes the ISO week (Monday 00:00:00.000 through Sunday 23:59:59.999)
// containing start, discarding the caller's exact end; shorter spans become
// [startOfDay(start), endOfDay(end)].
func Normalize(start, end string) (*time.Time, *time.Time, error) {
	if start == "" || end == "" {
		return nil, nil, nil
	}

	s, err := parseISODate(start)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	e, err := parseISODate(end)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	if e.Before(s) {
		return nil, nil, fmt.Errorf("%w: end %s before start %s", ErrInvalidRange, end, start)
	}

	spanDays := int(StartOfDay(e).Sub(StartOfDay(s))/(24*time.Hour)) + 1
	if spanDays >= weekSnapDays {
		ws, we := ISOWeekOf(s)
		return &ws, &we, nil
	}

	ds := StartOfDay(s)
	de := EndOfDay(e)
	return &ds, &de, nil
}

// ErrInvalidRange marks windows whose end precedes their start.
var ErrInvalidRange = fmt.Errorf("invalid range")

// ISOWeekOf returns the Monday 00:00:00.000 and Sunday 23:59:59.999 bounding
// the ISO week that contains t. A Sunday shifts backward six days to reach
// its Monday.
func ISOWeekOf(t time.Time) (time.Time, time.Time) {
	day := StartOfDay(t)
	offset := int(day.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7 // Sunday
	}
	monday := day.AddDate(0, 0, -offset)
	sunday := EndOfDay(monday.AddDate(0, 0, 6))
	return monday, sunday
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable millisecond of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 999_000_000, t.Location())
}

func parseISODate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("not an ISO date")
}
