package timerange

import "time"

// The upstream encodes calendar days as 8-digit YYYYMMDD integers. Homework
// and exam matching depends on this representation; conversion happens only
// at comparison boundaries.

// ToYYYYMMDD encodes t's calendar day as an 8-digit integer.
func ToYYYYMMDD(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// FromYYYYMMDD decodes an 8-digit integer into midnight UTC of that day.
// The zero value decodes to the zero time.
func FromYYYYMMDD(n int) time.Time {
	if n == 0 {
		return time.Time{}
	}
	y := n / 10000
	m := time.Month(n / 100 % 100)
	d := n % 100
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysApart returns the absolute distance in calendar days between two
// YYYYMMDD-encoded dates.
func DaysApart(a, b int) int {
	diff := FromYYYYMMDD(a).Sub(FromYYYYMMDD(b))
	if diff < 0 {
		diff = -diff
	}
	return int(diff / (24 * time.Hour))
}
