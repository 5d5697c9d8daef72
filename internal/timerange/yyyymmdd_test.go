package timerange

import (
	"testing"
	"time"
)

func TestYYYYMMDDRoundTrip(t *testing.T) {
	d := time.Date(2024, 3, 7, 18, 45, 0, 0, time.UTC)
	n := ToYYYYMMDD(d)
	if n != 20240307 {
		t.Fatalf("ToYYYYMMDD = %d", n)
	}
	back := FromYYYYMMDD(n)
	if back.Year() != 2024 || back.Month() != time.March || back.Day() != 7 {
		t.Fatalf("FromYYYYMMDD = %v", back)
	}
}

func TestDaysApart(t *testing.T) {
	cases := []struct {
		a, b, want int
	}{
		{20240115, 20240118, 3},
		{20240118, 20240115, 3},
		{20240131, 20240201, 1},  // month boundary
		{20231229, 20240102, 4},  // year boundary
		{20240101, 20240111, 10},
		{20240115, 20240115, 0},
	}
	for _, tc := range cases {
		if got := DaysApart(tc.a, tc.b); got != tc.want {
			t.Fatalf("DaysApart(%d,%d) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
