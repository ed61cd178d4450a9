package contextutils

import "time"

// DateUTC truncates a timestamp to the start of its UTC calendar day.
// Daily score snapshots and streaks are keyed by UTC day.
func DateUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// SameUTCDay reports whether two timestamps fall on the same UTC calendar day.
func SameUTCDay(a, b time.Time) bool {
	return DateUTC(a).Equal(DateUTC(b))
}

// IsNextUTCDay reports whether b falls on the UTC day immediately after a.
func IsNextUTCDay(a, b time.Time) bool {
	return DateUTC(a).AddDate(0, 0, 1).Equal(DateUTC(b))
}
