package schedule

import "time"

// All calendar math in this package works on "date-only" values: time.Time
// normalized to midnight UTC. Callers are expected to pass dates through
// DateOnly (or build them with Date) before comparing them with values
// returned here.

// Date builds a date-only value for the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOnly strips the clock and location from t, keeping the calendar day.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the number of calendar days from one date-only value
// to another. Negative when to precedes from.
func daysBetween(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}

// floorDiv divides rounding toward negative infinity, so day deltas before
// the anchor resolve to the cycle below it rather than rounding toward zero.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// mod returns a modulo b, always in [0, b).
func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
