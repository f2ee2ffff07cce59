package schedule

import "time"

// PayCycleLengthDays is the fixed length of a pay cycle.
const PayCycleLengthDays = 14

// PayCycle is a 14-day inclusive [Start, End] window aligned to an anchor
// payday date. Cycles tile the calendar: every date belongs to exactly one
// cycle, and the cycle containing the anchor starts exactly on the anchor.
type PayCycle struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether d falls inside the cycle, boundaries included.
func (c PayCycle) Contains(d time.Time) bool {
	d = DateOnly(d)
	return !d.Before(c.Start) && !d.After(c.End)
}

// CycleForDate returns the unique pay cycle containing target. Alignment is
// floor division of the day delta, so targets before the anchor resolve to
// the correct earlier cycle instead of rounding toward the anchor.
func CycleForDate(target, anchor time.Time) PayCycle {
	target = DateOnly(target)
	anchor = DateOnly(anchor)
	index := floorDiv(daysBetween(anchor, target), PayCycleLengthDays)
	start := anchor.AddDate(0, 0, index*PayCycleLengthDays)
	return PayCycle{Start: start, End: start.AddDate(0, 0, PayCycleLengthDays-1)}
}

// IsPayday reports whether target is a whole number of cycles away from the
// anchor payday.
func IsPayday(target, anchor time.Time) bool {
	return mod(daysBetween(DateOnly(anchor), DateOnly(target)), PayCycleLengthDays) == 0
}

// NextCycle returns the cycle immediately following c.
func NextCycle(c PayCycle) PayCycle {
	return PayCycle{
		Start: c.Start.AddDate(0, 0, PayCycleLengthDays),
		End:   c.End.AddDate(0, 0, PayCycleLengthDays),
	}
}
