package schedule

import (
	"errors"
	"fmt"
	"time"
)

// RecurrenceType identifies how a payment repeats.
type RecurrenceType string

const (
	RecurrenceOneTime  RecurrenceType = "one_time"
	RecurrenceWeekly   RecurrenceType = "weekly"
	RecurrenceBiweekly RecurrenceType = "biweekly"
	RecurrenceMonthly  RecurrenceType = "monthly"
	RecurrenceYearly   RecurrenceType = "yearly"
)

// RecurrenceTypes lists every supported recurrence type.
var RecurrenceTypes = []RecurrenceType{
	RecurrenceOneTime,
	RecurrenceWeekly,
	RecurrenceBiweekly,
	RecurrenceMonthly,
	RecurrenceYearly,
}

// Valid reports whether rt is one of the supported recurrence types.
func (rt RecurrenceType) Valid() bool {
	switch rt {
	case RecurrenceOneTime, RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly, RecurrenceYearly:
		return true
	}
	return false
}

// ErrUnsupportedRecurrence is returned when a recurrence type outside the
// supported set reaches the engine. It is a validation failure, never
// silently ignored.
var ErrUnsupportedRecurrence = errors.New("unsupported recurrence type")

// GenerateDueDates expands one payment's recurrence rule into the sorted
// concrete due dates falling within [rangeStart, rangeEnd] (inclusive). The
// function is pure; an inverted range yields an empty result. No date before
// initialDue is ever emitted.
//
// Monthly rules fire on min(day-of-month(initialDue), days-in-month): a rule
// anchored on Jan 31 clamps to Feb 28 (or 29) and returns to the 31st in
// March rather than drifting. Yearly rules clamp Feb 29 the same way in
// non-leap years.
func GenerateDueDates(rt RecurrenceType, initialDue, rangeStart, rangeEnd time.Time) ([]time.Time, error) {
	initialDue = DateOnly(initialDue)
	rangeStart = DateOnly(rangeStart)
	rangeEnd = DateOnly(rangeEnd)

	if rangeEnd.Before(rangeStart) {
		return nil, nil
	}

	switch rt {
	case RecurrenceOneTime:
		if !initialDue.Before(rangeStart) && !initialDue.After(rangeEnd) {
			return []time.Time{initialDue}, nil
		}
		return nil, nil

	case RecurrenceWeekly:
		return fixedStepDates(initialDue, rangeStart, rangeEnd, 7), nil

	case RecurrenceBiweekly:
		return fixedStepDates(initialDue, rangeStart, rangeEnd, PayCycleLengthDays), nil

	case RecurrenceMonthly:
		var results []time.Time
		for offset := 0; ; offset++ {
			occurrence := monthlyOccurrence(initialDue, offset)
			if occurrence.After(rangeEnd) {
				break
			}
			if !occurrence.Before(initialDue) && !occurrence.Before(rangeStart) {
				results = append(results, occurrence)
			}
		}
		return results, nil

	case RecurrenceYearly:
		var results []time.Time
		for offset := 0; ; offset++ {
			occurrence := yearlyOccurrence(initialDue, offset)
			if occurrence.After(rangeEnd) {
				break
			}
			if !occurrence.Before(initialDue) && !occurrence.Before(rangeStart) {
				results = append(results, occurrence)
			}
		}
		return results, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnsupportedRecurrence, rt)
}

// fixedStepDates produces the arithmetic sequence anchored at initialDue
// with the given step, filtered to [rangeStart, rangeEnd].
func fixedStepDates(initialDue, rangeStart, rangeEnd time.Time, stepDays int) []time.Time {
	if rangeEnd.Before(rangeStart) || rangeEnd.Before(initialDue) {
		return nil
	}

	current := initialDue
	if rangeStart.After(initialDue) {
		delta := daysBetween(initialDue, rangeStart)
		steps := (delta + stepDays - 1) / stepDays
		current = initialDue.AddDate(0, 0, steps*stepDays)
	}

	var results []time.Time
	for !current.After(rangeEnd) {
		if !current.Before(rangeStart) {
			results = append(results, current)
		}
		current = current.AddDate(0, 0, stepDays)
	}
	return results
}

func daysInMonth(year int, month time.Month) int {
	// Day zero of the following month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// addMonths offsets a (year, month) pair without day-overflow normalization.
func addMonths(year int, month time.Month, offset int) (int, time.Month) {
	zeroBased := year*12 + int(month) - 1 + offset
	return zeroBased / 12, time.Month(zeroBased%12 + 1)
}

func monthlyOccurrence(initialDue time.Time, monthOffset int) time.Time {
	year, month := addMonths(initialDue.Year(), initialDue.Month(), monthOffset)
	dom := initialDue.Day()
	if max := daysInMonth(year, month); dom > max {
		dom = max
	}
	return Date(year, month, dom)
}

func yearlyOccurrence(initialDue time.Time, yearOffset int) time.Time {
	year := initialDue.Year() + yearOffset
	month := initialDue.Month()
	dom := initialDue.Day()
	if max := daysInMonth(year, month); dom > max {
		dom = max
	}
	return Date(year, month, dom)
}
