package schedule

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentSpec carries the slice of a payment the scheduling engine needs.
// Services build it from the persisted Payment so this package stays free of
// storage concerns.
type PaymentSpec struct {
	PaymentID      int64
	Name           string
	ExpectedAmount decimal.Decimal
	InitialDueDate time.Time
	Recurrence     RecurrenceType
	IsActive       bool
}

// Seed is an in-memory, not-yet-persisted candidate occurrence. The expected
// amount is snapshotted from the payment at build time; later payment edits
// do not follow already-materialized rows.
type Seed struct {
	PaymentID      int64
	DueDate        time.Time
	ExpectedAmount decimal.Decimal
}

// BuildSeedsForPayment expands one payment's rule over [rangeStart, rangeEnd].
// Inactive payments produce no seeds.
func BuildSeedsForPayment(p PaymentSpec, rangeStart, rangeEnd time.Time) ([]Seed, error) {
	if !p.IsActive {
		return nil, nil
	}

	dueDates, err := GenerateDueDates(p.Recurrence, p.InitialDueDate, rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}

	seeds := make([]Seed, 0, len(dueDates))
	for _, due := range dueDates {
		seeds = append(seeds, Seed{
			PaymentID:      p.PaymentID,
			DueDate:        due,
			ExpectedAmount: p.ExpectedAmount,
		})
	}
	return seeds, nil
}

// BuildSeeds unions per-payment seeds and returns them sorted by
// (due date, payment id). Downstream cycle views and the generation diff
// rely on this ordering being deterministic; payment id breaks ties when two
// payments share a due date.
func BuildSeeds(payments []PaymentSpec, rangeStart, rangeEnd time.Time) ([]Seed, error) {
	var seeds []Seed
	for _, p := range payments {
		paymentSeeds, err := BuildSeedsForPayment(p, rangeStart, rangeEnd)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, paymentSeeds...)
	}

	sort.SliceStable(seeds, func(i, j int) bool {
		if !seeds[i].DueDate.Equal(seeds[j].DueDate) {
			return seeds[i].DueDate.Before(seeds[j].DueDate)
		}
		return seeds[i].PaymentID < seeds[j].PaymentID
	})
	return seeds, nil
}
