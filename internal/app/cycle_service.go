package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"paytrack/internal/domain/payment"
	"paytrack/internal/domain/schedule"
	"paytrack/internal/domain/settings"
)

// WhichCycle selects the cycle a snapshot covers.
type WhichCycle string

const (
	CycleCurrent WhichCycle = "current"
	CycleNext    WhichCycle = "next"
)

var ErrUnsupportedCycle = fmt.Errorf("unsupported cycle snapshot type")

// CycleSnapshot is the read model for one pay cycle: its occurrences
// (canceled rows excluded) and the total still scheduled.
type CycleSnapshot struct {
	Label           string
	CycleStart      time.Time
	CycleEnd        time.Time
	ScheduledAmount decimal.Decimal
	OccurrenceCount int
	Occurrences     []*payment.OccurrenceRow
}

// CycleService produces pay-cycle snapshot views from the configured anchor
// payday.
type CycleService struct {
	settings    settings.Repository
	occurrences payment.OccurrenceRepository
}

func NewCycleService(settings settings.Repository, occurrences payment.OccurrenceRepository) *CycleService {
	return &CycleService{settings: settings, occurrences: occurrences}
}

// CurrentCycle returns the pay cycle containing today, from the configured
// anchor payday.
func (s *CycleService) CurrentCycle(ctx context.Context, today time.Time) (schedule.PayCycle, error) {
	ps, _, err := s.settings.GetOrCreate(ctx)
	if err != nil {
		return schedule.PayCycle{}, err
	}
	return schedule.CycleForDate(today, ps.AnchorPaydayDate), nil
}

// Snapshot builds the occurrence view for the current or next cycle.
func (s *CycleService) Snapshot(ctx context.Context, today time.Time, which WhichCycle) (*CycleSnapshot, error) {
	current, err := s.CurrentCycle(ctx, today)
	if err != nil {
		return nil, err
	}

	var cycle schedule.PayCycle
	var label string
	switch which {
	case CycleCurrent:
		cycle = current
		label = "Current Cycle"
	case CycleNext:
		cycle = schedule.NextCycle(current)
		label = "Next Cycle Preview"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCycle, which)
	}

	rows, err := s.occurrences.ListInCycle(ctx, cycle.Start, cycle.End)
	if err != nil {
		return nil, err
	}

	scheduledAmount := decimal.Zero
	for _, row := range rows {
		if row.Status == payment.StatusScheduled {
			scheduledAmount = scheduledAmount.Add(row.ExpectedAmount)
		}
	}

	return &CycleSnapshot{
		Label:           label,
		CycleStart:      cycle.Start,
		CycleEnd:        cycle.End,
		ScheduledAmount: scheduledAmount,
		OccurrenceCount: len(rows),
		Occurrences:     rows,
	}, nil
}
