package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"paytrack/internal/domain/job"
	"paytrack/internal/domain/payment"
	"paytrack/internal/domain/schedule"
	idb "paytrack/internal/infra/database"
)

const (
	// DefaultGenerationHorizonDays is how far ahead of "today" occurrences
	// are materialized when the caller does not say otherwise.
	DefaultGenerationHorizonDays = 90

	// GenerateOccurrencesJobName is the job-run ledger name for the daily
	// generation pass.
	GenerateOccurrencesJobName = "generate_occurrences_ahead"
)

// GenerationResult reports one generation pass.
type GenerationResult struct {
	GeneratedCount       int
	SkippedExistingCount int
	RangeStart           time.Time
	RangeEnd             time.Time
}

// DailyGenerationResult wraps a generation pass behind the daily guard.
// Result is nil when another caller already claimed the day.
type DailyGenerationResult struct {
	Ran     bool
	JobName string
	RunDate time.Time
	Result  *GenerationResult
}

// GenerationService materializes occurrence rows from payment rules. It is
// idempotent: re-running over the same or an overlapping range never creates
// duplicates, and concurrent callers are reconciled through the storage
// uniqueness constraint rather than in-process locks.
type GenerationService struct {
	payments    payment.Repository
	occurrences payment.OccurrenceRepository
	jobs        job.Repository
	logger      *logrus.Logger
}

func NewGenerationService(
	payments payment.Repository,
	occurrences payment.OccurrenceRepository,
	jobs job.Repository,
	logger *logrus.Logger,
) *GenerationService {
	return &GenerationService{
		payments:    payments,
		occurrences: occurrences,
		jobs:        jobs,
		logger:      logger,
	}
}

func seedToOccurrence(seed schedule.Seed) *payment.Occurrence {
	return &payment.Occurrence{
		PaymentID:      seed.PaymentID,
		DueDate:        seed.DueDate,
		ExpectedAmount: seed.ExpectedAmount,
		Status:         payment.StatusScheduled,
	}
}

// GenerateAhead extends the occurrence horizon to [today, today+horizonDays]
// for every active payment.
func (s *GenerationService) GenerateAhead(ctx context.Context, today time.Time, horizonDays int) (*GenerationResult, error) {
	today = schedule.DateOnly(today)
	rangeStart := today
	rangeEnd := today.AddDate(0, 0, horizonDays)

	activePayments, err := s.payments.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active payments: %w", err)
	}

	specs := make([]schedule.PaymentSpec, 0, len(activePayments))
	for _, p := range activePayments {
		specs = append(specs, p.ScheduleSpec())
	}

	seeds, err := schedule.BuildSeeds(specs, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to build occurrence seeds: %w", err)
	}

	result, err := s.insertMissing(ctx, seeds, rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"generated": result.GeneratedCount,
		"skipped":   result.SkippedExistingCount,
		"range_end": rangeEnd.Format("2006-01-02"),
	}).Info("occurrence generation pass finished")
	return result, nil
}

// RegenerateForPayment rebuilds the horizon for a single payment, inserting
// only seeds not already present. Used by the payment-edit and reactivation
// flows after their delete/cancel step.
func (s *GenerationService) RegenerateForPayment(ctx context.Context, p *payment.Payment, today time.Time, horizonDays int) (*GenerationResult, error) {
	today = schedule.DateOnly(today)
	rangeStart := today
	rangeEnd := today.AddDate(0, 0, horizonDays)

	seeds, err := schedule.BuildSeedsForPayment(p.ScheduleSpec(), rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to build occurrence seeds for payment %d: %w", p.ID, err)
	}
	return s.insertMissing(ctx, seeds, rangeStart, rangeEnd)
}

// insertMissing diffs seeds against the persisted (payment_id, due_date)
// keys in the window and inserts the gap. Phase 1 is an optimistic bulk
// insert; on a uniqueness conflict (a concurrent writer landed between the
// diff and the insert) phase 2 replays row by row, committing successes and
// absorbing individual conflicts, so the final state matches a serial
// execution regardless of interleaving.
func (s *GenerationService) insertMissing(ctx context.Context, seeds []schedule.Seed, rangeStart, rangeEnd time.Time) (*GenerationResult, error) {
	result := &GenerationResult{RangeStart: rangeStart, RangeEnd: rangeEnd}
	if len(seeds) == 0 {
		return result, nil
	}

	existingKeys, err := s.occurrences.ListKeysInRange(ctx, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing occurrence keys: %w", err)
	}

	toInsert := make([]schedule.Seed, 0, len(seeds))
	for _, seed := range seeds {
		if _, exists := existingKeys[payment.KeyFor(seed.PaymentID, seed.DueDate)]; exists {
			continue
		}
		toInsert = append(toInsert, seed)
	}
	result.SkippedExistingCount = len(seeds) - len(toInsert)
	if len(toInsert) == 0 {
		return result, nil
	}

	rows := make([]*payment.Occurrence, 0, len(toInsert))
	for _, seed := range toInsert {
		rows = append(rows, seedToOccurrence(seed))
	}

	err = s.occurrences.BulkInsert(ctx, rows)
	if err == nil {
		result.GeneratedCount = len(toInsert)
		return result, nil
	}
	if !errors.Is(err, idb.ErrDuplicateOccurrence) {
		return nil, fmt.Errorf("failed to bulk insert occurrences: %w", err)
	}

	// Another caller inserted rows after the pre-check. Replay one at a time
	// and absorb the individual conflicts.
	s.logger.Warn("bulk occurrence insert hit a concurrent duplicate; replaying row by row")
	inserted := 0
	for _, seed := range toInsert {
		insertErr := s.occurrences.Insert(ctx, seedToOccurrence(seed))
		if insertErr == nil {
			inserted++
			continue
		}
		if errors.Is(insertErr, idb.ErrDuplicateOccurrence) {
			continue
		}
		return nil, fmt.Errorf("failed to insert occurrence for payment %d: %w", seed.PaymentID, insertErr)
	}
	result.GeneratedCount = inserted
	result.SkippedExistingCount += len(toInsert) - inserted
	return result, nil
}

// RunOncePerDay claims today in the job-run ledger and, only when the claim
// succeeds, runs a generation pass. Losing the claim is not an error; the
// result reports Ran=false.
func (s *GenerationService) RunOncePerDay(ctx context.Context, today time.Time, horizonDays int) (*DailyGenerationResult, error) {
	today = schedule.DateOnly(today)

	claimed, err := s.jobs.TryMarkRun(ctx, GenerateOccurrencesJobName, today)
	if err != nil {
		return nil, fmt.Errorf("failed to claim daily generation run: %w", err)
	}
	if !claimed {
		s.logger.WithField("run_date", today.Format("2006-01-02")).Debug("daily generation already ran")
		return &DailyGenerationResult{Ran: false, JobName: GenerateOccurrencesJobName, RunDate: today}, nil
	}

	result, err := s.GenerateAhead(ctx, today, horizonDays)
	if err != nil {
		return nil, err
	}
	return &DailyGenerationResult{
		Ran:     true,
		JobName: GenerateOccurrencesJobName,
		RunDate: today,
		Result:  result,
	}, nil
}
