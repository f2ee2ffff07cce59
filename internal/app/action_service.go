package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"paytrack/internal/domain/payment"
	"paytrack/internal/domain/schedule"
)

// Validation errors raised by the action service. They indicate a
// client-correctable condition, never a system failure, and no mutation is
// persisted before the triggering check.
var (
	ErrInvalidTransition = fmt.Errorf("invalid occurrence status transition")
	ErrNegativeAmount    = fmt.Errorf("amount must be non-negative")
	ErrPaymentActive     = fmt.Errorf("payment is already active")
)

// PaidOffResult reports a payment pay-off.
type PaidOffResult struct {
	PaymentID     int64
	PaidOffDate   time.Time
	CanceledCount int64
}

// PaymentRule carries the editable rule fields of a payment.
type PaymentRule struct {
	Name           string
	ExpectedAmount decimal.Decimal
	InitialDueDate time.Time
	Recurrence     schedule.RecurrenceType
	Priority       *int64
}

// ActionService mutates generated state: occurrence status transitions and
// the payment lifecycle actions that delete or regenerate future scheduled
// rows. Completed and skipped rows are history and are never touched.
type ActionService struct {
	payments    payment.Repository
	occurrences payment.OccurrenceRepository
	generation  *GenerationService
	logger      *logrus.Logger
}

func NewActionService(
	payments payment.Repository,
	occurrences payment.OccurrenceRepository,
	generation *GenerationService,
	logger *logrus.Logger,
) *ActionService {
	return &ActionService{
		payments:    payments,
		occurrences: occurrences,
		generation:  generation,
		logger:      logger,
	}
}

// MarkOccurrencePaid transitions an occurrence to completed. A completed
// occurrence may be re-marked to adjust the paid amount or date. When
// amountPaid is nil the expected amount is used; when paidDate is nil the
// payment is recorded as paid today.
func (s *ActionService) MarkOccurrencePaid(ctx context.Context, occurrenceID int64, today time.Time, amountPaid *decimal.Decimal, paidDate *time.Time) (*payment.Occurrence, error) {
	occ, err := s.occurrences.GetByID(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	if occ.Status != payment.StatusScheduled && occ.Status != payment.StatusCompleted {
		return nil, fmt.Errorf("%w: cannot mark paid from status %q", ErrInvalidTransition, occ.Status)
	}

	resolved := occ.ExpectedAmount
	if amountPaid != nil {
		resolved = *amountPaid
	}
	if resolved.IsNegative() {
		return nil, fmt.Errorf("%w: amount_paid", ErrNegativeAmount)
	}

	resolvedDate := schedule.DateOnly(today)
	if paidDate != nil {
		resolvedDate = schedule.DateOnly(*paidDate)
	}

	occ.Status = payment.StatusCompleted
	occ.AmountPaid = decimal.NewNullDecimal(resolved)
	occ.PaidDate.Time = resolvedDate
	occ.PaidDate.Valid = true
	if err := s.occurrences.Update(ctx, occ); err != nil {
		return nil, err
	}
	return occ, nil
}

// UndoMarkPaid reverts a completed occurrence to scheduled, clearing the
// paid amount and date.
func (s *ActionService) UndoMarkPaid(ctx context.Context, occurrenceID int64) (*payment.Occurrence, error) {
	occ, err := s.occurrences.GetByID(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	if occ.Status != payment.StatusCompleted {
		return nil, fmt.Errorf("%w: cannot undo mark paid from status %q", ErrInvalidTransition, occ.Status)
	}

	occ.Status = payment.StatusScheduled
	occ.AmountPaid = decimal.NullDecimal{}
	occ.PaidDate.Valid = false
	occ.PaidDate.Time = time.Time{}
	if err := s.occurrences.Update(ctx, occ); err != nil {
		return nil, err
	}
	return occ, nil
}

// SkipOccurrence transitions a scheduled occurrence to skipped. Skipped is
// terminal under normal flow; only a rule rebuild deleting the row brings
// the date back.
func (s *ActionService) SkipOccurrence(ctx context.Context, occurrenceID int64) (*payment.Occurrence, error) {
	occ, err := s.occurrences.GetByID(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	if occ.Status != payment.StatusScheduled {
		return nil, fmt.Errorf("%w: cannot skip from status %q", ErrInvalidTransition, occ.Status)
	}

	occ.Status = payment.StatusSkipped
	if err := s.occurrences.Update(ctx, occ); err != nil {
		return nil, err
	}
	return occ, nil
}

// MarkPaymentPaidOff deactivates a payment and cancels its scheduled
// occurrences with due dates on or after paidOffDate. Earlier rows and
// non-scheduled rows are untouched.
func (s *ActionService) MarkPaymentPaidOff(ctx context.Context, paymentID int64, paidOffDate time.Time) (*PaidOffResult, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	paidOffDate = schedule.DateOnly(paidOffDate)
	p.IsActive = false
	p.PaidOffDate.Time = paidOffDate
	p.PaidOffDate.Valid = true
	if err := s.payments.Update(ctx, p); err != nil {
		return nil, err
	}

	canceled, err := s.occurrences.CancelScheduledFrom(ctx, p.ID, paidOffDate)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id": p.ID,
		"canceled":   canceled,
	}).Info("payment marked paid off")
	return &PaidOffResult{PaymentID: p.ID, PaidOffDate: paidOffDate, CanceledCount: canceled}, nil
}

// ReactivatePayment sets a paid-off payment active again and regenerates its
// horizon from today forward. No deletion is needed: pay-off already
// canceled the future scheduled rows.
func (s *ActionService) ReactivatePayment(ctx context.Context, paymentID int64, today time.Time, horizonDays int) (*payment.Payment, *GenerationResult, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	if p.IsActive {
		return nil, nil, ErrPaymentActive
	}

	p.IsActive = true
	p.PaidOffDate.Valid = false
	p.PaidOffDate.Time = time.Time{}
	if err := s.payments.Update(ctx, p); err != nil {
		return nil, nil, err
	}

	result, err := s.generation.RegenerateForPayment(ctx, p, today, horizonDays)
	if err != nil {
		return nil, nil, err
	}
	return p, result, nil
}

// UpdatePaymentAndRebuild applies a new rule to the payment, deletes its
// future still-pending rows (status scheduled, due today or later) and
// regenerates them under the new rule. Completed, skipped and canceled rows
// keep their snapshotted amounts.
func (s *ActionService) UpdatePaymentAndRebuild(ctx context.Context, paymentID int64, rule PaymentRule, today time.Time, horizonDays int) (*payment.Payment, *GenerationResult, error) {
	if err := validatePaymentRule(rule); err != nil {
		return nil, nil, err
	}

	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}

	p.Name = rule.Name
	p.ExpectedAmount = rule.ExpectedAmount
	p.InitialDueDate = schedule.DateOnly(rule.InitialDueDate)
	p.Recurrence = rule.Recurrence
	p.Priority.Valid = rule.Priority != nil
	if rule.Priority != nil {
		p.Priority.Int64 = *rule.Priority
	}
	if err := s.payments.Update(ctx, p); err != nil {
		return nil, nil, err
	}

	today = schedule.DateOnly(today)
	deleted, err := s.occurrences.DeleteScheduledFrom(ctx, p.ID, today)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.generation.RegenerateForPayment(ctx, p, today, horizonDays)
	if err != nil {
		return nil, nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id":  p.ID,
		"deleted":     deleted,
		"regenerated": result.GeneratedCount,
	}).Info("payment rule updated and future occurrences rebuilt")
	return p, result, nil
}
