package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"paytrack/internal/domain/payment"
	"paytrack/internal/domain/schedule"
)

var (
	ErrEmptyPaymentName = fmt.Errorf("payment name must not be empty")
)

func validatePaymentRule(rule PaymentRule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return ErrEmptyPaymentName
	}
	if !rule.Recurrence.Valid() {
		return fmt.Errorf("%w: %q", schedule.ErrUnsupportedRecurrence, rule.Recurrence)
	}
	if rule.ExpectedAmount.IsNegative() {
		return fmt.Errorf("%w: expected_amount", ErrNegativeAmount)
	}
	return nil
}

// PaymentService handles payment rule creation and listing. Edits go through
// the ActionService so future scheduled occurrences are rebuilt alongside.
type PaymentService struct {
	payments payment.Repository
	logger   *logrus.Logger
}

func NewPaymentService(payments payment.Repository, logger *logrus.Logger) *PaymentService {
	return &PaymentService{payments: payments, logger: logger}
}

// Create validates and persists a new payment rule. New payments start
// active.
func (s *PaymentService) Create(ctx context.Context, rule PaymentRule) (*payment.Payment, error) {
	if err := validatePaymentRule(rule); err != nil {
		return nil, err
	}

	p := &payment.Payment{
		Name:           strings.TrimSpace(rule.Name),
		ExpectedAmount: rule.ExpectedAmount,
		InitialDueDate: schedule.DateOnly(rule.InitialDueDate),
		Recurrence:     rule.Recurrence,
		IsActive:       true,
	}
	if rule.Priority != nil {
		p.Priority = sql.NullInt64{Int64: *rule.Priority, Valid: true}
	}

	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"payment_id": p.ID,
		"recurrence": p.Recurrence,
	}).Info("payment created")
	return p, nil
}

// Get returns one payment by id.
func (s *PaymentService) Get(ctx context.Context, id int64) (*payment.Payment, error) {
	return s.payments.GetByID(ctx, id)
}

// List returns every payment, active first, then by name.
func (s *PaymentService) List(ctx context.Context) ([]*payment.Payment, error) {
	return s.payments.ListAll(ctx)
}
