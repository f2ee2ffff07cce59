package payment

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"paytrack/internal/domain/schedule"
)

// Payment is a recurring (or one-time) bill definition. It owns the rule
// from which due occurrences are materialized.
type Payment struct {
	ID             int64
	Name           string
	ExpectedAmount decimal.Decimal
	InitialDueDate time.Time
	Recurrence     schedule.RecurrenceType
	Priority       sql.NullInt64
	IsActive       bool
	PaidOffDate    sql.NullTime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ScheduleSpec projects the payment into the shape the scheduling engine
// consumes, snapshotting the expected amount at call time.
func (p *Payment) ScheduleSpec() schedule.PaymentSpec {
	return schedule.PaymentSpec{
		PaymentID:      p.ID,
		Name:           p.Name,
		ExpectedAmount: p.ExpectedAmount,
		InitialDueDate: p.InitialDueDate,
		Recurrence:     p.Recurrence,
		IsActive:       p.IsActive,
	}
}
