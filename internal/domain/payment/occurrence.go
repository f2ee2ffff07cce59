package payment

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// OccurrenceStatus represents the lifecycle state of a materialized due
// instance.
type OccurrenceStatus string

const (
	StatusScheduled OccurrenceStatus = "scheduled"
	StatusCompleted OccurrenceStatus = "completed"
	StatusSkipped   OccurrenceStatus = "skipped"
	StatusCanceled  OccurrenceStatus = "canceled"
)

// OccurrenceStatuses lists every valid occurrence status.
var OccurrenceStatuses = []OccurrenceStatus{
	StatusScheduled,
	StatusCompleted,
	StatusSkipped,
	StatusCanceled,
}

// Valid reports whether s is one of the known occurrence statuses.
func (s OccurrenceStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusSkipped, StatusCanceled:
		return true
	}
	return false
}

// Occurrence is one concrete due instance of a payment. At most one
// occurrence exists per (payment_id, due_date); the generation service
// preserves that invariant under concurrent writers.
type Occurrence struct {
	ID             int64
	PaymentID      int64
	DueDate        time.Time
	ExpectedAmount decimal.Decimal
	Status         OccurrenceStatus
	AmountPaid     decimal.NullDecimal
	PaidDate       sql.NullTime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OccurrenceKey identifies an occurrence by its uniqueness pair. The due
// date is kept as an ISO string so the key is safely comparable regardless
// of the time.Time internals a driver returns.
type OccurrenceKey struct {
	PaymentID int64
	DueDate   string
}

// KeyFor builds the uniqueness key for a payment id and due date.
func KeyFor(paymentID int64, dueDate time.Time) OccurrenceKey {
	return OccurrenceKey{PaymentID: paymentID, DueDate: dueDate.Format("2006-01-02")}
}

// Key returns the occurrence's uniqueness key.
func (o *Occurrence) Key() OccurrenceKey {
	return KeyFor(o.PaymentID, o.DueDate)
}

// OccurrenceRow is an occurrence joined with its payment's name, used by
// cycle snapshots, history pages and notification digests.
type OccurrenceRow struct {
	OccurrenceID   int64
	PaymentID      int64
	PaymentName    string
	DueDate        time.Time
	ExpectedAmount decimal.Decimal
	Status         OccurrenceStatus
	AmountPaid     decimal.NullDecimal
	PaidDate       sql.NullTime
}
