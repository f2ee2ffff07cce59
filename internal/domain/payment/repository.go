package payment

import (
	"context"
	"time"
)

// Repository defines persistence operations for Payment entities.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id int64) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
	ListActive(ctx context.Context) ([]*Payment, error)
	ListAll(ctx context.Context) ([]*Payment, error)
}

// HistorySort selects the ordering of a history page.
type HistorySort string

const (
	HistorySortDueDesc  HistorySort = "due_desc"
	HistorySortDueAsc   HistorySort = "due_asc"
	HistorySortPaidDesc HistorySort = "paid_desc"
)

// HistoryFilters narrows a history listing. A filter row matches a date
// range when either its due date or its paid date falls inside it.
type HistoryFilters struct {
	Status    *OccurrenceStatus
	StartDate *time.Time
	EndDate   *time.Time
	Query     string
}

// OccurrenceRepository defines persistence operations for occurrences.
//
// Insert and BulkInsert must surface a storage-level uniqueness conflict on
// (payment_id, due_date) as ErrDuplicateOccurrence (from the implementing
// package), distinguishable from other failures; the generation service's
// conflict-recovery contract depends on that.
type OccurrenceRepository interface {
	Insert(ctx context.Context, o *Occurrence) error
	BulkInsert(ctx context.Context, occurrences []*Occurrence) error
	GetByID(ctx context.Context, id int64) (*Occurrence, error)
	Update(ctx context.Context, o *Occurrence) error

	// ListKeysInRange returns the set of (payment_id, due_date) pairs already
	// persisted with due dates inside [start, end].
	ListKeysInRange(ctx context.Context, start, end time.Time) (map[OccurrenceKey]struct{}, error)

	// DeleteScheduledFrom removes a payment's still-pending future rows:
	// status = scheduled and due_date >= from. Returns the count deleted.
	DeleteScheduledFrom(ctx context.Context, paymentID int64, from time.Time) (int64, error)

	// CancelScheduledFrom transitions a payment's scheduled rows with
	// due_date >= from to canceled. Returns the count canceled.
	CancelScheduledFrom(ctx context.Context, paymentID int64, from time.Time) (int64, error)

	// ListScheduled returns every scheduled occurrence joined with its
	// payment name, ordered by due date, payment name, id.
	ListScheduled(ctx context.Context) ([]*OccurrenceRow, error)

	// ListInCycle returns non-canceled occurrences with due dates inside
	// [start, end], joined and ordered by due date, payment name, id.
	ListInCycle(ctx context.Context, start, end time.Time) ([]*OccurrenceRow, error)

	// ListHistoryPage returns one page of filtered history rows plus the
	// total row count for the filter.
	ListHistoryPage(ctx context.Context, filters HistoryFilters, limit, offset int, sort HistorySort) ([]*OccurrenceRow, int64, error)
}
