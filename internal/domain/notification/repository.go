package notification

import (
	"context"
	"time"
)

// ReadState filters notifications by read flag.
type ReadState string

const (
	ReadStateAny    ReadState = ""
	ReadStateRead   ReadState = "read"
	ReadStateUnread ReadState = "unread"
)

// Filters narrows a notification listing.
type Filters struct {
	Type      Type
	ReadState ReadState
	StartDate *time.Time
	EndDate   *time.Time
}

// LogFilters narrows a delivery-log listing.
type LogFilters struct {
	Type      Type
	Channel   Channel
	Status    DeliveryStatus
	StartDate *time.Time
	EndDate   *time.Time
}

// Sort selects the ordering of a notification listing.
type Sort string

const (
	SortNewest      Sort = "newest"
	SortOldest      Sort = "oldest"
	SortUnreadFirst Sort = "unread_first"
)

// Repository defines persistence for in-app notifications and the
// deduplicating delivery log.
type Repository interface {
	CreateNotification(ctx context.Context, n *Notification) error
	ListNotifications(ctx context.Context, filters Filters, limit, offset int, sort Sort) ([]*Notification, error)
	CountNotifications(ctx context.Context, filters Filters) (int64, error)
	CountUnread(ctx context.Context) (int64, error)
	MarkRead(ctx context.Context, id int64, now time.Time) (*Notification, error)
	MarkAllRead(ctx context.Context, now time.Time) (int64, error)

	// TryLogDelivery atomically claims the (type, channel, bucketDate,
	// dedupKey) slot with a "sent" row. It returns true iff the claim
	// succeeded, false when the slot was already taken.
	TryLogDelivery(ctx context.Context, t Type, channel Channel, bucketDate time.Time, dedupKey string, occurrenceID *int64) (bool, error)

	// CreateDeliveryLog inserts a pending delivery-log row, returning nil
	// (and no error) when the dedup slot is already claimed.
	CreateDeliveryLog(ctx context.Context, l *DeliveryLog) (*DeliveryLog, error)

	// FinalizeDeliveryLog records the terminal outcome of a delivery chain.
	FinalizeDeliveryLog(ctx context.Context, id int64, status DeliveryStatus, errorMessage, telegramMessageID string, deliveredAt *time.Time) error

	ListDeliveryLogs(ctx context.Context, filters LogFilters, limit, offset int, sort Sort) ([]*DeliveryLog, error)
	CountDeliveryLogs(ctx context.Context, filters LogFilters) (int64, error)
}
