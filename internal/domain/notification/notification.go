package notification

import (
	"database/sql"
	"time"
)

// Type labels what a notification is about.
type Type string

const (
	TypeDueSoon      Type = "due_soon"
	TypeOverdue      Type = "overdue"
	TypeDailySummary Type = "daily_summary"
)

// Channel identifies where a notification was delivered.
type Channel string

const (
	ChannelInApp    Channel = "in_app"
	ChannelTelegram Channel = "telegram"
)

// DeliveryStatus tracks the outcome of one delivery attempt chain.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryError   DeliveryStatus = "error"
)

// Notification is an in-app notification row shown in the application's
// notification feed.
type Notification struct {
	ID           int64
	Type         Type
	Title        string
	Body         string
	OccurrenceID sql.NullInt64
	IsRead       bool
	ReadAt       sql.NullTime
	CreatedAt    time.Time
}

// DeliveryLog records one delivery per (type, channel, bucket_date,
// dedup_key); the unique constraint on that tuple is what keeps digests to
// at most one per day and channel.
type DeliveryLog struct {
	ID                int64
	Type              Type
	Channel           Channel
	BucketDate        time.Time
	OccurrenceID      sql.NullInt64
	DedupKey          string
	Status            DeliveryStatus
	TelegramMessageID sql.NullString
	ErrorMessage      sql.NullString
	DeliveredAt       sql.NullTime
	CreatedAt         time.Time
}
