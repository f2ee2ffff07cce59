package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"paytrack/internal/domain/notification"
)

// PostgresNotificationRepository implements notification.Repository on
// Postgres. Delivery deduplication rides on the notification_log unique
// constraint over (type, channel, bucket_date, dedup_key).
type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

// --- Notification methods ---

func (r *PostgresNotificationRepository) CreateNotification(ctx context.Context, n *notification.Notification) error {
	query := `INSERT INTO notifications (type, title, body, occurrence_id, is_read)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, n.Type, n.Title, n.Body, n.OccurrenceID, n.IsRead).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating notification: %w", err)
	}
	return nil
}

func notificationWhere(filters notification.Filters) (string, []any) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 4)

	if filters.Type != "" {
		args = append(args, filters.Type)
		clauses = append(clauses, fmt.Sprintf("type = $%d", len(args)))
	}
	switch filters.ReadState {
	case notification.ReadStateRead:
		clauses = append(clauses, "is_read = TRUE")
	case notification.ReadStateUnread:
		clauses = append(clauses, "is_read = FALSE")
	}
	if filters.StartDate != nil {
		args = append(args, *filters.StartDate)
		clauses = append(clauses, fmt.Sprintf("created_at::date >= $%d", len(args)))
	}
	if filters.EndDate != nil {
		args = append(args, *filters.EndDate)
		clauses = append(clauses, fmt.Sprintf("created_at::date <= $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *PostgresNotificationRepository) ListNotifications(ctx context.Context, filters notification.Filters, limit, offset int, sort notification.Sort) ([]*notification.Notification, error) {
	where, args := notificationWhere(filters)

	var order string
	switch sort {
	case notification.SortOldest:
		order = " ORDER BY created_at ASC, id ASC"
	case notification.SortUnreadFirst:
		order = " ORDER BY is_read ASC, created_at DESC, id DESC"
	default:
		order = " ORDER BY created_at DESC, id DESC"
	}

	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	query := `SELECT id, type, title, body, occurrence_id, is_read, read_at, created_at FROM notifications` +
		where + order + fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying notifications: %w", err)
	}
	defer rows.Close()

	results := make([]*notification.Notification, 0)
	for rows.Next() {
		n := notification.Notification{}
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Body, &n.OccurrenceID, &n.IsRead, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning notification row: %w", err)
		}
		results = append(results, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}
	return results, nil
}

func (r *PostgresNotificationRepository) CountNotifications(ctx context.Context, filters notification.Filters) (int64, error) {
	where, args := notificationWhere(filters)
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting notifications: %w", err)
	}
	return count, nil
}

func (r *PostgresNotificationRepository) CountUnread(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE is_read = FALSE`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting unread notifications: %w", err)
	}
	return count, nil
}

func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, id int64, now time.Time) (*notification.Notification, error) {
	query := `UPDATE notifications SET is_read = TRUE, read_at = $1 WHERE id = $2
               RETURNING id, type, title, body, occurrence_id, is_read, read_at, created_at`
	n := notification.Notification{}
	err := r.db.QueryRowContext(ctx, query, now, id).Scan(&n.ID, &n.Type, &n.Title, &n.Body, &n.OccurrenceID, &n.IsRead, &n.ReadAt, &n.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("error marking notification read: %w", err)
	}
	return &n, nil
}

func (r *PostgresNotificationRepository) MarkAllRead(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE, read_at = $1 WHERE is_read = FALSE`, now)
	if err != nil {
		return 0, fmt.Errorf("error marking all notifications read: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error counting notifications marked read: %w", err)
	}
	return count, nil
}

// --- DeliveryLog methods ---

func (r *PostgresNotificationRepository) TryLogDelivery(ctx context.Context, t notification.Type, channel notification.Channel, bucketDate time.Time, dedupKey string, occurrenceID *int64) (bool, error) {
	var occurrence sql.NullInt64
	if occurrenceID != nil {
		occurrence = sql.NullInt64{Int64: *occurrenceID, Valid: true}
	}
	query := `INSERT INTO notification_log (type, channel, bucket_date, occurrence_id, dedup_key, status, delivered_at)
               VALUES ($1, $2, $3, $4, $5, $6, NOW())`
	_, err := r.db.ExecContext(ctx, query, t, channel, bucketDate, occurrence, dedupKey, notification.DeliverySent)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("error logging notification delivery: %w", err)
	}
	return true, nil
}

func (r *PostgresNotificationRepository) CreateDeliveryLog(ctx context.Context, l *notification.DeliveryLog) (*notification.DeliveryLog, error) {
	query := `INSERT INTO notification_log (type, channel, bucket_date, occurrence_id, dedup_key, status, telegram_message_id, error_message, delivered_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
               RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		l.Type, l.Channel, l.BucketDate, l.OccurrenceID, l.DedupKey, l.Status,
		l.TelegramMessageID, l.ErrorMessage, l.DeliveredAt,
	).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error creating notification delivery log: %w", err)
	}
	return l, nil
}

func (r *PostgresNotificationRepository) FinalizeDeliveryLog(ctx context.Context, id int64, status notification.DeliveryStatus, errorMessage, telegramMessageID string, deliveredAt *time.Time) error {
	var errMsg, msgID sql.NullString
	if trimmed := strings.TrimSpace(errorMessage); trimmed != "" {
		errMsg = sql.NullString{String: trimmed, Valid: true}
	}
	if trimmed := strings.TrimSpace(telegramMessageID); trimmed != "" {
		msgID = sql.NullString{String: trimmed, Valid: true}
	}
	var delivered sql.NullTime
	if deliveredAt != nil {
		delivered = sql.NullTime{Time: *deliveredAt, Valid: true}
	}

	query := `UPDATE notification_log
               SET status = $1, error_message = $2, telegram_message_id = $3, delivered_at = $4
               WHERE id = $5`
	result, err := r.db.ExecContext(ctx, query, status, errMsg, msgID, delivered, id)
	if err != nil {
		return fmt.Errorf("error finalizing notification delivery log: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error counting finalized delivery logs: %w", err)
	}
	if affected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func deliveryLogWhere(filters notification.LogFilters) (string, []any) {
	clauses := make([]string, 0, 5)
	args := make([]any, 0, 5)

	if filters.Type != "" {
		args = append(args, filters.Type)
		clauses = append(clauses, fmt.Sprintf("type = $%d", len(args)))
	}
	if filters.Channel != "" {
		args = append(args, filters.Channel)
		clauses = append(clauses, fmt.Sprintf("channel = $%d", len(args)))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filters.StartDate != nil {
		args = append(args, *filters.StartDate)
		clauses = append(clauses, fmt.Sprintf("bucket_date >= $%d", len(args)))
	}
	if filters.EndDate != nil {
		args = append(args, *filters.EndDate)
		clauses = append(clauses, fmt.Sprintf("bucket_date <= $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *PostgresNotificationRepository) ListDeliveryLogs(ctx context.Context, filters notification.LogFilters, limit, offset int, sort notification.Sort) ([]*notification.DeliveryLog, error) {
	where, args := deliveryLogWhere(filters)

	order := " ORDER BY created_at DESC, id DESC"
	if sort == notification.SortOldest {
		order = " ORDER BY created_at ASC, id ASC"
	}

	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	query := `SELECT id, type, channel, bucket_date, occurrence_id, dedup_key, status, telegram_message_id, error_message, delivered_at, created_at
               FROM notification_log` + where + order +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying notification delivery logs: %w", err)
	}
	defer rows.Close()

	results := make([]*notification.DeliveryLog, 0)
	for rows.Next() {
		l := notification.DeliveryLog{}
		if err := rows.Scan(
			&l.ID, &l.Type, &l.Channel, &l.BucketDate, &l.OccurrenceID, &l.DedupKey,
			&l.Status, &l.TelegramMessageID, &l.ErrorMessage, &l.DeliveredAt, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning delivery log row: %w", err)
		}
		results = append(results, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delivery log rows: %w", err)
	}
	return results, nil
}

func (r *PostgresNotificationRepository) CountDeliveryLogs(ctx context.Context, filters notification.LogFilters) (int64, error) {
	where, args := deliveryLogWhere(filters)
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notification_log`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting delivery logs: %w", err)
	}
	return count, nil
}
