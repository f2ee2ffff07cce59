package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"paytrack/internal/domain/payment"
)

// PostgresOccurrenceRepository implements payment.OccurrenceRepository on
// Postgres. The occurrences table carries a unique constraint on
// (payment_id, due_date); Insert and BulkInsert translate violations of it
// to ErrDuplicateOccurrence so the generation service can absorb races.
type PostgresOccurrenceRepository struct {
	db *sql.DB
}

func NewPostgresOccurrenceRepository(db *sql.DB) *PostgresOccurrenceRepository {
	return &PostgresOccurrenceRepository{db: db}
}

const occurrenceColumns = `id, payment_id, due_date, expected_amount, status, amount_paid, paid_date, created_at, updated_at`

func scanOccurrence(row interface{ Scan(...any) error }, o *payment.Occurrence) error {
	return row.Scan(
		&o.ID, &o.PaymentID, &o.DueDate, &o.ExpectedAmount, &o.Status,
		&o.AmountPaid, &o.PaidDate, &o.CreatedAt, &o.UpdatedAt,
	)
}

func (r *PostgresOccurrenceRepository) Insert(ctx context.Context, o *payment.Occurrence) error {
	query := `INSERT INTO occurrences (payment_id, due_date, expected_amount, status, amount_paid, paid_date)
               VALUES ($1, $2, $3, $4, $5, $6)
               RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		o.PaymentID, o.DueDate, o.ExpectedAmount, o.Status, o.AmountPaid, o.PaidDate,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOccurrence
		}
		return fmt.Errorf("error inserting occurrence: %w", err)
	}
	return nil
}

// BulkInsert inserts every occurrence inside one transaction. Any
// uniqueness conflict rolls the whole batch back and returns
// ErrDuplicateOccurrence; the caller decides whether to replay row by row.
func (r *PostgresOccurrenceRepository) BulkInsert(ctx context.Context, occurrences []*payment.Occurrence) error {
	if len(occurrences) == 0 {
		return nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for bulk insert: %w", err)
	}
	defer txn.Rollback()

	stmt, err := txn.PrepareContext(ctx, `INSERT INTO occurrences (payment_id, due_date, expected_amount, status, amount_paid, paid_date)
                                         VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for bulk insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range occurrences {
		_, err := stmt.ExecContext(ctx, o.PaymentID, o.DueDate, o.ExpectedAmount, o.Status, o.AmountPaid, o.PaidDate)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateOccurrence
			}
			return fmt.Errorf("error in bulk insert (payment %d due %s): %w", o.PaymentID, o.DueDate.Format("2006-01-02"), err)
		}
	}

	return txn.Commit()
}

func (r *PostgresOccurrenceRepository) GetByID(ctx context.Context, id int64) (*payment.Occurrence, error) {
	query := `SELECT ` + occurrenceColumns + ` FROM occurrences WHERE id = $1`
	o := payment.Occurrence{}
	err := scanOccurrence(r.db.QueryRowContext(ctx, query, id), &o)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOccurrenceNotFound
		}
		return nil, fmt.Errorf("error getting occurrence by ID: %w", err)
	}
	return &o, nil
}

func (r *PostgresOccurrenceRepository) Update(ctx context.Context, o *payment.Occurrence) error {
	query := `UPDATE occurrences
               SET status = $1, amount_paid = $2, paid_date = $3, updated_at = NOW()
               WHERE id = $4
               RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, o.Status, o.AmountPaid, o.PaidDate, o.ID).Scan(&o.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrOccurrenceNotFound
		}
		return fmt.Errorf("error updating occurrence: %w", err)
	}
	return nil
}

func (r *PostgresOccurrenceRepository) ListKeysInRange(ctx context.Context, start, end time.Time) (map[payment.OccurrenceKey]struct{}, error) {
	query := `SELECT payment_id, due_date FROM occurrences WHERE due_date >= $1 AND due_date <= $2`
	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("error querying occurrence keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[payment.OccurrenceKey]struct{})
	for rows.Next() {
		var paymentID int64
		var dueDate time.Time
		if err := rows.Scan(&paymentID, &dueDate); err != nil {
			return nil, fmt.Errorf("error scanning occurrence key row: %w", err)
		}
		keys[payment.KeyFor(paymentID, dueDate)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating occurrence key rows: %w", err)
	}
	return keys, nil
}

func (r *PostgresOccurrenceRepository) DeleteScheduledFrom(ctx context.Context, paymentID int64, from time.Time) (int64, error) {
	query := `DELETE FROM occurrences WHERE payment_id = $1 AND status = $2 AND due_date >= $3`
	result, err := r.db.ExecContext(ctx, query, paymentID, payment.StatusScheduled, from)
	if err != nil {
		return 0, fmt.Errorf("error deleting scheduled occurrences: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error counting deleted occurrences: %w", err)
	}
	return count, nil
}

func (r *PostgresOccurrenceRepository) CancelScheduledFrom(ctx context.Context, paymentID int64, from time.Time) (int64, error) {
	query := `UPDATE occurrences SET status = $1, updated_at = NOW()
               WHERE payment_id = $2 AND status = $3 AND due_date >= $4`
	result, err := r.db.ExecContext(ctx, query, payment.StatusCanceled, paymentID, payment.StatusScheduled, from)
	if err != nil {
		return 0, fmt.Errorf("error canceling scheduled occurrences: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error counting canceled occurrences: %w", err)
	}
	return count, nil
}

const occurrenceRowColumns = `o.id, o.payment_id, p.name, o.due_date, o.expected_amount, o.status, o.amount_paid, o.paid_date`

func scanOccurrenceRows(rows *sql.Rows) ([]*payment.OccurrenceRow, error) {
	results := make([]*payment.OccurrenceRow, 0)
	for rows.Next() {
		row := payment.OccurrenceRow{}
		if err := rows.Scan(
			&row.OccurrenceID, &row.PaymentID, &row.PaymentName, &row.DueDate,
			&row.ExpectedAmount, &row.Status, &row.AmountPaid, &row.PaidDate,
		); err != nil {
			return nil, fmt.Errorf("error scanning occurrence view row: %w", err)
		}
		results = append(results, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating occurrence view rows: %w", err)
	}
	return results, nil
}

func (r *PostgresOccurrenceRepository) ListScheduled(ctx context.Context) ([]*payment.OccurrenceRow, error) {
	query := `SELECT ` + occurrenceRowColumns + `
               FROM occurrences o JOIN payments p ON p.id = o.payment_id
               WHERE o.status = $1
               ORDER BY o.due_date ASC, p.name ASC, o.id ASC`
	rows, err := r.db.QueryContext(ctx, query, payment.StatusScheduled)
	if err != nil {
		return nil, fmt.Errorf("error querying scheduled occurrences: %w", err)
	}
	defer rows.Close()
	return scanOccurrenceRows(rows)
}

func (r *PostgresOccurrenceRepository) ListInCycle(ctx context.Context, start, end time.Time) ([]*payment.OccurrenceRow, error) {
	query := `SELECT ` + occurrenceRowColumns + `
               FROM occurrences o JOIN payments p ON p.id = o.payment_id
               WHERE o.due_date >= $1 AND o.due_date <= $2 AND o.status != $3
               ORDER BY o.due_date ASC, p.name ASC, o.id ASC`
	rows, err := r.db.QueryContext(ctx, query, start, end, payment.StatusCanceled)
	if err != nil {
		return nil, fmt.Errorf("error querying cycle occurrences: %w", err)
	}
	defer rows.Close()
	return scanOccurrenceRows(rows)
}

// historyWhere builds the WHERE clause for a history listing. A date filter
// matches when either the due date or the paid date falls inside the range.
func historyWhere(filters payment.HistoryFilters) (string, []any) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 4)

	if filters.Status != nil {
		args = append(args, *filters.Status)
		clauses = append(clauses, fmt.Sprintf("o.status = $%d", len(args)))
	}
	if filters.StartDate != nil {
		args = append(args, *filters.StartDate)
		clauses = append(clauses, fmt.Sprintf("(o.due_date >= $%d OR o.paid_date >= $%d)", len(args), len(args)))
	}
	if filters.EndDate != nil {
		args = append(args, *filters.EndDate)
		clauses = append(clauses, fmt.Sprintf("(o.due_date <= $%d OR o.paid_date <= $%d)", len(args), len(args)))
	}
	if q := strings.TrimSpace(filters.Query); q != "" {
		args = append(args, "%"+q+"%")
		clauses = append(clauses, fmt.Sprintf("p.name ILIKE $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func historyOrder(sort payment.HistorySort) string {
	switch sort {
	case payment.HistorySortDueAsc:
		return " ORDER BY o.due_date ASC, o.id ASC"
	case payment.HistorySortPaidDesc:
		return " ORDER BY o.paid_date DESC NULLS LAST, o.due_date DESC, o.id DESC"
	default:
		return " ORDER BY o.due_date DESC, o.created_at DESC, o.id DESC"
	}
}

func (r *PostgresOccurrenceRepository) ListHistoryPage(ctx context.Context, filters payment.HistoryFilters, limit, offset int, sort payment.HistorySort) ([]*payment.OccurrenceRow, int64, error) {
	where, args := historyWhere(filters)
	base := ` FROM occurrences o JOIN payments p ON p.id = o.payment_id` + where

	var totalCount int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+base, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("error counting history rows: %w", err)
	}

	if offset < 0 {
		offset = 0
	}
	pageArgs := append(args, limit, offset)
	query := `SELECT ` + occurrenceRowColumns + base + historyOrder(sort) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("error querying history rows: %w", err)
	}
	defer rows.Close()

	results, err := scanOccurrenceRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return results, totalCount, nil
}
