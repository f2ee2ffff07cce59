package database

import (
	"context"
	"database/sql"
	"fmt"

	"paytrack/internal/domain/payment"
)

// PostgresPaymentRepository implements payment.Repository on Postgres.
type PostgresPaymentRepository struct {
	db *sql.DB
}

func NewPostgresPaymentRepository(db *sql.DB) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{db: db}
}

const paymentColumns = `id, name, expected_amount, initial_due_date, recurrence_type, priority, is_active, paid_off_date, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }, p *payment.Payment) error {
	return row.Scan(
		&p.ID, &p.Name, &p.ExpectedAmount, &p.InitialDueDate, &p.Recurrence,
		&p.Priority, &p.IsActive, &p.PaidOffDate, &p.CreatedAt, &p.UpdatedAt,
	)
}

func (r *PostgresPaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	query := `INSERT INTO payments (name, expected_amount, initial_due_date, recurrence_type, priority, is_active, paid_off_date)
               VALUES ($1, $2, $3, $4, $5, $6, $7)
               RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		p.Name, p.ExpectedAmount, p.InitialDueDate, p.Recurrence, p.Priority, p.IsActive, p.PaidOffDate,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating payment: %w", err)
	}
	return nil
}

func (r *PostgresPaymentRepository) GetByID(ctx context.Context, id int64) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p := payment.Payment{}
	err := scanPayment(r.db.QueryRowContext(ctx, query, id), &p)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("error getting payment by ID: %w", err)
	}
	return &p, nil
}

func (r *PostgresPaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	query := `UPDATE payments
               SET name = $1, expected_amount = $2, initial_due_date = $3, recurrence_type = $4,
                   priority = $5, is_active = $6, paid_off_date = $7, updated_at = NOW()
               WHERE id = $8
               RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		p.Name, p.ExpectedAmount, p.InitialDueDate, p.Recurrence, p.Priority, p.IsActive, p.PaidOffDate, p.ID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrPaymentNotFound
		}
		return fmt.Errorf("error updating payment: %w", err)
	}
	return nil
}

func (r *PostgresPaymentRepository) listPayments(ctx context.Context, query string, args ...any) ([]*payment.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying payments: %w", err)
	}
	defer rows.Close()

	payments := make([]*payment.Payment, 0)
	for rows.Next() {
		p := payment.Payment{}
		if err := scanPayment(rows, &p); err != nil {
			return nil, fmt.Errorf("error scanning payment row: %w", err)
		}
		payments = append(payments, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment rows: %w", err)
	}
	return payments, nil
}

func (r *PostgresPaymentRepository) ListActive(ctx context.Context) ([]*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE is_active = TRUE ORDER BY name ASC, id ASC`
	return r.listPayments(ctx, query)
}

func (r *PostgresPaymentRepository) ListAll(ctx context.Context) ([]*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments ORDER BY is_active DESC, name ASC, id ASC`
	return r.listPayments(ctx, query)
}
