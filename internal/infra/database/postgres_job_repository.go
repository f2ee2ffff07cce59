package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresJobRepository implements job.Repository on Postgres. The job_runs
// table's unique (job_name, run_date) constraint is what makes TryMarkRun an
// atomic insert-to-claim.
type PostgresJobRepository struct {
	db *sql.DB
}

func NewPostgresJobRepository(db *sql.DB) *PostgresJobRepository {
	return &PostgresJobRepository{db: db}
}

func (r *PostgresJobRepository) TryMarkRun(ctx context.Context, jobName string, runDate time.Time) (bool, error) {
	query := `INSERT INTO job_runs (job_name, run_date) VALUES ($1, $2)`
	_, err := r.db.ExecContext(ctx, query, jobName, runDate)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("error marking job run %q for %s: %w", jobName, runDate.Format("2006-01-02"), err)
	}
	return true, nil
}
