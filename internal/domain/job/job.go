package job

import (
	"context"
	"time"
)

// Run is one row of the job-run ledger: proof that the named job claimed a
// calendar day. Rows are only ever inserted, never updated or deleted.
type Run struct {
	ID        int64
	JobName   string
	RunDate   time.Time
	CreatedAt time.Time
}

// Repository defines operations on the job-run ledger. The ledger's unique
// (job_name, run_date) constraint is the sole mechanism behind
// "run at most once per calendar day per named job".
type Repository interface {
	// TryMarkRun atomically inserts a (jobName, runDate) row. It returns
	// true iff the insert succeeded, false when the day was already claimed.
	// The claim must be a single atomic insert backed by the storage-layer
	// uniqueness constraint, not an application-level check-then-act.
	TryMarkRun(ctx context.Context, jobName string, runDate time.Time) (bool, error)
}
