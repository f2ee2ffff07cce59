package database

import "fmt"

// Sentinel errors shared by the Postgres repositories. Services match these
// with errors.Is to tell client-correctable conditions (not found,
// duplicate) apart from system failures.
var (
	ErrPaymentNotFound      = fmt.Errorf("payment not found")
	ErrOccurrenceNotFound   = fmt.Errorf("occurrence not found")
	ErrNotificationNotFound = fmt.Errorf("notification not found")
	ErrDuplicateOccurrence  = fmt.Errorf("duplicate occurrence (payment_id, due_date)")
)
