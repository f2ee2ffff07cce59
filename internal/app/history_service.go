package app

import (
	"context"
	"fmt"

	"paytrack/internal/domain/payment"
)

const defaultHistoryPageSize = 50

// HistoryPage is one page of occurrence history plus the total match count.
type HistoryPage struct {
	Rows       []*payment.OccurrenceRow
	TotalCount int64
}

// HistoryService serves the filtered, paged occurrence history view.
type HistoryService struct {
	occurrences payment.OccurrenceRepository
}

func NewHistoryService(occurrences payment.OccurrenceRepository) *HistoryService {
	return &HistoryService{occurrences: occurrences}
}

// ListPage returns one history page. A zero limit falls back to the default
// page size; unknown status filters are rejected before touching storage.
func (s *HistoryService) ListPage(ctx context.Context, filters payment.HistoryFilters, limit, offset int, sort payment.HistorySort) (*HistoryPage, error) {
	if filters.Status != nil && !filters.Status.Valid() {
		return nil, fmt.Errorf("unsupported status filter: %q", *filters.Status)
	}
	if limit <= 0 {
		limit = defaultHistoryPageSize
	}

	rows, total, err := s.occurrences.ListHistoryPage(ctx, filters, limit, offset, sort)
	if err != nil {
		return nil, err
	}
	return &HistoryPage{Rows: rows, TotalCount: total}, nil
}
