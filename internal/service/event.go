package service

import (
	"context"
	"fmt"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
)

// ListEvents returns journaled events, oldest first. An empty subjectID lists
// events for every subject.
func (s *Service) ListEvents(ctx context.Context, subjectID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	if s.store == nil {
		return []domain.Event{}, nil
	}
	events, err := s.store.ListEvents(ctx, subjectID, afterTs, types, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	if events == nil {
		events = []domain.Event{}
	}
	return events, nil
}
