package notify

import (
	"context"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
)

// EventStore persists events.
type EventStore interface {
	AppendEvent(ctx context.Context, event *domain.Event) error
}

// JournalSink appends every event to the event journal.
type JournalSink struct {
	store EventStore
}

// NewJournalSink creates a sink backed by store.
func NewJournalSink(store EventStore) *JournalSink {
	return &JournalSink{store: store}
}

// Name implements Sink.
func (s *JournalSink) Name() string { return "journal" }

// Publish implements Sink.
func (s *JournalSink) Publish(ctx context.Context, event domain.Event) error {
	return s.store.AppendEvent(ctx, &event)
}
