// Package notify delivers domain events to reviewers and downstream systems.
//
// Delivery is fire-and-forget: Emit never blocks and never fails, and sink
// errors are logged and counted but never reach the code that changed state.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
	"github.com/xiaot623/gogo/coordinator/internal/metrics"
)

// Emitter accepts events for asynchronous delivery.
type Emitter interface {
	Emit(event domain.Event)
}

// Sink delivers a single event somewhere.
type Sink interface {
	Name() string
	Publish(ctx context.Context, event domain.Event) error
}

// NewEvent builds an event with a fresh id. Payload marshal failures yield an
// event without payload.
func NewEvent(eventType domain.EventType, subjectID, actor string, at time.Time, payload interface{}, recipients ...string) domain.Event {
	event := domain.Event{
		EventID:    "evt_" + uuid.New().String()[:8],
		Type:       eventType,
		SubjectID:  subjectID,
		Actor:      actor,
		Recipients: recipients,
		Ts:         at.UnixMilli(),
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			event.Payload = data
		}
	}
	return event
}

// Dispatcher buffers events and fans them out to every sink.
type Dispatcher struct {
	events         chan domain.Event
	log            zerolog.Logger
	publishTimeout time.Duration

	mu    sync.RWMutex
	sinks []Sink
}

// NewDispatcher creates a dispatcher with the given buffer size.
func NewDispatcher(buffer int, log zerolog.Logger, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Dispatcher{
		events:         make(chan domain.Event, buffer),
		log:            log,
		publishTimeout: 5 * time.Second,
		sinks:          sinks,
	}
}

// AddSink registers another sink.
func (d *Dispatcher) AddSink(s Sink) {
	d.mu.Lock()
	d.sinks = append(d.sinks, s)
	d.mu.Unlock()
}

// Emit queues an event without blocking. When the buffer is full the event is
// dropped.
func (d *Dispatcher) Emit(event domain.Event) {
	select {
	case d.events <- event:
	default:
		metrics.RecordNotificationDropped()
		d.log.Warn().
			Str("event_id", event.EventID).
			Str("event_type", string(event.Type)).
			Msg("notify: buffer full, event dropped")
	}
}

// Run delivers queued events until ctx is cancelled, then drains what is
// already buffered.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case event := <-d.events:
			d.deliver(context.Background(), event)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.events:
			d.deliver(context.Background(), event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event domain.Event) {
	d.mu.RLock()
	sinks := append([]Sink(nil), d.sinks...)
	d.mu.RUnlock()

	for _, sink := range sinks {
		pubCtx, cancel := context.WithTimeout(ctx, d.publishTimeout)
		err := sink.Publish(pubCtx, event)
		cancel()
		if err != nil {
			metrics.RecordNotificationFailure(sink.Name())
			d.log.Warn().Err(err).
				Str("sink", sink.Name()).
				Str("event_id", event.EventID).
				Str("event_type", string(event.Type)).
				Msg("notify: delivery failed (non-fatal)")
			continue
		}
		d.log.Debug().
			Str("sink", sink.Name()).
			Str("event_type", string(event.Type)).
			Str("subject_id", event.SubjectID).
			Msg("notify: event delivered")
	}
}

// Recorder is an Emitter that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

// Emit implements Emitter.
func (r *Recorder) Emit(event domain.Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

// Types returns the recorded event types in emission order.
func (r *Recorder) Types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// Discard is an Emitter that drops every event.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(domain.Event) {}
