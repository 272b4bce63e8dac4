package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/coordinator/internal/domain"
)

// publisher is the subset of *nats.Conn used by NATSSink.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes events to NATS.
//
// Subject convention: <prefix>.<event_type>, e.g. workshop.approval_escalated.
type NATSSink struct {
	conn   publisher
	nc     *nats.Conn
	prefix string
	log    zerolog.Logger
}

// NewNATSSink connects to NATS and returns a sink publishing under prefix.
func NewNATSSink(url, prefix string, log zerolog.Logger) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("workshop-coordinator"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats: disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats: reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	s := newNATSSink(nc, prefix, log)
	s.nc = nc
	return s, nil
}

func newNATSSink(conn publisher, prefix string, log zerolog.Logger) *NATSSink {
	if prefix == "" {
		prefix = "workshop"
	}
	return &NATSSink{conn: conn, prefix: prefix, log: log}
}

// Name implements Sink.
func (s *NATSSink) Name() string { return "nats" }

// Subject returns the subject an event type is published on.
func (s *NATSSink) Subject(eventType domain.EventType) string {
	return fmt.Sprintf("%s.%s", s.prefix, eventType)
}

// Publish implements Sink.
func (s *NATSSink) Publish(_ context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	subject := s.Subject(event.Type)
	if err := s.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	s.log.Debug().Str("subject", subject).Str("event_id", event.EventID).Msg("nats: event published")
	return nil
}

// Close drains the underlying connection.
func (s *NATSSink) Close() error {
	if s.nc == nil {
		return nil
	}
	return s.nc.Drain()
}
