// Package ws serves the reviewer feed: a websocket stream of coordinator
// events filtered per connection.
package ws

import (
	"github.com/xiaot623/gogo/coordinator/internal/domain"
)

// Message types from client to coordinator
const (
	TypeSubscribe = "subscribe"
)

// Message types from coordinator to client
const (
	TypeSubscribed = "subscribed"
	TypeEvent      = "event"
	TypeError      = "error"
)

// Error codes
const (
	ErrorCodeInvalidMessage = "INVALID_MESSAGE"
	ErrorCodeUnauthorized   = "UNAUTHORIZED"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type string `json:"type"`
	Ts   int64  `json:"ts"`
}

// SubscribeMessage is sent by a client to start receiving events. Empty
// filters match everything.
type SubscribeMessage struct {
	BaseMessage
	APIKey     string             `json:"api_key,omitempty"`
	Reviewer   string             `json:"reviewer,omitempty"`
	SubjectIDs []string           `json:"subject_ids,omitempty"`
	EventTypes []domain.EventType `json:"event_types,omitempty"`
}

// SubscribedMessage acknowledges a subscription.
type SubscribedMessage struct {
	BaseMessage
	ConnectionID string `json:"connection_id"`
}

// EventMessage carries one coordinator event.
type EventMessage struct {
	BaseMessage
	Event domain.Event `json:"event"`
}

// ErrorMessage reports a rejected client message.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}
