package domain

import (
	"encoding/json"
	"time"
)

// Event is an outbound notification about a state change. Events are emitted
// after the change is applied and delivery never affects the change itself.
type Event struct {
	EventID    string          `json:"event_id"`
	Type       EventType       `json:"type"`
	SubjectID  string          `json:"subject_id"`
	Actor      string          `json:"actor,omitempty"`
	Recipients []string        `json:"recipients,omitempty"`
	Ts         int64           `json:"ts"` // Unix milliseconds
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Time returns the event timestamp.
func (e Event) Time() time.Time {
	return time.UnixMilli(e.Ts)
}
