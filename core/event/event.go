package event

import (
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope an event payload travels in once it leaves the
// process, e.g. when it is published to Redis.
type Event struct {
	ID        string    `json:"id"`         // Unique identifier for the event
	Name      string    `json:"name"`       // Event type name (e.g., "LimitExceeded")
	Payload   any       `json:"payload"`    // Event data
	CreatedAt time.Time `json:"created_at"` // When the envelope was created
}

// NewEvent wraps payload in an Event with a fresh UUID and timestamp.
// The name is derived from the payload type.
func NewEvent(payload any) Event {
	return Event{
		ID:        uuid.New().String(),
		Name:      Name(payload),
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// Name returns the bare type name of v, dereferencing pointers. Both
// a.LimitExceeded and b.LimitExceeded resolve to "LimitExceeded".
func Name(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
