package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Publisher is the enqueue-only surface handed to producers (the activity
// exporter, the log collector).
type Publisher interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// Job consumes messages of one type.
type Job interface {
	// Kind returns the message type the job handles.
	Kind() string

	// Handle processes one payload.
	Handle(ctx context.Context, payload interface{}) error
}

// Config sizes the consumer side.
type Config struct {
	Workers    int           // concurrent consumers
	RetryLimit int           // attempts before a message is parked
	RetryDelay time.Duration // delay before a failed message re-enters the queue
}

// Message is the buffered envelope.
type Message struct {
	ID        string
	Type      string
	Payload   interface{}
	Attempts  int
	Timestamp time.Time
}

// ParsePayload recovers a typed payload from a consumed message. Payloads
// round-trip through JSON, so a handler sees either the original value (same
// process) or raw JSON (picked up after a restart).
func ParsePayload[T any](payload interface{}) (*T, error) {
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		var out T
		if err := json.Unmarshal(p, &out); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return &out, nil
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("re-encode payload %T: %w", payload, err)
		}
		var out T
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, fmt.Errorf("decode payload %T: %w", payload, err)
		}
		return &out, nil
	}
}
