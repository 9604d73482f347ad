package models

import "time"

// Push-event topics emitted by the backend stream.
const (
	TopicStewardPrediction = "steward_prediction"
)

// StewardPredictionEvent is the payload of the steward_prediction topic.
// Account routes the event to the session whose scope matches it.
type StewardPredictionEvent struct {
	Account    AccountID    `json:"account"`
	Prediction Prediction   `json:"prediction"`
	History    []Prediction `json:"history"`
	EmittedAt  time.Time    `json:"emitted_at"`
}

// ActivityEvent is the audit record exported for resolved mutations and
// scope changes. Consumed by the BI dashboards behind the embed links.
type ActivityEvent struct {
	ID         string    `json:"id"`
	Account    AccountID `json:"account"`
	ActorRole  Role      `json:"actor_role"`
	Kind       string    `json:"kind"`
	Status     string    `json:"status"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
