package entity

import "time"

type EventOutcome string

const (
	OutcomeSettled   EventOutcome = "settled"
	OutcomeNoop      EventOutcome = "noop"
	OutcomeIgnored   EventOutcome = "ignored"
	OutcomeNoEntry   EventOutcome = "missing_entry_id"
	OutcomeFailed    EventOutcome = "failed"
	OutcomeRecovered EventOutcome = "recovered"
)

// WebhookEvent is the audit trail of a verified processor event.
// Deliveries counts how many times the same event id arrived.
type WebhookEvent struct {
	EventId    string       `json:"event_id" bson:"event_id"`
	Type       string       `json:"type" bson:"type"`
	EntryId    string       `json:"entry_id,omitempty" bson:"entry_id,omitempty"`
	SessionId  string       `json:"session_id,omitempty" bson:"session_id,omitempty"`
	Outcome    EventOutcome `json:"outcome" bson:"outcome"`
	Error      string       `json:"error,omitempty" bson:"error,omitempty"`
	Deliveries int          `json:"deliveries" bson:"deliveries"`
	ReceivedAt time.Time    `json:"received_at" bson:"received_at"`
}
