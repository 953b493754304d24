package models

// EventKind classifies alert lifecycle events published to sinks
// (WebSocket stream, audit log).
type EventKind string

const (
	EventCreated      EventKind = "created"
	EventEscalated    EventKind = "escalated"
	EventAcknowledged EventKind = "acknowledged"
	EventCleared      EventKind = "cleared"
)

// AlertEvent is one lifecycle event. Alert is a snapshot taken at publish
// time; Record is set for created/escalated events and carries the dispatch
// outcome that produced the event.
type AlertEvent struct {
	Kind   EventKind         `json:"kind"`
	Alert  Alert             `json:"alert"`
	Record *EscalationRecord `json:"record,omitempty"`
}
