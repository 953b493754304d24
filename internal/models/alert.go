package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Level is the severity of an alert.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelCritical
	LevelEmergency
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelCritical:
		return "CRITICAL"
	case LevelEmergency:
		return "EMERGENCY"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// Badge returns the marker prepended to outgoing messages.
func (l Level) Badge() string {
	switch l {
	case LevelInfo:
		return "ℹ️ INFO"
	case LevelWarning:
		return "⚠️ WARNING"
	case LevelCritical:
		return "🔴 CRITICAL"
	case LevelEmergency:
		return "🚨 EMERGENCY"
	default:
		return l.String()
	}
}

// ParseLevel converts a string to a Level. The second return value reports
// whether the input named a known level.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INFO":
		return LevelInfo, true
	case "WARNING", "WARN":
		return LevelWarning, true
	case "CRITICAL":
		return LevelCritical, true
	case "EMERGENCY":
		return LevelEmergency, true
	default:
		return LevelWarning, false
	}
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, ok := ParseLevel(s)
	if !ok {
		return fmt.Errorf("unknown alert level %q", s)
	}
	*l = parsed
	return nil
}

// Tier is one of the three ordered notification channels.
type Tier int

const (
	TierTelegram Tier = iota
	TierWhatsApp
	TierVoice
)

// FinalTier is the last channel in the escalation chain.
const FinalTier = TierVoice

func (t Tier) String() string {
	switch t {
	case TierTelegram:
		return "telegram"
	case TierWhatsApp:
		return "whatsapp"
	case TierVoice:
		return "voice"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "telegram":
		*t = TierTelegram
	case "whatsapp":
		*t = TierWhatsApp
	case "voice":
		*t = TierVoice
	default:
		return fmt.Errorf("unknown tier %q", s)
	}
	return nil
}

// Outcome is the result of one tier dispatch attempt.
type Outcome string

const (
	OutcomeSent            Outcome = "sent"
	OutcomeFailed          Outcome = "failed"
	OutcomeSkippedDND      Outcome = "skipped_dnd"
	OutcomeSkippedNoSender Outcome = "skipped_no_sender"
)

// EscalationRecord is one append-only entry in an alert's escalation history.
type EscalationRecord struct {
	Tier      Tier      `json:"tier"`
	Timestamp time.Time `json:"timestamp"`
	Outcome   Outcome   `json:"outcome"`
	Error     string    `json:"error,omitempty"`
}

// ShortIDLength is the suffix length used for low-friction acknowledgment replies.
const ShortIDLength = 6

// Alert is one in-flight escalation. It is created once and mutated only by
// the engine: the scheduler advances EscalationStep and appends History, and
// Acknowledge flips Acknowledged exactly once.
type Alert struct {
	ID             string             `json:"id"`
	ShortID        string             `json:"short_id"`
	Type           string             `json:"type"`
	Category       string             `json:"category"`
	Level          Level              `json:"level"`
	Message        string             `json:"message"`
	Details        string             `json:"details,omitempty"`
	Metadata       map[string]string  `json:"metadata,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	Acknowledged   bool               `json:"acknowledged"`
	AcknowledgedAt *time.Time         `json:"acknowledged_at,omitempty"`
	EscalationStep int                `json:"escalation_step"`
	History        []EscalationRecord `json:"escalation_history"`
}

// ShortIDOf returns the last ShortIDLength characters of a full alert ID.
func ShortIDOf(id string) string {
	if len(id) <= ShortIDLength {
		return id
	}
	return id[len(id)-ShortIDLength:]
}

// Clone returns a deep copy so callers can hand out snapshots without
// exposing engine-owned state.
func (a *Alert) Clone() Alert {
	out := *a
	if a.Metadata != nil {
		out.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			out.Metadata[k] = v
		}
	}
	if a.History != nil {
		out.History = make([]EscalationRecord, len(a.History))
		copy(out.History, a.History)
	}
	if a.AcknowledgedAt != nil {
		at := *a.AcknowledgedAt
		out.AcknowledgedAt = &at
	}
	return out
}
