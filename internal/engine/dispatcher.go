package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"escalation-service/internal/logging"
	"escalation-service/internal/metrics"
	"escalation-service/internal/models"
)

// SendFunc delivers one formatted message over a channel. Implementations
// live outside the engine and are injected at construction time.
type SendFunc func(ctx context.Context, message string) error

// VoiceGate reports whether the voice channel can currently place calls.
type VoiceGate interface {
	IsAvailable() bool
}

// Dispatcher formats and sends one tier's notification via the injected
// senders, recording the outcome. Sender errors are absorbed into the
// history entry and never propagate.
type Dispatcher struct {
	senders  map[models.Tier]SendFunc
	voice    VoiceGate
	registry *Registry
	logger   *logging.Logger
}

// NewDispatcher creates a dispatcher. senders may omit tiers; a missing tier
// yields skipped_no_sender outcomes. voice may be nil.
func NewDispatcher(senders map[models.Tier]SendFunc, voice VoiceGate, registry *Registry, logger *logging.Logger) *Dispatcher {
	if senders == nil {
		senders = make(map[models.Tier]SendFunc)
	}
	return &Dispatcher{
		senders:  senders,
		voice:    voice,
		registry: registry,
		logger:   logger,
	}
}

// Dispatch sends the given tier for the alert snapshot and appends exactly
// one history entry, regardless of outcome. step is the escalation step the
// alert advances to with this dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, alert models.Alert, tier models.Tier, step int, dnd DNDPolicy) models.EscalationRecord {
	now := time.Now()
	rec := models.EscalationRecord{Tier: tier, Timestamp: now}

	switch {
	case tier == models.TierVoice && dnd.Blocked(alert.Level, now):
		rec.Outcome = models.OutcomeSkippedDND
		d.logger.Infof("Alert %s: voice tier suppressed by quiet hours", alert.ShortID)
	case tier == models.TierVoice && (d.voice == nil || !d.voice.IsAvailable()):
		rec.Outcome = models.OutcomeSkippedNoSender
		d.logger.Warnf("Alert %s: voice channel unavailable", alert.ShortID)
	default:
		sender, ok := d.senders[tier]
		if !ok {
			rec.Outcome = models.OutcomeSkippedNoSender
			d.logger.Warnf("Alert %s: no %s sender registered", alert.ShortID, tier)
			break
		}
		if err := sender(ctx, FormatMessage(alert, tier)); err != nil {
			rec.Outcome = models.OutcomeFailed
			rec.Error = err.Error()
			d.logger.Errorf("Alert %s: %s dispatch failed: %v", alert.ShortID, tier, err)
		} else {
			rec.Outcome = models.OutcomeSent
			d.logger.Infof("Alert %s: dispatched via %s (step %d)", alert.ShortID, tier, step)
		}
	}

	metrics.Dispatches.WithLabelValues(tier.String(), string(rec.Outcome)).Inc()
	d.registry.Append(alert.ID, rec, step)
	return rec
}

// FormatMessage renders the notification text for one tier: level badge,
// message and details, timestamp, type, the escalation history so far, and
// the acknowledgment instruction carrying the short ID.
func FormatMessage(a models.Alert, tier models.Tier) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", a.Level.Badge(), a.Message)
	if a.Details != "" {
		fmt.Fprintf(&b, "%s\n", a.Details)
	}
	fmt.Fprintf(&b, "Time: %s\n", a.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Type: %s\n", a.Type)

	if len(a.History) > 0 {
		b.WriteString("Previous attempts:\n")
		for _, rec := range a.History {
			fmt.Fprintf(&b, "  %s at %s: %s\n", rec.Tier, rec.Timestamp.Format("15:04:05"), rec.Outcome)
		}
	}

	fmt.Fprintf(&b, "Reply \"ack %s\" to acknowledge.", a.ShortID)
	return b.String()
}
