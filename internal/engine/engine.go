// Package engine implements the alert escalation engine: a concurrent state
// machine that walks fired alerts through increasingly intrusive
// notification channels until a human acknowledges them.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"escalation-service/internal/logging"
	"escalation-service/internal/metrics"
	"escalation-service/internal/models"
	"escalation-service/internal/triggers"
)

// EventSink receives alert lifecycle events. Sinks must not block; slow
// consumers are expected to buffer internally.
type EventSink interface {
	Publish(ev models.AlertEvent)
}

// Options configure a new Engine.
type Options struct {
	// Senders maps each tier to its delivery function. Missing tiers
	// produce skipped_no_sender outcomes.
	Senders map[models.Tier]SendFunc
	// Voice gates the voice tier. Nil means voice is unavailable.
	Voice VoiceGate
	// Catalog is the trigger template table. Nil uses the builtin catalog.
	Catalog *triggers.Catalog
	// Config is the initial engine configuration. The zero value uses
	// DefaultConfig.
	Config *Config
	// Logger is required for a production engine; nil discards.
	Logger *logging.Logger
	// Sinks receive lifecycle events.
	Sinks []EventSink
}

// Engine is the escalation facade composing the rate limiter, registry,
// dispatcher, and scheduler. Construct one per process at the composition
// root and pass it by reference; there is no package-level instance.
type Engine struct {
	cfgMu sync.RWMutex
	cfg   Config

	registry   *Registry
	limiter    *RateLimiter
	dispatcher *Dispatcher
	scheduler  *Scheduler
	catalog    *triggers.Catalog
	logger     *logging.Logger
	sinks      []EventSink

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds an Engine. The only error paths are malformed configuration.
func New(opts Options) (*Engine, error) {
	cfg := DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = triggers.Builtin()
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		cfg:      cfg,
		registry: NewRegistry(),
		limiter:  NewRateLimiter(),
		catalog:  catalog,
		logger:   logger,
		sinks:    opts.Sinks,
		ctx:      ctx,
		cancel:   cancel,
	}
	e.dispatcher = NewDispatcher(opts.Senders, opts.Voice, e.registry, logger)
	e.scheduler = NewScheduler(ctx, e.registry, e.dispatcher, e.Config, e.publishEvent, logger)
	return e, nil
}

// CreateRequest carries the inputs of one createAlert call. Level and
// Message override the trigger catalog when set.
type CreateRequest struct {
	Type     string            `json:"type"`
	Details  string            `json:"details"`
	Level    *models.Level     `json:"level,omitempty"`
	Message  string            `json:"message,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Create registers a new alert and runs its initial tier dispatch
// synchronously. It returns ("", false) when the engine is disabled or the
// rate limiter rejects the request; suppression is a policy decision, not an
// error.
func (e *Engine) Create(req CreateRequest) (string, bool) {
	cfg := e.Config()

	if !cfg.Enabled {
		e.logger.Debugf("Alert %q suppressed: engine disabled", req.Type)
		metrics.AlertsSuppressed.WithLabelValues("disabled").Inc()
		return "", false
	}
	if !e.limiter.Allow(req.Type, cfg.MaxAlertsPerHour, cfg.AlertCooldown) {
		e.logger.Infof("Alert %q suppressed: rate limited", req.Type)
		metrics.AlertsSuppressed.WithLabelValues("rate_limited").Inc()
		return "", false
	}

	trig := e.catalog.Lookup(req.Type)
	level := trig.Level
	if req.Level != nil {
		level = *req.Level
	}
	message := trig.Message
	if req.Message != "" {
		message = req.Message
	}

	id := uuid.Must(uuid.NewV7()).String()
	alert := &models.Alert{
		ID:        id,
		ShortID:   models.ShortIDOf(id),
		Type:      req.Type,
		Category:  trig.Category,
		Level:     level,
		Message:   message,
		Details:   req.Details,
		Metadata:  req.Metadata,
		CreatedAt: time.Now(),
		History:   make([]models.EscalationRecord, 0, 3),
	}
	e.registry.Put(alert)

	metrics.AlertsCreated.WithLabelValues(level.String()).Inc()
	e.logger.Infof("Alert created: id=%s type=%s level=%s", alert.ShortID, req.Type, level)

	e.scheduler.Start(alert.Clone())
	return id, true
}

// CreateAlert is the convenience form taking only type and details.
func (e *Engine) CreateAlert(alertType, details string) (string, bool) {
	return e.Create(CreateRequest{Type: alertType, Details: details})
}

// Acknowledge resolves a full or short ID and marks the alert acknowledged,
// cancelling its pending timer and scheduling its purge. Returns false when
// no alert matches. Acknowledging an already-acknowledged alert is a no-op
// that returns true.
func (e *Engine) Acknowledge(idOrShort string) bool {
	a, ok := e.registry.Find(idOrShort)
	if !ok {
		return false
	}

	acked := false
	e.scheduler.WithAlert(a.ID, func() {
		snap, ok := e.registry.Get(a.ID)
		if !ok {
			return
		}
		if snap.Acknowledged {
			acked = true
			return
		}

		e.scheduler.Cancel(a.ID)
		updated, ok := e.registry.MarkAcknowledged(a.ID, time.Now())
		if !ok {
			return
		}
		acked = true

		e.scheduler.ArmPurge(a.ID, e.Config().AckRetention)
		metrics.AlertsAcknowledged.Inc()
		e.logger.Infof("Alert %s acknowledged", updated.ShortID)
		e.publishEvent(models.AlertEvent{Kind: models.EventAcknowledged, Alert: updated})
	})
	return acked
}

// PendingAlerts returns all unacknowledged alerts, newest first.
func (e *Engine) PendingAlerts() []models.Alert {
	return e.registry.Pending()
}

// GetAlert resolves a full or short ID.
func (e *Engine) GetAlert(idOrShort string) (models.Alert, bool) {
	return e.registry.Find(idOrShort)
}

// AlertSummary is the compact alert view used in stats.
type AlertSummary struct {
	ID             string       `json:"id"`
	ShortID        string       `json:"short_id"`
	Type           string       `json:"type"`
	Level          models.Level `json:"level"`
	CreatedAt      time.Time    `json:"created_at"`
	Acknowledged   bool         `json:"acknowledged"`
	EscalationStep int          `json:"escalation_step"`
}

// Stats is the engine's statistics snapshot.
type Stats struct {
	Pending            int            `json:"pending"`
	ByLevel            map[string]int `json:"by_level"`
	ByCategory         map[string]int `json:"by_category"`
	RecentAlerts       []AlertSummary `json:"recent_alerts"`
	RateLimitRemaining int            `json:"rate_limit_remaining"`
}

// recentStatsLimit bounds the recent-alerts list in stats.
const recentStatsLimit = 10

// GetStats returns a snapshot of pending counts, level/category breakdowns,
// recent alerts, and remaining rate-limit budget.
func (e *Engine) GetStats() Stats {
	pending := e.registry.Pending()

	stats := Stats{
		Pending:            len(pending),
		ByLevel:            make(map[string]int),
		ByCategory:         make(map[string]int),
		RateLimitRemaining: e.limiter.Remaining(e.Config().MaxAlertsPerHour),
	}
	for _, a := range pending {
		stats.ByLevel[a.Level.String()]++
		stats.ByCategory[a.Category]++
	}
	for _, a := range e.registry.Recent(recentStatsLimit) {
		stats.RecentAlerts = append(stats.RecentAlerts, AlertSummary{
			ID:             a.ID,
			ShortID:        a.ShortID,
			Type:           a.Type,
			Level:          a.Level,
			CreatedAt:      a.CreatedAt,
			Acknowledged:   a.Acknowledged,
			EscalationStep: a.EscalationStep,
		})
	}
	return stats
}

// Config returns the current configuration.
func (e *Engine) Config() Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// UpdateConfig applies a partial update. Malformed values are rejected
// whole. A valid update takes effect for future decisions only; already
// armed timers keep their original deadline.
func (e *Engine) UpdateConfig(u ConfigUpdate) (Config, error) {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()

	updated, err := e.cfg.Apply(u)
	if err != nil {
		return Config{}, err
	}
	e.cfg = updated
	e.logger.Infof("Engine config updated")
	return updated, nil
}

// ClearAll cancels every outstanding timer and removes all alerts,
// returning the number removed.
func (e *Engine) ClearAll() int {
	e.scheduler.CancelAll()
	n := e.registry.Clear()
	e.logger.Infof("Cleared %d alerts", n)
	return n
}

// Close stops the engine. All timers are cancelled and in-flight dispatch
// contexts are cancelled; the registry contents are dropped with the
// process.
func (e *Engine) Close() {
	e.cancel()
	e.scheduler.CancelAll()
}

func (e *Engine) publishEvent(ev models.AlertEvent) {
	for _, s := range e.sinks {
		s.Publish(ev)
	}
}
