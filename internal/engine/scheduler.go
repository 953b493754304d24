package engine

import (
	"context"
	"sync"
	"time"

	"escalation-service/internal/logging"
	"escalation-service/internal/models"
)

// Scheduler is the escalation state machine. It decides the initial tier,
// arms the deadline timers that drive tier transitions, re-checks
// acknowledgment at fire time, and owns the per-alert cancellation handles.
//
// Every mutation for one alert id is serialized through that alert's lock:
// a timer firing and an acknowledgment landing at the same instant contend
// for the lock, and whichever acquires it first wins. Different alerts'
// timelines never block each other.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	purges map[string]*time.Timer
	locks  map[string]*sync.Mutex

	registry   *Registry
	dispatcher *Dispatcher
	config     func() Config
	publish    func(models.AlertEvent)
	logger     *logging.Logger
	ctx        context.Context
}

// NewScheduler wires the state machine to its collaborators. config is read
// at decision time so live config updates affect future transitions. publish
// may be nil.
func NewScheduler(ctx context.Context, registry *Registry, dispatcher *Dispatcher, config func() Config, publish func(models.AlertEvent), logger *logging.Logger) *Scheduler {
	return &Scheduler{
		timers:     make(map[string]*time.Timer),
		purges:     make(map[string]*time.Timer),
		locks:      make(map[string]*sync.Mutex),
		registry:   registry,
		dispatcher: dispatcher,
		config:     config,
		publish:    publish,
		logger:     logger,
		ctx:        ctx,
	}
}

// Start runs the initial transition for a freshly created alert: INFO gets
// tier 0 only, EMERGENCY jumps straight to the voice tier, WARNING and
// CRITICAL get tier 0 plus an armed timer for the next tier.
func (s *Scheduler) Start(alert models.Alert) {
	lock := s.lockFor(alert.ID)
	lock.Lock()
	defer lock.Unlock()

	cfg := s.config()

	switch alert.Level {
	case models.LevelInfo:
		rec := s.dispatcher.Dispatch(s.ctx, alert, models.TierTelegram, 0, cfg.DND())
		s.emit(models.EventCreated, alert.ID, &rec)
	case models.LevelEmergency:
		rec := s.dispatcher.Dispatch(s.ctx, alert, models.TierVoice, int(models.FinalTier), cfg.DND())
		s.emit(models.EventCreated, alert.ID, &rec)
	default:
		rec := s.dispatcher.Dispatch(s.ctx, alert, models.TierTelegram, 0, cfg.DND())
		s.emit(models.EventCreated, alert.ID, &rec)
		s.arm(alert.ID, cfg.Tier1Delay)
	}
}

// fire is the timer callback for one tier transition. The alert is
// re-fetched after the lock is held; an acknowledgment that landed first
// turns the firing into a no-op.
func (s *Scheduler) fire(id string) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}

	a, ok := s.registry.Get(id)
	if !ok || a.Acknowledged {
		return
	}

	step := a.EscalationStep + 1
	if step > int(models.FinalTier) {
		return
	}

	cfg := s.config()
	rec := s.dispatcher.Dispatch(s.ctx, a, models.Tier(step), step, cfg.DND())
	s.emit(models.EventEscalated, id, &rec)

	if step < int(models.FinalTier) {
		s.arm(id, cfg.Tier2Delay)
	}
}

// arm schedules the next tier transition for an alert.
func (s *Scheduler) arm(id string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[id]; ok {
		t.Stop()
	}
	s.timers[id] = time.AfterFunc(delay, func() { s.fire(id) })
}

// Cancel stops the pending escalation timer for an alert, if any.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timers[id]
	if !ok {
		return false
	}
	t.Stop()
	delete(s.timers, id)
	return true
}

// ArmPurge schedules removal of an acknowledged alert after the retention
// window.
func (s *Scheduler) ArmPurge(id string, retention time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.purges[id]; ok {
		t.Stop()
	}
	s.purges[id] = time.AfterFunc(retention, func() { s.purge(id) })
}

func (s *Scheduler) purge(id string) {
	s.registry.Delete(id)

	s.mu.Lock()
	delete(s.purges, id)
	delete(s.locks, id)
	s.mu.Unlock()

	s.logger.Debugf("Alert %s purged after retention window", id)
}

// CancelAll stops every outstanding timer. Used by clearAll and shutdown.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	for id, t := range s.purges {
		t.Stop()
		delete(s.purges, id)
	}
	s.locks = make(map[string]*sync.Mutex)
}

// WithAlert runs fn while holding the alert's serialization lock. The
// acknowledge path uses this so it cannot interleave with a firing timer.
func (s *Scheduler) WithAlert(id string, fn func()) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	fn()
}

func (s *Scheduler) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.locks[id]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[id] = l
	return l
}

// emit publishes a lifecycle event with a fresh registry snapshot.
func (s *Scheduler) emit(kind models.EventKind, id string, rec *models.EscalationRecord) {
	if s.publish == nil {
		return
	}
	a, ok := s.registry.Get(id)
	if !ok {
		return
	}
	s.publish(models.AlertEvent{Kind: kind, Alert: a, Record: rec})
}
