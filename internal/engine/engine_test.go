package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"escalation-service/internal/logging"
	"escalation-service/internal/models"
)

var errTelegramDown = errors.New("telegram api down")

// fastConfig shrinks the escalation delays so a full chain runs in
// milliseconds. Quiet hours are disabled by collapsing the window.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Tier1Delay = 40 * time.Millisecond
	cfg.Tier2Delay = 40 * time.Millisecond
	cfg.DNDStartHour = 0
	cfg.DNDEndHour = 0
	cfg.AlertCooldown = 0
	cfg.MaxAlertsPerHour = 100
	return cfg
}

type testChannels struct {
	telegram *recordingSender
	whatsapp *recordingSender
	voice    *recordingSender
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *testChannels) {
	t.Helper()

	ch := &testChannels{&recordingSender{}, &recordingSender{}, &recordingSender{}}
	eng, err := New(Options{
		Senders: map[models.Tier]SendFunc{
			models.TierTelegram: ch.telegram.send,
			models.TierWhatsApp: ch.whatsapp.send,
			models.TierVoice:    ch.voice.send,
		},
		Voice:  stubVoiceGate(true),
		Config: &cfg,
		Logger: logging.Discard(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(eng.Close)
	return eng, ch
}

func waitFor(t *testing.T, timeout time.Duration, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func TestInfoAlertSingleDispatch(t *testing.T) {
	eng, ch := newTestEngine(t, fastConfig())

	id, ok := eng.CreateAlert("DEPLOY_COMPLETE", "v1.2.3 rolled out")
	if !ok {
		t.Fatal("create should succeed")
	}

	a, _ := eng.GetAlert(id)
	if a.Level != models.LevelInfo {
		t.Errorf("level = %s, want INFO", a.Level)
	}
	if len(a.History) != 1 || a.History[0].Tier != models.TierTelegram {
		t.Fatalf("history = %+v, want one telegram entry", a.History)
	}

	// No timer is armed for INFO; nothing else may ever fire.
	time.Sleep(120 * time.Millisecond)
	a, _ = eng.GetAlert(id)
	if len(a.History) != 1 {
		t.Errorf("history grew to %d entries, want 1", len(a.History))
	}
	if ch.whatsapp.count() != 0 || ch.voice.count() != 0 {
		t.Error("INFO alert must never reach later tiers")
	}
}

func TestEmergencyGoesStraightToVoice(t *testing.T) {
	eng, ch := newTestEngine(t, fastConfig())

	id, ok := eng.CreateAlert("SERVER_DOWN", "web-1 unreachable")
	if !ok {
		t.Fatal("create should succeed")
	}

	// The voice dispatch runs synchronously inside Create.
	a, _ := eng.GetAlert(id)
	if len(a.History) != 1 {
		t.Fatalf("history = %d entries, want exactly 1", len(a.History))
	}
	if a.History[0].Tier != models.TierVoice || a.History[0].Outcome != models.OutcomeSent {
		t.Errorf("first entry = %+v, want voice/sent", a.History[0])
	}
	if a.EscalationStep != int(models.FinalTier) {
		t.Errorf("escalation step = %d, want %d", a.EscalationStep, int(models.FinalTier))
	}
	if ch.telegram.count() != 0 || ch.whatsapp.count() != 0 {
		t.Error("emergency must skip the earlier tiers")
	}

	time.Sleep(120 * time.Millisecond)
	a, _ = eng.GetAlert(id)
	if len(a.History) != 1 {
		t.Errorf("history grew to %d entries, want 1", len(a.History))
	}
}

func TestWarningEscalationChain(t *testing.T) {
	eng, ch := newTestEngine(t, fastConfig())

	id, ok := eng.CreateAlert("CI_FAILURE_OTHER", "feature branch build broke")
	if !ok {
		t.Fatal("create should succeed")
	}

	if ch.telegram.count() != 1 {
		t.Fatalf("telegram sends = %d, want 1 immediately", ch.telegram.count())
	}

	waitFor(t, time.Second, "whatsapp escalation", func() bool { return ch.whatsapp.count() == 1 })
	waitFor(t, time.Second, "voice escalation", func() bool { return ch.voice.count() == 1 })

	a, _ := eng.GetAlert(id)
	if len(a.History) != 3 {
		t.Fatalf("history = %d entries, want 3", len(a.History))
	}
	wantTiers := []models.Tier{models.TierTelegram, models.TierWhatsApp, models.TierVoice}
	for i, tier := range wantTiers {
		if a.History[i].Tier != tier {
			t.Errorf("history[%d].Tier = %s, want %s", i, a.History[i].Tier, tier)
		}
	}
	if a.EscalationStep != int(models.FinalTier) {
		t.Errorf("escalation step = %d, want %d", a.EscalationStep, int(models.FinalTier))
	}

	// The chain is terminal at voice.
	time.Sleep(120 * time.Millisecond)
	a, _ = eng.GetAlert(id)
	if len(a.History) != 3 {
		t.Errorf("history grew past the final tier: %d entries", len(a.History))
	}
}

func TestDispatchFailureDoesNotStopChain(t *testing.T) {
	cfg := fastConfig()
	eng, ch := newTestEngine(t, cfg)
	ch.telegram.err = errTelegramDown

	id, _ := eng.CreateAlert("CI_FAILURE_OTHER", "build broke")

	waitFor(t, time.Second, "whatsapp escalation", func() bool { return ch.whatsapp.count() == 1 })

	a, _ := eng.GetAlert(id)
	if a.History[0].Outcome != models.OutcomeFailed {
		t.Errorf("first outcome = %s, want failed", a.History[0].Outcome)
	}
	if a.History[1].Outcome != models.OutcomeSent {
		t.Errorf("second outcome = %s, want sent", a.History[1].Outcome)
	}
}

func TestAcknowledgeStopsEscalation(t *testing.T) {
	cfg := fastConfig()
	cfg.Tier1Delay = 80 * time.Millisecond
	eng, ch := newTestEngine(t, cfg)

	id, _ := eng.CreateAlert("CI_FAILURE_OTHER", "build broke")
	if !eng.Acknowledge(id) {
		t.Fatal("acknowledge should succeed")
	}

	time.Sleep(160 * time.Millisecond)

	a, _ := eng.GetAlert(id)
	if !a.Acknowledged || a.AcknowledgedAt == nil {
		t.Fatal("alert should be acknowledged")
	}
	if len(a.History) != 1 {
		t.Errorf("history = %d entries after ack, want 1", len(a.History))
	}
	if ch.whatsapp.count() != 0 {
		t.Error("escalation fired after acknowledgment")
	}
}

func TestAcknowledgeByShortID(t *testing.T) {
	eng, _ := newTestEngine(t, fastConfig())

	id, _ := eng.CreateAlert("DEPLOY_COMPLETE", "done")
	short := models.ShortIDOf(id)
	if len(short) != models.ShortIDLength {
		t.Fatalf("short id %q has length %d, want %d", short, len(short), models.ShortIDLength)
	}

	if !eng.Acknowledge(short) {
		t.Error("acknowledge by short id should succeed")
	}
	a, _ := eng.GetAlert(id)
	if !a.Acknowledged {
		t.Error("alert should be acknowledged")
	}
}

func TestAcknowledgeUnknown(t *testing.T) {
	eng, _ := newTestEngine(t, fastConfig())

	if eng.Acknowledge("zzzzzz") {
		t.Error("acknowledging an unknown id should return false")
	}
}

func TestAcknowledgeTwice(t *testing.T) {
	eng, _ := newTestEngine(t, fastConfig())

	id, _ := eng.CreateAlert("DEPLOY_COMPLETE", "done")
	if !eng.Acknowledge(id) {
		t.Fatal("first acknowledge should succeed")
	}
	first, _ := eng.GetAlert(id)

	if !eng.Acknowledge(id) {
		t.Error("second acknowledge should still report success")
	}
	second, _ := eng.GetAlert(id)
	if !second.AcknowledgedAt.Equal(*first.AcknowledgedAt) {
		t.Error("second acknowledge must not move the timestamp")
	}
}

func TestPendingExcludesAcknowledged(t *testing.T) {
	eng, _ := newTestEngine(t, fastConfig())

	first, _ := eng.CreateAlert("DEPLOY_COMPLETE", "one")
	second, _ := eng.CreateAlert("DISK_SPACE_LOW", "two")
	eng.Acknowledge(first)

	pending := eng.PendingAlerts()
	if len(pending) != 1 {
		t.Fatalf("pending = %d alerts, want 1", len(pending))
	}
	if pending[0].ID != second {
		t.Errorf("pending[0] = %s, want %s", pending[0].ID, second)
	}
}

func TestRateLimitSuppression(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAlertsPerHour = 2
	eng, _ := newTestEngine(t, cfg)

	if _, ok := eng.CreateAlert("DEPLOY_COMPLETE", "one"); !ok {
		t.Fatal("first create should succeed")
	}
	if _, ok := eng.CreateAlert("DISK_SPACE_LOW", "two"); !ok {
		t.Fatal("second create should succeed")
	}
	if id, ok := eng.CreateAlert("CERT_EXPIRING", "three"); ok || id != "" {
		t.Error("third create should be suppressed by the hourly cap")
	}
	if got := len(eng.PendingAlerts()); got != 2 {
		t.Errorf("pending = %d, want 2 (suppressed alert must leave no trace)", got)
	}
}

func TestCooldownSuppression(t *testing.T) {
	cfg := fastConfig()
	cfg.AlertCooldown = time.Hour
	eng, _ := newTestEngine(t, cfg)

	if _, ok := eng.CreateAlert("DISK_SPACE_LOW", "one"); !ok {
		t.Fatal("first create should succeed")
	}
	if _, ok := eng.CreateAlert("DISK_SPACE_LOW", "again"); ok {
		t.Error("same type inside the cooldown should be suppressed")
	}
	if _, ok := eng.CreateAlert("CERT_EXPIRING", "other"); !ok {
		t.Error("different type should not be affected by the cooldown")
	}
}

func TestDisabledEngineSuppressesAll(t *testing.T) {
	cfg := fastConfig()
	cfg.Enabled = false
	eng, _ := newTestEngine(t, cfg)

	if id, ok := eng.CreateAlert("SERVER_DOWN", "down"); ok || id != "" {
		t.Error("disabled engine must suppress every alert")
	}
}

func TestCreateOverrides(t *testing.T) {
	eng, _ := newTestEngine(t, fastConfig())

	level := models.LevelInfo
	id, ok := eng.Create(CreateRequest{
		Type:    "DEPLOY_FAILED",
		Level:   &level,
		Message: "canary rollback finished",
	})
	if !ok {
		t.Fatal("create should succeed")
	}

	a, _ := eng.GetAlert(id)
	if a.Level != models.LevelInfo {
		t.Errorf("level = %s, want override INFO", a.Level)
	}
	if a.Message != "canary rollback finished" {
		t.Errorf("message = %q, want override", a.Message)
	}
	if a.Category != "deploy" {
		t.Errorf("category = %q, want catalog value", a.Category)
	}
}

func TestUnknownTypeFallback(t *testing.T) {
	eng, _ := newTestEngine(t, fastConfig())

	id, _ := eng.CreateAlert("SOMETHING_ODD", "never seen before")
	a, _ := eng.GetAlert(id)
	if a.Level != models.LevelWarning {
		t.Errorf("level = %s, want WARNING fallback", a.Level)
	}
	if a.Message != "SOMETHING_ODD" {
		t.Errorf("message = %q, want the type name", a.Message)
	}
	if a.Category != "custom" {
		t.Errorf("category = %q, want custom", a.Category)
	}
}

func TestGetStats(t *testing.T) {
	eng, _ := newTestEngine(t, fastConfig())

	eng.CreateAlert("DEPLOY_COMPLETE", "one")
	eng.CreateAlert("DISK_SPACE_LOW", "two")
	acked, _ := eng.CreateAlert("CERT_EXPIRING", "three")
	eng.Acknowledge(acked)

	stats := eng.GetStats()
	if stats.Pending != 2 {
		t.Errorf("pending = %d, want 2", stats.Pending)
	}
	if stats.ByLevel["WARNING"] != 1 || stats.ByLevel["INFO"] != 1 {
		t.Errorf("by level = %v", stats.ByLevel)
	}
	if len(stats.RecentAlerts) != 3 {
		t.Errorf("recent = %d alerts, want 3 including acknowledged", len(stats.RecentAlerts))
	}
	if stats.RateLimitRemaining != 97 {
		t.Errorf("rate limit remaining = %d, want 97", stats.RateLimitRemaining)
	}
}

func TestUpdateConfig(t *testing.T) {
	eng, _ := newTestEngine(t, fastConfig())

	bad := int64(0)
	if _, err := eng.UpdateConfig(ConfigUpdate{Tier1DelayMs: &bad}); err == nil {
		t.Error("zero tier1 delay should be rejected")
	}
	if eng.Config().Tier1Delay != 40*time.Millisecond {
		t.Error("rejected update must leave the config untouched")
	}

	delay := int64(120000)
	enabled := false
	updated, err := eng.UpdateConfig(ConfigUpdate{Tier1DelayMs: &delay, Enabled: &enabled})
	if err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	if updated.Tier1Delay != 2*time.Minute || updated.Enabled {
		t.Errorf("updated config = %+v", updated)
	}
	if eng.Config().Tier1Delay != 2*time.Minute {
		t.Error("update was not applied")
	}
}

func TestClearAll(t *testing.T) {
	eng, ch := newTestEngine(t, fastConfig())

	eng.CreateAlert("CI_FAILURE_OTHER", "one")
	eng.CreateAlert("DISK_SPACE_LOW", "two")

	if n := eng.ClearAll(); n != 2 {
		t.Errorf("cleared %d alerts, want 2", n)
	}
	if len(eng.PendingAlerts()) != 0 {
		t.Error("pending should be empty after clear")
	}

	sent := ch.whatsapp.count()
	time.Sleep(120 * time.Millisecond)
	if ch.whatsapp.count() != sent {
		t.Error("cleared alerts must not escalate afterwards")
	}
}

func TestAcknowledgedAlertPurged(t *testing.T) {
	cfg := fastConfig()
	cfg.AckRetention = 30 * time.Millisecond
	eng, _ := newTestEngine(t, cfg)

	id, _ := eng.CreateAlert("DEPLOY_COMPLETE", "done")
	eng.Acknowledge(id)

	if _, ok := eng.GetAlert(id); !ok {
		t.Fatal("acknowledged alert should stay queryable within retention")
	}
	waitFor(t, time.Second, "purge", func() bool {
		_, ok := eng.GetAlert(id)
		return !ok
	})
}

func TestAckRaceNeverRecordsAfterAcknowledgment(t *testing.T) {
	cfg := fastConfig()
	cfg.Tier1Delay = 10 * time.Millisecond
	cfg.Tier2Delay = 10 * time.Millisecond

	for i := 0; i < 20; i++ {
		eng, _ := newTestEngine(t, cfg)
		id, _ := eng.CreateAlert("CI_FAILURE_OTHER", "racy")

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(10 * time.Millisecond)
			eng.Acknowledge(id)
		}()
		wg.Wait()
		time.Sleep(40 * time.Millisecond)

		a, ok := eng.GetAlert(id)
		if !ok {
			t.Fatal("alert disappeared")
		}
		if !a.Acknowledged {
			t.Fatal("alert should be acknowledged")
		}
		for _, rec := range a.History {
			if rec.Timestamp.After(*a.AcknowledgedAt) {
				t.Fatalf("history entry at %v recorded after acknowledgment at %v",
					rec.Timestamp, *a.AcknowledgedAt)
			}
		}
		eng.Close()
	}
}

type captureSink struct {
	mu     sync.Mutex
	events []models.AlertEvent
}

func (s *captureSink) Publish(ev models.AlertEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *captureSink) kinds() []models.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.EventKind, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Kind
	}
	return out
}

func TestLifecycleEvents(t *testing.T) {
	sink := &captureSink{}
	cfg := fastConfig()
	ch := &recordingSender{}
	eng, err := New(Options{
		Senders: map[models.Tier]SendFunc{models.TierTelegram: ch.send},
		Config:  &cfg,
		Logger:  logging.Discard(),
		Sinks:   []EventSink{sink},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Close()

	id, _ := eng.CreateAlert("DEPLOY_COMPLETE", "done")
	eng.Acknowledge(id)

	kinds := sink.kinds()
	if len(kinds) != 2 || kinds[0] != models.EventCreated || kinds[1] != models.EventAcknowledged {
		t.Errorf("event kinds = %v, want [created acknowledged]", kinds)
	}
}
