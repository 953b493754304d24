// Package db provides the optional Postgres audit log. The in-memory
// registry remains the only source of truth for escalation state; rows here
// exist purely for out-of-band inspection after the fact.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"escalation-service/internal/logging"
	"escalation-service/internal/models"
)

// auditQueueSize bounds buffered events waiting for the writer.
const auditQueueSize = 256

// AuditStore appends alert lifecycle events to Postgres asynchronously. It
// implements engine.EventSink; Publish never blocks the engine, and write
// failures are logged, never surfaced.
type AuditStore struct {
	pool   *pgxpool.Pool
	logger *logging.Logger
	queue  chan models.AlertEvent
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAuditStore connects to dsn and ensures the audit table exists.
func NewAuditStore(dsn string, logger *logging.Logger) (*AuditStore, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &AuditStore{
		pool:   pool,
		logger: logger,
		queue:  make(chan models.AlertEvent, auditQueueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	if err := s.migrate(); err != nil {
		cancel()
		pool.Close()
		return nil, err
	}

	go s.writer()
	return s, nil
}

func (s *AuditStore) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS escalation_audit (
            id          BIGSERIAL PRIMARY KEY,
            alert_id    TEXT NOT NULL,
            alert_type  TEXT NOT NULL,
            level       TEXT NOT NULL,
            category    TEXT NOT NULL,
            kind        TEXT NOT NULL,
            tier        TEXT,
            outcome     TEXT,
            detail      TEXT,
            occurred_at TIMESTAMPTZ NOT NULL
        )`)
	if err != nil {
		return fmt.Errorf("failed to create audit table: %w", err)
	}
	return nil
}

// Publish enqueues an event for the background writer. When the queue is
// full the event is dropped and logged; audit is best-effort.
func (s *AuditStore) Publish(ev models.AlertEvent) {
	select {
	case s.queue <- ev:
	default:
		s.logger.Errorf("Audit queue full, dropping %s event for alert %s", ev.Kind, ev.Alert.ShortID)
	}
}

func (s *AuditStore) writer() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.queue:
			s.insert(ev)
		}
	}
}

func (s *AuditStore) insert(ev models.AlertEvent) {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	var tier, outcome, detail interface{}
	occurredAt := time.Now()
	if ev.Record != nil {
		tier = ev.Record.Tier.String()
		outcome = string(ev.Record.Outcome)
		if ev.Record.Error != "" {
			detail = ev.Record.Error
		}
		occurredAt = ev.Record.Timestamp
	} else if ev.Kind == models.EventAcknowledged && ev.Alert.AcknowledgedAt != nil {
		occurredAt = *ev.Alert.AcknowledgedAt
	}

	_, err := s.pool.Exec(ctx, `
        INSERT INTO escalation_audit (alert_id, alert_type, level, category, kind, tier, outcome, detail, occurred_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ev.Alert.ID, ev.Alert.Type, ev.Alert.Level.String(), ev.Alert.Category,
		string(ev.Kind), tier, outcome, detail, occurredAt)
	if err != nil {
		s.logger.Errorf("Failed to write audit row for alert %s: %v", ev.Alert.ShortID, err)
	}
}

// Close stops the writer and releases the pool.
func (s *AuditStore) Close() {
	s.cancel()
	<-s.done
	s.pool.Close()
}
