// Package kafka consumes alert trigger events and feeds them to the engine.
package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"escalation-service/internal/engine"
	"escalation-service/internal/logging"
	"escalation-service/internal/models"
)

// Config holds consumer connection settings.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// triggerEvent is the wire shape of one alert trigger message.
type triggerEvent struct {
	Type     string            `json:"type"`
	Details  string            `json:"details"`
	Level    string            `json:"level,omitempty"`
	Message  string            `json:"message,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Consumer reads trigger events from a topic and raises alerts.
type Consumer struct {
	reader *kafka.Reader
	engine *engine.Engine
	logger *logging.Logger
}

// NewConsumer creates a consumer for the given topic.
func NewConsumer(cfg Config, eng *engine.Engine, logger *logging.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})
	return &Consumer{reader: reader, engine: eng, logger: logger}
}

// Start consumes until ctx is cancelled or the reader is closed.
func (c *Consumer) Start(ctx context.Context) {
	c.logger.Infof("Kafka consumer started")
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Infof("Kafka consumer stopped")
				return
			}
			c.logger.Errorf("Read message failed: %v", err)
			continue
		}

		var ev triggerEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			c.logger.Errorf("Unmarshal trigger event failed: %v", err)
			continue
		}
		if ev.Type == "" {
			c.logger.Errorf("Invalid trigger event: missing type")
			continue
		}

		req := engine.CreateRequest{
			Type:     ev.Type,
			Details:  ev.Details,
			Message:  ev.Message,
			Metadata: ev.Metadata,
		}
		if ev.Level != "" {
			if lvl, ok := models.ParseLevel(ev.Level); ok {
				req.Level = &lvl
			}
		}

		if id, ok := c.engine.Create(req); ok {
			c.logger.Infof("Raised alert %s from trigger event %s", models.ShortIDOf(id), ev.Type)
		} else {
			c.logger.Infof("Trigger event %s suppressed", ev.Type)
		}
	}
}

// Close shuts the underlying reader down, unblocking Start.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
