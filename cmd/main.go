package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"escalation-service/internal/api"
	"escalation-service/internal/config"
	"escalation-service/internal/db"
	"escalation-service/internal/engine"
	"escalation-service/internal/kafka"
	"escalation-service/internal/logging"
	"escalation-service/internal/models"
	"escalation-service/internal/providers"
	"escalation-service/internal/stream"
	"escalation-service/internal/triggers"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Trigger catalog: builtin, or builtin merged with a YAML override
	catalog := triggers.Builtin()
	if cfg.TriggerCatalogPath != "" {
		catalog, err = triggers.LoadFile(cfg.TriggerCatalogPath)
		if err != nil {
			logger.Errorf("Failed to load trigger catalog: %v", err)
			log.Fatalf("Trigger catalog load failed: %v", err)
		}
	}

	// Channel senders
	telegram, err := providers.NewTelegramSender(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.PerSecond, logger)
	if err != nil {
		log.Fatalf("Telegram sender init failed: %v", err)
	}
	senders := map[models.Tier]engine.SendFunc{
		models.TierTelegram: telegram.Send,
	}
	if whatsapp, err := providers.NewWhatsAppSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber, cfg.Twilio.WhatsAppTo, logger); err == nil {
		senders[models.TierWhatsApp] = whatsapp.Send
	} else {
		logger.Warnf("WhatsApp sender disabled: %v", err)
	}
	voice := providers.NewVoiceCaller(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber, cfg.Twilio.VoiceTo, logger)
	if voice.IsAvailable() {
		senders[models.TierVoice] = voice.Send
	} else {
		logger.Warnf("Voice caller disabled: missing Twilio configuration")
	}

	// Event sinks: WebSocket stream, plus the Postgres audit log when configured
	hub := stream.NewHub(logger)
	sinks := []engine.EventSink{hub}

	var audit *db.AuditStore
	if cfg.DB.DSN != "" {
		audit, err = db.NewAuditStore(cfg.DB.DSN, logger)
		if err != nil {
			logger.Errorf("Audit store init failed: %v", err)
			log.Fatalf("Audit store init failed: %v", err)
		}
		sinks = append(sinks, audit)
	}

	// Build the engine
	eng, err := engine.New(engine.Options{
		Senders: senders,
		Voice:   voice,
		Catalog: catalog,
		Config:  &cfg.Engine,
		Logger:  logger,
		Sinks:   sinks,
	})
	if err != nil {
		log.Fatalf("Engine init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Kafka intake is optional; without a broker the HTTP API is the only entry point
	var consumer *kafka.Consumer
	if cfg.Kafka.Broker != "" {
		consumer = kafka.NewConsumer(kafka.Config{
			Brokers: []string{cfg.Kafka.Broker},
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, eng, logger)
		go consumer.Start(ctx)
	}

	// Start API server
	handler := api.NewHandler(eng, hub, logger)
	router := api.NewRouter(handler, logger, cfg.API.BasePath)
	go func() {
		logger.Infof("API started on %s", cfg.API.Port)
		if err := router.Run(cfg.API.Port); err != nil {
			logger.Errorf("API run failed: %v", err)
		}
	}()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Infof("Shutting down...")
	cancel()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Errorf("Kafka consumer close failed: %v", err)
		}
	}
	eng.Close()
	hub.Close()
	if audit != nil {
		audit.Close()
	}
	logger.Infof("Service stopped")
}
