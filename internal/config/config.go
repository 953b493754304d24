package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"escalation-service/internal/engine"
)

// Config holds application configuration loaded from environment.
type Config struct {
	API struct {
		Port     string
		BasePath string
	}
	Logging struct {
		Dir   string
		Level string
	}
	Telegram struct {
		BotToken  string
		ChatID    int64
		PerSecond int
	}
	Twilio struct {
		AccountSID string
		AuthToken  string
		FromNumber string
		WhatsAppTo string
		VoiceTo    string
	}
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	DB struct {
		DSN string
	}
	TriggerCatalogPath string
	Engine             engine.Config
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if v, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64); err == nil {
		cfg.Telegram.ChatID = v
	}
	if v, err := strconv.Atoi(os.Getenv("TELEGRAM_RATE_LIMIT")); err == nil {
		cfg.Telegram.PerSecond = v
	}

	cfg.Twilio.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	cfg.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	cfg.Twilio.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	cfg.Twilio.WhatsAppTo = os.Getenv("WHATSAPP_TO_NUMBER")
	cfg.Twilio.VoiceTo = os.Getenv("VOICE_TO_NUMBER")

	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	cfg.DB.DSN = os.Getenv("DB_DSN")
	cfg.TriggerCatalogPath = os.Getenv("TRIGGER_CATALOG_PATH")

	// Engine settings, overridable per variable
	cfg.Engine = engine.DefaultConfig()
	if v, err := strconv.ParseInt(os.Getenv("TIER1_DELAY_MS"), 10, 64); err == nil {
		cfg.Engine.Tier1Delay = time.Duration(v) * time.Millisecond
	}
	if v, err := strconv.ParseInt(os.Getenv("TIER2_DELAY_MS"), 10, 64); err == nil {
		cfg.Engine.Tier2Delay = time.Duration(v) * time.Millisecond
	}
	if v, err := strconv.Atoi(os.Getenv("DND_START_HOUR")); err == nil {
		cfg.Engine.DNDStartHour = v
	}
	if v, err := strconv.Atoi(os.Getenv("DND_END_HOUR")); err == nil {
		cfg.Engine.DNDEndHour = v
	}
	if v, err := strconv.ParseBool(os.Getenv("BYPASS_DND_FOR_CRITICAL")); err == nil {
		cfg.Engine.BypassDNDForCritical = v
	}
	if v, err := strconv.ParseBool(os.Getenv("ENGINE_ENABLED")); err == nil {
		cfg.Engine.Enabled = v
	}
	if v, err := strconv.Atoi(os.Getenv("MAX_ALERTS_PER_HOUR")); err == nil {
		cfg.Engine.MaxAlertsPerHour = v
	}
	if v, err := strconv.ParseInt(os.Getenv("ALERT_COOLDOWN_MS"), 10, 64); err == nil {
		cfg.Engine.AlertCooldown = time.Duration(v) * time.Millisecond
	}

	// Validate required settings
	missing := []string{}
	if cfg.Telegram.BotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if cfg.Telegram.ChatID == 0 {
		missing = append(missing, "TELEGRAM_CHAT_ID")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	if err := cfg.Engine.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid engine configuration: %w", err)
	}

	// Apply defaults
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v1"
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Telegram.PerSecond == 0 {
		cfg.Telegram.PerSecond = 1
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "alert_triggers"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "escalation-service"
	}

	return cfg, nil
}
