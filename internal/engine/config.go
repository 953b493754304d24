package engine

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config is the mutable engine configuration. Delay fields are stored as
// durations; the JSON representation uses millisecond integers to match the
// wire format callers configure with.
type Config struct {
	// Tier1Delay is the wait between the first and second channel.
	Tier1Delay time.Duration
	// Tier2Delay is the wait between the second and third channel.
	Tier2Delay time.Duration
	// DNDStartHour/DNDEndHour define the quiet-hours window [start, end)
	// in local time. start > end wraps midnight.
	DNDStartHour int
	DNDEndHour   int
	// BypassDNDForCritical lets CRITICAL alerts ring through quiet hours.
	BypassDNDForCritical bool
	// Enabled globally gates alert creation.
	Enabled bool
	// MaxAlertsPerHour caps the rolling creation window across all types.
	MaxAlertsPerHour int
	// AlertCooldown is the minimum spacing between alerts of the same type.
	AlertCooldown time.Duration
	// AckRetention is how long an acknowledged alert stays queryable
	// before it is purged from the registry.
	AckRetention time.Duration
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Tier1Delay:           15 * time.Minute,
		Tier2Delay:           30 * time.Minute,
		DNDStartHour:         23,
		DNDEndHour:           7,
		BypassDNDForCritical: true,
		Enabled:              true,
		MaxAlertsPerHour:     10,
		AlertCooldown:        5 * time.Minute,
		AckRetention:         time.Hour,
	}
}

// Validate reports malformed configuration. These are the only errors the
// engine surfaces as hard failures.
func (c Config) Validate() error {
	if c.Tier1Delay <= 0 {
		return fmt.Errorf("tier1 delay must be positive, got %v", c.Tier1Delay)
	}
	if c.Tier2Delay <= 0 {
		return fmt.Errorf("tier2 delay must be positive, got %v", c.Tier2Delay)
	}
	if c.DNDStartHour < 0 || c.DNDStartHour > 23 {
		return fmt.Errorf("dnd start hour must be in [0,23], got %d", c.DNDStartHour)
	}
	if c.DNDEndHour < 0 || c.DNDEndHour > 23 {
		return fmt.Errorf("dnd end hour must be in [0,23], got %d", c.DNDEndHour)
	}
	if c.MaxAlertsPerHour <= 0 {
		return fmt.Errorf("max alerts per hour must be positive, got %d", c.MaxAlertsPerHour)
	}
	if c.AlertCooldown < 0 {
		return fmt.Errorf("alert cooldown must not be negative, got %v", c.AlertCooldown)
	}
	if c.AckRetention <= 0 {
		return fmt.Errorf("ack retention must be positive, got %v", c.AckRetention)
	}
	return nil
}

// DND returns the quiet-hours policy derived from this configuration.
func (c Config) DND() DNDPolicy {
	return DNDPolicy{
		StartHour:      c.DNDStartHour,
		EndHour:        c.DNDEndHour,
		BypassCritical: c.BypassDNDForCritical,
	}
}

// configJSON is the wire shape of Config.
type configJSON struct {
	Tier1DelayMs         int64 `json:"tier1_delay_ms"`
	Tier2DelayMs         int64 `json:"tier2_delay_ms"`
	DNDStartHour         int   `json:"dnd_start_hour"`
	DNDEndHour           int   `json:"dnd_end_hour"`
	BypassDNDForCritical bool  `json:"bypass_dnd_for_critical"`
	Enabled              bool  `json:"enabled"`
	MaxAlertsPerHour     int   `json:"max_alerts_per_hour"`
	AlertCooldownMs      int64 `json:"alert_cooldown_ms"`
	AckRetentionMs       int64 `json:"ack_retention_ms"`
}

func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(configJSON{
		Tier1DelayMs:         c.Tier1Delay.Milliseconds(),
		Tier2DelayMs:         c.Tier2Delay.Milliseconds(),
		DNDStartHour:         c.DNDStartHour,
		DNDEndHour:           c.DNDEndHour,
		BypassDNDForCritical: c.BypassDNDForCritical,
		Enabled:              c.Enabled,
		MaxAlertsPerHour:     c.MaxAlertsPerHour,
		AlertCooldownMs:      c.AlertCooldown.Milliseconds(),
		AckRetentionMs:       c.AckRetention.Milliseconds(),
	})
}

func (c *Config) UnmarshalJSON(data []byte) error {
	var w configJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = Config{
		Tier1Delay:           time.Duration(w.Tier1DelayMs) * time.Millisecond,
		Tier2Delay:           time.Duration(w.Tier2DelayMs) * time.Millisecond,
		DNDStartHour:         w.DNDStartHour,
		DNDEndHour:           w.DNDEndHour,
		BypassDNDForCritical: w.BypassDNDForCritical,
		Enabled:              w.Enabled,
		MaxAlertsPerHour:     w.MaxAlertsPerHour,
		AlertCooldown:        time.Duration(w.AlertCooldownMs) * time.Millisecond,
		AckRetention:         time.Duration(w.AckRetentionMs) * time.Millisecond,
	}
	return nil
}

// ConfigUpdate is a partial configuration change. Nil fields keep their
// current value.
type ConfigUpdate struct {
	Tier1DelayMs         *int64 `json:"tier1_delay_ms,omitempty"`
	Tier2DelayMs         *int64 `json:"tier2_delay_ms,omitempty"`
	DNDStartHour         *int   `json:"dnd_start_hour,omitempty"`
	DNDEndHour           *int   `json:"dnd_end_hour,omitempty"`
	BypassDNDForCritical *bool  `json:"bypass_dnd_for_critical,omitempty"`
	Enabled              *bool  `json:"enabled,omitempty"`
	MaxAlertsPerHour     *int   `json:"max_alerts_per_hour,omitempty"`
	AlertCooldownMs      *int64 `json:"alert_cooldown_ms,omitempty"`
	AckRetentionMs       *int64 `json:"ack_retention_ms,omitempty"`
}

// Apply returns a copy of c with the update applied and validated.
func (c Config) Apply(u ConfigUpdate) (Config, error) {
	out := c
	if u.Tier1DelayMs != nil {
		out.Tier1Delay = time.Duration(*u.Tier1DelayMs) * time.Millisecond
	}
	if u.Tier2DelayMs != nil {
		out.Tier2Delay = time.Duration(*u.Tier2DelayMs) * time.Millisecond
	}
	if u.DNDStartHour != nil {
		out.DNDStartHour = *u.DNDStartHour
	}
	if u.DNDEndHour != nil {
		out.DNDEndHour = *u.DNDEndHour
	}
	if u.BypassDNDForCritical != nil {
		out.BypassDNDForCritical = *u.BypassDNDForCritical
	}
	if u.Enabled != nil {
		out.Enabled = *u.Enabled
	}
	if u.MaxAlertsPerHour != nil {
		out.MaxAlertsPerHour = *u.MaxAlertsPerHour
	}
	if u.AlertCooldownMs != nil {
		out.AlertCooldown = time.Duration(*u.AlertCooldownMs) * time.Millisecond
	}
	if u.AckRetentionMs != nil {
		out.AckRetention = time.Duration(*u.AckRetentionMs) * time.Millisecond
	}
	if err := out.Validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}
