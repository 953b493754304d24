// Package triggers holds the static catalog mapping alert types to their
// default severity, message template, and category.
package triggers

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"escalation-service/internal/models"
)

// Trigger is one catalog entry. CreateAlert may override Level and Message
// per call; Category always comes from the catalog.
type Trigger struct {
	Level    models.Level `json:"level"`
	Message  string       `json:"message"`
	Category string       `json:"category"`
}

// Catalog is a read-only lookup table of alert type templates.
type Catalog struct {
	entries map[string]Trigger
}

// Builtin returns the catalog shipped with the service, covering the alert
// types raised by the surrounding ops assistant.
func Builtin() *Catalog {
	return &Catalog{entries: map[string]Trigger{
		"SERVER_DOWN": {
			Level:    models.LevelEmergency,
			Message:  "Server is unreachable",
			Category: "infrastructure",
		},
		"SERVICE_DEGRADED": {
			Level:    models.LevelCritical,
			Message:  "Service is responding slowly",
			Category: "infrastructure",
		},
		"DEPLOY_FAILED": {
			Level:    models.LevelCritical,
			Message:  "Deployment failed",
			Category: "deploy",
		},
		"DEPLOY_COMPLETE": {
			Level:    models.LevelInfo,
			Message:  "Deployment finished",
			Category: "deploy",
		},
		"CI_FAILURE_MAIN": {
			Level:    models.LevelCritical,
			Message:  "CI failed on the main branch",
			Category: "ci",
		},
		"CI_FAILURE_OTHER": {
			Level:    models.LevelWarning,
			Message:  "CI failed",
			Category: "ci",
		},
		"DISK_SPACE_LOW": {
			Level:    models.LevelWarning,
			Message:  "Disk space is running low",
			Category: "infrastructure",
		},
		"BACKUP_FAILED": {
			Level:    models.LevelCritical,
			Message:  "Scheduled backup failed",
			Category: "backup",
		},
		"SECURITY_ALERT": {
			Level:    models.LevelEmergency,
			Message:  "Possible security incident",
			Category: "security",
		},
		"UPTIME_DOWN": {
			Level:    models.LevelCritical,
			Message:  "Uptime check failed",
			Category: "monitoring",
		},
		"CERT_EXPIRING": {
			Level:    models.LevelWarning,
			Message:  "TLS certificate expires soon",
			Category: "infrastructure",
		},
	}}
}

// Lookup returns the trigger for alertType. Unknown types fall back to a
// generic WARNING trigger whose message is the type itself.
func (c *Catalog) Lookup(alertType string) Trigger {
	if t, ok := c.entries[alertType]; ok {
		return t
	}
	return Trigger{
		Level:    models.LevelWarning,
		Message:  alertType,
		Category: "custom",
	}
}

// Has reports whether alertType is a known catalog entry.
func (c *Catalog) Has(alertType string) bool {
	_, ok := c.entries[alertType]
	return ok
}

// Types returns all known alert types.
func (c *Catalog) Types() []string {
	out := make([]string, 0, len(c.entries))
	for k := range c.entries {
		out = append(out, k)
	}
	return out
}

// fileTrigger is the YAML shape of one catalog entry.
type fileTrigger struct {
	Level    string `yaml:"level"`
	Message  string `yaml:"message"`
	Category string `yaml:"category"`
}

// fileCatalog is the top-level YAML document.
type fileCatalog struct {
	Triggers map[string]fileTrigger `yaml:"triggers"`
}

// LoadFile reads a YAML catalog file and merges it over the builtin catalog.
// File entries replace builtin entries of the same type. Malformed files are
// configuration errors and surface as hard failures.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trigger catalog: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load reads a YAML catalog from a reader and merges it over the builtin
// catalog.
func Load(r io.Reader) (*Catalog, error) {
	var doc fileCatalog
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse trigger catalog YAML: %w", err)
	}

	c := Builtin()
	for name, ft := range doc.Triggers {
		if name == "" {
			return nil, fmt.Errorf("trigger with empty type name")
		}
		level, ok := models.ParseLevel(ft.Level)
		if !ok {
			return nil, fmt.Errorf("trigger %q: unknown level %q", name, ft.Level)
		}
		msg := ft.Message
		if msg == "" {
			msg = name
		}
		cat := ft.Category
		if cat == "" {
			cat = "custom"
		}
		c.entries[name] = Trigger{Level: level, Message: msg, Category: cat}
	}
	return c, nil
}
