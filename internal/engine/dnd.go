package engine

import (
	"time"

	"escalation-service/internal/models"
)

// DNDPolicy decides whether the voice tier may ring at a given moment.
// It applies only to the final tier; earlier tiers always deliver.
type DNDPolicy struct {
	// StartHour/EndHour define the window [StartHour, EndHour) in local
	// time. StartHour > EndHour wraps midnight.
	StartHour int
	EndHour   int
	// BypassCritical lets CRITICAL alerts through the window.
	BypassCritical bool
}

// Blocked reports whether a voice dispatch for the given level is suppressed
// right now.
func (p DNDPolicy) Blocked(level models.Level, now time.Time) bool {
	if level == models.LevelEmergency {
		return false
	}
	if level == models.LevelCritical && p.BypassCritical {
		return false
	}
	return p.inWindow(now.Hour())
}

func (p DNDPolicy) inWindow(hour int) bool {
	if p.StartHour == p.EndHour {
		return false
	}
	if p.StartHour > p.EndHour {
		// Overnight window, e.g. [23, 7).
		return hour >= p.StartHour || hour < p.EndHour
	}
	return hour >= p.StartHour && hour < p.EndHour
}
