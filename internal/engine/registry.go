package engine

import (
	"sort"
	"strings"
	"sync"
	"time"

	"escalation-service/internal/models"
)

// Registry owns the set of in-flight alerts, keyed by full ID. It stores the
// alert snapshots only; timer handles live in the Scheduler. All reads hand
// out defensive copies.
type Registry struct {
	mu     sync.RWMutex
	alerts map[string]*models.Alert
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{alerts: make(map[string]*models.Alert)}
}

// Put stores an alert. The registry takes ownership of the value.
func (r *Registry) Put(a *models.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts[a.ID] = a
}

// Get returns a copy of the alert with the given full ID.
func (r *Registry) Get(id string) (models.Alert, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.alerts[id]
	if !ok {
		return models.Alert{}, false
	}
	return a.Clone(), true
}

// Find resolves a full ID, a short ID, or a suffix of a full ID. Exact full
// ID match wins; otherwise the registry is scanned linearly.
func (r *Registry) Find(idOrShort string) (models.Alert, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a, ok := r.alerts[idOrShort]; ok {
		return a.Clone(), true
	}
	if idOrShort == "" {
		return models.Alert{}, false
	}
	for _, a := range r.alerts {
		if a.ShortID == idOrShort || strings.HasSuffix(a.ID, idOrShort) {
			return a.Clone(), true
		}
	}
	return models.Alert{}, false
}

// Pending returns copies of all unacknowledged alerts, newest first.
func (r *Registry) Pending() []models.Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Alert, 0, len(r.alerts))
	for _, a := range r.alerts {
		if !a.Acknowledged {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Recent returns copies of up to n alerts in any state, newest first.
func (r *Registry) Recent(n int) []models.Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Alert, 0, len(r.alerts))
	for _, a := range r.alerts {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Append records one escalation history entry and advances the step. It
// refuses to touch acknowledged or missing alerts so a late dispatch can
// never append after an acknowledgment.
func (r *Registry) Append(id string, rec models.EscalationRecord, step int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[id]
	if !ok || a.Acknowledged {
		return false
	}
	a.History = append(a.History, rec)
	if step > a.EscalationStep {
		a.EscalationStep = step
	}
	return true
}

// MarkAcknowledged flips the acknowledged flag once and returns the updated
// snapshot. The second return value is false if the alert is missing; an
// already-acknowledged alert is returned unchanged.
func (r *Registry) MarkAcknowledged(id string, at time.Time) (models.Alert, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[id]
	if !ok {
		return models.Alert{}, false
	}
	if !a.Acknowledged {
		a.Acknowledged = true
		ts := at
		a.AcknowledgedAt = &ts
	}
	return a.Clone(), true
}

// IsAcknowledged reports the acknowledged flag; missing alerts read as true
// so timer callbacks treat them as no-ops.
func (r *Registry) IsAcknowledged(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.alerts[id]
	if !ok {
		return true
	}
	return a.Acknowledged
}

// Delete removes an alert.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.alerts[id]; !ok {
		return false
	}
	delete(r.alerts, id)
	return true
}

// Clear removes everything and returns the number of alerts removed.
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.alerts)
	r.alerts = make(map[string]*models.Alert)
	return n
}

// Len returns the number of stored alerts in any state.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.alerts)
}
