package health

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Monitor collects per-component statuses from across a pipeline process
// and aggregates them for the /health endpoint. All methods are safe for
// concurrent use.
type Monitor struct {
	mu     sync.RWMutex
	byName map[string]Status
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{byName: make(map[string]Status)}
}

// Update records the status for a named component. The status is stamped
// with the name and, when missing, the current time.
func (m *Monitor) Update(name string, status Status) {
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}

	m.mu.Lock()
	m.byName[name] = status
	m.mu.Unlock()
}

// UpdateHealthy records the component as healthy.
func (m *Monitor) UpdateHealthy(name, message string) {
	m.Update(name, NewHealthy(name, message))
}

// UpdateUnhealthy records the component as unhealthy.
func (m *Monitor) UpdateUnhealthy(name, message string) {
	m.Update(name, NewUnhealthy(name, message))
}

// UpdateDegraded records the component as degraded.
func (m *Monitor) UpdateDegraded(name, message string) {
	m.Update(name, NewDegraded(name, message))
}

// Get returns the status for a named component.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.byName[name]
	return status, ok
}

// GetAll returns a copy of every current status keyed by component name.
func (m *Monitor) GetAll() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return maps.Clone(m.byName)
}

// Remove drops a component from monitoring, for example when its transport
// client closes.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	delete(m.byName, name)
	m.mu.Unlock()
}

// AggregateHealth folds every tracked component into one status under
// systemName, following the Aggregate rules.
func (m *Monitor) AggregateHealth(systemName string) Status {
	m.mu.RLock()
	subs := slices.Collect(maps.Values(m.byName))
	m.mu.RUnlock()

	return Aggregate(systemName, subs)
}

// Count returns the number of tracked components.
func (m *Monitor) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.byName)
}

// Clear drops every tracked component.
func (m *Monitor) Clear() {
	m.mu.Lock()
	m.byName = make(map[string]Status)
	m.mu.Unlock()
}
