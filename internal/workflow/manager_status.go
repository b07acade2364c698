package workflow

import "time"

// ComponentStatus is a point-in-time view of one loop.
type ComponentStatus struct {
	Name        string    `json:"name"`
	Phase       string    `json:"phase"`
	Cycles      int       `json:"cycles"`
	Failures    int       `json:"failures"`
	LastError   string    `json:"last_error,omitempty"`
	LastErrorAt time.Time `json:"last_error_at,omitzero"`
	LastCycleAt time.Time `json:"last_cycle_at,omitzero"`
	NextWake    time.Time `json:"next_wake,omitzero"`
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool              `json:"running"`
	FatalError string            `json:"fatal_error,omitempty"`
	Components []ComponentStatus `json:"components"`
}

// Status returns the latest loop information in registration order.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := StatusSummary{Running: m.running, Components: make([]ComponentStatus, 0, len(m.loops))}
	if m.fatalErr != nil {
		summary.FatalError = m.fatalErr.Error()
	}
	for _, loop := range m.loops {
		status := ComponentStatus{
			Name:        loop.component.Name(),
			Phase:       loop.phase,
			Cycles:      loop.cycles,
			Failures:    loop.failures,
			LastErrorAt: loop.lastErrAt,
			LastCycleAt: loop.lastCycleAt,
			NextWake:    loop.nextWake,
		}
		if loop.lastErr != nil {
			status.LastError = loop.lastErr.Error()
		}
		summary.Components = append(summary.Components, status)
	}
	return summary
}

// Names returns the registered component names in registration order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.loops))
	for _, loop := range m.loops {
		names = append(names, loop.component.Name())
	}
	return names
}
