package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"lootwatch/internal/clock"
	"lootwatch/internal/logging"
)

// Manager coordinates the component loops.
type Manager struct {
	logger  *slog.Logger
	clock   clock.Clock
	minWait time.Duration

	loops []*loopState

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	fatalErr error
}

type loopState struct {
	component Component
	logger    *slog.Logger

	phase       string
	cycles      int
	failures    int
	lastErr     error
	lastErrAt   time.Time
	lastCycleAt time.Time
	nextWake    time.Time
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithClock overrides the clock used for sleeping between cycles.
func WithClock(c clock.Clock) ManagerOption {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithMinimumWait sets the floor applied to cycle waits so a component that
// returns zero cannot spin.
func WithMinimumWait(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.minWait = d
	}
}

// NewManager constructs a manager for the given components.
func NewManager(logger *slog.Logger, components []Component, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		logger:  logger,
		clock:   clock.Real{},
		minWait: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, component := range components {
		if component == nil {
			continue
		}
		m.loops = append(m.loops, &loopState{
			component: component,
			logger:    logging.NewComponentLogger(logger, component.Name()),
			phase:     PhaseIdle,
		})
	}
	return m
}

func (m *Manager) setPhase(loop *loopState, phase string) {
	m.mu.Lock()
	if loop.phase != phase {
		loop.phase = phase
		m.mu.Unlock()
		loop.logger.Debug("phase changed", logging.String(logging.FieldPhase, phase))
		return
	}
	m.mu.Unlock()
}
