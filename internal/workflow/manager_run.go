package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lootwatch/internal/logging"
	"lootwatch/internal/services"
)

// Start prepares every component and launches one loop per component.
// A prepare failure aborts startup and is returned wrapped with Fatal.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.loops) == 0 {
		m.mu.Unlock()
		return errors.New("no components enabled")
	}
	m.running = true
	m.fatalErr = nil
	m.mu.Unlock()

	for _, loop := range m.loops {
		m.setPhase(loop, PhasePreparing)
		prepCtx := services.WithComponent(ctx, loop.component.Name())
		if err := loop.component.Prepare(prepCtx); err != nil {
			m.setPhase(loop, PhaseFailed)
			m.recordError(loop, err)
			logging.ErrorWithContext(loop.logger, "component prepare failed", "prepare_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the component configuration"),
			)
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			return Fatal(fmt.Errorf("prepare %s: %w", loop.component.Name(), err))
		}
		loop.logger.Info("component prepared", logging.String(logging.FieldEventType, "component_prepared"))
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.wg.Add(len(m.loops))
	m.mu.Unlock()

	for _, loop := range m.loops {
		go m.runLoop(runCtx, loop)
	}
	return nil
}

// Stop cancels every loop and waits for them to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

// Wait blocks until every loop has exited and returns the fatal error that
// stopped them, if any.
func (m *Manager) Wait() error {
	m.wg.Wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return m.fatalErr
}

// Run starts the loops and blocks until ctx is cancelled or a loop fails fatally.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	err := m.Wait()
	m.Stop()
	return err
}

func (m *Manager) runLoop(ctx context.Context, loop *loopState) {
	defer m.wg.Done()
	defer m.markStopped(loop)
	name := loop.component.Name()

	for {
		if ctx.Err() != nil {
			return
		}

		correlationID := uuid.NewString()
		cycleCtx := services.WithRequestID(services.WithComponent(ctx, name), correlationID)
		cycleCtx = withPhaseReporter(cycleCtx, func(phase string) { m.setPhase(loop, phase) })
		logger := logging.WithContext(cycleCtx, loop.logger)

		m.setPhase(loop, PhaseRunning)
		started := m.clock.Now()
		wait, err := loop.component.RunCycle(cycleCtx)
		m.finishCycle(loop, started)

		if err != nil {
			if ctx.Err() != nil && errors.Is(err, context.Canceled) {
				logger.Debug("cycle interrupted by shutdown")
				return
			}
			m.recordError(loop, err)
			if IsFatal(err) {
				m.setPhase(loop, PhaseFailed)
				logging.ErrorWithContext(logger, "component stopped by fatal error", "component_fatal",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "fix the configuration and restart"),
				)
				m.fail(err)
				return
			}
			logging.WarnWithContext(logger, "cycle failed; retrying after wait", "cycle_failed",
				logging.Error(err),
				logging.Duration("retry_in", wait),
				logging.String(logging.FieldImpact, "this cycle's work is retried next cycle"),
			)
		}

		if wait < m.minWait {
			wait = m.minWait
		}
		m.mu.Lock()
		loop.nextWake = m.clock.Now().Add(wait)
		m.mu.Unlock()
		m.setPhase(loop, PhaseSleeping)
		logger.Debug("sleeping", logging.Duration("wait", wait))
		if err := m.clock.Sleep(ctx, wait); err != nil {
			return
		}
	}
}

func (m *Manager) markStopped(loop *loopState) {
	m.mu.RLock()
	failed := loop.phase == PhaseFailed
	m.mu.RUnlock()
	if !failed {
		m.setPhase(loop, PhaseStopped)
	}
}

func (m *Manager) finishCycle(loop *loopState, started time.Time) {
	m.mu.Lock()
	loop.cycles++
	loop.lastCycleAt = started
	m.mu.Unlock()
}

func (m *Manager) recordError(loop *loopState, err error) {
	m.mu.Lock()
	loop.failures++
	loop.lastErr = err
	loop.lastErrAt = m.clock.Now()
	m.mu.Unlock()
}

func (m *Manager) fail(err error) {
	m.mu.Lock()
	if m.fatalErr == nil {
		m.fatalErr = err
	}
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
