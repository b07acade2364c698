package workflow

import (
	"context"
	"errors"
	"time"
)

// Coarse phases set by the manager. Components add their own names.
const (
	PhaseIdle      = "idle"
	PhasePreparing = "preparing"
	PhaseRunning   = "running"
	PhaseSleeping  = "sleeping"
	PhaseStopped   = "stopped"
	PhaseFailed    = "failed"
)

// Component is one independently looping pipeline stage.
type Component interface {
	Name() string
	// Prepare runs once before the first cycle. An error stops the manager.
	Prepare(ctx context.Context) error
	// RunCycle performs one unit of work and returns how long to wait before
	// the next cycle.
	RunCycle(ctx context.Context) (time.Duration, error)
}

type fatalError struct {
	err error
}

func (f *fatalError) Error() string { return f.err.Error() }
func (f *fatalError) Unwrap() error { return f.err }

// Fatal marks err as unrecoverable; the manager stops every loop when a cycle
// returns it.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err was marked with Fatal.
func IsFatal(err error) bool {
	var f *fatalError
	return errors.As(err, &f)
}

type phaseKey struct{}

type phaseReporter func(phase string)

// EnterPhase records phase for the loop that owns ctx. It is a no-op outside a
// managed cycle.
func EnterPhase(ctx context.Context, phase string) {
	if ctx == nil {
		return
	}
	if report, ok := ctx.Value(phaseKey{}).(phaseReporter); ok && report != nil {
		report(phase)
	}
}

func withPhaseReporter(ctx context.Context, report phaseReporter) context.Context {
	return context.WithValue(ctx, phaseKey{}, report)
}
