package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lootwatch/internal/clock"
	"lootwatch/internal/services"
	"lootwatch/internal/workflow"
)

type stubComponent struct {
	name       string
	prepareErr error
	wait       time.Duration
	errs       []error
	phase      string

	mu           sync.Mutex
	cycles       int
	prepared     bool
	requestIDs   []string
	componentCtx string
}

func (s *stubComponent) Name() string { return s.name }

func (s *stubComponent) Prepare(context.Context) error {
	s.mu.Lock()
	s.prepared = true
	s.mu.Unlock()
	return s.prepareErr
}

func (s *stubComponent) RunCycle(ctx context.Context) (time.Duration, error) {
	if s.phase != "" {
		workflow.EnterPhase(ctx, s.phase)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.cycles
	s.cycles++
	if id, ok := services.RequestIDFromContext(ctx); ok {
		s.requestIDs = append(s.requestIDs, id)
	}
	if name, ok := services.ComponentFromContext(ctx); ok {
		s.componentCtx = name
	}
	if idx < len(s.errs) {
		return s.wait, s.errs[idx]
	}
	return s.wait, nil
}

func (s *stubComponent) Cycles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycles
}

func newFakeClock() *clock.Fake {
	return clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestManagerRunsCyclesAndSleepsReturnedWait(t *testing.T) {
	fake := newFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake.OnSleep = func(time.Duration) {
		if len(fake.Sleeps()) >= 3 {
			cancel()
		}
	}

	comp := &stubComponent{name: "search", wait: 15 * time.Second, phase: "paginate"}
	mgr := workflow.NewManager(nil, []workflow.Component{comp}, workflow.WithClock(fake))
	if err := mgr.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if comp.Cycles() != 3 {
		t.Fatalf("expected 3 cycles, got %d", comp.Cycles())
	}
	for _, d := range fake.Sleeps() {
		if d != 15*time.Second {
			t.Fatalf("expected 15s sleeps, got %v", fake.Sleeps())
		}
	}
	if comp.componentCtx != "search" {
		t.Fatalf("expected component in context, got %q", comp.componentCtx)
	}
	seen := map[string]bool{}
	for _, id := range comp.requestIDs {
		if id == "" || seen[id] {
			t.Fatalf("expected unique correlation ids, got %v", comp.requestIDs)
		}
		seen[id] = true
	}

	status := mgr.Status()
	if status.Running {
		t.Fatal("expected manager to report stopped")
	}
	if len(status.Components) != 1 || status.Components[0].Cycles != 3 || status.Components[0].Phase != workflow.PhaseStopped {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestManagerRetriesAfterCycleError(t *testing.T) {
	fake := newFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake.OnSleep = func(time.Duration) {
		if len(fake.Sleeps()) >= 2 {
			cancel()
		}
	}

	comp := &stubComponent{name: "stash", wait: time.Second, errs: []error{errors.New("boom")}}
	mgr := workflow.NewManager(nil, []workflow.Component{comp}, workflow.WithClock(fake))
	if err := mgr.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if comp.Cycles() != 2 {
		t.Fatalf("expected the loop to continue after an error, got %d cycles", comp.Cycles())
	}
	status := mgr.Status().Components[0]
	if status.Failures != 1 || status.LastError != "boom" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestManagerStopsOnFatalCycleError(t *testing.T) {
	fake := newFakeClock()
	fatal := workflow.Fatal(errors.New("no tabs"))
	failing := &stubComponent{name: "stash", wait: time.Second, errs: []error{fatal}}

	mgr := workflow.NewManager(nil, []workflow.Component{failing}, workflow.WithClock(fake))
	err := mgr.Run(context.Background())
	if !workflow.IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if failing.Cycles() != 1 {
		t.Fatalf("expected a single cycle, got %d", failing.Cycles())
	}
	if mgr.Status().FatalError == "" {
		t.Fatal("expected fatal error in status")
	}
}

func TestManagerPrepareErrorIsFatal(t *testing.T) {
	ok := &stubComponent{name: "search"}
	bad := &stubComponent{name: "stash", prepareErr: services.ErrConfiguration}
	mgr := workflow.NewManager(nil, []workflow.Component{ok, bad}, workflow.WithClock(newFakeClock()))

	err := mgr.Run(context.Background())
	if !workflow.IsFatal(err) || !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected fatal configuration error, got %v", err)
	}
	if ok.Cycles() != 0 || bad.Cycles() != 0 {
		t.Fatal("no cycle may run after a prepare failure")
	}
	if phase := mgr.Status().Components[1].Phase; phase != workflow.PhaseFailed {
		t.Fatalf("expected failed phase, got %q", phase)
	}
}

func TestManagerAppliesMinimumWait(t *testing.T) {
	fake := newFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake.OnSleep = func(time.Duration) { cancel() }

	comp := &stubComponent{name: "render"}
	mgr := workflow.NewManager(nil, []workflow.Component{comp}, workflow.WithClock(fake), workflow.WithMinimumWait(time.Second))
	if err := mgr.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sleeps := fake.Sleeps(); len(sleeps) != 1 || sleeps[0] != time.Second {
		t.Fatalf("expected minimum wait, got %v", sleeps)
	}
}

func TestManagerRequiresComponents(t *testing.T) {
	mgr := workflow.NewManager(nil, nil)
	if err := mgr.Start(context.Background()); err == nil {
		t.Fatal("expected error without components")
	}
}

func TestEnterPhaseOutsideManagerIsNoop(t *testing.T) {
	workflow.EnterPhase(context.Background(), "poll")
	if workflow.IsFatal(nil) || workflow.Fatal(nil) != nil {
		t.Fatal("nil errors must not be fatal")
	}
}
