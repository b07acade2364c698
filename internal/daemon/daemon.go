package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	sddaemon "github.com/coreos/go-systemd/v22/daemon"

	"lootwatch/internal/config"
	"lootwatch/internal/logging"
	"lootwatch/internal/workflow"
)

// Workflow is the part of workflow.Manager the daemon drives.
type Workflow interface {
	Names() []string
	Start(ctx context.Context) error
	Stop()
	Wait() error
	Status() workflow.StatusSummary
}

// Viewer is the part of viewer.Server the daemon drives.
type Viewer interface {
	Start(ctx context.Context) error
	Stop()
	Addr() string
}

// Notifier reports service state to the init system.
type Notifier func(state string) (bool, error)

func systemdNotify(state string) (bool, error) {
	return sddaemon.SdNotify(false, state)
}

// Daemon runs the workflow under component locks.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	workflow Workflow
	viewer   Viewer
	notify   Notifier
	dbPath   string

	mu      sync.Mutex
	locks   *Locks
	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	DatabasePath string
	LockPaths    []string
	ViewerAddr   string
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithViewer serves the item viewer for the lifetime of the daemon.
func WithViewer(v Viewer) Option {
	return func(d *Daemon) { d.viewer = v }
}

// WithNotifier replaces the systemd notifier.
func WithNotifier(n Notifier) Option {
	return func(d *Daemon) {
		if n != nil {
			d.notify = n
		}
	}
}

// WithDatabasePath records the item database location for Status.
func WithDatabasePath(path string) Option {
	return func(d *Daemon) { d.dbPath = path }
}

// New constructs a daemon around a configured workflow.
func New(cfg *config.Config, wf Workflow, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || wf == nil {
		return nil, errors.New("daemon requires config and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{cfg: cfg, logger: logger, workflow: wf, notify: systemdNotify}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the component locks, starts the viewer, then the loops.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	locks, err := AcquireLocks(d.cfg, d.workflow.Names()...)
	if err != nil {
		return err
	}

	if d.viewer != nil {
		if err := d.viewer.Start(ctx); err != nil {
			_ = locks.Release()
			return fmt.Errorf("start viewer: %w", err)
		}
	}
	if err := d.workflow.Start(ctx); err != nil {
		if d.viewer != nil {
			d.viewer.Stop()
		}
		_ = locks.Release()
		return fmt.Errorf("start workflow: %w", err)
	}

	d.mu.Lock()
	d.locks = locks
	d.mu.Unlock()
	d.running.Store(true)
	d.sdNotify(sddaemon.SdNotifyReady)
	d.logger.Info("lootwatch daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.Any("components", d.workflow.Names()),
		logging.Any("locks", locks.Paths()),
	)
	return nil
}

// Stop stops the loops and the viewer and releases the locks.
func (d *Daemon) Stop() {
	if !d.running.Swap(false) {
		return
	}
	d.sdNotify(sddaemon.SdNotifyStopping)
	d.workflow.Stop()
	if d.viewer != nil {
		d.viewer.Stop()
	}
	d.mu.Lock()
	locks := d.locks
	d.locks = nil
	d.mu.Unlock()
	if err := locks.Release(); err != nil {
		d.logger.Warn("failed to release component locks", logging.Error(err))
	}
	d.logger.Info("lootwatch daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Run starts the daemon and blocks until ctx is cancelled or a loop stops
// fatally. A fatal loop error is returned.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- d.workflow.Wait() }()

	var err error
	select {
	case <-ctx.Done():
		d.logger.Info("shutdown requested")
	case err = <-done:
	}
	d.Stop()
	return err
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(),
		DatabasePath: d.dbPath,
	}
	d.mu.Lock()
	status.LockPaths = d.locks.Paths()
	d.mu.Unlock()
	if d.viewer != nil {
		status.ViewerAddr = d.viewer.Addr()
	}
	return status
}

func (d *Daemon) sdNotify(state string) {
	sent, err := d.notify(state)
	if err != nil {
		d.logger.Debug("systemd notify failed", logging.String("state", state), logging.Error(err))
		return
	}
	if sent {
		d.logger.Debug("systemd notified", logging.String("state", state))
	}
}
