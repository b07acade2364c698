package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"lootwatch/internal/artifacts"
	"lootwatch/internal/config"
	"lootwatch/internal/daemon"
	"lootwatch/internal/logging"
	"lootwatch/internal/preflight"
	"lootwatch/internal/store"
	"lootwatch/internal/viewer"
	"lootwatch/internal/workflow"
)

// Options configures process runtime behavior.
type Options struct {
	// Components selects the loops to run; empty means every enabled one.
	Components []string
	// Viewer serves the item viewer alongside the loops.
	Viewer bool
	// ViewerOnly serves the viewer without starting any loop.
	ViewerOnly bool
	LogLevel   string
}

// Run starts the selected loops and blocks until SIGINT/SIGTERM or a fatal
// loop error.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("lootwatch-%s.log", runID))
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update lootwatch.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, time.Now(), cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "lootwatch-*.log", Exclude: []string{logPath}},
	)

	var names []string
	if !opts.ViewerOnly {
		names = opts.Components
		if len(names) == 0 {
			names = EnabledComponents(cfg)
		}
		if len(names) == 0 && !opts.Viewer {
			return errors.New("no components enabled; enable search, stash, renderer or dispatch in config.toml")
		}
		for _, failed := range preflight.Failed(preflight.RunAll(signalCtx, cfg)) {
			logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
				logging.String("check", failed.Name),
				logging.String("detail", failed.Detail),
			)
		}
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open item store", logging.Error(err))
		return err
	}
	defer st.Close()

	components, err := BuildComponents(cfg, st, logger, names)
	if err != nil {
		return err
	}
	if len(components) == 0 {
		return serveViewerOnly(signalCtx, cfg, st, logger)
	}
	mgr := workflow.NewManager(logger, components)

	daemonOpts := []daemon.Option{daemon.WithDatabasePath(st.Path())}
	if opts.Viewer {
		view := viewer.New(cfg, st, artifacts.New(cfg.Paths.ArtifactDir), logging.NewComponentLogger(logger, "viewer"),
			viewer.WithStatus(mgr.Status))
		daemonOpts = append(daemonOpts, daemon.WithViewer(view))
	}

	d, err := daemon.New(cfg, mgr, logger, daemonOpts...)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	logger.Info("lootwatch starting",
		logging.String(logging.FieldEventType, "daemon_starting"),
		logging.Any("components", names),
		logging.Bool("viewer", opts.Viewer),
		logging.String("log_path", logPath),
	)
	if err := d.Run(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "lootwatch stopped with error", "daemon_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration and marketplace session"),
		)
		return err
	}
	logger.Info("lootwatch shut down")
	return nil
}

func serveViewerOnly(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) error {
	view := viewer.New(cfg, st, artifacts.New(cfg.Paths.ArtifactDir), logging.NewComponentLogger(logger, "viewer"))
	if err := view.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	view.Stop()
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "lootwatch.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}
