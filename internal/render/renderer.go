// Package render captures item artifacts with a headless browser pointed at
// the local item viewer.
//
// Each batch gets a fresh browser that is torn down afterwards, successful or
// not. A failed capture aborts the rest of the batch; already rendered items
// keep their flag and the remaining ones are retried after the cool-down.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"lootwatch/internal/artifacts"
	"lootwatch/internal/config"
	"lootwatch/internal/logging"
	"lootwatch/internal/services"
	"lootwatch/internal/store"
	"lootwatch/internal/workflow"
)

// Loop phases reported through workflow.EnterPhase.
const (
	PhaseFetch   = "fetch"
	PhaseLaunch  = "launch"
	PhaseCapture = "capture"
)

// ItemStore is the subset of the item store the renderer uses.
type ItemStore interface {
	GetByID(ctx context.Context, id string) (*store.Item, error)
	PendingRender(ctx context.Context, limit int) ([]*store.Item, error)
	MarkRendered(ctx context.Context, id string) error
}

// Renderer runs the render loop.
type Renderer struct {
	cfg       config.Renderer
	store     ItemStore
	artifacts *artifacts.Store
	launch    Launcher
	logger    *slog.Logger
}

// Option customizes a Renderer.
type Option func(*Renderer)

// WithLauncher replaces the browser launcher.
func WithLauncher(l Launcher) Option {
	return func(r *Renderer) {
		if l != nil {
			r.launch = l
		}
	}
}

// New constructs a renderer.
func New(cfg *config.Config, st ItemStore, art *artifacts.Store, logger *slog.Logger, opts ...Option) *Renderer {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Renderer{
		cfg:       cfg.Renderer,
		store:     st,
		artifacts: art,
		launch:    LaunchChrome,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name identifies the loop.
func (r *Renderer) Name() string { return "render" }

// Prepare checks the viewer URL.
func (r *Renderer) Prepare(context.Context) error {
	if _, err := url.ParseRequestURI(r.cfg.ViewerURL); err != nil {
		return services.Wrap(services.ErrConfiguration, "render", "prepare", "invalid viewer_url", err)
	}
	return nil
}

// ItemURL returns the viewer page the renderer captures for id.
func (r *Renderer) ItemURL(id string) string {
	return strings.TrimRight(r.cfg.ViewerURL, "/") + "/item/" + url.PathEscape(id)
}

func (r *Renderer) batchSize() int {
	if r.cfg.BatchSize <= 0 {
		return 1
	}
	return r.cfg.BatchSize
}

// RunCycle renders one batch of pending items. It waits idle_delay when
// nothing was pending or the batch drained the backlog, continues at once
// when a full batch succeeded, and cools down after a failure.
func (r *Renderer) RunCycle(ctx context.Context) (time.Duration, error) {
	workflow.EnterPhase(ctx, PhaseFetch)
	items, err := r.store.PendingRender(ctx, r.batchSize())
	if err != nil {
		return r.cfg.IdleDelay(), fmt.Errorf("load pending items: %w", err)
	}
	if len(items) == 0 {
		logging.WithContext(ctx, r.logger).Debug("nothing to render")
		return r.cfg.IdleDelay(), nil
	}

	rendered, err := r.RenderBatch(ctx, items)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "render batch aborted; cooling down", "render_batch_failed",
			logging.Int("rendered", rendered),
			logging.Int("batch", len(items)),
			logging.Duration("cooldown", r.cfg.Cooldown()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the item viewer is running at renderer.viewer_url"),
		)
		return r.cfg.Cooldown(), err
	}
	if len(items) >= r.batchSize() {
		return 0, nil
	}
	return r.cfg.IdleDelay(), nil
}

// RenderBatch launches a browser, renders items in order, and tears the
// browser down. It stops at the first failure and returns how many items
// were rendered before it.
func (r *Renderer) RenderBatch(ctx context.Context, items []*store.Item) (int, error) {
	workflow.EnterPhase(ctx, PhaseLaunch)
	browser, err := r.launch(ctx, r.cfg)
	if err != nil {
		return 0, fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if cerr := browser.Close(); cerr != nil {
			r.logger.Debug("browser close failed", logging.Error(cerr))
		}
	}()

	workflow.EnterPhase(ctx, PhaseCapture)
	rendered := 0
	for _, item := range items {
		if err := r.renderWith(ctx, browser, item.ID); err != nil {
			return rendered, err
		}
		rendered++
	}
	logging.WithContext(ctx, r.logger).Info("render batch complete",
		logging.String(logging.FieldEventType, "render_batch_complete"),
		logging.Int("rendered", rendered),
	)
	return rendered, nil
}

// RenderOne renders a single stored item with its own browser session,
// regardless of whether it already has an artifact.
func (r *Renderer) RenderOne(ctx context.Context, id string) error {
	if _, err := r.store.GetByID(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return services.Wrap(services.ErrNotFound, "render", "render one", "unknown item "+id, err)
		}
		return err
	}
	_, err := r.RenderBatch(ctx, []*store.Item{{ID: id}})
	return err
}

func (r *Renderer) renderWith(ctx context.Context, browser Browser, id string) error {
	ctx = services.WithItemID(services.WithStage(ctx, PhaseCapture), id)
	logger := logging.WithContext(ctx, r.logger)

	if err := artifacts.ValidateID(id); err != nil {
		return services.Wrap(services.ErrValidation, "render", "capture", "unsafe item id", err)
	}
	started := time.Now()
	png, err := browser.Capture(ctx, r.ItemURL(id), r.cfg.Selector)
	if err != nil {
		return fmt.Errorf("render %s: %w", id, err)
	}
	if err := r.artifacts.Write(id, png); err != nil {
		return err
	}
	if err := r.store.MarkRendered(ctx, id); err != nil {
		return fmt.Errorf("mark rendered %s: %w", id, err)
	}
	logger.Info("artifact rendered",
		logging.String(logging.FieldEventType, "item_rendered"),
		logging.Int("bytes", len(png)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}
