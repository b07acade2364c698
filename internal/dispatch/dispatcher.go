package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"lootwatch/internal/artifacts"
	"lootwatch/internal/clock"
	"lootwatch/internal/config"
	"lootwatch/internal/logging"
	"lootwatch/internal/notifications"
	"lootwatch/internal/services"
	"lootwatch/internal/store"
	"lootwatch/internal/workflow"
)

// Loop phases reported through workflow.EnterPhase.
const (
	PhaseSelect  = "select"
	PhaseSend    = "send"
	PhaseItemGap = "item_wait"
)

const defaultRetryInterval = 2 * time.Second

// ItemStore is the subset of the item store the dispatcher uses.
type ItemStore interface {
	GetByID(ctx context.Context, id string) (*store.Item, error)
	PendingDelivery(ctx context.Context, maxAttempts, limit int) ([]*store.Item, error)
	MarkDelivered(ctx context.Context, id string) error
	RecordDeliveryFailure(ctx context.Context, id string, cause error) error
}

// CycleResult summarizes one dispatch cycle.
type CycleResult struct {
	Selected  int
	Delivered int
	Failed    int

	// Skipped counts items that stopped being eligible after selection.
	Skipped int
}

// Dispatcher runs the delivery loop.
type Dispatcher struct {
	cfg           config.Dispatch
	store         ItemStore
	artifacts     *artifacts.Store
	channels      []notifications.Channel
	clock         clock.Clock
	retryInterval time.Duration
	logger        *slog.Logger
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithClock replaces the clock used for item pacing.
func WithClock(c clock.Clock) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithRetryInterval sets the first backoff interval between channel retries.
func WithRetryInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.retryInterval = interval
		}
	}
}

// New constructs a dispatcher for the given channels.
func New(cfg *config.Config, st ItemStore, art *artifacts.Store, channels []notifications.Channel, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Dispatcher{
		cfg:           cfg.Dispatch,
		store:         st,
		artifacts:     art,
		channels:      channels,
		clock:         clock.Real{},
		retryInterval: defaultRetryInterval,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name identifies the loop.
func (d *Dispatcher) Name() string { return "dispatch" }

// Prepare requires at least one channel.
func (d *Dispatcher) Prepare(context.Context) error {
	if len(d.channels) == 0 {
		return services.Wrap(services.ErrConfiguration, "dispatch", "prepare", "no delivery channels configured", nil)
	}
	return nil
}

func (d *Dispatcher) batchLimit() int {
	if d.cfg.MaxPerBatch <= 0 {
		return 1
	}
	return d.cfg.MaxPerBatch
}

// RunCycle delivers one batch and returns cycle_delay.
func (d *Dispatcher) RunCycle(ctx context.Context) (time.Duration, error) {
	_, err := d.Dispatch(ctx)
	return d.cfg.CycleDelay(), err
}

// Dispatch sends up to max_per_batch eligible items. Per-item failures are
// recorded on the item and do not fail the cycle; only store and context
// errors are returned.
func (d *Dispatcher) Dispatch(ctx context.Context) (CycleResult, error) {
	var result CycleResult
	workflow.EnterPhase(ctx, PhaseSelect)
	items, err := d.store.PendingDelivery(ctx, d.cfg.MaxAttempts, d.batchLimit())
	if err != nil {
		return result, fmt.Errorf("load deliverable items: %w", err)
	}
	if len(items) == 0 {
		logging.WithContext(ctx, d.logger).Debug("nothing to deliver")
		return result, nil
	}

	for _, item := range items {
		if result.Selected >= d.batchLimit() {
			break
		}
		// The batch spans several item delays and the store is shared with
		// the CLI, so the row may have been suppressed or delivered meanwhile.
		current, err := d.reload(ctx, item.ID)
		if err != nil {
			return result, err
		}
		if !current.EligibleForDelivery() {
			logging.WithContext(services.WithItemID(ctx, item.ID), d.logger).Debug("item no longer eligible; skipping",
				logging.String("state", current.State()),
			)
			result.Skipped++
			continue
		}
		item = current
		result.Selected++

		workflow.EnterPhase(ctx, PhaseSend)
		delivered, err := d.deliver(ctx, item)
		if err != nil {
			return result, err
		}
		if delivered {
			result.Delivered++
		} else {
			result.Failed++
		}

		workflow.EnterPhase(ctx, PhaseItemGap)
		if err := d.clock.Sleep(ctx, d.cfg.ItemDelay()); err != nil {
			return result, err
		}
	}

	logging.WithContext(ctx, d.logger).Info("dispatch batch complete",
		logging.String(logging.FieldEventType, "dispatch_batch_complete"),
		logging.Int("selected", result.Selected),
		logging.Int("delivered", result.Delivered),
		logging.Int("failed", result.Failed),
		logging.Int("skipped", result.Skipped),
	)
	return result, nil
}

// reload re-reads id. A row that vanished is reported as not eligible.
func (d *Dispatcher) reload(ctx context.Context, id string) (*store.Item, error) {
	item, err := d.store.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return &store.Item{ID: id}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reload %s: %w", id, err)
	}
	return item, nil
}

// deliver sends one item to every channel and records the outcome. It
// returns an error only when the outcome could not be persisted.
func (d *Dispatcher) deliver(ctx context.Context, item *store.Item) (bool, error) {
	ctx = services.WithItemID(services.WithStage(ctx, PhaseSend), item.ID)
	logger := logging.WithContext(ctx, d.logger)

	sendErr := d.sendAll(ctx, item)
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if sendErr != nil {
		logging.WarnWithContext(logger, "delivery failed; item stays eligible", "item_delivery_failed",
			logging.Int("attempt", item.DeliveryAttempts+1),
			logging.Int("max_attempts", d.cfg.MaxAttempts),
			logging.Error(sendErr),
		)
		if err := d.store.RecordDeliveryFailure(ctx, item.ID, sendErr); err != nil {
			return false, fmt.Errorf("record delivery failure %s: %w", item.ID, err)
		}
		return false, nil
	}
	if err := d.store.MarkDelivered(ctx, item.ID); err != nil {
		return false, fmt.Errorf("mark delivered %s: %w", item.ID, err)
	}
	logger.Info("item delivered",
		logging.String(logging.FieldEventType, "item_delivered"),
		logging.Int("channels", len(d.channels)),
	)
	return true, nil
}

func (d *Dispatcher) sendAll(ctx context.Context, item *store.Item) error {
	png, err := d.artifacts.Read(item.ID)
	if err != nil {
		return fmt.Errorf("load artifact: %w", err)
	}
	delivery := notifications.Delivery{
		ItemID:   item.ID,
		Title:    item.Name,
		Caption:  Caption(item),
		Filename: artifacts.FileName(item.ID),
		Artifact: png,
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, ch := range d.channels {
		wg.Add(1)
		go func(ch notifications.Channel) {
			defer wg.Done()
			if err := d.sendWithRetry(ctx, ch, delivery); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
				mu.Unlock()
			}
		}(ch)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, ch notifications.Channel, delivery notifications.Delivery) error {
	retries := d.cfg.SendRetries
	if retries < 0 {
		retries = 0
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.retryInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)

	return backoff.RetryNotify(func() error {
		err := ch.Send(ctx, delivery)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		d.logger.Debug("channel send failed; retrying",
			logging.String("channel", ch.Name()),
			logging.String(logging.FieldItemID, delivery.ItemID),
			logging.Duration("retry_in", wait),
			logging.Error(err),
		)
	})
}
