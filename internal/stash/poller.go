// Package stash mirrors the contents of named guild stash tabs into the item
// store, tracking where each item sits.
package stash

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"lootwatch/internal/artifacts"
	"lootwatch/internal/clock"
	"lootwatch/internal/config"
	"lootwatch/internal/logging"
	"lootwatch/internal/marketplace"
	"lootwatch/internal/services"
	"lootwatch/internal/store"
	"lootwatch/internal/workflow"
)

// Loop phases reported through workflow.EnterPhase.
const (
	PhaseResolve = "resolve_tabs"
	PhaseRound   = "round"
	PhaseTabWait = "tab_wait"
)

// Marketplace is the subset of the marketplace client the poller uses.
type Marketplace interface {
	StashTab(ctx context.Context, req marketplace.StashRequest) (*marketplace.StashTabResult, error)
}

// ItemStore is the subset of the item store the poller writes to.
type ItemStore interface {
	UpsertStashItem(ctx context.Context, item store.NewItem, loc store.StashLocation) (store.Outcome, error)
}

// RoundResult summarizes one pass over every resolved tab.
type RoundResult struct {
	Tabs     int
	Inserted int
	Updated  int
	Skipped  int
	Ignored  int
}

// Poller runs the stash loop.
type Poller struct {
	cfg     config.Stash
	league  string
	client  Marketplace
	store   ItemStore
	clock   clock.Clock
	logger  *slog.Logger
	backoff Backoff
	tabs    []marketplace.StashTab
}

// Option customizes a Poller.
type Option func(*Poller)

// WithClock overrides the clock used for tab delays.
func WithClock(c clock.Clock) Option {
	return func(p *Poller) {
		if c != nil {
			p.clock = c
		}
	}
}

// New constructs a stash poller.
func New(cfg *config.Config, client Marketplace, st ItemStore, logger *slog.Logger, opts ...Option) *Poller {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Poller{
		cfg:    cfg.Stash,
		league: cfg.Marketplace.League,
		client: client,
		store:  st,
		clock:  clock.Real{},
		logger: logger,
		backoff: Backoff{
			Base:      cfg.Stash.Delay(),
			Increment: cfg.Stash.DelayIncrement(),
			Max:       cfg.Stash.DelayMax(),
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name identifies the loop.
func (p *Poller) Name() string { return "stash" }

// Tabs returns the tabs resolved by Prepare.
func (p *Poller) Tabs() []marketplace.StashTab {
	return append([]marketplace.StashTab(nil), p.tabs...)
}

// Backoff exposes the round backoff state.
func (p *Poller) Backoff() *Backoff {
	return &p.backoff
}

func (p *Poller) request(index int) marketplace.StashRequest {
	return marketplace.StashRequest{
		Account:  p.cfg.AccountName,
		Realm:    p.cfg.Realm,
		League:   p.league,
		TabIndex: index,
	}
}

// Prepare fetches the tab list once and resolves the configured names. No
// match is a configuration error.
func (p *Poller) Prepare(ctx context.Context) error {
	ctx = services.WithStage(ctx, PhaseResolve)
	workflow.EnterPhase(ctx, PhaseResolve)
	logger := logging.WithContext(ctx, p.logger)

	first, err := p.client.StashTab(ctx, p.request(0))
	if err != nil {
		return fmt.Errorf("fetch stash tab list: %w", err)
	}

	tabs, missing := ResolveTabs(first.Tabs, p.cfg.TabNames)
	for _, name := range missing {
		logging.WarnWithContext(logger, "configured stash tab not found", "stash_tab_missing",
			logging.String("tab_name", name),
			logging.String(logging.FieldImpact, "items in this tab are not tracked"),
			logging.String(logging.FieldErrorHint, "check stash.tab_names against the guild stash"),
		)
	}
	if len(tabs) == 0 {
		available := make([]string, 0, len(first.Tabs))
		for _, tab := range first.Tabs {
			available = append(available, tab.Name)
		}
		return services.Wrap(services.ErrConfiguration, "stash", "resolve tabs",
			fmt.Sprintf("none of %q match the guild stash tabs %q", p.cfg.TabNames, available), nil)
	}
	p.tabs = tabs

	names := make([]string, 0, len(tabs))
	for _, tab := range tabs {
		names = append(names, fmt.Sprintf("%s#%d", tab.Name, tab.Index))
	}
	logger.Info("stash tabs resolved",
		logging.String(logging.FieldEventType, "stash_tabs_resolved"),
		logging.String("tabs", strings.Join(names, ", ")),
	)
	return nil
}

// ResolveTabs keeps the tabs whose names case-insensitively match one of
// names, in stash order, and returns the configured names nothing matched.
func ResolveTabs(tabs []marketplace.StashTab, names []string) ([]marketplace.StashTab, []string) {
	fold := cases.Fold()
	wanted := make(map[string]string, len(names))
	for _, name := range names {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			wanted[fold.String(trimmed)] = trimmed
		}
	}
	matched := make(map[string]bool, len(wanted))
	resolved := make([]marketplace.StashTab, 0, len(wanted))
	for _, tab := range tabs {
		key := fold.String(strings.TrimSpace(tab.Name))
		if _, ok := wanted[key]; ok {
			resolved = append(resolved, tab)
			matched[key] = true
		}
	}
	var missing []string
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if !matched[fold.String(trimmed)] {
			missing = append(missing, trimmed)
		}
	}
	return resolved, missing
}

// RunCycle runs one round and returns the backoff wait. A failed round keeps
// the backoff counter and retries after the base delay.
func (p *Poller) RunCycle(ctx context.Context) (time.Duration, error) {
	result, err := p.Round(ctx)
	if err != nil {
		return p.backoff.Base, err
	}
	p.backoff.Observe(result.Inserted)
	wait := p.backoff.Wait()

	logger := logging.WithContext(ctx, p.logger)
	if result.Inserted == 0 {
		logger.Info("no new stash items; backing off",
			logging.String(logging.FieldEventType, "stash_backoff"),
			logging.Int("empty_rounds", p.backoff.EmptyRounds()),
			logging.Duration("wait", wait),
			logging.Bool("capped", p.backoff.Capped()),
		)
	}
	return wait, nil
}

// Round fetches every resolved tab once and upserts its items.
func (p *Poller) Round(ctx context.Context) (RoundResult, error) {
	ctx = services.WithStage(ctx, PhaseRound)
	workflow.EnterPhase(ctx, PhaseRound)
	logger := logging.WithContext(ctx, p.logger)

	var result RoundResult
	if len(p.tabs) == 0 {
		return result, services.Wrap(services.ErrConfiguration, "stash", "round", "no resolved tabs; Prepare was not run", nil)
	}
	for i, tab := range p.tabs {
		if i > 0 {
			workflow.EnterPhase(ctx, PhaseTabWait)
			if err := p.clock.Sleep(ctx, p.cfg.TabDelay()); err != nil {
				return result, err
			}
			workflow.EnterPhase(ctx, PhaseRound)
		}
		if err := p.scanTab(ctx, tab, &result); err != nil {
			return result, err
		}
		result.Tabs++
	}

	logger.Info("stash round complete",
		logging.String(logging.FieldEventType, "stash_round_complete"),
		logging.Int("tabs", result.Tabs),
		logging.Int("inserted", result.Inserted),
		logging.Int("updated", result.Updated),
		logging.Int("skipped", result.Skipped),
		logging.Int("ignored", result.Ignored),
	)
	return result, nil
}

func (p *Poller) scanTab(ctx context.Context, tab marketplace.StashTab, result *RoundResult) error {
	logger := logging.WithContext(ctx, p.logger).With(logging.String("tab_name", tab.Name))
	contents, err := p.client.StashTab(ctx, p.request(tab.Index))
	if err != nil {
		return fmt.Errorf("fetch stash tab %q: %w", tab.Name, err)
	}
	if len(contents.Tabs) > 0 {
		if remaining, _ := ResolveTabs(contents.Tabs, p.cfg.TabNames); len(remaining) == 0 {
			return workflow.Fatal(services.Wrap(services.ErrConfiguration, "stash", "round",
				fmt.Sprintf("none of %q remain in the guild stash", p.cfg.TabNames), nil))
		}
	}

	for _, raw := range contents.Items {
		summary, err := marketplace.ParseItem(raw)
		if err != nil {
			logging.WarnWithContext(logger, "stash item skipped; payload unreadable", "stash_item_invalid",
				logging.Error(err),
				logging.String(logging.FieldImpact, "this item is not stored"),
			)
			result.Ignored++
			continue
		}
		if err := artifacts.ValidateID(summary.ID); err != nil {
			logging.WarnWithContext(logger, "stash item skipped; item id unusable", "stash_item_invalid",
				logging.Error(err),
				logging.String(logging.FieldImpact, "this item is not stored"),
			)
			result.Ignored++
			continue
		}
		if p.cfg.SkipUnnamed && !summary.Named() {
			result.Ignored++
			continue
		}

		itemCtx := services.WithItemID(ctx, summary.ID)
		outcome, err := p.store.UpsertStashItem(itemCtx,
			store.NewItem{ID: summary.ID, Name: summary.DisplayName(), RawPayload: raw},
			store.StashLocation{TabName: tab.Name, Position: summary.Position()},
		)
		if err != nil {
			return fmt.Errorf("store stash item %s: %w", summary.ID, err)
		}
		itemLogger := logging.WithContext(itemCtx, logger)
		switch outcome {
		case store.OutcomeInserted:
			result.Inserted++
			itemLogger.Info("stash item discovered",
				logging.String(logging.FieldEventType, "item_inserted"),
				logging.String("name", summary.DisplayName()),
				logging.String("position", summary.Position()),
			)
		case store.OutcomeUpdated:
			result.Updated++
			itemLogger.Info("stash item moved",
				logging.String(logging.FieldEventType, "item_moved"),
				logging.String("position", summary.Position()),
			)
		default:
			result.Skipped++
			itemLogger.Debug("stash item unchanged", logging.String(logging.FieldEventType, "item_skipped"))
		}
	}
	return nil
}
