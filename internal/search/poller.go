// Package search polls the marketplace trade search and records newly listed
// items in the item store.
//
// The trade feed is sorted newest first, so each scan pages forward until it
// reaches a page holding an item that is already stored. The remainder of
// that page is still scanned so stragglers listed out of order are kept.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

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
	PhasePoll     = "poll"
	PhasePaginate = "paginate"
	PhasePageWait = "page_wait"
)

// Marketplace is the subset of the marketplace client the poller uses.
type Marketplace interface {
	Search(ctx context.Context, league string, query marketplace.Query) (*marketplace.SearchResult, error)
	Fetch(ctx context.Context, searchID string, ids []string) (*marketplace.FetchResult, error)
}

// ItemStore is the subset of the item store the poller writes to.
type ItemStore interface {
	InsertIfAbsent(ctx context.Context, item store.NewItem) (store.Outcome, error)
}

// Stop reasons reported in ScanResult.
const (
	StopKnownItem = "known_item"
	StopShortPage = "short_page"
	StopExhausted = "exhausted"
)

// ScanResult summarizes one search cycle.
type ScanResult struct {
	SearchID   string
	Total      int
	Pages      int
	Inserted   int
	Skipped    int
	Invalid    int
	Delisted   int
	StopReason string
}

// Poller runs the search loop.
type Poller struct {
	cfg    config.Search
	league string
	client Marketplace
	store  ItemStore
	clock  clock.Clock
	logger *slog.Logger
}

// Option customizes a Poller.
type Option func(*Poller)

// WithClock overrides the clock used for page delays.
func WithClock(c clock.Clock) Option {
	return func(p *Poller) {
		if c != nil {
			p.clock = c
		}
	}
}

// New constructs a search poller.
func New(cfg *config.Config, client Marketplace, st ItemStore, logger *slog.Logger, opts ...Option) *Poller {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Poller{
		cfg:    cfg.Search,
		league: cfg.Marketplace.League,
		client: client,
		store:  st,
		clock:  clock.Real{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name identifies the loop.
func (p *Poller) Name() string { return "search" }

// Prepare validates the configured query once so a malformed stat filter fails
// at startup instead of every cycle.
func (p *Poller) Prepare(context.Context) error {
	if err := marketplace.NewQuery(p.cfg).Validate(); err != nil {
		return services.Wrap(services.ErrConfiguration, "search", "prepare", "invalid search query", err)
	}
	return nil
}

// RunCycle performs one scan and returns the configured cycle delay.
func (p *Poller) RunCycle(ctx context.Context) (time.Duration, error) {
	_, err := p.Scan(ctx)
	return p.cfg.CycleDelay(), err
}

func (p *Poller) pageSize() int {
	if p.cfg.PageSize <= 0 {
		return 10
	}
	return p.cfg.PageSize
}

// Scan submits the search and pages through the results until the dedup
// boundary or the end of the feed.
func (p *Poller) Scan(ctx context.Context) (ScanResult, error) {
	ctx = services.WithStage(ctx, PhasePoll)
	workflow.EnterPhase(ctx, PhasePoll)
	logger := logging.WithContext(ctx, p.logger)

	var result ScanResult
	search, err := p.client.Search(ctx, p.league, marketplace.NewQuery(p.cfg))
	if err != nil {
		return result, fmt.Errorf("submit search: %w", err)
	}
	result.SearchID = search.ID
	result.Total = len(search.Result)

	ctx = services.WithStage(ctx, PhasePaginate)
	workflow.EnterPhase(ctx, PhasePaginate)
	size := p.pageSize()
	result.StopReason = StopExhausted
	for start := 0; start < len(search.Result); start += size {
		if start > 0 {
			workflow.EnterPhase(ctx, PhasePageWait)
			if err := p.clock.Sleep(ctx, p.cfg.PageDelay()); err != nil {
				return result, err
			}
			workflow.EnterPhase(ctx, PhasePaginate)
		}

		end := min(start+size, len(search.Result))
		page, err := p.client.Fetch(ctx, search.ID, search.Result[start:end])
		if err != nil {
			return result, fmt.Errorf("fetch page %d: %w", result.Pages+1, err)
		}
		result.Pages++
		result.Delisted += page.Delisted

		foundExisting := false
		for _, listing := range page.Listings {
			outcome, err := p.record(ctx, listing)
			if err != nil {
				return result, err
			}
			switch outcome {
			case store.OutcomeInserted:
				result.Inserted++
			case store.OutcomeSkipped:
				result.Skipped++
				foundExisting = true
			default:
				result.Invalid++
			}
		}

		if foundExisting {
			result.StopReason = StopKnownItem
			break
		}
		// Delisted entries still occupy their slot in the feed.
		if requested := end - start; requested < size || page.Returned() < requested {
			result.StopReason = StopShortPage
			break
		}
	}

	logger.Info("search scan complete",
		logging.String(logging.FieldEventType, "search_scan_complete"),
		logging.String("search_id", result.SearchID),
		logging.Int("results", result.Total),
		logging.Int("pages", result.Pages),
		logging.Int("inserted", result.Inserted),
		logging.Int("skipped", result.Skipped),
		logging.Int("delisted", result.Delisted),
		logging.String("stop_reason", result.StopReason),
	)
	return result, nil
}

// record stores one listing. A malformed item document is logged and reported
// with an empty outcome so the scan continues.
func (p *Poller) record(ctx context.Context, listing marketplace.Listing) (store.Outcome, error) {
	summary, err := marketplace.ParseItem(listing.Item)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "listing skipped; item payload unreadable", "listing_invalid",
			logging.String("listing_id", listing.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "this listing is not stored"),
		)
		return "", nil
	}
	if err := artifacts.ValidateID(summary.ID); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "listing skipped; item id unusable", "listing_invalid",
			logging.String("listing_id", listing.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "this listing is not stored"),
		)
		return "", nil
	}

	item := store.NewItem{
		ID:         summary.ID,
		Name:       summary.DisplayName(),
		RawPayload: listing.Item,
	}
	if info := listing.Listing; info != nil {
		item.Listing = &store.Listing{
			Account: info.Account.Name,
			Indexed: info.Indexed,
			Price:   info.PriceText(),
		}
	}

	itemCtx := services.WithItemID(ctx, item.ID)
	outcome, err := p.store.InsertIfAbsent(itemCtx, item)
	if err != nil {
		return "", fmt.Errorf("store listing %s: %w", item.ID, err)
	}
	logger := logging.WithContext(itemCtx, p.logger)
	if outcome == store.OutcomeInserted {
		logger.Info("item discovered",
			logging.String(logging.FieldEventType, "item_inserted"),
			logging.String("name", item.Name),
		)
	} else {
		logger.Debug("item already stored", logging.String(logging.FieldEventType, "item_skipped"))
	}
	return outcome, nil
}
