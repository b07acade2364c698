package stash_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"lootwatch/internal/clock"
	"lootwatch/internal/marketplace"
	"lootwatch/internal/services"
	"lootwatch/internal/stash"
	"lootwatch/internal/store"
	"lootwatch/internal/testsupport"
	"lootwatch/internal/workflow"
)

func TestBackoffEscalation(t *testing.T) {
	b := stash.Backoff{Base: 15 * time.Second, Increment: 5 * time.Second, Max: 90 * time.Second}
	if got := b.Wait(); got != 15*time.Second {
		t.Fatalf("after 0 empty rounds: got %v", got)
	}
	for range 3 {
		b.Observe(0)
	}
	if got := b.Wait(); got != 30*time.Second {
		t.Fatalf("after 3 empty rounds: got %v", got)
	}
	for range 20 {
		b.Observe(0)
	}
	if got := b.Wait(); got != 90*time.Second || !b.Capped() {
		t.Fatalf("expected cap at 90s, got %v", got)
	}
	b.Observe(0)
	if got := b.Wait(); got != 90*time.Second {
		t.Fatalf("expected wait to stay capped, got %v", got)
	}
	b.Observe(2)
	if got := b.Wait(); got != 15*time.Second || b.EmptyRounds() != 0 {
		t.Fatalf("expected reset after insert, got %v", got)
	}
}

func TestResolveTabsFoldsCase(t *testing.T) {
	tabs := []marketplace.StashTab{{Index: 0, Name: "Dump"}, {Index: 1, Name: "LOOT"}, {Index: 4, Name: "Maps"}}
	resolved, missing := stash.ResolveTabs(tabs, []string{"maps", "loot", "Currency", " "})
	if len(resolved) != 2 || resolved[0].Index != 1 || resolved[1].Index != 4 {
		t.Fatalf("expected stash order, got %+v", resolved)
	}
	if len(missing) != 1 || missing[0] != "Currency" {
		t.Fatalf("unexpected missing %v", missing)
	}
}

type fakeStash struct {
	tabs  []marketplace.StashTab
	items map[int][]map[string]any
	err   error
	calls []int
}

func (f *fakeStash) StashTab(_ context.Context, req marketplace.StashRequest) (*marketplace.StashTabResult, error) {
	f.calls = append(f.calls, req.TabIndex)
	if f.err != nil {
		return nil, f.err
	}
	out := &marketplace.StashTabResult{Tabs: f.tabs}
	for _, item := range f.items[req.TabIndex] {
		raw, _ := json.Marshal(item)
		out.Items = append(out.Items, raw)
	}
	return out, nil
}

func newPoller(t *testing.T, api *fakeStash, names ...string) (*stash.Poller, *store.Store, *clock.Fake) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStash("guildie", names...))
	cfg.Stash.DelayMS = 15000
	cfg.Stash.DelayIncrementMS = 5000
	cfg.Stash.DelayMaxMS = 90000
	cfg.Stash.TabDelayMS = 1000
	st := testsupport.MustOpenStore(t, cfg)
	fake := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return stash.New(cfg, api, st, nil, stash.WithClock(fake)), st, fake
}

func TestPrepareFailsWithoutMatchingTabs(t *testing.T) {
	api := &fakeStash{tabs: []marketplace.StashTab{{Index: 0, Name: "Dump"}}}
	poller, _, _ := newPoller(t, api, "Loot")
	err := poller.Prepare(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRoundUpsertsAndBacksOff(t *testing.T) {
	api := &fakeStash{
		tabs: []marketplace.StashTab{{Index: 0, Name: "Dump"}, {Index: 1, Name: "Loot"}, {Index: 2, Name: "Maps"}},
		items: map[int][]map[string]any{
			1: {
				{"id": "a", "name": "Headhunter", "typeLine": "Leather Belt", "x": 0, "y": 0},
				{"id": "b", "name": "", "typeLine": "Chaos Orb", "x": 5, "y": 1},
			},
			2: {
				{"id": "c", "name": "", "typeLine": "Tower Map", "x": 2, "y": 3},
			},
		},
	}
	poller, st, fake := newPoller(t, api, "loot", "maps")
	ctx := context.Background()
	if err := poller.Prepare(ctx); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	wait, err := poller.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if wait != 15*time.Second {
		t.Fatalf("expected base wait after inserting round, got %v", wait)
	}
	if sleeps := fake.Sleeps(); len(sleeps) != 1 || sleeps[0] != time.Second {
		t.Fatalf("expected one tab delay, got %v", sleeps)
	}

	item, err := st.GetByID(ctx, "b")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if item.Name != "Chaos Orb" || item.Stash == nil || item.Stash.TabName != "Loot" || item.Stash.Position != "5,1" {
		t.Fatalf("unexpected stored item %+v", item)
	}
	if item.Listing != nil {
		t.Fatal("stash items carry no listing info")
	}

	for round, want := range []time.Duration{20 * time.Second, 25 * time.Second, 30 * time.Second} {
		wait, err := poller.RunCycle(ctx)
		if err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		if wait != want {
			t.Fatalf("empty round %d: expected %v, got %v", round+1, want, wait)
		}
	}

	api.items[2] = append(api.items[2], map[string]any{"id": "a", "name": "Headhunter", "typeLine": "Leather Belt", "x": 7, "y": 7})
	api.items[1] = api.items[1][1:]
	result, err := poller.Round(ctx)
	if err != nil {
		t.Fatalf("Round: %v", err)
	}
	if result.Inserted != 0 || result.Updated != 1 {
		t.Fatalf("expected a move, got %+v", result)
	}
	moved, err := st.GetByID(ctx, "a")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if moved.Stash.TabName != "Maps" || moved.Stash.Position != "7,7" {
		t.Fatalf("unexpected location %+v", moved.Stash)
	}
}

func TestRoundErrorKeepsCounterAndWaitsBase(t *testing.T) {
	api := &fakeStash{tabs: []marketplace.StashTab{{Index: 3, Name: "Loot"}}}
	poller, _, _ := newPoller(t, api, "Loot")
	ctx := context.Background()
	if err := poller.Prepare(ctx); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	for range 2 {
		if _, err := poller.RunCycle(ctx); err != nil {
			t.Fatalf("RunCycle: %v", err)
		}
	}
	if poller.Backoff().EmptyRounds() != 2 {
		t.Fatalf("expected 2 empty rounds, got %d", poller.Backoff().EmptyRounds())
	}

	api.err = &marketplace.APIError{Kind: marketplace.KindUnknown, Status: 502}
	wait, err := poller.RunCycle(ctx)
	if err == nil {
		t.Fatal("expected round error")
	}
	if wait != 15*time.Second {
		t.Fatalf("expected base wait after error, got %v", wait)
	}
	if poller.Backoff().EmptyRounds() != 2 {
		t.Fatalf("error must not change the counter, got %d", poller.Backoff().EmptyRounds())
	}
}

func TestSkipUnnamed(t *testing.T) {
	api := &fakeStash{
		tabs: []marketplace.StashTab{{Index: 0, Name: "Loot"}},
		items: map[int][]map[string]any{0: {
			{"id": "named", "name": "Mageblood", "typeLine": "Heavy Belt"},
			{"id": "plain", "typeLine": "Chaos Orb"},
		}},
	}
	cfg := testsupport.NewConfig(t, testsupport.WithStash("guildie", "Loot"))
	cfg.Stash.SkipUnnamed = true
	st := testsupport.MustOpenStore(t, cfg)
	poller := stash.New(cfg, api, st, nil, stash.WithClock(clock.NewFake(time.Now())))
	ctx := context.Background()
	if err := poller.Prepare(ctx); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	result, err := poller.Round(ctx)
	if err != nil {
		t.Fatalf("Round: %v", err)
	}
	if result.Inserted != 1 || result.Ignored != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if ok, _ := st.Exists(ctx, "plain"); ok {
		t.Fatal("unnamed item should not be stored")
	}
}

func TestRoundStopsWhenConfiguredTabsDisappear(t *testing.T) {
	api := &fakeStash{tabs: []marketplace.StashTab{{Index: 0, Name: "Dump"}, {Index: 1, Name: "Loot"}}}
	poller, _, _ := newPoller(t, api, "Loot")
	ctx := context.Background()
	if err := poller.Prepare(ctx); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	api.tabs = []marketplace.StashTab{{Index: 0, Name: "Dump"}, {Index: 1, Name: "Renamed"}}
	_, err := poller.RunCycle(ctx)
	if !workflow.IsFatal(err) || !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected fatal configuration error, got %v", err)
	}
}

func TestRoundIgnoresItemsWithUnusableIDs(t *testing.T) {
	api := &fakeStash{
		tabs: []marketplace.StashTab{{Index: 0, Name: "Loot"}},
		items: map[int][]map[string]any{0: {
			{"id": "../escape", "name": "Mirror", "typeLine": "Mirror of Kalandra"},
			{"id": "good", "name": "Mageblood", "typeLine": "Heavy Belt"},
		}},
	}
	poller, st, _ := newPoller(t, api, "Loot")
	ctx := context.Background()
	if err := poller.Prepare(ctx); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	result, err := poller.Round(ctx)
	if err != nil {
		t.Fatalf("Round: %v", err)
	}
	if result.Inserted != 1 || result.Ignored != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if ok, _ := st.Exists(ctx, "../escape"); ok {
		t.Fatal("item with an unusable id should not be stored")
	}
}
