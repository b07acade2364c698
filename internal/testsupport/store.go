package testsupport

import (
	"context"
	"encoding/json"
	"testing"

	"lootwatch/internal/config"
	"lootwatch/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...store.Option) *store.Store {
	t.Helper()

	st, err := store.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewItem builds a store.NewItem whose raw payload is a minimal marketplace
// item document carrying id and name.
func NewItem(id, name string) store.NewItem {
	payload, _ := json.Marshal(map[string]any{
		"id":       id,
		"name":     name,
		"typeLine": "Test Base",
		"x":        0,
		"y":        0,
	})
	return store.NewItem{ID: id, Name: name, RawPayload: payload}
}

// MustInsert inserts items and fails the test on error.
func MustInsert(t testing.TB, st *store.Store, items ...store.NewItem) {
	t.Helper()
	for _, item := range items {
		if _, err := st.InsertIfAbsent(context.Background(), item); err != nil {
			t.Fatalf("InsertIfAbsent(%s): %v", item.ID, err)
		}
	}
}

// MustInsertRendered inserts items and marks each rendered.
func MustInsertRendered(t testing.TB, st *store.Store, ids ...string) {
	t.Helper()
	ctx := context.Background()
	for _, id := range ids {
		MustInsert(t, st, NewItem(id, "Item "+id))
		if err := st.MarkRendered(ctx, id); err != nil {
			t.Fatalf("MarkRendered(%s): %v", id, err)
		}
	}
}
