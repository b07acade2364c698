package marketplace_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lootwatch/internal/config"
	"lootwatch/internal/marketplace"
	"lootwatch/internal/services"
)

func newClient(t *testing.T, handler http.HandlerFunc) *marketplace.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default().Marketplace
	cfg.BaseURL = srv.URL
	cfg.SessionID = "sess-123"
	cfg.UserAgent = "lootwatch-test"
	cfg.RequestsPerSecond = 0
	client, err := marketplace.New(cfg)
	if err != nil {
		t.Fatalf("marketplace.New: %v", err)
	}
	return client
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestSearchSendsSessionAndQuery(t *testing.T) {
	var gotBody map[string]any
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/trade/search/Standard" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		cookie, err := r.Cookie("POESESSID")
		if err != nil || cookie.Value != "sess-123" {
			t.Errorf("missing session cookie: %v", err)
		}
		if ua := r.Header.Get("User-Agent"); ua != "lootwatch-test" {
			t.Errorf("unexpected user agent %q", ua)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		writeJSON(w, http.StatusOK, `{"id":"search-1","result":["a","b","c"],"total":3}`)
	})

	min := 10.0
	query := marketplace.NewQuery(config.Search{
		Status:      "online",
		StatFilters: []config.StatFilter{{ID: "pseudo.life", Min: &min}},
	})
	result, err := client.Search(context.Background(), "Standard", query)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.ID != "search-1" || len(result.Result) != 3 || result.Result[0] != "a" {
		t.Fatalf("unexpected result %+v", result)
	}

	q, _ := gotBody["query"].(map[string]any)
	status, _ := q["status"].(map[string]any)
	if status["option"] != "online" {
		t.Fatalf("unexpected status option in body %v", gotBody)
	}
	sort, _ := gotBody["sort"].(map[string]any)
	if sort["indexed"] != "desc" {
		t.Fatalf("expected newest-first sort, got %v", gotBody["sort"])
	}
	stats, _ := q["stats"].([]any)
	if len(stats) != 1 {
		t.Fatalf("expected one stat group, got %v", q["stats"])
	}
}

func TestSearchRejectsInvalidQueryBeforeSending(t *testing.T) {
	called := false
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		writeJSON(w, http.StatusOK, `{}`)
	})
	_, err := client.Search(context.Background(), "Standard", marketplace.Query{Status: "everywhere"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if called {
		t.Fatal("invalid query must not reach the marketplace")
	}
}

func TestInvalidQueryResponseIsRewrapped(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"error":{"code":2,"message":"Invalid query"}}`)
	})
	_, err := client.Search(context.Background(), "Private (PL123)", marketplace.NewQuery(config.Search{}))
	if !marketplace.IsKind(err, marketplace.KindInvalidQuery) {
		t.Fatalf("expected invalid query kind, got %v", err)
	}
	if !strings.Contains(err.Error(), "POESESSID") {
		t.Fatalf("expected session hint, got %q", err.Error())
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration marker, got %v", err)
	}
}

func TestErrorKindsByStatus(t *testing.T) {
	cases := []struct {
		status int
		body   string
		kind   marketplace.Kind
		marker error
	}{
		{http.StatusTooManyRequests, `{"error":{"code":3,"message":"Rate limit exceeded"}}`, marketplace.KindRateLimited, services.ErrTransient},
		{http.StatusForbidden, `{"error":{"code":6,"message":"Forbidden"}}`, marketplace.KindAuthExpired, services.ErrConfiguration},
		{http.StatusInternalServerError, `oops`, marketplace.KindUnknown, services.ErrTransient},
	}
	for _, tc := range cases {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, tc.status, tc.body)
		})
		_, err := client.Fetch(context.Background(), "search-1", []string{"a"})
		var apiErr *marketplace.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("status %d: expected APIError, got %v", tc.status, err)
		}
		if apiErr.Kind != tc.kind || apiErr.Status != tc.status {
			t.Fatalf("status %d: unexpected error %+v", tc.status, apiErr)
		}
		if !errors.Is(err, tc.marker) {
			t.Fatalf("status %d: expected marker %v", tc.status, tc.marker)
		}
	}
}

func TestFetchJoinsIDsAndDropsNullEntries(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/trade/fetch/a,b,c" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if q := r.URL.Query().Get("query"); q != "search-1" {
			t.Errorf("unexpected query param %q", q)
		}
		writeJSON(w, http.StatusOK, `{"result":[
			{"id":"a","listing":{"account":{"name":"seller"},"indexed":"2024-05-01T10:00:00Z","price":{"type":"~price","amount":5,"currency":"divine"}},"item":{"id":"a","name":"Headhunter","typeLine":"Leather Belt"}},
			null,
			{"id":"c","listing":null,"item":{"id":"c","typeLine":"Chaos Orb"}}
		]}`)
	})
	page, err := client.Fetch(context.Background(), "search-1", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page.Delisted != 1 || page.Returned() != 3 {
		t.Fatalf("expected the null entry to count as delisted, got %+v", page)
	}
	listings := page.Listings
	if len(listings) != 2 || listings[0].ID != "a" || listings[1].ID != "c" {
		t.Fatalf("unexpected listings %+v", listings)
	}
	if listings[0].Listing.Account.Name != "seller" || listings[0].Listing.PriceText() != "5 divine" {
		t.Fatalf("unexpected listing info %+v", listings[0].Listing)
	}
	summary, err := marketplace.ParseItem(listings[1].Item)
	if err != nil {
		t.Fatalf("ParseItem: %v", err)
	}
	if summary.DisplayName() != "Chaos Orb" || summary.Named() {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestFetchWithoutIDsSkipsRequest(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	})
	page, err := client.Fetch(context.Background(), "search-1", nil)
	if err != nil || page.Returned() != 0 {
		t.Fatalf("expected empty result, got %+v %v", page, err)
	}
}

func TestStashTabSendsParameters(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/character-window/get-guild-stash-items" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("accountName") != "guildie" || q.Get("realm") != "pc" || q.Get("league") != "Standard" ||
			q.Get("tabIndex") != "2" || q.Get("tabs") != "1" {
			t.Errorf("unexpected query %v", q)
		}
		writeJSON(w, http.StatusOK, `{"tabs":[{"i":0,"n":"Dump","type":"PremiumStash"},{"i":2,"n":"Loot","type":"QuadStash"}],
			"items":[{"id":"x1","name":"","typeLine":"Exalted Orb","x":3,"y":7}]}`)
	})
	result, err := client.StashTab(context.Background(), marketplace.StashRequest{
		Account: "guildie", Realm: "pc", League: "Standard", TabIndex: 2,
	})
	if err != nil {
		t.Fatalf("StashTab: %v", err)
	}
	if len(result.Tabs) != 2 || result.Tabs[1].Name != "Loot" || result.Tabs[1].Index != 2 {
		t.Fatalf("unexpected tabs %+v", result.Tabs)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected one item, got %d", len(result.Items))
	}
	summary, err := marketplace.ParseItem(result.Items[0])
	if err != nil {
		t.Fatalf("ParseItem: %v", err)
	}
	if summary.Position() != "3,7" {
		t.Fatalf("unexpected position %q", summary.Position())
	}
}

func TestQueryValidate(t *testing.T) {
	lo, hi := 10.0, 5.0
	bad := marketplace.Query{
		Status: marketplace.StatusAny,
		Stats: []marketplace.StatGroup{{
			Type:    "xor",
			Filters: []marketplace.StatFilter{{ID: ""}, {ID: "explicit.life", Min: &lo, Max: &hi}},
		}},
	}
	err := bad.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"unsupported type", "id is required", "min exceeds max"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %q", want, err.Error())
		}
	}
	if err := marketplace.NewQuery(config.Search{}).Validate(); err != nil {
		t.Fatalf("default query should validate: %v", err)
	}
}

func TestParseItemRequiresID(t *testing.T) {
	if _, err := marketplace.ParseItem(json.RawMessage(`{"name":"x"}`)); err == nil {
		t.Fatal("expected error for missing id")
	}
	if _, err := marketplace.ParseItem(nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestNewRejectsEmptyBaseURL(t *testing.T) {
	cfg := config.Default().Marketplace
	cfg.BaseURL = " "
	if _, err := marketplace.New(cfg); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
