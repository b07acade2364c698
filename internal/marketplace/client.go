package marketplace

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"lootwatch/internal/config"
	"lootwatch/internal/logging"
	"lootwatch/internal/services"
)

const sessionCookie = "POESESSID"

// Client issues marketplace requests under a shared courtesy rate limit.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger routes request diagnostics to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLimiter replaces the courtesy rate limiter.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// New constructs a client from the marketplace config section.
func New(cfg config.Marketplace, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, services.Wrap(services.ErrConfiguration, "marketplace", "new client", "base_url is empty", nil)
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "marketplace", "new client", "invalid base_url", err)
	}

	timeout := cfg.RequestTimeoutDuration()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}

	c := &Client{
		limiter: rate.NewLimiter(limit, 1),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.http = resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json").
		OnBeforeRequest(c.onRateLimit)
	if session := strings.TrimSpace(cfg.SessionID); session != "" {
		c.http.SetCookie(&http.Cookie{Name: sessionCookie, Value: session})
	}
	return c, nil
}

func (c *Client) onRateLimit(_ *resty.Client, req *resty.Request) error {
	return c.limiter.Wait(req.Context())
}

// Search submits query for league and returns the ordered result ids.
func (c *Client) Search(ctx context.Context, league string, query Query) (*SearchResult, error) {
	if err := query.Validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "marketplace", "search", "invalid query", err)
	}
	var out SearchResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(query).
		SetResult(&out).
		ForceContentType("application/json").
		Post("/api/trade/search/" + url.PathEscape(league))
	if err := c.check("search", resp, err); err != nil {
		return nil, err
	}
	c.logger.Debug("search submitted",
		logging.String("search_id", out.ID),
		logging.Int("results", len(out.Result)),
		logging.Int("total", out.Total),
	)
	return &out, nil
}

// Fetch returns the listings for ids in the order the marketplace reports them.
// Entries the marketplace reports as null are dropped and counted as delisted.
func (c *Client) Fetch(ctx context.Context, searchID string, ids []string) (*FetchResult, error) {
	if len(ids) == 0 {
		return &FetchResult{}, nil
	}
	var out struct {
		Result []*Listing `json:"result"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("query", searchID).
		SetResult(&out).
		ForceContentType("application/json").
		Get("/api/trade/fetch/" + strings.Join(ids, ","))
	if err := c.check("fetch", resp, err); err != nil {
		return nil, err
	}
	result := &FetchResult{Listings: make([]Listing, 0, len(out.Result))}
	for _, listing := range out.Result {
		if listing == nil {
			result.Delisted++
			continue
		}
		result.Listings = append(result.Listings, *listing)
	}
	return result, nil
}

// StashTab returns the tab list and the items of the requested guild stash tab.
func (c *Client) StashTab(ctx context.Context, req StashRequest) (*StashTabResult, error) {
	var out StashTabResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"accountName": req.Account,
			"realm":       req.Realm,
			"league":      req.League,
			"tabIndex":    strconv.Itoa(req.TabIndex),
			"tabs":        "1",
		}).
		SetResult(&out).
		ForceContentType("application/json").
		Get("/character-window/get-guild-stash-items")
	if err := c.check("stash tab", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return services.Wrap(services.ErrTransient, "marketplace", op, "request failed", err)
	}
	if resp.IsSuccess() {
		return nil
	}
	apiErr := classify(op, resp.StatusCode(), resp.Body())
	c.logger.Debug("marketplace request rejected",
		logging.String("op", op),
		logging.Int("status", resp.StatusCode()),
		logging.String("kind", string(apiErr.Kind)),
		logging.String("url", resp.Request.URL),
	)
	return apiErr
}
