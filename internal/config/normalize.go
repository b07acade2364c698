package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMarketplace()
	c.normalizeSearch()
	c.normalizeStash()
	c.normalizeRenderer()
	c.normalizeDispatch()
	c.normalizeViewer()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ArtifactDir) == "" {
		c.Paths.ArtifactDir = filepath.Join(c.Paths.DataDir, "images", "items")
	}
	if c.Paths.ArtifactDir, err = expandPath(c.Paths.ArtifactDir); err != nil {
		return fmt.Errorf("paths.artifact_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DatabaseFile) == "" {
		c.Paths.DatabaseFile = filepath.Join(c.Paths.DataDir, defaultDatabaseName)
	}
	if c.Paths.DatabaseFile, err = expandPath(c.Paths.DatabaseFile); err != nil {
		return fmt.Errorf("paths.database_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeMarketplace() {
	c.Marketplace.BaseURL = strings.TrimRight(strings.TrimSpace(c.Marketplace.BaseURL), "/")
	if c.Marketplace.BaseURL == "" {
		c.Marketplace.BaseURL = defaultBaseURL
	}
	c.Marketplace.SessionID = strings.TrimSpace(c.Marketplace.SessionID)
	if c.Marketplace.SessionID == "" {
		if value, ok := os.LookupEnv("POESESSID"); ok {
			c.Marketplace.SessionID = strings.TrimSpace(value)
		}
	}
	c.Marketplace.UserAgent = strings.TrimSpace(c.Marketplace.UserAgent)
	if c.Marketplace.UserAgent == "" {
		c.Marketplace.UserAgent = defaultUserAgent
	}
	c.Marketplace.League = strings.TrimSpace(c.Marketplace.League)
	if c.Marketplace.League == "" {
		c.Marketplace.League = defaultLeague
	}
	if c.Marketplace.RequestTimeout <= 0 {
		c.Marketplace.RequestTimeout = defaultRequestTimeout
	}
	if c.Marketplace.RequestsPerSecond <= 0 {
		c.Marketplace.RequestsPerSecond = defaultRequestsPerSecond
	}
}

func (c *Config) normalizeSearch() {
	c.Search.Status = strings.ToLower(strings.TrimSpace(c.Search.Status))
	if c.Search.Status == "" {
		c.Search.Status = defaultSearchStatus
	}
	if c.Search.PageSize <= 0 {
		c.Search.PageSize = defaultPageSize
	}
	filters := c.Search.StatFilters[:0]
	for _, filter := range c.Search.StatFilters {
		filter.ID = strings.TrimSpace(filter.ID)
		if filter.ID == "" {
			continue
		}
		filters = append(filters, filter)
	}
	c.Search.StatFilters = filters
}

func (c *Config) normalizeStash() {
	c.Stash.AccountName = strings.TrimSpace(c.Stash.AccountName)
	c.Stash.Realm = strings.ToLower(strings.TrimSpace(c.Stash.Realm))
	if c.Stash.Realm == "" {
		c.Stash.Realm = defaultRealm
	}
	names := make([]string, 0, len(c.Stash.TabNames))
	for _, name := range c.Stash.TabNames {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	c.Stash.TabNames = names
}

func (c *Config) normalizeRenderer() {
	c.Renderer.ViewerURL = strings.TrimRight(strings.TrimSpace(c.Renderer.ViewerURL), "/")
	if c.Renderer.ViewerURL == "" {
		c.Renderer.ViewerURL = defaultViewerURL
	}
	c.Renderer.Selector = strings.TrimSpace(c.Renderer.Selector)
	if c.Renderer.Selector == "" {
		c.Renderer.Selector = defaultSelector
	}
	if c.Renderer.BatchSize <= 0 {
		c.Renderer.BatchSize = defaultRenderBatchSize
	}
	if c.Renderer.NavigationTimeout <= 0 {
		c.Renderer.NavigationTimeout = defaultNavigationTimeout
	}
	if c.Renderer.ViewportWidth <= 0 {
		c.Renderer.ViewportWidth = defaultViewportWidth
	}
	if c.Renderer.ViewportHeight <= 0 {
		c.Renderer.ViewportHeight = defaultViewportHeight
	}
	if c.Renderer.DeviceScale <= 0 {
		c.Renderer.DeviceScale = defaultDeviceScale
	}
	c.Renderer.ChromePath = strings.TrimSpace(c.Renderer.ChromePath)
}

func (c *Config) normalizeDispatch() {
	c.Dispatch.Telegram.Token = strings.TrimSpace(c.Dispatch.Telegram.Token)
	if c.Dispatch.Telegram.Token == "" {
		if value, ok := os.LookupEnv("LOOTWATCH_TELEGRAM_TOKEN"); ok {
			c.Dispatch.Telegram.Token = strings.TrimSpace(value)
		}
	}
	c.Dispatch.Discord.WebhookURLs = trimList(c.Dispatch.Discord.WebhookURLs)
	c.Dispatch.Discord.Username = strings.TrimSpace(c.Dispatch.Discord.Username)
	c.Dispatch.Ntfy.Topics = trimList(c.Dispatch.Ntfy.Topics)
	if c.Dispatch.Ntfy.RequestTimeout <= 0 {
		c.Dispatch.Ntfy.RequestTimeout = defaultNtfyRequestTimeout
	}
	if c.Dispatch.SendRetries < 0 {
		c.Dispatch.SendRetries = 0
	}
}

func (c *Config) normalizeViewer() {
	c.Viewer.Bind = strings.TrimSpace(c.Viewer.Bind)
	if c.Viewer.Bind == "" {
		c.Viewer.Bind = defaultViewerBind
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func trimList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
