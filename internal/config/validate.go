package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMarketplace(); err != nil {
		return err
	}
	if err := c.validateSearch(); err != nil {
		return err
	}
	if err := c.validateStash(); err != nil {
		return err
	}
	if err := c.validateRenderer(); err != nil {
		return err
	}
	if err := c.validateDispatch(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMarketplace() error {
	if _, err := url.ParseRequestURI(c.Marketplace.BaseURL); err != nil {
		return fmt.Errorf("marketplace.base_url is not a valid URL: %w", err)
	}
	if c.Marketplace.RequestsPerSecond > 10 {
		return errors.New("marketplace.requests_per_second must not exceed 10")
	}
	return nil
}

func (c *Config) validateSearch() error {
	if !c.Search.Enabled {
		return nil
	}
	switch c.Search.Status {
	case "any", "online", "onlineleague":
	default:
		return fmt.Errorf("search.status must be one of any, online, onlineleague (got %q)", c.Search.Status)
	}
	if c.Search.PageSize > 10 {
		return errors.New("search.page_size must not exceed 10 (marketplace fetch limit)")
	}
	return ensureMinDelays(map[string]int{
		"search.page_delay_ms":  c.Search.PageDelayMS,
		"search.cycle_delay_ms": c.Search.CycleDelayMS,
	})
}

func (c *Config) validateStash() error {
	if !c.Stash.Enabled {
		return nil
	}
	if c.Stash.AccountName == "" {
		return errors.New("stash.account_name must be set when stash.enabled is true")
	}
	if len(c.Stash.TabNames) == 0 {
		return errors.New("stash.tab_names must include at least one tab when stash.enabled is true")
	}
	if c.Marketplace.SessionID == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/lootwatch/config.toml"
		}
		return fmt.Errorf("marketplace.session_id is required for stash polling. Set POESESSID env var or edit %s (create with 'lootwatch config init')", defaultPath)
	}
	if err := ensureMinDelays(map[string]int{
		"stash.delay_ms":     c.Stash.DelayMS,
		"stash.delay_max_ms": c.Stash.DelayMaxMS,
		"stash.tab_delay_ms": c.Stash.TabDelayMS,
	}); err != nil {
		return err
	}
	if c.Stash.DelayIncrementMS < 0 {
		return errors.New("stash.delay_increment_ms must not be negative")
	}
	if c.Stash.DelayMaxMS < c.Stash.DelayMS {
		return errors.New("stash.delay_max_ms must be greater than or equal to stash.delay_ms")
	}
	return nil
}

func (c *Config) validateRenderer() error {
	if !c.Renderer.Enabled {
		return nil
	}
	if _, err := url.ParseRequestURI(c.Renderer.ViewerURL); err != nil {
		return fmt.Errorf("renderer.viewer_url is not a valid URL: %w", err)
	}
	return ensureMinDelays(map[string]int{
		"renderer.idle_delay_ms": c.Renderer.IdleDelayMS,
		"renderer.cooldown_ms":   c.Renderer.CooldownMS,
	})
}

func (c *Config) validateDispatch() error {
	if !c.Dispatch.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Dispatch.Telegram.Token) != "" && len(c.Dispatch.Telegram.ChatIDs) == 0 {
		return errors.New("dispatch.telegram.chat_ids must be set when dispatch.telegram.token is configured")
	}
	for _, hook := range c.Dispatch.Discord.WebhookURLs {
		if _, err := url.ParseRequestURI(hook); err != nil {
			return fmt.Errorf("dispatch.discord.webhook_urls contains an invalid URL %q", hook)
		}
	}
	if c.Dispatch.MaxPerBatch <= 0 {
		return errors.New("dispatch.max_per_batch must be positive")
	}
	if c.Dispatch.MaxAttempts <= 0 {
		return errors.New("dispatch.max_attempts must be positive")
	}
	return ensureMinDelays(map[string]int{
		"dispatch.item_delay_ms":  c.Dispatch.ItemDelayMS,
		"dispatch.cycle_delay_ms": c.Dispatch.CycleDelayMS,
	})
}

func ensureMinDelays(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] < minDelayMS {
			return fmt.Errorf("%s must be at least %dms (got %d)", key, minDelayMS, values[key])
		}
	}
	return nil
}
