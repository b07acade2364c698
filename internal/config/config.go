package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and database locations.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	LogDir       string `toml:"log_dir"`
	ArtifactDir  string `toml:"artifact_dir"`
	DatabaseFile string `toml:"database_file"`
}

// Marketplace contains connection settings for the trade API.
type Marketplace struct {
	BaseURL           string  `toml:"base_url"`
	SessionID         string  `toml:"session_id"`
	UserAgent         string  `toml:"user_agent"`
	League            string  `toml:"league"`
	RequestTimeout    int     `toml:"request_timeout"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// StatFilter is a single stat constraint applied to the search query.
type StatFilter struct {
	ID  string   `toml:"id"`
	Min *float64 `toml:"min"`
	Max *float64 `toml:"max"`
}

// Search contains configuration for the trade search poller.
type Search struct {
	Enabled      bool         `toml:"enabled"`
	Status       string       `toml:"status"`
	StatFilters  []StatFilter `toml:"stat_filters"`
	PageSize     int          `toml:"page_size"`
	PageDelayMS  int          `toml:"page_delay_ms"`
	CycleDelayMS int          `toml:"cycle_delay_ms"`
}

// Stash contains configuration for the guild stash poller.
type Stash struct {
	Enabled          bool     `toml:"enabled"`
	AccountName      string   `toml:"account_name"`
	Realm            string   `toml:"realm"`
	TabNames         []string `toml:"tab_names"`
	DelayMS          int      `toml:"delay_ms"`
	DelayIncrementMS int      `toml:"delay_increment_ms"`
	DelayMaxMS       int      `toml:"delay_max_ms"`
	TabDelayMS       int      `toml:"tab_delay_ms"`
	SkipUnnamed      bool     `toml:"skip_unnamed"`
}

// Renderer contains configuration for headless browser artifact capture.
type Renderer struct {
	Enabled           bool    `toml:"enabled"`
	ViewerURL         string  `toml:"viewer_url"`
	Selector          string  `toml:"selector"`
	BatchSize         int     `toml:"batch_size"`
	IdleDelayMS       int     `toml:"idle_delay_ms"`
	CooldownMS        int     `toml:"cooldown_ms"`
	NavigationTimeout int     `toml:"navigation_timeout"`
	ViewportWidth     int     `toml:"viewport_width"`
	ViewportHeight    int     `toml:"viewport_height"`
	DeviceScale       float64 `toml:"device_scale"`
	ChromePath        string  `toml:"chrome_path"`
}

// Telegram contains bot credentials for photo delivery.
type Telegram struct {
	Token   string  `toml:"token"`
	ChatIDs []int64 `toml:"chat_ids"`
}

// Discord contains webhook endpoints for photo delivery.
type Discord struct {
	WebhookURLs []string `toml:"webhook_urls"`
	Username    string   `toml:"username"`
}

// Ntfy contains ntfy topic endpoints for attachment delivery.
type Ntfy struct {
	Topics         []string `toml:"topics"`
	RequestTimeout int      `toml:"request_timeout"`
}

// Dispatch contains configuration for the delivery dispatcher.
type Dispatch struct {
	Enabled      bool     `toml:"enabled"`
	MaxPerBatch  int      `toml:"max_per_batch"`
	ItemDelayMS  int      `toml:"item_delay_ms"`
	CycleDelayMS int      `toml:"cycle_delay_ms"`
	MaxAttempts  int      `toml:"max_attempts"`
	SendRetries  int      `toml:"send_retries"`
	Telegram     Telegram `toml:"telegram"`
	Discord      Discord  `toml:"discord"`
	Ntfy         Ntfy     `toml:"ntfy"`
}

// Viewer contains configuration for the local item viewer.
type Viewer struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for lootwatch.
//
// Configuration sections by subsystem:
//   - Paths: data, log, artifact directories and the item database
//   - Marketplace: trade API endpoint, session cookie, league
//   - Search: search query and pagination pacing
//   - Stash: guild stash tabs and adaptive backoff
//   - Renderer: headless browser capture settings
//   - Dispatch: delivery pacing and notification channels
//   - Viewer: local item viewer bind address
//   - Logging: log format, level, and retention
type Config struct {
	Paths       Paths       `toml:"paths"`
	Marketplace Marketplace `toml:"marketplace"`
	Search      Search      `toml:"search"`
	Stash       Stash       `toml:"stash"`
	Renderer    Renderer    `toml:"renderer"`
	Dispatch    Dispatch    `toml:"dispatch"`
	Viewer      Viewer      `toml:"viewer"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/lootwatch/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("lootwatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, log, and artifact directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.ArtifactDir, filepath.Dir(c.Paths.DatabaseFile)}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockDir returns the directory holding per-component instance locks.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.DataDir, "locks")
}

// PageDelay is the wait between consecutive search fetch windows.
func (s Search) PageDelay() time.Duration { return millis(s.PageDelayMS) }

// CycleDelay is the wait between search cycles.
func (s Search) CycleDelay() time.Duration { return millis(s.CycleDelayMS) }

// Delay is the base wait between stash rounds.
func (s Stash) Delay() time.Duration { return millis(s.DelayMS) }

// DelayIncrement is added to the base wait for each consecutive empty round.
func (s Stash) DelayIncrement() time.Duration { return millis(s.DelayIncrementMS) }

// DelayMax caps the stash backoff.
func (s Stash) DelayMax() time.Duration { return millis(s.DelayMaxMS) }

// TabDelay is the wait between tab fetches within one round.
func (s Stash) TabDelay() time.Duration { return millis(s.TabDelayMS) }

// IdleDelay is the wait when nothing is pending render.
func (r Renderer) IdleDelay() time.Duration { return millis(r.IdleDelayMS) }

// Cooldown is the wait after a failed render batch.
func (r Renderer) Cooldown() time.Duration { return millis(r.CooldownMS) }

// NavigationTimeoutDuration bounds a single page capture.
func (r Renderer) NavigationTimeoutDuration() time.Duration {
	return time.Duration(r.NavigationTimeout) * time.Second
}

// ItemDelay is the wait after each delivered item.
func (d Dispatch) ItemDelay() time.Duration { return millis(d.ItemDelayMS) }

// CycleDelay is the wait between dispatch cycles.
func (d Dispatch) CycleDelay() time.Duration { return millis(d.CycleDelayMS) }

// HasChannels reports whether any delivery channel is configured.
func (d Dispatch) HasChannels() bool {
	telegram := strings.TrimSpace(d.Telegram.Token) != "" && len(d.Telegram.ChatIDs) > 0
	return telegram || len(d.Discord.WebhookURLs) > 0 || len(d.Ntfy.Topics) > 0
}

// RequestTimeoutDuration bounds a single marketplace HTTP request.
func (m Marketplace) RequestTimeoutDuration() time.Duration {
	return time.Duration(m.RequestTimeout) * time.Second
}

func millis(value int) time.Duration {
	return time.Duration(value) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
