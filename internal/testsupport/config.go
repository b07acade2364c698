package testsupport

import (
	"path/filepath"
	"testing"

	"lootwatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Delays are shrunk to the validation floor so loops driven by a real clock
// stay fast; tests that assert on waits use clock.Fake instead.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ArtifactDir = filepath.Join(base, "artifacts")
	cfgVal.Paths.DatabaseFile = filepath.Join(base, "data", "lootwatch.db")
	cfgVal.Marketplace.BaseURL = "http://127.0.0.1:0"
	cfgVal.Marketplace.SessionID = "test-session"
	cfgVal.Marketplace.RequestsPerSecond = 10
	cfgVal.Viewer.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithMarketplaceURL points the marketplace client at a test server.
func WithMarketplaceURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Marketplace.BaseURL = url
	}
}

// WithStash enables stash polling for the given account and tabs.
func WithStash(account string, tabs ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Stash.Enabled = true
		b.cfg.Stash.AccountName = account
		b.cfg.Stash.TabNames = tabs
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
