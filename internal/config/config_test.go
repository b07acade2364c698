package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lootwatch/internal/config"
)

func TestLoadDefaultConfigExpandsPathsAndUsesEnvSession(t *testing.T) {
	t.Setenv("POESESSID", "cookie-from-env")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "lootwatch")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.DatabaseFile != filepath.Join(wantData, "lootwatch.db") {
		t.Fatalf("unexpected database file: %q", cfg.Paths.DatabaseFile)
	}
	if cfg.Paths.ArtifactDir != filepath.Join(wantData, "images", "items") {
		t.Fatalf("unexpected artifact dir: %q", cfg.Paths.ArtifactDir)
	}
	if cfg.Marketplace.SessionID != "cookie-from-env" {
		t.Fatalf("expected session id from env, got %q", cfg.Marketplace.SessionID)
	}
	if cfg.Search.PageSize != 10 {
		t.Fatalf("expected default page size 10, got %d", cfg.Search.PageSize)
	}
	if cfg.Stash.Delay().Milliseconds() != 15000 || cfg.Stash.DelayIncrement().Milliseconds() != 5000 {
		t.Fatalf("unexpected stash backoff defaults: %v / %v", cfg.Stash.Delay(), cfg.Stash.DelayIncrement())
	}
	if cfg.Dispatch.MaxPerBatch != 5 {
		t.Fatalf("expected max_per_batch 5, got %d", cfg.Dispatch.MaxPerBatch)
	}
}

func TestLoadParsesTOML(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.ToSlash(dir) + `/data"

[marketplace]
league = "Settlers"
session_id = "abc"

[search]
status = "online"
page_delay_ms = 2000

[[search.stat_filters]]
id = "explicit.stat_1"
min = 70

[stash]
enabled = true
account_name = "Exile#1234"
tab_names = [" Loot ", "Maps"]

[dispatch.discord]
webhook_urls = ["https://discord.example/api/webhooks/1/abc"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %s, got %s (exists=%v)", path, resolved, exists)
	}
	if cfg.Marketplace.League != "Settlers" {
		t.Fatalf("unexpected league %q", cfg.Marketplace.League)
	}
	if cfg.Search.Status != "online" || cfg.Search.PageDelay().Milliseconds() != 2000 {
		t.Fatalf("unexpected search config: %+v", cfg.Search)
	}
	if len(cfg.Search.StatFilters) != 1 || cfg.Search.StatFilters[0].Min == nil || *cfg.Search.StatFilters[0].Min != 70 {
		t.Fatalf("unexpected stat filters: %+v", cfg.Search.StatFilters)
	}
	if got := strings.Join(cfg.Stash.TabNames, ","); got != "Loot,Maps" {
		t.Fatalf("expected trimmed tab names, got %q", got)
	}
	if !cfg.Dispatch.HasChannels() {
		t.Fatal("expected discord channel to count as configured")
	}
}

func TestValidateRejectsShortDelays(t *testing.T) {
	cfg := config.Default()
	cfg.Search.PageDelayMS = 10
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for short delay")
	}
	if !strings.Contains(err.Error(), "search.page_delay_ms") {
		t.Fatalf("expected error to name the field, got %v", err)
	}
}

func TestValidateStashRequiresSession(t *testing.T) {
	cfg := config.Default()
	cfg.Stash.Enabled = true
	cfg.Stash.AccountName = "someone"
	cfg.Stash.TabNames = []string{"loot"}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "session_id") {
		t.Fatalf("expected session_id error, got %v", err)
	}
	cfg.Marketplace.SessionID = "cookie"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateStashMaxBelowBase(t *testing.T) {
	cfg := config.Default()
	cfg.Stash.Enabled = true
	cfg.Stash.AccountName = "someone"
	cfg.Stash.TabNames = []string{"loot"}
	cfg.Marketplace.SessionID = "cookie"
	cfg.Stash.DelayMaxMS = 1000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when delay_max_ms < delay_ms")
	}
}

func TestValidateTelegramNeedsChats(t *testing.T) {
	cfg := config.Default()
	cfg.Dispatch.Telegram.Token = "123:abc"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for telegram token without chat ids")
	}
	cfg.Dispatch.Telegram.ChatIDs = []int64{42}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
}

func TestEnsureDirectoriesCreatesAll(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ArtifactDir = filepath.Join(base, "art")
	cfg.Paths.DatabaseFile = filepath.Join(base, "db", "items.db")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{"data", "logs", "art", "db"} {
		if info, err := os.Stat(filepath.Join(base, dir)); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s to exist", dir)
		}
	}
}
