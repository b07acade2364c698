package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lootwatch/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed || !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("expected failure for missing dir, got %+v", result)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckBinary(t *testing.T) {
	stub := filepath.Join(t.TempDir(), "chrome")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	if result := CheckBinary("Chrome", stub); !result.Passed || result.Detail != stub {
		t.Fatalf("expected stub to resolve, got %+v", result)
	}
	if result := CheckBinary("Chrome", "clearly-not-present-binary"); result.Passed {
		t.Fatal("expected missing binary to fail")
	}
	if result := CheckBinary("Chrome", ""); result.Passed {
		t.Fatal("expected empty command to fail")
	}
}

func TestResolveChromePathPrefersConfigured(t *testing.T) {
	if got := ResolveChromePath(" /opt/chrome/chrome "); got != "/opt/chrome/chrome" {
		t.Fatalf("unexpected path %q", got)
	}
	t.Setenv("PATH", t.TempDir())
	if got := ResolveChromePath(""); got != "" {
		t.Fatalf("expected no browser on an empty PATH, got %q", got)
	}
}

func TestCheckSession(t *testing.T) {
	if r := CheckSession(config.Marketplace{SessionID: "abc"}, true); !r.Passed {
		t.Fatalf("expected pass, got %+v", r)
	}
	if r := CheckSession(config.Marketplace{}, true); r.Passed {
		t.Fatal("stash polling requires a session")
	}
	if r := CheckSession(config.Marketplace{}, false); !r.Passed {
		t.Fatal("search works anonymously")
	}
}

func TestCheckViewer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if r := CheckViewer(context.Background(), srv.URL+"/"); !r.Passed {
		t.Fatalf("expected pass, got %+v", r)
	}
	if r := CheckViewer(context.Background(), ""); r.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestCheckChannels(t *testing.T) {
	cfg := config.Dispatch{}
	if r := CheckChannels(cfg); r.Passed {
		t.Fatal("expected failure without channels")
	}
	cfg.Telegram.Token = "t"
	cfg.Telegram.ChatIDs = []int64{1, 2}
	cfg.Ntfy.Topics = []string{"https://ntfy.sh/loot"}
	r := CheckChannels(cfg)
	if !r.Passed || r.Detail != "2 telegram chats, 1 ntfy topic" {
		t.Fatalf("unexpected result %+v", r)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_LoopsDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.ArtifactDir = t.TempDir()
	cfg.Search.Enabled = false
	cfg.Renderer.Enabled = false
	cfg.Dispatch.Enabled = false

	results := RunAll(context.Background(), &cfg)
	if len(results) != 2 {
		t.Fatalf("expected only directory checks, got %+v", results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures %+v", failed)
	}
}

func TestRunAll_DispatchWithoutChannels(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.ArtifactDir = t.TempDir()
	cfg.Search.Enabled = false
	cfg.Renderer.Enabled = false

	failed := Failed(RunAll(context.Background(), &cfg))
	if len(failed) != 1 || failed[0].Name != "Delivery channels" {
		t.Fatalf("expected channel failure, got %+v", failed)
	}
}
