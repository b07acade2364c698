package preflight

import (
	"context"
	"strings"

	"lootwatch/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Artifact directory", cfg.Paths.ArtifactDir),
	}

	if cfg.Search.Enabled || cfg.Stash.Enabled {
		results = append(results, CheckSession(cfg.Marketplace, cfg.Stash.Enabled))
	}

	if cfg.Renderer.Enabled {
		results = append(results, CheckBinary("Chrome", ResolveChromePath(cfg.Renderer.ChromePath)))
		// The viewer is started alongside the loops, so it can only be
		// probed when something else serves it.
		if !cfg.Viewer.Enabled {
			results = append(results, CheckViewer(ctx, cfg.Renderer.ViewerURL))
		}
	}

	if cfg.Dispatch.Enabled {
		results = append(results, CheckChannels(cfg.Dispatch))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// CheckChannels reports whether dispatch has anywhere to deliver.
func CheckChannels(cfg config.Dispatch) Result {
	const name = "Delivery channels"

	var parts []string
	if strings.TrimSpace(cfg.Telegram.Token) != "" && len(cfg.Telegram.ChatIDs) > 0 {
		parts = append(parts, plural(len(cfg.Telegram.ChatIDs), "telegram chat"))
	}
	if n := len(cfg.Discord.WebhookURLs); n > 0 {
		parts = append(parts, plural(n, "discord webhook"))
	}
	if n := len(cfg.Ntfy.Topics); n > 0 {
		parts = append(parts, plural(n, "ntfy topic"))
	}
	if len(parts) == 0 {
		return Result{Name: name, Detail: "none configured"}
	}
	return Result{Name: name, Passed: true, Detail: strings.Join(parts, ", ")}
}
