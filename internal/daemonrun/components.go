package daemonrun

import (
	"fmt"
	"log/slog"
	"slices"

	"lootwatch/internal/artifacts"
	"lootwatch/internal/config"
	"lootwatch/internal/dispatch"
	"lootwatch/internal/marketplace"
	"lootwatch/internal/notifications"
	"lootwatch/internal/render"
	"lootwatch/internal/search"
	"lootwatch/internal/stash"
	"lootwatch/internal/store"
	"lootwatch/internal/workflow"
)

// Component names, also used for lock files and log fields.
const (
	ComponentSearch   = "search"
	ComponentStash    = "stash"
	ComponentRender   = "render"
	ComponentDispatch = "dispatch"
)

// AllComponents lists every loop in start order.
var AllComponents = []string{ComponentSearch, ComponentStash, ComponentRender, ComponentDispatch}

// EnabledComponents returns the loops switched on in cfg.
func EnabledComponents(cfg *config.Config) []string {
	var names []string
	if cfg.Search.Enabled {
		names = append(names, ComponentSearch)
	}
	if cfg.Stash.Enabled {
		names = append(names, ComponentStash)
	}
	if cfg.Renderer.Enabled {
		names = append(names, ComponentRender)
	}
	if cfg.Dispatch.Enabled {
		names = append(names, ComponentDispatch)
	}
	return names
}

// BuildComponents constructs the named loops over a shared store.
func BuildComponents(cfg *config.Config, st *store.Store, logger *slog.Logger, names []string) ([]workflow.Component, error) {
	art := artifacts.New(cfg.Paths.ArtifactDir)

	var client *marketplace.Client
	if slices.Contains(names, ComponentSearch) || slices.Contains(names, ComponentStash) {
		var err error
		client, err = marketplace.New(cfg.Marketplace, marketplace.WithLogger(logger))
		if err != nil {
			return nil, err
		}
	}

	components := make([]workflow.Component, 0, len(names))
	for _, name := range names {
		switch name {
		case ComponentSearch:
			components = append(components, search.New(cfg, client, st, logger))
		case ComponentStash:
			components = append(components, stash.New(cfg, client, st, logger))
		case ComponentRender:
			components = append(components, render.New(cfg, st, art, logger))
		case ComponentDispatch:
			channels, err := notifications.BuildChannels(cfg)
			if err != nil {
				return nil, err
			}
			components = append(components, dispatch.New(cfg, st, art, channels, logger))
		default:
			return nil, fmt.Errorf("unknown component %q", name)
		}
	}
	return components, nil
}
