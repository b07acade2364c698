package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lootwatch/internal/artifacts"
	"lootwatch/internal/config"
	"lootwatch/internal/daemonrun"
	"lootwatch/internal/logging"
	"lootwatch/internal/render"
	"lootwatch/internal/store"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var noViewer bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every enabled loop and the item viewer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				Viewer:   cfg.Viewer.Enabled && !noViewer,
				LogLevel: ctx.logLevel,
			})
		},
	}
	cmd.Flags().BoolVar(&noViewer, "no-viewer", false, "Do not serve the item viewer")
	return cmd
}

var loopDescriptions = map[string]string{
	daemonrun.ComponentSearch:   "Poll the marketplace search for new listings",
	daemonrun.ComponentStash:    "Poll guild stash tabs for new items",
	daemonrun.ComponentRender:   "Render item images with a headless browser",
	daemonrun.ComponentDispatch: "Deliver rendered items to notification channels",
}

// newLoopCommand runs a single loop in the foreground. The loop's lock keeps
// a second copy from running next to it.
func newLoopCommand(ctx *commandContext, component string) *cobra.Command {
	return &cobra.Command{
		Use:   component,
		Short: loopDescriptions[component],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				Components: []string{component},
				LogLevel:   ctx.logLevel,
			})
		},
	}
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "render [item-id]",
		Short: loopDescriptions[daemonrun.ComponentRender],
		Long: "Without arguments, runs the render loop in the foreground.\n" +
			"With an item id, renders that item once (even if it already has an image) and exits.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
					Components: []string{daemonrun.ComponentRender},
					LogLevel:   ctx.logLevel,
				})
			}
			id := strings.TrimSpace(args[0])
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				logger, err := logging.NewFromConfig(cfg, "render")
				if err != nil {
					return err
				}
				renderer := render.New(cfg, st, artifacts.New(cfg.Paths.ArtifactDir), logger)
				if err := renderer.Prepare(cmd.Context()); err != nil {
					return err
				}
				if err := renderer.RenderOne(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rendered %s\n", id)
				return nil
			})
		},
	}
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the item viewer without running any loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(bind) != "" {
				cfg.Viewer.Bind = strings.TrimSpace(bind)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				ViewerOnly: true,
				LogLevel:   ctx.logLevel,
			})
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Override viewer.bind (host:port)")
	return cmd
}
