package main

import (
	"github.com/spf13/cobra"

	"lootwatch/internal/daemonrun"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "lootwatch",
		Short:         "Watch the trade marketplace and guild stash for loot",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "", "Override logging.level for this run")

	rootCmd.AddCommand(newRunCommand(ctx))
	for _, name := range []string{daemonrun.ComponentSearch, daemonrun.ComponentStash, daemonrun.ComponentDispatch} {
		rootCmd.AddCommand(newLoopCommand(ctx, name))
	}
	rootCmd.AddCommand(newRenderCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newItemsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
