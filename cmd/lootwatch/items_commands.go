package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lootwatch/internal/config"
	"lootwatch/internal/store"
	"lootwatch/internal/textutil"
)

func newItemsCommand(ctx *commandContext) *cobra.Command {
	itemsCmd := &cobra.Command{
		Use:   "items",
		Short: "Inspect and manage stored items",
	}

	itemsCmd.AddCommand(newItemsListCommand(ctx))
	itemsCmd.AddCommand(newItemsShowCommand(ctx))
	itemsCmd.AddCommand(newItemsSuppressCommand(ctx))
	itemsCmd.AddCommand(newItemsRetryCommand(ctx))

	return itemsCmd
}

func newItemsListCommand(ctx *commandContext) *cobra.Command {
	var state string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				items, err := st.List(cmd.Context(), store.ListOptions{Limit: limit, State: strings.ToLower(strings.TrimSpace(state))})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, itemsToJSON(items))
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No items")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						item.ID,
						textutil.Truncate(item.Name, 40),
						item.State(),
						itemSource(item),
						fmt.Sprintf("%d", item.DeliveryAttempts),
						humanize.Time(item.DiscoveredAt),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Name", "State", "Source", "Attempts", "Discovered"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "Filter by state: discovered, rendered, delivered, suppressed")
	cmd.Flags().IntVarP(&limit, "limit", "n", 25, "Maximum number of items")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newItemsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <item-id>",
		Short: "Show one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				item, err := st.GetByID(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:          %s\n", item.ID)
				fmt.Fprintf(out, "Name:        %s\n", item.Name)
				fmt.Fprintf(out, "State:       %s\n", item.State())
				fmt.Fprintf(out, "Source:      %s\n", itemSource(item))
				fmt.Fprintf(out, "Rendered:    %s\n", yesNo(item.HasArtifact))
				fmt.Fprintf(out, "Suppressed:  %s\n", yesNo(item.Suppressed))
				fmt.Fprintf(out, "Attempts:    %d\n", item.DeliveryAttempts)
				if item.LastDeliveryError != "" {
					fmt.Fprintf(out, "Last error:  %s\n", item.LastDeliveryError)
				}
				if item.DeliveredAt != nil {
					fmt.Fprintf(out, "Delivered:   %s\n", humanize.Time(*item.DeliveredAt))
				}
				fmt.Fprintf(out, "Discovered:  %s (%s)\n", item.DiscoveredAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(item.DiscoveredAt))
				return nil
			})
		},
	}
}

func newItemsSuppressCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "suppress [item-id...]",
		Short: "Mark items as never to be delivered",
		Long: "Suppress the given items, or with --all every item not yet delivered.\n" +
			"Use --all once after importing a backlog so only new discoveries are sent.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return errors.New("pass item ids or --all, not both")
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				var affected int64
				var err error
				if all {
					affected, err = st.MarkSuppressedBulk(cmd.Context())
				} else {
					affected, err = st.MarkSuppressed(cmd.Context(), args...)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Suppressed %s item(s)\n", humanize.Comma(affected))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Suppress every undelivered item")
	return cmd
}

func newItemsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [item-id...]",
		Short: "Reset delivery attempts so failed items are sent again",
		Long:  "Without arguments, resets every undelivered item that has failed at least once.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				affected, err := st.ResetDeliveryAttempts(cmd.Context(), args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %s item(s)\n", humanize.Comma(affected))
				return nil
			})
		},
	}
}

func itemSource(item *store.Item) string {
	switch {
	case item.Stash != nil:
		return "stash: " + item.Stash.TabName
	case item.Listing != nil && item.Listing.Account != "":
		return "search: " + item.Listing.Account
	default:
		return "search"
	}
}

type itemJSON struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	State            string `json:"state"`
	Source           string `json:"source"`
	DeliveryAttempts int    `json:"delivery_attempts"`
	LastError        string `json:"last_error,omitempty"`
	DiscoveredAt     string `json:"discovered_at"`
}

func itemsToJSON(items []*store.Item) []itemJSON {
	out := make([]itemJSON, 0, len(items))
	for _, item := range items {
		out = append(out, itemJSON{
			ID:               item.ID,
			Name:             item.Name,
			State:            item.State(),
			Source:           itemSource(item),
			DeliveryAttempts: item.DeliveryAttempts,
			LastError:        item.LastDeliveryError,
			DiscoveredAt:     item.DiscoveredAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return out
}
