package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lootwatch/internal/config"
	"lootwatch/internal/daemon"
	"lootwatch/internal/daemonrun"
	"lootwatch/internal/preflight"
	"lootwatch/internal/store"
)

type componentState struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Running bool   `json:"running"`
}

type statusReport struct {
	Database         string             `json:"database"`
	Components       []componentState   `json:"components"`
	Items            store.Stats        `json:"items"`
	LatestDiscovered time.Time          `json:"latest_discovered,omitzero"`
	ViewerBind       string             `json:"viewer_bind,omitempty"`
	Checks           []preflight.Result `json:"checks"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show loop locks and item counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				report, err := collectStatus(cmd, cfg, st)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, report)
				}
				fmt.Fprint(cmd.OutOrStdout(), formatStatus(report, time.Now(), shouldColorize(cmd.OutOrStdout())))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}

func collectStatus(cmd *cobra.Command, cfg *config.Config, st *store.Store) (statusReport, error) {
	report := statusReport{Database: st.Path()}
	if cfg.Viewer.Enabled {
		report.ViewerBind = cfg.Viewer.Bind
	}
	enabled := map[string]bool{}
	for _, name := range daemonrun.EnabledComponents(cfg) {
		enabled[name] = true
	}
	for _, name := range daemonrun.AllComponents {
		running, err := daemon.Held(cfg, name)
		if err != nil {
			return report, err
		}
		report.Components = append(report.Components, componentState{Name: name, Enabled: enabled[name], Running: running})
	}

	stats, err := st.Stats(cmd.Context(), cfg.Dispatch.MaxAttempts)
	if err != nil {
		return report, err
	}
	report.Items = stats
	latest, err := st.LatestDiscoveredAt(cmd.Context())
	if err != nil {
		return report, err
	}
	report.LatestDiscovered = latest
	report.Checks = preflight.RunAll(cmd.Context(), cfg)
	return report, nil
}

func formatStatus(report statusReport, now time.Time, colorize bool) string {
	var lines []string
	lines = append(lines, renderSectionHeader("Loops", colorize)...)
	for _, comp := range report.Components {
		kind, message := statusInfo, "disabled"
		switch {
		case comp.Running:
			kind, message = statusOK, "running"
		case comp.Enabled:
			kind, message = statusWarn, "enabled, not running"
		}
		lines = append(lines, renderStatusLine(comp.Name, kind, message, colorize))
	}
	if report.ViewerBind != "" {
		lines = append(lines, renderStatusLine("viewer", statusInfo, "http://"+report.ViewerBind, colorize))
	}

	if len(report.Checks) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Checks", colorize)...)
		for _, check := range report.Checks {
			kind := statusOK
			if !check.Passed {
				kind = statusError
			}
			lines = append(lines, renderStatusLine(strings.ToLower(check.Name), kind, check.Detail, colorize))
		}
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Items", colorize)...)
	counts := []struct {
		label string
		value int
	}{
		{"total", report.Items.Total},
		{"pending render", report.Items.PendingRender},
		{"pending delivery", report.Items.PendingDelivery},
		{"delivered", report.Items.Delivered},
		{"suppressed", report.Items.Suppressed},
	}
	for _, c := range counts {
		lines = append(lines, renderStatusLine(c.label, statusInfo, humanize.Comma(int64(c.value)), colorize))
	}
	if report.Items.Exhausted > 0 {
		lines = append(lines, renderStatusLine("exhausted", statusError,
			humanize.Comma(int64(report.Items.Exhausted))+" (lootwatch items retry)", colorize))
	}
	latest := "never"
	if !report.LatestDiscovered.IsZero() {
		latest = humanize.RelTime(report.LatestDiscovered, now, "ago", "from now")
	}
	lines = append(lines, renderStatusLine("last discovery", statusInfo, latest, colorize))
	lines = append(lines, renderStatusLine("database", statusInfo, report.Database, colorize))

	return strings.Join(lines, "\n") + "\n"
}
