package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-shop-probe/search"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newDiscoverCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Sweeps each target's known endpoint paths and lists those that are not 404.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDiscover(cmd.Context())
		},
	}
}

func (a *app) runDiscover(ctx context.Context) error {
	selected, err := a.selectedTargets()
	if err != nil {
		return err
	}
	searcher := search.NewSearcher(a.newProber(a.cfg.DiscoveryTimeout), a.cfg.SampleSize)

	for _, t := range selected {
		if ctx.Err() != nil {
			break
		}
		if len(t.Discovery) == 0 {
			fmt.Fprintf(a.report, "\n%s: no discovery sweeps\n", t.Name)
			continue
		}
		sweeps, err := searcher.Discover(ctx, t)
		if err != nil {
			slog.Error("discovery failed", slog.String("target", t.Name), slog.Any("error", err))
		}
		for _, sw := range sweeps {
			printSweep(a.report, sw)
		}
	}
	return nil
}

func printSweep(w io.Writer, sw search.SweepResult) {
	fmt.Fprintf(w, "\n%s / %s: %d of %d endpoints answered\n", sw.Target, sw.Sweep, len(sw.Found), sw.Tried)
	if len(sw.Found) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Path", "Status", "Content-Type", "Duration", "URL"})
	for _, a := range sw.Found {
		t.AppendRow(table.Row{a.Candidate, a.StatusCode, a.ContentType, a.Duration.Round(time.Millisecond), a.URL})
	}
	t.Render()
}
