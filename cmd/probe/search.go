package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-shop-probe/models"
	"github.com/aluiziolira/go-shop-probe/search"
	"github.com/spf13/cobra"
)

func newSearchCmd(a *app) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "search [queries...]",
		Short: "Probes each target's search candidates and prints the records found.",
		Long: "Probes each selected target for every query, or for the target's default queries when none " +
			"are given. Targets that answer with nothing usable are reported as \"no results\".",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSearch(cmd.Context(), args, page)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Result page to request")
	return cmd
}

func (a *app) runSearch(ctx context.Context, queries []string, page int) error {
	selected, err := a.selectedTargets()
	if err != nil {
		return err
	}
	searcher := search.NewSearcher(a.newProber(a.cfg.Timeout), a.cfg.SampleSize)

	out, err := newOutput(a.cfg, a.out)
	if err != nil {
		return err
	}

	start := time.Now()
	var results []*models.SearchResult
	for _, t := range selected {
		qs := queries
		if len(qs) == 0 {
			qs = t.Queries
		}
		for _, q := range qs {
			if ctx.Err() != nil {
				break
			}
			res, err := searcher.Search(ctx, t, models.SearchQuery{Text: q, Page: page, Limit: a.cfg.PageSize})
			if err != nil {
				slog.Error("search failed", slog.String("target", t.Name), slog.String("query", q), slog.Any("error", err))
				continue
			}
			printResult(a.report, res)
			if err := out.emit(fmt.Sprintf("%s / %s", t.Name, q), res.Records); err != nil {
				return err
			}
			results = append(results, res)
		}
	}

	metrics, err := out.close()
	printSummary(a.report, results, time.Since(start), metrics)
	return err
}
