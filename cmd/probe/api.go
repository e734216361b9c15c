package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/aluiziolira/go-shop-probe/mercadolibre"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newAPICmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Queries the marketplace's official public API.",
	}
	cmd.PersistentFlags().StringVar(&a.flags.apiBaseURL, "api-base-url", mercadolibre.DefaultBaseURL, "Marketplace API base URL")
	cmd.PersistentFlags().StringVar(&a.flags.siteID, "site", mercadolibre.DefaultSiteID, "Marketplace site id")

	cmd.AddCommand(newAPISearchCmd(a), newAPICategoriesCmd(a), newAPITrendsCmd(a), newAPIHolidayCmd(a))
	return cmd
}

func newAPISearchCmd(a *app) *cobra.Command {
	var (
		category string
		limit    int
		offset   int
	)
	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Searches the site by text, or lists a category with --category.",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if query == "" && category == "" {
				return fmt.Errorf("a query or --category is required")
			}

			client := a.newAPIClient()
			var (
				res *mercadolibre.SearchResponse
				err error
			)
			if query == "" {
				res, err = client.SearchByCategory(cmd.Context(), category, limit)
			} else {
				res, err = client.Search(cmd.Context(), query, limit, offset)
			}
			if err != nil {
				slog.Error("api search failed", slog.Any("error", err))
				return nil
			}

			fmt.Fprintf(a.report, "\nTotal results: %d\n", res.Total)
			for _, f := range res.Filters {
				fmt.Fprintf(a.report, "  %s: %s\n", f.Name, strings.Join(f.Values, ", "))
			}

			out, err := newOutput(a.cfg, a.out)
			if err != nil {
				return err
			}
			title := query
			if title == "" {
				title = category
			}
			if err := out.emit("api / "+title, res.Products); err != nil {
				return err
			}
			_, err = out.close()
			return err
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Category id to list instead of a text search")
	cmd.Flags().IntVar(&limit, "limit", 20, "Results per page")
	cmd.Flags().IntVar(&offset, "offset", 0, "Result offset")
	return cmd
}

func newAPICategoriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Lists the site's top-level categories.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			categories, err := a.newAPIClient().Categories(cmd.Context())
			if err != nil {
				slog.Error("api categories failed", slog.Any("error", err))
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(a.report)
			t.AppendHeader(table.Row{"ID", "Name"})
			for _, c := range categories {
				t.AppendRow(table.Row{c.ID, c.Name})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
			return nil
		},
	}
}

func newAPITrendsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "trends <category-id>",
		Short: "Prints the highlighted listings of a category.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trends, err := a.newAPIClient().CategoryTrends(cmd.Context(), args[0])
			if err != nil {
				slog.Error("api trends failed", slog.String("category", args[0]), slog.Any("error", err))
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(a.report)
			t.SetTitle("Highlights %s", trends.CategoryID)
			t.AppendHeader(table.Row{"Position", "ID", "Type"})
			for _, e := range trends.Content {
				t.AppendRow(table.Row{e.Position, e.ID, e.Type})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
			return nil
		},
	}
}

func newAPIHolidayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "holiday [name]",
		Short: "Recommends products for a holiday, or lists the known holidays.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				t := table.NewWriter()
				t.SetOutputMirror(a.report)
				t.AppendHeader(table.Row{"Holiday", "Queries"})
				for _, name := range mercadolibre.Holidays() {
					t.AppendRow(table.Row{name, strings.Join(mercadolibre.HolidayQueries[name], ", ")})
				}
				t.SetStyle(table.StyleRounded)
				t.Render()
				return nil
			}

			recs, err := a.newAPIClient().HolidayRecommendations(cmd.Context(), args[0])
			if err != nil {
				slog.Error("holiday recommendations interrupted", slog.Any("error", err))
			}
			if recs == nil {
				return nil
			}

			out, err := newOutput(a.cfg, a.out)
			if err != nil {
				return err
			}
			for _, q := range recs.Queries {
				if err := out.emit(recs.Holiday+" / "+q, recs.Products[q]); err != nil {
					return err
				}
			}
			_, err = out.close()
			return err
		},
	}
}
