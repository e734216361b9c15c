package main

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newTargetsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "Lists the known targets, including those from --targets-file.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			t := table.NewWriter()
			t.SetOutputMirror(a.report)
			t.AppendHeader(table.Row{"Name", "Base URL", "Candidates", "Sweeps", "Default queries"})
			for _, target := range a.targets {
				t.AppendRow(table.Row{target.Name, target.BaseURL, len(target.Candidates), len(target.Discovery), strings.Join(target.Queries, ", ")})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
		},
	}
}
