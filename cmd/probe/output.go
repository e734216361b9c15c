package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aluiziolira/go-shop-probe/config"
	"github.com/aluiziolira/go-shop-probe/models"
	"github.com/aluiziolira/go-shop-probe/pipeline"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// output feeds records through the pipeline into the configured writers.
type output struct {
	pipeline *pipeline.Pipeline
	writer   pipeline.OutputWriter
	console  *pipeline.ConsoleWriter
}

func newOutput(cfg *config.Config, out io.Writer) (*output, error) {
	o := &output{}
	var writers []pipeline.OutputWriter

	switch cfg.OutputFormat {
	case "console":
		o.console = pipeline.NewConsoleWriter(out)
		writers = append(writers, o.console)
		if cfg.OutputFile != "" {
			jw, err := pipeline.NewJSONWriter(cfg.OutputFile)
			if err != nil {
				return nil, err
			}
			writers = append(writers, jw)
		}
	case "json":
		if cfg.OutputFile == "" {
			writers = append(writers, pipeline.NewJSONStreamWriter(out))
		} else {
			jw, err := pipeline.NewJSONWriter(cfg.OutputFile)
			if err != nil {
				return nil, err
			}
			writers = append(writers, jw)
		}
	case "csv":
		o.console = pipeline.NewConsoleWriter(out)
		cw, err := pipeline.NewCSVWriter(cfg.OutputFile)
		if err != nil {
			return nil, err
		}
		writers = append(writers, o.console, cw)
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}

	o.writer = pipeline.NewMultiWriter(writers...)
	p, err := pipeline.NewPipeline(o.writer, cfg)
	if err != nil {
		return nil, err
	}
	o.pipeline = p
	return o, nil
}

// emit writes one group of records, captioned with title on the console.
// Duplicates are dropped within a group only.
func (o *output) emit(title string, records []*models.ProductRecord) error {
	if err := o.pipeline.Reset(); err != nil {
		return err
	}
	if o.console != nil {
		o.console.SetTitle(title)
	}
	if err := o.pipeline.Process(records...); err != nil {
		return err
	}
	return o.pipeline.Flush()
}

// close shuts the pipeline down. An output without records is reported,
// not treated as a failure.
func (o *output) close() (map[string]interface{}, error) {
	if err := o.pipeline.Close(); err != nil {
		return o.pipeline.GetMetrics(), fmt.Errorf("pipeline shutdown: %w", err)
	}
	if err := o.writer.Validate(); err != nil {
		slog.Warn("output is empty", slog.Any("error", err))
	}
	return o.pipeline.GetMetrics(), nil
}

func printResult(w io.Writer, res *models.SearchResult) {
	fmt.Fprintf(w, "\n%s: %q\n", res.Target, res.Query.Text)
	printAttempts(w, res.Attempts)

	if !res.Found() {
		fmt.Fprintln(w, "  no results")
	} else {
		fmt.Fprintf(w, "  source:    %s\n", res.Source)
		fmt.Fprintf(w, "  strategy:  %s\n", res.Strategy)
		fmt.Fprintf(w, "  path:      %s\n", res.Path)
		fmt.Fprintf(w, "  total:     %d\n", res.Total)
	}
	if len(res.Keys) > 0 {
		fmt.Fprintf(w, "  keys:      %s\n", strings.Join(res.Keys, ", "))
	}
	if res.NextBuildID != "" {
		fmt.Fprintf(w, "  __NEXT_DATA__ build: %s (client-side rendered)\n", res.NextBuildID)
	}
}

func printAttempts(w io.Writer, attempts []models.Attempt) {
	if len(attempts) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Candidate", "Status", "Content-Type", "Outcome", "Duration"})
	for i, a := range attempts {
		outcome := "ok"
		if !a.OK() {
			outcome = a.Category
			if a.Err != "" {
				outcome += ": " + text.Trim(a.Err, 60)
			}
		}
		status := "-"
		if a.StatusCode != 0 {
			status = fmt.Sprint(a.StatusCode)
		}
		t.AppendRow(table.Row{i + 1, text.Trim(a.Candidate, 40), status, text.Trim(a.ContentType, 30), outcome, a.Duration.Round(time.Millisecond)})
	}
	t.Render()
}

func printSummary(w io.Writer, results []*models.SearchResult, duration time.Duration, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "Probe complete")

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Target", "Query", "Found", "Source", "Strategy", "Records", "Total"})
	found := 0
	for _, res := range results {
		ok := "no"
		if res.Found() {
			ok = "yes"
			found++
		}
		t.AppendRow(table.Row{res.Target, res.Query.Text, ok, res.Source, res.Strategy, len(res.Records), res.Total})
	}
	t.Render()

	written := int64(0)
	if n, ok := metrics["written_records"].(int64); ok {
		written = n
	}
	fmt.Fprintf(w, "  Searches:      %d (%d with results)\n", len(results), found)
	fmt.Fprintf(w, "  Records:       %d\n", written)
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Fprintf(w, "  Validation:    %v\n", valErrors)
	}
	fmt.Fprintf(w, "  Duration:      %v\n", duration.Round(time.Millisecond))
	fmt.Fprintln(w, separator)
}
