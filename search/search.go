// Package search runs one target through the prober, the structure guesser
// and the record normalizer.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-shop-probe/extract"
	"github.com/aluiziolira/go-shop-probe/models"
	"github.com/aluiziolira/go-shop-probe/normalize"
	"github.com/aluiziolira/go-shop-probe/probe"
	"github.com/aluiziolira/go-shop-probe/targets"
)

// Where a result's records came from.
const (
	SourceJSON          = "json"
	SourceEmbeddedState = "embedded_state"
	SourceHTML          = "html"
	SourceJSONLD        = "json_ld"
)

// Searcher probes targets one query at a time.
type Searcher struct {
	prober *probe.Prober
	sample int
}

// NewSearcher returns a searcher that keeps at most sample records per
// result (all when sample <= 0).
func NewSearcher(p *probe.Prober, sample int) *Searcher {
	return &Searcher{prober: p, sample: sample}
}

// Search probes the target's candidates for q and extracts product records
// from the first acceptable response. A target that yields nothing returns a
// result without records and a nil error; errors are reserved for target
// definitions that cannot be expanded.
func (s *Searcher) Search(ctx context.Context, t targets.Target, q models.SearchQuery) (*models.SearchResult, error) {
	result := &models.SearchResult{Target: t.Name, Query: q, StartTime: time.Now()}
	defer func() { result.EndTime = time.Now() }()

	candidates, err := targets.Candidates(t, q)
	if err != nil {
		return nil, fmt.Errorf("expand %s candidates: %w", t.Name, err)
	}

	slog.Info("searching",
		slog.String("target", t.Name),
		slog.String("query", q.Text),
		slog.Int("candidates", len(candidates)),
	)
	outcome := s.prober.Probe(ctx, candidates)
	result.Attempts = outcome.Attempts
	if !outcome.Found {
		slog.Warn("no candidate answered", slog.String("target", t.Name), slog.String("query", q.Text))
		return result, nil
	}
	result.Strategy = outcome.Attempts[len(outcome.Attempts)-1].Candidate

	normalizer := normalize.New(t.Aliases)
	guesser := extract.Guesser{Paths: t.Paths, Wrappers: t.Wrappers}

	resp := outcome.Response
	switch resp.Kind {
	case models.KindJSON:
		s.fromJSON(result, resp.JSON, guesser, normalizer, t.Totals)
		if len(result.Records) > 0 {
			result.Source = SourceJSON
		}
	case models.KindHTML:
		s.fromHTML(result, resp, t, guesser, normalizer)
	}

	for _, rec := range result.Records {
		rec.Source = result.Source
		rec.Strategy = result.Strategy
	}

	m := s.prober.Metrics
	if result.Found() {
		m.IncStrategy(result.Source)
		m.AddRecords(len(result.Records))
		slog.Info("products found",
			slog.String("target", t.Name),
			slog.String("source", result.Source),
			slog.String("path", result.Path),
			slog.Int("records", len(result.Records)),
			slog.Int("total", result.Total),
		)
	} else {
		slog.Warn("response had no recognizable products",
			slog.String("target", t.Name),
			slog.String("url", resp.URL),
			slog.Any("keys", result.Keys),
		)
	}
	return result, nil
}

func (s *Searcher) fromJSON(result *models.SearchResult, data any, g extract.Guesser, n *normalize.Normalizer, totals []string) {
	result.Keys = extract.Keys(data)
	items, path := g.Guess(data)
	if len(items) == 0 {
		return
	}
	result.Path = path
	result.Records = n.Records(items, s.sample)
	result.Total = total(data, totals, len(items))
}

func (s *Searcher) fromHTML(result *models.SearchResult, resp *models.RawResponse, t targets.Target, g extract.Guesser, n *normalize.Normalizer) {
	html := resp.HTML()

	if len(t.Markers) > 0 {
		state, marker, err := extract.EmbeddedState(html, t.Markers)
		switch {
		case err == nil:
			s.fromJSON(result, state, g, n, t.Totals)
			if len(result.Records) > 0 {
				result.Source = SourceEmbeddedState
				result.Path = strings.TrimSpace(marker) + " " + result.Path
				return
			}
		case marker != "":
			slog.Debug("embedded state did not parse", slog.String("marker", marker), slog.Any("error", err))
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		slog.Warn("html did not parse", slog.String("url", resp.URL), slog.Any("error", err))
		return
	}
	if id, ok := extract.NextBuildID(doc); ok {
		result.NextBuildID = id
		if id == "" {
			result.NextBuildID = "unknown"
		}
	}

	base, _ := url.Parse(resp.URL)
	if sel, selector := extract.FindSelection(doc, t.Selectors); sel != nil {
		result.Records = normalize.FromSelections(sel, t.Fields.WithDefaults(), base, s.sample)
		if len(result.Records) > 0 {
			result.Source = SourceHTML
			result.Path = selector
			result.Total = sel.Length()
			return
		}
	}

	products := extract.JSONLDProducts(doc)
	if len(products) == 0 {
		return
	}
	items := make([]any, len(products))
	for i, p := range products {
		items[i] = p
	}
	result.Records = n.Records(items, s.sample)
	result.Source = SourceJSONLD
	result.Path = `script[type="application/ld+json"]`
	result.Total = len(products)
}

func total(data any, paths []string, fallback int) int {
	for _, path := range paths {
		v, ok := extract.Lookup(data, path)
		if !ok {
			continue
		}
		if n := normalize.Integer(v); n > 0 {
			return n
		}
	}
	return fallback
}

// SweepResult lists the endpoints of one discovery sweep that answered with
// anything other than 404.
type SweepResult struct {
	Target string
	Sweep  string
	Tried  int
	Found  []models.Attempt
}

// Discover runs every discovery sweep of the target.
func (s *Searcher) Discover(ctx context.Context, t targets.Target) ([]SweepResult, error) {
	results := make([]SweepResult, 0, len(t.Discovery))
	for _, sweep := range t.Discovery {
		candidates, err := targets.DiscoveryCandidates(t, sweep)
		if err != nil {
			return results, fmt.Errorf("expand %s sweep %s: %w", t.Name, sweep.Name, err)
		}

		slog.Info("sweeping endpoints",
			slog.String("target", t.Name),
			slog.String("sweep", sweep.Name),
			slog.Int("paths", len(candidates)),
		)
		attempts := s.prober.Discover(ctx, candidates)

		res := SweepResult{Target: t.Name, Sweep: sweep.Name, Tried: len(attempts)}
		for _, a := range attempts {
			if a.StatusCode != 0 && a.StatusCode != http.StatusNotFound {
				res.Found = append(res.Found, a)
			}
		}
		results = append(results, res)
	}
	return results, nil
}
