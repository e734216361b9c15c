// Package targets describes the sites to probe as plain data, so new sites
// can be added from a configuration file instead of code.
package targets

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/go-shop-probe/models"
	"github.com/aluiziolira/go-shop-probe/normalize"
	"github.com/aluiziolira/go-shop-probe/probe"
)

// All selects every known target.
const All = "all"

// Target is one site and the guesses used to search it.
type Target struct {
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	BaseURL     string               `json:"base_url"`
	Headers     map[string]string    `json:"headers,omitempty"`
	Candidates  []CandidateTemplate  `json:"candidates,omitempty"`
	Paths       []string             `json:"paths,omitempty"`
	Wrappers    []string             `json:"wrappers,omitempty"`
	Totals      []string             `json:"totals,omitempty"`
	Markers     []string             `json:"markers,omitempty"`
	Selectors   []string             `json:"selectors,omitempty"`
	Fields      normalize.HTMLFields `json:"fields,omitempty"`
	Aliases     normalize.Aliases    `json:"aliases,omitempty"`
	Discovery   []Sweep              `json:"discovery,omitempty"`
	Queries     []string             `json:"queries,omitempty"`
}

// CandidateTemplate is a candidate whose URL and parameter values may hold
// {query}, {page}, {offset}, {limit} and {category} placeholders. URLs that
// start with "/" are resolved against the target base URL.
type CandidateTemplate struct {
	Name    string            `json:"name,omitempty"`
	URL     string            `json:"url"`
	Params  map[string]string `json:"params,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Accept  string            `json:"accept,omitempty"`
	Timeout string            `json:"timeout,omitempty"`
}

// Sweep is a group of endpoint paths tried only to see which ones exist.
type Sweep struct {
	Name    string            `json:"name"`
	BaseURL string            `json:"base_url,omitempty"`
	Paths   []string          `json:"paths"`
	Params  map[string]string `json:"params,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Timeout string            `json:"timeout,omitempty"`
}

// Validate checks that the target can be probed.
func (t Target) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("target name is required")
	}
	if len(t.Candidates) == 0 && len(t.Discovery) == 0 {
		return fmt.Errorf("target %s has no candidates or discovery sweeps", t.Name)
	}
	for _, c := range t.Candidates {
		if strings.HasPrefix(c.URL, "/") && t.BaseURL == "" {
			return fmt.Errorf("target %s: relative candidate %s needs base_url", t.Name, c.URL)
		}
		if _, err := models.ParseContentKind(c.Accept); err != nil {
			return fmt.Errorf("target %s: %w", t.Name, err)
		}
		if _, err := parseTimeout(c.Timeout); err != nil {
			return fmt.Errorf("target %s: %w", t.Name, err)
		}
	}
	for _, s := range t.Discovery {
		if _, err := parseTimeout(s.Timeout); err != nil {
			return fmt.Errorf("target %s sweep %s: %w", t.Name, s.Name, err)
		}
	}
	return nil
}

// Candidates expands the target's templates for one query.
func Candidates(t Target, q models.SearchQuery) ([]probe.Candidate, error) {
	vars := placeholders(q)
	out := make([]probe.Candidate, 0, len(t.Candidates))
	for i, tmpl := range t.Candidates {
		accept, err := models.ParseContentKind(tmpl.Accept)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i+1, err)
		}
		timeout, err := parseTimeout(tmpl.Timeout)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i+1, err)
		}

		params := make(map[string]string, len(tmpl.Params))
		for k, v := range tmpl.Params {
			params[k] = expand(v, vars, false)
		}

		name := tmpl.Name
		if name == "" {
			name = fmt.Sprintf("%s#%d", t.Name, i+1)
		}
		out = append(out, probe.Candidate{
			Name:    name,
			URL:     resolve(t.BaseURL, expand(tmpl.URL, vars, true)),
			Params:  params,
			Headers: mergeHeaders(t.Headers, tmpl.Headers),
			Accept:  accept,
			Timeout: timeout,
		})
	}
	return out, nil
}

// DiscoveryCandidates expands one sweep into a candidate per path.
func DiscoveryCandidates(t Target, s Sweep) ([]probe.Candidate, error) {
	timeout, err := parseTimeout(s.Timeout)
	if err != nil {
		return nil, err
	}
	base := s.BaseURL
	if base == "" {
		base = t.BaseURL
	}
	out := make([]probe.Candidate, 0, len(s.Paths))
	for _, path := range s.Paths {
		out = append(out, probe.Candidate{
			Name:    path,
			URL:     resolve(base, path),
			Params:  s.Params,
			Headers: mergeHeaders(t.Headers, s.Headers),
			Timeout: timeout,
		})
	}
	return out, nil
}

// Select returns the named targets in the order given. "all" (or no names)
// selects every target.
func Select(known []Target, names []string) ([]Target, error) {
	if len(names) == 0 {
		return known, nil
	}
	byName := make(map[string]Target, len(known))
	for _, t := range known {
		byName[t.Name] = t
	}

	var out []Target
	for _, name := range names {
		if name == All {
			return known, nil
		}
		t, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown target %q (known: %s)", name, strings.Join(Names(known), ", "))
		}
		out = append(out, t)
	}
	return out, nil
}

// Names lists target names in sorted order.
func Names(known []Target) []string {
	names := make([]string, 0, len(known))
	for _, t := range known {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// Merge overlays loaded targets on base; a loaded target replaces the base
// target with the same name.
func Merge(base, loaded []Target) []Target {
	out := make([]Target, 0, len(base)+len(loaded))
	index := make(map[string]int, len(base))
	for _, t := range base {
		index[t.Name] = len(out)
		out = append(out, t)
	}
	for _, t := range loaded {
		if i, ok := index[t.Name]; ok {
			out[i] = t
			continue
		}
		index[t.Name] = len(out)
		out = append(out, t)
	}
	return out
}

func placeholders(q models.SearchQuery) map[string]string {
	page := q.Page
	if page <= 0 {
		page = 1
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset <= 0 {
		offset = (page - 1) * limit
	}
	return map[string]string{
		"query":    q.Text,
		"page":     strconv.Itoa(page),
		"offset":   strconv.Itoa(offset),
		"limit":    strconv.Itoa(limit),
		"category": q.Category,
	}
}

func expand(s string, vars map[string]string, escape bool) string {
	if !strings.Contains(s, "{") {
		return s
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		if escape {
			v = strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
		}
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

func resolve(base, ref string) string {
	if base == "" || !strings.HasPrefix(ref, "/") {
		return ref
	}
	return strings.TrimSuffix(base, "/") + ref
}

func mergeHeaders(layers ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

func parseTimeout(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid timeout %q: negative", s)
	}
	return d, nil
}
