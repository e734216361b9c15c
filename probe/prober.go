// Package probe tries guessed endpoints one after another until one answers
// with content that can be parsed.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/go-shop-probe/extract"
	"github.com/aluiziolira/go-shop-probe/models"
	"github.com/gocolly/colly/v2"
)

const responseKey = "probe.response"

// Candidate is one guessed URL and parameter set.
type Candidate struct {
	Name    string
	URL     string
	Params  map[string]string
	Headers map[string]string
	Accept  models.ContentKind
	Timeout time.Duration
}

// BuildURL returns the candidate URL with Params merged into its query.
func (c Candidate) BuildURL() (string, error) {
	parsed, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("parse candidate url: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("candidate url %q has no host", c.URL)
	}
	if len(c.Params) > 0 {
		query := parsed.Query()
		for k, v := range c.Params {
			query.Set(k, v)
		}
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}

func (c Candidate) label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.URL
}

// Outcome is what Probe found. Response is nil when Found is false.
type Outcome struct {
	Response *models.RawResponse
	Attempts []models.Attempt
	Found    bool
}

// Options configures a Prober.
type Options struct {
	UserAgent string
	Headers   map[string]string
	Timeout   time.Duration
	Transport http.RoundTripper
	Metrics   *Metrics
}

// Prober issues GET requests through a synchronous colly collector.
// Requests never overlap, so the collector's shared state is safe to reuse.
type Prober struct {
	collector *colly.Collector
	headers   http.Header
	timeout   time.Duration
	Metrics   *Metrics
}

// New builds a prober configured from opts.
func New(opts Options) *Prober {
	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(opts.UserAgent),
	)
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = false
	collector.WithTransport(newDecodingTransport(opts.Transport))

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	headers := http.Header{}
	if opts.UserAgent != "" {
		headers.Set("User-Agent", opts.UserAgent)
	}
	for k, v := range opts.Headers {
		headers.Set(k, v)
	}

	p := &Prober{
		collector: collector,
		headers:   headers,
		timeout:   timeout,
		Metrics:   opts.Metrics,
	}

	collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(responseKey, r)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.Ctx != nil {
			r.Ctx.Put(responseKey, r)
		}
	})

	return p
}

// WithTransport swaps the round tripper, keeping body decoding in front of it.
func (p *Prober) WithTransport(rt http.RoundTripper) {
	p.collector.WithTransport(newDecodingTransport(rt))
}

// Probe tries candidates in order and stops at the first HTTP 200 whose body
// decodes as JSON or HTML of the kind the candidate accepts. Failures are
// logged and recorded in Attempts; Probe never returns an error.
func (p *Prober) Probe(ctx context.Context, candidates []Candidate) *Outcome {
	out := &Outcome{Attempts: make([]models.Attempt, 0, len(candidates))}
	for i, candidate := range candidates {
		if ctx != nil && ctx.Err() != nil {
			slog.Info("probe interrupted", slog.Int("remaining", len(candidates)-i))
			break
		}

		slog.Info("trying candidate",
			slog.Int("attempt", i+1),
			slog.Int("of", len(candidates)),
			slog.String("candidate", candidate.label()),
		)
		attempt, resp := p.try(candidate, true)
		out.Attempts = append(out.Attempts, attempt)
		if resp != nil {
			out.Response = resp
			out.Found = true
			break
		}
	}
	return out
}

// Discover tries every candidate and returns all attempts without decoding
// bodies; it is used to sweep endpoint paths for anything that is not a 404.
func (p *Prober) Discover(ctx context.Context, candidates []Candidate) []models.Attempt {
	attempts := make([]models.Attempt, 0, len(candidates))
	for _, candidate := range candidates {
		if ctx != nil && ctx.Err() != nil {
			break
		}
		attempt, _ := p.try(candidate, false)
		attempts = append(attempts, attempt)
	}
	return attempts
}

func (p *Prober) try(candidate Candidate, decode bool) (models.Attempt, *models.RawResponse) {
	attempt := models.Attempt{Candidate: candidate.label(), URL: candidate.URL}

	target, err := candidate.BuildURL()
	if err != nil {
		return p.fail(attempt, err), nil
	}
	attempt.URL = target

	timeout := candidate.Timeout
	if timeout <= 0 {
		timeout = p.timeout
	}
	p.collector.SetRequestTimeout(timeout)

	hdr := p.headers.Clone()
	for k, v := range candidate.Headers {
		hdr.Set(k, v)
	}

	reqCtx := colly.NewContext()
	start := time.Now()
	reqErr := p.collector.Request(http.MethodGet, target, nil, reqCtx, hdr)
	attempt.Duration = time.Since(start)
	p.Metrics.ObserveDuration(attempt.Duration)

	res, _ := reqCtx.GetAny(responseKey).(*colly.Response)
	if res != nil {
		attempt.StatusCode = res.StatusCode
		if res.Headers != nil {
			attempt.ContentType = res.Headers.Get("Content-Type")
		}
	}

	if reqErr != nil || attempt.StatusCode != http.StatusOK {
		return p.fail(attempt, classifyError(reqErr, attempt.StatusCode)), nil
	}

	slog.Info("candidate responded",
		slog.String("candidate", attempt.Candidate),
		slog.Int("status", attempt.StatusCode),
		slog.String("content_type", attempt.ContentType),
	)

	if !decode {
		p.Metrics.IncCandidate("ok")
		return attempt, nil
	}

	raw, err := decodeResponse(target, res.StatusCode, attempt.ContentType, res.Body)
	if err != nil {
		return p.fail(attempt, err), nil
	}
	if candidate.Accept != models.KindUnknown && raw.Kind != candidate.Accept {
		return p.fail(attempt, ErrUnacceptable{Got: raw.Kind.String(), Want: candidate.Accept.String()}), nil
	}

	p.Metrics.IncCandidate("ok")
	return attempt, raw
}

func (p *Prober) fail(attempt models.Attempt, err error) models.Attempt {
	if err == nil {
		err = fmt.Errorf("no response")
	}
	attempt.Err = err.Error()
	attempt.Category = ErrorTypeLabel(err)
	p.Metrics.IncCandidate("failed")
	p.Metrics.IncError(attempt.Category)

	slog.Warn("candidate failed",
		slog.String("candidate", attempt.Candidate),
		slog.String("url", attempt.URL),
		slog.Int("status", attempt.StatusCode),
		slog.String("category", attempt.Category),
		slog.Any("error", err),
	)
	return attempt
}

// DetectKind classifies a body from its Content-Type, sniffing the first
// bytes when the header says neither JSON nor HTML.
func DetectKind(contentType string, body []byte) models.ContentKind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "json"):
		return models.KindJSON
	case strings.Contains(ct, "html"):
		return models.KindHTML
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return models.KindUnknown
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return models.KindJSON
	}
	head := trimmed
	if len(head) > 512 {
		head = head[:512]
	}
	lower := bytes.ToLower(head)
	if bytes.Contains(lower, []byte("<html")) || bytes.HasPrefix(lower, []byte("<!doctype html")) {
		return models.KindHTML
	}
	return models.KindUnknown
}

func decodeResponse(target string, status int, contentType string, body []byte) (*models.RawResponse, error) {
	raw := &models.RawResponse{
		URL:         target,
		StatusCode:  status,
		ContentType: contentType,
		Kind:        DetectKind(contentType, body),
		Body:        body,
	}

	switch raw.Kind {
	case models.KindJSON:
		value, err := extract.DecodeJSON(body)
		if err != nil {
			if DetectKind("", body) == models.KindHTML {
				return nil, ErrUnacceptable{Got: "html", Want: "json"}
			}
			return nil, ErrUndecodable{ContentType: contentType, Err: err}
		}
		raw.JSON = value
	case models.KindHTML:
	default:
		return nil, ErrUndecodable{ContentType: contentType}
	}
	return raw, nil
}
