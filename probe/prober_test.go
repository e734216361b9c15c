package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/aluiziolira/go-shop-probe/models"
	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestProber(t *testing.T, transport http.RoundTripper) *Prober {
	t.Helper()
	p := New(Options{UserAgent: "probe-test", Metrics: NewMetrics()})
	p.WithTransport(transport)
	return p
}

func jsonResponder(status int, body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(status, body)
	resp.Header.Set("Content-Type", "application/json")
	return httpmock.ResponderFromResponse(resp)
}

func htmlResponder(status int, body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(status, body)
	resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	return httpmock.ResponderFromResponse(resp)
}

func TestProbeStopsAtFirstSuccess(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/a", jsonResponder(http.StatusNotFound, `{}`))
	transport.RegisterResponder("GET", "http://shop.test/b", jsonResponder(http.StatusOK, `{"results":[{"id":"1"}]}`))
	transport.RegisterResponder("GET", "http://shop.test/c", jsonResponder(http.StatusOK, `{"results":[]}`))

	p := newTestProber(t, transport)
	out := p.Probe(context.Background(), []Candidate{
		{Name: "a", URL: "http://shop.test/a"},
		{Name: "b", URL: "http://shop.test/b"},
		{Name: "c", URL: "http://shop.test/c"},
	})

	if !out.Found {
		t.Fatalf("expected a response, attempts=%+v", out.Attempts)
	}
	if got := len(out.Attempts); got != 2 {
		t.Fatalf("attempts=%d, want 2", got)
	}
	if out.Attempts[0].Category != "not_found" {
		t.Fatalf("first attempt category=%q, want not_found", out.Attempts[0].Category)
	}
	if out.Response.URL != "http://shop.test/b" {
		t.Fatalf("response url=%q", out.Response.URL)
	}
	if out.Response.Kind != models.KindJSON {
		t.Fatalf("kind=%v, want json", out.Response.Kind)
	}
	if calls := transport.GetCallCountInfo()["GET http://shop.test/c"]; calls != 0 {
		t.Fatalf("candidate c was requested %d times after success", calls)
	}
	if got := testutil.ToFloat64(p.Metrics.CandidatesTotal.WithLabelValues("ok")); got != 1 {
		t.Fatalf("ok candidates=%v, want 1", got)
	}
	if got := testutil.ToFloat64(p.Metrics.ErrorsTotal.WithLabelValues("not_found")); got != 1 {
		t.Fatalf("not_found errors=%v, want 1", got)
	}
}

func TestProbeAllNotFound(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterNoResponder(jsonResponder(http.StatusNotFound, `{"message":"not found"}`))

	p := newTestProber(t, transport)
	out := p.Probe(context.Background(), []Candidate{
		{URL: "http://shop.test/one"},
		{URL: "http://shop.test/two"},
	})

	if out.Found || out.Response != nil {
		t.Fatalf("expected no response, got %+v", out.Response)
	}
	if len(out.Attempts) != 2 {
		t.Fatalf("attempts=%d, want 2", len(out.Attempts))
	}
	for _, a := range out.Attempts {
		if a.StatusCode != http.StatusNotFound || a.Category != "not_found" {
			t.Fatalf("attempt %+v, want 404/not_found", a)
		}
	}
}

func TestProbeParamsAndHeaders(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/search",
		func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("q") != "laptop" || req.URL.Query().Get("page") != "1" {
				return httpmock.NewStringResponse(http.StatusBadRequest, ""), nil
			}
			if req.Header.Get("X-Probe") != "yes" {
				return httpmock.NewStringResponse(http.StatusForbidden, ""), nil
			}
			if req.Header.Get("User-Agent") != "probe-test" {
				return httpmock.NewStringResponse(http.StatusForbidden, ""), nil
			}
			return jsonResponder(http.StatusOK, `{"ok":true}`)(req)
		})

	p := newTestProber(t, transport)
	out := p.Probe(context.Background(), []Candidate{{
		URL:     "http://shop.test/search",
		Params:  map[string]string{"q": "laptop", "page": "1"},
		Headers: map[string]string{"X-Probe": "yes"},
	}})
	if !out.Found {
		t.Fatalf("expected a response, attempts=%+v", out.Attempts)
	}
}

func TestProbeKindChecks(t *testing.T) {
	tests := []struct {
		name     string
		accept   models.ContentKind
		resp     httpmock.Responder
		found    bool
		category string
	}{
		{
			name:     "html from json endpoint",
			accept:   models.KindJSON,
			resp:     htmlResponder(http.StatusOK, "<html><body>login</body></html>"),
			category: "unacceptable",
		},
		{
			name:     "html mislabelled as json",
			accept:   models.KindJSON,
			resp:     jsonResponder(http.StatusOK, "<!DOCTYPE html><html></html>"),
			category: "unacceptable",
		},
		{
			name:     "broken json",
			resp:     jsonResponder(http.StatusOK, `{"results": [`),
			category: "undecodable",
		},
		{
			name:     "plain text",
			resp:     httpmock.NewStringResponder(http.StatusOK, "hello"),
			category: "undecodable",
		},
		{
			name:   "html accepted",
			accept: models.KindHTML,
			resp:   htmlResponder(http.StatusOK, "<html><body></body></html>"),
			found:  true,
		},
		{
			name:  "sniffed json",
			resp:  httpmock.NewStringResponder(http.StatusOK, ` [1,2]`),
			found: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := httpmock.NewMockTransport()
			transport.RegisterResponder("GET", "http://shop.test/x", tt.resp)

			p := newTestProber(t, transport)
			out := p.Probe(context.Background(), []Candidate{{URL: "http://shop.test/x", Accept: tt.accept}})
			if out.Found != tt.found {
				t.Fatalf("found=%v, want %v (attempts=%+v)", out.Found, tt.found, out.Attempts)
			}
			if got := out.Attempts[0].Category; got != tt.category {
				t.Fatalf("category=%q, want %q", got, tt.category)
			}
		})
	}
}

func TestProbeInvalidCandidateURL(t *testing.T) {
	p := newTestProber(t, httpmock.NewMockTransport())
	out := p.Probe(context.Background(), []Candidate{{URL: "/relative/only"}})
	if out.Found {
		t.Fatalf("relative url must not be probed")
	}
	if out.Attempts[0].Err == "" {
		t.Fatalf("expected an attempt error")
	}
}

func TestProbeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestProber(t, httpmock.NewMockTransport())
	out := p.Probe(ctx, []Candidate{{URL: "http://shop.test/a"}})
	if len(out.Attempts) != 0 {
		t.Fatalf("attempts=%d, want 0 after cancel", len(out.Attempts))
	}
}

func TestDiscoverTriesEveryCandidate(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/api/v1/search", jsonResponder(http.StatusOK, `{}`))
	transport.RegisterResponder("GET", "http://shop.test/api/search", jsonResponder(http.StatusForbidden, `{}`))
	transport.RegisterNoResponder(httpmock.NewStringResponder(http.StatusNotFound, ""))

	p := newTestProber(t, transport)
	attempts := p.Discover(context.Background(), []Candidate{
		{URL: "http://shop.test/api/v1/search"},
		{URL: "http://shop.test/missing"},
		{URL: "http://shop.test/api/search"},
	})

	want := []int{http.StatusOK, http.StatusNotFound, http.StatusForbidden}
	if len(attempts) != len(want) {
		t.Fatalf("attempts=%d, want %d", len(attempts), len(want))
	}
	for i, code := range want {
		if attempts[i].StatusCode != code {
			t.Fatalf("attempt %d status=%d, want %d", i, attempts[i].StatusCode, code)
		}
	}
	if !attempts[0].OK() {
		t.Fatalf("first attempt should be ok: %+v", attempts[0])
	}
}

func TestDecodingTransportBrotli(t *testing.T) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	fmt.Fprint(w, `{"results":[{"id":"7"}]}`)
	if err := w.Close(); err != nil {
		t.Fatalf("brotli close: %v", err)
	}

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/br", func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewBytesResponse(http.StatusOK, buf.Bytes())
		resp.Header.Set("Content-Type", "application/json")
		resp.Header.Set("Content-Encoding", "br")
		return resp, nil
	})

	p := newTestProber(t, transport)
	out := p.Probe(context.Background(), []Candidate{{URL: "http://shop.test/br"}})
	if !out.Found {
		t.Fatalf("expected decoded brotli response, attempts=%+v", out.Attempts)
	}
	root, ok := out.Response.JSON.(map[string]any)
	if !ok {
		t.Fatalf("json root type %T", out.Response.JSON)
	}
	if _, ok := root["results"]; !ok {
		t.Fatalf("results key missing in %v", root)
	}
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		contentType string
		body        string
		want        models.ContentKind
	}{
		{contentType: "application/json; charset=utf-8", want: models.KindJSON},
		{contentType: "application/vnd.api+json", want: models.KindJSON},
		{contentType: "text/html", want: models.KindHTML},
		{body: `{"a":1}`, want: models.KindJSON},
		{body: "  [1]", want: models.KindJSON},
		{body: "<!doctype html><html>", want: models.KindHTML},
		{body: "<head></head><html>", want: models.KindHTML},
		{body: "plain", want: models.KindUnknown},
		{body: "", want: models.KindUnknown},
	}

	for _, tt := range tests {
		if got := DetectKind(tt.contentType, []byte(tt.body)); got != tt.want {
			t.Fatalf("DetectKind(%q, %q) = %v, want %v", tt.contentType, tt.body, got, tt.want)
		}
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: errors.New("Not Found"), statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server error", err: errors.New("Internal Server Error"), statusCode: http.StatusInternalServerError, expected: "status"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestErrorTypeLabelDecodeErrors(t *testing.T) {
	if got := ErrorTypeLabel(ErrUndecodable{ContentType: "text/plain"}); got != "undecodable" {
		t.Fatalf("label=%q, want undecodable", got)
	}
	wrapped := fmt.Errorf("candidate x: %w", ErrUnacceptable{Got: "html", Want: "json"})
	if got := ErrorTypeLabel(wrapped); got != "unacceptable" {
		t.Fatalf("label=%q, want unacceptable", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.IncCandidate("ok")
	m.IncError("timeout")
	m.AddRecords(3)
	m.IncStrategy("json")
	m.ObserveDuration(0)
}
