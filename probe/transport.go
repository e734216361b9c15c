package probe

import (
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// decodingTransport undoes Content-Encoding that the stdlib transport leaves
// alone once a request sets Accept-Encoding itself.
type decodingTransport struct {
	next http.RoundTripper
}

func newDecodingTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = defaultTransport()
	}
	return &decodingTransport{next: next}
}

func defaultTransport() http.RoundTripper {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

func (t *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.next.RoundTrip(req)
	if err != nil || res == nil || res.Body == nil {
		return res, err
	}

	encoding := strings.ToLower(strings.TrimSpace(res.Header.Get("Content-Encoding")))
	var body io.ReadCloser
	switch encoding {
	case "br":
		body = readCloser{Reader: brotli.NewReader(res.Body), closers: []io.Closer{res.Body}}
	case "deflate":
		fr := flate.NewReader(res.Body)
		body = readCloser{Reader: fr, closers: []io.Closer{fr, res.Body}}
	case "gzip":
		gz, err := gzip.NewReader(res.Body)
		if err != nil {
			res.Body.Close()
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		body = readCloser{Reader: gz, closers: []io.Closer{gz, res.Body}}
	default:
		return res, nil
	}

	res.Body = body
	res.Header.Del("Content-Encoding")
	res.Header.Del("Content-Length")
	res.ContentLength = -1
	res.Uncompressed = true
	return res, nil
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (rc readCloser) Close() error {
	var first error
	for _, c := range rc.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
