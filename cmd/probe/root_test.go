package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTargets = `{
	targets: {
		shop: {
			base_url: "https://shop.test",
			candidates: [
				{name: "v1", url: "/api/v1/search", params: {q: "{query}"}, accept: "json"},
				{name: "v2", url: "/api/v2/search", params: {q: "{query}"}, accept: "json"},
			],
			paths: ["results"],
			discovery: [{name: "api", paths: ["/api/private", "/api/missing"]}],
			queries: ["widget"],
		},
	},
}`

func newTestMock() *httpmock.MockTransport {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder("GET", "https://shop.test/api/v1/search",
		httpmock.NewStringResponder(http.StatusNotFound, ""))
	mock.RegisterResponder("GET", "https://shop.test/api/v2/search",
		func(req *http.Request) (*http.Response, error) {
			resp := httpmock.NewStringResponse(http.StatusOK, `{"results": [{"id": "1", "title": "Widget", "price": 1000}]}`)
			resp.Header.Set("Content-Type", "application/json")
			return resp, nil
		})
	mock.RegisterResponder("GET", "https://shop.test/api/private",
		httpmock.NewStringResponder(http.StatusForbidden, "denied"))
	mock.RegisterResponder("GET", "https://shop.test/api/missing",
		httpmock.NewStringResponder(http.StatusNotFound, ""))
	return mock
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.json5")
	require.NoError(t, os.WriteFile(path, []byte(testTargets), 0o644))

	a := newApp()
	a.transport = newTestMock()
	root := newRootCmd(a)

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append(args, "--targets-file", path, "--env-file", filepath.Join(dir, "missing.env")))

	err := root.ExecuteContext(context.Background())
	a.shutdown()
	return out.String(), err
}

func TestSearchCommand(t *testing.T) {
	out, err := execute(t, "search", "--target", "shop")
	require.NoError(t, err)

	assert.Contains(t, out, `shop: "widget"`)
	assert.Contains(t, out, "not_found")
	assert.Contains(t, out, "Widget")
	assert.Contains(t, out, "$1,000 CLP")
	assert.Contains(t, out, "strategy:  v2")
	assert.Contains(t, out, "Probe complete")
}

func TestSearchCommandJSONOutput(t *testing.T) {
	out, err := execute(t, "search", "gadget", "--target", "shop", "--format", "json")
	require.NoError(t, err)

	assert.Contains(t, out, `"name":"Widget"`)
	assert.Contains(t, out, `"price":"$1,000 CLP"`)
	assert.NotContains(t, out, "Probe complete")
}

func TestSearchCommandWritesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	_, err := execute(t, "search", "--target", "shop", "--format", "csv", "--output", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Widget")
}

func TestDiscoverCommand(t *testing.T) {
	out, err := execute(t, "discover", "--target", "shop")
	require.NoError(t, err)

	assert.Contains(t, out, "shop / api: 1 of 2 endpoints answered")
	assert.Contains(t, out, "/api/private")
	assert.NotContains(t, out, "/api/missing")
}

func TestTargetsCommand(t *testing.T) {
	out, err := execute(t, "targets")
	require.NoError(t, err)

	for _, name := range []string{"shop", "falabella-api", "falabella-web", "mercadolibre-public"} {
		assert.Contains(t, out, name)
	}
}

func TestInvalidConfiguration(t *testing.T) {
	_, err := execute(t, "search", "--format", "xml")
	assert.ErrorContains(t, err, "invalid configuration")

	_, err = execute(t, "search", "--target", "nope")
	assert.ErrorContains(t, err, `unknown target "nope"`)
}
