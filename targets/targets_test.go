package targets

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aluiziolira/go-shop-probe/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinTargetsAreValid(t *testing.T) {
	builtin := Builtin()
	require.Len(t, builtin, 3)
	for _, target := range builtin {
		assert.NoError(t, target.Validate(), target.Name)
		assert.NotEmpty(t, target.Queries, target.Name)
		assert.NotEmpty(t, target.Discovery, target.Name)
	}
	assert.Equal(t, []string{"falabella-api", "falabella-web", "mercadolibre-public"}, Names(builtin))
}

func TestCandidatesExpandParams(t *testing.T) {
	target := falabellaAPITarget()
	candidates, err := Candidates(target, models.SearchQuery{Text: "parrilla carbon", Page: 2, Limit: 20})
	require.NoError(t, err)
	require.Len(t, candidates, 4)

	first := candidates[0]
	assert.Equal(t, "Ntt/page/size", first.Name)
	assert.Equal(t, "https://www.falabella.com/rest/model/falabella/catalog/ProductCatalogActor/search", first.URL)
	assert.Equal(t, map[string]string{"Ntt": "parrilla carbon", "page": "2", "size": "20"}, first.Params)
	assert.Equal(t, models.KindJSON, first.Accept)
	assert.Equal(t, "application/json, text/plain, */*", first.Headers["Accept"])

	built, err := candidates[3].BuildURL()
	require.NoError(t, err)
	assert.Contains(t, built, "keyword=parrilla+carbon")
	assert.Contains(t, built, "limit=20")
}

func TestCandidatesEscapeURLPlaceholders(t *testing.T) {
	candidates, err := Candidates(mercadoLibrePublicTarget(), models.SearchQuery{Text: "vino tinto&co"})
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	assert.Equal(t, "https://listado.mercadolibre.cl/vino%20tinto%26co", candidates[0].URL)
	assert.Equal(t, "https://www.mercadolibre.cl/jm/search?as_word=vino%20tinto%26co", candidates[1].URL)
	assert.Equal(t, "https://api.mercadolibre.com/sites/MLC/search?q=vino%20tinto%26co&limit=10", candidates[2].URL)
	assert.Equal(t, models.KindUnknown, candidates[0].Accept)
}

func TestPlaceholders(t *testing.T) {
	target := Target{
		Name: "paged",
		Candidates: []CandidateTemplate{{
			URL:     "https://shop.test/c/{category}",
			Params:  map[string]string{"from": "{offset}", "n": "{limit}", "p": "{page}"},
			Timeout: "3s",
		}},
	}

	candidates, err := Candidates(target, models.SearchQuery{Category: "MLC1051", Page: 3, Limit: 10})
	require.NoError(t, err)
	c := candidates[0]
	assert.Equal(t, "paged#1", c.Name)
	assert.Equal(t, "https://shop.test/c/MLC1051", c.URL)
	assert.Equal(t, map[string]string{"from": "20", "n": "10", "p": "3"}, c.Params)
	assert.Equal(t, 3*time.Second, c.Timeout)

	candidates, err = Candidates(target, models.SearchQuery{Offset: 7})
	require.NoError(t, err)
	assert.Equal(t, "7", candidates[0].Params["from"])
	assert.Equal(t, "1", candidates[0].Params["p"])
}

func TestCandidateHeadersOverrideTarget(t *testing.T) {
	target := Target{
		Name:    "h",
		Headers: map[string]string{"User-Agent": "desktop", "Accept": "*/*"},
		Candidates: []CandidateTemplate{{
			URL:     "https://shop.test/",
			Headers: map[string]string{"User-Agent": "mobile"},
		}},
	}
	candidates, err := Candidates(target, models.SearchQuery{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"User-Agent": "mobile", "Accept": "*/*"}, candidates[0].Headers)
}

func TestDiscoveryCandidates(t *testing.T) {
	target := falabellaAPITarget()
	candidates, err := DiscoveryCandidates(target, target.Discovery[0])
	require.NoError(t, err)
	require.Len(t, candidates, 5)

	c := candidates[0]
	assert.Equal(t, "https://www.falabella.com/mobile-apps/api/v1/search", c.URL)
	assert.Equal(t, "Falabella/1.0 (iPhone; iOS 15.0)", c.Headers["User-Agent"])
	assert.Equal(t, "es-CL,es;q=0.9", c.Headers["Accept-Language"])
	assert.Equal(t, map[string]string{"q": "test"}, c.Params)
	assert.Equal(t, 5*time.Second, c.Timeout)

	market := mercadoLibrePublicTarget()
	candidates, err = DiscoveryCandidates(market, market.Discovery[0])
	require.NoError(t, err)
	assert.Equal(t, "https://api.mercadolibre.com/sites/MLC", candidates[0].URL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		target  Target
		wantErr bool
	}{
		{name: "no name", target: Target{Candidates: []CandidateTemplate{{URL: "https://a.test"}}}, wantErr: true},
		{name: "nothing to probe", target: Target{Name: "x"}, wantErr: true},
		{name: "relative without base", target: Target{Name: "x", Candidates: []CandidateTemplate{{URL: "/s"}}}, wantErr: true},
		{name: "bad accept", target: Target{Name: "x", Candidates: []CandidateTemplate{{URL: "https://a.test", Accept: "xml"}}}, wantErr: true},
		{name: "bad timeout", target: Target{Name: "x", Candidates: []CandidateTemplate{{URL: "https://a.test", Timeout: "soon"}}}, wantErr: true},
		{name: "bad sweep timeout", target: Target{Name: "x", Discovery: []Sweep{{Name: "s", Timeout: "-1s"}}}, wantErr: true},
		{name: "discovery only", target: Target{Name: "x", Discovery: []Sweep{{Name: "s", Paths: []string{"/a"}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	builtin := Builtin()

	all, err := Select(builtin, []string{All})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	all, err = Select(builtin, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	picked, err := Select(builtin, []string{"mercadolibre-public", "falabella-api"})
	require.NoError(t, err)
	require.Len(t, picked, 2)
	assert.Equal(t, "mercadolibre-public", picked[0].Name)

	_, err = Select(builtin, []string{"unknown"})
	assert.ErrorContains(t, err, "unknown target")
}

func TestMerge(t *testing.T) {
	base := []Target{{Name: "a", BaseURL: "https://a.test"}, {Name: "b"}}
	loaded := []Target{{Name: "a", BaseURL: "https://a2.test"}, {Name: "c"}}

	merged := Merge(base, loaded)
	require.Len(t, merged, 3)
	assert.Equal(t, "https://a2.test", merged[0].BaseURL)
	assert.Equal(t, []string{"a", "b", "c"}, Names(merged))
}

func TestLoadWithLocalOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.json5")

	main := `{
		// shared definitions
		targets: {
			shop: {
				base_url: "https://shop.test",
				candidates: [{url: "/api/search", params: {q: "{query}"}, accept: "json", timeout: "2s"}],
				paths: ["items"],
			},
			other: {
				candidates: [{url: "https://other.test/s?q={query}"}],
			},
		},
	}`
	local := `{
		targets: {
			shop: {
				base_url: "https://staging.shop.test",
				candidates: [{url: "/api/v2/search", accept: "json"}],
			},
			extra: {
				discovery: [{name: "sweep", base_url: "https://extra.test", paths: ["/a", "/b"]}],
			},
		},
	}`
	require.NoError(t, os.WriteFile(path, []byte(main), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "targets.local.json5"), []byte(local), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"extra", "other", "shop"}, Names(loaded))

	byName := map[string]Target{}
	for _, target := range loaded {
		byName[target.Name] = target
	}
	assert.Equal(t, "https://staging.shop.test", byName["shop"].BaseURL)
	assert.Equal(t, "/api/v2/search", byName["shop"].Candidates[0].URL)
	assert.Equal(t, []string{"items"}, byName["shop"].Paths)
	assert.Len(t, byName["extra"].Discovery[0].Paths, 2)

	candidates, err := Candidates(byName["other"], models.SearchQuery{Text: "tv"})
	require.NoError(t, err)
	assert.Equal(t, "https://other.test/s?q=tv", candidates[0].URL)
}

func TestLoadSingleFieldOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.json5")

	main := `{
		targets: {
			shop: {
				base_url: "https://shop.test",
				headers: {"Accept-Language": "es-CL"},
				candidates: [{url: "/api/search", params: {q: "{query}"}, accept: "json"}],
				paths: ["items"],
				wrappers: ["response"],
				fields: {name: ["h2.title"]},
			},
		},
	}`
	local := `{
		targets: {
			shop: {
				base_url: "https://staging.shop.test",
				headers: {"X-Debug": "1"},
			},
		},
	}`
	require.NoError(t, os.WriteFile(path, []byte(main), 0o644))
	require.NoError(t, os.WriteFile(LocalPath(path), []byte(local), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	shop := loaded[0]
	assert.Equal(t, "shop", shop.Name)
	assert.Equal(t, "https://staging.shop.test", shop.BaseURL)
	require.Len(t, shop.Candidates, 1)
	assert.Equal(t, "/api/search", shop.Candidates[0].URL)
	assert.Equal(t, []string{"items"}, shop.Paths)
	assert.Equal(t, []string{"response"}, shop.Wrappers)
	assert.Equal(t, []string{"h2.title"}, shop.Fields.Name)
	assert.Equal(t, map[string]string{"Accept-Language": "es-CL", "X-Debug": "1"}, shop.Headers)

	candidates, err := Candidates(shop, models.SearchQuery{Text: "tv"})
	require.NoError(t, err)
	assert.Equal(t, "https://staging.shop.test/api/search", candidates[0].URL)
}

func TestLoadMissingFiles(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json5"))
	assert.True(t, errors.Is(err, fs.ErrNotExist), "err=%v", err)
}

func TestLoadRejectsInvalidTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{targets: {bad: {}}}`), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "no candidates")
}

func TestLocalPath(t *testing.T) {
	assert.Equal(t, filepath.Join("conf", "targets.local.json5"), LocalPath(filepath.Join("conf", "targets.json5")))
	assert.Equal(t, "targets.local", LocalPath("targets"))
}
