package targets

import "github.com/aluiziolira/go-shop-probe/normalize"

const (
	desktopUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
	browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	mobileUA  = "Falabella/1.0 (iPhone; iOS 15.0)"

	falabellaBase = "https://www.falabella.com"
	falabellaAPI  = "/rest/model/falabella/catalog/ProductCatalogActor/search"
	marketBase    = "https://www.mercadolibre.cl"
	marketAPIBase = "https://api.mercadolibre.com"
)

// Builtin returns the targets known without a configuration file.
func Builtin() []Target {
	return []Target{
		falabellaAPITarget(),
		falabellaWebTarget(),
		mercadoLibrePublicTarget(),
	}
}

func defaultTotals() []string {
	return []string{"paging.total", "total", "totalResults", "pagination.count"}
}

func falabellaAPITarget() Target {
	tmpl := func(name string, params map[string]string) CandidateTemplate {
		return CandidateTemplate{Name: name, URL: falabellaAPI, Params: params, Accept: "json"}
	}
	return Target{
		Name:        "falabella-api",
		Description: "department store catalog search endpoint",
		BaseURL:     falabellaBase,
		Headers: map[string]string{
			"User-Agent":      desktopUA,
			"Accept":          "application/json, text/plain, */*",
			"Accept-Language": "es-CL,es;q=0.9",
			"Referer":         falabellaBase + "/falabella-cl",
			"Origin":          falabellaBase,
		},
		Candidates: []CandidateTemplate{
			tmpl("Ntt/page/size", map[string]string{"Ntt": "{query}", "page": "{page}", "size": "{limit}"}),
			tmpl("searchTerm/pageNumber/resultsPerPage", map[string]string{"searchTerm": "{query}", "pageNumber": "{page}", "resultsPerPage": "{limit}"}),
			tmpl("q/currentPage/pageSize", map[string]string{"q": "{query}", "currentPage": "{page}", "pageSize": "{limit}"}),
			tmpl("keyword/page/limit", map[string]string{"keyword": "{query}", "page": "{page}", "limit": "{limit}"}),
		},
		Paths:    []string{"products", "items", "results", "data", "searchResults", "productList", "content"},
		Wrappers: []string{"response", "result"},
		Totals:   defaultTotals(),
		Discovery: []Sweep{
			{
				Name:    "mobile",
				Paths:   []string{"/mobile-apps/api/v1/search", "/api/v1/products/search", "/api/search/products", "/fbch-api/search", "/s/api/v1/search-api/search"},
				Params:  map[string]string{"q": "test"},
				Headers: map[string]string{"User-Agent": mobileUA},
				Timeout: "5s",
			},
		},
		Queries: []string{"parrilla carbon", "vino tinto", "television samsung"},
	}
}

func falabellaWebTarget() Target {
	return Target{
		Name:        "falabella-web",
		Description: "department store search page",
		BaseURL:     falabellaBase,
		Headers: map[string]string{
			"User-Agent":                browserUA,
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language":           "es-CL,es;q=0.9,en;q=0.8",
			"Accept-Encoding":           "gzip, deflate, br",
			"Upgrade-Insecure-Requests": "1",
			"Cache-Control":             "max-age=0",
		},
		Candidates: []CandidateTemplate{
			{Name: "search page", URL: "/falabella-cl/search?Ntt={query}", Accept: "html"},
		},
		Selectors: []string{
			`div[data-testid="product-pod"]`,
			`div[class*="search-results-item"]`,
			`div[class*="product-item"]`,
			`article[class*="product"]`,
			`div[class*="pod-item"]`,
			`div[class*="ProductCard"]`,
		},
		Fields: normalize.DefaultHTMLFields(),
		Discovery: []Sweep{
			{
				Name:    "api",
				Paths:   []string{"/api/products/search", "/api/v1/search", "/api/catalog/search", falabellaAPI, "/s/api/v1/search"},
				Timeout: "5s",
			},
		},
		Queries: []string{"parrilla", "regalo navidad", "decoracion fiestas patrias"},
	}
}

func mercadoLibrePublicTarget() Target {
	return Target{
		Name:        "mercadolibre-public",
		Description: "marketplace public search pages and API",
		BaseURL:     marketBase,
		Headers: map[string]string{
			"User-Agent":      desktopUA,
			"Accept":          "application/json, text/plain, */*",
			"Accept-Language": "es-419,es;q=0.9",
			"Referer":         marketBase + "/",
			"Origin":          marketBase,
		},
		Candidates: []CandidateTemplate{
			{Name: "listing page", URL: "https://listado.mercadolibre.cl/{query}"},
			{Name: "web search", URL: marketBase + "/jm/search?as_word={query}"},
			{Name: "public api", URL: marketAPIBase + "/sites/MLC/search?q={query}&limit=10"},
		},
		Paths:   []string{"search_results.results", "results", "items", "products", "searchResults.items", "catalog.products"},
		Totals:  defaultTotals(),
		Markers: []string{"window.__PRELOADED_STATE__ = ", "window.initialState = ", "__INITIAL_STATE__ = "},
		Fields:  normalize.DefaultHTMLFields(),
		Selectors: []string{
			`li.ui-search-layout__item`,
			`div.ui-search-result__wrapper`,
		},
		Discovery: []Sweep{
			{
				Name:    "direct api",
				BaseURL: marketAPIBase,
				Paths:   []string{"/sites/MLC", "/sites/MLC/categories", "/currencies/CLP", "/sites/MLC/listing_types"},
				Timeout: "5s",
			},
		},
		Queries: []string{"parrilla", "vino", "televisor"},
	}
}
