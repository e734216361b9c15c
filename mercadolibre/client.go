// Package mercadolibre is a small client for the marketplace's official
// public REST API.
package mercadolibre

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aluiziolira/go-shop-probe/models"
	"github.com/aluiziolira/go-shop-probe/normalize"
	"github.com/aluiziolira/go-shop-probe/probe"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "https://api.mercadolibre.com"
	DefaultSiteID  = "MLC"

	// ParsedResults is how many items of a search page are normalized.
	ParsedResults = 10
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: http %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	SiteID    string
	UserAgent string
	Timeout   time.Duration
	Metrics   *probe.Metrics
}

// Client calls the API without authentication.
type Client struct {
	http       *resty.Client
	siteID     string
	normalizer *normalize.Normalizer
}

// New builds a client from opts, filling defaults for empty fields.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.SiteID == "" {
		opts.SiteID = DefaultSiteID
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "go-shop-probe/1.0"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseURL)
	client.SetTimeout(opts.Timeout)
	client.SetHeader("User-Agent", opts.UserAgent)
	client.SetHeader("Accept", "application/json")
	instrument(client, opts.Metrics)

	return &Client{
		http:       client,
		siteID:     opts.SiteID,
		normalizer: normalize.New(normalize.Aliases{}),
	}
}

func instrument(client *resty.Client, m *probe.Metrics) {
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		m.ObserveDuration(res.Time())
		slog.Debug("api response",
			slog.String("url", res.Request.URL),
			slog.Int("status", res.StatusCode()),
			slog.Duration("duration", res.Time()),
		)
		if res.IsError() {
			m.IncError("api_status")
		}
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		m.IncError("api_request")
		slog.Warn("api request failed", slog.String("url", req.URL), slog.Any("error", err))
	})
}

// Filter is one of the search filters offered alongside the results.
type Filter struct {
	ID     string
	Name   string
	Type   string
	Values []string
}

// SearchResponse is a parsed page of search results.
type SearchResponse struct {
	Total    int
	Products []*models.ProductRecord
	Filters  []Filter
}

type searchPayload struct {
	Paging struct {
		Total json.Number `json:"total"`
	} `json:"paging"`
	Results          []any `json:"results"`
	AvailableFilters []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Type   string `json:"type"`
		Values []struct {
			Name string `json:"name"`
		} `json:"values"`
	} `json:"available_filters"`
}

// Search runs a free-text search.
func (c *Client) Search(ctx context.Context, query string, limit, offset int) (*SearchResponse, error) {
	params := map[string]string{
		"q":      query,
		"limit":  strconv.Itoa(limit),
		"offset": strconv.Itoa(offset),
	}
	return c.search(ctx, "search", params)
}

// SearchByCategory lists a category ordered by relevance.
func (c *Client) SearchByCategory(ctx context.Context, categoryID string, limit int) (*SearchResponse, error) {
	params := map[string]string{
		"category": categoryID,
		"limit":    strconv.Itoa(limit),
		"sort":     "relevance",
	}
	return c.search(ctx, "search by category", params)
}

func (c *Client) search(ctx context.Context, op string, params map[string]string) (*SearchResponse, error) {
	var payload searchPayload
	if err := c.get(ctx, op, "/sites/{site}/search", nil, params, &payload); err != nil {
		return nil, err
	}

	out := &SearchResponse{
		Total:    normalize.Integer(payload.Paging.Total),
		Products: c.normalizer.Records(payload.Results, ParsedResults),
	}
	for _, f := range payload.AvailableFilters {
		filter := Filter{ID: f.ID, Name: f.Name, Type: f.Type}
		for i, v := range f.Values {
			if i == 5 {
				break
			}
			filter.Values = append(filter.Values, v.Name)
		}
		out.Filters = append(out.Filters, filter)
	}
	for _, p := range out.Products {
		p.Source = "api"
	}
	return out, nil
}

// Category is a top-level site category.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Categories lists the site's top-level categories.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if err := c.get(ctx, "categories", "/sites/{site}/categories", nil, nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// TrendEntry is one highlighted item or product in a category.
type TrendEntry struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
	Type     string `json:"type"`
}

// Trends are the highlights of a category.
type Trends struct {
	CategoryID string
	Content    []TrendEntry `json:"content"`
}

// CategoryTrends returns the highlighted listings of a category.
func (c *Client) CategoryTrends(ctx context.Context, categoryID string) (*Trends, error) {
	out := &Trends{}
	path := "/highlights/{site}/category/{category}"
	if err := c.get(ctx, "category trends", path, map[string]string{"category": categoryID}, nil, out); err != nil {
		return nil, err
	}
	out.CategoryID = categoryID
	return out, nil
}

// get requests path with {site} and the given path params escaped into it.
func (c *Client) get(ctx context.Context, op, path string, pathParams, params map[string]string, out any) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetPathParam("site", c.siteID).
		SetPathParams(pathParams).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.StatusCode() != http.StatusOK {
		body := res.String()
		if len(body) > 200 {
			body = body[:200]
		}
		return &APIError{Op: op, StatusCode: res.StatusCode(), Body: body}
	}

	dec := json.NewDecoder(bytes.NewReader(res.Body()))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}
