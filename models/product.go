// Package models defines data structures shared by the probes.
package models

import (
	"fmt"
	"strings"
	"time"
)

// SearchQuery is a free-text product search with optional paging and category.
type SearchQuery struct {
	Text     string
	Page     int
	Offset   int
	Limit    int
	Category string
}

// ContentKind is the decoded shape of a probe response.
type ContentKind int

const (
	KindUnknown ContentKind = iota
	KindJSON
	KindHTML
)

func (k ContentKind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindHTML:
		return "html"
	default:
		return "unknown"
	}
}

// ParseContentKind maps "json", "html", or "" (any) to a ContentKind.
func ParseContentKind(s string) (ContentKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any", "unknown":
		return KindUnknown, nil
	case "json":
		return KindJSON, nil
	case "html":
		return KindHTML, nil
	default:
		return KindUnknown, fmt.Errorf("unknown content kind %q", s)
	}
}

// RawResponse is the first acceptable response a prober found.
// JSON holds the decoded value when Kind is KindJSON.
type RawResponse struct {
	URL         string
	StatusCode  int
	ContentType string
	Kind        ContentKind
	Body        []byte
	JSON        any
}

// HTML returns the body as a string.
func (r *RawResponse) HTML() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

// ProductRecord is a normalized product. Every field is best effort and
// an empty value means the source did not provide it.
type ProductRecord struct {
	ID                string `csv:"id" json:"id,omitempty"`
	Name              string `csv:"name" json:"name,omitempty"`
	Price             string `csv:"price" json:"price,omitempty"`
	Image             string `csv:"image" json:"image,omitempty"`
	URL               string `csv:"url" json:"url,omitempty"`
	Brand             string `csv:"brand" json:"brand,omitempty"`
	Seller            string `csv:"seller" json:"seller,omitempty"`
	Shipping          string `csv:"shipping" json:"shipping,omitempty"`
	Discount          string `csv:"discount" json:"discount,omitempty"`
	OriginalPrice     string `csv:"original_price" json:"original_price,omitempty"`
	Condition         string `csv:"condition" json:"condition,omitempty"`
	Currency          string `csv:"currency" json:"currency,omitempty"`
	SoldQuantity      int    `csv:"sold_quantity" json:"sold_quantity,omitempty"`
	AvailableQuantity int    `csv:"available_quantity" json:"available_quantity,omitempty"`
	Source            string `csv:"source" json:"source,omitempty"`
	Strategy          string `csv:"strategy" json:"strategy,omitempty"`
}

// IsEmpty reports whether no product attribute is populated. Source and
// Strategy describe where a record came from and do not count.
func (p *ProductRecord) IsEmpty() bool {
	if p == nil {
		return true
	}
	return p.ID == "" && p.Name == "" && p.Price == "" && p.Image == "" && p.URL == "" &&
		p.Brand == "" && p.Seller == "" && p.Shipping == "" && p.Discount == "" &&
		p.OriginalPrice == "" && p.Condition == "" && p.Currency == "" &&
		p.SoldQuantity == 0 && p.AvailableQuantity == 0
}

// Key returns the identity used for de-duplication. Records without an id
// or url have no identity and are never treated as duplicates.
func (p *ProductRecord) Key() string {
	if p.ID != "" {
		return "id:" + p.ID
	}
	if p.URL != "" {
		return "url:" + p.URL
	}
	return ""
}

// Attempt records one candidate tried by a prober.
type Attempt struct {
	Candidate   string        `json:"candidate"`
	URL         string        `json:"url"`
	StatusCode  int           `json:"status_code,omitempty"`
	ContentType string        `json:"content_type,omitempty"`
	Category    string        `json:"category,omitempty"`
	Err         string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// OK reports whether the attempt produced an accepted response.
func (a Attempt) OK() bool {
	return a.Err == "" && a.StatusCode == 200
}

// SearchResult holds the overall result of one search probe.
type SearchResult struct {
	Target      string
	Query       SearchQuery
	Records     []*ProductRecord
	Total       int
	Source      string // json, html, embedded_state, json_ld
	Strategy    string // candidate that answered
	Path        string // list path or selector that matched
	Keys        []string
	NextBuildID string
	Attempts    []Attempt
	StartTime   time.Time
	EndTime     time.Time
}

// Found reports whether any product was extracted.
func (r *SearchResult) Found() bool {
	return r != nil && len(r.Records) > 0
}
