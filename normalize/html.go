package normalize

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-shop-probe/models"
)

// HTMLFields lists, per attribute, the selectors tried inside one product
// container. The first selector with a match wins.
type HTMLFields struct {
	Name  []string `json:"name,omitempty"`
	Price []string `json:"price,omitempty"`
	Image []string `json:"image,omitempty"`
	Link  []string `json:"link,omitempty"`
}

// DefaultHTMLFields matches common product card markup.
func DefaultHTMLFields() HTMLFields {
	return HTMLFields{
		Name:  []string{"h2", "h3", `a[class*="name"]`, `span[class*="title"]`, `[class*="product-name"]`},
		Price: []string{`span[class*="price"]`, `div[class*="price"]`, `[data-testid*="price"]`},
		Image: []string{"img"},
		Link:  []string{"a"},
	}
}

// WithDefaults fills attributes that have no selectors from DefaultHTMLFields.
func (f HTMLFields) WithDefaults() HTMLFields {
	def := DefaultHTMLFields()
	if len(f.Name) == 0 {
		f.Name = def.Name
	}
	if len(f.Price) == 0 {
		f.Price = def.Price
	}
	if len(f.Image) == 0 {
		f.Image = def.Image
	}
	if len(f.Link) == 0 {
		f.Link = def.Link
	}
	return f
}

// FromSelection builds a record from one product container. Relative links
// are resolved against base. A container with no recognizable field yields nil.
func FromSelection(sel *goquery.Selection, fields HTMLFields, base *url.URL) *models.ProductRecord {
	if sel == nil {
		return nil
	}
	rec := &models.ProductRecord{}
	found := false

	if s := pick(sel, fields.Name); s != nil {
		rec.Name = cleanText(s.Text())
		found = true
	}
	if s := pick(sel, fields.Price); s != nil {
		rec.Price = FormatPrice(cleanText(s.Text()))
		found = true
	}
	if s := pick(sel, fields.Image); s != nil {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" {
			src = strings.TrimSpace(s.AttrOr("data-src", ""))
		}
		rec.Image = src
		found = true
	}
	if s := pick(sel, fields.Link); s != nil {
		rec.URL = Absolute(base, s.AttrOr("href", ""))
		found = true
	}

	if !found {
		return nil
	}
	if rec.Price == "" {
		rec.Price = Missing
	}
	return rec
}

// FromSelections applies FromSelection to the first limit containers
// (all when limit <= 0).
func FromSelections(sel *goquery.Selection, fields HTMLFields, base *url.URL, limit int) []*models.ProductRecord {
	if sel == nil {
		return nil
	}
	var out []*models.ProductRecord
	sel.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if limit > 0 && i >= limit {
			return false
		}
		if rec := FromSelection(s, fields, base); rec != nil {
			out = append(out, rec)
		}
		return true
	})
	return out
}

// Absolute resolves href against base. Empty hrefs stay empty.
func Absolute(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func pick(sel *goquery.Selection, selectors []string) *goquery.Selection {
	for _, selector := range selectors {
		if found := sel.Find(selector).First(); found.Length() > 0 {
			return found
		}
	}
	return nil
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
