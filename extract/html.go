package extract

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/titanous/json5"
)

// ErrNoState is returned when none of the markers occur in the page.
var ErrNoState = errors.New("no embedded state")

// FindSelection returns the first selector with at least one match.
func FindSelection(doc *goquery.Document, selectors []string) (*goquery.Selection, string) {
	if doc == nil {
		return nil, ""
	}
	for _, selector := range selectors {
		sel := doc.Find(selector)
		if sel.Length() > 0 {
			return sel, selector
		}
	}
	return nil, ""
}

// EmbeddedState finds the first marker (for example
// "window.__PRELOADED_STATE__ = ") and decodes the object literal after it.
// Strict JSON is tried first; JavaScript literals with unquoted keys or
// trailing commas fall back to JSON5.
func EmbeddedState(html string, markers []string) (any, string, error) {
	for _, marker := range markers {
		idx := strings.Index(html, marker)
		if idx < 0 {
			continue
		}
		rest := html[idx+len(marker):]
		if end := strings.Index(rest, "</script>"); end >= 0 {
			rest = rest[:end]
		}
		start := strings.IndexAny(rest, "{[")
		if start < 0 {
			continue
		}
		rest = rest[start:]

		if value, err := DecodeJSON([]byte(rest)); err == nil {
			return value, marker, nil
		}

		literal := balanced(rest)
		var value any
		if err := json5.Unmarshal([]byte(literal), &value); err != nil {
			return nil, marker, err
		}
		return value, marker, nil
	}
	return nil, "", ErrNoState
}

// balanced cuts s after the bracket that closes its first character,
// skipping over quoted strings.
func balanced(s string) string {
	depth := 0
	var quote byte
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return strings.TrimRight(strings.TrimSpace(s), ";")
}

// JSONLDProducts returns schema.org Product objects found in
// application/ld+json scripts, including those nested in @graph or ItemList.
func JSONLDProducts(doc *goquery.Document) []map[string]any {
	if doc == nil {
		return nil
	}
	var products []map[string]any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		value, err := DecodeJSON([]byte(strings.TrimSpace(s.Text())))
		if err != nil {
			return
		}
		products = collectProducts(value, products)
	})
	return products
}

func collectProducts(value any, out []map[string]any) []map[string]any {
	switch node := value.(type) {
	case []any:
		for _, v := range node {
			out = collectProducts(v, out)
		}
	case map[string]any:
		if hasType(node["@type"], "Product") {
			return append(out, node)
		}
		if graph, ok := node["@graph"]; ok {
			out = collectProducts(graph, out)
		}
		if hasType(node["@type"], "ItemList") {
			if elems, ok := node["itemListElement"].([]any); ok {
				for _, elem := range elems {
					if m, ok := elem.(map[string]any); ok {
						if item, ok := m["item"]; ok {
							out = collectProducts(item, out)
							continue
						}
					}
					out = collectProducts(elem, out)
				}
			}
		}
	}
	return out
}

func hasType(value any, want string) bool {
	switch t := value.(type) {
	case string:
		return t == want
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

// NextBuildID reports the Next.js build ID when the page ships a
// __NEXT_DATA__ script, which means products are rendered client-side.
func NextBuildID(doc *goquery.Document) (string, bool) {
	if doc == nil {
		return "", false
	}
	script := doc.Find("script#__NEXT_DATA__").First()
	if script.Length() == 0 {
		return "", false
	}
	value, err := DecodeJSON([]byte(script.Text()))
	if err != nil {
		return "", true
	}
	id, _ := Lookup(value, "buildId")
	s, _ := id.(string)
	return s, true
}
