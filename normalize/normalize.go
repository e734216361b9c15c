// Package normalize maps heterogeneous product items onto models.ProductRecord.
package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-shop-probe/extract"
	"github.com/aluiziolira/go-shop-probe/models"
)

// Shipping labels.
const (
	FreeShipping = "Envío gratis"
	PaidShipping = "Envío pagado"
)

// Aliases lists, per record attribute, the item keys to try in order.
// Aliases may be dotted paths into nested objects.
type Aliases struct {
	ID                []string `json:"id,omitempty"`
	Name              []string `json:"name,omitempty"`
	Price             []string `json:"price,omitempty"`
	OriginalPrice     []string `json:"original_price,omitempty"`
	Image             []string `json:"image,omitempty"`
	URL               []string `json:"url,omitempty"`
	Brand             []string `json:"brand,omitempty"`
	Seller            []string `json:"seller,omitempty"`
	FreeShipping      []string `json:"free_shipping,omitempty"`
	Condition         []string `json:"condition,omitempty"`
	Currency          []string `json:"currency,omitempty"`
	SoldQuantity      []string `json:"sold_quantity,omitempty"`
	AvailableQuantity []string `json:"available_quantity,omitempty"`
}

// DefaultAliases covers the field names seen on department-store and
// marketplace search payloads as well as schema.org Product objects.
func DefaultAliases() Aliases {
	return Aliases{
		ID:                []string{"id", "productId", "sku"},
		Name:              []string{"name", "title", "productName", "displayName", "product_name"},
		Price:             []string{"price", "salePrice", "listPrice", "pricing", "currentPrice", "price_info", "offers.price", "offers.0.price"},
		OriginalPrice:     []string{"original_price", "originalPrice"},
		Image:             []string{"image", "imageUrl", "thumbnail", "mainImage", "primaryImage"},
		URL:               []string{"url", "productUrl", "permalink"},
		Brand:             []string{"brand.name", "brand", "brandName"},
		Seller:            []string{"seller.nickname", "sellerName"},
		FreeShipping:      []string{"shipping.free_shipping", "freeShipping"},
		Condition:         []string{"condition"},
		Currency:          []string{"currency_id", "currency", "offers.priceCurrency"},
		SoldQuantity:      []string{"sold_quantity"},
		AvailableQuantity: []string{"available_quantity"},
	}
}

// Normalizer builds records from decoded JSON items.
type Normalizer struct {
	Aliases Aliases
}

// New returns a normalizer with the given aliases, falling back to the
// defaults for any attribute left empty.
func New(aliases Aliases) *Normalizer {
	def := DefaultAliases()
	fill := func(dst *[]string, src []string) {
		if len(*dst) == 0 {
			*dst = src
		}
	}
	fill(&aliases.ID, def.ID)
	fill(&aliases.Name, def.Name)
	fill(&aliases.Price, def.Price)
	fill(&aliases.OriginalPrice, def.OriginalPrice)
	fill(&aliases.Image, def.Image)
	fill(&aliases.URL, def.URL)
	fill(&aliases.Brand, def.Brand)
	fill(&aliases.Seller, def.Seller)
	fill(&aliases.FreeShipping, def.FreeShipping)
	fill(&aliases.Condition, def.Condition)
	fill(&aliases.Currency, def.Currency)
	fill(&aliases.SoldQuantity, def.SoldQuantity)
	fill(&aliases.AvailableQuantity, def.AvailableQuantity)
	return &Normalizer{Aliases: aliases}
}

// Record normalizes one item. Non-object items yield nil. Attributes none of
// whose aliases are present stay empty; the price alone defaults to "N/A".
func (n *Normalizer) Record(item any) *models.ProductRecord {
	obj, ok := item.(map[string]any)
	if !ok {
		return nil
	}
	a := n.Aliases

	rec := &models.ProductRecord{
		ID:        text(first(obj, a.ID)),
		Name:      text(first(obj, a.Name)),
		Image:     text(first(obj, a.Image)),
		URL:       text(first(obj, a.URL)),
		Brand:     text(first(obj, a.Brand)),
		Seller:    text(first(obj, a.Seller)),
		Condition: text(first(obj, a.Condition)),
		Currency:  text(first(obj, a.Currency)),
	}

	price := first(obj, a.Price)
	rec.Price = FormatPrice(price)

	if original := first(obj, a.OriginalPrice); original != nil {
		rec.OriginalPrice = FormatPrice(original)
		rec.Discount = Discount(original, priceAmount(price))
	}

	if free, ok := first(obj, a.FreeShipping).(bool); ok {
		rec.Shipping = PaidShipping
		if free {
			rec.Shipping = FreeShipping
		}
	}

	rec.SoldQuantity = Integer(first(obj, a.SoldQuantity))
	rec.AvailableQuantity = Integer(first(obj, a.AvailableQuantity))
	return rec
}

// Records normalizes up to limit items (all when limit <= 0), skipping items
// that are not objects.
func (n *Normalizer) Records(items []any, limit int) []*models.ProductRecord {
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}
	out := make([]*models.ProductRecord, 0, limit)
	for _, item := range items[:limit] {
		if rec := n.Record(item); rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

// ValidateRecord rejects records with no populated attribute. A price of
// "N/A" alone does not make a record.
func ValidateRecord(r *models.ProductRecord) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	check := *r
	if check.Price == Missing {
		check.Price = ""
	}
	if check.IsEmpty() {
		return fmt.Errorf("record has no populated attribute")
	}
	return nil
}

func first(obj map[string]any, aliases []string) any {
	for _, alias := range aliases {
		if v, ok := extract.Lookup(obj, alias); ok {
			return v
		}
	}
	return nil
}

func priceAmount(v any) any {
	if m, ok := v.(map[string]any); ok {
		if amount, ok := m["amount"]; ok {
			return amount
		}
		return m["value"]
	}
	return v
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		for _, elem := range t {
			if s := text(elem); s != "" {
				return s
			}
		}
		return ""
	case map[string]any:
		for _, key := range []string{"url", "name", "value"} {
			if s := text(t[key]); s != "" {
				return s
			}
		}
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// Integer converts a numeric value to int, truncating decimals. Non-numeric
// values give 0.
func Integer(v any) int {
	f, ok := toFloat(v)
	if !ok {
		return 0
	}
	return int(f)
}
