package mercadolibre

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/aluiziolira/go-shop-probe/models"
)

// HolidayQueries maps a Chilean holiday to the searches that suit it.
var HolidayQueries = map[string][]string{
	"navidad":         {"regalos navidad", "decoracion navidad", "arbol navidad"},
	"año_nuevo":       {"champagne", "cotillon año nuevo", "fuegos artificiales"},
	"fiestas_patrias": {"bandera chile", "parrilla carbon", "anticucho"},
	"asado":           {"parrilla", "carbon", "carne vacuno", "cerveza"},
	"verano":          {"piscina", "bloqueador solar", "cooler"},
	"dia_del_niño":    {"juguetes", "bicicleta niños", "videojuegos"},
}

// FallbackQueries is used for holidays not in HolidayQueries.
var FallbackQueries = []string{"regalo"}

const (
	holidaySearchLimit = 5
	holidayTopN        = 3
)

// Holidays lists the known holiday names in sorted order.
func Holidays() []string {
	names := make([]string, 0, len(HolidayQueries))
	for name := range HolidayQueries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Recommendations groups the top products per query for one holiday.
// Queries keeps the order the searches ran in; queries that failed or found
// nothing are absent from Products.
type Recommendations struct {
	Holiday   string
	Timestamp time.Time
	Queries   []string
	Products  map[string][]*models.ProductRecord
}

// HolidayRecommendations searches each query of the holiday and keeps the top
// three products of each. Failed searches are logged and skipped.
func (c *Client) HolidayRecommendations(ctx context.Context, holiday string) (*Recommendations, error) {
	queries, ok := HolidayQueries[holiday]
	if !ok {
		queries = FallbackQueries
	}

	out := &Recommendations{
		Holiday:   holiday,
		Timestamp: time.Now(),
		Products:  make(map[string][]*models.ProductRecord),
	}
	for _, query := range queries {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := c.Search(ctx, query, holidaySearchLimit, 0)
		if err != nil {
			slog.Warn("holiday search failed", slog.String("holiday", holiday), slog.String("query", query), slog.Any("error", err))
			continue
		}
		if len(res.Products) == 0 {
			continue
		}
		top := res.Products
		if len(top) > holidayTopN {
			top = top[:holidayTopN]
		}
		out.Queries = append(out.Queries, query)
		out.Products[query] = top
	}
	return out, nil
}
