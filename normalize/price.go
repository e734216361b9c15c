package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Missing is shown for a price that could not be found.
const Missing = "N/A"

// Currency is appended to every formatted amount.
const Currency = "CLP"

// FormatPrice renders a raw price value as "$12,000 CLP". Maps are read
// through their "amount" key, then "value". Strings that are not numbers are
// returned trimmed; anything else missing becomes "N/A".
func FormatPrice(v any) string {
	if amount, ok := toFloat(v); ok {
		return FormatAmount(amount)
	}

	switch t := v.(type) {
	case map[string]any:
		for _, key := range []string{"amount", "value"} {
			if inner, ok := t[key]; ok && inner != nil {
				return FormatPrice(inner)
			}
		}
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return s
		}
	}
	return Missing
}

// FormatAmount groups thousands and rounds half to even, with no decimals.
// NaN, infinities and amounts beyond int64 become "N/A".
func FormatAmount(amount float64) string {
	if !inRange(amount) {
		return Missing
	}
	return fmt.Sprintf("$%s %s", humanize.Comma(int64(math.RoundToEven(amount))), Currency)
}

// Discount returns "NN% OFF" when original is above price.
func Discount(original, price any) string {
	o, ok := toFloat(original)
	if !ok || o <= 0 {
		return ""
	}
	p, ok := toFloat(price)
	if !ok || p <= 0 || p >= o {
		return ""
	}
	pct := (o - p) / o * 100
	return fmt.Sprintf("%d%% OFF", int64(math.RoundToEven(pct)))
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if !inRange(f) {
		return 0, false
	}
	return f, true
}

func inRange(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && math.Abs(f) < math.MaxInt64
}
