package pricing

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount coerces a raw monetary input to a whole, non-negative amount.
// Staff type into these fields live, so partial or garbage input ("", "12a",
// "-") is 0 rather than an error.  Grouping commas, spaces and currency
// markers are ignored; fractions are rounded half away from zero.
func ParseAmount(v any) int64 {
	var d decimal.Decimal
	switch t := v.(type) {
	case nil:
		return 0
	case int:
		d = decimal.NewFromInt(int64(t))
	case int32:
		d = decimal.NewFromInt(int64(t))
	case int64:
		d = decimal.NewFromInt(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0
		}
		d = decimal.NewFromFloat(t)
	case float32:
		if math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) {
			return 0
		}
		d = decimal.NewFromFloat32(t)
	case json.Number:
		return ParseAmount(t.String())
	case string:
		s := strings.TrimSpace(t)
		for _, prefix := range currencyPrefixes {
			s = strings.TrimPrefix(s, prefix)
		}
		cleaned := strings.Map(func(r rune) rune {
			if r == ',' || r == ' ' {
				return -1
			}
			return r
		}, s)
		if cleaned == "" {
			return 0
		}
		parsed, err := decimal.NewFromString(cleaned)
		if err != nil {
			return 0
		}
		d = parsed
	default:
		return 0
	}
	d = d.Round(0)
	// Out-of-range amounts are garbage input, not a saturated price.
	if d.Sign() <= 0 || d.GreaterThan(maxAmount) {
		return 0
	}
	return d.IntPart()
}

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// ParseCount is ParseAmount for head counts.
func ParseCount(v any) int {
	return int(ParseAmount(v))
}

var currencyPrefixes = []string{"INR", "Rs.", "Rs", "₹", "$"}

func floor0(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
