package lineitem

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// numericPrefix matches the leading number of a cell such as "12.5 kg" or "-3e2x".
var numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// Amounts outside these bounds are treated as unparsable. Rescaling a
// decimal with a huge exponent allocates a power of ten of that size.
const (
	maxExponent = 28
	maxDigits   = 38
)

var maxCoefficient = new(big.Int).Exp(big.NewInt(10), big.NewInt(maxDigits), nil)

// toDecimal coerces an arbitrary value into a non-negative decimal. It never
// fails: absent, unparsable, non-finite, out of range and negative inputs
// become zero. ok reports whether a usable number was recovered.
func toDecimal(v any) (decimal.Decimal, bool) {
	d, ok := parse(v)
	if !ok || !inRange(d) || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

func inRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	return exp >= -maxExponent && exp <= maxExponent && d.Coefficient().CmpAbs(maxCoefficient) < 0
}

func parse(v any) (d decimal.Decimal, ok bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return t, true
	case *decimal.Decimal:
		if t == nil {
			return decimal.Zero, false
		}
		return *t, true
	case float64:
		return fromFloat(t)
	case float32:
		return fromFloat(float64(t))
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int32:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case uint:
		return decimal.NewFromInt(int64(t)), true
	case uint32:
		return decimal.NewFromInt(int64(t)), true
	case uint64:
		if t > math.MaxInt64 {
			return decimal.Zero, false
		}
		return decimal.NewFromInt(int64(t)), true
	case json.Number:
		return fromString(t.String())
	case string:
		return fromString(t)
	case bool:
		// Spreadsheet booleans are not amounts.
		return decimal.Zero, false
	default:
		return fromString(fmt.Sprint(t))
	}
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

func fromString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return d, true
	}
	prefix := numericPrefix.FindString(s)
	if prefix == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(prefix)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// orZero returns the coerced value, zero when nothing usable was supplied.
func orZero(v any) decimal.Decimal {
	d, _ := toDecimal(v)
	return d
}

// orAbsent returns an invalid NullDecimal when the coerced value is zero or
// could not be recovered, so callers can tell "not provided" from an amount.
func orAbsent(v any) decimal.NullDecimal {
	d, ok := toDecimal(v)
	if !ok || d.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// toText renders a cell as trimmed text; numbers keep their shortest form.
func toText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		return decimal.NewFromFloat(t).String()
	case json.Number:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
