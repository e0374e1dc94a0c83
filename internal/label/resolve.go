package label

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Record is the flat data record a template is resolved against: placeholder
// key to string, number or date. Supplied by the product/catalog collaborator.
type Record map[string]any

// ResolvedField is a field with its placeholder substituted. Geometry and
// order are preserved from the template; the value is final display text.
// This output is language-agnostic and consumed by every generator alike.
type ResolvedField struct {
	Field
	Value string
}

// DefaultDatePattern formats date placeholders unless the resolver is
// configured otherwise.
const DefaultDatePattern = "02/01/2006"

// Resolver merges templates with data records.
type Resolver struct {
	// DatePattern is a Go reference-time layout applied to time values.
	DatePattern string
}

// Resolve substitutes every field's placeholder from the record. Missing keys
// resolve to an empty string, never an error: a label with a blank line beats
// a register that cannot print during a shift.
func (r Resolver) Resolve(t Template, rec Record) []ResolvedField {
	pattern := r.DatePattern
	if pattern == "" {
		pattern = DefaultDatePattern
	}

	out := make([]ResolvedField, 0, len(t.Fields))
	for _, f := range t.Fields {
		rf := ResolvedField{Field: f}
		if f.Bound() && f.Placeholder != "" {
			rf.Value = r.format(f, rec[f.Placeholder], pattern)
		}
		out = append(out, rf)
	}
	return out
}

// Resolve merges a template with a data record using default settings.
func Resolve(t Template, rec Record) []ResolvedField {
	return Resolver{}.Resolve(t, rec)
}

func (r Resolver) format(f Field, v any, datePattern string) string {
	if v == nil {
		return ""
	}

	if f.Type == FieldPrice {
		if cents, ok := toCents(v); ok {
			return FormatPrice(cents, f.Currency)
		}
		// Non-numeric price value passes through as-is.
	}

	switch val := v.(type) {
	case string:
		return val
	case time.Time:
		return val.Format(datePattern)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// FormatPrice renders integer cents with a currency symbol and fixed two
// decimals. The symbol may be empty for bare amounts.
func FormatPrice(cents int64, symbol string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%s%d.%02d", sign, symbol, cents/100, cents%100)
}

// toCents converts a numeric value to cents with half-up rounding.
func toCents(v any) (int64, bool) {
	switch val := v.(type) {
	case float64:
		return roundHalfUp(val), true
	case float32:
		return roundHalfUp(float64(val)), true
	case int:
		return int64(val) * 100, true
	case int64:
		return val * 100, true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, false
		}
		return roundHalfUp(f), true
	default:
		return 0, false
	}
}

func roundHalfUp(amount float64) int64 {
	if amount < 0 {
		return -int64(math.Floor(-amount*100 + 0.5))
	}
	return int64(math.Floor(amount*100 + 0.5))
}
