package spatial

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Attributes is the loosely typed attribute bag a source returns. Callers
// resolve it into typed records through the accessors below.
type Attributes map[string]any

// Float returns the numeric value of key. Missing keys, nulls, blanks and
// values that do not parse as finite numbers report ok=false.
func (a Attributes) Float(key string) (float64, bool) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, false
	}

	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Count returns key as a non-negative integer, 0 when missing or negative.
func (a Attributes) Count(key string) int64 {
	f, ok := a.Float(key)
	if !ok || f <= 0 {
		return 0
	}
	return int64(math.Round(f))
}

// OptionalFloat returns a pointer to the value of key, or nil when absent.
func (a Attributes) OptionalFloat(key string) *float64 {
	f, ok := a.Float(key)
	if !ok {
		return nil
	}
	return &f
}

// String returns key formatted as a string, "" when missing.
func (a Attributes) String(key string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		if s == math.Trunc(s) && math.Abs(s) < 1e15 {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Select returns a copy holding only the given keys. An empty list copies all.
func (a Attributes) Select(keys []string) Attributes {
	out := make(Attributes, len(keys))
	if len(keys) == 0 {
		for k, v := range a {
			out[k] = v
		}
		return out
	}
	for _, k := range keys {
		if v, ok := a[k]; ok {
			out[k] = v
		}
	}
	return out
}
