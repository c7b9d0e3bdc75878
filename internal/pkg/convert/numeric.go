// Package convert provides type conversion utilities.
package convert

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// placeholders that upstream data providers use for "no value".
var missingMarkers = map[string]struct{}{
	"":     {},
	"none": {},
	"null": {},
	"n/a":  {},
	"na":   {},
	"-":    {},
	"--":   {},
}

// IsMissing reports whether s is one of the providers' "no value" placeholders.
func IsMissing(s string) bool {
	_, ok := missingMarkers[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// OptionalFloat converts a provider value to *float64.
// Missing markers and unparseable input yield nil instead of an error.
func OptionalFloat(v any) *float64 {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return &t
	case float32:
		f := float64(t)
		return &f
	case int:
		f := float64(t)
		return &f
	case int64:
		f := float64(t)
		return &f
	case json.Number:
		return OptionalFloatString(t.String())
	case string:
		return OptionalFloatString(t)
	default:
		return nil
	}
}

// OptionalFloatString parses s leniently; see OptionalFloat.
func OptionalFloatString(s string) *float64 {
	s = strings.TrimSpace(s)
	if IsMissing(s) {
		return nil
	}
	s = strings.TrimSuffix(s, "%")
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}
