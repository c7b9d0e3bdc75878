package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"stockadvisor/internal/pkg/convert"
	"stockadvisor/internal/types"
)

// ErrIncompleteFundamentals marks a document without Description, Sector or Industry.
// Placeholders such as "None" count as missing.
var ErrIncompleteFundamentals = errors.New("incomplete fundamentals")

var requiredOverviewFields = []string{"Description", "Sector", "Industry"}

// ParseFundamentals maps an OVERVIEW document onto types.Fundamentals.
// Numeric fields are lenient: "None", "-" or garbage become nil.
func ParseFundamentals(raw json.RawMessage) (types.Fundamentals, error) {
	if !gjson.ValidBytes(raw) {
		return types.Fundamentals{}, fmt.Errorf("%w: invalid json", ErrIncompleteFundamentals)
	}
	doc := gjson.ParseBytes(raw)
	var missing []string
	for _, key := range requiredOverviewFields {
		if convert.IsMissing(doc.Get(key).String()) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return types.Fundamentals{}, fmt.Errorf("%w: missing %s", ErrIncompleteFundamentals, strings.Join(missing, ", "))
	}
	num := func(key string) *float64 {
		v := doc.Get(key)
		if !v.Exists() {
			return nil
		}
		return convert.OptionalFloat(v.Value())
	}
	return types.Fundamentals{
		Description:      strings.TrimSpace(doc.Get("Description").String()),
		MarketCap:        num("MarketCapitalization"),
		PERatio:          num("PERatio"),
		PEGRatio:         num("PEGRatio"),
		BookValue:        num("BookValue"),
		DividendYield:    num("DividendYield"),
		DividendPerShare: num("DividendPerShare"),
		EPS:              num("EPS"),
		Beta:             num("Beta"),
		Sector:           strings.TrimSpace(doc.Get("Sector").String()),
		Industry:         strings.TrimSpace(doc.Get("Industry").String()),
	}, nil
}
