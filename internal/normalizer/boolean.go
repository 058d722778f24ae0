package normalizer

import (
	"strings"

	"go.uber.org/zap"

	"tablenorm/internal/config"
	"tablenorm/internal/schema"
	"tablenorm/internal/table"
)

// boolean coerces columns to a nullable boolean. Configured true/false
// values match first (same matching rules as NA markers, so patterns
// work); remaining cells fall back to the common spellings in any case
// (true/false, t/f, yes/no, y/n, on/off) and to numeric 1/0. Anything
// unmapped becomes missing.
//
// Parameters:
//
//	true_values   scalar or list of values mapping to true
//	false_values  scalar or list of values mapping to false
func (e *Engine) boolean(f *table.Frame, cols []string, params config.Options) *table.Frame {
	trueVals := valuesParam(params, "true_values")
	falseVals := valuesParam(params, "false_values")

	for _, name := range cols {
		col, ok := f.Col(name)
		if !ok {
			continue
		}

		preNA := col.CountNA()
		for i, v := range col.Values {
			if v == nil {
				continue
			}
			switch {
			case matchesMarker(v, trueVals):
				col.Values[i] = true
			case matchesMarker(v, falseVals):
				col.Values[i] = false
			default:
				b, ok := booleanCell(v)
				if !ok {
					col.Values[i] = nil
					continue
				}
				col.Values[i] = b
			}
		}
		col.Dtype = schema.Boolean
		col.Categories = nil
		col.Ordered = false

		if fresh := col.CountNA() - preNA; fresh > 0 {
			e.log.Debug("boolean coercion introduced missing cells",
				zap.String("column", name),
				zap.Int("cells", fresh),
				zap.Int("missing_before", preNA),
			)
		}
		e.log.Debug("normalized boolean column", zap.String("column", name))
	}
	return f
}

func valuesParam(p config.Options, key string) []any {
	switch v := p.Any(key).(type) {
	case nil:
		return nil
	case []any:
		return v
	default:
		return []any{v}
	}
}

var boolWords = map[string]bool{
	"true": true, "t": true, "yes": true, "y": true, "on": true, "1": true,
	"false": false, "f": false, "no": false, "n": false, "off": false, "0": false,
}

func booleanCell(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, ok := boolWords[strings.ToLower(strings.TrimSpace(x))]
		return b, ok
	case int64:
		if x == 0 || x == 1 {
			return x == 1, true
		}
	case float64:
		if x == 0 || x == 1 {
			return x == 1, true
		}
	}
	return false, false
}
