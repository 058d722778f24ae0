package normalizer

import (
	"regexp"
	"time"

	"go.uber.org/zap"

	"tablenorm/internal/metrics"
	"tablenorm/internal/schema"
	"tablenorm/internal/table"
)

// convertNA rewrites every cell matching a configured NA marker to
// missing. Scalar markers match by equality, pattern markers by regex
// test against string cells. Category columns additionally drop literal
// markers from their category set. Returns the number of converted
// cells. pass tags the emission ("pre" before routines, "post" after).
func (e *Engine) convertNA(f *table.Frame, pass string, log *zap.Logger) int {
	total := 0
	markers := e.conf.NAValuesByColumn()
	for _, name := range e.conf.Names() {
		mks, ok := markers[name]
		if !ok {
			continue
		}
		col, ok := f.Col(name)
		if !ok {
			log.Warn("configured column missing from table, skipping marker conversion",
				zap.String("column", name),
				zap.String("pass", pass),
			)
			continue
		}

		n := convertColumnNA(col, mks)
		if n > 0 {
			log.Debug("converted marker cells to missing",
				zap.String("column", name),
				zap.Int("cells", n),
				zap.String("pass", pass),
			)
		}
		total += n
	}
	if total > 0 {
		metrics.Inc("norm_cells_na_total", float64(total), metrics.Labels{"pass": pass})
	}
	return total
}

func convertColumnNA(col *table.Column, markers []any) int {
	if col.Dtype == schema.Category {
		kept := col.Categories[:0]
		for _, cat := range col.Categories {
			if matchesLiteral(cat, markers) {
				continue
			}
			kept = append(kept, cat)
		}
		col.Categories = kept
	}

	n := 0
	for i, v := range col.Values {
		if v == nil {
			continue
		}
		if matchesMarker(v, markers) {
			col.Values[i] = nil
			n++
		}
	}
	return n
}

// matchesLiteral reports whether a category level equals any non-pattern
// string marker.
func matchesLiteral(cat string, markers []any) bool {
	for _, m := range markers {
		if s, ok := m.(string); ok && s == cat {
			return true
		}
	}
	return false
}

func matchesMarker(v any, markers []any) bool {
	for _, m := range markers {
		switch mk := m.(type) {
		case *regexp.Regexp:
			if s, ok := v.(string); ok && mk.MatchString(s) {
				return true
			}
		case string:
			if s, ok := v.(string); ok && s == mk {
				return true
			}
		case int, int64, float64:
			// Numeric markers compare across int and float cells; YAML
			// documents deliver ints, JSON documents floats.
			mf, _ := asFloat(mk)
			if f, ok := asFloat(v); ok && f == mf {
				return true
			}
		case bool:
			if b, ok := v.(bool); ok && b == mk {
				return true
			}
		case time.Time:
			if t, ok := v.(time.Time); ok && t.Equal(mk) {
				return true
			}
		}
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
