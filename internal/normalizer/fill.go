package normalizer

import (
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"tablenorm/internal/metrics"
	"tablenorm/internal/schema"
	"tablenorm/internal/table"
)

// fillNA replaces missing cells with the configured fill value, using a
// dtype-specific coercion. Columns still on an unrecognized dtype are
// skipped with a warning: normalization has to run before fill can know
// what to coerce the value into.
func (e *Engine) fillNA(f *table.Frame, log *zap.Logger) int {
	total := 0
	fills := e.conf.FillNAByColumn()
	for _, name := range e.conf.Names() {
		fill, ok := fills[name]
		if !ok {
			continue
		}
		col, ok := f.Col(name)
		if !ok {
			log.Warn("configured column missing from table, skipping fill",
				zap.String("column", name),
			)
			continue
		}
		if !col.Dtype.Recognized() {
			log.Warn("column dtype not normalized, skipping fill",
				zap.String("column", name),
				zap.String("dtype", string(col.Dtype)),
			)
			continue
		}

		n, ok := fillColumn(col, fill, log)
		if !ok {
			continue
		}
		if n > 0 {
			log.Debug("filled missing cells",
				zap.String("column", name),
				zap.Int("cells", n),
			)
		}
		total += n
	}
	if total > 0 {
		metrics.Inc("norm_cells_filled_total", float64(total), nil)
	}
	return total
}

func fillColumn(col *table.Column, fill any, log *zap.Logger) (int, bool) {
	var cell any
	switch {
	case col.Dtype.IsString():
		cell = table.FormatCell(fill)

	case col.Dtype == schema.Int64:
		v, ok := fillInt(fill)
		if !ok {
			log.Warn("fill value not coercible to Int64, skipping fill",
				zap.String("column", col.Name),
				zap.Any("fill", fill),
			)
			return 0, false
		}
		cell = v

	case col.Dtype == schema.Float64:
		v, ok := fillFloat(fill)
		if !ok {
			log.Warn("fill value not coercible to Float64, skipping fill",
				zap.String("column", col.Name),
				zap.Any("fill", fill),
			)
			return 0, false
		}
		cell = v

	case col.Dtype.IsCategory():
		s := table.FormatCell(fill)
		if !hasCategory(col, s) {
			col.Categories = append(col.Categories, s)
			log.Debug("added fill value to categories",
				zap.String("column", col.Name),
				zap.String("category", s),
			)
		}
		cell = s

	case col.Dtype.IsDatetime():
		t, ok := fill.(time.Time)
		if !ok {
			log.Warn("fill value is not a timestamp, skipping fill",
				zap.String("column", col.Name),
				zap.Any("fill", fill),
			)
			return 0, false
		}
		cell = t

	case col.Dtype.IsBoolean():
		b, ok := fill.(bool)
		if !ok {
			log.Warn("fill value is not a boolean, skipping fill",
				zap.String("column", col.Name),
				zap.Any("fill", fill),
			)
			return 0, false
		}
		cell = b

	default:
		return 0, false
	}

	n := 0
	for i, v := range col.Values {
		if v == nil {
			col.Values[i] = cell
			n++
		}
	}
	return n, true
}

func hasCategory(col *table.Column, s string) bool {
	for _, cat := range col.Categories {
		if cat == s {
			return true
		}
	}
	return false
}

func fillInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int64(x), true
		}
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil && f == math.Trunc(f) {
			return int64(f), true
		}
	}
	return 0, false
}

func fillFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
