package normalizer

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"tablenorm/internal/config"
	"tablenorm/internal/schema"
	"tablenorm/internal/table"
)

// numeric coerces columns to a nullable numeric dtype, best effort.
// Newly introduced missing cells are counted and logged.
//
// Parameters:
//
//	dtype            Int64|Float64, default Float64
//	errors           raise|ignore|coerce, default coerce (coerce turns
//	                 unparseable cells into missing; ignore leaves the
//	                 column untouched on the first bad cell; raise skips
//	                 the column with a warning)
//	cleanup_pattern  regex removed from string cells before parsing
func (e *Engine) numeric(f *table.Frame, cols []string, params config.Options) *table.Frame {
	target := schema.Float64
	switch v := params.String("dtype", "Float64"); v {
	case "Float64":
	case "Int64":
		target = schema.Int64
	default:
		e.log.Warn("invalid numeric dtype, using Float64", zap.String("dtype", v))
	}

	policy := params.String("errors", "coerce")
	if !errOptions[policy] {
		e.log.Warn("invalid errors option, using coerce", zap.String("errors", policy))
		policy = "coerce"
	}

	cleanup := cleanupRegexp(params, e.log)

	for _, name := range cols {
		col, ok := f.Col(name)
		if !ok {
			continue
		}
		applyNumeric(col, target, policy, cleanup, e.log)
	}
	return f
}

func applyNumeric(col *table.Column, target schema.Dtype, policy string, cleanup *regexp.Regexp, log *zap.Logger) {
	preNA := col.CountNA()
	parsed := make([]any, len(col.Values))
	bad := -1

	for i, v := range col.Values {
		if v == nil {
			continue
		}
		f64, i64, exact, ok := numericCell(v, cleanup)
		if !ok {
			if policy == "coerce" {
				continue
			}
			bad = i
			break
		}
		if target == schema.Int64 {
			if exact {
				parsed[i] = i64
				continue
			}
			if f64 != math.Trunc(f64) || math.IsInf(f64, 0) || math.IsNaN(f64) {
				if policy == "coerce" {
					continue
				}
				bad = i
				break
			}
			parsed[i] = int64(f64)
			continue
		}
		parsed[i] = f64
	}

	if bad >= 0 {
		if policy == "raise" {
			log.Warn("uncoercible numeric cell, skipping column",
				zap.String("column", col.Name),
				zap.Int("row", bad),
				zap.Any("value", col.Values[bad]),
			)
		} else {
			log.Debug("uncoercible numeric cell, leaving column unchanged",
				zap.String("column", col.Name),
				zap.Int("row", bad),
			)
		}
		return
	}

	col.Values = parsed
	col.Dtype = target
	col.Categories = nil
	col.Ordered = false

	if fresh := col.CountNA() - preNA; fresh > 0 {
		log.Debug("numeric coercion introduced missing cells",
			zap.String("column", col.Name),
			zap.Int("cells", fresh),
			zap.Int("missing_before", preNA),
		)
	}

	log.Debug("normalized numeric column",
		zap.String("column", col.Name),
		zap.String("dtype", string(target)),
	)
}

// numericCell parses one cell. exact reports that i64 carries the value
// without a float round trip.
func numericCell(v any, cleanup *regexp.Regexp) (f64 float64, i64 int64, exact, ok bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), x, true, true
	case float64:
		return x, 0, false, true
	case bool:
		if x {
			return 1, 1, true, true
		}
		return 0, 0, true, true
	case string:
		s := x
		if cleanup != nil {
			s = cleanup.ReplaceAllString(s, "")
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, 0, false, false
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return float64(n), n, true, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, 0, false, true
		}
	}
	return 0, 0, false, false
}
