package normalizer

import (
	"go.uber.org/zap"

	"tablenorm/internal/config"
	"tablenorm/internal/table"
)

// The preset routines are fixed-parameter wrappers over the general
// ones. They take no parameters of their own; anything configured on a
// preset step is reported and ignored.

func (e *Engine) textStressed(f *table.Frame, cols []string, params config.Options) *table.Frame {
	return e.text(f, cols, presetParams("text_stressed", params, config.Options{
		"strip":              "both",
		"compact_whitespace": " ",
		"case":               "upper",
		"empty_to_na":        true,
		"delete_diacritics":  true,
		"delete_non_ascii":   true,
	}, e.log))
}

func (e *Engine) textRelaxed(f *table.Frame, cols []string, params config.Options) *table.Frame {
	return e.text(f, cols, presetParams("text_relaxed", params, config.Options{
		"strip":              "both",
		"compact_whitespace": " ",
		"empty_to_na":        true,
	}, e.log))
}

func (e *Engine) numericFloat(f *table.Frame, cols []string, params config.Options) *table.Frame {
	return e.numeric(f, cols, presetParams("numeric_float", params, config.Options{
		"dtype":           "Float64",
		"cleanup_pattern": `[$\s,%]`,
	}, e.log))
}

func (e *Engine) numericInt(f *table.Frame, cols []string, params config.Options) *table.Frame {
	return e.numeric(f, cols, presetParams("numeric_int", params, config.Options{
		"dtype":           "Int64",
		"cleanup_pattern": `[$\s,%]`,
	}, e.log))
}

func (e *Engine) dateDayfirst(f *table.Frame, cols []string, params config.Options) *table.Frame {
	return e.date(f, cols, presetParams("date_dayfirst", params, config.Options{
		"formats":  []string{"%Y-%m-%d", "%d/%m/%Y", "%m/%d/%Y"},
		"dayfirst": true,
	}, e.log))
}

func (e *Engine) dateYearfirst(f *table.Frame, cols []string, params config.Options) *table.Frame {
	return e.date(f, cols, presetParams("date_yearfirst", params, config.Options{
		"formats":   []string{"%Y-%m-%d", "%Y/%m/%d", "%d-%m-%Y"},
		"yearfirst": true,
	}, e.log))
}

func (e *Engine) categoricalRelaxed(f *table.Frame, cols []string, params config.Options) *table.Frame {
	return e.categorical(f, cols, presetParams("categorical_relaxed", params, config.Options{
		"strip":              "both",
		"compact_whitespace": " ",
		"case":               "upper",
		"empty_to_na":        true,
		"delete_diacritics":  true,
		"delete_non_ascii":   true,
		"sort_categories":    true,
	}, e.log))
}

func presetParams(method string, incoming, fixed config.Options, log *zap.Logger) config.Options {
	if len(incoming) > 0 {
		log.Warn("preset step ignores configured parameters",
			zap.String("method", method),
		)
	}
	return fixed
}
