package normalizer

import (
	"sort"

	"go.uber.org/zap"

	"tablenorm/internal/config"
	"tablenorm/internal/schema"
	"tablenorm/internal/table"
)

// categorical runs text normalization first, then types the column as
// category. Levels come from the observed non-missing values in first
// appearance order.
//
// Parameters: everything text accepts, plus
//
//	sort_categories  bool, sort levels lexicographically
//	ordered          bool, mark the categorical ordered
func (e *Engine) categorical(f *table.Frame, cols []string, params config.Options) *table.Frame {
	f = e.text(f, cols, params)

	sortCats := params.Bool("sort_categories", false)
	ordered := params.Bool("ordered", false)

	for _, name := range cols {
		col, ok := f.Col(name)
		if !ok {
			continue
		}

		seen := make(map[string]bool)
		cats := make([]string, 0, 8)
		for _, v := range col.Values {
			s, isStr := v.(string)
			if !isStr || seen[s] {
				continue
			}
			seen[s] = true
			cats = append(cats, s)
		}
		if sortCats {
			sort.Strings(cats)
		}

		col.Dtype = schema.Category
		col.Categories = cats
		col.Ordered = ordered

		e.log.Debug("normalized categorical column",
			zap.String("column", name),
			zap.Int("categories", len(cats)),
			zap.Bool("ordered", ordered),
		)
	}
	return f
}
