package normalizer

import (
	"fmt"
	"regexp"
	"sort"

	"tablenorm/internal/config"
	"tablenorm/internal/table"
)

// routineFn is the transformation-routine contract: transform the named
// columns in place and return the updated frame. Routines never fail a
// run; problems are logged and the affected column is left alone.
type routineFn func(e *Engine, f *table.Frame, cols []string, params config.Options) *table.Frame

// routines is the closed dispatch table. A step method not listed here
// is skipped at run time and reported by ValidateConfig.
var routines = map[string]routineFn{
	"text":        (*Engine).text,
	"numeric":     (*Engine).numeric,
	"date":        (*Engine).date,
	"categorical": (*Engine).categorical,
	"boolean":     (*Engine).boolean,

	"text_stressed":       (*Engine).textStressed,
	"text_relaxed":        (*Engine).textRelaxed,
	"numeric_float":       (*Engine).numericFloat,
	"numeric_int":         (*Engine).numericInt,
	"date_dayfirst":       (*Engine).dateDayfirst,
	"date_yearfirst":      (*Engine).dateYearfirst,
	"categorical_relaxed": (*Engine).categoricalRelaxed,
}

// Methods returns the supported step method names, sorted.
func Methods() []string {
	names := make([]string, 0, len(routines))
	for name := range routines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasMethod reports whether a step method name resolves.
func HasMethod(name string) bool {
	_, ok := routines[name]
	return ok
}

var (
	stripOptions = map[string]bool{"both": true, "left": true, "right": true}
	caseOptions  = map[string]bool{"lower": true, "upper": true, "title": true}
	errOptions   = map[string]bool{"raise": true, "ignore": true, "coerce": true}
)

// ValidateConfig resolves every normalization step against the dispatch
// table and checks the parameter values the routines would choke on at
// run time. Issues come back as human-readable strings; an empty result
// means every step would execute.
func ValidateConfig(cc *config.ColumnsConfig) []string {
	var issues []string
	bad := func(col string, step config.CallSpec, format string, a ...any) {
		issues = append(issues, fmt.Sprintf("column %q step %q: %s",
			col, step.Method, fmt.Sprintf(format, a...)))
	}

	for _, col := range cc.Columns() {
		for _, step := range col.Normalization {
			if !HasMethod(step.Method) {
				bad(col.Name, step, "unknown method")
				continue
			}
			p := step.ParamsMap()

			switch step.Method {
			case "text", "categorical":
				if v := p.String("strip", ""); v != "" && !stripOptions[v] {
					bad(col.Name, step, "invalid strip option %q", v)
				}
				if v := p.String("case", ""); v != "" && !caseOptions[v] {
					bad(col.Name, step, "invalid case option %q", v)
				}
				if v := p.String("error", ""); v != "" && !errOptions[v] {
					bad(col.Name, step, "invalid error option %q", v)
				}
				if v, ok := patternParam(p); ok && v != "" {
					if _, err := regexp.Compile(v); err != nil {
						bad(col.Name, step, "invalid cleanup_pattern: %v", err)
					}
				}
			case "numeric":
				if v := p.String("dtype", ""); v != "" && v != "Int64" && v != "Float64" {
					bad(col.Name, step, "invalid numeric dtype %q", v)
				}
				if v := p.String("errors", ""); v != "" && !errOptions[v] {
					bad(col.Name, step, "invalid errors option %q", v)
				}
				if v, ok := patternParam(p); ok && v != "" {
					if _, err := regexp.Compile(v); err != nil {
						bad(col.Name, step, "invalid cleanup_pattern: %v", err)
					}
				}
			case "date":
				for _, f := range formatsParam(p) {
					if _, err := goLayout(f); err != nil {
						bad(col.Name, step, "unusable format %q: %v", f, err)
					}
				}
			}
		}
	}
	return issues
}

// patternParam reads cleanup_pattern, tolerating both the raw string and
// the decoded regex literal forms.
func patternParam(p config.Options) (string, bool) {
	switch v := p.Any("cleanup_pattern").(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case *regexp.Regexp:
		return v.String(), true
	default:
		return "", false
	}
}
