package normalizer

import (
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"tablenorm/internal/config"
	"tablenorm/internal/schema"
	"tablenorm/internal/table"
)

var (
	reRunOfSpace = regexp.MustCompile(`\s{2,}`)
	reEmptyish   = regexp.MustCompile(`^\s*$`)
	reNonASCII   = regexp.MustCompile(`[^\x00-\x7F]+`)
)

// text normalizes string content. Cells run through the enabled
// operations in a fixed order: cast, cleanup pattern, strip, whitespace
// compaction, case folding, empty-to-missing, diacritic removal,
// non-ASCII removal. The column comes out with dtype string.
//
// Parameters:
//
//	error              raise|ignore|coerce  cast policy, default coerce
//	                   (coerce turns non-string cells into missing, the
//	                   others stringify them)
//	strip              both|left|right
//	compact_whitespace replacement for runs of 2+ whitespace
//	case               lower|upper|title
//	empty_to_na        bool, whitespace-only cells become missing
//	delete_diacritics  bool
//	delete_non_ascii   bool
//	cleanup_pattern    regex removed from every cell before other ops
func (e *Engine) text(f *table.Frame, cols []string, params config.Options) *table.Frame {
	opts := textOptions(params, e.log)
	for _, name := range cols {
		col, ok := f.Col(name)
		if !ok {
			continue
		}
		applyText(col, opts)
		e.log.Debug("normalized text column", zap.String("column", name))
	}
	return f
}

type textOpts struct {
	coerce     bool
	cleanup    *regexp.Regexp
	strip      string
	compact    string
	compactSet bool
	caseOpt    string
	emptyToNA  bool
	diacritics bool
	nonASCII   bool
}

// textOptions validates the parameter values once per group; a bad
// option value disables that operation and is logged, the rest still
// run.
func textOptions(params config.Options, log *zap.Logger) textOpts {
	o := textOpts{coerce: true}

	switch v := params.String("error", "coerce"); v {
	case "coerce":
	case "raise", "ignore":
		o.coerce = false
	default:
		log.Warn("invalid error option, using coerce", zap.String("error", v))
	}

	o.cleanup = cleanupRegexp(params, log)

	if v := params.String("strip", ""); v != "" {
		if stripOptions[v] {
			o.strip = v
		} else {
			log.Warn("invalid strip option, skipping strip", zap.String("strip", v))
		}
	}

	if v := params.Any("compact_whitespace"); v != nil {
		o.compact = table.FormatCell(v)
		o.compactSet = true
	}

	if v := params.String("case", ""); v != "" {
		if caseOptions[v] {
			o.caseOpt = v
		} else {
			log.Warn("invalid case option, skipping case folding", zap.String("case", v))
		}
	}

	o.emptyToNA = params.Bool("empty_to_na", false)
	o.diacritics = params.Bool("delete_diacritics", false)
	o.nonASCII = params.Bool("delete_non_ascii", false)
	return o
}

func applyText(col *table.Column, o textOpts) {
	var title cases.Caser
	if o.caseOpt == "title" {
		title = cases.Title(language.Und)
	}
	var deaccent transform.Transformer
	if o.diacritics {
		// Decompose, drop the nonspacing marks, recompose.
		deaccent = transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		)
	}

	for i, v := range col.Values {
		if v == nil {
			continue
		}
		s, isStr := v.(string)
		if !isStr {
			if o.coerce {
				col.Values[i] = nil
				continue
			}
			s = table.FormatCell(v)
		}

		if o.cleanup != nil {
			s = o.cleanup.ReplaceAllString(s, "")
		}

		switch o.strip {
		case "both":
			s = strings.TrimSpace(s)
		case "left":
			s = strings.TrimLeftFunc(s, unicode.IsSpace)
		case "right":
			s = strings.TrimRightFunc(s, unicode.IsSpace)
		}

		if o.compactSet {
			s = reRunOfSpace.ReplaceAllString(s, o.compact)
		}

		switch o.caseOpt {
		case "lower":
			s = strings.ToLower(s)
		case "upper":
			s = strings.ToUpper(s)
		case "title":
			s = title.String(s)
		}

		if o.emptyToNA && reEmptyish.MatchString(s) {
			col.Values[i] = nil
			continue
		}

		if o.diacritics {
			if out, _, err := transform.String(deaccent, s); err == nil {
				s = out
			}
		}

		if o.nonASCII {
			s = reNonASCII.ReplaceAllString(s, "")
		}

		col.Values[i] = s
	}
	col.Dtype = schema.String
	col.Categories = nil
	col.Ordered = false
}

// cleanupRegexp reads cleanup_pattern in either of its decoded forms. A
// string that does not compile is reported and the cleanup operation is
// dropped; everything else in the step still runs.
func cleanupRegexp(params config.Options, log *zap.Logger) *regexp.Regexp {
	switch v := params.Any("cleanup_pattern").(type) {
	case nil:
		return nil
	case *regexp.Regexp:
		return v
	case string:
		re, err := regexp.Compile(v)
		if err != nil {
			log.Warn("cleanup pattern does not compile, skipping cleanup",
				zap.String("pattern", v),
				zap.Error(err),
			)
			return nil
		}
		return re
	default:
		log.Warn("cleanup pattern has an unusable type, skipping cleanup",
			zap.Any("pattern", v),
		)
		return nil
	}
}
