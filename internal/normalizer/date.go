package normalizer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"tablenorm/internal/config"
	"tablenorm/internal/schema"
	"tablenorm/internal/table"
)

// date parses columns into a temporal dtype. Candidates race: free-form
// inference first, then every configured format in order; the candidate
// producing the fewest missing cells wins, earlier candidates winning
// ties. A column where no candidate parses anything is left untouched.
// Already-temporal columns skip parsing and only honor utc.
//
// Parameters:
//
//	formats          string or list; strptime directives (%Y-%m-%d) and
//	                 Go reference layouts (2006-01-02) both work
//	cleanup_pattern  regex removed from cells before parsing
//	dayfirst         bool, prefer day-leading reading of ambiguous dates
//	yearfirst        bool, prefer year-leading reading
//	utc              bool, mark the column UTC and normalize instants
func (e *Engine) date(f *table.Frame, cols []string, params config.Options) *table.Frame {
	formats := formatsParam(params)
	cleanup := cleanupRegexp(params, e.log)
	dayfirst := params.Bool("dayfirst", false)
	yearfirst := params.Bool("yearfirst", false)
	utc := params.Bool("utc", false)

	candidates := dateCandidates(formats, dayfirst, yearfirst, e.log)

	for _, name := range cols {
		col, ok := f.Col(name)
		if !ok {
			continue
		}

		if col.Dtype.IsDatetime() {
			e.log.Debug("column already temporal, skipping parse",
				zap.String("column", name),
			)
			if utc && col.Dtype != schema.DatetimeUTC {
				for i, v := range col.Values {
					if t, ok := v.(time.Time); ok {
						col.Values[i] = t.UTC()
					}
				}
				col.Dtype = schema.DatetimeUTC
			}
			continue
		}

		applyDate(col, candidates, cleanup, utc, e.log)
	}
	return f
}

type dateCandidate struct {
	name  string
	parse func(s string) (time.Time, bool)
}

// dateCandidates builds the parse race: inference, then the explicit
// formats. A format that cannot be turned into a layout is reported and
// dropped from the race.
func dateCandidates(formats []string, dayfirst, yearfirst bool, log *zap.Logger) []dateCandidate {
	layouts := inferenceLayouts(dayfirst, yearfirst)
	out := []dateCandidate{{
		name: "inferred",
		parse: func(s string) (time.Time, bool) {
			return parseAnyLayout(s, layouts)
		},
	}}

	for _, f := range formats {
		layout, err := goLayout(f)
		if err != nil {
			log.Warn("unusable date format, dropping candidate",
				zap.String("format", f),
				zap.Error(err),
			)
			continue
		}
		out = append(out, dateCandidate{
			name: f,
			parse: func(s string) (time.Time, bool) {
				t, err := time.Parse(layout, s)
				return t, err == nil
			},
		})
	}
	return out
}

func applyDate(col *table.Column, candidates []dateCandidate, cleanup *regexp.Regexp, utc bool, log *zap.Logger) {
	rows := len(col.Values)

	// Work on a stringified copy; the column itself only changes when a
	// candidate wins.
	cells := make([]any, rows)
	originalNA := 0
	for i, v := range col.Values {
		if v == nil {
			cells[i] = nil
			originalNA++
			continue
		}
		s, isStr := v.(string)
		if !isStr {
			s = table.FormatCell(v)
		}
		if cleanup != nil {
			s = cleanup.ReplaceAllString(s, "")
		}
		s = strings.TrimSpace(s)
		if s == "" {
			// Nothing any candidate could parse; counts as missing from
			// the start rather than as a parse failure.
			cells[i] = nil
			originalNA++
			continue
		}
		cells[i] = s
	}

	var best []any
	bestNA := rows + 1
	bestName := ""

	for _, cand := range candidates {
		parsed := make([]any, rows)
		na := 0
		for i, v := range cells {
			if v == nil {
				na++
				continue
			}
			t, ok := cand.parse(v.(string))
			if !ok {
				na++
				continue
			}
			if utc {
				t = t.UTC()
			}
			parsed[i] = t
		}
		log.Debug("date candidate evaluated",
			zap.String("column", col.Name),
			zap.String("candidate", cand.name),
			zap.Int("missing", na),
		)
		if na < bestNA {
			best = parsed
			bestNA = na
			bestName = cand.name
		}
	}

	if best == nil || (bestNA == rows && originalNA < rows) {
		log.Error("no date candidate parsed anything, leaving column untouched",
			zap.String("column", col.Name),
		)
		return
	}

	if bestNA > originalNA {
		log.Warn("date parsing introduced missing cells",
			zap.String("column", col.Name),
			zap.Int("cells", bestNA-originalNA),
			zap.Int("missing_before", originalNA),
			zap.String("candidate", bestName),
		)
	} else {
		log.Debug("parsed date column",
			zap.String("column", col.Name),
			zap.String("candidate", bestName),
		)
	}

	col.Values = best
	if utc {
		col.Dtype = schema.DatetimeUTC
	} else {
		col.Dtype = schema.Datetime
	}
	col.Categories = nil
	col.Ordered = false
}

func formatsParam(p config.Options) []string {
	if s := p.String("formats", ""); s != "" {
		return []string{s}
	}
	return p.StringSlice("formats")
}

// inferenceLayouts is the free-form candidate list. ISO shapes lead,
// then the ambiguous day/month shapes in the order the flags ask for,
// then textual month names.
func inferenceLayouts(dayfirst, yearfirst bool) []string {
	iso := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"2006/01/02",
	}
	dmy := []string{
		"02/01/2006 15:04:05",
		"02/01/2006",
		"02-01-2006",
		"02.01.2006",
	}
	mdy := []string{
		"01/02/2006 15:04:05",
		"01/02/2006",
		"01-02-2006",
		"01.02.2006",
	}
	textual := []string{
		"2 Jan 2006",
		"Jan 2, 2006",
		"January 2, 2006",
	}

	out := make([]string, 0, len(iso)+len(dmy)+len(mdy)+len(textual))
	out = append(out, iso...)
	if dayfirst {
		out = append(out, dmy...)
		out = append(out, mdy...)
	} else {
		out = append(out, mdy...)
		out = append(out, dmy...)
	}
	_ = yearfirst // year-leading shapes already head the list
	return append(out, textual...)
}

func parseAnyLayout(s string, layouts []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var strftimeDirectives = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'f': "000000",
	'j': "002",
	'a': "Mon",
	'A': "Monday",
	'b': "Jan",
	'B': "January",
	'p': "PM",
	'z': "-0700",
	'Z': "MST",
	'%': "%",
}

// goLayout turns a strptime-style format into a Go reference layout. A
// format containing no % directive is taken as a Go layout already.
func goLayout(format string) (string, error) {
	if !strings.Contains(format, "%") {
		return format, nil
	}
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			b.WriteByte(format[i])
			continue
		}
		i++
		if i >= len(format) {
			return "", fmt.Errorf("dangling %% at end of format")
		}
		rep, ok := strftimeDirectives[format[i]]
		if !ok {
			return "", fmt.Errorf("unsupported directive %%%c", format[i])
		}
		b.WriteString(rep)
	}
	return b.String(), nil
}
