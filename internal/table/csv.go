package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"tablenorm/internal/config"
	"tablenorm/internal/schema"
)

const dateOnly = "2006-01-02"

// ReadCSV loads a CSV document into a Frame. Every column comes back as
// dtype object with string cells; trimmed-empty cells become nil.
//
// Options:
//
//	has_header         bool              first record is the header (default true)
//	comma              rune              field separator (default ',')
//	trim_space         bool              trim cell edges (default true)
//	lazy_quotes        bool              tolerate bare quotes (default false)
//	fields_per_record  int               fixed width, 0 = variable (default 0)
//	header_map         map[string]string source header -> column name
//	snake_case_headers bool              lowercase headers, spaces to '_' (default false)
//
// A UTF-8 BOM on the first header cell is stripped. Without a header,
// columns are named column_1..column_n from the width of the first
// record. Short records pad with nil; cells past the header width are
// dropped.
func ReadCSV(r io.Reader, opt config.Options) (*Frame, error) {
	hasHeader := opt.Bool("has_header", true)
	trim := opt.Bool("trim_space", true)
	hm := opt.StringMap("header_map")
	snake := opt.Bool("snake_case_headers", false)

	cr := csv.NewReader(r)
	cr.Comma = opt.Rune("comma", ',')
	cr.ReuseRecord = true
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	if n := opt.Int("fields_per_record", 0); n != 0 {
		cr.FieldsPerRecord = n
	} else {
		cr.FieldsPerRecord = -1
	}

	var (
		names []string
		cells [][]any
		line  int
	)

	for {
		line++
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}

		if names == nil {
			if hasHeader {
				names, err = headerNames(rec, hm, snake)
				if err != nil {
					return nil, err
				}
				cells = make([][]any, len(names))
				continue
			}
			names = make([]string, len(rec))
			for i := range rec {
				names[i] = "column_" + strconv.Itoa(i+1)
			}
			cells = make([][]any, len(names))
		}

		for i := range names {
			var v any
			if i < len(rec) {
				s := rec[i]
				if trim && hasEdgeSpace(s) {
					s = strings.TrimSpace(s)
				}
				if s != "" {
					v = s
				}
			}
			cells[i] = append(cells[i], v)
		}
	}

	if names == nil {
		return nil, fmt.Errorf("csv: empty input")
	}

	cols := make([]*Column, len(names))
	for i, name := range names {
		cols[i] = &Column{Name: name, Dtype: schema.Object, Values: cells[i]}
	}
	return NewFrame(cols...)
}

func headerNames(rec []string, hm map[string]string, snake bool) ([]string, error) {
	names := make([]string, len(rec))
	seen := make(map[string]int, len(rec))
	for i, h := range rec {
		if hasEdgeSpace(h) {
			h = strings.TrimSpace(h)
		}
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		if mapped, ok := hm[h]; ok {
			h = mapped
		} else if snake {
			h = strings.ReplaceAll(strings.ToLower(h), " ", "_")
		}
		if h == "" {
			h = "column_" + strconv.Itoa(i+1)
		}
		if prev, dup := seen[h]; dup {
			return nil, fmt.Errorf("csv: duplicate header %q (fields %d and %d)", h, prev+1, i+1)
		}
		seen[h] = i
		names[i] = h
	}
	return names, nil
}

// WriteCSV renders a frame back to CSV, header first. nil cells write as
// empty fields. Dates at midnight UTC write date-only, anything else
// RFC 3339.
func WriteCSV(w io.Writer, f *Frame, opt config.Options) error {
	cw := csv.NewWriter(w)
	cw.Comma = opt.Rune("comma", ',')

	if err := cw.Write(f.Names()); err != nil {
		return fmt.Errorf("csv write header: %w", err)
	}

	cols := f.Columns()
	rec := make([]string, len(cols))
	for row := 0; row < f.NumRows(); row++ {
		for i, c := range cols {
			rec[i] = FormatCell(c.Values[row])
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("csv write row %d: %w", row+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// FormatCell renders one cell the way WriteCSV would: empty for nil,
// decimal-point floats, lowercase booleans, dates per dateOnly/RFC 3339.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		u := x.UTC()
		if h, m, s := u.Clock(); h == 0 && m == 0 && s == 0 && u.Nanosecond() == 0 {
			return u.Format(dateOnly)
		}
		return u.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

func hasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return isSpace(s[0]) || isSpace(s[len(s)-1])
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
