// Package schema defines the column dtype vocabulary shared by the column
// configuration model and the normalization engine.
//
// Dtype spellings follow the pandas nullable names ("Int64", "Float64",
// "datetime64[ns]", ...) because that is what existing column documents use.
// The engine never parses these strings beyond comparing against the
// constants below.
package schema

import "fmt"

// Dtype identifies a canonical column type.
type Dtype string

const (
	// Object marks a raw, unnormalized column, e.g. one freshly loaded from
	// CSV. Object columns carry string cells but are skipped by the fill
	// phase until a normalization routine assigns a canonical dtype.
	Object Dtype = "object"

	String      Dtype = "string"
	Int64       Dtype = "Int64"
	Float64     Dtype = "Float64"
	Datetime    Dtype = "datetime64[ns]"
	DatetimeUTC Dtype = "datetime64[ns, UTC]"
	Category    Dtype = "category"
	Boolean     Dtype = "boolean"
)

// All lists every dtype a column document may declare, in a stable order.
func All() []Dtype {
	return []Dtype{Object, String, Int64, Float64, Datetime, DatetimeUTC, Category, Boolean}
}

// Parse validates a dtype spelling from a column document.
func Parse(s string) (Dtype, error) {
	for _, d := range All() {
		if s == string(d) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unsupported dtype %q", s)
}

func (d Dtype) IsString() bool { return d == String }

func (d Dtype) IsNumeric() bool { return d == Int64 || d == Float64 }

func (d Dtype) IsDatetime() bool { return d == Datetime || d == DatetimeUTC }

func (d Dtype) IsCategory() bool { return d == Category }

func (d Dtype) IsBoolean() bool { return d == Boolean }

// Recognized reports whether d belongs to one of the canonical dtype groups
// the engine's fill phase knows how to handle.
func (d Dtype) Recognized() bool {
	return d.IsString() || d.IsNumeric() || d.IsDatetime() || d.IsCategory() || d.IsBoolean()
}
