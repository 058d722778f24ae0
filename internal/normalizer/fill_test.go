package normalizer

import (
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"tablenorm/internal/schema"
	"tablenorm/internal/table"
)

func fillFrame(t *testing.T, fill any, col *table.Column) (*table.Column, int) {
	t.Helper()
	cc := mustConfig(t, []string{col.Name}, map[string]map[string]any{
		col.Name: {"dtype": string(col.Dtype), "fill_na": fill},
	})
	e := New(cc, zap.NewNop())
	f := mustFrame(t, col)
	n := e.fillNA(f, zap.NewNop())
	out, _ := f.Col(col.Name)
	return out, n
}

func TestFill_StringColumn(t *testing.T) {
	col, n := fillFrame(t, "missing", &table.Column{
		Name: "s", Dtype: schema.String, Values: []any{"a", nil, nil},
	})
	if n != 2 {
		t.Fatalf("filled = %d, want 2", n)
	}
	if !reflect.DeepEqual(col.Values, []any{"a", "missing", "missing"}) {
		t.Fatalf("values = %#v", col.Values)
	}
}

func TestFill_IntColumnCoercions(t *testing.T) {
	cases := []struct {
		name   string
		fill   any
		want   any
		filled int
	}{
		{"int fill", 7, int64(7), 1},
		{"integral float fill", 2.0, int64(2), 1},
		{"string fill", "3", int64(3), 1},
		{"fractional fill skipped", 2.5, nil, 0},
	}
	for _, tc := range cases {
		col, n := fillFrame(t, tc.fill, &table.Column{
			Name: "n", Dtype: schema.Int64, Values: []any{int64(1), nil},
		})
		if n != tc.filled {
			t.Fatalf("%s: filled = %d, want %d", tc.name, n, tc.filled)
		}
		if col.Values[1] != tc.want {
			t.Fatalf("%s: cell = %#v, want %#v", tc.name, col.Values[1], tc.want)
		}
	}
}

func TestFill_FloatColumn(t *testing.T) {
	col, n := fillFrame(t, 0, &table.Column{
		Name: "f", Dtype: schema.Float64, Values: []any{nil, 1.5},
	})
	if n != 1 || col.Values[0] != 0.0 {
		t.Fatalf("filled = %d, values = %#v", n, col.Values)
	}
}

func TestFill_CategoryAddsLevel(t *testing.T) {
	col, n := fillFrame(t, "unknown", &table.Column{
		Name:       "c",
		Dtype:      schema.Category,
		Values:     []any{"a", nil},
		Categories: []string{"a"},
	})
	if n != 1 {
		t.Fatalf("filled = %d", n)
	}
	if !reflect.DeepEqual(col.Categories, []string{"a", "unknown"}) {
		t.Fatalf("categories = %v", col.Categories)
	}
	if col.Values[1] != "unknown" {
		t.Fatalf("cell = %#v", col.Values[1])
	}
}

func TestFill_CategoryKeepsExistingLevel(t *testing.T) {
	col, _ := fillFrame(t, "a", &table.Column{
		Name:       "c",
		Dtype:      schema.Category,
		Values:     []any{"a", nil},
		Categories: []string{"a"},
	})
	if !reflect.DeepEqual(col.Categories, []string{"a"}) {
		t.Fatalf("categories = %v", col.Categories)
	}
}

func TestFill_DatetimeRequiresTimestamp(t *testing.T) {
	// A tagged timestamp literal coerces; a plain string does not.
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	col, n := fillFrame(t, "pd.Timestamp('2024-01-02')", &table.Column{
		Name: "d", Dtype: schema.Datetime, Values: []any{nil},
	})
	if n != 1 {
		t.Fatalf("filled = %d", n)
	}
	if got := col.Values[0].(time.Time); !got.Equal(want) {
		t.Fatalf("cell = %v", got)
	}

	col, n = fillFrame(t, "someday", &table.Column{
		Name: "d", Dtype: schema.Datetime, Values: []any{nil},
	})
	if n != 0 || col.Values[0] != nil {
		t.Fatalf("string fill should be skipped: %d %#v", n, col.Values)
	}
}

func TestFill_BooleanColumn(t *testing.T) {
	col, n := fillFrame(t, false, &table.Column{
		Name: "b", Dtype: schema.Boolean, Values: []any{true, nil},
	})
	if n != 1 || col.Values[1] != false {
		t.Fatalf("filled = %d, values = %#v", n, col.Values)
	}
}

func TestFill_UnnormalizedColumnSkipped(t *testing.T) {
	cc := mustConfig(t, []string{"raw"}, map[string]map[string]any{
		"raw": {"dtype": "string", "fill_na": "x"},
	})
	e := New(cc, zap.NewNop())
	f := mustFrame(t, objCol("raw", nil, "a"))

	if n := e.fillNA(f, zap.NewNop()); n != 0 {
		t.Fatalf("filled = %d, want 0", n)
	}
	col, _ := f.Col("raw")
	if col.Values[0] != nil {
		t.Fatalf("object column was filled: %#v", col.Values)
	}
}
