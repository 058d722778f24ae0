package config

import (
	"errors"
	"reflect"
	"testing"

	"tablenorm/internal/schema"
)

func mustColumn(t *testing.T, name string, spec map[string]any) *ColumnConfig {
	t.Helper()
	col, err := NewColumnConfig(name, spec, nil)
	if err != nil {
		t.Fatalf("NewColumnConfig(%q): %v", name, err)
	}
	return col
}

func TestNewColumnConfig_DtypeRequired(t *testing.T) {
	_, err := NewColumnConfig("amount", map[string]any{}, nil)
	var shape *ShapeError
	if !errors.As(err, &shape) {
		t.Fatalf("want *ShapeError for missing dtype, got %v", err)
	}

	_, err = NewColumnConfig("amount", map[string]any{"dtype": "decimal128"}, nil)
	if !errors.As(err, &shape) {
		t.Fatalf("want *ShapeError for unsupported dtype, got %v", err)
	}
}

func TestNewColumnConfig_AliasesAlwaysIncludeName(t *testing.T) {
	col := mustColumn(t, "amount", map[string]any{
		"dtype":   "Float64",
		"aliases": []any{"amt", "total"},
	})

	for _, a := range []string{"amount", "amt", "total"} {
		if !col.IsAlias(a) {
			t.Fatalf("missing alias %q", a)
		}
	}
	if col.IsAlias("Amount") {
		t.Fatalf("aliases must be case-sensitive")
	}
}

func TestNewColumnConfig_BadAliasesIgnored(t *testing.T) {
	col := mustColumn(t, "amount", map[string]any{
		"dtype":   "Float64",
		"aliases": 7,
	})
	if len(col.Aliases) != 1 || !col.IsAlias("amount") {
		t.Fatalf("bad aliases value should leave only the name, got %v", col.Aliases)
	}
}

func TestNewColumnConfig_ScalarNAValuePromoted(t *testing.T) {
	col := mustColumn(t, "amount", map[string]any{
		"dtype":     "Float64",
		"na_values": "N/A",
	})
	if len(col.NAValues) != 1 || col.NAValues[0] != "N/A" {
		t.Fatalf("na_values = %#v, want [N/A]", col.NAValues)
	}
}

func TestNewColumnConfig_PipelineShapes(t *testing.T) {
	bare := mustColumn(t, "city", map[string]any{
		"dtype":         "string",
		"normalization": "text_stressed",
	})
	if len(bare.Normalization) != 1 || bare.Normalization[0].Hash() != "text_stressed" {
		t.Fatalf("bare string pipeline mis-parsed: %#v", bare.Normalization)
	}

	steps := mustColumn(t, "city", map[string]any{
		"dtype": "string",
		"normalization": []RawStep{
			{Method: "text", Params: map[string]any{"strip": "both"}},
			{Method: "categorical", Params: map[string]any{"sort_categories": true}},
		},
	})
	if len(steps.Normalization) != 2 {
		t.Fatalf("step list pipeline mis-parsed: %#v", steps.Normalization)
	}
	if steps.Normalization[0].Method != "text" || steps.Normalization[1].Method != "categorical" {
		t.Fatalf("step order lost: %#v", steps.Normalization)
	}

	parsed := steps.Normalization
	reused := mustColumn(t, "city", map[string]any{
		"dtype":         "string",
		"normalization": parsed,
	})
	if len(reused.Normalization) != 2 || !reused.Normalization[0].Equal(parsed[0]) {
		t.Fatalf("pre-parsed pipeline should pass through")
	}

	none := mustColumn(t, "city", map[string]any{"dtype": "string"})
	if none.Normalization != nil {
		t.Fatalf("absent pipeline should stay nil")
	}
}

func TestNewColumnConfig_PipelineMappingSortedOrder(t *testing.T) {
	// Plain Go maps carry no document order; the parser falls back to
	// sorted method order for determinism.
	col := mustColumn(t, "city", map[string]any{
		"dtype": "string",
		"normalization": map[string]any{
			"text":        map[string]any{"strip": "both"},
			"categorical": nil,
		},
	})
	if len(col.Normalization) != 2 {
		t.Fatalf("mapping pipeline mis-parsed: %#v", col.Normalization)
	}
	if col.Normalization[0].Method != "categorical" || col.Normalization[1].Method != "text" {
		t.Fatalf("want sorted method order, got %v then %v",
			col.Normalization[0].Method, col.Normalization[1].Method)
	}
}

func TestNewColumnConfig_BadPipelineShapeFatal(t *testing.T) {
	_, err := NewColumnConfig("city", map[string]any{
		"dtype":         "string",
		"normalization": 12,
	}, nil)
	var shape *ShapeError
	if !errors.As(err, &shape) {
		t.Fatalf("want *ShapeError, got %v", err)
	}
	if shape.Path != "columns.city.normalization" {
		t.Fatalf("error should name the offending field, got %q", shape.Path)
	}
}

func TestColumnConfig_NormalizationHashes(t *testing.T) {
	none := mustColumn(t, "city", map[string]any{"dtype": "string"})
	if got := none.NormalizationHashes(nil); !reflect.DeepEqual(got, []string{"None"}) {
		t.Fatalf("hashes for nil pipeline = %v", got)
	}

	col := mustColumn(t, "city", map[string]any{
		"dtype": "string",
		"normalization": []RawStep{
			{Method: "text", Params: map[string]any{"strip": "both", "case": "upper"}},
			{Method: "categorical"},
		},
	})
	got := col.NormalizationHashes(nil)
	want := []string{
		"text: ('case', 'upper') - ('strip', 'both')",
		"categorical",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("hashes = %v, want %v", got, want)
	}

	rev := col.NormalizationHashes(func(a, b string) bool { return a > b })
	if rev[0] != "text: ('strip', 'both') - ('case', 'upper')" {
		t.Fatalf("custom order ignored: %v", rev)
	}
}

func TestColumnConfig_ToDict_RoundTrip(t *testing.T) {
	col := mustColumn(t, "amount", map[string]any{
		"dtype":       "Float64",
		"description": "invoice amount",
		"aliases":     []any{"amt"},
		"na_values":   []any{"N/A", "re.Pattern('^\\s*$')"},
		"fill_na":     0,
		"normalization": []RawStep{
			{Method: "numeric", Params: map[string]any{"dtype": "Float64", "cleanup_pattern": "[$,]"}},
			{Method: "text_relaxed"},
		},
	})

	back := mustColumn(t, "amount", col.ToDict())

	if back.Dtype != col.Dtype || back.Description != col.Description {
		t.Fatalf("scalar fields lost: %+v vs %+v", back, col)
	}
	if !reflect.DeepEqual(back.Aliases, col.Aliases) {
		t.Fatalf("aliases differ: %v vs %v", back.Aliases, col.Aliases)
	}
	if len(back.Normalization) != len(col.Normalization) {
		t.Fatalf("pipeline length differs")
	}
	for i := range col.Normalization {
		if !back.Normalization[i].Equal(col.Normalization[i]) {
			t.Fatalf("step %d differs: %q vs %q", i,
				back.Normalization[i].Hash(), col.Normalization[i].Hash())
		}
	}
	if !freeze(back.NAValues).Equal(freeze(col.NAValues)) {
		t.Fatalf("na_values differ: %#v vs %#v", back.NAValues, col.NAValues)
	}
	if !freeze(back.FillNA).Equal(freeze(col.FillNA)) {
		t.Fatalf("fill_na differs: %#v vs %#v", back.FillNA, col.FillNA)
	}
}

func TestColumnConfig_ToDict_BareStringCollapse(t *testing.T) {
	col := mustColumn(t, "city", map[string]any{
		"dtype":         "string",
		"normalization": "text_stressed",
	})
	d := col.ToDict()
	if d["normalization"] != "text_stressed" {
		t.Fatalf("single bare step should serialize to the method string, got %#v", d["normalization"])
	}
}

func TestColumnConfig_DtypeVocabulary(t *testing.T) {
	col := mustColumn(t, "when", map[string]any{"dtype": "datetime64[ns, UTC]"})
	if col.Dtype != schema.DatetimeUTC {
		t.Fatalf("dtype = %q", col.Dtype)
	}
}
