package normalizer

import (
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"tablenorm/internal/config"
)

func TestPreset_TextStressed(t *testing.T) {
	e := New(nil, zap.NewNop())
	f := mustFrame(t, objCol("c", " žluťoučký  kůň ", "   ", "ok"))
	f = e.textStressed(f, []string{"c"}, nil)

	col, _ := f.Col("c")
	want := []any{"ZLUTOUCKY KUN", nil, "OK"}
	if !reflect.DeepEqual(col.Values, want) {
		t.Fatalf("values = %#v", col.Values)
	}
}

func TestPreset_TextRelaxedKeepsCase(t *testing.T) {
	e := New(nil, zap.NewNop())
	f := mustFrame(t, objCol("c", " Mixed  Case "))
	f = e.textRelaxed(f, []string{"c"}, nil)

	col, _ := f.Col("c")
	if col.Values[0] != "Mixed Case" {
		t.Fatalf("cell = %q", col.Values[0])
	}
}

func TestPreset_NumericInt(t *testing.T) {
	e := New(nil, zap.NewNop())
	f := mustFrame(t, objCol("n", "1 000", "42%", "$7"))
	f = e.numericInt(f, []string{"n"}, nil)

	col, _ := f.Col("n")
	want := []any{int64(1000), int64(42), int64(7)}
	if !reflect.DeepEqual(col.Values, want) {
		t.Fatalf("values = %#v", col.Values)
	}
}

func TestPreset_DateDayfirst(t *testing.T) {
	e := New(nil, zap.NewNop())
	f := mustFrame(t, objCol("d", "05/06/2024", "2024-01-02"))
	f = e.dateDayfirst(f, []string{"d"}, nil)

	col, _ := f.Col("d")
	got := col.Values[0].(time.Time)
	if want := time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("cell = %v, want %v", got, want)
	}
}

func TestPreset_IgnoresConfiguredParams(t *testing.T) {
	e := New(nil, zap.NewNop())
	f := mustFrame(t, objCol("c", "a"))
	f = e.textStressed(f, []string{"c"}, config.Options{"case": "lower"})

	col, _ := f.Col("c")
	if col.Values[0] != "A" {
		t.Fatalf("cell = %q, want preset casing", col.Values[0])
	}
}
