package config

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestCastValue_RegexSentinel(t *testing.T) {
	v, err := castValue("re.Pattern('^\\s*$')", "t", zap.NewNop())
	if err != nil {
		t.Fatalf("castValue: %v", err)
	}
	re, ok := v.(*regexp.Regexp)
	if !ok {
		t.Fatalf("got %T, want *regexp.Regexp", v)
	}
	if !re.MatchString("   ") || re.MatchString("x") {
		t.Fatalf("pattern %q behaves unexpectedly", re.String())
	}
}

func TestCastValue_TimestampSentinel(t *testing.T) {
	v, err := castValue("pd.Timestamp('2024-01-02')", "t", zap.NewNop())
	if err != nil {
		t.Fatalf("castValue: %v", err)
	}
	ts, ok := v.(time.Time)
	if !ok {
		t.Fatalf("got %T, want time.Time", v)
	}
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !ts.Equal(want) {
		t.Fatalf("timestamp = %v, want %v", ts, want)
	}
}

func TestCastValue_UnknownDtypeKeepsString(t *testing.T) {
	in := "np.Matrix('1 2; 3 4')"
	v, err := castValue(in, "t", zap.NewNop())
	if err != nil {
		t.Fatalf("castValue: %v", err)
	}
	if v != in {
		t.Fatalf("unknown literal dtype should pass through, got %#v", v)
	}
}

func TestCastValue_PlainValuesPassThrough(t *testing.T) {
	for _, in := range []any{"N/A", "", 42, 0.5, true, nil} {
		v, err := castValue(in, "t", zap.NewNop())
		if err != nil {
			t.Fatalf("castValue(%#v): %v", in, err)
		}
		if v != in {
			t.Fatalf("castValue(%#v) = %#v, want unchanged", in, v)
		}
	}
}

func TestCastValue_BadLegacyLiteralKeepsString(t *testing.T) {
	in := "re.Pattern('[unclosed')"
	v, err := castValue(in, "t", zap.NewNop())
	if err != nil {
		t.Fatalf("legacy literals must not fail hard: %v", err)
	}
	if v != in {
		t.Fatalf("got %#v, want the original string", v)
	}
}

func TestCastValue_TaggedRegex(t *testing.T) {
	v, err := castValue(map[string]any{"kind": "regex", "pattern": "^x+$"}, "t", zap.NewNop())
	if err != nil {
		t.Fatalf("castValue: %v", err)
	}
	re, ok := v.(*regexp.Regexp)
	if !ok || re.String() != "^x+$" {
		t.Fatalf("got %#v, want compiled ^x+$", v)
	}
}

func TestCastValue_TaggedTimestamp(t *testing.T) {
	v, err := castValue(map[string]any{"kind": "timestamp", "value": "2023-06-15 08:30:00"}, "t", zap.NewNop())
	if err != nil {
		t.Fatalf("castValue: %v", err)
	}
	ts, ok := v.(time.Time)
	if !ok || !ts.Equal(time.Date(2023, 6, 15, 8, 30, 0, 0, time.UTC)) {
		t.Fatalf("got %#v", v)
	}
}

func TestCastValue_TaggedBadPatternFails(t *testing.T) {
	_, err := castValue(map[string]any{"kind": "regex", "pattern": "[unclosed"}, "columns.a.na_values", zap.NewNop())
	var shape *ShapeError
	if !errors.As(err, &shape) {
		t.Fatalf("want *ShapeError, got %v", err)
	}
}

func TestCastValue_UntaggedMappingUntouched(t *testing.T) {
	in := map[string]any{"strip": "both"}
	v, err := castValue(in, "t", zap.NewNop())
	if err != nil {
		t.Fatalf("castValue: %v", err)
	}
	if m, ok := v.(map[string]any); !ok || m["strip"] != "both" {
		t.Fatalf("plain mappings should pass through, got %#v", v)
	}
}

func TestEncodeLiteral_RoundTrip(t *testing.T) {
	re := regexp.MustCompile(`\d+`)
	s, ok := encodeLiteral(re)
	if !ok || s != `re.Pattern('\d+')` {
		t.Fatalf("encodeLiteral(regexp) = %q, %v", s, ok)
	}
	back, err := castValue(s, "t", zap.NewNop())
	if err != nil {
		t.Fatalf("castValue: %v", err)
	}
	if back.(*regexp.Regexp).String() != re.String() {
		t.Fatalf("round trip lost the pattern: %#v", back)
	}

	ts := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	s, ok = encodeLiteral(ts)
	if !ok || s != "pd.Timestamp('2024-03-04 05:06:07')" {
		t.Fatalf("encodeLiteral(time) = %q, %v", s, ok)
	}
	back, err = castValue(s, "t", zap.NewNop())
	if err != nil {
		t.Fatalf("castValue: %v", err)
	}
	if !back.(time.Time).Equal(ts) {
		t.Fatalf("round trip lost the instant: %#v", back)
	}
}
