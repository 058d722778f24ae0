package normalizer

import (
	"reflect"
	"testing"

	"go.uber.org/zap"

	"tablenorm/internal/config"
	"tablenorm/internal/schema"
)

func TestCategorical_ObservedLevels(t *testing.T) {
	e := New(nil, zap.NewNop())
	f := mustFrame(t, objCol("c", "b", "a", "b", nil))
	f = e.categorical(f, []string{"c"}, nil)

	col, _ := f.Col("c")
	if col.Dtype != schema.Category {
		t.Fatalf("dtype = %v", col.Dtype)
	}
	// First appearance order, missing cells contribute nothing.
	if !reflect.DeepEqual(col.Categories, []string{"b", "a"}) {
		t.Fatalf("categories = %v", col.Categories)
	}
	if col.Ordered {
		t.Fatal("ordered should default to false")
	}
}

func TestCategorical_SortedOrdered(t *testing.T) {
	e := New(nil, zap.NewNop())
	f := mustFrame(t, objCol("c", "b", "a"))
	f = e.categorical(f, []string{"c"}, config.Options{
		"sort_categories": true,
		"ordered":         true,
	})

	col, _ := f.Col("c")
	if !reflect.DeepEqual(col.Categories, []string{"a", "b"}) {
		t.Fatalf("categories = %v", col.Categories)
	}
	if !col.Ordered {
		t.Fatal("ordered flag lost")
	}
}

func TestCategorical_TextParamsApply(t *testing.T) {
	e := New(nil, zap.NewNop())
	f := mustFrame(t, objCol("c", " praha ", "PRAHA", "brno"))
	f = e.categorical(f, []string{"c"}, config.Options{
		"strip": "both",
		"case":  "upper",
	})

	col, _ := f.Col("c")
	if !reflect.DeepEqual(col.Values, []any{"PRAHA", "PRAHA", "BRNO"}) {
		t.Fatalf("values = %#v", col.Values)
	}
	if !reflect.DeepEqual(col.Categories, []string{"PRAHA", "BRNO"}) {
		t.Fatalf("categories = %v", col.Categories)
	}
}
