package config

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Value is the canonical frozen form of one parameter value. Freezing
// converts every mutable container into an immutable equivalent with a
// single defined ordering, so that two semantically identical parameter
// sets compare equal and render to the same hash string no matter how the
// source document spelled them:
//
//	mapping  -> Pairs, sorted by key
//	sequence -> Seq, order preserved
//	set      -> Set, elements sorted by canonical rendering
//	scalar   -> Scalar (nil, bool, string, int64, float64, uint64,
//	            *regexp.Regexp, time.Time in UTC)
//
// Integral floats are narrowed to int64 during freezing. YAML decodes "100"
// as an int and JSON decodes it as 100.0; without narrowing, the same
// document would produce different specs depending on the file format.
type Value struct {
	kind   valueKind
	scalar any
	pairs  []Pair
	seq    []Value
	set    []Value
}

// Pair is one key/value entry of a frozen mapping.
type Pair struct {
	Key string
	Val Value
}

type valueKind uint8

const (
	kindScalar valueKind = iota
	kindPairs
	kindSeq
	kindSet
)

func scalarValue(v any) Value { return Value{kind: kindScalar, scalar: v} }

// freeze converts a raw configuration value into canonical form. It accepts
// the shapes YAML/JSON decoding produces plus common typed Go containers;
// other map and slice types go through a reflect fallback, and anything else
// is kept as an opaque scalar.
func freeze(v any) Value {
	switch t := v.(type) {
	case nil:
		return scalarValue(nil)
	case Value:
		return t
	case bool:
		return scalarValue(t)
	case string:
		return scalarValue(t)
	case *regexp.Regexp:
		return scalarValue(t)
	case time.Time:
		return scalarValue(t.UTC())
	case int:
		return scalarValue(int64(t))
	case int8:
		return scalarValue(int64(t))
	case int16:
		return scalarValue(int64(t))
	case int32:
		return scalarValue(int64(t))
	case int64:
		return scalarValue(t)
	case uint:
		return freezeUint(uint64(t))
	case uint8:
		return scalarValue(int64(t))
	case uint16:
		return scalarValue(int64(t))
	case uint32:
		return scalarValue(int64(t))
	case uint64:
		return freezeUint(t)
	case float32:
		return scalarValue(normalizeNumber(float64(t)))
	case float64:
		return scalarValue(normalizeNumber(t))
	case Options:
		return freezeStringMap(t)
	case map[string]any:
		return freezeStringMap(t)
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, s := range t {
			m[k] = s
		}
		return freezeStringMap(m)
	case []any:
		return freezeSeq(t)
	case []string:
		vals := make([]any, len(t))
		for i, s := range t {
			vals[i] = s
		}
		return freezeSeq(vals)
	case []int:
		vals := make([]any, len(t))
		for i, n := range t {
			vals[i] = n
		}
		return freezeSeq(vals)
	case []float64:
		vals := make([]any, len(t))
		for i, f := range t {
			vals[i] = f
		}
		return freezeSeq(vals)
	case map[string]struct{}:
		elems := make([]any, 0, len(t))
		for k := range t {
			elems = append(elems, k)
		}
		return freezeSet(elems)
	case map[any]struct{}:
		elems := make([]any, 0, len(t))
		for k := range t {
			elems = append(elems, k)
		}
		return freezeSet(elems)
	}
	return freezeReflect(v)
}

func freezeReflect(v any) Value {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Elem() == reflect.TypeOf(struct{}{}) {
			elems := make([]any, 0, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				elems = append(elems, iter.Key().Interface())
			}
			return freezeSet(elems)
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[fmt.Sprint(iter.Key().Interface())] = iter.Value().Interface()
		}
		return freezeStringMap(m)
	case reflect.Slice, reflect.Array:
		vals := make([]Value, rv.Len())
		for i := range vals {
			vals[i] = freeze(rv.Index(i).Interface())
		}
		return Value{kind: kindSeq, seq: vals}
	}
	return scalarValue(v)
}

func freezeUint(u uint64) Value {
	if u <= math.MaxInt64 {
		return scalarValue(int64(u))
	}
	return scalarValue(u)
}

// normalizeNumber narrows integral floats to int64 so that number equality
// does not depend on the decoder that produced the value.
func normalizeNumber(f float64) any {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) <= 1<<53 {
		return int64(f)
	}
	return f
}

func freezeStringMap(m map[string]any) Value {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]Pair, len(keys))
	for i, k := range keys {
		pairs[i] = Pair{Key: k, Val: freeze(m[k])}
	}
	return Value{kind: kindPairs, pairs: pairs}
}

func freezeSeq(vals []any) Value {
	out := make([]Value, len(vals))
	for i, v := range vals {
		out[i] = freeze(v)
	}
	return Value{kind: kindSeq, seq: out}
}

func freezeSet(elems []any) Value {
	out := make([]Value, len(elems))
	for i, v := range elems {
		out[i] = freeze(v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return Value{kind: kindSet, set: out}
}

// unfreeze reconstructs a plain value from canonical form: Pairs become a
// map, Seq a slice, scalars pass through. Set also becomes a slice, in
// canonical element order, because plain Go maps cannot key on arbitrary
// frozen elements and YAML/JSON have no set type anyway.
func unfreeze(v Value) any {
	switch v.kind {
	case kindPairs:
		m := make(map[string]any, len(v.pairs))
		for _, p := range v.pairs {
			m[p.Key] = unfreeze(p.Val)
		}
		return m
	case kindSeq:
		out := make([]any, len(v.seq))
		for i, e := range v.seq {
			out[i] = unfreeze(e)
		}
		return out
	case kindSet:
		out := make([]any, len(v.set))
		for i, e := range v.set {
			out[i] = unfreeze(e)
		}
		return out
	}
	return v.scalar
}

// Equal reports structural equality of two canonical values.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case kindPairs:
		if len(v.pairs) != len(o.pairs) {
			return false
		}
		for i := range v.pairs {
			if v.pairs[i].Key != o.pairs[i].Key || !v.pairs[i].Val.Equal(o.pairs[i].Val) {
				return false
			}
		}
		return true
	case kindSeq:
		return valuesEqual(v.seq, o.seq)
	case kindSet:
		return valuesEqual(v.set, o.set)
	}
	return scalarEqual(v.scalar, o.scalar)
}

func valuesEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func scalarEqual(a, b any) bool {
	switch at := a.(type) {
	case nil:
		return b == nil
	case bool:
		bt, ok := b.(bool)
		return ok && at == bt
	case string:
		bt, ok := b.(string)
		return ok && at == bt
	case int64:
		bt, ok := b.(int64)
		return ok && at == bt
	case uint64:
		bt, ok := b.(uint64)
		return ok && at == bt
	case float64:
		bt, ok := b.(float64)
		return ok && at == bt
	case *regexp.Regexp:
		bt, ok := b.(*regexp.Regexp)
		return ok && at.String() == bt.String()
	case time.Time:
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return renderScalar(a) == renderScalar(b)
}

// String renders the canonical form. Containers render in the legacy tuple
// style used by step hashes: mappings as tuples of ('key', value) pairs,
// sequences as tuples, sets as frozenset({...}).
func (v Value) String() string {
	var b strings.Builder
	v.render(&b)
	return b.String()
}

func (v Value) render(b *strings.Builder) {
	switch v.kind {
	case kindPairs:
		b.WriteByte('(')
		for i, p := range v.pairs {
			if i > 0 {
				b.WriteString(", ")
			}
			renderPair(b, p)
		}
		if len(v.pairs) == 1 {
			b.WriteByte(',')
		}
		b.WriteByte(')')
	case kindSeq:
		b.WriteByte('(')
		for i, e := range v.seq {
			if i > 0 {
				b.WriteString(", ")
			}
			e.render(b)
		}
		if len(v.seq) == 1 {
			b.WriteByte(',')
		}
		b.WriteByte(')')
	case kindSet:
		if len(v.set) == 0 {
			b.WriteString("frozenset()")
			return
		}
		b.WriteString("frozenset({")
		for i, e := range v.set {
			if i > 0 {
				b.WriteString(", ")
			}
			e.render(b)
		}
		b.WriteString("})")
	default:
		b.WriteString(renderScalar(v.scalar))
	}
}

func renderPair(b *strings.Builder, p Pair) {
	b.WriteString("('")
	b.WriteString(p.Key)
	b.WriteString("', ")
	p.Val.render(b)
	b.WriteByte(')')
}

func renderScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case bool:
		if t {
			return "True"
		}
		return "False"
	case string:
		return "'" + t + "'"
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	}
	if s, ok := encodeLiteral(v); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
