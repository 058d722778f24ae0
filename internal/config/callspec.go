package config

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

// CallSpec describes one pipeline step: a routine name plus its parameters
// in canonical frozen form. It is a value object: constructed once, never
// mutated afterwards, safe to compare and to group on through Hash.
//
// Canonical form means the parameter pairs are sorted by key and every value
// has been passed through the typed-literal caster and the freezer, so two
// specs built from semantically identical parameter mappings are equal
// regardless of key order or container spelling in the source document.
type CallSpec struct {
	Method string
	Params []Pair
}

// NewCallSpec builds a canonical spec from a raw parameter mapping.
//
// Edge cases:
//   - params == nil yields a spec with no parameters (a bare step).
//   - Values that look like typed literals are decoded first (see cast.go),
//     then frozen.
//
// Errors:
//   - Only invalid tagged literals inside params produce an error; legacy
//     literal strings degrade to warnings on log.
func NewCallSpec(method string, params map[string]any, log *zap.Logger) (CallSpec, error) {
	if log == nil {
		log = zap.NewNop()
	}

	cs := CallSpec{Method: method}
	if len(params) == 0 {
		return cs, nil
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cs.Params = make([]Pair, 0, len(keys))
	for _, k := range keys {
		cast, err := castValue(params[k], method+"."+k, log)
		if err != nil {
			return CallSpec{}, err
		}
		cs.Params = append(cs.Params, Pair{Key: k, Val: freeze(cast)})
	}
	return cs, nil
}

// Equal reports whether two specs have the same method and structurally
// equal canonical parameters.
func (cs CallSpec) Equal(o CallSpec) bool {
	if cs.Method != o.Method || len(cs.Params) != len(o.Params) {
		return false
	}
	for i := range cs.Params {
		if cs.Params[i].Key != o.Params[i].Key || !cs.Params[i].Val.Equal(o.Params[i].Val) {
			return false
		}
	}
	return true
}

// Hash renders the deterministic string form of the step: the bare method
// name when there are no parameters, otherwise
//
//	"method: ('k1', v1) - ('k2', v2)"
//
// in canonical pair order. Hash is injective over canonical forms and doubles
// as the grouping key for the execution plan and as the log representation.
func (cs CallSpec) Hash() string {
	if len(cs.Params) == 0 {
		return cs.Method
	}
	var b strings.Builder
	b.WriteString(cs.Method)
	b.WriteString(": ")
	for i, p := range cs.Params {
		if i > 0 {
			b.WriteString(" - ")
		}
		renderPair(&b, p)
	}
	return b.String()
}

// hashOrdered renders the hash with parameter pairs ordered by less instead
// of the canonical key order. Log/compare aid only; grouping always uses
// Hash.
func (cs CallSpec) hashOrdered(less func(a, b string) bool) string {
	if len(cs.Params) == 0 {
		return cs.Method
	}
	pairs := append([]Pair(nil), cs.Params...)
	sort.SliceStable(pairs, func(i, j int) bool { return less(pairs[i].Key, pairs[j].Key) })

	var b strings.Builder
	b.WriteString(cs.Method)
	b.WriteString(": ")
	for i, p := range pairs {
		if i > 0 {
			b.WriteString(" - ")
		}
		renderPair(&b, p)
	}
	return b.String()
}

// ParamsMap reconstructs a plain parameter mapping from the canonical pairs,
// exactly inverting the freezer. The engine hands this to transformation
// routines as their options bag.
func (cs CallSpec) ParamsMap() Options {
	if len(cs.Params) == 0 {
		return Options{}
	}
	m := make(Options, len(cs.Params))
	for _, p := range cs.Params {
		m[p.Key] = unfreeze(p.Val)
	}
	return m
}
