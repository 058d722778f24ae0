package config

import (
	"sort"

	"go.uber.org/zap"

	"tablenorm/internal/schema"
)

// RawStep is one pipeline step as read from a document, before canonical
// CallSpec construction. The loader emits these instead of a plain map so
// that document order survives (Go map iteration would not preserve it).
type RawStep struct {
	Method string
	Params map[string]any
}

// ColumnConfig describes a single output column in full:
// identity, dtype, the aliases under which raw data may address it, the
// markers that count as missing, the fill value, and the parsed review and
// normalization pipelines.
//
// Instances are built once at config-load time and never mutated. The
// pipeline fields are always nil or a slice of CallSpec; the three legacy
// document shapes (bare string, method-to-params mapping, step list) are
// resolved at construction and never leak downstream.
type ColumnConfig struct {
	Name        string
	Dtype       schema.Dtype
	Description string

	// Aliases always contains Name. Case-sensitive, deduplicated.
	Aliases map[string]struct{}

	// NAValues holds the cast missing-value markers. String and numeric
	// markers match cells by equality, *regexp.Regexp markers by regex
	// test. nil when the column declares none.
	NAValues []any

	// FillNA replaces missing cells during the fill phase. nil means the
	// column is never filled.
	FillNA any

	Reviews       []CallSpec
	Normalization []CallSpec
}

// NewColumnConfig builds one column's configuration from its raw document
// entry. name is the authoritative column identifier (the key of the
// columns mapping).
//
// Errors:
//   - missing or unsupported dtype
//   - a reviews/normalization value that is none of the accepted shapes
//   - an invalid tagged typed literal anywhere in the entry
//
// Edge cases:
//   - a scalar na_values entry is promoted to a one-element list
//   - an aliases value of the wrong type is logged and ignored (the column
//     still registers under its own name)
func NewColumnConfig(name string, spec map[string]any, log *zap.Logger) (*ColumnConfig, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if name == "" {
		return nil, shapeErrf("columns", "column name must not be empty")
	}

	path := "columns." + name

	rawDtype, ok := spec["dtype"].(string)
	if !ok {
		return nil, shapeErrf(path+".dtype", "required string field is missing")
	}
	dtype, err := schema.Parse(rawDtype)
	if err != nil {
		return nil, shapeErrf(path+".dtype", "%v", err)
	}

	c := &ColumnConfig{Name: name, Dtype: dtype}
	if s, ok := spec["description"].(string); ok {
		c.Description = s
	}

	c.setAliases(spec["aliases"], path, log)

	if c.NAValues, err = castMarkers(spec["na_values"], path+".na_values", log); err != nil {
		return nil, err
	}
	if raw := spec["fill_na"]; raw != nil {
		if c.FillNA, err = castValue(raw, path+".fill_na", log); err != nil {
			return nil, err
		}
	}

	if c.Reviews, err = parsePipeline(spec["reviews"], path+".reviews", log); err != nil {
		return nil, err
	}
	if c.Normalization, err = parsePipeline(spec["normalization"], path+".normalization", log); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ColumnConfig) setAliases(raw any, path string, log *zap.Logger) {
	c.Aliases = map[string]struct{}{}
	switch t := raw.(type) {
	case nil:
	case string:
		c.Aliases[t] = struct{}{}
	case []string:
		for _, a := range t {
			c.Aliases[a] = struct{}{}
		}
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok {
				c.Aliases[s] = struct{}{}
			} else {
				log.Warn("ignoring non-string alias entry",
					zap.String("path", path+".aliases"), zap.Any("entry", e))
			}
		}
	default:
		log.Warn("aliases must be a string or a list of strings; ignoring",
			zap.String("path", path+".aliases"))
	}
	c.Aliases[c.Name] = struct{}{}
}

func castMarkers(raw any, path string, log *zap.Logger) ([]any, error) {
	var entries []any
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		entries = t
	case []string:
		entries = make([]any, len(t))
		for i, s := range t {
			entries[i] = s
		}
	default:
		entries = []any{raw}
	}

	out := make([]any, len(entries))
	for i, e := range entries {
		cast, err := castValue(e, path, log)
		if err != nil {
			return nil, err
		}
		out[i] = cast
	}
	return out, nil
}

// parsePipeline resolves the accepted pipeline shapes into canonical
// CallSpec slices:
//
//	nil                      -> no pipeline
//	"method"                 -> one bare step
//	[]RawStep / step list    -> N steps in document order
//	map[method]params        -> N steps in sorted key order (plain Go maps
//	                            carry no document order; the loader never
//	                            produces this shape for multi-step pipelines)
//	[]CallSpec               -> already parsed, kept as is
//
// Anything else is a fatal shape error naming the field.
func parsePipeline(raw any, path string, log *zap.Logger) ([]CallSpec, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil

	case []CallSpec:
		return t, nil

	case string:
		cs, err := NewCallSpec(t, nil, log)
		if err != nil {
			return nil, err
		}
		return []CallSpec{cs}, nil

	case []RawStep:
		out := make([]CallSpec, 0, len(t))
		for _, step := range t {
			cs, err := NewCallSpec(step.Method, step.Params, log)
			if err != nil {
				return nil, err
			}
			out = append(out, cs)
		}
		return out, nil

	case []any:
		out := make([]CallSpec, 0, len(t))
		for _, e := range t {
			switch step := e.(type) {
			case string:
				cs, err := NewCallSpec(step, nil, log)
				if err != nil {
					return nil, err
				}
				out = append(out, cs)
			case RawStep:
				cs, err := NewCallSpec(step.Method, step.Params, log)
				if err != nil {
					return nil, err
				}
				out = append(out, cs)
			case map[string]any:
				if len(step) != 1 {
					return nil, shapeErrf(path, "a step list entry must be a single method: params mapping")
				}
				for method, params := range step {
					cs, err := NewCallSpec(method, asParams(params), log)
					if err != nil {
						return nil, err
					}
					out = append(out, cs)
				}
			default:
				return nil, shapeErrf(path, "unsupported step entry of type %T", e)
			}
		}
		return out, nil

	case map[string]any:
		methods := make([]string, 0, len(t))
		for m := range t {
			methods = append(methods, m)
		}
		sort.Strings(methods)

		out := make([]CallSpec, 0, len(methods))
		for _, m := range methods {
			cs, err := NewCallSpec(m, asParams(t[m]), log)
			if err != nil {
				return nil, err
			}
			out = append(out, cs)
		}
		return out, nil
	}

	return nil, shapeErrf(path, "unsupported pipeline shape %T", raw)
}

// asParams keeps the historic leniency of step construction: anything that
// is not a mapping counts as "no parameters".
func asParams(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case Options:
		return t
	}
	return nil
}

// IsAlias reports whether s addresses this column.
func (c *ColumnConfig) IsAlias(s string) bool {
	_, ok := c.Aliases[s]
	return ok
}

// NormalizationHashes returns one hash string per normalization step, or
// ["None"] when the column has no pipeline. A non-nil less reorders each
// step's rendered parameter pairs; that affects only the returned strings,
// never execution.
func (c *ColumnConfig) NormalizationHashes(less func(a, b string) bool) []string {
	if len(c.Normalization) == 0 {
		return []string{"None"}
	}
	out := make([]string, len(c.Normalization))
	for i, cs := range c.Normalization {
		if less == nil {
			out[i] = cs.Hash()
		} else {
			out[i] = cs.hashOrdered(less)
		}
	}
	return out
}

// ToDict serializes the column back into document form. Typed literals are
// rendered in their legacy string encoding, and a single-step pipeline
// without parameters collapses to the bare method string. Reconstructing
// from the result yields a CallSpec-equal configuration.
func (c *ColumnConfig) ToDict() map[string]any {
	d := map[string]any{"dtype": string(c.Dtype)}
	if c.Description != "" {
		d["description"] = c.Description
	}

	aliases := make([]string, 0, len(c.Aliases))
	for a := range c.Aliases {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	d["aliases"] = aliases

	if len(c.NAValues) > 0 {
		vals := make([]any, len(c.NAValues))
		for i, v := range c.NAValues {
			vals[i] = encodeDocValue(v)
		}
		d["na_values"] = vals
	}
	if c.FillNA != nil {
		d["fill_na"] = encodeDocValue(c.FillNA)
	}
	if p := serializePipeline(c.Reviews); p != nil {
		d["reviews"] = p
	}
	if p := serializePipeline(c.Normalization); p != nil {
		d["normalization"] = p
	}
	return d
}

func serializePipeline(steps []CallSpec) any {
	if len(steps) == 0 {
		return nil
	}
	if len(steps) == 1 && len(steps[0].Params) == 0 {
		return steps[0].Method
	}
	out := make([]any, 0, len(steps))
	for _, cs := range steps {
		if len(cs.Params) == 0 {
			out = append(out, cs.Method)
			continue
		}
		out = append(out, map[string]any{cs.Method: encodeDocValue(map[string]any(cs.ParamsMap()))})
	}
	return out
}

// encodeDocValue renders typed literals back into their string encoding so
// the result can be marshaled to YAML or JSON.
func encodeDocValue(v any) any {
	if s, ok := encodeLiteral(v); ok {
		return s
	}
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = encodeDocValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = encodeDocValue(e)
		}
		return out
	}
	return v
}
