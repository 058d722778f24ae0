package config

// Options is a free-form parameter bag with typed accessors. Pipeline steps
// expose their parameters this way (see CallSpec.ParamsMap), and the CSV
// reader options use the same shape.
//
// Accessors perform minimal coercion and fall back to the given default when
// a key is absent or has an unexpected type. YAML decodes integers as int
// and JSON decodes every number as float64, so the numeric accessor accepts
// both spellings.
type Options map[string]any

// String returns the string value for key, or def when key is missing or not
// a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key, or def when key is missing or not a
// bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the integer value for key, or def. Accepts int, int64 and
// float64 representations.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def when key is
// missing or empty. Used for single-character settings such as the CSV
// delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringSlice returns a []string for key when the value is an array of
// strings (or an []any containing strings). Returns nil when the key is
// missing or not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []string:
			return vv
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		}
	}
	return nil
}

// StringMap returns a map[string]string for key when the value is an object
// with string values. Non-string values are ignored. Returns an empty map
// when the key is missing or not an object.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// Any returns the raw value for key, which may be a nested map, slice or
// primitive. Useful when the caller wants to type-switch itself, e.g. a
// cleanup pattern that may arrive as a string or as a compiled regexp.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}
