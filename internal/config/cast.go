package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Column documents can embed two kinds of typed literals inside otherwise
// plain values: compiled regular expressions and timestamps. The primary
// encoding is an explicit tagged mapping:
//
//	{kind: regex, pattern: '^\s*$'}
//	{kind: timestamp, value: '2024-01-02'}
//
// The legacy string encoding "re.Pattern('...')" / "pd.Timestamp('...')" is
// still accepted as a compatibility shim. Tagged mappings fail loudly on bad
// payloads; the legacy shim only warns and passes the original string
// through, because historic documents rely on unrecognized strings surviving
// untouched.

// literalRe matches the legacy string encoding of a typed literal. Group 1
// is the type name, group 2 the single-quoted payload.
var literalRe = regexp.MustCompile(`^(.+?)\('(.+?)'\)$`)

// timestampLayouts are tried in order by the timestamp caster. The first
// layout is also the canonical encoding layout, so encoded values re-parse.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// castValue decodes typed literals in a raw configuration value.
//
// Edge cases:
//   - Non-string, non-tagged-mapping input passes through unchanged.
//   - A string that does not look like a typed literal passes through.
//   - A legacy literal with an unknown type name, an invalid pattern or an
//     unparseable timestamp logs a warning and passes through as the
//     original string.
//
// Errors:
//   - Only the tagged-mapping form returns errors (a *ShapeError); explicit
//     tags are author intent and deserve validation.
func castValue(v any, path string, log *zap.Logger) (any, error) {
	if m, ok := v.(map[string]any); ok {
		return castTagged(m, path)
	}

	s, ok := v.(string)
	if !ok {
		return v, nil
	}

	m := literalRe.FindStringSubmatch(s)
	if m == nil {
		return s, nil
	}

	dtype := strings.TrimSpace(m[1])
	payload := strings.TrimSpace(m[2])

	switch dtype {
	case "re.Pattern":
		re, err := regexp.Compile(payload)
		if err != nil {
			log.Warn("invalid regex literal, keeping raw string",
				zap.String("path", path), zap.String("value", s), zap.Error(err))
			return s, nil
		}
		return re, nil

	case "pd.Timestamp":
		t, err := parseTimestamp(payload)
		if err != nil {
			log.Warn("invalid timestamp literal, keeping raw string",
				zap.String("path", path), zap.String("value", s), zap.Error(err))
			return s, nil
		}
		return t, nil

	default:
		log.Warn("unknown literal dtype, keeping raw string",
			zap.String("path", path), zap.String("dtype", dtype))
		return s, nil
	}
}

// castTagged decodes the tagged-mapping literal form. Mappings without a
// recognized "kind" are returned unchanged so nested parameter mappings are
// not swallowed.
func castTagged(m map[string]any, path string) (any, error) {
	kind, _ := m["kind"].(string)
	switch kind {
	case "regex":
		pat, ok := m["pattern"].(string)
		if !ok {
			return nil, shapeErrf(path, "regex literal requires a string 'pattern'")
		}
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, shapeErrf(path, "invalid regex literal %q: %v", pat, err)
		}
		return re, nil

	case "timestamp":
		val, ok := m["value"].(string)
		if !ok {
			return nil, shapeErrf(path, "timestamp literal requires a string 'value'")
		}
		t, err := parseTimestamp(val)
		if err != nil {
			return nil, shapeErrf(path, "invalid timestamp literal %q: %v", val, err)
		}
		return t, nil

	default:
		return m, nil
	}
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// encodeLiteral renders a typed value back into its legacy string encoding,
// for hashes and document round-trips. The bool result reports whether v was
// a typed literal at all.
func encodeLiteral(v any) (string, bool) {
	switch t := v.(type) {
	case *regexp.Regexp:
		return fmt.Sprintf("re.Pattern('%s')", t.String()), true
	case time.Time:
		return fmt.Sprintf("pd.Timestamp('%s')", t.UTC().Format(timestampLayouts[0])), true
	}
	return "", false
}
