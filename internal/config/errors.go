package config

import "fmt"

// ShapeError reports configuration content the loader cannot accept: a
// missing required field, or a field whose value has an unusable shape.
// Shape errors are fatal and surface before any table is touched.
type ShapeError struct {
	Path string // dotted location, e.g. "columns.amount.normalization"
	Msg  string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Path, e.Msg)
}

func shapeErrf(path, format string, a ...any) *ShapeError {
	return &ShapeError{Path: path, Msg: fmt.Sprintf(format, a...)}
}

// KeyError reports a lookup of a key that is neither a column name nor a
// registered alias.
type KeyError struct {
	Key string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("config: unknown column or alias %q", e.Key)
}
