// Package table holds the in-memory column store the normalization engine
// works on. A Frame is a set of equally sized named columns; every cell is
// either nil (missing) or a value of the column's dtype cell type:
//
//	object, string, category  -> string
//	Int64                     -> int64
//	Float64                   -> float64
//	datetime64[*]             -> time.Time
//	boolean                   -> bool
//
// Columns arriving from CSV start as dtype object with string cells; the
// normalization routines are what move a column onto a typed dtype.
package table

import (
	"fmt"
	"time"

	"tablenorm/internal/schema"
)

// Column is one named series. Values is the cell storage, nil meaning
// missing. Categories and Ordered only carry meaning when Dtype is
// category: Categories lists the observed levels in their canonical
// order.
type Column struct {
	Name       string
	Dtype      schema.Dtype
	Values     []any
	Categories []string
	Ordered    bool
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.Values) }

// CountNA returns how many cells are missing.
func (c *Column) CountNA() int {
	n := 0
	for _, v := range c.Values {
		if v == nil {
			n++
		}
	}
	return n
}

// Frame is an ordered collection of columns with unique names.
type Frame struct {
	cols   []*Column
	byName map[string]int
}

// NewFrame builds a frame from columns. Column names must be unique and
// all columns must have the same length.
func NewFrame(cols ...*Column) (*Frame, error) {
	f := &Frame{byName: make(map[string]int, len(cols))}
	for _, c := range cols {
		if err := f.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// AddColumn appends a column. It rejects duplicate names and length
// mismatches against the columns already present.
func (f *Frame) AddColumn(c *Column) error {
	if c == nil || c.Name == "" {
		return fmt.Errorf("table: column needs a name")
	}
	if _, ok := f.byName[c.Name]; ok {
		return fmt.Errorf("table: duplicate column %q", c.Name)
	}
	if len(f.cols) > 0 && c.Len() != f.NumRows() {
		return fmt.Errorf("table: column %q has %d rows, frame has %d", c.Name, c.Len(), f.NumRows())
	}
	f.byName[c.Name] = len(f.cols)
	f.cols = append(f.cols, c)
	return nil
}

// NumRows returns the row count (0 for an empty frame).
func (f *Frame) NumRows() int {
	if len(f.cols) == 0 {
		return 0
	}
	return f.cols[0].Len()
}

// NumCols returns the column count.
func (f *Frame) NumCols() int { return len(f.cols) }

// Names returns the column names in frame order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether a column with that exact name exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.byName[name]
	return ok
}

// Col returns the named column, or false when absent. The returned
// column is the frame's own storage, not a copy.
func (f *Frame) Col(name string) (*Column, bool) {
	ix, ok := f.byName[name]
	if !ok {
		return nil, false
	}
	return f.cols[ix], true
}

// Columns returns the backing columns in frame order. Callers that only
// need names should use Names.
func (f *Frame) Columns() []*Column {
	out := make([]*Column, len(f.cols))
	copy(out, f.cols)
	return out
}

// Rename changes a column's name in place. The new name must be free.
func (f *Frame) Rename(from, to string) error {
	ix, ok := f.byName[from]
	if !ok {
		return fmt.Errorf("table: no column %q", from)
	}
	if from == to {
		return nil
	}
	if _, taken := f.byName[to]; taken {
		return fmt.Errorf("table: column %q already exists", to)
	}
	delete(f.byName, from)
	f.byName[to] = ix
	f.cols[ix].Name = to
	return nil
}

// Reorder rearranges columns to the given order. names must be a
// permutation of the current column names.
func (f *Frame) Reorder(names []string) error {
	if len(names) != len(f.cols) {
		return fmt.Errorf("table: reorder wants %d names, frame has %d columns", len(names), len(f.cols))
	}
	next := make([]*Column, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return fmt.Errorf("table: reorder repeats column %q", name)
		}
		seen[name] = true
		ix, ok := f.byName[name]
		if !ok {
			return fmt.Errorf("table: reorder names unknown column %q", name)
		}
		next = append(next, f.cols[ix])
	}
	f.cols = next
	for i, c := range f.cols {
		f.byName[c.Name] = i
	}
	return nil
}

// Clone deep-copies the frame. Cell values are shared (they are
// immutable scalars), the column slices are not.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		cols:   make([]*Column, len(f.cols)),
		byName: make(map[string]int, len(f.byName)),
	}
	for i, c := range f.cols {
		cc := &Column{
			Name:    c.Name,
			Dtype:   c.Dtype,
			Values:  append([]any(nil), c.Values...),
			Ordered: c.Ordered,
		}
		if c.Categories != nil {
			cc.Categories = append([]string(nil), c.Categories...)
		}
		out.cols[i] = cc
		out.byName[c.Name] = i
	}
	return out
}

// Equal reports deep equality: same column order, names, dtypes,
// category levels and cell values. time.Time cells compare with Equal
// so equal instants in different zones match.
func (f *Frame) Equal(other *Frame) bool {
	if f.NumCols() != other.NumCols() {
		return false
	}
	for i, c := range f.cols {
		o := other.cols[i]
		if c.Name != o.Name || c.Dtype != o.Dtype || c.Ordered != o.Ordered {
			return false
		}
		if len(c.Categories) != len(o.Categories) {
			return false
		}
		for j := range c.Categories {
			if c.Categories[j] != o.Categories[j] {
				return false
			}
		}
		if len(c.Values) != len(o.Values) {
			return false
		}
		for j := range c.Values {
			if !cellEqual(c.Values[j], o.Values[j]) {
				return false
			}
		}
	}
	return true
}

func cellEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return a == b
}
