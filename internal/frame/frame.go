// Package frame is a small column-oriented table with an optional geometry
// column, used to hold Census query results.
package frame

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// GeometryColumn is the name under which geometry appears in exports.
const GeometryColumn = "geometry"

// Frame is an ordered set of equal length Series plus, optionally, one
// geometry per row.
type Frame struct {
	cols  []*Series
	index map[string]int
	geoms []geom.T
	rows  int
}

// New builds a frame from columns. Columns must have equal lengths and
// distinct names.
func New(cols ...*Series) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if _, dup := f.index[c.Name]; dup {
			return nil, eris.Errorf("frame: duplicate column %q", c.Name)
		}
		if c.Name == GeometryColumn {
			return nil, eris.Errorf("frame: column name %q is reserved", GeometryColumn)
		}
		if i == 0 {
			f.rows = c.Len()
		} else if c.Len() != f.rows {
			return nil, eris.Errorf("frame: column %q has %d rows, expected %d", c.Name, c.Len(), f.rows)
		}
		f.index[c.Name] = i
	}
	f.cols = cols
	return f, nil
}

// Empty returns a frame with the given string columns and no rows.
func Empty(names ...string) *Frame {
	cols := make([]*Series, len(names))
	for i, n := range names {
		cols[i] = &Series{Name: n, Kind: String}
	}
	f, err := New(cols...)
	if err != nil {
		return &Frame{index: map[string]int{}}
	}
	return f
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int {
	return f.rows
}

// Names returns the column names in order. Geometry is not included.
func (f *Frame) Names() []string {
	out := make([]string, len(f.cols))
	for i, c := range f.cols {
		out[i] = c.Name
	}
	return out
}

// Columns returns the columns in order.
func (f *Frame) Columns() []*Series {
	return append([]*Series(nil), f.cols...)
}

// Column returns the named column, or nil.
func (f *Frame) Column(name string) *Series {
	i, ok := f.index[name]
	if !ok {
		return nil
	}
	return f.cols[i]
}

// Has reports whether every named column exists.
func (f *Frame) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := f.index[n]; !ok {
			return false
		}
	}
	return true
}

// Replace swaps in a column of the same name and length.
func (f *Frame) Replace(s *Series) error {
	i, ok := f.index[s.Name]
	if !ok {
		return eris.Errorf("frame: no column %q", s.Name)
	}
	if s.Len() != f.rows {
		return eris.Errorf("frame: column %q has %d rows, expected %d", s.Name, s.Len(), f.rows)
	}
	f.cols[i] = s
	return nil
}

// Select returns the named columns in the given order. Geometry is kept.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]*Series, 0, len(names))
	for _, n := range names {
		c := f.Column(n)
		if c == nil {
			return nil, eris.Errorf("frame: no column %q", n)
		}
		cols = append(cols, c)
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	out.rows = f.rows
	out.geoms = f.geoms
	return out, nil
}

// Drop returns f without the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	keep := make([]string, 0, len(f.cols))
	for _, c := range f.cols {
		if !skip[c.Name] {
			keep = append(keep, c.Name)
		}
	}
	out, _ := f.Select(keep...)
	return out
}

// WithGeometry returns a copy of f carrying one geometry per row. Entries
// may be nil for rows without a shape.
func (f *Frame) WithGeometry(geoms []geom.T) (*Frame, error) {
	if len(geoms) != f.rows {
		return nil, eris.Errorf("frame: %d geometries for %d rows", len(geoms), f.rows)
	}
	out, err := f.Select(f.Names()...)
	if err != nil {
		return nil, err
	}
	out.geoms = geoms
	return out, nil
}

// HasGeometry reports whether f carries a geometry column.
func (f *Frame) HasGeometry() bool {
	return f.geoms != nil
}

// Geometry returns the geometry column, or nil.
func (f *Frame) Geometry() []geom.T {
	return f.geoms
}

// Row returns row i as a map from column name to value.
func (f *Frame) Row(i int) map[string]any {
	out := make(map[string]any, len(f.cols))
	for _, c := range f.cols {
		out[c.Name] = c.Values[i]
	}
	return out
}

// Records returns every row as a map.
func (f *Frame) Records() []map[string]any {
	out := make([]map[string]any, f.rows)
	for i := range out {
		out[i] = f.Row(i)
	}
	return out
}

// Take returns the rows at idx in that order. An index of -1 yields a row
// of nulls.
func (f *Frame) Take(idx []int) *Frame {
	cols := make([]*Series, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.take(idx)
	}
	out := &Frame{cols: cols, index: f.index, rows: len(idx)}
	if f.geoms != nil {
		out.geoms = make([]geom.T, len(idx))
		for i, j := range idx {
			if j >= 0 {
				out.geoms[i] = f.geoms[j]
			}
		}
	}
	return out
}

// Keys returns a composite key per row over the named columns.
func (f *Frame) Keys(names ...string) ([]string, error) {
	cols := make([]*Series, len(names))
	for i, n := range names {
		cols[i] = f.Column(n)
		if cols[i] == nil {
			return nil, eris.Errorf("frame: no column %q", n)
		}
	}
	keys := make([]string, f.rows)
	parts := make([]string, len(cols))
	for r := range keys {
		for i, c := range cols {
			parts[i] = keyPart(c.Values[r])
		}
		keys[r] = strings.Join(parts, "\x1f")
	}
	return keys, nil
}

// HConcat places the columns of others to the right of f. Row counts must
// match and names must not collide. Geometry comes from the first frame
// that has it.
func (f *Frame) HConcat(others ...*Frame) (*Frame, error) {
	cols := append([]*Series(nil), f.cols...)
	geoms := f.geoms
	for _, o := range others {
		if o.rows != f.rows {
			return nil, eris.Errorf("frame: hconcat of %d rows onto %d rows", o.rows, f.rows)
		}
		cols = append(cols, o.cols...)
		if geoms == nil {
			geoms = o.geoms
		}
	}
	out, err := New(cols...)
	if err != nil {
		return nil, eris.Wrap(err, "frame: hconcat")
	}
	out.rows = f.rows
	out.geoms = geoms
	return out, nil
}

// VConcat stacks frames with the same column names, in the order of the
// first frame. Int and float columns combine as float. Geometry is kept
// when any frame has it.
func VConcat(frames ...*Frame) (*Frame, error) {
	if len(frames) == 0 {
		return Empty(), nil
	}
	first := frames[0]
	names := first.Names()

	total := 0
	anyGeom := false
	for _, fr := range frames {
		if len(fr.cols) != len(names) || !fr.Has(names...) {
			return nil, eris.Errorf("frame: vconcat of %v onto %v", fr.Names(), names)
		}
		total += fr.rows
		anyGeom = anyGeom || fr.geoms != nil
	}

	cols := make([]*Series, len(names))
	for i, n := range names {
		kind := first.cols[i].Kind
		for _, fr := range frames[1:] {
			k, err := combineKinds(kind, fr.Column(n).Kind)
			if err != nil {
				return nil, eris.Wrapf(err, "frame: vconcat column %q", n)
			}
			kind = k
		}
		values := make([]any, 0, total)
		for _, fr := range frames {
			c := fr.Column(n)
			if c.Kind != kind {
				conv, err := c.ToFloat()
				if err != nil {
					return nil, err
				}
				c = conv
			}
			values = append(values, c.Values...)
		}
		cols[i] = &Series{Name: n, Kind: kind, Values: values}
	}

	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	out.rows = total
	if anyGeom {
		out.geoms = make([]geom.T, 0, total)
		for _, fr := range frames {
			if fr.geoms != nil {
				out.geoms = append(out.geoms, fr.geoms...)
			} else {
				out.geoms = append(out.geoms, make([]geom.T, fr.rows)...)
			}
		}
	}
	return out, nil
}

func combineKinds(a, b Kind) (Kind, error) {
	switch {
	case a == b:
		return a, nil
	case (a == Int && b == Float) || (a == Float && b == Int):
		return Float, nil
	default:
		return a, eris.Errorf("cannot combine %s and %s", a, b)
	}
}

// EqualOn reports whether f and o have the same number of rows and equal
// values, row by row, in the named columns.
func (f *Frame) EqualOn(o *Frame, names ...string) bool {
	if f.rows != o.rows {
		return false
	}
	a, err := f.Keys(names...)
	if err != nil {
		return false
	}
	b, err := o.Keys(names...)
	if err != nil {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// UniqueOn reports whether no two rows share values in the named columns.
func (f *Frame) UniqueOn(names ...string) (bool, error) {
	keys, err := f.Keys(names...)
	if err != nil {
		return false, err
	}
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			return false, nil
		}
		seen[k] = struct{}{}
	}
	return true, nil
}

// InnerJoin joins o onto f on the named columns. Rows keep the order of f,
// and for each, the matching rows of o in their order. Columns of o other
// than the join columns are appended. Geometry comes from f, or from o when
// f has none.
func (f *Frame) InnerJoin(o *Frame, on ...string) (*Frame, error) {
	lk, err := f.Keys(on...)
	if err != nil {
		return nil, eris.Wrap(err, "frame: inner join")
	}
	rk, err := o.Keys(on...)
	if err != nil {
		return nil, eris.Wrap(err, "frame: inner join")
	}

	byKey := make(map[string][]int, len(rk))
	for i, k := range rk {
		byKey[k] = append(byKey[k], i)
	}

	var left, right []int
	for i, k := range lk {
		for _, j := range byKey[k] {
			left = append(left, i)
			right = append(right, j)
		}
	}

	l := f.Take(left)
	r := o.Drop(on...).Take(right)
	if l.geoms != nil {
		r.geoms = nil
	}
	return l.HConcat(r)
}

// Group is one group of rows sharing a key value.
type Group struct {
	Key   string
	Frame *Frame
}

// GroupBy splits f by the text of the named column. Groups come out in the
// order their keys are first seen.
func (f *Frame) GroupBy(name string) ([]Group, error) {
	c := f.Column(name)
	if c == nil {
		return nil, eris.Errorf("frame: no column %q", name)
	}
	var order []string
	rows := map[string][]int{}
	for i := range c.Values {
		k := c.Text(i)
		if _, ok := rows[k]; !ok {
			order = append(order, k)
		}
		rows[k] = append(rows[k], i)
	}
	out := make([]Group, len(order))
	for i, k := range order {
		out[i] = Group{Key: k, Frame: f.Take(rows[k])}
	}
	return out, nil
}

// FromRecords builds a frame of string columns from a header and rows, as
// read from CSV or XLSX. Empty cells and missing trailing cells are null.
func FromRecords(header []string, rows [][]string) (*Frame, error) {
	cols := make([]*Series, len(header))
	for j, name := range header {
		values := make([]any, len(rows))
		for i, r := range rows {
			if j < len(r) && r[j] != "" {
				values[i] = r[j]
			}
		}
		cols[j] = &Series{Name: strings.TrimSpace(name), Kind: String, Values: values}
	}
	f, err := New(cols...)
	if err != nil {
		return nil, err
	}
	f.rows = len(rows)
	return f, nil
}
