package ml

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Value is a single cell of a feature table. It is numeric unless Categorical is set.
type Value struct {
	Number      float64
	Category    string
	Categorical bool
}

func Number(v float64) Value { return Value{Number: v} }

func Category(s string) Value { return Value{Category: s, Categorical: true} }

// Key is the string the encoder compares against its fitted categories.
func (v Value) Key() string {
	if v.Categorical {
		return v.Category
	}
	return strconv.FormatFloat(v.Number, 'g', -1, 64)
}

func (v Value) String() string { return v.Key() }

type Field struct {
	Name  string
	Value Value
}

// FeatureRow is one fire-event observation. Field order is kept as given.
type FeatureRow []Field

func (r FeatureRow) Get(name string) (Value, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

func (r FeatureRow) Names() []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

// Frame is an immutable, column-ordered table. Every transformation returns a new Frame.
type Frame struct {
	columns []string
	index   map[string]int
	data    [][]Value // data[column][row]
	rows    int
}

// NewFrame builds a frame from rows. Column order is taken from the first row;
// every other row must carry the same set of names, in any order.
func NewFrame(rows []FeatureRow) (*Frame, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyFrame
	}
	columns := rows[0].Names()
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrSchemaMismatch, name)
		}
		index[name] = i
	}

	data := make([][]Value, len(columns))
	for i := range data {
		data[i] = make([]Value, len(rows))
	}
	for r, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d fields, want %d", ErrSchemaMismatch, r, len(row), len(columns))
		}
		for _, field := range row {
			c, ok := index[field.Name]
			if !ok {
				return nil, fmt.Errorf("%w: row %d has unexpected column %q", ErrSchemaMismatch, r, field.Name)
			}
			data[c][r] = field.Value
		}
	}
	return &Frame{columns: columns, index: index, data: data, rows: len(rows)}, nil
}

func newFrame(columns []string, data [][]Value, rows int) (*Frame, error) {
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrSchemaMismatch, name)
		}
		index[name] = i
	}
	return &Frame{columns: columns, index: index, data: data, rows: rows}, nil
}

func (f *Frame) Len() int { return f.rows }

func (f *Frame) Width() int { return len(f.columns) }

func (f *Frame) Columns() []string {
	out := make([]string, len(f.columns))
	copy(out, f.columns)
	return out
}

func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the values of one column. The slice must not be modified.
func (f *Frame) Column(name string) ([]Value, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.data[i], true
}

func (f *Frame) Row(i int) FeatureRow {
	row := make(FeatureRow, len(f.columns))
	for c, name := range f.columns {
		row[c] = Field{Name: name, Value: f.data[c][i]}
	}
	return row
}

func (f *Frame) Rows() []FeatureRow {
	rows := make([]FeatureRow, f.rows)
	for i := range rows {
		rows[i] = f.Row(i)
	}
	return rows
}

// Take returns a frame holding the given rows, in the given order.
func (f *Frame) Take(indices []int) *Frame {
	data := make([][]Value, len(f.columns))
	for c := range f.columns {
		col := make([]Value, len(indices))
		for i, idx := range indices {
			col[i] = f.data[c][idx]
		}
		data[c] = col
	}
	return &Frame{columns: f.Columns(), index: f.index, data: data, rows: len(indices)}
}

// selectColumns projects the frame onto names, which must all exist.
func (f *Frame) selectColumns(names []string) *Frame {
	data := make([][]Value, len(names))
	for i, name := range names {
		data[i] = f.data[f.index[name]]
	}
	out, _ := newFrame(append([]string(nil), names...), data, f.rows)
	return out
}

// Numeric returns column-major numeric data, failing on any categorical or non-finite cell.
func (f *Frame) Numeric() ([][]float64, error) {
	out := make([][]float64, len(f.columns))
	for c, name := range f.columns {
		col := make([]float64, f.rows)
		for r, v := range f.data[c] {
			if v.Categorical {
				return nil, fmt.Errorf("%w: column %q row %d holds category %q", ErrNonNumeric, name, r, v.Category)
			}
			if math.IsNaN(v.Number) || math.IsInf(v.Number, 0) {
				return nil, fmt.Errorf("%w: column %q row %d is not finite", ErrNonNumeric, name, r)
			}
			col[r] = v.Number
		}
		out[c] = col
	}
	return out, nil
}

// Matrix returns the frame as a rows x columns dense matrix in column order.
func (f *Frame) Matrix() (*mat.Dense, error) {
	if f.rows == 0 || len(f.columns) == 0 {
		return nil, ErrEmptyFrame
	}
	cols, err := f.Numeric()
	if err != nil {
		return nil, err
	}
	m := mat.NewDense(f.rows, len(f.columns), nil)
	for c, col := range cols {
		for r, v := range col {
			m.Set(r, c, v)
		}
	}
	return m, nil
}

func numericFrame(columns []string, cols [][]float64, rows int) (*Frame, error) {
	data := make([][]Value, len(cols))
	for c, col := range cols {
		values := make([]Value, len(col))
		for r, v := range col {
			values[r] = Number(v)
		}
		data[c] = values
	}
	return newFrame(columns, data, rows)
}
