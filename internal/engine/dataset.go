package engine

import (
	"math"
	"strconv"

	"github.com/pkg/errors"
)

// ColumnType is the declared type of a dataset column. Predicates and
// metrics are validated against it before any rows are touched.
type ColumnType uint8

const (
	Numeric ColumnType = iota
	Categorical
	Boolean
)

func (t ColumnType) String() string {
	switch t {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	case Boolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// Column holds one dataset column in Struct-of-Arrays form. Exactly one of
// the value slices is populated, according to Type. Numeric columns use NaN
// for missing values; categorical columns are dictionary encoded (ID -> Dict).
type Column struct {
	Name string
	Type ColumnType

	Floats []float64
	Bools  []bool
	IDs    []int32
	Dict   []string
}

// NumericColumn builds a numeric column. Missing values are NaN.
func NumericColumn(name string, values []float64) *Column {
	return &Column{Name: name, Type: Numeric, Floats: values}
}

// BooleanColumn builds a boolean column.
func BooleanColumn(name string, values []bool) *Column {
	return &Column{Name: name, Type: Boolean, Bools: values}
}

// CategoricalColumn builds a dictionary-encoded categorical column from raw
// string values. IDs are assigned in first-seen order.
func CategoricalColumn(name string, values []string) *Column {
	dict := make([]string, 0, 16)
	seen := make(map[string]int32, 16)
	ids := make([]int32, len(values))
	for i, s := range values {
		id, ok := seen[s]
		if !ok {
			id = int32(len(dict))
			dict = append(dict, s)
			seen[s] = id
		}
		ids[i] = id
	}
	return &Column{Name: name, Type: Categorical, IDs: ids, Dict: dict}
}

func (c *Column) len() int {
	switch c.Type {
	case Numeric:
		return len(c.Floats)
	case Boolean:
		return len(c.Bools)
	default:
		return len(c.IDs)
	}
}

// value returns the row's value as a JSON-friendly scalar. Missing numeric
// values come back as nil.
func (c *Column) value(row int) any {
	switch c.Type {
	case Numeric:
		f := c.Floats[row]
		if math.IsNaN(f) {
			return nil
		}
		return f
	case Boolean:
		return c.Bools[row]
	default:
		return c.Dict[c.IDs[row]]
	}
}

// numericAt reads a row as a float for metric computation. Boolean columns
// map to 0/1. The second return is false when the value is missing.
func (c *Column) numericAt(row int) (float64, bool) {
	switch c.Type {
	case Numeric:
		f := c.Floats[row]
		return f, !math.IsNaN(f)
	case Boolean:
		if c.Bools[row] {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// groupKeyAt returns the row's group key plus a sortable numeric rank.
// Categorical keys rank by dictionary string order, handled by the caller.
func (c *Column) groupKeyAt(row int) (key string, rank float64, ok bool) {
	switch c.Type {
	case Numeric:
		f := c.Floats[row]
		if math.IsNaN(f) {
			return "", 0, false
		}
		return strconv.FormatFloat(f, 'g', -1, 64), f, true
	case Boolean:
		if c.Bools[row] {
			return "true", 1, true
		}
		return "false", 0, true
	default:
		id := c.IDs[row]
		return c.Dict[id], 0, true
	}
}

// Dataset is the immutable loaded table: ordered, equally sized columns with
// O(1) lookup by name. Nothing mutates it after construction, so it can be
// shared across requests without locking.
type Dataset struct {
	cols    []*Column
	byName  map[string]int
	numRows int
}

// NewDataset assembles columns into a dataset. Column lengths must agree and
// names must be unique.
func NewDataset(cols ...*Column) (*Dataset, error) {
	ds := &Dataset{cols: cols, byName: make(map[string]int, len(cols))}
	for i, c := range cols {
		if _, dup := ds.byName[c.Name]; dup {
			return nil, errors.Errorf("duplicate column %q", c.Name)
		}
		ds.byName[c.Name] = i
		if i == 0 {
			ds.numRows = c.len()
		} else if c.len() != ds.numRows {
			return nil, errors.Errorf("column %q has %d rows, want %d", c.Name, c.len(), ds.numRows)
		}
	}
	return ds, nil
}

func (d *Dataset) NumRows() int { return d.numRows }

func (d *Dataset) NumColumns() int { return len(d.cols) }

// Columns returns the columns in declaration order.
func (d *Dataset) Columns() []*Column { return d.cols }

// Column looks a column up by name.
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.byName[name]
	if !ok {
		return nil, false
	}
	return d.cols[i], true
}

// Row materializes one row as a name -> value map, for sample output.
func (d *Dataset) Row(i int) map[string]any {
	out := make(map[string]any, len(d.cols))
	for _, c := range d.cols {
		out[c.Name] = c.value(i)
	}
	return out
}
