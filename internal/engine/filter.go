package engine

import "fmt"

// SchemaError reports a predicate or metric that does not fit the dataset's
// schema: unknown column, wrong column type, or inverted range bounds. It is
// always raised before any row is scanned.
type SchemaError struct {
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema mismatch on column %q: %s", e.Column, e.Reason)
}

type predicateKind uint8

const (
	predRange predicateKind = iota
	predIn
	predInNumbers
	predEquals
)

// Predicate is one filter condition on a single column. Predicates in a
// FilterSpec combine by logical AND; there is no OR composition.
type Predicate struct {
	column string
	kind   predicateKind

	lo, hi  float64
	values  []string
	numbers []float64
	equals  bool
}

// Range matches numeric values in [lo, hi] inclusive. Rows with a missing
// value fail the predicate.
func Range(column string, lo, hi float64) Predicate {
	return Predicate{column: column, kind: predRange, lo: lo, hi: hi}
}

// In matches categorical values that appear in the given set. An empty set
// matches nothing, which is a valid state distinct from "no filter".
func In(column string, values ...string) Predicate {
	return Predicate{column: column, kind: predIn, values: values}
}

// InNumbers matches numeric values that appear in the given set, for
// discrete numeric columns driven by a multi-select control.
func InNumbers(column string, values ...float64) Predicate {
	return Predicate{column: column, kind: predInNumbers, numbers: values}
}

// Equals matches a boolean column against a fixed value.
func Equals(column string, value bool) Predicate {
	return Predicate{column: column, kind: predEquals, equals: value}
}

func (p Predicate) Column() string { return p.column }

// validate checks the predicate against the dataset schema without reading
// any row data.
func (p Predicate) validate(ds *Dataset) error {
	col, ok := ds.Column(p.column)
	if !ok {
		return &SchemaError{Column: p.column, Reason: "unknown column"}
	}
	switch p.kind {
	case predRange:
		if col.Type != Numeric {
			return &SchemaError{Column: p.column, Reason: "range predicate on " + col.Type.String() + " column"}
		}
		if p.lo > p.hi {
			return &SchemaError{Column: p.column, Reason: fmt.Sprintf("range bounds inverted (%v > %v)", p.lo, p.hi)}
		}
	case predIn:
		if col.Type != Categorical {
			return &SchemaError{Column: p.column, Reason: "membership predicate on " + col.Type.String() + " column"}
		}
	case predInNumbers:
		if col.Type != Numeric {
			return &SchemaError{Column: p.column, Reason: "numeric membership predicate on " + col.Type.String() + " column"}
		}
	case predEquals:
		if col.Type != Boolean {
			return &SchemaError{Column: p.column, Reason: "equality predicate on " + col.Type.String() + " column"}
		}
	}
	return nil
}

func (p Predicate) matches(col *Column, row int) bool {
	switch p.kind {
	case predRange:
		f := col.Floats[row]
		return f >= p.lo && f <= p.hi // NaN fails both comparisons
	case predIn:
		v := col.Dict[col.IDs[row]]
		for _, want := range p.values {
			if v == want {
				return true
			}
		}
		return false
	case predInNumbers:
		f := col.Floats[row]
		for _, want := range p.numbers {
			if f == want {
				return true
			}
		}
		return false
	case predEquals:
		return col.Bools[row] == p.equals
	}
	return false
}

// FilterSpec is the active set of predicates, combined by AND. The zero
// value is the identity filter.
type FilterSpec struct {
	preds []Predicate
}

func NewFilterSpec(preds ...Predicate) FilterSpec {
	return FilterSpec{preds: preds}
}

func (s FilterSpec) Predicates() []Predicate { return s.preds }

func (s FilterSpec) Empty() bool { return len(s.preds) == 0 }

// With returns a copy of the filter spec extended with more predicates.
func (s FilterSpec) With(preds ...Predicate) FilterSpec {
	out := make([]Predicate, 0, len(s.preds)+len(preds))
	out = append(out, s.preds...)
	out = append(out, preds...)
	return FilterSpec{preds: out}
}

// Validate checks every predicate against the dataset schema. Apply calls
// this before scanning, so a bad spec never triggers a row scan.
func (s FilterSpec) Validate(ds *Dataset) error {
	for _, p := range s.preds {
		if err := p.validate(ds); err != nil {
			return err
		}
	}
	return nil
}

// View is an ordered subsequence of a dataset's rows. It holds row indices
// only; the backing dataset is shared and never copied.
type View struct {
	ds   *Dataset
	rows []int
}

func (v *View) Dataset() *Dataset { return v.ds }

func (v *View) NumRows() int { return len(v.rows) }

// RowIndices returns the dataset row indices in view order.
func (v *View) RowIndices() []int { return v.rows }

// Rows materializes up to limit rows as name -> value maps, preserving
// dataset order. limit < 0 means all rows.
func (v *View) Rows(limit int) []map[string]any {
	n := len(v.rows)
	if limit >= 0 && limit < n {
		n = limit
	}
	out := make([]map[string]any, n)
	for i := 0; i < n; i++ {
		out[i] = v.ds.Row(v.rows[i])
	}
	return out
}

// Apply evaluates the filter spec against every dataset row and returns the view of
// rows where all predicates hold, in dataset order. Pure: same inputs always
// produce the same view. An empty spec returns the full dataset.
func Apply(ds *Dataset, spec FilterSpec) (*View, error) {
	if err := spec.Validate(ds); err != nil {
		return nil, err
	}

	cols := make([]*Column, len(spec.preds))
	for i, p := range spec.preds {
		cols[i], _ = ds.Column(p.column)
	}

	rows := make([]int, 0, ds.NumRows())
	for r := 0; r < ds.NumRows(); r++ {
		keep := true
		for i, p := range spec.preds {
			if !p.matches(cols[i], r) {
				keep = false
				break
			}
		}
		if keep {
			rows = append(rows, r)
		}
	}
	return &View{ds: ds, rows: rows}, nil
}
