package engine

import (
	"math"
	"sort"
	"strconv"
)

// MetricKind identifies an aggregation. Metrics that are mathematically
// undefined on the current view (rate of an empty view, correlation of a
// zero-variance column) yield NaN, never an error.
type MetricKind uint8

const (
	MetricCount MetricKind = iota
	MetricRate
	MetricGroupedMean
	MetricCorrelation
	MetricSummary
	MetricHistogram
	MetricValueCounts
)

func (k MetricKind) String() string {
	switch k {
	case MetricCount:
		return "count"
	case MetricRate:
		return "rate"
	case MetricGroupedMean:
		return "grouped_mean"
	case MetricCorrelation:
		return "correlation"
	case MetricSummary:
		return "summary"
	case MetricHistogram:
		return "histogram"
	case MetricValueCounts:
		return "value_counts"
	default:
		return "unknown"
	}
}

// MetricSpec describes one requested aggregation over a view.
type MetricSpec struct {
	Kind    MetricKind
	Column  string   // value column for rate/grouped_mean/summary/histogram/value_counts
	GroupBy string   // grouping column for grouped_mean
	Columns []string // column set for correlation
	Bins    int      // bucket count for histogram
}

func Count() MetricSpec { return MetricSpec{Kind: MetricCount} }

// Rate is the mean of a boolean or 0/1 numeric column over the view.
func Rate(column string) MetricSpec { return MetricSpec{Kind: MetricRate, Column: column} }

// GroupedMean computes the mean of valueColumn per distinct value of
// groupColumn, ascending key order. Groups with no rows in the view are
// omitted, and so is a group whose rows all have a missing value in
// valueColumn: no key is emitted for it rather than a NaN mean.
func GroupedMean(valueColumn, groupColumn string) MetricSpec {
	return MetricSpec{Kind: MetricGroupedMean, Column: valueColumn, GroupBy: groupColumn}
}

// Correlation computes the pairwise Pearson matrix over the given columns.
func Correlation(columns ...string) MetricSpec {
	return MetricSpec{Kind: MetricCorrelation, Columns: columns}
}

// Summary computes rows/mean/std/min/max of a numeric column.
func Summary(column string) MetricSpec { return MetricSpec{Kind: MetricSummary, Column: column} }

// Histogram buckets a numeric column into bins equal-width buckets spanning
// the view's min..max.
func Histogram(column string, bins int) MetricSpec {
	return MetricSpec{Kind: MetricHistogram, Column: column, Bins: bins}
}

// ValueCounts counts rows per distinct value of a categorical or boolean
// column, ascending key order.
func ValueCounts(column string) MetricSpec {
	return MetricSpec{Kind: MetricValueCounts, Column: column}
}

// Name is the key the metric is stored under in a Result.
func (m MetricSpec) Name() string {
	switch m.Kind {
	case MetricCount:
		return "count"
	case MetricRate:
		return "rate_of_" + m.Column
	case MetricGroupedMean:
		return "mean_of_" + m.Column + "_by_" + m.GroupBy
	case MetricCorrelation:
		return "correlation"
	case MetricSummary:
		return "summary_of_" + m.Column
	case MetricHistogram:
		return "histogram_of_" + m.Column
	case MetricValueCounts:
		return "counts_of_" + m.Column
	default:
		return "unknown"
	}
}

// validate checks column references and types without scanning rows.
func (m MetricSpec) validate(ds *Dataset) error {
	numericish := func(name string) error {
		col, ok := ds.Column(name)
		if !ok {
			return &SchemaError{Column: name, Reason: "unknown column"}
		}
		if col.Type == Categorical {
			return &SchemaError{Column: name, Reason: m.Kind.String() + " needs a numeric or boolean column"}
		}
		return nil
	}
	switch m.Kind {
	case MetricCount:
		return nil
	case MetricRate:
		return numericish(m.Column)
	case MetricGroupedMean:
		if err := numericish(m.Column); err != nil {
			return err
		}
		if _, ok := ds.Column(m.GroupBy); !ok {
			return &SchemaError{Column: m.GroupBy, Reason: "unknown column"}
		}
		return nil
	case MetricCorrelation:
		for _, name := range m.Columns {
			if err := numericish(name); err != nil {
				return err
			}
		}
		return nil
	case MetricSummary, MetricHistogram:
		col, ok := ds.Column(m.Column)
		if !ok {
			return &SchemaError{Column: m.Column, Reason: "unknown column"}
		}
		if col.Type != Numeric {
			return &SchemaError{Column: m.Column, Reason: m.Kind.String() + " needs a numeric column"}
		}
		if m.Kind == MetricHistogram && m.Bins <= 0 {
			return &SchemaError{Column: m.Column, Reason: "histogram needs at least one bin"}
		}
		return nil
	case MetricValueCounts:
		col, ok := ds.Column(m.Column)
		if !ok {
			return &SchemaError{Column: m.Column, Reason: "unknown column"}
		}
		if col.Type == Numeric {
			return &SchemaError{Column: m.Column, Reason: "value_counts needs a categorical or boolean column"}
		}
		return nil
	}
	return &SchemaError{Column: m.Column, Reason: "unknown metric kind"}
}

// Group is one grouped-mean bucket.
type Group struct {
	Key  string
	Mean float64
	Rows int
}

// SummaryStats mirrors the describe() block of the dashboard.
type SummaryStats struct {
	Rows int
	Mean float64
	Std  float64
	Min  float64
	Max  float64
}

// Bucket is one histogram bar: rows with Lo <= value < Hi (the last bucket
// is closed on both ends).
type Bucket struct {
	Lo    float64
	Hi    float64
	Count int
}

// CategoryCount is one value_counts entry.
type CategoryCount struct {
	Value string
	Count int
}

// Matrix is a pairwise correlation matrix; Values[i][j] is the Pearson
// coefficient of Columns[i] against Columns[j], NaN where undefined.
type Matrix struct {
	Columns []string
	Values  [][]float64
}

// Value is one computed metric. Exactly one payload field is meaningful,
// according to Kind.
type Value struct {
	Kind    MetricKind
	Scalar  float64
	Groups  []Group
	Summary *SummaryStats
	Buckets []Bucket
	Counts  []CategoryCount
	Matrix  *Matrix
}

// Result holds computed metrics keyed by MetricSpec.Name, preserving the
// caller's metric order.
type Result struct {
	names  []string
	values map[string]Value
}

func (r *Result) Names() []string { return r.names }

func (r *Result) Get(name string) (Value, bool) {
	v, ok := r.values[name]
	return v, ok
}

// ValidateMetrics checks every metric against the dataset schema. Compute
// calls this first, so no partial result is ever produced.
func ValidateMetrics(ds *Dataset, metrics []MetricSpec) error {
	for _, m := range metrics {
		if err := m.validate(ds); err != nil {
			return err
		}
	}
	return nil
}

// Compute evaluates each metric independently over the same immutable view
// snapshot. Nothing is cached or accumulated between calls.
func Compute(v *View, metrics []MetricSpec) (*Result, error) {
	if err := ValidateMetrics(v.ds, metrics); err != nil {
		return nil, err
	}
	res := &Result{
		names:  make([]string, 0, len(metrics)),
		values: make(map[string]Value, len(metrics)),
	}
	for _, m := range metrics {
		res.names = append(res.names, m.Name())
		res.values[m.Name()] = computeOne(v, m)
	}
	return res, nil
}

func computeOne(v *View, m MetricSpec) Value {
	switch m.Kind {
	case MetricCount:
		return Value{Kind: m.Kind, Scalar: float64(v.NumRows())}
	case MetricRate:
		return Value{Kind: m.Kind, Scalar: rate(v, m.Column)}
	case MetricGroupedMean:
		return Value{Kind: m.Kind, Groups: groupedMean(v, m.Column, m.GroupBy)}
	case MetricCorrelation:
		return Value{Kind: m.Kind, Matrix: correlation(v, m.Columns)}
	case MetricSummary:
		return Value{Kind: m.Kind, Summary: summary(v, m.Column)}
	case MetricHistogram:
		return Value{Kind: m.Kind, Buckets: histogram(v, m.Column, m.Bins)}
	case MetricValueCounts:
		return Value{Kind: m.Kind, Counts: valueCounts(v, m.Column)}
	}
	return Value{Kind: m.Kind, Scalar: math.NaN()}
}

func rate(v *View, column string) float64 {
	col, _ := v.ds.Column(column)
	sum, n := 0.0, 0
	for _, r := range v.rows {
		if f, ok := col.numericAt(r); ok {
			sum += f
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

func groupedMean(v *View, valueColumn, groupColumn string) []Group {
	valCol, _ := v.ds.Column(valueColumn)
	grpCol, _ := v.ds.Column(groupColumn)

	type acc struct {
		sum  float64
		n    int
		rank float64
	}
	byKey := make(map[string]*acc)

	for _, r := range v.rows {
		key, rank, ok := grpCol.groupKeyAt(r)
		if !ok {
			continue
		}
		f, ok := valCol.numericAt(r)
		if !ok {
			continue
		}
		a := byKey[key]
		if a == nil {
			a = &acc{rank: rank}
			byKey[key] = a
		}
		a.sum += f
		a.n++
	}

	groups := make([]Group, 0, len(byKey))
	for key, a := range byKey {
		groups = append(groups, Group{Key: key, Mean: a.sum / float64(a.n), Rows: a.n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if grpCol.Type == Categorical {
			return groups[i].Key < groups[j].Key
		}
		return byKey[groups[i].Key].rank < byKey[groups[j].Key].rank
	})
	return groups
}

// correlation computes Pearson coefficients over pairwise-complete rows:
// for each pair, rows missing either value are skipped.
func correlation(v *View, columns []string) *Matrix {
	cols := make([]*Column, len(columns))
	for i, name := range columns {
		cols[i], _ = v.ds.Column(name)
	}
	values := make([][]float64, len(columns))
	for i := range values {
		values[i] = make([]float64, len(columns))
	}
	for i := range columns {
		for j := i; j < len(columns); j++ {
			r := pearson(v.rows, cols[i], cols[j])
			values[i][j] = r
			values[j][i] = r
		}
	}
	return &Matrix{Columns: append([]string(nil), columns...), Values: values}
}

func pearson(rows []int, a, b *Column) float64 {
	var sumA, sumB float64
	n := 0
	for _, r := range rows {
		fa, okA := a.numericAt(r)
		fb, okB := b.numericAt(r)
		if okA && okB {
			sumA += fa
			sumB += fb
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	meanA, meanB := sumA/float64(n), sumB/float64(n)

	var cov, varA, varB float64
	for _, r := range rows {
		fa, okA := a.numericAt(r)
		fb, okB := b.numericAt(r)
		if okA && okB {
			da, db := fa-meanA, fb-meanB
			cov += da * db
			varA += da * da
			varB += db * db
		}
	}
	if varA == 0 || varB == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(varA*varB)
}

func summary(v *View, column string) *SummaryStats {
	col, _ := v.ds.Column(column)
	s := &SummaryStats{Mean: math.NaN(), Std: math.NaN(), Min: math.NaN(), Max: math.NaN()}
	sum := 0.0
	for _, r := range v.rows {
		f, ok := col.numericAt(r)
		if !ok {
			continue
		}
		if s.Rows == 0 || f < s.Min {
			s.Min = f
		}
		if s.Rows == 0 || f > s.Max {
			s.Max = f
		}
		sum += f
		s.Rows++
	}
	if s.Rows == 0 {
		return s
	}
	s.Mean = sum / float64(s.Rows)
	var sq float64
	for _, r := range v.rows {
		if f, ok := col.numericAt(r); ok {
			d := f - s.Mean
			sq += d * d
		}
	}
	if s.Rows > 1 {
		s.Std = math.Sqrt(sq / float64(s.Rows-1)) // sample std, matching describe()
	}
	return s
}

func histogram(v *View, column string, bins int) []Bucket {
	s := summary(v, column)
	if s.Rows == 0 {
		return []Bucket{}
	}
	width := (s.Max - s.Min) / float64(bins)
	buckets := make([]Bucket, bins)
	for i := range buckets {
		buckets[i].Lo = s.Min + float64(i)*width
		buckets[i].Hi = s.Min + float64(i+1)*width
	}
	buckets[bins-1].Hi = s.Max

	col, _ := v.ds.Column(column)
	for _, r := range v.rows {
		f, ok := col.numericAt(r)
		if !ok {
			continue
		}
		idx := bins - 1
		if width > 0 {
			idx = int((f - s.Min) / width)
			if idx >= bins {
				idx = bins - 1
			}
		}
		buckets[idx].Count++
	}
	return buckets
}

func valueCounts(v *View, column string) []CategoryCount {
	col, _ := v.ds.Column(column)
	if col.Type == Boolean {
		var counts [2]int
		for _, r := range v.rows {
			if col.Bools[r] {
				counts[1]++
			} else {
				counts[0]++
			}
		}
		out := make([]CategoryCount, 0, 2)
		for i, n := range counts {
			if n > 0 {
				out = append(out, CategoryCount{Value: strconv.FormatBool(i == 1), Count: n})
			}
		}
		return out
	}

	byID := make(map[int32]int)
	for _, r := range v.rows {
		byID[col.IDs[r]]++
	}
	out := make([]CategoryCount, 0, len(byID))
	for id, n := range byID {
		out = append(out, CategoryCount{Value: col.Dict[id], Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}
