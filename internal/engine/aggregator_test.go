package engine

import (
	"errors"
	"math"
	"testing"
)

const tolerance = 1e-9

func closeTo(got, want float64) bool {
	if want == 0 {
		return math.Abs(got) < tolerance
	}
	return math.Abs(got-want)/math.Abs(want) < tolerance
}

func mustCompute(t *testing.T, v *View, metrics ...MetricSpec) *Result {
	t.Helper()
	res, err := Compute(v, metrics)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestComputeCount(t *testing.T) {
	ds := testDataset(t)
	v := mustApply(t, ds, FilterSpec{})

	res := mustCompute(t, v, Count())
	val, ok := res.Get("count")
	if !ok {
		t.Fatal("count metric missing from result")
	}
	if val.Scalar != 6 {
		t.Errorf("count = %v, want 6", val.Scalar)
	}
}

func TestComputeRate(t *testing.T) {
	ds := testDataset(t)
	v := mustApply(t, ds, FilterSpec{})

	res := mustCompute(t, v, Rate("divorced"))
	val, _ := res.Get("rate_of_divorced")
	if !closeTo(val.Scalar, 0.5) {
		t.Errorf("rate = %v, want 0.5", val.Scalar)
	}
}

func TestComputeRateOnEmptyView(t *testing.T) {
	ds := testDataset(t)
	v := mustApply(t, ds, NewFilterSpec(In("education")))
	if v.NumRows() != 0 {
		t.Fatalf("fixture view not empty: %d rows", v.NumRows())
	}

	// Undefined, not an error and not zero.
	res := mustCompute(t, v, Rate("divorced"))
	val, _ := res.Get("rate_of_divorced")
	if !math.IsNaN(val.Scalar) {
		t.Errorf("rate on empty view = %v, want NaN", val.Scalar)
	}
}

func TestGroupedMeanCorrectness(t *testing.T) {
	ds, err := NewDataset(
		NumericColumn("g", []float64{0, 0, 1}),
		NumericColumn("v", []float64{10, 20, 5}),
	)
	if err != nil {
		t.Fatal(err)
	}
	v := mustApply(t, ds, FilterSpec{})

	res := mustCompute(t, v, GroupedMean("v", "g"))
	val, _ := res.Get("mean_of_v_by_g")

	if len(val.Groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(val.Groups))
	}
	if val.Groups[0].Key != "0" || !closeTo(val.Groups[0].Mean, 15) {
		t.Errorf("group 0 = %+v, want key 0 mean 15", val.Groups[0])
	}
	if val.Groups[1].Key != "1" || !closeTo(val.Groups[1].Mean, 5) {
		t.Errorf("group 1 = %+v, want key 1 mean 5", val.Groups[1])
	}
}

func TestGroupedMeanOmitsEmptyGroups(t *testing.T) {
	ds := testDataset(t)
	// phd appears only on row 3; filter it away.
	v := mustApply(t, ds, NewFilterSpec(In("education", "college", "school")))

	res := mustCompute(t, v, GroupedMean("marriage_duration_years", "education"))
	val, _ := res.Get("mean_of_marriage_duration_years_by_education")
	for _, g := range val.Groups {
		if g.Key == "phd" {
			t.Error("empty group emitted")
		}
	}
	if len(val.Groups) != 2 {
		t.Errorf("got %d groups, want 2", len(val.Groups))
	}
	if val.Groups[0].Key != "college" || val.Groups[1].Key != "school" {
		t.Errorf("groups not in ascending key order: %+v", val.Groups)
	}
}

func TestGroupedMeanOmitsAllMissingGroups(t *testing.T) {
	ds, err := NewDataset(
		NumericColumn("g", []float64{0, 0, 1}),
		NumericColumn("v", []float64{10, 20, math.NaN()}),
	)
	if err != nil {
		t.Fatal(err)
	}
	v := mustApply(t, ds, FilterSpec{})

	res := mustCompute(t, v, GroupedMean("v", "g"))
	val, _ := res.Get("mean_of_v_by_g")

	// Group 1's only value is missing, so no key is emitted for it.
	if len(val.Groups) != 1 {
		t.Fatalf("got %d groups, want 1: %+v", len(val.Groups), val.Groups)
	}
	if val.Groups[0].Key != "0" || !closeTo(val.Groups[0].Mean, 15) {
		t.Errorf("group = %+v, want key 0 mean 15", val.Groups[0])
	}
}

func TestGroupedMeanByBoolean(t *testing.T) {
	ds := testDataset(t)
	v := mustApply(t, ds, FilterSpec{})

	res := mustCompute(t, v, GroupedMean("divorced", "infidelity_occurred"))
	val, _ := res.Get("mean_of_divorced_by_infidelity_occurred")

	// Rows 1,2,3 without infidelity: divorced 0,1,0 -> 1/3.
	// Rows 0,4,5 with infidelity: divorced 1,1,0 -> 2/3.
	if len(val.Groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(val.Groups))
	}
	if val.Groups[0].Key != "false" || !closeTo(val.Groups[0].Mean, 1.0/3.0) {
		t.Errorf("false group = %+v", val.Groups[0])
	}
	if val.Groups[1].Key != "true" || !closeTo(val.Groups[1].Mean, 2.0/3.0) {
		t.Errorf("true group = %+v", val.Groups[1])
	}
}

func TestCorrelation(t *testing.T) {
	ds, err := NewDataset(
		NumericColumn("x", []float64{1, 2, 3, 4}),
		NumericColumn("y", []float64{2, 4, 6, 8}),
		NumericColumn("z", []float64{4, 3, 2, 1}),
		NumericColumn("flat", []float64{7, 7, 7, 7}),
	)
	if err != nil {
		t.Fatal(err)
	}
	v := mustApply(t, ds, FilterSpec{})

	res := mustCompute(t, v, Correlation("x", "y", "z", "flat"))
	val, _ := res.Get("correlation")
	m := val.Matrix

	if !closeTo(m.Values[0][0], 1) {
		t.Errorf("corr(x,x) = %v, want 1", m.Values[0][0])
	}
	if !closeTo(m.Values[0][1], 1) {
		t.Errorf("corr(x,y) = %v, want 1", m.Values[0][1])
	}
	if !closeTo(m.Values[0][2], -1) {
		t.Errorf("corr(x,z) = %v, want -1", m.Values[0][2])
	}
	if !math.IsNaN(m.Values[0][3]) {
		t.Errorf("corr against zero-variance column = %v, want NaN", m.Values[0][3])
	}
	if m.Values[1][0] != m.Values[0][1] {
		t.Error("matrix not symmetric")
	}
}

func TestSummary(t *testing.T) {
	ds, err := NewDataset(NumericColumn("v", []float64{2, 4, 4, 4, 5, 5, 7, 9}))
	if err != nil {
		t.Fatal(err)
	}
	v := mustApply(t, ds, FilterSpec{})

	res := mustCompute(t, v, Summary("v"))
	val, _ := res.Get("summary_of_v")
	s := val.Summary

	if s.Rows != 8 || !closeTo(s.Mean, 5) || !closeTo(s.Min, 2) || !closeTo(s.Max, 9) {
		t.Errorf("summary = %+v", s)
	}
	// Sample std of this set: sqrt(32/7).
	if !closeTo(s.Std, math.Sqrt(32.0/7.0)) {
		t.Errorf("std = %v, want %v", s.Std, math.Sqrt(32.0/7.0))
	}
}

func TestHistogram(t *testing.T) {
	ds, err := NewDataset(NumericColumn("v", []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}))
	if err != nil {
		t.Fatal(err)
	}
	v := mustApply(t, ds, FilterSpec{})

	res := mustCompute(t, v, Histogram("v", 2))
	val, _ := res.Get("histogram_of_v")

	if len(val.Buckets) != 2 {
		t.Fatalf("got %d buckets, want 2", len(val.Buckets))
	}
	if val.Buckets[0].Count != 5 || val.Buckets[1].Count != 5 {
		t.Errorf("bucket counts = %d/%d, want 5/5", val.Buckets[0].Count, val.Buckets[1].Count)
	}
	if val.Buckets[1].Hi != 9 {
		t.Errorf("last bucket open at %v, want 9", val.Buckets[1].Hi)
	}
}

func TestHistogramEmptyView(t *testing.T) {
	ds := testDataset(t)
	v := mustApply(t, ds, NewFilterSpec(In("education")))

	res := mustCompute(t, v, Histogram("age_at_marriage", 5))
	val, _ := res.Get("histogram_of_age_at_marriage")
	if len(val.Buckets) != 0 {
		t.Errorf("got %d buckets on empty view, want 0", len(val.Buckets))
	}
}

func TestValueCounts(t *testing.T) {
	ds := testDataset(t)
	v := mustApply(t, ds, FilterSpec{})

	res := mustCompute(t, v, ValueCounts("education"), ValueCounts("divorced"))

	edu, _ := res.Get("counts_of_education")
	if len(edu.Counts) != 3 {
		t.Fatalf("got %d categories, want 3", len(edu.Counts))
	}
	if edu.Counts[0].Value != "college" || edu.Counts[0].Count != 3 {
		t.Errorf("first category = %+v, want college/3", edu.Counts[0])
	}

	div, _ := res.Get("counts_of_divorced")
	if len(div.Counts) != 2 || div.Counts[0].Value != "false" || div.Counts[0].Count != 3 {
		t.Errorf("boolean counts = %+v", div.Counts)
	}
}

func TestComputeSchemaValidation(t *testing.T) {
	ds := testDataset(t)
	v := mustApply(t, ds, FilterSpec{})

	cases := []struct {
		name   string
		metric MetricSpec
	}{
		{"rate unknown column", Rate("no_such_column")},
		{"rate on categorical", Rate("education")},
		{"grouped mean unknown group", GroupedMean("divorced", "no_such_column")},
		{"correlation on categorical", Correlation("age_at_marriage", "education")},
		{"summary on boolean", Summary("divorced")},
		{"histogram without bins", Histogram("age_at_marriage", 0)},
		{"value counts on numeric", ValueCounts("age_at_marriage")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compute(v, []MetricSpec{Count(), tc.metric})
			var se *SchemaError
			if !errors.As(err, &se) {
				t.Fatalf("want SchemaError, got %v", err)
			}
		})
	}
}

func TestResultPreservesMetricOrder(t *testing.T) {
	ds := testDataset(t)
	v := mustApply(t, ds, FilterSpec{})

	res := mustCompute(t, v, Rate("divorced"), Count(), ValueCounts("education"))
	want := []string{"rate_of_divorced", "count", "counts_of_education"}
	names := res.Names()
	if len(names) != len(want) {
		t.Fatalf("got %d names, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("name[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}
