package engine

// ViewModel is the full payload handed to the presentation layer: the
// filtered rows plus every requested aggregate, all derived from one
// consistent snapshot.
type ViewModel struct {
	View       *View
	Aggregates *Result
}

// Build runs the whole pipeline: validate, filter, aggregate. Validation of
// both the filter spec and the metric specs happens before any row is
// scanned, so a schema mismatch never yields a partial result.
//
// Build is pure and recomputes everything from scratch on every call. The
// datasets involved are small (hundreds of rows), so full recomputation is
// cheaper than keeping incremental state correct.
func Build(ds *Dataset, spec FilterSpec, metrics []MetricSpec) (*ViewModel, error) {
	if err := spec.Validate(ds); err != nil {
		return nil, err
	}
	if err := ValidateMetrics(ds, metrics); err != nil {
		return nil, err
	}
	view, err := Apply(ds, spec)
	if err != nil {
		return nil, err
	}
	aggs, err := Compute(view, metrics)
	if err != nil {
		return nil, err
	}
	return &ViewModel{View: view, Aggregates: aggs}, nil
}
