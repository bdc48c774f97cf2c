package api

import (
	"math"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tishsrisasi/divorce-dashboard/internal/engine"
	"github.com/tishsrisasi/divorce-dashboard/internal/models"
)

// fptr maps the engine's NaN sentinel to nil so it serializes as null.
func fptr(f float64) *float64 {
	if math.IsNaN(f) {
		return nil
	}
	return &f
}

func toFilterSpec(ds *engine.Dataset, f models.Filters) engine.FilterSpec {
	preds := make([]engine.Predicate, 0, len(f.Ranges)+len(f.In)+len(f.Equals))
	for _, r := range f.Ranges {
		preds = append(preds, engine.Range(r.Column, r.Min, r.Max))
	}
	for _, m := range f.In {
		preds = append(preds, toMembership(ds, m))
	}
	for _, b := range f.Equals {
		preds = append(preds, engine.Equals(b.Column, b.Value))
	}
	return engine.NewFilterSpec(preds...)
}

// toMembership picks the numeric or categorical membership predicate. An
// empty selection carries no values of either kind, so the named column's
// type decides; "select none" on a numeric column must stay a valid empty
// view, not a schema mismatch.
func toMembership(ds *engine.Dataset, m models.MembershipFilter) engine.Predicate {
	if len(m.Numbers) > 0 {
		return engine.InNumbers(m.Column, m.Numbers...)
	}
	if len(m.Values) > 0 {
		return engine.In(m.Column, m.Values...)
	}
	if col, ok := ds.Column(m.Column); ok && col.Type == engine.Numeric {
		return engine.InNumbers(m.Column)
	}
	// Unknown columns fall through to In and fail spec validation.
	return engine.In(m.Column)
}

func toMetricSpecs(reqs []models.MetricRequest) ([]engine.MetricSpec, error) {
	specs := make([]engine.MetricSpec, 0, len(reqs))
	for _, r := range reqs {
		switch r.Kind {
		case "count":
			specs = append(specs, engine.Count())
		case "rate":
			specs = append(specs, engine.Rate(r.Column))
		case "grouped_mean":
			specs = append(specs, engine.GroupedMean(r.Column, r.GroupBy))
		case "correlation":
			specs = append(specs, engine.Correlation(r.Columns...))
		case "summary":
			specs = append(specs, engine.Summary(r.Column))
		case "histogram":
			specs = append(specs, engine.Histogram(r.Column, r.Bins))
		case "value_counts":
			specs = append(specs, engine.ValueCounts(r.Column))
		default:
			return nil, echo.NewHTTPError(http.StatusBadRequest, "unknown metric kind: "+r.Kind)
		}
	}
	return specs, nil
}

func toMetricPayloads(res *engine.Result) []models.MetricPayload {
	out := make([]models.MetricPayload, 0, len(res.Names()))
	for _, name := range res.Names() {
		v, _ := res.Get(name)
		p := models.MetricPayload{Name: name, Kind: v.Kind.String()}
		switch v.Kind {
		case engine.MetricCount, engine.MetricRate:
			p.Scalar = fptr(v.Scalar)
		case engine.MetricGroupedMean:
			p.Groups = make([]models.GroupPayload, len(v.Groups))
			for i, g := range v.Groups {
				p.Groups[i] = models.GroupPayload{Key: g.Key, Mean: g.Mean, Rows: g.Rows}
			}
		case engine.MetricCorrelation:
			p.Matrix = toMatrixPayload(v.Matrix)
		case engine.MetricSummary:
			p.Summary = &models.SummaryPayload{
				Rows: v.Summary.Rows,
				Mean: fptr(v.Summary.Mean),
				Std:  fptr(v.Summary.Std),
				Min:  fptr(v.Summary.Min),
				Max:  fptr(v.Summary.Max),
			}
		case engine.MetricHistogram:
			p.Buckets = make([]models.BucketPayload, len(v.Buckets))
			for i, b := range v.Buckets {
				p.Buckets[i] = models.BucketPayload{Lo: b.Lo, Hi: b.Hi, Count: b.Count}
			}
		case engine.MetricValueCounts:
			p.Counts = make([]models.CategoryCountPayload, len(v.Counts))
			for i, c := range v.Counts {
				p.Counts[i] = models.CategoryCountPayload{Value: c.Value, Count: c.Count}
			}
		}
		out = append(out, p)
	}
	return out
}

func toMatrixPayload(m *engine.Matrix) *models.MatrixPayload {
	p := &models.MatrixPayload{
		Columns: m.Columns,
		Values:  make([][]*float64, len(m.Values)),
	}
	for i, row := range m.Values {
		p.Values[i] = make([]*float64, len(row))
		for j, f := range row {
			p.Values[i][j] = fptr(f)
		}
	}
	return p
}
