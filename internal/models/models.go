package models

// DTOs exchanged with the presentation layer. Undefined numeric values
// (NaN sentinels from the engine) are carried as nil pointers so they
// serialize as JSON null.

type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type SchemaResponse struct {
	Rows    int          `json:"rows"`
	Columns []ColumnInfo `json:"columns"`
}

// OverviewResponse backs the dashboard's headline metric row: dataset size
// plus the overall rate of the configured target column.
type OverviewResponse struct {
	Rows         int      `json:"rows"`
	Columns      int      `json:"columns"`
	TargetColumn string   `json:"target_column,omitempty"`
	TargetRate   *float64 `json:"target_rate,omitempty"`
}

type RowsResponse struct {
	Data   []map[string]any `json:"data"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// RangeFilter keeps rows with Column in [Min, Max] inclusive.
type RangeFilter struct {
	Column string  `json:"column"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// MembershipFilter keeps rows whose value appears in the selected set.
// Values is for categorical columns, Numbers for numeric ones. An empty
// selection matches nothing.
type MembershipFilter struct {
	Column  string    `json:"column"`
	Values  []string  `json:"values,omitempty"`
	Numbers []float64 `json:"numbers,omitempty"`
}

type BoolFilter struct {
	Column string `json:"column"`
	Value  bool   `json:"value"`
}

// Filters is the wire form of a FilterSpec. All predicates combine by AND.
type Filters struct {
	Ranges []RangeFilter      `json:"ranges,omitempty"`
	In     []MembershipFilter `json:"in,omitempty"`
	Equals []BoolFilter       `json:"equals,omitempty"`
}

// MetricRequest selects one aggregation. Kind is one of count, rate,
// grouped_mean, correlation, summary, histogram, value_counts.
type MetricRequest struct {
	Kind    string   `json:"kind"`
	Column  string   `json:"column,omitempty"`
	GroupBy string   `json:"group_by,omitempty"`
	Columns []string `json:"columns,omitempty"`
	Bins    int      `json:"bins,omitempty"`
}

type QueryRequest struct {
	Filters     Filters         `json:"filters"`
	Metrics     []MetricRequest `json:"metrics,omitempty"`
	SampleLimit int             `json:"sample_limit,omitempty"`
}

type GroupPayload struct {
	Key  string  `json:"key"`
	Mean float64 `json:"mean"`
	Rows int     `json:"rows"`
}

type SummaryPayload struct {
	Rows int      `json:"rows"`
	Mean *float64 `json:"mean"`
	Std  *float64 `json:"std"`
	Min  *float64 `json:"min"`
	Max  *float64 `json:"max"`
}

type BucketPayload struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

type CategoryCountPayload struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type MatrixPayload struct {
	Columns []string     `json:"columns"`
	Values  [][]*float64 `json:"values"`
}

// MetricPayload is one computed metric; the populated field depends on Kind.
type MetricPayload struct {
	Name    string                 `json:"name"`
	Kind    string                 `json:"kind"`
	Scalar  *float64               `json:"scalar,omitempty"`
	Groups  []GroupPayload         `json:"groups,omitempty"`
	Summary *SummaryPayload        `json:"summary,omitempty"`
	Buckets []BucketPayload        `json:"buckets,omitempty"`
	Counts  []CategoryCountPayload `json:"counts,omitempty"`
	Matrix  *MatrixPayload         `json:"matrix,omitempty"`
}

// QueryResponse is the serialized ViewModel: filtered sample rows plus the
// requested aggregates, in request order.
type QueryResponse struct {
	Rows      int              `json:"rows"`
	TotalRows int              `json:"total_rows"`
	ShownPct  *float64         `json:"shown_pct"`
	Sample    []map[string]any `json:"sample"`
	Metrics   []MetricPayload  `json:"metrics"`
}
