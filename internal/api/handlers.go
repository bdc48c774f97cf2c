package api

import (
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/tishsrisasi/divorce-dashboard/internal/engine"
	"github.com/tishsrisasi/divorce-dashboard/internal/models"
)

const defaultSampleLimit = 5

// Handler serves the dataset over HTTP. It starts with no dataset and
// answers 503 until the background load swaps one in; after that the
// dataset is read-only and shared across requests.
type Handler struct {
	mu     sync.RWMutex
	ds     *engine.Dataset
	target string
}

// NewHandler creates a handler. target is the boolean column whose rate the
// overview endpoint reports; it may be empty.
func NewHandler(target string) *Handler {
	return &Handler{target: target}
}

// SetDataset publishes a loaded dataset to the live API.
func (h *Handler) SetDataset(ds *engine.Dataset) {
	h.mu.Lock()
	h.ds = ds
	h.mu.Unlock()
}

func (h *Handler) dataset() (*engine.Dataset, error) {
	h.mu.RLock()
	ds := h.ds
	h.mu.RUnlock()
	if ds == nil {
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "dataset is still loading")
	}
	return ds, nil
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")
	api.GET("/schema", h.GetSchema)
	api.GET("/overview", h.GetOverview)
	api.GET("/rows", h.GetRows)
	api.POST("/query", h.PostQuery)
}

func getPaginationParams(c echo.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// httpError maps engine errors onto status codes: schema mismatches are the
// caller's fault, everything else is ours.
func httpError(err error) error {
	var se *engine.SchemaError
	if errors.As(err, &se) {
		return echo.NewHTTPError(http.StatusBadRequest, se.Error())
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) GetSchema(c echo.Context) error {
	ds, err := h.dataset()
	if err != nil {
		return err
	}
	resp := models.SchemaResponse{Rows: ds.NumRows()}
	for _, col := range ds.Columns() {
		resp.Columns = append(resp.Columns, models.ColumnInfo{Name: col.Name, Type: col.Type.String()})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetOverview(c echo.Context) error {
	ds, err := h.dataset()
	if err != nil {
		return err
	}
	resp := models.OverviewResponse{
		Rows:    ds.NumRows(),
		Columns: ds.NumColumns(),
	}
	if h.target != "" {
		vm, err := engine.Build(ds, engine.FilterSpec{}, []engine.MetricSpec{engine.Rate(h.target)})
		if err != nil {
			return httpError(err)
		}
		v, _ := vm.Aggregates.Get("rate_of_" + h.target)
		resp.TargetColumn = h.target
		resp.TargetRate = fptr(v.Scalar)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetRows(c echo.Context) error {
	ds, err := h.dataset()
	if err != nil {
		return err
	}
	total := ds.NumRows()
	limit, offset := getPaginationParams(c, defaultSampleLimit)

	data := make([]map[string]any, 0, limit)
	for i := offset; i < total && i < offset+limit; i++ {
		data = append(data, ds.Row(i))
	}
	return c.JSON(http.StatusOK, models.RowsResponse{
		Data:   data,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// PostQuery is the reactive recomputation endpoint: every call rebuilds the
// filtered view and all requested aggregates from scratch.
func (h *Handler) PostQuery(c echo.Context) error {
	ds, err := h.dataset()
	if err != nil {
		return err
	}

	var req models.QueryRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	metrics, err := toMetricSpecs(req.Metrics)
	if err != nil {
		return err
	}
	if len(metrics) == 0 {
		metrics = append(metrics, engine.Count())
		if h.target != "" {
			metrics = append(metrics, engine.Rate(h.target))
		}
	}

	vm, err := engine.Build(ds, toFilterSpec(ds, req.Filters), metrics)
	if err != nil {
		return httpError(err)
	}

	limit := req.SampleLimit
	if limit <= 0 {
		limit = defaultSampleLimit
	}

	resp := models.QueryResponse{
		Rows:      vm.View.NumRows(),
		TotalRows: ds.NumRows(),
		Sample:    vm.View.Rows(limit),
		Metrics:   toMetricPayloads(vm.Aggregates),
	}
	if ds.NumRows() > 0 {
		pct := float64(vm.View.NumRows()) / float64(ds.NumRows()) * 100
		resp.ShownPct = &pct
	}
	return c.JSON(http.StatusOK, resp)
}
