package engine

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/csv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// LoadError wraps any failure while fetching or parsing a dataset source.
// The loader never returns a partial dataset.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load %s: %v", e.Source, e.Err) }

func (e *LoadError) Unwrap() error { return e.Err }

// LoadOptions reinterprets inferred column types. CSV files encode booleans
// as 0/1 integers more often than not, so columns listed in BoolColumns are
// converted from 0/1 numerics; CategoricalColumns forces discrete numeric
// columns into dictionary-encoded string categories.
type LoadOptions struct {
	BoolColumns        []string
	CategoricalColumns []string
}

// Load reads a delimited table from a file path or http(s) URL into an
// immutable Dataset. Column types are inferred by the Arrow CSV reader:
// integers and floats become numeric columns (nulls as NaN), true/false
// becomes boolean, everything else becomes categorical.
func Load(ctx context.Context, source string, opts LoadOptions) (*Dataset, error) {
	start := time.Now()

	rc, err := open(ctx, source)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	defer rc.Close()

	cols, err := readColumns(rc)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	if err := applyHints(cols, opts); err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}

	ds, err := NewDataset(cols...)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}

	log.WithFields(log.Fields{
		"source":  source,
		"rows":    ds.NumRows(),
		"columns": ds.NumColumns(),
		"elapsed": time.Since(start),
	}).Info("dataset loaded")
	return ds, nil
}

func open(ctx context.Context, source string) (io.ReadCloser, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, errors.Errorf("unexpected status %s", resp.Status)
		}
		return resp.Body, nil
	}
	return os.Open(source)
}

// colBuilder accumulates one column across record batches before the final
// Column is assembled.
type colBuilder struct {
	name   string
	typ    ColumnType
	floats []float64
	bools  []bool
	strs   []string
}

func readColumns(r io.Reader) ([]*Column, error) {
	rdr := csv.NewInferringReader(r,
		csv.WithHeader(true),
		csv.WithChunk(1024),
		csv.WithNullReader(true, "", "NA", "null"),
	)
	defer rdr.Release()

	var builders []*colBuilder
	for rdr.Next() {
		rec := rdr.Record()
		if builders == nil {
			builders = make([]*colBuilder, rec.NumCols())
			for i, f := range rec.Schema().Fields() {
				builders[i] = &colBuilder{name: f.Name, typ: inferType(rec.Column(i))}
			}
		}
		for i := range builders {
			builders[i].append(rec.Column(i))
		}
	}
	if err := rdr.Err(); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "read csv")
	}
	if builders == nil {
		return nil, errors.New("empty table")
	}

	cols := make([]*Column, len(builders))
	for i, b := range builders {
		cols[i] = b.build()
	}
	return cols, nil
}

func inferType(arr arrow.Array) ColumnType {
	switch arr.(type) {
	case *array.Int64, *array.Float64:
		return Numeric
	case *array.Boolean:
		return Boolean
	default:
		return Categorical
	}
}

func (b *colBuilder) append(arr arrow.Array) {
	n := arr.Len()
	switch a := arr.(type) {
	case *array.Int64:
		for i := 0; i < n; i++ {
			if a.IsNull(i) {
				b.floats = append(b.floats, math.NaN())
			} else {
				b.floats = append(b.floats, float64(a.Value(i)))
			}
		}
	case *array.Float64:
		for i := 0; i < n; i++ {
			if a.IsNull(i) {
				b.floats = append(b.floats, math.NaN())
			} else {
				b.floats = append(b.floats, a.Value(i))
			}
		}
	case *array.Boolean:
		for i := 0; i < n; i++ {
			b.bools = append(b.bools, !a.IsNull(i) && a.Value(i))
		}
	default:
		// Strings, dates, anything else: keep the textual form.
		for i := 0; i < n; i++ {
			if arr.IsNull(i) {
				b.strs = append(b.strs, "")
			} else {
				b.strs = append(b.strs, arr.ValueStr(i))
			}
		}
	}
}

func (b *colBuilder) build() *Column {
	switch b.typ {
	case Numeric:
		return NumericColumn(b.name, b.floats)
	case Boolean:
		return BooleanColumn(b.name, b.bools)
	default:
		return CategoricalColumn(b.name, b.strs)
	}
}

func applyHints(cols []*Column, opts LoadOptions) error {
	byName := make(map[string]*Column, len(cols))
	for _, c := range cols {
		byName[c.Name] = c
	}

	for _, name := range opts.BoolColumns {
		c, ok := byName[name]
		if !ok {
			return errors.Errorf("bool column hint %q: no such column", name)
		}
		switch c.Type {
		case Boolean:
			// already boolean, nothing to do
		case Numeric:
			bools := make([]bool, len(c.Floats))
			for i, f := range c.Floats {
				switch f {
				case 0:
				case 1:
					bools[i] = true
				default:
					return errors.Errorf("bool column hint %q: row %d has value %v, want 0 or 1", name, i, f)
				}
			}
			c.Type = Boolean
			c.Bools = bools
			c.Floats = nil
		default:
			return errors.Errorf("bool column hint %q: column is %s", name, c.Type)
		}
	}

	for _, name := range opts.CategoricalColumns {
		c, ok := byName[name]
		if !ok {
			return errors.Errorf("categorical column hint %q: no such column", name)
		}
		if c.Type == Categorical {
			continue
		}
		var strs []string
		switch c.Type {
		case Numeric:
			strs = make([]string, len(c.Floats))
			for i, f := range c.Floats {
				strs[i] = strconv.FormatFloat(f, 'g', -1, 64)
			}
		case Boolean:
			strs = make([]string, len(c.Bools))
			for i, v := range c.Bools {
				strs[i] = strconv.FormatBool(v)
			}
		}
		enc := CategoricalColumn(c.Name, strs)
		c.Type = Categorical
		c.IDs = enc.IDs
		c.Dict = enc.Dict
		c.Floats = nil
		c.Bools = nil
	}
	return nil
}
