package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ruslano69/wrangle/pkg/core/table"
	"github.com/ruslano69/wrangle/pkg/step"
)

// csvCancelCheckEvery bounds how many records are read between context
// checks.
const csvCancelCheckEvery = 1024

// CSVStep reads a delimited text file. Example mode stops reading after the
// row budget is reached, so large files never get fully parsed for a
// preview.
type CSVStep struct {
	id     step.ID
	path   string
	comma  rune
	header bool
}

// CSVOption adjusts how a CSV file is read.
type CSVOption func(*CSVStep)

// WithComma sets the field delimiter. The default is ','.
func WithComma(r rune) CSVOption {
	return func(s *CSVStep) { s.comma = r }
}

// WithoutHeader treats the first record as data. Columns are then named
// col1..colN.
func WithoutHeader() CSVOption {
	return func(s *CSVStep) { s.header = false }
}

// NewCSVStep builds a step over the given file path. The file is read each
// time data is requested, never held open. The step identity is derived
// from the absolute path, so the same file keeps the same ID across
// processes.
func NewCSVStep(path string, opts ...CSVOption) *CSVStep {
	s := &CSVStep{id: step.NewID(), path: path, comma: ',', header: true}
	for _, opt := range opts {
		opt(s)
	}
	if abs, err := filepath.Abs(path); err == nil {
		s.id = step.DeriveID("csv", abs, string(s.comma), strconv.FormatBool(s.header))
	}
	return s
}

// ID implements step.Step.
func (s *CSVStep) ID() step.ID {
	return s.id
}

// FullData implements step.Step.
func (s *CSVStep) FullData(ctx context.Context) (table.Dataset, error) {
	raster, err := s.read(ctx, -1)
	if err != nil {
		return nil, err
	}
	return table.FromRaster(raster), nil
}

// ExampleData implements step.Step.
func (s *CSVStep) ExampleData(ctx context.Context, maxInputRows, maxOutputRows int) (table.Dataset, error) {
	n := maxInputRows
	if maxOutputRows < n {
		n = maxOutputRows
	}
	if n < 0 {
		n = 0
	}
	raster, err := s.read(ctx, n)
	if err != nil {
		return nil, err
	}
	return table.FromRaster(raster), nil
}

// read parses up to maxRecords data records, or all of them when
// maxRecords is negative.
func (s *CSVStep) read(ctx context.Context, maxRecords int) (*table.Raster, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("source: open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = s.comma
	r.ReuseRecord = false

	var schema table.Schema
	if s.header {
		head, err := r.Read()
		if err == io.EOF {
			return nil, fmt.Errorf("source: csv %s is empty", s.path)
		}
		if err != nil {
			return nil, fmt.Errorf("source: read csv header: %w", err)
		}
		schema = table.NewSchema(head...)
	}

	raster := &table.Raster{}
	for n := 0; maxRecords < 0 || n < maxRecords; n++ {
		if n%csvCancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("source: read csv record %d: %w", n, err)
		}
		if len(schema.Fields) == 0 {
			names := make([]string, len(record))
			for i := range names {
				names[i] = fmt.Sprintf("col%d", i+1)
			}
			schema = table.NewSchema(names...)
		}
		raster.Rows = append(raster.Rows, record)
	}
	raster.Schema = schema
	return raster, nil
}
