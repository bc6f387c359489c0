package table

import (
	"context"
	"fmt"
)

// RowPredicate decides whether a row belongs to a filtered result. The row
// slice follows the dataset's column order. An error aborts rasterization.
type RowPredicate func(row []string) (bool, error)

// Dataset is a lazily evaluated tabular result. Columns and Raster may block
// on upstream work and honor context cancellation; Filter only records the
// stage and returns immediately.
type Dataset interface {
	// Columns resolves the column names of the result.
	Columns(ctx context.Context) ([]string, error)

	// Filter returns a dataset that yields only rows matched by pred.
	// The stage is applied during Raster.
	Filter(pred RowPredicate) Dataset

	// Raster materializes the dataset into rows.
	Raster(ctx context.Context) (*Raster, error)
}

// cancelCheckEvery bounds how many rows are processed between context
// checks while materializing.
const cancelCheckEvery = 1024

// MemDataset is a Dataset over an in-memory raster. Filter stages are
// recorded and applied on Raster, so chained datasets share the backing
// rows until materialization.
type MemDataset struct {
	raster *Raster
	preds  []RowPredicate
	limit  int // max rows to emit, <0 means no limit
}

// FromRaster wraps a raster as a lazy dataset.
func FromRaster(r *Raster) *MemDataset {
	return &MemDataset{raster: r, limit: -1}
}

// Columns implements Dataset.
func (d *MemDataset) Columns(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.raster.ColumnNames(), nil
}

// Filter implements Dataset.
func (d *MemDataset) Filter(pred RowPredicate) Dataset {
	next := d.clone()
	next.preds = append(next.preds, pred)
	return next
}

// Limit returns a dataset that emits at most n rows. Stages already
// recorded still apply first.
func (d *MemDataset) Limit(n int) *MemDataset {
	next := d.clone()
	if next.limit < 0 || n < next.limit {
		next.limit = n
	}
	return next
}

// Raster implements Dataset. Context cancellation is checked periodically
// while scanning rows.
func (d *MemDataset) Raster(ctx context.Context) (*Raster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(d.preds) == 0 && d.limit < 0 {
		return d.raster, nil
	}

	out := make([][]string, 0, estimateCap(d.raster.NumRows(), d.limit))
scan:
	for i, row := range d.raster.Rows {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if d.limit >= 0 && len(out) >= d.limit {
			break
		}
		for _, pred := range d.preds {
			ok, err := pred(row)
			if err != nil {
				return nil, fmt.Errorf("table: filter row %d: %w", i, err)
			}
			if !ok {
				continue scan
			}
		}
		out = append(out, row)
	}
	return NewRaster(d.raster.Schema, out), nil
}

func (d *MemDataset) clone() *MemDataset {
	next := &MemDataset{raster: d.raster, limit: d.limit}
	next.preds = append(next.preds, d.preds...)
	return next
}

func estimateCap(rows, limit int) int {
	if limit >= 0 && limit < rows {
		return limit
	}
	return rows
}
