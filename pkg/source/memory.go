// Package source provides reference Step implementations the calculation
// engine can drive: a static in-memory table, a SQL query over a local
// SQLite workspace, and a CSV file reader. They are deliberately local;
// warehouse connectivity is out of scope.
package source

import (
	"context"

	"github.com/ruslano69/wrangle/pkg/core/table"
	"github.com/ruslano69/wrangle/pkg/step"
)

// MemoryStep serves a static raster. Example mode returns a prefix of the
// rows: for a leaf source every produced row costs one input row, so both
// caps apply directly.
type MemoryStep struct {
	id     step.ID
	raster *table.Raster
}

// NewMemoryStep wraps a raster as a step.
func NewMemoryStep(r *table.Raster) *MemoryStep {
	return &MemoryStep{id: step.NewID(), raster: r}
}

// ID implements step.Step.
func (s *MemoryStep) ID() step.ID {
	return s.id
}

// FullData implements step.Step.
func (s *MemoryStep) FullData(ctx context.Context) (table.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return table.FromRaster(s.raster), nil
}

// ExampleData implements step.Step.
func (s *MemoryStep) ExampleData(ctx context.Context, maxInputRows, maxOutputRows int) (table.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := maxInputRows
	if maxOutputRows < n {
		n = maxOutputRows
	}
	if n < 0 {
		n = 0
	}
	return table.FromRaster(s.raster).Limit(n), nil
}
