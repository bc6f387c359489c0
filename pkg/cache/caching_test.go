package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ruslano69/wrangle/pkg/core/table"
	"github.com/ruslano69/wrangle/pkg/step"
)

// countingStep tracks how often each data path is taken.
type countingStep struct {
	id     step.ID
	raster *table.Raster

	mu      sync.Mutex
	full    int
	example int
}

func newCountingStep(rows int) *countingStep {
	r := table.NewRaster(table.NewSchema("id"), nil)
	for i := 0; i < rows; i++ {
		r.Rows = append(r.Rows, []string{"x"})
	}
	return &countingStep{id: step.NewID(), raster: r}
}

func (s *countingStep) ID() step.ID { return s.id }

func (s *countingStep) FullData(ctx context.Context) (table.Dataset, error) {
	s.mu.Lock()
	s.full++
	s.mu.Unlock()
	return table.FromRaster(s.raster), nil
}

func (s *countingStep) ExampleData(ctx context.Context, maxIn, maxOut int) (table.Dataset, error) {
	s.mu.Lock()
	s.example++
	s.mu.Unlock()
	n := maxIn
	if maxOut < n {
		n = maxOut
	}
	return table.FromRaster(s.raster).Limit(n), nil
}

func (s *countingStep) fullCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.full
}

func newTestCachingStep(t *testing.T, inner step.Step) *CachingStep {
	t.Helper()
	return NewCachingStep(inner, NewMemoryCache(0), newTestCodec(t), time.Minute)
}

func mustRaster(t *testing.T, ds table.Dataset) *table.Raster {
	t.Helper()
	raster, err := ds.Raster(context.Background())
	if err != nil {
		t.Fatalf("Raster failed: %v", err)
	}
	return raster
}

func TestCachingStepServesSecondCallFromCache(t *testing.T) {
	inner := newCountingStep(10)
	s := newTestCachingStep(t, inner)
	ctx := context.Background()

	ds, err := s.FullData(ctx)
	if err != nil {
		t.Fatalf("FullData failed: %v", err)
	}
	if got := mustRaster(t, ds).NumRows(); got != 10 {
		t.Fatalf("Expected 10 rows, got %d", got)
	}

	ds, err = s.FullData(ctx)
	if err != nil {
		t.Fatalf("FullData failed: %v", err)
	}
	if got := mustRaster(t, ds).NumRows(); got != 10 {
		t.Fatalf("Expected 10 rows from cache, got %d", got)
	}

	if inner.fullCalls() != 1 {
		t.Errorf("Expected 1 inner materialization, got %d", inner.fullCalls())
	}
}

func TestCachingStepExamplesPassThrough(t *testing.T) {
	inner := newCountingStep(10)
	s := newTestCachingStep(t, inner)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ds, err := s.ExampleData(ctx, 5, 500)
		if err != nil {
			t.Fatalf("ExampleData failed: %v", err)
		}
		if got := mustRaster(t, ds).NumRows(); got != 5 {
			t.Fatalf("Expected 5 rows, got %d", got)
		}
	}

	inner.mu.Lock()
	example := inner.example
	inner.mu.Unlock()
	if example != 3 {
		t.Errorf("Expected 3 inner example calls, got %d", example)
	}
}

func TestCachingStepKeepsInnerID(t *testing.T) {
	inner := newCountingStep(1)
	s := newTestCachingStep(t, inner)
	if s.ID() != inner.ID() {
		t.Errorf("Expected wrapper to keep inner ID %s, got %s", inner.ID(), s.ID())
	}
}

func TestCachingStepRecoversFromCorruptEntry(t *testing.T) {
	inner := newCountingStep(5)
	mem := NewMemoryCache(0)
	s := NewCachingStep(inner, mem, newTestCodec(t), time.Minute)
	ctx := context.Background()

	if _, err := s.FullData(ctx); err != nil {
		t.Fatalf("FullData failed: %v", err)
	}

	key := keyPrefix + inner.ID().String()
	if err := mem.Set(ctx, key, []byte("garbage"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	ds, err := s.FullData(ctx)
	if err != nil {
		t.Fatalf("FullData failed: %v", err)
	}
	if got := mustRaster(t, ds).NumRows(); got != 5 {
		t.Errorf("Expected 5 recomputed rows, got %d", got)
	}
	if inner.fullCalls() != 2 {
		t.Errorf("Expected recomputation after corrupt entry, got %d calls", inner.fullCalls())
	}
}

func TestCachingStepInvalidate(t *testing.T) {
	inner := newCountingStep(5)
	s := newTestCachingStep(t, inner)
	ctx := context.Background()

	if _, err := s.FullData(ctx); err != nil {
		t.Fatalf("FullData failed: %v", err)
	}
	if err := s.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, err := s.FullData(ctx); err != nil {
		t.Fatalf("FullData failed: %v", err)
	}

	if inner.fullCalls() != 2 {
		t.Errorf("Expected recomputation after invalidate, got %d calls", inner.fullCalls())
	}
}

func TestCachingStepFilterAfterCacheHit(t *testing.T) {
	inner := newCountingStep(10)
	s := newTestCachingStep(t, inner)
	ctx := context.Background()

	if _, err := s.FullData(ctx); err != nil {
		t.Fatalf("FullData failed: %v", err)
	}

	ds, err := s.FullData(ctx)
	if err != nil {
		t.Fatalf("FullData failed: %v", err)
	}
	keep := 0
	filtered := ds.Filter(func(row []string) (bool, error) {
		keep++
		return keep <= 4, nil
	})
	if got := mustRaster(t, filtered).NumRows(); got != 4 {
		t.Errorf("Expected 4 filtered rows from cached raster, got %d", got)
	}
}
