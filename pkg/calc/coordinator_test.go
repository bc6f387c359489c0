package calc

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ruslano69/wrangle/pkg/core/filter"
	"github.com/ruslano69/wrangle/pkg/core/table"
	"github.com/ruslano69/wrangle/pkg/step"
)

// fakeStep is a controllable step: rows returned per budget, optional
// delay, error injection, and call accounting.
type fakeStep struct {
	id step.ID

	// rowsFor computes how many rows to produce for a requested input
	// budget (before the maxOutputRows cap). nil means budget rows.
	rowsFor func(maxInput int) int

	delay   time.Duration
	waitCtx bool // block until the context is cancelled
	err     error

	mu      sync.Mutex
	budgets []int
	full    int
}

func newFakeStep() *fakeStep {
	return &fakeStep{id: step.NewID()}
}

func (f *fakeStep) ID() step.ID { return f.id }

func (f *fakeStep) FullData(ctx context.Context) (table.Dataset, error) {
	f.mu.Lock()
	f.full++
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return table.FromRaster(f.raster(1000)), nil
}

func (f *fakeStep) ExampleData(ctx context.Context, maxInput, maxOutput int) (table.Dataset, error) {
	f.mu.Lock()
	f.budgets = append(f.budgets, maxInput)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	n := maxInput
	if f.rowsFor != nil {
		n = f.rowsFor(maxInput)
	}
	if n > maxOutput {
		n = maxOutput
	}
	return table.FromRaster(f.raster(n)), nil
}

func (f *fakeStep) wait(ctx context.Context) error {
	if f.waitCtx {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

func (f *fakeStep) raster(n int) *table.Raster {
	if n < 0 {
		n = 0
	}
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		rows[i] = []string{strconv.Itoa(i + 1), "v" + strconv.Itoa(i+1)}
	}
	return table.NewRaster(table.NewSchema("id", "name"), rows)
}

func (f *fakeStep) exampleCalls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.budgets))
	copy(out, f.budgets)
	return out
}

func newTestCoordinator(t *testing.T, mutate func(*Config)) *Coordinator {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func waitResult(t *testing.T, h *Calculation) (*ResultEnvelope, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.Wait(ctx)
}

func TestCalculateExampleColdStart(t *testing.T) {
	c := newTestCoordinator(t, nil)
	s := newFakeStep()

	sub := c.Subscribe()
	h, err := c.CalculateExample(context.Background(), s, Options{})
	if err != nil {
		t.Fatalf("CalculateExample failed: %v", err)
	}

	env, err := waitResult(t, h)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if env.Raster.NumRows() != 500 {
		t.Errorf("Expected 500 rows, got %d", env.Raster.NumRows())
	}
	if env.Attempts != 1 || env.InputRows != 500 || env.Full {
		t.Errorf("Unexpected envelope: %+v", env)
	}

	calls := s.exampleCalls()
	if len(calls) != 1 || calls[0] != 500 {
		t.Errorf("Expected one execution with budget 500, got %v", calls)
	}
	if c.State() != StateIdle {
		t.Errorf("Expected idle after settle, got %s", c.State())
	}

	select {
	case r := <-sub.C:
		if r.Err != nil || r.Envelope == nil || r.Envelope.StepID != s.id {
			t.Errorf("Unexpected published result: %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("No result published")
	}
}

func TestAdaptiveRetryGrowsBudget(t *testing.T) {
	c := newTestCoordinator(t, nil)
	// Step cuts half the rows away: amplification 0.5.
	s := newFakeStep()
	s.rowsFor = func(maxInput int) int { return maxInput / 2 }

	h, err := c.CalculateExample(context.Background(), s, Options{})
	if err != nil {
		t.Fatalf("CalculateExample failed: %v", err)
	}
	env, err := waitResult(t, h)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}

	// First attempt: budget 500 -> 250 rows, too small. The measured
	// amplification 0.5 doubles the next budget.
	calls := s.exampleCalls()
	if len(calls) != 2 {
		t.Fatalf("Expected 2 executions, got %v", calls)
	}
	if calls[0] != 500 || calls[1] != 1000 {
		t.Errorf("Expected budgets [500 1000], got %v", calls)
	}
	if env.Attempts != 2 || env.Raster.NumRows() != 500 {
		t.Errorf("Expected settled envelope after retry, got %+v", env)
	}
}

func TestRetryCeiling(t *testing.T) {
	c := newTestCoordinator(t, func(cfg *Config) {
		cfg.MaxIterations = 3
	})
	// Step never produces rows: each attempt doubles the budget until the
	// iteration ceiling stops the loop.
	s := newFakeStep()
	s.rowsFor = func(int) int { return 0 }

	h, err := c.CalculateExample(context.Background(), s, Options{})
	if err != nil {
		t.Fatalf("CalculateExample failed: %v", err)
	}
	env, err := waitResult(t, h)
	if err != nil {
		t.Fatalf("Expected empty success, got %v", err)
	}

	calls := s.exampleCalls()
	expected := []int{500, 1000, 2000, 4000}
	if len(calls) != len(expected) {
		t.Fatalf("Expected %d executions, got %v", len(expected), calls)
	}
	for i := range expected {
		if calls[i] != expected[i] {
			t.Errorf("Execution %d: expected budget %d, got %d", i, expected[i], calls[i])
		}
	}
	if env.Raster.NumRows() != 0 || env.Attempts != len(expected) {
		t.Errorf("Unexpected envelope: %+v", env)
	}
}

func TestRetryStopsAtMaxBudget(t *testing.T) {
	c := newTestCoordinator(t, func(cfg *Config) {
		cfg.MaxExampleInputRows = 1000
	})
	s := newFakeStep()
	s.rowsFor = func(int) int { return 0 }

	h, _ := c.CalculateExample(context.Background(), s, Options{})
	if _, err := waitResult(t, h); err != nil {
		t.Fatalf("Expected success, got %v", err)
	}

	// 500, then 1000 = max; a budget at the maximum must not re-execute.
	calls := s.exampleCalls()
	if len(calls) != 2 || calls[1] != 1000 {
		t.Errorf("Expected budgets [500 1000], got %v", calls)
	}
}

func TestSupersedeCancelsInFlight(t *testing.T) {
	c := newTestCoordinator(t, nil)
	blocked := newFakeStep()
	blocked.waitCtx = true
	quick := newFakeStep()

	sub := c.Subscribe()
	h1, err := c.CalculateExample(context.Background(), blocked, Options{})
	if err != nil {
		t.Fatalf("CalculateExample failed: %v", err)
	}
	h2, err := c.CalculateExample(context.Background(), quick, Options{})
	if err != nil {
		t.Fatalf("CalculateExample failed: %v", err)
	}
	if h1 == h2 {
		t.Fatalf("Different steps must not coalesce")
	}

	if _, err := waitResult(t, h1); !errors.Is(err, ErrCancelled) {
		t.Errorf("Expected ErrCancelled for superseded call, got %v", err)
	}
	if _, err := waitResult(t, h2); err != nil {
		t.Errorf("Expected success for superseding call, got %v", err)
	}

	// Only the superseding calculation publishes.
	select {
	case r := <-sub.C:
		if r.Envelope == nil || r.Envelope.StepID != quick.id {
			t.Errorf("Expected result for the superseding step, got %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("No result published")
	}
	select {
	case r := <-sub.C:
		t.Errorf("Superseded calculation published a result: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}

	// The abandoned step must not gain a performance record.
	c.mu.Lock()
	_, hasBlocked := c.records[blocked.id]
	_, hasQuick := c.records[quick.id]
	c.mu.Unlock()
	if hasBlocked {
		t.Errorf("Cancelled computation updated the performance record")
	}
	if !hasQuick {
		t.Errorf("Completed computation did not update the performance record")
	}
}

func TestCoalesceSameStep(t *testing.T) {
	c := newTestCoordinator(t, nil)
	s := newFakeStep()
	s.delay = 50 * time.Millisecond

	h1, err := c.CalculateExample(context.Background(), s, Options{})
	if err != nil {
		t.Fatalf("CalculateExample failed: %v", err)
	}
	h2, err := c.CalculateExample(context.Background(), s, Options{})
	if err != nil {
		t.Fatalf("CalculateExample failed: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("Concurrent calls for the same step must share a handle")
	}

	if _, err := waitResult(t, h2); err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if calls := s.exampleCalls(); len(calls) != 1 {
		t.Errorf("Expected no duplicate work, got %d executions", len(calls))
	}
}

func TestCancelIsIdempotentAndSilent(t *testing.T) {
	c := newTestCoordinator(t, nil)
	s := newFakeStep()
	s.waitCtx = true

	sub := c.Subscribe()
	h, err := c.CalculateExample(context.Background(), s, Options{})
	if err != nil {
		t.Fatalf("CalculateExample failed: %v", err)
	}
	if c.State() != StateRunning {
		t.Errorf("Expected running state, got %s", c.State())
	}

	c.Cancel()
	c.Cancel()

	if c.State() != StateIdle {
		t.Errorf("Expected idle after cancel, got %s", c.State())
	}
	if _, err := waitResult(t, h); !errors.Is(err, ErrCancelled) {
		t.Errorf("Expected ErrCancelled, got %v", err)
	}

	select {
	case r := <-sub.C:
		t.Errorf("Cancelled calculation published a result: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}

	c.mu.Lock()
	recorded := len(c.records)
	c.mu.Unlock()
	if recorded != 0 {
		t.Errorf("Cancelled calculation updated performance records")
	}

	// The coordinator accepts new work after cancellation.
	quick := newFakeStep()
	h2, err := c.CalculateExample(context.Background(), quick, Options{})
	if err != nil {
		t.Fatalf("CalculateExample after cancel failed: %v", err)
	}
	if _, err := waitResult(t, h2); err != nil {
		t.Errorf("Expected success after cancel, got %v", err)
	}
}

func TestCallerContextCancellation(t *testing.T) {
	c := newTestCoordinator(t, nil)
	s := newFakeStep()
	s.waitCtx = true

	sub := c.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	h, err := c.CalculateExample(ctx, s, Options{})
	if err != nil {
		t.Fatalf("CalculateExample failed: %v", err)
	}
	cancel()

	_, err = waitResult(t, h)
	if err == nil || !IsCancelled(err) {
		t.Fatalf("Expected cancellation error, got %v", err)
	}

	// Caller-side cancellation surfaces as a failure result so observers
	// can distinguish it from silence.
	select {
	case r := <-sub.C:
		if r.Envelope != nil {
			t.Errorf("Cancelled computation published an envelope")
		}
		if !IsCancelled(r.Err) {
			t.Errorf("Expected cancellation classification, got %v", r.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Expected a failure result")
	}

	c.mu.Lock()
	recorded := len(c.records)
	c.mu.Unlock()
	if recorded != 0 {
		t.Errorf("Cancelled computation updated performance records")
	}
}

func TestUpstreamFailureNotRetried(t *testing.T) {
	c := newTestCoordinator(t, nil)
	s := newFakeStep()
	boom := errors.New("upstream exploded")
	s.err = boom

	h, err := c.CalculateExample(context.Background(), s, Options{})
	if err != nil {
		t.Fatalf("CalculateExample failed: %v", err)
	}
	_, err = waitResult(t, h)
	if !errors.Is(err, boom) {
		t.Fatalf("Expected upstream error propagated, got %v", err)
	}
	if IsCancelled(err) {
		t.Errorf("Upstream failure misclassified as cancellation")
	}
	if calls := s.exampleCalls(); len(calls) != 1 {
		t.Errorf("Failures must not be retried, got %d executions", len(calls))
	}
}

func TestNoStepIsSynchronous(t *testing.T) {
	c := newTestCoordinator(t, nil)
	sub := c.Subscribe()

	if _, err := c.CalculateExample(context.Background(), nil, Options{}); !errors.Is(err, ErrNoStep) {
		t.Fatalf("Expected ErrNoStep, got %v", err)
	}
	if _, err := c.Calculate(context.Background(), nil, FullMode(), Options{}); !errors.Is(err, ErrNoStep) {
		t.Fatalf("Expected ErrNoStep, got %v", err)
	}
	if c.State() != StateIdle {
		t.Errorf("Expected idle state, got %s", c.State())
	}
	select {
	case r := <-sub.C:
		t.Errorf("Unexpected published result: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCalculateFullMode(t *testing.T) {
	c := newTestCoordinator(t, nil)
	s := newFakeStep()

	h, err := c.Calculate(context.Background(), s, FullMode(), Options{})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	env, err := waitResult(t, h)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if !env.Full || env.Raster.NumRows() != 1000 {
		t.Errorf("Unexpected full envelope: %+v", env)
	}

	s.mu.Lock()
	fullCalls := s.full
	s.mu.Unlock()
	if fullCalls != 1 {
		t.Errorf("Expected one full computation, got %d", fullCalls)
	}

	// Full computations do not feed example statistics.
	c.mu.Lock()
	recorded := len(c.records)
	c.mu.Unlock()
	if recorded != 0 {
		t.Errorf("Full computation updated performance records")
	}
}

func TestExplicitExampleModeRecords(t *testing.T) {
	c := newTestCoordinator(t, nil)
	s := newFakeStep()

	h, err := c.Calculate(context.Background(), s, ExampleMode(100, 50), Options{})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	env, err := waitResult(t, h)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	// 100 input rows capped to 50 output rows; no internal retry.
	if env.Raster.NumRows() != 50 || env.Attempts != 1 || env.InputRows != 100 {
		t.Errorf("Unexpected envelope: %+v", env)
	}

	c.mu.Lock()
	rec := c.records[s.id]
	c.mu.Unlock()
	if rec == nil || rec.Executions() != 1 {
		t.Errorf("Expected one recorded execution, got %+v", rec)
	}
}

func TestFiltersAppliedBeforeRasterize(t *testing.T) {
	c := newTestCoordinator(t, nil)
	s := newFakeStep()

	filters := filter.ColumnFilters{"id": filter.NewSet(filter.Lte("3"))}
	h, err := c.Calculate(context.Background(), s, FullMode(), Options{Filters: filters})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	env, err := waitResult(t, h)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if env.Raster.NumRows() != 3 {
		t.Errorf("Expected 3 filtered rows, got %d", env.Raster.NumRows())
	}
	if len(env.Filters) != 1 {
		t.Errorf("Expected applied filters on the envelope, got %v", env.Filters)
	}
}

func TestFilterUnknownColumnFails(t *testing.T) {
	c := newTestCoordinator(t, nil)
	s := newFakeStep()

	h, err := c.CalculateExample(context.Background(), s, Options{
		Filters: filter.ColumnFilters{"ghost": filter.NewSet(filter.Eq("1"))},
	})
	if err != nil {
		t.Fatalf("CalculateExample failed: %v", err)
	}
	_, err = waitResult(t, h)
	if !errors.Is(err, filter.ErrUnknownColumn) {
		t.Fatalf("Expected ErrUnknownColumn, got %v", err)
	}
	if calls := s.exampleCalls(); len(calls) != 1 {
		t.Errorf("Filter errors must not be retried, got %d executions", len(calls))
	}
}

func TestResultsPublishedInResolutionOrder(t *testing.T) {
	c := newTestCoordinator(t, nil)
	sub := c.Subscribe()

	var ids []step.ID
	for i := 0; i < 5; i++ {
		s := newFakeStep()
		ids = append(ids, s.id)
		h, err := c.CalculateExample(context.Background(), s, Options{})
		if err != nil {
			t.Fatalf("CalculateExample failed: %v", err)
		}
		if _, err := waitResult(t, h); err != nil {
			t.Fatalf("Expected success, got %v", err)
		}
	}

	for i, want := range ids {
		select {
		case r := <-sub.C:
			if r.Envelope == nil || r.Envelope.StepID != want {
				t.Fatalf("Result %d out of order: %+v", i, r)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out waiting for result %d", i)
		}
	}
}

func TestClosedCoordinatorRejectsWork(t *testing.T) {
	c := newTestCoordinator(t, nil)
	sub := c.Subscribe()
	c.Close()
	c.Close()

	if _, err := c.CalculateExample(context.Background(), newFakeStep(), Options{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}

	select {
	case _, ok := <-sub.C:
		if ok {
			t.Errorf("Expected subscriber channel to close")
		}
	case <-time.After(2 * time.Second):
		t.Errorf("Subscriber channel did not close")
	}
}

func TestMaxTimeOptionShortensRetries(t *testing.T) {
	c := newTestCoordinator(t, nil)
	// Each execution takes ~20ms and produces nothing; a 30ms budget
	// affords the first execution but not a second of equal cost.
	s := newFakeStep()
	s.rowsFor = func(int) int { return 0 }
	s.delay = 20 * time.Millisecond

	h, err := c.CalculateExample(context.Background(), s, Options{MaxTime: 30 * time.Millisecond})
	if err != nil {
		t.Fatalf("CalculateExample failed: %v", err)
	}
	if _, err := waitResult(t, h); err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if calls := s.exampleCalls(); len(calls) != 1 {
		t.Errorf("Expected no retry within exhausted time budget, got %v", calls)
	}
}
