package calc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ruslano69/wrangle/pkg/core/filter"
	"github.com/ruslano69/wrangle/pkg/core/table"
	"github.com/ruslano69/wrangle/pkg/stats"
	"github.com/ruslano69/wrangle/pkg/step"
)

// State of a coordinator.
type State int

const (
	// StateIdle - no calculation in flight.
	StateIdle State = iota

	// StateRunning - a calculation is in flight.
	StateRunning
)

// String returns the state name.
func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// Options tune one calculation call.
type Options struct {
	// MaxTime overrides the configured soft time budget for this call.
	// Zero means use the default. The budget steers sizing and retries;
	// it never kills a running stage.
	MaxTime time.Duration

	// Filters restrict the result per column. They are bound to concrete
	// columns once the result's column set is known and applied before
	// rasterization.
	Filters filter.ColumnFilters
}

// Coordinator runs the calculations of one pipeline view. At most one
// computation is in flight at a time: a request for a different step (or a
// different mode of the same step) supersedes the running one, concurrent
// requests for the same work share the in-flight handle.
//
// Completed example executions feed per-step performance records, which the
// budget estimator uses to size the next example. Records live only as long
// as the coordinator.
type Coordinator struct {
	config    Config
	log       zerolog.Logger
	estimator *BudgetEstimator
	bus       *Bus

	mu      sync.Mutex
	current *Calculation
	records map[step.ID]*stats.PerformanceRecord
	closed  bool
}

// New creates a coordinator from config.
func New(config Config) (*Coordinator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("calc: invalid config: %w", err)
	}
	estimator, err := NewBudgetEstimator(config)
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		config:    config,
		log:       config.Logger,
		estimator: estimator,
		bus:       newBus(config.ResultBuffer),
		records:   make(map[step.ID]*stats.PerformanceRecord),
	}, nil
}

// Subscribe registers a result subscriber. Results arrive in the order the
// calculations settled.
func (c *Coordinator) Subscribe() *Subscription {
	return c.bus.Subscribe()
}

// State returns the coordinator state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return StateRunning
	}
	return StateIdle
}

// CalculateExample computes an adaptive preview of the step: the input
// budget comes from the step's performance record, and undersized results
// are re-executed with the remaining time budget until the result is big
// enough, the time is spent, or the iteration ceiling is hit. Exactly one
// result is published per call.
func (c *Coordinator) CalculateExample(ctx context.Context, s step.Step, opts Options) (*Calculation, error) {
	if s == nil {
		return nil, ErrNoStep
	}
	maxTime := opts.MaxTime
	if maxTime == 0 {
		maxTime = c.config.MaxExampleTime
	}

	calc, calcCtx, err := c.admit(ctx, s, false)
	if err != nil {
		return nil, err
	}
	if calcCtx == nil {
		return calc, nil
	}

	go c.runAdaptive(calcCtx, calc, s, opts, maxTime)
	return calc, nil
}

// Calculate computes the step once in the given mode, without adaptive
// sizing or re-execution. Completed example executions still feed the
// step's performance record.
func (c *Coordinator) Calculate(ctx context.Context, s step.Step, mode Mode, opts Options) (*Calculation, error) {
	if s == nil {
		return nil, ErrNoStep
	}

	calc, calcCtx, err := c.admit(ctx, s, mode.Full())
	if err != nil {
		return nil, err
	}
	if calcCtx == nil {
		return calc, nil
	}

	go c.runSingle(calcCtx, calc, s, mode, opts)
	return calc, nil
}

// Cancel abandons the in-flight calculation, if any. The abandoned
// computation publishes nothing and leaves performance records untouched.
// Idempotent.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	cur := c.current
	if cur != nil {
		c.detachLocked(cur)
	}
	c.mu.Unlock()

	if cur != nil {
		calculationsTotal.WithLabelValues(modeLabel(cur.full), statusCancelled).Inc()
		c.log.Debug().Stringer("step", cur.stepID).Msg("calculation cancelled")
	}
}

// Close cancels in-flight work and shuts down result delivery. Queued
// results are still delivered, then subscriber channels close. Further
// calculation calls fail with ErrClosed.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if cur := c.current; cur != nil {
		c.detachLocked(cur)
	}
	c.mu.Unlock()
	c.bus.close()
}

// admit resolves the single-flight rule for a new call. It returns the
// handle to track plus a derived context when new work must start; a nil
// context means the call coalesced with the in-flight calculation.
func (c *Coordinator) admit(ctx context.Context, s step.Step, full bool) (*Calculation, context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, nil, ErrClosed
	}
	if cur := c.current; cur != nil {
		if cur.stepID == s.ID() && cur.full == full {
			return cur, nil, nil
		}
		c.detachLocked(cur)
	}

	calcCtx, cancel := context.WithCancel(ctx)
	calc := newCalculation(s.ID(), full, cancel)
	c.current = calc
	return calc, calcCtx, nil
}

// detachLocked cancels cur and makes any later completion of it stale.
// Callers hold c.mu.
func (c *Coordinator) detachLocked(cur *Calculation) {
	cur.cancel()
	cur.resolve(nil, ErrCancelled)
	c.current = nil
}

// runAdaptive is the example loop: estimate a budget, compute, record the
// measurement, and either retry with the remaining time or settle.
func (c *Coordinator) runAdaptive(ctx context.Context, calc *Calculation, s step.Step, opts Options, maxTime time.Duration) {
	desired := c.config.DesiredExampleRows
	remaining := maxTime
	var total time.Duration

	for attempt := 0; ; attempt++ {
		c.mu.Lock()
		if c.current != calc {
			c.mu.Unlock()
			return
		}
		budget := c.estimator.Estimate(c.records[calc.stepID], desired, remaining)
		c.mu.Unlock()

		budgetRows.Set(float64(budget))
		c.log.Debug().
			Stringer("step", calc.stepID).
			Int("attempt", attempt).
			Int("budget", budget).
			Dur("remaining", remaining).
			Msg("starting example calculation")

		started := time.Now()
		raster, err := c.compute(ctx, s, ExampleMode(budget, desired), opts.Filters)
		elapsed := time.Since(started)
		total += elapsed

		c.mu.Lock()
		if c.current != calc {
			c.mu.Unlock()
			c.log.Debug().Stringer("step", calc.stepID).Msg("dropping superseded calculation")
			return
		}
		if err != nil {
			c.current = nil
			c.bus.publish(Result{StepID: calc.stepID, Err: err})
			calc.resolve(nil, err)
			c.mu.Unlock()
			c.settled("example", err, total, calc.stepID)
			return
		}

		rows := raster.NumRows()
		c.recordLocked(calc.stepID).Observe(budget, rows, elapsed)
		remaining -= elapsed

		if rows < desired && remaining > elapsed &&
			budget < c.config.MaxExampleInputRows && attempt < c.config.MaxIterations {
			c.mu.Unlock()
			retriesTotal.Inc()
			c.log.Debug().
				Stringer("step", calc.stepID).
				Int("rows", rows).
				Int("desired", desired).
				Dur("remaining", remaining).
				Msg("result smaller than desired, re-executing")
			continue
		}

		c.current = nil
		env := &ResultEnvelope{
			StepID:    calc.stepID,
			Raster:    raster,
			Filters:   opts.Filters,
			Attempts:  attempt + 1,
			InputRows: budget,
			Elapsed:   total,
		}
		c.bus.publish(Result{StepID: calc.stepID, Envelope: env})
		calc.resolve(env, nil)
		c.mu.Unlock()

		c.settled("example", nil, total, calc.stepID)
		c.log.Debug().
			Stringer("step", calc.stepID).
			Int("rows", rows).
			Int("attempts", attempt+1).
			Dur("elapsed", total).
			Msg("example calculation complete")
		return
	}
}

// runSingle computes one mode once and settles.
func (c *Coordinator) runSingle(ctx context.Context, calc *Calculation, s step.Step, mode Mode, opts Options) {
	started := time.Now()
	raster, err := c.compute(ctx, s, mode, opts.Filters)
	elapsed := time.Since(started)

	c.mu.Lock()
	if c.current != calc {
		c.mu.Unlock()
		c.log.Debug().Stringer("step", calc.stepID).Msg("dropping superseded calculation")
		return
	}
	c.current = nil
	if err != nil {
		c.bus.publish(Result{StepID: calc.stepID, Err: err})
		calc.resolve(nil, err)
		c.mu.Unlock()
		c.settled(mode.Kind(), err, elapsed, calc.stepID)
		return
	}

	if !mode.Full() {
		c.recordLocked(calc.stepID).Observe(mode.maxInputRows, raster.NumRows(), elapsed)
	}
	env := &ResultEnvelope{
		StepID:    calc.stepID,
		Raster:    raster,
		Filters:   opts.Filters,
		Full:      mode.Full(),
		Attempts:  1,
		InputRows: mode.maxInputRows,
		Elapsed:   elapsed,
	}
	c.bus.publish(Result{StepID: calc.stepID, Envelope: env})
	calc.resolve(env, nil)
	c.mu.Unlock()

	c.settled(mode.Kind(), nil, elapsed, calc.stepID)
}

// compute runs the stage chain: acquire data, bind and apply filters once
// columns are known, rasterize. All stages share ctx, so one cancellation
// abandons the whole chain.
func (c *Coordinator) compute(ctx context.Context, s step.Step, mode Mode, filters filter.ColumnFilters) (*table.Raster, error) {
	var (
		ds  table.Dataset
		err error
	)
	if mode.Full() {
		ds, err = s.FullData(ctx)
	} else {
		ds, err = s.ExampleData(ctx, mode.maxInputRows, mode.maxOutputRows)
	}
	if err != nil {
		return nil, fmt.Errorf("calc: acquire data: %w", err)
	}

	if !filters.Empty() {
		cols, err := ds.Columns(ctx)
		if err != nil {
			return nil, fmt.Errorf("calc: resolve columns: %w", err)
		}
		pred, err := filters.Compile(cols)
		if err != nil {
			return nil, fmt.Errorf("calc: compile filters: %w", err)
		}
		ds = ds.Filter(pred)
	}

	raster, err := ds.Raster(ctx)
	if err != nil {
		return nil, fmt.Errorf("calc: rasterize: %w", err)
	}
	return raster, nil
}

// recordLocked returns the step's performance record, creating it lazily.
// Callers hold c.mu.
func (c *Coordinator) recordLocked(id step.ID) *stats.PerformanceRecord {
	rec := c.records[id]
	if rec == nil {
		rec = stats.NewPerformanceRecord()
		c.records[id] = rec
	}
	return rec
}

// settled updates metrics and logs for a settled calculation.
func (c *Coordinator) settled(mode string, err error, elapsed time.Duration, id step.ID) {
	status := statusSuccess
	if err != nil {
		if IsCancelled(err) {
			status = statusCancelled
		} else {
			status = statusError
		}
		c.log.Debug().Stringer("step", id).Err(err).Str("mode", mode).Msg("calculation failed")
	}
	calculationsTotal.WithLabelValues(mode, status).Inc()
	calculationSeconds.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func modeLabel(full bool) string {
	if full {
		return "full"
	}
	return "example"
}
