package calc

import (
	"context"
	"time"

	"github.com/ruslano69/wrangle/pkg/core/filter"
	"github.com/ruslano69/wrangle/pkg/core/table"
	"github.com/ruslano69/wrangle/pkg/step"
)

// Mode selects between a complete computation and a bounded example.
type Mode struct {
	full          bool
	maxInputRows  int
	maxOutputRows int
}

// FullMode requests the complete result of a step.
func FullMode() Mode {
	return Mode{full: true}
}

// ExampleMode requests a bounded approximation: at most maxInputRows read,
// at most maxOutputRows produced.
func ExampleMode(maxInputRows, maxOutputRows int) Mode {
	return Mode{maxInputRows: maxInputRows, maxOutputRows: maxOutputRows}
}

// Full reports whether the mode requests a complete computation.
func (m Mode) Full() bool {
	return m.full
}

// Kind returns "full" or "example", for logs and metric labels.
func (m Mode) Kind() string {
	if m.full {
		return "full"
	}
	return "example"
}

// ResultEnvelope is the successful outcome of one outward calculation call.
// Envelopes are immutable once published.
type ResultEnvelope struct {
	StepID step.ID
	Raster *table.Raster

	// Filters are the column filters the result was computed under.
	Filters filter.ColumnFilters

	// Full distinguishes complete results from bounded examples.
	Full bool

	// Attempts is how many executions the call performed, counting internal
	// re-executions. Always 1 for full computations.
	Attempts int

	// InputRows is the input budget of the final execution. 0 for full
	// computations.
	InputRows int

	// Elapsed is the wall time spent across all attempts.
	Elapsed time.Duration
}

// Result is what subscribers receive: an envelope on success, an error on
// failure or caller-side cancellation. Exactly one of the two is set.
type Result struct {
	StepID   step.ID
	Envelope *ResultEnvelope
	Err      error
}

// Calculation is the handle of one outward calculation call. Coalesced
// callers share a handle. It resolves exactly once, including when the
// work is cancelled or superseded.
type Calculation struct {
	stepID   step.ID
	full     bool
	cancel   context.CancelFunc
	done     chan struct{}
	resolved bool
	env      *ResultEnvelope
	err      error
}

func newCalculation(id step.ID, full bool, cancel context.CancelFunc) *Calculation {
	return &Calculation{
		stepID: id,
		full:   full,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// StepID returns the identity of the step being calculated.
func (c *Calculation) StepID() step.ID {
	return c.stepID
}

// Full reports whether the handle tracks a complete computation.
func (c *Calculation) Full() bool {
	return c.full
}

// Done is closed when the calculation resolves.
func (c *Calculation) Done() <-chan struct{} {
	return c.done
}

// Result returns the outcome. Valid only after Done is closed.
func (c *Calculation) Result() (*ResultEnvelope, error) {
	return c.env, c.err
}

// Wait blocks until the calculation resolves or ctx is done.
func (c *Calculation) Wait(ctx context.Context) (*ResultEnvelope, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return c.env, c.err
	}
}

// resolve records the outcome and releases waiters. The coordinator calls
// it under its lock, at most effectively once; later calls are ignored.
func (c *Calculation) resolve(env *ResultEnvelope, err error) {
	if c.resolved {
		return
	}
	c.resolved = true
	c.env = env
	c.err = err
	close(c.done)
}
