package calc

import (
	"fmt"
	"math"
	"time"

	"github.com/ruslano69/wrangle/pkg/stats"
)

// BudgetEstimator sizes the input row budget for the next example
// computation of a step, based on the step's performance record.
//
// The contract: request as many input rows as needed to likely produce the
// desired number of output rows, without exceeding maxTime at the
// configured certainty, clamped to the configured bounds. With no usable
// history the budget doubles per completed execution so steps that filter
// everything away still make progress.
type BudgetEstimator struct {
	certainty float64
	minRows   int
	maxRows   int
}

// NewBudgetEstimator builds an estimator from config.
func NewBudgetEstimator(config Config) (*BudgetEstimator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("calc: invalid estimator config: %w", err)
	}
	return &BudgetEstimator{
		certainty: config.Certainty,
		minRows:   config.MinExampleInputRows,
		maxRows:   config.MaxExampleInputRows,
	}, nil
}

// Estimate returns the number of input rows the next example computation
// may read. rec may be nil for a step that never ran. A non-positive
// maxTime yields 0: no time left means no work, and 0 is the only value
// Estimate returns outside the clamp bounds.
func (e *BudgetEstimator) Estimate(rec *stats.PerformanceRecord, desiredOutputRows int, maxTime time.Duration) int {
	if maxTime <= 0 {
		return 0
	}

	// No evidence the step produces output: grow the sample exponentially
	// with each completed (empty) execution.
	if rec == nil || rec.AllEmpty() {
		executions := 0
		if rec != nil {
			executions = rec.Executions()
		}
		return e.clamp(doublePerExecution(desiredOutputRows, executions, e.maxRows))
	}

	inputRows := float64(desiredOutputRows)
	if amp, ok := rec.AmplificationBound(e.certainty); ok && amp.Upper > 0 {
		inputRows = float64(desiredOutputRows) / amp.Upper
	}

	// Shrink to fit the time budget using the pessimistic per-row cost.
	if tpr, ok := rec.TimePerRowBound(e.certainty); ok && tpr.Upper > 0 {
		if inputRows*tpr.Upper > maxTime.Seconds() {
			inputRows = maxTime.Seconds() / tpr.Upper
		}
	}

	return e.clamp(int(inputRows))
}

func (e *BudgetEstimator) clamp(rows int) int {
	if rows < e.minRows {
		return e.minRows
	}
	if rows > e.maxRows {
		return e.maxRows
	}
	return rows
}

// doublePerExecution computes desired * 2^executions without overflowing,
// saturating at max.
func doublePerExecution(desired, executions, max int) int {
	rows := desired
	for i := 0; i < executions; i++ {
		if rows >= max || rows > math.MaxInt/2 {
			return max
		}
		rows *= 2
	}
	return rows
}
