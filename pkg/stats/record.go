package stats

import "time"

// PerformanceRecord accumulates execution statistics for one pipeline step:
// how long it takes per input row and how many output rows it produces per
// input row (amplification). Both are kept in bounded sliding windows so
// estimates follow the step's recent behavior.
//
// Records are owned by a coordinator and mutated only under its lock; the
// type itself is not goroutine-safe. Records live in memory for the
// lifetime of the coordinator and are never persisted.
type PerformanceRecord struct {
	timePerRow    *Window // seconds per requested input row
	amplification *Window // output rows per requested input row
	executions    int
	empties       int
}

// NewPerformanceRecord creates an empty record with default window sizes.
func NewPerformanceRecord() *PerformanceRecord {
	return &PerformanceRecord{
		timePerRow:    NewWindow(DefaultWindowSize),
		amplification: NewWindow(DefaultWindowSize),
	}
}

// Observe records one completed example execution. inputRows is the number
// of input rows that was requested, outputRows the number of rows the step
// produced. The amplification sample is taken only for non-empty results;
// empty ones are counted so the estimator can back off instead of dividing
// by a meaningless factor.
func (r *PerformanceRecord) Observe(inputRows, outputRows int, elapsed time.Duration) {
	r.executions++
	if outputRows == 0 {
		r.empties++
	}
	if inputRows <= 0 {
		return
	}
	r.timePerRow.Append(elapsed.Seconds() / float64(inputRows))
	if outputRows > 0 {
		r.amplification.Append(float64(outputRows) / float64(inputRows))
	}
}

// Executions returns how many example executions completed for the step.
func (r *PerformanceRecord) Executions() int {
	return r.executions
}

// Empties returns how many of those executions produced zero rows.
func (r *PerformanceRecord) Empties() int {
	return r.empties
}

// AllEmpty reports whether every execution so far produced zero rows. A
// fresh record is AllEmpty: no evidence of output yet.
func (r *PerformanceRecord) AllEmpty() bool {
	return r.empties == r.executions
}

// AmplificationBound returns the confidence interval of the amplification
// factor at the given certainty.
func (r *PerformanceRecord) AmplificationBound(certainty float64) (Interval, bool) {
	return r.amplification.Confidence(certainty)
}

// TimePerRowBound returns the confidence interval of the per-row execution
// time, in seconds, at the given certainty.
func (r *PerformanceRecord) TimePerRowBound(certainty float64) (Interval, bool) {
	return r.timePerRow.Confidence(certainty)
}
