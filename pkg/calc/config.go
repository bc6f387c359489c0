// Package calc implements adaptive preview calculation for tabular
// pipelines. A Coordinator runs at most one computation per pipeline at a
// time, measures each step's throughput and amplification, and sizes the
// next example so results arrive within a soft time budget.
package calc

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config tunes a Coordinator.
type Config struct {
	// Certainty is the confidence level for statistical upper bounds,
	// strictly between 0 and 1.
	Certainty float64

	// DesiredExampleRows is how many output rows a preview aims for.
	DesiredExampleRows int

	// MinExampleInputRows is the lower clamp for the input row budget.
	MinExampleInputRows int

	// MaxExampleInputRows is the upper clamp for the input row budget.
	MaxExampleInputRows int

	// MaxExampleTime is the soft wall-clock budget for one preview request,
	// including internal re-executions. Overruns are never killed; the
	// budget only steers sizing and retry decisions.
	MaxExampleTime time.Duration

	// MaxIterations bounds internal re-executions within one preview
	// request.
	MaxIterations int

	// ResultBuffer is the channel buffer of each result subscription.
	ResultBuffer int

	// Logger receives engine diagnostics. Defaults to a no-op logger.
	Logger zerolog.Logger
}

// DefaultConfig returns the tuning used by interactive previews.
func DefaultConfig() Config {
	return Config{
		Certainty:           0.95,
		DesiredExampleRows:  500,
		MinExampleInputRows: 256,
		MaxExampleInputRows: 25000,
		MaxExampleTime:      1500 * time.Millisecond,
		MaxIterations:       10,
		ResultBuffer:        16,
		Logger:              zerolog.Nop(),
	}
}

// Validate checks ranges and fills zero values with defaults.
func (c *Config) Validate() error {
	def := DefaultConfig()

	if c.Certainty == 0 {
		c.Certainty = def.Certainty
	}
	if c.Certainty <= 0 || c.Certainty >= 1 {
		return fmt.Errorf("Certainty must be strictly between 0 and 1")
	}

	if c.DesiredExampleRows == 0 {
		c.DesiredExampleRows = def.DesiredExampleRows
	}
	if c.DesiredExampleRows < 0 {
		return fmt.Errorf("DesiredExampleRows must be greater than 0")
	}

	if c.MinExampleInputRows == 0 {
		c.MinExampleInputRows = def.MinExampleInputRows
	}
	if c.MaxExampleInputRows == 0 {
		c.MaxExampleInputRows = def.MaxExampleInputRows
	}
	if c.MinExampleInputRows < 0 || c.MaxExampleInputRows < c.MinExampleInputRows {
		return fmt.Errorf("input row bounds must satisfy 0 <= min <= max")
	}

	if c.MaxExampleTime == 0 {
		c.MaxExampleTime = def.MaxExampleTime
	}
	if c.MaxExampleTime < 0 {
		return fmt.Errorf("MaxExampleTime must be greater than 0")
	}

	if c.MaxIterations == 0 {
		c.MaxIterations = def.MaxIterations
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("MaxIterations must be at least 1")
	}

	if c.ResultBuffer <= 0 {
		c.ResultBuffer = def.ResultBuffer
	}

	return nil
}
