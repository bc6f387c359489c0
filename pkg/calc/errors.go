package calc

import (
	"context"
	"errors"
)

// ErrNoStep is returned synchronously when a calculation is requested
// without a step. No computation starts and nothing is published.
var ErrNoStep = errors.New("calc: no step to calculate")

// ErrCancelled marks a computation that was abandoned: superseded by a
// newer request, stopped via Cancel, or cut off by the caller's context.
// It is distinct from upstream failure; cancelled work is not an error of
// the data.
var ErrCancelled = errors.New("calc: calculation cancelled")

// ErrClosed is returned by calculation calls after Close.
var ErrClosed = errors.New("calc: coordinator closed")

// IsCancelled reports whether err stems from cancellation rather than
// failure, covering both the engine's own sentinel and context errors
// leaking through collaborators.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
