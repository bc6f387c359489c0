// Package step defines the contract between pipeline steps and the
// calculation engine. The engine never looks inside a step: it only needs a
// stable identity and the two ways of computing the step's result.
package step

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ruslano69/wrangle/pkg/core/table"
)

// ID is the stable identity of a step. It survives edits to the step's
// configuration, so performance history keyed by it stays attached to the
// same logical pipeline position.
type ID string

// NewID returns a fresh random identity.
func NewID() ID {
	return ID(uuid.NewString())
}

// DeriveID builds a deterministic identity from the step's defining parts.
// Steps whose definition is stable (a query against a named database, a
// file path) keep the same ID across processes, so shared result caches
// stay addressable. Parts must uniquely identify the data, not just the
// operation.
func DeriveID(parts ...string) ID {
	data := []byte(strings.Join(parts, "\x00"))
	return ID(uuid.NewSHA1(uuid.NameSpaceURL, data).String())
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// Step is one transformation in a pipeline.
//
// FullData computes the complete result. ExampleData computes a bounded
// approximation: the step reads at most maxInputRows rows of its input and
// produces at most maxOutputRows rows. Both return lazy datasets and honor
// context cancellation in their blocking stages.
type Step interface {
	ID() ID
	FullData(ctx context.Context) (table.Dataset, error)
	ExampleData(ctx context.Context, maxInputRows, maxOutputRows int) (table.Dataset, error)
}
