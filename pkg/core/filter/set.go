package filter

import (
	"errors"
	"fmt"

	"github.com/ruslano69/wrangle/pkg/core/table"
)

// ErrUnknownColumn is returned when a filter references a column that the
// result does not contain.
var ErrUnknownColumn = errors.New("filter: unknown column")

// ErrUnboundIdentity is returned when a predicate is compiled from a
// condition whose identity placeholder was never bound.
var ErrUnboundIdentity = errors.New("filter: unbound identity placeholder")

// Set groups conditions that must all hold for a value to pass.
type Set struct {
	Conditions []Condition
}

// NewSet builds a set from conditions.
func NewSet(conds ...Condition) Set {
	return Set{Conditions: conds}
}

// Empty reports whether the set has no conditions.
func (s Set) Empty() bool {
	return len(s.Conditions) == 0
}

// Bind replaces the identity placeholder in every condition with a
// reference to the named column.
func (s Set) Bind(column string) Set {
	out := Set{Conditions: make([]Condition, len(s.Conditions))}
	for i, c := range s.Conditions {
		out.Conditions[i] = c.Bind(column)
	}
	return out
}

// ColumnFilters maps column names to filter sets written against the
// identity placeholder. This is the form the calculation engine accepts:
// binding to concrete columns happens once the result's column set is
// known.
type ColumnFilters map[string]Set

// Empty reports whether no column carries a non-empty set.
func (f ColumnFilters) Empty() bool {
	for _, s := range f {
		if !s.Empty() {
			return false
		}
	}
	return true
}

// Compile binds each set to its column, resolves column positions against
// cols, and returns a single predicate requiring every set to match.
// A filter on a column absent from cols fails with ErrUnknownColumn.
func (f ColumnFilters) Compile(cols []string) (table.RowPredicate, error) {
	index := make(map[string]int, len(cols))
	for i, name := range cols {
		index[name] = i
	}

	var compiled []compiledCondition
	for column, set := range f {
		if _, ok := index[column]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, column)
		}
		for _, cond := range set.Bind(column).Conditions {
			cc, err := compileCondition(cond, index)
			if err != nil {
				return nil, fmt.Errorf("filter: column %q: %w", column, err)
			}
			compiled = append(compiled, cc)
		}
	}

	return func(row []string) (bool, error) {
		for _, cc := range compiled {
			ok, err := cc.match(row)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}, nil
}

// compiledCondition is a condition with operands resolved to row positions.
type compiledCondition struct {
	op     Op
	left   resolvedOperand
	right  resolvedOperand
	high   resolvedOperand
	values []resolvedOperand
}

type resolvedOperand struct {
	colIndex int // >= 0 when the operand is a column reference
	literal  string
}

func resolveOperand(o Operand, index map[string]int) (resolvedOperand, error) {
	switch o.kind {
	case kindIdentity:
		return resolvedOperand{}, ErrUnboundIdentity
	case kindColumn:
		i, ok := index[o.column]
		if !ok {
			return resolvedOperand{}, fmt.Errorf("%w: %q", ErrUnknownColumn, o.column)
		}
		return resolvedOperand{colIndex: i}, nil
	default:
		return resolvedOperand{colIndex: -1, literal: o.value}, nil
	}
}

func (r resolvedOperand) value(row []string) string {
	if r.colIndex >= 0 {
		if r.colIndex < len(row) {
			return row[r.colIndex]
		}
		return ""
	}
	return r.literal
}

func compileCondition(c Condition, index map[string]int) (compiledCondition, error) {
	cc := compiledCondition{op: c.Op}

	var err error
	if cc.left, err = resolveOperand(c.Left, index); err != nil {
		return cc, err
	}
	if cc.right, err = resolveOperand(c.Right, index); err != nil {
		return cc, err
	}
	if cc.high, err = resolveOperand(c.High, index); err != nil {
		return cc, err
	}
	for _, v := range c.Values {
		rv, err := resolveOperand(v, index)
		if err != nil {
			return cc, err
		}
		cc.values = append(cc.values, rv)
	}
	return cc, nil
}

func (cc compiledCondition) match(row []string) (bool, error) {
	left := cc.left.value(row)

	switch cc.op {
	case OpEq:
		return compareValues(left, cc.right.value(row)) == 0, nil
	case OpNe:
		return compareValues(left, cc.right.value(row)) != 0, nil
	case OpGt:
		return compareValues(left, cc.right.value(row)) > 0, nil
	case OpGte:
		return compareValues(left, cc.right.value(row)) >= 0, nil
	case OpLt:
		return compareValues(left, cc.right.value(row)) < 0, nil
	case OpLte:
		return compareValues(left, cc.right.value(row)) <= 0, nil
	case OpIn:
		for _, v := range cc.values {
			if compareValues(left, v.value(row)) == 0 {
				return true, nil
			}
		}
		return false, nil
	case OpLike:
		return matchLike(left, cc.right.value(row)), nil
	case OpBetween:
		return compareValues(left, cc.right.value(row)) >= 0 &&
			compareValues(left, cc.high.value(row)) <= 0, nil
	case OpIsNull:
		return left == "", nil
	case OpNotNull:
		return left != "", nil
	default:
		return false, fmt.Errorf("filter: unsupported operator %q", cc.op)
	}
}
