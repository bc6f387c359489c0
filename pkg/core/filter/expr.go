// Package filter implements per-column filter sets for datasets. Filter
// expressions are written against an identity placeholder standing for
// "the cell in this column"; before application the engine binds the
// placeholder to the concrete column of the result, then compiles the set
// into a row predicate.
package filter

// Op is a comparison operator.
type Op string

const (
	OpEq      Op = "eq"
	OpNe      Op = "ne"
	OpGt      Op = "gt"
	OpGte     Op = "gte"
	OpLt      Op = "lt"
	OpLte     Op = "lte"
	OpIn      Op = "in"
	OpLike    Op = "like"
	OpBetween Op = "between"
	OpIsNull  Op = "is_null"
	OpNotNull Op = "not_null"
)

type operandKind int

const (
	kindNone operandKind = iota // absent (zero value)
	kindIdentity
	kindColumn
	kindLiteral
)

// Operand is one side of a comparison: the identity placeholder, a named
// column reference, or a literal value. The zero value is an absent
// operand, used by operators that take no comparand.
type Operand struct {
	kind   operandKind
	column string
	value  string
}

// Identity returns the placeholder operand. It must be bound to a column
// before evaluation.
func Identity() Operand {
	return Operand{kind: kindIdentity}
}

// Column returns a reference to the named column.
func Column(name string) Operand {
	return Operand{kind: kindColumn, column: name}
}

// Literal returns a constant value operand.
func Literal(v string) Operand {
	return Operand{kind: kindLiteral, value: v}
}

// IsIdentity reports whether the operand is the unbound placeholder.
func (o Operand) IsIdentity() bool {
	return o.kind == kindIdentity
}

// ColumnName returns the referenced column name and whether the operand is
// a column reference.
func (o Operand) ColumnName() (string, bool) {
	return o.column, o.kind == kindColumn
}

func (o Operand) bind(column string) Operand {
	if o.kind == kindIdentity {
		return Column(column)
	}
	return o
}

// Condition is a single comparison. Left is usually the identity
// placeholder; Right carries the comparand. Between uses Right as the lower
// and High as the upper bound; In uses Values.
type Condition struct {
	Left   Operand
	Op     Op
	Right  Operand
	High   Operand
	Values []Operand
}

// Eq matches cells equal to v.
func Eq(v string) Condition {
	return Condition{Left: Identity(), Op: OpEq, Right: Literal(v)}
}

// Ne matches cells not equal to v.
func Ne(v string) Condition {
	return Condition{Left: Identity(), Op: OpNe, Right: Literal(v)}
}

// Gt matches cells greater than v.
func Gt(v string) Condition {
	return Condition{Left: Identity(), Op: OpGt, Right: Literal(v)}
}

// Gte matches cells greater than or equal to v.
func Gte(v string) Condition {
	return Condition{Left: Identity(), Op: OpGte, Right: Literal(v)}
}

// Lt matches cells less than v.
func Lt(v string) Condition {
	return Condition{Left: Identity(), Op: OpLt, Right: Literal(v)}
}

// Lte matches cells less than or equal to v.
func Lte(v string) Condition {
	return Condition{Left: Identity(), Op: OpLte, Right: Literal(v)}
}

// In matches cells equal to any of the given values.
func In(values ...string) Condition {
	ops := make([]Operand, len(values))
	for i, v := range values {
		ops[i] = Literal(v)
	}
	return Condition{Left: Identity(), Op: OpIn, Values: ops}
}

// Like matches cells against a pattern with % (any run) and _ (any single
// character) wildcards.
func Like(pattern string) Condition {
	return Condition{Left: Identity(), Op: OpLike, Right: Literal(pattern)}
}

// Between matches cells within [low, high] inclusive.
func Between(low, high string) Condition {
	return Condition{Left: Identity(), Op: OpBetween, Right: Literal(low), High: Literal(high)}
}

// IsNull matches empty cells.
func IsNull() Condition {
	return Condition{Left: Identity(), Op: OpIsNull}
}

// NotNull matches non-empty cells.
func NotNull() Condition {
	return Condition{Left: Identity(), Op: OpNotNull}
}

// Bind replaces every identity placeholder in the condition with a
// reference to the named column. Non-placeholder operands pass through.
func (c Condition) Bind(column string) Condition {
	out := c
	out.Left = c.Left.bind(column)
	out.Right = c.Right.bind(column)
	out.High = c.High.bind(column)
	if len(c.Values) > 0 {
		out.Values = make([]Operand, len(c.Values))
		for i, v := range c.Values {
			out.Values[i] = v.bind(column)
		}
	}
	return out
}

// bound reports whether the condition still carries an unbound placeholder.
func (c Condition) bound() bool {
	if c.Left.IsIdentity() || c.Right.IsIdentity() || c.High.IsIdentity() {
		return false
	}
	for _, v := range c.Values {
		if v.IsIdentity() {
			return false
		}
	}
	return true
}
