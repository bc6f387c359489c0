package main

import (
	"fmt"
	"strings"

	"github.com/ruslano69/wrangle/pkg/core/filter"
)

// whereOps maps operator tokens to condition builders. Two-character
// tokens must be preferred over their one-character prefixes.
var whereOps = []struct {
	token string
	cond  func(string) filter.Condition
}{
	{">=", filter.Gte},
	{"<=", filter.Lte},
	{"!=", filter.Ne},
	{">", filter.Gt},
	{"<", filter.Lt},
	{"=", filter.Eq},
	{"~", filter.Like},
}

// ParseWhere turns a comma-separated filter expression like
// "age>=30,name~a%" into column filters for the engine.
func ParseWhere(expr string) (filter.ColumnFilters, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	filters := make(filter.ColumnFilters)
	for _, clause := range strings.Split(expr, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		col, cond, err := parseClause(clause)
		if err != nil {
			return nil, err
		}
		set := filters[col]
		set.Conditions = append(set.Conditions, cond)
		filters[col] = set
	}
	return filters, nil
}

// parseClause splits one clause at its earliest operator, preferring the
// longer token when two match at the same position.
func parseClause(clause string) (string, filter.Condition, error) {
	bestIdx := -1
	bestLen := 0
	var bestCond func(string) filter.Condition

	for _, op := range whereOps {
		idx := strings.Index(clause, op.token)
		if idx <= 0 {
			continue
		}
		if bestIdx == -1 || idx < bestIdx || (idx == bestIdx && len(op.token) > bestLen) {
			bestIdx, bestLen, bestCond = idx, len(op.token), op.cond
		}
	}
	if bestIdx == -1 {
		return "", filter.Condition{}, fmt.Errorf("no operator in clause %q (use =, !=, >, >=, <, <=, ~)", clause)
	}

	col := strings.TrimSpace(clause[:bestIdx])
	val := strings.TrimSpace(clause[bestIdx+bestLen:])
	if col == "" || val == "" {
		return "", filter.Condition{}, fmt.Errorf("invalid clause %q", clause)
	}
	return col, bestCond(val), nil
}
