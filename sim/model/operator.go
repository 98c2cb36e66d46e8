package model

import "fmt"

// Operator is one of the six equality/ordering comparisons used by filters.
type Operator int

const (
	Equal Operator = iota
	NotEqual
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
)

var operatorSymbols = map[Operator]string{
	Equal:              "==",
	NotEqual:           "!=",
	LessThan:           "<",
	LessThanOrEqual:    "<=",
	GreaterThan:        ">",
	GreaterThanOrEqual: ">=",
}

func (op Operator) String() string {
	if s, ok := operatorSymbols[op]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// ParseOperator maps a symbol such as ">=" to its Operator.
func ParseOperator(s string) (Operator, error) {
	for op, sym := range operatorSymbols {
		if sym == s {
			return op, nil
		}
	}
	return Equal, fmt.Errorf("unknown operator %q", s)
}

// Negate returns the operator whose result is the logical complement of op.
func (op Operator) Negate() Operator {
	switch op {
	case Equal:
		return NotEqual
	case NotEqual:
		return Equal
	case LessThan:
		return GreaterThanOrEqual
	case LessThanOrEqual:
		return GreaterThan
	case GreaterThan:
		return LessThanOrEqual
	case GreaterThanOrEqual:
		return LessThan
	}
	panic(fmt.Sprintf("Negate: unknown operator %d", int(op)))
}

// Holds reports whether a comparison result (as returned by Value.Compare)
// satisfies op.
func (op Operator) Holds(cmp int) bool {
	switch op {
	case Equal:
		return cmp == 0
	case NotEqual:
		return cmp != 0
	case LessThan:
		return cmp < 0
	case LessThanOrEqual:
		return cmp <= 0
	case GreaterThan:
		return cmp > 0
	case GreaterThanOrEqual:
		return cmp >= 0
	}
	return false
}

// Apply compares left against right. Values of incomparable kinds satisfy
// only NotEqual.
func (op Operator) Apply(left, right Value) bool {
	cmp, err := left.Compare(right)
	if err != nil {
		return op == NotEqual
	}
	return op.Holds(cmp)
}

// ApplyInt compares two integers.
func (op Operator) ApplyInt(left, right int64) bool {
	return op.Holds(cmpOrdered(left, right))
}
