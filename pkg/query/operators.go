package query

import "fmt"

// Operator is a filter comparison understood by the remote service
type Operator string

const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "<>"
	OpLike         Operator = "like"
	OpNotLike      Operator = "not_like"
	OpEmpty        Operator = "empty"
	OpNotEmpty     Operator = "not_empty"
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpIn           Operator = "in"
	OpNotIn        Operator = "not_in"
)

var operators = map[Operator]bool{
	OpEqual: true, OpNotEqual: true, OpLike: true, OpNotLike: true,
	OpEmpty: true, OpNotEmpty: true, OpGreater: true, OpGreaterEqual: true,
	OpLess: true, OpLessEqual: true, OpIn: true, OpNotIn: true,
}

// Valid reports whether the operator is part of the wire protocol
func (o Operator) Valid() bool {
	return operators[o]
}

// Unary reports whether the operator ignores its value
func (o Operator) Unary() bool {
	return o == OpEmpty || o == OpNotEmpty
}

// ParseOperator converts a string to an Operator. "!=" is accepted as "<>".
func ParseOperator(s string) (Operator, error) {
	if s == "!=" {
		return OpNotEqual, nil
	}
	op := Operator(s)
	if !op.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedOperator, s)
	}
	return op, nil
}
