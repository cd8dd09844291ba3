package query

import "errors"

var (
	// ErrUnsupportedOperator is returned for operators a backend cannot evaluate
	ErrUnsupportedOperator = errors.New("unsupported operator")

	// ErrUnsupportedReturn is returned for an unknown return mode
	ErrUnsupportedReturn = errors.New("unsupported return mode")

	// ErrInvalidClause is returned when a recognized clause violates its constraints
	ErrInvalidClause = errors.New("invalid filter clause")
)
