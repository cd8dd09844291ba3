package schema

import "errors"

var (
	// ErrResourceNotFound is returned when a resource cannot be resolved by id or name
	ErrResourceNotFound = errors.New("resource not found")

	// ErrFieldNotFound is returned when a field cannot be resolved by id or name
	ErrFieldNotFound = errors.New("field not found")

	// ErrMissingRelationTarget is returned when a relation field has no resolvable target
	ErrMissingRelationTarget = errors.New("missing relation target")

	// ErrDuplicate is returned when a snapshot declares the same id or name twice
	ErrDuplicate = errors.New("duplicate definition")

	// ErrInvalidRefresh is returned when a field refresh would change its identity
	ErrInvalidRefresh = errors.New("invalid field refresh")
)
