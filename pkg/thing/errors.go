package thing

import "errors"

var (
	// ErrNotRelation is returned when a relation path names a scalar field
	ErrNotRelation = errors.New("field is not a relation")

	// ErrEmptyPath is returned for an empty relation path
	ErrEmptyPath = errors.New("empty relation path")

	// ErrDetached is returned when a thing without a session needs a backend
	ErrDetached = errors.New("thing is not attached to a session")

	// ErrResourceMismatch is returned when related things belong to the wrong resource
	ErrResourceMismatch = errors.New("resource mismatch")
)
