package local

import "errors"

var (
	// ErrUnsupportedRequest is returned for a method/endpoint the engine does not serve
	ErrUnsupportedRequest = errors.New("unsupported request")

	// ErrThingNotFound is returned when a related-to anchor is not in the store
	ErrThingNotFound = errors.New("thing not found")

	// ErrInvalidRequest is returned when a payload cannot be interpreted
	ErrInvalidRequest = errors.New("invalid request")
)
