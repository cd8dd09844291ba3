// Package backend defines the collaborator that executes requests for the domain model.
// A backend turns a method, an endpoint and a payload into a response body; the remote
// implementation talks HTTP, the local one evaluates requests in memory.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
)

// Method is a request method
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodDelete Method = "DELETE"
)

// Endpoints understood by every backend
const (
	EndpointSchema = "schema"
	EndpointThings = "things"
)

// Backend executes a request and returns the "data" member of the response
type Backend interface {
	Request(ctx context.Context, method Method, endpoint string, data any) (json.RawMessage, error)
}

// Func adapts a function to the Backend interface
type Func func(ctx context.Context, method Method, endpoint string, data any) (json.RawMessage, error)

// Request implements Backend
func (f Func) Request(ctx context.Context, method Method, endpoint string, data any) (json.RawMessage, error) {
	return f(ctx, method, endpoint, data)
}

// Get issues a GET request
func Get(ctx context.Context, b Backend, endpoint string, data any) (json.RawMessage, error) {
	return b.Request(ctx, MethodGet, endpoint, data)
}

// Post issues a POST request
func Post(ctx context.Context, b Backend, endpoint string, data any) (json.RawMessage, error) {
	return b.Request(ctx, MethodPost, endpoint, data)
}

// Delete issues a DELETE request
func Delete(ctx context.Context, b Backend, endpoint string, data any) (json.RawMessage, error) {
	return b.Request(ctx, MethodDelete, endpoint, data)
}

// GetInto issues a GET request and decodes the response into out
func GetInto(ctx context.Context, b Backend, endpoint string, data any, out any) error {
	raw, err := Get(ctx, b, endpoint, data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}
