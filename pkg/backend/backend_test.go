package backend

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelpersUseMethod(t *testing.T) {
	var got []Method
	b := Func(func(_ context.Context, method Method, endpoint string, _ any) (json.RawMessage, error) {
		got = append(got, method)
		return json.RawMessage(`null`), nil
	})
	ctx := context.Background()

	_, err := Get(ctx, b, EndpointThings, nil)
	require.NoError(t, err)
	_, err = Post(ctx, b, EndpointThings, nil)
	require.NoError(t, err)
	_, err = Delete(ctx, b, EndpointThings, nil)
	require.NoError(t, err)

	assert.Equal(t, []Method{MethodGet, MethodPost, MethodDelete}, got)
}

func TestGetInto(t *testing.T) {
	ctx := context.Background()
	ok := Func(func(_ context.Context, _ Method, _ string, data any) (json.RawMessage, error) {
		return json.Marshal(data)
	})

	var out map[string]int
	require.NoError(t, GetInto(ctx, ok, EndpointSchema, map[string]int{"id": 7}, &out))
	assert.Equal(t, map[string]int{"id": 7}, out)

	garbled := Func(func(context.Context, Method, string, any) (json.RawMessage, error) {
		return json.RawMessage(`{"id":`), nil
	})
	err := GetInto(ctx, garbled, EndpointSchema, nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode schema response")

	failure := errors.New("unreachable")
	failing := Func(func(context.Context, Method, string, any) (json.RawMessage, error) {
		return nil, failure
	})
	assert.ErrorIs(t, GetInto(ctx, failing, EndpointSchema, nil, &out), failure)
}
