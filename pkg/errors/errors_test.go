package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrorTypeConfig, "API_BASE_URL is required")

	assert.Equal(t, ErrorTypeConfig, err.Type)
	assert.Equal(t, "config: API_BASE_URL is required", err.Error())
	assert.NotEmpty(t, err.Stack)
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, ErrorTypeUpstream, "page request failed")

	assert.Equal(t, ErrorTypeUpstream, err.Type)
	assert.Equal(t, "upstream_request: page request failed: connection refused", err.Error())
	assert.True(t, stderrors.Is(err, cause))
}

func TestWrapNil(t *testing.T) {
	var got *Error = Wrap(nil, ErrorTypeUpstream, "ignored")
	assert.Nil(t, got)
}

func TestWrapPreservesStack(t *testing.T) {
	inner := New(ErrorTypeSecretNotFound, "api-key not found")
	outer := Wrap(inner, ErrorTypeConfig, "credential resolution failed")

	require.NotEmpty(t, outer.Stack)
	assert.Equal(t, inner.Stack, outer.Stack)
}

func TestIsType(t *testing.T) {
	err := New(ErrorTypeTokenExchange, "token endpoint returned 401")
	wrapped := fmt.Errorf("run aborted: %w", err)

	assert.True(t, IsType(wrapped, ErrorTypeTokenExchange))
	assert.False(t, IsType(wrapped, ErrorTypeConfig))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeTokenExchange))
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(New(ErrorTypeRecord, "bad record")))
	assert.True(t, IsFatal(New(ErrorTypeUpstream, "status 500")))
	assert.True(t, IsFatal(fmt.Errorf("untyped failure")))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeRecord, "upsert failed").
		WithDetail("row_key", "1234").
		WithDetail("partition_key", "api_data")

	assert.Equal(t, "1234", err.Details["row_key"])
	assert.Equal(t, "api_data", err.Details["partition_key"])
}
