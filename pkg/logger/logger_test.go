package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContextAttachesScopeFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	ctx := WithComponent(context.Background(), "collect")
	ctx = WithRunID(ctx, "run-1")

	FromContext(ctx, zap.New(core)).Info("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, "collect", fields["component"])
}

func TestFromContextWithoutScope(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	FromContext(context.Background(), zap.New(core)).Info("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].ContextMap())
}
