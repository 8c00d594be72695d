package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiobserve/collector/pkg/entity"
	"github.com/apiobserve/collector/pkg/errors"
)

func newTestEntity(rowKey, status string) *entity.Entity {
	return &entity.Entity{
		PartitionKey: "api_data",
		RowKey:       rowKey,
		Attributes: map[string]string{
			"Status":     status,
			"fetched_at": "2026-03-14T09:26:53Z",
		},
	}
}

// Both implementations must behave identically, so every case runs
// against each of them.
func storesUnderTest(t *testing.T) map[string]EntityStore {
	t.Helper()

	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), "ApiData")
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]EntityStore{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func TestEntityStoreRoundTrip(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.CreateTableIfAbsent(ctx))

			_, err := s.GetEntity(ctx, "api_data", "r-1")
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

			require.NoError(t, s.UpsertEntity(ctx, newTestEntity("r-1", "Error")))

			got, err := s.GetEntity(ctx, "api_data", "r-1")
			require.NoError(t, err)
			assert.Equal(t, "Error", got.Attributes["Status"])
		})
	}
}

func TestEntityStoreUpsertReplaces(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.CreateTableIfAbsent(ctx))

			require.NoError(t, s.UpsertEntity(ctx, newTestEntity("r-1", "Error")))
			require.NoError(t, s.UpsertEntity(ctx, newTestEntity("r-1", "Ok")))

			got, err := s.GetEntity(ctx, "api_data", "r-1")
			require.NoError(t, err)
			assert.Equal(t, "Ok", got.Attributes["Status"])

			all, err := s.ListEntities(ctx, "api_data")
			require.NoError(t, err)
			assert.Len(t, all, 1)
		})
	}
}

func TestEntityStoreQueryFilters(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.CreateTableIfAbsent(ctx))

			require.NoError(t, s.UpsertEntity(ctx, newTestEntity("r-1", "Error")))
			require.NoError(t, s.UpsertEntity(ctx, newTestEntity("r-2", "Ok")))
			require.NoError(t, s.UpsertEntity(ctx, newTestEntity("r-3", "Error")))

			other := newTestEntity("r-9", "Error")
			other.PartitionKey = "elsewhere"
			require.NoError(t, s.UpsertEntity(ctx, other))

			got, err := s.QueryEntities(ctx, "api_data", func(e *entity.Entity) bool {
				return e.Attributes["Status"] == "Error"
			})
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "r-1", got[0].RowKey)
			assert.Equal(t, "r-3", got[1].RowKey)
		})
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path, "ApiData")
	require.NoError(t, err)
	require.NoError(t, s.CreateTableIfAbsent(ctx))
	require.NoError(t, s.UpsertEntity(ctx, newTestEntity("r-1", "Error")))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path, "ApiData")
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.CreateTableIfAbsent(ctx))

	got, err := s.GetEntity(ctx, "api_data", "r-1")
	require.NoError(t, err)
	assert.Equal(t, "Error", got.Attributes["Status"])
}

func TestNewSQLiteStoreRejectsBadTableName(t *testing.T) {
	_, err := NewSQLiteStore(":memory:", "bad table; --")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
