package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/apiobserve/collector/pkg/config"
	"github.com/apiobserve/collector/pkg/errors"
	"github.com/apiobserve/collector/pkg/secrets"
	"github.com/apiobserve/collector/pkg/store"
)

func runnerConfig(baseURL string) *config.Config {
	return &config.Config{
		API: config.APIConfig{
			BaseURL:           baseURL,
			DataEndpoint:      "/data",
			AuthType:          config.AuthTypeAPIKey,
			QueryType:         config.QueryTypeREST,
			IDField:           "id",
			ResponsePath:      "items",
			PaginationEnabled: true,
			PageSize:          2,
			MaxPages:          10,
			KeySecretName:     "api-key",
		},
		Storage: config.StorageConfig{
			TableName:    "ApiData",
			PartitionKey: "api_data",
		},
	}
}

func TestRunnerRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		if r.URL.Query().Get("cursor") == "" {
			fmt.Fprint(w, `{"items": [{"id": "a", "status": "Ok"}, {"id": "b", "status": "Error"}], "nextCursor": "c1"}`)
			return
		}
		fmt.Fprint(w, `{"items": [{"id": "c", "status": "Ok"}]}`)
	}))
	defer srv.Close()

	mem := store.NewMemoryStore()
	sec := secrets.NewStaticStore(map[string]string{"api-key": "key-123"})
	r := NewRunner(runnerConfig(srv.URL), sec, mem, zap.NewNop())

	outcome, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &RunOutcome{Fetched: 3, New: 3}, outcome)

	got, err := mem.GetEntity(context.Background(), "api_data", "b")
	require.NoError(t, err)
	assert.Equal(t, "Error", got.Attributes["status"])
	assert.Contains(t, got.Attributes, "fetched_at")

	// Second run over the same upstream data updates instead of creating.
	outcome, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &RunOutcome{Fetched: 3, Updated: 3}, outcome)
}

func TestRunnerRunLogsCarryRunID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": [{"id": "a"}]}`)
	}))
	defer srv.Close()

	core, logs := observer.New(zap.InfoLevel)
	sec := secrets.NewStaticStore(map[string]string{"api-key": "key-123"})
	r := NewRunner(runnerConfig(srv.URL), sec, store.NewMemoryStore(), zap.New(core))

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	entries := logs.FilterMessage("sync run finished").All()
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ContextMap()["run_id"])
}

func TestRunnerRunAbortsOnMissingSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream should not be called without credentials")
	}))
	defer srv.Close()

	r := NewRunner(runnerConfig(srv.URL), secrets.NewStaticStore(nil), store.NewMemoryStore(), zap.NewNop())

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSecretNotFound))
}

func TestRunnerRunAbortsOnUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sec := secrets.NewStaticStore(map[string]string{"api-key": "key-123"})
	r := NewRunner(runnerConfig(srv.URL), sec, store.NewMemoryStore(), zap.NewNop())

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUpstream))
}
