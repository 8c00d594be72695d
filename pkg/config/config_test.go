package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiobserve/collector/pkg/errors"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("API_BASE_URL", "https://api.example.com")
	t.Setenv("API_DATA_ENDPOINT", "/v1/data")
	t.Setenv("API_ID_FIELD", "id")
}

func TestFromEnvDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, AuthTypeAPIKey, cfg.API.AuthType)
	assert.Equal(t, QueryTypeREST, cfg.API.QueryType)
	assert.Equal(t, "items", cfg.API.ResponsePath)
	assert.Equal(t, 100, cfg.API.PageSize)
	assert.Equal(t, 100, cfg.API.MaxPages)
	assert.False(t, cfg.API.PaginationEnabled)
	assert.Equal(t, "ApiData", cfg.Storage.TableName)
	assert.Equal(t, "api_data", cfg.Storage.PartitionKey)
	assert.Equal(t, 7, cfg.Analysis.LookbackDays)
	assert.Equal(t, []string{"Error", "Warning", "Critical"}, cfg.Analysis.FilterValues)
	assert.Equal(t, "https://api.example.com/v1/data", cfg.API.DataURL())
}

func TestFromEnvFieldMapping(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FIELD_MAPPING", `{"title":"Name","state":"Status"}`)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"title": "Name", "state": "Status"}, cfg.Storage.FieldMapping)
}

func TestFromEnvInvalidFieldMapping(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FIELD_MAPPING", "not-json")

	_, err := FromEnv()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestValidateMissingRequired(t *testing.T) {
	cfg := &Config{}
	cfg.API.AuthType = AuthTypeAPIKey
	cfg.API.QueryType = QueryTypeREST

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "API_BASE_URL")
	assert.Contains(t, err.Error(), "API_DATA_ENDPOINT")
	assert.Contains(t, err.Error(), "API_ID_FIELD")
}

func TestValidateOAuth2RequiresTokenURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("API_AUTH_TYPE", "oauth2")

	cfg, err := FromEnv()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_TOKEN_URL")

	t.Setenv("API_TOKEN_URL", "https://auth.example.com/token")
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownAuthType(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("API_AUTH_TYPE", "kerberos")

	cfg, err := FromEnv()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kerberos")
}

func TestApplyFileOverlay(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "collector.yaml")
	data := []byte("api:\n  page_size: 25\n  pagination_enabled: true\nstorage:\n  table_name: Events\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	require.NoError(t, cfg.ApplyFile(path))
	assert.Equal(t, 25, cfg.API.PageSize)
	assert.True(t, cfg.API.PaginationEnabled)
	assert.Equal(t, "Events", cfg.Storage.TableName)
	// Untouched values survive the overlay.
	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
}

func TestAnalysisEnabled(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.AnalysisEnabled())
	cfg.OpenAI.Endpoint = "https://models.example.com"
	assert.True(t, cfg.AnalysisEnabled())
}
