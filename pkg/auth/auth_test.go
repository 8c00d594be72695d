package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/apiobserve/collector/pkg/config"
	"github.com/apiobserve/collector/pkg/errors"
	"github.com/apiobserve/collector/pkg/secrets"
)

func newProvider(t *testing.T, cfg *config.APIConfig, vals map[string]string) *Provider {
	t.Helper()
	return NewProvider(cfg, secrets.NewStaticStore(vals), zap.NewNop())
}

func TestResolveAPIKey(t *testing.T) {
	cfg := &config.APIConfig{AuthType: config.AuthTypeAPIKey, KeySecretName: "api-key"}
	p := newProvider(t, cfg, map[string]string{"api-key": "sk-123"})

	creds, err := p.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, APIKey{Key: "sk-123"}, creds)
}

func TestResolveBearer(t *testing.T) {
	cfg := &config.APIConfig{AuthType: config.AuthTypeBearer, KeySecretName: "api-key"}
	p := newProvider(t, cfg, map[string]string{"api-key": "tok-456"})

	creds, err := p.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Bearer{Token: "tok-456"}, creds)
}

func TestResolveOAuth2MissingSecret(t *testing.T) {
	cfg := &config.APIConfig{
		AuthType:               config.AuthTypeOAuth2,
		ClientIDSecretName:     "oauth-client-id",
		ClientSecretSecretName: "oauth-client-secret",
	}
	p := newProvider(t, cfg, map[string]string{"oauth-client-id": "cid"})

	_, err := p.Resolve(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSecretNotFound))
}

func TestBuildHeadersStaticSchemes(t *testing.T) {
	cfg := &config.APIConfig{AuthType: config.AuthTypeAPIKey}
	p := newProvider(t, cfg, nil)

	for _, creds := range []Credentials{APIKey{Key: "sk-123"}, Bearer{Token: "sk-123"}} {
		headers, err := p.BuildHeaders(context.Background(), creds)
		require.NoError(t, err)
		assert.Equal(t, "application/json", headers["Content-Type"])
		assert.Equal(t, "Bearer sk-123", headers["Authorization"])
	}
}

func TestBuildHeadersOAuth2Exchange(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, gojson.NewDecoder(r.Body).Decode(&gotBody))
		_ = gojson.NewEncoder(w).Encode(map[string]string{"access_token": "exchanged-token"})
	}))
	defer server.Close()

	cfg := &config.APIConfig{AuthType: config.AuthTypeOAuth2, TokenURL: server.URL}
	p := newProvider(t, cfg, nil)

	headers, err := p.BuildHeaders(context.Background(), OAuth2{ClientID: "cid", ClientSecret: "cs"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer exchanged-token", headers["Authorization"])
	assert.Equal(t, "cid", gotBody["client_id"])
	assert.Equal(t, "cs", gotBody["client_secret"])
	assert.Equal(t, "client_credentials", gotBody["grant_type"])
}

func TestBuildHeadersOAuth2Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad client", http.StatusUnauthorized)
	}))
	defer server.Close()

	cfg := &config.APIConfig{AuthType: config.AuthTypeOAuth2, TokenURL: server.URL}
	p := newProvider(t, cfg, nil)

	_, err := p.BuildHeaders(context.Background(), OAuth2{ClientID: "cid", ClientSecret: "cs"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTokenExchange))
	assert.Contains(t, err.Error(), "401")
}

func TestBuildHeadersOAuth2MissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = gojson.NewEncoder(w).Encode(map[string]string{"token_type": "bearer"})
	}))
	defer server.Close()

	cfg := &config.APIConfig{AuthType: config.AuthTypeOAuth2, TokenURL: server.URL}
	p := newProvider(t, cfg, nil)

	_, err := p.BuildHeaders(context.Background(), OAuth2{ClientID: "cid", ClientSecret: "cs"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTokenExchange))
	assert.Contains(t, err.Error(), "access_token")
}
