// Package auth resolves API credentials and assembles request headers.
// Credentials are re-resolved at the start of every run; nothing is cached
// across runs, which trades a little latency for freedom from stale-token bugs.
package auth

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/apiobserve/collector/pkg/config"
	"github.com/apiobserve/collector/pkg/errors"
	"github.com/apiobserve/collector/pkg/secrets"
)

const tokenTimeout = 30 * time.Second

// Credentials is the tagged union over the supported auth schemes.
type Credentials interface {
	// Scheme returns the auth type the credentials belong to.
	Scheme() string
}

// OAuth2 holds client credentials for the OAuth2 client-credentials grant.
type OAuth2 struct {
	ClientID     string
	ClientSecret string
}

// Scheme implements Credentials.
func (OAuth2) Scheme() string { return config.AuthTypeOAuth2 }

// APIKey holds a static API key sent as a bearer credential.
type APIKey struct {
	Key string
}

// Scheme implements Credentials.
func (APIKey) Scheme() string { return config.AuthTypeAPIKey }

// Bearer holds a static bearer token.
type Bearer struct {
	Token string
}

// Scheme implements Credentials.
func (Bearer) Scheme() string { return config.AuthTypeBearer }

// Provider resolves credentials from the secret store and exchanges them for
// request headers.
type Provider struct {
	cfg        *config.APIConfig
	secrets    secrets.Store
	httpClient *http.Client
	logger     *zap.Logger
}

// NewProvider creates a credential provider. The HTTP client is only used for
// the OAuth2 token exchange.
func NewProvider(cfg *config.APIConfig, store secrets.Store, logger *zap.Logger) *Provider {
	return &Provider{
		cfg:     cfg,
		secrets: store,
		httpClient: &http.Client{
			Timeout: tokenTimeout,
		},
		logger: logger.With(zap.String("component", "auth")),
	}
}

// Resolve fetches the secrets required by the configured auth type.
func (p *Provider) Resolve(ctx context.Context) (Credentials, error) {
	switch p.cfg.AuthType {
	case config.AuthTypeOAuth2:
		clientID, err := p.secrets.GetSecret(ctx, p.cfg.ClientIDSecretName, true)
		if err != nil {
			return nil, err
		}
		clientSecret, err := p.secrets.GetSecret(ctx, p.cfg.ClientSecretSecretName, true)
		if err != nil {
			return nil, err
		}
		return OAuth2{ClientID: clientID, ClientSecret: clientSecret}, nil

	case config.AuthTypeAPIKey:
		key, err := p.secrets.GetSecret(ctx, p.cfg.KeySecretName, true)
		if err != nil {
			return nil, err
		}
		return APIKey{Key: key}, nil

	case config.AuthTypeBearer:
		token, err := p.secrets.GetSecret(ctx, p.cfg.KeySecretName, true)
		if err != nil {
			return nil, err
		}
		return Bearer{Token: token}, nil

	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported auth type %q", p.cfg.AuthType)
	}
}

// BuildHeaders produces the request headers for the given credentials. All
// three schemes end up as a bearer Authorization header; OAuth2 first
// exchanges the client credentials for an access token.
func (p *Provider) BuildHeaders(ctx context.Context, creds Credentials) (map[string]string, error) {
	headers := map[string]string{
		"Content-Type": "application/json",
	}

	switch c := creds.(type) {
	case OAuth2:
		token, err := p.exchangeToken(ctx, c)
		if err != nil {
			return nil, err
		}
		headers["Authorization"] = "Bearer " + token
		p.logger.Info("oauth2 token acquired", zap.Int("token_length", len(token)))

	case APIKey:
		headers["Authorization"] = "Bearer " + c.Key

	case Bearer:
		headers["Authorization"] = "Bearer " + c.Token

	default:
		return nil, errors.Newf(errors.ErrorTypeInternal, "unknown credential scheme %q", creds.Scheme())
	}

	return headers, nil
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// exchangeToken performs the OAuth2 client-credentials exchange. A failed
// exchange aborts the run; there is no retry at this layer.
func (p *Provider) exchangeToken(ctx context.Context, creds OAuth2) (string, error) {
	payload, err := gojson.Marshal(tokenRequest{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		GrantType:    "client_credentials",
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode token request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeTokenExchange, "failed to create token request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeTokenExchange, "token request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", errors.Newf(errors.ErrorTypeTokenExchange,
			"token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var token tokenResponse
	decoder := gojson.NewDecoder(resp.Body)
	if err := decoder.Decode(&token); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeTokenExchange, "failed to decode token response")
	}
	if token.AccessToken == "" {
		return "", errors.New(errors.ErrorTypeTokenExchange, "token response has no access_token")
	}

	return token.AccessToken, nil
}
