// Package secrets abstracts the secret store collaborator. The collector only
// ever performs name→value lookups, so the interface stays deliberately small;
// production deployments back it with the platform vault, local runs with the
// environment.
package secrets

import (
	"context"

	"go.uber.org/zap"

	"github.com/apiobserve/collector/pkg/errors"
)

// Store resolves named secrets. Required lookups fail with
// errors.ErrorTypeSecretNotFound when the name is absent.
type Store interface {
	GetSecret(ctx context.Context, name string, required bool) (string, error)
}

// EnvStore resolves secrets from environment variables, mapping a secret name
// like "oauth-client-id" to the variable OAUTH_CLIENT_ID. This mirrors how the
// collector runs outside a managed vault.
type EnvStore struct {
	lookup func(string) (string, bool)
	logger *zap.Logger
}

// NewEnvStore creates an EnvStore using the given lookup function
// (os.LookupEnv in production).
func NewEnvStore(lookup func(string) (string, bool), logger *zap.Logger) *EnvStore {
	return &EnvStore{lookup: lookup, logger: logger}
}

// GetSecret implements Store.
func (s *EnvStore) GetSecret(ctx context.Context, name string, required bool) (string, error) {
	value, ok := s.lookup(envName(name))
	if !ok || value == "" {
		if required {
			return "", errors.Newf(errors.ErrorTypeSecretNotFound, "secret %q not found", name)
		}
		s.logger.Warn("optional secret not found", zap.String("secret", name))
		return "", nil
	}

	s.logger.Debug("retrieved secret",
		zap.String("secret", name),
		zap.Int("length", len(value)))
	return value, nil
}

// envName converts a secret name to its environment variable form:
// lowercase and dashes become uppercase and underscores.
func envName(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '-' || c == '.':
			out[i] = '_'
		case c >= 'a' && c <= 'z':
			out[i] = c - 'a' + 'A'
		default:
			out[i] = c
		}
	}
	return string(out)
}

// StaticStore serves secrets from a fixed map. Used in tests and dry runs.
type StaticStore struct {
	values map[string]string
}

// NewStaticStore creates a StaticStore over the given map.
func NewStaticStore(values map[string]string) *StaticStore {
	return &StaticStore{values: values}
}

// GetSecret implements Store.
func (s *StaticStore) GetSecret(ctx context.Context, name string, required bool) (string, error) {
	if v, ok := s.values[name]; ok && v != "" {
		return v, nil
	}
	if required {
		return "", errors.Newf(errors.ErrorTypeSecretNotFound, "secret %q not found", name)
	}
	return "", nil
}
