// Package config provides the unified configuration system for the collector.
// Configuration is sourced from the environment (the deployment contract of the
// scheduler that invokes the collector), optionally overlaid with a YAML file
// for non-secret settings, and validated once at run start so a misconfigured
// deployment fails before any network call.
package config

import (
	"os"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/apiobserve/collector/pkg/errors"
)

// Auth types accepted in APIConfig.AuthType.
const (
	AuthTypeOAuth2 = "oauth2"
	AuthTypeAPIKey = "apikey"
	AuthTypeBearer = "bearer"
)

// Query types accepted in APIConfig.QueryType.
const (
	QueryTypeREST    = "rest"
	QueryTypeGraphQL = "graphql"
)

// Config is the full collector configuration.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Storage   StorageConfig   `yaml:"storage"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	LogLevel  string          `yaml:"log_level"`
}

// APIConfig describes the upstream API and how to page through it.
type APIConfig struct {
	// BaseURL is the scheme+host prefix of the target API. Required.
	BaseURL string `yaml:"base_url"`
	// DataEndpoint is the path appended to BaseURL. Required.
	DataEndpoint string `yaml:"data_endpoint"`
	// AuthType selects the credential scheme: oauth2, apikey or bearer.
	AuthType string `yaml:"auth_type"`
	// QueryType selects the pagination protocol: rest or graphql.
	QueryType string `yaml:"query_type"`
	// IDField names the record field used as the storage row key. Required.
	IDField string `yaml:"id_field"`
	// TimestampField names the record field holding the event timestamp.
	TimestampField string `yaml:"timestamp_field"`
	// ResponsePath is the dotted path to the record collection in responses.
	ResponsePath string `yaml:"response_path"`
	// PaginationEnabled gates the page loop; when false exactly one page is fetched.
	PaginationEnabled bool `yaml:"pagination_enabled"`
	// PageSize is the per-page record limit sent upstream.
	PageSize int `yaml:"page_size"`
	// MaxPages bounds total work per run.
	MaxPages int `yaml:"max_pages"`
	// FullQuery is the GraphQL query template (graphql mode only).
	FullQuery string `yaml:"full_query"`

	// TokenURL is the OAuth2 token endpoint (oauth2 mode only).
	TokenURL string `yaml:"token_url"`
	// ClientIDSecretName / ClientSecretSecretName name the secrets holding the
	// OAuth2 client credentials.
	ClientIDSecretName     string `yaml:"client_id_secret_name"`
	ClientSecretSecretName string `yaml:"client_secret_secret_name"`
	// KeySecretName names the secret holding the API key or bearer token.
	KeySecretName string `yaml:"key_secret_name"`
}

// StorageConfig describes the keyed entity store.
type StorageConfig struct {
	// TableName is the entity table written by the sync run.
	TableName string `yaml:"table_name"`
	// PartitionKey is the constant partition key stamped on every entity.
	PartitionKey string `yaml:"partition_key"`
	// SQLitePath is the path of the backing SQLite database file.
	SQLitePath string `yaml:"sqlite_path"`
	// FieldMapping maps API field names to storage attribute names. Empty
	// means full passthrough with key sanitization.
	FieldMapping map[string]string `yaml:"field_mapping"`
}

// AnalysisConfig controls the summarization pass over recent records.
type AnalysisConfig struct {
	LookbackDays   int      `yaml:"lookback_days"`
	FilterField    string   `yaml:"filter_field"`
	FilterValues   []string `yaml:"filter_values"`
	SampleSize     int      `yaml:"sample_size"`
	PromptTemplate string   `yaml:"prompt_template"`
	Temperature    float64  `yaml:"temperature"`
	MaxTokens      int      `yaml:"max_tokens"`
}

// OpenAIConfig configures the optional model endpoint used for analysis.
// An empty Endpoint disables the feature.
type OpenAIConfig struct {
	Endpoint         string `yaml:"endpoint"`
	APIKey           string `yaml:"-"`
	APIKeySecretName string `yaml:"api_key_secret_name"`
	Deployment       string `yaml:"deployment"`
}

// DashboardConfig controls static status page generation.
type DashboardConfig struct {
	OutputPath string `yaml:"output_path"`
}

const defaultPromptTemplate = `Analyze the following data and provide:
1. Summary statistics
2. Key patterns identified
3. Top issues by frequency
4. Recommended actions

Data:
{data}
`

// FromEnv builds a Config from the environment, applying documented defaults.
// It does not validate; call Validate before using the result.
func FromEnv() (*Config, error) {
	cfg := &Config{
		API: APIConfig{
			BaseURL:           os.Getenv("API_BASE_URL"),
			DataEndpoint:      os.Getenv("API_DATA_ENDPOINT"),
			AuthType:          envOr("API_AUTH_TYPE", AuthTypeAPIKey),
			QueryType:         envOr("API_QUERY_TYPE", QueryTypeREST),
			IDField:           os.Getenv("API_ID_FIELD"),
			TimestampField:    envOr("API_TIMESTAMP_FIELD", "timestamp"),
			ResponsePath:      envOr("API_RESPONSE_PATH", "items"),
			PaginationEnabled: envBool("API_PAGINATION_ENABLED", false),
			PageSize:          envInt("API_PAGE_SIZE", 100),
			MaxPages:          envInt("API_MAX_PAGES", 100),
			FullQuery:         envOr("API_FULL_QUERY", "{ items { id timestamp } }"),

			TokenURL:               os.Getenv("API_TOKEN_URL"),
			ClientIDSecretName:     envOr("API_CLIENT_ID_SECRET_NAME", "oauth-client-id"),
			ClientSecretSecretName: envOr("API_CLIENT_SECRET_SECRET_NAME", "oauth-client-secret"),
			KeySecretName:          envOr("API_KEY_SECRET_NAME", "api-key"),
		},
		Storage: StorageConfig{
			TableName:    envOr("STORAGE_TABLE_NAME", "ApiData"),
			PartitionKey: envOr("PARTITION_KEY_VALUE", "api_data"),
			SQLitePath:   envOr("STORAGE_SQLITE_PATH", "collector.db"),
		},
		Analysis: AnalysisConfig{
			LookbackDays:   envInt("ANALYSIS_LOOKBACK_DAYS", 7),
			FilterField:    envOr("ANALYSIS_FILTER_FIELD", "Status"),
			FilterValues:   splitTrimmed(envOr("ANALYSIS_FILTER_VALUES", "Error,Warning,Critical")),
			SampleSize:     envInt("ANALYSIS_SAMPLE_SIZE", 100),
			PromptTemplate: envOr("AI_PROMPT_TEMPLATE", defaultPromptTemplate),
			Temperature:    envFloat("AI_TEMPERATURE", 0.3),
			MaxTokens:      envInt("AI_MAX_TOKENS", 2500),
		},
		OpenAI: OpenAIConfig{
			Endpoint:         os.Getenv("OPENAI_ENDPOINT"),
			APIKey:           os.Getenv("OPENAI_API_KEY"),
			APIKeySecretName: os.Getenv("OPENAI_API_KEY_SECRET_NAME"),
			Deployment:       envOr("OPENAI_DEPLOYMENT_NAME", "gpt-4"),
		},
		Dashboard: DashboardConfig{
			OutputPath: envOr("DASHBOARD_OUTPUT_PATH", "public/index.html"),
		},
		LogLevel: envOr("LOG_LEVEL", "info"),
	}

	if raw := os.Getenv("FIELD_MAPPING"); raw != "" {
		mapping := map[string]string{}
		if err := gojson.Unmarshal([]byte(raw), &mapping); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "FIELD_MAPPING is not a valid JSON object")
		}
		cfg.Storage.FieldMapping = mapping
	}

	return cfg, nil
}

// ApplyFile overlays non-secret settings from a YAML file onto the config.
// Values present in the file win over the environment.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config file")
	}
	return nil
}

// Validate checks the configuration for completeness, accumulating every
// problem so the operator sees the whole list at once.
func (c *Config) Validate() error {
	var missing []string

	if c.API.BaseURL == "" {
		missing = append(missing, "API_BASE_URL")
	}
	if c.API.DataEndpoint == "" {
		missing = append(missing, "API_DATA_ENDPOINT")
	}
	if c.API.IDField == "" {
		missing = append(missing, "API_ID_FIELD")
	}

	switch c.API.AuthType {
	case AuthTypeOAuth2:
		if c.API.TokenURL == "" {
			missing = append(missing, "API_TOKEN_URL")
		}
	case AuthTypeAPIKey, AuthTypeBearer:
		// Key secret name always has a default; nothing extra to require.
	default:
		return errors.Newf(errors.ErrorTypeConfig,
			"unsupported API_AUTH_TYPE %q (use oauth2, apikey or bearer)", c.API.AuthType)
	}

	switch c.API.QueryType {
	case QueryTypeREST, QueryTypeGraphQL:
	default:
		return errors.Newf(errors.ErrorTypeConfig,
			"unsupported API_QUERY_TYPE %q (use rest or graphql)", c.API.QueryType)
	}

	if len(missing) > 0 {
		return errors.Newf(errors.ErrorTypeConfig,
			"missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.API.PageSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "API_PAGE_SIZE must be positive")
	}
	if c.API.MaxPages <= 0 {
		return errors.New(errors.ErrorTypeConfig, "API_MAX_PAGES must be positive")
	}
	if c.Storage.TableName == "" {
		return errors.New(errors.ErrorTypeConfig, "STORAGE_TABLE_NAME must not be empty")
	}

	return nil
}

// AnalysisEnabled reports whether the model endpoint is configured.
func (c *Config) AnalysisEnabled() bool {
	return c.OpenAI.Endpoint != ""
}

// DataURL returns the full URL of the data endpoint.
func (c *APIConfig) DataURL() string {
	return c.BaseURL + c.DataEndpoint
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return strings.EqualFold(v, "true")
}

func splitTrimmed(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
