package spark

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration with YAML support for values like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("decoding duration: %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is a declarative client profile, loadable from a YAML file or from
// SPARK_* environment variables. Everything in it can also be expressed
// through functional options; options win when both are given.
type Config struct {
	// BaseURL is the tenant/environment base URL. When empty, Environment is
	// used to derive the default endpoint for that environment.
	BaseURL     string `yaml:"base_url"`
	Environment string `yaml:"environment"`

	// Tenant is sent as the x-tenant-name header on every call.
	Tenant string `yaml:"tenant"`

	// Credentials; exactly one scheme should be configured.
	APIKey      string       `yaml:"api_key"`
	BearerToken string       `yaml:"bearer_token"`
	OAuth       *OAuthConfig `yaml:"oauth"`

	// Transport tuning.
	Timeout       Duration `yaml:"timeout"`
	MaxRetries    int      `yaml:"max_retries"`
	RetryInterval Duration `yaml:"retry_interval"`

	// ChunkSize is the default record count per auto-generated chunk.
	ChunkSize int `yaml:"chunk_size"`
}

// LoadConfig reads a YAML client profile from path.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return &cfg, nil
}

// ConfigFromEnv builds a Config from SPARK_* environment variables:
// SPARK_BASE_URL, SPARK_ENVIRONMENT, SPARK_TENANT, SPARK_API_KEY,
// SPARK_BEARER_TOKEN, SPARK_CLIENT_ID, SPARK_CLIENT_SECRET and
// SPARK_TOKEN_URL.
func ConfigFromEnv() *Config {
	cfg := &Config{
		BaseURL:     os.Getenv("SPARK_BASE_URL"),
		Environment: os.Getenv("SPARK_ENVIRONMENT"),
		Tenant:      os.Getenv("SPARK_TENANT"),
		APIKey:      os.Getenv("SPARK_API_KEY"),
		BearerToken: os.Getenv("SPARK_BEARER_TOKEN"),
	}
	if id := os.Getenv("SPARK_CLIENT_ID"); id != "" {
		cfg.OAuth = &OAuthConfig{
			ClientID:     id,
			ClientSecret: os.Getenv("SPARK_CLIENT_SECRET"),
			TokenURL:     os.Getenv("SPARK_TOKEN_URL"),
		}
	}
	return cfg
}

// Validate checks that the profile names an endpoint and a credential scheme.
func (c *Config) Validate() error {
	if c.BaseURL == "" && c.Environment == "" {
		return fmt.Errorf("config requires a base URL or an environment name")
	}
	if c.APIKey == "" && c.BearerToken == "" && c.OAuth == nil {
		return fmt.Errorf("config requires an API key, a bearer token, or OAuth credentials")
	}
	if c.OAuth != nil && (c.OAuth.ClientID == "" || c.OAuth.ClientSecret == "" || c.OAuth.TokenURL == "") {
		return fmt.Errorf("OAuth config requires client id, client secret, and token URL")
	}
	return nil
}

// resolveBaseURL returns the configured base URL, deriving the default
// endpoint from the environment name when necessary.
func (c *Config) resolveBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return fmt.Sprintf("https://excel.%s.coherent.global", c.Environment)
}

// authorizer builds the Authorizer for the configured credential scheme.
func (c *Config) authorizer() Authorizer {
	switch {
	case c.OAuth != nil:
		return OAuth(*c.OAuth)
	case c.BearerToken != "":
		return BearerAuth(c.BearerToken)
	case c.APIKey != "":
		return APIKeyAuth(c.APIKey)
	default:
		return nil
	}
}
