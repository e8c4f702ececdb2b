// Client construction and service accessors for the Spark SDK.
package spark

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/Coherent-Partners/spark-go-sdk/internal/rest"
)

// Client is the entry point to the Spark API. It owns the shared request
// executor — retry policy, credential injection, error classification — and
// exposes the resource clients built on top of it.
//
// Thread safety: Client and its resource clients are immutable after
// construction and safe for concurrent use. Pipeline handles obtained from
// Client.Batch are not; see Pipeline.
type Client struct {
	exec   *rest.Executor
	logger *slog.Logger

	// Batch creates batch jobs and hands out pipeline handles.
	Batch *BatchClient

	// Services executes synchronous, single-call calculations.
	Services *ServicesClient

	// ImpEx runs export/import jobs with bounded status polling.
	ImpEx *ImpExClient
}

// New creates a Client for the given tenant/environment base URL.
//
// Example:
//
//	client, err := spark.New("https://excel.us.coherent.global",
//	    spark.WithTenant("my-tenant"),
//	    spark.WithAPIKey(os.Getenv("SPARK_API_KEY")),
//	)
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}

	options := defaultClientOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.auth == nil {
		return nil, fmt.Errorf("no authentication scheme configured")
	}

	httpClient := options.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: options.timeout}
	}

	exec := rest.New(rest.Config{
		BaseURL:       parsed,
		Tenant:        options.tenant,
		HTTPClient:    httpClient,
		Auth:          options.auth,
		Logger:        options.logger,
		MaxRetries:    options.maxRetries,
		RetryInterval: options.retryInterval,
		RetryJitter:   options.retryJitter,
		Before:        options.before,
		After:         options.after,
	})

	client := &Client{exec: exec, logger: options.logger}
	client.Batch = &BatchClient{exec: exec, logger: options.logger, chunkSize: options.chunkSize}
	client.Services = &ServicesClient{exec: exec, logger: options.logger}
	client.ImpEx = &ImpExClient{exec: exec, logger: options.logger}
	return client, nil
}

// NewFromConfig creates a Client from a declarative profile (see LoadConfig
// and ConfigFromEnv). Functional options are applied after the profile and
// override it.
func NewFromConfig(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	derived := []Option{WithAuthorizer(cfg.authorizer())}
	if cfg.Tenant != "" {
		derived = append(derived, WithTenant(cfg.Tenant))
	}
	if cfg.Timeout > 0 {
		derived = append(derived, WithTimeout(cfg.Timeout.Std()))
	}
	if cfg.MaxRetries > 0 {
		derived = append(derived, WithMaxRetries(cfg.MaxRetries))
	}
	if cfg.RetryInterval > 0 {
		derived = append(derived, WithRetryInterval(cfg.RetryInterval.Std()))
	}
	if cfg.ChunkSize > 0 {
		derived = append(derived, WithChunkSize(cfg.ChunkSize))
	}

	return New(cfg.resolveBaseURL(), append(derived, opts...)...)
}
