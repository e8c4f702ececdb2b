// Functional options for configuring client behavior, following the
// functional options pattern for clean, composable configuration.
package spark

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Coherent-Partners/spark-go-sdk/internal/rest"
)

// RequestInterceptor is a pure transform applied to every outgoing request
// before credentials are injected.
type RequestInterceptor = rest.RequestInterceptor

// ResponseInterceptor is applied to every raw response before classification.
type ResponseInterceptor = rest.ResponseInterceptor

// Default transport tuning.
const (
	DefaultMaxRetries    = 2
	DefaultRetryInterval = time.Second
	DefaultTimeout       = 60 * time.Second
)

// clientOptions holds configuration options for the client.
type clientOptions struct {
	httpClient    *http.Client
	logger        *slog.Logger
	auth          Authorizer
	tenant        string
	timeout       time.Duration
	maxRetries    int
	retryInterval time.Duration
	retryJitter   float64
	chunkSize     int
	before        []RequestInterceptor
	after         []ResponseInterceptor
}

// Option is a functional option for configuring the Client.
type Option func(*clientOptions)

// WithLogger configures the client with a structured logger. If logger is
// nil, logging is disabled. Credentials and payloads are never logged.
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithHTTPClient provides a custom HTTP client, giving full control over
// transport behavior including proxies and connection pooling.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}

// WithAPIKey authenticates requests with a synthetic API key.
func WithAPIKey(key string) Option {
	return func(o *clientOptions) {
		o.auth = APIKeyAuth(key)
	}
}

// WithBearerToken authenticates requests with a static bearer token.
func WithBearerToken(token string) Option {
	return func(o *clientOptions) {
		o.auth = BearerAuth(token)
	}
}

// WithOAuth authenticates requests through the OAuth2 client-credentials
// flow. Tokens are cached and refreshed when the server rejects them.
func WithOAuth(cfg OAuthConfig) Option {
	return func(o *clientOptions) {
		o.auth = OAuth(cfg)
	}
}

// WithAuthorizer plugs in a custom credential scheme.
func WithAuthorizer(auth Authorizer) Option {
	return func(o *clientOptions) {
		o.auth = auth
	}
}

// WithTenant sets the tenant name sent with every call.
func WithTenant(tenant string) Option {
	return func(o *clientOptions) {
		o.tenant = tenant
	}
}

// WithTimeout sets the per-call timeout. Default is 60 seconds; 0 disables
// the timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = timeout
	}
}

// WithMaxRetries sets the maximum number of retry attempts for the two
// transient conditions the client retries (expired OAuth token, rate
// limiting). Default is 2. Set to 0 to disable retries.
func WithMaxRetries(maxRetries int) Option {
	return func(o *clientOptions) {
		if maxRetries >= 0 {
			o.maxRetries = maxRetries
		}
	}
}

// WithRetryInterval sets the base interval for retry backoff. Default is one
// second.
func WithRetryInterval(interval time.Duration) Option {
	return func(o *clientOptions) {
		if interval > 0 {
			o.retryInterval = interval
		}
	}
}

// WithRetryJitter sets the backoff randomization factor.
func WithRetryJitter(jitter float64) Option {
	return func(o *clientOptions) {
		if jitter > 0 {
			o.retryJitter = jitter
		}
	}
}

// WithChunkSize sets the default record count per auto-generated chunk.
func WithChunkSize(size int) Option {
	return func(o *clientOptions) {
		if size > 0 {
			o.chunkSize = size
		}
	}
}

// WithRequestInterceptor registers a transform over outgoing requests.
// Interceptors run in registration order, before auth injection.
func WithRequestInterceptor(interceptor RequestInterceptor) Option {
	return func(o *clientOptions) {
		o.before = append(o.before, interceptor)
	}
}

// WithResponseInterceptor registers a transform over raw responses, applied
// before classification.
func WithResponseInterceptor(interceptor ResponseInterceptor) Option {
	return func(o *clientOptions) {
		o.after = append(o.after, interceptor)
	}
}

// defaultClientOptions returns the default configuration options.
func defaultClientOptions() *clientOptions {
	return &clientOptions{
		timeout:       DefaultTimeout,
		maxRetries:    DefaultMaxRetries,
		retryInterval: DefaultRetryInterval,
		retryJitter:   rest.DefaultRetryJitter,
		chunkSize:     DefaultChunkSize,
	}
}
