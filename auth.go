package spark

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/Coherent-Partners/spark-go-sdk/internal/rest"
)

// Authorizer supplies credentials for outgoing requests. The built-in
// implementations cover synthetic API keys, static bearer tokens, and OAuth2
// client-credentials flows; custom schemes can be plugged in through
// WithAuthorizer.
type Authorizer = rest.Authorizer

// APIKeyAuth authorizes requests with a synthetic API key sent in the
// x-synthetic-key header. API keys cannot be refreshed, so a 401 is terminal.
func APIKeyAuth(key string) Authorizer {
	return &staticAuth{header: rest.HeaderSyntheticKey, value: key}
}

// BearerAuth authorizes requests with a static bearer token. The token
// cannot be refreshed, so a 401 is terminal.
func BearerAuth(token string) Authorizer {
	return &staticAuth{header: "Authorization", value: "Bearer " + token}
}

type staticAuth struct {
	header string
	value  string
}

func (a *staticAuth) Apply(req *http.Request) error {
	req.Header.Set(a.header, a.value)
	return nil
}

func (a *staticAuth) Refreshable() bool { return false }

func (a *staticAuth) Refresh(context.Context) error {
	return fmt.Errorf("static credentials cannot be refreshed")
}

// OAuthConfig configures the OAuth2 client-credentials flow.
type OAuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	TokenURL     string `yaml:"token_url"`
}

// OAuth returns an Authorizer that obtains bearer tokens through the OAuth2
// client-credentials flow. The access token is cached and shared across all
// requests issued through one client configuration; refresh is triggered
// lazily when the server first rejects the token, not pre-emptively.
// Concurrent requests hitting a 401 around expiry each trigger their own
// refresh — the duplication is accepted rather than coalesced.
func OAuth(cfg OAuthConfig) Authorizer {
	return &oauthAuth{
		cfg: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		},
	}
}

type oauthAuth struct {
	cfg clientcredentials.Config

	mu    sync.RWMutex
	token *oauth2.Token
}

// Apply injects the cached bearer token, fetching an initial token on first
// use.
func (a *oauthAuth) Apply(req *http.Request) error {
	a.mu.RLock()
	token := a.token
	a.mu.RUnlock()

	if token == nil {
		if err := a.Refresh(req.Context()); err != nil {
			return err
		}
		a.mu.RLock()
		token = a.token
		a.mu.RUnlock()
	}
	token.SetAuthHeader(req)
	return nil
}

func (a *oauthAuth) Refreshable() bool { return true }

// Refresh obtains a fresh access token, replacing the cached one.
func (a *oauthAuth) Refresh(ctx context.Context) error {
	token, err := a.cfg.Token(ctx)
	if err != nil {
		return fmt.Errorf("fetching access token: %w", err)
	}
	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
	return nil
}
