package credential

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ScopeCloudPlatform is the OAuth scope required by Vertex AI.
const ScopeCloudPlatform = "https://www.googleapis.com/auth/cloud-platform"

// ErrAuthFailure is returned when a credential cannot be exchanged for a token.
var ErrAuthFailure = errors.New("credential: token exchange failed")

// Token is a short-lived bearer token owned by a single dispatch attempt.
type Token struct {
	Value  string
	Expiry time.Time
}

// Broker exchanges a credential for an access token.
type Broker interface {
	Mint(ctx context.Context, c Credential) (Token, error)
}

// GoogleBroker mints tokens with the service-account JWT flow.
type GoogleBroker struct {
	scopes     []string
	httpClient *http.Client
}

// BrokerOption is a function that configures a GoogleBroker.
type BrokerOption func(*GoogleBroker)

// WithScopes overrides the requested OAuth scopes.
func WithScopes(scopes ...string) BrokerOption {
	return func(b *GoogleBroker) {
		b.scopes = scopes
	}
}

// WithHTTPClient sets the HTTP client used for the token exchange.
func WithHTTPClient(c *http.Client) BrokerOption {
	return func(b *GoogleBroker) {
		b.httpClient = c
	}
}

// NewGoogleBroker creates a broker requesting the cloud-platform scope.
func NewGoogleBroker(opts ...BrokerOption) *GoogleBroker {
	b := &GoogleBroker{
		scopes:     []string{ScopeCloudPlatform},
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Mint exchanges the credential for a fresh token. Tokens are never cached:
// every dispatch attempt mints its own.
func (b *GoogleBroker) Mint(ctx context.Context, c Credential) (Token, error) {
	conf, err := google.JWTConfigFromJSON(c.JSON(), b.scopes...)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %s: %v", ErrAuthFailure, c.ID(), err)
	}

	if b.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	}

	tok, err := conf.TokenSource(ctx).Token()
	if err != nil {
		return Token{}, fmt.Errorf("%w: %s: %v", ErrAuthFailure, c.ID(), err)
	}
	if tok.AccessToken == "" {
		return Token{}, fmt.Errorf("%w: %s: empty access token", ErrAuthFailure, c.ID())
	}

	return Token{Value: tok.AccessToken, Expiry: tok.Expiry}, nil
}

// Compile-time check that GoogleBroker implements Broker.
var _ Broker = (*GoogleBroker)(nil)
