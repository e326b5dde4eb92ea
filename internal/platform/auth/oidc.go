package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// NewClientCredentialsClient discovers the issuer's token endpoint and
// returns an HTTP client that attaches a fresh bearer token to every
// request. base supplies the transport for both token and API calls.
func NewClientCredentialsClient(ctx context.Context, cfg Config, base *http.Client) (*http.Client, error) {
	if !cfg.Enabled() {
		return nil, errors.New("oidc client credentials not configured")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if base == nil {
		base = http.DefaultClient
	}

	discoveryCtx := oidc.ClientContext(ctx, base)
	provider, err := oidc.NewProvider(discoveryCtx, strings.TrimRight(strings.TrimSpace(cfg.IssuerURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}
	tokenURL := provider.Endpoint().TokenURL
	if tokenURL == "" {
		return nil, errors.New("oidc provider advertises no token endpoint")
	}

	ccfg := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       cfg.Scopes,
	}
	client := ccfg.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
	client.Timeout = base.Timeout
	return client, nil
}
