package auth

import (
	"errors"
	"net/url"
	"strings"
)

// Config describes an OAuth2 client-credentials grant against an OIDC issuer.
// An empty IssuerURL disables it.
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.IssuerURL) != ""
}

func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	u, err := url.Parse(strings.TrimSpace(c.IssuerURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("PRUNE_OIDC_ISSUER_URL must be an absolute url")
	}
	if strings.TrimSpace(c.ClientID) == "" {
		return errors.New("PRUNE_OIDC_CLIENT_ID is required when PRUNE_OIDC_ISSUER_URL is set")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		return errors.New("PRUNE_OIDC_CLIENT_SECRET is required when PRUNE_OIDC_ISSUER_URL is set")
	}
	return nil
}

// ParseScopes accepts space or comma separated scope lists.
func ParseScopes(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}
