package trust

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net/http"
	"time"

	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// DefaultOfficialRefreshInterval is the minimum interval between background
// refreshes of an official issuer's JWKS document.
const DefaultOfficialRefreshInterval = 15 * time.Minute

// OfficialIssuers verifies tokens from the allow-listed vendor issuers.
//
// Unlike foreign issuers, official JWKS documents are registered up front
// and kept fresh by a background cache rather than fetched per miss. The
// federation component never reaches here; key resolution routes official
// issuers to this path explicitly.
type OfficialIssuers struct {
	cache    *jwk.Cache
	jwksURLs map[string]string // issuer URL -> JWKS URL
}

// OfficialIssuersConfig configures official issuer verification
type OfficialIssuersConfig struct {
	// Issuers are the allow-listed issuer URLs. Their JWKS documents are
	// discovered at <issuer>/.well-known/jwks.json.
	Issuers []string

	// RefreshInterval is the minimum interval between JWKS refreshes
	// (defaults to DefaultOfficialRefreshInterval)
	RefreshInterval time.Duration

	// HTTPClient is an optional HTTP client for JWKS fetching
	// If nil, http.DefaultClient is used
	HTTPClient *http.Client
}

// NewOfficialIssuers creates the official issuer verification path. The
// JWKS documents are fetched lazily on first lookup, then refreshed in the
// background.
func NewOfficialIssuers(cfg OfficialIssuersConfig) (*OfficialIssuers, error) {
	refreshInterval := cfg.RefreshInterval
	if refreshInterval == 0 {
		refreshInterval = DefaultOfficialRefreshInterval
	}

	cache, err := jwk.NewCache(context.Background(), httprc.NewClient())
	if err != nil {
		return nil, fmt.Errorf("failed to create official JWKS cache: %w", err)
	}

	jwksURLs := make(map[string]string, len(cfg.Issuers))
	for _, issuerURL := range cfg.Issuers {
		jwksURL := issuerURL + "/.well-known/jwks.json"

		registerOpts := []jwk.RegisterOption{jwk.WithMinInterval(refreshInterval)}
		if cfg.HTTPClient != nil {
			registerOpts = append(registerOpts, jwk.WithHTTPClient(cfg.HTTPClient))
		}
		if err := cache.Register(context.Background(), jwksURL, registerOpts...); err != nil {
			return nil, fmt.Errorf("failed to register official JWKS URL %s: %w", jwksURL, err)
		}

		jwksURLs[issuerURL] = jwksURL
	}

	return &OfficialIssuers{
		cache:    cache,
		jwksURLs: jwksURLs,
	}, nil
}

// GetKey returns the verification key an official issuer publishes under
// keyID. Issuers outside the allow-list and any lookup failure surface as
// ErrUnknownKey.
func (o *OfficialIssuers) GetKey(ctx context.Context, issuerURL, keyID string) (ed25519.PublicKey, error) {
	jwksURL, ok := o.jwksURLs[issuerURL]
	if !ok {
		return nil, ErrUnknownKey
	}

	set, err := o.cache.Lookup(ctx, jwksURL)
	if err != nil {
		return nil, ErrUnknownKey
	}

	key, found := set.LookupKeyID(keyID)
	if !found {
		return nil, ErrUnknownKey
	}

	var raw ed25519.PublicKey
	if err := jwk.Export(key, &raw); err != nil {
		return nil, ErrUnknownKey
	}
	return raw, nil
}
