package trust

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"golang.org/x/sync/singleflight"

	"github.com/sanasol-ws/dualauth/internal/clock"
)

// Federation defaults
const (
	// DefaultForeignKeyTTL is how long a fetched foreign key stays live.
	DefaultForeignKeyTTL = time.Hour

	// DefaultNegativeTTL is how long a failed lookup suppresses refetching.
	DefaultNegativeTTL = 30 * time.Second

	// DefaultFetchTimeout bounds a single outbound JWKS fetch.
	DefaultFetchTimeout = 5 * time.Second

	// DefaultCacheSize bounds the foreign-key cache.
	DefaultCacheSize = 256
)

// ForeignKey is a verification key discovered from a foreign issuer's JWKS
// document.
type ForeignKey struct {
	Issuer string
	KeyID  string
	Key    ed25519.PublicKey
}

// Federation discovers verification keys from foreign issuers on demand.
//
// Keys are cached per (issuer, key id) with a TTL and LRU eviction.
// Concurrent misses for the same issuer coalesce into one outbound fetch.
// Failed fetches are negative-cached briefly so a flapping peer cannot be
// hammered, and every failure surfaces as ErrUnknownKey: the verification
// path only ever learns "no key".
type Federation struct {
	cache        *lru.Cache[string, *foreignEntry]
	flights      singleflight.Group
	httpClient   *http.Client
	ttl          time.Duration
	negativeTTL  time.Duration
	fetchTimeout time.Duration
	clock        clock.Clock
	logger       *slog.Logger
}

// foreignEntry is one cached lookup result. A negative entry records a fetch
// that did not produce the key.
type foreignEntry struct {
	key       ed25519.PublicKey
	fetchedAt time.Time
	negative  bool
}

// FederationConfig configures foreign key discovery
type FederationConfig struct {
	// TTL is how long fetched keys stay live (defaults to DefaultForeignKeyTTL)
	TTL time.Duration

	// NegativeTTL is the retry hold-off after a failed fetch
	// (defaults to DefaultNegativeTTL)
	NegativeTTL time.Duration

	// FetchTimeout is the hard deadline for one outbound fetch
	// (defaults to DefaultFetchTimeout)
	FetchTimeout time.Duration

	// CacheSize bounds the cache (defaults to DefaultCacheSize)
	CacheSize int

	// HTTPClient is an optional HTTP client for JWKS fetching
	// If nil, http.DefaultClient is used
	// This is useful for testing with fixtures or custom transports
	HTTPClient *http.Client

	// Clock is an optional time source (defaults to system clock)
	Clock clock.Clock

	// Logger is an optional structured logger (defaults to slog.Default)
	Logger *slog.Logger
}

// NewFederation creates a new foreign key federation component
func NewFederation(cfg FederationConfig) (*Federation, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *foreignEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create foreign key cache: %w", err)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultForeignKeyTTL
	}
	negativeTTL := cfg.NegativeTTL
	if negativeTTL == 0 {
		negativeTTL = DefaultNegativeTTL
	}
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout == 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Federation{
		cache:        cache,
		httpClient:   httpClient,
		ttl:          ttl,
		negativeTTL:  negativeTTL,
		fetchTimeout: fetchTimeout,
		clock:        clk,
		logger:       logger,
	}, nil
}

// GetKey returns the verification key for (issuer, keyID), fetching the
// issuer's JWKS document when the cache has no live entry. All failures
// return ErrUnknownKey.
func (f *Federation) GetKey(ctx context.Context, issuerURL, keyID string) (ed25519.PublicKey, error) {
	if key, err, ok := f.lookup(issuerURL, keyID); ok {
		return key, err
	}

	// Coalesce concurrent misses for the same issuer: one fetch refreshes
	// every key that issuer publishes. Late arrivals that just missed a
	// completed flight find the cache populated instead of refetching.
	_, err, _ := f.flights.Do(issuerURL, func() (any, error) {
		if _, err, ok := f.lookup(issuerURL, keyID); ok {
			return nil, err
		}
		return nil, f.fetch(ctx, issuerURL)
	})
	if err != nil {
		f.cache.Add(cacheKey(issuerURL, keyID), &foreignEntry{
			fetchedAt: f.clock.Now(),
			negative:  true,
		})
		f.logger.Warn("foreign JWKS fetch failed",
			"issuer", issuerURL,
			"kid", keyID,
			"error", err)
		return nil, ErrUnknownKey
	}

	if key, err, ok := f.lookup(issuerURL, keyID); ok {
		return key, err
	}

	// The fetch succeeded but the issuer does not publish this kid. Hold
	// off retries the same way a failed fetch would.
	f.cache.Add(cacheKey(issuerURL, keyID), &foreignEntry{
		fetchedAt: f.clock.Now(),
		negative:  true,
	})
	return nil, ErrUnknownKey
}

// lookup consults the cache. The bool reports whether the entry is live,
// positive or negative; stale entries read as absent.
func (f *Federation) lookup(issuerURL, keyID string) (ed25519.PublicKey, error, bool) {
	entry, ok := f.cache.Get(cacheKey(issuerURL, keyID))
	if !ok {
		return nil, nil, false
	}

	age := f.clock.Now().Sub(entry.fetchedAt)
	if entry.negative {
		if age < f.negativeTTL {
			return nil, ErrUnknownKey, true
		}
		return nil, nil, false
	}
	if age < f.ttl {
		return entry.key, nil, true
	}
	return nil, nil, false
}

// fetch retrieves and parses the issuer's JWKS document and caches every
// Ed25519 key it publishes.
func (f *Federation) fetch(ctx context.Context, issuerURL string) error {
	ctx, cancel := context.WithTimeout(ctx, f.fetchTimeout)
	defer cancel()

	jwksURL := issuerURL + "/.well-known/jwks.json"
	set, err := jwk.Fetch(ctx, jwksURL, jwk.WithHTTPClient(f.httpClient))
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS from %s: %w", jwksURL, err)
	}

	now := f.clock.Now()
	cached := 0
	for i := 0; i < set.Len(); i++ {
		key, ok := set.Key(i)
		if !ok {
			continue
		}
		kid, ok := key.KeyID()
		if !ok || kid == "" {
			continue
		}

		var raw ed25519.PublicKey
		if err := jwk.Export(key, &raw); err != nil {
			// Not an Ed25519 key; the issuer may publish other
			// algorithms for other consumers.
			continue
		}

		f.cache.Add(cacheKey(issuerURL, kid), &foreignEntry{
			key:       raw,
			fetchedAt: now,
		})
		cached++
	}

	f.logger.Debug("refreshed foreign JWKS",
		"issuer", issuerURL,
		"keys", cached)
	return nil
}

// LiveKeys returns every cached foreign key whose TTL has not elapsed. The
// merged key set served to downstream consumers includes these.
func (f *Federation) LiveKeys() []ForeignKey {
	now := f.clock.Now()
	var live []ForeignKey
	for _, k := range f.cache.Keys() {
		entry, ok := f.cache.Peek(k)
		if !ok || entry.negative {
			continue
		}
		if now.Sub(entry.fetchedAt) >= f.ttl {
			continue
		}
		issuerURL, kid := splitCacheKey(k)
		live = append(live, ForeignKey{
			Issuer: issuerURL,
			KeyID:  kid,
			Key:    entry.key,
		})
	}
	return live
}

func cacheKey(issuerURL, keyID string) string {
	return issuerURL + "|" + keyID
}

func splitCacheKey(k string) (issuerURL, keyID string) {
	for i := len(k) - 1; i >= 0; i-- {
		if k[i] == '|' {
			return k[:i], k[i+1:]
		}
	}
	return k, ""
}
