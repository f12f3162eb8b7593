package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang/groupcache"

	"github.com/sanasol-ws/dualauth/internal/claims"
	"github.com/sanasol-ws/dualauth/internal/clock"
	"github.com/sanasol-ws/dualauth/internal/service"
)

// DefaultDistributedCacheSize is the groupcache byte limit (64MB).
const DefaultDistributedCacheSize int64 = 64 << 20

// DistributedSource wraps another source with groupcache so a fleet of
// session servers shares one profile cache. groupcache has no native TTL;
// expiration comes from a timestamp bucket embedded in the cache key, so
// entries go stale as the interval rolls over and LRU eviction reclaims
// the old buckets.
type DistributedSource struct {
	source service.ProfileSource
	group  *groupcache.Group
	ttl    time.Duration
	clock  clock.Clock
}

// DistributedSourceConfig configures the distributed source
type DistributedSourceConfig struct {
	// Source is the backing source (required)
	Source service.ProfileSource

	// GroupName names the groupcache group. Must be unique per process;
	// groupcache panics on duplicate registration.
	GroupName string

	// CacheSizeBytes limits the cache (defaults to DefaultDistributedCacheSize)
	CacheSizeBytes int64

	// TTL buckets cache keys by time (defaults to DefaultCacheTTL, <0 disables)
	TTL time.Duration

	// Clock for TTL bucketing (defaults to system clock)
	Clock clock.Clock
}

// NewDistributedSource creates a groupcache-backed source.
//
// groupcache requires the peer pool to be configured before the group is
// used; see the groupcache documentation.
func NewDistributedSource(cfg DistributedSourceConfig) *DistributedSource {
	if cfg.GroupName == "" {
		cfg.GroupName = "dualauth:profiles"
	}
	if cfg.CacheSizeBytes == 0 {
		cfg.CacheSizeBytes = DefaultDistributedCacheSize
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultCacheTTL
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}

	source := cfg.Source
	getter := groupcache.GetterFunc(func(ctx context.Context, key string, dest groupcache.Sink) error {
		// The getter may run on a peer, so the key alone must identify the
		// subject. Format: "<subject>:ttl:<bucket>".
		subject := stripTTLSuffix(key)

		attrs, err := source.Fetch(ctx, subject)
		if err != nil {
			return fmt.Errorf("profile fetch failed: %w", err)
		}

		// A nil map marshals to "null", which round-trips back to nil, so
		// "nothing known" is cached like any other answer.
		data, err := json.Marshal(attrs)
		if err != nil {
			return fmt.Errorf("failed to marshal cache entry: %w", err)
		}
		return dest.SetBytes(data)
	})

	return &DistributedSource{
		source: source,
		group:  groupcache.NewGroup(cfg.GroupName, cfg.CacheSizeBytes, getter),
		ttl:    cfg.TTL,
		clock:  clk,
	}
}

// Fetch implements service.ProfileSource
func (d *DistributedSource) Fetch(ctx context.Context, subject string) (claims.Claims, error) {
	key := subject
	if d.ttl > 0 {
		bucket := roundTimestampToInterval(d.clock.Now(), d.ttl)
		key = fmt.Sprintf("%s:ttl:%d", subject, bucket.Unix())
	}

	var cached []byte
	if err := d.group.Get(ctx, key, groupcache.AllocatingByteSliceSink(&cached)); err != nil {
		return nil, fmt.Errorf("distributed cache fetch failed: %w", err)
	}

	var attrs claims.Claims
	if err := json.Unmarshal(cached, &attrs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached entry: %w", err)
	}
	return attrs, nil
}

// roundTimestampToInterval rounds a timestamp down to the interval
// boundary. With a 5-minute TTL, 10:02:30 and 10:04:59 share the 10:00:00
// bucket and 10:05:00 starts a new one.
func roundTimestampToInterval(t time.Time, interval time.Duration) time.Time {
	unixNano := t.UnixNano()
	intervalNano := interval.Nanoseconds()
	roundedNano := (unixNano / intervalNano) * intervalNano
	return time.Unix(0, roundedNano)
}

// stripTTLSuffix removes the ":ttl:<bucket>" suffix from a cache key
func stripTTLSuffix(key string) string {
	const ttlMarker = ":ttl:"
	if idx := strings.Index(key, ttlMarker); idx >= 0 {
		return key[:idx]
	}
	return key
}
