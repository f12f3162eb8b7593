package datasource

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanasol-ws/dualauth/internal/claims"
	"github.com/sanasol-ws/dualauth/internal/clock"
)

// Group names must be process-unique; groupcache panics on reuse
var distributedGroupSeq atomic.Int64

func uniqueGroupName() string {
	return fmt.Sprintf("test:profiles:%d", distributedGroupSeq.Add(1))
}

func TestDistributedSource_CachesWithinBucket(t *testing.T) {
	backing := &countingSource{static: NewStaticSource(map[string]claims.Claims{
		"p-1": {"tier": "founder"},
	})}
	clk := clock.NewFixtureClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	source := NewDistributedSource(DistributedSourceConfig{
		Source:    backing,
		GroupName: uniqueGroupName(),
		TTL:       5 * time.Minute,
		Clock:     clk,
	})

	for range 3 {
		attrs, err := source.Fetch(context.Background(), "p-1")
		require.NoError(t, err)
		assert.Equal(t, "founder", attrs.GetString("tier"))
	}
	assert.Equal(t, 1, backing.fetches)
}

func TestDistributedSource_RefetchesAfterBucketRollover(t *testing.T) {
	backing := &countingSource{static: NewStaticSource(map[string]claims.Claims{
		"p-1": {"tier": "founder"},
	})}
	clk := clock.NewFixtureClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	source := NewDistributedSource(DistributedSourceConfig{
		Source:    backing,
		GroupName: uniqueGroupName(),
		TTL:       5 * time.Minute,
		Clock:     clk,
	})

	_, err := source.Fetch(context.Background(), "p-1")
	require.NoError(t, err)

	// Still inside the same bucket
	clk.Advance(4 * time.Minute)
	_, err = source.Fetch(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, 1, backing.fetches)

	// Crosses the interval boundary, new cache key
	clk.Advance(2 * time.Minute)
	_, err = source.Fetch(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, 2, backing.fetches)
}

func TestDistributedSource_CachesUnknownSubjects(t *testing.T) {
	backing := &countingSource{static: NewStaticSource(nil)}
	source := NewDistributedSource(DistributedSourceConfig{
		Source:    backing,
		GroupName: uniqueGroupName(),
		Clock:     clock.NewFixtureClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	})

	for range 3 {
		attrs, err := source.Fetch(context.Background(), "p-404")
		require.NoError(t, err)
		assert.Nil(t, attrs)
	}
	assert.Equal(t, 1, backing.fetches)
}

func TestRoundTimestampToInterval(t *testing.T) {
	interval := 5 * time.Minute
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, base.Unix(), roundTimestampToInterval(base, interval).Unix())
	assert.Equal(t, base.Unix(), roundTimestampToInterval(base.Add(2*time.Minute+30*time.Second), interval).Unix())
	assert.Equal(t, base.Add(5*time.Minute).Unix(), roundTimestampToInterval(base.Add(5*time.Minute), interval).Unix())
	assert.Equal(t, base.Add(5*time.Minute).Unix(), roundTimestampToInterval(base.Add(7*time.Minute+30*time.Second), interval).Unix())
}

func TestStripTTLSuffix(t *testing.T) {
	assert.Equal(t, "p-1", stripTTLSuffix("p-1:ttl:1234567890"))
	assert.Equal(t, "p-1", stripTTLSuffix("p-1"))
}
