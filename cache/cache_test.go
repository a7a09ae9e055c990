package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valuationhq/propcache/cachekey"
	"github.com/valuationhq/propcache/logger"
	"github.com/valuationhq/propcache/query"
)

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	base := []Option{
		WithDiskDir(t.TempDir()),
		WithSweepInterval(0),
	}
	c, err := New(context.Background(), logger.NewTestLogger(), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func singleRequest(address string) query.Request {
	return query.Request{Addresses: []string{address}, Kind: query.KindSingle}
}

func TestCacheRoundTrip(t *testing.T) {
	c := newTestCache(t)
	req := singleRequest("123 Main St, City, STATE 12345")

	val, ok := c.Get(req)
	assert.False(t, ok)
	assert.Nil(t, val)

	want := &query.Valuation{
		FinalEstimate: "$500,000",
		PriceRange:    "$480,000 - $520,000",
		Confidence:    0.85,
	}
	c.Set(req, want)
	val, ok = c.Get(req)
	assert.True(t, ok)
	assert.Equal(t, want, val)
}

func TestCacheNormalizationEquivalence(t *testing.T) {
	c := newTestCache(t)
	c.Set(query.Request{
		Addresses: []string{"123 Main Street, City"},
		Kind:      query.Kind("Single"),
	}, testValuation("$500,000"))

	val, ok := c.Get(query.Request{
		Addresses: []string{"123 main st, city"},
		Kind:      query.KindSingle,
	})
	assert.True(t, ok)
	assert.Equal(t, "$500,000", val.FinalEstimate)
}

func TestCacheOrderInvariance(t *testing.T) {
	c := newTestCache(t)
	c.Set(query.Request{
		Addresses: []string{"123 Main St", "456 Oak Ave"},
		Kind:      query.KindCompare,
	}, testValuation("$1M"))

	val, ok := c.Get(query.Request{
		Addresses: []string{"456 Oak Ave", "123 Main St"},
		Kind:      query.KindCompare,
	})
	assert.True(t, ok)
	assert.Equal(t, "$1M", val.FinalEstimate)
}

func TestCacheDiskPromotion(t *testing.T) {
	c := newTestCache(t)
	req := singleRequest("123 Main St")
	c.Set(req, testValuation("$500,000"))

	// Drop the memory tier only; the next Get must hit disk and promote.
	c.memory.clear()
	assert.Equal(t, 0, c.memory.size())

	val, ok := c.Get(req)
	assert.True(t, ok)
	assert.Equal(t, "$500,000", val.FinalEstimate)
	assert.Equal(t, 1, c.memory.size())

	snap := c.Stats()
	assert.Equal(t, 1, snap.Hits)
	assert.Equal(t, 0, snap.Misses)
}

func TestCacheMemoryTTLBoundary(t *testing.T) {
	c := newTestCache(t, WithMemoryTTL(50*time.Millisecond), WithDiskDisabled())
	req := singleRequest("123 Main St")
	c.Set(req, testValuation("$1"))

	_, ok := c.Get(req)
	assert.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	_, ok = c.Get(req)
	assert.False(t, ok)
}

func TestCacheDiskTTLIndependent(t *testing.T) {
	// Memory expires almost immediately; disk holds on. The entry must
	// come back from the disk tier after the memory tier lapses.
	c := newTestCache(t, WithMemoryTTL(10*time.Millisecond), WithDiskTTL(time.Hour))
	req := singleRequest("123 Main St")
	c.Set(req, testValuation("$1"))

	time.Sleep(20 * time.Millisecond)
	val, ok := c.Get(req)
	assert.True(t, ok)
	assert.Equal(t, "$1", val.FinalEstimate)
}

func TestCacheDiskDisabled(t *testing.T) {
	c := newTestCache(t, WithDiskDisabled())
	req := singleRequest("123 Main St")
	c.Set(req, testValuation("$1"))

	_, ok := c.Get(req)
	assert.True(t, ok)

	c.memory.clear()
	_, ok = c.Get(req)
	assert.False(t, ok)

	info := c.Info()
	assert.False(t, info.Disk.Enabled)
	assert.Zero(t, info.Disk.Size)
}

func TestCacheInvalidateAddress(t *testing.T) {
	c := newTestCache(t)
	c.Set(singleRequest("123 Main St, City"), testValuation("$1"))
	c.Set(singleRequest("456 Oak Ave, Town"), testValuation("$2"))

	// Both tiers hold both entries; invalidation must reach both tiers,
	// so two removals for the one matching address.
	removed := c.InvalidateAddress("123 main street")
	assert.Equal(t, 2, removed)

	_, ok := c.Get(singleRequest("123 Main St, City"))
	assert.False(t, ok)
	val, ok := c.Get(singleRequest("456 Oak Ave, Town"))
	assert.True(t, ok)
	assert.Equal(t, "$2", val.FinalEstimate)
}

func TestCacheClearExpired(t *testing.T) {
	c := newTestCache(t)
	c.Set(singleRequest("123 Main St"), testValuation("$1"))
	c.Set(singleRequest("456 Oak Ave"), testValuation("$2"))

	// Backdate one entry in each tier.
	staleKey := cachekey.ForRequest(singleRequest("123 Main St"))
	c.memory.mu.Lock()
	c.memory.entries[staleKey].insertedAt = time.Now().Add(-48 * time.Hour)
	c.memory.mu.Unlock()
	old := time.Now().Add(-8 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(c.disk.path(staleKey), old, old))

	memory, disk := c.ClearExpired()
	assert.Equal(t, 1, memory)
	assert.Equal(t, 1, disk)
}

func TestCacheClearAll(t *testing.T) {
	c := newTestCache(t)
	c.Set(singleRequest("123 Main St"), testValuation("$1"))
	c.Set(singleRequest("456 Oak Ave"), testValuation("$2"))
	c.Set(singleRequest("789 Elm Rd"), testValuation("$3"))

	memory, disk := c.ClearAll()
	assert.Equal(t, 3, memory)
	assert.Equal(t, 3, disk)
	assert.Equal(t, 0, c.memory.size())
	count, _ := c.disk.size()
	assert.Equal(t, 0, count)
}

func TestCacheStats(t *testing.T) {
	c := newTestCache(t)
	req := singleRequest("123 Main St")

	c.Get(req) // miss
	c.Set(req, testValuation("$1"))
	c.Get(req) // hit
	c.Get(req) // hit

	snap := c.Stats()
	assert.Equal(t, 2, snap.Hits)
	assert.Equal(t, 1, snap.Misses)
	assert.Equal(t, 1, snap.Saves)
	assert.Equal(t, 3, snap.TotalRequests)
	assert.InDelta(t, 2.0/3.0, snap.HitRate, 1e-9)
	assert.Equal(t, 1, snap.MemoryItems)
	assert.Equal(t, 1, snap.DiskItems)
}

func TestCacheInfo(t *testing.T) {
	c := newTestCache(t, WithMaxMemoryItems(5))
	c.Set(singleRequest("123 Main St"), testValuation("$1"))

	info := c.Info()
	assert.Equal(t, 1, info.Memory.Size)
	assert.Equal(t, 5, info.Memory.MaxSize)
	assert.Equal(t, DefaultMemoryTTL, info.Memory.TTL)
	assert.True(t, info.Disk.Enabled)
	assert.Equal(t, 1, info.Disk.Size)
	assert.Positive(t, info.Disk.SizeBytes)
}

func TestCacheEmptyAddressList(t *testing.T) {
	c := newTestCache(t)
	req := query.Request{Kind: query.KindSingle}
	c.Set(req, testValuation("$0"))
	val, ok := c.Get(req)
	assert.True(t, ok)
	assert.Equal(t, "$0", val.FinalEstimate)
}

func TestCacheBackgroundSweep(t *testing.T) {
	c := newTestCache(t,
		WithMemoryTTL(20*time.Millisecond),
		WithDiskDisabled(),
		WithSweepInterval(25*time.Millisecond),
	)
	c.Set(singleRequest("123 Main St"), testValuation("$1"))
	assert.Equal(t, 1, c.memory.size())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, c.memory.size())
	c.Close()
}
