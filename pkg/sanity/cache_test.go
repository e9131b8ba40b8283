package sanity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nc9/sanity-go/pkg/sanity"
)

func freshEntry(data string) *sanity.CacheEntry {
	return &sanity.CacheEntry{Data: []byte(data), ExpiresAt: time.Now().Add(time.Hour)}
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	t.Parallel()

	cache := sanity.NewMemoryCache(10)
	ctx := context.Background()

	entry := &sanity.CacheEntry{
		Data:      []byte("test data"),
		ExpiresAt: time.Now().Add(1 * time.Hour),
		ETag:      "abc123",
	}

	require.NoError(t, cache.Set(ctx, "key1", entry))

	retrieved, err := cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, entry.Data, retrieved.Data)
	assert.Equal(t, entry.ETag, retrieved.ETag)
	assert.True(t, cache.Has(ctx, "key1"))
}

func TestMemoryCache_GetNonExistent(t *testing.T) {
	t.Parallel()

	_, err := sanity.NewMemoryCache(10).Get(context.Background(), "nonexistent")
	require.ErrorIs(t, err, sanity.ErrCacheMiss)
}

func TestMemoryCache_GetExpired(t *testing.T) {
	t.Parallel()

	cache := sanity.NewMemoryCache(10)
	ctx := context.Background()

	err := cache.Set(ctx, "key1", &sanity.CacheEntry{
		Data:      []byte("test data"),
		ExpiresAt: time.Now().Add(-1 * time.Hour), // Already expired
	})
	require.NoError(t, err)
	assert.False(t, cache.Has(ctx, "key1"))

	_, err = cache.Get(ctx, "key1")
	require.ErrorIs(t, err, sanity.ErrCacheEntryExpired)
	assert.Equal(t, 0, cache.Len())
}

func TestMemoryCache_EvictsOldest(t *testing.T) {
	t.Parallel()

	cache := sanity.NewMemoryCache(2)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", freshEntry("1")))
	require.NoError(t, cache.Set(ctx, "b", freshEntry("2")))
	require.NoError(t, cache.Set(ctx, "a", freshEntry("1b")))
	require.NoError(t, cache.Set(ctx, "c", freshEntry("3")))

	assert.Equal(t, 2, cache.Len())
	assert.False(t, cache.Has(ctx, "b"))
	assert.True(t, cache.Has(ctx, "a"))
	assert.True(t, cache.Has(ctx, "c"))
}

func TestMemoryCache_DeleteClearCleanup(t *testing.T) {
	t.Parallel()

	cache := sanity.NewMemoryCache(10)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", freshEntry("1")))
	require.NoError(t, cache.Set(ctx, "b", &sanity.CacheEntry{Data: []byte("2"), ExpiresAt: time.Now().Add(-time.Second)}))
	require.NoError(t, cache.Set(ctx, "c", freshEntry("3")))

	cache.Cleanup()
	assert.Equal(t, 2, cache.Len())

	require.NoError(t, cache.Delete(ctx, "a"))
	assert.False(t, cache.Has(ctx, "a"))

	require.NoError(t, cache.Clear(ctx))
	assert.Equal(t, 0, cache.Len())
}

func TestCacheManager_Stats(t *testing.T) {
	t.Parallel()

	manager := sanity.NewCacheManager(sanity.NewMemoryCache(10), nil).WithTTL(time.Minute)
	ctx := context.Background()

	_, err := manager.Get(ctx, "q")
	require.Error(t, err)

	manager.Store(ctx, "q", []byte(`{"result":1}`))

	data, err := manager.Get(ctx, "q")
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":1}`, string(data))

	stats := manager.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.InDelta(t, 0.5, stats.GetHitRate(), 0.0001)

	require.NoError(t, manager.Invalidate(ctx))

	_, err = manager.Get(ctx, "q")
	require.Error(t, err)
}

func TestCacheManager_NilCacheDisables(t *testing.T) {
	t.Parallel()

	manager := sanity.NewCacheManager(nil, nil)
	ctx := context.Background()

	manager.Store(ctx, "q", []byte("x"))

	_, err := manager.Get(ctx, "q")
	require.ErrorIs(t, err, sanity.ErrCacheDisabled)
	assert.Zero(t, (&sanity.CacheStats{}).GetHitRate())
}

func TestCacheChain(t *testing.T) {
	t.Parallel()

	l1 := sanity.NewMemoryCache(10)
	l2 := sanity.NewMemoryCache(10)
	chain := sanity.NewCacheChain(l1, l2)
	ctx := context.Background()

	require.NoError(t, l2.Set(ctx, "k", freshEntry("v")))
	assert.False(t, l1.Has(ctx, "k"))

	entry, err := chain.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), entry.Data)
	assert.True(t, l1.Has(ctx, "k"), "hit in l2 back-fills l1")

	require.NoError(t, chain.Delete(ctx, "k"))
	assert.False(t, chain.Has(ctx, "k"))

	_, err = chain.Get(ctx, "k")
	require.ErrorIs(t, err, sanity.ErrKeyNotFoundInAnyCache)

	require.NoError(t, chain.Set(ctx, "x", freshEntry("1")))
	assert.True(t, l1.Has(ctx, "x"))
	assert.True(t, l2.Has(ctx, "x"))

	require.NoError(t, chain.Clear(ctx))
	assert.False(t, chain.Has(ctx, "x"))
}

func TestNewCacheFromConfig(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	cache, err := sanity.NewCacheFromConfig(ctx, nil)
	require.NoError(t, err)
	assert.IsType(t, &sanity.MemoryCache{}, cache)

	cache, err = sanity.NewCacheFromConfig(ctx, &sanity.CacheConfig{Type: sanity.CacheTypeNone})
	require.NoError(t, err)
	assert.IsType(t, &sanity.NoOpCache{}, cache)

	_, err = sanity.NewCacheFromConfig(ctx, &sanity.CacheConfig{Type: sanity.CacheTypeNATS})
	require.ErrorIs(t, err, sanity.ErrNATSConfigRequired)

	_, err = sanity.NewCacheFromConfig(ctx, &sanity.CacheConfig{Type: "redis"})
	require.ErrorIs(t, err, sanity.ErrUnsupportedCacheType)
}

func TestQueryCacheKey(t *testing.T) {
	t.Parallel()

	const url = "https://p.apicdn.sanity.io/v1/data/query/d?query=*"

	a := sanity.QueryCacheKey("GET", url, "anon", nil)
	b := sanity.QueryCacheKey("POST", url, "anon", nil)
	c := sanity.QueryCacheKey("POST", url, "anon", []byte(`{}`))
	d := sanity.QueryCacheKey("GET", url, "3f2a9c0d1e7b6a55", nil)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, b, c)
	assert.NotEqual(t, a, d, "credential scope must separate entries")
	assert.Equal(t, a, sanity.QueryCacheKey("GET", url, "anon", nil))
}
