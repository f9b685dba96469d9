package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func frozenCache(defaultTTL time.Duration) (*TTLCache, *time.Time) {
	c := NewTTLCache(defaultTTL, 1*time.Hour)
	clock := time.Date(2022, 1, 16, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }
	return c, &clock
}

func TestCacheSetGet(t *testing.T) {
	c, _ := frozenCache(60 * time.Second)
	defer c.Close()

	c.Set("k", 42, 0)
	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, 42, v)

	_, ok = c.Get("missing")
	require.False(t, ok)
}

func TestCacheEntryExpires(t *testing.T) {
	c, clock := frozenCache(60 * time.Second)
	defer c.Close()

	c.Set("k", "v", 60*time.Second)

	*clock = clock.Add(59 * time.Second)
	_, ok := c.Get("k")
	require.True(t, ok)

	*clock = clock.Add(2 * time.Second)
	_, ok = c.Get("k")
	require.False(t, ok)
	// Expired reads evict so dead entries do not linger.
	require.Equal(t, 0, c.Len())
}

func TestCacheExplicitTTLOverridesDefault(t *testing.T) {
	c, clock := frozenCache(60 * time.Second)
	defer c.Close()

	c.Set("short", "v", 5*time.Second)
	c.Set("long", "v", 0)

	*clock = clock.Add(10 * time.Second)
	_, ok := c.Get("short")
	require.False(t, ok)
	_, ok = c.Get("long")
	require.True(t, ok)
}

func TestCacheDeleteAndClear(t *testing.T) {
	c, _ := frozenCache(60 * time.Second)
	defer c.Close()

	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	require.Equal(t, 2, c.Len())

	c.Delete("a")
	_, ok := c.Get("a")
	require.False(t, ok)
	require.Equal(t, 1, c.Len())

	c.Clear()
	require.Equal(t, 0, c.Len())
}

func TestCacheSweeperRemovesExpiredEntries(t *testing.T) {
	c, clock := frozenCache(60 * time.Second)
	defer c.Close()

	c.Set("dead", 1, 1*time.Second)
	c.Set("alive", 2, 10*time.Minute)
	*clock = clock.Add(5 * time.Second)

	require.Equal(t, 1, c.removeExpired())
	require.Equal(t, 1, c.Len())
	_, ok := c.Get("alive")
	require.True(t, ok)
}

func TestCacheCloseIsIdempotent(t *testing.T) {
	c, _ := frozenCache(60 * time.Second)
	c.Close()
	c.Close()

	// Still usable after Close, just unswept.
	c.Set("k", 1, 0)
	_, ok := c.Get("k")
	require.True(t, ok)
}
