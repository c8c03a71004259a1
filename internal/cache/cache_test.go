package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestCache_GetPut(t *testing.T) {
	c := New[string](10, time.Hour)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Put("a", "table-a")
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "table-a", got)
}

func TestCache_TTLExpiration(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[int](10, time.Minute)
	c.now = clock.Now

	c.Put("k", 1)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clock.Advance(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)

	c.mu.RLock()
	_, exists := c.entries["k"]
	c.mu.RUnlock()
	assert.False(t, exists, "expired entry is removed")
}

func TestCache_LRUEviction_AccessOrder(t *testing.T) {
	c := New[int](3, time.Hour)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	// Touch "a" so "b" becomes the oldest.
	c.Get("a")
	c.Put("d", 4)

	_, okA := c.Get("a")
	_, okB := c.Get("b")
	_, okD := c.Get("d")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okD)
}

func TestCache_Disabled(t *testing.T) {
	c := New[int](0, time.Hour)
	c.Put("a", 1)
	_, ok := c.Get("a")
	assert.False(t, ok)

	var calls int
	for range 2 {
		v, hit, err := c.GetOrLoad("a", func() (int, error) { calls++; return 7, nil })
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, 7, v)
	}
	assert.Equal(t, 2, calls)
}

func TestCache_GetOrLoad(t *testing.T) {
	c := New[string](10, time.Hour)

	v, hit, err := c.GetOrLoad("k", func() (string, error) { return "loaded", nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "loaded", v)

	v, hit, err = c.GetOrLoad("k", func() (string, error) {
		t.Fatal("load must not run on a hit")
		return "", nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "loaded", v)
}

func TestCache_GetOrLoadErrorNotCached(t *testing.T) {
	c := New[string](10, time.Hour)
	boom := errors.New("boom")

	_, _, err := c.GetOrLoad("k", func() (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)

	v, hit, err := c.GetOrLoad("k", func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "ok", v)
}

func TestCache_GetOrLoadCollapsesConcurrentLoads(t *testing.T) {
	c := New[int](10, time.Hour)

	var calls atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := c.GetOrLoad("shared", func() (int, error) {
				calls.Add(1)
				<-release
				return 42, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	// Let every goroutine reach the cache before the load completes.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(len(results)))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
	_, ok := c.Get("shared")
	assert.True(t, ok)
}

func TestCache_StatsAndPurge(t *testing.T) {
	c := New[int](100, time.Hour)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a")
	c.Get("b")
	c.Get("c")

	stats := c.Stats()
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 100, stats.MaxEntries)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.6667, stats.HitRate, 0.01)

	c.Purge()
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestKey(t *testing.T) {
	a := Key("table", []byte("data"), "dayfirst=true")
	assert.Equal(t, a, Key("table", []byte("data"), "dayfirst=true"))
	assert.NotEqual(t, a, Key("table", []byte("data"), "dayfirst=false"))
	assert.NotEqual(t, a, Key("shapes", []byte("data"), "dayfirst=true"))
	assert.NotEqual(t, a, Key("table", []byte("other"), "dayfirst=true"))
	assert.Contains(t, a, "table:")
}
