package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pkgredis "github.com/zyra-ai/zyra/internal/pkg/redis"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	evicted []string
	readErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return c.readErr
	}
	data, ok := c.entries[key]
	if !ok {
		return pkgredis.Nil
	}
	return json.Unmarshal(data, dest)
}

func (c *memoryCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	return nil
}

func (c *memoryCache) Evict(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
		c.evicted = append(c.evicted, key)
	}
	return nil
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

func newCachedTestStore(t *testing.T) (*CachedStore, *FileStore, *memoryCache) {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "workflow-schedules.json"))
	require.NoError(t, err)
	cache := newMemoryCache()
	return NewCachedStore(fs, cache, time.Minute), fs, cache
}

func TestCachedStore_GetReadsThrough(t *testing.T) {
	cs, fs, cache := newCachedTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)

	require.NoError(t, fs.Save(ctx, newSchedule("a", base)))

	got, err := cs.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Workflow a", got.WorkflowName)
	assert.True(t, cache.has("zyra:schedule:a"))

	// a write that bypasses the cache is not seen until eviction
	changed := newSchedule("a", base)
	changed.WorkflowName = "Renamed"
	require.NoError(t, fs.Save(ctx, changed))

	got, err = cs.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Workflow a", got.WorkflowName)
}

func TestCachedStore_WritesEvict(t *testing.T) {
	cs, _, cache := newCachedTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)

	require.NoError(t, cs.Save(ctx, newSchedule("a", base)))
	_, err := cs.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, cache.has("zyra:schedule:a"))

	t.Run("save", func(t *testing.T) {
		changed := newSchedule("a", base)
		changed.WorkflowName = "Renamed"
		require.NoError(t, cs.Save(ctx, changed))
		assert.False(t, cache.has("zyra:schedule:a"))

		got, err := cs.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.WorkflowName)
	})

	t.Run("record run", func(t *testing.T) {
		require.True(t, cache.has("zyra:schedule:a"))

		ranAt := base.Add(time.Hour)
		next := ranAt.Add(30 * time.Minute)
		_, err := cs.RecordRun(ctx, "a", RunRecord{LastRun: ranAt, NextRun: &next, Enabled: true})
		require.NoError(t, err)
		assert.False(t, cache.has("zyra:schedule:a"))

		got, err := cs.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 1, got.RunCount)
		require.NotNil(t, got.NextRun)
		assert.True(t, next.Equal(*got.NextRun))
	})

	t.Run("delete", func(t *testing.T) {
		require.True(t, cache.has("zyra:schedule:a"))

		require.NoError(t, cs.Delete(ctx, "a"))
		assert.False(t, cache.has("zyra:schedule:a"))

		_, err := cs.Get(ctx, "a")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCachedStore_FailedWriteKeepsCache(t *testing.T) {
	cs, _, cache := newCachedTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, cs.Delete(ctx, "missing"), ErrNotFound)
	assert.Empty(t, cache.evicted)
}

func TestCachedStore_CacheErrorFallsBackToStore(t *testing.T) {
	cs, fs, cache := newCachedTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)

	require.NoError(t, fs.Save(ctx, newSchedule("a", base)))
	cache.readErr = errors.New("connection refused")

	got, err := cs.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
}
