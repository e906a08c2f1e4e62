package leader

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLocker struct {
	mu    sync.Mutex
	owner map[string]string
}

func newMemLocker() *memLocker {
	return &memLocker{owner: make(map[string]string)}
}

func (m *memLocker) AcquireLock(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.owner[key]; taken {
		return false, nil
	}
	m.owner[key] = value
	return true, nil
}

func (m *memLocker) ExtendLock(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner[key] == value, nil
}

func (m *memLocker) ReleaseLock(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner[key] == value {
		delete(m.owner, key)
	}
	return nil
}

func (m *memLocker) expire(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.owner, key)
}

func TestElection_SingleLeader(t *testing.T) {
	ctx := context.Background()
	locker := newMemLocker()
	a := NewElection(locker, "leader", time.Second)
	b := NewElection(locker, "leader", time.Second)

	ok, err := a.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, b.IsLeader())

	assert.True(t, a.Extend(ctx))

	require.NoError(t, a.Release(ctx))
	assert.False(t, a.IsLeader())

	ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestElection_LosesLeadershipWhenLockExpires(t *testing.T) {
	ctx := context.Background()
	locker := newMemLocker()
	e := NewElection(locker, "leader", time.Second)

	_, err := e.TryAcquire(ctx)
	require.NoError(t, err)

	locker.expire("leader")

	assert.False(t, e.Extend(ctx))
	assert.False(t, e.IsLeader())
}

func TestWatcher_CallbacksOnTransitions(t *testing.T) {
	locker := newMemLocker()
	e := NewElection(locker, "leader", 30*time.Millisecond)

	var mu sync.Mutex
	var events []string
	record := func(ev string) func() {
		return func() {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWatcher(e, time.Hour).OnAcquire(record("acquire")).OnLose(record("lose"))
	go w.Watch(ctx)

	require.Eventually(t, e.IsLeader, time.Second, 5*time.Millisecond)

	locker.expire("leader")
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"acquire", "lose"}, events)
}
