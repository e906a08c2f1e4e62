package recovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeResyncer struct {
	mu      sync.Mutex
	calls   int
	changed int
	err     error
}

func (f *fakeResyncer) Resync(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.changed, f.err
}

func (f *fakeResyncer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestResyncOnce_CallsTarget(t *testing.T) {
	target := &fakeResyncer{changed: 2}

	NewResync(target, time.Minute).ResyncOnce(context.Background())

	assert.Equal(t, 1, target.count())
}

func TestResyncOnce_StoreErrorIsSwallowed(t *testing.T) {
	target := &fakeResyncer{err: errors.New("disk gone")}

	assert.NotPanics(t, func() {
		NewResync(target, time.Minute).ResyncOnce(context.Background())
	})
	assert.Equal(t, 1, target.count())
}

func TestNewResync_DefaultsInterval(t *testing.T) {
	assert.Equal(t, time.Minute, NewResync(&fakeResyncer{}, 0).interval)
}

func TestResync_RunStopsWithContext(t *testing.T) {
	target := &fakeResyncer{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		NewResync(target, 10*time.Millisecond).Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return target.count() > 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("resync loop did not stop")
	}
}
