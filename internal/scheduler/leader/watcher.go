package leader

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Watcher campaigns for leadership and keeps it alive, invoking the
// callbacks on every transition.
type Watcher struct {
	election        *Election
	acquireInterval time.Duration
	onAcquire       func()
	onLose          func()
}

func NewWatcher(election *Election, acquireInterval time.Duration) *Watcher {
	if acquireInterval <= 0 {
		acquireInterval = 5 * time.Second
	}
	return &Watcher{
		election:        election,
		acquireInterval: acquireInterval,
	}
}

func (w *Watcher) OnAcquire(fn func()) *Watcher {
	w.onAcquire = fn
	return w
}

func (w *Watcher) OnLose(fn func()) *Watcher {
	w.onLose = fn
	return w
}

// Watch blocks until ctx is done. It tries to take the lock right away and
// then every acquire interval, and extends a held lock at a third of its TTL.
func (w *Watcher) Watch(ctx context.Context) {
	extendPeriod := w.election.TTL() / 3
	if extendPeriod <= 0 {
		extendPeriod = time.Second
	}
	extendTicker := time.NewTicker(extendPeriod)
	defer extendTicker.Stop()

	acquireTicker := time.NewTicker(w.acquireInterval)
	defer acquireTicker.Stop()

	w.tryAcquire(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case <-acquireTicker.C:
			w.tryAcquire(ctx)

		case <-extendTicker.C:
			if w.election.IsLeader() && !w.election.Extend(ctx) && w.onLose != nil {
				w.onLose()
			}
		}
	}
}

func (w *Watcher) tryAcquire(ctx context.Context) {
	if w.election.IsLeader() {
		return
	}

	acquired, err := w.election.TryAcquire(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to acquire scheduler leadership")
		return
	}
	if acquired && w.onAcquire != nil {
		w.onAcquire()
	}
}
