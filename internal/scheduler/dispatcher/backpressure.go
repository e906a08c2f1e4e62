package dispatcher

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("trigger queue is saturated")

// DepthReader reports the length of a list; *redis.Client satisfies it
// through LLen wrapped by QueueDepth.
type DepthReader interface {
	QueueDepth(ctx context.Context, key string) (int64, error)
}

// BackpressureMonitor watches the pending list of the trigger queue and
// pauses queue triggers while it is deeper than maxDepth. Dispatch resumes
// once the depth drops below half of maxDepth.
type BackpressureMonitor struct {
	reader        DepthReader
	queueKey      string
	maxDepth      int64
	checkInterval time.Duration
	currentDepth  atomic.Int64
	isPaused      atomic.Bool
}

func NewBackpressureMonitor(reader DepthReader, queueKey string, maxDepth int64) *BackpressureMonitor {
	return &BackpressureMonitor{
		reader:        reader,
		queueKey:      queueKey,
		maxDepth:      maxDepth,
		checkInterval: 5 * time.Second,
	}
}

func (m *BackpressureMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	m.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *BackpressureMonitor) check(ctx context.Context) {
	depth, err := m.reader.QueueDepth(ctx, m.queueKey)
	if err != nil {
		log.Warn().Err(err).Str("queue", m.queueKey).Msg("Failed to check trigger queue depth")
		return
	}

	m.currentDepth.Store(depth)

	switch {
	case depth >= m.maxDepth:
		if !m.isPaused.Swap(true) {
			log.Warn().
				Int64("depth", depth).
				Int64("max", m.maxDepth).
				Msg("Backpressure: pausing schedule triggers")
		}
	case depth < m.maxDepth/2:
		if m.isPaused.Swap(false) {
			log.Info().Int64("depth", depth).Msg("Backpressure: resuming schedule triggers")
		}
	}
}

func (m *BackpressureMonitor) ShouldPause() bool {
	return m.isPaused.Load()
}

func (m *BackpressureMonitor) QueueDepth() int64 {
	return m.currentDepth.Load()
}
