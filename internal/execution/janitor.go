package execution

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Janitor periodically trims the tracker to its retention limit.
type Janitor struct {
	tracker  *Tracker
	interval time.Duration
}

func NewJanitor(tracker *Tracker, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Janitor{
		tracker:  tracker,
		interval: interval,
	}
}

func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *Janitor) cleanup() {
	if removed := j.tracker.Cleanup(); removed > 0 {
		log.Info().
			Int("removed", removed).
			Int("retained", j.tracker.Len()).
			Msg("Cleaned up old background executions")
	}
}

func (j *Janitor) CleanupOnce() {
	j.cleanup()
}
