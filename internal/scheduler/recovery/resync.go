package recovery

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Resyncer reloads the stored schedules and brings live timers in line with
// them, reporting how many timers it changed. The reload and the timer
// changes happen as one step so that no store write lands in between.
type Resyncer interface {
	Resync(ctx context.Context) (int, error)
}

// Resync periodically reloads the schedule store so that edits made by
// another replica, or by hand in the schedules file, reach the timers.
type Resync struct {
	target   Resyncer
	interval time.Duration
}

func NewResync(target Resyncer, interval time.Duration) *Resync {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Resync{
		target:   target,
		interval: interval,
	}
}

func (r *Resync) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.resync(ctx)
		}
	}
}

func (r *Resync) resync(ctx context.Context) {
	changed, err := r.target.Resync(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load schedules for resync")
		return
	}
	if changed > 0 {
		log.Info().Int("changed", changed).Msg("Resynced schedule timers")
	}
}

func (r *Resync) ResyncOnce(ctx context.Context) {
	r.resync(ctx)
}
