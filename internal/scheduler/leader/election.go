package leader

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Locker is the distributed lock primitive the election runs on.
// *redis.Client from internal/pkg/redis satisfies it.
type Locker interface {
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ExtendLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}

// Election decides which scheduler replica arms timers. Only the holder of
// the lock fires schedules, so a schedule never fires twice across replicas.
type Election struct {
	locker   Locker
	key      string
	identity string
	ttl      time.Duration
	isLeader atomic.Bool
}

func NewElection(locker Locker, key string, ttl time.Duration) *Election {
	return &Election{
		locker:   locker,
		key:      key,
		identity: uuid.New().String(),
		ttl:      ttl,
	}
}

func (e *Election) TryAcquire(ctx context.Context) (bool, error) {
	acquired, err := e.locker.AcquireLock(ctx, e.key, e.identity, e.ttl)
	if err != nil {
		return false, err
	}

	if acquired {
		e.isLeader.Store(true)
		log.Info().
			Str("identity", e.identity).
			Str("key", e.key).
			Msg("Scheduler leadership acquired")
	}

	return acquired, nil
}

func (e *Election) Extend(ctx context.Context) bool {
	if !e.isLeader.Load() {
		return false
	}

	extended, err := e.locker.ExtendLock(ctx, e.key, e.identity, e.ttl)
	if err != nil {
		log.Error().Err(err).Msg("Failed to extend scheduler leadership")
		e.isLeader.Store(false)
		return false
	}

	if !extended {
		log.Warn().Msg("Lost scheduler leadership (lock expired)")
		e.isLeader.Store(false)
		return false
	}

	return true
}

func (e *Election) Release(ctx context.Context) error {
	if !e.isLeader.Swap(false) {
		return nil
	}

	if err := e.locker.ReleaseLock(ctx, e.key, e.identity); err != nil {
		log.Error().Err(err).Msg("Failed to release scheduler leadership")
		return err
	}

	log.Info().Str("identity", e.identity).Msg("Scheduler leadership released")
	return nil
}

func (e *Election) IsLeader() bool {
	return e.isLeader.Load()
}

func (e *Election) Identity() string {
	return e.identity
}

func (e *Election) TTL() time.Duration {
	return e.ttl
}
