package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zyra-ai/zyra/internal/domain/models"
	pkgredis "github.com/zyra-ai/zyra/internal/pkg/redis"
)

// Cache is the part of the Redis client the cached store uses.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Evict(ctx context.Context, keys ...string) error
}

// CachedStore puts a Redis read-through cache in front of single-schedule
// lookups. Listing always hits the underlying store.
type CachedStore struct {
	store ScheduleStore
	redis Cache
	ttl   time.Duration
}

func NewCachedStore(store ScheduleStore, redis Cache, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{
		store: store,
		redis: redis,
		ttl:   ttl,
	}
}

func (s *CachedStore) List(ctx context.Context) ([]*models.WorkflowSchedule, error) {
	return s.store.List(ctx)
}

func (s *CachedStore) Get(ctx context.Context, id string) (*models.WorkflowSchedule, error) {
	key := s.cacheKey(id)

	var cached models.WorkflowSchedule
	err := s.redis.GetJSON(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, pkgredis.Nil) {
		log.Debug().Err(err).Str("schedule_id", id).Msg("Schedule cache read failed")
	}

	schedule, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.redis.SetJSON(ctx, key, schedule, s.ttl); err != nil {
		log.Debug().Err(err).Str("schedule_id", id).Msg("Failed to cache schedule")
	}

	return schedule, nil
}

func (s *CachedStore) Save(ctx context.Context, schedule *models.WorkflowSchedule) error {
	err := s.store.Save(ctx, schedule)
	if err == nil {
		s.invalidate(ctx, schedule.ID)
	}
	return err
}

func (s *CachedStore) Delete(ctx context.Context, id string) error {
	err := s.store.Delete(ctx, id)
	if err == nil {
		s.invalidate(ctx, id)
	}
	return err
}

func (s *CachedStore) RecordRun(ctx context.Context, id string, run RunRecord) (*models.WorkflowSchedule, error) {
	schedule, err := s.store.RecordRun(ctx, id, run)
	if err == nil {
		s.invalidate(ctx, id)
	}
	return schedule, err
}

func (s *CachedStore) Close() error {
	return s.store.Close()
}

func (s *CachedStore) cacheKey(id string) string {
	return fmt.Sprintf("zyra:schedule:%s", id)
}

func (s *CachedStore) invalidate(ctx context.Context, id string) {
	if err := s.redis.Evict(ctx, s.cacheKey(id)); err != nil {
		log.Debug().Err(err).Str("schedule_id", id).Msg("Failed to evict cached schedule")
	}
}
