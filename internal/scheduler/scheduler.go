package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zyra-ai/zyra/internal/domain/models"
	"github.com/zyra-ai/zyra/internal/pkg/logger"
	promstats "github.com/zyra-ai/zyra/internal/pkg/metrics"
	"github.com/zyra-ai/zyra/internal/scheduler/cron"
	"github.com/zyra-ai/zyra/internal/scheduler/dispatcher"
	"github.com/zyra-ai/zyra/internal/scheduler/leader"
	"github.com/zyra-ai/zyra/internal/scheduler/metrics"
	"github.com/zyra-ai/zyra/internal/scheduler/recovery"
	"github.com/zyra-ai/zyra/internal/scheduler/store"
)

// Scheduler keeps one timer per enabled workflow schedule and triggers a
// background execution whenever a timer fires.
type Scheduler struct {
	config *Config

	// Components
	store      store.ScheduleStore
	calculator *cron.Calculator
	dispatcher *dispatcher.Dispatcher
	election   *leader.Election
	resync     *recovery.Resync
	metrics    *metrics.Collector

	// Timers
	mu     sync.Mutex
	timers map[string]*armedTimer
	gen    uint64
	active bool

	// writeMu serializes read-modify-write cycles against the store
	writeMu sync.Mutex

	// Lifecycle
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	resyncCancel context.CancelFunc
}

type armedTimer struct {
	timer  *time.Timer
	gen    uint64
	at     time.Time
	firing bool
}

type Dependencies struct {
	Store      store.ScheduleStore
	Dispatcher *dispatcher.Dispatcher
	// Election is optional; without it this instance always fires.
	Election *leader.Election
}

func New(cfg *Config, deps *Dependencies) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		config:     cfg,
		store:      deps.Store,
		calculator: cron.NewCalculator(),
		dispatcher: deps.Dispatcher,
		election:   deps.Election,
		metrics:    metrics.NewCollector(),
		timers:     make(map[string]*armedTimer),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.resync = recovery.NewResync(s, cfg.ResyncInterval)

	return s
}

// Start arms every enabled schedule, either right away or once this
// instance wins leader election.
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().
		Bool("leader_election", s.election != nil).
		Bool("catch_up_missed", s.config.CatchUpMissed).
		Dur("resync_interval", s.config.ResyncInterval).
		Msg("Starting scheduler")

	if s.election == nil {
		s.metrics.SetLeader(true)
		return s.activate(ctx)
	}

	s.wg.Add(1)
	go s.watchLeadership()

	return nil
}

func (s *Scheduler) Stop() error {
	log.Info().Msg("Stopping scheduler...")

	s.cancel()
	s.deactivate()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("Scheduler stopped gracefully")
	case <-time.After(s.config.ShutdownTimeout):
		log.Warn().Msg("Scheduler shutdown timed out")
	}

	if s.election != nil {
		_ = s.election.Release(context.Background())
		s.metrics.SetLeader(false)
	}

	return nil
}

func (s *Scheduler) watchLeadership() {
	defer s.wg.Done()

	leader.NewWatcher(s.election, s.config.AcquireInterval).
		OnAcquire(func() {
			s.metrics.SetLeader(true)
			if err := s.activate(s.ctx); err != nil {
				log.Error().Err(err).Msg("Failed to arm schedules after acquiring leadership")
			}
		}).
		OnLose(func() {
			s.metrics.SetLeader(false)
			s.deactivate()
		}).
		Watch(s.ctx)
}

// activate loads all schedules, arms the enabled ones and starts resyncing.
func (s *Scheduler) activate(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	schedules, err := s.store.List(ctx)
	if err != nil {
		return err
	}

	now := s.config.Now()
	armed := 0

	s.mu.Lock()
	s.active = true
	for _, sc := range schedules {
		if !sc.Enabled {
			continue
		}
		if sc.NextRun == nil || !s.config.CatchUpMissed {
			sc = s.recompute(ctx, sc, now)
		}
		if s.armLocked(sc) {
			armed++
		}
	}
	s.metrics.SetArmedTimers(s.liveTimersLocked())

	resyncCtx, cancel := context.WithCancel(s.ctx)
	s.resyncCancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.resync.Run(resyncCtx)
	}()

	log.Info().Int("schedules", len(schedules)).Int("armed", armed).Msg("Schedules armed")
	return nil
}

// recompute refreshes a schedule's next run on startup and persists it.
func (s *Scheduler) recompute(ctx context.Context, sc *models.WorkflowSchedule, now time.Time) *models.WorkflowSchedule {
	next, err := s.calculator.NextRun(sc, now)
	if err != nil {
		log.Error().Err(err).Str("schedule_id", sc.ID).Msg("Failed to calculate next run")
		return sc
	}
	sc.NextRun = next
	sc.UpdatedAt = now
	if err := s.store.Save(ctx, sc); err != nil {
		log.Error().Err(err).Str("schedule_id", sc.ID).Msg("Failed to persist recomputed next run")
	}
	return sc
}

// deactivate stops every timer; used on shutdown and when leadership is lost.
func (s *Scheduler) deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = false
	if s.resyncCancel != nil {
		s.resyncCancel()
		s.resyncCancel = nil
	}
	for id := range s.timers {
		s.disarmLocked(id)
	}
	s.metrics.SetArmedTimers(0)
}

// armLocked replaces any timer for the schedule. It reports whether a timer
// is now live. Callers hold s.mu.
func (s *Scheduler) armLocked(sc *models.WorkflowSchedule) bool {
	s.disarmLocked(sc.ID)

	if !s.active || !sc.Enabled || sc.NextRun == nil {
		return false
	}

	delay := sc.NextRun.Sub(s.config.Now())
	if delay < 0 {
		delay = 0
	}

	s.gen++
	gen := s.gen
	id := sc.ID
	s.timers[id] = &armedTimer{
		gen: gen,
		at:  *sc.NextRun,
		timer: time.AfterFunc(delay, func() {
			s.fire(id, gen)
		}),
	}

	log.Debug().
		Str("schedule_id", id).
		Time("next_run", *sc.NextRun).
		Dur("delay", delay).
		Msg("Schedule armed")

	return true
}

func (s *Scheduler) disarmLocked(id string) {
	if t, ok := s.timers[id]; ok {
		if t.timer != nil {
			t.timer.Stop()
		}
		delete(s.timers, id)
	}
}

func (s *Scheduler) liveTimersLocked() int {
	return len(s.timers)
}

func (s *Scheduler) arm(sc *models.WorkflowSchedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armLocked(sc)
	s.metrics.SetArmedTimers(s.liveTimersLocked())
}

func (s *Scheduler) disarm(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked(id)
	s.metrics.SetArmedTimers(s.liveTimersLocked())
}

// current reports whether gen is still the live timer generation for id.
func (s *Scheduler) current(id string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[id]
	return ok && t.gen == gen && s.active
}

// fire runs when a schedule's timer expires: it records the run, recomputes
// the next run, triggers the workflow and re-arms the timer. A failed
// trigger is logged and the schedule still advances.
func (s *Scheduler) fire(id string, gen uint64) {
	s.mu.Lock()
	t, ok := s.timers[id]
	if !ok || t.gen != gen || !s.active {
		s.mu.Unlock()
		return
	}
	t.firing = true
	t.timer = nil
	s.mu.Unlock()

	fireLog := logger.WithScheduleID(id)

	s.writeMu.Lock()
	if !s.current(id, gen) {
		s.writeMu.Unlock()
		return
	}
	sc, err := s.store.Get(s.ctx, id)
	if err != nil {
		s.writeMu.Unlock()
		if !errors.Is(err, store.ErrNotFound) {
			fireLog.Error().Err(err).Msg("Failed to load schedule for firing")
		}
		s.disarm(id)
		return
	}
	if !sc.Enabled {
		s.writeMu.Unlock()
		s.disarm(id)
		return
	}

	now := s.config.Now()
	if sc.NextRun == nil || sc.NextRun.After(now) {
		// armed from a stale next run; follow the stored one instead
		s.writeMu.Unlock()
		s.mu.Lock()
		defer s.mu.Unlock()
		if t, ok := s.timers[id]; ok && t.gen == gen {
			s.armLocked(sc)
			s.metrics.SetArmedTimers(s.liveTimersLocked())
		}
		return
	}

	advanced := sc.Clone()
	advanced.LastRun = &now
	next, err := s.calculator.NextRun(advanced, now)
	if err != nil {
		fireLog.Error().Err(err).Msg("Failed to calculate next run")
		next = nil
	}
	enabled := sc.Schedule.Type != models.ScheduleTypeOnce

	updated, err := s.store.RecordRun(s.ctx, id, store.RunRecord{LastRun: now, NextRun: next, Enabled: enabled})
	if err != nil {
		fireLog.Error().Err(err).Msg("Failed to persist schedule run")
		advanced.NextRun = next
		advanced.Enabled = enabled
		advanced.RunCount++
		updated = advanced
	}
	s.writeMu.Unlock()

	s.metrics.IncFires()
	fireLog.Info().
		Str("workflow_id", sc.WorkflowID).
		Str("type", sc.Schedule.Type).
		Int("run_count", updated.RunCount).
		Msg("Schedule fired")

	result := s.dispatcher.Dispatch(s.ctx, updated)
	s.metrics.RecordTriggerDuration(result.Duration)
	if result.Success {
		s.metrics.IncTriggered()
		promstats.RecordScheduleFire(sc.Schedule.Type, "success")
	} else {
		s.metrics.IncFailed()
		promstats.RecordScheduleFire(sc.Schedule.Type, "failure")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; !ok || t.gen != gen {
		// replaced or disarmed while the trigger was in flight
		return
	}
	s.armLocked(updated)
	s.metrics.SetArmedTimers(s.liveTimersLocked())
}

// Resync reloads the store and reconciles the timers against it. The store
// is read under writeMu so the snapshot cannot go stale before it is applied.
func (s *Scheduler) Resync(ctx context.Context) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	schedules, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	return s.reconcile(schedules), nil
}

// reconcile arms timers for enabled schedules that have none, re-arms
// timers whose next run changed and drops timers of schedules that are
// gone or disabled.
func (s *Scheduler) reconcile(schedules []*models.WorkflowSchedule) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return 0
	}
	s.metrics.IncResyncs()

	changed := 0
	seen := make(map[string]bool, len(schedules))
	for _, sc := range schedules {
		seen[sc.ID] = true
		t, armed := s.timers[sc.ID]

		switch {
		case armed && t.firing:
			// fire() re-arms when it completes
		case !sc.Enabled || sc.NextRun == nil:
			if armed {
				s.disarmLocked(sc.ID)
				changed++
			}
		case !armed || !t.at.Equal(*sc.NextRun):
			s.armLocked(sc)
			changed++
		}
	}

	for id, t := range s.timers {
		if !seen[id] && !t.firing {
			s.disarmLocked(id)
			changed++
		}
	}

	s.metrics.SetArmedTimers(s.liveTimersLocked())
	return changed
}

// Armed returns the ids that currently hold a timer.
func (s *Scheduler) Armed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.timers))
	for id := range s.timers {
		ids = append(ids, id)
	}
	return ids
}

func (s *Scheduler) IsLeader() bool {
	if s.election == nil {
		return true
	}
	return s.election.IsLeader()
}

func (s *Scheduler) Metrics() *metrics.Collector {
	return s.metrics
}

func (s *Scheduler) Health() map[string]interface{} {
	snapshot := s.metrics.Snapshot()
	dispatcherStats := s.dispatcher.Stats()

	health := map[string]interface{}{
		"is_leader":       s.IsLeader(),
		"uptime_seconds":  int64(snapshot.Uptime.Seconds()),
		"armed_timers":    snapshot.ArmedTimers,
		"fires_total":     snapshot.FiresTotal,
		"last_fire_at":    snapshot.LastFireAt,
		"triggered_total": dispatcherStats.Dispatched,
		"failed_total":    dispatcherStats.Failed,
	}
	if s.election != nil {
		health["leader_identity"] = s.election.Identity()
	}
	return health
}
