package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zyra-ai/zyra/internal/domain/models"
	"github.com/zyra-ai/zyra/internal/pkg/queue"
	"github.com/zyra-ai/zyra/internal/scheduler/dispatcher"
	"github.com/zyra-ai/zyra/internal/scheduler/store"
)

type recordingTrigger struct {
	mu       sync.Mutex
	payloads []queue.ScheduleTriggerPayload
	err      error
}

func (r *recordingTrigger) Trigger(_ context.Context, p queue.ScheduleTriggerPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
	return r.err
}

func (r *recordingTrigger) Mode() string { return "test" }

func (r *recordingTrigger) calls() []queue.ScheduleTriggerPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]queue.ScheduleTriggerPayload(nil), r.payloads...)
}

func newTestScheduler(t *testing.T, cfg *Config) (*Scheduler, *store.FileStore, *recordingTrigger) {
	t.Helper()

	fs, err := store.NewFileStore(filepath.Join(t.TempDir(), "workflow-schedules.json"))
	require.NoError(t, err)

	trigger := &recordingTrigger{}
	s := New(cfg, &Dependencies{
		Store:      fs,
		Dispatcher: dispatcher.NewDispatcher(trigger, 0, 1, time.Second),
	})
	t.Cleanup(func() { _ = s.Stop() })

	return s, fs, trigger
}

func intervalSpec(value int, unit string) models.ScheduleSpec {
	return models.ScheduleSpec{
		Type:     models.ScheduleTypeInterval,
		Interval: &models.IntervalSpec{Value: value, Unit: unit},
	}
}

func timerGen(s *Scheduler, id string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[id]
	if !ok {
		return 0, false
	}
	return t.gen, true
}

func TestScheduler_OnceScheduleFiresAndDisables(t *testing.T) {
	s, _, trigger := newTestScheduler(t, nil)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	at := time.Now().Add(50 * time.Millisecond)
	sc, err := s.CreateSchedule(ctx, CreateInput{
		WorkflowID:   "wf-1",
		WorkflowName: "Report",
		ProjectPath:  "/projects/reports",
		Schedule:     models.ScheduleSpec{Type: models.ScheduleTypeOnce, Datetime: &at},
	})
	require.NoError(t, err)
	require.NotNil(t, sc.NextRun)
	assert.True(t, sc.Enabled)

	require.Eventually(t, func() bool { return len(trigger.calls()) == 1 }, 2*time.Second, 10*time.Millisecond)

	call := trigger.calls()[0]
	assert.Equal(t, "wf-1", call.WorkflowID)
	assert.Equal(t, "/projects/reports", call.ProjectPath)
	assert.Equal(t, models.TriggerScheduler, call.TriggeredBy)
	assert.Equal(t, sc.ID, call.ScheduleID)

	require.Eventually(t, func() bool { return len(s.Armed()) == 0 }, time.Second, 10*time.Millisecond)

	stored, err := s.GetSchedule(ctx, sc.ID)
	require.NoError(t, err)
	assert.False(t, stored.Enabled)
	assert.Nil(t, stored.NextRun)
	assert.Equal(t, 1, stored.RunCount)
	require.NotNil(t, stored.LastRun)
}

func TestScheduler_PastOnceScheduleNeverFires(t *testing.T) {
	s, _, trigger := newTestScheduler(t, nil)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	past := time.Now().Add(-time.Hour)
	sc, err := s.CreateSchedule(ctx, CreateInput{
		WorkflowID:  "wf-1",
		ProjectPath: "/projects/reports",
		Schedule:    models.ScheduleSpec{Type: models.ScheduleTypeOnce, Datetime: &past},
	})
	require.NoError(t, err)
	assert.Nil(t, sc.NextRun)
	assert.Empty(t, s.Armed())

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, trigger.calls())
}

func TestScheduler_FailedTriggerStillAdvancesInterval(t *testing.T) {
	s, _, trigger := newTestScheduler(t, nil)
	trigger.err = errors.New("connection refused")
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	sc, err := s.CreateSchedule(ctx, CreateInput{
		WorkflowID:  "wf-2",
		ProjectPath: "/projects/etl",
		Schedule:    intervalSpec(1, models.IntervalHours),
	})
	require.NoError(t, err)

	gen, ok := timerGen(s, sc.ID)
	require.True(t, ok)

	s.fire(sc.ID, gen)

	stored, err := s.GetSchedule(ctx, sc.ID)
	require.NoError(t, err)
	assert.True(t, stored.Enabled)
	assert.Equal(t, 1, stored.RunCount)
	require.NotNil(t, stored.LastRun)
	require.NotNil(t, stored.NextRun)
	assert.True(t, stored.LastRun.Add(time.Hour).Equal(*stored.NextRun))

	assert.Len(t, trigger.calls(), 1)
	assert.Equal(t, int64(1), s.Metrics().Snapshot().FailedTotal)
	assert.Contains(t, s.Armed(), sc.ID)

	newGen, ok := timerGen(s, sc.ID)
	require.True(t, ok)
	assert.NotEqual(t, gen, newGen)
}

func TestScheduler_StaleGenerationIsIgnored(t *testing.T) {
	s, _, trigger := newTestScheduler(t, nil)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	sc, err := s.CreateSchedule(ctx, CreateInput{
		WorkflowID:  "wf-2",
		ProjectPath: "/projects/etl",
		Schedule:    intervalSpec(1, models.IntervalHours),
	})
	require.NoError(t, err)

	gen, _ := timerGen(s, sc.ID)
	s.fire(sc.ID, gen+100)

	assert.Empty(t, trigger.calls())
	stored, err := s.GetSchedule(ctx, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.RunCount)
}

func TestScheduler_StartFiresMissedRunImmediately(t *testing.T) {
	s, fs, trigger := newTestScheduler(t, nil)
	ctx := context.Background()

	past := time.Now().Add(-10 * time.Minute)
	require.NoError(t, fs.Save(ctx, &models.WorkflowSchedule{
		ID:          "missed",
		WorkflowID:  "wf-3",
		ProjectPath: "/projects/backup",
		Schedule:    intervalSpec(30, models.IntervalMinutes),
		Enabled:     true,
		NextRun:     &past,
		CreatedAt:   past,
		UpdatedAt:   past,
	}))

	require.NoError(t, s.Start(ctx))

	require.Eventually(t, func() bool { return len(trigger.calls()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "missed", trigger.calls()[0].ScheduleID)
}

func TestScheduler_StartWithoutCatchUpRecomputes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CatchUpMissed = false
	s, fs, trigger := newTestScheduler(t, cfg)
	ctx := context.Background()

	past := time.Now().Add(-10 * time.Minute)
	require.NoError(t, fs.Save(ctx, &models.WorkflowSchedule{
		ID:          "missed",
		WorkflowID:  "wf-3",
		ProjectPath: "/projects/backup",
		Schedule:    intervalSpec(30, models.IntervalMinutes),
		Enabled:     true,
		NextRun:     &past,
		CreatedAt:   past,
		UpdatedAt:   past,
	}))

	require.NoError(t, s.Start(ctx))

	stored, err := s.GetSchedule(ctx, "missed")
	require.NoError(t, err)
	require.NotNil(t, stored.NextRun)
	assert.True(t, stored.NextRun.After(time.Now().Add(25*time.Minute)))
	assert.Equal(t, []string{"missed"}, s.Armed())

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, trigger.calls())
}

func TestScheduler_DisableAndDeleteDisarm(t *testing.T) {
	s, _, _ := newTestScheduler(t, nil)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	sc, err := s.CreateSchedule(ctx, CreateInput{
		WorkflowID:  "wf-4",
		ProjectPath: "/projects/sync",
		Schedule:    models.ScheduleSpec{Type: models.ScheduleTypeCron, Cron: "30 9 * * *"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{sc.ID}, s.Armed())

	disabled := false
	updated, err := s.UpdateSchedule(ctx, sc.ID, UpdateInput{Enabled: &disabled})
	require.NoError(t, err)
	assert.False(t, updated.Enabled)
	assert.Empty(t, s.Armed())

	enabled := true
	updated, err = s.UpdateSchedule(ctx, sc.ID, UpdateInput{Enabled: &enabled})
	require.NoError(t, err)
	require.NotNil(t, updated.NextRun)
	assert.Equal(t, 9, updated.NextRun.Hour())
	assert.Equal(t, 30, updated.NextRun.Minute())
	assert.Equal(t, []string{sc.ID}, s.Armed())

	require.NoError(t, s.DeleteSchedule(ctx, sc.ID))
	assert.Empty(t, s.Armed())

	assert.ErrorIs(t, s.DeleteSchedule(ctx, sc.ID), ErrScheduleNotFound)
	_, err = s.GetSchedule(ctx, sc.ID)
	assert.ErrorIs(t, err, ErrScheduleNotFound)
}

func TestScheduler_RejectsInvalidSpecs(t *testing.T) {
	s, _, _ := newTestScheduler(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		spec models.ScheduleSpec
		want error
	}{
		{"bad cron", models.ScheduleSpec{Type: models.ScheduleTypeCron, Cron: "* * *"}, ErrInvalidCron},
		{"out of range cron", models.ScheduleSpec{Type: models.ScheduleTypeCron, Cron: "61 9 * * *"}, ErrInvalidCron},
		{"zero interval", intervalSpec(0, models.IntervalMinutes), ErrInvalidSchedule},
		{"unknown unit", intervalSpec(5, "weeks"), ErrInvalidSchedule},
		{"once without datetime", models.ScheduleSpec{Type: models.ScheduleTypeOnce}, ErrInvalidSchedule},
		{"unknown type", models.ScheduleSpec{Type: "hourly"}, ErrInvalidSchedule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateSchedule(ctx, CreateInput{
				WorkflowID:  "wf",
				ProjectPath: "/p",
				Schedule:    tt.spec,
			})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	list, err := s.ListSchedules(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestScheduler_ResyncFollowsStore(t *testing.T) {
	s, fs, _ := newTestScheduler(t, nil)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	next := time.Now().Add(time.Hour)
	external := &models.WorkflowSchedule{
		ID:          "external",
		WorkflowID:  "wf-5",
		ProjectPath: "/projects/ext",
		Schedule:    intervalSpec(1, models.IntervalHours),
		Enabled:     true,
		NextRun:     &next,
	}
	require.NoError(t, fs.Save(ctx, external))

	changed, err := s.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, []string{"external"}, s.Armed())

	// unchanged store: nothing to do
	changed, err = s.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, changed)

	require.NoError(t, fs.Delete(ctx, "external"))
	changed, err = s.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Empty(t, s.Armed())
}

func TestScheduler_StaleSnapshotDoesNotFireTwice(t *testing.T) {
	s, fs, trigger := newTestScheduler(t, nil)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	missed := time.Now().Add(-10 * time.Minute)
	require.NoError(t, fs.Save(ctx, &models.WorkflowSchedule{
		ID:          "missed",
		WorkflowID:  "wf-6",
		ProjectPath: "/projects/missed",
		Schedule:    intervalSpec(1, models.IntervalHours),
		Enabled:     true,
		NextRun:     &missed,
	}))

	snapshot, err := fs.List(ctx)
	require.NoError(t, err)

	s.reconcile(snapshot)
	require.Eventually(t, func() bool { return len(trigger.calls()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		stored, err := fs.Get(ctx, "missed")
		return err == nil && stored.NextRun != nil && stored.NextRun.After(time.Now())
	}, time.Second, 10*time.Millisecond)

	// the snapshot still carries the missed next run
	s.reconcile(snapshot)
	time.Sleep(200 * time.Millisecond)

	assert.Len(t, trigger.calls(), 1)
	stored, err := fs.Get(ctx, "missed")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.RunCount)
	require.NotNil(t, stored.NextRun)
	assert.True(t, stored.NextRun.After(time.Now()))
	assert.Equal(t, []string{"missed"}, s.Armed())
}

func TestScheduler_ResyncKeepsConcurrentlyCreatedSchedule(t *testing.T) {
	s, _, _ := newTestScheduler(t, nil)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	var wg sync.WaitGroup
	ids := make(chan string, 20)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sc, err := s.CreateSchedule(ctx, CreateInput{
				WorkflowID:  "wf-7",
				ProjectPath: "/projects/busy",
				Schedule:    intervalSpec(1, models.IntervalHours),
			})
			if assert.NoError(t, err) {
				ids <- sc.ID
			}
		}()
		go func() {
			defer wg.Done()
			_, err := s.Resync(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	close(ids)

	armed := make(map[string]bool)
	for _, id := range s.Armed() {
		armed[id] = true
	}
	count := 0
	for id := range ids {
		count++
		assert.True(t, armed[id], "schedule %s lost its timer", id)
	}
	assert.Equal(t, 20, count)
}

func TestScheduler_ListFiltersByWorkflowAndProject(t *testing.T) {
	s, _, _ := newTestScheduler(t, nil)
	ctx := context.Background()

	for _, in := range []CreateInput{
		{WorkflowID: "wf-a", ProjectPath: "/one", Schedule: intervalSpec(5, models.IntervalMinutes)},
		{WorkflowID: "wf-a", ProjectPath: "/two", Schedule: intervalSpec(5, models.IntervalMinutes)},
		{WorkflowID: "wf-b", ProjectPath: "/one", Schedule: intervalSpec(5, models.IntervalMinutes)},
	} {
		_, err := s.CreateSchedule(ctx, in)
		require.NoError(t, err)
	}

	byWorkflow, err := s.ListSchedules(ctx, Filter{WorkflowID: "wf-a"})
	require.NoError(t, err)
	assert.Len(t, byWorkflow, 2)

	byBoth, err := s.ListSchedules(ctx, Filter{WorkflowID: "wf-a", ProjectPath: "/two"})
	require.NoError(t, err)
	require.Len(t, byBoth, 1)
	assert.Equal(t, "/two", byBoth[0].ProjectPath)
}

func TestScheduler_Preview(t *testing.T) {
	now := time.Date(2025, time.June, 1, 8, 15, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return now }
	s, _, _ := newTestScheduler(t, cfg)

	runs, err := s.Preview(models.ScheduleSpec{Type: models.ScheduleTypeCron, Cron: "30 9 * * 1"}, 3)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		time.Date(2025, time.June, 1, 9, 30, 0, 0, time.UTC),
		time.Date(2025, time.June, 2, 9, 30, 0, 0, time.UTC),
		time.Date(2025, time.June, 3, 9, 30, 0, 0, time.UTC),
	}, runs)

	runs, err = s.Preview(intervalSpec(2, models.IntervalHours), 2)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{now.Add(2 * time.Hour), now.Add(4 * time.Hour)}, runs)
}
