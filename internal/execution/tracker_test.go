package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zyra-ai/zyra/internal/domain/models"
)

type memRecorder struct {
	mu      sync.Mutex
	entries []*models.ExecutionHistoryEntry
	err     error
}

func (m *memRecorder) Record(_ context.Context, entry *models.ExecutionHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

type memPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (m *memPublisher) Publish(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

// steppingClock advances one second per call.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func newTestTracker(opts ...Option) *Tracker {
	base := []Option{WithClock(steppingClock(time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC)))}
	return NewTracker(append(base, opts...)...)
}

func TestTracker_CreateStartsRunning(t *testing.T) {
	tr := newTestTracker()
	exec := tr.Create(context.Background(), CreateInput{
		WorkflowID:   "wf-1",
		WorkflowName: "Deploy",
		ProjectPath:  "/projects/app",
	})

	assert.NotEmpty(t, exec.ID)
	assert.Equal(t, models.ExecutionStatusRunning, exec.Status)
	assert.Equal(t, models.TriggerManual, exec.TriggeredBy)
	assert.Equal(t, 0, exec.Progress)
	require.Len(t, exec.Logs, 1)
	assert.Equal(t, "Execution started", exec.Logs[0].Message)

	got, err := tr.Get(exec.ID)
	require.NoError(t, err)
	assert.Equal(t, exec.ID, got.ID)
}

func TestTracker_ProgressFromCompletedNodes(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()
	exec := tr.Create(ctx, CreateInput{WorkflowID: "wf-1", TotalNodes: 4})

	var err error
	for i := 1; i <= 3; i++ {
		exec, err = tr.CompleteNode(ctx, exec.ID, models.NodeResult{NodeID: fmt.Sprintf("node-%d", i)})
		require.NoError(t, err)
	}

	assert.Equal(t, 3, exec.CompletedNodes)
	assert.Equal(t, 75, exec.Progress)
	require.Len(t, exec.NodeResults, 3)
	assert.Equal(t, models.NodeStatusCompleted, exec.NodeResults[0].Status)
	assert.NotNil(t, exec.NodeResults[0].CompletedAt)
}

func TestTracker_ProgressIsCappedAndRounded(t *testing.T) {
	assert.Equal(t, 0, progress(3, 0))
	assert.Equal(t, 33, progress(1, 3))
	assert.Equal(t, 67, progress(2, 3))
	assert.Equal(t, 100, progress(5, 4))
}

func TestTracker_UpdateSetsCurrentNodeAndTotal(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()
	exec := tr.Create(ctx, CreateInput{WorkflowID: "wf-1"})

	node := "fetch"
	total := 2
	exec, err := tr.Update(ctx, exec.ID, UpdateInput{CurrentNode: &node, TotalNodes: &total})
	require.NoError(t, err)

	assert.Equal(t, "fetch", exec.CurrentNode)
	assert.Equal(t, 2, exec.TotalNodes)
	assert.Equal(t, "Running node fetch", exec.Logs[len(exec.Logs)-1].Message)
}

func TestTracker_TerminalTransitions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		finish func(tr *Tracker, id string) (*models.BackgroundExecution, error)
		status string
	}{
		{"complete", func(tr *Tracker, id string) (*models.BackgroundExecution, error) {
			return tr.Complete(ctx, id, models.JSON{"ok": true})
		}, models.ExecutionStatusCompleted},
		{"fail", func(tr *Tracker, id string) (*models.BackgroundExecution, error) {
			return tr.Fail(ctx, id, "boom")
		}, models.ExecutionStatusFailed},
		{"cancel", func(tr *Tracker, id string) (*models.BackgroundExecution, error) {
			return tr.Cancel(ctx, id)
		}, models.ExecutionStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &memRecorder{}
			tr := newTestTracker(WithRecorder(recorder))
			exec := tr.Create(ctx, CreateInput{WorkflowID: "wf-1", WorkflowName: "Deploy"})

			done, err := tt.finish(tr, exec.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, done.Status)
			require.NotNil(t, done.CompletedAt)

			_, err = tr.CompleteNode(ctx, exec.ID, models.NodeResult{NodeID: "late"})
			assert.ErrorIs(t, err, ErrExecutionFinished)
			_, err = tr.Cancel(ctx, exec.ID)
			assert.ErrorIs(t, err, ErrExecutionFinished)

			require.Len(t, recorder.entries, 1)
			entry := recorder.entries[0]
			assert.Equal(t, exec.ID, entry.ID)
			assert.Equal(t, tt.status, entry.Status)
			require.NotNil(t, entry.Duration)
			assert.Positive(t, *entry.Duration)
		})
	}
}

func TestTracker_FailedRecorderDoesNotFailTransition(t *testing.T) {
	tr := newTestTracker(WithRecorder(&memRecorder{err: errors.New("disk full")}))
	ctx := context.Background()
	exec := tr.Create(ctx, CreateInput{WorkflowID: "wf-1"})

	done, err := tr.Complete(ctx, exec.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, done.Status)
}

func TestTracker_LogsAcceptedAfterFinish(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()
	exec := tr.Create(ctx, CreateInput{WorkflowID: "wf-1"})
	_, err := tr.Complete(ctx, exec.ID, nil)
	require.NoError(t, err)

	exec, err = tr.AddLog(ctx, exec.ID, "flushing output")
	require.NoError(t, err)
	assert.Equal(t, "flushing output", exec.Logs[len(exec.Logs)-1].Message)
}

func TestTracker_UnknownExecution(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	_, err := tr.Get("missing")
	assert.ErrorIs(t, err, ErrExecutionNotFound)
	_, err = tr.AddLog(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrExecutionNotFound)
	_, err = tr.Fail(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrExecutionNotFound)
}

func TestTracker_SubscribeReceivesEventsUntilUnsubscribed(t *testing.T) {
	publisher := &memPublisher{}
	tr := newTestTracker(WithPublisher(publisher))
	ctx := context.Background()
	exec := tr.Create(ctx, CreateInput{WorkflowID: "wf-1", TotalNodes: 2})

	var received []Event
	unsubscribe := tr.Subscribe(exec.ID, func(e Event) { received = append(received, e) })

	_, err := tr.CompleteNode(ctx, exec.ID, models.NodeResult{NodeID: "a"})
	require.NoError(t, err)
	_, err = tr.Complete(ctx, exec.ID, nil)
	require.NoError(t, err)

	unsubscribe()
	unsubscribe()
	_, err = tr.AddLog(ctx, exec.ID, "after")
	require.NoError(t, err)

	require.Len(t, received, 2)
	assert.Equal(t, EventNodeCompleted, received[0].Type)
	assert.Equal(t, "a", received[0].NodeID)
	assert.Equal(t, 50, received[0].Execution.Progress)
	assert.Equal(t, EventExecutionCompleted, received[1].Type)
	assert.True(t, received[1].Terminal())

	// started, node, completed, log
	assert.Len(t, publisher.events, 4)
	assert.Equal(t, exec.ID, publisher.events[0].ExecutionID)
}

func TestTracker_ListNewestFirstWithStatusFilter(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	first := tr.Create(ctx, CreateInput{WorkflowID: "wf-1"})
	second := tr.Create(ctx, CreateInput{WorkflowID: "wf-2"})
	third := tr.Create(ctx, CreateInput{WorkflowID: "wf-3"})
	_, err := tr.Fail(ctx, second.ID, "boom")
	require.NoError(t, err)

	all := tr.List("")
	require.Len(t, all, 3)
	assert.Equal(t, []string{third.ID, second.ID, first.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	failed := tr.List(models.ExecutionStatusFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, second.ID, failed[0].ID)
}

func TestTracker_CleanupKeepsMostRecent(t *testing.T) {
	tr := newTestTracker()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 60; i++ {
		ids = append(ids, tr.Create(ctx, CreateInput{WorkflowID: fmt.Sprintf("wf-%d", i)}).ID)
	}

	NewJanitor(tr, time.Minute).CleanupOnce()

	assert.Equal(t, DefaultMaxRetained, tr.Len())
	for _, id := range ids[:10] {
		_, err := tr.Get(id)
		assert.ErrorIs(t, err, ErrExecutionNotFound)
	}
	for _, id := range ids[10:] {
		_, err := tr.Get(id)
		assert.NoError(t, err)
	}

	assert.Equal(t, 0, tr.Cleanup())
}

func TestTracker_CleanupDropsSubscribersOfRemovedExecutions(t *testing.T) {
	tr := newTestTracker(WithMaxRetained(1))
	ctx := context.Background()

	old := tr.Create(ctx, CreateInput{WorkflowID: "wf-old"})
	unsubscribe := tr.Subscribe(old.ID, func(Event) {})
	kept := tr.Create(ctx, CreateInput{WorkflowID: "wf-new"})
	tr.Subscribe(kept.ID, func(Event) {})

	assert.Equal(t, 1, tr.Cleanup())

	tr.mu.RLock()
	_, oldSubscribed := tr.subscribers[old.ID]
	_, keptSubscribed := tr.subscribers[kept.ID]
	tr.mu.RUnlock()
	assert.False(t, oldSubscribed)
	assert.True(t, keptSubscribed)

	assert.NotPanics(t, unsubscribe)
}
