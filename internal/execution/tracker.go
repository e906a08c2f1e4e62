package execution

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zyra-ai/zyra/internal/domain/models"
	"github.com/zyra-ai/zyra/internal/pkg/logger"
	"github.com/zyra-ai/zyra/internal/pkg/metrics"
)

var (
	ErrExecutionNotFound = errors.New("execution not found")
	ErrExecutionFinished = errors.New("execution already finished")
)

const DefaultMaxRetained = 50

// Recorder receives every execution that reaches a terminal status.
type Recorder interface {
	Record(ctx context.Context, entry *models.ExecutionHistoryEntry) error
}

type CreateInput struct {
	WorkflowID   string
	WorkflowName string
	ProjectPath  string
	TriggeredBy  string
	ScheduleID   string
	TotalNodes   int
}

// UpdateInput carries a partial progress update; nil fields are left unchanged.
type UpdateInput struct {
	CurrentNode *string
	TotalNodes  *int
}

type Option func(*Tracker)

func WithRecorder(r Recorder) Option {
	return func(t *Tracker) { t.recorder = r }
}

func WithPublisher(p Publisher) Option {
	return func(t *Tracker) { t.publisher = p }
}

func WithMaxRetained(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.maxRetained = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

type subscriber struct {
	id int
	fn func(Event)
}

// Tracker holds the live state of background executions in memory.
// Executors report progress through it and UIs read or subscribe to it.
type Tracker struct {
	mu          sync.RWMutex
	executions  map[string]*models.BackgroundExecution
	subscribers map[string][]subscriber
	nextSubID   int

	recorder    Recorder
	publisher   Publisher
	maxRetained int
	now         func() time.Time
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		executions:  make(map[string]*models.BackgroundExecution),
		subscribers: make(map[string][]subscriber),
		maxRetained: DefaultMaxRetained,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) Create(ctx context.Context, in CreateInput) *models.BackgroundExecution {
	now := t.now()
	triggeredBy := in.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = models.TriggerManual
	}

	exec := &models.BackgroundExecution{
		ID:           uuid.New().String(),
		WorkflowID:   in.WorkflowID,
		WorkflowName: in.WorkflowName,
		ProjectPath:  in.ProjectPath,
		TriggeredBy:  triggeredBy,
		ScheduleID:   in.ScheduleID,
		Status:       models.ExecutionStatusRunning,
		TotalNodes:   max(in.TotalNodes, 0),
		Logs:         []models.LogLine{{Timestamp: now, Message: "Execution started"}},
		StartedAt:    now,
		UpdatedAt:    now,
	}

	t.mu.Lock()
	t.executions[exec.ID] = exec
	snapshot := exec.Clone()
	t.mu.Unlock()

	metrics.ExecutionsStartedTotal.WithLabelValues(triggeredBy).Inc()
	metrics.ExecutionsInProgress.Inc()

	log.Info().
		Str("execution_id", exec.ID).
		Str("workflow_id", exec.WorkflowID).
		Str("triggered_by", triggeredBy).
		Msg("Background execution started")

	t.emit(ctx, Event{Type: EventExecutionStarted, Execution: snapshot})
	return snapshot
}

func (t *Tracker) Get(id string) (*models.BackgroundExecution, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	exec, ok := t.executions[id]
	if !ok {
		return nil, ErrExecutionNotFound
	}
	return exec.Clone(), nil
}

// List returns executions most recently started first, optionally limited
// to one status.
func (t *Tracker) List(status string) []*models.BackgroundExecution {
	t.mu.RLock()
	list := make([]*models.BackgroundExecution, 0, len(t.executions))
	for _, exec := range t.executions {
		if status != "" && exec.Status != status {
			continue
		}
		list = append(list, exec.Clone())
	}
	t.mu.RUnlock()

	sortNewestFirst(list)
	return list
}

func (t *Tracker) Update(ctx context.Context, id string, in UpdateInput) (*models.BackgroundExecution, error) {
	return t.mutate(ctx, id, EventExecutionUpdated, func(exec *models.BackgroundExecution, now time.Time) (string, error) {
		if in.TotalNodes != nil {
			exec.TotalNodes = max(*in.TotalNodes, 0)
		}
		msg := ""
		if in.CurrentNode != nil && *in.CurrentNode != exec.CurrentNode {
			exec.CurrentNode = *in.CurrentNode
			msg = "Running node " + exec.CurrentNode
		}
		return msg, nil
	})
}

// AddLog appends a log line. Unlike other mutations it is accepted after
// the execution finished, so late executor output is not lost.
func (t *Tracker) AddLog(ctx context.Context, id, message string) (*models.BackgroundExecution, error) {
	t.mu.Lock()
	exec, ok := t.executions[id]
	if !ok {
		t.mu.Unlock()
		return nil, ErrExecutionNotFound
	}
	now := t.now()
	exec.Logs = append(exec.Logs, models.LogLine{Timestamp: now, Message: message})
	exec.UpdatedAt = now
	snapshot := exec.Clone()
	t.mu.Unlock()

	t.emit(ctx, Event{Type: EventExecutionLog, Message: message, Execution: snapshot})
	return snapshot, nil
}

// CompleteNode records a node result and advances progress.
func (t *Tracker) CompleteNode(ctx context.Context, id string, result models.NodeResult) (*models.BackgroundExecution, error) {
	return t.mutate(ctx, id, EventNodeCompleted, func(exec *models.BackgroundExecution, now time.Time) (string, error) {
		if result.Status == "" {
			result.Status = models.NodeStatusCompleted
		}
		if result.CompletedAt == nil {
			result.CompletedAt = &now
		}
		exec.NodeResults = append(exec.NodeResults, result)
		exec.CompletedNodes++
		exec.CurrentNode = ""

		if result.Status == models.NodeStatusFailed && result.Error != "" {
			return "Node " + result.NodeID + " failed: " + result.Error, nil
		}
		return "Node " + result.NodeID + " " + result.Status, nil
	})
}

func (t *Tracker) Complete(ctx context.Context, id string, result models.JSON) (*models.BackgroundExecution, error) {
	return t.finish(ctx, id, models.ExecutionStatusCompleted, EventExecutionCompleted, func(exec *models.BackgroundExecution) string {
		exec.Result = result
		if exec.TotalNodes > 0 {
			exec.CompletedNodes = max(exec.CompletedNodes, exec.TotalNodes)
		}
		return "Execution completed"
	})
}

func (t *Tracker) Fail(ctx context.Context, id, errMsg string) (*models.BackgroundExecution, error) {
	return t.finish(ctx, id, models.ExecutionStatusFailed, EventExecutionFailed, func(exec *models.BackgroundExecution) string {
		exec.Error = errMsg
		return "Execution failed: " + errMsg
	})
}

// Cancel marks the execution cancelled. Work the executor already started
// is not interrupted.
func (t *Tracker) Cancel(ctx context.Context, id string) (*models.BackgroundExecution, error) {
	return t.finish(ctx, id, models.ExecutionStatusCancelled, EventExecutionCancelled, func(exec *models.BackgroundExecution) string {
		return "Execution cancelled"
	})
}

func (t *Tracker) finish(
	ctx context.Context,
	id, status string,
	eventType EventType,
	apply func(exec *models.BackgroundExecution) string,
) (*models.BackgroundExecution, error) {
	exec, err := t.mutate(ctx, id, eventType, func(exec *models.BackgroundExecution, now time.Time) (string, error) {
		msg := apply(exec)
		exec.Status = status
		exec.CurrentNode = ""
		exec.CompletedAt = &now
		return msg, nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordExecutionFinished(status, exec.CompletedAt.Sub(exec.StartedAt).Seconds())
	metrics.ExecutionsInProgress.Dec()

	execLog := logger.WithExecutionID(exec.ID)
	execLog.Info().
		Str("workflow_id", exec.WorkflowID).
		Str("status", status).
		Msg("Background execution finished")

	if t.recorder != nil {
		if err := t.recorder.Record(ctx, models.EntryFromExecution(exec)); err != nil {
			execLog.Error().Err(err).Msg("Failed to record execution history")
		}
	}
	return exec, nil
}

// mutate applies fn to a running execution under the lock, then recomputes
// progress, appends the returned log message and notifies subscribers.
func (t *Tracker) mutate(
	ctx context.Context,
	id string,
	eventType EventType,
	fn func(exec *models.BackgroundExecution, now time.Time) (string, error),
) (*models.BackgroundExecution, error) {
	t.mu.Lock()
	exec, ok := t.executions[id]
	if !ok {
		t.mu.Unlock()
		return nil, ErrExecutionNotFound
	}
	if models.IsTerminalStatus(exec.Status) {
		t.mu.Unlock()
		return nil, ErrExecutionFinished
	}

	now := t.now()
	msg, err := fn(exec, now)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	exec.Progress = progress(exec.CompletedNodes, exec.TotalNodes)
	if msg != "" {
		exec.Logs = append(exec.Logs, models.LogLine{Timestamp: now, Message: msg})
	}
	exec.UpdatedAt = now
	snapshot := exec.Clone()
	t.mu.Unlock()

	event := Event{Type: eventType, Message: msg, Execution: snapshot}
	if eventType == EventNodeCompleted && len(snapshot.NodeResults) > 0 {
		event.NodeID = snapshot.NodeResults[len(snapshot.NodeResults)-1].NodeID
	}
	t.emit(ctx, event)

	return snapshot, nil
}

func progress(completed, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(completed) / float64(total) * 100))
	return min(p, 100)
}

// Subscribe registers fn for every event of one execution. The returned
// function removes the subscription.
func (t *Tracker) Subscribe(id string, fn func(Event)) func() {
	t.mu.Lock()
	t.nextSubID++
	subID := t.nextSubID
	t.subscribers[id] = append(t.subscribers[id], subscriber{id: subID, fn: fn})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()

			subs := t.subscribers[id]
			for i, s := range subs {
				if s.id == subID {
					subs = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(subs) == 0 {
				delete(t.subscribers, id)
			} else {
				t.subscribers[id] = subs
			}
		})
	}
}

func (t *Tracker) emit(ctx context.Context, event Event) {
	event.ExecutionID = event.Execution.ID
	event.WorkflowID = event.Execution.WorkflowID
	event.Timestamp = t.now()

	t.mu.RLock()
	subs := append([]subscriber(nil), t.subscribers[event.ExecutionID]...)
	t.mu.RUnlock()

	for _, s := range subs {
		s.fn(event)
	}

	if t.publisher != nil {
		if err := t.publisher.Publish(ctx, &event); err != nil {
			log.Warn().Err(err).Str("execution_id", event.ExecutionID).Msg("Failed to publish execution event")
		}
	}
}

// Cleanup drops all but the most recently started executions and reports
// how many were removed. Running executions count toward the limit like
// any other.
func (t *Tracker) Cleanup() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.executions) <= t.maxRetained {
		return 0
	}

	list := make([]*models.BackgroundExecution, 0, len(t.executions))
	for _, exec := range t.executions {
		list = append(list, exec)
	}
	sortNewestFirst(list)

	removed := 0
	for _, exec := range list[t.maxRetained:] {
		delete(t.executions, exec.ID)
		delete(t.subscribers, exec.ID)
		if !models.IsTerminalStatus(exec.Status) {
			metrics.ExecutionsInProgress.Dec()
		}
		removed++
	}
	return removed
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.executions)
}

func sortNewestFirst(list []*models.BackgroundExecution) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].StartedAt.Equal(list[j].StartedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].StartedAt.After(list[j].StartedAt)
	})
}
