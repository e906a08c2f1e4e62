package execution

import (
	"context"
	"time"

	"github.com/zyra-ai/zyra/internal/domain/models"
)

type EventType string

const (
	EventExecutionSnapshot  EventType = "execution.snapshot"
	EventExecutionStarted   EventType = "execution.started"
	EventExecutionUpdated   EventType = "execution.updated"
	EventExecutionLog       EventType = "execution.log"
	EventNodeCompleted      EventType = "node.completed"
	EventExecutionCompleted EventType = "execution.completed"
	EventExecutionFailed    EventType = "execution.failed"
	EventExecutionCancelled EventType = "execution.cancelled"
)

// Event is a change to a background execution. Execution is a snapshot
// taken after the change was applied.
type Event struct {
	Type        EventType                   `json:"type"`
	ExecutionID string                      `json:"executionId"`
	WorkflowID  string                      `json:"workflowId"`
	NodeID      string                      `json:"nodeId,omitempty"`
	Message     string                      `json:"message,omitempty"`
	Execution   *models.BackgroundExecution `json:"execution"`
	Timestamp   time.Time                   `json:"timestamp"`
}

// Terminal reports whether the event ends the execution's stream.
func (e Event) Terminal() bool {
	switch e.Type {
	case EventExecutionCompleted, EventExecutionFailed, EventExecutionCancelled:
		return true
	}
	return false
}

// Publisher fans execution events out beyond this process.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// SnapshotEvent describes the current state of an execution, sent to a
// stream client when it connects.
func SnapshotEvent(exec *models.BackgroundExecution) Event {
	return Event{
		Type:        EventExecutionSnapshot,
		ExecutionID: exec.ID,
		WorkflowID:  exec.WorkflowID,
		Execution:   exec,
		Timestamp:   time.Now(),
	}
}

// ChannelFor is the pub/sub channel that carries one execution's events.
func ChannelFor(executionID string) string {
	return "executions:" + executionID
}

// EventBus is the Redis side of RedisPublisher.
type EventBus interface {
	PublishEvent(ctx context.Context, channel string, message interface{}) error
}

type RedisPublisher struct {
	bus EventBus
}

func NewRedisPublisher(bus EventBus) *RedisPublisher {
	return &RedisPublisher{bus: bus}
}

func (p *RedisPublisher) Publish(ctx context.Context, event *Event) error {
	return p.bus.PublishEvent(ctx, ChannelFor(event.ExecutionID), event)
}
