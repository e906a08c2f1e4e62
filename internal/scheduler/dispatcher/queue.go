package dispatcher

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/zyra-ai/zyra/internal/pkg/config"
	"github.com/zyra-ai/zyra/internal/pkg/queue"
)

type Enqueuer interface {
	EnqueueScheduleTrigger(ctx context.Context, payload queue.ScheduleTriggerPayload) (*asynq.TaskInfo, error)
}

// QueueTrigger hands the trigger to the asynq worker, which delivers it
// with retries.
type QueueTrigger struct {
	queue        Enqueuer
	backpressure *BackpressureMonitor
}

func NewQueueTrigger(q Enqueuer) *QueueTrigger {
	return &QueueTrigger{queue: q}
}

// WithBackpressure refuses enqueues while the monitor reports a saturated queue.
func (t *QueueTrigger) WithBackpressure(m *BackpressureMonitor) *QueueTrigger {
	t.backpressure = m
	return t
}

func (t *QueueTrigger) Mode() string {
	return config.TriggerModeQueue
}

func (t *QueueTrigger) Trigger(ctx context.Context, payload queue.ScheduleTriggerPayload) error {
	if t.backpressure != nil && t.backpressure.ShouldPause() {
		return fmt.Errorf("%w: depth %d", ErrBackpressure, t.backpressure.QueueDepth())
	}
	if _, err := t.queue.EnqueueScheduleTrigger(ctx, payload); err != nil {
		return fmt.Errorf("failed to enqueue schedule trigger: %w", err)
	}
	return nil
}
