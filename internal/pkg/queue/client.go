package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/zyra-ai/zyra/internal/pkg/config"
)

const TypeScheduleTrigger = "schedule:trigger"

// QueueDefault is the only queue trigger tasks use.
const QueueDefault = "default"

const (
	triggerMaxRetry  = 3
	triggerTimeout   = time.Minute
	triggerRetention = 24 * time.Hour
)

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

type Client struct {
	client *asynq.Client
}

func NewClient(cfg *config.RedisConfig) *Client {
	return &Client{client: asynq.NewClient(redisOpt(cfg))}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// ScheduleTriggerPayload is the body the scheduler posts to start a
// background execution.
type ScheduleTriggerPayload struct {
	ProjectPath  string `json:"projectPath"`
	WorkflowID   string `json:"workflowId"`
	WorkflowName string `json:"workflowName"`
	TriggeredBy  string `json:"triggeredBy"`
	ScheduleID   string `json:"scheduleId,omitempty"`
}

func NewScheduleTriggerTask(payload ScheduleTriggerPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return asynq.NewTask(TypeScheduleTrigger, data,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(triggerMaxRetry),
		asynq.Timeout(triggerTimeout),
		asynq.Retention(triggerRetention),
	), nil
}

func ParseScheduleTriggerTask(task *asynq.Task) (ScheduleTriggerPayload, error) {
	var payload ScheduleTriggerPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return payload, nil
}

func (c *Client) EnqueueScheduleTrigger(ctx context.Context, payload ScheduleTriggerPayload) (*asynq.TaskInfo, error) {
	task, err := NewScheduleTriggerTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// PendingKey is the Redis list asynq keeps the pending tasks of a queue in.
func PendingKey(queue string) string {
	return "asynq:{" + queue + "}:pending"
}
