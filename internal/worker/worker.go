package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"github.com/zyra-ai/zyra/internal/pkg/config"
	"github.com/zyra-ai/zyra/internal/pkg/logger"
	"github.com/zyra-ai/zyra/internal/pkg/queue"
	"github.com/zyra-ai/zyra/internal/scheduler/dispatcher"
)

// Worker delivers queued schedule triggers to the API. A failed delivery
// returns an error so asynq retries it.
type Worker struct {
	server  *queue.Server
	trigger dispatcher.Trigger
}

func New(cfg *config.Config, trigger dispatcher.Trigger) *Worker {
	server := queue.NewServer(&cfg.Redis, cfg.Worker.Concurrency)

	w := &Worker{
		server:  server,
		trigger: trigger,
	}

	server.Use(recoverTask, logTask)
	server.HandleFunc(queue.TypeScheduleTrigger, w.HandleScheduleTrigger)

	return w
}

func (w *Worker) Start() error {
	log.Info().Msg("Starting worker...")
	return w.server.Start()
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) HandleScheduleTrigger(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.ParseScheduleTriggerTask(task)
	if err != nil {
		// a malformed payload will never succeed
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	taskLog := logger.WithWorkflowID(payload.WorkflowID)
	taskLog.Info().
		Str("schedule_id", payload.ScheduleID).
		Msg("Delivering schedule trigger")

	return w.trigger.Trigger(ctx, payload)
}

func recoverTask(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("task_type", task.Type()).
					Interface("panic", r).
					Str("stack", string(debug.Stack())).
					Msg("Task handler panicked")
				err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		return next.ProcessTask(ctx, task)
	})
}

func logTask(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
		start := time.Now()
		err := next.ProcessTask(ctx, task)

		event := log.Debug()
		if err != nil {
			event = log.Warn().Err(err)
		}
		event.
			Str("task_type", task.Type()).
			Dur("duration", time.Since(start)).
			Msg("Task processed")
		return err
	})
}
