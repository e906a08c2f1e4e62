package dispatcher

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zyra-ai/zyra/internal/domain/models"
	"github.com/zyra-ai/zyra/internal/pkg/metrics"
	"github.com/zyra-ai/zyra/internal/pkg/queue"
	"golang.org/x/time/rate"
)

// Trigger starts a background execution for a schedule that just fired.
type Trigger interface {
	Trigger(ctx context.Context, payload queue.ScheduleTriggerPayload) error
	Mode() string
}

// PayloadFor builds the execution request a schedule fire sends.
func PayloadFor(schedule *models.WorkflowSchedule) queue.ScheduleTriggerPayload {
	return queue.ScheduleTriggerPayload{
		ProjectPath:  schedule.ProjectPath,
		WorkflowID:   schedule.WorkflowID,
		WorkflowName: schedule.WorkflowName,
		TriggeredBy:  models.TriggerScheduler,
		ScheduleID:   schedule.ID,
	}
}

// Dispatcher rate-limits and times trigger deliveries.
type Dispatcher struct {
	trigger Trigger
	limiter *rate.Limiter
	timeout time.Duration

	// Metrics
	dispatched atomic.Int64
	failed     atomic.Int64
}

// NewDispatcher allows ratePerSecond deliveries with the given burst. A
// non-positive rate disables limiting.
func NewDispatcher(trigger Trigger, ratePerSecond float64, burst int, timeout time.Duration) *Dispatcher {
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Dispatcher{
		trigger: trigger,
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
	}
}

type DispatchResult struct {
	ScheduleID string
	Success    bool
	Duration   time.Duration
	Error      error
}

func (d *Dispatcher) Dispatch(ctx context.Context, schedule *models.WorkflowSchedule) *DispatchResult {
	result := &DispatchResult{ScheduleID: schedule.ID}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := d.limiter.Wait(ctx); err != nil {
		result.Error = fmt.Errorf("rate limit wait: %w", err)
		d.failed.Add(1)
		return result
	}

	start := time.Now()
	err := d.trigger.Trigger(ctx, PayloadFor(schedule))
	result.Duration = time.Since(start)
	metrics.ScheduleTriggerDuration.WithLabelValues(d.trigger.Mode()).Observe(result.Duration.Seconds())

	if err != nil {
		result.Error = err
		d.failed.Add(1)
		log.Error().
			Err(err).
			Str("schedule_id", schedule.ID).
			Str("workflow_id", schedule.WorkflowID).
			Str("mode", d.trigger.Mode()).
			Msg("Failed to trigger scheduled workflow")
		return result
	}

	result.Success = true
	d.dispatched.Add(1)

	log.Debug().
		Str("schedule_id", schedule.ID).
		Str("workflow_id", schedule.WorkflowID).
		Dur("duration", result.Duration).
		Msg("Scheduled workflow triggered")

	return result
}

type Stats struct {
	Dispatched int64
	Failed     int64
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Dispatched: d.dispatched.Load(),
		Failed:     d.failed.Load(),
	}
}
