package metrics

import (
	"sync/atomic"
	"time"

	promstats "github.com/zyra-ai/zyra/internal/pkg/metrics"
)

// Collector keeps the scheduler's own counters for health reporting and
// mirrors the gauges into Prometheus.
type Collector struct {
	// Counters
	firesTotal     atomic.Int64
	triggeredTotal atomic.Int64
	failedTotal    atomic.Int64
	resyncsTotal   atomic.Int64

	// Gauges
	armedTimers atomic.Int64

	// Timing
	lastTriggerDuration atomic.Int64 // milliseconds
	lastFireAt          atomic.Int64 // unix millis

	// State
	isLeader  atomic.Bool
	startedAt time.Time
}

func NewCollector() *Collector {
	return &Collector{
		startedAt: time.Now(),
	}
}

func (c *Collector) IncFires() {
	c.firesTotal.Add(1)
	c.lastFireAt.Store(time.Now().UnixMilli())
}

func (c *Collector) IncTriggered() {
	c.triggeredTotal.Add(1)
}

func (c *Collector) IncFailed() {
	c.failedTotal.Add(1)
}

func (c *Collector) IncResyncs() {
	c.resyncsTotal.Add(1)
}

func (c *Collector) SetArmedTimers(n int) {
	c.armedTimers.Store(int64(n))
	promstats.SchedulesArmed.Set(float64(n))
}

func (c *Collector) SetLeader(isLeader bool) {
	c.isLeader.Store(isLeader)
	if isLeader {
		promstats.SchedulerIsLeader.Set(1)
	} else {
		promstats.SchedulerIsLeader.Set(0)
	}
}

func (c *Collector) RecordTriggerDuration(d time.Duration) {
	c.lastTriggerDuration.Store(d.Milliseconds())
}

type Snapshot struct {
	FiresTotal          int64         `json:"fires_total"`
	TriggeredTotal      int64         `json:"triggered_total"`
	FailedTotal         int64         `json:"failed_total"`
	ResyncsTotal        int64         `json:"resyncs_total"`
	ArmedTimers         int64         `json:"armed_timers"`
	LastTriggerDuration int64         `json:"last_trigger_duration_ms"`
	LastFireAt          *time.Time    `json:"last_fire_at,omitempty"`
	IsLeader            bool          `json:"is_leader"`
	Uptime              time.Duration `json:"uptime"`
}

func (c *Collector) Snapshot() *Snapshot {
	s := &Snapshot{
		FiresTotal:          c.firesTotal.Load(),
		TriggeredTotal:      c.triggeredTotal.Load(),
		FailedTotal:         c.failedTotal.Load(),
		ResyncsTotal:        c.resyncsTotal.Load(),
		ArmedTimers:         c.armedTimers.Load(),
		LastTriggerDuration: c.lastTriggerDuration.Load(),
		IsLeader:            c.isLeader.Load(),
		Uptime:              time.Since(c.startedAt),
	}
	if ms := c.lastFireAt.Load(); ms > 0 {
		t := time.UnixMilli(ms)
		s.LastFireAt = &t
	}
	return s
}
