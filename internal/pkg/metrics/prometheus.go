package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zyra_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zyra_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// Scheduler Metrics
	ScheduleFiresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zyra_schedule_fires_total",
			Help: "Total number of schedule fires",
		},
		[]string{"schedule_type", "result"},
	)

	ScheduleTriggerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zyra_schedule_trigger_duration_seconds",
			Help:    "Time spent delivering a schedule trigger",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"mode"},
	)

	SchedulesArmed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zyra_schedules_armed",
			Help: "Number of schedules with a live timer",
		},
	)

	SchedulerIsLeader = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zyra_scheduler_is_leader",
			Help: "1 when this instance holds scheduler leadership",
		},
	)

	// Background Execution Metrics
	ExecutionsStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zyra_executions_started_total",
			Help: "Total number of background executions started",
		},
		[]string{"triggered_by"},
	)

	ExecutionsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zyra_executions_finished_total",
			Help: "Total number of background executions that reached a terminal status",
		},
		[]string{"status"},
	)

	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zyra_execution_duration_seconds",
			Help:    "Background execution duration in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	ExecutionsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zyra_executions_in_progress",
			Help: "Number of background executions currently running",
		},
	)

	// History Metrics
	HistoryEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zyra_history_entries",
			Help: "Number of entries in the execution history",
		},
	)

	HistoryArchivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zyra_history_archived_total",
			Help: "Total number of evicted history entries handed to the archiver",
		},
		[]string{"result"},
	)

	// Validation Metrics
	WorkflowValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zyra_workflow_validations_total",
			Help: "Total number of workflow graph validations",
		},
		[]string{"valid"},
	)

	// Queue Metrics
	QueueTasksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zyra_queue_tasks_processed_total",
			Help: "Total number of tasks processed",
		},
		[]string{"task_type", "status"},
	)
)

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware records HTTP metrics, labelled by route pattern
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack is needed by the websocket upgrade on the stream endpoint.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// RecordScheduleFire records the outcome of one schedule fire
func RecordScheduleFire(scheduleType, result string) {
	ScheduleFiresTotal.WithLabelValues(scheduleType, result).Inc()
}

// RecordExecutionFinished records a background execution reaching a terminal status
func RecordExecutionFinished(status string, durationSeconds float64) {
	ExecutionsFinishedTotal.WithLabelValues(status).Inc()
	if durationSeconds > 0 {
		ExecutionDuration.WithLabelValues(status).Observe(durationSeconds)
	}
}

// RecordValidation records a workflow graph validation
func RecordValidation(valid bool) {
	WorkflowValidationsTotal.WithLabelValues(strconv.FormatBool(valid)).Inc()
}
