package metrics

import (
	"encoding/json"
	"net/http"
)

// Exporter serves the collector over plain JSON, outside the Prometheus
// registry, for operators poking at a single replica.
type Exporter struct {
	collector *Collector
}

func NewExporter(collector *Collector) *Exporter {
	return &Exporter{collector: collector}
}

func (e *Exporter) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, e.collector.Snapshot())
	}
}

// Status is "standby" on replicas without leadership and "degraded" when
// every fire so far failed to trigger. It always answers 200.
func Status(s *Snapshot) string {
	switch {
	case !s.IsLeader:
		return "standby"
	case s.FiresTotal > 0 && s.FailedTotal >= s.FiresTotal:
		return "degraded"
	default:
		return "healthy"
	}
}

func (e *Exporter) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := e.collector.Snapshot()
		writeJSON(w, map[string]interface{}{
			"status":       Status(snapshot),
			"is_leader":    snapshot.IsLeader,
			"armed_timers": snapshot.ArmedTimers,
			"fires_total":  snapshot.FiresTotal,
			"failed_total": snapshot.FailedTotal,
			"last_fire_at": snapshot.LastFireAt,
			"uptime_s":     int64(snapshot.Uptime.Seconds()),
		})
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
