package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zyra-ai/zyra/internal/api/dto"
	"github.com/zyra-ai/zyra/internal/scheduler"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db        Pinger
	redis     *redis.Client
	scheduler *scheduler.Scheduler
	streams   func() int
}

func NewHealthHandler(db Pinger, redis *redis.Client, s *scheduler.Scheduler) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, scheduler: s}
}

// WithStreams reports the number of open execution streams in Health.
func (h *HealthHandler) WithStreams(count func() int) *HealthHandler {
	h.streams = count
	return h
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := h.checks(r.Context())
	healthy := true
	for _, status := range checks {
		if status != "ok" && status != "not configured" {
			healthy = false
		}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !healthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	body := map[string]interface{}{
		"status":  status,
		"service": "zyra-api",
		"checks":  checks,
	}
	if h.scheduler != nil {
		body["scheduler"] = h.scheduler.Health()
	}
	if h.streams != nil {
		body["stream_connections"] = h.streams()
	}

	dto.JSON(w, statusCode, body)
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	dto.JSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	for name, status := range h.checks(r.Context()) {
		if status != "ok" && status != "not configured" {
			dto.ServiceUnavailable(w, name+" not ready: "+status)
			return
		}
	}

	dto.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *HealthHandler) checks(ctx context.Context) map[string]string {
	checks := make(map[string]string)

	if h.db != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			checks["database"] = "error: " + err.Error()
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not configured"
	}

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "error: " + err.Error()
		} else {
			checks["redis"] = "ok"
		}
	} else {
		checks["redis"] = "not configured"
	}

	return checks
}
