package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/zyra-ai/zyra/internal/api/dto"
	"github.com/zyra-ai/zyra/internal/execution"
	"github.com/zyra-ai/zyra/internal/execution/history"
	"github.com/zyra-ai/zyra/internal/scheduler"
)

// writeError maps domain errors onto the response envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scheduler.ErrScheduleNotFound):
		dto.NotFound(w, "Schedule")
	case errors.Is(err, execution.ErrExecutionNotFound):
		dto.NotFound(w, "Execution")
	case errors.Is(err, history.ErrEntryNotFound):
		dto.NotFound(w, "History entry")
	case errors.Is(err, scheduler.ErrInvalidSchedule), errors.Is(err, scheduler.ErrInvalidCron):
		dto.BadRequest(w, err.Error())
	case errors.Is(err, execution.ErrExecutionFinished):
		dto.Conflict(w, err.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		dto.InternalServerError(w, "An unexpected error occurred")
	}
}

// requireQueryID reads the mandatory ?id= parameter.
func requireQueryID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.URL.Query().Get("id")
	if id == "" {
		dto.BadRequest(w, "id query parameter is required")
		return "", false
	}
	return id, true
}
