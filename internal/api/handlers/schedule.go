package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/zyra-ai/zyra/internal/api/dto"
	"github.com/zyra-ai/zyra/internal/domain/models"
	"github.com/zyra-ai/zyra/internal/pkg/validator"
	"github.com/zyra-ai/zyra/internal/scheduler"
)

type ScheduleHandler struct {
	scheduler *scheduler.Scheduler
}

func NewScheduleHandler(s *scheduler.Scheduler) *ScheduleHandler {
	return &ScheduleHandler{scheduler: s}
}

// List returns one schedule when ?id= is given and the filtered list otherwise.
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if id := q.Get("id"); id != "" {
		schedule, err := h.scheduler.GetSchedule(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		dto.OK(w, schedule)
		return
	}

	schedules, err := h.scheduler.ListSchedules(r.Context(), scheduler.Filter{
		WorkflowID:  q.Get("workflowId"),
		ProjectPath: q.Get("projectPath"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if schedules == nil {
		schedules = []*models.WorkflowSchedule{}
	}

	dto.JSONWithMeta(w, http.StatusOK, schedules, &dto.Meta{Total: len(schedules)})
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		dto.InvalidBody(w)
		return
	}

	if err := validator.Validate(&req); err != nil {
		dto.ValidationErrorResponse(w, err)
		return
	}

	schedule, err := h.scheduler.CreateSchedule(r.Context(), scheduler.CreateInput{
		WorkflowID:   req.WorkflowID,
		WorkflowName: req.WorkflowName,
		ProjectPath:  req.ProjectPath,
		Schedule:     req.Schedule.ToModel(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	dto.Created(w, schedule)
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := requireQueryID(w, r)
	if !ok {
		return
	}

	var req dto.UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		dto.InvalidBody(w)
		return
	}

	if err := validator.Validate(&req); err != nil {
		dto.ValidationErrorResponse(w, err)
		return
	}

	input := scheduler.UpdateInput{
		WorkflowName: req.WorkflowName,
		Enabled:      req.Enabled,
	}
	if req.Schedule != nil {
		spec := req.Schedule.ToModel()
		input.Schedule = &spec
	}

	schedule, err := h.scheduler.UpdateSchedule(r.Context(), id, input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	dto.OK(w, schedule)
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := requireQueryID(w, r)
	if !ok {
		return
	}

	if err := h.scheduler.DeleteSchedule(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	dto.NoContent(w)
}

// Preview lists the next run times a schedule spec would produce.
func (h *ScheduleHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req dto.PreviewScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		dto.InvalidBody(w)
		return
	}

	if err := validator.Validate(&req); err != nil {
		dto.ValidationErrorResponse(w, err)
		return
	}

	runs, err := h.scheduler.Preview(req.Schedule.ToModel(), req.Count)
	if err != nil {
		writeError(w, r, err)
		return
	}

	dto.OK(w, dto.SchedulePreviewResponse{NextRuns: runs})
}
