package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/zyra-ai/zyra/internal/api/dto"
	"github.com/zyra-ai/zyra/internal/domain/models"
	"github.com/zyra-ai/zyra/internal/execution"
	"github.com/zyra-ai/zyra/internal/pkg/validator"
)

// ExecutionHandler serves the background execution tracker. Executors call
// the progress endpoints and UIs read or stream the state.
type ExecutionHandler struct {
	tracker *execution.Tracker
}

func NewExecutionHandler(tracker *execution.Tracker) *ExecutionHandler {
	return &ExecutionHandler{tracker: tracker}
}

func (h *ExecutionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if id := q.Get("id"); id != "" {
		exec, err := h.tracker.Get(id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		dto.OK(w, exec)
		return
	}

	status := q.Get("status")
	if status != "" {
		if err := validator.ValidateVar(status, "oneof=running completed failed cancelled"); err != nil {
			dto.BadRequest(w, "invalid status filter")
			return
		}
	}

	list := h.tracker.List(status)
	dto.JSONWithMeta(w, http.StatusOK, list, &dto.Meta{Total: len(list)})
}

// Start registers a new execution. The scheduler's HTTP trigger posts here.
func (h *ExecutionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req dto.StartExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		dto.InvalidBody(w)
		return
	}

	if err := validator.Validate(&req); err != nil {
		dto.ValidationErrorResponse(w, err)
		return
	}

	exec := h.tracker.Create(r.Context(), execution.CreateInput{
		WorkflowID:   req.WorkflowID,
		WorkflowName: req.WorkflowName,
		ProjectPath:  req.ProjectPath,
		TriggeredBy:  req.TriggeredBy,
		ScheduleID:   req.ScheduleID,
		TotalNodes:   req.TotalNodes,
	})

	dto.Created(w, exec)
}

// Delete cancels the execution named by ?id=, or prunes old executions
// when no id is given.
func (h *ExecutionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		dto.OK(w, dto.CleanupResponse{Removed: h.tracker.Cleanup()})
		return
	}

	exec, err := h.tracker.Cancel(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	dto.OK(w, exec)
}

func (h *ExecutionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		dto.InvalidBody(w)
		return
	}

	if err := validator.Validate(&req); err != nil {
		dto.ValidationErrorResponse(w, err)
		return
	}

	exec, err := h.tracker.Update(r.Context(), chi.URLParam(r, "executionID"), execution.UpdateInput{
		CurrentNode: req.CurrentNode,
		TotalNodes:  req.TotalNodes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	dto.OK(w, exec)
}

func (h *ExecutionHandler) AddLog(w http.ResponseWriter, r *http.Request) {
	var req dto.AddLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		dto.InvalidBody(w)
		return
	}

	if err := validator.Validate(&req); err != nil {
		dto.ValidationErrorResponse(w, err)
		return
	}

	exec, err := h.tracker.AddLog(r.Context(), chi.URLParam(r, "executionID"), req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	dto.OK(w, exec)
}

func (h *ExecutionHandler) CompleteNode(w http.ResponseWriter, r *http.Request) {
	var req dto.CompleteNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		dto.InvalidBody(w)
		return
	}

	if err := validator.Validate(&req); err != nil {
		dto.ValidationErrorResponse(w, err)
		return
	}

	exec, err := h.tracker.CompleteNode(r.Context(), chi.URLParam(r, "executionID"), models.NodeResult{
		NodeID: req.NodeID,
		Status: req.Status,
		Output: req.Output,
		Error:  req.Error,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	dto.OK(w, exec)
}

func (h *ExecutionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req dto.CompleteExecutionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			dto.InvalidBody(w)
			return
		}
	}

	exec, err := h.tracker.Complete(r.Context(), chi.URLParam(r, "executionID"), req.Result)
	if err != nil {
		writeError(w, r, err)
		return
	}
	dto.OK(w, exec)
}

func (h *ExecutionHandler) Fail(w http.ResponseWriter, r *http.Request) {
	var req dto.FailExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		dto.InvalidBody(w)
		return
	}

	if err := validator.Validate(&req); err != nil {
		dto.ValidationErrorResponse(w, err)
		return
	}

	exec, err := h.tracker.Fail(r.Context(), chi.URLParam(r, "executionID"), req.Error)
	if err != nil {
		writeError(w, r, err)
		return
	}
	dto.OK(w, exec)
}

func (h *ExecutionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	exec, err := h.tracker.Cancel(r.Context(), chi.URLParam(r, "executionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	dto.OK(w, exec)
}
