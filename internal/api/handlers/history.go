package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/zyra-ai/zyra/internal/api/dto"
	"github.com/zyra-ai/zyra/internal/domain/models"
	"github.com/zyra-ai/zyra/internal/execution/history"
)

type HistoryHandler struct {
	history *history.Manager
}

func NewHistoryHandler(manager *history.Manager) *HistoryHandler {
	return &HistoryHandler{history: manager}
}

// List picks one query by precedence: id, workflowId, projectPath, limit.
// With none of them the whole history is returned.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	if id := q.Get("id"); id != "" {
		entry, err := h.history.Get(ctx, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		dto.OK(w, entry)
		return
	}

	var (
		entries []*models.ExecutionHistoryEntry
		limit   int
		err     error
	)

	switch {
	case q.Get("workflowId") != "":
		entries, err = h.history.ByWorkflow(ctx, q.Get("workflowId"))
	case q.Get("projectPath") != "":
		entries, err = h.history.ByProject(ctx, q.Get("projectPath"))
	case q.Get("limit") != "":
		limit, err = strconv.Atoi(q.Get("limit"))
		if err != nil || limit < 1 {
			dto.BadRequest(w, "limit must be a positive integer")
			return
		}
		entries, err = h.history.Recent(ctx, limit)
	default:
		entries, err = h.history.All(ctx)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	dto.JSONWithMeta(w, http.StatusOK, entries, &dto.Meta{Total: len(entries), Limit: limit})
}

// Create records an entry reported by a client that ran the workflow itself.
func (h *HistoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var entry models.ExecutionHistoryEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		dto.InvalidBody(w)
		return
	}

	if entry.ID == "" || entry.WorkflowID == "" || entry.Status == "" {
		dto.BadRequest(w, "id, workflowId and status are required")
		return
	}
	if entry.Duration == nil && entry.CompletedAt != nil && !entry.StartedAt.IsZero() {
		ms := entry.CompletedAt.Sub(entry.StartedAt).Milliseconds()
		entry.Duration = &ms
	}

	if err := h.history.Add(r.Context(), &entry); err != nil {
		writeError(w, r, err)
		return
	}

	dto.Created(w, &entry)
}

// Delete removes one entry when ?id= is given and clears the history otherwise.
func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("id"); id != "" {
		if err := h.history.Delete(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		dto.NoContent(w)
		return
	}

	if err := h.history.Clear(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	dto.NoContent(w)
}

func (h *HistoryHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.history.Statistics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	dto.OK(w, stats)
}
