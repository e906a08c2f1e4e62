package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/zyra-ai/zyra/internal/api/dto"
	"github.com/zyra-ai/zyra/internal/pkg/validator"
)

type WorkflowHandler struct{}

func NewWorkflowHandler() *WorkflowHandler {
	return &WorkflowHandler{}
}

// Validate checks an editor graph. Findings are reported in the body; the
// request itself only fails when it cannot be decoded.
func (h *WorkflowHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req dto.ValidateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		dto.InvalidBody(w)
		return
	}

	dto.OK(w, validator.ValidateWorkflow(req.Nodes, req.Edges))
}
