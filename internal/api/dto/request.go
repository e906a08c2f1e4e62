package dto

import (
	"time"

	"github.com/zyra-ai/zyra/internal/domain/models"
	pkgvalidator "github.com/zyra-ai/zyra/internal/pkg/validator"
)

// Schedules
type IntervalRequest struct {
	Value int    `json:"value" validate:"required,min=1"`
	Unit  string `json:"unit" validate:"required,interval_unit"`
}

type ScheduleSpecRequest struct {
	Type     string           `json:"type" validate:"required,schedule_type"`
	Interval *IntervalRequest `json:"interval,omitempty" validate:"required_if=Type interval,omitempty"`
	Cron     string           `json:"cron,omitempty" validate:"required_if=Type cron,omitempty,cron"`
	Datetime *time.Time       `json:"datetime,omitempty" validate:"required_if=Type once"`
}

func (r *ScheduleSpecRequest) ToModel() models.ScheduleSpec {
	spec := models.ScheduleSpec{
		Type:     r.Type,
		Cron:     r.Cron,
		Datetime: r.Datetime,
	}
	if r.Interval != nil {
		spec.Interval = &models.IntervalSpec{Value: r.Interval.Value, Unit: r.Interval.Unit}
	}
	return spec
}

type CreateScheduleRequest struct {
	WorkflowID   string              `json:"workflowId" validate:"required,max=255"`
	WorkflowName string              `json:"workflowName" validate:"max=255"`
	ProjectPath  string              `json:"projectPath" validate:"required"`
	Schedule     ScheduleSpecRequest `json:"schedule" validate:"required"`
}

type UpdateScheduleRequest struct {
	WorkflowName *string              `json:"workflowName,omitempty" validate:"omitempty,max=255"`
	Schedule     *ScheduleSpecRequest `json:"schedule,omitempty"`
	Enabled      *bool                `json:"enabled,omitempty"`
}

type PreviewScheduleRequest struct {
	Schedule ScheduleSpecRequest `json:"schedule" validate:"required"`
	Count    int                 `json:"count,omitempty" validate:"omitempty,min=1,max=20"`
}

type SchedulePreviewResponse struct {
	NextRuns []time.Time `json:"nextRuns"`
}

// Background executions
type StartExecutionRequest struct {
	ProjectPath  string `json:"projectPath" validate:"required"`
	WorkflowID   string `json:"workflowId" validate:"required,max=255"`
	WorkflowName string `json:"workflowName" validate:"max=255"`
	TriggeredBy  string `json:"triggeredBy,omitempty" validate:"omitempty,oneof=manual scheduler api"`
	ScheduleID   string `json:"scheduleId,omitempty"`
	TotalNodes   int    `json:"totalNodes,omitempty" validate:"omitempty,min=0"`
}

type UpdateExecutionRequest struct {
	CurrentNode *string `json:"currentNode,omitempty"`
	TotalNodes  *int    `json:"totalNodes,omitempty" validate:"omitempty,min=0"`
}

type AddLogRequest struct {
	Message string `json:"message" validate:"required"`
}

type CompleteNodeRequest struct {
	NodeID string      `json:"nodeId" validate:"required"`
	Status string      `json:"status,omitempty" validate:"omitempty,oneof=completed failed skipped"`
	Output models.JSON `json:"output,omitempty"`
	Error  string      `json:"error,omitempty"`
}

type CompleteExecutionRequest struct {
	Result models.JSON `json:"result,omitempty"`
}

type FailExecutionRequest struct {
	Error string `json:"error" validate:"required"`
}

type CleanupResponse struct {
	Removed int `json:"removed"`
}

// Workflows
type ValidateWorkflowRequest struct {
	Nodes []pkgvalidator.WorkflowNode `json:"nodes"`
	Edges []pkgvalidator.WorkflowEdge `json:"edges"`
}
