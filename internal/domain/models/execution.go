package models

import (
	"time"
)

type LogLine struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

type NodeResult struct {
	NodeID      string     `json:"nodeId"`
	Status      string     `json:"status"`
	Output      JSON       `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// BackgroundExecution is the live, in-memory view of a running workflow.
type BackgroundExecution struct {
	ID             string       `json:"id"`
	WorkflowID     string       `json:"workflowId"`
	WorkflowName   string       `json:"workflowName"`
	ProjectPath    string       `json:"projectPath"`
	TriggeredBy    string       `json:"triggeredBy"`
	ScheduleID     string       `json:"scheduleId,omitempty"`
	Status         string       `json:"status"`
	Progress       int          `json:"progress"`
	CompletedNodes int          `json:"completedNodes"`
	TotalNodes     int          `json:"totalNodes"`
	CurrentNode    string       `json:"currentNode,omitempty"`
	Logs           []LogLine    `json:"logs"`
	NodeResults    []NodeResult `json:"nodeResults,omitempty"`
	Result         JSON         `json:"result,omitempty"`
	Error          string       `json:"error,omitempty"`
	StartedAt      time.Time    `json:"startedAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
	CompletedAt    *time.Time   `json:"completedAt,omitempty"`
}

func (e *BackgroundExecution) Clone() *BackgroundExecution {
	if e == nil {
		return nil
	}
	c := *e
	c.Logs = append([]LogLine(nil), e.Logs...)
	c.NodeResults = append([]NodeResult(nil), e.NodeResults...)
	c.CompletedAt = cloneTime(e.CompletedAt)
	return &c
}

// Duration is nil while the execution is still running.
func (e *BackgroundExecution) Duration() *time.Duration {
	if e.CompletedAt == nil {
		return nil
	}
	d := e.CompletedAt.Sub(e.StartedAt)
	return &d
}
