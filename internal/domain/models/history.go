package models

import (
	"time"
)

type ExecutionHistoryEntry struct {
	ID           string       `json:"id"`
	WorkflowID   string       `json:"workflowId"`
	WorkflowName string       `json:"workflowName"`
	ProjectPath  string       `json:"projectPath"`
	Status       string       `json:"status"`
	TriggeredBy  string       `json:"triggeredBy,omitempty"`
	StartedAt    time.Time    `json:"startedAt"`
	CompletedAt  *time.Time   `json:"completedAt,omitempty"`
	Duration     *int64       `json:"duration,omitempty"` // milliseconds
	NodeResults  []NodeResult `json:"nodeResults,omitempty"`
	Error        string       `json:"error,omitempty"`
}

// HistoryRecord is the relational row for a history entry. Seq preserves
// insertion order so the newest entry is always the highest sequence.
type HistoryRecord struct {
	Seq         uint64                `gorm:"primaryKey;autoIncrement" json:"-"`
	ID          string                `gorm:"size:36;uniqueIndex;not null" json:"id"`
	WorkflowID  string                `gorm:"size:255;index;not null" json:"workflowId"`
	ProjectPath string                `gorm:"type:text;index;not null" json:"projectPath"`
	Status      string                `gorm:"size:20;not null" json:"status"`
	Entry       ExecutionHistoryEntry `gorm:"column:payload;type:jsonb;serializer:json;not null" json:"entry"`
}

func (HistoryRecord) TableName() string {
	return "execution_history"
}

type WorkflowCount struct {
	WorkflowName string `json:"workflowName"`
	Count        int    `json:"count"`
}

type ExecutionStatistics struct {
	TotalExecutions      int            `json:"totalExecutions"`
	SuccessfulExecutions int            `json:"successfulExecutions"`
	FailedExecutions     int            `json:"failedExecutions"`
	CancelledExecutions  int            `json:"cancelledExecutions"`
	ByStatus             map[string]int `json:"byStatus"`
	AverageDuration      int64          `json:"averageDuration"` // milliseconds
	MostExecutedWorkflow *WorkflowCount `json:"mostExecutedWorkflow,omitempty"`
}

// EntryFromExecution converts a finished background execution into its
// durable history form.
func EntryFromExecution(e *BackgroundExecution) *ExecutionHistoryEntry {
	entry := &ExecutionHistoryEntry{
		ID:           e.ID,
		WorkflowID:   e.WorkflowID,
		WorkflowName: e.WorkflowName,
		ProjectPath:  e.ProjectPath,
		Status:       e.Status,
		TriggeredBy:  e.TriggeredBy,
		StartedAt:    e.StartedAt,
		CompletedAt:  cloneTime(e.CompletedAt),
		NodeResults:  append([]NodeResult(nil), e.NodeResults...),
		Error:        e.Error,
	}
	if d := e.Duration(); d != nil {
		ms := d.Milliseconds()
		entry.Duration = &ms
	}
	return entry
}
