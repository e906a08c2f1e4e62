package models

import (
	"time"
)

// Schedule types
const (
	ScheduleTypeInterval = "interval"
	ScheduleTypeCron     = "cron"
	ScheduleTypeOnce     = "once"
)

// Interval units
const (
	IntervalMinutes = "minutes"
	IntervalHours   = "hours"
	IntervalDays    = "days"
)

type IntervalSpec struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

// Duration converts the interval to a time.Duration. Unknown units yield zero.
func (i IntervalSpec) Duration() time.Duration {
	var unit time.Duration
	switch i.Unit {
	case IntervalMinutes:
		unit = time.Minute
	case IntervalHours:
		unit = time.Hour
	case IntervalDays:
		unit = 24 * time.Hour
	}
	return time.Duration(i.Value) * unit
}

type ScheduleSpec struct {
	Type     string        `json:"type"`
	Interval *IntervalSpec `json:"interval,omitempty"`
	Cron     string        `json:"cron,omitempty"`
	Datetime *time.Time    `json:"datetime,omitempty"`
}

type WorkflowSchedule struct {
	ID           string       `gorm:"primaryKey;size:36" json:"id"`
	WorkflowID   string       `gorm:"size:255;index:idx_schedule_workflow;not null" json:"workflowId"`
	WorkflowName string       `gorm:"size:255;not null" json:"workflowName"`
	ProjectPath  string       `gorm:"type:text;index:idx_schedule_workflow;not null" json:"projectPath"`
	Schedule     ScheduleSpec `gorm:"column:spec;type:jsonb;serializer:json;not null" json:"schedule"`
	Enabled      bool         `gorm:"not null;index" json:"enabled"`
	LastRun      *time.Time   `json:"lastRun,omitempty"`
	NextRun      *time.Time   `gorm:"index" json:"nextRun,omitempty"`
	RunCount     int          `gorm:"default:0" json:"runCount"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

func (WorkflowSchedule) TableName() string {
	return "workflow_schedules"
}

// Clone returns a deep copy so callers never share pointers with a store.
func (s *WorkflowSchedule) Clone() *WorkflowSchedule {
	if s == nil {
		return nil
	}
	c := *s
	if s.Schedule.Interval != nil {
		iv := *s.Schedule.Interval
		c.Schedule.Interval = &iv
	}
	c.Schedule.Datetime = cloneTime(s.Schedule.Datetime)
	c.LastRun = cloneTime(s.LastRun)
	c.NextRun = cloneTime(s.NextRun)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
