package store

import (
	"context"
	"errors"
	"time"

	"github.com/zyra-ai/zyra/internal/domain/models"
)

var ErrNotFound = errors.New("schedule not found")

// RunRecord is the bookkeeping written when a schedule fires.
type RunRecord struct {
	LastRun time.Time
	NextRun *time.Time
	Enabled bool
}

type ScheduleStore interface {
	// List returns every schedule, oldest first
	List(ctx context.Context) ([]*models.WorkflowSchedule, error)

	// Get fetches a single schedule
	Get(ctx context.Context, id string) (*models.WorkflowSchedule, error)

	// Save inserts or replaces a schedule
	Save(ctx context.Context, schedule *models.WorkflowSchedule) error

	// Delete removes a schedule
	Delete(ctx context.Context, id string) error

	// RecordRun applies a fire to the stored schedule, incrementing its run
	// count, and returns the updated record
	RecordRun(ctx context.Context, id string, run RunRecord) (*models.WorkflowSchedule, error)

	Close() error
}
