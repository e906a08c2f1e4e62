package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zyra-ai/zyra/internal/domain/models"
	"github.com/zyra-ai/zyra/internal/scheduler/cron"
	"github.com/zyra-ai/zyra/internal/scheduler/store"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrInvalidSchedule  = errors.New("invalid schedule")
	ErrInvalidCron      = errors.New("invalid cron expression")
)

const maxPreviewRuns = 20

type CreateInput struct {
	WorkflowID   string
	WorkflowName string
	ProjectPath  string
	Schedule     models.ScheduleSpec
}

// UpdateInput carries a partial update; nil fields are left unchanged.
type UpdateInput struct {
	WorkflowName *string
	Schedule     *models.ScheduleSpec
	Enabled      *bool
}

type Filter struct {
	WorkflowID  string
	ProjectPath string
}

func (f Filter) matches(sc *models.WorkflowSchedule) bool {
	if f.WorkflowID != "" && sc.WorkflowID != f.WorkflowID {
		return false
	}
	if f.ProjectPath != "" && sc.ProjectPath != f.ProjectPath {
		return false
	}
	return true
}

// ValidateSpec checks that a schedule spec carries what its type needs.
func (s *Scheduler) ValidateSpec(spec models.ScheduleSpec) error {
	switch spec.Type {
	case models.ScheduleTypeInterval:
		if spec.Interval == nil {
			return fmt.Errorf("%w: interval is required", ErrInvalidSchedule)
		}
		if spec.Interval.Value <= 0 {
			return fmt.Errorf("%w: interval value must be positive", ErrInvalidSchedule)
		}
		if spec.Interval.Duration() <= 0 {
			return fmt.Errorf("%w: unknown interval unit %q", ErrInvalidSchedule, spec.Interval.Unit)
		}
	case models.ScheduleTypeCron:
		if strings.TrimSpace(spec.Cron) == "" {
			return fmt.Errorf("%w: cron is required", ErrInvalidSchedule)
		}
		if err := s.calculator.Validate(spec.Cron); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCron, err)
		}
	case models.ScheduleTypeOnce:
		if spec.Datetime == nil || spec.Datetime.IsZero() {
			return fmt.Errorf("%w: datetime is required", ErrInvalidSchedule)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidSchedule, spec.Type)
	}
	return nil
}

// CreateSchedule stores a new enabled schedule and arms its timer. A one-off
// schedule whose datetime already passed is stored without a next run and
// never fires.
func (s *Scheduler) CreateSchedule(ctx context.Context, in CreateInput) (*models.WorkflowSchedule, error) {
	if in.WorkflowID == "" || in.ProjectPath == "" {
		return nil, fmt.Errorf("%w: workflowId and projectPath are required", ErrInvalidSchedule)
	}
	if err := s.ValidateSpec(in.Schedule); err != nil {
		return nil, err
	}

	now := s.config.Now()
	sc := &models.WorkflowSchedule{
		ID:           uuid.New().String(),
		WorkflowID:   in.WorkflowID,
		WorkflowName: in.WorkflowName,
		ProjectPath:  in.ProjectPath,
		Schedule:     in.Schedule,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	next, err := s.calculator.NextRun(sc, now)
	if err != nil {
		return nil, s.specError(err)
	}
	sc.NextRun = next

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.Save(ctx, sc); err != nil {
		return nil, fmt.Errorf("failed to save schedule: %w", err)
	}

	s.arm(sc)

	log.Info().
		Str("schedule_id", sc.ID).
		Str("workflow_id", sc.WorkflowID).
		Str("type", sc.Schedule.Type).
		Msg("Schedule created")

	return sc.Clone(), nil
}

// UpdateSchedule applies a partial update. The next run is recomputed when
// the timing changes or the schedule is re-enabled.
func (s *Scheduler) UpdateSchedule(ctx context.Context, id string, in UpdateInput) (*models.WorkflowSchedule, error) {
	if in.Schedule != nil {
		if err := s.ValidateSpec(*in.Schedule); err != nil {
			return nil, err
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sc, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	recompute := false
	if in.WorkflowName != nil {
		sc.WorkflowName = *in.WorkflowName
	}
	if in.Schedule != nil {
		sc.Schedule = *in.Schedule
		recompute = true
	}
	if in.Enabled != nil {
		if *in.Enabled && !sc.Enabled {
			recompute = true
		}
		sc.Enabled = *in.Enabled
	}

	now := s.config.Now()
	if recompute {
		next, err := s.calculator.NextRun(sc, now)
		if err != nil {
			return nil, s.specError(err)
		}
		sc.NextRun = next
	}
	sc.UpdatedAt = now

	if err := s.store.Save(ctx, sc); err != nil {
		return nil, fmt.Errorf("failed to save schedule: %w", err)
	}

	if sc.Enabled {
		s.arm(sc)
	} else {
		s.disarm(id)
	}

	log.Info().Str("schedule_id", id).Bool("enabled", sc.Enabled).Msg("Schedule updated")
	return sc.Clone(), nil
}

func (s *Scheduler) DeleteSchedule(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrScheduleNotFound
		}
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	s.disarm(id)

	log.Info().Str("schedule_id", id).Msg("Schedule deleted")
	return nil
}

func (s *Scheduler) GetSchedule(ctx context.Context, id string) (*models.WorkflowSchedule, error) {
	return s.get(ctx, id)
}

func (s *Scheduler) get(ctx context.Context, id string) (*models.WorkflowSchedule, error) {
	sc, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}
	return sc, nil
}

func (s *Scheduler) ListSchedules(ctx context.Context, filter Filter) ([]*models.WorkflowSchedule, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	schedules := make([]*models.WorkflowSchedule, 0, len(all))
	for _, sc := range all {
		if filter.matches(sc) {
			schedules = append(schedules, sc)
		}
	}
	return schedules, nil
}

// Preview lists the next n fire times of a spec without storing anything.
func (s *Scheduler) Preview(spec models.ScheduleSpec, n int) ([]time.Time, error) {
	if err := s.ValidateSpec(spec); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = 5
	}
	if n > maxPreviewRuns {
		n = maxPreviewRuns
	}

	runs, err := s.calculator.NextRuns(&models.WorkflowSchedule{Schedule: spec}, s.config.Now(), n)
	if err != nil {
		return nil, s.specError(err)
	}
	return runs, nil
}

func (s *Scheduler) specError(err error) error {
	switch {
	case errors.Is(err, cron.ErrInvalidExpression):
		return fmt.Errorf("%w: %v", ErrInvalidCron, err)
	case errors.Is(err, cron.ErrUnsupportedSchedule):
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	return err
}
