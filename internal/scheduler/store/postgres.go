package store

import (
	"context"
	"errors"
	"time"

	"github.com/zyra-ai/zyra/internal/domain/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.WorkflowSchedule, error) {
	var schedules []*models.WorkflowSchedule

	err := s.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}

	return schedules, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.WorkflowSchedule, error) {
	var schedule models.WorkflowSchedule
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&schedule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (s *PostgresStore) Save(ctx context.Context, schedule *models.WorkflowSchedule) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(schedule).Error
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.WorkflowSchedule{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, id string, run RunRecord) (*models.WorkflowSchedule, error) {
	var updated models.WorkflowSchedule

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.WorkflowSchedule{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"last_run":   run.LastRun,
				"next_run":   run.NextRun,
				"enabled":    run.Enabled,
				"run_count":  gorm.Expr("run_count + 1"),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("id = ?", id).First(&updated).Error
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// Close is a no-op: the connection pool is owned by the caller.
func (s *PostgresStore) Close() error {
	return nil
}
