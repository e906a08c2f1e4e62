package history

import (
	"context"

	"github.com/zyra-ai/zyra/internal/domain/models"
	"gorm.io/gorm"
)

// GormStore keeps history rows in PostgreSQL.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Add(ctx context.Context, entry *models.ExecutionHistoryEntry, limit int) ([]*models.ExecutionHistoryEntry, error) {
	var evicted []*models.ExecutionHistoryEntry

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", entry.ID).Delete(&models.HistoryRecord{}).Error; err != nil {
			return err
		}

		record := &models.HistoryRecord{
			ID:          entry.ID,
			WorkflowID:  entry.WorkflowID,
			ProjectPath: entry.ProjectPath,
			Status:      entry.Status,
			Entry:       *entry,
		}
		if err := tx.Create(record).Error; err != nil {
			return err
		}

		if limit <= 0 {
			return nil
		}

		var stale []models.HistoryRecord
		if err := tx.Order("seq DESC").Offset(limit).Find(&stale).Error; err != nil {
			return err
		}
		if len(stale) == 0 {
			return nil
		}

		seqs := make([]uint64, 0, len(stale))
		for i := range stale {
			seqs = append(seqs, stale[i].Seq)
			e := stale[i].Entry
			evicted = append(evicted, &e)
		}
		return tx.Where("seq IN ?", seqs).Delete(&models.HistoryRecord{}).Error
	})
	if err != nil {
		return nil, err
	}

	return evicted, nil
}

func (s *GormStore) List(ctx context.Context) ([]*models.ExecutionHistoryEntry, error) {
	var records []models.HistoryRecord
	if err := s.db.WithContext(ctx).Order("seq DESC").Find(&records).Error; err != nil {
		return nil, err
	}

	entries := make([]*models.ExecutionHistoryEntry, 0, len(records))
	for i := range records {
		e := records[i].Entry
		entries = append(entries, &e)
	}
	return entries, nil
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.HistoryRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (s *GormStore) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.HistoryRecord{}).Error
}

func (s *GormStore) Close() error {
	return nil
}
