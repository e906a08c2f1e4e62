package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/zyra-ai/zyra/internal/domain/models"
)

// FileStore keeps schedules in memory and writes the whole set to a JSON
// file after every mutation.
type FileStore struct {
	path      string
	schedules map[string]*models.WorkflowSchedule
	mu        sync.RWMutex
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create schedules directory: %w", err)
	}

	s := &FileStore{
		path:      path,
		schedules: make(map[string]*models.WorkflowSchedule),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read schedules file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var list []*models.WorkflowSchedule
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("failed to parse schedules file %s: %w", s.path, err)
	}
	for _, sc := range list {
		s.schedules[sc.ID] = sc
	}
	return nil
}

// persist must be called with the write lock held.
func (s *FileStore) persist() error {
	data, err := json.MarshalIndent(s.sorted(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schedules: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write schedules file: %w", err)
	}
	return nil
}

func (s *FileStore) sorted() []*models.WorkflowSchedule {
	list := make([]*models.WorkflowSchedule, 0, len(s.schedules))
	for _, sc := range s.schedules {
		list = append(list, sc)
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

func (s *FileStore) List(_ context.Context) ([]*models.WorkflowSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.sorted()
	for i, sc := range list {
		list[i] = sc.Clone()
	}
	return list, nil
}

func (s *FileStore) Get(_ context.Context, id string) (*models.WorkflowSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.schedules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sc.Clone(), nil
}

func (s *FileStore) Save(_ context.Context, schedule *models.WorkflowSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.schedules[schedule.ID]
	s.schedules[schedule.ID] = schedule.Clone()
	if err := s.persist(); err != nil {
		if existed {
			s.schedules[schedule.ID] = prev
		} else {
			delete(s.schedules, schedule.ID)
		}
		return err
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.schedules[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.schedules, id)
	if err := s.persist(); err != nil {
		s.schedules[id] = prev
		return err
	}
	return nil
}

func (s *FileStore) RecordRun(_ context.Context, id string, run RunRecord) (*models.WorkflowSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.schedules[id]
	if !ok {
		return nil, ErrNotFound
	}

	updated := prev.Clone()
	lastRun := run.LastRun
	updated.LastRun = &lastRun
	updated.NextRun = run.NextRun
	updated.Enabled = run.Enabled
	updated.RunCount++
	updated.UpdatedAt = time.Now()

	s.schedules[id] = updated
	if err := s.persist(); err != nil {
		s.schedules[id] = prev
		return nil, err
	}
	return updated.Clone(), nil
}

func (s *FileStore) Close() error {
	return nil
}
