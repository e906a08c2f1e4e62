package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog/log"
	"github.com/zyra-ai/zyra/internal/domain/models"
)

// FileStore keeps the history as a single JSON array. The file is re-read
// on every operation so edits made by other tools are picked up; a missing
// or unreadable file counts as an empty history.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) load() []*models.ExecutionHistoryEntry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", s.path).Msg("Failed to read execution history, starting empty")
		}
		return nil
	}

	var entries []*models.ExecutionHistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("Execution history file is corrupt, starting empty")
		return nil
	}
	return entries
}

func (s *FileStore) write(entries []*models.ExecutionHistoryEntry) error {
	if entries == nil {
		entries = []*models.ExecutionHistoryEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing execution history: %w", err)
	}
	return nil
}

func (s *FileStore) Add(_ context.Context, entry *models.ExecutionHistoryEntry, limit int) ([]*models.ExecutionHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.load()
	entries := make([]*models.ExecutionHistoryEntry, 0, len(existing)+1)
	entries = append(entries, entry)
	for _, e := range existing {
		if e.ID != entry.ID {
			entries = append(entries, e)
		}
	}

	var evicted []*models.ExecutionHistoryEntry
	if limit > 0 && len(entries) > limit {
		evicted = entries[limit:]
		entries = entries[:limit]
	}

	if err := s.write(entries); err != nil {
		return nil, err
	}
	return evicted, nil
}

func (s *FileStore) List(_ context.Context) ([]*models.ExecutionHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(), nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	for i, e := range entries {
		if e.ID == id {
			return s.write(append(entries[:i], entries[i+1:]...))
		}
	}
	return ErrEntryNotFound
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(nil)
}

func (s *FileStore) Close() error {
	return nil
}
