package history

import (
	"context"
	"errors"

	"github.com/zyra-ai/zyra/internal/domain/models"
)

var ErrEntryNotFound = errors.New("history entry not found")

// Store persists history entries, newest first.
type Store interface {
	// Add stores entry as the newest one, replacing any entry with the same
	// id, and trims the history to limit entries. It returns the entries
	// that were trimmed.
	Add(ctx context.Context, entry *models.ExecutionHistoryEntry, limit int) ([]*models.ExecutionHistoryEntry, error)

	// List returns every entry, newest first
	List(ctx context.Context) ([]*models.ExecutionHistoryEntry, error)

	Delete(ctx context.Context, id string) error

	Clear(ctx context.Context) error

	Close() error
}
