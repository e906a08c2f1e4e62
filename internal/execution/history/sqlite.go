package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/zyra-ai/zyra/internal/domain/models"
)

// SQLiteStore keeps history rows in the embedded database, ordered by an
// insertion sequence.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Add(ctx context.Context, entry *models.ExecutionHistoryEntry, limit int) ([]*models.ExecutionHistoryEntry, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM execution_history WHERE id = ?`, entry.ID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO execution_history (id, workflow_id, project_path, status, payload) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.WorkflowID, entry.ProjectPath, entry.Status, string(payload),
	); err != nil {
		return nil, fmt.Errorf("inserting history entry: %w", err)
	}

	var evicted []*models.ExecutionHistoryEntry
	if limit > 0 {
		rows, err := tx.QueryContext(ctx,
			`SELECT payload FROM execution_history ORDER BY seq DESC LIMIT -1 OFFSET ?`, limit)
		if err != nil {
			return nil, err
		}
		evicted, err = scanEntries(rows)
		if err != nil {
			return nil, err
		}

		if len(evicted) > 0 {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM execution_history
				WHERE seq NOT IN (SELECT seq FROM execution_history ORDER BY seq DESC LIMIT ?)`, limit); err != nil {
				return nil, fmt.Errorf("trimming history: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return evicted, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*models.ExecutionHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM execution_history ORDER BY seq DESC`)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]*models.ExecutionHistoryEntry, error) {
	defer rows.Close()

	var entries []*models.ExecutionHistoryEntry
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var entry models.ExecutionHistoryEntry
		if err := json.Unmarshal([]byte(payload), &entry); err != nil {
			return nil, fmt.Errorf("decoding history entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM execution_history WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM execution_history`)
	return err
}

// Close is a no-op: the database is shared with the schedule store.
func (s *SQLiteStore) Close() error {
	return nil
}
