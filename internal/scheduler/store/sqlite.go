package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zyra-ai/zyra/internal/domain/models"
)

// SQLiteStore persists schedules in the embedded database. The *sql.DB is
// shared with other stores and owned by the caller.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const scheduleColumns = `id, workflow_id, workflow_name, project_path, spec, enabled, last_run, next_run, run_count, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*models.WorkflowSchedule, error) {
	var (
		sc                   models.WorkflowSchedule
		spec                 string
		enabled              int
		lastRun, nextRun     sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&sc.ID, &sc.WorkflowID, &sc.WorkflowName, &sc.ProjectPath, &spec, &enabled,
		&lastRun, &nextRun, &sc.RunCount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(spec), &sc.Schedule); err != nil {
		return nil, fmt.Errorf("decoding schedule spec %s: %w", sc.ID, err)
	}
	sc.Enabled = enabled == 1

	var err error
	if sc.LastRun, err = parseNullTime(lastRun); err != nil {
		return nil, err
	}
	if sc.NextRun, err = parseNullTime(nextRun); err != nil {
		return nil, err
	}
	if sc.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if sc.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*models.WorkflowSchedule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+scheduleColumns+` FROM workflow_schedules ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing schedules: %w", err)
	}
	defer rows.Close()

	var list []*models.WorkflowSchedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning schedule: %w", err)
		}
		list = append(list, sc)
	}
	return list, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.WorkflowSchedule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM workflow_schedules WHERE id = ?`, id)
	sc, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting schedule: %w", err)
	}
	return sc, nil
}

func (s *SQLiteStore) Save(ctx context.Context, sc *models.WorkflowSchedule) error {
	spec, err := json.Marshal(sc.Schedule)
	if err != nil {
		return fmt.Errorf("encoding schedule spec: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_schedules (`+scheduleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			workflow_id = excluded.workflow_id,
			workflow_name = excluded.workflow_name,
			project_path = excluded.project_path,
			spec = excluded.spec,
			enabled = excluded.enabled,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			run_count = excluded.run_count,
			updated_at = excluded.updated_at`,
		sc.ID, sc.WorkflowID, sc.WorkflowName, sc.ProjectPath, string(spec), boolToInt(sc.Enabled),
		formatNullTime(sc.LastRun), formatNullTime(sc.NextRun), sc.RunCount,
		sc.CreatedAt.UTC().Format(time.RFC3339Nano), sc.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving schedule: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflow_schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) RecordRun(ctx context.Context, id string, run RunRecord) (*models.WorkflowSchedule, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE workflow_schedules
		SET last_run = ?, next_run = ?, enabled = ?, run_count = run_count + 1, updated_at = ?
		WHERE id = ?`,
		run.LastRun.UTC().Format(time.RFC3339Nano), formatNullTime(run.NextRun), boolToInt(run.Enabled),
		time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	sc, err := scanSchedule(tx.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM workflow_schedules WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("reloading schedule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing run: %w", err)
	}
	return sc, nil
}

// Close is a no-op: the shared database is closed by its owner.
func (s *SQLiteStore) Close() error {
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
