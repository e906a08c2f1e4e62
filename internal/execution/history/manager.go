package history

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/zyra-ai/zyra/internal/domain/models"
	"github.com/zyra-ai/zyra/internal/pkg/metrics"
)

const DefaultMaxEntries = 100

// Manager is the durable record of finished executions. It is capped at
// maxEntries; the oldest entries fall off (and go to the archiver, if one
// is set) as new ones arrive.
type Manager struct {
	store      Store
	archiver   Archiver
	maxEntries int
}

func NewManager(store Store, maxEntries int, archiver Archiver) *Manager {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Manager{
		store:      store,
		archiver:   archiver,
		maxEntries: maxEntries,
	}
}

func (m *Manager) Add(ctx context.Context, entry *models.ExecutionHistoryEntry) error {
	evicted, err := m.store.Add(ctx, entry, m.maxEntries)
	if err != nil {
		return err
	}

	if m.archiver != nil {
		for _, e := range evicted {
			if err := m.archiver.Archive(ctx, e); err != nil {
				metrics.HistoryArchivedTotal.WithLabelValues("failure").Inc()
				log.Error().Err(err).Str("execution_id", e.ID).Msg("Failed to archive history entry")
				continue
			}
			metrics.HistoryArchivedTotal.WithLabelValues("success").Inc()
		}
	}

	m.refreshGauge(ctx)
	return nil
}

// Record lets the tracker hand over finished executions.
func (m *Manager) Record(ctx context.Context, entry *models.ExecutionHistoryEntry) error {
	return m.Add(ctx, entry)
}

func (m *Manager) All(ctx context.Context) ([]*models.ExecutionHistoryEntry, error) {
	entries, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*models.ExecutionHistoryEntry{}
	}
	return entries, nil
}

func (m *Manager) Get(ctx context.Context, id string) (*models.ExecutionHistoryEntry, error) {
	entries, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, ErrEntryNotFound
}

func (m *Manager) ByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionHistoryEntry, error) {
	return m.filter(ctx, func(e *models.ExecutionHistoryEntry) bool { return e.WorkflowID == workflowID })
}

func (m *Manager) ByProject(ctx context.Context, projectPath string) ([]*models.ExecutionHistoryEntry, error) {
	return m.filter(ctx, func(e *models.ExecutionHistoryEntry) bool { return e.ProjectPath == projectPath })
}

// Recent returns up to limit newest entries; a non-positive limit returns all.
func (m *Manager) Recent(ctx context.Context, limit int) ([]*models.ExecutionHistoryEntry, error) {
	entries, err := m.All(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *Manager) filter(ctx context.Context, keep func(*models.ExecutionHistoryEntry) bool) ([]*models.ExecutionHistoryEntry, error) {
	entries, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.ExecutionHistoryEntry, 0, len(entries))
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.refreshGauge(ctx)
	return nil
}

func (m *Manager) Clear(ctx context.Context) error {
	if err := m.store.Clear(ctx); err != nil {
		return err
	}
	metrics.HistoryEntries.Set(0)
	return nil
}

func (m *Manager) Statistics(ctx context.Context) (*models.ExecutionStatistics, error) {
	entries, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return computeStatistics(entries), nil
}

func computeStatistics(entries []*models.ExecutionHistoryEntry) *models.ExecutionStatistics {
	stats := &models.ExecutionStatistics{
		TotalExecutions: len(entries),
		ByStatus:        make(map[string]int),
	}

	var (
		totalDuration int64
		timed         int
		order         []string
		counts        = make(map[string]int)
	)

	for _, e := range entries {
		stats.ByStatus[e.Status]++
		switch e.Status {
		case models.ExecutionStatusCompleted:
			stats.SuccessfulExecutions++
		case models.ExecutionStatusFailed:
			stats.FailedExecutions++
		case models.ExecutionStatusCancelled:
			stats.CancelledExecutions++
		}

		if e.Duration != nil {
			totalDuration += *e.Duration
			timed++
		}

		if _, seen := counts[e.WorkflowName]; !seen {
			order = append(order, e.WorkflowName)
		}
		counts[e.WorkflowName]++
	}

	if timed > 0 {
		stats.AverageDuration = int64(math.Round(float64(totalDuration) / float64(timed)))
	}

	if len(order) > 0 {
		// stable: on equal counts the workflow seen first (newest) wins
		sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
		stats.MostExecutedWorkflow = &models.WorkflowCount{
			WorkflowName: order[0],
			Count:        counts[order[0]],
		}
	}

	return stats
}

func (m *Manager) refreshGauge(ctx context.Context) {
	entries, err := m.store.List(ctx)
	if err != nil {
		return
	}
	metrics.HistoryEntries.Set(float64(len(entries)))
}

func (m *Manager) Close() error {
	return m.store.Close()
}
