package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/opsgrid/patchwin-api/internal/models"
)

// RunRepository persists realignment runs and their per-collection results.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository constructs a run repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// CreateRun inserts a run in RUNNING state.
func (r *RunRepository) CreateRun(ctx context.Context, run *models.RealignRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = models.RunStatusRunning
	}
	query := `INSERT INTO realign_runs (id, site_id, pattern, recipient, patch_tuesday, status, updated_count, failed_count, skipped_count, started_at)
VALUES (:id, :site_id, :pattern, :recipient, :patch_tuesday, :status, :updated_count, :failed_count, :skipped_count, :started_at)`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("create realign run: %w", err)
	}
	return nil
}

// FinishRun stores the final status and counters for a run.
func (r *RunRepository) FinishRun(ctx context.Context, run *models.RealignRun) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	query := `UPDATE realign_runs SET status = :status, updated_count = :updated_count, failed_count = :failed_count,
skipped_count = :skipped_count, finished_at = :finished_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("finish realign run: %w", err)
	}
	return nil
}

// InsertResults stores the ordered per-collection results for a run.
func (r *RunRepository) InsertResults(ctx context.Context, results []models.RealignResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin results tx: %w", err)
	}
	query := `INSERT INTO realign_results (id, run_id, position, collection_id, collection_name, window_name, outcome, old_start, new_start, new_end, detail)
VALUES (:id, :run_id, :position, :collection_id, :collection_name, :window_name, :outcome, :old_start, :new_start, :new_end, :detail)`
	for i := range results {
		if results[i].ID == "" {
			results[i].ID = uuid.NewString()
		}
		if _, err := tx.NamedExecContext(ctx, query, results[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert realign result: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit results tx: %w", err)
	}
	return nil
}

// GetRun fetches a run by id.
func (r *RunRepository) GetRun(ctx context.Context, id string) (*models.RealignRun, error) {
	const query = `SELECT id, site_id, pattern, recipient, patch_tuesday, status, updated_count, failed_count, skipped_count, started_at, finished_at
FROM realign_runs WHERE id = $1`
	var run models.RealignRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns runs matching the filter, newest first.
func (r *RunRepository) ListRuns(ctx context.Context, filter models.RunFilter) ([]models.RealignRun, int, error) {
	base := "FROM realign_runs"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.SiteID != "" {
		where = append(where, fmt.Sprintf("site_id = $%d", len(args)+1))
		args = append(args, filter.SiteID)
	}
	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, site_id, pattern, recipient, patch_tuesday, status, updated_count, failed_count, skipped_count, started_at, finished_at
%s WHERE %s ORDER BY started_at DESC LIMIT %d OFFSET %d`, base, whereClause, size, offset)
	var runs []models.RealignRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list realign runs: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count realign runs: %w", err)
	}
	return runs, total, nil
}

// ListResults returns a run's results in discovery order.
func (r *RunRepository) ListResults(ctx context.Context, runID string) ([]models.RealignResult, error) {
	const query = `SELECT id, run_id, position, collection_id, collection_name, window_name, outcome, old_start, new_start, new_end, detail
FROM realign_results WHERE run_id = $1 ORDER BY position ASC`
	var results []models.RealignResult
	if err := r.db.SelectContext(ctx, &results, query, runID); err != nil {
		return nil, fmt.Errorf("list realign results: %w", err)
	}
	return results, nil
}

// HasRunInMonth reports whether a run already happened for the site in the
// month containing day. The auto trigger uses it to stay idempotent.
func (r *RunRepository) HasRunInMonth(ctx context.Context, siteID string, day time.Time) (bool, error) {
	monthStart := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)
	const query = `SELECT COUNT(*) FROM realign_runs WHERE site_id = $1 AND started_at >= $2 AND started_at < $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, siteID, monthStart, monthEnd); err != nil {
		return false, fmt.Errorf("count runs in month: %w", err)
	}
	return count > 0, nil
}
