package taskruns

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
	"github.com/dmitrijs2005/meecokeeper/internal/dbx"
	"github.com/google/uuid"
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const insertRun = `INSERT INTO task_runs (run_id, task_id, work_type, target_id, state, failure, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

func (r *SQLiteRepository) RecordTaskRun(ctx context.Context, result *models.TaskResult) error {
	if result == nil || len(result.Completed)+len(result.Failed) == 0 {
		return nil
	}

	runID := uuid.NewString()
	finished := r.now()

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, t := range result.Completed {
			if _, err := tx.ExecContext(ctx, insertRun, runID, t.ID, t.WorkType, t.TargetID, string(t.State), "", finished); err != nil {
				return fmt.Errorf("failed to record task %s: %w", t.ID, err)
			}
		}
		for _, t := range result.Failed {
			reason := ""
			if t.FailureReason != nil {
				reason = t.FailureReason.Error()
			}
			if _, err := tx.ExecContext(ctx, insertRun, runID, t.ID, t.WorkType, t.TargetID, string(t.State), reason, finished); err != nil {
				return fmt.Errorf("failed to record task %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]models.TaskRun, error) {
	query := `SELECT run_id, task_id, work_type, target_id, state, failure, finished_at
		FROM task_runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.query(ctx, query, args...)
}

func (r *SQLiteRepository) ListByTask(ctx context.Context, taskID string) ([]models.TaskRun, error) {
	return r.query(ctx, `SELECT run_id, task_id, work_type, target_id, state, failure, finished_at
		FROM task_runs WHERE task_id = ? ORDER BY id`, taskID)
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]models.TaskRun, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select task runs: %w", err)
	}
	defer rows.Close()

	var result []models.TaskRun
	for rows.Next() {
		var run models.TaskRun
		if err := rows.Scan(&run.RunID, &run.TaskID, &run.WorkType, &run.TargetID, &run.State, &run.Failure, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task run: %w", err)
		}
		result = append(result, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate task runs: %w", err)
	}
	return result, nil
}
