package taskruns

import (
	"context"

	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
)

type Repository interface {
	// RecordTaskRun journals one executed batch.
	RecordTaskRun(ctx context.Context, result *models.TaskResult) error

	// ListRuns returns the newest limit journal rows, newest first. A limit
	// <= 0 returns everything.
	ListRuns(ctx context.Context, limit int) ([]models.TaskRun, error)

	// ListByTask returns the history of one task, oldest first.
	ListByTask(ctx context.Context, taskID string) ([]models.TaskRun, error)
}
