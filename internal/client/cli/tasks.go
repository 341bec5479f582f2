package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
	"github.com/dmitrijs2005/meecokeeper/internal/common"
)

const defaultHistoryLimit = 20

func parseTaskState(args []string, def models.ClientTaskState) (models.ClientTaskState, error) {
	if len(args) == 0 {
		return def, nil
	}
	switch s := models.ClientTaskState(args[0]); s {
	case models.ClientTaskTodo, models.ClientTaskInProgress, models.ClientTaskDone, models.ClientTaskFailed:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown task state %q", common.ErrInvalidArgument, args[0])
	}
}

// Tasks prints the outstanding task counts and the tasks in one state (todo
// by default). Listing does not change task states.
func (a *App) Tasks(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	state, err := parseTaskState(args, models.ClientTaskTodo)
	if err != nil {
		return err
	}

	outstanding, err := a.tasks.CountOutstandingTasks(ctx, a.creds.VaultAccessToken)
	if err != nil {
		return err
	}
	tasks, err := a.tasks.ListAll(ctx, a.creds.VaultAccessToken, state, false)
	if err != nil {
		return err
	}
	return printYAML(a.out, tasksView{Outstanding: outstanding, Tasks: newTaskViews(tasks)})
}

// RunTasks executes the todo tasks, or the failed ones when asked to retry
// them, and reports each outcome.
func (a *App) RunTasks(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	state, err := parseTaskState(args, models.ClientTaskTodo)
	if err != nil {
		return err
	}
	if !state.Startable() {
		return fmt.Errorf("%w: only todo or failed tasks can be run", common.ErrInvalidArgument)
	}

	tasks, err := a.tasks.ListAll(ctx, a.creds.VaultAccessToken, state, false)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		hintLine(a.out, "Nothing to do")
		return nil
	}

	var result *models.TaskResult
	err = withSpinner(a.out, fmt.Sprintf("Running %d task(s)...", len(tasks)), func() error {
		result, err = a.tasks.Execute(ctx, a.creds, tasks)
		return err
	})
	if result == nil {
		return err
	}

	for _, t := range result.Completed {
		okLine(a.out, "%s %s", t.WorkType, t.TargetID)
	}
	for _, t := range result.Failed {
		failLine(a.out, fmt.Errorf("%s %s: %w", t.WorkType, t.TargetID, t.FailureReason))
	}
	if len(result.Failed) > 0 {
		hintLine(a.out, "Retry with run-tasks failed")
	}
	return err
}

// TaskHistory prints runs from the local journal: the latest runs, or every
// run of one task when a task id is given.
func (a *App) TaskHistory(ctx context.Context, args []string) error {
	var (
		runs []models.TaskRun
		err  error
	)
	switch {
	case len(args) == 0:
		runs, err = a.repos.TaskRuns.ListRuns(ctx, defaultHistoryLimit)
	default:
		if n, convErr := strconv.Atoi(args[0]); convErr == nil && n > 0 {
			runs, err = a.repos.TaskRuns.ListRuns(ctx, n)
		} else {
			runs, err = a.repos.TaskRuns.ListByTask(ctx, args[0])
		}
	}
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		hintLine(a.out, "No task runs recorded")
		return nil
	}
	return printYAML(a.out, runs)
}

// hintOutstandingTasks tells the user about queued work after a change that
// may have queued some.
func (a *App) hintOutstandingTasks(ctx context.Context) {
	outstanding, err := a.tasks.CountOutstandingTasks(ctx, a.creds.VaultAccessToken)
	if err != nil {
		a.log.Debug(ctx, "failed to count outstanding tasks", "error", err)
		return
	}
	if outstanding.Todo > 0 {
		hintLine(a.out, "%d task(s) waiting, use run-tasks to update your shares", outstanding.Todo)
	}
}
