package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/meecokeeper/internal/client/client"
	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
	"github.com/dmitrijs2005/meecokeeper/internal/common"
	"github.com/dmitrijs2005/meecokeeper/internal/logging"
	"golang.org/x/sync/errgroup"
)

// OutstandingTasks counts the tasks still waiting for this client.
type OutstandingTasks struct {
	Todo       int `json:"todo" yaml:"todo"`
	InProgress int `json:"in_progress" yaml:"in_progress"`
}

// TaskJournal records executed batches locally.
type TaskJournal interface {
	RecordTaskRun(ctx context.Context, result *models.TaskResult) error
}

// ClientTaskQueueService lists and executes work the server queued for this
// client.
//
// Listing never changes task state unless the caller asks for it. Execute
// either admits a whole batch or none of it; once admitted, tasks run
// concurrently and a failing task never stops the others.
type ClientTaskQueueService interface {
	List(ctx context.Context, vaultToken string, state models.ClientTaskState, changeState bool, opts models.PageOptions) (*client.ClientTasksPage, error)
	ListAll(ctx context.Context, vaultToken string, state models.ClientTaskState, changeState bool) ([]models.ClientTask, error)
	CountOutstandingTasks(ctx context.Context, vaultToken string) (OutstandingTasks, error)
	Execute(ctx context.Context, creds *models.AuthData, tasks []models.ClientTask) (*models.TaskResult, error)
}

type clientTaskQueueService struct {
	api     client.ClientTaskQueueAPI
	shares  ShareService
	journal TaskJournal
	log     logging.Logger
}

type TaskQueueOption func(*clientTaskQueueService)

// WithJournal makes Execute append every finished batch to j.
func WithJournal(j TaskJournal) TaskQueueOption {
	return func(s *clientTaskQueueService) { s.journal = j }
}

func NewClientTaskQueueService(api client.ClientTaskQueueAPI, shares ShareService, deps Deps, opts ...TaskQueueOption) ClientTaskQueueService {
	deps = deps.withDefaults()
	s := &clientTaskQueueService{api: api, shares: shares, log: deps.Log}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *clientTaskQueueService) query(state models.ClientTaskState, changeState bool, opts models.PageOptions) client.ClientTaskQuery {
	if state == "" {
		state = models.ClientTaskTodo
	}
	return client.ClientTaskQuery{SuppressChangingState: !changeState, State: state, PageOptions: opts}
}

// List fetches one page of tasks in state (todo when empty). With changeState
// set the server moves listed todo tasks to in_progress.
func (s *clientTaskQueueService) List(ctx context.Context, vaultToken string, state models.ClientTaskState, changeState bool, opts models.PageOptions) (*client.ClientTasksPage, error) {
	page, err := s.api.ListClientTasks(ctx, vaultToken, s.query(state, changeState, opts))
	if err != nil {
		return nil, err
	}
	if page.HasNext() && opts.PerPage == 0 {
		s.log.Warn(ctx, "some results omitted, but page limit was not explicitly set")
	}
	return page, nil
}

func (s *clientTaskQueueService) ListAll(ctx context.Context, vaultToken string, state models.ClientTaskState, changeState bool) ([]models.ClientTask, error) {
	pages, err := client.GetAllPaged(ctx, func(ctx context.Context, cursor string) (*client.ClientTasksPage, error) {
		return s.api.ListClientTasks(ctx, vaultToken, s.query(state, changeState, models.PageOptions{NextPageAfter: cursor}))
	})
	if err != nil {
		return nil, err
	}
	var tasks []models.ClientTask
	for _, p := range pages {
		tasks = append(tasks, p.ClientTasks...)
	}
	return tasks, nil
}

func (s *clientTaskQueueService) CountOutstandingTasks(ctx context.Context, vaultToken string) (OutstandingTasks, error) {
	var out OutstandingTasks
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.ListAll(gctx, vaultToken, models.ClientTaskTodo, false)
		out.Todo = len(t)
		return err
	})
	g.Go(func() error {
		t, err := s.ListAll(gctx, vaultToken, models.ClientTaskInProgress, false)
		out.InProgress = len(t)
		return err
	})
	if err := g.Wait(); err != nil {
		return OutstandingTasks{}, err
	}
	return out, nil
}

// Execute runs a batch of tasks.
//
// Every task is checked before anything is written: an unknown work type or a
// task that is not todo/failed rejects the whole batch. Admitted tasks are
// marked in_progress in one call, run concurrently, and their final states
// are written back in one call once all of them settled. A failing task ends
// up in TaskResult.Failed with its reason; it is not returned as an error.
func (s *clientTaskQueueService) Execute(ctx context.Context, creds *models.AuthData, tasks []models.ClientTask) (*models.TaskResult, error) {
	for _, t := range tasks {
		if t.WorkType != models.WorkTypeUpdateItemShares {
			return nil, common.NewServiceError(common.ErrCodeProtocol, common.ErrUnknownWorkType,
				"do not know how to execute client task %s of type %q", t.ID, t.WorkType)
		}
		if !t.State.Startable() {
			return nil, common.NewServiceError(common.ErrCodeProtocol, common.ErrTaskNotStartable,
				"client task %s is %s, only todo or failed tasks can be started", t.ID, t.State)
		}
	}

	result := &models.TaskResult{Completed: []models.ClientTask{}, Failed: []models.FailedClientTask{}}
	if len(tasks) == 0 {
		return result, nil
	}

	s.log.Info(ctx, "executing client tasks", "count", len(tasks))
	if _, err := s.api.UpdateClientTasks(ctx, creds.VaultAccessToken, stateUpdates(tasks, models.ClientTaskInProgress)); err != nil {
		return nil, fmt.Errorf("marking tasks in progress: %w", err)
	}

	outcomes := make([]error, len(tasks))
	var g errgroup.Group
	for i, t := range tasks {
		g.Go(func() error {
			outcomes[i] = s.run(ctx, creds, t)
			return nil
		})
	}
	_ = g.Wait()

	for i, t := range tasks {
		if err := outcomes[i]; err != nil {
			t.State = models.ClientTaskFailed
			result.Failed = append(result.Failed, models.FailedClientTask{ClientTask: t, FailureReason: err})
			s.log.Warn(ctx, "client task failed", "task_id", t.ID, "target_id", t.TargetID, "error", err)
			continue
		}
		t.State = models.ClientTaskDone
		result.Completed = append(result.Completed, t)
	}

	final := make([]models.ClientTaskUpdate, 0, len(tasks))
	for _, t := range result.Completed {
		final = append(final, models.ClientTaskUpdate{ID: t.ID, State: t.State, Report: t.Report})
	}
	for _, t := range result.Failed {
		final = append(final, models.ClientTaskUpdate{ID: t.ID, State: t.State, Report: t.Report})
	}

	var reportErr error
	if _, err := s.api.UpdateClientTasks(ctx, creds.VaultAccessToken, final); err != nil {
		reportErr = fmt.Errorf("reporting task states: %w", err)
	}

	if s.journal != nil {
		if err := s.journal.RecordTaskRun(ctx, result); err != nil {
			s.log.Warn(ctx, "failed to record task run", "error", err)
		}
	}

	s.log.Info(ctx, "client tasks executed", "completed", len(result.Completed), "failed", len(result.Failed))
	return result, reportErr
}

func (s *clientTaskQueueService) run(ctx context.Context, creds *models.AuthData, t models.ClientTask) error {
	switch t.WorkType {
	case models.WorkTypeUpdateItemShares:
		return s.shares.UpdateSharedItem(ctx, creds, t.TargetID)
	default:
		return fmt.Errorf("%w: %s", common.ErrUnknownWorkType, t.WorkType)
	}
}

func stateUpdates(tasks []models.ClientTask, state models.ClientTaskState) []models.ClientTaskUpdate {
	out := make([]models.ClientTaskUpdate, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, models.ClientTaskUpdate{ID: t.ID, State: state, Report: t.Report})
	}
	return out
}
