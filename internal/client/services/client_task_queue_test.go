package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dmitrijs2005/meecokeeper/internal/client/client"
	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
	"github.com/dmitrijs2005/meecokeeper/internal/common"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

// ---- fakes ----

type fakeTaskQueue struct {
	mu      sync.Mutex
	queries []client.ClientTaskQuery
	updates [][]models.ClientTaskUpdate

	pages     map[string]*client.ClientTasksPage
	updateErr func(batch int) error
}

func (f *fakeTaskQueue) ListClientTasks(ctx context.Context, token string, q client.ClientTaskQuery) (*client.ClientTasksPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	p, ok := f.pages[string(q.State)+"|"+q.NextPageAfter]
	if !ok {
		return &client.ClientTasksPage{}, nil
	}
	return p, nil
}

func (f *fakeTaskQueue) UpdateClientTasks(ctx context.Context, token string, updates []models.ClientTaskUpdate) ([]models.ClientTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updates)
	if f.updateErr != nil {
		if err := f.updateErr(len(f.updates)); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

type fakeShares struct {
	ShareService

	mu      sync.Mutex
	started []string
	update  func(itemID string) error
}

func (f *fakeShares) UpdateSharedItem(ctx context.Context, creds *models.AuthData, itemID string) error {
	f.mu.Lock()
	f.started = append(f.started, itemID)
	f.mu.Unlock()
	return f.update(itemID)
}

type fakeJournal struct {
	runs []*models.TaskResult
}

func (j *fakeJournal) RecordTaskRun(ctx context.Context, result *models.TaskResult) error {
	j.runs = append(j.runs, result)
	return nil
}

func task(id, target string, state models.ClientTaskState) models.ClientTask {
	return models.ClientTask{ID: id, WorkType: models.WorkTypeUpdateItemShares, TargetID: target, State: state}
}

func page(next string, tasks ...models.ClientTask) *client.ClientTasksPage {
	p := &client.ClientTasksPage{ClientTasks: tasks}
	p.NextPageAfter = next
	p.Meta = []models.PageMeta{{NextPageExists: next != ""}}
	return p
}

// ---- TESTS ----

func TestExecute_RejectsNonStartableBeforeAnyWrite(t *testing.T) {
	for _, st := range []models.ClientTaskState{models.ClientTaskInProgress, models.ClientTaskDone} {
		t.Run(string(st), func(t *testing.T) {
			q := &fakeTaskQueue{}
			shares := &fakeShares{update: func(string) error { return nil }}
			svc := NewClientTaskQueueService(q, shares, testDeps())

			_, err := svc.Execute(context.Background(), &models.AuthData{}, []models.ClientTask{
				task("t1", "i1", models.ClientTaskTodo),
				task("t2", "i2", st),
			})
			require.ErrorIs(t, err, common.ErrTaskNotStartable)
			assert.Contains(t, err.Error(), "t2")
			assert.Empty(t, q.updates)
			assert.Empty(t, shares.started)
		})
	}
}

func TestExecute_RejectsUnknownWorkType(t *testing.T) {
	q := &fakeTaskQueue{}
	shares := &fakeShares{update: func(string) error { return nil }}
	svc := NewClientTaskQueueService(q, shares, testDeps())

	bad := task("t2", "i2", models.ClientTaskTodo)
	bad.WorkType = "rotate_keys"
	_, err := svc.Execute(context.Background(), &models.AuthData{}, []models.ClientTask{task("t1", "i1", models.ClientTaskTodo), bad})
	require.ErrorIs(t, err, common.ErrUnknownWorkType)
	assert.Contains(t, err.Error(), "rotate_keys")
	assert.Empty(t, q.updates)
	assert.Empty(t, shares.started)
}

func TestExecute_PartitionsResults(t *testing.T) {
	boom := errors.New("boom")
	q := &fakeTaskQueue{}
	shares := &fakeShares{update: func(itemID string) error {
		if itemID == "i2" || itemID == "i4" {
			return boom
		}
		return nil
	}}
	journal := &fakeJournal{}
	svc := NewClientTaskQueueService(q, shares, testDeps(), WithJournal(journal))

	report, err := structpb.NewStruct(map[string]any{"attempt": 2})
	require.NoError(t, err)

	in := []models.ClientTask{
		task("t1", "i1", models.ClientTaskTodo),
		task("t2", "i2", models.ClientTaskTodo),
		task("t3", "i3", models.ClientTaskFailed),
		task("t4", "i4", models.ClientTaskFailed),
	}
	in[0].Report = report

	res, err := svc.Execute(context.Background(), &models.AuthData{VaultAccessToken: "v"}, in)
	require.NoError(t, err)

	seen := map[string]int{}
	for _, c := range res.Completed {
		seen[c.ID]++
		assert.Equal(t, models.ClientTaskDone, c.State)
	}
	for _, f := range res.Failed {
		seen[f.ID]++
		assert.Equal(t, models.ClientTaskFailed, f.State)
		require.ErrorIs(t, f.FailureReason, boom)
	}
	assert.Equal(t, map[string]int{"t1": 1, "t2": 1, "t3": 1, "t4": 1}, seen)
	assert.Len(t, res.Completed, 2)
	assert.Len(t, res.Failed, 2)
	assert.ElementsMatch(t, []string{"i1", "i2", "i3", "i4"}, shares.started)

	require.Len(t, q.updates, 2)
	for _, u := range q.updates[0] {
		assert.Equal(t, models.ClientTaskInProgress, u.State)
	}

	final := map[string]models.ClientTaskState{}
	for _, u := range q.updates[1] {
		final[u.ID] = u.State
		if u.ID == "t1" {
			assert.True(t, cmp.Equal(report.AsMap(), u.Report.AsMap()))
		}
	}
	assert.Equal(t, map[string]models.ClientTaskState{
		"t1": models.ClientTaskDone,
		"t2": models.ClientTaskFailed,
		"t3": models.ClientTaskDone,
		"t4": models.ClientTaskFailed,
	}, final)

	require.Len(t, journal.runs, 1)
	assert.Same(t, res, journal.runs[0])
}

func TestExecute_SingleTaskBatch(t *testing.T) {
	for name, fail := range map[string]bool{"done": false, "failed": true} {
		t.Run(name, func(t *testing.T) {
			q := &fakeTaskQueue{}
			shares := &fakeShares{update: func(string) error {
				if fail {
					return errors.New("nope")
				}
				return nil
			}}
			res, err := NewClientTaskQueueService(q, shares, testDeps()).Execute(context.Background(), &models.AuthData{},
				[]models.ClientTask{task("only", "i1", models.ClientTaskTodo)})
			require.NoError(t, err)
			assert.Equal(t, 1, len(res.Completed)+len(res.Failed))
			if fail {
				require.Len(t, res.Failed, 1)
				assert.Equal(t, "only", res.Failed[0].ID)
			} else {
				require.Len(t, res.Completed, 1)
				assert.Equal(t, "only", res.Completed[0].ID)
			}
			require.Len(t, q.updates, 2)
		})
	}
}

func TestExecute_EmptyBatch(t *testing.T) {
	q := &fakeTaskQueue{}
	res, err := NewClientTaskQueueService(q, &fakeShares{}, testDeps()).Execute(context.Background(), &models.AuthData{}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Completed)
	assert.Empty(t, res.Failed)
	assert.Empty(t, q.updates)
}

func TestExecute_InProgressWriteFailsNothingRuns(t *testing.T) {
	q := &fakeTaskQueue{updateErr: func(batch int) error { return &client.APIError{StatusCode: 503} }}
	shares := &fakeShares{update: func(string) error { return nil }}
	_, err := NewClientTaskQueueService(q, shares, testDeps()).Execute(context.Background(), &models.AuthData{},
		[]models.ClientTask{task("t1", "i1", models.ClientTaskTodo)})
	require.ErrorIs(t, err, client.ErrUnavailable)
	assert.Empty(t, shares.started)
}

func TestExecute_FinalWriteFailureKeepsResult(t *testing.T) {
	q := &fakeTaskQueue{updateErr: func(batch int) error {
		if batch == 2 {
			return &client.APIError{StatusCode: 500}
		}
		return nil
	}}
	shares := &fakeShares{update: func(string) error { return nil }}
	res, err := NewClientTaskQueueService(q, shares, testDeps()).Execute(context.Background(), &models.AuthData{},
		[]models.ClientTask{task("t1", "i1", models.ClientTaskTodo)})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Len(t, res.Completed, 1)
}

func TestListAll_FollowsCursor(t *testing.T) {
	q := &fakeTaskQueue{pages: map[string]*client.ClientTasksPage{
		"todo|":   page("c1", task("t1", "i1", models.ClientTaskTodo), task("t2", "i2", models.ClientTaskTodo)),
		"todo|c1": page("", task("t3", "i3", models.ClientTaskTodo)),
	}}
	svc := NewClientTaskQueueService(q, &fakeShares{}, testDeps())

	all, err := svc.ListAll(context.Background(), "v", "", false)
	require.NoError(t, err)

	var manual []models.ClientTask
	for _, cursor := range []string{"", "c1"} {
		p, err := svc.List(context.Background(), "v", models.ClientTaskTodo, false, models.PageOptions{NextPageAfter: cursor, PerPage: 2})
		require.NoError(t, err)
		manual = append(manual, p.ClientTasks...)
	}

	if diff := cmp.Diff(manual, all); diff != "" {
		t.Fatalf("ListAll mismatch (-manual +all):\n%s", diff)
	}
	assert.Len(t, all, 3)
	for _, qq := range q.queries {
		assert.True(t, qq.SuppressChangingState)
		assert.Equal(t, models.ClientTaskTodo, qq.State)
	}
}

func TestList_ChangeStateOptIn(t *testing.T) {
	q := &fakeTaskQueue{}
	svc := NewClientTaskQueueService(q, &fakeShares{}, testDeps())
	_, err := svc.List(context.Background(), "v", models.ClientTaskTodo, true, models.PageOptions{})
	require.NoError(t, err)
	require.Len(t, q.queries, 1)
	assert.False(t, q.queries[0].SuppressChangingState)
}

func TestCountOutstandingTasks(t *testing.T) {
	q := &fakeTaskQueue{pages: map[string]*client.ClientTasksPage{
		"todo|":        page("", task("t1", "i1", models.ClientTaskTodo), task("t2", "i2", models.ClientTaskTodo)),
		"in_progress|": page("", task("t3", "i3", models.ClientTaskInProgress)),
	}}
	got, err := NewClientTaskQueueService(q, &fakeShares{}, testDeps()).CountOutstandingTasks(context.Background(), "v")
	require.NoError(t, err)
	assert.Equal(t, OutstandingTasks{Todo: 2, InProgress: 1}, got)
}
