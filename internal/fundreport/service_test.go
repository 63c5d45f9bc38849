package fundreport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"

	"github.com/csrc-disclosure/fundreport-sync/internal/model"
	"github.com/csrc-disclosure/fundreport-sync/internal/taskstore"
)

type fakeSearcher struct {
	rows    []model.ReportRef
	hasNext bool
	err     error
	lastReq model.SearchCriteria
}

func (f *fakeSearcher) ListReports(_ context.Context, criteria model.SearchCriteria) ([]model.ReportRef, bool, error) {
	f.lastReq = criteria
	return f.rows, f.hasNext, f.err
}

type fakeWorkflowStarter struct {
	executeErr error
	cancelErr  error
	executed   []string
	cancelled  []string
}

func (f *fakeWorkflowStarter) ExecuteWorkflow(_ context.Context, options client.StartWorkflowOptions, _ interface{}, _ ...interface{}) (client.WorkflowRun, error) {
	if f.executeErr != nil {
		return nil, f.executeErr
	}
	f.executed = append(f.executed, options.ID)
	return nil, nil
}

func (f *fakeWorkflowStarter) CancelWorkflow(_ context.Context, workflowID, _ string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, workflowID)
	return nil
}

func (f *fakeWorkflowStarter) Close() {}

// fakeTaskStore is an in-memory taskstore.Store good enough to drive
// EnqueueBatch/TaskStatus/CancelBatch without a real database.
type fakeTaskStore struct {
	tasks map[string]*model.DownloadTask
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[string]*model.DownloadTask)}
}

func (f *fakeTaskStore) Create(_ context.Context, saveDir string, refs []string) (*model.DownloadTask, error) {
	task := &model.DownloadTask{
		TaskID:        "task-1",
		Status:        model.TaskStatusPending,
		SaveDir:       saveDir,
		RequestedRefs: refs,
		PerItem:       make(map[string]model.ItemOutcome, len(refs)),
	}
	for _, ref := range refs {
		task.PerItem[ref] = model.ItemOutcome{Status: model.ItemStatusPending}
	}
	task.Progress = model.ComputeProgress(task.PerItem)
	f.tasks[task.TaskID] = task
	return task, nil
}

func (f *fakeTaskStore) UpdateStatus(_ context.Context, taskID string, status model.TaskStatus) error {
	task, ok := f.tasks[taskID]
	if !ok {
		return taskstore.ErrNotFound
	}
	task.Status = status
	return nil
}

func (f *fakeTaskStore) UpdateItem(_ context.Context, taskID, uploadInfoID string, outcome model.ItemOutcome) error {
	task, ok := f.tasks[taskID]
	if !ok {
		return taskstore.ErrNotFound
	}
	task.PerItem[uploadInfoID] = outcome
	task.Progress = model.ComputeProgress(task.PerItem)
	return nil
}

func (f *fakeTaskStore) Get(_ context.Context, taskID string) (*model.DownloadTask, error) {
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, taskstore.ErrNotFound
	}
	return task, nil
}

func TestSearch_RejectsInvalidCriteria(t *testing.T) {
	svc := NewService(Config{Portal: &fakeSearcher{}})
	_, _, err := svc.Search(context.Background(), model.SearchCriteria{})
	require.Error(t, err)
}

func TestSearch_DelegatesToPortal(t *testing.T) {
	portal := &fakeSearcher{rows: []model.ReportRef{{UploadInfoID: "1"}}, hasNext: true}
	svc := NewService(Config{Portal: portal})

	rows, hasNext, err := svc.Search(context.Background(), model.SearchCriteria{ReportType: model.ReportTypeFundProfile, FundCode: "000001"})
	require.NoError(t, err)
	assert.True(t, hasNext)
	assert.Len(t, rows, 1)
	assert.Equal(t, model.ReportTypeFundProfile, portal.lastReq.ReportType)
}

func TestEnqueueBatch_RejectsEmptyRefs(t *testing.T) {
	svc := NewService(Config{Tasks: newFakeTaskStore(), Temporal: &fakeWorkflowStarter{}})
	_, err := svc.EnqueueBatch(context.Background(), nil, "/tmp/out")
	require.Error(t, err)
}

func TestEnqueueBatch_RejectsOverCapBatch(t *testing.T) {
	svc := NewService(Config{Tasks: newFakeTaskStore(), Temporal: &fakeWorkflowStarter{}, MaxBatchSize: 1})
	refs := []model.ReportRef{{UploadInfoID: "1"}, {UploadInfoID: "2"}}
	_, err := svc.EnqueueBatch(context.Background(), refs, "/tmp/out")
	require.Error(t, err)
}

func TestEnqueueBatch_StartsWorkflowAndMarksRunning(t *testing.T) {
	tasks := newFakeTaskStore()
	temporal := &fakeWorkflowStarter{}
	svc := NewService(Config{Tasks: tasks, Temporal: temporal, TaskQueue: "fundreport-ingest"})

	taskID, err := svc.EnqueueBatch(context.Background(), []model.ReportRef{{UploadInfoID: "1"}}, "/tmp/out")
	require.NoError(t, err)
	assert.Equal(t, []string{taskID}, temporal.executed)

	task, err := svc.TaskStatus(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusRunning, task.Status)
}

func TestEnqueueBatch_MarksFailedWhenWorkflowStartFails(t *testing.T) {
	tasks := newFakeTaskStore()
	temporal := &fakeWorkflowStarter{executeErr: assertErr("temporal down")}
	svc := NewService(Config{Tasks: tasks, Temporal: temporal})

	_, err := svc.EnqueueBatch(context.Background(), []model.ReportRef{{UploadInfoID: "1"}}, "/tmp/out")
	require.Error(t, err)

	task, getErr := tasks.Get(context.Background(), "task-1")
	require.NoError(t, getErr)
	assert.Equal(t, model.TaskStatusFailed, task.Status)
}

func TestCancelBatch_SkipsAlreadyTerminalTask(t *testing.T) {
	tasks := newFakeTaskStore()
	task, _ := tasks.Create(context.Background(), "/tmp/out", []string{"1"})
	task.Status = model.TaskStatusCompleted
	temporal := &fakeWorkflowStarter{}
	svc := NewService(Config{Tasks: tasks, Temporal: temporal})

	err := svc.CancelBatch(context.Background(), task.TaskID)
	require.NoError(t, err)
	assert.Empty(t, temporal.cancelled)
}

func TestCancelBatch_RequestsCancellationForRunningTask(t *testing.T) {
	tasks := newFakeTaskStore()
	task, _ := tasks.Create(context.Background(), "/tmp/out", []string{"1"})
	task.Status = model.TaskStatusRunning
	temporal := &fakeWorkflowStarter{}
	svc := NewService(Config{Tasks: tasks, Temporal: temporal})

	err := svc.CancelBatch(context.Background(), task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, []string{task.TaskID}, temporal.cancelled)

	updated, err := tasks.Get(context.Background(), task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCancelling, updated.Status)
}

type simpleError string

func (e simpleError) Error() string { return string(e) }

func assertErr(msg string) error { return simpleError(msg) }
