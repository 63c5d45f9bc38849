// Package fundreport implements C14, the Fund Report Service: the
// single public surface of the core (spec.md §4.14/§6.4). Every
// external host — HTTP, CLI, messaging — maps 1:1 onto these five
// operations without adding business logic of its own.
//
// Grounded on the teacher's cmd/ wiring style (consulted, not copied,
// per DESIGN.md) of composing config → clients → a thin façade type;
// here that façade fans out to C1/C2 (search), C11/C13 (ingest), and
// C10 (direct reparse).
package fundreport

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"

	"github.com/csrc-disclosure/fundreport-sync/internal/ingesterr"
	"github.com/csrc-disclosure/fundreport-sync/internal/model"
	"github.com/csrc-disclosure/fundreport-sync/internal/orchestrator"
	"github.com/csrc-disclosure/fundreport-sync/internal/parser"
	"github.com/csrc-disclosure/fundreport-sync/internal/portal"
	"github.com/csrc-disclosure/fundreport-sync/internal/taskstore"
)

// Searcher is the subset of portal.Client the service needs; narrowed
// to an interface so tests can substitute a fake portal without
// standing up an httptest server for every case.
type Searcher interface {
	ListReports(ctx context.Context, criteria model.SearchCriteria) ([]model.ReportRef, bool, error)
}

// WorkflowStarter is the subset of client.Client the service needs to
// kick off and cancel a batch workflow. *client's concrete
// go.temporal.io/sdk/client.Client satisfies this directly.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	CancelWorkflow(ctx context.Context, workflowID, runID string) error
	Close()
}

// Service is C14's concrete implementation.
type Service struct {
	Portal       Searcher
	Tasks        taskstore.Store
	Facade       *parser.Facade
	Temporal     WorkflowStarter
	TaskQueue    string
	MaxBatchSize int
}

// Config bundles Service's dependencies at construction time.
type Config struct {
	Portal       Searcher
	Tasks        taskstore.Store
	Facade       *parser.Facade
	Temporal     WorkflowStarter
	TaskQueue    string
	MaxBatchSize int
}

// NewService builds a Service. MaxBatchSize <= 0 means "use the
// spec's default cap of 500" (spec.md §5's back-pressure rule).
func NewService(cfg Config) *Service {
	max := cfg.MaxBatchSize
	if max <= 0 {
		max = 500
	}
	return &Service{
		Portal:       cfg.Portal,
		Tasks:        cfg.Tasks,
		Facade:       cfg.Facade,
		Temporal:     cfg.Temporal,
		TaskQueue:    cfg.TaskQueue,
		MaxBatchSize: max,
	}
}

// Search validates criteria via C1 and delegates to the portal client
// (C2), matching spec.md §4.14's search(criteria) → {rows, has_next}.
func (s *Service) Search(ctx context.Context, criteria model.SearchCriteria) ([]model.ReportRef, bool, error) {
	if err := portal.Validate(criteria); err != nil {
		return nil, false, ingesterr.NewValidationError("%s", err.Error())
	}
	rows, hasNext, err := s.Portal.ListReports(ctx, criteria)
	if err != nil {
		return nil, false, eris.Wrap(err, "fundreport: search")
	}
	return rows, hasNext, nil
}

// EnqueueBatch persists a PENDING DownloadTask, starts the batch
// workflow (C11), and flips the task to RUNNING before returning —
// spec.md §4.14's "returns immediately with 202-like semantics" and
// §3's "created by the service, transitions once into RUNNING" task
// lifecycle. Refusing an over-cap batch is spec.md §5's back-pressure
// rule; it is checked before any task row is written.
func (s *Service) EnqueueBatch(ctx context.Context, refs []model.ReportRef, saveDir string) (string, error) {
	if len(refs) == 0 {
		return "", ingesterr.NewValidationError("enqueue_batch: refs must be non-empty")
	}
	if len(refs) > s.MaxBatchSize {
		return "", ingesterr.NewValidationError("enqueue_batch: %d reports exceeds configured cap of %d", len(refs), s.MaxBatchSize)
	}

	uploadIDs := make([]string, len(refs))
	for i, ref := range refs {
		uploadIDs[i] = ref.UploadInfoID
	}

	task, err := s.Tasks.Create(ctx, saveDir, uploadIDs)
	if err != nil {
		return "", eris.Wrap(err, "fundreport: create task")
	}

	_, err = s.Temporal.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        task.TaskID,
		TaskQueue: s.TaskQueue,
	}, orchestrator.BatchIngestWorkflow, orchestrator.BatchIngestParams{
		TaskID:  task.TaskID,
		SaveDir: saveDir,
		Refs:    refs,
	})
	if err != nil {
		_ = s.Tasks.UpdateStatus(ctx, task.TaskID, model.TaskStatusFailed)
		return "", eris.Wrap(err, "fundreport: start batch workflow")
	}

	if err := s.Tasks.UpdateStatus(ctx, task.TaskID, model.TaskStatusRunning); err != nil {
		return "", eris.Wrap(err, "fundreport: mark task running")
	}

	return task.TaskID, nil
}

// TaskStatus is a read-through onto the task store, spec.md §4.14's
// status(task_id) → DownloadTask.
func (s *Service) TaskStatus(ctx context.Context, taskID string) (*model.DownloadTask, error) {
	task, err := s.Tasks.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, taskstore.ErrNotFound) {
			return nil, err
		}
		return nil, eris.Wrapf(err, "fundreport: task status %s", taskID)
	}
	return task, nil
}

// CancelBatch requests cooperative cancellation of an in-flight batch
// (spec.md §4.11's CANCELLING → CANCELLED lifecycle). A task already
// in a terminal state is left untouched rather than erroring — asking
// to cancel something that already finished is not itself a failure.
func (s *Service) CancelBatch(ctx context.Context, taskID string) error {
	task, err := s.Tasks.Get(ctx, taskID)
	if err != nil {
		return eris.Wrapf(err, "fundreport: cancel batch %s", taskID)
	}
	if isTerminalStatus(task.Status) {
		return nil
	}
	if err := s.Tasks.UpdateStatus(ctx, taskID, model.TaskStatusCancelling); err != nil {
		return eris.Wrapf(err, "fundreport: mark cancelling %s", taskID)
	}
	if err := s.Temporal.CancelWorkflow(ctx, taskID, ""); err != nil {
		return eris.Wrapf(err, "fundreport: cancel workflow %s", taskID)
	}
	return nil
}

// ParseFile directly invokes the parser facade (C10) against a local
// artifact, useful for reparse workflows that bypass search/download
// entirely. Spec.md §4.14 gives parse(path) → ParsedFundReport no
// ReportRef argument, so report_type's ReportRef.ReportDesc fallback
// (spec.md §4.8) has nothing to read — callers that need it resolved
// should go through the normal ingest chain instead.
func (s *Service) ParseFile(ctx context.Context, path string) (*parser.ParseResult, error) {
	result, err := s.Facade.ParseFile(ctx, path, model.ReportRef{})
	if err != nil {
		return nil, eris.Wrapf(err, "fundreport: parse file %s", path)
	}
	return result, nil
}

func isTerminalStatus(status model.TaskStatus) bool {
	switch status {
	case model.TaskStatusCompleted, model.TaskStatusFailed, model.TaskStatusPartial, model.TaskStatusCancelled:
		return true
	default:
		return false
	}
}
