package orchestrator

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/csrc-disclosure/fundreport-sync/internal/model"
)

// Per-step timeouts and retry policy, spec.md §5/§4.11.
var (
	downloadActivityOpts = workflow.ActivityOptions{
		StartToCloseTimeout: 120 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	}
	parseActivityOpts = workflow.ActivityOptions{
		StartToCloseTimeout: 60 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	}
	persistActivityOpts = workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	}
	recordActivityOpts = workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	}
	finalizeActivityOpts = workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
	}
)

// BatchIngestWorkflow is C11: it fans out one coroutine per requested
// report, each running download → parse → persist sequentially, waits
// for every coroutine to reach a terminal state, then finalizes the
// task's aggregate status exactly once (spec.md §4.11's
// "group(chains...).then(finalize(task_id))" pseudocode).
func BatchIngestWorkflow(ctx workflow.Context, params BatchIngestParams) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("batch ingest started", "task_id", params.TaskID, "refs", len(params.Refs))

	outcomes := make(map[string]model.ItemOutcome, len(params.Refs))

	futures := make([]workflow.Future, len(params.Refs))
	for i, ref := range params.Refs {
		ref := ref
		future, settable := workflow.NewFuture(ctx)
		futures[i] = future
		workflow.Go(ctx, func(gctx workflow.Context) {
			outcome := runChain(gctx, params.TaskID, params.SaveDir, ref)
			settable.Set(outcome, nil)
		})
	}

	cancelled := false
	for i, future := range futures {
		var outcome model.ItemOutcome
		if err := future.Get(ctx, &outcome); err != nil {
			outcome = model.ItemOutcome{Status: model.ItemStatusFailed, Error: &model.ItemError{Kind: model.ItemErrorParse, Message: err.Error()}}
		}
		outcomes[params.Refs[i].UploadInfoID] = outcome
		if outcome.Status == model.ItemStatusCancelled {
			cancelled = true
		}
	}

	// A disconnected context lets finalize still be scheduled after the
	// workflow has been cancelled, so a cancelled task gets its CANCELLED
	// status written.
	finalizeCtx, cancelFinalize := workflow.NewDisconnectedContext(ctx)
	defer cancelFinalize()
	finalizeCtx = workflow.WithActivityOptions(finalizeCtx, finalizeActivityOpts)
	var activities *Activities
	return workflow.ExecuteActivity(finalizeCtx, activities.FinalizeActivity, FinalizeParams{
		TaskID:    params.TaskID,
		Cancelled: cancelled,
		Outcomes:  outcomes,
	}).Get(finalizeCtx, nil)
}

// runChain executes one report's download → parse → persist chain,
// recording its live status in taskstore after each step (so a
// task_status read mid-batch reflects progress, not just the terminal
// state) and stopping short — marking the item CANCELLED — the moment
// the workflow context observes a cancellation request.
func runChain(ctx workflow.Context, taskID, saveDir string, ref model.ReportRef) model.ItemOutcome {
	var activities *Activities

	record := func(outcome model.ItemOutcome) {
		dctx, cancelRecord := workflow.NewDisconnectedContext(ctx)
		defer cancelRecord()
		rctx := workflow.WithActivityOptions(dctx, recordActivityOpts)
		_ = workflow.ExecuteActivity(rctx, activities.RecordItemActivity, RecordItemParams{
			TaskID: taskID, UploadInfoID: ref.UploadInfoID, Outcome: outcome,
		}).Get(rctx, nil)
	}

	deadLetter := func(step string, outcome model.ItemOutcome) {
		if outcome.Status != model.ItemStatusFailed || outcome.Error == nil {
			return
		}
		dctx := workflow.WithActivityOptions(ctx, recordActivityOpts)
		_ = workflow.ExecuteActivity(dctx, activities.DeadLetterActivity, DeadLetterParams{
			TaskID: taskID, UploadInfoID: ref.UploadInfoID, FailedStep: step,
			Kind: outcome.Error.Kind, Message: outcome.Error.Message,
		}).Get(dctx, nil)
	}

	if ctx.Err() != nil {
		outcome := model.ItemOutcome{Status: model.ItemStatusCancelled}
		record(outcome)
		return outcome
	}

	dctx := workflow.WithActivityOptions(ctx, downloadActivityOpts)
	var dlResult DownloadResult
	if err := workflow.ExecuteActivity(dctx, activities.DownloadActivity, DownloadParams{Ref: ref, SaveDir: saveDir}).Get(dctx, &dlResult); err != nil {
		outcome := model.ItemOutcome{Status: model.ItemStatusFailed, Error: errorFromActivity(err)}
		record(outcome)
		deadLetter("download", outcome)
		return outcome
	}
	record(model.ItemOutcome{Status: model.ItemStatusDownloaded, FilePath: dlResult.FilePath})

	if ctx.Err() != nil {
		outcome := model.ItemOutcome{Status: model.ItemStatusCancelled, FilePath: dlResult.FilePath}
		record(outcome)
		return outcome
	}

	pctx := workflow.WithActivityOptions(ctx, parseActivityOpts)
	var report ParsedReportDTO
	if err := workflow.ExecuteActivity(pctx, activities.ParseActivity, ParseParams{FilePath: dlResult.FilePath, Ref: ref}).Get(pctx, &report); err != nil {
		outcome := model.ItemOutcome{Status: model.ItemStatusFailed, FilePath: dlResult.FilePath, Error: errorFromActivity(err)}
		record(outcome)
		deadLetter("parse", outcome)
		return outcome
	}
	record(model.ItemOutcome{Status: model.ItemStatusParsed, FilePath: dlResult.FilePath})

	if ctx.Err() != nil {
		outcome := model.ItemOutcome{Status: model.ItemStatusCancelled, FilePath: dlResult.FilePath}
		record(outcome)
		return outcome
	}

	psctx := workflow.WithActivityOptions(ctx, persistActivityOpts)
	var persistResult PersistResult
	if err := workflow.ExecuteActivity(psctx, activities.PersistActivity, PersistParams{Report: &report}).Get(psctx, &persistResult); err != nil {
		outcome := model.ItemOutcome{Status: model.ItemStatusFailed, FilePath: dlResult.FilePath, Error: errorFromActivity(err)}
		record(outcome)
		deadLetter("persist", outcome)
		return outcome
	}

	outcome := model.ItemOutcome{Status: model.ItemStatusPersisted, FilePath: dlResult.FilePath, FundReportID: persistResult.FundReportID}
	record(outcome)
	return outcome
}

// errorFromActivity recovers the ItemErrorKind a Temporal
// ApplicationError was tagged with in wrapActivityErr, falling back to
// PARSE for anything that didn't originate there.
func errorFromActivity(err error) *model.ItemError {
	var appErr *temporal.ApplicationError
	if ok := errors.As(err, &appErr); ok {
		return &model.ItemError{Kind: model.ItemErrorKind(appErr.Type()), Message: appErr.Error()}
	}
	return &model.ItemError{Kind: model.ItemErrorParse, Message: err.Error()}
}
