package orchestrator

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/temporal"

	"github.com/csrc-disclosure/fundreport-sync/internal/downloader"
	"github.com/csrc-disclosure/fundreport-sync/internal/fetcher"
	"github.com/csrc-disclosure/fundreport-sync/internal/ingesterr"
	"github.com/csrc-disclosure/fundreport-sync/internal/model"
	"github.com/csrc-disclosure/fundreport-sync/internal/parser"
	"github.com/csrc-disclosure/fundreport-sync/internal/persistence"
	"github.com/csrc-disclosure/fundreport-sync/internal/portal"
	"github.com/csrc-disclosure/fundreport-sync/internal/resilience"
	"github.com/csrc-disclosure/fundreport-sync/internal/taskstore"
)

// Activities bundles the dependencies C11's activities need. A
// single instance is registered with the Temporal worker (pool.go);
// its methods are the activities themselves.
type Activities struct {
	Portal      *portal.Client
	Fetcher     *fetcher.HTTPFetcher
	Facade      *parser.Facade
	Persist     *persistence.Store
	Tasks       taskstore.Store
	DeadLetters *resilience.MemoryDLQ
}

// DownloadActivity streams the report to SaveDir (spec.md §4.11's
// download(ref) → file_path step).
func (a *Activities) DownloadActivity(ctx context.Context, params DownloadParams) (DownloadResult, error) {
	viewURL := a.Portal.ResolveDownloadURL(params.Ref)
	dl := downloader.New(a.Fetcher, params.SaveDir)

	artifact, err := dl.Download(ctx, params.Ref, viewURL, "")
	if err != nil {
		return DownloadResult{}, wrapActivityErr(classifyDownloadErr(err))
	}
	return DownloadResult{FilePath: artifact.Path, SHA256: artifact.SHA256, Skipped: artifact.Skipped}, nil
}

// ParseActivity routes the downloaded artifact through C10 (spec.md
// §4.11's parse(file_path) → ParsedFundReport step).
func (a *Activities) ParseActivity(ctx context.Context, params ParseParams) (*ParsedReportDTO, error) {
	result, err := a.Facade.ParseFile(ctx, params.FilePath, params.Ref)
	if err != nil {
		return nil, wrapActivityErr(ingesterr.NewFormatError(err))
	}
	if !result.Success {
		return nil, wrapActivityErr(ingesterr.NewParseError(eris.New("parser: all extraction strategies exhausted")))
	}
	return result.Report, nil
}

// PersistActivity writes the parsed report (spec.md §4.11's
// persist(report) → fund_report_id step).
func (a *Activities) PersistActivity(ctx context.Context, params PersistParams) (PersistResult, error) {
	id, err := a.Persist.Save(ctx, params.Report)
	if err != nil {
		return PersistResult{}, wrapActivityErr(err)
	}
	return PersistResult{FundReportID: id}, nil
}

// RecordItemParams is RecordItemActivity's input: the live progress
// update taskstore (C13) needs after each chain step completes.
type RecordItemParams struct {
	TaskID       string           `json:"task_id"`
	UploadInfoID string           `json:"upload_info_id"`
	Outcome      model.ItemOutcome `json:"outcome"`
}

// RecordItemActivity persists one item's current outcome. Called after
// every chain step so a task_status read mid-batch reflects live
// progress, not just the terminal state.
func (a *Activities) RecordItemActivity(ctx context.Context, params RecordItemParams) error {
	return a.Tasks.UpdateItem(ctx, params.TaskID, params.UploadInfoID, params.Outcome)
}

// DeadLetterParams is DeadLetterActivity's input: one chain step that
// failed and exhausted Temporal's RetryPolicy for that activity, so the
// item's chain is done retrying for good.
type DeadLetterParams struct {
	TaskID       string
	UploadInfoID string
	FailedStep   string
	Kind         model.ItemErrorKind
	Message      string
}

// DeadLetterActivity records a terminally failed item in the dead
// letter queue (spec.md §7's retry policy column has nothing left to
// try), so an operator can inspect or manually replay it later instead
// of it only living buried in the task's per_item outcome map.
func (a *Activities) DeadLetterActivity(ctx context.Context, params DeadLetterParams) error {
	if a.DeadLetters == nil {
		return nil
	}
	now := time.Now().UTC()
	a.DeadLetters.Enqueue(resilience.DLQEntry{
		ID:           uuid.New().String(),
		Subject:      params.UploadInfoID,
		Error:        params.Message,
		ErrorType:    classifyDeadLetter(params.Kind, params.Message),
		FailedStep:   params.FailedStep,
		MaxRetries:   3,
		CreatedAt:    now,
		LastFailedAt: now,
	})
	return nil
}

// classifyDeadLetter reuses resilience's transient/permanent split:
// kinds that originate from connectivity rather than the document
// itself are tagged transient, so DLQFilter can surface "worth
// retrying" entries separately from permanently malformed ones.
func classifyDeadLetter(kind model.ItemErrorKind, message string) string {
	switch kind {
	case model.ItemErrorNetwork, model.ItemErrorTimeout, model.ItemErrorHTTP, model.ItemErrorDBTransport:
		return resilience.ClassifyError(resilience.NewTransientError(eris.New(message), 0))
	default:
		return resilience.ClassifyError(eris.New(message))
	}
}

// FinalizeActivity aggregates the batch's outcomes into the task's
// terminal status and writes it once (spec.md §4.11's finalize step).
func (a *Activities) FinalizeActivity(ctx context.Context, params FinalizeParams) error {
	status := aggregateStatus(params.Cancelled, params.Outcomes)
	return a.Tasks.UpdateStatus(ctx, params.TaskID, status)
}

// aggregateStatus implements spec.md §4.11's finalize rule: COMPLETED
// if every item persisted, FAILED if none did, PARTIAL otherwise — or
// CANCELLED when the task was cancelled before all chains finished.
func aggregateStatus(cancelled bool, outcomes map[string]model.ItemOutcome) model.TaskStatus {
	if cancelled {
		return model.TaskStatusCancelled
	}
	var persisted, other int
	for _, o := range outcomes {
		if o.Status == model.ItemStatusPersisted {
			persisted++
		} else {
			other++
		}
	}
	switch {
	case other == 0 && persisted > 0:
		return model.TaskStatusCompleted
	case persisted == 0:
		return model.TaskStatusFailed
	default:
		return model.TaskStatusPartial
	}
}

// downloadStatusPattern recovers the HTTP status code fetcher embeds in
// its error message (e.g. "download: unexpected status 404 from ..."),
// since internal/fetcher has no typed status-code error of its own.
var downloadStatusPattern = regexp.MustCompile(`status (\d{3})`)

// classifyDownloadErr maps a downloader failure to the taxonomy's
// HTTPError when a status code is recoverable from the message, and to
// a transport-level NetworkError otherwise (connection reset, DNS,
// timeout — all of which fetcher surfaces as bare wrapped errors).
func classifyDownloadErr(err error) error {
	if m := downloadStatusPattern.FindStringSubmatch(err.Error()); m != nil {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil {
			return ingesterr.NewHTTPError(code)
		}
	}
	return ingesterr.NewNetworkError(err)
}

// wrapActivityErr turns an ingesterr-classified error into a Temporal
// ApplicationError carrying the ItemErrorKind as its Type, and marks it
// non-retryable when ingesterr.ShouldRetry says the step must not be
// retried (Temporal's own RetryPolicy governs the rest).
func wrapActivityErr(err error) error {
	kind := ingesterr.Classify(err)
	if ingesterr.ShouldRetry(err) {
		return temporal.NewApplicationErrorWithCause(err.Error(), string(kind), err)
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), string(kind), err)
}
