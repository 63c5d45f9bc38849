package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csrc-disclosure/fundreport-sync/internal/ingesterr"
	"github.com/csrc-disclosure/fundreport-sync/internal/model"
	"github.com/csrc-disclosure/fundreport-sync/internal/resilience"
)

func TestDeadLetterActivity_EnqueuesEntry(t *testing.T) {
	dlq := resilience.NewMemoryDLQ()
	a := &Activities{DeadLetters: dlq}

	err := a.DeadLetterActivity(context.Background(), DeadLetterParams{
		TaskID:       "task-1",
		UploadInfoID: "upload-1",
		FailedStep:   "parse",
		Kind:         model.ItemErrorParse,
		Message:      "parser: all extraction strategies exhausted",
	})
	require.NoError(t, err)

	entries := dlq.List(resilience.DLQFilter{})
	require.Len(t, entries, 1)
	assert.Equal(t, "upload-1", entries[0].Subject)
	assert.Equal(t, "parse", entries[0].FailedStep)
	assert.Equal(t, "permanent", entries[0].ErrorType)
}

func TestDeadLetterActivity_ClassifiesNetworkKindAsTransient(t *testing.T) {
	dlq := resilience.NewMemoryDLQ()
	a := &Activities{DeadLetters: dlq}

	err := a.DeadLetterActivity(context.Background(), DeadLetterParams{
		UploadInfoID: "upload-2",
		FailedStep:   "download",
		Kind:         model.ItemErrorNetwork,
		Message:      "connection reset by peer",
	})
	require.NoError(t, err)

	entries := dlq.List(resilience.DLQFilter{})
	require.Len(t, entries, 1)
	assert.Equal(t, "transient", entries[0].ErrorType)
}

func TestDeadLetterActivity_NilQueueIsNoop(t *testing.T) {
	a := &Activities{}
	err := a.DeadLetterActivity(context.Background(), DeadLetterParams{UploadInfoID: "upload-3"})
	require.NoError(t, err)
}

func TestAggregateStatus(t *testing.T) {
	persisted := map[string]model.ItemOutcome{
		"1": {Status: model.ItemStatusPersisted},
		"2": {Status: model.ItemStatusPersisted},
	}
	mixed := map[string]model.ItemOutcome{
		"1": {Status: model.ItemStatusPersisted},
		"2": {Status: model.ItemStatusFailed},
	}
	failed := map[string]model.ItemOutcome{
		"1": {Status: model.ItemStatusFailed},
	}

	assert.Equal(t, model.TaskStatusCompleted, aggregateStatus(false, persisted))
	assert.Equal(t, model.TaskStatusPartial, aggregateStatus(false, mixed))
	assert.Equal(t, model.TaskStatusFailed, aggregateStatus(false, failed))
	assert.Equal(t, model.TaskStatusCancelled, aggregateStatus(true, mixed))
}

func TestClassifyDownloadErr(t *testing.T) {
	httpErr := classifyDownloadErr(assertErr("downloader: unexpected status 404 from https://example.invalid"))
	assert.Equal(t, model.ItemErrorHTTP, ingesterr.Classify(httpErr))

	netErr := classifyDownloadErr(assertErr("dial tcp: connection refused"))
	assert.Equal(t, model.ItemErrorNetwork, ingesterr.Classify(netErr))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
