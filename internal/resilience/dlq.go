package resilience

import (
	"sync"
	"time"
)

// DLQEntry represents a failed download/parse/persist item that can be
// retried later. Subject identifies the failed item; the orchestrator's
// DeadLetterActivity sets it to the report's portal upload_info_id.
type DLQEntry struct {
	ID           string    `json:"id"`
	Subject      string    `json:"subject"`
	Error        string    `json:"error"`
	ErrorType    string    `json:"error_type"` // "transient" or "permanent"
	FailedStep   string    `json:"failed_step,omitempty"`
	RetryCount   int       `json:"retry_count"`
	MaxRetries   int       `json:"max_retries"`
	NextRetryAt  time.Time `json:"next_retry_at"`
	CreatedAt    time.Time `json:"created_at"`
	LastFailedAt time.Time `json:"last_failed_at"`
}

// DLQFilter specifies criteria for querying the dead letter queue.
type DLQFilter struct {
	ErrorType string `json:"error_type,omitempty"` // "transient", "permanent", or "" for all
	Limit     int    `json:"limit,omitempty"`
}

// CanRetry returns true if this entry hasn't exceeded its max retry count.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}

// MemoryDLQ is a process-local dead letter queue. A terminally failed
// item (the orchestrator's retry policy has already given up on it)
// lands here so an operator can inspect and manually replay it; nothing
// in this package depends on where entries ultimately get persisted.
type MemoryDLQ struct {
	mu      sync.Mutex
	entries []DLQEntry
}

// NewMemoryDLQ creates an empty dead letter queue.
func NewMemoryDLQ() *MemoryDLQ {
	return &MemoryDLQ{}
}

// Enqueue appends an entry.
func (q *MemoryDLQ) Enqueue(entry DLQEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, entry)
}

// List returns entries matching filter, most recently enqueued last.
func (q *MemoryDLQ) List(filter DLQFilter) []DLQEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]DLQEntry, 0, len(q.entries))
	for _, e := range q.entries {
		if filter.ErrorType != "" && e.ErrorType != filter.ErrorType {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// Len returns the number of entries currently queued.
func (q *MemoryDLQ) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
