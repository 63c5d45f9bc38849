package model

import "time"

// TaskStatus is the lifecycle state of a batch ingestion task (C11/C13).
// A task transitions once into RUNNING, then terminally into COMPLETED,
// FAILED, or PARTIAL — or, on a cancel request, cooperatively through
// CANCELLING into CANCELLED (spec §4.11).
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusRunning    TaskStatus = "RUNNING"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusFailed     TaskStatus = "FAILED"
	TaskStatusPartial    TaskStatus = "PARTIAL"
	TaskStatusCancelling TaskStatus = "CANCELLING"
	TaskStatusCancelled  TaskStatus = "CANCELLED"
)

// ItemStatus tracks a single report's progress through its
// download→parse→persist chain.
type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "PENDING"
	ItemStatusDownloaded ItemStatus = "DOWNLOADED"
	ItemStatusParsed    ItemStatus = "PARSED"
	ItemStatusPersisted ItemStatus = "PERSISTED"
	ItemStatusFailed    ItemStatus = "FAILED"
	ItemStatusCancelled ItemStatus = "CANCELLED"
)

// ItemErrorKind classifies why a chain stopped short of PERSISTED,
// following the error taxonomy in spec.md §7.
type ItemErrorKind string

const (
	ItemErrorHTTP       ItemErrorKind = "HTTP"
	ItemErrorNetwork    ItemErrorKind = "NETWORK"
	ItemErrorTimeout    ItemErrorKind = "TIMEOUT"
	ItemErrorFormat     ItemErrorKind = "FORMAT"
	ItemErrorParse      ItemErrorKind = "PARSE"
	ItemErrorDBTransport ItemErrorKind = "DB_TRANSPORT"
	ItemErrorDBConstraint ItemErrorKind = "DB_CONSTRAINT"
	ItemErrorCancelled  ItemErrorKind = "CANCELLED"
)

// ItemError is the structured failure recorded on an ItemOutcome.
type ItemError struct {
	Kind    ItemErrorKind `json:"kind"`
	Message string        `json:"message"`
}

// ItemOutcome is the current (or terminal) state of one report within
// a DownloadTask's batch.
type ItemOutcome struct {
	Status       ItemStatus `json:"status"`
	FilePath     string     `json:"file_path,omitempty"`
	FundReportID string     `json:"fund_report_id,omitempty"`
	Error        *ItemError `json:"error,omitempty"`
}

// TaskProgress is always recomputed from PerItem, never drifted
// incrementally (spec §4.13's anti-drift requirement, invariant 3 in
// spec §8: total == completed+failed+cancelled for a finished task).
type TaskProgress struct {
	Total     int     `json:"total"`
	Completed int     `json:"completed"`
	Failed    int     `json:"failed"`
	Percent   float64 `json:"percent"`
}

// ComputeProgress derives a TaskProgress from the current per-item map.
// "Completed" counts PERSISTED items only; PENDING/DOWNLOADED/PARSED
// items in flight count toward neither completed nor failed.
func ComputeProgress(perItem map[string]ItemOutcome) TaskProgress {
	p := TaskProgress{Total: len(perItem)}
	for _, it := range perItem {
		switch it.Status {
		case ItemStatusPersisted:
			p.Completed++
		case ItemStatusFailed, ItemStatusCancelled:
			p.Failed++
		}
	}
	if p.Total > 0 {
		p.Percent = float64(p.Completed+p.Failed) / float64(p.Total) * 100
	}
	return p
}

// DownloadTask is the durable record of a batch ingestion request (C13).
// Field names and shape mirror spec.md §3 and §6.3's download_task
// table verbatim.
type DownloadTask struct {
	TaskID        string                 `json:"task_id"`
	Status        TaskStatus             `json:"status"`
	SaveDir       string                 `json:"save_dir"`
	RequestedRefs []string               `json:"requested_refs"` // upload_info_id values, in request order
	PerItem       map[string]ItemOutcome `json:"per_item"`       // keyed by upload_info_id
	Progress      TaskProgress           `json:"progress"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}
