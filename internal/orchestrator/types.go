// Package orchestrator implements C11: the Temporal workflow that fans
// out one download→parse→persist chain per requested report, then
// finalizes the batch's terminal DownloadTask status.
package orchestrator

import "github.com/csrc-disclosure/fundreport-sync/internal/model"

// Cross-activity data are plain structs only (spec.md §4.11's hard
// requirement), which for Temporal is also a correctness requirement:
// activity input/output must round-trip through the JSON data converter.

// BatchIngestParams starts a BatchIngestWorkflow.
type BatchIngestParams struct {
	TaskID  string            `json:"task_id"`
	SaveDir string            `json:"save_dir"`
	Refs    []model.ReportRef `json:"refs"`
}

// DownloadParams is DownloadActivity's input.
type DownloadParams struct {
	Ref     model.ReportRef `json:"ref"`
	SaveDir string          `json:"save_dir"`
}

// DownloadResult is DownloadActivity's output — a plain mirror of
// model.ArtifactRecord with nothing but data.
type DownloadResult struct {
	FilePath string `json:"file_path"`
	SHA256   string `json:"sha256"`
	Skipped  bool   `json:"skipped"`
}

// ParseParams is ParseActivity's input.
type ParseParams struct {
	FilePath string          `json:"file_path"`
	Ref      model.ReportRef `json:"ref"`
}

// ParsedReportDTO is ParseActivity's output. model.ParsedFundReport is
// already a plain data structure with no ORM/persistence types mixed
// in, so it is reused directly rather than duplicated field-for-field.
type ParsedReportDTO = model.ParsedFundReport

// PersistParams is PersistActivity's input.
type PersistParams struct {
	Report *ParsedReportDTO `json:"report"`
}

// PersistResult is PersistActivity's output.
type PersistResult struct {
	FundReportID string `json:"fund_report_id"`
}

// FinalizeParams is FinalizeActivity's input: the per-item outcomes
// accumulated by every chain, win or lose.
type FinalizeParams struct {
	TaskID    string                       `json:"task_id"`
	Cancelled bool                         `json:"cancelled"`
	Outcomes  map[string]model.ItemOutcome `json:"outcomes"`
}
