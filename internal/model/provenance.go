package model

import "time"

// ProvenanceAttempt records one extraction attempt at resolving a field,
// whichever parser stage produced it. Adapted from the teacher's
// FieldProvenance pattern (pkg research: attempts accumulate across
// escalating extraction tiers; here the tiers are XBRL → iXBRL → HTML →
// LLM instead of crawl → search → LLM).
type ProvenanceAttempt struct {
	Source     string    `json:"source"` // "xbrl", "ixbrl", "html", "llm"
	Concept    string    `json:"concept,omitempty"`
	Value      string    `json:"value"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning,omitempty"`
	DataAsOf   time.Time `json:"data_as_of"`
}

// FieldProvenance tracks every attempt made to resolve a single field,
// plus which attempt ultimately won.
type FieldProvenance struct {
	Field      string              `json:"field"`
	Attempts   []ProvenanceAttempt `json:"attempts"`
	WinningIdx int                 `json:"winning_idx"`
}
