// Package parser implements C10: the format-detection-driven facade
// that routes a downloaded artifact through iXBRL, XBRL, plain-HTML,
// and (optionally) LLM extraction, in that order, stopping at the
// first that succeeds.
package parser

import "github.com/csrc-disclosure/fundreport-sync/internal/model"

// AttemptOutcome is the result of one extraction attempt within a
// ParseResult's ordered history.
type AttemptOutcome string

const (
	OutcomeSuccess AttemptOutcome = "success"
	OutcomeFailed  AttemptOutcome = "failed"
	OutcomeSkipped AttemptOutcome = "skipped"
)

// Attempt records one parser kind's outcome, in routing order.
type Attempt struct {
	Kind    model.ParserKind `json:"kind"`
	Outcome AttemptOutcome   `json:"outcome"`
	Error   string           `json:"error,omitempty"`
}

// ParseResult is the tagged variant spec.md §9 calls for, rendered the
// idiomatic Go way since the language has no sum types: a Success
// discriminant plus an Attempted history that is always populated,
// win or lose. Report and Warnings are only meaningful when Success is
// true; Attempted always records every kind tried, in order.
type ParseResult struct {
	Success   bool                    `json:"success"`
	Report    *model.ParsedFundReport `json:"report,omitempty"`
	Warnings  []string                `json:"warnings,omitempty"`
	Attempted []Attempt               `json:"attempted"`
}

func succeeded(kind model.ParserKind, report *model.ParsedFundReport, warnings []string, attempts []Attempt) *ParseResult {
	return &ParseResult{
		Success:   true,
		Report:    report,
		Warnings:  warnings,
		Attempted: append(attempts, Attempt{Kind: kind, Outcome: OutcomeSuccess}),
	}
}

func failedAttempt(kind model.ParserKind, err error) Attempt {
	a := Attempt{Kind: kind, Outcome: OutcomeFailed}
	if err != nil {
		a.Error = err.Error()
	}
	return a
}
