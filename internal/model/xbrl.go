package model

import "time"

// XBRLPeriod is either an instant or a duration, per xbrli:context.
type XBRLPeriod struct {
	Instant  *time.Time `json:"instant,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// IsInstant reports whether this period is a point-in-time context.
func (p XBRLPeriod) IsInstant() bool {
	return p.Instant != nil
}

// XBRLContext is a resolved xbrli:context: its period plus any explicit
// dimension members from a scenario or segment block.
type XBRLContext struct {
	ID         string            `json:"id"`
	EntityID   string            `json:"entity_id"`
	Period     XBRLPeriod        `json:"period"`
	Dimensions map[string]string `json:"dimensions,omitempty"` // dimension QName -> member QName
}

// XBRLUnit is a resolved xbrli:unit (measure or numerator/denominator ratio).
type XBRLUnit struct {
	ID      string `json:"id"`
	Measure string `json:"measure,omitempty"`
	Numerator string `json:"numerator,omitempty"`
	Denominator string `json:"denominator,omitempty"`
}

// XBRLFact is one fact extracted from an instance document. Concepts that
// don't resolve against the loaded taxonomy are still surfaced here —
// nothing is silently dropped (spec's "ALL facts must be surfaced"
// invariant) — it's the concept mapper's job to decide what to do with
// an unmapped concept.
type XBRLFact struct {
	ConceptQName string  `json:"concept_qname"`
	ContextRef   string  `json:"context_ref"`
	UnitRef      string  `json:"unit_ref,omitempty"`
	Decimals     *int    `json:"decimals,omitempty"`
	RawValue     string  `json:"raw_value"`
}

// XBRLDocument is the fully parsed intermediate form handed from C6 to C8.
type XBRLDocument struct {
	SchemaRef string                  `json:"schema_ref"`
	Contexts  map[string]XBRLContext  `json:"contexts"`
	Units     map[string]XBRLUnit     `json:"units"`
	Facts     []XBRLFact              `json:"facts"`
}
