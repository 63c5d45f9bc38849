package conceptmap

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/csrc-disclosure/fundreport-sync/internal/model"
)

// ratioSumTolerance is how far an allocation table's ratio column may
// drift from 1.0 before it costs confidence — rounding across dozens
// of holdings routinely leaves a residual of a few basis points.
const ratioSumTolerance = 0.02

// dateLayouts are tried in order when parsing a date-valued scalar fact.
var dateLayouts = []string{"2006-01-02", "20060102", "2006-01-02T15:04:05", time.RFC3339}

// Mapper resolves XBRLFacts against a Config to build a
// ParsedFundReport.
type Mapper struct {
	cfg *Config
}

// NewMapper builds a Mapper bound to cfg.
func NewMapper(cfg *Config) *Mapper {
	return &Mapper{cfg: cfg}
}

// Map translates doc's facts into a ParsedFundReport for ref, using tax
// (possibly a placeholder taxonomy) to flag fields resolved through a
// concept that was never backed by a real schema file. kind stamps the
// result's provenance (XBRL or iXBRL — the two callers of this mapper).
func (m *Mapper) Map(doc *model.XBRLDocument, ref model.ReportRef, tax *model.Taxonomy, kind model.ParserKind) (*model.ParsedFundReport, []string) {
	var warnings []string
	report := &model.ParsedFundReport{
		ReportRef:       ref,
		TaxonomyVersion: tax.Version,
		ParserKind:      kind,
		Confidence:      1.0,
		ParsedAt:        time.Now().UTC(),
	}

	byConceptAndContext := indexFacts(doc.Facts)

	report.ReportType, warnings = m.resolveReportType(byConceptAndContext, ref, warnings)

	for field, concept := range m.cfg.Scalars {
		facts := byConceptAndContext.byConcept[concept]
		if len(facts) == 0 {
			continue
		}
		fact := facts[0]
		warnings = append(warnings, placeholderWarning(tax, concept, field)...)

		switch field {
		case "fund_code":
			report.FundCode = strings.TrimSpace(fact.RawValue)
		case "fund_name":
			report.FundName = strings.TrimSpace(fact.RawValue)
		case "fund_manager":
			report.FundManager = strings.TrimSpace(fact.RawValue)
		case "report_period_start":
			if t, err := parseFactDate(fact.RawValue); err == nil {
				report.ReportPeriodStart = &t
			} else {
				warnings = append(warnings, fmt.Sprintf("conceptmap: scalar %s: %v", field, err))
			}
		case "report_period_end":
			if t, err := parseFactDate(fact.RawValue); err == nil {
				report.ReportPeriodEnd = t
			} else {
				warnings = append(warnings, fmt.Sprintf("conceptmap: scalar %s: %v", field, err))
			}
		case "net_asset_value":
			if v, err := decimalFromFact(fact); err == nil {
				report.NetAssetValue = v
			} else {
				warnings = append(warnings, fmt.Sprintf("conceptmap: scalar %s: %v", field, err))
			}
		case "total_net_assets":
			if v, err := decimalFromFact(fact); err == nil {
				report.TotalNetAssets = v
			} else {
				warnings = append(warnings, fmt.Sprintf("conceptmap: scalar %s: %v", field, err))
			}
		case "period_profit":
			if v, err := decimalFromFact(fact); err == nil {
				report.PeriodProfit = v
			} else {
				warnings = append(warnings, fmt.Sprintf("conceptmap: scalar %s: %v", field, err))
			}
		default:
			warnings = append(warnings, fmt.Sprintf("conceptmap: unrecognized scalar field %q in mapping config", field))
		}
	}

	if report.ReportPeriodEnd.IsZero() {
		if end, ok := latestInstant(doc.Contexts); ok {
			report.ReportPeriodEnd = end
			warnings = append(warnings, "conceptmap: report_period_end not found via scalar concept, derived from the latest instant context")
		}
	}

	allocations, w := m.mapAllocationTable(doc, byConceptAndContext, m.cfg.AssetAllocations)
	warnings = append(warnings, w...)
	report.AssetAllocations = make([]model.AssetAllocation, len(allocations))
	var ratioSum decimal.Decimal
	haveRatio := false
	for i, row := range allocations {
		report.AssetAllocations[i] = model.AssetAllocation{Category: row.member, Subtype: row.subtype, Amount: row.amount, Ratio: row.ratio}
		if row.ratio != nil {
			ratioSum = ratioSum.Add(*row.ratio)
			haveRatio = true
		}
	}
	if haveRatio {
		diff := ratioSum.Sub(decimal.NewFromInt(1)).Abs()
		if diff.GreaterThan(decimal.NewFromFloat(ratioSumTolerance)) {
			warnings = append(warnings, fmt.Sprintf("conceptmap: asset allocation ratios sum to %s, expected ~1.0", ratioSum.String()))
			report.Confidence -= 0.1
		}
	}

	industries, w := m.mapAllocationTable(doc, byConceptAndContext, m.cfg.IndustryAllocations)
	warnings = append(warnings, w...)
	report.IndustryAllocations = make([]model.IndustryAllocation, len(industries))
	for i, row := range industries {
		report.IndustryAllocations[i] = model.IndustryAllocation{
			IndustryCode:  row.subtype,
			IndustryName:  row.member,
			MarketValue:   row.amount,
			NetValueRatio: row.ratio,
		}
	}

	holdings, w := m.mapHoldings(doc, byConceptAndContext)
	warnings = append(warnings, w...)
	report.TopHoldings = holdings

	if report.Confidence < 0 {
		report.Confidence = 0
	}

	return report, warnings
}

// resolveReportType derives report_type from the configured
// document-period-type-like concept first; only when no such fact
// exists does it fall back to parsing ref.ReportDesc (spec.md §4.8 —
// never guessed from a date).
func (m *Mapper) resolveReportType(idx factIndex, ref model.ReportRef, warnings []string) (model.ReportType, []string) {
	if m.cfg.ReportType.Concept != "" {
		if facts := idx.byConcept[m.cfg.ReportType.Concept]; len(facts) > 0 {
			raw := strings.TrimSpace(facts[0].RawValue)
			if mapped, ok := m.cfg.ReportType.Values[raw]; ok {
				return model.ReportType(mapped), warnings
			}
			warnings = append(warnings, fmt.Sprintf("conceptmap: report_type concept value %q has no configured mapping", raw))
		} else {
			warnings = append(warnings, "conceptmap: configured report_type concept not found in document facts, falling back to report_desc")
		}
	}
	return InferReportType(ref.ReportDesc), warnings
}

type factIndex struct {
	byConcept        map[string][]model.XBRLFact
	byConceptContext map[string]model.XBRLFact
}

func indexFacts(facts []model.XBRLFact) factIndex {
	idx := factIndex{
		byConcept:        make(map[string][]model.XBRLFact),
		byConceptContext: make(map[string]model.XBRLFact),
	}
	for _, f := range facts {
		idx.byConcept[f.ConceptQName] = append(idx.byConcept[f.ConceptQName], f)
		idx.byConceptContext[f.ConceptQName+"|"+f.ContextRef] = f
	}
	return idx
}

type allocationRow struct {
	member  string
	subtype string
	amount  *decimal.Decimal
	ratio   *decimal.Decimal
}

func (m *Mapper) mapAllocationTable(doc *model.XBRLDocument, idx factIndex, cfg TableConfig) ([]allocationRow, []string) {
	if cfg.IsScalarGroup() {
		return m.mapScalarGroup(idx, cfg)
	}
	return m.mapDimensionTable(doc, idx, cfg)
}

// mapScalarGroup resolves one row per configured entry, each an
// independent scalar concept rather than a dimension-grouped fact
// (spec.md §6.2's asset_allocations "kind: scalar_group" shape).
func (m *Mapper) mapScalarGroup(idx factIndex, cfg TableConfig) ([]allocationRow, []string) {
	var warnings []string
	rows := make([]allocationRow, 0, len(cfg.Entries))
	for _, entry := range cfg.Entries {
		row := allocationRow{member: entry.Label, subtype: entry.Subtype}
		if facts := idx.byConcept[entry.AmountConcept]; len(facts) > 0 {
			if v, err := decimalFromFact(facts[0]); err == nil {
				row.amount = v
			} else {
				warnings = append(warnings, fmt.Sprintf("conceptmap: allocation amount for %s: %v", entry.Label, err))
			}
		}
		if entry.RatioConcept != "" {
			if facts := idx.byConcept[entry.RatioConcept]; len(facts) > 0 {
				if v, err := decimalFromFact(facts[0]); err == nil {
					row.ratio = v
				} else {
					warnings = append(warnings, fmt.Sprintf("conceptmap: allocation ratio for %s: %v", entry.Label, err))
				}
			}
		}
		if row.amount != nil || row.ratio != nil {
			rows = append(rows, row)
		}
	}
	return rows, warnings
}

func (m *Mapper) mapDimensionTable(doc *model.XBRLDocument, idx factIndex, cfg TableConfig) ([]allocationRow, []string) {
	if cfg.DimensionAxis == "" {
		return nil, nil
	}

	var warnings []string
	membersSeen := make(map[string]bool)
	var order []string
	for _, ctx := range doc.Contexts {
		member, ok := ctx.Dimensions[cfg.DimensionAxis]
		if !ok || membersSeen[member] {
			continue
		}
		membersSeen[member] = true
		order = append(order, member)
	}
	sort.Strings(order)

	rows := make([]allocationRow, 0, len(order))
	for _, member := range order {
		contextID := contextForMember(doc.Contexts, cfg.DimensionAxis, member)
		row := allocationRow{member: member}
		if cfg.AmountConcept != "" {
			if f, ok := idx.byConceptContext[cfg.AmountConcept+"|"+contextID]; ok {
				if v, err := decimalFromFact(f); err == nil {
					row.amount = v
				} else {
					warnings = append(warnings, fmt.Sprintf("conceptmap: allocation amount for %s: %v", member, err))
				}
			}
		}
		if cfg.RatioConcept != "" {
			if f, ok := idx.byConceptContext[cfg.RatioConcept+"|"+contextID]; ok {
				if v, err := decimalFromFact(f); err == nil {
					row.ratio = v
				} else {
					warnings = append(warnings, fmt.Sprintf("conceptmap: allocation ratio for %s: %v", member, err))
				}
			}
		}
		rows = append(rows, row)
	}

	return rows, warnings
}

func contextForMember(contexts map[string]model.XBRLContext, axis, member string) string {
	for id, ctx := range contexts {
		if ctx.Dimensions[axis] == member {
			return id
		}
	}
	return ""
}

func (m *Mapper) mapHoldings(doc *model.XBRLDocument, idx factIndex) ([]model.Holding, []string) {
	cfg := m.cfg.TopHoldings
	if cfg.SecurityCodeConcept == "" {
		return nil, nil
	}

	var warnings []string
	contextIDs := make(map[string]bool)
	for _, f := range idx.byConcept[cfg.SecurityCodeConcept] {
		contextIDs[f.ContextRef] = true
	}
	ordered := make([]string, 0, len(contextIDs))
	for id := range contextIDs {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	holdings := make([]model.Holding, 0, len(ordered))
	for i, contextID := range ordered {
		h := model.Holding{Rank: i + 1}
		if f, ok := idx.byConceptContext[cfg.SecurityCodeConcept+"|"+contextID]; ok {
			h.SecurityCode = f.RawValue
		}
		if f, ok := idx.byConceptContext[cfg.SecurityNameConcept+"|"+contextID]; ok {
			h.SecurityName = f.RawValue
		}
		if cfg.RankConcept != "" {
			if f, ok := idx.byConceptContext[cfg.RankConcept+"|"+contextID]; ok {
				if v, err := decimalFromFact(f); err == nil && v != nil {
					h.Rank = int(v.IntPart())
				}
			}
		}
		if cfg.SharesConcept != "" {
			if f, ok := idx.byConceptContext[cfg.SharesConcept+"|"+contextID]; ok {
				if v, err := decimalFromFact(f); err == nil {
					h.Shares = v
				} else {
					warnings = append(warnings, fmt.Sprintf("conceptmap: holding shares for %s: %v", h.SecurityCode, err))
				}
			}
		}
		if cfg.MarketValueConcept != "" {
			if f, ok := idx.byConceptContext[cfg.MarketValueConcept+"|"+contextID]; ok {
				if v, err := decimalFromFact(f); err == nil {
					h.MarketValue = v
				} else {
					warnings = append(warnings, fmt.Sprintf("conceptmap: holding market value for %s: %v", h.SecurityCode, err))
				}
			}
		}
		if cfg.NetValueRatioConcept != "" {
			if f, ok := idx.byConceptContext[cfg.NetValueRatioConcept+"|"+contextID]; ok {
				if v, err := decimalFromFact(f); err == nil {
					h.NetValueRatio = v
				} else {
					warnings = append(warnings, fmt.Sprintf("conceptmap: holding net value ratio for %s: %v", h.SecurityCode, err))
				}
			}
		}
		holdings = append(holdings, h)
	}

	if cfg.RankConcept != "" {
		sort.Slice(holdings, func(i, j int) bool { return holdings[i].Rank < holdings[j].Rank })
	}

	return holdings, warnings
}

func decimalFromFact(f model.XBRLFact) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(f.RawValue)
	if raw == "" {
		return nil, nil
	}
	raw = strings.ReplaceAll(raw, ",", "")
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	// XBRL's decimals attribute expresses the scaling contract (spec.md
	// §4.8): a fact reported with decimals=-2 is rounded to hundreds,
	// not truncated to two decimal places.
	if f.Decimals != nil {
		d = d.Round(int32(*f.Decimals))
	}
	return &d, nil
}

func parseFactDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// latestInstant returns the latest instant period across all contexts,
// used as a last-resort report_period_end when no scalar concept
// resolves it directly (most fund XBRL instance documents carry the
// balance-sheet-date instant context regardless).
func latestInstant(contexts map[string]model.XBRLContext) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, ctx := range contexts {
		if ctx.Period.Instant == nil {
			continue
		}
		if !found || ctx.Period.Instant.After(latest) {
			latest = *ctx.Period.Instant
			found = true
		}
	}
	return latest, found
}

func placeholderWarning(tax *model.Taxonomy, concept, field string) []string {
	if tax == nil {
		return nil
	}
	meta, ok := tax.Lookup(concept)
	if !ok || !meta.Placeholder {
		return nil
	}
	return []string{fmt.Sprintf("conceptmap: field %q resolved through a placeholder concept (%s) — taxonomy not loaded from schema files", field, concept)}
}

// InferReportType falls back to parsing the free-text report
// description only when no explicit report-type concept fact was
// found — never derived from a date, per the mapping rules.
func InferReportType(desc string) model.ReportType {
	lower := strings.ToLower(desc)
	switch {
	case strings.Contains(desc, "半年度") || strings.Contains(lower, "semi-annual"):
		return model.ReportTypeSemiAnnual
	case strings.Contains(desc, "年度报告") || strings.Contains(lower, "annual"):
		return model.ReportTypeAnnual
	case strings.Contains(desc, "第一季度") || strings.Contains(lower, "q1"):
		return model.ReportTypeQ1
	case strings.Contains(desc, "第二季度") || strings.Contains(lower, "q2"):
		return model.ReportTypeQ2
	case strings.Contains(desc, "第三季度") || strings.Contains(lower, "q3"):
		return model.ReportTypeQ3
	case strings.Contains(desc, "第四季度") || strings.Contains(lower, "q4"):
		return model.ReportTypeQ4
	case strings.Contains(desc, "基金概况") || strings.Contains(lower, "profile"):
		return model.ReportTypeFundProfile
	default:
		return model.ReportTypeUnknown
	}
}
