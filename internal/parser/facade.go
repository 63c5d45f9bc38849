package parser

import (
	"bytes"
	"context"
	"os"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/csrc-disclosure/fundreport-sync/internal/conceptmap"
	"github.com/csrc-disclosure/fundreport-sync/internal/format"
	"github.com/csrc-disclosure/fundreport-sync/internal/htmlreport"
	"github.com/csrc-disclosure/fundreport-sync/internal/ixbrl"
	"github.com/csrc-disclosure/fundreport-sync/internal/model"
	"github.com/csrc-disclosure/fundreport-sync/internal/taxonomy"
	"github.com/csrc-disclosure/fundreport-sync/internal/xbrl"
)

// llmConfidenceCap is the highest confidence an LLM-derived report is ever
// stamped with, regardless of what the model itself reports back — the LLM
// path is always the least trusted of the four (spec §4.10 step 5).
const llmConfidenceCap = 0.6

// scalarLabels maps the Chinese free-text labels the HTML fallback path
// (C9) looks for to the ParsedFundReport scalar field they resolve. Kept
// local to the parser package since htmlreport itself is domain-agnostic.
var scalarLabels = []struct {
	label string
	field string
}{
	{"基金代码", "fund_code"},
	{"基金简称", "fund_name"},
	{"基金管理人", "fund_manager"},
	{"报告期末基金资产净值", "total_net_assets"},
	{"期末基金资产净值", "total_net_assets"},
	{"报告期末基金份额净值", "net_asset_value"},
	{"期末基金份额净值", "net_asset_value"},
	{"本期已实现收益", "period_profit"},
}

// LLMExtractor is the optional last-resort extraction path (spec §4.10
// step 5). Implementations wrap a hosted LLM and must themselves cap
// confidence sanely; the facade re-clamps to llmConfidenceCap regardless.
type LLMExtractor interface {
	Extract(ctx context.Context, raw []byte, ref model.ReportRef) (*model.ParsedFundReport, []string, error)
}

// mappingCache lazily loads and caches a conceptmap.Config per taxonomy
// version, mirroring taxonomy.Manager's own sync.Map/sync.Once idiom so
// concurrent facade.Parse calls never load the same mapping file twice.
type mappingCache struct {
	dir     string
	entries sync.Map // version string -> *mappingEntry
}

type mappingEntry struct {
	once sync.Once
	cfg  *conceptmap.Config
	err  error
}

func (c *mappingCache) get(version string) (*conceptmap.Config, error) {
	v, _ := c.entries.LoadOrStore(version, &mappingEntry{})
	entry := v.(*mappingEntry)
	entry.once.Do(func() {
		entry.cfg, entry.err = conceptmap.LoadConfig(c.dir + "/" + version + ".yaml")
	})
	return entry.cfg, entry.err
}

// Facade is C10: the format-detection-driven router that tries iXBRL,
// then XBRL, then plain HTML, then (if configured) an LLM, stopping at
// the first extraction that succeeds.
type Facade struct {
	Taxonomy *taxonomy.Manager
	Mappings *mappingCache
	LLM      LLMExtractor
}

// NewFacade builds a Facade. mappingDir holds one conceptmap YAML file
// per taxonomy version, named "<version>.yaml".
func NewFacade(tax *taxonomy.Manager, mappingDir string, llm LLMExtractor) *Facade {
	return &Facade{
		Taxonomy: tax,
		Mappings: &mappingCache{dir: mappingDir},
		LLM:      llm,
	}
}

// ParseFile reads the artifact at path and routes it through Parse.
func (f *Facade) ParseFile(ctx context.Context, path string, ref model.ReportRef) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "parser: read artifact %s", path)
	}
	return f.Parse(ctx, data, ref), nil
}

// Parse routes data through the extraction chain in spec.md §4.10's
// fixed order, returning on the first success. Every attempt — success
// or failure — is recorded in the returned ParseResult.Attempted.
func (f *Facade) Parse(ctx context.Context, data []byte, ref model.ReportRef) *ParseResult {
	var attempts []Attempt

	det, err := format.Detect(bytes.NewReader(data))
	if err != nil {
		attempts = append(attempts, failedAttempt(model.ParserIXBRL, eris.Wrap(err, "parser: format detection")))
		return f.tryLLM(ctx, data, ref, attempts)
	}

	if det.Kind == format.KindIXBRL {
		if result := f.tryXML(data, ref, model.ParserIXBRL, &attempts); result != nil {
			return result
		}
	}

	if det.Kind == format.KindXBRL || det.Kind == format.KindIXBRL {
		if result := f.tryXML(data, ref, model.ParserXBRL, &attempts); result != nil {
			return result
		}
	}

	if result := f.tryHTML(data, ref, &attempts); result != nil {
		return result
	}

	return f.tryLLM(ctx, data, ref, attempts)
}

// tryXML attempts either the iXBRL-unwrap-then-XBRL-parse chain or a
// direct XBRL parse, depending on kind, returning a successful
// ParseResult or nil (appending the failure to attempts and letting the
// caller fall through to the next strategy).
func (f *Facade) tryXML(data []byte, ref model.ReportRef, kind model.ParserKind, attempts *[]Attempt) *ParseResult {
	payload := data
	if kind == model.ParserIXBRL {
		unwrapped, err := ixbrl.Extract(bytes.NewReader(data))
		if err != nil {
			*attempts = append(*attempts, failedAttempt(kind, eris.Wrap(err, "parser: ixbrl extract")))
			return nil
		}
		if unwrapped == nil {
			*attempts = append(*attempts, Attempt{Kind: kind, Outcome: OutcomeSkipped})
			return nil
		}
		payload = unwrapped
	}

	doc, err := xbrl.Parse(bytes.NewReader(payload))
	if err != nil {
		*attempts = append(*attempts, failedAttempt(kind, eris.Wrap(err, "parser: xbrl parse")))
		return nil
	}

	tax, taxWarnings, err := f.Taxonomy.Resolve(doc.SchemaRef)
	if err != nil {
		*attempts = append(*attempts, failedAttempt(kind, eris.Wrap(err, "parser: taxonomy resolve")))
		return nil
	}

	cfg, err := f.Mappings.get(tax.Version)
	if err != nil {
		*attempts = append(*attempts, failedAttempt(kind, eris.Wrap(err, "parser: mapping config load")))
		return nil
	}

	report, warnings := conceptmap.NewMapper(cfg).Map(doc, ref, tax, kind)
	warnings = append(taxWarnings, warnings...)
	return succeeded(kind, report, warnings, *attempts)
}

// tryHTML is the plain-HTML fallback (spec §4.10 step 4): it has no
// XBRL concept facts to work from, so it resolves scalars by Chinese
// label text and infers report_type from the free-text description
// rather than a concept value.
func (f *Facade) tryHTML(data []byte, ref model.ReportRef, attempts *[]Attempt) *ParseResult {
	doc, err := htmlreport.Parse(bytes.NewReader(data))
	if err != nil {
		*attempts = append(*attempts, failedAttempt(model.ParserHTML, eris.Wrap(err, "parser: html parse")))
		return nil
	}

	report := &model.ParsedFundReport{
		ReportRef:  ref,
		ReportType: conceptmap.InferReportType(ref.ReportDesc),
		ParserKind: model.ParserHTML,
		Confidence: 1.0,
	}
	var warnings []string

	labels := make([]string, len(scalarLabels))
	for i, sl := range scalarLabels {
		labels[i] = sl.label
	}
	scalars := doc.ExtractScalars(labels)
	report.Confidence = scalars.Confidence

	for _, sl := range scalarLabels {
		raw, ok := scalars.Values[sl.label]
		if !ok {
			continue
		}
		switch sl.field {
		case "fund_code":
			if report.FundCode == "" {
				report.FundCode = raw
			}
		case "fund_name":
			if report.FundName == "" {
				report.FundName = raw
			}
		case "fund_manager":
			report.FundManager = raw
		case "total_net_assets":
			if d, err := htmlreport.ParseNumericCell(raw); err == nil {
				report.TotalNetAssets = d
			}
		case "net_asset_value":
			if d, err := htmlreport.ParseNumericCell(raw); err == nil {
				report.NetAssetValue = d
			}
		case "period_profit":
			if d, err := htmlreport.ParseNumericCell(raw); err == nil {
				report.PeriodProfit = d
			}
		}
	}

	if holdings, err := doc.ExtractHoldings(); err == nil {
		for _, h := range holdings {
			report.TopHoldings = append(report.TopHoldings, model.Holding{
				Rank:          h.Rank,
				SecurityCode:  h.SecurityCode,
				SecurityName:  h.SecurityName,
				Shares:        h.Shares,
				MarketValue:   h.MarketValue,
				NetValueRatio: h.NetValueRatio,
			})
		}
	}

	// htmlreport.ExtractAllocations can only return rows from the first
	// table matching either a category or industry_name header alias —
	// it cannot tell asset allocation and industry allocation tables
	// apart, or return both from one document. Treat the returned rows
	// as asset allocations, since every report carries one, and flag the
	// limitation so a human can go verify industry allocations by hand.
	if rows, err := doc.ExtractAllocations(); err == nil && len(rows) > 0 {
		for _, r := range rows {
			report.AssetAllocations = append(report.AssetAllocations, model.AssetAllocation{
				Category: r.Category,
				Amount:   r.Amount,
				Ratio:    r.Ratio,
			})
		}
		warnings = append(warnings, "parser: html fallback cannot distinguish asset vs industry allocation tables; rows assigned to asset_allocations only")
	}

	if len(report.TopHoldings) == 0 && len(report.AssetAllocations) == 0 && len(scalars.Values) == 0 {
		*attempts = append(*attempts, failedAttempt(model.ParserHTML, eris.New("parser: html fallback resolved nothing")))
		return nil
	}

	return succeeded(model.ParserHTML, report, warnings, *attempts)
}

// tryLLM is the optional last resort (spec §4.10 step 5). When no
// LLMExtractor is configured, the attempt is recorded as skipped rather
// than failed, and the overall ParseResult reports failure.
func (f *Facade) tryLLM(ctx context.Context, data []byte, ref model.ReportRef, attempts []Attempt) *ParseResult {
	if f.LLM == nil {
		attempts = append(attempts, Attempt{Kind: model.ParserLLM, Outcome: OutcomeSkipped})
		return &ParseResult{Success: false, Attempted: attempts}
	}

	report, warnings, err := f.LLM.Extract(ctx, data, ref)
	if err != nil {
		attempts = append(attempts, failedAttempt(model.ParserLLM, eris.Wrap(err, "parser: llm extract")))
		return &ParseResult{Success: false, Attempted: attempts}
	}

	report.ParserKind = model.ParserLLM
	if report.Confidence <= 0 || report.Confidence > llmConfidenceCap {
		report.Confidence = llmConfidenceCap
	}
	return succeeded(model.ParserLLM, report, warnings, attempts)
}
