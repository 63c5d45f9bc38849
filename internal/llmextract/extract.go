// Package llmextract implements the optional last-resort extraction path
// (spec §4.10 step 5): when iXBRL, XBRL, and plain-HTML all fail to
// resolve a usable report, an Extractor asks a hosted model to read the
// raw artifact text and return the same scalar fields directly as JSON.
package llmextract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/csrc-disclosure/fundreport-sync/internal/conceptmap"
	"github.com/csrc-disclosure/fundreport-sync/internal/model"
	"github.com/csrc-disclosure/fundreport-sync/pkg/anthropic"
)

// maxArtifactChars bounds how much of the raw artifact is sent to the
// model; fund reports run long and most of the tail is boilerplate the
// scalar fields never live in.
const maxArtifactChars = 60000

// Extractor is an LLMExtractor (internal/parser.LLMExtractor) backed by
// the Anthropic API. It is the extraction path of last resort and is
// off by default — callers only construct one when config.LLM.Enabled.
type Extractor struct {
	client anthropic.Client
	model  string
	phase  string
}

// NewExtractor builds an Extractor. model is the Anthropic model ID to
// request (spec default: a fast/cheap tier, since this path only runs
// after three other strategies have already failed).
func NewExtractor(client anthropic.Client, model string) *Extractor {
	return &Extractor{client: client, model: model, phase: "llmextract"}
}

// extractionResult is the JSON shape the prompt asks the model for. All
// fields are optional strings; numeric/date parsing happens after
// unmarshal so a malformed individual field doesn't fail the whole call.
type extractionResult struct {
	FundCode        string `json:"fund_code"`
	FundName        string `json:"fund_name"`
	FundManager     string `json:"fund_manager"`
	ReportType      string `json:"report_type"`
	ReportPeriodEnd string `json:"report_period_end"`
	NetAssetValue   string `json:"net_asset_value"`
	TotalNetAssets  string `json:"total_net_assets"`
	PeriodProfit    string `json:"period_profit"`
}

const extractionPrompt = `Extract key figures from this Chinese mutual fund periodic disclosure report. Return ONLY valid JSON matching this shape:
{
  "fund_code": "000001",
  "fund_name": "示例混合型证券投资基金",
  "fund_manager": "示例基金管理有限公司",
  "report_type": "one of ANNUAL, SEMI_ANNUAL, Q1, Q2, Q3, Q4, FUND_PROFILE, or empty if unclear",
  "report_period_end": "2025-03-31",
  "net_asset_value": "1.2345",
  "total_net_assets": "1000000000",
  "period_profit": "12345678"
}
Use empty strings for any field not present in the document. Do not invent values.

Document:
%s`

// Extract asks the model to read raw and returns a ParsedFundReport
// built from its answer, satisfying internal/parser.LLMExtractor.
func (e *Extractor) Extract(ctx context.Context, raw []byte, ref model.ReportRef) (*model.ParsedFundReport, []string, error) {
	text := string(raw)
	if len(text) > maxArtifactChars {
		text = text[:maxArtifactChars]
	}

	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: 1024,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(extractionPrompt, text)},
		},
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "llmextract: create message")
	}
	resp.Usage.LogCost(e.model, e.phase)

	respText := responseText(resp)
	repaired, err := jsonrepair.RepairJSON(stripCodeFence(respText))
	if err != nil {
		return nil, nil, eris.Wrapf(err, "llmextract: repair model response")
	}

	var result extractionResult
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return nil, nil, eris.Wrapf(err, "llmextract: unmarshal model response")
	}

	var warnings []string
	report := &model.ParsedFundReport{
		ReportRef:   ref,
		FundCode:    result.FundCode,
		FundName:    result.FundName,
		FundManager: result.FundManager,
		ParserKind:  model.ParserLLM,
		ParsedAt:    time.Now().UTC(),
	}

	if result.ReportType != "" {
		report.ReportType = model.ReportType(result.ReportType)
	} else {
		report.ReportType = conceptmap.InferReportType(ref.ReportDesc)
		warnings = append(warnings, "llmextract: model did not return report_type, inferred from report_desc")
	}

	if t, err := time.Parse("2006-01-02", strings.TrimSpace(result.ReportPeriodEnd)); err == nil {
		report.ReportPeriodEnd = t
	} else if result.ReportPeriodEnd != "" {
		warnings = append(warnings, fmt.Sprintf("llmextract: unparseable report_period_end %q", result.ReportPeriodEnd))
	}

	report.NetAssetValue = parseDecimalField(result.NetAssetValue, "net_asset_value", &warnings)
	report.TotalNetAssets = parseDecimalField(result.TotalNetAssets, "total_net_assets", &warnings)
	report.PeriodProfit = parseDecimalField(result.PeriodProfit, "period_profit", &warnings)

	return report, warnings, nil
}

func parseDecimalField(raw, field string, warnings *[]string) *decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("llmextract: unparseable %s %q", field, raw))
		return nil
	}
	return &d
}

func responseText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "" || b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// stripCodeFence removes a leading/trailing markdown code fence, which
// models routinely wrap JSON responses in despite being asked not to.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}
