package conceptmap

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csrc-disclosure/fundreport-sync/internal/model"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestMap_ScalarsAndAllocations(t *testing.T) {
	cfg := &Config{
		Scalars: map[string]string{
			"net_asset_value":    "cfund:NetAssetValue",
			"fund_code":          "cfund:FundCode",
			"report_period_end":  "cfund:ReportPeriodEnd",
		},
		AssetAllocations: TableConfig{
			DimensionAxis: "cfund:AssetCategoryAxis",
			AmountConcept: "cfund:AllocationAmount",
			RatioConcept:  "cfund:AllocationRatio",
		},
	}
	mapper := NewMapper(cfg)

	doc := &model.XBRLDocument{
		Contexts: map[string]model.XBRLContext{
			"c0": {ID: "c0"},
			"c1": {ID: "c1", Dimensions: map[string]string{"cfund:AssetCategoryAxis": "cfund:EquityMember"}},
			"c2": {ID: "c2", Dimensions: map[string]string{"cfund:AssetCategoryAxis": "cfund:BondMember"}},
		},
		Facts: []model.XBRLFact{
			{ConceptQName: "cfund:NetAssetValue", ContextRef: "c0", RawValue: "1000000"},
			{ConceptQName: "cfund:FundCode", ContextRef: "c0", RawValue: "000001"},
			{ConceptQName: "cfund:ReportPeriodEnd", ContextRef: "c0", RawValue: "2025-03-31"},
			{ConceptQName: "cfund:AllocationAmount", ContextRef: "c1", RawValue: "700000"},
			{ConceptQName: "cfund:AllocationRatio", ContextRef: "c1", RawValue: "0.70"},
			{ConceptQName: "cfund:AllocationAmount", ContextRef: "c2", RawValue: "300000"},
			{ConceptQName: "cfund:AllocationRatio", ContextRef: "c2", RawValue: "0.30"},
		},
	}

	tax := &model.Taxonomy{Version: "2024", ByID: map[string]model.ConceptMeta{}, ByQName: map[string]model.ConceptMeta{}}
	ref := model.ReportRef{UploadInfoID: "i1", ReportDesc: "2025年年度报告"}

	report, warnings := mapper.Map(doc, ref, tax, model.ParserXBRL)
	assert.Empty(t, warnings)
	assert.Equal(t, model.ParserXBRL, report.ParserKind)
	assert.Equal(t, "000001", report.FundCode)
	require.NotNil(t, report.NetAssetValue)
	assert.True(t, report.NetAssetValue.Equal(decimal.RequireFromString("1000000")))
	assert.Equal(t, 2025, report.ReportPeriodEnd.Year())
	require.Len(t, report.AssetAllocations, 2)
	assert.Equal(t, 1.0, report.Confidence)
}

func TestMap_FlagsRatioSumMismatch(t *testing.T) {
	cfg := &Config{
		AssetAllocations: TableConfig{
			DimensionAxis: "cfund:AssetCategoryAxis",
			RatioConcept:  "cfund:AllocationRatio",
		},
	}
	mapper := NewMapper(cfg)

	doc := &model.XBRLDocument{
		Contexts: map[string]model.XBRLContext{
			"c1": {ID: "c1", Dimensions: map[string]string{"cfund:AssetCategoryAxis": "cfund:EquityMember"}},
		},
		Facts: []model.XBRLFact{
			{ConceptQName: "cfund:AllocationRatio", ContextRef: "c1", RawValue: "0.50"},
		},
	}
	tax := &model.Taxonomy{Version: "2024"}
	ref := model.ReportRef{ReportDesc: "2025年年度报告"}

	report, warnings := mapper.Map(doc, ref, tax, model.ParserXBRL)
	require.NotEmpty(t, warnings)
	assert.Less(t, report.Confidence, 1.0)
}

func TestMap_FlagsPlaceholderConcept(t *testing.T) {
	cfg := &Config{Scalars: map[string]string{"net_asset_value": "cfund:NetAssetValue"}}
	mapper := NewMapper(cfg)

	doc := &model.XBRLDocument{
		Contexts: map[string]model.XBRLContext{"c0": {ID: "c0"}},
		Facts:    []model.XBRLFact{{ConceptQName: "cfund:NetAssetValue", ContextRef: "c0", RawValue: "100"}},
	}
	tax := &model.Taxonomy{
		Version: "2024",
		ByQName: map[string]model.ConceptMeta{
			"cfund:NetAssetValue": {QName: "cfund:NetAssetValue", Placeholder: true},
		},
	}
	ref := model.ReportRef{ReportDesc: "2025年年度报告"}

	_, warnings := mapper.Map(doc, ref, tax, model.ParserXBRL)
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "placeholder") {
			found = true
		}
	}
	assert.True(t, found, "expected a placeholder-concept warning")
}

func TestMap_FallsBackToInferredReportType(t *testing.T) {
	mapper := NewMapper(&Config{})
	doc := &model.XBRLDocument{Contexts: map[string]model.XBRLContext{}}
	ref := model.ReportRef{ReportDesc: "2025年年度报告"}

	report, warnings := mapper.Map(doc, ref, &model.Taxonomy{Version: "2024"}, model.ParserXBRL)
	assert.Equal(t, model.ReportTypeAnnual, report.ReportType)
	assert.Empty(t, warnings)
}

func TestMap_ScalarGroupAllocations(t *testing.T) {
	cfg := &Config{
		AssetAllocations: TableConfig{
			Kind: "scalar_group",
			Entries: []ScalarGroupEntry{
				{Label: "股票", Subtype: "equity", AmountConcept: "cfund:EquityAmount", RatioConcept: "cfund:EquityRatio"},
				{Label: "债券", Subtype: "bond", AmountConcept: "cfund:BondAmount", RatioConcept: "cfund:BondRatio"},
			},
		},
	}
	mapper := NewMapper(cfg)

	doc := &model.XBRLDocument{
		Contexts: map[string]model.XBRLContext{"c0": {ID: "c0"}},
		Facts: []model.XBRLFact{
			{ConceptQName: "cfund:EquityAmount", ContextRef: "c0", RawValue: "600000"},
			{ConceptQName: "cfund:EquityRatio", ContextRef: "c0", RawValue: "0.60"},
			{ConceptQName: "cfund:BondAmount", ContextRef: "c0", RawValue: "400000"},
			{ConceptQName: "cfund:BondRatio", ContextRef: "c0", RawValue: "0.40"},
		},
	}
	ref := model.ReportRef{ReportDesc: "2025年年度报告"}

	report, _ := mapper.Map(doc, ref, &model.Taxonomy{Version: "2024"}, model.ParserXBRL)
	require.Len(t, report.AssetAllocations, 2)
	assert.Equal(t, "股票", report.AssetAllocations[0].Category)
	assert.Equal(t, "equity", report.AssetAllocations[0].Subtype)
	require.NotNil(t, report.AssetAllocations[0].Amount)
	assert.True(t, report.AssetAllocations[0].Amount.Equal(decimal.RequireFromString("600000")))
}

func TestMap_ReportTypeFromConceptOverridesDesc(t *testing.T) {
	cfg := &Config{
		ReportType: ReportTypeConfig{
			Concept: "cfund:PeriodType",
			Values:  map[string]string{"Q1": "Q1"},
		},
	}
	mapper := NewMapper(cfg)

	doc := &model.XBRLDocument{
		Contexts: map[string]model.XBRLContext{"c0": {ID: "c0"}},
		Facts:    []model.XBRLFact{{ConceptQName: "cfund:PeriodType", ContextRef: "c0", RawValue: "Q1"}},
	}
	ref := model.ReportRef{ReportDesc: "2025年年度报告"}

	report, warnings := mapper.Map(doc, ref, &model.Taxonomy{Version: "2024"}, model.ParserXBRL)
	assert.Equal(t, model.ReportTypeQ1, report.ReportType)
	assert.Empty(t, warnings)
}

func TestMap_TopHoldings(t *testing.T) {
	cfg := &Config{
		TopHoldings: HoldingsConfig{
			SecurityCodeConcept: "cfund:SecurityCode",
			SecurityNameConcept: "cfund:SecurityName",
			MarketValueConcept:  "cfund:MarketValue",
		},
	}
	mapper := NewMapper(cfg)

	doc := &model.XBRLDocument{
		Contexts: map[string]model.XBRLContext{"h1": {ID: "h1"}, "h2": {ID: "h2"}},
		Facts: []model.XBRLFact{
			{ConceptQName: "cfund:SecurityCode", ContextRef: "h1", RawValue: "600000"},
			{ConceptQName: "cfund:SecurityName", ContextRef: "h1", RawValue: "浦发银行"},
			{ConceptQName: "cfund:MarketValue", ContextRef: "h1", RawValue: "500000"},
			{ConceptQName: "cfund:SecurityCode", ContextRef: "h2", RawValue: "000001"},
			{ConceptQName: "cfund:SecurityName", ContextRef: "h2", RawValue: "平安银行"},
			{ConceptQName: "cfund:MarketValue", ContextRef: "h2", RawValue: "300000"},
		},
	}
	ref := model.ReportRef{ReportDesc: "2025年年度报告"}

	report, _ := mapper.Map(doc, ref, &model.Taxonomy{Version: "2024"}, model.ParserXBRL)
	require.Len(t, report.TopHoldings, 2)
	assert.ElementsMatch(t, []string{"600000", "000001"}, []string{report.TopHoldings[0].SecurityCode, report.TopHoldings[1].SecurityCode})
}
