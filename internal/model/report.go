// Package model holds the plain data types shared across the portal
// client, downloader, parser, orchestrator, and persistence layers.
// These are intentionally plain structs (no behavior beyond small
// helpers) so they cross Temporal activity boundaries as-is.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReportType is one of the seven fixed portal report-type codes (spec
// §4.1). The portal codes are a frozen external contract and must
// never be re-derived from the Go identifier.
type ReportType string

const (
	ReportTypeAnnual      ReportType = "ANNUAL"
	ReportTypeSemiAnnual  ReportType = "SEMI_ANNUAL"
	ReportTypeQ1          ReportType = "Q1"
	ReportTypeQ2          ReportType = "Q2"
	ReportTypeQ3          ReportType = "Q3"
	ReportTypeQ4          ReportType = "Q4"
	ReportTypeFundProfile ReportType = "FUND_PROFILE"
	ReportTypeUnknown     ReportType = ""
)

// portalReportCode maps a ReportType to the fixed code the portal
// expects (spec §4.1). These codes are never derived — only looked
// up — so a future rename of ReportType's Go identifiers can never
// silently change wire behavior.
var portalReportCode = map[ReportType]string{
	ReportTypeAnnual:      "FB010010",
	ReportTypeSemiAnnual:  "FB020010",
	ReportTypeQ1:          "FB030010",
	ReportTypeQ2:          "FB030020",
	ReportTypeQ3:          "FB030030",
	ReportTypeQ4:          "FB030040",
	ReportTypeFundProfile: "FB040010",
}

// PortalCode returns the fixed code sent to the portal for this report type.
func (t ReportType) PortalCode() (string, bool) {
	code, ok := portalReportCode[t]
	return code, ok
}

// FundType is one of the fixed portal fund-type codes (spec §4.1).
type FundType string

const (
	FundTypeStock          FundType = "STOCK"
	FundTypeMixed          FundType = "MIXED"
	FundTypeBond           FundType = "BOND"
	FundTypeMoney          FundType = "MONEY"
	FundTypeQDII           FundType = "QDII"
	FundTypeFOF            FundType = "FOF"
	FundTypeInfrastructure FundType = "INFRASTRUCTURE"
	FundTypeCommodity      FundType = "COMMODITY"
	FundTypeUnknown        FundType = ""
)

// portalFundCode holds the six codes spec.md §4.1 gives verbatim, plus
// two more for the "further members" it mentions without naming exact
// codes (infrastructure and commodity funds). Those two continue the
// portal's documented "6020-60NN" numbering; they are not spec-frozen
// the way the first six are, and should be confirmed against the live
// portal before go-live.
var portalFundCode = map[FundType]string{
	FundTypeStock:          "6020-6010",
	FundTypeMixed:          "6020-6020",
	FundTypeBond:           "6020-6030",
	FundTypeMoney:          "6020-6040",
	FundTypeQDII:           "6020-6050",
	FundTypeFOF:            "6020-6060",
	FundTypeInfrastructure: "6020-6070",
	FundTypeCommodity:      "6020-6080",
}

// PortalCode returns the fixed code sent to the portal for this fund type.
func (t FundType) PortalCode() (string, bool) {
	code, ok := portalFundCode[t]
	return code, ok
}

// SearchCriteria is the input to the portal search operation (C1).
// Invariant: Year may be zero only when ReportType is FUND_PROFILE.
type SearchCriteria struct {
	Year                 int        `json:"year"`
	ReportType           ReportType `json:"report_type"`
	FundType             FundType   `json:"fund_type,omitempty"`
	FundCompanyShortName string     `json:"fund_company_short_name,omitempty"`
	FundCode             string     `json:"fund_code,omitempty"` // 6 digits
	FundShortName        string     `json:"fund_short_name,omitempty"`
	UploadDateStart      *time.Time `json:"upload_date_start,omitempty"`
	UploadDateEnd        *time.Time `json:"upload_date_end,omitempty"`
	Page                 int        `json:"page"`      // >= 1
	PageSize             int        `json:"page_size"` // in [1,100]
}

// ReportRef identifies a single report discoverable on the portal
// (spec §3). The portal's opaque handle (UploadInfoID) is the only
// thing needed to resolve and download the artifact; report_type and
// report_period_end are NOT carried here — they are derived later from
// the parsed content itself (spec §4.8). The only use of the reference
// there is ReportDesc, parsed for report_type when the content yields
// none.
type ReportRef struct {
	UploadInfoID     string    `json:"upload_info_id"`
	FundCode         string    `json:"fund_code"`
	FundShortName    string    `json:"fund_short_name"`
	OrganizationName string    `json:"organization_name"`
	ReportSendDate   time.Time `json:"report_send_date"`
	ReportDesc       string    `json:"report_desc"`
}

// ArtifactRecord describes a downloaded file on local disk (C3 output).
type ArtifactRecord struct {
	ReportRef ReportRef `json:"report_ref"`
	Path      string    `json:"path"`
	SHA256    string    `json:"sha256"`
	Bytes     int64     `json:"bytes"`
	Skipped   bool      `json:"skipped"` // true if an identical artifact already existed
}

// AssetAllocation is one row of a parsed fund report's asset allocation table.
type AssetAllocation struct {
	Category string           `json:"category"`
	Subtype  string           `json:"subtype,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Ratio    *decimal.Decimal `json:"ratio,omitempty"` // fraction of NAV, e.g. 0.8534
}

// Holding is one row of a parsed fund report's top-holdings table.
type Holding struct {
	Rank          int              `json:"rank"`
	SecurityCode  string           `json:"security_code"`
	SecurityName  string           `json:"security_name"`
	Shares        *decimal.Decimal `json:"shares,omitempty"`
	MarketValue   *decimal.Decimal `json:"market_value,omitempty"`
	NetValueRatio *decimal.Decimal `json:"net_value_ratio,omitempty"`
}

// IndustryAllocation is one row of a parsed fund report's industry breakdown.
type IndustryAllocation struct {
	IndustryCode  string           `json:"industry_code"`
	IndustryName  string           `json:"industry_name"`
	MarketValue   *decimal.Decimal `json:"market_value,omitempty"`
	NetValueRatio *decimal.Decimal `json:"net_value_ratio,omitempty"`
}

// ParserKind records which extraction path ultimately produced a
// ParsedFundReport (spec §3 provenance, §9's tagged-variant redesign).
type ParserKind string

const (
	ParserXBRL  ParserKind = "XBRL"
	ParserIXBRL ParserKind = "iXBRL"
	ParserHTML  ParserKind = "HTML"
	ParserLLM   ParserKind = "LLM"
)

// ParsedFundReport is the structured output of the parser facade (C10).
type ParsedFundReport struct {
	ReportRef             ReportRef            `json:"report_ref"`
	FundCode              string               `json:"fund_code"`
	FundName              string               `json:"fund_name"`
	FundManager           string               `json:"fund_manager,omitempty"`
	ReportType            ReportType           `json:"report_type"`
	ReportPeriodStart     *time.Time           `json:"report_period_start,omitempty"`
	ReportPeriodEnd       time.Time            `json:"report_period_end"`
	NetAssetValue         *decimal.Decimal     `json:"net_asset_value,omitempty"`
	TotalNetAssets        *decimal.Decimal     `json:"total_net_assets,omitempty"`
	PeriodProfit          *decimal.Decimal     `json:"period_profit,omitempty"`
	AssetAllocations      []AssetAllocation    `json:"asset_allocations,omitempty"`
	TopHoldings           []Holding            `json:"top_holdings,omitempty"`
	IndustryAllocations   []IndustryAllocation `json:"industry_allocations,omitempty"`
	ParserKind            ParserKind           `json:"parser_kind"`
	TaxonomyVersion       string               `json:"taxonomy_version,omitempty"`
	Confidence            float64              `json:"confidence"`
	Warnings              []string             `json:"warnings,omitempty"`
	ParsedAt              time.Time            `json:"parsed_at"`
}
