package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/csrc-disclosure/fundreport-sync/internal/model"
	"github.com/csrc-disclosure/fundreport-sync/internal/resilience"
)

// Config configures the portal client.
type Config struct {
	BaseURL       string
	UserAgent     string
	MinInterval   time.Duration
	Burst         int
	MaxRetries    int
	Timeout       time.Duration
	RatePerSecond float64
}

// Client searches the disclosure portal's report list and resolves the
// viewer URL for a given report. Grounded on the teacher's
// fetcher.HTTPFetcher retry/rate-limit shape (internal/fetcher/http.go),
// specialized to this portal's single-host, fixed-field search form.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
}

// NewClient builds a portal Client. A single rate.Limiter enforces the
// spec's "no more than one request per ~500ms" constraint across all
// calls — the portal has no adaptive 429 contract like SEC EDGAR does,
// so a plain fixed limiter (not the teacher's AdaptiveLimiter) is enough.
func NewClient(cfg Config) *Client {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 500 * time.Millisecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	ratePerSec := cfg.RatePerSecond
	if ratePerSec <= 0 {
		ratePerSec = 1.0 / cfg.MinInterval.Seconds()
	}

	breakerCfg := resilience.FromCircuitConfig(5, 30)
	breakerCfg.ShouldTrip = resilience.IsTransient

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), cfg.Burst),
		breaker: resilience.NewCircuitBreaker(breakerCfg),
	}
}

// searchResponse mirrors the DataTables-style envelope the portal returns.
type searchResponse struct {
	ITotalRecords        int               `json:"iTotalRecords"`
	ITotalDisplayRecords int               `json:"iTotalDisplayRecords"`
	AaData               []json.RawMessage `json:"aaData"`
}

// portalRow is one row of aaData. Field names follow the mDataProp_0..5
// contract in spec.md §4.2 verbatim — including "fundId", which despite
// its name is where the portal places the fund's short name; there is
// no separate "fundShortName" property in aaData rows, only in the
// outbound search form.
type portalRow struct {
	FundCode       string `json:"fundCode"`
	FundID         string `json:"fundId"`
	OrganName      string `json:"organName"`
	ReportSendDate string `json:"reportSendDate"`
	ReportDesp     string `json:"reportDesp"`
	UploadInfoID   string `json:"uploadInfoId"`
}

// mDataPropNames is the fixed mDataProp_0..5 value list from spec.md
// §4.2 — the portal's DataTables column-to-property binding, sent as
// literal strings in the form, not as data.
var mDataPropNames = []string{"fundCode", "fundId", "organName", "reportSendDate", "reportDesp", "uploadInfoId"}

// buildAoData renders the search form exactly per the portal's fixed
// field contract (spec.md §4.2). Every optional field is sent as an
// empty string when unset, never omitted —
// TestBuildAoData_SendsAllFieldsEvenWhenEmpty asserts the full field set
// appears even when the optional criteria are unset.
func buildAoData(c model.SearchCriteria) url.Values {
	v := url.Values{}

	page := c.Page
	if page < 1 {
		page = 1
	}
	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	v.Set("sEcho", strconv.Itoa(page))
	v.Set("iColumns", "6")
	v.Set("sColumns", ",,,,,")
	v.Set("iDisplayStart", strconv.Itoa((page-1)*pageSize))
	v.Set("iDisplayLength", strconv.Itoa(pageSize))

	for i, name := range mDataPropNames {
		v.Set(fmt.Sprintf("mDataProp_%d", i), name)
	}

	fundTypeCode := ""
	if code, ok := c.FundType.PortalCode(); ok {
		fundTypeCode = code
	}
	v.Set("fundType", fundTypeCode)

	reportTypeCode := ""
	if code, ok := c.ReportType.PortalCode(); ok {
		reportTypeCode = code
	}
	v.Set("reportTypeCode", reportTypeCode)

	reportYear := ""
	if c.ReportType != model.ReportTypeFundProfile {
		reportYear = strconv.Itoa(c.Year)
	}
	v.Set("reportYear", reportYear)

	v.Set("fundCompanyShortName", c.FundCompanyShortName)
	v.Set("fundCode", c.FundCode)
	v.Set("fundShortName", c.FundShortName)

	startUploadDate := ""
	if c.UploadDateStart != nil {
		startUploadDate = c.UploadDateStart.Format("2006-01-02")
	}
	v.Set("startUploadDate", startUploadDate)

	endUploadDate := ""
	if c.UploadDateEnd != nil {
		endUploadDate = c.UploadDateEnd.Format("2006-01-02")
	}
	v.Set("endUploadDate", endUploadDate)

	return v
}

// ListReports queries the portal search endpoint and returns the
// matching ReportRefs for the requested page plus whether a further
// page exists (iTotalRecords > page * page_size, per spec.md §4.2).
func (c *Client) ListReports(ctx context.Context, criteria model.SearchCriteria) ([]model.ReportRef, bool, error) {
	if err := Validate(criteria); err != nil {
		return nil, false, err
	}

	form := buildAoData(criteria)

	page := criteria.Page
	if page < 1 {
		page = 1
	}
	pageSize := criteria.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	var refs []model.ReportRef
	var totalRecords int
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.Do(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) error {
			r, t, err := c.doSearch(ctx, form)
			if err != nil {
				return err
			}
			refs, totalRecords = r, t
			return nil
		})
	})
	if err != nil {
		return nil, false, eris.Wrap(err, "portal: list reports")
	}

	hasNext := totalRecords > page*pageSize
	return refs, hasNext, nil
}

func (c *Client) doSearch(ctx context.Context, form url.Values) ([]model.ReportRef, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, eris.Wrap(err, "portal: rate limiter wait")
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/search.do"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, eris.Wrap(err, "portal: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, resilience.NewTransientError(eris.Wrap(err, "portal: search request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, eris.Wrap(err, "portal: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, 0, resilience.NewTransientError(
				eris.Errorf("portal: search returned %d", resp.StatusCode), resp.StatusCode)
		}
		return nil, 0, eris.Errorf("portal: search returned %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, 0, eris.Wrap(err, "portal: decode search response")
	}

	refs := make([]model.ReportRef, 0, len(parsed.AaData))
	for _, raw := range parsed.AaData {
		var row portalRow
		if err := json.Unmarshal(raw, &row); err != nil {
			zap.L().Warn("portal: skipping malformed row", zap.Error(err))
			continue
		}
		ref, err := rowToReportRef(row)
		if err != nil {
			zap.L().Warn("portal: skipping row with unparseable dates", zap.Error(err), zap.String("upload_info_id", row.UploadInfoID))
			continue
		}
		refs = append(refs, ref)
	}

	return refs, parsed.ITotalRecords, nil
}

func rowToReportRef(row portalRow) (model.ReportRef, error) {
	sendDate, err := time.Parse("2006-01-02", row.ReportSendDate)
	if err != nil {
		return model.ReportRef{}, eris.Wrap(err, "parse reportSendDate")
	}
	return model.ReportRef{
		UploadInfoID:     row.UploadInfoID,
		FundCode:         row.FundCode,
		FundShortName:    row.FundID,
		OrganizationName: row.OrganName,
		ReportSendDate:   sendDate,
		ReportDesc:       row.ReportDesp,
	}, nil
}

// ResolveDownloadURL returns the viewer URL for a report. Only
// instance_html_view.do is ever used — spec.md §9 resolves the source's
// internal ambiguity about an older downloadFile.do endpoint
// definitively: that endpoint is never called here.
func (c *Client) ResolveDownloadURL(ref model.ReportRef) string {
	return fmt.Sprintf("%s/instance_html_view.do?instanceid=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.QueryEscape(ref.UploadInfoID))
}
