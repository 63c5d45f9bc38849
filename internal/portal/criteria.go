// Package portal implements the search parameter model (C1) and the
// disclosure portal client (C2): building the aoData DataTables-style
// search payload, listing reports, and resolving a report's viewer URL.
package portal

import (
	"regexp"

	"github.com/rotisserie/eris"

	"github.com/csrc-disclosure/fundreport-sync/internal/model"
)

// fundCodeRE matches the portal's six-digit fund code format.
var fundCodeRE = regexp.MustCompile(`^\d{6}$`)

// Validate checks a SearchCriteria for internal consistency before it
// is turned into a portal request, aggregating every violation into a
// single error (mirroring the teacher's config.Validate style).
func Validate(c model.SearchCriteria) error {
	var errs []string

	if c.ReportType != model.ReportTypeFundProfile && c.Year == 0 {
		errs = append(errs, "year is required unless report_type is FUND_PROFILE")
	}
	if c.ReportType != model.ReportTypeUnknown {
		if _, ok := c.ReportType.PortalCode(); !ok {
			errs = append(errs, "report_type: unrecognized value")
		}
	}
	if c.FundType != model.FundTypeUnknown {
		if _, ok := c.FundType.PortalCode(); !ok {
			errs = append(errs, "fund_type: unrecognized value")
		}
	}
	if c.FundCode != "" && !fundCodeRE.MatchString(c.FundCode) {
		errs = append(errs, "fund_code: must be exactly six digits")
	}
	if c.UploadDateStart != nil && c.UploadDateEnd != nil && c.UploadDateEnd.Before(*c.UploadDateStart) {
		errs = append(errs, "upload_date_end must not be before upload_date_start")
	}
	if c.Page != 0 && c.Page < 1 {
		errs = append(errs, "page must be >= 1")
	}
	if c.PageSize != 0 && (c.PageSize < 1 || c.PageSize > 100) {
		errs = append(errs, "page_size must be in [1,100]")
	}

	if len(errs) > 0 {
		msg := errs[0]
		for _, e := range errs[1:] {
			msg += "; " + e
		}
		return eris.New("portal: invalid search criteria: " + msg)
	}
	return nil
}
