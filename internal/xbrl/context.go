package xbrl

import (
	"strings"
	"time"

	"github.com/csrc-disclosure/fundreport-sync/internal/model"
)

// contextXML mirrors an xbrli:context element. Struct tags match on
// local element name only (encoding/xml resolves namespace prefixes
// internally; an unqualified tag matches regardless of namespace),
// which keeps this tolerant of whichever xbrli prefix a given instance
// document happens to declare.
type contextXML struct {
	ID     string `xml:"id,attr"`
	Entity struct {
		Identifier string `xml:"identifier"`
		Segment    struct {
			ExplicitMembers []explicitMemberXML `xml:"explicitMember"`
		} `xml:"segment"`
	} `xml:"entity"`
	Period struct {
		Instant   string `xml:"instant"`
		StartDate string `xml:"startDate"`
		EndDate   string `xml:"endDate"`
	} `xml:"period"`
	Scenario struct {
		ExplicitMembers []explicitMemberXML `xml:"explicitMember"`
	} `xml:"scenario"`
}

type explicitMemberXML struct {
	Dimension string `xml:"dimension,attr"`
	Member    string `xml:",chardata"`
}

// unitXML mirrors an xbrli:unit element: either a bare measure or a
// numerator/denominator divide.
type unitXML struct {
	ID      string `xml:"id,attr"`
	Measure string `xml:"measure"`
	Divide  struct {
		Numerator struct {
			Measure string `xml:"measure"`
		} `xml:"unitNumerator"`
		Denominator struct {
			Measure string `xml:"measure"`
		} `xml:"unitDenominator"`
	} `xml:"divide"`
}

func parseContextDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	// xbrli dates are plain xs:date; some instances carry a trailing
	// timezone offset on instant/startDate/endDate, so try both forms.
	for _, layout := range []string{"2006-01-02", "2006-01-02Z07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func toContext(cx contextXML) model.XBRLContext {
	period := model.XBRLPeriod{
		Instant:   parseContextDate(cx.Period.Instant),
		StartDate: parseContextDate(cx.Period.StartDate),
		EndDate:   parseContextDate(cx.Period.EndDate),
	}

	var dims map[string]string
	members := append(append([]explicitMemberXML{}, cx.Entity.Segment.ExplicitMembers...), cx.Scenario.ExplicitMembers...)
	if len(members) > 0 {
		dims = make(map[string]string, len(members))
		for _, m := range members {
			dims[strings.TrimSpace(m.Dimension)] = strings.TrimSpace(m.Member)
		}
	}

	return model.XBRLContext{
		ID:         cx.ID,
		EntityID:   strings.TrimSpace(cx.Entity.Identifier),
		Period:     period,
		Dimensions: dims,
	}
}

func toUnit(ux unitXML) model.XBRLUnit {
	return model.XBRLUnit{
		ID:          ux.ID,
		Measure:     strings.TrimSpace(ux.Measure),
		Numerator:   strings.TrimSpace(ux.Divide.Numerator.Measure),
		Denominator: strings.TrimSpace(ux.Divide.Denominator.Measure),
	}
}
