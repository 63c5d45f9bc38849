package htmlreport

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"golang.org/x/net/html"
)

// scalarBaseConfidence is the starting confidence for an HTML parse;
// each scalar field resolved nudges it up, capped at scalarMaxConfidence.
const (
	scalarBaseConfidence = 0.7
	scalarMaxConfidence  = 0.95
	scalarStep           = 0.05
)

// ScalarResult is a label->value lookup plus the confidence accrued
// from how many of the requested labels actually resolved.
type ScalarResult struct {
	Values     map[string]string
	Confidence float64
}

// ExtractScalars resolves each of labels to a value using an ordered
// DOM-neighbor strategy: adjacent-sibling text, the next <td> in the
// same table row, then the first cell of the next <tr> — in that
// order, stopping at the first that yields non-empty text.
func (d *Document) ExtractScalars(labels []string) ScalarResult {
	result := ScalarResult{Values: make(map[string]string), Confidence: scalarBaseConfidence}

	for _, label := range labels {
		sel := d.findLabelNode(label)
		if sel == nil {
			continue
		}
		value := strings.TrimSpace(adjacentSiblingText(sel))
		if value == "" {
			value = strings.TrimSpace(nextCellInRow(sel))
		}
		if value == "" {
			value = strings.TrimSpace(firstCellOfNextRow(sel))
		}
		if value == "" {
			continue
		}
		result.Values[label] = value
		if result.Confidence < scalarMaxConfidence {
			result.Confidence += scalarStep
			if result.Confidence > scalarMaxConfidence {
				result.Confidence = scalarMaxConfidence
			}
		}
	}

	return result
}

// findLabelNode returns the first element whose direct text content
// contains label.
func (d *Document) findLabelNode(label string) *goquery.Selection {
	var found *goquery.Selection
	d.doc.Find("td, th, span, div, p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(s.Text(), label) && len(ownText(s)) > 0 {
			found = s
			return false
		}
		return true
	})
	return found
}

// ownText is the element's own direct text nodes, ignoring descendant
// elements' text, so a wrapping <tr> containing the label cell isn't
// mistaken for the label node itself.
func ownText(s *goquery.Selection) string {
	var sb strings.Builder
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

func adjacentSiblingText(sel *goquery.Selection) string {
	sibling := sel.Next()
	if sibling.Length() == 0 {
		return ""
	}
	return sibling.Text()
}

func nextCellInRow(sel *goquery.Selection) string {
	row := sel.Closest("tr")
	if row.Length() == 0 {
		return ""
	}
	cells := row.Find("td")
	labelIdx := -1
	cells.EachWithBreak(func(i int, c *goquery.Selection) bool {
		if c.Get(0) == sel.Get(0) {
			labelIdx = i
			return false
		}
		return true
	})
	if labelIdx < 0 || labelIdx+1 >= cells.Length() {
		return ""
	}
	return cells.Eq(labelIdx + 1).Text()
}

func firstCellOfNextRow(sel *goquery.Selection) string {
	row := sel.Closest("tr")
	if row.Length() == 0 {
		return ""
	}
	nextRow := row.Next()
	if nextRow.Length() == 0 {
		return ""
	}
	firstCell := nextRow.Find("td").First()
	if firstCell.Length() == 0 {
		return ""
	}
	return firstCell.Text()
}

// ParseNumericCell is the exported form of parseNumericCell, reused by
// the parser facade (C10) when resolving scalar labels it requests
// through ExtractScalars rather than a table cell.
func ParseNumericCell(raw string) (*decimal.Decimal, error) {
	return parseNumericCell(raw)
}

// parseNumericCell strips thousands separators and a trailing percent
// sign before parsing, and converts a percent value to its fractional
// form (e.g. "85.34%" -> 0.8534) so ratio fields are always stored as
// fractions regardless of how the source table rendered them.
func parseNumericCell(raw string) (*decimal.Decimal, error) {
	text := strings.TrimSpace(raw)
	text = strings.ReplaceAll(text, ",", "")
	text = strings.ReplaceAll(text, "，", "")
	isPercent := strings.HasSuffix(text, "%")
	text = strings.TrimSuffix(text, "%")
	text = strings.TrimSpace(text)
	if text == "" || text == "-" {
		return nil, eris.New("htmlreport: empty numeric cell")
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return nil, eris.Wrapf(err, "htmlreport: parse numeric cell %q", raw)
	}
	if isPercent {
		d = d.Div(decimal.NewFromInt(100))
	}
	return &d, nil
}
