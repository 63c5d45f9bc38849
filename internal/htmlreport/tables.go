// Package htmlreport implements C9: the last-resort fallback parser
// for plain HTML fund reports that carry no XBRL or inline XBRL at
// all, extracting the same tables and scalars by walking the rendered
// DOM with goquery.
package htmlreport

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// columnAliases maps a recognized output column name to every header
// label observed in the wild for it. Header matching never indexes
// columns positionally — a report that reorders its columns must still
// parse correctly.
var columnAliases = map[string][]string{
	"security_name":     {"证券名称", "股票名称", "债券名称"},
	"security_code":     {"证券代码", "股票代码", "债券代码"},
	"shares":            {"持股数量", "数量（股）", "持有数量"},
	"market_value":      {"公允价值", "市值", "公允价值（元）"},
	"net_value_ratio":   {"占基金资产净值比例", "占净值比例", "占比"},
	"industry_name":     {"行业类别", "所属行业"},
	"industry_code":     {"行业代码"},
	"category":          {"资产类别", "项目"},
	"amount":            {"金额", "金额（元）", "公允价值（元）"},
}

// HoldingRow is one parsed row of a top-holdings table.
type HoldingRow struct {
	SecurityCode  string
	SecurityName  string
	Shares        *decimal.Decimal
	MarketValue   *decimal.Decimal
	NetValueRatio *decimal.Decimal
}

// AllocationRow is one parsed row of an asset/industry allocation table.
type AllocationRow struct {
	Label       string
	Code        string
	Amount      *decimal.Decimal
	Ratio       *decimal.Decimal
}

// Document wraps a parsed HTML report for repeated table/scalar lookups.
type Document struct {
	doc *goquery.Document
}

// Parse reads r as HTML and returns a Document ready for extraction.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "htmlreport: parse html")
	}
	return &Document{doc: doc}, nil
}

// columnIndex builds header_label -> column_index from a table's first
// row, resolving each header cell's text against columnAliases.
func columnIndex(headerRow *goquery.Selection) map[string]int {
	index := make(map[string]int)
	headerRow.Find("th, td").Each(func(i int, cell *goquery.Selection) {
		text := normalizeCell(cell.Text())
		for field, aliases := range columnAliases {
			for _, alias := range aliases {
				if strings.Contains(text, alias) {
					if _, already := index[field]; !already {
						index[field] = i
					}
				}
			}
		}
	})
	return index
}

// ExtractHoldings finds the first table whose header row resolves at
// least security_code or security_name, and parses its body rows.
func (d *Document) ExtractHoldings() ([]HoldingRow, error) {
	var rows []HoldingRow

	d.doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		trs := table.Find("tr")
		if trs.Length() < 2 {
			return true
		}
		cols := columnIndex(trs.First())
		if _, ok := cols["security_code"]; !ok {
			if _, ok := cols["security_name"]; !ok {
				return true
			}
		}

		trs.Slice(1, trs.Length()).Each(func(_ int, tr *goquery.Selection) {
			cells := tr.Find("td")
			row := HoldingRow{
				SecurityCode: cellAt(cells, cols, "security_code"),
				SecurityName: cellAt(cells, cols, "security_name"),
			}
			row.Shares = decimalAt(cells, cols, "shares")
			row.MarketValue = decimalAt(cells, cols, "market_value")
			row.NetValueRatio = decimalAt(cells, cols, "net_value_ratio")
			if row.SecurityCode != "" || row.SecurityName != "" {
				rows = append(rows, row)
			}
		})
		return false
	})

	return rows, nil
}

// ExtractAllocations finds the first table whose header resolves
// category/industry plus amount or ratio, and parses its body rows.
func (d *Document) ExtractAllocations() ([]AllocationRow, error) {
	var rows []AllocationRow

	d.doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		trs := table.Find("tr")
		if trs.Length() < 2 {
			return true
		}
		cols := columnIndex(trs.First())
		_, hasCategory := cols["category"]
		_, hasIndustry := cols["industry_name"]
		if !hasCategory && !hasIndustry {
			return true
		}

		labelField := "category"
		if hasIndustry {
			labelField = "industry_name"
		}

		trs.Slice(1, trs.Length()).Each(func(_ int, tr *goquery.Selection) {
			cells := tr.Find("td")
			row := AllocationRow{
				Label: cellAt(cells, cols, labelField),
				Code:  cellAt(cells, cols, "industry_code"),
			}
			row.Amount = decimalAt(cells, cols, "amount")
			row.Ratio = decimalAt(cells, cols, "net_value_ratio")
			if row.Label != "" {
				rows = append(rows, row)
			}
		})
		return false
	})

	return rows, nil
}

func cellAt(cells *goquery.Selection, cols map[string]int, field string) string {
	idx, ok := cols[field]
	if !ok || idx >= cells.Length() {
		return ""
	}
	return normalizeCell(cells.Eq(idx).Text())
}

func decimalAt(cells *goquery.Selection, cols map[string]int, field string) *decimal.Decimal {
	text := cellAt(cells, cols, field)
	if text == "" {
		return nil
	}
	d, err := parseNumericCell(text)
	if err != nil {
		return nil
	}
	return d
}

func normalizeCell(s string) string {
	return strings.TrimSpace(s)
}
