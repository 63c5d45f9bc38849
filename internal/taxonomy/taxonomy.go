// Package taxonomy implements C7: loading an xs:schema plus its paired
// label linkbase into a version-keyed, immutable Taxonomy safe to share
// across concurrent parses.
package taxonomy

import (
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/csrc-disclosure/fundreport-sync/internal/model"
)

type elementXML struct {
	ID                string `xml:"id,attr"`
	Name              string `xml:"name,attr"`
	Type              string `xml:"type,attr"`
	SubstitutionGroup string `xml:"substitutionGroup,attr"`
	Abstract          string `xml:"abstract,attr"`
	PeriodType        string `xml:"periodType,attr"`
}

type schemaXML struct {
	Elements []elementXML `xml:"element"`
}

type locXML struct {
	Label string `xml:"label,attr"`
	Href  string `xml:"href,attr"`
}

type labelArcXML struct {
	From string `xml:"from,attr"`
	To   string `xml:"to,attr"`
}

type labelXML struct {
	Label string `xml:"label,attr"`
	Role  string `xml:"role,attr"`
	Text  string `xml:",chardata"`
}

type linkbaseXML struct {
	Locs   []locXML      `xml:"labelLink>loc"`
	Arcs   []labelArcXML `xml:"labelLink>labelArc"`
	Labels []labelXML    `xml:"labelLink>label"`
}

const standardLabelRole = "http://www.xbrl.org/2003/role/label"

// Load reads "<baseDir>/<version>/schema.xsd" and, if present,
// "<baseDir>/<version>/labels.xml", and builds the corresponding
// Taxonomy. A missing labels.xml is tolerated — concepts simply carry
// an empty Label.
func Load(baseDir, version string) (*model.Taxonomy, error) {
	schemaPath := filepath.Join(baseDir, version, "schema.xsd")
	schemaFile, err := os.Open(schemaPath)
	if err != nil {
		return nil, eris.Wrapf(err, "taxonomy: open schema for version %s", version)
	}
	defer schemaFile.Close() //nolint:errcheck

	prefix, elements, err := parseSchema(schemaFile)
	if err != nil {
		return nil, eris.Wrapf(err, "taxonomy: parse schema for version %s", version)
	}

	labels, err := loadLabels(filepath.Join(baseDir, version, "labels.xml"))
	if err != nil {
		return nil, eris.Wrapf(err, "taxonomy: parse labels for version %s", version)
	}

	byID := make(map[string]model.ConceptMeta, len(elements))
	byQName := make(map[string]model.ConceptMeta, len(elements))
	for _, el := range elements {
		qname := el.Name
		if prefix != "" {
			qname = prefix + ":" + el.Name
		}
		meta := model.ConceptMeta{
			ID:                el.ID,
			QName:             qname,
			Type:              el.Type,
			SubstitutionGroup: el.SubstitutionGroup,
			Abstract:          el.Abstract == "true",
			PeriodType:        el.PeriodType,
			Label:             labels[el.ID],
		}
		byID[meta.ID] = meta
		byQName[meta.QName] = meta
	}

	return &model.Taxonomy{Version: version, ByID: byID, ByQName: byQName}, nil
}

// parseSchema reads the xs:schema root to resolve its targetNamespace
// prefix, then decodes the element declarations beneath it.
func parseSchema(r io.Reader) (string, []elementXML, error) {
	dec := xml.NewDecoder(r)
	var root xml.StartElement
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", nil, eris.Wrap(err, "find schema root")
		}
		if se, ok := tok.(xml.StartElement); ok {
			root = se
			break
		}
	}

	var targetNS string
	nsToPrefix := make(map[string]string)
	for _, a := range root.Attr {
		if a.Name.Local == "targetNamespace" {
			targetNS = a.Value
		}
		if a.Name.Space == "xmlns" {
			nsToPrefix[a.Value] = a.Name.Local
		}
	}

	var schema schemaXML
	if err := dec.DecodeElement(&schema, &root); err != nil {
		return "", nil, err
	}
	return nsToPrefix[targetNS], schema.Elements, nil
}

// loadLabels parses a label linkbase into a map of element id -> label
// text. When labelArc elements are present, loc and label ends are
// paired via their from/to xlink:label references (the correct XBRL
// linkbase semantics); when a linkbase carries no arcs at all (some
// simplified/generated linkbases omit them), loc and label are instead
// paired by sharing the same xlink:label value directly.
func loadLabels(path string) (map[string]string, error) {
	result := make(map[string]string)

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close() //nolint:errcheck

	var lb linkbaseXML
	if err := xml.NewDecoder(file).Decode(&lb); err != nil {
		return nil, err
	}

	locByLabel := make(map[string]string, len(lb.Locs))
	for _, l := range lb.Locs {
		id := l.Href
		if i := strings.LastIndex(id, "#"); i >= 0 {
			id = id[i+1:]
		}
		locByLabel[l.Label] = id
	}

	textByLabel := make(map[string]string, len(lb.Labels))
	for _, lab := range lb.Labels {
		if _, exists := textByLabel[lab.Label]; !exists || lab.Role == standardLabelRole {
			textByLabel[lab.Label] = lab.Text
		}
	}

	if len(lb.Arcs) > 0 {
		for _, arc := range lb.Arcs {
			elementID, ok := locByLabel[arc.From]
			if !ok {
				continue
			}
			if text, ok := textByLabel[arc.To]; ok {
				result[elementID] = text
			}
		}
	} else {
		for label, elementID := range locByLabel {
			if text, ok := textByLabel[label]; ok {
				result[elementID] = text
			}
		}
	}

	return result, nil
}

// BootstrapTaxonomy returns a minimal, hand-seeded set of the core
// monetary concepts every fund report needs, flagged Placeholder so
// downstream provenance surfaces that real taxonomy files were never
// loaded for this version. Used only when a version directory is
// missing entirely, so a batch doesn't hard-fail wholesale when the
// portal ships a schema revision ahead of the operator's config.
func BootstrapTaxonomy(version string) *model.Taxonomy {
	placeholders := []model.ConceptMeta{
		{ID: "cfund_NetAssetValue", QName: "cfund:NetAssetValue", Type: "xbrli:monetaryItemType", PeriodType: "instant", Placeholder: true},
		{ID: "cfund_NetAssetValuePerShare", QName: "cfund:NetAssetValuePerShare", Type: "xbrli:decimalItemType", PeriodType: "instant", Placeholder: true},
	}
	byID := make(map[string]model.ConceptMeta, len(placeholders))
	byQName := make(map[string]model.ConceptMeta, len(placeholders))
	for _, c := range placeholders {
		byID[c.ID] = c
		byQName[c.QName] = c
	}
	return &model.Taxonomy{Version: version, ByID: byID, ByQName: byQName}
}
