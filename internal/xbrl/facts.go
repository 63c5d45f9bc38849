// Package xbrl implements C6: a native, streaming encoding/xml parser
// over an XBRL instance document, producing contexts, units, and every
// fact found — including facts whose concept doesn't resolve against
// any loaded taxonomy, which must still be surfaced rather than
// silently dropped.
package xbrl

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/csrc-disclosure/fundreport-sync/internal/model"
)

// Parse reads an XBRL instance document and returns its contexts,
// units, schemaRef, and the full set of facts.
func Parse(r io.Reader) (*model.XBRLDocument, error) {
	dec := xml.NewDecoder(r)

	doc := &model.XBRLDocument{
		Contexts: make(map[string]model.XBRLContext),
		Units:    make(map[string]model.XBRLUnit),
	}
	nsToPrefix := make(map[string]string)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "xbrl: tokenize")
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		recordNamespaces(se, nsToPrefix)

		switch se.Name.Local {
		case "context":
			var cx contextXML
			if err := dec.DecodeElement(&cx, &se); err != nil {
				return nil, eris.Wrapf(err, "xbrl: decode context at offset %d", dec.InputOffset())
			}
			doc.Contexts[cx.ID] = toContext(cx)

		case "unit":
			var ux unitXML
			if err := dec.DecodeElement(&ux, &se); err != nil {
				return nil, eris.Wrapf(err, "xbrl: decode unit at offset %d", dec.InputOffset())
			}
			doc.Units[ux.ID] = toUnit(ux)

		case "schemaRef":
			if href, ok := attrValue(se, "href"); ok {
				doc.SchemaRef = href
			}

		default:
			if _, hasContextRef := attrValue(se, "contextRef"); hasContextRef {
				fact, err := decodeFact(dec, se, nsToPrefix)
				if err != nil {
					return nil, eris.Wrapf(err, "xbrl: decode fact %s", se.Name.Local)
				}
				doc.Facts = append(doc.Facts, fact)
			}
		}
	}

	return doc, nil
}

type factXML struct {
	ContextRef string `xml:"contextRef,attr"`
	UnitRef    string `xml:"unitRef,attr"`
	Decimals   string `xml:"decimals,attr"`
	Value      string `xml:",chardata"`
}

func decodeFact(dec *xml.Decoder, se xml.StartElement, nsToPrefix map[string]string) (model.XBRLFact, error) {
	var fx factXML
	if err := dec.DecodeElement(&fx, &se); err != nil {
		return model.XBRLFact{}, err
	}

	var decimals *int
	if fx.Decimals != "" {
		if d, err := strconv.Atoi(strings.TrimSpace(fx.Decimals)); err == nil {
			decimals = &d
		}
	}

	return model.XBRLFact{
		ConceptQName: qname(se.Name, nsToPrefix),
		ContextRef:   fx.ContextRef,
		UnitRef:      fx.UnitRef,
		Decimals:     decimals,
		RawValue:     strings.TrimSpace(fx.Value),
	}, nil
}

// recordNamespaces scans a StartElement's attributes for xmlns
// declarations and remembers the prefix a namespace URI was declared
// under, so later elements resolved to that URI can be rendered back
// as "prefix:Local" the way the source document wrote them.
func recordNamespaces(se xml.StartElement, nsToPrefix map[string]string) {
	for _, a := range se.Attr {
		switch {
		case a.Name.Space == "xmlns":
			nsToPrefix[a.Value] = a.Name.Local
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			nsToPrefix[a.Value] = ""
		}
	}
}

// qname reconstructs a "prefix:Local" concept name from a resolved
// xml.Name, falling back to the bare local name when no prefix is on
// record for its namespace (e.g. a document with no xmlns at all).
func qname(name xml.Name, nsToPrefix map[string]string) string {
	if name.Space == "" {
		return name.Local
	}
	if prefix, ok := nsToPrefix[name.Space]; ok && prefix != "" {
		return prefix + ":" + name.Local
	}
	return name.Local
}

func attrValue(se xml.StartElement, local string) (string, bool) {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}
