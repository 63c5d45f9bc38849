// Package ixbrl implements C5: locating and serializing the embedded
// <xbrl> island inside an inline-XBRL HTML document.
package ixbrl

import (
	"bytes"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// Extract locates the first element whose local name is "xbrl" under
// <body> (falling back to a document-wide search when body has none,
// or has no such descendant) and serializes its subtree. Returns
// (nil, nil) — not an error — when no such element exists, since "not
// inline XBRL" is an expected, non-exceptional outcome for the parser
// facade's fallback chain.
func Extract(r io.Reader) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "ixbrl: parse html")
	}

	node := findXBRLNode(doc.Find("body"))
	if node == nil {
		node = findXBRLNode(doc.Selection)
	}
	if node == nil {
		return nil, nil
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, node); err != nil {
		return nil, eris.Wrap(err, "ixbrl: render xbrl node")
	}
	return buf.Bytes(), nil
}

// findXBRLNode walks sel's descendants (and sel itself) in document
// order and returns the first node whose local tag name is "xbrl".
// goquery/cascadia selectors have no namespace-aware local-name match,
// so this walks the tree manually — HTML5 parsing keeps a prefixed tag
// such as "ix:xbrl" as its element name, and hasLocalName strips the
// prefix, so "ix:xbrl" and bare "xbrl" both reduce to the same check.
func findXBRLNode(sel *goquery.Selection) *html.Node {
	var found *html.Node
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		n := s.Get(0)
		if hasLocalName(n, "xbrl") {
			found = n
			return false
		}
		if child := findXBRLNode(s.Children()); child != nil {
			found = child
			return false
		}
		return true
	})
	return found
}

// hasLocalName reports whether n's tag name equals name once any
// namespace prefix is stripped.
func hasLocalName(n *html.Node, name string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	tag := n.Data
	if idx := strings.IndexByte(tag, ':'); idx >= 0 {
		tag = tag[idx+1:]
	}
	return strings.EqualFold(tag, name)
}
