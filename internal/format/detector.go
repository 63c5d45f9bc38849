// Package format implements C4: scoring a downloaded document as XBRL,
// iXBRL, HTML, or UNKNOWN before it is handed to the parser facade.
package format

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Kind is the detected document format.
type Kind string

const (
	KindXBRL    Kind = "XBRL"
	KindIXBRL   Kind = "IXBRL"
	KindHTML    Kind = "HTML"
	KindUnknown Kind = "UNKNOWN"
)

// sniffWindow bounds how much of the document is inspected. 128KiB is
// enough to reach the root element and its namespace declarations for
// any realistically-sized instance document or HTML page.
const sniffWindow = 128 * 1024

// Result is the outcome of detection: the winning Kind plus the raw
// per-candidate scores, kept for diagnostics/logging.
type Result struct {
	Kind   Kind
	Scores map[Kind]float64
}

// Detect reads up to sniffWindow bytes from r and scores each candidate
// format independently, then picks the highest score with tie order
// iXBRL > XBRL > HTML. Returns an error only when reading r fails;
// unrecognized input is not an error — worst case is UNKNOWN with every
// score 0, since the parser facade must still be able to try its
// fallback chain against it.
func Detect(r io.Reader) (Result, error) {
	buf := make([]byte, sniffWindow)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Result{}, err
	}
	sample := buf[:n]

	scores := map[Kind]float64{
		KindXBRL:  scoreXBRL(sample),
		KindIXBRL: scoreIXBRL(sample),
		KindHTML:  scoreHTML(sample),
	}

	best := KindUnknown
	bestScore := 0.0
	for _, k := range []Kind{KindIXBRL, KindXBRL, KindHTML} {
		if scores[k] > bestScore {
			bestScore = scores[k]
			best = k
		}
	}

	return Result{Kind: best, Scores: scores}, nil
}

// scoreXBRL looks for an xbrli-namespaced root element via a streaming
// token scan — cheaper and more forgiving of malformed trailing content
// than parsing the whole document.
func scoreXBRL(sample []byte) float64 {
	dec := xml.NewDecoder(bytes.NewReader(sample))
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if strings.EqualFold(start.Name.Local, "xbrl") {
			return 0.95
		}
		for _, attr := range start.Attr {
			if strings.Contains(attr.Value, "xbrl-instance") {
				return 0.9
			}
		}
		// Only the root element matters for this check.
		return 0.0
	}
	return 0.0
}

// scoreIXBRL tokenizes as HTML and looks for the ix: namespace prefix
// on any tag or attribute — inline XBRL is always carried inside an
// HTML or XHTML document, so the XBRL-only streaming scan above never
// fires for it.
func scoreIXBRL(sample []byte) float64 {
	tok := html.NewTokenizer(bytes.NewReader(sample))
	seenHTML := false
	for {
		tt := tok.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := tok.TagName()
		tagName := string(name)
		if strings.EqualFold(tagName, "html") {
			seenHTML = true
		}
		if strings.HasPrefix(tagName, "ix:") {
			return 0.9
		}
		if hasAttr {
			for {
				key, val, more := tok.TagAttr()
				if bytes.Contains(val, []byte("inlineXBRL")) || bytes.HasPrefix(key, []byte("xmlns:ix")) {
					return 0.9
				}
				if !more {
					break
				}
			}
		}
	}
	if seenHTML {
		return 0.0
	}
	return 0.0
}

// scoreHTML is the weakest positive signal: merely well-formed HTML
// with no XBRL markers at all.
func scoreHTML(sample []byte) float64 {
	tok := html.NewTokenizer(bytes.NewReader(sample))
	for {
		tt := tok.Next()
		if tt == html.ErrorToken {
			return 0.0
		}
		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			name, _ := tok.TagName()
			if strings.EqualFold(string(name), "html") {
				return 0.5
			}
		}
	}
}
