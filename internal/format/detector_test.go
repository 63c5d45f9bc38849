package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_XBRLInstance(t *testing.T) {
	doc := `<?xml version="1.0"?>
<xbrl xmlns="http://www.xbrl.org/2003/instance" xmlns:xbrli="http://www.xbrl.org/2003/instance">
  <context id="c1"><entity><identifier>1</identifier></entity></context>
</xbrl>`

	result, err := Detect(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, KindXBRL, result.Kind)
}

func TestDetect_InlineXBRL(t *testing.T) {
	doc := `<html xmlns:ix="http://www.xbrl.org/2013/inlineXBRL">
<body><ix:nonFraction name="cfund:NetAssetValue">1000</ix:nonFraction></body>
</html>`

	result, err := Detect(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, KindIXBRL, result.Kind)
}

func TestDetect_PlainHTML(t *testing.T) {
	doc := `<html><body><table><tr><td>证券名称</td></tr></table></body></html>`

	result, err := Detect(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, KindHTML, result.Kind)
}

func TestDetect_Unknown(t *testing.T) {
	doc := `not a document at all, just some bytes`

	result, err := Detect(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, result.Kind)
}
