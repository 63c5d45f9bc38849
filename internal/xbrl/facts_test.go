package xbrl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleInstance = `<?xml version="1.0" encoding="UTF-8"?>
<xbrl xmlns="http://www.xbrl.org/2003/instance" xmlns:cfund="http://csrc.gov.cn/fund/2024" xmlns:xbrldi="http://xbrl.org/2006/xbrldi" xmlns:link="http://www.xbrl.org/2003/linkbase" xmlns:xlink="http://www.w3.org/1999/xlink">
  <link:schemaRef xlink:href="cfund-2024.xsd" xlink:type="simple"/>
  <context id="c-instant">
    <entity>
      <identifier scheme="csrc">000001</identifier>
    </entity>
    <period>
      <instant>2025-03-31</instant>
    </period>
  </context>
  <context id="c-duration">
    <entity>
      <identifier scheme="csrc">000001</identifier>
    </entity>
    <period>
      <startDate>2025-01-01</startDate>
      <endDate>2025-03-31</endDate>
    </period>
  </context>
  <context id="c-dim">
    <entity>
      <identifier scheme="csrc">000001</identifier>
      <segment>
        <xbrldi:explicitMember dimension="cfund:AssetCategoryAxis">cfund:EquityMember</xbrldi:explicitMember>
      </segment>
    </entity>
    <period>
      <instant>2025-03-31</instant>
    </period>
  </context>
  <unit id="u-cny">
    <measure>iso4217:CNY</measure>
  </unit>
  <cfund:NetAssetValue contextRef="c-instant" unitRef="u-cny" decimals="-2">123456789.50</cfund:NetAssetValue>
  <cfund:UnmappedExperimentalConcept contextRef="c-instant">99</cfund:UnmappedExperimentalConcept>
</xbrl>`

func TestParse_ExtractsContextsUnitsAndFacts(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleInstance))
	require.NoError(t, err)

	assert.Equal(t, "cfund-2024.xsd", doc.SchemaRef)
	require.Contains(t, doc.Contexts, "c-instant")
	assert.True(t, doc.Contexts["c-instant"].Period.IsInstant())

	require.Contains(t, doc.Contexts, "c-duration")
	assert.False(t, doc.Contexts["c-duration"].Period.IsInstant())
	require.NotNil(t, doc.Contexts["c-duration"].Period.StartDate)
	require.NotNil(t, doc.Contexts["c-duration"].Period.EndDate)

	require.Contains(t, doc.Contexts, "c-dim")
	assert.Equal(t, "cfund:EquityMember", doc.Contexts["c-dim"].Dimensions["cfund:AssetCategoryAxis"])

	require.Contains(t, doc.Units, "u-cny")
	assert.Equal(t, "iso4217:CNY", doc.Units["u-cny"].Measure)

	require.Len(t, doc.Facts, 2)
	foundNAV, foundUnmapped := false, false
	for _, f := range doc.Facts {
		switch f.ConceptQName {
		case "cfund:NetAssetValue":
			foundNAV = true
			assert.Equal(t, "c-instant", f.ContextRef)
			assert.Equal(t, "u-cny", f.UnitRef)
			require.NotNil(t, f.Decimals)
			assert.Equal(t, -2, *f.Decimals)
			assert.Equal(t, "123456789.50", f.RawValue)
		case "cfund:UnmappedExperimentalConcept":
			foundUnmapped = true
		}
	}
	assert.True(t, foundNAV, "expected mapped concept fact to be surfaced")
	assert.True(t, foundUnmapped, "expected unmapped concept fact to still be surfaced")
}
