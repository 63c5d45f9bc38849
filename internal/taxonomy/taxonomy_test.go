package taxonomy

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSchema = `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
           xmlns:xbrli="http://www.xbrl.org/2003/instance"
           xmlns:cfund="http://csrc.gov.cn/fund/2024"
           targetNamespace="http://csrc.gov.cn/fund/2024"
           elementFormDefault="qualified">
  <xs:element id="cfund_NetAssetValue" name="NetAssetValue" type="xbrli:monetaryItemType" substitutionGroup="xbrli:item" xbrli:periodType="instant"/>
  <xs:element id="cfund_ManagementFeeRatio" name="ManagementFeeRatio" type="xbrli:pureItemType" substitutionGroup="xbrli:item" xbrli:periodType="duration"/>
</xs:schema>`

const sampleLabelsWithArcs = `<?xml version="1.0"?>
<link:linkbase xmlns:link="http://www.xbrl.org/2003/linkbase" xmlns:xlink="http://www.w3.org/1999/xlink">
  <link:labelLink>
    <link:loc xlink:type="locator" xlink:href="schema.xsd#cfund_NetAssetValue" xlink:label="loc_nav"/>
    <link:label xlink:type="resource" xlink:label="label_nav" xlink:role="http://www.xbrl.org/2003/role/label" xml:lang="zh">基金资产净值</link:label>
    <link:labelArc xlink:type="arc" xlink:from="loc_nav" xlink:to="label_nav" xlink:arcrole="http://www.xbrl.org/2003/arcrole/concept-label"/>
  </link:labelLink>
</link:linkbase>`

func writeTaxonomyFixture(t *testing.T, dir, version, schema, labels string) {
	t.Helper()
	versionDir := filepath.Join(dir, version)
	require.NoError(t, os.MkdirAll(versionDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(versionDir, "schema.xsd"), []byte(schema), 0o644))
	if labels != "" {
		require.NoError(t, os.WriteFile(filepath.Join(versionDir, "labels.xml"), []byte(labels), 0o644))
	}
}

func TestLoad_ResolvesQNamesAndLabels(t *testing.T) {
	dir := t.TempDir()
	writeTaxonomyFixture(t, dir, "2024", sampleSchema, sampleLabelsWithArcs)

	tax, err := Load(dir, "2024")
	require.NoError(t, err)
	assert.Equal(t, "2024", tax.Version)

	concept, ok := tax.Lookup("cfund:NetAssetValue")
	require.True(t, ok)
	assert.Equal(t, "instant", concept.PeriodType)
	assert.Equal(t, "基金资产净值", concept.Label)

	byID, ok := tax.Lookup("cfund_ManagementFeeRatio")
	require.True(t, ok)
	assert.Equal(t, "duration", byID.PeriodType)
	assert.Empty(t, byID.Label)
}

func TestLoad_MissingLabelsIsTolerated(t *testing.T) {
	dir := t.TempDir()
	writeTaxonomyFixture(t, dir, "2024", sampleSchema, "")

	tax, err := Load(dir, "2024")
	require.NoError(t, err)
	concept, ok := tax.Lookup("cfund:NetAssetValue")
	require.True(t, ok)
	assert.Empty(t, concept.Label)
}

func TestManager_ResolveMatchesRuleAndCaches(t *testing.T) {
	dir := t.TempDir()
	writeTaxonomyFixture(t, dir, "2024", sampleSchema, sampleLabelsWithArcs)

	mgr := NewManager(dir, "2024", []VersionRule{
		{Pattern: regexp.MustCompile(`cfund-2024\.xsd$`), Version: "2024"},
	})

	tax1, warnings, err := mgr.Resolve("https://portal.example/cfund-2024.xsd")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	tax2, _, err := mgr.Resolve("https://portal.example/cfund-2024.xsd")
	require.NoError(t, err)
	assert.Same(t, tax1, tax2, "expected the cached taxonomy instance to be reused")
}

func TestManager_ResolveFallsBackOnUnmatchedSchemaRef(t *testing.T) {
	dir := t.TempDir()

	mgr := NewManager(dir, "2024", []VersionRule{
		{Pattern: regexp.MustCompile(`never-matches`), Version: "9999"},
	})

	tax, warnings, err := mgr.Resolve("https://portal.example/unknown-schema.xsd")
	require.NoError(t, err)
	require.NotEmpty(t, warnings)
	assert.Equal(t, "2024", tax.Version)
	concept, ok := tax.Lookup("cfund:NetAssetValue")
	require.True(t, ok)
	assert.True(t, concept.Placeholder)
}
