package htmlreport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHoldingsHTML = `<html><body>
<table>
<tr><th>证券代码</th><th>证券名称</th><th>持股数量</th><th>公允价值</th><th>占净值比例</th></tr>
<tr><td>600000</td><td>示例股份</td><td>1,200,000</td><td>15,600,000</td><td>12.50%</td></tr>
<tr><td>000002</td><td>另一只股票</td><td>800,000</td><td>9,400,000</td><td>7.52%</td></tr>
</table>
</body></html>`

const sampleAllocationHTML = `<html><body>
<table>
<tr><th>资产类别</th><th>金额（元）</th></tr>
<tr><td>股票</td><td>70,000,000</td></tr>
<tr><td>债券</td><td>30,000,000</td></tr>
</table>
</body></html>`

func TestExtractHoldings_MatchesColumnsByHeaderNotPosition(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleHoldingsHTML))
	require.NoError(t, err)

	rows, err := doc.ExtractHoldings()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "600000", rows[0].SecurityCode)
	assert.Equal(t, "示例股份", rows[0].SecurityName)
	require.NotNil(t, rows[0].NetValueRatio)
}

func TestExtractAllocations_ParsesAmounts(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleAllocationHTML))
	require.NoError(t, err)

	rows, err := doc.ExtractAllocations()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "股票", rows[0].Label)
	require.NotNil(t, rows[0].Amount)
}

func TestParseNumericCell_HandlesPercentAndThousands(t *testing.T) {
	ratio, err := parseNumericCell("12.50%")
	require.NoError(t, err)
	assert.Equal(t, "0.125", ratio.String())

	amount, err := parseNumericCell("1,200,000")
	require.NoError(t, err)
	assert.Equal(t, "1200000", amount.String())
}
