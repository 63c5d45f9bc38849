// Package conceptmap implements C8: translating a taxonomy-versioned
// set of XBRL facts into a ParsedFundReport's typed fields, per a
// YAML-configured mapping of concept QNames to scalar fields and table
// rows.
package conceptmap

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ScalarGroupEntry is one fixed label/concept pair in a "scalar_group"
// allocation table (spec.md §6.2) — used when a report carries one
// concept per asset type rather than one dimension-tagged concept
// repeated across contexts.
type ScalarGroupEntry struct {
	Label         string `yaml:"label"`
	Subtype       string `yaml:"subtype,omitempty"`
	AmountConcept string `yaml:"concept"`
	RatioConcept  string `yaml:"ratio_concept,omitempty"`
}

// TableConfig describes one multi-row table. Kind selects between:
//   - "dimension" (default): one row per distinct member of
//     DimensionAxis, values from AmountConcept/RatioConcept in that
//     member's context.
//   - "scalar_group": one row per configured Entries item, each
//     resolved as an independent scalar concept (spec.md §6.2's
//     asset_allocations example shape).
type TableConfig struct {
	Kind          string             `yaml:"kind,omitempty"`
	DimensionAxis string             `yaml:"dimension_axis,omitempty"`
	AmountConcept string             `yaml:"amount_concept,omitempty"`
	RatioConcept  string             `yaml:"ratio_concept,omitempty"`
	Entries       []ScalarGroupEntry `yaml:"entries,omitempty"`
}

// IsScalarGroup reports whether this table resolves by fixed entries
// rather than by grouping facts under a dimension axis.
func (t TableConfig) IsScalarGroup() bool {
	return t.Kind == "scalar_group"
}

// HoldingsConfig describes the top-holdings table: one row per distinct
// context that carries any of the listed concepts.
type HoldingsConfig struct {
	SecurityCodeConcept  string `yaml:"security_code_concept"`
	SecurityNameConcept  string `yaml:"security_name_concept"`
	SharesConcept        string `yaml:"shares_concept"`
	MarketValueConcept   string `yaml:"market_value_concept"`
	NetValueRatioConcept string `yaml:"net_value_ratio_concept"`
	RankConcept          string `yaml:"rank_concept,omitempty"`
}

// ReportTypeConfig resolves report_type from a document-period-type-like
// concept fact (spec.md §4.8), ahead of the report_desc fallback.
type ReportTypeConfig struct {
	Concept string            `yaml:"concept"`
	Values  map[string]string `yaml:"values"` // raw fact value -> ReportType string
}

// Config is the per-taxonomy-version mapping rule set, loaded from
// YAML. Scalar field
// names recognized by the mapper: fund_code, fund_name, fund_manager
// (strings), report_period_start, report_period_end (dates),
// net_asset_value, total_net_assets, period_profit (decimals).
type Config struct {
	Scalars             map[string]string `yaml:"scalars"`
	ReportType          ReportTypeConfig  `yaml:"report_type"`
	AssetAllocations    TableConfig       `yaml:"asset_allocations"`
	IndustryAllocations TableConfig       `yaml:"industry_allocations"`
	TopHoldings         HoldingsConfig    `yaml:"top_holdings"`
}

// LoadConfig reads a mapping config from path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "conceptmap: read config %s", path)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, eris.Wrapf(err, "conceptmap: parse config %s", path)
	}
	return &cfg, nil
}
