// Package models defines the core data structures shared by the pipeline.
// It includes the raw input rows, the reconciled records and the graph types.
package models

// Trade types reported by the partner and goods tables.
const (
	TradeTypeExports = "exports"
	TradeTypeImports = "imports"
)

// MetricRow is one observation of a per-country amount (exports, imports,
// one of the GDP variants). Amount and Year are nil when the source cell was
// empty.
type MetricRow struct {
	Link      string   `json:"link,omitempty"`
	Country   string   `json:"country"`
	Amount    *float64 `json:"amount,omitempty"`
	Year      *int     `json:"year,omitempty"`
	Retrieved string   `json:"retrieved,omitempty"`
}

type PopulationRow struct {
	Country    string   `json:"country"`
	Population *float64 `json:"population,omitempty"`
	Year       *int     `json:"year,omitempty"`
	Retrieved  string   `json:"retrieved,omitempty"`
}

// RegionRow assigns a country to a region. Rank 0 is the primary region.
type RegionRow struct {
	Region    string `json:"regions"`
	Country   string `json:"country"`
	Link      string `json:"link,omitempty"`
	Rank      int    `json:"rank"`
	Retrieved string `json:"retrieved,omitempty"`
}

// PartnerRow is one reported trade partner share. Percentage is a fraction
// (0.25 for 25%).
type PartnerRow struct {
	Link         string   `json:"link,omitempty"`
	Country      string   `json:"country"`
	TradeCountry string   `json:"trade_country"`
	Percentage   *float64 `json:"percentage,omitempty"`
	Year         *int     `json:"year,omitempty"`
	TradeType    string   `json:"trade_type"`
	Retrieved    string   `json:"retrieved,omitempty"`
}

// GoodsRow is one commodity in a country's reported export or import list.
type GoodsRow struct {
	Goods     string `json:"goods"`
	Country   string `json:"country"`
	Link      string `json:"link,omitempty"`
	Year      *int   `json:"year,omitempty"`
	Rank      int    `json:"rank"`
	TradeType string `json:"trade_type"`
	Retrieved string `json:"retrieved,omitempty"`
}

// GoodsMapping maps a raw commodity label to its canonical group.
type GoodsMapping struct {
	Goods      string `json:"goods"`
	MappedGood string `json:"mapped_good"`
}

// Tables is the complete set of raw inputs for one run.
type Tables struct {
	Regions          []RegionRow     `json:"regions"`
	Population       []PopulationRow `json:"population"`
	Exports          []MetricRow     `json:"exports"`
	Imports          []MetricRow     `json:"imports"`
	GDP              []MetricRow     `json:"gdp"`
	GDPPerCapita     []MetricRow     `json:"gdp_per_capita"`
	RealGDP          []MetricRow     `json:"real_gdp"`
	RealGDPPerCapita []MetricRow     `json:"real_gdp_per_capita"`
	ExportPartners   []PartnerRow    `json:"exports_partners"`
	ImportPartners   []PartnerRow    `json:"imports_partners"`
	ExportGoods      []GoodsRow      `json:"exports_goods"`
	ImportGoods      []GoodsRow      `json:"imports_goods"`
	GoodsMapping     []GoodsMapping  `json:"goods_grouping"`
}
