// Package models defines the core data structures shared by the pipeline.
// It includes the raw input rows, the reconciled records and the graph types.
package models

// DefaultYear is the year used whenever a source row is absent.
const DefaultYear = 1970

// Measure is an amount together with the year it was reported for.
type Measure struct {
	Amount float64 `json:"amount"`
	Year   int     `json:"year"`
}

// CountryProfile is the reconciled one-row-per-country record.
type CountryProfile struct {
	Country          string  `json:"country"`
	Link             string  `json:"link"`
	Region           string  `json:"regions"`
	Retrieved        string  `json:"retrieved"`
	Population       Measure `json:"population"`
	Exports          Measure `json:"exports"`
	Imports          Measure `json:"imports"`
	GDP              Measure `json:"gdp"`
	GDPPerCapita     Measure `json:"gdp_per_capita"`
	RealGDP          Measure `json:"real_gdp"`
	RealGDPPerCapita Measure `json:"real_gdp_per_capita"`
}

// TradeEdge is one reconciled directed trade relationship.
type TradeEdge struct {
	Exports           string  `json:"exports"`
	Imports           string  `json:"imports"`
	Amount            float64 `json:"amount"`
	Year              int     `json:"year"`
	PercentageExports float64 `json:"percentage_exports"`
	PercentageImports float64 `json:"percentage_imports"`
	ExportRank        int     `json:"export_trade_rank"`
	ImportRank        int     `json:"import_trade_rank"`
	TradeType         string  `json:"trade_type"`
	Retrieved         string  `json:"retrieved"`
}

// GoodsGroup is a canonical goods group with the raw labels observed under it.
type GoodsGroup struct {
	Name     string   `json:"name"`
	SubGoods []string `json:"sub_goods"`
}

// GoodsLink connects a country to a good for one reported commodity.
type GoodsLink struct {
	Country   string `json:"country"`
	Good      string `json:"good"`
	SubGood   string `json:"sub_good"`
	Rank      int    `json:"rank"`
	Year      int    `json:"year"`
	TradeType string `json:"trade_type"`
	Retrieved string `json:"retrieved"`
}

// Membership connects a region to a country.
type Membership struct {
	Region    string `json:"region"`
	Country   string `json:"country"`
	Rank      int    `json:"rank"`
	Retrieved string `json:"retrieved"`
}

// Centrality holds the two scores written back by the analytics engine.
// Either score is nil when the engine produced none for the country.
type Centrality struct {
	PageRank    *float64 `json:"page_rank,omitempty"`
	ArticleRank *float64 `json:"article_rank,omitempty"`
}

// CountryExport is a profile enriched with its centrality scores.
type CountryExport struct {
	CountryProfile
	Centrality
}
