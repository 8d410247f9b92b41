// Package reconcile turns the raw per-country tables into deduplicated,
// internally consistent records and assembles them into a typed graph.
package reconcile

import (
	"math"
	"strings"

	"github.com/tradegraph/core/internal/models"
)

// BuildGraph assembles the reconciled records into typed nodes and edges,
// each stamped with runID. Nodes come in upload order: countries, regions,
// goods. Edges referencing a node that is not part of the graph are skipped.
func BuildGraph(res *Result, runID string) *models.Graph {
	graph := &models.Graph{
		RunID: runID,
		Nodes: []models.Node{},
		Edges: []models.Edge{},
	}
	nodeMap := make(map[string]bool)

	addNode := func(label, id string, props map[string]any) {
		key := label + "\x00" + id
		if id == "" || nodeMap[key] {
			return
		}
		nodeMap[key] = true
		props["name"] = id
		props[models.PropRunID] = runID
		graph.Nodes = append(graph.Nodes, models.Node{ID: id, Type: label, Properties: props})
	}
	addEdge := func(edgeType, source, target, key string, props map[string]any) {
		ends := models.EdgeEndpoints[edgeType]
		if !nodeMap[ends[0]+"\x00"+source] || !nodeMap[ends[1]+"\x00"+target] {
			return
		}
		props[models.PropRunID] = runID
		graph.Edges = append(graph.Edges, models.Edge{
			Source:     source,
			Target:     target,
			Type:       edgeType,
			Key:        key,
			Properties: props,
		})
	}

	for _, p := range res.Profiles {
		addNode(models.LabelCountry, p.Country, countryProperties(p))
	}
	for _, r := range res.Regions {
		addNode(models.LabelRegion, r, map[string]any{})
	}
	for _, g := range res.Goods.Nodes {
		addNode(models.LabelGood, g.Name, map[string]any{"sub_goods": g.SubGoods})
	}

	for _, t := range res.Trades {
		addEdge(models.EdgeTrades, t.Exports, t.Imports, "", tradeProperties(t))
	}
	for _, m := range res.Memberships {
		addEdge(models.EdgeContains, m.Region, m.Country, "", map[string]any{
			"rank":      m.Rank,
			"retrieved": m.Retrieved,
		})
	}
	for _, l := range res.Goods.Links {
		props := map[string]any{
			"rank":      l.Rank,
			"year":      l.Year,
			"sub_good":  l.SubGood,
			"retrieved": l.Retrieved,
		}
		if l.TradeType == models.TradeTypeExports {
			addEdge(models.EdgeExports, l.Country, l.Good, l.SubGood, props)
		} else {
			addEdge(models.EdgeImports, l.Good, l.Country, l.SubGood, props)
		}
	}

	graph.Stats = buildStats(graph)
	return graph
}

func countryProperties(p models.CountryProfile) map[string]any {
	return map[string]any{
		"link":                     strings.Trim(p.Link, "/"),
		"amount_export":            billions(p.Exports.Amount),
		"year_export":              p.Exports.Year,
		"amount_import":            billions(p.Imports.Amount),
		"year_import":              p.Imports.Year,
		"primary_region":           p.Region,
		"gdp":                      billions(p.GDP.Amount),
		"year_gdp":                 p.GDP.Year,
		"gdp_per_capita":           p.GDPPerCapita.Amount,
		"year_gdp_per_capita":      p.GDPPerCapita.Year,
		"real_gdp":                 billions(p.RealGDP.Amount),
		"year_real_gdp":            p.RealGDP.Year,
		"real_gdp_per_capita":      p.RealGDPPerCapita.Amount,
		"year_real_gdp_per_capita": p.RealGDPPerCapita.Year,
		"population":               p.Population.Amount,
		"year_population":          p.Population.Year,
		"date_retrieved":           p.Retrieved,
	}
}

func tradeProperties(t models.TradeEdge) map[string]any {
	return map[string]any{
		"amount":             billions(t.Amount),
		"year":               t.Year,
		"percentage_exports": t.PercentageExports,
		"percentage_imports": t.PercentageImports,
		"export_trade_rank":  t.ExportRank,
		"import_trade_rank":  t.ImportRank,
		"trade_source":       t.TradeType,
		"retrieved":          t.Retrieved,
	}
}

// billions expresses an amount in billions rounded to three decimals.
func billions(amount float64) float64 {
	return math.Round(amount/1e6) / 1e3
}

func buildStats(graph *models.Graph) *models.Stats {
	stats := &models.Stats{
		TotalNodes:  len(graph.Nodes),
		TotalEdges:  len(graph.Edges),
		NodesByType: make(map[string]int),
		EdgesByType: make(map[string]int),
	}
	for _, n := range graph.Nodes {
		stats.NodesByType[n.Type]++
	}
	for _, e := range graph.Edges {
		stats.EdgesByType[e.Type]++
	}
	return stats
}
