// Package reconcile turns the raw per-country tables into deduplicated,
// internally consistent records and assembles them into a typed graph.
package reconcile

import (
	"sort"

	"github.com/tradegraph/core/internal/models"
)

// Observation is one side's report of a trade flow, already oriented from
// exporter to importer.
type Observation struct {
	Exports   string
	Imports   string
	Amount    *float64
	Year      *int
	TradeType string
	Retrieved string
}

// ObservationPriority reports whether a beats b when both describe the same
// (exporter, importer) pair: the newer year wins, then the larger amount,
// then the export-reported observation. Absent years and amounts lose.
func ObservationPriority(a, b Observation) bool {
	if !sameYear(a.Year, b.Year) {
		return newerYear(a.Year, b.Year)
	}
	if !sameAmount(a.Amount, b.Amount) {
		return largerAmount(a.Amount, b.Amount)
	}
	return tradeTypeOrder(a.TradeType) < tradeTypeOrder(b.TradeType)
}

func tradeTypeOrder(tradeType string) int {
	if tradeType == models.TradeTypeExports {
		return 0
	}
	return 1
}

// Observations orients the partner tables into exporter → importer
// observations. Export-side rows come first. The absolute amount is the
// reporter's latest total multiplied by the reported share; it is absent when
// either factor is.
func Observations(exportPartners, importPartners []models.PartnerRow, exportTotals, importTotals map[string]models.MetricRow) []Observation {
	observations := make([]Observation, 0, len(exportPartners)+len(importPartners))

	for _, row := range exportPartners {
		observations = append(observations, Observation{
			Exports:   row.Country,
			Imports:   row.TradeCountry,
			Amount:    share(exportTotals, row.Country, row.Percentage),
			Year:      row.Year,
			TradeType: models.TradeTypeExports,
			Retrieved: row.Retrieved,
		})
	}

	for _, row := range importPartners {
		observations = append(observations, Observation{
			Exports:   row.TradeCountry,
			Imports:   row.Country,
			Amount:    share(importTotals, row.Country, row.Percentage),
			Year:      row.Year,
			TradeType: models.TradeTypeImports,
			Retrieved: row.Retrieved,
		})
	}

	return observations
}

func share(totals map[string]models.MetricRow, country string, percentage *float64) *float64 {
	total, ok := totals[country]
	if !ok || total.Amount == nil || percentage == nil {
		return nil
	}
	amount := *total.Amount * *percentage
	return &amount
}

// BuildTrades reconciles the observations into at most one trade edge per
// ordered (exporter, importer) pair of known countries. Percentages are
// recomputed from the profiles' totals and ranks are dense per exporter and
// per importer.
func BuildTrades(observations []Observation, profiles []models.CountryProfile) []models.TradeEdge {
	byCountry := make(map[string]models.CountryProfile, len(profiles))
	for _, p := range profiles {
		byCountry[p.Country] = p
	}

	candidates := make([]Observation, 0, len(observations))
	for _, obs := range observations {
		if obs.Exports == "" || obs.Imports == "" {
			continue
		}
		if _, ok := byCountry[obs.Exports]; !ok {
			continue
		}
		if _, ok := byCountry[obs.Imports]; !ok {
			continue
		}
		candidates = append(candidates, obs)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if ObservationPriority(a, b) {
			return true
		}
		if ObservationPriority(b, a) {
			return false
		}
		if a.Exports != b.Exports {
			return a.Exports < b.Exports
		}
		return a.Imports < b.Imports
	})

	type pair struct{ exports, imports string }
	seen := make(map[pair]bool, len(candidates))
	edges := []models.TradeEdge{}

	for _, obs := range candidates {
		key := pair{obs.Exports, obs.Imports}
		if seen[key] {
			continue
		}
		seen[key] = true

		edge := models.TradeEdge{
			Exports:   obs.Exports,
			Imports:   obs.Imports,
			Year:      models.DefaultYear,
			TradeType: obs.TradeType,
			Retrieved: obs.Retrieved,
		}
		if obs.Amount != nil {
			edge.Amount = *obs.Amount
		}
		if obs.Year != nil {
			edge.Year = *obs.Year
		}
		edge.PercentageExports = ratio(edge.Amount, byCountry[edge.Exports].Exports.Amount)
		edge.PercentageImports = ratio(edge.Amount, byCountry[edge.Imports].Imports.Amount)

		edges = append(edges, edge)
	}

	denseRank(edges,
		func(e *models.TradeEdge) string { return e.Exports },
		func(e *models.TradeEdge, rank int) { e.ExportRank = rank })
	denseRank(edges,
		func(e *models.TradeEdge) string { return e.Imports },
		func(e *models.TradeEdge, rank int) { e.ImportRank = rank })

	return edges
}

func ratio(amount, total float64) float64 {
	if total == 0 {
		return 0
	}
	return amount / total
}

// denseRank ranks amounts descending within each group. Equal amounts share a
// rank and the next distinct amount gets the following rank.
func denseRank(edges []models.TradeEdge, group func(*models.TradeEdge) string, set func(*models.TradeEdge, int)) {
	distinct := make(map[string]map[float64]bool)
	for i := range edges {
		g := group(&edges[i])
		if distinct[g] == nil {
			distinct[g] = make(map[float64]bool)
		}
		distinct[g][edges[i].Amount] = true
	}

	ranks := make(map[string]map[float64]int, len(distinct))
	for g, amounts := range distinct {
		ordered := make([]float64, 0, len(amounts))
		for a := range amounts {
			ordered = append(ordered, a)
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(ordered)))

		ranks[g] = make(map[float64]int, len(ordered))
		for i, a := range ordered {
			ranks[g][a] = i + 1
		}
	}

	for i := range edges {
		set(&edges[i], ranks[group(&edges[i])][edges[i].Amount])
	}
}
