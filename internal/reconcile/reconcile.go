// Package reconcile turns the raw per-country tables into deduplicated,
// internally consistent records and assembles them into a typed graph.
package reconcile

import (
	"github.com/tradegraph/core/internal/models"
)

// Result holds every reconciled record of one run.
type Result struct {
	Profiles    []models.CountryProfile
	Trades      []models.TradeEdge
	Memberships []models.Membership
	Regions     []string
	Goods       Taxonomy
}

// Reconcile runs the profile builder, the trade reconciler and the goods
// aggregator over one complete set of tables. It does not modify tables.
func Reconcile(tables *models.Tables) *Result {
	latest := collectLatest(tables)
	profiles := buildProfiles(tables, latest)

	known := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		known[p.Country] = true
	}

	observations := Observations(tables.ExportPartners, tables.ImportPartners, latest.exports, latest.imports)
	memberships, regions := BuildMemberships(tables.Regions, known)

	return &Result{
		Profiles:    profiles,
		Trades:      BuildTrades(observations, profiles),
		Memberships: memberships,
		Regions:     regions,
		Goods:       BuildTaxonomy(tables.ExportGoods, tables.ImportGoods, MappingIndex(tables.GoodsMapping), known),
	}
}
