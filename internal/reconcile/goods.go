// Package reconcile turns the raw per-country tables into deduplicated,
// internally consistent records and assembles them into a typed graph.
package reconcile

import (
	"github.com/tradegraph/core/internal/models"
)

// Taxonomy is the reconciled goods data.
type Taxonomy struct {
	// Groups lists every canonical group with the mapped raw labels seen
	// under it. Unmapped labels are not part of it.
	Groups []models.GoodsGroup
	// Nodes lists every good that needs a node: the canonical groups plus
	// one per unmapped raw label.
	Nodes []models.GoodsGroup
	Links []models.GoodsLink
}

// MappingIndex builds the raw label → canonical group lookup. The first
// entry wins when a label is listed twice.
func MappingIndex(mapping []models.GoodsMapping) map[string]string {
	index := make(map[string]string, len(mapping))
	for _, m := range mapping {
		if m.Goods == "" || m.MappedGood == "" {
			continue
		}
		if _, ok := index[m.Goods]; !ok {
			index[m.Goods] = m.MappedGood
		}
	}
	return index
}

// BuildTaxonomy groups the export and import commodity rows under their
// canonical goods and produces the per-country links for known countries.
func BuildTaxonomy(exportGoods, importGoods []models.GoodsRow, mapping map[string]string, known map[string]bool) Taxonomy {
	groups := make(map[string]map[string]bool)
	nodes := make(map[string]map[string]bool)
	add := func(sets map[string]map[string]bool, name, label string) {
		if sets[name] == nil {
			sets[name] = make(map[string]bool)
		}
		sets[name][label] = true
	}

	type linkKey struct{ tradeType, country, good, subGood string }
	seen := make(map[linkKey]bool)
	links := []models.GoodsLink{}

	collect := func(rows []models.GoodsRow, tradeType string) {
		for _, row := range rows {
			if row.Goods == "" {
				continue
			}
			good, mapped := mapping[row.Goods]
			if mapped {
				add(groups, good, row.Goods)
			} else {
				good = row.Goods
			}
			add(nodes, good, row.Goods)

			if !known[row.Country] {
				continue
			}
			key := linkKey{tradeType, row.Country, good, row.Goods}
			if seen[key] {
				continue
			}
			seen[key] = true

			year := models.DefaultYear
			if row.Year != nil {
				year = *row.Year
			}
			links = append(links, models.GoodsLink{
				Country:   row.Country,
				Good:      good,
				SubGood:   row.Goods,
				Rank:      row.Rank,
				Year:      year,
				TradeType: tradeType,
				Retrieved: row.Retrieved,
			})
		}
	}

	collect(exportGoods, models.TradeTypeExports)
	collect(importGoods, models.TradeTypeImports)

	return Taxonomy{
		Groups: flattenGroups(groups),
		Nodes:  flattenGroups(nodes),
		Links:  links,
	}
}

func flattenGroups(sets map[string]map[string]bool) []models.GoodsGroup {
	out := make([]models.GoodsGroup, 0, len(sets))
	for _, name := range sortedKeys(names(sets)) {
		out = append(out, models.GoodsGroup{Name: name, SubGoods: sortedKeys(sets[name])})
	}
	return out
}

func names(sets map[string]map[string]bool) map[string]bool {
	out := make(map[string]bool, len(sets))
	for name := range sets {
		out[name] = true
	}
	return out
}
