// Package analytics computes country centrality over the trades graph and
// merges the scores onto the country profiles.
package analytics

import (
	"sort"

	"github.com/tradegraph/core/internal/models"
)

// Merge left-joins scores onto profiles. Countries without a score keep nil
// scores. The result is stably sorted by PageRank descending, nil last.
func Merge(profiles []models.CountryProfile, scores map[string]models.Centrality) []models.CountryExport {
	rows := make([]models.CountryExport, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, models.CountryExport{CountryProfile: p, Centrality: scores[p.Country]})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].PageRank, rows[j].PageRank
		if a == nil {
			return false
		}
		return b == nil || *a > *b
	})
	return rows
}
