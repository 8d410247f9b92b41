// Package reconcile turns the raw per-country tables into deduplicated,
// internally consistent records and assembles them into a typed graph.
package reconcile

import (
	"github.com/tradegraph/core/internal/models"
)

// Latest returns the most recent row per country. Rows without a year lose to
// rows with one; among equal years the earliest row wins.
func Latest(rows []models.MetricRow) map[string]models.MetricRow {
	latest := make(map[string]models.MetricRow, len(rows))
	for _, row := range rows {
		current, ok := latest[row.Country]
		if !ok || newerYear(row.Year, current.Year) {
			latest[row.Country] = row
		}
	}
	return latest
}

type latestMetrics struct {
	exports          map[string]models.MetricRow
	imports          map[string]models.MetricRow
	gdp              map[string]models.MetricRow
	gdpPerCapita     map[string]models.MetricRow
	realGDP          map[string]models.MetricRow
	realGDPPerCapita map[string]models.MetricRow
}

func collectLatest(tables *models.Tables) latestMetrics {
	return latestMetrics{
		exports:          Latest(tables.Exports),
		imports:          Latest(tables.Imports),
		gdp:              Latest(tables.GDP),
		gdpPerCapita:     Latest(tables.GDPPerCapita),
		realGDP:          Latest(tables.RealGDP),
		realGDPPerCapita: Latest(tables.RealGDPPerCapita),
	}
}

// BuildProfiles produces exactly one profile per country whose primary
// region (rank 0) is listed, in region-table order.
func BuildProfiles(tables *models.Tables) []models.CountryProfile {
	return buildProfiles(tables, collectLatest(tables))
}

func buildProfiles(tables *models.Tables, latest latestMetrics) []models.CountryProfile {
	population := firstPopulation(tables.Population)
	seen := make(map[string]bool)
	profiles := []models.CountryProfile{}

	for _, region := range tables.Regions {
		if region.Rank != 0 || seen[region.Country] {
			continue
		}
		seen[region.Country] = true

		profile := models.CountryProfile{
			Country:   region.Country,
			Link:      region.Link,
			Region:    region.Region,
			Retrieved: region.Retrieved,
		}

		profile.Population = models.Measure{Year: models.DefaultYear}
		if row, ok := population[region.Country]; ok {
			profile.Population = fill(row.Population, row.Year)
		}

		profile.Exports = measureOf(latest.exports, region.Country)
		profile.Imports = measureOf(latest.imports, region.Country)
		profile.GDP = measureOf(latest.gdp, region.Country)
		profile.GDPPerCapita = measureOf(latest.gdpPerCapita, region.Country)
		profile.RealGDP = measureOf(latest.realGDP, region.Country)
		profile.RealGDPPerCapita = measureOf(latest.realGDPPerCapita, region.Country)

		profiles = append(profiles, profile)
	}

	return profiles
}

func firstPopulation(rows []models.PopulationRow) map[string]models.PopulationRow {
	first := make(map[string]models.PopulationRow, len(rows))
	for _, row := range rows {
		if _, ok := first[row.Country]; !ok {
			first[row.Country] = row
		}
	}
	return first
}

func measureOf(latest map[string]models.MetricRow, country string) models.Measure {
	row, ok := latest[country]
	if !ok {
		return models.Measure{Year: models.DefaultYear}
	}
	return fill(row.Amount, row.Year)
}

func fill(amount *float64, year *int) models.Measure {
	m := models.Measure{Year: models.DefaultYear}
	if amount != nil {
		m.Amount = *amount
	}
	if year != nil {
		m.Year = *year
	}
	return m
}

// BuildMemberships deduplicates the region table by (region, country) and
// returns the contains relationships for known countries together with the
// sorted distinct region names.
func BuildMemberships(rows []models.RegionRow, known map[string]bool) ([]models.Membership, []string) {
	type pair struct{ region, country string }
	seen := make(map[pair]bool)
	regionSet := make(map[string]bool)
	memberships := []models.Membership{}

	for _, row := range rows {
		key := pair{row.Region, row.Country}
		if seen[key] {
			continue
		}
		seen[key] = true
		regionSet[row.Region] = true

		if !known[row.Country] {
			continue
		}
		memberships = append(memberships, models.Membership{
			Region:    row.Region,
			Country:   row.Country,
			Rank:      row.Rank,
			Retrieved: row.Retrieved,
		})
	}

	return memberships, sortedKeys(regionSet)
}
