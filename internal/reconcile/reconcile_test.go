// Package reconcile turns the raw per-country tables into deduplicated,
// internally consistent records and assembles them into a typed graph.
package reconcile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradegraph/core/internal/models"
)

func f(v float64) *float64 { return &v }
func y(v int) *int         { return &v }

func region(name, country string, rank int) models.RegionRow {
	return models.RegionRow{Region: name, Country: country, Link: "/the-world-factbook/countries/" + country + "/", Rank: rank, Retrieved: "2021-05-01"}
}

func metric(country string, amount *float64, year *int) models.MetricRow {
	return models.MetricRow{Country: country, Amount: amount, Year: year}
}

func sampleTables() *models.Tables {
	return &models.Tables{
		Regions: []models.RegionRow{
			region("Europe", "France", 0),
			region("Africa", "France", 1),
			region("Europe", "Germany", 0),
			region("Asia", "China", 0),
			region("Africa", "Chad", 0),
		},
		Population: []models.PopulationRow{
			{Country: "France", Population: f(67e6), Year: y(2021)},
			{Country: "Germany", Population: f(83e6), Year: y(2021)},
		},
		Exports: []models.MetricRow{
			metric("France", f(500), y(2019)),
			metric("France", f(600), y(2020)),
			metric("Germany", f(1000), y(2020)),
			metric("China", f(2000), y(2020)),
		},
		Imports: []models.MetricRow{
			metric("France", f(700), y(2020)),
			metric("Germany", f(900), y(2020)),
			metric("China", f(1500), y(2020)),
		},
		GDP: []models.MetricRow{
			metric("France", f(2.6e12), y(2020)),
		},
		ExportPartners: []models.PartnerRow{
			{Country: "France", TradeCountry: "Germany", Percentage: f(0.5), Year: y(2020)},
			{Country: "France", TradeCountry: "China", Percentage: f(0.25), Year: y(2020)},
			{Country: "Germany", TradeCountry: "China", Percentage: f(0.1), Year: y(2020)},
		},
		ImportPartners: []models.PartnerRow{
			{Country: "Germany", TradeCountry: "France", Percentage: f(0.2), Year: y(2020)},
			{Country: "China", TradeCountry: "Germany", Percentage: f(0.3), Year: y(2021)},
			{Country: "China", TradeCountry: "European Union", Percentage: f(0.3), Year: y(2021)},
		},
		ExportGoods: []models.GoodsRow{
			{Goods: "petroleum", Country: "France", Rank: 1, Year: y(2020)},
			{Goods: "crude oil", Country: "France", Rank: 2, Year: y(2020)},
			{Goods: "wine", Country: "France", Rank: 3},
		},
		ImportGoods: []models.GoodsRow{
			{Goods: "crude oil", Country: "Germany", Rank: 1, Year: y(2020)},
			{Goods: "cars", Country: "Atlantis", Rank: 1, Year: y(2020)},
		},
		GoodsMapping: []models.GoodsMapping{
			{Goods: "crude oil", MappedGood: "oil"},
			{Goods: "petroleum", MappedGood: "oil"},
			{Goods: "cars", MappedGood: "vehicles"},
		},
	}
}

func TestLatest(t *testing.T) {
	t.Run("most recent year wins", func(t *testing.T) {
		latest := Latest([]models.MetricRow{
			metric("France", f(1), y(2018)),
			metric("France", f(2), y(2020)),
			metric("France", f(3), y(2019)),
		})

		assert.Equal(t, 2.0, *latest["France"].Amount)
	})

	t.Run("equal years keep the first row", func(t *testing.T) {
		latest := Latest([]models.MetricRow{
			metric("France", f(1), y(2020)),
			metric("France", f(2), y(2020)),
		})

		assert.Equal(t, 1.0, *latest["France"].Amount)
	})

	t.Run("rows without a year lose", func(t *testing.T) {
		latest := Latest([]models.MetricRow{
			metric("France", f(1), nil),
			metric("France", f(2), y(1990)),
		})

		assert.Equal(t, 2.0, *latest["France"].Amount)
	})
}

func TestBuildProfiles(t *testing.T) {
	t.Run("one profile per primary region country", func(t *testing.T) {
		tables := sampleTables()
		tables.Regions = append(tables.Regions, region("Europe", "France", 0))

		profiles := BuildProfiles(tables)

		names := make([]string, 0, len(profiles))
		for _, p := range profiles {
			names = append(names, p.Country)
		}
		assert.Equal(t, []string{"France", "Germany", "China", "Chad"}, names)
		assert.Equal(t, "Europe", profiles[0].Region)
	})

	t.Run("metrics use the most recent year", func(t *testing.T) {
		profiles := BuildProfiles(sampleTables())

		assert.Equal(t, models.Measure{Amount: 600, Year: 2020}, profiles[0].Exports)
		assert.Equal(t, models.Measure{Amount: 2.6e12, Year: 2020}, profiles[0].GDP)
		assert.Equal(t, models.Measure{Amount: 67e6, Year: 2021}, profiles[0].Population)
	})

	t.Run("missing metric rows default to zero and 1970", func(t *testing.T) {
		profiles := BuildProfiles(sampleTables())
		germany := profiles[1]

		assert.Equal(t, models.Measure{Amount: 0, Year: 1970}, germany.GDP)
		assert.Equal(t, models.Measure{Amount: 0, Year: 1970}, germany.RealGDPPerCapita)
	})

	t.Run("missing population defaults", func(t *testing.T) {
		profiles := BuildProfiles(sampleTables())
		chad := profiles[3]

		assert.Equal(t, "Chad", chad.Country)
		assert.Equal(t, models.Measure{Amount: 0, Year: 1970}, chad.Population)
		assert.Equal(t, models.Measure{Amount: 0, Year: 1970}, chad.Exports)
	})

	t.Run("empty cells in the winning row are filled", func(t *testing.T) {
		tables := sampleTables()
		tables.RealGDP = []models.MetricRow{metric("China", nil, y(2020))}

		profiles := BuildProfiles(tables)

		assert.Equal(t, models.Measure{Amount: 0, Year: 2020}, profiles[2].RealGDP)
	})

	t.Run("metric rows for unknown countries are unused", func(t *testing.T) {
		tables := sampleTables()
		tables.GDP = append(tables.GDP, metric("Atlantis", f(1), y(2020)))

		profiles := BuildProfiles(tables)

		assert.Len(t, profiles, 4)
	})
}

func TestObservationPriority(t *testing.T) {
	base := Observation{Exports: "A", Imports: "B", Year: y(2021), Amount: f(100), TradeType: models.TradeTypeExports}

	t.Run("newer year wins over larger amount", func(t *testing.T) {
		other := base
		other.Year = y(2020)
		other.Amount = f(1000)

		assert.True(t, ObservationPriority(base, other))
		assert.False(t, ObservationPriority(other, base))
	})

	t.Run("larger amount wins on equal year", func(t *testing.T) {
		other := base
		other.Amount = f(90)
		other.TradeType = models.TradeTypeImports

		assert.True(t, ObservationPriority(base, other))
		assert.False(t, ObservationPriority(other, base))
	})

	t.Run("export report wins on full tie", func(t *testing.T) {
		other := base
		other.TradeType = models.TradeTypeImports

		assert.True(t, ObservationPriority(base, other))
		assert.False(t, ObservationPriority(other, base))
	})

	t.Run("absent year and amount lose", func(t *testing.T) {
		noYear := base
		noYear.Year = nil
		noAmount := base
		noAmount.Amount = nil

		assert.True(t, ObservationPriority(base, noYear))
		assert.True(t, ObservationPriority(base, noAmount))
		assert.False(t, ObservationPriority(noAmount, base))
	})

	t.Run("identical observations do not beat each other", func(t *testing.T) {
		assert.False(t, ObservationPriority(base, base))
	})
}

func TestObservations(t *testing.T) {
	exportTotals := map[string]models.MetricRow{"A": metric("A", f(1000), y(2020))}
	importTotals := map[string]models.MetricRow{"B": metric("B", f(400), y(2020))}

	t.Run("export rows orient reporter to partner", func(t *testing.T) {
		obs := Observations(
			[]models.PartnerRow{{Country: "A", TradeCountry: "B", Percentage: f(0.1), Year: y(2020)}},
			nil, exportTotals, importTotals)

		require.Len(t, obs, 1)
		assert.Equal(t, "A", obs[0].Exports)
		assert.Equal(t, "B", obs[0].Imports)
		assert.Equal(t, 100.0, *obs[0].Amount)
		assert.Equal(t, models.TradeTypeExports, obs[0].TradeType)
	})

	t.Run("import rows orient partner to reporter", func(t *testing.T) {
		obs := Observations(nil,
			[]models.PartnerRow{{Country: "B", TradeCountry: "A", Percentage: f(0.5), Year: y(2020)}},
			exportTotals, importTotals)

		require.Len(t, obs, 1)
		assert.Equal(t, "A", obs[0].Exports)
		assert.Equal(t, "B", obs[0].Imports)
		assert.Equal(t, 200.0, *obs[0].Amount)
		assert.Equal(t, models.TradeTypeImports, obs[0].TradeType)
	})

	t.Run("unknown total leaves the amount absent", func(t *testing.T) {
		obs := Observations(
			[]models.PartnerRow{{Country: "C", TradeCountry: "A", Percentage: f(0.1)}},
			nil, exportTotals, importTotals)

		require.Len(t, obs, 1)
		assert.Nil(t, obs[0].Amount)
	})
}

func profilesFor(totals map[string][2]float64) []models.CountryProfile {
	var profiles []models.CountryProfile
	for _, name := range []string{"A", "B", "C", "D"} {
		tot, ok := totals[name]
		if !ok {
			continue
		}
		profiles = append(profiles, models.CountryProfile{
			Country: name,
			Exports: models.Measure{Amount: tot[0], Year: 2021},
			Imports: models.Measure{Amount: tot[1], Year: 2021},
		})
	}
	return profiles
}

func TestBuildTrades(t *testing.T) {
	t.Run("same year keeps the larger amount", func(t *testing.T) {
		profiles := profilesFor(map[string][2]float64{"A": {1000, 0}, "B": {0, 900}})
		obs := []Observation{
			{Exports: "A", Imports: "B", Year: y(2021), Amount: f(90), TradeType: models.TradeTypeImports},
			{Exports: "A", Imports: "B", Year: y(2021), Amount: f(100), TradeType: models.TradeTypeExports},
		}

		edges := BuildTrades(obs, profiles)

		require.Len(t, edges, 1)
		assert.Equal(t, 100.0, edges[0].Amount)
		assert.Equal(t, models.TradeTypeExports, edges[0].TradeType)
	})

	t.Run("newer import observation beats older export observation", func(t *testing.T) {
		profiles := profilesFor(map[string][2]float64{"A": {1000, 0}, "B": {0, 900}})
		obs := []Observation{
			{Exports: "A", Imports: "B", Year: y(2019), Amount: f(500), TradeType: models.TradeTypeExports},
			{Exports: "A", Imports: "B", Year: y(2020), Amount: f(50), TradeType: models.TradeTypeImports},
		}

		edges := BuildTrades(obs, profiles)

		require.Len(t, edges, 1)
		assert.Equal(t, 2020, edges[0].Year)
		assert.Equal(t, models.TradeTypeImports, edges[0].TradeType)
	})

	t.Run("unresolved endpoints are dropped", func(t *testing.T) {
		profiles := profilesFor(map[string][2]float64{"A": {1000, 0}, "B": {0, 900}})
		obs := []Observation{
			{Exports: "A", Imports: "", Year: y(2020), Amount: f(1), TradeType: models.TradeTypeExports},
			{Exports: "", Imports: "B", Year: y(2020), Amount: f(1), TradeType: models.TradeTypeImports},
			{Exports: "A", Imports: "Atlantis", Year: y(2020), Amount: f(1), TradeType: models.TradeTypeExports},
		}

		assert.Empty(t, BuildTrades(obs, profiles))
	})

	t.Run("percentages are recomputed from totals", func(t *testing.T) {
		profiles := profilesFor(map[string][2]float64{"A": {1000, 0}, "B": {0, 400}})
		obs := []Observation{
			{Exports: "A", Imports: "B", Year: y(2021), Amount: f(100), TradeType: models.TradeTypeExports},
		}

		edges := BuildTrades(obs, profiles)

		require.Len(t, edges, 1)
		assert.InDelta(t, 0.1, edges[0].PercentageExports, 1e-12)
		assert.InDelta(t, 0.25, edges[0].PercentageImports, 1e-12)
	})

	t.Run("zero totals give zero percentages", func(t *testing.T) {
		profiles := profilesFor(map[string][2]float64{"A": {0, 0}, "B": {0, 0}})
		obs := []Observation{
			{Exports: "A", Imports: "B", Year: y(2021), Amount: f(100), TradeType: models.TradeTypeExports},
		}

		edges := BuildTrades(obs, profiles)

		require.Len(t, edges, 1)
		assert.Equal(t, 0.0, edges[0].PercentageExports)
		assert.Equal(t, 0.0, edges[0].PercentageImports)
	})

	t.Run("absent amount and year are filled", func(t *testing.T) {
		profiles := profilesFor(map[string][2]float64{"A": {1000, 0}, "B": {0, 400}})
		obs := []Observation{{Exports: "A", Imports: "B", TradeType: models.TradeTypeExports}}

		edges := BuildTrades(obs, profiles)

		require.Len(t, edges, 1)
		assert.Equal(t, 0.0, edges[0].Amount)
		assert.Equal(t, 1970, edges[0].Year)
		assert.Equal(t, 1, edges[0].ExportRank)
	})

	t.Run("ties share a dense rank", func(t *testing.T) {
		profiles := profilesFor(map[string][2]float64{"A": {1000, 0}, "B": {0, 1}, "C": {0, 1}, "D": {0, 1}})
		obs := []Observation{
			{Exports: "A", Imports: "B", Year: y(2021), Amount: f(100), TradeType: models.TradeTypeExports},
			{Exports: "A", Imports: "C", Year: y(2021), Amount: f(100), TradeType: models.TradeTypeExports},
			{Exports: "A", Imports: "D", Year: y(2021), Amount: f(90), TradeType: models.TradeTypeExports},
		}

		edges := BuildTrades(obs, profiles)

		ranks := map[string]int{}
		for _, e := range edges {
			ranks[e.Imports] = e.ExportRank
		}
		assert.Equal(t, map[string]int{"B": 1, "C": 1, "D": 2}, ranks)
	})

	t.Run("import ranks group by importer", func(t *testing.T) {
		profiles := profilesFor(map[string][2]float64{"A": {1, 0}, "B": {1, 0}, "C": {0, 1}})
		obs := []Observation{
			{Exports: "A", Imports: "C", Year: y(2021), Amount: f(10), TradeType: models.TradeTypeExports},
			{Exports: "B", Imports: "C", Year: y(2021), Amount: f(20), TradeType: models.TradeTypeExports},
		}

		edges := BuildTrades(obs, profiles)

		ranks := map[string]int{}
		for _, e := range edges {
			ranks[e.Exports] = e.ImportRank
			assert.Equal(t, 1, e.ExportRank)
		}
		assert.Equal(t, map[string]int{"A": 2, "B": 1}, ranks)
	})
}

func TestBuildTaxonomy(t *testing.T) {
	mapping := MappingIndex([]models.GoodsMapping{
		{Goods: "crude oil", MappedGood: "oil"},
		{Goods: "petroleum", MappedGood: "oil"},
	})
	known := map[string]bool{"France": true, "Spain": true}

	t.Run("groups raw labels regardless of input order", func(t *testing.T) {
		forward := BuildTaxonomy([]models.GoodsRow{
			{Goods: "crude oil", Country: "France"},
			{Goods: "petroleum", Country: "Spain"},
		}, nil, mapping, known)
		backward := BuildTaxonomy(nil, []models.GoodsRow{
			{Goods: "petroleum", Country: "Spain"},
			{Goods: "crude oil", Country: "France"},
			{Goods: "petroleum", Country: "France"},
		}, mapping, known)

		want := []models.GoodsGroup{{Name: "oil", SubGoods: []string{"crude oil", "petroleum"}}}
		assert.Equal(t, want, forward.Groups)
		assert.Equal(t, want, backward.Groups)
	})

	t.Run("unmapped labels get their own node but no group", func(t *testing.T) {
		tax := BuildTaxonomy([]models.GoodsRow{
			{Goods: "wine", Country: "France", Rank: 1},
		}, nil, mapping, known)

		assert.Empty(t, tax.Groups)
		assert.Equal(t, []models.GoodsGroup{{Name: "wine", SubGoods: []string{"wine"}}}, tax.Nodes)
		require.Len(t, tax.Links, 1)
		assert.Equal(t, "wine", tax.Links[0].Good)
	})

	t.Run("links fill year and skip unknown countries", func(t *testing.T) {
		tax := BuildTaxonomy([]models.GoodsRow{
			{Goods: "petroleum", Country: "France", Rank: 2},
			{Goods: "petroleum", Country: "Atlantis", Rank: 1, Year: y(2020)},
		}, nil, mapping, known)

		require.Len(t, tax.Links, 1)
		assert.Equal(t, models.GoodsLink{
			Country:   "France",
			Good:      "oil",
			SubGood:   "petroleum",
			Rank:      2,
			Year:      1970,
			TradeType: models.TradeTypeExports,
		}, tax.Links[0])
	})

	t.Run("first mapping entry wins", func(t *testing.T) {
		index := MappingIndex([]models.GoodsMapping{
			{Goods: "coal", MappedGood: "fuel"},
			{Goods: "coal", MappedGood: "minerals"},
		})

		assert.Equal(t, "fuel", index["coal"])
	})
}

func TestBuildMemberships(t *testing.T) {
	t.Run("dedupes pairs and keeps every region", func(t *testing.T) {
		rows := []models.RegionRow{
			region("Europe", "France", 0),
			region("Africa", "France", 1),
			region("Europe", "France", 0),
			region("Oceania", "Atlantis", 0),
		}

		memberships, regions := BuildMemberships(rows, map[string]bool{"France": true})

		require.Len(t, memberships, 2)
		assert.Equal(t, 0, memberships[0].Rank)
		assert.Equal(t, "Africa", memberships[1].Region)
		assert.Equal(t, []string{"Africa", "Europe", "Oceania"}, regions)
	})
}

func TestReconcile(t *testing.T) {
	t.Run("one trade edge per ordered pair", func(t *testing.T) {
		res := Reconcile(sampleTables())

		seen := map[[2]string]bool{}
		for _, e := range res.Trades {
			key := [2]string{e.Exports, e.Imports}
			assert.False(t, seen[key], "duplicate pair %v", key)
			seen[key] = true
		}
		assert.True(t, seen[[2]string{"France", "Germany"}])
		assert.True(t, seen[[2]string{"Germany", "China"}])
		assert.False(t, seen[[2]string{"European Union", "China"}])
	})

	t.Run("union keeps the winning side", func(t *testing.T) {
		res := Reconcile(sampleTables())

		var franceGermany models.TradeEdge
		for _, e := range res.Trades {
			if e.Exports == "France" && e.Imports == "Germany" {
				franceGermany = e
			}
		}
		// Export side: 600 * 0.5 = 300. Import side: 900 * 0.2 = 180.
		assert.Equal(t, 300.0, franceGermany.Amount)
		assert.Equal(t, models.TradeTypeExports, franceGermany.TradeType)
		assert.InDelta(t, 0.5, franceGermany.PercentageExports, 1e-12)
		assert.InDelta(t, 300.0/900.0, franceGermany.PercentageImports, 1e-12)
	})

	t.Run("is deterministic", func(t *testing.T) {
		first := Reconcile(sampleTables())
		second := Reconcile(sampleTables())

		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("reconcile not deterministic (-first +second):\n%s", diff)
		}
	})

	t.Run("does not modify the input tables", func(t *testing.T) {
		tables := sampleTables()
		Reconcile(tables)

		if diff := cmp.Diff(sampleTables(), tables); diff != "" {
			t.Errorf("tables modified (-want +got):\n%s", diff)
		}
	})
}
