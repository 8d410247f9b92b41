// Package parser provides utilities for parsing and transforming input data.
// It reads the scraped CSV tables into typed rows and applies name fixes.
package parser

import (
	"io"

	"github.com/tradegraph/core/internal/models"
)

// ParseMetrics reads an amount table (exports, imports, GDP variants).
func ParseMetrics(r io.Reader, file string, fixes NameFixes) ([]models.MetricRow, error) {
	records, err := readRecords(r, file, "country", "amount", "year")
	if err != nil {
		return nil, err
	}

	rows := make([]models.MetricRow, 0, len(records))
	for _, rec := range records {
		amount, err := rec.float("amount")
		if err != nil {
			return nil, err
		}
		year, err := rec.year("year")
		if err != nil {
			return nil, err
		}
		rows = append(rows, models.MetricRow{
			Link:      rec.str("link"),
			Country:   fixes.Apply(rec.str("country")),
			Amount:    amount,
			Year:      year,
			Retrieved: rec.str("retrieved"),
		})
	}
	return rows, nil
}

func ParsePopulation(r io.Reader, file string, fixes NameFixes) ([]models.PopulationRow, error) {
	records, err := readRecords(r, file, "country", "population", "year")
	if err != nil {
		return nil, err
	}

	rows := make([]models.PopulationRow, 0, len(records))
	for _, rec := range records {
		population, err := rec.float("population")
		if err != nil {
			return nil, err
		}
		year, err := rec.year("year")
		if err != nil {
			return nil, err
		}
		rows = append(rows, models.PopulationRow{
			Country:    fixes.Apply(rec.str("country")),
			Population: population,
			Year:       year,
			Retrieved:  rec.str("retrieved"),
		})
	}
	return rows, nil
}

func ParseRegions(r io.Reader, file string, fixes NameFixes) ([]models.RegionRow, error) {
	records, err := readRecords(r, file, "regions", "country", "rank")
	if err != nil {
		return nil, err
	}

	rows := make([]models.RegionRow, 0, len(records))
	for _, rec := range records {
		rank, err := rec.int("rank")
		if err != nil {
			return nil, err
		}
		rows = append(rows, models.RegionRow{
			Region:    rec.str("regions"),
			Country:   fixes.Apply(rec.str("country")),
			Link:      rec.str("link"),
			Rank:      rank,
			Retrieved: rec.str("retrieved"),
		})
	}
	return rows, nil
}

// ParsePartners reads a partner-share table. tradeType is recorded on every
// row whatever the file says.
func ParsePartners(r io.Reader, file, tradeType string, fixes NameFixes) ([]models.PartnerRow, error) {
	records, err := readRecords(r, file, "country", "trade_country", "percentage", "year")
	if err != nil {
		return nil, err
	}

	rows := make([]models.PartnerRow, 0, len(records))
	for _, rec := range records {
		percentage, err := rec.float("percentage")
		if err != nil {
			return nil, err
		}
		year, err := rec.year("year")
		if err != nil {
			return nil, err
		}
		rows = append(rows, models.PartnerRow{
			Link:         rec.str("link"),
			Country:      fixes.Apply(rec.str("country")),
			TradeCountry: fixes.Apply(rec.str("trade_country")),
			Percentage:   percentage,
			Year:         year,
			TradeType:    tradeType,
			Retrieved:    rec.str("retrieved"),
		})
	}
	return rows, nil
}

func ParseGoods(r io.Reader, file, tradeType string, fixes NameFixes) ([]models.GoodsRow, error) {
	records, err := readRecords(r, file, "goods", "country", "rank")
	if err != nil {
		return nil, err
	}

	rows := make([]models.GoodsRow, 0, len(records))
	for _, rec := range records {
		rank, err := rec.int("rank")
		if err != nil {
			return nil, err
		}
		year, err := rec.year("year")
		if err != nil {
			return nil, err
		}
		rows = append(rows, models.GoodsRow{
			Goods:     rec.str("goods"),
			Country:   fixes.Apply(rec.str("country")),
			Link:      rec.str("link"),
			Year:      year,
			Rank:      rank,
			TradeType: tradeType,
			Retrieved: rec.str("retrieved"),
		})
	}
	return rows, nil
}

func ParseGoodsMapping(r io.Reader, file string) ([]models.GoodsMapping, error) {
	records, err := readRecords(r, file, "goods", "mapped_good")
	if err != nil {
		return nil, err
	}

	rows := make([]models.GoodsMapping, 0, len(records))
	for _, rec := range records {
		rows = append(rows, models.GoodsMapping{
			Goods:      rec.str("goods"),
			MappedGood: rec.str("mapped_good"),
		})
	}
	return rows, nil
}
