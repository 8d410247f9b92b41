// Package export writes the enriched country table and the reconciled trade
// table as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tradegraph/core/internal/models"
)

// Output file names.
const (
	FileCountries = "article_page_rank_countries.csv"
	FileTrades    = "trade_partners.csv"
)

var countryHeader = []string{
	"country", "link", "regions", "retrieved",
	"population", "year_population",
	"amount_exports", "year_exports",
	"amount_imports", "year_imports",
	"amount_gdp", "year_gdp",
	"amount_gdp_per_capita", "year_gdp_per_capita",
	"amount_real_gdp", "year_real_gdp",
	"amount_real_gdp_per_capita", "year_real_gdp_per_capita",
	"page_rank", "article_rank",
}

var tradeHeader = []string{
	"exports", "imports", "amount", "year",
	"percentage_exports", "percentage_imports",
	"export_trade_rank", "import_trade_rank",
	"trade_type", "retrieved",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatScore(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func measure(m models.Measure) []string {
	return []string{formatFloat(m.Amount), strconv.Itoa(m.Year)}
}

// WriteCountries writes one row per country in the given order.
func WriteCountries(w io.Writer, rows []models.CountryExport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(countryHeader); err != nil {
		return err
	}

	for _, r := range rows {
		record := make([]string, 0, len(countryHeader))
		record = append(record, r.Country, r.Link, r.Region, r.Retrieved)
		for _, m := range []models.Measure{r.Population, r.Exports, r.Imports, r.GDP, r.GDPPerCapita, r.RealGDP, r.RealGDPPerCapita} {
			record = append(record, measure(m)...)
		}
		record = append(record, formatScore(r.PageRank), formatScore(r.ArticleRank))
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteTrades writes one row per trade edge in the given order.
func WriteTrades(w io.Writer, trades []models.TradeEdge) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return err
	}

	for _, t := range trades {
		record := []string{
			t.Exports,
			t.Imports,
			formatFloat(t.Amount),
			strconv.Itoa(t.Year),
			formatFloat(t.PercentageExports),
			formatFloat(t.PercentageImports),
			strconv.Itoa(t.ExportRank),
			strconv.Itoa(t.ImportRank),
			t.TradeType,
			t.Retrieved,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFiles writes both tables into dir and returns their paths.
func WriteFiles(dir string, countries []models.CountryExport, trades []models.TradeEdge) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	countryPath := filepath.Join(dir, FileCountries)
	if err := writeFile(countryPath, func(w io.Writer) error { return WriteCountries(w, countries) }); err != nil {
		return nil, err
	}
	tradePath := filepath.Join(dir, FileTrades)
	if err := writeFile(tradePath, func(w io.Writer) error { return WriteTrades(w, trades) }); err != nil {
		return nil, err
	}

	return []string{countryPath, tradePath}, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
