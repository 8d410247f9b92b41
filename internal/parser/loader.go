// Package parser provides utilities for parsing and transforming input data.
// It reads the scraped CSV tables into typed rows and applies name fixes.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tradegraph/core/internal/models"
)

// Input file names.
const (
	FileExports          = "exports.csv"
	FileImports          = "imports.csv"
	FileGDP              = "gdp.csv"
	FileGDPPerCapita     = "gdp_per_capita.csv"
	FileRealGDP          = "real_gdp.csv"
	FileRealGDPPerCapita = "real_gdp_per_capita.csv"
	FilePopulation       = "population.csv"
	FileRegions          = "country_region.csv"
	FileExportPartners   = "exports_partners.csv"
	FileImportPartners   = "imports_partners.csv"
	FileExportGoods      = "exports_goods.csv"
	FileImportGoods      = "imports_goods.csv"
	FileGoodsGrouping    = "goods_grouping.csv"
)

// Loader reads a directory of scraped tables.
type Loader struct {
	Dir       string
	NameFixes NameFixes
	Logger    *zap.Logger
}

func NewLoader(dir string, fixes NameFixes, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{Dir: dir, NameFixes: fixes, Logger: logger}
}

type source struct {
	file     string
	optional bool
	parse    func(r io.Reader) (int, error)
}

// Load reads every table concurrently. Missing optional tables are empty;
// any other failure cancels the remaining reads and is returned.
func (l *Loader) Load(ctx context.Context) (*models.Tables, error) {
	tables := &models.Tables{}
	fixes := l.NameFixes

	metrics := func(file string, dst *[]models.MetricRow) source {
		return source{file: file, parse: func(r io.Reader) (int, error) {
			rows, err := ParseMetrics(r, file, fixes)
			*dst = rows
			return len(rows), err
		}}
	}

	sources := []source{
		metrics(FileExports, &tables.Exports),
		metrics(FileImports, &tables.Imports),
		metrics(FileGDP, &tables.GDP),
		metrics(FileRealGDP, &tables.RealGDP),
		metrics(FileRealGDPPerCapita, &tables.RealGDPPerCapita),
		{file: FilePopulation, parse: func(r io.Reader) (int, error) {
			rows, err := ParsePopulation(r, FilePopulation, fixes)
			tables.Population = rows
			return len(rows), err
		}},
		{file: FileRegions, parse: func(r io.Reader) (int, error) {
			rows, err := ParseRegions(r, FileRegions, fixes)
			tables.Regions = rows
			return len(rows), err
		}},
		{file: FileExportPartners, parse: func(r io.Reader) (int, error) {
			rows, err := ParsePartners(r, FileExportPartners, models.TradeTypeExports, fixes)
			tables.ExportPartners = rows
			return len(rows), err
		}},
		{file: FileImportPartners, parse: func(r io.Reader) (int, error) {
			rows, err := ParsePartners(r, FileImportPartners, models.TradeTypeImports, fixes)
			tables.ImportPartners = rows
			return len(rows), err
		}},
		{file: FileExportGoods, parse: func(r io.Reader) (int, error) {
			rows, err := ParseGoods(r, FileExportGoods, models.TradeTypeExports, fixes)
			tables.ExportGoods = rows
			return len(rows), err
		}},
		{file: FileImportGoods, parse: func(r io.Reader) (int, error) {
			rows, err := ParseGoods(r, FileImportGoods, models.TradeTypeImports, fixes)
			tables.ImportGoods = rows
			return len(rows), err
		}},
	}

	gdpPerCapita := metrics(FileGDPPerCapita, &tables.GDPPerCapita)
	gdpPerCapita.optional = true
	sources = append(sources, gdpPerCapita, source{file: FileGoodsGrouping, optional: true, parse: func(r io.Reader) (int, error) {
		rows, err := ParseGoodsMapping(r, FileGoodsGrouping)
		tables.GoodsMapping = rows
		return len(rows), err
	}})

	g, ctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		g.Go(func() error {
			return l.loadFile(ctx, src)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return tables, nil
}

func (l *Loader) loadFile(ctx context.Context, src source) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(l.Dir, src.file)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) && src.optional {
		l.Logger.Warn("Optional table missing, using empty table", zap.String("file", path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("open table: %w", err)
	}
	defer f.Close()

	n, err := src.parse(f)
	if err != nil {
		return fmt.Errorf("parse table: %w", err)
	}

	l.Logger.Debug("Loaded table", zap.String("file", src.file), zap.Int("rows", n))
	return nil
}
