// Package pipeline runs one full refresh: load the scraped tables, reconcile
// them, upload the graph, compute centrality and export the enriched tables.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradegraph/core/internal/analytics"
	"github.com/tradegraph/core/internal/config"
	"github.com/tradegraph/core/internal/export"
	"github.com/tradegraph/core/internal/models"
	"github.com/tradegraph/core/internal/parser"
	"github.com/tradegraph/core/internal/reconcile"
	"github.com/tradegraph/core/internal/store"
)

// Report summarises a finished run.
type Report struct {
	RunID       string        `json:"run_id"`
	Countries   int           `json:"countries"`
	Regions     int           `json:"regions"`
	Goods       int           `json:"goods"`
	Trades      int           `json:"trades"`
	Memberships int           `json:"memberships"`
	GoodsLinks  int           `json:"goods_links"`
	Nodes       int           `json:"nodes"`
	Edges       int           `json:"edges"`
	Scored      int           `json:"scored"`
	DryRun      bool          `json:"dry_run"`
	Outputs     []string      `json:"outputs"`
	Duration    time.Duration `json:"duration"`
}

// Pipeline wires the loader, the reconciler, a store backend and the
// exporter. A nil backend makes every run a dry run.
type Pipeline struct {
	cfg     *config.Config
	backend store.Backend
	logger  *zap.Logger
	runID   func() string
}

func New(cfg *config.Config, backend store.Backend, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:     cfg,
		backend: backend,
		logger:  logger,
		runID:   uuid.NewString,
	}
}

// Run executes one full refresh. Any failure aborts the run; nothing is
// exported unless every earlier stage succeeded.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: p.runID(), DryRun: p.backend == nil}
	log := p.logger.With(zap.String("run_id", report.RunID))

	log.Info("Starting run", zap.String("input_dir", p.cfg.InputDir), zap.Bool("dry_run", report.DryRun))

	loader := parser.NewLoader(p.cfg.InputDir, parser.NameFixes(p.cfg.NameFixes), log)
	tables, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}

	res := reconcile.Reconcile(tables)
	report.Countries = len(res.Profiles)
	report.Regions = len(res.Regions)
	report.Goods = len(res.Goods.Nodes)
	report.Trades = len(res.Trades)
	report.Memberships = len(res.Memberships)
	report.GoodsLinks = len(res.Goods.Links)
	log.Info("Reconciled tables",
		zap.Int("countries", report.Countries),
		zap.Int("trades", report.Trades),
		zap.Int("regions", report.Regions),
		zap.Int("goods", report.Goods))

	graph := reconcile.BuildGraph(res, report.RunID)
	report.Nodes = graph.Stats.TotalNodes
	report.Edges = graph.Stats.TotalEdges

	var scores map[string]models.Centrality
	if p.backend != nil {
		scores, err = p.materialise(ctx, graph, log)
		if err != nil {
			return nil, err
		}
	}
	for _, c := range scores {
		if c.PageRank != nil {
			report.Scored++
		}
	}

	countries := analytics.Merge(res.Profiles, scores)
	outputs, err := export.WriteFiles(p.cfg.OutputDir, countries, res.Trades)
	if err != nil {
		return nil, fmt.Errorf("export tables: %w", err)
	}
	report.Outputs = outputs
	report.Duration = time.Since(start)

	log.Info("Run finished",
		zap.Int("nodes", report.Nodes),
		zap.Int("edges", report.Edges),
		zap.Int("scored", report.Scored),
		zap.Strings("outputs", outputs),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func (p *Pipeline) materialise(ctx context.Context, graph *models.Graph, log *zap.Logger) (map[string]models.Centrality, error) {
	if err := store.Upload(ctx, p.backend, graph, log); err != nil {
		return nil, fmt.Errorf("upload graph: %w", err)
	}
	log.Info("Uploaded graph", zap.Int("nodes", graph.Stats.TotalNodes), zap.Int("edges", graph.Stats.TotalEdges))

	if err := p.backend.ComputeCentrality(ctx); err != nil {
		return nil, fmt.Errorf("compute centrality: %w", err)
	}

	scores, err := p.backend.CentralityScores(ctx)
	if err != nil {
		return nil, fmt.Errorf("read centrality: %w", err)
	}
	log.Debug("Read centrality scores", zap.Int("countries", len(scores)))
	return scores, nil
}
