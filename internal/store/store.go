// Package store materialises the trade graph in a graph store and runs the
// store-side centrality analytics. Two backends are provided: Neo4j with the
// Graph Data Science library, and an embedded SQLite database.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/tradegraph/core/internal/config"
	"github.com/tradegraph/core/internal/models"
)

var (
	// ErrMissingEndpoint is returned when an edge references a node that
	// does not exist in the store.
	ErrMissingEndpoint = errors.New("edge endpoint not found")

	// ErrUnknownLabel is returned for a node label or edge type outside the
	// fixed schema.
	ErrUnknownLabel = errors.New("unknown label")
)

// GraphStore is an idempotent upsert target for typed nodes and edges.
type GraphStore interface {
	// EnsureSchema creates the name uniqueness constraints. Safe to repeat.
	EnsureSchema(ctx context.Context) error
	UpsertNodes(ctx context.Context, label string, nodes []models.Node) error
	UpsertEdges(ctx context.Context, edgeType string, edges []models.Edge) error
	// Prune deletes every edge, then every node, not stamped with runID.
	Prune(ctx context.Context, runID string) error
	Close(ctx context.Context) error
}

// CentralityEngine computes and reads back the per-country scores.
type CentralityEngine interface {
	ComputeCentrality(ctx context.Context) error
	CentralityScores(ctx context.Context) (map[string]models.Centrality, error)
}

// Backend is a graph store with its analytics engine.
type Backend interface {
	GraphStore
	CentralityEngine
}

func checkLabel(label string) error {
	if !slices.Contains(models.NodeLabels, label) {
		return fmt.Errorf("%w: node label %q", ErrUnknownLabel, label)
	}
	return nil
}

func checkEdgeType(edgeType string) error {
	if _, ok := models.EdgeEndpoints[edgeType]; !ok {
		return fmt.Errorf("%w: edge type %q", ErrUnknownLabel, edgeType)
	}
	return nil
}

// Upload writes graph in referential order: schema, nodes by label, edges by
// type, then prunes everything left over from earlier runs. The first error
// aborts the upload.
func Upload(ctx context.Context, s GraphStore, graph *models.Graph, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if graph.RunID == "" {
		return errors.New("graph has no run id")
	}

	if err := s.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	for _, label := range models.NodeLabels {
		nodes := graph.NodesOfType(label)
		if err := s.UpsertNodes(ctx, label, nodes); err != nil {
			return fmt.Errorf("upsert %s nodes: %w", label, err)
		}
		logger.Debug("Upserted nodes", zap.String("label", label), zap.Int("count", len(nodes)))
	}

	for _, edgeType := range models.EdgeTypes {
		edges := graph.EdgesOfType(edgeType)
		if err := s.UpsertEdges(ctx, edgeType, edges); err != nil {
			return fmt.Errorf("upsert %s edges: %w", edgeType, err)
		}
		logger.Debug("Upserted edges", zap.String("type", edgeType), zap.Int("count", len(edges)))
	}

	if err := s.Prune(ctx, graph.RunID); err != nil {
		return fmt.Errorf("prune stale entities: %w", err)
	}

	return nil
}

// Open connects the backend selected by cfg.
func Open(ctx context.Context, cfg config.StoreConfig, analytics config.AnalyticsConfig, logger *zap.Logger) (Backend, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		s, err := OpenSQLite(ctx, cfg.SQLite.Path, analytics, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendNeo4j:
		s, err := OpenNeo4j(ctx, cfg.Neo4j, analytics, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
