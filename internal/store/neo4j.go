// Package store materialises the trade graph in a graph store and runs the
// store-side centrality analytics. Two backends are provided: Neo4j with the
// Graph Data Science library, and an embedded SQLite database.
package store

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/tradegraph/core/internal/config"
	"github.com/tradegraph/core/internal/models"
)

// Neo4jStore writes the graph with batched MERGE statements and computes
// centrality with the Graph Data Science procedures.
type Neo4jStore struct {
	driver    neo4j.DriverWithContext
	database  string
	analytics config.AnalyticsConfig
	logger    *zap.Logger
}

// OpenNeo4j connects to the server and verifies connectivity.
func OpenNeo4j(ctx context.Context, cfg config.Neo4jConfig, analytics config.AnalyticsConfig, logger *zap.Logger) (*Neo4jStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j at %s: %w", cfg.URI, err)
	}

	logger.Info("Connected to Neo4j", zap.String("uri", cfg.URI), zap.String("database", cfg.Database))
	return &Neo4jStore{driver: driver, database: cfg.Database, analytics: analytics, logger: logger}, nil
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

// run executes one auto-commit statement and discards its records.
func (s *Neo4jStore) run(ctx context.Context, query string, params map[string]any) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return err
	}
	_, err = result.Consume(ctx)
	return err
}

func constraintQuery(label string) string {
	return fmt.Sprintf("CREATE CONSTRAINT %s_name IF NOT EXISTS FOR (n:%s) REQUIRE n.name IS UNIQUE", label, label)
}

func (s *Neo4jStore) EnsureSchema(ctx context.Context) error {
	for _, label := range models.NodeLabels {
		if err := s.run(ctx, constraintQuery(label), nil); err != nil {
			return fmt.Errorf("failed to create %s constraint: %w", label, err)
		}
	}
	return nil
}

func nodeUpsertQuery(label string) string {
	return fmt.Sprintf(`
		UNWIND $rows AS row
		MERGE (n:%s {name: row.name})
		SET n += row.props
		RETURN count(n) AS written`, label)
}

func edgeUpsertQuery(edgeType string) string {
	ends := models.EdgeEndpoints[edgeType]
	return fmt.Sprintf(`
		UNWIND $rows AS row
		MATCH (a:%s {name: row.source})
		MATCH (b:%s {name: row.target})
		MERGE (a)-[r:%s {edge_key: row.key}]->(b)
		SET r += row.props
		RETURN count(r) AS written`, ends[0], ends[1], edgeType)
}

func nodeRows(nodes []models.Node) []any {
	rows := make([]any, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, map[string]any{"name": n.ID, "props": n.Properties})
	}
	return rows
}

func edgeRows(edges []models.Edge) []any {
	rows := make([]any, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, map[string]any{
			"source": e.Source,
			"target": e.Target,
			"key":    e.Key,
			"props":  e.Properties,
		})
	}
	return rows
}

// write runs a batched statement in a managed write transaction and checks
// that every row produced a record.
func (s *Neo4jStore) write(ctx context.Context, query string, rows []any) (int64, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	written, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, map[string]any{"rows": rows})
		if err != nil {
			return nil, err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		n, _ := record.Get("written")
		count, _ := n.(int64)
		if count != int64(len(rows)) {
			return count, fmt.Errorf("%w: %d of %d rows matched", ErrMissingEndpoint, count, len(rows))
		}
		return count, nil
	})
	if err != nil {
		return 0, err
	}
	return written.(int64), nil
}

func (s *Neo4jStore) UpsertNodes(ctx context.Context, label string, nodes []models.Node) error {
	if err := checkLabel(label); err != nil {
		return err
	}
	if len(nodes) == 0 {
		return nil
	}
	if _, err := s.write(ctx, nodeUpsertQuery(label), nodeRows(nodes)); err != nil {
		return fmt.Errorf("failed to upsert %s nodes: %w", label, err)
	}
	return nil
}

func (s *Neo4jStore) UpsertEdges(ctx context.Context, edgeType string, edges []models.Edge) error {
	if err := checkEdgeType(edgeType); err != nil {
		return err
	}
	if len(edges) == 0 {
		return nil
	}
	if _, err := s.write(ctx, edgeUpsertQuery(edgeType), edgeRows(edges)); err != nil {
		return fmt.Errorf("failed to upsert %s edges: %w", edgeType, err)
	}
	return nil
}

const (
	pruneEdgesQuery = `
		MATCH ()-[r]->()
		WHERE type(r) IN $types AND coalesce(r.run_id, '') <> $runID
		DELETE r`
	pruneNodesQuery = `
		MATCH (n)
		WHERE any(l IN labels(n) WHERE l IN $labels) AND coalesce(n.run_id, '') <> $runID
		DETACH DELETE n`
)

func (s *Neo4jStore) Prune(ctx context.Context, runID string) error {
	params := map[string]any{
		"runID":  runID,
		"types":  models.EdgeTypes,
		"labels": models.NodeLabels,
	}
	if err := s.run(ctx, pruneEdgesQuery, params); err != nil {
		return fmt.Errorf("failed to prune edges: %w", err)
	}
	if err := s.run(ctx, pruneNodesQuery, params); err != nil {
		return fmt.Errorf("failed to prune nodes: %w", err)
	}
	return nil
}

const (
	dropProjectionQuery = `CALL gds.graph.drop($graph, false) YIELD graphName RETURN graphName`
	projectQuery        = `
		CALL gds.graph.project($graph, 'country', 'trades', {relationshipProperties: 'amount'})
		YIELD nodeCount, relationshipCount`
	pageRankQuery = `
		CALL gds.pageRank.write($graph, {
			maxIterations: $iterations,
			dampingFactor: $damping,
			tolerance: $tolerance,
			writeProperty: 'pagerank'
		})
		YIELD nodePropertiesWritten, ranIterations`
	articleRankQuery = `
		CALL gds.articleRank.write($graph, {
			maxIterations: $iterations,
			dampingFactor: $damping,
			tolerance: $tolerance,
			writeProperty: 'articlerank'
		})
		YIELD nodePropertiesWritten, ranIterations`
	scoresQuery = `
		MATCH (n:country)
		RETURN n.name AS country, n.pagerank AS page_rank, n.articlerank AS article_rank`
)

func (s *Neo4jStore) analyticsParams() map[string]any {
	return map[string]any{
		"graph":      s.analytics.GraphName,
		"iterations": s.analytics.MaxIterations,
		"damping":    s.analytics.DampingFactor,
		"tolerance":  s.analytics.Tolerance,
	}
}

// ComputeCentrality projects the country/trades subgraph, writes pagerank
// and articlerank onto every country and drops the projection.
func (s *Neo4jStore) ComputeCentrality(ctx context.Context) (err error) {
	params := s.analyticsParams()

	if err := s.run(ctx, dropProjectionQuery, params); err != nil {
		return fmt.Errorf("failed to drop stale projection: %w", err)
	}
	if err := s.run(ctx, projectQuery, params); err != nil {
		return fmt.Errorf("failed to project graph: %w", err)
	}
	defer func() {
		if dropErr := s.run(ctx, dropProjectionQuery, params); dropErr != nil && err == nil {
			err = fmt.Errorf("failed to drop projection: %w", dropErr)
		}
	}()

	if err := s.run(ctx, pageRankQuery, params); err != nil {
		return fmt.Errorf("failed to compute pagerank: %w", err)
	}
	if err := s.run(ctx, articleRankQuery, params); err != nil {
		return fmt.Errorf("failed to compute articlerank: %w", err)
	}

	s.logger.Debug("Computed centrality", zap.String("graph", s.analytics.GraphName))
	return nil
}

func (s *Neo4jStore) CentralityScores(ctx context.Context) (map[string]models.Centrality, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.Run(ctx, scoresQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read scores: %w", err)
	}

	scores := make(map[string]models.Centrality)
	for result.Next(ctx) {
		record := result.Record()
		name, _ := record.Get("country")
		country, ok := name.(string)
		if !ok {
			continue
		}
		pr, _ := record.Get("page_rank")
		ar, _ := record.Get("article_rank")
		scores[country] = models.Centrality{PageRank: scoreValue(pr), ArticleRank: scoreValue(ar)}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scores: %w", err)
	}
	return scores, nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// scoreValue converts a returned property to a score; missing or
// non-numeric values are absent.
func scoreValue(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int64:
		f = float64(n)
	default:
		return nil
	}
	return &f
}
