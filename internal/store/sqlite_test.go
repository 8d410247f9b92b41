// Package store materialises the trade graph in a graph store and runs the
// store-side centrality analytics. Two backends are provided: Neo4j with the
// Graph Data Science library, and an embedded SQLite database.
package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tradegraph/core/internal/config"
	"github.com/tradegraph/core/internal/models"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "graph.db"), config.Default().Analytics, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func countRows(t *testing.T, s *SQLiteStore, table string) int {
	t.Helper()

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func nodeProps(t *testing.T, s *SQLiteStore, label, name string) map[string]any {
	t.Helper()

	var raw string
	require.NoError(t, s.db.QueryRow("SELECT props FROM nodes WHERE label = ? AND name = ?", label, name).Scan(&raw))
	props := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(raw), &props))
	return props
}

func TestSQLiteUpsert(t *testing.T) {
	ctx := context.Background()

	t.Run("upload is idempotent", func(t *testing.T) {
		s := openTestSQLite(t)

		require.NoError(t, Upload(ctx, s, testGraph("run-1"), nil))
		require.NoError(t, Upload(ctx, s, testGraph("run-1"), nil))

		assert.Equal(t, 4, countRows(t, s, "nodes"))
		assert.Equal(t, 5, countRows(t, s, "edges"))
	})

	t.Run("schema can be ensured twice", func(t *testing.T) {
		s := openTestSQLite(t)

		assert.NoError(t, s.EnsureSchema(ctx))
	})

	t.Run("changed attributes overwrite", func(t *testing.T) {
		s := openTestSQLite(t)
		node := models.Node{ID: "France", Type: models.LabelCountry, Properties: map[string]any{"gdp": 1.0, "link": "a", models.PropRunID: "r"}}
		require.NoError(t, s.UpsertNodes(ctx, models.LabelCountry, []models.Node{node}))

		node.Properties = map[string]any{"gdp": 2.0, "link": "a", models.PropRunID: "r"}
		require.NoError(t, s.UpsertNodes(ctx, models.LabelCountry, []models.Node{node}))

		props := nodeProps(t, s, models.LabelCountry, "France")
		assert.Equal(t, 2.0, props["gdp"])
		assert.Equal(t, 1, countRows(t, s, "nodes"))
	})

	t.Run("goods edges with distinct sub goods stay distinct", func(t *testing.T) {
		s := openTestSQLite(t)
		g := testGraph("r")
		g.Edges = append(g.Edges, models.Edge{
			Source: "France", Target: "oil", Type: models.EdgeExports, Key: "refined petroleum",
			Properties: map[string]any{models.PropRunID: "r"},
		})

		require.NoError(t, Upload(ctx, s, g, nil))

		assert.Equal(t, 6, countRows(t, s, "edges"))
	})

	t.Run("edge to a missing node is an error", func(t *testing.T) {
		s := openTestSQLite(t)
		require.NoError(t, s.UpsertNodes(ctx, models.LabelCountry, []models.Node{{ID: "France", Properties: map[string]any{}}}))

		err := s.UpsertEdges(ctx, models.EdgeTrades, []models.Edge{{Source: "France", Target: "Atlantis", Type: models.EdgeTrades}})

		assert.ErrorIs(t, err, ErrMissingEndpoint)
		assert.Equal(t, 0, countRows(t, s, "edges"))
	})

	t.Run("endpoint must carry the right label", func(t *testing.T) {
		s := openTestSQLite(t)
		require.NoError(t, s.UpsertNodes(ctx, models.LabelCountry, []models.Node{{ID: "France", Properties: map[string]any{}}}))
		require.NoError(t, s.UpsertNodes(ctx, models.LabelRegion, []models.Node{{ID: "Europe", Properties: map[string]any{}}}))

		err := s.UpsertEdges(ctx, models.EdgeTrades, []models.Edge{{Source: "France", Target: "Europe"}})

		assert.ErrorIs(t, err, ErrMissingEndpoint)
	})

	t.Run("unknown label is rejected", func(t *testing.T) {
		s := openTestSQLite(t)

		assert.ErrorIs(t, s.UpsertNodes(ctx, "planet", nil), ErrUnknownLabel)
		assert.ErrorIs(t, s.UpsertEdges(ctx, "orbits", nil), ErrUnknownLabel)
	})
}

func TestSQLitePrune(t *testing.T) {
	ctx := context.Background()

	t.Run("stale entities are removed", func(t *testing.T) {
		s := openTestSQLite(t)
		require.NoError(t, Upload(ctx, s, testGraph("run-1"), nil))

		next := testGraph("run-2")
		next.Nodes = next.Nodes[:3]
		next.Edges = next.Edges[:2]
		require.NoError(t, Upload(ctx, s, next, nil))

		assert.Equal(t, 3, countRows(t, s, "nodes"))
		assert.Equal(t, 2, countRows(t, s, "edges"))
	})

	t.Run("changed primary region retires the old contains edge", func(t *testing.T) {
		s := openTestSQLite(t)
		require.NoError(t, Upload(ctx, s, testGraph("run-1"), nil))

		next := testGraph("run-2")
		next.Nodes = append(next.Nodes, models.Node{ID: "EU", Type: models.LabelRegion, Properties: map[string]any{models.PropRunID: "run-2"}})
		next.Edges[1].Source = "EU"
		require.NoError(t, Upload(ctx, s, next, nil))

		var sources []string
		rows, err := s.db.Query("SELECT src FROM edges WHERE type = ? AND dst = ?", models.EdgeContains, "France")
		require.NoError(t, err)
		defer rows.Close()
		for rows.Next() {
			var src string
			require.NoError(t, rows.Scan(&src))
			sources = append(sources, src)
		}
		assert.Equal(t, []string{"EU"}, sources)
	})
}

func TestSQLiteCentrality(t *testing.T) {
	ctx := context.Background()

	t.Run("scores every country", func(t *testing.T) {
		s := openTestSQLite(t)
		require.NoError(t, Upload(ctx, s, testGraph("run-1"), nil))

		require.NoError(t, s.ComputeCentrality(ctx))
		scores, err := s.CentralityScores(ctx)

		require.NoError(t, err)
		require.Len(t, scores, 2)
		require.NotNil(t, scores["France"].PageRank)
		require.NotNil(t, scores["Germany"].PageRank)
		assert.InDelta(t, 0.15, *scores["France"].PageRank, 1e-9)
		assert.InDelta(t, 0.15+0.85*0.15, *scores["Germany"].PageRank, 1e-9)
		require.NotNil(t, scores["Germany"].ArticleRank)
		assert.InDelta(t, 0.15+0.85*0.15/1.5, *scores["Germany"].ArticleRank, 1e-9)
	})

	t.Run("scores are absent before computing", func(t *testing.T) {
		s := openTestSQLite(t)
		require.NoError(t, Upload(ctx, s, testGraph("run-1"), nil))

		scores, err := s.CentralityScores(ctx)

		require.NoError(t, err)
		assert.Nil(t, scores["France"].PageRank)
		assert.Nil(t, scores["France"].ArticleRank)
	})

	t.Run("scores survive a re-upload", func(t *testing.T) {
		s := openTestSQLite(t)
		require.NoError(t, Upload(ctx, s, testGraph("run-1"), nil))
		require.NoError(t, s.ComputeCentrality(ctx))

		require.NoError(t, Upload(ctx, s, testGraph("run-1"), nil))

		props := nodeProps(t, s, models.LabelCountry, "France")
		assert.Contains(t, props, "pagerank")
	})
}
