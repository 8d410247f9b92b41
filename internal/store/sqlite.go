// Package store materialises the trade graph in a graph store and runs the
// store-side centrality analytics. Two backends are provided: Neo4j with the
// Graph Data Science library, and an embedded SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/tradegraph/core/internal/analytics"
	"github.com/tradegraph/core/internal/config"
	"github.com/tradegraph/core/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS nodes (
	label  TEXT NOT NULL,
	name   TEXT NOT NULL,
	props  TEXT NOT NULL,
	run_id TEXT NOT NULL,
	PRIMARY KEY (label, name)
);

CREATE TABLE IF NOT EXISTS edges (
	type      TEXT NOT NULL,
	src_label TEXT NOT NULL,
	src       TEXT NOT NULL,
	dst_label TEXT NOT NULL,
	dst       TEXT NOT NULL,
	edge_key  TEXT NOT NULL DEFAULT '',
	props     TEXT NOT NULL,
	run_id    TEXT NOT NULL,
	PRIMARY KEY (type, src, dst, edge_key),
	FOREIGN KEY (src_label, src) REFERENCES nodes(label, name) ON DELETE CASCADE,
	FOREIGN KEY (dst_label, dst) REFERENCES nodes(label, name) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_nodes_run ON nodes(run_id);
CREATE INDEX IF NOT EXISTS idx_edges_run ON edges(run_id);
CREATE INDEX IF NOT EXISTS idx_edges_dst ON edges(dst_label, dst);
`

// SQLiteStore keeps the graph in two tables of an embedded database and
// computes centrality in process.
type SQLiteStore struct {
	db        *sql.DB
	path      string
	analytics analytics.Options
	logger    *zap.Logger
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string, cfg config.AnalyticsConfig, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	opts := analytics.Options{
		MaxIterations: cfg.MaxIterations,
		DampingFactor: cfg.DampingFactor,
		Tolerance:     cfg.Tolerance,
	}
	logger.Debug("Opened SQLite store", zap.String("path", path))
	return &SQLiteStore{db: db, path: path, analytics: opts, logger: logger}, nil
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpsertNodes(ctx context.Context, label string, nodes []models.Node) error {
	if err := checkLabel(label); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO nodes (label, name, props, run_id) VALUES (?, ?, ?, ?)
			ON CONFLICT(label, name) DO UPDATE SET
				props = json_patch(nodes.props, excluded.props),
				run_id = excluded.run_id`)
		if err != nil {
			return fmt.Errorf("failed to prepare node upsert: %w", err)
		}
		defer stmt.Close()

		for _, n := range nodes {
			props, err := encodeProps(n.Properties)
			if err != nil {
				return fmt.Errorf("failed to encode %s %q: %w", label, n.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, label, n.ID, props, runIDOf(n.Properties)); err != nil {
				return fmt.Errorf("failed to upsert %s %q: %w", label, n.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) UpsertEdges(ctx context.Context, edgeType string, edges []models.Edge) error {
	if err := checkEdgeType(edgeType); err != nil {
		return err
	}
	ends := models.EdgeEndpoints[edgeType]

	return s.withTx(ctx, func(tx *sql.Tx) error {
		exists, err := tx.PrepareContext(ctx, `SELECT EXISTS(SELECT 1 FROM nodes WHERE label = ? AND name = ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare endpoint check: %w", err)
		}
		defer exists.Close()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO edges (type, src_label, src, dst_label, dst, edge_key, props, run_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(type, src, dst, edge_key) DO UPDATE SET
				props = json_patch(edges.props, excluded.props),
				run_id = excluded.run_id`)
		if err != nil {
			return fmt.Errorf("failed to prepare edge upsert: %w", err)
		}
		defer stmt.Close()

		for _, e := range edges {
			for _, end := range [][2]string{{ends[0], e.Source}, {ends[1], e.Target}} {
				var found bool
				if err := exists.QueryRowContext(ctx, end[0], end[1]).Scan(&found); err != nil {
					return fmt.Errorf("failed to check endpoint: %w", err)
				}
				if !found {
					return fmt.Errorf("%w: %s %q for %s edge %s -> %s", ErrMissingEndpoint, end[0], end[1], edgeType, e.Source, e.Target)
				}
			}

			props, err := encodeProps(e.Properties)
			if err != nil {
				return fmt.Errorf("failed to encode %s edge: %w", edgeType, err)
			}
			if _, err := stmt.ExecContext(ctx, edgeType, ends[0], e.Source, ends[1], e.Target, e.Key, props, runIDOf(e.Properties)); err != nil {
				return fmt.Errorf("failed to upsert %s edge %s -> %s: %w", edgeType, e.Source, e.Target, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Prune(ctx context.Context, runID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		edges, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE run_id <> ?`, runID)
		if err != nil {
			return fmt.Errorf("failed to prune edges: %w", err)
		}
		nodes, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE run_id <> ?`, runID)
		if err != nil {
			return fmt.Errorf("failed to prune nodes: %w", err)
		}

		edgeCount, _ := edges.RowsAffected()
		nodeCount, _ := nodes.RowsAffected()
		s.logger.Debug("Pruned stale entities",
			zap.String("run_id", runID),
			zap.Int64("edges", edgeCount),
			zap.Int64("nodes", nodeCount))
		return nil
	})
}

// ComputeCentrality scores every country over the stored trades edges and
// writes the scores into the country properties.
func (s *SQLiteStore) ComputeCentrality(ctx context.Context) error {
	names, err := s.countryNames(ctx)
	if err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT src, dst FROM edges WHERE type = ? ORDER BY rowid`, models.EdgeTrades)
	if err != nil {
		return fmt.Errorf("failed to read trades: %w", err)
	}
	var links []analytics.Link
	for rows.Next() {
		var l analytics.Link
		if err := rows.Scan(&l.Source, &l.Target); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan trade: %w", err)
		}
		links = append(links, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read trades: %w", err)
	}

	scores := analytics.Centrality(names, links, s.analytics)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			UPDATE nodes SET props = json_set(props, '$.pagerank', ?, '$.articlerank', ?)
			WHERE label = ? AND name = ?`)
		if err != nil {
			return fmt.Errorf("failed to prepare score update: %w", err)
		}
		defer stmt.Close()

		for _, name := range names {
			c := scores[name]
			if _, err := stmt.ExecContext(ctx, *c.PageRank, *c.ArticleRank, models.LabelCountry, name); err != nil {
				return fmt.Errorf("failed to write scores for %q: %w", name, err)
			}
		}
		s.logger.Debug("Wrote centrality scores", zap.Int("countries", len(names)), zap.Int("trades", len(links)))
		return nil
	})
}

func (s *SQLiteStore) CentralityScores(ctx context.Context) (map[string]models.Centrality, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, json_extract(props, '$.pagerank'), json_extract(props, '$.articlerank')
		FROM nodes WHERE label = ?`, models.LabelCountry)
	if err != nil {
		return nil, fmt.Errorf("failed to read scores: %w", err)
	}
	defer rows.Close()

	scores := make(map[string]models.Centrality)
	for rows.Next() {
		var name string
		var pr, ar sql.NullFloat64
		if err := rows.Scan(&name, &pr, &ar); err != nil {
			return nil, fmt.Errorf("failed to scan scores: %w", err)
		}
		scores[name] = models.Centrality{PageRank: nullable(pr), ArticleRank: nullable(ar)}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scores: %w", err)
	}
	return scores, nil
}

func (s *SQLiteStore) Close(ctx context.Context) error {
	return s.db.Close()
}

func (s *SQLiteStore) countryNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM nodes WHERE label = ? ORDER BY rowid`, models.LabelCountry)
	if err != nil {
		return nil, fmt.Errorf("failed to read countries: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan country: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func encodeProps(props map[string]any) (string, error) {
	if props == nil {
		return "{}", nil
	}
	data, err := json.Marshal(props)
	return string(data), err
}

func runIDOf(props map[string]any) string {
	id, _ := props[models.PropRunID].(string)
	return id
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
