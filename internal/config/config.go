// Package config holds the tradegraph configuration: input and output
// locations, the graph store backend, analytics parameters, logging and the
// HTTP server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file read when none is given.
const DefaultPath = "tradegraph.yaml"

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendNeo4j  = "neo4j"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Config is the root configuration.
type Config struct {
	InputDir  string            `yaml:"input_dir"`
	OutputDir string            `yaml:"output_dir"`
	NameFixes map[string]string `yaml:"name_fixes"`

	Store     StoreConfig     `yaml:"store"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Server    ServerConfig    `yaml:"server"`
}

// StoreConfig selects and configures the graph store.
type StoreConfig struct {
	Backend string       `yaml:"backend"` // sqlite, neo4j
	SQLite  SQLiteConfig `yaml:"sqlite"`
	Neo4j   Neo4jConfig  `yaml:"neo4j"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// AnalyticsConfig configures the centrality run.
type AnalyticsConfig struct {
	GraphName     string  `yaml:"graph_name"`
	MaxIterations int     `yaml:"max_iterations"`
	DampingFactor float64 `yaml:"damping_factor"`
	Tolerance     float64 `yaml:"tolerance"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`
}

type ServerConfig struct {
	Addr          string `yaml:"addr"`
	AllowedOrigin string `yaml:"allowed_origin"`
}

// DefaultNameFixes are the scraped spellings rewritten on load.
func DefaultNameFixes() map[string]string {
	return map[string]string{
		"Korea, South":  "South Korea",
		"Korea, North":  "North Korea",
		"US":            "United States",
		"Untied States": "United States",
	}
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		InputDir:  "data",
		OutputDir: "data",
		NameFixes: DefaultNameFixes(),
		Store: StoreConfig{
			Backend: BackendSQLite,
			SQLite:  SQLiteConfig{Path: filepath.Join("data", "tradegraph.db")},
			Neo4j: Neo4jConfig{
				URI:      "neo4j://localhost:7687",
				Username: "neo4j",
				Database: "neo4j",
			},
		},
		Analytics: AnalyticsConfig{
			GraphName:     "trade_graph",
			MaxIterations: 20,
			DampingFactor: 0.85,
			Tolerance:     1e-7,
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  true,
		},
		Server: ServerConfig{
			Addr:          ":8080",
			AllowedOrigin: "*",
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults. A missing
// file yields the defaults. Environment overrides are applied either way.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if uri := os.Getenv("TRADEGRAPH_NEO4J_URI"); uri != "" {
		c.Store.Neo4j.URI = uri
	}
	if user := os.Getenv("TRADEGRAPH_NEO4J_USERNAME"); user != "" {
		c.Store.Neo4j.Username = user
	}
	if pass := os.Getenv("TRADEGRAPH_NEO4J_PASSWORD"); pass != "" {
		c.Store.Neo4j.Password = pass
	}
	if level := os.Getenv("TRADEGRAPH_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if origin := os.Getenv("CORS_ALLOWED_ORIGIN"); origin != "" {
		c.Server.AllowedOrigin = origin
	}
}

var validLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the configuration for values no run can work with.
func (c *Config) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("%w: input_dir is empty", ErrInvalid)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output_dir is empty", ErrInvalid)
	}

	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("%w: store.sqlite.path is empty", ErrInvalid)
		}
	case BackendNeo4j:
		if c.Store.Neo4j.URI == "" {
			return fmt.Errorf("%w: store.neo4j.uri is empty", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q (valid: %s, %s)", ErrInvalid, c.Store.Backend, BackendSQLite, BackendNeo4j)
	}

	if c.Analytics.MaxIterations <= 0 {
		return fmt.Errorf("%w: analytics.max_iterations must be positive", ErrInvalid)
	}
	if c.Analytics.DampingFactor <= 0 || c.Analytics.DampingFactor >= 1 {
		return fmt.Errorf("%w: analytics.damping_factor must be in (0, 1)", ErrInvalid)
	}
	if c.Analytics.GraphName == "" {
		return fmt.Errorf("%w: analytics.graph_name is empty", ErrInvalid)
	}

	if !slices.Contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("%w: invalid log level %q (valid: %v)", ErrInvalid, c.Logging.Level, validLevels)
	}

	return nil
}
