package helper

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/yishak-cs/shop-recommender/internal/database"
	"github.com/yishak-cs/shop-recommender/internal/logging"
)

// Snapshot source kinds
const (
	SourceNeo4j = "neo4j"
	SourceFile  = "file"
)

// ConfigPathEnvVar overrides the config file location
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

// Config is the full application configuration
type Config struct {
	Server ServerConfig    `koanf:"server"`
	Neo4j  database.Config `koanf:"neo4j"`
	Source SourceConfig    `koanf:"source"`
	KNN    KNNConfig       `koanf:"knn"`
	Log    logging.Config  `koanf:"log"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string `koanf:"port"`

	// RateLimit is requests per second per client IP; 0 disables limiting
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
}

// SourceConfig selects where snapshots are loaded from
type SourceConfig struct {
	// Kind is neo4j or file
	Kind         string `koanf:"kind"`
	SnapshotPath string `koanf:"snapshot_path"`

	// SeedURL, when set, seeds Neo4j from <SeedURL>/data/*.csv at startup
	SeedURL string `koanf:"seed_url"`

	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// KNNConfig holds recommendation defaults and limits
type KNNConfig struct {
	Neighbors    int   `koanf:"neighbors"`
	Results      int   `koanf:"results"`
	MaxNeighbors int   `koanf:"max_neighbors"`
	MaxResults   int   `koanf:"max_results"`
	Workers      int   `koanf:"workers"`
	CacheEntries int64 `koanf:"cache_entries"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      "8080",
			RateBurst: 20,
		},
		Neo4j: database.Config{
			Username: "neo4j",
			Database: "neo4j",
		},
		Source: SourceConfig{
			Kind:            SourceNeo4j,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		KNN: KNNConfig{
			Neighbors:    3,
			Results:      5,
			MaxNeighbors: 50,
			MaxResults:   100,
			Workers:      4,
			CacheEntries: 16,
		},
		Log: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads .env, then layers defaults, an optional YAML file and the
// environment, in increasing priority
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var envMappings = map[string]string{
	"app_port":       "server.port",
	"app_rate_limit": "server.rate_limit",
	"app_rate_burst": "server.rate_burst",

	"neo4j_uri":      "neo4j.uri",
	"neo4j_username": "neo4j.username",
	"neo4j_password": "neo4j.password",
	"neo4j_database": "neo4j.database",

	"source_kind":             "source.kind",
	"source_snapshot_path":    "source.snapshot_path",
	"source_seed_url":         "source.seed_url",
	"source_breaker_failures": "source.breaker_failures",
	"source_breaker_timeout":  "source.breaker_timeout",

	"knn_neighbors":     "knn.neighbors",
	"knn_results":       "knn.results",
	"knn_max_neighbors": "knn.max_neighbors",
	"knn_max_results":   "knn.max_results",
	"knn_workers":       "knn.workers",
	"knn_cache_entries": "knn.cache_entries",

	"log_level":  "log.level",
	"log_format": "log.format",
}

// envTransformFunc maps known environment variables to config paths and
// drops everything else
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	var errs []error

	switch c.Source.Kind {
	case SourceNeo4j:
		if c.Neo4j.URI == "" {
			errs = append(errs, errors.New("NEO4J_URI is required for the neo4j source"))
		}
	case SourceFile:
		if c.Source.SnapshotPath == "" {
			errs = append(errs, errors.New("SOURCE_SNAPSHOT_PATH is required for the file source"))
		}
		if c.Source.SeedURL != "" {
			errs = append(errs, errors.New("SOURCE_SEED_URL only applies to the neo4j source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source kind %q (want %s or %s)", c.Source.Kind, SourceNeo4j, SourceFile))
	}

	if c.Server.Port == "" {
		errs = append(errs, errors.New("APP_PORT must not be empty"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("APP_RATE_LIMIT must not be negative, got %g", c.Server.RateLimit))
	}
	if c.Source.BreakerFailures == 0 {
		errs = append(errs, errors.New("SOURCE_BREAKER_FAILURES must be at least 1"))
	}

	limits := []struct {
		name  string
		value int64
	}{
		{"KNN_NEIGHBORS", int64(c.KNN.Neighbors)},
		{"KNN_RESULTS", int64(c.KNN.Results)},
		{"KNN_MAX_NEIGHBORS", int64(c.KNN.MaxNeighbors)},
		{"KNN_MAX_RESULTS", int64(c.KNN.MaxResults)},
		{"KNN_WORKERS", int64(c.KNN.Workers)},
		{"KNN_CACHE_ENTRIES", c.KNN.CacheEntries},
	}
	for _, l := range limits {
		if l.value < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", l.name, l.value))
		}
	}

	if c.KNN.MaxNeighbors > 0 && c.KNN.Neighbors > c.KNN.MaxNeighbors {
		errs = append(errs, fmt.Errorf("KNN_NEIGHBORS %d exceeds KNN_MAX_NEIGHBORS %d", c.KNN.Neighbors, c.KNN.MaxNeighbors))
	}
	if c.KNN.MaxResults > 0 && c.KNN.Results > c.KNN.MaxResults {
		errs = append(errs, fmt.Errorf("KNN_RESULTS %d exceeds KNN_MAX_RESULTS %d", c.KNN.Results, c.KNN.MaxResults))
	}

	return errors.Join(errs...)
}
