// Package config provides configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Freshness FreshnessConfig `yaml:"freshness"`
	Cache     CacheConfig     `yaml:"cache"`
	Files     FilesConfig     `yaml:"files"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `yaml:"port"`
	// JWTSecret signs session tokens. Required.
	JWTSecret string `yaml:"jwt_secret"`
	// BodyLimit caps request bodies, in echo's size notation (e.g. "12M").
	BodyLimit string `yaml:"body_limit"`
}

// StorageConfig selects the database backend for portal records.
type StorageConfig struct {
	// Type is "sqlite", "postgresql" or "mongodb".
	Type       string           `yaml:"type"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`
	MongoDB    MongoDBConfig    `yaml:"mongodb"`
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgreSQLConfig holds PostgreSQL-specific configuration
type PostgreSQLConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// FreshnessConfig configures where the freshness registry is persisted.
type FreshnessConfig struct {
	// Backend is "file" or "redis".
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds the registry mirror's Redis connection.
type RedisConfig struct {
	URL string `yaml:"url"`
	Key string `yaml:"key"`
}

// CacheConfig sizes the in-process response cache.
type CacheConfig struct {
	ResponseSize int `yaml:"response_size"`
}

// FilesConfig selects where uploaded evidence documents are kept.
type FilesConfig struct {
	// Backend is "local" or "s3".
	Backend string   `yaml:"backend"`
	Dir     string   `yaml:"dir"`
	S3      S3Config `yaml:"s3"`
}

// S3Config holds S3 upload settings.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
	// Endpoint overrides the S3 endpoint for S3-compatible stores.
	Endpoint string `yaml:"endpoint"`
	// URLTTL is the lifetime of presigned download URLs, in seconds.
	URLTTL int `yaml:"url_ttl"`
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is "text" or "json"; empty picks text on a terminal.
	Format string `yaml:"format"`
}

// LoadResult is the loaded configuration and the file it came from.
type LoadResult struct {
	Config *Config
	// Path is the YAML file that was read, empty when none was found.
	Path string
}

// DefaultConfig returns the configuration used when no file or env var overrides it.
func DefaultConfig() *Config {
	return buildDefaultConfig()
}

func buildDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      "8080",
			BodyLimit: "12M",
		},
		Storage: StorageConfig{
			Type:       "sqlite",
			SQLite:     SQLiteConfig{Path: "data/portal.db"},
			PostgreSQL: PostgreSQLConfig{MaxConns: 10},
			MongoDB:    MongoDBConfig{Database: "vendorrisk"},
		},
		Freshness: FreshnessConfig{
			Backend: "file",
			Path:    "data/freshness.json",
			Redis:   RedisConfig{Key: "vendorrisk:freshness"},
		},
		Cache: CacheConfig{ResponseSize: 1024},
		Files: FilesConfig{
			Backend: "local",
			Dir:     "data/uploads",
			S3:      S3Config{URLTTL: 3600},
		},
		Metrics: MetricsConfig{Endpoint: "/metrics"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from defaults, an optional YAML file and environment.
// Later sources win: defaults, then config file, then env vars.
func Load() (*LoadResult, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := buildDefaultConfig()

	path, err := findConfigFile()
	if err != nil {
		return nil, err
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(expandString(string(raw))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &LoadResult{Config: cfg, Path: path}, nil
}

// findConfigFile returns CONFIG_PATH, or the first of config/config.yaml and
// config.yaml that exists.
func findConfigFile() (string, error) {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("config file %s: %w", p, err)
		}
		return p, nil
	}
	for _, p := range []string{"config/config.yaml", "config.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default} placeholders. A variable
// that is unset or empty takes its default; without a default the
// placeholder is left untouched.
func expandString(s string) string {
	if s == "" {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := placeholderPattern.FindStringSubmatch(match)
		if v := os.Getenv(parts[1]); v != "" {
			return v
		}
		if parts[2] != "" {
			return parts[3]
		}
		return match
	})
}

// applyEnvOverrides writes env vars over cfg. Malformed numbers and booleans
// are errors rather than silently ignored.
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"PORT":                &cfg.Server.Port,
		"JWT_SECRET":          &cfg.Server.JWTSecret,
		"BODY_LIMIT":          &cfg.Server.BodyLimit,
		"STORAGE_TYPE":        &cfg.Storage.Type,
		"SQLITE_PATH":         &cfg.Storage.SQLite.Path,
		"POSTGRES_URL":        &cfg.Storage.PostgreSQL.URL,
		"MONGODB_URL":         &cfg.Storage.MongoDB.URL,
		"MONGODB_DATABASE":    &cfg.Storage.MongoDB.Database,
		"FRESHNESS_BACKEND":   &cfg.Freshness.Backend,
		"FRESHNESS_PATH":      &cfg.Freshness.Path,
		"REDIS_URL":           &cfg.Freshness.Redis.URL,
		"FRESHNESS_REDIS_KEY": &cfg.Freshness.Redis.Key,
		"FILES_BACKEND":       &cfg.Files.Backend,
		"UPLOADS_DIR":         &cfg.Files.Dir,
		"S3_BUCKET":           &cfg.Files.S3.Bucket,
		"AWS_REGION":          &cfg.Files.S3.Region,
		"S3_ENDPOINT":         &cfg.Files.S3.Endpoint,
		"METRICS_ENDPOINT":    &cfg.Metrics.Endpoint,
		"LOG_LEVEL":           &cfg.Logging.Level,
		"LOG_FORMAT":          &cfg.Logging.Format,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"POSTGRES_MAX_CONNS":  &cfg.Storage.PostgreSQL.MaxConns,
		"RESPONSE_CACHE_SIZE": &cfg.Cache.ResponseSize,
		"FILE_URL_TTL":        &cfg.Files.S3.URLTTL,
	}
	var errs []error
	for name, dst := range ints {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s %q: %w", name, v, err))
			continue
		}
		*dst = n
	}

	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid METRICS_ENABLED %q: %w", v, err))
		} else {
			cfg.Metrics.Enabled = b
		}
	}
	return errors.Join(errs...)
}

func (c *Config) validate() error {
	switch c.Storage.Type {
	case "sqlite", "postgresql", "mongodb":
	default:
		return fmt.Errorf("unknown storage type: %q (valid: sqlite, postgresql, mongodb)", c.Storage.Type)
	}
	switch c.Freshness.Backend {
	case "file", "redis":
	default:
		return fmt.Errorf("unknown freshness backend: %q (valid: file, redis)", c.Freshness.Backend)
	}
	if c.Freshness.Backend == "redis" && c.Freshness.Redis.URL == "" {
		return fmt.Errorf("freshness.redis.url is required for the redis backend")
	}
	switch c.Files.Backend {
	case "local", "s3":
	default:
		return fmt.Errorf("unknown files backend: %q (valid: local, s3)", c.Files.Backend)
	}
	if c.Files.Backend == "s3" && c.Files.S3.Bucket == "" {
		return fmt.Errorf("files.s3.bucket is required for the s3 backend")
	}
	if c.Cache.ResponseSize < 0 {
		return fmt.Errorf("cache.response_size must not be negative")
	}
	return nil
}
