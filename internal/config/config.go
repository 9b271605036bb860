// Package config loads service settings from defaults, an optional YAML file, a .env file
// and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DevSecret is used when SECRET_KEY is unset outside production.
const DevSecret = "dev-secret-key-change-in-production"

// Config captures every setting needed to boot the service and the CLI.
type Config struct {
	Env       string          `yaml:"env"`
	SecretKey string          `yaml:"secretKey"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Storage   StorageConfig   `yaml:"storage"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Cache     CacheConfig     `yaml:"cache"`
	Catalog   CatalogConfig   `yaml:"catalog"`

	// Warnings collects rejected values; they are logged once a logger exists.
	Warnings []string `yaml:"-"`
}

// ServerConfig controls the HTTP, admin gRPC and metrics listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	AdminAddress    string        `yaml:"adminAddress"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	TrustProxy      bool          `yaml:"trustProxy"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// StorageConfig places the intake, output and example roots and sets file limits.
type StorageConfig struct {
	UploadDir       string        `yaml:"uploadDir"`
	PlotDir         string        `yaml:"plotDir"`
	ReportDir       string        `yaml:"reportDir"`
	ExamplesDir     string        `yaml:"examplesDir"`
	MaxFileSizeMB   int           `yaml:"maxFileSizeMB"`
	Retention       time.Duration `yaml:"retention"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
}

// MaxFileBytes converts the upload cap to bytes.
func (s StorageConfig) MaxFileBytes() int64 {
	return int64(s.MaxFileSizeMB) << 20
}

// RateLimitConfig controls the sliding-window limiter on intake routes.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
	Backend  string        `yaml:"backend"`
	RedisURL string        `yaml:"redisURL"`
}

// CacheConfig selects the catalog search cache backend.
type CacheConfig struct {
	Backend  string `yaml:"backend"`
	RedisURL string `yaml:"redisURL"`
}

// CatalogConfig controls the dataset catalog integration.
type CatalogConfig struct {
	BaseURL        string        `yaml:"baseURL"`
	Timeout        time.Duration `yaml:"timeout"`
	CallLimit      int           `yaml:"callLimit"`
	CacheTTL       time.Duration `yaml:"cacheTTL"`
	MaxDownloadMB  int           `yaml:"maxDownloadMB"`
	MaxPreviewRows int           `yaml:"maxPreviewRows"`
}

// Load initialises Config from a YAML file, a .env file and environment overrides.
// Variables already present in the environment win over .env entries.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		path = os.Getenv("BENFORD_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Env: "development",
		Server: ServerConfig{
			Address:         ":8080",
			AdminAddress:    ":50051",
			MetricsAddress:  ":2112",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			RequestTimeout:  55 * time.Second,
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Storage: StorageConfig{
			UploadDir:       "uploads",
			PlotDir:         "static/images",
			ReportDir:       "static/reports",
			ExamplesDir:     "examples",
			MaxFileSizeMB:   16,
			Retention:       24 * time.Hour,
			CleanupInterval: 60 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Requests: 30,
			Window:   60 * time.Second,
			Backend:  "memory",
		},
		Cache: CacheConfig{Backend: "memory"},
		Catalog: CatalogConfig{
			BaseURL:        "https://www.kaggle.com/api/v1",
			Timeout:        30 * time.Second,
			CallLimit:      20,
			CacheTTL:       15 * time.Minute,
			MaxDownloadMB:  50,
			MaxPreviewRows: 500_000,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Env = strings.ToLower(v)
	}
	if v := os.Getenv("SECRET_KEY"); v != "" {
		cfg.SecretKey = v
	}
	if v := os.Getenv("BENFORD_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("BENFORD_ADMIN_ADDRESS"); v != "" {
		cfg.Server.AdminAddress = v
	}
	if v := os.Getenv("BENFORD_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("BENFORD_TRUST_PROXY"); v != "" {
		cfg.Server.TrustProxy = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.JSON = strings.EqualFold(v, "json")
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.Storage.UploadDir = v
	}
	if v := os.Getenv("PLOT_DIR"); v != "" {
		cfg.Storage.PlotDir = v
	}
	if v := os.Getenv("REPORT_DIR"); v != "" {
		cfg.Storage.ReportDir = v
	}
	if v := os.Getenv("EXAMPLES_DIR"); v != "" {
		cfg.Storage.ExamplesDir = v
	}
	cfg.positiveInt("MAX_FILE_SIZE_MB", &cfg.Storage.MaxFileSizeMB)
	cfg.positiveDuration("MAX_FILE_RETENTION_HOURS", time.Hour, &cfg.Storage.Retention)
	cfg.positiveDuration("CLEANUP_INTERVAL_MINUTES", time.Minute, &cfg.Storage.CleanupInterval)

	cfg.positiveInt("RATE_LIMIT_REQUESTS", &cfg.RateLimit.Requests)
	cfg.positiveDuration("RATE_LIMIT_WINDOW_SECONDS", time.Second, &cfg.RateLimit.Window)
	if v := os.Getenv("RATE_LIMIT_BACKEND"); v != "" {
		cfg.RateLimit.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RateLimit.RedisURL = v
		cfg.Cache.RedisURL = v
	}
	if v := os.Getenv("CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = strings.ToLower(v)
	}

	if v := os.Getenv("KAGGLE_BASE_URL"); v != "" {
		cfg.Catalog.BaseURL = v
	}
	cfg.positiveInt("KAGGLE_CALL_LIMIT", &cfg.Catalog.CallLimit)
	cfg.positiveDuration("KAGGLE_CACHE_TTL_MINUTES", time.Minute, &cfg.Catalog.CacheTTL)
	cfg.positiveInt("KAGGLE_MAX_DOWNLOAD_MB", &cfg.Catalog.MaxDownloadMB)
	cfg.positiveInt("KAGGLE_MAX_PREVIEW_ROWS", &cfg.Catalog.MaxPreviewRows)
}

func (c *Config) positiveInt(name string, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		c.warnf("invalid %s %q; using %d", name, v, *dst)
		return
	}
	*dst = n
}

// positiveDuration reads a number of units (fractions allowed) from name.
func (c *Config) positiveDuration(name string, unit time.Duration, dst *time.Duration) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f <= 0 {
		c.warnf("invalid %s %q; using %s", name, v, *dst)
		return
	}
	*dst = time.Duration(f * float64(unit))
}

func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

// Production reports whether APP_ENV selects production behaviour.
func (c *Config) Production() bool {
	return c.Env == "production"
}

// Validate checks cross-field rules. A missing secret is fatal in production and replaced
// by DevSecret, with a warning, elsewhere.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		if c.Production() {
			return errors.New("SECRET_KEY must be set when APP_ENV=production")
		}
		c.SecretKey = DevSecret
		c.warnf("SECRET_KEY not set; using the development secret")
	}
	if c.Storage.MaxFileSizeMB <= 0 {
		return fmt.Errorf("max file size must be positive, got %d", c.Storage.MaxFileSizeMB)
	}
	dirs := map[string]string{
		"upload": c.Storage.UploadDir,
		"plot":   c.Storage.PlotDir,
		"report": c.Storage.ReportDir,
	}
	seen := make(map[string]string, len(dirs))
	for name, dir := range dirs {
		if dir == "" {
			return fmt.Errorf("%s directory is required", name)
		}
		if other, dup := seen[dir]; dup {
			return fmt.Errorf("%s and %s directories must differ", other, name)
		}
		seen[dir] = name
	}
	return nil
}
