// Package config loads the bridge's runtime configuration: an optional
// YAML base file overlaid by environment variables, fail-fast validated
// at startup with an explicit struct,
// explicit Validate, no reflection-based env binding).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	URL           string `yaml:"url"`
	PoolSize      int    `yaml:"poolSize"`
	MaxOverflow   int    `yaml:"maxOverflow"`
	MigrationsDir string `yaml:"migrationsDir"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type ExternalServicesConfig struct {
	VectorURL           string `yaml:"vectorURL"`
	EmbedURL            string `yaml:"embedURL"`
	ChangeDetectionURL  string `yaml:"changeDetectionURL"`
	ScraperURL          string `yaml:"scraperURL"`
}

type SecretsConfig struct {
	APISecret                string `yaml:"apiSecret"`
	WebhookSecret             string `yaml:"webhookSecret"`
	ChangeDetectionHMACSecret string `yaml:"changeDetectionHMACSecret"`
}

type WorkerConfig struct {
	BatchSize       int `yaml:"batchSize"`
	PollIntervalMs  int `yaml:"pollIntervalMs"`
	JobTimeoutMs    int `yaml:"jobTimeoutMs"`
}

type AutoWatchConfig struct {
	Enabled             bool `yaml:"enabled"`
	CheckIntervalSeconds int  `yaml:"checkIntervalSeconds"`
}

type CacheConfig struct {
	ContentTTLSeconds int `yaml:"contentTTLSeconds"`
}

type SearchConfig struct {
	RRFK              int `yaml:"rrfK"`
	OversampleFactor  int `yaml:"oversampleFactor"`
}

type CanonicalizationConfig struct {
	StripTrackingParams bool `yaml:"stripTrackingParams"`
}

type RetentionConfig struct {
	ContentTTLDays          int    `yaml:"contentTTLDays"`
	SweepCron               string `yaml:"sweepCron"`
	ZombieTimeoutMinutes    int    `yaml:"zombieTimeoutMinutes"`
}

type Config struct {
	Server          ServerConfig
	Database        DatabaseConfig
	Redis           RedisConfig
	External        ExternalServicesConfig
	Secrets         SecretsConfig
	Worker          WorkerConfig
	AutoWatch       AutoWatchConfig
	Cache           CacheConfig
	Search          SearchConfig
	Canonicalize    CanonicalizationConfig
	Retention       RetentionConfig
	CORSOrigins     []string
}

var devPlaceholders = map[string]struct{}{
	"changeme": {}, "secret": {}, "password": {}, "test": {},
}

// defaults holds the documented environment variable defaults.
func defaults() Config {
	return Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{PoolSize: 40, MaxOverflow: 20, MigrationsDir: "db/migrations"},
		Worker: WorkerConfig{
			BatchSize:      4,
			PollIntervalMs: 2000,
			JobTimeoutMs:   0,
		},
		AutoWatch: AutoWatchConfig{Enabled: false, CheckIntervalSeconds: 3600},
		Cache:     CacheConfig{ContentTTLSeconds: 3600},
		Search:    SearchConfig{RRFK: 60, OversampleFactor: 2},
		Canonicalize: CanonicalizationConfig{StripTrackingParams: true},
		Retention: RetentionConfig{
			ContentTTLDays:       0,
			SweepCron:            "0 */15 * * * *",
			ZombieTimeoutMinutes: 15,
		},
		CORSOrigins: []string{},
	}
}

// Load builds a Config starting from defaults, optionally overlaying a YAML
// file at yamlPath (if non-empty and present), then applying environment
// variable overrides. Environment variables always win.
func Load(yamlPath string) (*Config, error) {
	cfg := defaults()

	if yamlPath != "" {
		if f, err := os.Open(yamlPath); err == nil {
			defer f.Close()
			if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
				return nil, fmt.Errorf("decode config file %s: %w", yamlPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("open config file %s: %w", yamlPath, err)
		}
	}

	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	integer("PORT", &cfg.Server.Port)
	str("DATABASE_URL", &cfg.Database.URL)
	integer("DB_POOL_SIZE", &cfg.Database.PoolSize)
	integer("DB_MAX_OVERFLOW", &cfg.Database.MaxOverflow)
	str("DB_MIGRATIONS_DIR", &cfg.Database.MigrationsDir)
	str("REDIS_URL", &cfg.Redis.URL)
	str("VECTOR_URL", &cfg.External.VectorURL)
	str("EMBED_URL", &cfg.External.EmbedURL)
	str("CHANGE_DETECTION_URL", &cfg.External.ChangeDetectionURL)
	str("SCRAPER_URL", &cfg.External.ScraperURL)
	str("API_SECRET", &cfg.Secrets.APISecret)
	str("WEBHOOK_SECRET", &cfg.Secrets.WebhookSecret)
	str("CHANGEDETECTION_HMAC_SECRET", &cfg.Secrets.ChangeDetectionHMACSecret)
	integer("WORKER_BATCH_SIZE", &cfg.Worker.BatchSize)
	integer("WORKER_POLL_INTERVAL_MS", &cfg.Worker.PollIntervalMs)
	integer("WORKER_JOB_TIMEOUT_MS", &cfg.Worker.JobTimeoutMs)
	boolean("ENABLE_AUTO_WATCH", &cfg.AutoWatch.Enabled)
	integer("CHECK_INTERVAL_SECONDS", &cfg.AutoWatch.CheckIntervalSeconds)
	integer("CONTENT_CACHE_TTL_SECONDS", &cfg.Cache.ContentTTLSeconds)
	integer("RRF_K", &cfg.Search.RRFK)
	integer("SEARCH_OVERSAMPLE_FACTOR", &cfg.Search.OversampleFactor)
	boolean("TRACKING_PARAM_STRIP", &cfg.Canonicalize.StripTrackingParams)
	integer("RETENTION_CONTENT_TTL_DAYS", &cfg.Retention.ContentTTLDays)
	str("RETENTION_SWEEP_CRON", &cfg.Retention.SweepCron)
	integer("ZOMBIE_RESCRAPE_TIMEOUT_MINUTES", &cfg.Retention.ZombieTimeoutMinutes)

	if v, ok := os.LookupEnv("CORS_ORIGINS"); ok {
		var origins []string
		if err := json.Unmarshal([]byte(v), &origins); err == nil {
			cfg.CORSOrigins = origins
		}
	}
}

// Validate performs fail-fast sanity checks: every
// required endpoint/secret must be present, secrets must clear a minimum
// length and must not match known dev-only placeholders, and batch size
// must fall in the documented range.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	required := map[string]string{
		"DATABASE_URL": cfg.Database.URL,
		"REDIS_URL":    cfg.Redis.URL,
		"VECTOR_URL":   cfg.External.VectorURL,
		"EMBED_URL":    cfg.External.EmbedURL,
	}
	for key, v := range required {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s is required", key)
		}
	}

	if err := validateSecret("API_SECRET", cfg.Secrets.APISecret, 24); err != nil {
		return err
	}
	if err := validateSecret("WEBHOOK_SECRET", cfg.Secrets.WebhookSecret, 24); err != nil {
		return err
	}
	if cfg.AutoWatch.Enabled {
		if err := validateSecret("CHANGEDETECTION_HMAC_SECRET", cfg.Secrets.ChangeDetectionHMACSecret, 16); err != nil {
			return err
		}
		if strings.TrimSpace(cfg.External.ChangeDetectionURL) == "" {
			return errors.New("CHANGE_DETECTION_URL is required when ENABLE_AUTO_WATCH is true")
		}
	}

	if cfg.Worker.BatchSize < 1 || cfg.Worker.BatchSize > 32 {
		return fmt.Errorf("WORKER_BATCH_SIZE must be in range 1-32, got %d", cfg.Worker.BatchSize)
	}

	return nil
}

func validateSecret(name, value string, minLen int) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%s is required", name)
	}
	if len(trimmed) < minLen {
		return fmt.Errorf("%s must be at least %d characters", name, minLen)
	}
	if _, isPlaceholder := devPlaceholders[strings.ToLower(trimmed)]; isPlaceholder {
		return fmt.Errorf("%s must not be a known dev-only placeholder value", name)
	}
	return nil
}
