package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the gigalert worker.
type Config struct {
	PollingInterval time.Duration
	Schedule        string // optional cron spec; overrides the interval loop when set
	Sources         SourcesConfig
	Filters         FilterConfig
	Store           StoreConfig
	Telegram        TelegramConfig
	Stats           StatsConfig
}

// SourcesConfig enables and parameterizes the platform adapters.
type SourcesConfig struct {
	Freelancer FreelancerConfig `yaml:"freelancer"`
	Skywalker  SkywalkerConfig  `yaml:"skywalker"`
}

type FreelancerConfig struct {
	Enabled         bool   `yaml:"enabled"`
	AffiliatePrefix string `yaml:"affiliate_prefix"` // deep-link prefix, empty disables wrapping
}

type SkywalkerConfig struct {
	Enabled bool   `yaml:"enabled"`
	FeedURL string `yaml:"feed_url"`
}

// FilterConfig holds pipeline-wide filtering knobs.
type FilterConfig struct {
	MaxAge      time.Duration // drop listings older than this (0 = keep all)
	SendCap     int           // max alerts per recipient per cycle
	Retention   time.Duration // sent-log rows older than this are pruned
}

// StoreConfig selects the sent store and recipient directory backend.
type StoreConfig struct {
	Driver      string `yaml:"driver"`       // "sqlite" (default) or "postgres"
	Path        string `yaml:"path"`         // sqlite file path
	DatabaseURL string `yaml:"database_url"` // postgres DSN, expanded from env
}

// TelegramConfig configures the delivery channel.
type TelegramConfig struct {
	BotToken     string
	MinSendDelay time.Duration // pacing between consecutive sends
}

// StatsConfig configures cycle stats publishing.
type StatsConfig struct {
	Path     string        // JSON snapshot path, empty disables the file sink
	RedisURL string        // optional Redis sink
	TTL      time.Duration // Redis key TTL
}

const (
	defaultSkywalkerFeed = "https://www.skywalker.gr/jobs/feed"
	defaultStatsPath     = "feedstats.json"
)

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	PollingInterval string            `yaml:"polling_interval"`
	Schedule        string            `yaml:"schedule"`
	Sources         SourcesConfig     `yaml:"sources"`
	Filters         rawFilterConfig   `yaml:"filters"`
	Store           StoreConfig       `yaml:"store"`
	Telegram        rawTelegramConfig `yaml:"telegram"`
	Stats           rawStatsConfig    `yaml:"stats"`
}

type rawFilterConfig struct {
	MaxAge    string `yaml:"max_age"`
	SendCap   int    `yaml:"send_cap"`
	Retention string `yaml:"retention"`
}

type rawTelegramConfig struct {
	BotToken     string `yaml:"bot_token"`
	MinSendDelay string `yaml:"min_send_delay"`
}

type rawStatsConfig struct {
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
	TTL      string `yaml:"ttl"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	interval := 2 * time.Minute // default cycle interval
	if raw.PollingInterval != "" {
		interval, err = time.ParseDuration(raw.PollingInterval)
		if err != nil {
			return nil, fmt.Errorf("parse polling_interval %q: %w", raw.PollingInterval, err)
		}
	}

	maxAge := 48 * time.Hour
	if raw.Filters.MaxAge != "" {
		maxAge, err = time.ParseDuration(raw.Filters.MaxAge)
		if err != nil {
			return nil, fmt.Errorf("parse filters.max_age %q: %w", raw.Filters.MaxAge, err)
		}
	}

	retention := 7 * 24 * time.Hour
	if raw.Filters.Retention != "" {
		retention, err = time.ParseDuration(raw.Filters.Retention)
		if err != nil {
			return nil, fmt.Errorf("parse filters.retention %q: %w", raw.Filters.Retention, err)
		}
	}

	sendCap := 10
	if raw.Filters.SendCap != 0 {
		sendCap = raw.Filters.SendCap
	}

	minSendDelay := 500 * time.Millisecond
	if raw.Telegram.MinSendDelay != "" {
		minSendDelay, err = time.ParseDuration(raw.Telegram.MinSendDelay)
		if err != nil {
			return nil, fmt.Errorf("parse telegram.min_send_delay %q: %w", raw.Telegram.MinSendDelay, err)
		}
	}

	statsTTL := 10 * time.Minute
	if raw.Stats.TTL != "" {
		statsTTL, err = time.ParseDuration(raw.Stats.TTL)
		if err != nil {
			return nil, fmt.Errorf("parse stats.ttl %q: %w", raw.Stats.TTL, err)
		}
	}

	if raw.Sources.Skywalker.FeedURL == "" {
		raw.Sources.Skywalker.FeedURL = defaultSkywalkerFeed
	}
	if raw.Store.Driver == "" {
		raw.Store.Driver = "sqlite"
	}
	if raw.Store.Path == "" {
		raw.Store.Path = "gigalert.db"
	}
	statsPath := raw.Stats.Path
	if statsPath == "" {
		statsPath = defaultStatsPath
	}

	cfg := &Config{
		PollingInterval: interval,
		Schedule:        raw.Schedule,
		Sources:         raw.Sources,
		Filters: FilterConfig{
			MaxAge:    maxAge,
			SendCap:   sendCap,
			Retention: retention,
		},
		Store: raw.Store,
		Telegram: TelegramConfig{
			BotToken:     raw.Telegram.BotToken,
			MinSendDelay: minSendDelay,
		},
		Stats: StatsConfig{
			Path:     statsPath,
			RedisURL: raw.Stats.RedisURL,
			TTL:      statsTTL,
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.PollingInterval <= 0 {
		return fmt.Errorf("polling_interval must be positive, got %v", cfg.PollingInterval)
	}
	if !cfg.Sources.Freelancer.Enabled && !cfg.Sources.Skywalker.Enabled {
		return fmt.Errorf("at least one source must be enabled")
	}
	if cfg.Filters.SendCap < 1 {
		return fmt.Errorf("filters.send_cap must be at least 1, got %d", cfg.Filters.SendCap)
	}

	switch cfg.Store.Driver {
	case "sqlite":
		if cfg.Store.Path == "" {
			return fmt.Errorf("store.path is required when driver is \"sqlite\"")
		}
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return fmt.Errorf("store.database_url is required when driver is \"postgres\"")
		}
	default:
		return fmt.Errorf("store.driver must be \"sqlite\" or \"postgres\", got %q", cfg.Store.Driver)
	}

	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if cfg.Telegram.MinSendDelay < 0 {
		return fmt.Errorf("telegram.min_send_delay must not be negative, got %v", cfg.Telegram.MinSendDelay)
	}

	if strings.Contains(cfg.Telegram.BotToken, "$") {
		return fmt.Errorf("telegram.bot_token looks like an unexpanded env var: %q", cfg.Telegram.BotToken)
	}

	return nil
}
