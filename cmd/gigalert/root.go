package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"gigalert/internal/adapter"
	"gigalert/internal/config"
	"gigalert/internal/cycle"
	"gigalert/internal/model"
	"gigalert/internal/retry"
	"gigalert/internal/stats"
	"gigalert/internal/store"
	"gigalert/internal/users"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "gigalert",
	Short: "Freelance job alerts — straight to your chat",
	Long:  "GigAlert polls freelance job boards and pushes keyword-matched listings to Telegram recipients.",
	// Default to `start` so that `gigalert` with no args runs the daemon.
	// This preserves compatibility with systemd unit files that invoke the binary directly.
	RunE: runStart,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: GIGALERT_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > GIGALERT_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	// A .env next to the binary feeds the ${VAR} expansions in the
	// config file; its absence is not an error.
	_ = godotenv.Load()

	if path == "" {
		if env := os.Getenv("GIGALERT_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func buildAdapters(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) []model.SourceAdapter {
	var adapters []model.SourceAdapter

	if cfg.Sources.Freelancer.Enabled {
		adapters = append(adapters, retry.Wrap(adapter.NewFreelancerAdapter(httpClient), 2, 5*time.Second, logger))
		logger.Info("registered source", "source", "freelancer")
	}
	if cfg.Sources.Skywalker.Enabled {
		adapters = append(adapters, retry.Wrap(adapter.NewSkywalkerAdapter(cfg.Sources.Skywalker.FeedURL, httpClient), 2, 5*time.Second, logger))
		logger.Info("registered source", "source", "skywalker")
	}

	return adapters
}

// sentStore is the full surface the commands need from a sent store:
// the pipeline side plus the sent-log read side.
type sentStore interface {
	model.SentStore
	RecentSent(ctx context.Context, limit int) ([]model.SentRecord, error)
}

// openStore opens the configured sent store backend. The returned
// func closes it.
func openStore(ctx context.Context, cfg *config.Config) (sentStore, func(), error) {
	switch cfg.Store.Driver {
	case "postgres":
		s, err := store.NewPostgresStore(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		s, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
}

// openDirectory opens the recipient directory on the same backend as
// the sent store.
func openDirectory(ctx context.Context, cfg *config.Config) (model.RecipientDirectory, func(), error) {
	switch cfg.Store.Driver {
	case "postgres":
		d, err := users.NewPostgresDirectory(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return d, d.Close, nil
	default:
		d, err := users.NewSQLiteDirectory(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return d, func() { _ = d.Close() }, nil
	}
}

// buildSink assembles the configured stats sinks. The returned func
// closes any sink holding a connection.
func buildSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (stats.Sink, func(), error) {
	var sinks stats.MultiSink
	closers := func() {}

	if cfg.Stats.Path != "" {
		sinks = append(sinks, stats.NewFileSink(cfg.Stats.Path))
	}
	if cfg.Stats.RedisURL != "" {
		rs, err := stats.NewRedisSink(ctx, cfg.Stats.RedisURL, cfg.Stats.TTL)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, rs)
		closers = func() { _ = rs.Close() }
		logger.Info("publishing cycle stats to redis")
	}

	if len(sinks) == 0 {
		return stats.NopSink{}, closers, nil
	}
	return sinks, closers, nil
}

func runnerOptions(cfg *config.Config) cycle.Options {
	opts := cycle.Options{
		MaxAge:    cfg.Filters.MaxAge,
		SendCap:   cfg.Filters.SendCap,
		Retention: cfg.Filters.Retention,
	}
	if cfg.Sources.Freelancer.Enabled {
		opts.AffiliatePrefix = cfg.Sources.Freelancer.AffiliatePrefix
	}
	return opts
}
