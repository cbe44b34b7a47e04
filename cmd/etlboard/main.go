package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/etlboard/etlboard/internal/api"
	"github.com/etlboard/etlboard/internal/config"
	"github.com/etlboard/etlboard/internal/dataset"
	"github.com/etlboard/etlboard/internal/metrics"
	"github.com/etlboard/etlboard/internal/pipeline"
	"github.com/etlboard/etlboard/internal/quality"
	"github.com/etlboard/etlboard/internal/web"
	"github.com/etlboard/etlboard/internal/ws"
)

// broadcastInterval is the WS hub's background refresh; stage completions
// push immediately on top of it.
const broadcastInterval = 5 * time.Second

func main() {
	configPath := flag.String("config", "etlboard.yaml", "path to config file (defaults are used if it does not exist)")
	port := flag.Int("port", 0, "override the configured HTTP port")
	generate := flag.Int("generate", 0, "generate n sample records as CSV to -out and exit (no server)")
	out := flag.String("out", "orders.csv", "output path for -generate")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("etlboard starting", "config", *configPath)

	cfg, watchable := loadConfig(*configPath)
	if *port != 0 {
		cfg.Server.HTTPPort = *port
	}

	if *generate > 0 {
		if err := writeDataset(cfg, *generate, *out); err != nil {
			slog.Error("dataset generation failed", "err", err)
			os.Exit(1)
		}
		return
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"records", cfg.Dataset.Records,
		"seed", cfg.Dataset.Seed,
		"stage_delay", cfg.Pipeline.StageDelay,
		"quality_rules", len(cfg.Quality.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The demo's entire state: one in-memory pipeline.
	pipe := pipeline.New(generatorOptions(cfg), cfg.Pipeline.StageDelay)

	// Quality alert engine, evaluated after every transform.
	alerts := quality.New(cfg.Quality)

	// Metric registry counts stage runs via the pipeline's observer hook.
	registry := metrics.New()
	pipe.Subscribe(registry)

	// WebSocket hub, pushes state every tick and on stage completion.
	hub := ws.New(func() interface{} {
		return api.BuildState(pipe, alerts)
	}, broadcastInterval)
	pipe.Subscribe(hub)
	registry.SetClientCounter(hub.Count)
	go hub.Run(ctx)

	// Hot-reload generator settings and alert rules while presenting.
	if watchable {
		go func() {
			err := config.Watch(ctx, *configPath, func(newCfg *config.Config) {
				pipe.Configure(generatorOptions(newCfg), newCfg.Pipeline.StageDelay)
				alerts.SetConfig(newCfg.Quality)
			})
			if err != nil {
				slog.Error("config watch stopped", "err", err)
			}
		}()
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", api.New(pipe, alerts, registry, cfg.Dataset.SampleRows))
	mux.Handle("/ws/stream", hub)
	mux.Handle("/metrics", registry.Handler())
	mux.Handle("/", web.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: mux,
	}
	go func() {
		slog.Info("dashboard listening", "url", fmt.Sprintf("http://localhost:%d", cfg.Server.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("etlboard shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx) //nolint:errcheck
}

// loadConfig loads the file at path, falling back to defaults when it does
// not exist. The second return value reports whether the file can be watched.
func loadConfig(path string) (*config.Config, bool) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		slog.Info("config file not found, using defaults", "path", path)
		return config.Default(), false
	}
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	return cfg, true
}

// writeDataset generates n sample records with the configured seed and
// dirty-data shares and writes them as an upload-ready CSV file.
func writeDataset(cfg *config.Config, n int, path string) error {
	opts := generatorOptions(cfg)
	opts.Records = n

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := dataset.Export(f, dataset.New(opts).Generate()); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	slog.Info("dataset written", "path", path, "records", n)
	return nil
}

func generatorOptions(cfg *config.Config) dataset.Options {
	return dataset.Options{
		Records:         cfg.Dataset.Records,
		Seed:            cfg.Dataset.Seed,
		InvalidEmailPct: cfg.Dataset.InvalidEmailPct,
		InvalidPricePct: cfg.Dataset.InvalidPricePct,
	}
}
