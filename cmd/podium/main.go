package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/Podium/internal/api"
	"github.com/MikeSquared-Agency/Podium/internal/config"
	"github.com/MikeSquared-Agency/Podium/internal/hermes"
	"github.com/MikeSquared-Agency/Podium/internal/metrics"
	"github.com/MikeSquared-Agency/Podium/internal/oracle"
	"github.com/MikeSquared-Agency/Podium/internal/runner"
	"github.com/MikeSquared-Agency/Podium/internal/search"
	"github.com/MikeSquared-Agency/Podium/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	solve := flag.Bool("solve", false, "solve the configured puzzle once and exit")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if *solve {
		os.Exit(solveOnce(cfg, logger))
	}
	serve(cfg, logger)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// solveOnce runs a single search against the configured hidden order. The
// exit code is 0 when solved, 2 when the search exhausted, 1 on error.
func solveOnce(cfg *config.Config, logger *slog.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := cfg.SearchOptions()
	var p *oracle.Permutation
	if len(cfg.Oracle.HiddenOrder) > 0 {
		var err error
		if p, err = oracle.NewPermutation(cfg.Oracle.HiddenOrder, opts.RaceSize); err != nil {
			logger.Error("invalid hidden order", "error", err)
			return 1
		}
	} else {
		p = oracle.RandomPermutation(opts.Competitors, opts.RaceSize, cfg.Oracle.Seed)
	}
	logger.Info("hidden order", "order", p.Order(), "top", p.Top(opts.Podium))

	observers := search.Observers{search.NewLogObserver(logger), metrics.NewObserver()}
	engine, err := search.New(opts, p, observers, logger)
	if err != nil {
		logger.Error("invalid search options", "error", err)
		return 1
	}

	outcome, err := engine.Solve(ctx)
	if err != nil {
		logger.Error("search failed", "error", err)
		return 1
	}
	metrics.RecordOutcome(outcome)

	if !outcome.Solved() {
		logger.Warn("search exhausted", "expansions", outcome.Expansions, "truncated", outcome.Truncated)
		return 2
	}

	for i, race := range outcome.Races {
		ranking, _ := p.Run(race)
		logger.Info("race", "step", i+1, "race", []int(race), "result", []int(ranking))
	}
	state, err := search.Replay(opts.Competitors, outcome.Races, p)
	if err != nil {
		logger.Error("replay failed", "error", err)
		return 1
	}
	podium, certified := state.Podium(opts.Podium)
	logger.Info("podium",
		"races", len(outcome.Races),
		"podium", podium,
		"certified", certified,
		"expansions", outcome.Expansions,
		"duration_ms", outcome.Duration.Milliseconds(),
	)
	return 0
}

func serve(cfg *config.Config, logger *slog.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store: Postgres when configured, otherwise in memory
	var db store.Store
	if cfg.Database.URL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Error("failed to prepare schema", "error", err)
			os.Exit(1)
		}
		db = pg
		logger.Info("connected to database")
	} else {
		db = store.NewMemoryStore()
		logger.Warn("no database configured, runs are kept in memory")
	}
	defer db.Close()

	// Hermes (optional)
	var hermesClient hermes.Client
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			hermesClient = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}

	// Runner
	r := runner.New(db, hermesClient, cfg, logger)
	r.Start(ctx)
	defer r.Stop()
	r.SetupSubscriptions()
	logger.Info("runner started", "tick_interval", cfg.TickInterval(), "workers", cfg.Search.Workers)

	// API server
	router := api.NewRouter(db, hermesClient, cfg.SearchOptions(), cfg.Server.AdminToken, logger)
	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: api.NewMetricsRouter(),
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}
