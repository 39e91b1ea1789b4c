package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/game"
	"github.com/pthm-cable/flap/neural"
	"github.com/pthm-cable/flap/storage"
	"github.com/pthm-cable/flap/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, champions and config snapshot (overrides config)")
	dbPath := flag.String("db", "", "SQLite database recording the run (empty = disabled)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = config value, then time-based)")
	generations := flag.Int("generations", 0, "Generation budget (0 = use config)")
	population := flag.Int("population", 0, "Population size (0 = use config)")
	maxTicks := flag.Int("max-ticks", -1, "Tick cap per generation (-1 = use config, 0 = unlimited)")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (overrides config)")
	tracing := flag.Bool("tracing", false, "Export generation spans to stdout")
	realtime := flag.Bool("realtime", false, "Pace generations at the configured FPS")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *outputDir != "" {
		cfg.Telemetry.OutputDir = *outputDir
	}
	if *metricsAddr != "" {
		cfg.Telemetry.MetricsAddr = *metricsAddr
	}
	if *tracing {
		cfg.Telemetry.Tracing = true
	}
	if *generations > 0 {
		cfg.Evolution.Generations = *generations
	}
	if *population > 0 {
		cfg.Evolution.Population = *population
	}
	if *maxTicks >= 0 {
		cfg.Simulation.MaxTicks = *maxTicks
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Set up seed
	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = cfg.Simulation.Seed
	}
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, runOptions{
		seed:     rngSeed,
		dbPath:   *dbPath,
		realtime: *realtime,
		logger:   logger,
	}); err != nil {
		if errors.Is(err, game.ErrInterrupted) {
			slog.Warn("training interrupted", "error", err)
			return
		}
		slog.Error("training failed", "error", err)
		os.Exit(1)
	}
}

type runOptions struct {
	seed     int64
	dbPath   string
	realtime bool
	logger   *slog.Logger
}

// run wires outputs, metrics, tracing and storage around one Evolver run.
func run(ctx context.Context, cfg *config.Config, opts runOptions) error {
	logger := opts.logger

	shutdown, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		Enabled:     cfg.Telemetry.Tracing,
		ServiceName: "flap",
	}, logger)
	if err != nil {
		return err
	}
	defer telemetry.ShutdownWithTimeout(context.Background(), shutdown, logger)

	perf := game.NewPerfStats(cfg.Playfield.TicksPerSecond * 2)
	var reporters []neural.Reporter

	output, err := telemetry.NewOutputManager(cfg.Telemetry.OutputDir, telemetry.OutputOptions{
		Perf: perf,
		Plot: cfg.Telemetry.Plot,
	})
	if err != nil {
		return err
	}
	if output != nil {
		defer func() {
			if err := output.Close(); err != nil {
				logger.Warn("closing output", "error", err)
			}
		}()
		if err := output.WriteConfig(cfg); err != nil {
			return err
		}
		reporters = append(reporters, output)
	}

	if addr := cfg.Telemetry.MetricsAddr; addr != "" {
		reg := prometheus.NewRegistry()
		collector, err := telemetry.NewCollector(reg)
		if err != nil {
			return err
		}
		reporters = append(reporters, collector)

		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
		logger.Info("serving metrics", "addr", addr)
	}

	var store *storage.SQLiteStore
	if opts.dbPath != "" {
		store = storage.NewSQLiteStore(opts.dbPath)
		if err := store.Init(ctx); err != nil {
			return err
		}
		defer store.Close()
		runID, err := store.StartRun(ctx, cfg, opts.seed)
		if err != nil {
			return err
		}
		reporters = append(reporters, store)
		logger.Info("recording run", "db", opts.dbPath, "run_id", runID)
	}

	var pacer game.Pacer
	if opts.realtime {
		tp := game.NewTickerPacer(cfg.Playfield.TargetFPS)
		defer tp.Stop()
		pacer = tp
	}

	evolver, err := neural.NewEvolver(cfg, neural.EvolverOptions{
		Logger:    logger,
		Pacer:     pacer,
		Perf:      perf,
		Reporters: reporters,
		Seed:      opts.seed,
	})
	if err != nil {
		return err
	}

	logger.Info("starting evolution",
		"seed", opts.seed,
		"population", cfg.Evolution.Population,
		"generations", cfg.Evolution.Generations,
		"fitness_threshold", cfg.Evolution.FitnessThreshold,
		"max_ticks", cfg.TickCap(),
	)

	summary, runErr := evolver.Run(ctx)
	if store != nil {
		// The run row is finished even when interrupted.
		if err := store.FinishRun(context.Background(), summary); err != nil {
			logger.Warn("recording run outcome", "error", err)
		}
	}
	telemetry.LogPerf(logger, perf)
	if summary != nil {
		logger.Info("evolution finished",
			"generations", summary.Generations,
			"champion_fitness", summary.ChampionFitness,
			"champion_generation", summary.ChampionGeneration,
			"solved", summary.Solved,
		)
	}
	return runErr
}
