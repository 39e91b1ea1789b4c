// Command replay runs one generation with a stored controller and presents
// it through the logger.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/game"
	"github.com/pthm-cable/flap/neural"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	genomePath := flag.String("genome", "", "Champion genome JSON")
	hallPath := flag.String("hall", "", "Hall of fame JSON")
	hallIndex := flag.Int("hall-index", 0, "Hall of fame entry (0 = best)")
	paramsPath := flag.String("params", "", "best_params.json from cmd/optimize")
	dbPath := flag.String("db", "", "SQLite database written by flap -db")
	runID := flag.String("run", "", "Run ID inside -db")
	generation := flag.Int("generation", -1, "Champion generation inside -db (-1 = best)")
	seed := flag.Int64("seed", 1, "Obstacle seed")
	maxTicks := flag.Int("max-ticks", 0, "Tick cap (0 = use config)")
	every := flag.Int("every", 60, "Log a progress line every N ticks (0 = deaths only)")
	baselines := flag.Bool("baselines", false, "Race the controller against the built-in heuristics")
	realtime := flag.Bool("realtime", false, "Pace the replay at the configured FPS")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *maxTicks > 0 {
		cfg.Simulation.MaxTicks = *maxTicks
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl, label, err := loadController(ctx, source{
		genomePath: *genomePath,
		hallPath:   *hallPath,
		hallIndex:  *hallIndex,
		paramsPath: *paramsPath,
		dbPath:     *dbPath,
		runID:      *runID,
		generation: *generation,
	}, cfg.Derived.InputScale)
	if err != nil {
		slog.Error("failed to load controller", "error", err)
		os.Exit(1)
	}

	slog.Info("controller loaded",
		"controller", label,
		"inputs", neural.DescriptorIDs(neural.BrainInputDescriptors()),
		"outputs", neural.DescriptorIDs(neural.BrainOutputDescriptors()),
	)

	controllers := []game.Controller{ctrl}
	labels := []string{label}
	if *baselines {
		controllers = append(controllers, game.NewHeuristic(cfg.Derived.SensorRange), game.NeverJump, game.AlwaysJump)
		labels = append(labels, "heuristic", "never-jump", "always-jump")
	}

	opts := game.Options{
		Logger:   logger,
		Observer: newLogObserver(logger, *every, labels),
		Seed:     *seed,
	}
	if *realtime {
		pacer := game.NewTickerPacer(cfg.Playfield.TargetFPS)
		defer pacer.Stop()
		opts.Pacer = pacer
	}

	runner, err := game.NewRunner(cfg, opts)
	if err != nil {
		slog.Error("failed to create runner", "error", err)
		os.Exit(1)
	}

	res, err := runner.Run(ctx, controllers)
	if err != nil {
		if errors.Is(err, game.ErrInterrupted) {
			slog.Warn("replay interrupted", "error", err)
			return
		}
		slog.Error("replay failed", "error", err)
		os.Exit(1)
	}

	for _, e := range res.Entries {
		slog.Info("result",
			"agent", labels[e.Index],
			"fitness", e.Fitness,
			"ticks_alive", e.TicksAlive,
			"death_tick", e.DeathTick,
		)
	}
	slog.Info("replay finished", "ticks", res.Ticks, "capped", res.Capped, "invalid_actions", res.InvalidActions)
}
