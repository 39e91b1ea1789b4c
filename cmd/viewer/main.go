// Command viewer trains a population and draws every generation live with
// raylib. Closing the window stops training.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/game"
	"github.com/pthm-cable/flap/neural"
)

var (
	colorBackground = rl.Color{R: 24, G: 28, B: 36, A: 255}
	colorObstacle   = rl.Color{R: 80, G: 170, B: 90, A: 255}
	colorAgent      = rl.Color{R: 240, G: 200, B: 60, A: 200}
	colorHUD        = rl.Color{R: 220, G: 220, B: 220, A: 255}
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = config value, then time-based)")
	fast := flag.Bool("fast", false, "Do not pace the simulation to the display")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = cfg.Simulation.Seed
	}
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	// raylib must stay on the main goroutine; training runs beside it.
	rl.InitWindow(int32(cfg.Playfield.Width), int32(cfg.Playfield.Height), "flap")
	defer rl.CloseWindow()
	fps := cfg.Playfield.TargetFPS
	if fps <= 0 {
		fps = 60
	}
	rl.SetTargetFPS(int32(fps))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var snaps relay
	opts := neural.EvolverOptions{Logger: logger, Observer: &snaps, Seed: rngSeed}
	if !*fast {
		pacer := game.NewTickerPacer(cfg.Playfield.TargetFPS)
		defer pacer.Stop()
		opts.Pacer = pacer
	}

	evolver, err := neural.NewEvolver(cfg, opts)
	if err != nil {
		slog.Error("failed to create evolver", "error", err)
		os.Exit(1)
	}

	done := make(chan error, 1)
	var summary *neural.Summary
	go func() {
		s, err := evolver.Run(ctx)
		summary = s
		done <- err
	}()

	var (
		runErr   error
		finished bool
	)
	for !rl.WindowShouldClose() {
		if !finished {
			select {
			case runErr = <-done:
				finished = true
			default:
			}
		}

		s, _ := snaps.Latest()
		rl.BeginDrawing()
		rl.ClearBackground(colorBackground)
		drawSnapshot(s)
		drawHUD(s, finished)
		rl.EndDrawing()
	}

	cancel()
	if !finished {
		runErr = <-done
	}
	if runErr != nil && !errors.Is(runErr, game.ErrInterrupted) {
		slog.Error("training failed", "error", runErr)
		os.Exit(1)
	}
	if summary != nil {
		slog.Info("viewer closed",
			"generations", summary.Generations,
			"champion_fitness", summary.ChampionFitness,
			"solved", summary.Solved,
		)
	}
}

func drawSnapshot(s game.Snapshot) {
	for _, o := range s.Obstacles {
		for _, r := range []rl.Rectangle{
			{X: float32(o.Top.X), Y: float32(o.Top.Y), Width: float32(o.Top.W), Height: float32(o.Top.H)},
			{X: float32(o.Bottom.X), Y: float32(o.Bottom.Y), Width: float32(o.Bottom.W), Height: float32(o.Bottom.H)},
		} {
			rl.DrawRectangleRec(r, colorObstacle)
		}
	}
	for _, a := range s.Agents {
		if !a.Alive {
			continue
		}
		rl.DrawRectangleLines(int32(a.Rect.X), int32(a.Rect.Y), int32(a.Rect.W), int32(a.Rect.H), colorAgent)
	}
}

func drawHUD(s game.Snapshot, finished bool) {
	rl.DrawText(fmt.Sprintf("Gen %d  Tick %d", s.Generation, s.Tick), 10, 10, 20, colorHUD)
	rl.DrawText(fmt.Sprintf("Alive %d/%d", s.Alive, len(s.Agents)), 10, 34, 16, colorHUD)
	rl.DrawText(fmt.Sprintf("Max score %.2f", s.MaxFitness), 10, 54, 16, colorHUD)
	if finished {
		rl.DrawText("training finished", 10, 74, 16, rl.Yellow)
	}
}
