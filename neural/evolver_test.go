package neural

import (
	"context"
	"errors"
	"testing"

	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/game"
)

func evolverConfig(t *testing.T, mutate func(*config.Config)) *config.Config {
	t.Helper()
	cfg := config.Default().Clone()
	cfg.Evolution.Population = 12
	cfg.Evolution.Generations = 3
	cfg.Evolution.FitnessThreshold = 0
	cfg.Simulation.MaxTicks = 400
	if mutate != nil {
		mutate(cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
	return cfg
}

func TestEvolverRunsGenerationBudget(t *testing.T) {
	cfg := evolverConfig(t, nil)

	var reports []*GenerationReport
	rep := ReporterFunc(func(_ context.Context, r *GenerationReport) error {
		reports = append(reports, r)
		return nil
	})
	e, err := NewEvolver(cfg, EvolverOptions{Seed: 3, Reporters: []Reporter{rep}})
	if err != nil {
		t.Fatalf("NewEvolver failed: %v", err)
	}

	summary, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Generations != 3 || len(reports) != 3 {
		t.Fatalf("generations = %d, reports = %d, want 3", summary.Generations, len(reports))
	}
	if summary.Champion == nil || summary.ChampionFitness <= 0 {
		t.Errorf("summary = %+v", summary)
	}

	best := 0.0
	for i, r := range reports {
		if r.Generation != i {
			t.Errorf("report %d has generation %d", i, r.Generation)
		}
		if len(r.Genomes) != cfg.Evolution.Population || len(r.Result.Entries) != cfg.Evolution.Population {
			t.Errorf("report %d covers %d genomes, %d entries", i, len(r.Genomes), len(r.Result.Entries))
		}
		if len(r.TopSpecies) == 0 || len(r.TopSpecies) > topSpeciesReported {
			t.Errorf("report %d details %d species", i, len(r.TopSpecies))
		}
		for j := 1; j < len(r.TopSpecies); j++ {
			if r.TopSpecies[j].Size > r.TopSpecies[j-1].Size {
				t.Errorf("report %d species not ordered by size: %+v", i, r.TopSpecies)
			}
		}
		best = max(best, r.ChampionFitness)
		if r.BestEver != best {
			t.Errorf("report %d best ever = %f, want %f", i, r.BestEver, best)
		}
	}
	if summary.ChampionFitness != best {
		t.Errorf("summary champion fitness %f, want %f", summary.ChampionFitness, best)
	}
	if len(e.Population()) != cfg.Evolution.Population {
		t.Errorf("next population has %d genomes", len(e.Population()))
	}
}

func TestEvolverElitismKeepsChampion(t *testing.T) {
	cfg := evolverConfig(t, nil)
	e, err := NewEvolver(cfg, EvolverOptions{Seed: 5})
	if err != nil {
		t.Fatal(err)
	}

	report, err := e.Step(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	elite := e.Population()[0]
	if elite == report.Champion {
		t.Fatal("elite must be a copy, not the champion itself")
	}
	if len(elite.Genes) != len(report.Champion.Genes) {
		t.Fatalf("elite has %d genes, champion %d", len(elite.Genes), len(report.Champion.Genes))
	}
	for i, g := range elite.Genes {
		want := report.Champion.Genes[i]
		if g.Link.ConnectionWeight != want.Link.ConnectionWeight || g.IsEnabled != want.IsEnabled {
			t.Errorf("elite gene %d differs from the champion", i)
		}
	}
	if len(e.Population()) != cfg.Evolution.Population {
		t.Errorf("population size %d", len(e.Population()))
	}
}

func TestEvolverStopsAtThreshold(t *testing.T) {
	// Every agent survives at least 11 ticks, so 0.05 is always reached
	cfg := evolverConfig(t, func(c *config.Config) { c.Evolution.FitnessThreshold = 0.05 })
	e, err := NewEvolver(cfg, EvolverOptions{Seed: 1})
	if err != nil {
		t.Fatal(err)
	}

	summary, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !summary.Solved || summary.Generations != 1 {
		t.Errorf("summary = %+v, want solved after one generation", summary)
	}
}

func TestEvolverInterrupted(t *testing.T) {
	cfg := evolverConfig(t, nil)
	e, err := NewEvolver(cfg, EvolverOptions{Seed: 1})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := e.Run(ctx)
	if !errors.Is(err, game.ErrInterrupted) {
		t.Fatalf("err = %v, want ErrInterrupted", err)
	}
	if summary.Generations != 0 || summary.Champion != nil {
		t.Errorf("interrupted run reported results: %+v", summary)
	}
}

func TestEvolverDeterministic(t *testing.T) {
	cfg := evolverConfig(t, nil)

	run := func() []float64 {
		e, err := NewEvolver(cfg, EvolverOptions{Seed: 21})
		if err != nil {
			t.Fatal(err)
		}
		var out []float64
		for i := 0; i < 3; i++ {
			r, err := e.Step(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			out = append(out, r.Result.Fitness()...)
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("fitness %d differs: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestEvolverSolvesWhenNoAgentDies(t *testing.T) {
	cfg := evolverConfig(t, func(c *config.Config) {
		c.Simulation.MaxTicks = 0
		c.Evolution.FitnessThreshold = 1
		c.Physics.Gravity = 0
		c.Physics.JumpImpulse = 0
		c.Obstacles.SpawnInterval = 1000
	})

	e, err := NewEvolver(cfg, EvolverOptions{Seed: 5})
	if err != nil {
		t.Fatalf("NewEvolver failed: %v", err)
	}
	summary, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !summary.Solved {
		t.Errorf("summary not solved: %+v", summary)
	}
	if summary.Generations != 1 {
		t.Errorf("generations = %d, want 1", summary.Generations)
	}
	if summary.ChampionFitness < 1 {
		t.Errorf("champion fitness = %g, want at least 1", summary.ChampionFitness)
	}
}
