package main

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/game"
)

// FitnessEvaluator runs headless generations of a single FFNN controller and
// computes fitness.
type FitnessEvaluator struct {
	ctx        context.Context
	params     *ParamVector
	seeds      []int64
	baseConfig *config.Config
	logger     *slog.Logger

	// Best run tracking
	mu          sync.Mutex
	bestFitness float64
	bestParams  []float64
	lastTicks   float64 // mean survival ticks from the most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator. maxTicks caps every run so a
// controller that never dies still finishes.
func NewFitnessEvaluator(ctx context.Context, params *ParamVector, maxTicks int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	cfg := baseCfg.Clone()
	cfg.Simulation.MaxTicks = maxTicks
	return &FitnessEvaluator{
		ctx:         ctx,
		params:      params,
		seeds:       seeds,
		baseConfig:  cfg,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		bestFitness: math.Inf(1),
	}
}

// BestParams returns the clamped parameters of the best evaluation.
func (fe *FitnessEvaluator) BestParams() ([]float64, float64) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestParams, fe.bestFitness
}

// LastTicks returns the mean survival ticks from the most recent evaluation.
func (fe *FitnessEvaluator) LastTicks() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastTicks
}

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	fitness float64
	ticks   int
	err     error
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Fitness is the negated mean generation fitness across seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	clamped := fe.params.Clamp(x)

	// Run all seeds in parallel; each goroutine owns its runner and field.
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSeed(clamped, s)
		}(i, seed)
	}
	wg.Wait()

	var totalFitness, totalTicks float64
	for _, r := range results {
		if r.err != nil {
			return math.Inf(1)
		}
		totalFitness += r.fitness
		totalTicks += float64(r.ticks)
	}

	n := float64(len(fe.seeds))
	fitness := -totalFitness / n

	fe.mu.Lock()
	fe.lastTicks = totalTicks / n
	if fitness < fe.bestFitness {
		fe.bestFitness = fitness
		fe.bestParams = clamped
	}
	fe.mu.Unlock()

	return fitness
}

// runSeed evaluates one controller on one obstacle sequence.
func (fe *FitnessEvaluator) runSeed(params []float64, seed int64) seedResult {
	nn, err := fe.params.Network(params, fe.baseConfig.Derived.InputScale)
	if err != nil {
		return seedResult{err: err}
	}

	runner, err := game.NewRunner(fe.baseConfig, game.Options{Logger: fe.logger, Seed: seed})
	if err != nil {
		return seedResult{err: err}
	}
	res, err := runner.Run(fe.ctx, []game.Controller{nn})
	if err != nil {
		return seedResult{err: err}
	}
	return seedResult{fitness: res.Entries[0].Fitness, ticks: res.Entries[0].TicksAlive}
}
