// Package main provides CMA-ES optimization of fixed-topology feed-forward
// controllers for the obstacle course.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/neural"
)

// BestResult is written to best_params.json and accepted by cmd/replay.
type BestResult struct {
	Fitness     float64   `json:"fitness"`
	Evaluations int       `json:"evaluations"`
	InputScale  float64   `json:"input_scale"`
	Params      []float64 `json:"params"`
}

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	maxTicks := flag.Int("max-ticks", 6000, "Maximum generation duration in ticks (cap)")
	seeds := flag.Int("seeds", 4, "Number of obstacle seeds per evaluation")
	maxEvals := flag.Int("max-evals", 2000, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	bound := flag.Float64("bound", 5, "Absolute bound on every weight and bias")
	initSeed := flag.Int64("init-seed", 1, "Seed for the initial network")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if *maxTicks < 1 {
		log.Fatal("--max-ticks must be positive")
	}

	// Create output directory
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	// Load base config
	baseCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create parameter vector around a freshly initialised network
	inputScale := baseCfg.Derived.InputScale
	initial := neural.NewFFNN(rand.New(rand.NewSource(*initSeed)), inputScale)
	params := NewParamVector(initial.Params(), *bound)

	// Generate seeds for evaluation
	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}

	evaluator := NewFitnessEvaluator(ctx, params, *maxTicks, evalSeeds, baseCfg)

	// Set up CMA-ES
	dim := params.Dim()
	initX := params.Normalize(params.DefaultVector())

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return evaluator.Evaluate(params.Denormalize(x))
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0, // seeds already run in parallel
	}

	popSize := *population
	if popSize == 0 {
		popSize = 4 + int(3.0*float64(dim)/2.0)
	}

	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}

	// Open log file
	logPath := filepath.Join(*outputDir, "optimize_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	logWriter := csv.NewWriter(logFile)
	defer logWriter.Flush()

	header := []string{"eval", "fitness", "mean_ticks"}
	for _, spec := range params.Specs {
		header = append(header, spec.Name)
	}
	logWriter.Write(header)

	evalCount := 0
	bestFitness := 0.0
	startTime := time.Now()

	// Wrap the function to log evaluations
	originalFunc := problem.Func
	problem.Func = func(x []float64) float64 {
		fitness := originalFunc(x)
		evalCount++
		if fitness < bestFitness {
			bestFitness = fitness
		}

		clamped := params.Clamp(params.Denormalize(x))
		row := []string{strconv.Itoa(evalCount), fmt.Sprintf("%.6f", fitness), fmt.Sprintf("%.1f", evaluator.LastTicks())}
		for _, v := range clamped {
			row = append(row, fmt.Sprintf("%.6f", v))
		}
		logWriter.Write(row)
		logWriter.Flush()

		elapsed := time.Since(startTime)
		avgPerEval := elapsed / time.Duration(evalCount)
		remaining := time.Duration(*maxEvals-evalCount) * avgPerEval

		fmt.Printf("Eval %d/%d: fitness=%.2f ticks=%.0f (best=%.2f) | elapsed: %s, ETA: %s\n",
			evalCount, *maxEvals, -fitness, evaluator.LastTicks(), -bestFitness,
			formatDuration(elapsed), formatDuration(remaining))

		return fitness
	}

	fmt.Printf("Starting CMA-ES optimization with %d parameters, population=%d, max_evals=%d\n",
		dim, popSize, *maxEvals)
	fmt.Printf("Seeds per evaluation: %d, tick cap per run: %d\n", *seeds, *maxTicks)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}
	if ctx.Err() != nil {
		log.Printf("interrupted after %d evaluations", evalCount)
	}

	// Use best params found (may be from any evaluation, not just final)
	bestParams, best := evaluator.BestParams()
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		log.Fatal("no evaluation completed")
	}

	totalTime := time.Since(startTime)
	fmt.Printf("\nOptimization complete after %d evaluations in %s\n", evalCount, formatDuration(totalTime))
	fmt.Printf("Best fitness: %.2f\n", -best)

	out := BestResult{
		Fitness:     -best,
		Evaluations: evalCount,
		InputScale:  inputScale,
		Params:      bestParams,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal best params: %v", err)
	}
	bestPath := filepath.Join(*outputDir, "best_params.json")
	if err := os.WriteFile(bestPath, data, 0644); err != nil {
		log.Fatalf("failed to write best params: %v", err)
	}
	fmt.Printf("\nBest parameters saved to: %s\n", bestPath)

	configOutPath := filepath.Join(*outputDir, "config.yaml")
	if err := baseCfg.WriteYAML(configOutPath); err != nil {
		log.Printf("failed to write config: %v", err)
	}
}
