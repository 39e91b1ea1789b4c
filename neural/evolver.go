package neural

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/yaricom/goNEAT/v4/neat"
	"github.com/yaricom/goNEAT/v4/neat/genetics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/game"
)

const tracerName = "github.com/pthm-cable/flap/neural"

// GenerationReport describes one evaluated generation.
type GenerationReport struct {
	Generation       int
	Result           *game.Result
	Genomes          []*genetics.Genome // evaluated population, indexed like Result.Entries
	SpeciesIDs       []int              // species of each genome
	Species          SpeciesStats
	TopSpecies       []SpeciesInfo    // largest species, biggest first
	Champion         *genetics.Genome // fittest genome of this generation
	ChampionFitness  float64
	BestEver         float64
	ActivationErrors int
	Duration         time.Duration
}

// topSpeciesReported is the number of species detailed in a report.
const topSpeciesReported = 5

// Reporter receives every evaluated generation.
type Reporter interface {
	ReportGeneration(ctx context.Context, r *GenerationReport) error
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ctx context.Context, r *GenerationReport) error

// ReportGeneration calls f.
func (f ReporterFunc) ReportGeneration(ctx context.Context, r *GenerationReport) error {
	return f(ctx, r)
}

// EvolverOptions configures an Evolver. All fields are optional.
type EvolverOptions struct {
	Logger    *slog.Logger
	Observer  game.Observer
	Pacer     game.Pacer
	Perf      *game.PerfStats
	Reporters []Reporter
	Seed      int64 // seeds reproduction; generation g uses Seed+g for obstacles
}

// Summary is the outcome of a training run.
type Summary struct {
	Generations        int
	Champion           *genetics.Genome
	ChampionFitness    float64
	ChampionGeneration int
	Solved             bool // fitness threshold reached
}

// Evolver drives generational NEAT over the obstacle course: it builds one
// controller per genome, runs the generation, speciates, and breeds the next
// population.
type Evolver struct {
	cfg     *config.Config
	opts    EvolverOptions
	neat    *neat.Options
	logger  *slog.Logger
	tracer  trace.Tracer
	rng     *rand.Rand
	idGen   *GenomeIDGenerator
	species *SpeciesManager

	population []*genetics.Genome
	generation int
	summary    Summary
}

// NewEvolver creates an evolver with a random initial population.
func NewEvolver(cfg *config.Config, opts EvolverOptions) (*Evolver, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if cfg.Evolution.Population < 1 {
		return nil, fmt.Errorf("population %d: %w", cfg.Evolution.Population, config.ErrInvalid)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	nopts := NEATOptions(cfg)
	e := &Evolver{
		cfg:     cfg,
		opts:    opts,
		neat:    nopts,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
		rng:     rand.New(rand.NewSource(opts.Seed)),
		idGen:   NewGenomeIDGenerator(),
		species: NewSpeciesManager(nopts),
	}

	e.population = make([]*genetics.Genome, cfg.Evolution.Population)
	for i := range e.population {
		e.population[i] = CreateBrainGenome(e.rng, e.idGen.NextID(), cfg.Evolution.InitialConnectionProb)
	}
	return e, nil
}

// Population returns the genomes of the next generation to be evaluated.
func (e *Evolver) Population() []*genetics.Genome { return e.population }

// Generation returns the number of generations evaluated so far.
func (e *Evolver) Generation() int { return e.generation }

// Species returns the species manager.
func (e *Evolver) Species() *SpeciesManager { return e.species }

// Run evaluates generations until the budget is spent, the fitness threshold
// is reached or ctx is cancelled. An interrupted generation produces no
// report; the summary covers the generations completed before it.
func (e *Evolver) Run(ctx context.Context) (*Summary, error) {
	for e.generation < e.cfg.Evolution.Generations {
		report, err := e.Step(ctx)
		if err != nil {
			s := e.summary
			return &s, err
		}
		if threshold := e.cfg.Evolution.FitnessThreshold; threshold > 0 && report.ChampionFitness >= threshold {
			e.summary.Solved = true
			e.logger.Info("fitness threshold reached",
				"generation", report.Generation,
				"fitness", report.ChampionFitness,
				"threshold", threshold,
			)
			break
		}
	}
	s := e.summary
	return &s, nil
}

// Step evaluates the current population as one generation and breeds the
// next one.
func (e *Evolver) Step(ctx context.Context) (*GenerationReport, error) {
	gen := e.generation
	ctx, span := e.tracer.Start(ctx, "generation", trace.WithAttributes(
		attribute.Int("generation", gen),
		attribute.Int("population", len(e.population)),
	))
	defer span.End()

	start := time.Now()
	report, err := e.evaluate(ctx, gen)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	report.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Float64("champion_fitness", report.ChampionFitness),
		attribute.Int("species", report.Species.Count),
		attribute.Int("ticks", report.Result.Ticks),
	)

	e.generation++
	if report.ChampionFitness > e.summary.ChampionFitness || e.summary.Champion == nil {
		e.summary.Champion = report.Champion
		e.summary.ChampionFitness = report.ChampionFitness
		e.summary.ChampionGeneration = gen
	}
	e.summary.Generations = e.generation
	report.BestEver = e.summary.ChampionFitness

	if every := e.cfg.Telemetry.LogEvery; every > 0 && gen%every == 0 {
		e.logger.Info("generation",
			"generation", gen,
			"max_fitness", report.ChampionFitness,
			"best_ever", report.BestEver,
			"species", report.Species.Count,
			"ticks", report.Result.Ticks,
			"duration", report.Duration.Round(time.Millisecond),
		)
	}

	for _, r := range e.opts.Reporters {
		if err := r.ReportGeneration(ctx, report); err != nil {
			e.logger.Warn("reporter failed", "generation", gen, "error", err)
		}
	}

	next, err := e.reproduce(report)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("breed generation %d: %w", gen+1, err)
	}
	e.population = next
	return report, nil
}

func (e *Evolver) evaluate(ctx context.Context, gen int) (*GenerationReport, error) {
	brains := make([]*BrainController, len(e.population))
	controllers := make([]game.Controller, len(e.population))
	for i, genome := range e.population {
		b, err := NewBrainController(genome, e.cfg.Derived.InputScale)
		if err != nil {
			return nil, fmt.Errorf("genome %d: %w", genome.Id, err)
		}
		brains[i] = b
		controllers[i] = b
	}

	runner, err := game.NewRunner(e.cfg, game.Options{
		Logger:     e.logger,
		Observer:   e.opts.Observer,
		Pacer:      e.opts.Pacer,
		Perf:       e.opts.Perf,
		Generation: gen,
		Seed:       e.opts.Seed + int64(gen),
	})
	if err != nil {
		return nil, err
	}
	res, err := runner.Run(ctx, controllers)
	if err != nil {
		return nil, err
	}

	speciesIDs := e.species.Speciate(e.population)
	for i, entry := range res.Entries {
		e.species.AccumulateFitness(speciesIDs[i], entry.Fitness)
	}
	e.species.EndGeneration()

	activationErrors := 0
	for _, b := range brains {
		n, _ := b.Errors()
		activationErrors += n
	}

	best, _ := res.Best()
	return &GenerationReport{
		Generation:       gen,
		Result:           res,
		Genomes:          e.population,
		SpeciesIDs:       speciesIDs,
		Species:          e.species.GetStats(),
		TopSpecies:       e.species.GetTopSpecies(topSpeciesReported),
		Champion:         e.population[best.Index],
		ChampionFitness:  best.Fitness,
		ActivationErrors: activationErrors,
	}, nil
}

// reproduce breeds the next population: elites are copied unchanged, the
// rest is allotted to species by shared fitness and bred from each species'
// top SurvivalThresh fraction.
func (e *Evolver) reproduce(report *GenerationReport) ([]*genetics.Genome, error) {
	size := e.cfg.Evolution.Population
	fitness := report.Result.Fitness()
	next := make([]*genetics.Genome, 0, size)

	order := make([]int, len(fitness))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return fitness[order[i]] > fitness[order[j]] })

	for _, idx := range order[:min(e.cfg.Evolution.Elitism, len(order))] {
		elite, err := CloneGenome(e.population[idx], e.idGen.NextID())
		if err != nil {
			return nil, err
		}
		next = append(next, elite)
	}

	members := make(map[int][]int)
	for _, idx := range order {
		sid := report.SpeciesIDs[idx]
		members[sid] = append(members[sid], idx)
	}

	alloc := e.species.AllocateOffspring(size - len(next))
	for _, sp := range e.species.Species {
		n := alloc[sp.ID]
		pool := members[sp.ID]
		if n == 0 || len(pool) == 0 {
			continue
		}
		survivors := pool[:max(1, int(math.Ceil(e.neat.SurvivalThresh*float64(len(pool)))))]
		for k := 0; k < n; k++ {
			child, err := e.offspring(survivors, fitness)
			if err != nil {
				return nil, err
			}
			next = append(next, child)
		}
		e.species.RecordOffspring(sp.ID, n)
	}

	// Species dropped as stale leave a shortfall; fill it from the champions
	for len(next) < size {
		child, err := e.offspring(order[:max(1, len(order)/5)], fitness)
		if err != nil {
			return nil, err
		}
		next = append(next, child)
	}
	return next, nil
}

// offspring breeds one child from a survivor pool ordered by fitness.
func (e *Evolver) offspring(pool []int, fitness []float64) (*genetics.Genome, error) {
	p1 := pool[e.rng.Intn(len(pool))]

	if len(pool) == 1 || e.rng.Float64() < e.neat.MutateOnlyProb {
		child, err := CloneGenome(e.population[p1], e.idGen.NextID())
		if err != nil {
			return nil, err
		}
		mutated, err := MutateGenome(e.rng, child, e.neat, e.idGen)
		if err != nil {
			return nil, err
		}
		if !mutated {
			mutateWeights(e.rng, child, e.neat.WeightMutPower)
		}
		return child, nil
	}

	p2 := pool[e.rng.Intn(len(pool))]
	child, err := CrossoverGenomes(e.rng, e.population[p1], e.population[p2], fitness[p1], fitness[p2], e.idGen.NextID())
	if err != nil {
		return nil, err
	}
	if e.rng.Float64() >= e.neat.MateOnlyProb {
		if _, err := MutateGenome(e.rng, child, e.neat, e.idGen); err != nil {
			return nil, err
		}
	}
	return child, nil
}
