// Package game runs generations of agents through the obstacle course.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/flap/components"
	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/systems"
)

// ErrInterrupted is returned when a run is cancelled before every agent died.
// No result is produced in that case.
var ErrInterrupted = errors.New("generation interrupted")

// State is the lifecycle state of a Runner.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateFinished
	StateInterrupted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateInterrupted:
		return "interrupted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// FitnessEntry is the outcome of one agent.
type FitnessEntry struct {
	Index      int // position in the controller list
	Fitness    float64
	TicksAlive int
	DeathTick  int // 0 if the agent was still alive when the run ended
}

// Result is the outcome of one generation, one entry per controller in input
// order.
type Result struct {
	Generation     int
	Ticks          int
	Entries        []FitnessEntry
	InvalidActions int
	MaxFitness     float64
	Capped         bool // ended by simulation.max_ticks with agents alive
}

// Fitness returns the fitness values in controller order.
func (r *Result) Fitness() []float64 {
	out := make([]float64, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.Fitness
	}
	return out
}

// Best returns the fittest entry. Ties go to the lower index.
func (r *Result) Best() (FitnessEntry, bool) {
	if len(r.Entries) == 0 {
		return FitnessEntry{}, false
	}
	best := r.Entries[0]
	for _, e := range r.Entries[1:] {
		if e.Fitness > best.Fitness {
			best = e
		}
	}
	return best, true
}

// Options configures a Runner. All fields are optional.
type Options struct {
	Logger     *slog.Logger
	Observer   Observer
	Pacer      Pacer
	Perf       *PerfStats
	Generation int
	Seed       int64 // seeds obstacle gap heights
}

// Runner simulates one generation at a time. It is not safe for concurrent
// use; run independent generations on separate runners.
type Runner struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger
	state  State
	tick   int
}

// NewRunner creates a runner for a validated config.
func NewRunner(cfg *config.Config, opts Options) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if cfg.Derived.SpawnEveryTicks < 1 {
		return nil, fmt.Errorf("config not validated: %w", config.ErrInvalid)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, opts: opts, logger: logger}, nil
}

// State returns the state of the most recent run.
func (r *Runner) State() State { return r.state }

// Tick returns the tick counter of the most recent run.
func (r *Runner) Tick() int { return r.tick }

// generation holds the per-run state owned by the runner.
type generation struct {
	world    *ecs.World
	mapper   *ecs.Map3[components.Body, components.Motion, components.Vitals]
	entities []ecs.Entity
	agents   []*systems.Agent
	field    *systems.ObstacleField
}

func (r *Runner) newGeneration(n int) *generation {
	world := ecs.NewWorld()
	g := &generation{
		world:    world,
		mapper:   ecs.NewMap3[components.Body, components.Motion, components.Vitals](world),
		entities: make([]ecs.Entity, n),
		agents:   make([]*systems.Agent, n),
		field: systems.NewObstacleField(
			systems.FieldParamsFromConfig(r.cfg),
			rand.New(rand.NewSource(r.opts.Seed)),
		),
	}

	for i := range g.entities {
		body := systems.StartBody(r.cfg)
		g.entities[i] = g.mapper.NewEntity(&body, &components.Motion{}, &components.Vitals{Alive: true})
	}

	// Bind after every entity exists so component pointers stay put.
	params := systems.AgentParamsFromConfig(r.cfg)
	for i, e := range g.entities {
		body, motion, vitals := g.mapper.Get(e)
		g.agents[i] = systems.BindAgent(params, body, motion, vitals)
	}
	return g
}

// Run simulates one generation with one agent per controller and blocks until
// every agent has died, the tick cap is reached or ctx is cancelled. On
// cancellation it returns ErrInterrupted and no result.
func (r *Runner) Run(ctx context.Context, controllers []Controller) (*Result, error) {
	g := r.newGeneration(len(controllers))
	r.state = StateRunning
	r.tick = 0

	perTick := r.cfg.Fitness.PerTick
	maxTicks := r.cfg.TickCap()
	invalid := 0
	alive := len(controllers)
	capped := false

	for {
		if err := ctx.Err(); err != nil {
			return nil, r.interrupt(err)
		}

		r.tick++
		if alive == 0 {
			break
		}

		start := time.Now()
		g.field.Advance()
		g.field.MaybeSpawn()
		r.record(PhaseField, start)

		if r.opts.Perf != nil {
			r.opts.Perf.RecordAlive(alive)
		}
		start = time.Now()
		alive = 0
		for i, a := range g.agents {
			if !a.Alive() {
				continue
			}
			a.AdvancePhysics()
			a.AccumulateFitness(perTick)
			reading := a.Sense(g.field)
			action := controllers[i].Decide(reading)
			if !a.ApplyAction(action) {
				invalid++
				r.logger.Debug("invalid action ignored", "agent", i, "action", int(action), "tick", r.tick)
			}
			if !a.CheckCollision(g.field, r.tick) {
				alive++
			}
		}
		r.record(PhaseAgents, start)

		if r.opts.Observer != nil {
			start = time.Now()
			r.opts.Observer.OnTick(r.snapshot(g, alive))
			r.record(PhaseObserver, start)
		}

		if maxTicks > 0 && r.tick >= maxTicks && alive > 0 {
			capped = true
			break
		}

		if r.opts.Pacer != nil {
			if err := r.opts.Pacer.Wait(ctx); err != nil {
				return nil, r.interrupt(err)
			}
		}
	}

	r.state = StateFinished
	res := r.result(g, invalid, capped)
	r.logger.Debug("generation finished",
		"generation", res.Generation,
		"ticks", res.Ticks,
		"max_fitness", res.MaxFitness,
		"invalid_actions", res.InvalidActions,
	)
	return res, nil
}

func (r *Runner) interrupt(cause error) error {
	r.state = StateInterrupted
	return fmt.Errorf("%w at tick %d: %w", ErrInterrupted, r.tick, cause)
}

func (r *Runner) record(phase string, start time.Time) {
	if r.opts.Perf != nil {
		r.opts.Perf.Record(phase, time.Since(start))
	}
}

func (r *Runner) fitnessOf(a *systems.Agent) float64 {
	if r.cfg.Fitness.Mode == config.FitnessCumulative {
		return a.CumulativeFitness()
	}
	return a.Fitness()
}

func (r *Runner) result(g *generation, invalid int, capped bool) *Result {
	res := &Result{
		Generation:     r.opts.Generation,
		Ticks:          r.tick,
		Entries:        make([]FitnessEntry, len(g.agents)),
		InvalidActions: invalid,
		Capped:         capped,
	}
	for i, e := range g.entities {
		_, _, vitals := g.mapper.Get(e)
		f := r.fitnessOf(g.agents[i])
		res.Entries[i] = FitnessEntry{
			Index:      i,
			Fitness:    f,
			TicksAlive: vitals.TicksAlive,
			DeathTick:  vitals.DeathTick,
		}
		if i == 0 || f > res.MaxFitness {
			res.MaxFitness = f
		}
	}
	return res
}

func (r *Runner) snapshot(g *generation, alive int) Snapshot {
	s := Snapshot{
		Tick:       r.tick,
		Generation: r.opts.Generation,
		Alive:      alive,
		Obstacles:  make([]ObstacleView, 0, g.field.Len()),
		Agents:     make([]AgentView, len(g.agents)),
	}
	for _, o := range g.field.Obstacles() {
		s.Obstacles = append(s.Obstacles, ObstacleView{ID: o.ID, Top: o.TopExtent(), Bottom: o.BottomExtent()})
	}
	for i, a := range g.agents {
		f := r.fitnessOf(a)
		s.Agents[i] = AgentView{Index: i, Rect: a.Rect(), Alive: a.Alive(), Fitness: f}
		if f > s.MaxFitness {
			s.MaxFitness = f
		}
	}
	return s
}
