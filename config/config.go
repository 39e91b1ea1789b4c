// Package config provides configuration loading and validation for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation failure returned from Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all simulation configuration parameters.
type Config struct {
	Playfield  PlayfieldConfig  `yaml:"playfield"`
	Agent      AgentConfig      `yaml:"agent"`
	Physics    PhysicsConfig    `yaml:"physics"`
	Obstacles  ObstaclesConfig  `yaml:"obstacles"`
	Fitness    FitnessConfig    `yaml:"fitness"`
	Simulation SimulationConfig `yaml:"simulation"`
	Evolution  EvolutionConfig  `yaml:"evolution"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// PlayfieldConfig holds the visible area and tick rate.
type PlayfieldConfig struct {
	Width          float64 `yaml:"width"`
	Height         float64 `yaml:"height"`
	TicksPerSecond int     `yaml:"ticks_per_second"`
	TargetFPS      int     `yaml:"target_fps"` // pacing for live display (0 = unpaced)
}

// AgentConfig holds the agent bounding box and starting position.
// A negative start coordinate means "center on the playfield".
type AgentConfig struct {
	Width   float64 `yaml:"width"`
	Height  float64 `yaml:"height"`
	CenterX float64 `yaml:"center_x"`
	CenterY float64 `yaml:"center_y"`
}

// PhysicsConfig holds the arcade-style motion constants.
type PhysicsConfig struct {
	Gravity     float64 `yaml:"gravity"`      // downward position delta per tick
	JumpImpulse float64 `yaml:"jump_impulse"` // upward position delta applied on the tick after a jump
}

// ObstaclesConfig holds obstacle spawning and motion parameters.
type ObstaclesConfig struct {
	Velocity      float64   `yaml:"velocity"`       // leftward movement per tick
	SpawnInterval float64   `yaml:"spawn_interval"` // seconds of simulated time between spawns
	SpawnX        float64   `yaml:"spawn_x"`        // horizontal center of a new obstacle
	Width         float64   `yaml:"width"`
	Gap           float64   `yaml:"gap"`
	GapHeights    []float64 `yaml:"gap_heights"` // height of the gap's lower edge above the floor
	CullMargin    float64   `yaml:"cull_margin"` // trailing edge must pass -cull_margin before removal
}

// Fitness modes.
const (
	FitnessLinear     = "linear"
	FitnessCumulative = "cumulative"
)

// FitnessConfig holds the survival reward.
type FitnessConfig struct {
	PerTick float64 `yaml:"per_tick"`
	Mode    string  `yaml:"mode"` // linear | cumulative
}

// SimulationConfig holds per-generation run limits.
type SimulationConfig struct {
	MaxTicks int   `yaml:"max_ticks"` // 0 = derive from the fitness threshold, see TickCap
	Seed     int64 `yaml:"seed"`      // 0 = time-based
}

// EvolutionConfig holds NEAT driver parameters.
type EvolutionConfig struct {
	Population            int     `yaml:"population"`
	Generations           int     `yaml:"generations"`
	FitnessThreshold      float64 `yaml:"fitness_threshold"` // 0 = disabled
	InputScale            float64 `yaml:"input_scale"`       // 0 = 1/playfield width
	InitialConnectionProb float64 `yaml:"initial_connection_prob"`
	Elitism               int     `yaml:"elitism"`

	NEAT NEATConfig `yaml:"neat"`
}

// NEATConfig mirrors the subset of goNEAT options the evolver consumes.
type NEATConfig struct {
	WeightMutPower         float64 `yaml:"weight_mut_power"`
	MutateAddNodeProb      float64 `yaml:"mutate_add_node_prob"`
	MutateAddLinkProb      float64 `yaml:"mutate_add_link_prob"`
	MutateToggleEnableProb float64 `yaml:"mutate_toggle_enable_prob"`
	MutateLinkWeightsProb  float64 `yaml:"mutate_link_weights_prob"`
	MateOnlyProb           float64 `yaml:"mate_only_prob"`
	MutateOnlyProb         float64 `yaml:"mutate_only_prob"`
	CompatThreshold        float64 `yaml:"compat_threshold"`
	DisjointCoeff          float64 `yaml:"disjoint_coeff"`
	ExcessCoeff            float64 `yaml:"excess_coeff"`
	MutdiffCoeff           float64 `yaml:"mutdiff_coeff"`
	DropOffAge             int     `yaml:"drop_off_age"`
	SurvivalThresh         float64 `yaml:"survival_thresh"`
}

// TelemetryConfig holds output parameters.
type TelemetryConfig struct {
	OutputDir   string `yaml:"output_dir"`
	MetricsAddr string `yaml:"metrics_addr"`
	Tracing     bool   `yaml:"tracing"`
	Plot        bool   `yaml:"plot"`
	LogEvery    int    `yaml:"log_every"` // generations between summary log lines
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	SpawnEveryTicks int     // Obstacles.SpawnInterval in ticks
	AgentLeft       float64 // starting top-left corner of the agent
	AgentTop        float64
	SensorRange     float64 // obstacles farther than this are not sensed
	InputScale      float64
	TickDuration    float64 // seconds per tick
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used. The result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse merges YAML data over the embedded defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Unmarshal into same struct - only overwrites fields present in data
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the embedded defaults. It panics if they fail to load,
// which only happens when defaults.yaml itself is broken.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	out.Obstacles.GapHeights = append([]float64(nil), c.Obstacles.GapHeights...)
	return &out
}

// Validate checks the configuration for values the simulation cannot run
// with and recomputes derived values. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	pf := c.Playfield
	if pf.Width <= 0 || pf.Height <= 0 {
		fail("playfield dimensions must be positive, got %gx%g", pf.Width, pf.Height)
	}
	if pf.TicksPerSecond <= 0 {
		fail("playfield.ticks_per_second must be positive, got %d", pf.TicksPerSecond)
	}
	if pf.TargetFPS < 0 {
		fail("playfield.target_fps must not be negative, got %d", pf.TargetFPS)
	}

	if c.Agent.Width <= 0 || c.Agent.Height <= 0 {
		fail("agent dimensions must be positive, got %gx%g", c.Agent.Width, c.Agent.Height)
	}
	if c.Agent.Height >= pf.Height {
		fail("agent.height %g does not fit the playfield height %g", c.Agent.Height, pf.Height)
	}

	if c.Physics.Gravity < 0 {
		fail("physics.gravity must not be negative, got %g", c.Physics.Gravity)
	}
	if c.Physics.JumpImpulse < 0 {
		fail("physics.jump_impulse must not be negative, got %g", c.Physics.JumpImpulse)
	}

	ob := c.Obstacles
	if ob.Velocity <= 0 {
		fail("obstacles.velocity must be positive, got %g", ob.Velocity)
	}
	if ob.Width <= 0 {
		fail("obstacles.width must be positive, got %g", ob.Width)
	}
	if ob.Gap <= 0 || ob.Gap >= pf.Height {
		fail("obstacles.gap %g must be positive and smaller than the playfield height %g", ob.Gap, pf.Height)
	}
	if len(ob.GapHeights) == 0 {
		fail("obstacles.gap_heights must not be empty")
	}
	for _, h := range ob.GapHeights {
		if h < 0 || h+ob.Gap > pf.Height {
			fail("obstacles.gap_heights value %g puts the gap outside the playfield", h)
		}
	}
	if ob.CullMargin <= 0 {
		fail("obstacles.cull_margin must be positive, got %g", ob.CullMargin)
	}
	spawnTicks := 0
	if pf.TicksPerSecond > 0 {
		spawnTicks = int(math.Round(ob.SpawnInterval * float64(pf.TicksPerSecond)))
	}
	if spawnTicks < 1 {
		fail("obstacles.spawn_interval %gs is shorter than one tick", ob.SpawnInterval)
	}

	if c.Fitness.PerTick < 0 {
		fail("fitness.per_tick must not be negative, got %g", c.Fitness.PerTick)
	}
	switch c.Fitness.Mode {
	case FitnessLinear, FitnessCumulative:
	default:
		fail("fitness.mode must be %q or %q, got %q", FitnessLinear, FitnessCumulative, c.Fitness.Mode)
	}

	if c.Simulation.MaxTicks < 0 {
		fail("simulation.max_ticks must not be negative, got %d", c.Simulation.MaxTicks)
	}

	ev := c.Evolution
	if ev.Population < 1 {
		fail("evolution.population must be at least 1, got %d", ev.Population)
	}
	if ev.Generations < 1 {
		fail("evolution.generations must be at least 1, got %d", ev.Generations)
	}
	if ev.Elitism < 0 || ev.Elitism > ev.Population {
		fail("evolution.elitism must be within [0, population], got %d", ev.Elitism)
	}
	if ev.InitialConnectionProb < 0 || ev.InitialConnectionProb > 1 {
		fail("evolution.initial_connection_prob must be within [0, 1], got %g", ev.InitialConnectionProb)
	}
	if ev.NEAT.SurvivalThresh <= 0 || ev.NEAT.SurvivalThresh > 1 {
		fail("evolution.neat.survival_thresh must be within (0, 1], got %g", ev.NEAT.SurvivalThresh)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	c.computeDerived(spawnTicks)
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived(spawnTicks int) {
	c.Derived.SpawnEveryTicks = spawnTicks
	c.Derived.TickDuration = 1.0 / float64(c.Playfield.TicksPerSecond)
	c.Derived.SensorRange = c.Playfield.Width

	// Agent position defaults to the playfield center
	cx := c.Agent.CenterX
	if cx < 0 {
		cx = c.Playfield.Width / 2
	}
	cy := c.Agent.CenterY
	if cy < 0 {
		cy = c.Playfield.Height / 2
	}
	// Integer placement keeps the start position identical to a pixel grid
	c.Derived.AgentLeft = math.Floor(cx - math.Floor(c.Agent.Width/2))
	c.Derived.AgentTop = math.Floor(cy - math.Floor(c.Agent.Height/2))

	c.Derived.InputScale = c.Evolution.InputScale
	if c.Derived.InputScale == 0 {
		c.Derived.InputScale = 1 / c.Playfield.Width
	}
}

// TickCap returns the tick limit for one generation. An explicit
// simulation.max_ticks wins. Otherwise, with a fitness threshold set, the cap
// is one tick past the point where a surviving agent reaches the threshold,
// so an agent that never dies still ends its generation. Zero means no cap.
func (c *Config) TickCap() int {
	if c.Simulation.MaxTicks > 0 {
		return c.Simulation.MaxTicks
	}
	threshold := c.Evolution.FitnessThreshold
	perTick := c.Fitness.PerTick
	if threshold <= 0 || perTick <= 0 {
		return 0
	}
	// A survivor's fitness after t ticks is t*perTick, or t(t+1)/2*perTick
	// when cumulative.
	n := threshold / perTick
	if c.Fitness.Mode == FitnessCumulative {
		n = (math.Sqrt(1+8*n) - 1) / 2
	}
	return int(math.Ceil(n)) + 1
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
