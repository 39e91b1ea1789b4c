package systems

import (
	"github.com/pthm-cable/flap/components"
	"github.com/pthm-cable/flap/config"
)

// AgentParams holds the physical constants shared by every agent in a run.
type AgentParams struct {
	Gravity         float64
	JumpImpulse     float64
	PlayfieldHeight float64
	SensorRange     float64
}

// AgentParamsFromConfig extracts agent parameters from a validated config.
func AgentParamsFromConfig(cfg *config.Config) AgentParams {
	return AgentParams{
		Gravity:         cfg.Physics.Gravity,
		JumpImpulse:     cfg.Physics.JumpImpulse,
		PlayfieldHeight: cfg.Playfield.Height,
		SensorRange:     cfg.Derived.SensorRange,
	}
}

// StartBody returns the starting bounding box described by cfg.
func StartBody(cfg *config.Config) components.Body {
	return components.Body{
		X: cfg.Derived.AgentLeft,
		Y: cfg.Derived.AgentTop,
		W: cfg.Agent.Width,
		H: cfg.Agent.Height,
	}
}

// Agent is a view over one agent's components. The components may live in
// an ECS world or be owned by the agent itself (see NewAgent).
type Agent struct {
	params AgentParams
	body   *components.Body
	motion *components.Motion
	vitals *components.Vitals
}

// NewAgent creates a live agent with its own component storage.
func NewAgent(params AgentParams, body components.Body) *Agent {
	return BindAgent(params, &body, &components.Motion{}, &components.Vitals{Alive: true})
}

// BindAgent wraps existing component storage. The pointers must stay valid
// for the agent's lifetime.
func BindAgent(params AgentParams, body *components.Body, motion *components.Motion, vitals *components.Vitals) *Agent {
	return &Agent{params: params, body: body, motion: motion, vitals: vitals}
}

// Rect returns the agent's bounding box.
func (a *Agent) Rect() Rect {
	return Rect{X: a.body.X, Y: a.body.Y, W: a.body.W, H: a.body.H}
}

// Alive reports whether the agent is still in play.
func (a *Agent) Alive() bool { return a.vitals.Alive }

// Fitness returns the sum of accumulated increments.
func (a *Agent) Fitness() float64 { return a.vitals.Fitness }

// CumulativeFitness returns the running sum of Fitness after each tick.
func (a *Agent) CumulativeFitness() float64 { return a.vitals.Cumulative }

// TicksAlive returns the number of physics steps taken while alive.
func (a *Agent) TicksAlive() int { return a.vitals.TicksAlive }

// VelocityY returns the pending vertical velocity.
func (a *Agent) VelocityY() float64 { return a.motion.VY }

// Sense computes the agent's sensor reading against field.
func (a *Agent) Sense(field *ObstacleField) SensorReading {
	return Sense(a.Rect(), field, a.params.SensorRange)
}

// ApplyAction applies a controller decision. Jump sets the upward impulse;
// any other value, including out-of-range ones, is a no-op. It reports
// whether the action was inside the valid set.
func (a *Agent) ApplyAction(action Action) bool {
	if !action.Valid() {
		return false
	}
	if a.vitals.Alive && action == ActionJump {
		a.motion.VY = -a.params.JumpImpulse
	}
	return true
}

// AdvancePhysics moves the agent by gravity plus any pending impulse.
// The impulse is consumed by the step.
func (a *Agent) AdvancePhysics() {
	if !a.vitals.Alive {
		return
	}
	a.body.Y += a.params.Gravity + a.motion.VY
	a.motion.VY = 0
	a.vitals.TicksAlive++
}

// AccumulateFitness adds delta to the agent's fitness while it is alive.
// Negative deltas are ignored so fitness never decreases.
func (a *Agent) AccumulateFitness(delta float64) {
	if !a.vitals.Alive {
		return
	}
	if delta > 0 {
		a.vitals.Fitness += delta
	}
	a.vitals.Cumulative += a.vitals.Fitness
}

// CheckCollision reports whether the agent overlaps any obstacle extent or
// has left the vertical bounds, and marks it dead if so. tick is recorded as
// the death tick.
func (a *Agent) CheckCollision(field *ObstacleField, tick int) bool {
	if !a.vitals.Alive {
		return true
	}
	if !a.collides(field) {
		return false
	}
	a.vitals.Alive = false
	a.vitals.DeathTick = tick
	return true
}

func (a *Agent) collides(field *ObstacleField) bool {
	r := a.Rect()
	for _, o := range field.Obstacles() {
		if r.Intersects(o.TopExtent()) || r.Intersects(o.BottomExtent()) {
			return true
		}
	}
	return r.Bottom() >= a.params.PlayfieldHeight || r.Top() < 0
}
