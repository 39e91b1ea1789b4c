// Package components defines ECS components for simulated agents.
package components

// Body is an agent's axis-aligned bounding box. X and Y locate the top-left
// corner in playfield coordinates (Y grows downward).
type Body struct {
	X, Y float64
	W, H float64
}

// Motion holds the vertical velocity applied on the next physics step.
type Motion struct {
	VY float64
}

// Vitals tracks whether an agent is alive and what it has earned.
type Vitals struct {
	Alive      bool
	TicksAlive int
	Fitness    float64 // sum of per-tick increments
	Cumulative float64 // running sum of Fitness after each tick
	DeathTick  int     // 0 while alive
}
