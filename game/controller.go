package game

import "github.com/pthm-cable/flap/systems"

// Action is a controller decision. It aliases systems.Action so controllers
// need not import the simulation internals.
type Action = systems.Action

const (
	ActionJump = systems.ActionJump
	ActionNone = systems.ActionNone
	NumActions = systems.NumActions
)

// Controller decides an action from a sensor reading. The runner treats it as
// a black box; out-of-range actions are ignored.
type Controller interface {
	Decide(reading systems.SensorReading) Action
}

// ControllerFunc adapts a plain function to the Controller interface.
type ControllerFunc func(reading systems.SensorReading) Action

// Decide calls f.
func (f ControllerFunc) Decide(reading systems.SensorReading) Action {
	return f(reading)
}

// AlwaysJump jumps on every tick.
var AlwaysJump Controller = ControllerFunc(func(systems.SensorReading) Action {
	return ActionJump
})

// NeverJump never jumps.
var NeverJump Controller = ControllerFunc(func(systems.SensorReading) Action {
	return ActionNone
})

// Heuristic jumps when the gap's lower edge gets closer than Margin. With
// nothing in range it jumps every IdleEvery decisions to hold altitude.
// SensorRange must match the runner's so the nothing-sensed reading is
// recognized. Heuristic is stateful; give each agent its own instance.
type Heuristic struct {
	Margin      float64
	IdleEvery   int
	SensorRange float64

	idle int
}

// NewHeuristic returns a heuristic tuned for the default physics.
func NewHeuristic(sensorRange float64) *Heuristic {
	return &Heuristic{Margin: 20, IdleEvery: 8, SensorRange: sensorRange}
}

// Decide implements Controller.
func (h *Heuristic) Decide(reading systems.SensorReading) Action {
	if reading == systems.NothingSensed(h.SensorRange) {
		h.idle++
		if h.IdleEvery > 0 && h.idle%h.IdleEvery == 0 {
			return ActionJump
		}
		return ActionNone
	}
	h.idle = 0
	if reading.ToLower() < h.Margin {
		return ActionJump
	}
	return ActionNone
}
