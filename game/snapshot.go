package game

import "github.com/pthm-cable/flap/systems"

// ObstacleView is the display state of one obstacle.
type ObstacleView struct {
	ID     int
	Top    systems.Rect
	Bottom systems.Rect
}

// AgentView is the display state of one agent.
type AgentView struct {
	Index   int
	Rect    systems.Rect
	Alive   bool
	Fitness float64
}

// Snapshot is a read-only copy of the simulation after a tick. Observers may
// keep it; nothing in it aliases runner state.
type Snapshot struct {
	Tick       int
	Generation int
	Alive      int
	MaxFitness float64
	Obstacles  []ObstacleView
	Agents     []AgentView
}

// Observer receives a snapshot after every tick.
type Observer interface {
	OnTick(s Snapshot)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(s Snapshot)

// OnTick calls f.
func (f ObserverFunc) OnTick(s Snapshot) { f(s) }
