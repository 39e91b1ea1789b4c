package systems

import (
	"math"
	"testing"

	"github.com/pthm-cable/flap/components"
	"github.com/pthm-cable/flap/config"
)

func testAgent(t *testing.T) (*Agent, *config.Config) {
	t.Helper()
	cfg := config.Default()
	return NewAgent(AgentParamsFromConfig(cfg), StartBody(cfg)), cfg
}

func TestAgentStartsCentered(t *testing.T) {
	a, _ := testAgent(t)
	r := a.Rect()
	if r.X != 180 || r.Y != 237 || r.W != 40 || r.H != 26 {
		t.Errorf("start rect = %+v, want {180 237 40 26}", r)
	}
	if !a.Alive() {
		t.Error("new agent is not alive")
	}
}

func TestAgentPhysics(t *testing.T) {
	tests := []struct {
		name    string
		actions []Action
		wantY   float64
	}{
		{"gravity only", []Action{ActionNone, ActionNone}, 237 + 8},
		{"single jump", []Action{ActionJump, ActionNone}, 237 + 4 + 4 - 30},
		{"repeated jumps", []Action{ActionJump, ActionJump, ActionJump}, 237 + 4 - 26 - 26},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := testAgent(t)
			// Action decided on one tick is applied on the following physics step
			for _, act := range tt.actions {
				a.AdvancePhysics()
				a.ApplyAction(act)
			}
			if got := a.Rect().Y; got != tt.wantY {
				t.Errorf("Y = %g, want %g", got, tt.wantY)
			}
		})
	}
}

func TestApplyActionRejectsInvalid(t *testing.T) {
	a, _ := testAgent(t)
	for _, act := range []Action{-1, NumActions, 7} {
		if a.ApplyAction(act) {
			t.Errorf("ApplyAction(%d) accepted", act)
		}
		if a.VelocityY() != 0 {
			t.Errorf("ApplyAction(%d) changed velocity", act)
		}
	}
	if !a.ApplyAction(ActionJump) || a.VelocityY() != -30 {
		t.Errorf("jump velocity = %g, want -30", a.VelocityY())
	}
}

func TestFitnessMonotoneAndFrozen(t *testing.T) {
	a, _ := testAgent(t)
	field := NewObstacleField(FieldParams{Height: 500}, nil)

	prev := a.Fitness()
	for tick := 1; tick <= 100; tick++ {
		a.AdvancePhysics()
		a.AccumulateFitness(0.01)
		a.AccumulateFitness(-5)
		if a.Fitness() < prev {
			t.Fatalf("tick %d: fitness decreased from %g to %g", tick, prev, a.Fitness())
		}
		prev = a.Fitness()
		if a.CheckCollision(field, tick) {
			break
		}
	}
	if a.Alive() {
		t.Fatal("agent never hit the floor")
	}

	frozen := a.Fitness()
	cumulative := a.CumulativeFitness()
	ticks := a.TicksAlive()
	for i := 0; i < 10; i++ {
		a.AdvancePhysics()
		a.AccumulateFitness(1)
		a.ApplyAction(ActionJump)
	}
	if a.Fitness() != frozen || a.CumulativeFitness() != cumulative || a.TicksAlive() != ticks {
		t.Error("dead agent state changed")
	}
}

func TestNoOpAgentHitsFloor(t *testing.T) {
	a, _ := testAgent(t)
	field := NewObstacleField(FieldParams{Height: 500}, nil)

	death := 0
	for tick := 1; tick <= 100 && death == 0; tick++ {
		a.AdvancePhysics()
		a.AccumulateFitness(0.01)
		if a.CheckCollision(field, tick) {
			death = tick
		}
	}
	// 263 + 4*60 = 503 is the first bottom at or past 500
	if death != 60 {
		t.Errorf("death tick = %d, want 60", death)
	}
	if math.Abs(a.Fitness()-0.6) > 1e-9 {
		t.Errorf("fitness = %g, want 0.6", a.Fitness())
	}
}

func TestCheckCollision(t *testing.T) {
	cfg := config.Default()
	params := AgentParamsFromConfig(cfg)
	field := NewObstacleField(FieldParamsFromConfig(cfg), nil)
	o := field.Spawn(122)

	tests := []struct {
		name string
		body components.Body
		want bool
	}{
		{"inside gap", components.Body{X: o.X, Y: o.GapTop() + 10, W: 40, H: 26}, false},
		{"touching lower edge", components.Body{X: o.X, Y: o.GapBottom() - 26, W: 40, H: 26}, false},
		{"touching upper edge", components.Body{X: o.X, Y: o.GapTop(), W: 40, H: 26}, false},
		{"overlaps bottom extent", components.Body{X: o.X, Y: o.GapBottom(), W: 40, H: 26}, true},
		{"overlaps top extent", components.Body{X: o.X, Y: o.GapTop() - 26, W: 40, H: 26}, true},
		{"exactly the obstacle column", components.Body{X: o.X, Y: 0, W: o.Width, H: 26}, true},
		{"left of obstacle", components.Body{X: o.X - 40, Y: 0, W: 40, H: 26}, false},
		{"above ceiling", components.Body{X: 0, Y: -1, W: 40, H: 26}, true},
		{"at ceiling", components.Body{X: 0, Y: 0, W: 40, H: 26}, false},
		{"touching floor", components.Body{X: 0, Y: 474, W: 40, H: 26}, true},
		{"just above floor", components.Body{X: 0, Y: 473, W: 40, H: 26}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAgent(params, tt.body)
			if got := a.CheckCollision(field, 5); got != tt.want {
				t.Errorf("CheckCollision = %v, want %v", got, tt.want)
			}
			if a.Alive() == tt.want {
				t.Errorf("Alive = %v after collision result %v", a.Alive(), tt.want)
			}
		})
	}
}

func TestSense(t *testing.T) {
	cfg := config.Default()
	params := AgentParamsFromConfig(cfg)
	field := NewObstacleField(FieldParamsFromConfig(cfg), nil)
	a := NewAgent(params, StartBody(cfg))

	if got := a.Sense(field); got != NothingSensed(cfg.Derived.SensorRange) {
		t.Errorf("empty field reading = %v, want all %g", got, cfg.Derived.SensorRange)
	}

	o := field.Spawn(122)
	got := a.Sense(field)
	want := SensorReading{
		o.CenterX() - 200,
		237 - o.GapTop(),
		o.GapBottom() - 263,
	}
	if got != want {
		t.Errorf("reading = %v, want %v", got, want)
	}
	if got.Horizontal() != 200 || got.ToUpper() != 9 || got.ToLower() != 115 {
		t.Errorf("reading = %v, want [200 9 115]", got)
	}
}

func TestSenseIgnoresOutOfRange(t *testing.T) {
	cfg := config.Default()
	params := AgentParamsFromConfig(cfg)
	params.SensorRange = 100
	field := NewObstacleField(FieldParamsFromConfig(cfg), nil)
	field.Spawn(122)

	a := NewAgent(params, StartBody(cfg))
	if got := a.Sense(field); got != NothingSensed(100) {
		t.Errorf("reading = %v, want nothing sensed", got)
	}
}
