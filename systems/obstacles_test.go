package systems

import (
	"math/rand"
	"testing"

	"github.com/pthm-cable/flap/config"
)

func testField(t *testing.T, mutate func(*config.Config)) (*ObstacleField, *config.Config) {
	t.Helper()
	cfg := config.Default().Clone()
	if mutate != nil {
		mutate(cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
	return NewObstacleField(FieldParamsFromConfig(cfg), rand.New(rand.NewSource(1))), cfg
}

func TestObstacleGapGeometry(t *testing.T) {
	field, _ := testField(t, nil)
	o := field.Spawn(122)

	// Lower edge sits 122 above the floor of a 500 high playfield
	if o.GapBottom() != 378 {
		t.Errorf("GapBottom = %g, want 378", o.GapBottom())
	}
	if o.GapTop() != 228 {
		t.Errorf("GapTop = %g, want 228", o.GapTop())
	}
	if o.X != 374 || o.Right() != 426 {
		t.Errorf("horizontal extent = [%g, %g], want [374, 426]", o.X, o.Right())
	}
	if o.TopExtent().Bottom() != o.GapTop() {
		t.Errorf("top extent ends at %g, want gap top %g", o.TopExtent().Bottom(), o.GapTop())
	}
	if o.BottomExtent().Top() != o.GapBottom() {
		t.Errorf("bottom extent starts at %g, want gap bottom %g", o.BottomExtent().Top(), o.GapBottom())
	}
}

func TestObstacleFieldSpawnInterval(t *testing.T) {
	field, cfg := testField(t, nil)
	every := cfg.Derived.SpawnEveryTicks

	for tick := 1; tick <= every*3; tick++ {
		field.Advance()
		spawned := field.MaybeSpawn()
		if want := tick%every == 0; spawned != want {
			t.Fatalf("tick %d: spawned = %v, want %v", tick, spawned, want)
		}
	}
	if field.Len() != 3 {
		t.Errorf("expected 3 obstacles, got %d", field.Len())
	}
}

func TestObstacleFieldOrderAndMotion(t *testing.T) {
	field, cfg := testField(t, nil)

	for tick := 0; tick < 200; tick++ {
		before := map[int]float64{}
		for _, o := range field.Obstacles() {
			before[o.ID] = o.X
		}
		field.Advance()
		field.MaybeSpawn()

		obs := field.Obstacles()
		for i, o := range obs {
			if x, ok := before[o.ID]; ok && o.X != x-cfg.Obstacles.Velocity {
				t.Fatalf("obstacle %d moved from %g to %g", o.ID, x, o.X)
			}
			if i > 0 && (obs[i-1].ID >= o.ID || obs[i-1].X >= o.X) {
				t.Fatalf("obstacles out of order at tick %d: %+v then %+v", tick, obs[i-1], o)
			}
			if o.Gap != cfg.Obstacles.Gap {
				t.Fatalf("gap = %g, want %g", o.Gap, cfg.Obstacles.Gap)
			}
		}
	}
}

func TestObstacleFieldCullsPastMargin(t *testing.T) {
	field, cfg := testField(t, nil)
	field.Spawn(122)

	// Trailing edge starts at 426 and must pass -48 before removal
	for i := 0; field.Len() > 0; i++ {
		o := field.Obstacles()[0]
		field.Advance()
		if field.Len() == 0 {
			if o.Right()-cfg.Obstacles.Velocity >= -cfg.Obstacles.CullMargin {
				t.Fatalf("removed while trailing edge at %g", o.Right()-cfg.Obstacles.Velocity)
			}
			break
		}
		if field.Obstacles()[0].Right() < -cfg.Obstacles.CullMargin {
			t.Fatalf("kept obstacle past margin: %g", field.Obstacles()[0].Right())
		}
		if i > 1000 {
			t.Fatal("obstacle never removed")
		}
	}
}

func TestNearestAhead(t *testing.T) {
	field, _ := testField(t, nil)

	if _, ok := field.NearestAhead(180); ok {
		t.Fatal("empty field returned an obstacle")
	}

	first := field.Spawn(90)
	for i := 0; i < 60; i++ {
		field.Advance()
	}
	second := field.Spawn(250)

	got, ok := field.NearestAhead(180)
	if !ok || got.ID != first.ID {
		t.Fatalf("NearestAhead = %+v, %v, want obstacle %d", got, ok, first.ID)
	}

	// Once the first obstacle's trailing edge is behind x, the second is nearest
	got, ok = field.NearestAhead(field.Obstacles()[0].Right() + 1)
	if !ok || got.ID != second.ID {
		t.Fatalf("NearestAhead = %+v, %v, want obstacle %d", got, ok, second.ID)
	}

	if _, ok := field.NearestAhead(1000); ok {
		t.Error("obstacle returned although all are behind")
	}
}

func TestNearestAheadTiePrefersEarlier(t *testing.T) {
	field, _ := testField(t, nil)
	a := field.Spawn(90)
	field.Spawn(250)

	got, ok := field.NearestAhead(0)
	if !ok || got.ID != a.ID {
		t.Errorf("NearestAhead = %+v, want earlier obstacle %d", got, a.ID)
	}
}

func TestNearestAheadNeverBehind(t *testing.T) {
	field, _ := testField(t, nil)

	for tick := 0; tick < 600; tick++ {
		field.Advance()
		field.MaybeSpawn()
		for x := -100.0; x <= 500; x += 25 {
			o, ok := field.NearestAhead(x)
			if ok && o.Right()-x < 0 {
				t.Fatalf("tick %d: obstacle %d behind x=%g (distance %g)", tick, o.ID, x, o.Right()-x)
			}
			if !ok {
				for _, other := range field.Obstacles() {
					if other.Right()-x >= 0 {
						t.Fatalf("tick %d: missed obstacle %d ahead of x=%g", tick, other.ID, x)
					}
				}
			}
		}
	}
}

func TestMaybeSpawnUsesAllowedHeights(t *testing.T) {
	field, cfg := testField(t, func(c *config.Config) {
		c.Obstacles.SpawnInterval = 1.0 / 60
	})

	allowed := map[float64]bool{}
	for _, h := range cfg.Obstacles.GapHeights {
		allowed[cfg.Playfield.Height-h-cfg.Obstacles.Gap/2] = true
	}
	for i := 0; i < 50; i++ {
		field.MaybeSpawn()
	}
	for _, o := range field.Obstacles() {
		if !allowed[o.GapCenterY] {
			t.Errorf("gap center %g not drawn from the allowed set", o.GapCenterY)
		}
	}
}
