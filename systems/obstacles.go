package systems

import (
	"math/rand"

	"github.com/pthm-cable/flap/config"
)

// Obstacle is a paired top/bottom barrier with a fixed gap between them.
type Obstacle struct {
	ID         int     // spawn sequence number within the field
	X          float64 // left edge
	Width      float64
	Gap        float64
	GapCenterY float64

	span float64 // playfield height; extents reach one span past each edge
}

// Right returns the trailing edge of the obstacle.
func (o Obstacle) Right() float64 { return o.X + o.Width }

// CenterX returns the horizontal center of the gap column.
func (o Obstacle) CenterX() float64 { return o.X + o.Width/2 }

// GapTop returns the y coordinate of the gap's upper edge.
func (o Obstacle) GapTop() float64 { return o.GapCenterY - o.Gap/2 }

// GapBottom returns the y coordinate of the gap's lower edge.
func (o Obstacle) GapBottom() float64 { return o.GapCenterY + o.Gap/2 }

// TopExtent returns the solid region above the gap.
func (o Obstacle) TopExtent() Rect {
	top := -o.span
	return Rect{X: o.X, Y: top, W: o.Width, H: o.GapTop() - top}
}

// BottomExtent returns the solid region below the gap.
func (o Obstacle) BottomExtent() Rect {
	return Rect{X: o.X, Y: o.GapBottom(), W: o.Width, H: 2*o.span - o.GapBottom()}
}

// FieldParams holds everything an ObstacleField needs from configuration.
type FieldParams struct {
	Height          float64 // playfield height
	Velocity        float64
	SpawnX          float64 // horizontal center of new obstacles
	Width           float64
	Gap             float64
	GapHeights      []float64
	CullMargin      float64
	SpawnEveryTicks int
}

// FieldParamsFromConfig extracts field parameters from a validated config.
func FieldParamsFromConfig(cfg *config.Config) FieldParams {
	return FieldParams{
		Height:          cfg.Playfield.Height,
		Velocity:        cfg.Obstacles.Velocity,
		SpawnX:          cfg.Obstacles.SpawnX,
		Width:           cfg.Obstacles.Width,
		Gap:             cfg.Obstacles.Gap,
		GapHeights:      cfg.Obstacles.GapHeights,
		CullMargin:      cfg.Obstacles.CullMargin,
		SpawnEveryTicks: cfg.Derived.SpawnEveryTicks,
	}
}

// ObstacleField owns the live obstacles of one generation, ordered by spawn
// time (which is also left-to-right order since all move at one velocity).
type ObstacleField struct {
	params    FieldParams
	rng       *rand.Rand
	obstacles []Obstacle
	timer     int // ticks since the last spawn
	nextID    int
}

// NewObstacleField creates an empty field. Gap heights are drawn from rng.
func NewObstacleField(params FieldParams, rng *rand.Rand) *ObstacleField {
	return &ObstacleField{
		params:    params,
		rng:       rng,
		obstacles: make([]Obstacle, 0, 8),
	}
}

// Advance moves every obstacle left by one tick of velocity and drops
// obstacles whose trailing edge has passed -CullMargin.
func (f *ObstacleField) Advance() {
	kept := f.obstacles[:0]
	for _, o := range f.obstacles {
		o.X -= f.params.Velocity
		if o.Right() < -f.params.CullMargin {
			continue
		}
		kept = append(kept, o)
	}
	f.obstacles = kept
}

// MaybeSpawn advances the spawn timer by one tick and appends a new obstacle
// when a full interval has elapsed. It reports whether a spawn happened.
func (f *ObstacleField) MaybeSpawn() bool {
	f.timer++
	if f.timer < f.params.SpawnEveryTicks {
		return false
	}
	f.timer = 0
	h := f.params.GapHeights[f.rng.Intn(len(f.params.GapHeights))]
	f.Spawn(h)
	return true
}

// Spawn appends an obstacle at the spawn position whose gap's lower edge sits
// gapHeight above the floor.
func (f *ObstacleField) Spawn(gapHeight float64) Obstacle {
	o := Obstacle{
		ID:         f.nextID,
		X:          f.params.SpawnX - f.params.Width/2,
		Width:      f.params.Width,
		Gap:        f.params.Gap,
		GapCenterY: f.params.Height - gapHeight - f.params.Gap/2,
		span:       f.params.Height,
	}
	f.nextID++
	f.obstacles = append(f.obstacles, o)
	return o
}

// NearestAhead returns the obstacle whose trailing edge has the smallest
// non-negative distance from x. Ties go to the earlier-spawned obstacle.
func (f *ObstacleField) NearestAhead(x float64) (Obstacle, bool) {
	var (
		best  Obstacle
		found bool
	)
	for _, o := range f.obstacles {
		d := o.Right() - x
		if d < 0 {
			continue
		}
		if !found || d < best.Right()-x {
			best, found = o, true
		}
	}
	return best, found
}

// Obstacles returns the live obstacles in spawn order. The slice is owned by
// the field and must not be modified.
func (f *ObstacleField) Obstacles() []Obstacle {
	return f.obstacles
}

// Len returns the number of live obstacles.
func (f *ObstacleField) Len() int {
	return len(f.obstacles)
}
