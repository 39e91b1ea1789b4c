package systems

// SensorReading summarizes the nearest obstacle ahead of an agent.
//
//	[0] horizontal distance from the agent's center to the gap's center column
//	[1] agent top minus the gap's upper edge
//	[2] gap's lower edge minus the agent bottom
//
// Positive vertical values mean the agent is clear of that edge.
type SensorReading [3]float64

// NothingSensed returns the reading used when no obstacle is in range.
func NothingSensed(sensorRange float64) SensorReading {
	return SensorReading{sensorRange, sensorRange, sensorRange}
}

// Horizontal returns the horizontal distance to the gap column.
func (s SensorReading) Horizontal() float64 { return s[0] }

// ToUpper returns the clearance below the gap's upper edge.
func (s SensorReading) ToUpper() float64 { return s[1] }

// ToLower returns the clearance above the gap's lower edge.
func (s SensorReading) ToLower() float64 { return s[2] }

// Slice returns the reading as a fresh slice for network input.
func (s SensorReading) Slice() []float64 {
	return []float64{s[0], s[1], s[2]}
}

// ReadObstacle computes the reading of body against obstacle o.
func ReadObstacle(body Rect, o Obstacle) SensorReading {
	return SensorReading{
		o.CenterX() - body.CenterX(),
		body.Top() - o.GapTop(),
		o.GapBottom() - body.Bottom(),
	}
}

// Sense returns the reading for body against the nearest obstacle ahead.
// Obstacles farther than sensorRange are not seen.
func Sense(body Rect, field *ObstacleField, sensorRange float64) SensorReading {
	o, ok := field.NearestAhead(body.Left())
	if !ok || o.Right()-body.Left() > sensorRange {
		return NothingSensed(sensorRange)
	}
	return ReadObstacle(body, o)
}
