package systems

// Action is the discrete decision a controller returns each tick.
type Action int

const (
	ActionJump Action = iota // set the upward impulse
	ActionNone               // let gravity act

	// NumActions is the size of the valid action set.
	NumActions = 2
)

// Valid reports whether a is inside the action set.
func (a Action) Valid() bool {
	return a >= 0 && a < NumActions
}

func (a Action) String() string {
	switch a {
	case ActionJump:
		return "jump"
	case ActionNone:
		return "none"
	default:
		return "invalid"
	}
}
