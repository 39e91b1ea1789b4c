package neural

import (
	"github.com/yaricom/goNEAT/v4/neat"

	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/systems"
)

// BrainInputs is the number of network inputs: the three sensor channels
// plus a constant bias.
const BrainInputs = len(systems.SensorReading{}) + 1

// BrainOutputs is the number of network outputs, one per action.
const BrainOutputs = int(systems.NumActions)

// biasInput is the value fed to the bias input node.
const biasInput = 1.0

// NEATOptions builds goNEAT options from the evolution section of cfg.
func NEATOptions(cfg *config.Config) *neat.Options {
	n := cfg.Evolution.NEAT
	return &neat.Options{
		// Weight mutation
		WeightMutPower:        n.WeightMutPower,
		MutateLinkWeightsProb: n.MutateLinkWeightsProb,

		// Structural mutation rates
		MutateAddNodeProb:      n.MutateAddNodeProb,
		MutateAddLinkProb:      n.MutateAddLinkProb,
		MutateToggleEnableProb: n.MutateToggleEnableProb,

		// Mating probabilities
		MateOnlyProb:   n.MateOnlyProb,
		MutateOnlyProb: n.MutateOnlyProb,

		// Speciation
		CompatThreshold: n.CompatThreshold,
		DisjointCoeff:   n.DisjointCoeff,
		ExcessCoeff:     n.ExcessCoeff,
		MutdiffCoeff:    n.MutdiffCoeff,

		// Species management
		DropOffAge:     n.DropOffAge,
		SurvivalThresh: n.SurvivalThresh,

		PopSize: cfg.Evolution.Population,
	}
}
