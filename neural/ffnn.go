// Package neural provides neural controllers for agents and the NEAT driver
// that evolves them.
package neural

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/pthm-cable/flap/game"
	"github.com/pthm-cable/flap/systems"
)

// Fixed-topology network dimensions.
const (
	FFNNInputs  = len(systems.SensorReading{})
	FFNNHidden  = 6
	FFNNOutputs = BrainOutputs
)

// FFNNParamCount is the length of a flat parameter vector for an FFNN.
const FFNNParamCount = FFNNHidden*FFNNInputs + FFNNHidden + FFNNOutputs*FFNNHidden + FFNNOutputs

// FFNN is a two-layer feedforward controller with a fixed topology. It is the
// controller optimized by CMA-ES, where a genome is a flat weight vector.
type FFNN struct {
	W1 [FFNNHidden][FFNNInputs]float64  // input -> hidden weights
	B1 [FFNNHidden]float64              // hidden biases
	W2 [FFNNOutputs][FFNNHidden]float64 // hidden -> output weights
	B2 [FFNNOutputs]float64             // output biases

	inputScale float64
}

// NewFFNN creates a randomly initialized network.
func NewFFNN(rng *rand.Rand, inputScale float64) *FFNN {
	nn := &FFNN{inputScale: inputScale}
	// Xavier initialization
	scale1 := math.Sqrt(2.0 / float64(FFNNInputs))
	scale2 := math.Sqrt(2.0 / float64(FFNNHidden))

	for i := range nn.W1 {
		for j := range nn.W1[i] {
			nn.W1[i][j] = rng.NormFloat64() * scale1
		}
	}
	for i := range nn.W2 {
		for j := range nn.W2[i] {
			nn.W2[i][j] = rng.NormFloat64() * scale2
		}
	}
	return nn
}

// NewFFNNFromParams builds a network from a flat parameter vector laid out as
// W1, B1, W2, B2 in row-major order.
func NewFFNNFromParams(params []float64, inputScale float64) (*FFNN, error) {
	if len(params) != FFNNParamCount {
		return nil, fmt.Errorf("expected %d parameters, got %d", FFNNParamCount, len(params))
	}
	nn := &FFNN{inputScale: inputScale}
	k := 0
	for i := range nn.W1 {
		for j := range nn.W1[i] {
			nn.W1[i][j] = params[k]
			k++
		}
	}
	for i := range nn.B1 {
		nn.B1[i] = params[k]
		k++
	}
	for i := range nn.W2 {
		for j := range nn.W2[i] {
			nn.W2[i][j] = params[k]
			k++
		}
	}
	for i := range nn.B2 {
		nn.B2[i] = params[k]
		k++
	}
	return nn, nil
}

// Params flattens the network into the layout NewFFNNFromParams accepts.
func (nn *FFNN) Params() []float64 {
	out := make([]float64, 0, FFNNParamCount)
	for i := range nn.W1 {
		out = append(out, nn.W1[i][:]...)
	}
	out = append(out, nn.B1[:]...)
	for i := range nn.W2 {
		out = append(out, nn.W2[i][:]...)
	}
	return append(out, nn.B2[:]...)
}

// Forward computes raw output activations for scaled inputs.
func (nn *FFNN) Forward(inputs [FFNNInputs]float64) [FFNNOutputs]float64 {
	var hidden [FFNNHidden]float64
	for i := range hidden {
		sum := nn.B1[i]
		for j, x := range inputs {
			sum += nn.W1[i][j] * x
		}
		hidden[i] = math.Tanh(sum)
	}

	var outputs [FFNNOutputs]float64
	for i := range outputs {
		sum := nn.B2[i]
		for j, h := range hidden {
			sum += nn.W2[i][j] * h
		}
		outputs[i] = sum
	}
	return outputs
}

// Decide implements game.Controller.
func (nn *FFNN) Decide(reading systems.SensorReading) game.Action {
	var in [FFNNInputs]float64
	for i, v := range reading {
		in[i] = v * nn.inputScale
	}
	out := nn.Forward(in)
	return argmax(out[:])
}

// Clone creates a deep copy of the network.
func (nn *FFNN) Clone() *FFNN {
	clone := *nn
	return &clone
}

// argmax maps output activations to an action. The first maximum wins, so
// equal outputs choose jump.
func argmax(outputs []float64) game.Action {
	best := 0
	for i := 1; i < len(outputs); i++ {
		if outputs[i] > outputs[best] {
			best = i
		}
	}
	return game.Action(best)
}
