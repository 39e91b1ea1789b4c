package neural

import (
	"fmt"
	"math/rand"

	"github.com/yaricom/goNEAT/v4/neat/genetics"
	neatmath "github.com/yaricom/goNEAT/v4/neat/math"
	"github.com/yaricom/goNEAT/v4/neat/network"

	"github.com/pthm-cable/flap/game"
	"github.com/pthm-cable/flap/systems"
)

// BrainController wraps a goNEAT network as a game.Controller.
type BrainController struct {
	Genome     *genetics.Genome
	network    *network.Network
	inputScale float64
	inputs     []float64
	errs       int
	lastErr    error
}

// NewBrainController builds the phenotype network of genome. Sensor values
// are multiplied by inputScale before activation.
func NewBrainController(genome *genetics.Genome, inputScale float64) (*BrainController, error) {
	phenotype, err := genome.Genesis(genome.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to build network from genome: %w", err)
	}

	return &BrainController{
		Genome:     genome,
		network:    phenotype,
		inputScale: inputScale,
		inputs:     make([]float64, BrainInputs),
	}, nil
}

// Think activates the network on BrainInputs values and returns
// BrainOutputs activations.
func (b *BrainController) Think(inputs []float64) ([]float64, error) {
	if len(inputs) != BrainInputs {
		return nil, fmt.Errorf("expected %d inputs, got %d", BrainInputs, len(inputs))
	}

	if err := b.network.LoadSensors(inputs); err != nil {
		return nil, fmt.Errorf("failed to load sensors: %w", err)
	}

	// Activate once per layer of depth so signals reach the outputs
	depth, err := b.network.MaxActivationDepth()
	if err != nil || depth < 1 {
		depth = 5
	}

	for i := 0; i < depth; i++ {
		if _, err := b.network.Activate(); err != nil {
			return nil, fmt.Errorf("activation failed: %w", err)
		}
	}

	outputs := b.network.ReadOutputs()

	if _, err := b.network.Flush(); err != nil {
		return nil, fmt.Errorf("flush failed: %w", err)
	}

	return outputs, nil
}

// Decide implements game.Controller. A network failure yields an invalid
// action, which the runner ignores.
func (b *BrainController) Decide(reading systems.SensorReading) game.Action {
	for i, v := range reading {
		b.inputs[i] = v * b.inputScale
	}
	b.inputs[len(reading)] = biasInput

	outputs, err := b.Think(b.inputs)
	if err != nil {
		b.errs++
		b.lastErr = err
		return game.NumActions
	}
	return argmax(outputs)
}

// Errors returns the number of failed activations and the most recent error.
func (b *BrainController) Errors() (int, error) {
	return b.errs, b.lastErr
}

// NodeCount returns the number of nodes in the network.
func (b *BrainController) NodeCount() int {
	return b.network.NodeCount()
}

// LinkCount returns the number of links (connections) in the network.
func (b *BrainController) LinkCount() int {
	return b.network.LinkCount()
}

// brainNodes creates the input and output nodes shared by every initial
// genome. Input IDs run 1..BrainInputs, outputs follow.
func brainNodes() []*network.NNode {
	nodes := make([]*network.NNode, 0, BrainInputs+BrainOutputs)
	for i := 1; i <= BrainInputs; i++ {
		node := network.NewNNode(i, network.InputNeuron)
		node.ActivationType = neatmath.LinearActivation
		nodes = append(nodes, node)
	}
	for i := 1; i <= BrainOutputs; i++ {
		node := network.NewNNode(BrainInputs+i, network.OutputNeuron)
		node.ActivationType = neatmath.SigmoidSteepenedActivation
		nodes = append(nodes, node)
	}
	return nodes
}

// CreateBrainGenome creates a genome connecting each input to each output
// with probability connectionProb. Innovation numbers are assigned to every
// possible input/output pair so matching links align across genomes.
func CreateBrainGenome(rng *rand.Rand, id int, connectionProb float64) *genetics.Genome {
	nodes := brainNodes()
	genes := make([]*genetics.Gene, 0, BrainInputs*BrainOutputs)
	innovNum := int64(1)

	for i := 0; i < BrainInputs; i++ {
		for j := 0; j < BrainOutputs; j++ {
			currentInnov := innovNum
			innovNum++

			if rng.Float64() < connectionProb {
				gene := genetics.NewGeneWithTrait(
					nil,
					rng.Float64()*4-2, // [-2, 2]
					nodes[i],
					nodes[BrainInputs+j],
					false,
					currentInnov,
					0,
				)
				genes = append(genes, gene)
			}
		}
	}

	// Every output needs at least one incoming link to be activated
	for j := 0; j < BrainOutputs; j++ {
		if hasIncoming(genes, nodes[BrainInputs+j].Id) {
			continue
		}
		i := rng.Intn(BrainInputs)
		gene := genetics.NewGeneWithTrait(
			nil,
			rng.Float64()*2-1,
			nodes[i],
			nodes[BrainInputs+j],
			false,
			int64(i*BrainOutputs+j+1),
			0,
		)
		genes = append(genes, gene)
	}

	return genetics.NewGenome(id, nil, nodes, genes)
}

// CreateMinimalBrainGenome creates a fully connected input-output genome.
func CreateMinimalBrainGenome(rng *rand.Rand, id int) *genetics.Genome {
	return CreateBrainGenome(rng, id, 1.0)
}

func hasIncoming(genes []*genetics.Gene, nodeID int) bool {
	for _, g := range genes {
		if g.Link.OutNode.Id == nodeID {
			return true
		}
	}
	return false
}
