package neural

import (
	"errors"
	"math"
	"math/rand"
	"sort"

	"github.com/yaricom/goNEAT/v4/neat"
	"github.com/yaricom/goNEAT/v4/neat/genetics"
	neatmath "github.com/yaricom/goNEAT/v4/neat/math"
	"github.com/yaricom/goNEAT/v4/neat/network"
)

// Mutation constants
const (
	perturbProb         = 0.9  // probability of perturbing vs replacing a weight
	maxConnectionWeight = 8.0  // maximum absolute connection weight
	maxLinkAttempts     = 20   // attempts to find an unconnected pair
	initialInnovNum     = 1000 // above every innovation used by initial genomes
	disableInheritProb  = 0.75 // child keeps a gene disabled if either parent has it off
)

var errNilGenome = errors.New("nil genome")

// hiddenActivators are the activation functions new hidden nodes draw from.
var hiddenActivators = []neatmath.NodeActivationType{
	neatmath.SigmoidSteepenedActivation,
	neatmath.TanhActivation,
	neatmath.LinearActivation,
}

// GenomeIDGenerator hands out genome IDs, hidden node IDs and innovation
// numbers for one evolutionary run.
type GenomeIDGenerator struct {
	nextID       int
	nextNodeID   int
	nextInnovNum int64
}

// NewGenomeIDGenerator creates a new ID generator.
func NewGenomeIDGenerator() *GenomeIDGenerator {
	return &GenomeIDGenerator{
		nextID:       1,
		nextNodeID:   BrainInputs + BrainOutputs + 1,
		nextInnovNum: initialInnovNum,
	}
}

// NextID returns the next unique genome ID.
func (g *GenomeIDGenerator) NextID() int {
	id := g.nextID
	g.nextID++
	return id
}

// NextNodeID returns the next unique hidden node ID.
func (g *GenomeIDGenerator) NextNodeID() int {
	id := g.nextNodeID
	g.nextNodeID++
	return id
}

// NextInnovation returns the next innovation number.
func (g *GenomeIDGenerator) NextInnovation() int64 {
	num := g.nextInnovNum
	g.nextInnovNum++
	return num
}

// CrossoverGenomes performs NEAT crossover. Genes are aligned by innovation
// number; matching genes are inherited from either parent at random and
// disjoint or excess genes come from the fitter parent (both parents on a tie).
func CrossoverGenomes(rng *rand.Rand, parent1, parent2 *genetics.Genome, fitness1, fitness2 float64, childID int) (*genetics.Genome, error) {
	if parent1 == nil || parent2 == nil {
		return nil, errNilGenome
	}

	primary, secondary := parent1, parent2
	if fitness2 > fitness1 {
		primary, secondary = parent2, parent1
	}

	primaryGenes := make(map[int64]*genetics.Gene, len(primary.Genes))
	for _, gene := range primary.Genes {
		primaryGenes[gene.InnovationNum] = gene
	}
	secondaryGenes := make(map[int64]*genetics.Gene, len(secondary.Genes))
	for _, gene := range secondary.Genes {
		secondaryGenes[gene.InnovationNum] = gene
	}

	innovations := make([]int64, 0, len(primaryGenes)+len(secondaryGenes))
	for innov := range primaryGenes {
		innovations = append(innovations, innov)
	}
	for innov := range secondaryGenes {
		if _, ok := primaryGenes[innov]; !ok {
			innovations = append(innovations, innov)
		}
	}
	sort.Slice(innovations, func(i, j int) bool { return innovations[i] < innovations[j] })

	childNodeMap := make(map[int]*network.NNode)
	for _, node := range primary.Nodes {
		childNodeMap[node.Id] = copyNode(node)
	}
	for _, node := range secondary.Nodes {
		if _, exists := childNodeMap[node.Id]; !exists {
			childNodeMap[node.Id] = copyNode(node)
		}
	}

	childGenes := make([]*genetics.Gene, 0, len(innovations))
	for _, innov := range innovations {
		pGene := primaryGenes[innov]
		sGene := secondaryGenes[innov]

		var selected *genetics.Gene
		enabled := true
		switch {
		case pGene != nil && sGene != nil:
			selected = pGene
			if rng.Float64() < 0.5 {
				selected = sGene
			}
			if (!pGene.IsEnabled || !sGene.IsEnabled) && rng.Float64() < disableInheritProb {
				enabled = false
			}
		case pGene != nil:
			selected = pGene
			enabled = pGene.IsEnabled
		case fitness1 == fitness2 && rng.Float64() < 0.5:
			selected = sGene
			enabled = sGene.IsEnabled
		}
		if selected == nil {
			continue
		}

		inNode := childNodeMap[selected.Link.InNode.Id]
		outNode := childNodeMap[selected.Link.OutNode.Id]
		if inNode == nil || outNode == nil {
			continue
		}
		childGene := genetics.NewGeneWithTrait(
			nil,
			selected.Link.ConnectionWeight,
			inNode,
			outNode,
			selected.Link.IsRecurrent,
			selected.InnovationNum,
			selected.MutationNum,
		)
		childGene.IsEnabled = enabled
		childGenes = append(childGenes, childGene)
	}

	childNodes := make([]*network.NNode, 0, len(childNodeMap))
	for _, node := range childNodeMap {
		childNodes = append(childNodes, node)
	}
	sort.Slice(childNodes, func(i, j int) bool { return childNodes[i].Id < childNodes[j].Id })

	return genetics.NewGenome(childID, nil, childNodes, childGenes), nil
}

func copyNode(node *network.NNode) *network.NNode {
	newNode := network.NewNNode(node.Id, node.NeuronType)
	newNode.ActivationType = node.ActivationType
	return newNode
}

func mutateWeights(rng *rand.Rand, genome *genetics.Genome, power float64) {
	for _, gene := range genome.Genes {
		if rng.Float64() < perturbProb {
			gene.Link.ConnectionWeight += (rng.Float64()*2 - 1) * power
		} else {
			gene.Link.ConnectionWeight = rng.Float64()*4 - 2
		}
		gene.Link.ConnectionWeight = clampWeight(gene.Link.ConnectionWeight)
	}
}

// clampWeight clamps a connection weight to the valid range.
func clampWeight(w float64) float64 {
	return math.Max(-maxConnectionWeight, math.Min(maxConnectionWeight, w))
}

// addNode splits a random enabled link with a new hidden node.
func addNode(rng *rand.Rand, genome *genetics.Genome, idGen *GenomeIDGenerator) bool {
	enabled := make([]*genetics.Gene, 0, len(genome.Genes))
	for _, gene := range genome.Genes {
		if gene.IsEnabled {
			enabled = append(enabled, gene)
		}
	}
	if len(enabled) == 0 {
		return false
	}

	split := enabled[rng.Intn(len(enabled))]
	split.IsEnabled = false

	newNode := network.NewNNode(idGen.NextNodeID(), network.HiddenNeuron)
	newNode.ActivationType = hiddenActivators[rng.Intn(len(hiddenActivators))]

	// in -> new keeps the signal, new -> out keeps the old weight
	in := genetics.NewGeneWithTrait(nil, 1.0, split.Link.InNode, newNode, false, idGen.NextInnovation(), 0)
	out := genetics.NewGeneWithTrait(nil, split.Link.ConnectionWeight, newNode, split.Link.OutNode, false, idGen.NextInnovation(), 0)

	genome.Nodes = append(genome.Nodes, newNode)
	genome.Genes = append(genome.Genes, in, out)
	return true
}

// addLink connects a random unconnected source/target pair.
func addLink(rng *rand.Rand, genome *genetics.Genome, idGen *GenomeIDGenerator) bool {
	var sources, targets []*network.NNode
	for _, node := range genome.Nodes {
		switch node.NeuronType {
		case network.InputNeuron, network.BiasNeuron:
			sources = append(sources, node)
		case network.OutputNeuron:
			targets = append(targets, node)
		case network.HiddenNeuron:
			sources = append(sources, node)
			targets = append(targets, node)
		}
	}
	if len(sources) == 0 || len(targets) == 0 {
		return false
	}

	existing := make(map[int64]bool, len(genome.Genes))
	for _, gene := range genome.Genes {
		existing[connectionKey(gene.Link.InNode.Id, gene.Link.OutNode.Id)] = true
	}

	for attempt := 0; attempt < maxLinkAttempts; attempt++ {
		source := sources[rng.Intn(len(sources))]
		target := targets[rng.Intn(len(targets))]
		if source.Id == target.Id || existing[connectionKey(source.Id, target.Id)] {
			continue
		}
		// A hidden target feeding back into an earlier hidden node is recurrent
		recurrent := source.NeuronType == network.HiddenNeuron &&
			target.NeuronType == network.HiddenNeuron && target.Id < source.Id
		gene := genetics.NewGeneWithTrait(nil, rng.Float64()*4-2, source, target, recurrent, idGen.NextInnovation(), 0)
		genome.Genes = append(genome.Genes, gene)
		return true
	}
	return false
}

// connectionKey creates a unique key for a connection between two nodes.
func connectionKey(inID, outID int) int64 {
	return int64(inID)<<32 | int64(outID)
}

// toggleEnable flips a random gene, refusing to leave an output with no
// enabled incoming link.
func toggleEnable(rng *rand.Rand, genome *genetics.Genome) {
	if len(genome.Genes) == 0 {
		return
	}

	gene := genome.Genes[rng.Intn(len(genome.Genes))]
	gene.IsEnabled = !gene.IsEnabled
	if gene.IsEnabled || gene.Link.OutNode.NeuronType != network.OutputNeuron {
		return
	}
	for _, g := range genome.Genes {
		if g.IsEnabled && g.Link.OutNode.Id == gene.Link.OutNode.Id {
			return
		}
	}
	gene.IsEnabled = true
}

// MutateGenome applies weight and structural mutations according to opts.
// It reports whether anything changed.
func MutateGenome(rng *rand.Rand, genome *genetics.Genome, opts *neat.Options, idGen *GenomeIDGenerator) (bool, error) {
	if genome == nil {
		return false, errNilGenome
	}

	mutated := false
	if rng.Float64() < opts.MutateLinkWeightsProb {
		mutateWeights(rng, genome, opts.WeightMutPower)
		mutated = true
	}
	if rng.Float64() < opts.MutateAddNodeProb && addNode(rng, genome, idGen) {
		mutated = true
	}
	if rng.Float64() < opts.MutateAddLinkProb && addLink(rng, genome, idGen) {
		mutated = true
	}
	if rng.Float64() < opts.MutateToggleEnableProb {
		toggleEnable(rng, genome)
		mutated = true
	}
	return mutated, nil
}

// CloneGenome creates a deep copy of a genome with a new ID.
func CloneGenome(genome *genetics.Genome, newID int) (*genetics.Genome, error) {
	if genome == nil {
		return nil, errNilGenome
	}

	nodeMap := make(map[int]*network.NNode, len(genome.Nodes))
	newNodes := make([]*network.NNode, 0, len(genome.Nodes))
	for _, node := range genome.Nodes {
		newNode := copyNode(node)
		nodeMap[node.Id] = newNode
		newNodes = append(newNodes, newNode)
	}

	newGenes := make([]*genetics.Gene, 0, len(genome.Genes))
	for _, gene := range genome.Genes {
		inNode := nodeMap[gene.Link.InNode.Id]
		outNode := nodeMap[gene.Link.OutNode.Id]
		if inNode == nil || outNode == nil {
			continue
		}
		newGene := genetics.NewGeneWithTrait(
			nil,
			gene.Link.ConnectionWeight,
			inNode,
			outNode,
			gene.Link.IsRecurrent,
			gene.InnovationNum,
			gene.MutationNum,
		)
		newGene.IsEnabled = gene.IsEnabled
		newGenes = append(newGenes, newGene)
	}

	return genetics.NewGenome(newID, nil, newNodes, newGenes), nil
}

// GenomeCompatibility calculates the NEAT compatibility distance between two
// genomes.
func GenomeCompatibility(g1, g2 *genetics.Genome, opts *neat.Options) float64 {
	if g1 == nil || g2 == nil {
		return math.MaxFloat64
	}

	genes1 := make(map[int64]*genetics.Gene, len(g1.Genes))
	maxInnov1 := int64(0)
	for _, gene := range g1.Genes {
		genes1[gene.InnovationNum] = gene
		maxInnov1 = max(maxInnov1, gene.InnovationNum)
	}
	genes2 := make(map[int64]*genetics.Gene, len(g2.Genes))
	maxInnov2 := int64(0)
	for _, gene := range g2.Genes {
		genes2[gene.InnovationNum] = gene
		maxInnov2 = max(maxInnov2, gene.InnovationNum)
	}

	var matching, disjoint, excess int
	weightDiff := 0.0
	for innov, gene1 := range genes1 {
		if gene2, ok := genes2[innov]; ok {
			matching++
			weightDiff += math.Abs(gene1.Link.ConnectionWeight - gene2.Link.ConnectionWeight)
		} else if innov > maxInnov2 {
			excess++
		} else {
			disjoint++
		}
	}
	for innov := range genes2 {
		if _, ok := genes1[innov]; ok {
			continue
		}
		if innov > maxInnov1 {
			excess++
		} else {
			disjoint++
		}
	}

	// Small genomes are not normalized
	n := float64(max(len(g1.Genes), len(g2.Genes)))
	if n < 20 {
		n = 1
	}

	avgWeightDiff := 0.0
	if matching > 0 {
		avgWeightDiff = weightDiff / float64(matching)
	}

	return (opts.ExcessCoeff*float64(excess)+opts.DisjointCoeff*float64(disjoint))/n +
		opts.MutdiffCoeff*avgWeightDiff
}
