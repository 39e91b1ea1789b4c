package neural

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/yaricom/goNEAT/v4/neat/genetics"
	neatmath "github.com/yaricom/goNEAT/v4/neat/math"
	"github.com/yaricom/goNEAT/v4/neat/network"
)

// GenomeRecord is the serialized form of a genome.
type GenomeRecord struct {
	ID    int          `json:"id"`
	Nodes []NodeRecord `json:"nodes"`
	Genes []GeneRecord `json:"genes"`
}

// NodeRecord is the serialized form of a node gene.
type NodeRecord struct {
	ID         int `json:"id"`
	Type       int `json:"type"`
	Activation int `json:"activation"`
}

// GeneRecord is the serialized form of a link gene.
type GeneRecord struct {
	In         int     `json:"in"`
	Out        int     `json:"out"`
	Weight     float64 `json:"weight"`
	Enabled    bool    `json:"enabled"`
	Recurrent  bool    `json:"recurrent,omitempty"`
	Innovation int64   `json:"innovation"`
	Mutation   float64 `json:"mutation,omitempty"`
}

// RecordFromGenome flattens a genome.
func RecordFromGenome(genome *genetics.Genome) GenomeRecord {
	rec := GenomeRecord{
		ID:    genome.Id,
		Nodes: make([]NodeRecord, 0, len(genome.Nodes)),
		Genes: make([]GeneRecord, 0, len(genome.Genes)),
	}
	for _, n := range genome.Nodes {
		rec.Nodes = append(rec.Nodes, NodeRecord{
			ID:         n.Id,
			Type:       int(n.NeuronType),
			Activation: int(n.ActivationType),
		})
	}
	for _, g := range genome.Genes {
		rec.Genes = append(rec.Genes, GeneRecord{
			In:         g.Link.InNode.Id,
			Out:        g.Link.OutNode.Id,
			Weight:     g.Link.ConnectionWeight,
			Enabled:    g.IsEnabled,
			Recurrent:  g.Link.IsRecurrent,
			Innovation: g.InnovationNum,
			Mutation:   g.MutationNum,
		})
	}
	return rec
}

// Genome rebuilds the genome described by rec.
func (rec GenomeRecord) Genome() (*genetics.Genome, error) {
	nodes := make([]*network.NNode, 0, len(rec.Nodes))
	byID := make(map[int]*network.NNode, len(rec.Nodes))
	for _, n := range rec.Nodes {
		if _, dup := byID[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node %d", n.ID)
		}
		node := network.NewNNode(n.ID, network.NodeNeuronType(n.Type))
		node.ActivationType = neatmath.NodeActivationType(n.Activation)
		byID[n.ID] = node
		nodes = append(nodes, node)
	}

	genes := make([]*genetics.Gene, 0, len(rec.Genes))
	for _, g := range rec.Genes {
		in, out := byID[g.In], byID[g.Out]
		if in == nil || out == nil {
			return nil, fmt.Errorf("gene %d references unknown node (%d -> %d)", g.Innovation, g.In, g.Out)
		}
		gene := genetics.NewGeneWithTrait(nil, g.Weight, in, out, g.Recurrent, g.Innovation, g.Mutation)
		gene.IsEnabled = g.Enabled
		genes = append(genes, gene)
	}

	return genetics.NewGenome(rec.ID, nil, nodes, genes), nil
}

// EncodeGenome writes genome as JSON.
func EncodeGenome(w io.Writer, genome *genetics.Genome) error {
	if genome == nil {
		return errNilGenome
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(RecordFromGenome(genome))
}

// DecodeGenome reads a genome written by EncodeGenome.
func DecodeGenome(r io.Reader) (*genetics.Genome, error) {
	var rec GenomeRecord
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode genome: %w", err)
	}
	return rec.Genome()
}

// SaveGenome writes genome to a JSON file.
func SaveGenome(path string, genome *genetics.Genome) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeGenome(f, genome); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadGenome reads a genome from a JSON file.
func LoadGenome(path string) (*genetics.Genome, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeGenome(f)
}
