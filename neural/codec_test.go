package neural

import (
	"bytes"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/flap/systems"
)

func TestGenomeCodecPreservesBehaviour(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	genome := CreateMinimalBrainGenome(rng, 42)
	addNode(rng, genome, NewGenomeIDGenerator())
	genome.Genes[0].IsEnabled = false

	var buf bytes.Buffer
	if err := EncodeGenome(&buf, genome); err != nil {
		t.Fatalf("EncodeGenome failed: %v", err)
	}
	decoded, err := DecodeGenome(&buf)
	if err != nil {
		t.Fatalf("DecodeGenome failed: %v", err)
	}

	if decoded.Id != 42 || len(decoded.Nodes) != len(genome.Nodes) || len(decoded.Genes) != len(genome.Genes) {
		t.Fatalf("decoded genome shape differs: id %d, %d nodes, %d genes", decoded.Id, len(decoded.Nodes), len(decoded.Genes))
	}
	if decoded.Genes[0].IsEnabled {
		t.Error("disabled gene decoded as enabled")
	}

	a, err := NewBrainController(genome, 1.0/400)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewBrainController(decoded, 1.0/400)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range []systems.SensorReading{{200, 9, 115}, {40, -20, 160}, systems.NothingSensed(400)} {
		outA, _ := a.Think(append(r.Slice(), biasInput))
		outB, _ := b.Think(append(r.Slice(), biasInput))
		for i := range outA {
			if outA[i] != outB[i] {
				t.Errorf("reading %v output %d: %f vs %f", r, i, outA[i], outB[i])
			}
		}
	}
}

func TestDecodeGenomeRejectsDanglingGene(t *testing.T) {
	doc := `{"id":1,"nodes":[{"id":1,"type":1,"activation":0}],"genes":[{"in":1,"out":9,"weight":1,"enabled":true,"innovation":1}]}`
	if _, err := DecodeGenome(strings.NewReader(doc)); err == nil {
		t.Error("expected error for gene referencing an unknown node")
	}
	if _, err := DecodeGenome(strings.NewReader("{")); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestSaveLoadGenome(t *testing.T) {
	genome := CreateMinimalBrainGenome(rand.New(rand.NewSource(1)), 5)
	path := filepath.Join(t.TempDir(), "champion.json")

	if err := SaveGenome(path, genome); err != nil {
		t.Fatalf("SaveGenome failed: %v", err)
	}
	loaded, err := LoadGenome(path)
	if err != nil {
		t.Fatalf("LoadGenome failed: %v", err)
	}
	if loaded.Id != 5 || len(loaded.Genes) != len(genome.Genes) {
		t.Errorf("loaded genome = id %d with %d genes", loaded.Id, len(loaded.Genes))
	}
}
