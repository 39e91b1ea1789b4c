package telemetry

import (
	"encoding/json"
	"sort"

	"github.com/yaricom/goNEAT/v4/neat/genetics"

	"github.com/pthm-cable/flap/neural"
)

// HallEntry is a generation champion kept for later replay.
type HallEntry struct {
	Generation int                 `json:"generation"`
	Fitness    float64             `json:"fitness"`
	Nodes      int                 `json:"nodes"`
	Links      int                 `json:"links"`
	Genome     neural.GenomeRecord `json:"genome"`
}

// HallOfFame keeps the fittest generation champions, best first.
type HallOfFame struct {
	entries []HallEntry
	maxSize int
}

// NewHallOfFame creates a hall holding at most maxSize champions.
func NewHallOfFame(maxSize int) *HallOfFame {
	if maxSize < 1 {
		maxSize = 1
	}
	return &HallOfFame{
		entries: make([]HallEntry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Consider offers a champion to the hall. Returns true if it was added.
// Equal fitness keeps the earlier entry ahead.
func (hof *HallOfFame) Consider(generation int, fitness float64, genome *genetics.Genome) bool {
	if genome == nil {
		return false
	}

	idx := sort.Search(len(hof.entries), func(i int) bool {
		return hof.entries[i].Fitness < fitness
	})
	if idx >= hof.maxSize {
		return false
	}

	entry := HallEntry{
		Generation: generation,
		Fitness:    fitness,
		Nodes:      len(genome.Nodes),
		Links:      len(genome.Genes),
		Genome:     neural.RecordFromGenome(genome),
	}

	hof.entries = append(hof.entries, HallEntry{})
	copy(hof.entries[idx+1:], hof.entries[idx:])
	hof.entries[idx] = entry

	if len(hof.entries) > hof.maxSize {
		hof.entries = hof.entries[:hof.maxSize]
	}
	return true
}

// Entries returns the hall, best first. The slice must not be modified.
func (hof *HallOfFame) Entries() []HallEntry {
	return hof.entries
}

// Size returns the number of entries.
func (hof *HallOfFame) Size() int {
	return len(hof.entries)
}

// TopFitness returns the best fitness in the hall, or 0 when empty.
func (hof *HallOfFame) TopFitness() float64 {
	if len(hof.entries) == 0 {
		return 0
	}
	return hof.entries[0].Fitness
}

// MarshalJSON serializes the hall entries.
func (hof *HallOfFame) MarshalJSON() ([]byte, error) {
	return json.MarshalIndent(hof.entries, "", "  ")
}

// LoadHallOfFame parses a hall written by MarshalJSON.
func LoadHallOfFame(data []byte, maxSize int) (*HallOfFame, error) {
	var entries []HallEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	hof := NewHallOfFame(maxSize)
	if len(entries) > hof.maxSize {
		entries = entries[:hof.maxSize]
	}
	hof.entries = append(hof.entries, entries...)
	return hof, nil
}
