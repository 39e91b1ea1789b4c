package neural

import (
	"math/rand"
	"testing"

	"github.com/yaricom/goNEAT/v4/neat/genetics"

	"github.com/pthm-cable/flap/config"
)

func TestSpeciateGroupsCompatibleGenomes(t *testing.T) {
	opts := NEATOptions(config.Default())
	rng := rand.New(rand.NewSource(1))
	idGen := NewGenomeIDGenerator()

	base := CreateMinimalBrainGenome(rng, 1)
	twin, _ := CloneGenome(base, 2)
	distant, _ := CloneGenome(base, 3)
	for i := 0; i < 4; i++ {
		addNode(rng, distant, idGen)
	}

	sm := NewSpeciesManager(opts)
	ids := sm.Speciate([]*genetics.Genome{base, twin, distant})

	if ids[0] != ids[1] {
		t.Errorf("identical genomes in different species: %v", ids)
	}
	if ids[0] == ids[2] {
		t.Errorf("distant genome shares a species: %v", ids)
	}
	if len(sm.Species) != 2 {
		t.Errorf("expected 2 species, got %d", len(sm.Species))
	}
	if got := len(sm.Get(ids[0]).Members); got != 2 {
		t.Errorf("first species has %d members, want 2", got)
	}
}

func TestSpeciateDropsEmptySpecies(t *testing.T) {
	opts := NEATOptions(config.Default())
	rng := rand.New(rand.NewSource(1))
	idGen := NewGenomeIDGenerator()

	base := CreateMinimalBrainGenome(rng, 1)
	distant, _ := CloneGenome(base, 2)
	for i := 0; i < 4; i++ {
		addNode(rng, distant, idGen)
	}

	sm := NewSpeciesManager(opts)
	sm.Speciate([]*genetics.Genome{base, distant})
	sm.Speciate([]*genetics.Genome{base})

	if len(sm.Species) != 1 {
		t.Errorf("expected 1 species after the distant genome left, got %d", len(sm.Species))
	}
}

func TestEndGenerationStaleness(t *testing.T) {
	opts := NEATOptions(config.Default())
	opts.DropOffAge = 3

	rng := rand.New(rand.NewSource(1))
	pop := []*genetics.Genome{CreateMinimalBrainGenome(rng, 1)}
	sm := NewSpeciesManager(opts)

	ids := sm.Speciate(pop)
	sm.AccumulateFitness(ids[0], 1.0)
	sm.EndGeneration()
	sp := sm.Get(ids[0])
	if sp == nil || sp.Staleness != 0 || sp.AvgFitness != 1.0 {
		t.Fatalf("species after improvement = %+v", sp)
	}

	// The only species is never dropped, even when stale
	for i := 0; i < 5; i++ {
		sm.Speciate(pop)
		sm.AccumulateFitness(ids[0], 0.5)
		sm.EndGeneration()
	}
	if sm.Get(ids[0]) == nil {
		t.Fatal("champion species was dropped")
	}
	if sm.Get(ids[0]).Staleness != 5 {
		t.Errorf("staleness = %d, want 5", sm.Get(ids[0]).Staleness)
	}
}

func TestAllocateOffspring(t *testing.T) {
	sm := NewSpeciesManager(NEATOptions(config.Default()))
	sm.Species = []*Species{
		{ID: 1, AvgFitness: 3, Members: []int{0}},
		{ID: 2, AvgFitness: 1, Members: []int{1}},
		{ID: 3, AvgFitness: 0, Members: []int{2}},
	}

	tests := []struct {
		total int
		want  map[int]int
	}{
		{8, map[int]int{1: 6, 2: 2, 3: 0}},
		{10, map[int]int{1: 8, 2: 2, 3: 0}},
		{0, map[int]int{}},
	}

	for _, tt := range tests {
		alloc := sm.AllocateOffspring(tt.total)
		sum := 0
		for id, n := range alloc {
			sum += n
			if tt.want[id] != n {
				t.Errorf("total %d: species %d got %d, want %d", tt.total, id, n, tt.want[id])
			}
		}
		if sum != tt.total {
			t.Errorf("total %d: allocated %d", tt.total, sum)
		}
	}
}

func TestAllocateOffspringWithoutFitness(t *testing.T) {
	sm := NewSpeciesManager(NEATOptions(config.Default()))
	sm.Species = []*Species{{ID: 1}, {ID: 2}}

	alloc := sm.AllocateOffspring(5)
	if alloc[1]+alloc[2] != 5 || alloc[1] < 2 || alloc[2] < 2 {
		t.Errorf("alloc = %v, want an even split of 5", alloc)
	}
}

func TestGetStats(t *testing.T) {
	sm := NewSpeciesManager(NEATOptions(config.Default()))
	if stats := sm.GetStats(); stats.Count != 0 {
		t.Errorf("empty stats = %+v", stats)
	}

	sm.Species = []*Species{
		{ID: 1, Members: []int{0, 1, 2}, BestFitness: 2, Staleness: 1},
		{ID: 2, Members: []int{3}, BestFitness: 5, Staleness: 3},
	}
	stats := sm.GetStats()
	if stats.Count != 2 || stats.TotalMembers != 4 || stats.LargestSize != 3 || stats.SmallestSize != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.BestFitness != 5 || stats.AverageStaleness != 2 {
		t.Errorf("stats = %+v", stats)
	}

	top := sm.GetTopSpecies(1)
	if len(top) != 1 || top[0].ID != 1 {
		t.Errorf("top species = %+v", top)
	}
}
