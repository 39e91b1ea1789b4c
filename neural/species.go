package neural

import (
	"math"
	"sort"

	"github.com/yaricom/goNEAT/v4/neat"
	"github.com/yaricom/goNEAT/v4/neat/genetics"
)

// Species represents a group of genetically similar genomes.
type Species struct {
	ID             int
	Representative *genetics.Genome // used for compatibility comparisons
	Members        []int            // population indices in the current generation
	BestFitness    float64          // best fitness ever reached by a member
	AvgFitness     float64          // mean member fitness of the last generation
	TotalFitness   float64
	Age            int // generations since the species was created
	Staleness      int // generations without improving BestFitness
	OffspringCount int // total offspring produced

	improved bool
}

// SpeciesManager speciates a generational population.
type SpeciesManager struct {
	Species       []*Species
	opts          *neat.Options
	nextSpeciesID int
	generation    int
}

// NewSpeciesManager creates a new species manager.
func NewSpeciesManager(opts *neat.Options) *SpeciesManager {
	return &SpeciesManager{
		Species:       make([]*Species, 0),
		opts:          opts,
		nextSpeciesID: 1,
	}
}

// Speciate assigns every genome to the first species whose representative is
// within the compatibility threshold, founding new species as needed. Species
// left without members are dropped and each surviving species takes its
// first member as the next representative. It returns the species ID of each
// genome.
func (sm *SpeciesManager) Speciate(population []*genetics.Genome) []int {
	for _, sp := range sm.Species {
		sp.Members = sp.Members[:0]
	}

	ids := make([]int, len(population))
	for i, genome := range population {
		sp := sm.find(genome)
		if sp == nil {
			sp = &Species{ID: sm.nextSpeciesID, Representative: genome}
			sm.nextSpeciesID++
			sm.Species = append(sm.Species, sp)
		}
		sp.Members = append(sp.Members, i)
		ids[i] = sp.ID
	}

	active := sm.Species[:0]
	for _, sp := range sm.Species {
		if len(sp.Members) > 0 {
			sp.Representative = population[sp.Members[0]]
			active = append(active, sp)
		}
	}
	sm.Species = active
	return ids
}

func (sm *SpeciesManager) find(genome *genetics.Genome) *Species {
	for _, sp := range sm.Species {
		if sp.Representative == nil {
			continue
		}
		if GenomeCompatibility(genome, sp.Representative, sm.opts) < sm.opts.CompatThreshold {
			return sp
		}
	}
	return nil
}

// Get returns the species with the given ID.
func (sm *SpeciesManager) Get(speciesID int) *Species {
	for _, sp := range sm.Species {
		if sp.ID == speciesID {
			return sp
		}
	}
	return nil
}

// AccumulateFitness adds a member's fitness to its species.
func (sm *SpeciesManager) AccumulateFitness(speciesID int, fitness float64) {
	sp := sm.Get(speciesID)
	if sp == nil {
		return
	}
	sp.TotalFitness += fitness
	if fitness > sp.BestFitness {
		sp.BestFitness = fitness
		sp.improved = true
	}
}

// RecordOffspring increments the offspring count for a species.
func (sm *SpeciesManager) RecordOffspring(speciesID int, n int) {
	if sp := sm.Get(speciesID); sp != nil {
		sp.OffspringCount += n
	}
}

// EndGeneration computes per-species averages, ages every species and drops
// stale ones. Call it once per generation after all fitness is accumulated.
func (sm *SpeciesManager) EndGeneration() {
	sm.generation++

	for _, sp := range sm.Species {
		sp.Age++
		if sp.improved {
			sp.Staleness = 0
		} else {
			sp.Staleness++
		}
		sp.improved = false
		if len(sp.Members) > 0 {
			sp.AvgFitness = sp.TotalFitness / float64(len(sp.Members))
		}
		sp.TotalFitness = 0
	}

	sm.RemoveStaleSpecies()
}

// RemoveStaleSpecies removes species that have no members or have not
// improved for DropOffAge generations. The species holding the best fitness
// is always kept so the population cannot go extinct.
func (sm *SpeciesManager) RemoveStaleSpecies() {
	var champion *Species
	for _, sp := range sm.Species {
		if len(sp.Members) > 0 && (champion == nil || sp.BestFitness > champion.BestFitness) {
			champion = sp
		}
	}

	active := make([]*Species, 0, len(sm.Species))
	for _, sp := range sm.Species {
		if sp == champion || (len(sp.Members) > 0 && sp.Staleness < sm.opts.DropOffAge) {
			active = append(active, sp)
		}
	}
	sm.Species = active
}

// AllocateOffspring divides total offspring between species in proportion to
// their shared fitness (the mean member fitness). Remainders go to the
// species with the largest fractional share. The result maps species ID to
// offspring count.
func (sm *SpeciesManager) AllocateOffspring(total int) map[int]int {
	alloc := make(map[int]int, len(sm.Species))
	if total <= 0 || len(sm.Species) == 0 {
		return alloc
	}

	sum := 0.0
	for _, sp := range sm.Species {
		sum += math.Max(sp.AvgFitness, 0)
	}

	type share struct {
		id   int
		frac float64
	}
	shares := make([]share, 0, len(sm.Species))
	assigned := 0
	for _, sp := range sm.Species {
		exact := float64(total) / float64(len(sm.Species))
		if sum > 0 {
			exact = float64(total) * math.Max(sp.AvgFitness, 0) / sum
		}
		n := int(math.Floor(exact))
		alloc[sp.ID] = n
		assigned += n
		shares = append(shares, share{id: sp.ID, frac: exact - float64(n)})
	}

	sort.SliceStable(shares, func(i, j int) bool { return shares[i].frac > shares[j].frac })
	for i := 0; assigned < total; i = (i + 1) % len(shares) {
		alloc[shares[i].id]++
		assigned++
	}
	return alloc
}

// SpeciesStats contains summary statistics about all species.
type SpeciesStats struct {
	Count            int
	TotalMembers     int
	LargestSize      int
	SmallestSize     int
	AverageStaleness float64
	Generation       int
	TotalOffspring   int
	BestFitness      float64
}

// SpeciesInfo contains display information about a single species.
type SpeciesInfo struct {
	ID        int
	Size      int
	BestFit   float64
	AvgFit    float64
	Age       int
	Staleness int
	Offspring int
}

// GetStats returns summary statistics about the species distribution.
func (sm *SpeciesManager) GetStats() SpeciesStats {
	stats := SpeciesStats{Count: len(sm.Species), Generation: sm.generation}
	if stats.Count == 0 {
		return stats
	}

	stats.SmallestSize = math.MaxInt
	totalStaleness := 0
	for _, sp := range sm.Species {
		size := len(sp.Members)
		stats.TotalMembers += size
		stats.TotalOffspring += sp.OffspringCount
		stats.BestFitness = math.Max(stats.BestFitness, sp.BestFitness)
		stats.LargestSize = max(stats.LargestSize, size)
		if size > 0 {
			stats.SmallestSize = min(stats.SmallestSize, size)
		}
		totalStaleness += sp.Staleness
	}
	stats.AverageStaleness = float64(totalStaleness) / float64(stats.Count)
	if stats.SmallestSize == math.MaxInt {
		stats.SmallestSize = 0
	}
	return stats
}

// GetTopSpecies returns info about the n largest species.
func (sm *SpeciesManager) GetTopSpecies(n int) []SpeciesInfo {
	sorted := make([]*Species, len(sm.Species))
	copy(sorted, sm.Species)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Members) > len(sorted[j].Members)
	})

	n = min(n, len(sorted))
	result := make([]SpeciesInfo, n)
	for i, sp := range sorted[:n] {
		result[i] = SpeciesInfo{
			ID:        sp.ID,
			Size:      len(sp.Members),
			BestFit:   sp.BestFitness,
			AvgFit:    sp.AvgFitness,
			Age:       sp.Age,
			Staleness: sp.Staleness,
			Offspring: sp.OffspringCount,
		}
	}
	return result
}
