package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/flap/neural"
)

// GenerationStats holds aggregated statistics for one evaluated generation.
type GenerationStats struct {
	Generation int  `csv:"generation"`
	Ticks      int  `csv:"ticks"`
	Population int  `csv:"population"`
	Capped     bool `csv:"capped"`

	// Fitness distribution
	BestFitness float64 `csv:"best_fitness"`
	MeanFitness float64 `csv:"mean_fitness"`
	StdFitness  float64 `csv:"std_fitness"`
	FitnessP10  float64 `csv:"fitness_p10"`
	FitnessP50  float64 `csv:"fitness_p50"`
	FitnessP90  float64 `csv:"fitness_p90"`
	BestEver    float64 `csv:"best_ever"`

	MeanTicksAlive   float64 `csv:"mean_ticks_alive"`
	InvalidActions   int     `csv:"invalid_actions"`
	ActivationErrors int     `csv:"activation_errors"`

	// Speciation
	Species        int     `csv:"species"`
	LargestSpecies int     `csv:"largest_species"`
	AvgStaleness   float64 `csv:"avg_staleness"`

	// Genome size
	MeanNodes float64 `csv:"mean_nodes"`
	MeanLinks float64 `csv:"mean_links"`

	DurationMs float64 `csv:"duration_ms"`
}

// ComputeGenerationStats summarizes a generation report.
func ComputeGenerationStats(r *neural.GenerationReport) GenerationStats {
	s := GenerationStats{
		Generation:       r.Generation,
		BestFitness:      r.ChampionFitness,
		BestEver:         r.BestEver,
		ActivationErrors: r.ActivationErrors,
		Species:          r.Species.Count,
		LargestSpecies:   r.Species.LargestSize,
		AvgStaleness:     r.Species.AverageStaleness,
		DurationMs:       float64(r.Duration.Microseconds()) / 1000,
	}

	if res := r.Result; res != nil {
		s.Ticks = res.Ticks
		s.Population = len(res.Entries)
		s.Capped = res.Capped
		s.InvalidActions = res.InvalidActions
		s.MeanFitness, s.StdFitness, s.FitnessP10, s.FitnessP50, s.FitnessP90 = ComputeFitnessStats(res.Fitness())

		if n := len(res.Entries); n > 0 {
			ticks := make([]float64, n)
			for i, e := range res.Entries {
				ticks[i] = float64(e.TicksAlive)
			}
			s.MeanTicksAlive = stat.Mean(ticks, nil)
		}
	}

	if n := len(r.Genomes); n > 0 {
		nodes := make([]float64, 0, n)
		links := make([]float64, 0, n)
		for _, g := range r.Genomes {
			if g == nil {
				continue
			}
			nodes = append(nodes, float64(len(g.Nodes)))
			links = append(links, float64(len(g.Genes)))
		}
		if len(nodes) > 0 {
			s.MeanNodes = stat.Mean(nodes, nil)
			s.MeanLinks = stat.Mean(links, nil)
		}
	}

	return s
}

// ComputeFitnessStats calculates mean, population std, and percentiles.
func ComputeFitnessStats(values []float64) (mean, std, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0, 0
	}

	mean, std = stat.PopMeanStdDev(values, nil)

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, std, p10, p50, p90
}

// Percentile returns the p-th percentile (0-1) of an already sorted slice,
// interpolating linearly between neighbouring ranks.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// LogValue implements slog.LogValuer for structured logging.
func (s GenerationStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", s.Generation),
		slog.Int("ticks", s.Ticks),
		slog.Int("population", s.Population),
		slog.Bool("capped", s.Capped),
		slog.Float64("best", s.BestFitness),
		slog.Float64("mean", s.MeanFitness),
		slog.Float64("std", s.StdFitness),
		slog.Float64("p50", s.FitnessP50),
		slog.Float64("best_ever", s.BestEver),
		slog.Int("species", s.Species),
		slog.Float64("mean_nodes", s.MeanNodes),
		slog.Float64("mean_links", s.MeanLinks),
		slog.Float64("duration_ms", s.DurationMs),
	)
}

// SpeciesRecord is one row of species.csv.
type SpeciesRecord struct {
	Generation  int     `csv:"generation"`
	SpeciesID   int     `csv:"species_id"`
	Size        int     `csv:"size"`
	BestFitness float64 `csv:"best_fitness"`
	AvgFitness  float64 `csv:"avg_fitness"`
	Age         int     `csv:"age"`
	Staleness   int     `csv:"staleness"`
}

// SpeciesRecords flattens the report's largest species into CSV rows.
func SpeciesRecords(r *neural.GenerationReport) []SpeciesRecord {
	out := make([]SpeciesRecord, len(r.TopSpecies))
	for i, sp := range r.TopSpecies {
		out[i] = SpeciesRecord{
			Generation:  r.Generation,
			SpeciesID:   sp.ID,
			Size:        sp.Size,
			BestFitness: sp.BestFit,
			AvgFitness:  sp.AvgFit,
			Age:         sp.Age,
			Staleness:   sp.Staleness,
		}
	}
	return out
}
