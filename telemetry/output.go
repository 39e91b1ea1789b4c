package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/game"
	"github.com/pthm-cable/flap/neural"
)

// Output file names inside the output directory.
const (
	GenerationsFile = "generations.csv"
	PerfFile        = "perf.csv"
	SpeciesFile     = "species.csv"
	ConfigFile      = "config.yaml"
	ChampionFile    = "champion.json"
	HallOfFameFile  = "hall_of_fame.json"
	PlotFile        = "fitness.png"
)

// OutputOptions configures an OutputManager.
type OutputOptions struct {
	Perf     *game.PerfStats // sampled into perf.csv after each generation
	HallSize int             // champions kept in hall_of_fame.json
	Plot     bool            // render fitness.png on Close
}

// OutputManager handles structured experiment output. It receives every
// generation as a neural.Reporter.
type OutputManager struct {
	dir             string
	generationsFile *os.File
	perfFile        *os.File
	speciesFile     *os.File

	// Track if headers have been written
	generationsHeaderWritten bool
	perfHeaderWritten        bool
	speciesHeaderWritten     bool

	opts     OutputOptions
	hof      *HallOfFame
	history  []GenerationStats
	champion float64
	hasChamp bool
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string, opts OutputOptions) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	if opts.HallSize < 1 {
		opts.HallSize = 10
	}
	om := &OutputManager{dir: dir, opts: opts, hof: NewHallOfFame(opts.HallSize)}

	f, err := os.Create(filepath.Join(dir, GenerationsFile))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", GenerationsFile, err)
	}
	om.generationsFile = f

	f, err = os.Create(filepath.Join(dir, PerfFile))
	if err != nil {
		om.generationsFile.Close()
		return nil, fmt.Errorf("creating %s: %w", PerfFile, err)
	}
	om.perfFile = f

	f, err = os.Create(filepath.Join(dir, SpeciesFile))
	if err != nil {
		om.generationsFile.Close()
		om.perfFile.Close()
		return nil, fmt.Errorf("creating %s: %w", SpeciesFile, err)
	}
	om.speciesFile = f

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, ConfigFile))
}

// ReportGeneration records one generation: a generations.csv row, a perf.csv
// row, species.csv rows, a hall of fame entry and, on a new best,
// champion.json.
func (om *OutputManager) ReportGeneration(_ context.Context, r *neural.GenerationReport) error {
	if om == nil {
		return nil
	}

	stats := ComputeGenerationStats(r)
	om.history = append(om.history, stats)
	if err := om.WriteGeneration(stats); err != nil {
		return err
	}
	if om.opts.Perf != nil {
		if err := om.WritePerf(PerfRecordFromStats(r.Generation, om.opts.Perf)); err != nil {
			return err
		}
	}
	if err := om.WriteSpecies(SpeciesRecords(r)); err != nil {
		return err
	}

	if r.Champion == nil {
		return nil
	}
	om.hof.Consider(r.Generation, r.ChampionFitness, r.Champion)
	if !om.hasChamp || r.ChampionFitness > om.champion {
		om.champion, om.hasChamp = r.ChampionFitness, true
		if err := neural.SaveGenome(filepath.Join(om.dir, ChampionFile), r.Champion); err != nil {
			return fmt.Errorf("writing %s: %w", ChampionFile, err)
		}
	}
	return nil
}

// WriteGeneration writes a generation stats record to generations.csv.
func (om *OutputManager) WriteGeneration(stats GenerationStats) error {
	if om == nil {
		return nil
	}

	records := []GenerationStats{stats}

	if !om.generationsHeaderWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, om.generationsFile); err != nil {
			return fmt.Errorf("writing generations: %w", err)
		}
		om.generationsHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, om.generationsFile); err != nil {
			return fmt.Errorf("writing generations: %w", err)
		}
	}

	return nil
}

// WritePerf writes a performance record to perf.csv.
func (om *OutputManager) WritePerf(rec PerfRecord) error {
	if om == nil {
		return nil
	}

	records := []PerfRecord{rec}

	if !om.perfHeaderWritten {
		if err := gocsv.Marshal(records, om.perfFile); err != nil {
			return fmt.Errorf("writing perf: %w", err)
		}
		om.perfHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, om.perfFile); err != nil {
			return fmt.Errorf("writing perf: %w", err)
		}
	}

	return nil
}

// WriteSpecies writes species records to species.csv.
func (om *OutputManager) WriteSpecies(records []SpeciesRecord) error {
	if om == nil || len(records) == 0 {
		return nil
	}

	if !om.speciesHeaderWritten {
		if err := gocsv.Marshal(records, om.speciesFile); err != nil {
			return fmt.Errorf("writing species: %w", err)
		}
		om.speciesHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, om.speciesFile); err != nil {
			return fmt.Errorf("writing species: %w", err)
		}
	}

	return nil
}

// WriteHallOfFame saves the hall of fame as JSON.
func (om *OutputManager) WriteHallOfFame() error {
	if om == nil {
		return nil
	}

	data, err := om.hof.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshaling hall of fame: %w", err)
	}
	if err := os.WriteFile(filepath.Join(om.dir, HallOfFameFile), data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", HallOfFameFile, err)
	}
	return nil
}

// HallOfFame returns the champions recorded so far.
func (om *OutputManager) HallOfFame() *HallOfFame {
	if om == nil {
		return nil
	}
	return om.hof
}

// History returns the stats of every reported generation.
func (om *OutputManager) History() []GenerationStats {
	if om == nil {
		return nil
	}
	return om.history
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close writes the hall of fame and fitness plot, then closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error

	if err := om.WriteHallOfFame(); err != nil {
		firstErr = err
	}

	if om.opts.Plot && len(om.history) > 0 {
		if err := PlotFitness(om.history, "fitness per generation", filepath.Join(om.dir, PlotFile)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("writing %s: %w", PlotFile, err)
		}
	}

	if om.generationsFile != nil {
		if err := om.generationsFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if om.perfFile != nil {
		if err := om.perfFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if om.speciesFile != nil {
		if err := om.speciesFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
