package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/yaricom/goNEAT/v4/neat/genetics"

	"github.com/pthm-cable/flap/game"
	"github.com/pthm-cable/flap/neural"
	"github.com/pthm-cable/flap/storage"
	"github.com/pthm-cable/flap/telemetry"
)

// source selects where the replayed controller comes from. Exactly one of
// the location fields must be set.
type source struct {
	genomePath string // champion.json
	hallPath   string // hall_of_fame.json
	hallIndex  int
	paramsPath string // best_params.json from cmd/optimize
	dbPath     string // SQLite store
	runID      string
	generation int // -1 = best champion of the run
}

// optimizeResult mirrors the best_params.json layout written by cmd/optimize.
type optimizeResult struct {
	Fitness    float64   `json:"fitness"`
	InputScale float64   `json:"input_scale"`
	Params     []float64 `json:"params"`
}

// loadController builds the controller described by src and a label for logs.
func loadController(ctx context.Context, src source, inputScale float64) (game.Controller, string, error) {
	set := 0
	for _, s := range []string{src.genomePath, src.hallPath, src.paramsPath, src.dbPath} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return nil, "", errors.New("exactly one of -genome, -hall, -params or -db is required")
	}

	switch {
	case src.genomePath != "":
		genome, err := neural.LoadGenome(src.genomePath)
		if err != nil {
			return nil, "", err
		}
		return brainController(genome, inputScale, fmt.Sprintf("genome %d", genome.Id))

	case src.hallPath != "":
		data, err := os.ReadFile(src.hallPath)
		if err != nil {
			return nil, "", err
		}
		hof, err := telemetry.LoadHallOfFame(data, src.hallIndex+1)
		if err != nil {
			return nil, "", fmt.Errorf("parsing hall of fame: %w", err)
		}
		if src.hallIndex < 0 || src.hallIndex >= hof.Size() {
			return nil, "", fmt.Errorf("hall index %d out of range (%d entries)", src.hallIndex, hof.Size())
		}
		entry := hof.Entries()[src.hallIndex]
		genome, err := entry.Genome.Genome()
		if err != nil {
			return nil, "", err
		}
		return brainController(genome, inputScale,
			fmt.Sprintf("hall #%d (generation %d, fitness %.2f)", src.hallIndex, entry.Generation, entry.Fitness))

	case src.paramsPath != "":
		data, err := os.ReadFile(src.paramsPath)
		if err != nil {
			return nil, "", err
		}
		var res optimizeResult
		if err := json.Unmarshal(data, &res); err != nil {
			return nil, "", fmt.Errorf("parsing params: %w", err)
		}
		scale := res.InputScale
		if scale == 0 {
			scale = inputScale
		}
		nn, err := neural.NewFFNNFromParams(res.Params, scale)
		if err != nil {
			return nil, "", err
		}
		return nn, fmt.Sprintf("ffnn (fitness %.2f)", res.Fitness), nil

	default:
		return loadFromStore(ctx, src, inputScale)
	}
}

func loadFromStore(ctx context.Context, src source, inputScale float64) (game.Controller, string, error) {
	if src.runID == "" {
		return nil, "", errors.New("-run is required with -db")
	}
	store := storage.NewSQLiteStore(src.dbPath)
	if err := store.Init(ctx); err != nil {
		return nil, "", err
	}
	defer store.Close()

	var (
		genome  *genetics.Genome
		fitness float64
		ok      bool
		err     error
	)
	if src.generation < 0 {
		genome, fitness, ok, err = store.BestChampion(ctx, src.runID)
	} else {
		genome, fitness, ok, err = store.GetChampion(ctx, src.runID, src.generation)
	}
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", fmt.Errorf("no champion for run %s", src.runID)
	}
	return brainController(genome, inputScale, fmt.Sprintf("run %s champion (fitness %.2f)", src.runID, fitness))
}

func brainController(genome *genetics.Genome, inputScale float64, label string) (game.Controller, string, error) {
	bc, err := neural.NewBrainController(genome, inputScale)
	if err != nil {
		return nil, "", fmt.Errorf("building %s: %w", label, err)
	}
	return bc, label, nil
}
