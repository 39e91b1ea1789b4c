package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/game"
	"github.com/pthm-cable/flap/neural"
)

func TestNewOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("", OutputOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if om != nil {
		t.Fatal("expected nil manager for empty dir")
	}
	// Nil managers are safe to use.
	if err := om.ReportGeneration(context.Background(), testReport(0)); err != nil {
		t.Errorf("ReportGeneration on nil: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Errorf("Close on nil: %v", err)
	}
}

func TestOutputManagerWritesRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	perf := game.NewPerfStats(10)
	perf.Record(game.PhaseAgents, 50*time.Microsecond)

	om, err := NewOutputManager(dir, OutputOptions{Perf: perf, HallSize: 2, Plot: true})
	if err != nil {
		t.Fatalf("NewOutputManager failed: %v", err)
	}
	if err := om.WriteConfig(config.Default()); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}

	ctx := context.Background()
	for gen := 0; gen < 3; gen++ {
		r := testReport(gen)
		r.ChampionFitness = float64(gen + 1)
		if err := om.ReportGeneration(ctx, r); err != nil {
			t.Fatalf("ReportGeneration(%d) failed: %v", gen, err)
		}
	}
	if err := om.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, GenerationsFile))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var rows []GenerationStats
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		t.Fatalf("parsing %s: %v", GenerationsFile, err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 generation rows (one header), got %d", len(rows))
	}
	for i, row := range rows {
		if row.Generation != i || row.BestFitness != float64(i+1) {
			t.Errorf("row %d = gen %d best %v", i, row.Generation, row.BestFitness)
		}
	}

	pf, err := os.Open(filepath.Join(dir, PerfFile))
	if err != nil {
		t.Fatal(err)
	}
	defer pf.Close()
	var perfRows []PerfRecord
	if err := gocsv.UnmarshalFile(pf, &perfRows); err != nil {
		t.Fatalf("parsing %s: %v", PerfFile, err)
	}
	if len(perfRows) != 3 || perfRows[2].AgentsUs != 50 {
		t.Errorf("unexpected perf rows %+v", perfRows)
	}

	sf, err := os.Open(filepath.Join(dir, SpeciesFile))
	if err != nil {
		t.Fatal(err)
	}
	defer sf.Close()
	var speciesRows []SpeciesRecord
	if err := gocsv.UnmarshalFile(sf, &speciesRows); err != nil {
		t.Fatalf("parsing %s: %v", SpeciesFile, err)
	}
	if len(speciesRows) != 6 || speciesRows[5].Generation != 2 {
		t.Errorf("unexpected species rows %+v", speciesRows)
	}

	champion, err := neural.LoadGenome(filepath.Join(dir, ChampionFile))
	if err != nil {
		t.Fatalf("loading champion: %v", err)
	}
	if champion.Id != 3 {
		t.Errorf("champion id = %d, want 3", champion.Id)
	}

	data, err := os.ReadFile(filepath.Join(dir, HallOfFameFile))
	if err != nil {
		t.Fatal(err)
	}
	hof, err := LoadHallOfFame(data, 10)
	if err != nil {
		t.Fatal(err)
	}
	if hof.Size() != 2 || hof.TopFitness() != 3 {
		t.Errorf("hall size %d top %v, want 2 and 3", hof.Size(), hof.TopFitness())
	}

	for _, name := range []string{ConfigFile, PlotFile} {
		if info, err := os.Stat(filepath.Join(dir, name)); err != nil || info.Size() == 0 {
			t.Errorf("expected non-empty %s: %v", name, err)
		}
	}
}

func TestOutputManagerKeepsFirstChampionOnTie(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir, OutputOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer om.Close()

	first := testReport(0)
	second := testReport(1)
	second.Champion = second.Genomes[0]

	ctx := context.Background()
	if err := om.ReportGeneration(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := om.ReportGeneration(ctx, second); err != nil {
		t.Fatal(err)
	}

	champion, err := neural.LoadGenome(filepath.Join(dir, ChampionFile))
	if err != nil {
		t.Fatal(err)
	}
	if champion.Id != first.Champion.Id {
		t.Errorf("champion id = %d, want %d", champion.Id, first.Champion.Id)
	}
	if len(om.History()) != 2 {
		t.Errorf("history length = %d, want 2", len(om.History()))
	}
}

func TestPlotFitnessEmpty(t *testing.T) {
	if err := PlotFitness(nil, "empty", filepath.Join(t.TempDir(), "x.png")); err == nil {
		t.Error("expected error for empty history")
	}
}
