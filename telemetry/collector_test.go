package telemetry

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorReportGeneration(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}

	ctx := context.Background()
	for gen := 0; gen < 2; gen++ {
		if err := c.ReportGeneration(ctx, testReport(gen)); err != nil {
			t.Fatalf("ReportGeneration failed: %v", err)
		}
	}

	if got := testutil.ToFloat64(c.Generations); got != 2 {
		t.Errorf("generations = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.InvalidActions); got != 8 {
		t.Errorf("invalid actions = %v, want 8", got)
	}
	if got := testutil.ToFloat64(c.ActivationErrors); got != 4 {
		t.Errorf("activation errors = %v, want 4", got)
	}
	if got := testutil.ToFloat64(c.BestFitness); got != 1.3 {
		t.Errorf("best fitness = %v, want 1.3", got)
	}
	if got := testutil.ToFloat64(c.Species); got != 2 {
		t.Errorf("species = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.GenerationTicks); got != 131 {
		t.Errorf("ticks = %v, want 131", got)
	}
	want := (0.6 + 0.11 + 1.3) / 3
	if got := testutil.ToFloat64(c.MeanFitness); got < want-1e-9 || got > want+1e-9 {
		t.Errorf("mean fitness = %v, want %v", got, want)
	}
	if n := testutil.CollectAndCount(c.GenerationDuration); n != 1 {
		t.Errorf("duration histogram series = %d, want 1", n)
	}
}

func TestCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("second NewCollector failed: %v", err)
	}

	first.Generations.Inc()
	if got := testutil.ToFloat64(second.Generations); got != 1 {
		t.Errorf("second collector sees %v generations, want 1", got)
	}
}

func TestCollectorHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	c.BestEver.Set(2.5)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "flap_best_fitness_ever 2.5") {
		t.Errorf("metrics output missing best ever gauge:\n%s", body)
	}
}
