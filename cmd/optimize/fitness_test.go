package main

import (
	"context"
	"math"
	"testing"

	"github.com/pthm-cable/flap/config"
	"github.com/pthm-cable/flap/neural"
)

func TestFitnessEvaluatorKnownControllers(t *testing.T) {
	pv := NewParamVector(nil, 5)
	fe := NewFitnessEvaluator(context.Background(), pv, 600, []int64{1, 2, 3}, config.Default())

	tests := []struct {
		name      string
		noneBias  float64
		want      float64
		wantTicks float64
	}{
		// All-zero outputs tie, so the network always jumps into the ceiling.
		{"always jump", 0, -0.11, 11},
		// A positive none bias never jumps and falls to the floor.
		{"never jump", 1, -0.6, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := make([]float64, pv.Dim())
			x[len(x)-1] = tt.noneBias

			got := fe.Evaluate(x)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("fitness = %v, want %v", got, tt.want)
			}
			if fe.LastTicks() != tt.wantTicks {
				t.Errorf("mean ticks = %v, want %v", fe.LastTicks(), tt.wantTicks)
			}
		})
	}

	best, fitness := fe.BestParams()
	if math.Abs(fitness+0.6) > 1e-9 {
		t.Errorf("best fitness = %v, want -0.6", fitness)
	}
	if best[len(best)-1] != 1 {
		t.Errorf("best params do not belong to the never-jump controller")
	}
}

func TestFitnessEvaluatorInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pv := NewParamVector(nil, 5)
	fe := NewFitnessEvaluator(ctx, pv, 600, []int64{1}, config.Default())
	if got := fe.Evaluate(make([]float64, neural.FFNNParamCount)); !math.IsInf(got, 1) {
		t.Errorf("fitness = %v, want +Inf for an interrupted evaluation", got)
	}
}
