package main

import (
	"fmt"

	"github.com/pthm-cable/flap/neural"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the weights and biases of an FFNN controller in the
// layout neural.NewFFNNFromParams accepts.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector names every network parameter, bounds it to [-bound, bound]
// and takes its default from defaults.
func NewParamVector(defaults []float64, bound float64) *ParamVector {
	names := make([]string, 0, neural.FFNNParamCount)
	for h := 0; h < neural.FFNNHidden; h++ {
		for in := 0; in < neural.FFNNInputs; in++ {
			names = append(names, fmt.Sprintf("w1_h%d_in%d", h, in))
		}
	}
	for h := 0; h < neural.FFNNHidden; h++ {
		names = append(names, fmt.Sprintf("b1_h%d", h))
	}
	for out := 0; out < neural.FFNNOutputs; out++ {
		for h := 0; h < neural.FFNNHidden; h++ {
			names = append(names, fmt.Sprintf("w2_out%d_h%d", out, h))
		}
	}
	for out := 0; out < neural.FFNNOutputs; out++ {
		names = append(names, fmt.Sprintf("b2_out%d", out))
	}

	specs := make([]ParamSpec, len(names))
	for i, name := range names {
		var def float64
		if i < len(defaults) {
			def = defaults[i]
		}
		specs[i] = ParamSpec{Name: name, Min: -bound, Max: bound, Default: def}
	}
	pv := &ParamVector{Specs: specs}
	for i, v := range pv.Clamp(pv.DefaultVector()) {
		pv.Specs[i].Default = v
	}
	return pv
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := v[i]
		if val < spec.Min {
			val = spec.Min
		}
		if val > spec.Max {
			val = spec.Max
		}
		clamped[i] = val
	}
	return clamped
}

// Network builds a controller from clamped parameter values.
func (pv *ParamVector) Network(values []float64, inputScale float64) (*neural.FFNN, error) {
	return neural.NewFFNNFromParams(pv.Clamp(values), inputScale)
}
