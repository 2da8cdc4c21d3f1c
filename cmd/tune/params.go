// Package main implements an offline CMA-ES search over the energy model's
// tunable constants. Grounded on cmd/optimize/params.go's ParamSpec/
// ParamVector normalize-denormalize-clamp pattern, re-targeted at
// energy.Params instead of a YAML ecosystem config.
package main

import "github.com/pthm-cable/crowdsim/energy"

// ParamSpec defines one optimizable energy constant.
type ParamSpec struct {
	Name    string
	Min     float64
	Max     float64
	Default float64
}

// ParamVector holds the set of all optimizable energy constants. Only the
// continuous physical constants are tuned; NewtonIter and LBFGSWindow stay
// at their defaults across every evaluation since they govern optimizer
// budget rather than crowd behavior.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "k", Min: 0.3, Max: 6.0, Default: 1.5},
			{Name: "p", Min: 1.0, Max: 4.0, Default: 2.0},
			{Name: "t0", Min: 0.5, Max: 8.0, Default: 3.0},
			{Name: "ksi", Min: 0.2, Max: 5.0, Default: 2.0},
			{Name: "eps", Min: 0.01, Max: 1.0, Default: 0.2},
			{Name: "eta", Min: 0.001, Max: 0.2, Default: 0.01},
			{Name: "neighbor_dist", Min: 3.0, Max: 20.0, Default: 10.0},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int { return len(pv.Specs) }

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

// ApplyToParams writes clamped values into prm. Order matches Specs order.
func (pv *ParamVector) ApplyToParams(prm *energy.Params, values []float64) {
	clamped := pv.Clamp(values)
	i := 0
	prm.K = clamped[i]
	i++
	prm.P = clamped[i]
	i++
	prm.T0 = clamped[i]
	i++
	prm.Ksi = clamped[i]
	i++
	prm.Eps = clamped[i]
	i++
	prm.Eta = clamped[i]
	i++
	prm.NeighborDist = clamped[i]
}

// ExtractFromParams reads the current tunable values out of prm.
func (pv *ParamVector) ExtractFromParams(prm energy.Params) []float64 {
	return []float64{prm.K, prm.P, prm.T0, prm.Ksi, prm.Eps, prm.Eta, prm.NeighborDist}
}
