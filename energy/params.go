// Package energy implements the joint energy function minimized each
// simulation step: quadratic inertial/goal terms plus pairwise anticipatory
// collision potentials. Grounded on
// original_source/library/src/ImplicitEngine.cpp (the value() overloads,
// min_distance_energy, inverse_ttc_energy).
package energy

import "github.com/pthm-cable/crowdsim/params"

// Infeasible is returned as the energy value whenever any pair tunnels
// (the swept minimum-distance test finds the discs already overlapping),
// signalling the line search to reject the step. Named INF_SENTINEL in the
// source.
const Infeasible = 9e9

// Params holds the energy model's tunable constants. Defaults match
// ImplicitEngine::init.
type Params struct {
	K             float64 // inverse-TTC potential scale
	P             float64 // inverse-TTC potential exponent
	T0            float64 // inverse-TTC potential time constant
	Ksi           float64 // goal-velocity relaxation weight
	Eps           float64 // TTC linear-extrapolation margin
	Eta           float64 // min-distance repulsion scale ("repulsive" in the param file)
	NeighborDist  float64 // neighbor query radius
	NewtonIter    int     // L-BFGS outer iteration budget
	LBFGSWindow   int     // L-BFGS history depth m
	EpsX          float64 // L-BFGS stagnation threshold on ||dx||_inf

	// ReplicateShadowBug reproduces the source's variable-shadowing bug in
	// min_distance_energy's gradient branch (see DESIGN.md open-question
	// decisions): when true, the tti-derivative terms never contribute to
	// the min-distance gradient, matching published results bit-for-bit;
	// when false, the corrected derivative is used.
	ReplicateShadowBug bool
}

// DefaultParams returns the source's hardcoded defaults.
func DefaultParams() Params {
	return Params{
		K:                  1.5,
		P:                  2,
		T0:                 3,
		Ksi:                2,
		Eps:                0.2,
		Eta:                0.01,
		NeighborDist:       10,
		NewtonIter:         100,
		LBFGSWindow:        5,
		EpsX:               1e-5,
		ReplicateShadowBug: true,
	}
}

// ApplyOverrides reads recognized keys from set and overwrites the
// corresponding field, leaving unrecognized or absent keys untouched.
// Grounded on ImplicitEngine::readParameters.
func (p *Params) ApplyOverrides(set *params.Set) error {
	floatFields := []struct {
		key string
		dst *float64
	}{
		{"k", &p.K},
		{"p", &p.P},
		{"t0", &p.T0},
		{"ksi", &p.Ksi},
		{"eps", &p.Eps},
		{"repulsive", &p.Eta},
		{"neighborDist", &p.NeighborDist},
		{"eps_x", &p.EpsX},
	}
	for _, f := range floatFields {
		v, ok, err := set.Float64(f.key)
		if err != nil {
			return err
		}
		if ok {
			*f.dst = v
		}
	}

	intFields := []struct {
		key string
		dst *int
	}{
		{"newtonIter", &p.NewtonIter},
		{"lbfgsWindow", &p.LBFGSWindow},
	}
	for _, f := range intFields {
		v, ok, err := set.Int(f.key)
		if err != nil {
			return err
		}
		if ok {
			*f.dst = v
		}
	}
	return nil
}
