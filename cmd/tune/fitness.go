package main

import (
	"github.com/pthm-cable/crowdsim/energy"
	"github.com/pthm-cable/crowdsim/scenario"
	"github.com/pthm-cable/crowdsim/sim"
)

// nonConvergePenalty is added, in equivalent steps, for every scenario a
// candidate parameter vector fails to converge within maxSteps — it must
// dominate any plausible mean-steps difference so the search never prefers
// "converges slowly everywhere" over "fails one scenario outright".
const nonConvergePenalty = 10000.0

// tunnelingWeight converts a run's cumulative tunneling-sentinel count into
// an equivalent-steps penalty, penalizing parameter vectors that repeatedly
// force the line search into the infeasible region even when they still
// converge.
const tunnelingWeight = 2.0

// FitnessEvaluator runs one headless simulation per scenario for a
// candidate parameter vector and reduces the results to a single scalar
// (lower is better). Grounded on cmd/optimize/fitness.go's Evaluate/
// runSimulation split, re-targeted at steps-to-convergence instead of
// survival ticks since the crowd engine has no population dynamics.
type FitnessEvaluator struct {
	vector    *ParamVector
	scenarios []*scenario.Scenario
	dt        float64
	maxSteps  int
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(vector *ParamVector, scenarios []*scenario.Scenario, dt float64, maxSteps int) *FitnessEvaluator {
	return &FitnessEvaluator{vector: vector, scenarios: scenarios, dt: dt, maxSteps: maxSteps}
}

// runResult holds one scenario's outcome.
type runResult struct {
	steps           int
	converged       bool
	tunnelingEvents int
}

// Evaluate computes fitness for a normalized [0,1] parameter vector (lower
// is better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	raw := fe.vector.Denormalize(x)
	prm := energy.DefaultParams()
	fe.vector.ApplyToParams(&prm, raw)

	results := make([]runResult, len(fe.scenarios))
	for i, scn := range fe.scenarios {
		results[i] = fe.runSimulation(scn, prm)
	}

	var totalSteps float64
	var totalTunneling int
	var nonConverged int
	for _, r := range results {
		totalSteps += float64(r.steps)
		totalTunneling += r.tunnelingEvents
		if !r.converged {
			nonConverged++
		}
	}

	n := float64(len(results))
	meanSteps := totalSteps / n
	return meanSteps + float64(nonConverged)*nonConvergePenalty + float64(totalTunneling)*tunnelingWeight
}

// runSimulation runs scn to convergence or the step budget, whichever comes
// first.
func (fe *FitnessEvaluator) runSimulation(scn *scenario.Scenario, prm energy.Params) runResult {
	engine := sim.New(scn, sim.Options{
		Dt:       fe.dt,
		MaxSteps: fe.maxSteps,
		Params:   prm,
	})
	defer engine.Close()

	engine.Run()

	return runResult{
		steps:           engine.Iteration(),
		converged:       engine.Converged(),
		tunnelingEvents: engine.TunnelingEvents(),
	}
}
