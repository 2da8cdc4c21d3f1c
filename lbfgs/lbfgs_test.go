package lbfgs

import (
	"math"
	"testing"
)

// quadraticBowl is f(x) = 0.5 * sum((x_i - target_i)^2), a simple convex
// test function with a unique, known minimizer.
func quadraticBowl(target []float64) (valueGrad func(x, grad []float64) float64, value func(x []float64) float64) {
	valueGrad = func(x, grad []float64) float64 {
		var f float64
		for i := range x {
			d := x[i] - target[i]
			grad[i] = d
			f += 0.5 * d * d
		}
		return f
	}
	value = func(x []float64) float64 {
		var f float64
		for i := range x {
			d := x[i] - target[i]
			f += 0.5 * d * d
		}
		return f
	}
	return
}

func TestMinimizeConvergesOnQuadraticBowl(t *testing.T) {
	target := []float64{3, -2, 0.5, 7}
	vg, v := quadraticBowl(target)

	opt := New(len(target), 5, 100, 1e-8)
	res := opt.Minimize([]float64{0, 0, 0, 0}, vg, v)

	if !res.Converged {
		t.Fatalf("expected convergence within budget, got %d iterations, final value %v", res.Iterations, res.FinalValue)
	}
	for i, want := range target {
		if math.Abs(res.X[i]-want) > 1e-4 {
			t.Errorf("X[%d] = %v, want %v", i, res.X[i], want)
		}
	}
}

func TestMinimizeIsReusableAcrossCalls(t *testing.T) {
	opt := New(2, 5, 100, 1e-8)

	target1 := []float64{1, 1}
	vg1, v1 := quadraticBowl(target1)
	res1 := opt.Minimize([]float64{0, 0}, vg1, v1)
	if !res1.Converged {
		t.Fatalf("first solve did not converge: %+v", res1)
	}

	target2 := []float64{-5, 9}
	vg2, v2 := quadraticBowl(target2)
	res2 := opt.Minimize([]float64{0, 0}, vg2, v2)
	if !res2.Converged {
		t.Fatalf("second solve did not converge: %+v", res2)
	}
	for i, want := range target2 {
		if math.Abs(res2.X[i]-want) > 1e-4 {
			t.Errorf("second solve X[%d] = %v, want %v", i, res2.X[i], want)
		}
	}
}

// A quartic with a much sharper minimum tends to force at least one
// descent-loss restart early in the solve (the initial L-BFGS direction can
// overshoot badly), exercising the restart path without being contrived
// from raw history state.
func TestMinimizeHandlesRestartWithoutInfiniteLoop(t *testing.T) {
	valueGrad := func(x, grad []float64) float64 {
		grad[0] = 4 * x[0] * x[0] * x[0]
		grad[1] = 4 * x[1] * x[1] * x[1]
		return x[0]*x[0]*x[0]*x[0] + x[1]*x[1]*x[1]*x[1]
	}
	value := func(x []float64) float64 {
		return x[0]*x[0]*x[0]*x[0] + x[1]*x[1]*x[1]*x[1]
	}

	opt := New(2, 5, 100, 1e-8)
	res := opt.Minimize([]float64{10, -10}, valueGrad, value)

	if res.Iterations > 100 {
		t.Fatalf("exceeded iteration budget: %d", res.Iterations)
	}
	if math.Abs(res.X[0]) > 1e-2 || math.Abs(res.X[1]) > 1e-2 {
		t.Errorf("expected convergence near origin, got %v", res.X)
	}
}

// TestMinimizeRestartPreservesTotalIterationBudget checks the invariant a
// restart must not violate: total outer iterations executed across every
// segment (before and after each history reset) equals NewtonIter exactly,
// the same way the source's "maxiter -= k; k = 0" leaves total loop-body
// executions unchanged (ImplicitEngine::minimize). epsX is set to a
// negative value so ||dx||_inf < epsX can never hold, ruling out an early
// stagnation break and forcing the run to consume its entire budget; the
// quartic below is documented above to force at least one restart early in
// the solve.
func TestMinimizeRestartPreservesTotalIterationBudget(t *testing.T) {
	valueGrad := func(x, grad []float64) float64 {
		grad[0] = 4 * x[0] * x[0] * x[0]
		grad[1] = 4 * x[1] * x[1] * x[1]
		return x[0]*x[0]*x[0]*x[0] + x[1]*x[1]*x[1]*x[1]
	}
	value := func(x []float64) float64 {
		return x[0]*x[0]*x[0]*x[0] + x[1]*x[1]*x[1]*x[1]
	}

	calls := 0
	countedValueGrad := func(x, grad []float64) float64 {
		calls++
		return valueGrad(x, grad)
	}

	const maxIter = 20
	opt := New(2, 5, maxIter, -1)
	res := opt.Minimize([]float64{10, -10}, countedValueGrad, value)

	if res.Converged {
		t.Fatalf("epsX = -1 should make stagnation-based convergence impossible, got Converged = true")
	}
	// calls counts every valueGrad invocation: one before the loop starts
	// plus one per completed outer iteration across every restart segment.
	want := maxIter + 1
	if calls != want {
		t.Errorf("total valueGrad calls = %d, want %d (NewtonIter+1); a restart must not shrink the effective budget", calls, want)
	}
}

func TestLineSearchAcceptsInitialStepWhenAlreadyDescending(t *testing.T) {
	x0 := []float64{0, 0}
	grad := []float64{1, 1}
	dir := []float64{-1, -1}
	value := func(x []float64) float64 {
		return 0.5*x[0]*x[0] + 0.5*x[1]*x[1]
	}
	alpha := lineSearch(x0, 0, grad, dir, 1.0, value)
	if alpha <= 0 {
		t.Errorf("expected a positive accepted step, got %v", alpha)
	}
}

func TestLineSearchBacktracksOnInfeasibleSentinel(t *testing.T) {
	x0 := []float64{0}
	grad := []float64{-1}
	dir := []float64{1}
	// value is a sentinel-return function that only becomes feasible for
	// small steps, forcing the quadratic/cubic backtracking path to engage.
	value := func(x []float64) float64 {
		if x[0] > 0.05 {
			return 9e9
		}
		return x[0]
	}
	alpha := lineSearch(x0, 0, grad, dir, 1.0, value)
	if alpha <= 0 || alpha > 0.05 {
		t.Errorf("expected a small accepted step after backtracking, got %v", alpha)
	}
}
