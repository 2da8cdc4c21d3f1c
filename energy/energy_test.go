package energy

import (
	"math"
	"testing"
)

func TestValueGradNoNeighborsClosedFormIsStationary(t *testing.T) {
	dt, ksi := 0.2, 2.0
	vel := []float64{0.5, -0.2}
	vGoal := []float64{1.0, 0.3}
	radius := []float64{0.3}
	pos := []float64{0, 0}
	nn := [][]int{{}}

	prm := DefaultParams()
	prm.Ksi = ksi
	prob := NewProblem(dt, prm, pos, vel, vGoal, radius, nn, nil)
	defer prob.Close()

	closed := []float64{
		(dt*vel[0] + ksi*vGoal[0]) / (dt + ksi),
		(dt*vel[1] + ksi*vGoal[1]) / (dt + ksi),
	}
	grad := make([]float64, 2)
	_, feasible := prob.ValueGrad(closed, grad)
	if !feasible {
		t.Fatal("expected feasible with no neighbors")
	}
	for i, g := range grad {
		if math.Abs(g) > 1e-9 {
			t.Errorf("grad[%d] = %v, want ~0 at the closed-form stationary point", i, g)
		}
	}
}

func TestValueNoNeighborsMatchesQuadraticFormula(t *testing.T) {
	dt, ksi := 0.2, 2.0
	vel := []float64{0.5, -0.2}
	vGoal := []float64{1.0, 0.3}
	radius := []float64{0.3}
	pos := []float64{0, 0}
	nn := [][]int{{}}

	prm := DefaultParams()
	prm.Ksi = ksi
	prob := NewProblem(dt, prm, pos, vel, vGoal, radius, nn, nil)
	defer prob.Close()

	v := []float64{0.2, 0.1}
	got, feasible := prob.Value(v)
	if !feasible {
		t.Fatal("expected feasible")
	}
	dInertialX, dInertialY := v[0]-vel[0], v[1]-vel[1]
	dGoalX, dGoalY := v[0]-vGoal[0], v[1]-vGoal[1]
	want := 0.5*dt*(dInertialX*dInertialX+dInertialY*dInertialY) + 0.5*ksi*(dGoalX*dGoalX+dGoalY*dGoalY)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("Value = %v, want %v", got, want)
	}
}

func TestValueTunnelingReturnsInfeasible(t *testing.T) {
	dt := 0.2
	pos := []float64{-3, 3, 0, 0}
	vel := []float64{0, 0, 0, 0}
	vGoal := []float64{0, 0, 0, 0}
	radius := []float64{0.3, 0.3}
	nn := [][]int{{1}, {0}}

	prob := NewProblem(dt, DefaultParams(), pos, vel, vGoal, radius, nn, nil)
	defer prob.Close()

	// A huge closing velocity sweeps straight through the other disc.
	v := []float64{100, -100, 0, 0}
	got, feasible := prob.Value(v)
	if feasible || got != Infeasible {
		t.Errorf("Value = %v, feasible = %v; want Infeasible, false", got, feasible)
	}
}

// Above parallelThreshold, the chunked worker-pool path must produce the
// same aggregate energy as the same computation would produce run
// sequentially — both paths share the same per-agent reduce closure, so
// this mostly guards against a chunk-boundary bug in runReduce.
func TestValueParallelPathMatchesPerAgentSum(t *testing.T) {
	const n = 96
	pos := make([]float64, 2*n)
	vel := make([]float64, 2*n)
	vGoal := make([]float64, 2*n)
	radius := make([]float64, n)
	nn := make([][]int, n)
	for i := 0; i < n; i++ {
		pos[i] = float64(i) * 2
		pos[i+n] = 0
		vel[i] = 0.1
		vGoal[i] = 1.0
		radius[i] = 0.3
		nn[i] = nil
	}

	prob := NewProblem(0.2, DefaultParams(), pos, vel, vGoal, radius, nn, nil)
	defer prob.Close()

	v := make([]float64, 2*n)
	for i := range v {
		v[i] = 0.05
	}
	got, feasible := prob.Value(v)
	if !feasible {
		t.Fatal("expected feasible")
	}

	var want float64
	for i := 0; i < n; i++ {
		dInertialX, dInertialY := v[i]-vel[i], v[i+n]-vel[i+n]
		dGoalX, dGoalY := v[i]-vGoal[i], v[i+n]-vGoal[i+n]
		want += 0.5*0.2*(dInertialX*dInertialX+dInertialY*dInertialY) + 0.5*DefaultParams().Ksi*(dGoalX*dGoalX+dGoalY*dGoalY)
	}
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("parallel Value = %v, want %v", got, want)
	}
}
