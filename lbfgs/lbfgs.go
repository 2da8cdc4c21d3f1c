// Package lbfgs implements the limited-memory BFGS two-loop recursion with
// Hessian-scaling restart and an Armijo backtracking line search. Grounded
// line-for-line on original_source/library/src/ImplicitEngine.cpp's
// minimize() and linesearch(). It has no dependency on the energy package:
// callers supply plain value/gradient closures, matching how
// gonum.org/v1/gonum/optimize's Problem.Func/Grad are wired in
// pthm-soup/cmd/optimize/main.go.
package lbfgs

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// descentThreshold is the minimum acceptable <q, grad> before a step is
// considered to have lost descent and the optimizer restarts from steepest
// descent. Matches the source's hardcoded 1e-4.
const descentThreshold = 1e-4

// Optimizer runs L-BFGS(window) over a fixed dimension. It is reusable
// across many Minimize calls (its S/Y history backing is preallocated
// once), but each Minimize call starts from empty history, matching the
// one-solve-per-simulation-step lifecycle in the source.
type Optimizer struct {
	dim     int
	window  int
	maxIter int
	epsX    float64

	s, y *mat.Dense // dim x window, column per retained pair
	rho  []float64  // rho[slot] = 1 / <s_slot, y_slot>

	filled     int // number of valid pairs currently retained, <= window
	nextSlot   int // ring-buffer write position
	totalPairs int // total pairs ever pushed since the last reset
	gamma      float64
}

// Result reports how a Minimize call ended.
type Result struct {
	X          []float64
	Iterations int
	Converged  bool // true if stagnation (||dx||_inf < epsX) was reached
	FinalValue float64
}

// New constructs an Optimizer for a problem of the given dimension. window
// is the L-BFGS memory depth m, maxIter the outer iteration budget
// (newton_iter), epsX the stagnation threshold on ||dx||_inf.
func New(dim, window, maxIter int, epsX float64) *Optimizer {
	return &Optimizer{
		dim:     dim,
		window:  window,
		maxIter: maxIter,
		epsX:    epsX,
		s:       mat.NewDense(dim, window, nil),
		y:       mat.NewDense(dim, window, nil),
		rho:     make([]float64, window),
		gamma:   1,
	}
}

func (o *Optimizer) resetHistory() {
	o.filled = 0
	o.nextSlot = 0
	o.totalPairs = 0
}

// slotFromNewest returns the ring-buffer column index of the j-th most
// recent retained pair (j=0 is newest).
func (o *Optimizer) slotFromNewest(j int) int {
	return ((o.nextSlot-1-j)%o.window + o.window) % o.window
}

func (o *Optimizer) push(s, y []float64) {
	slot := o.nextSlot
	o.s.SetCol(slot, s)
	o.y.SetCol(slot, y)
	o.rho[slot] = 1 / floats.Dot(s, y)
	o.nextSlot = (o.nextSlot + 1) % o.window
	o.totalPairs++
	if o.filled < o.window {
		o.filled++
	}
	o.gamma = floats.Dot(s, y) / floats.Dot(y, y)
}

// twoLoop applies the L-BFGS two-loop recursion to grad, returning the
// approximate Hessian-vector product H*grad using the currently retained
// history.
func (o *Optimizer) twoLoop(grad []float64) []float64 {
	q := append([]float64(nil), grad...)
	alpha := make([]float64, o.filled)

	for j := 0; j < o.filled; j++ {
		slot := o.slotFromNewest(j)
		sCol := mat.Col(nil, slot, o.s)
		yCol := mat.Col(nil, slot, o.y)
		a := o.rho[slot] * floats.Dot(sCol, q)
		alpha[j] = a
		floats.AddScaled(q, -a, yCol)
	}

	floats.Scale(o.gamma, q)

	for j := o.filled - 1; j >= 0; j-- {
		slot := o.slotFromNewest(j)
		sCol := mat.Col(nil, slot, o.s)
		yCol := mat.Col(nil, slot, o.y)
		beta := o.rho[slot] * floats.Dot(yCol, q)
		floats.AddScaled(q, alpha[j]-beta, sCol)
	}
	return q
}

// Minimize finds a local minimizer of a scalar function starting at x0.
// valueGrad evaluates both the function and its gradient (written into the
// grad argument) at a point; value evaluates the function alone, used by
// the line search's extra trial points.
func (o *Optimizer) Minimize(x0 []float64, valueGrad func(x, grad []float64) float64, value func(x []float64) float64) Result {
	dim := o.dim
	o.resetHistory()
	o.gamma = 1

	x := append([]float64(nil), x0...)
	grad := make([]float64, dim)
	f := valueGrad(x, grad)

	alphaInit := 1.0
	budget := o.maxIter
	iter := 0
	converged := false

	for iter < budget {
		q := o.twoLoop(grad)

		if floats.Dot(q, grad) < descentThreshold {
			q = append([]float64(nil), grad...)
			o.resetHistory()
			budget -= iter
			iter = 0
			infNorm := floats.Norm(grad, math.Inf(1))
			if infNorm == 0 {
				infNorm = 1
			}
			alphaInit = math.Min(1, 1/infNorm)
		}

		dir := make([]float64, dim)
		for i := range dir {
			dir[i] = -q[i]
		}

		alpha := lineSearch(x, f, grad, dir, alphaInit, value)

		dx := make([]float64, dim)
		xNew := make([]float64, dim)
		for i := range xNew {
			dx[i] = alpha * dir[i]
			xNew[i] = x[i] + dx[i]
		}

		iter++

		if floats.Norm(dx, math.Inf(1)) < o.epsX {
			x = xNew
			converged = true
			break
		}

		gradNew := make([]float64, dim)
		fNew := valueGrad(xNew, gradNew)

		y := make([]float64, dim)
		for i := range y {
			y[i] = gradNew[i] - grad[i]
		}
		o.push(dx, y)

		x, f, grad = xNew, fNew, gradNew
		alphaInit = 1.0
	}

	return Result{X: x, Iterations: iter, Converged: converged, FinalValue: f}
}
