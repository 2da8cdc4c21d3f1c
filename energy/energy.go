package energy

import (
	"sync/atomic"

	"github.com/pthm-cable/crowdsim/vecmath"
)

// Problem packs one time step's fixed context (positions, velocities, goal
// velocities, radii, and precomputed neighbor lists of the currently active
// agents) so the optimizer can repeatedly evaluate E and its gradient at
// different candidate velocity vectors v. Grounded on
// ImplicitEngine::initializeProblem/value/finalizeProblem.
type Problem struct {
	Params Params
	Dt     float64

	N      int
	Pos    []float64 // len 2N: x0..x_{N-1}, y0..y_{N-1}
	Vel    []float64
	VGoal  []float64
	Radius []float64
	NN     [][]int // NN[i] lists every neighbor of i, both directions

	pool    *Pool
	ownPool bool

	// tunnelingEvents counts how many evaluate calls found at least one
	// tunneling pair, a soft proxy for how hard the line search had to
	// fight infeasibility this step (surfaced via TunnelingEvents, used by
	// the offline tuner's fitness function).
	tunnelingEvents int
}

// TunnelingEvents returns the number of Value/ValueGrad calls so far that
// found at least one tunneling pair and returned Infeasible.
func (p *Problem) TunnelingEvents() int {
	return p.tunnelingEvents
}

// NewProblem packs one step's fixed context. pool is a Pool the caller owns,
// typically for the engine's whole lifetime rather than per-problem; pass
// nil to have the Problem spin up and tear down its own for this call only.
func NewProblem(dt float64, prm Params, pos, vel, vGoal, radius []float64, nn [][]int, pool *Pool) *Problem {
	ownPool := pool == nil
	if ownPool {
		pool = NewPool(0)
	}
	return &Problem{
		Params:  prm,
		Dt:      dt,
		N:       len(radius),
		Pos:     pos,
		Vel:     vel,
		VGoal:   vGoal,
		Radius:  radius,
		NN:      nn,
		pool:    pool,
		ownPool: ownPool,
	}
}

// Close releases the problem's worker pool if NewProblem created it. When a
// caller-supplied pool was passed in, this is a no-op — the caller owns its
// lifetime.
func (p *Problem) Close() {
	if p.ownPool {
		p.pool.Stop()
	}
}

func (p *Problem) vecAt(v []float64, i int) vecmath.Vec2 {
	return vecmath.Vec2{X: v[i], Y: v[i+p.N]}
}

// Value returns E(v) and whether the candidate is feasible (no tunneling
// pair). When infeasible the returned value is Infeasible.
func (p *Problem) Value(v []float64) (float64, bool) {
	return p.evaluate(v, nil)
}

// ValueGrad returns E(v), writes its gradient into grad (len 2N, zeroed by
// the caller or by this call), and reports feasibility.
func (p *Problem) ValueGrad(v []float64, grad []float64) (float64, bool) {
	for i := range grad {
		grad[i] = 0
	}
	return p.evaluate(v, grad)
}

// evaluate is the shared engine for Value and ValueGrad: grad == nil means
// energy-only (the gradient terms are still computed internally — see
// DESIGN.md for why this trades the source's separate fast path for a
// single, simpler implementation — but discarded rather than written back).
func (p *Problem) evaluate(v []float64, grad []float64) (energy float64, feasible bool) {
	n := p.N
	var infeasible atomic.Bool

	reduce := func(lo, hi int) float64 {
		var sum float64
		for i := lo; i < hi; i++ {
			if infeasible.Load() {
				return sum
			}
			vi := p.vecAt(v, i)
			vel := p.vecAt(p.Vel, i)
			vGoal := p.vecAt(p.VGoal, i)

			dInertial := vecmath.Sub(vi, vel)
			dGoal := vecmath.Sub(vi, vGoal)
			sum += 0.5*p.Dt*dInertial.LenSq() + 0.5*p.Params.Ksi*dGoal.LenSq()

			if grad != nil {
				g := vecmath.Add(vecmath.Scale(dInertial, p.Dt), vecmath.Scale(dGoal, p.Params.Ksi))
				grad[i] += g.X
				grad[i+n] += g.Y
			}

			posI := p.vecAt(p.Pos, i)
			for _, j := range p.NN[i] {
				posJ := p.vecAt(p.Pos, j)
				vj := p.vecAt(v, j)

				dist := minDistanceEnergy(posI, posJ, vi, vj, p.Radius[i], p.Radius[j], p.Dt, p.Params.Eta, p.Params.ReplicateShadowBug)
				if dist.tunneling {
					infeasible.Store(true)
					return sum
				}
				ttc := inverseTTCEnergy(posI, posJ, vi, vj, p.Radius[i], p.Radius[j], p.Dt, p.Params)
				if ttc.tunneling {
					infeasible.Store(true)
					return sum
				}

				if j > i {
					sum += dist.energy + ttc.energy
				}
				if grad != nil {
					grad[i] += dist.gradI.X + ttc.gradI.X
					grad[i+n] += dist.gradI.Y + ttc.gradI.Y
				}
			}
		}
		return sum
	}

	if n < parallelThreshold {
		sum := reduce(0, n)
		if infeasible.Load() {
			p.tunnelingEvents++
			return Infeasible, false
		}
		return sum, true
	}

	partials := p.pool.runReduce(n, reduce)

	if infeasible.Load() {
		p.tunnelingEvents++
		return Infeasible, false
	}
	var total float64
	for _, s := range partials {
		total += s
	}
	return total, true
}
