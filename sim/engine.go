// Package sim orchestrates one implicit-crowd simulation: per-step
// preferred-velocity computation, state packing, L-BFGS minimization,
// unpacking, advection, and rebinning. Grounded on
// original_source/library/src/ImplicitEngine.cpp's updateSimulation/
// initializeProblem/finalizeProblem, restructured as a single package
// rather than a class hierarchy.
package sim

import (
	"math/rand"

	"github.com/pthm-cable/crowdsim/agent"
	"github.com/pthm-cable/crowdsim/energy"
	"github.com/pthm-cable/crowdsim/lbfgs"
	"github.com/pthm-cable/crowdsim/scenario"
	"github.com/pthm-cable/crowdsim/spatial"
	"github.com/pthm-cable/crowdsim/telemetry"
	"github.com/pthm-cable/crowdsim/vecmath"
)

// seed is the source's hardcoded RNG seed (srand(23)), kept as a
// constructor default rather than process-global state (see DESIGN.md).
const defaultSeed = 23

// Engine owns the agent population, the spatial index, and the energy
// parameters for one simulation run.
type Engine struct {
	Dt       float64
	MaxSteps int

	Params energy.Params
	DivX   int
	DivY   int

	Agents []*agent.Agent
	grid   *spatial.Grid[*agent.Agent]
	rng    *rand.Rand
	pool   *energy.Pool

	// Perf is an optional perf-phase collector; nil disables instrumentation
	// entirely rather than paying timer overhead for a feature nobody asked
	// for (cmd/crowdsim wires one in only when -log-level=debug is set).
	Perf *telemetry.PerfCollector

	globalTime      float64
	iteration       int
	tunnelingEvents int
}

// Options configures New beyond the scenario-derived agent population.
type Options struct {
	Dt       float64
	MaxSteps int
	Params   energy.Params
	DivX     int // bins along x; defaults to 10, matching Main.cpp's setupScenario
	DivY     int // bins along y; defaults to 10
	Seed     int64
}

// New builds an Engine from a parsed scenario and options.
func New(scn *scenario.Scenario, opts Options) *Engine {
	divX, divY := opts.DivX, opts.DivY
	if divX <= 0 {
		divX = 10
	}
	if divY <= 0 {
		divY = 10
	}
	seed := opts.Seed
	if seed == 0 {
		seed = defaultSeed
	}

	e := &Engine{
		Dt:       opts.Dt,
		MaxSteps: opts.MaxSteps,
		Params:   opts.Params,
		DivX:     divX,
		DivY:     divY,
		rng:      rand.New(rand.NewSource(seed)),
		pool:     energy.NewPool(0),
	}
	e.grid = spatial.New[*agent.Agent](scn.Origin, scn.Size, divX, divY)

	for _, spec := range scn.Agents {
		a := agent.New(spec.ID, spec.GroupID, spec.Position, spec.Goal, spec.PreferredSpeed, spec.Radius, spec.GoalRadius*spec.GoalRadius)
		h := e.grid.Insert(a)
		e.grid.Update(h, a.Position.X, a.Position.Y)
		a.Proxy = h
		e.Agents = append(e.Agents, a)
	}
	return e
}

// Converged reports whether every agent has reached its goal.
func (e *Engine) Converged() bool {
	for _, a := range e.Agents {
		if a.Enabled {
			return false
		}
	}
	return true
}

// Done reports whether the simulation should stop: all agents disabled, or
// the iteration budget is exhausted.
func (e *Engine) Done() bool {
	return e.Converged() || e.iteration >= e.MaxSteps
}

// Step advances the simulation by one dt, per the five-stage sequence in
// SPEC_FULL.md's Simulation Loop component.
func (e *Engine) Step() {
	if e.Perf != nil {
		e.Perf.StartStep()
		e.Perf.StartPhase(telemetry.PhasePreferredVelocity)
	}
	active := e.computePreferredVelocities()
	if len(active) == 0 {
		if e.Perf != nil {
			e.Perf.EndStep()
		}
		e.globalTime += e.Dt
		e.iteration++
		return
	}

	n := len(active)
	pos := make([]float64, 2*n)
	vel := make([]float64, 2*n)
	vGoal := make([]float64, 2*n)
	radius := make([]float64, n)
	nn := make([][]int, n)

	for i, a := range active {
		a.ActiveID = i
		pos[i], pos[i+n] = a.Position.X, a.Position.Y
		vel[i], vel[i+n] = a.Velocity.X, a.Velocity.Y
		vGoal[i], vGoal[i+n] = a.PreferredVelocity.X, a.PreferredVelocity.Y
		radius[i] = a.Radius
	}

	if e.Perf != nil {
		e.Perf.StartPhase(telemetry.PhaseNeighborQuery)
	}
	var neighborBuf []*agent.Agent
	for i, a := range active {
		neighborBuf = e.grid.Query(a.Position, e.Params.NeighborDist, neighborBuf[:0])
		ids := make([]int, 0, len(neighborBuf))
		for _, other := range neighborBuf {
			if other == a {
				continue
			}
			ids = append(ids, other.ActiveID)
		}
		nn[i] = ids
	}

	vNew := make([]float64, 2*n)

	// energy_eval covers both the energy/gradient evaluations and the line
	// search that drives them, since lbfgs.Minimize interleaves the two and
	// does not expose a seam to time them apart.
	if e.Perf != nil {
		e.Perf.StartPhase(telemetry.PhaseEnergyEval)
	}
	problem := energy.NewProblem(e.Dt, e.Params, pos, vel, vGoal, radius, nn, e.pool)
	opt := lbfgs.New(2*n, e.Params.LBFGSWindow, e.Params.NewtonIter, e.Params.EpsX)
	result := opt.Minimize(vNew, func(x, grad []float64) float64 {
		v, _ := problem.ValueGrad(x, grad)
		return v
	}, func(x []float64) float64 {
		v, _ := problem.Value(x)
		return v
	})
	e.tunnelingEvents += problem.TunnelingEvents()

	if e.Perf != nil {
		e.Perf.StartPhase(telemetry.PhaseAdvection)
	}
	for i, a := range active {
		v := vecmath.Vec2{X: result.X[i], Y: result.X[i+n]}
		a.Advect(v, e.Dt)
		e.grid.Update(a.Proxy, a.Position.X, a.Position.Y)
		a.ActiveID = -1
	}

	if e.Perf != nil {
		e.Perf.EndStep()
	}
	e.globalTime += e.Dt
	e.iteration++
}

// TunnelingEvents returns the cumulative count of energy evaluations across
// every step so far that found at least one tunneling pair.
func (e *Engine) TunnelingEvents() int { return e.tunnelingEvents }

// computePreferredVelocities runs agent.ComputePreferredVelocity for every
// enabled agent, disabling those that have reached their goal and
// releasing their spatial proxy, and returns the remaining active agents in
// a stable, insertion order.
func (e *Engine) computePreferredVelocities() []*agent.Agent {
	active := make([]*agent.Agent, 0, len(e.Agents))
	for _, a := range e.Agents {
		if !a.Enabled {
			continue
		}
		a.ComputePreferredVelocity(e.Dt)
		if !a.Enabled {
			e.grid.Remove(a.Proxy)
			a.Proxy = spatial.NullHandle
			continue
		}
		active = append(active, a)
	}
	return active
}

// Run executes steps until Done reports true.
func (e *Engine) Run() {
	for !e.Done() {
		e.Step()
	}
}

// Close releases the engine's worker pool. Call once the engine is no
// longer needed.
func (e *Engine) Close() {
	e.pool.Stop()
}

// GlobalTime returns total elapsed simulated time.
func (e *Engine) GlobalTime() float64 { return e.globalTime }

// Iteration returns the number of completed steps.
func (e *Engine) Iteration() int { return e.iteration }
