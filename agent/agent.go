// Package agent implements per-agent state: goal-seeking preferred velocity
// and post-optimization advection. Grounded on
// original_source/library/src/ImplicitAgent.cpp (doStep/update/init).
package agent

import (
	"github.com/pthm-cable/crowdsim/spatial"
	"github.com/pthm-cable/crowdsim/vecmath"
)

// orientationSmoothing is the exponential-moving-average coefficient applied
// to the heading each step, matching ImplicitAgent::update's hardcoded 0.4.
const orientationSmoothing = 0.4

// Agent is one crowd member. It is exclusively owned by a sim.Engine, which
// is responsible for creating/destroying its spatial proxy and driving the
// per-step sequence (ComputePreferredVelocity, then, after the optimizer
// runs, Advect).
type Agent struct {
	ID      int
	GroupID int

	Position          vecmath.Vec2
	Velocity          vecmath.Vec2
	Goal              vecmath.Vec2
	PreferredVelocity vecmath.Vec2
	Orientation       vecmath.Vec2

	Radius         float64
	PreferredSpeed float64
	GoalRadiusSq   float64

	// Enabled is false once the agent has entered its goal disc. A disabled
	// agent is excluded from packing and owns no proxy.
	Enabled bool

	// ActiveID is the dense rank among currently-enabled agents, reassigned
	// every pack; -1 when disabled.
	ActiveID int

	// Proxy is the agent's handle into the simulation's spatial index, or
	// spatial.NullHandle if the agent currently owns none (never enabled
	// yet, or disabled).
	Proxy spatial.Handle

	// Path and Orientations are append-only per-step snapshots, one entry
	// per simulated step starting at construction.
	Path         []vecmath.Vec2
	Orientations []vecmath.Vec2
}

// New constructs an enabled agent at position, seeking goal, and records its
// initial trajectory snapshot. Orientation is initialized to the unit vector
// from position to goal; if the two coincide the result is the zero vector,
// matching Eigen's normalized() on a zero vector in the source.
func New(id, groupID int, position, goal vecmath.Vec2, preferredSpeed, radius, goalRadiusSq float64) *Agent {
	a := &Agent{
		ID:             id,
		GroupID:        groupID,
		Position:       position,
		Goal:           goal,
		Orientation:    vecmath.Sub(goal, position).Normalized(),
		Radius:         radius,
		PreferredSpeed: preferredSpeed,
		GoalRadiusSq:   goalRadiusSq,
		Enabled:        true,
		ActiveID:       -1,
		Proxy:          spatial.NullHandle,
	}
	a.Path = append(a.Path, a.Position)
	a.Orientations = append(a.Orientations, a.Orientation)
	return a
}

// ComputePreferredVelocity implements ImplicitAgent::doStep: it disables the
// agent if it has already entered its goal disc, otherwise sets
// PreferredVelocity to the straight-line velocity toward the goal, clamped
// so the agent does not overshoot within this step.
func (a *Agent) ComputePreferredVelocity(dt float64) {
	d := vecmath.Sub(a.Goal, a.Position)
	distSq := d.LenSq()
	if distSq < a.GoalRadiusSq {
		a.Enabled = false
		a.PreferredVelocity = vecmath.Vec2{}
		return
	}
	step := a.PreferredSpeed * dt
	if step*step > distSq {
		a.PreferredVelocity = vecmath.Scale(d, 1/dt)
	} else {
		a.PreferredVelocity = vecmath.Scale(d, a.PreferredSpeed/d.Len())
	}
}

// Advect applies the optimizer's chosen velocity v: integrates position,
// smooths orientation toward v's heading (if nonzero), and appends a
// trajectory snapshot. It does not touch the spatial index; the caller is
// responsible for calling Grid.Update with the agent's new position.
func (a *Agent) Advect(v vecmath.Vec2, dt float64) {
	a.Velocity = v
	a.Position = vecmath.Add(a.Position, vecmath.Scale(v, dt))
	if !v.IsZero() {
		delta := vecmath.Sub(v.Normalized(), a.Orientation)
		a.Orientation = vecmath.Add(a.Orientation, vecmath.Scale(delta, orientationSmoothing))
	}
	a.Path = append(a.Path, a.Position)
	a.Orientations = append(a.Orientations, a.Orientation)
}
