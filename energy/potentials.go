package energy

import (
	"math"

	"github.com/pthm-cable/crowdsim/vecmath"
)

// minDistanceResult is the outcome of evaluating E_dist for one ordered
// pair (i, j) from agent i's point of view.
type minDistanceResult struct {
	tunneling bool
	energy    float64
	gradI     vecmath.Vec2 // d(energy)/d(v_i)
}

// minDistanceEnergy implements ImplicitEngine::min_distance_energy: the
// swept closest-approach distance between two discs moving at constant
// velocity over [0, dt], penalized once they are closer than R = ri+rj.
func minDistanceEnergy(posI, posJ, vI, vJ vecmath.Vec2, rI, rJ, dt, eta float64, replicateShadowBug bool) minDistanceResult {
	X := vecmath.Sub(posJ, posI)
	V := vecmath.Sub(vI, vJ)
	R := rI + rJ

	speedSq := V.LenSq()
	rate := vecmath.Dot(X, V)
	tti := clamp(rate/(speedSq+1e-4), 0, dt)

	closest := vecmath.Sub(vecmath.Scale(V, tti), X)
	d2 := closest.LenSq()
	R2 := R * R

	if d2 <= R2 {
		return minDistanceResult{tunneling: true, energy: Infeasible}
	}

	d := math.Sqrt(d2)
	distance := d - R
	energy := math.Min(eta/distance, Infeasible)

	// Gradient contribution only exists while agents are approaching; at
	// tti's clamp boundaries (0 or dt) its derivative w.r.t. v_i is zero.
	if rate <= 0 {
		return minDistanceResult{energy: energy}
	}

	// original_source shadows the outer zero-initialized tti_prime_x/
	// tti_prime_y with new block-local variables inside this branch, so the
	// values actually used in the gradient below remain zero. Reproduced
	// when ReplicateShadowBug is set; see DESIGN.md open-question decisions.
	var ttiPrimeX, ttiPrimeY float64
	if tti > 0 && tti < dt && !replicateShadowBug {
		inv := 1 / speedSq
		ttiPrimeX = (X.X - 2*tti*V.X) * inv
		ttiPrimeY = (X.Y - 2*tti*V.Y) * inv
	}

	cv := vecmath.Dot(closest, V)
	coef := -eta / (distance * distance * d)
	gradX := coef * (tti*closest.X + cv*ttiPrimeX)
	gradY := coef * (tti*closest.Y + cv*ttiPrimeY)

	return minDistanceResult{
		energy: energy,
		gradI:  vecmath.Vec2{X: gradX, Y: gradY},
	}
}

// ttcResult is the outcome of evaluating E_ttc for one ordered pair (i, j)
// from agent i's point of view.
type ttcResult struct {
	tunneling bool
	energy    float64
	gradI     vecmath.Vec2
}

// inverseTTCEnergy implements ImplicitEngine::inverse_ttc_energy: an
// anticipatory potential over the reciprocal time-to-collision evaluated at
// the predicted end-of-step positions.
func inverseTTCEnergy(posI, posJ, vI, vJ vecmath.Vec2, rI, rJ, dt float64, prm Params) ttcResult {
	X := vecmath.Sub(vecmath.Add(posJ, vecmath.Scale(vJ, dt)), vecmath.Add(posI, vecmath.Scale(vI, dt)))
	V := vecmath.Sub(vI, vJ)
	R := rI + rJ

	x := X.Len()
	if x == 0 {
		return ttcResult{}
	}
	xHat := vecmath.Scale(X, 1/x)
	vp := vecmath.Dot(xHat, V)
	if vp <= 0 {
		return ttcResult{}
	}

	vt2 := V.LenSq() - vp*vp
	if vt2 < 0 {
		vt2 = 0
	}
	vt := math.Sqrt(vt2)

	xMinR := x*x - R*R
	if xMinR <= 0 {
		// Predicted end-of-step positions already overlap; treat the same
		// as a swept tunneling event so the line search backtracks.
		return ttcResult{tunneling: true, energy: Infeasible}
	}

	c1 := math.Sqrt(1-prm.Eps*prm.Eps) * R
	sqrtXMinR := math.Sqrt(xMinR)
	vtStar := c1 * vp / sqrtXMinR

	// partials evaluates the derivative of every shared intermediate
	// quantity w.r.t. one component of v_i, given that component's unit
	// basis vector e = (ex, ey). X depends on v_i only through the
	// predicted-position term, dX/dv_i = -dt*e.
	partials := func(ex, ey float64) (dx, dvp, dvt, dxMinR, dvtStar float64) {
		dXk := vecmath.Vec2{X: -dt * ex, Y: -dt * ey}
		dx = vecmath.Dot(xHat, dXk)
		dXhatK := vecmath.Scale(vecmath.Sub(dXk, vecmath.Scale(xHat, dx)), 1/x)
		dvp = vecmath.Dot(dXhatK, V) + (xHat.X*ex + xHat.Y*ey)
		dvt2 := 2*(V.X*ex+V.Y*ey) - 2*vp*dvp
		if vt > 0 {
			dvt = dvt2 / (2 * vt)
		}
		dxMinR = 2 * x * dx
		dvtStar = c1*dvp/sqrtXMinR - 0.5*c1*vp*dxMinR/(xMinR*sqrtXMinR)
		return
	}

	var invTTC float64
	var dInvTTC [2]float64
	if vt < vtStar {
		discSq := R*R*vp*vp - xMinR*vt2
		if discSq < 0 {
			discSq = 0
		}
		discr := math.Sqrt(discSq)
		invTTC = (x*vp + discr) / xMinR

		for k, e := range [2][2]float64{{1, 0}, {0, 1}} {
			dx, dvp, dvt, dxMinR, _ := partials(e[0], e[1])
			dDiscSq := 2*R*R*vp*dvp - (dxMinR*vt2 + xMinR*2*vt*dvt)
			var dDiscr float64
			if discr > 0 {
				dDiscr = dDiscSq / (2 * discr)
			}
			dNum := dx*vp + x*dvp + dDiscr
			dInvTTC[k] = (dNum*xMinR - (x*vp+discr)*dxMinR) / (xMinR * xMinR)
		}
	} else {
		c2 := math.Sqrt(1-prm.Eps*prm.Eps) / prm.Eps
		invTTC = (x+prm.Eps*R)*vp/xMinR - c2*(vt-vtStar)/sqrtXMinR

		for k, e := range [2][2]float64{{1, 0}, {0, 1}} {
			dx, dvp, dvt, dxMinR, dvtStar := partials(e[0], e[1])
			p := x + prm.Eps*R
			dA := (dx*vp+p*dvp)/xMinR - (p*vp*dxMinR)/(xMinR*xMinR)
			dB := c2 * ((dvt-dvtStar)/sqrtXMinR - 0.5*(vt-vtStar)*dxMinR/(xMinR*sqrtXMinR))
			dInvTTC[k] = dA - dB
		}
	}

	if invTTC <= 0 {
		return ttcResult{}
	}

	mult := prm.K * math.Pow(invTTC, prm.P-1) * math.Exp(-1/(invTTC*prm.T0))
	energy := mult * invTTC
	dEnergyDInvTTC := mult * (prm.P + 1/(prm.T0*invTTC))

	return ttcResult{
		energy: energy,
		gradI:  vecmath.Vec2{X: dEnergyDInvTTC * dInvTTC[0], Y: dEnergyDInvTTC * dInvTTC[1]},
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
