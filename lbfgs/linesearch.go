package lbfgs

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// armijoC is the sufficient-decrease constant in the Armijo condition.
const armijoC = 1e-4

// lineSearch finds a step length alpha along dir from x0 satisfying the
// Armijo sufficient-decrease condition, backtracking with a quadratic fit
// on the first failure and a cubic fit thereafter. Grounded on
// ImplicitEngine::linesearch. It terminates (accepting whatever alpha it
// has reached) once alpha drops below alphaMin, which guarantees
// termination even when value returns an infeasibility sentinel.
func lineSearch(x0 []float64, phi0 float64, grad, dir []float64, alphaInit float64, value func([]float64) float64) float64 {
	phiPrime := floats.Dot(dir, grad)
	alphaMin := minStep(x0, dir)

	trial := make([]float64, len(x0))
	eval := func(alpha float64) float64 {
		for i := range trial {
			trial[i] = x0[i] + alpha*dir[i]
		}
		return value(trial)
	}

	accept := func(alpha, phi float64) bool {
		return phi <= phi0+armijoC*alpha*phiPrime
	}

	alpha := alphaInit
	phi := eval(alpha)
	if accept(alpha, phi) {
		return alpha
	}

	// First backtrack: quadratic model through (phi0, phiPrime) and the
	// failed trial.
	next := quadraticMin(phi0, phiPrime, alpha, phi)
	if next > 0.5*alpha {
		next = 0.5 * alpha
	}
	prevAlpha, prevPhi := alpha, phi
	alpha = math.Max(next, 0.1*alpha)

	for alpha >= alphaMin {
		phi = eval(alpha)
		if accept(alpha, phi) {
			return alpha
		}

		next = cubicMin(phi0, phiPrime, prevAlpha, prevPhi, alpha, phi)
		if next > 0.5*alpha {
			next = 0.5 * alpha
		}
		prevAlpha, prevPhi = alpha, phi
		alpha = math.Max(next, 0.1*alpha)
	}
	return alpha
}

// minStep computes the minimum allowed step length, below which the line
// search gives up and accepts whatever alpha it has reached.
func minStep(x0, dir []float64) float64 {
	var maxRatio float64
	for i := range x0 {
		denom := math.Max(math.Abs(x0[i]), 1)
		ratio := math.Abs(dir[i]) / denom
		if ratio > maxRatio {
			maxRatio = ratio
		}
	}
	if maxRatio == 0 {
		return 1e-3
	}
	return 1e-3 / maxRatio
}

// quadraticMin fits phi0, phiPrime (the value and slope at alpha=0) and one
// trial point (alpha, phi) with a quadratic and returns its minimizer.
func quadraticMin(phi0, phiPrime, alpha, phi float64) float64 {
	denom := 2 * (phi - phi0 - phiPrime*alpha)
	if denom == 0 {
		return 0.1 * alpha
	}
	return -phiPrime * alpha * alpha / denom
}

// cubicMin fits phi0, phiPrime and two trial points (a1, phi1) [older],
// (a2, phi2) [newer] with a cubic and returns its minimizer, matching
// ImplicitEngine::linesearch's cubic branch: a degenerate-cubic fallback to
// the quadratic-formula root, and a sign-robust choice between the two
// quadratic-formula roots to avoid cancellation error.
func cubicMin(phi0, phiPrime, a1, phi1, a2, phi2 float64) float64 {
	denom := a1 * a1 * a2 * a2 * (a2 - a1)
	if denom == 0 {
		return 0.5 * a2
	}
	r1 := phi1 - phi0 - phiPrime*a1
	r2 := phi2 - phi0 - phiPrime*a2

	c1 := (a1*a1*r2 - a2*a2*r1) / denom
	c2 := (-a1*a1*a1*r2 + a2*a2*a2*r1) / denom

	if c1 == 0 {
		return -phiPrime / (2 * c2)
	}
	discr := c2*c2 - 3*c1*phiPrime
	if discr < 0 {
		return 0.5 * a2
	}
	if c2 <= 0 {
		return (-c2 + math.Sqrt(discr)) / (3 * c1)
	}
	return -phiPrime / (c2 + math.Sqrt(discr))
}
