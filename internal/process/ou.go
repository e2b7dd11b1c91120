// Package process implements the stochastic sensor simulation for the
// plant: mean-reverting processes, diurnal curves, rain events, the
// chlorine dosing model, and the composition that turns them into a
// sensor vector once per scan cycle.
package process

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// OU is a mean-reverting Ornstein-Uhlenbeck process:
//
//	dx = theta*(mu-x)*dt + sigma*sqrt(dt)*N(0,1)
//
// It holds no lock of its own; callers (the Generator) serialize access.
type OU struct {
	Mu, Sigma, Theta float64
	X                float64
}

// NewOU builds an OU process starting at x0.
func NewOU(mu, sigma, theta, x0 float64) *OU {
	return &OU{Mu: mu, Sigma: sigma, Theta: theta, X: x0}
}

// Step advances the process by dt seconds using the given RNG stream and
// returns the new value. A non-positive dt is a no-op.
func (o *OU) Step(dt float64, rng *rand.Rand) float64 {
	if dt <= 0 {
		return o.X
	}
	drift := o.Theta * (o.Mu - o.X) * dt
	z := (distuv.Normal{Mu: 0, Sigma: 1, Src: rng}).Rand()
	diffusion := o.Sigma * math.Sqrt(dt) * z
	o.X += drift + diffusion
	return o.X
}

// SetMu replaces the process's mean, for non-stationary tracking (the pH
// diurnal target and the reservoir-level anti-windup tracker).
func (o *OU) SetMu(mu float64) {
	o.Mu = mu
}
