package process

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	doseInterval  = 900.0 // seconds between dosing pulses
	decayRate     = 3e-4  // per second, base decay
	startResidual = 1.5
)

// ChlorineModel produces the free-chlorine residual: a periodic dosing
// pulse against continuous exponential decay, faster during rain (organics
// consume chlorine).
type ChlorineModel struct {
	Residual      float64
	TimeSinceDose float64
	DosingActive  bool
}

// NewChlorineModel returns a model with dosing active and a typical
// starting residual.
func NewChlorineModel() *ChlorineModel {
	return &ChlorineModel{Residual: startResidual, DosingActive: true}
}

// Step advances the model by dt sim-seconds and returns the new residual.
func (c *ChlorineModel) Step(dt float64, rainActive bool, rng *rand.Rand) float64 {
	if !c.DosingActive {
		c.Residual *= math.Exp(-decayRate * 2 * dt)
		c.Residual = math.Max(0, c.Residual)
		return c.Residual
	}

	c.TimeSinceDose += dt
	decay := decayRate
	if rainActive {
		decay *= 2.0
	}
	c.Residual *= math.Exp(-decay * dt)

	if c.TimeSinceDose >= doseInterval {
		c.TimeSinceDose = 0
		dose := (distuv.Normal{Mu: 0.8, Sigma: 0.1, Src: rng}).Rand()
		c.Residual += math.Max(0.1, dose)
	}

	c.Residual = clamp(c.Residual, 0, 5)
	c.Residual += (distuv.Normal{Mu: 0, Sigma: 0.02, Src: rng}).Rand()
	c.Residual = clamp(c.Residual, 0, 5)
	return c.Residual
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
