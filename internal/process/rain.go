package process

import "math"

// RainEvent models a catchment rain event's effect on raw-water
// turbidity, pH, flow, and temperature. It is immutable after
// construction; the Generator owns its lifecycle (append on
// injection/scheduling, prune on expiry).
type RainEvent struct {
	startTime float64 // sim_time at creation, seconds
	peakTurb  float64
	duration  float64 // seconds

	riseTime      float64
	decayTau      float64
	phDrop        float64
	flowBoostFrac float64
	tempDip       float64
}

// NewRainEvent builds a RainEvent starting at simTime with the given peak
// turbidity (NTU) and duration (hours).
func NewRainEvent(simTime, peakTurb, durationHours float64) *RainEvent {
	duration := durationHours * 3600
	return &RainEvent{
		startTime:     simTime,
		peakTurb:      peakTurb,
		duration:      duration,
		riseTime:      duration * 0.1,
		decayTau:      duration * 0.3,
		phDrop:        0.2 + 0.6*(peakTurb/800),
		flowBoostFrac: 0.1 + 0.1*(peakTurb/800),
		tempDip:       1.0 + 1.0*(peakTurb/800),
	}
}

// Expired reports whether the event has run past its duration as of simTime.
func (e *RainEvent) Expired(simTime float64) bool {
	return simTime-e.startTime > e.duration
}

// Active reports whether the event is currently contributing at simTime.
func (e *RainEvent) Active(simTime float64) bool {
	elapsed := simTime - e.startTime
	return elapsed >= 0 && elapsed <= e.duration
}

// TurbidityContribution returns the NTU added by this event at simTime: a
// linear ramp to peak over riseTime, then an exponential decay.
func (e *RainEvent) TurbidityContribution(simTime float64) float64 {
	elapsed := simTime - e.startTime
	if elapsed < 0 || elapsed > e.duration {
		return 0
	}
	if elapsed < e.riseTime {
		return e.peakTurb * (elapsed / e.riseTime)
	}
	tDecay := elapsed - e.riseTime
	return e.peakTurb * math.Exp(-tDecay/e.decayTau)
}

// PHContribution returns the (negative) pH offset from acidic runoff,
// scaled by how far the turbidity contribution is toward its peak.
func (e *RainEvent) PHContribution(simTime float64) float64 {
	return -e.phDrop * e.turbFrac(simTime)
}

// FlowContribution returns the extra raw flow (L/s) from runoff, scaled
// against baseFlow.
func (e *RainEvent) FlowContribution(simTime, baseFlow float64) float64 {
	return baseFlow * e.flowBoostFrac * e.turbFrac(simTime)
}

// TempContribution returns the (negative) temperature offset from cooler
// rainwater inflow.
func (e *RainEvent) TempContribution(simTime float64) float64 {
	return -e.tempDip * e.turbFrac(simTime)
}

func (e *RainEvent) turbFrac(simTime float64) float64 {
	return e.TurbidityContribution(simTime) / e.peakTurb
}
