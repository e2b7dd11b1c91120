package process

import "math"

// DiurnalFlow returns the base raw-water demand (L/s) for the given hour
// of day (may be outside [0,24); it is reduced mod 24). The curve composes
// an overnight baseline with morning, midday, and evening peaks.
func DiurnalFlow(hourOfDay, base float64) float64 {
	h := math.Mod(hourOfDay, 24)
	if h < 0 {
		h += 24
	}
	const overnight = 0.60
	amPeak := 0.60 * math.Exp(-math.Pow(h-7.5, 2)/4.0)
	pmPeak := 0.45 * math.Exp(-math.Pow(h-17.5, 2)/3.0)
	midday := 0.20 * math.Exp(-math.Pow(h-12.0, 2)/6.0)
	fraction := overnight + amPeak + pmPeak + midday
	return base * fraction
}

// DiurnalTemp returns the ambient water temperature (°C) for the given
// hour of day: a single cosine cycle trough at 14:00, crest 12h away.
func DiurnalTemp(hourOfDay, baseMin, baseMax float64) float64 {
	h := math.Mod(hourOfDay, 24)
	if h < 0 {
		h += 24
	}
	mid := (baseMin + baseMax) / 2
	amp := (baseMax - baseMin) / 2
	phase := 2 * math.Pi * (h - 14) / 24
	return mid - amp*math.Cos(phase)
}
