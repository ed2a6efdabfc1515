package dsp

import "math"

// Goertzel evaluates signal power at a single frequency. It is the standard
// second-order resonator: cheaper than an FFT when only two bins matter, and
// exact for non-integer bin frequencies, which the SAME mark/space pair are
// at most sample rates.
type Goertzel struct {
	coeff float64
	cos   float64
	sin   float64
}

// NewGoertzel prepares a correlator for freq at the given sample rate.
func NewGoertzel(freq, sampleRate float64) Goertzel {
	w := 2 * math.Pi * freq / sampleRate
	return Goertzel{coeff: 2 * math.Cos(w), cos: math.Cos(w), sin: math.Sin(w)}
}

// Power returns the squared magnitude of the correlation over the window,
// normalized by window length so windows of different sizes compare. A pure
// full-scale tone at the probe frequency yields approximately N/4 before
// normalization, so the result is roughly amplitude²/4.
func (g Goertzel) Power(window []float64) float64 {
	if len(window) == 0 {
		return 0
	}
	var s1, s2 float64
	for _, x := range window {
		s0 := x + g.coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	power := s1*s1 + s2*s2 - g.coeff*s1*s2
	n := float64(len(window))
	return power / (n * n)
}

// AttentionTonePower probes a window for the dual attention tone, returning
// the power at 853 and 960 Hz. Callers compare against the broadband level
// to decide presence.
func AttentionTonePower(window []float64, sampleRate float64) (low, high float64) {
	lg := NewGoertzel(AttentionLowFreq, sampleRate)
	hg := NewGoertzel(AttentionHighFreq, sampleRate)
	return lg.Power(window), hg.Power(window)
}
