// Package dsp provides the audio-domain primitives behind the SAME codec:
// continuous-phase FSK synthesis, the 853/960 Hz attention tone, and the
// Goertzel tone correlator used by the demodulator. All audio is mono
// float64 PCM in the range [-1, 1].
package dsp

import (
	"errors"
	"math"
)

// Fixed SAME transmission constants.
const (
	Baud      = 520.83 // bits per second
	MarkFreq  = 2083.3 // Hz, logical 1 (exactly 4 cycles per bit)
	SpaceFreq = 1562.5 // Hz, logical 0 (exactly 3 cycles per bit)

	AttentionLowFreq  = 853.0 // Hz
	AttentionHighFreq = 960.0 // Hz
)

// DefaultPeak is -3 dBFS, the default peak amplitude of synthesized audio.
const DefaultPeak = 0.7079457843841379

// ErrInvalidBaudRate is returned for a zero or negative baud rate.
var ErrInvalidBaudRate = errors.New("dsp: baud rate must be positive")

// Synthesizer generates PCM for bits, tones, and silence. The oscillator
// phase is an explicit accumulator carried across bit boundaries, so a bit
// sequence synthesizes with no phase discontinuities. A Synthesizer is not
// safe for concurrent use; callers create one per output stream.
type Synthesizer struct {
	sampleRate float64
	peak       float64
	phase      float64 // radians, wrapped to [0, 2π)
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithPeak sets the peak output amplitude as a linear value in (0, 1].
func WithPeak(peak float64) Option {
	return func(s *Synthesizer) { s.peak = peak }
}

// NewSynthesizer creates a Synthesizer for the given sample rate.
func NewSynthesizer(sampleRate int, opts ...Option) *Synthesizer {
	s := &Synthesizer{sampleRate: float64(sampleRate), peak: DefaultPeak}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResetPhase rewinds the oscillator to zero phase. The encoder resets before
// each burst so repeated bursts are sample-identical.
func (s *Synthesizer) ResetPhase() { s.phase = 0 }

// FSK synthesizes a bit sequence as continuous-phase AFSK: mark for 1, space
// for 0. Bit boundaries fall on the nearest sample to i/baud seconds, so the
// fractional samples-per-bit of 520.83 baud accumulate without drift. An
// empty bit sequence yields an empty buffer.
func (s *Synthesizer) FSK(bits []byte, baud float64) ([]float64, error) {
	if baud <= 0 {
		return nil, ErrInvalidBaudRate
	}
	if len(bits) == 0 {
		return []float64{}, nil
	}
	spb := s.sampleRate / baud
	total := int(math.Round(float64(len(bits)) * spb))
	out := make([]float64, total)

	markStep := 2 * math.Pi * MarkFreq / s.sampleRate
	spaceStep := 2 * math.Pi * SpaceFreq / s.sampleRate

	for i, bit := range bits {
		step := spaceStep
		if bit != 0 {
			step = markStep
		}
		start := int(math.Round(float64(i) * spb))
		end := int(math.Round(float64(i+1) * spb))
		for j := start; j < end && j < total; j++ {
			s.phase += step
			if s.phase >= 2*math.Pi {
				s.phase -= 2 * math.Pi
			}
			out[j] = s.peak * math.Sin(s.phase)
		}
	}
	return out, nil
}

// AttentionTone synthesizes the summed 853+960 Hz attention signal. The two
// sinusoids each carry half the peak so the sum never clips past it.
func (s *Synthesizer) AttentionTone(seconds float64) []float64 {
	n := int(math.Round(seconds * s.sampleRate))
	out := make([]float64, n)
	lowStep := 2 * math.Pi * AttentionLowFreq / s.sampleRate
	highStep := 2 * math.Pi * AttentionHighFreq / s.sampleRate
	var lowPhase, highPhase float64
	for i := range out {
		lowPhase += lowStep
		highPhase += highStep
		out[i] = s.peak / 2 * (math.Sin(lowPhase) + math.Sin(highPhase))
	}
	return out
}

// Silence returns a zero buffer of the given duration.
func (s *Synthesizer) Silence(seconds float64) []float64 {
	return make([]float64, int(math.Round(seconds*s.sampleRate)))
}
