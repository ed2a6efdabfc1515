// Package demod recovers a confidence-weighted bitstream from SAME audio.
//
// The demodulator correlates each bit period against the mark and space
// frequencies with a pair of Goertzel probes and tracks symbol timing with an
// early-late gate, so it tolerates modest clock drift between transmitter and
// capture device. It is a pure transform: it never fails and never performs
// I/O. Low-confidence bits are emitted anyway; deciding what to trust is the
// framing and consolidation layers' job.
package demod

import (
	"math"

	"github.com/couchcryptid/same-codec/internal/dsp"
)

// BitEvent is one demodulated bit.
type BitEvent struct {
	Value byte // 0 or 1
	// Confidence in [0,1]: the normalized mark/space energy difference.
	// Zero for windows with no appreciable tone energy.
	Confidence float64
	// Offset is the absolute sample index of the bit period's start,
	// counted from the first sample ever fed to the session.
	Offset int64
}

// confNorm rescales the raw mark/space energy ratio so a clean reception
// saturates at confidence 1.0 instead of asymptotically approaching it.
const confNorm = 0.85

// silenceFloor is the combined mark+space power below which a window is
// treated as toneless and reported with zero confidence.
const silenceFloor = 1e-7

// Session carries demodulation state across PCM chunks: the sample buffer,
// the fractional bit-clock position, and the timing-recovery state. Each
// receiver owns its own Session; sessions share nothing.
type Session struct {
	sampleRate float64
	spb        float64 // samples per bit, fractional
	window     int     // correlation window, floor(spb)
	probe      int     // early/late gate probe distance in samples
	maxCorr    float64 // timing correction clamp per bit

	mark  dsp.Goertzel
	space dsp.Goertzel

	buf     []float64
	pos     float64 // next bit start within buf
	absBase int64   // absolute index of buf[0]
	bits    int64   // total bits emitted
}

// NewSession creates a demodulator session for the given sample rate and
// baud rate. Returns dsp.ErrInvalidBaudRate for a non-positive baud.
func NewSession(sampleRate int, baud float64) (*Session, error) {
	if baud <= 0 {
		return nil, dsp.ErrInvalidBaudRate
	}
	spb := float64(sampleRate) / baud
	window := int(spb)
	probe := window / 8
	if probe < 2 {
		probe = 2
	}
	return &Session{
		sampleRate: float64(sampleRate),
		spb:        spb,
		window:     window,
		probe:      probe,
		maxCorr:    spb / 16,
		mark:       dsp.NewGoertzel(dsp.MarkFreq, float64(sampleRate)),
		space:      dsp.NewGoertzel(dsp.SpaceFreq, float64(sampleRate)),
	}, nil
}

// BitsEmitted returns the total number of bits produced over the session.
func (s *Session) BitsEmitted() int64 { return s.bits }

// Flush treats the stream as followed by silence, emitting bit periods that
// were still waiting on lookahead samples. Called once at end of stream so a
// transmission ending exactly on its last bit is not truncated.
func (s *Session) Flush() []BitEvent {
	return s.Process(make([]float64, s.window+s.probe))
}

// Process consumes a PCM chunk and returns the bits whose periods completed.
// State is carried across calls, so chunk boundaries are invisible: feeding
// one large buffer or many small slices yields the same bit sequence.
func (s *Session) Process(chunk []float64) []BitEvent {
	s.buf = append(s.buf, chunk...)

	var events []BitEvent
	for {
		start := int(s.pos)
		if start+s.window+s.probe > len(s.buf) {
			break
		}
		w := s.buf[start : start+s.window]
		mp := s.mark.Power(w)
		sp := s.space.Power(w)
		total := mp + sp

		var value byte
		if mp > sp {
			value = 1
		}
		var conf float64
		if total >= silenceFloor {
			conf = math.Abs(mp-sp) / total / confNorm
			if conf > 1 {
				conf = 1
			}
		}

		corr := 0.0
		if total >= silenceFloor && start >= s.probe {
			// Early-late gate on the decided tone: if the late-shifted
			// window holds more of the tone than the early-shifted one,
			// the bit clock is running ahead of the signal, and vice
			// versa. The correction is clamped so jitter on random data
			// stays within a few samples.
			g := s.space
			if value == 1 {
				g = s.mark
			}
			early := g.Power(s.buf[start-s.probe : start-s.probe+s.window])
			late := g.Power(s.buf[start+s.probe : start+s.probe+s.window])
			corr = (late - early) / (late + early + 1e-12) * s.maxCorr
		}

		events = append(events, BitEvent{
			Value:      value,
			Confidence: conf,
			Offset:     s.absBase + int64(start),
		})
		s.bits++
		s.pos += s.spb + corr
	}

	// Drop consumed samples, keeping enough history for the early probe.
	if trim := int(s.pos) - s.probe - 1; trim > 0 {
		s.buf = append(s.buf[:0], s.buf[trim:]...)
		s.pos -= float64(trim)
		s.absBase += int64(trim)
	}
	return events
}
