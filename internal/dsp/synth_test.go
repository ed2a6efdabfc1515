package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/dsp/fourier"
)

const testRate = 22050

func repeatBits(pattern []byte, n int) []byte {
	out := make([]byte, 0, len(pattern)*n)
	for i := 0; i < n; i++ {
		out = append(out, pattern...)
	}
	return out
}

func TestFSK(t *testing.T) {
	t.Run("invalid baud rate", func(t *testing.T) {
		s := NewSynthesizer(testRate)
		_, err := s.FSK([]byte{1, 0, 1}, 0)
		require.ErrorIs(t, err, ErrInvalidBaudRate)
		_, err = s.FSK([]byte{1, 0, 1}, -520.83)
		require.ErrorIs(t, err, ErrInvalidBaudRate)
	})

	t.Run("empty bit sequence yields empty buffer", func(t *testing.T) {
		s := NewSynthesizer(testRate)
		pcm, err := s.FSK(nil, Baud)
		require.NoError(t, err)
		assert.Empty(t, pcm)
	})

	t.Run("buffer length tracks fractional samples per bit", func(t *testing.T) {
		s := NewSynthesizer(testRate)
		bits := repeatBits([]byte{1, 0}, 100)
		pcm, err := s.FSK(bits, Baud)
		require.NoError(t, err)
		want := int(math.Round(float64(len(bits)) * testRate / Baud))
		assert.Equal(t, want, len(pcm))
	})

	t.Run("phase is continuous across bit boundaries", func(t *testing.T) {
		s := NewSynthesizer(testRate)
		pcm, err := s.FSK(repeatBits([]byte{1, 1, 0, 1, 0, 1, 0, 1}, 32), Baud)
		require.NoError(t, err)

		// The largest sample-to-sample step of a continuous sinusoid at the
		// mark frequency. A phase reset at a bit boundary would jump by up
		// to twice the peak amplitude.
		maxStep := DefaultPeak * 2 * math.Pi * MarkFreq / testRate * 1.1
		for i := 1; i < len(pcm); i++ {
			require.LessOrEqual(t, math.Abs(pcm[i]-pcm[i-1]), maxStep, "discontinuity at sample %d", i)
		}
	})

	t.Run("mark and space energy", func(t *testing.T) {
		s := NewSynthesizer(testRate)
		mark, err := s.FSK(repeatBits([]byte{1}, 260), Baud)
		require.NoError(t, err)
		markG := NewGoertzel(MarkFreq, testRate)
		spaceG := NewGoertzel(SpaceFreq, testRate)
		assert.Greater(t, markG.Power(mark), 100*spaceG.Power(mark))

		s.ResetPhase()
		space, err := s.FSK(repeatBits([]byte{0}, 260), Baud)
		require.NoError(t, err)
		assert.Greater(t, spaceG.Power(space), 100*markG.Power(space))
	})

	t.Run("peak amplitude", func(t *testing.T) {
		s := NewSynthesizer(testRate, WithPeak(0.5))
		pcm, err := s.FSK(repeatBits([]byte{1}, 100), Baud)
		require.NoError(t, err)
		var maxAbs float64
		for _, v := range pcm {
			maxAbs = math.Max(maxAbs, math.Abs(v))
		}
		assert.LessOrEqual(t, maxAbs, 0.5+1e-12)
		assert.Greater(t, maxAbs, 0.45)
	})

	t.Run("deterministic", func(t *testing.T) {
		bits := repeatBits([]byte{1, 1, 0, 1, 0, 1, 0, 1}, 16)
		a, err := NewSynthesizer(testRate).FSK(bits, Baud)
		require.NoError(t, err)
		b, err := NewSynthesizer(testRate).FSK(bits, Baud)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestAttentionTone(t *testing.T) {
	s := NewSynthesizer(testRate)
	pcm := s.AttentionTone(1.0)
	require.Equal(t, testRate, len(pcm))

	t.Run("spectrum peaks at 853 and 960 Hz", func(t *testing.T) {
		n := 16384
		fft := fourier.NewFFT(n)
		coeffs := fft.Coefficients(nil, pcm[:n])

		peakIn := func(loHz, hiHz float64) float64 {
			lo := int(loHz * float64(n) / testRate)
			hi := int(hiHz * float64(n) / testRate)
			best, bestBin := 0.0, lo
			for bin := lo; bin <= hi; bin++ {
				if m := math.Hypot(real(coeffs[bin]), imag(coeffs[bin])); m > best {
					best, bestBin = m, bin
				}
			}
			return float64(bestBin) * testRate / float64(n)
		}

		assert.InDelta(t, AttentionLowFreq, peakIn(700, 900), 4.0)
		assert.InDelta(t, AttentionHighFreq, peakIn(900, 1100), 4.0)
	})

	t.Run("never exceeds peak", func(t *testing.T) {
		for _, v := range pcm {
			require.LessOrEqual(t, math.Abs(v), DefaultPeak+1e-12)
		}
	})

	t.Run("goertzel probe sees both tones", func(t *testing.T) {
		low, high := AttentionTonePower(pcm[:4096], testRate)
		noise := NewGoertzel(1500, testRate).Power(pcm[:4096])
		assert.Greater(t, low, 20*noise)
		assert.Greater(t, high, 20*noise)
	})
}

func TestSilence(t *testing.T) {
	s := NewSynthesizer(8000)
	pcm := s.Silence(1.5)
	assert.Equal(t, 12000, len(pcm))
	for _, v := range pcm {
		require.Zero(t, v)
	}
}
