package frame

import (
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/same-codec/internal/demod"
	"github.com/couchcryptid/same-codec/internal/encode"
	"github.com/couchcryptid/same-codec/internal/same"
)

const refHeader = "ZCZC-WXR-TOR-039173+0045-0121415-KEAS    -"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func preambleBytes() []byte {
	data := make([]byte, same.PreambleLength)
	for i := range data {
		data[i] = same.PreambleByte
	}
	return data
}

// burstBits returns the LSB-first bit sequence of a full burst.
func burstBits(payload string) []byte {
	return encode.Bits(append(preambleBytes(), payload...))
}

func bitEvents(bits []byte, conf float64) []demod.BitEvent {
	events := make([]demod.BitEvent, len(bits))
	for i, b := range bits {
		events[i] = demod.BitEvent{Value: b, Confidence: conf, Offset: int64(i)}
	}
	return events
}

func randomBits(rng *rand.Rand, n int) []byte {
	bits := make([]byte, n)
	for i := range bits {
		bits[i] = byte(rng.Intn(2))
	}
	return bits
}

func TestScannerHeaderCandidate(t *testing.T) {
	sc := NewScanner(testLogger())
	cands := sc.Feed(bitEvents(burstBits(refHeader), 1.0))

	require.Len(t, cands, 1)
	assert.Equal(t, KindHeader, cands[0].Kind)
	assert.Equal(t, refHeader, cands[0].Text)
	assert.Equal(t, 1.0, cands[0].Confidence)
	assert.Len(t, cands[0].ByteConfidence, len(refHeader))
	assert.Equal(t, uint64(1), sc.Candidates())
	assert.Equal(t, uint64(0), sc.Discards())
}

func TestScannerEOMCandidate(t *testing.T) {
	sc := NewScanner(testLogger())
	cands := sc.Feed(bitEvents(burstBits(same.EOM), 1.0))

	require.Len(t, cands, 1)
	assert.Equal(t, KindEOM, cands[0].Kind)
	assert.Equal(t, "NNNN", cands[0].Text)
}

func TestScannerBitAlignment(t *testing.T) {
	// The burst does not start on a byte boundary: leading junk bits shift
	// the whole stream. The bit-level window must still lock.
	for _, lead := range []int{1, 3, 5, 7, 11} {
		rng := rand.New(rand.NewSource(int64(lead)))
		bits := append(randomBits(rng, lead), burstBits(refHeader)...)
		sc := NewScanner(testLogger())
		cands := sc.Feed(bitEvents(bits, 1.0))
		require.Len(t, cands, 1, "lead of %d bits", lead)
		assert.Equal(t, refHeader, cands[0].Text)
	}
}

func TestScannerToleratesPreambleBitErrors(t *testing.T) {
	bits := burstBits(refHeader)
	// Flip four bits spread across the early preamble.
	for _, i := range []int{3, 17, 31, 54} {
		bits[i] ^= 1
	}
	sc := NewScanner(testLogger())
	cands := sc.Feed(bitEvents(bits, 1.0))
	require.Len(t, cands, 1)
	assert.Equal(t, refHeader, cands[0].Text)
}

func TestScannerByteConfidence(t *testing.T) {
	bits := burstBits(refHeader)
	events := bitEvents(bits, 1.0)
	// Weaken one bit inside the event code field (byte 9 of the payload).
	weak := (same.PreambleLength+9)*8 + 2
	events[weak].Confidence = 0.4

	sc := NewScanner(testLogger())
	cands := sc.Feed(events)
	require.Len(t, cands, 1)
	assert.Equal(t, 0.4, cands[0].Confidence)
	assert.Equal(t, 0.4, cands[0].ByteConfidence[9])
	assert.Equal(t, 1.0, cands[0].ByteConfidence[8])
}

func TestScannerGarbageResilience(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	sc := NewScanner(testLogger())

	var total int
	for i := 0; i < 100; i++ {
		total += len(sc.Feed(bitEvents(randomBits(rng, 1000), 0.1)))
	}
	assert.Zero(t, total, "pure noise must never produce a candidate")
}

func TestScannerRecoversAfterDiscard(t *testing.T) {
	// First burst carries a corrupt byte (0x03, outside ASCII range) in the
	// middle of the header; the second burst is clean.
	corrupt := []byte(refHeader)
	corrupt[20] = 0x03
	bits := encode.Bits(append(preambleBytes(), corrupt...))
	bits = append(bits, encode.Bits([]byte{0, 0, 0, 0})...) // a breath of idle
	bits = append(bits, burstBits(refHeader)...)

	sc := NewScanner(testLogger())
	cands := sc.Feed(bitEvents(bits, 1.0))

	require.Len(t, cands, 1)
	assert.Equal(t, refHeader, cands[0].Text)
	assert.Equal(t, uint64(1), sc.Discards())
}

func TestScannerOversizeDiscard(t *testing.T) {
	// A "header" that never closes: ZCZC- followed by dashes-and-digits
	// well past the maximum wire length, with no '+' section.
	long := "ZCZC-WXR-TOR"
	for i := 0; i < 60; i++ {
		long += "-039173"
	}
	sc := NewScanner(testLogger())
	cands := sc.Feed(bitEvents(burstBits(long), 1.0))
	assert.Empty(t, cands)
	assert.Equal(t, uint64(1), sc.Discards())
}

func TestScannerBackToBackBursts(t *testing.T) {
	var bits []byte
	for i := 0; i < 3; i++ {
		bits = append(bits, burstBits(refHeader)...)
		bits = append(bits, encode.Bits(make([]byte, 8))...) // inter-burst idle
	}
	sc := NewScanner(testLogger())

	// Feed in awkward batch sizes to exercise restartability.
	var cands []Candidate
	events := bitEvents(bits, 1.0)
	for start := 0; start < len(events); start += 61 {
		end := start + 61
		if end > len(events) {
			end = len(events)
		}
		cands = append(cands, sc.Feed(events[start:end])...)
	}

	require.Len(t, cands, 3)
	for _, c := range cands {
		assert.Equal(t, refHeader, c.Text)
	}
}
