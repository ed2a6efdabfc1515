// Package frame synchronizes on SAME preambles in a demodulated bitstream
// and extracts candidate header and end-of-message strings.
//
// Bit alignment is unknown a priori, so the scanner slides a bit-level window
// over the stream looking for the 0xAB preamble pattern. Matching is
// error-tolerant: a preamble tail with a few corrupted bits still locks.
// Candidates are validated structurally only (framing, ASCII range, length);
// semantic code checks happen downstream against the registry. Malformed
// candidates are logged at debug level and discarded, and scanning resumes
// at the very next bit; garbage input can never stall the scanner.
package frame

import (
	"log/slog"
	"math"
	"math/bits"

	"github.com/couchcryptid/same-codec/internal/demod"
	"github.com/couchcryptid/same-codec/internal/same"
)

// CandidateKind distinguishes header bursts from end-of-message bursts.
type CandidateKind int

const (
	KindHeader CandidateKind = iota
	KindEOM
)

func (k CandidateKind) String() string {
	if k == KindEOM {
		return "eom"
	}
	return "header"
}

// Candidate is one structurally plausible burst payload.
type Candidate struct {
	Kind CandidateKind
	// Text is the framed string: "ZCZC-..." or "NNNN".
	Text string
	// ByteConfidence holds, per byte, the minimum confidence of its eight
	// constituent bits.
	ByteConfidence []float64
	// Confidence is the weakest byte confidence in the candidate.
	Confidence float64
	// Offset is the absolute sample offset at which the preamble locked.
	Offset int64
}

// syncBits is the width of the preamble matching window. The full preamble
// is 128 bits; matching on the trailing 96 leaves the demodulator a few
// bytes to pull its bit clock in on a cold start.
const syncBits = 96

// syncTolerance is the number of window bits allowed to disagree with the
// preamble pattern while still declaring sync.
const syncTolerance = 6

// maxPreambleSkip bounds how many extra 0xAB bytes may follow sync before
// the scanner gives up on the burst.
const maxPreambleSkip = 32

type scanState int

const (
	stateSearching scanState = iota
	stateReading
)

// Scanner extracts candidates from a bitstream. It is restartable: Feed may
// be called any number of times with successive bit batches, and internal
// state carries across calls. One Scanner serves one receiver.
type Scanner struct {
	logger *slog.Logger

	// Preamble matcher: the last syncBits bit values, newest in bit 0.
	regHi, regLo uint64
	bitsSeen     int64

	state       scanState
	syncOffset  int64
	skipped     int
	bitAcc      byte
	bitConf     float64
	bitCount    int
	bytes       []byte
	byteConf    []float64
	plusSeen    bool
	tailDashes  int
	discards    uint64
	candidates  uint64
}

var patHi, patLo uint64

func init() {
	// Build the match pattern by shifting the preamble bit sequence through
	// the same register the scanner uses.
	for i := 0; i < syncBits/8; i++ {
		for b := 0; b < 8; b++ {
			bit := uint64(same.PreambleByte>>b) & 1
			patHi = patHi<<1 | patLo>>63
			patLo = patLo<<1 | bit
		}
	}
	patHi &= 1<<(syncBits-64) - 1
}

// NewScanner creates a Scanner. The logger records framing discards at
// debug level.
func NewScanner(logger *slog.Logger) *Scanner {
	return &Scanner{logger: logger, state: stateSearching}
}

// Discards returns how many candidates were abandoned on framing errors.
func (sc *Scanner) Discards() uint64 { return sc.discards }

// Candidates returns how many candidates completed successfully.
func (sc *Scanner) Candidates() uint64 { return sc.candidates }

// Feed consumes demodulated bits and returns any candidates that completed.
func (sc *Scanner) Feed(events []demod.BitEvent) []Candidate {
	var out []Candidate
	for _, ev := range events {
		if cand := sc.feedBit(ev); cand != nil {
			out = append(out, *cand)
		}
	}
	return out
}

func (sc *Scanner) feedBit(ev demod.BitEvent) *Candidate {
	// The preamble matcher always runs, even mid-candidate: a fresh
	// preamble means a new burst has begun and any partial read is stale.
	sc.regHi = sc.regHi<<1 | sc.regLo>>63
	sc.regLo = sc.regLo<<1 | uint64(ev.Value)
	sc.regHi &= 1<<(syncBits-64) - 1
	sc.bitsSeen++

	if sc.bitsSeen >= syncBits && sc.preambleMatches() {
		if sc.state == stateReading && len(sc.bytes) > 0 {
			sc.discard("preamble during read", ev.Offset)
		}
		sc.startRead(ev.Offset)
		return nil
	}

	if sc.state != stateReading {
		return nil
	}

	if ev.Confidence < sc.bitConf {
		sc.bitConf = ev.Confidence
	}
	sc.bitAcc |= ev.Value << sc.bitCount // LSB received first
	sc.bitCount++
	if sc.bitCount < 8 {
		return nil
	}

	b := sc.bitAcc
	conf := sc.bitConf
	sc.bitAcc, sc.bitConf, sc.bitCount = 0, math.Inf(1), 0
	return sc.takeByte(b, conf, ev.Offset)
}

// preambleMatches reports whether the window sits at the end of a preamble
// byte. The long window tolerates a few bit errors; the newest 8 bits must
// match exactly, which pins sync to a byte boundary (the 0xAB bit sequence
// has no self-similar rotations) and stops the tolerant window from firing
// late, after data bits have already begun.
func (sc *Scanner) preambleMatches() bool {
	if sc.regLo&0xff != patLo&0xff {
		return false
	}
	errs := bits.OnesCount64(sc.regHi^patHi) + bits.OnesCount64(sc.regLo^patLo)
	return errs <= syncTolerance
}

func (sc *Scanner) startRead(offset int64) {
	sc.state = stateReading
	sc.syncOffset = offset
	sc.skipped = 0
	sc.bitAcc, sc.bitCount = 0, 0
	sc.bitConf = math.Inf(1)
	sc.bytes = sc.bytes[:0]
	sc.byteConf = sc.byteConf[:0]
	sc.plusSeen = false
	sc.tailDashes = 0
}

// takeByte appends one assembled byte to the current candidate and decides
// whether the candidate completed, continues, or must be discarded.
func (sc *Scanner) takeByte(b byte, conf float64, offset int64) *Candidate {
	// The preamble may run on past the sync window; skip the remainder.
	if len(sc.bytes) == 0 && b == same.PreambleByte {
		sc.skipped++
		if sc.skipped > maxPreambleSkip {
			sc.discard("endless preamble", offset)
		}
		return nil
	}

	if b < 0x20 || b > 0x7e {
		sc.discard("non-ASCII byte", offset)
		return nil
	}

	sc.bytes = append(sc.bytes, b)
	sc.byteConf = append(sc.byteConf, conf)

	switch sc.bytes[0] {
	case 'N':
		for _, c := range sc.bytes {
			if c != 'N' {
				sc.discard("malformed EOM", offset)
				return nil
			}
		}
		if len(sc.bytes) == len(same.EOM) {
			return sc.complete(KindEOM)
		}
		return nil

	case 'Z':
		prefix := same.WireHeaderPrefix + "-"
		if n := len(sc.bytes); n <= len(prefix) && sc.bytes[n-1] != prefix[n-1] {
			sc.discard("malformed header prefix", offset)
			return nil
		}
		if b == '+' {
			if sc.plusSeen {
				sc.discard("second plus separator", offset)
				return nil
			}
			sc.plusSeen = true
		}
		if sc.plusSeen && b == '-' {
			sc.tailDashes++
			if sc.tailDashes == 3 {
				return sc.complete(KindHeader)
			}
		}
		if len(sc.bytes) > same.MaxWireLength {
			sc.discard("over maximum length", offset)
		}
		return nil

	default:
		sc.discard("unexpected leading byte", offset)
		return nil
	}
}

func (sc *Scanner) complete(kind CandidateKind) *Candidate {
	confs := make([]float64, len(sc.byteConf))
	copy(confs, sc.byteConf)
	minConf := 1.0
	for _, c := range confs {
		if c < minConf {
			minConf = c
		}
	}
	cand := &Candidate{
		Kind:           kind,
		Text:           string(sc.bytes),
		ByteConfidence: confs,
		Confidence:     minConf,
		Offset:         sc.syncOffset,
	}
	sc.candidates++
	sc.state = stateSearching
	return cand
}

func (sc *Scanner) discard(reason string, offset int64) {
	sc.discards++
	sc.logger.Debug("framing discard",
		"reason", reason,
		"bytes", len(sc.bytes),
		"offset", offset,
	)
	sc.state = stateSearching
}
