// Package encode builds complete SAME transmissions: three redundant header
// bursts, the attention tone, the message audio slot, and three end-of-message
// bursts. All validation happens before any audio is synthesized; an invalid
// header never produces partial output.
package encode

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/same-codec/internal/dsp"
	"github.com/couchcryptid/same-codec/internal/same"
)

// Attention tone duration limits per 47 CFR 11.
const (
	MinAttentionSeconds = 8.0
	MaxAttentionSeconds = 25.0
)

// Sample rate bounds accepted by the codec.
const (
	MinSampleRate = 8000
	MaxSampleRate = 48000
)

// DefaultSampleRate is used when the caller does not choose one.
const DefaultSampleRate = 22050

// interBurstGap is the silence between repeated bursts.
const interBurstGap = 1.0 // seconds

// SegmentKind labels one audio segment of an encoded transmission.
type SegmentKind int

const (
	SegmentHeaderBurst SegmentKind = iota
	SegmentGap
	SegmentAttentionTone
	SegmentMessage
	SegmentEOMBurst
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentHeaderBurst:
		return "header_burst"
	case SegmentGap:
		return "gap"
	case SegmentAttentionTone:
		return "attention_tone"
	case SegmentMessage:
		return "message"
	case SegmentEOMBurst:
		return "eom_burst"
	default:
		return fmt.Sprintf("SegmentKind(%d)", int(k))
	}
}

// Segment is one ordered piece of the output audio.
type Segment struct {
	Kind SegmentKind
	PCM  []float64
}

// EncodedMessage is a complete SAME transmission. The three header bursts
// are sample-identical; segment order is fixed: header×3 with gaps, the
// attention tone, the message slot, then EOM×3 with gaps.
type EncodedMessage struct {
	Header     same.Header // with issue time resolved
	Wire       string      // the transmitted header string
	SampleRate int
	Segments   []Segment
}

// PCM concatenates all segments into one buffer.
func (m *EncodedMessage) PCM() []float64 {
	total := 0
	for _, seg := range m.Segments {
		total += len(seg.PCM)
	}
	out := make([]float64, 0, total)
	for _, seg := range m.Segments {
		out = append(out, seg.PCM...)
	}
	return out
}

// Duration is the total audio length.
func (m *EncodedMessage) Duration() time.Duration {
	total := 0
	for _, seg := range m.Segments {
		total += len(seg.PCM)
	}
	return time.Duration(float64(total) / float64(m.SampleRate) * float64(time.Second))
}

// Options configure an encode call. The zero value is usable.
type Options struct {
	// SampleRate of the output PCM. Defaults to DefaultSampleRate.
	SampleRate int
	// AttentionSeconds is the attention tone duration, 8-25 s. Defaults to 8.
	AttentionSeconds float64
	// Peak is the linear peak amplitude. Defaults to dsp.DefaultPeak (-3 dBFS).
	Peak float64
	// MessageAudio fills the audio slot between the attention tone and the
	// EOM bursts. When nil a one-second silence placeholder is used.
	MessageAudio []float64
	// Registry validates originator and event codes. Defaults to the
	// embedded tables.
	Registry *same.Registry
	// Clock supplies the issue time when the header leaves it unset.
	// Defaults to the wall clock.
	Clock clockwork.Clock
}

func (o Options) withDefaults() Options {
	if o.SampleRate == 0 {
		o.SampleRate = DefaultSampleRate
	}
	if o.AttentionSeconds == 0 {
		o.AttentionSeconds = MinAttentionSeconds
	}
	if o.Peak == 0 {
		o.Peak = dsp.DefaultPeak
	}
	if o.Registry == nil {
		o.Registry = same.DefaultRegistry()
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// Encode validates the header and synthesizes the full transmission.
// Validation errors surface as *same.ValidationError before any audio
// exists; the returned message is nil on error.
func Encode(h same.Header, opts Options) (*EncodedMessage, error) {
	opts = opts.withDefaults()

	if opts.SampleRate < MinSampleRate || opts.SampleRate > MaxSampleRate {
		return nil, fmt.Errorf("sample rate %d out of range %d-%d", opts.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if opts.AttentionSeconds < MinAttentionSeconds || opts.AttentionSeconds > MaxAttentionSeconds {
		return nil, &same.ValidationError{
			Field:  "attention_seconds",
			Reason: fmt.Sprintf("%.1f out of range %.0f-%.0f", opts.AttentionSeconds, MinAttentionSeconds, MaxAttentionSeconds),
		}
	}
	if err := h.Validate(opts.Registry); err != nil {
		return nil, err
	}
	if h.IssueTime.IsZero() {
		h.IssueTime = same.IssueTimeAt(opts.Clock.Now())
	}

	wire := h.WireString()
	synth := dsp.NewSynthesizer(opts.SampleRate, dsp.WithPeak(opts.Peak))

	headerBurst, err := burst(synth, []byte(wire))
	if err != nil {
		return nil, err
	}
	eomBurst, err := burst(synth, []byte(same.EOM))
	if err != nil {
		return nil, err
	}

	message := opts.MessageAudio
	if message == nil {
		message = synth.Silence(1.0)
	}

	gap := func() Segment { return Segment{Kind: SegmentGap, PCM: synth.Silence(interBurstGap)} }

	msg := &EncodedMessage{Header: h, Wire: wire, SampleRate: opts.SampleRate}
	for i := 0; i < 3; i++ {
		msg.Segments = append(msg.Segments, Segment{Kind: SegmentHeaderBurst, PCM: headerBurst}, gap())
	}
	msg.Segments = append(msg.Segments,
		Segment{Kind: SegmentAttentionTone, PCM: synth.AttentionTone(opts.AttentionSeconds)},
		gap(),
		Segment{Kind: SegmentMessage, PCM: message},
		gap(),
	)
	for i := 0; i < 3; i++ {
		msg.Segments = append(msg.Segments, Segment{Kind: SegmentEOMBurst, PCM: eomBurst})
		if i < 2 {
			msg.Segments = append(msg.Segments, gap())
		}
	}
	return msg, nil
}

// burst synthesizes preamble + payload as one continuous-phase FSK segment.
// The oscillator is reset first so repeated bursts are sample-identical.
func burst(synth *dsp.Synthesizer, payload []byte) ([]float64, error) {
	data := make([]byte, 0, same.PreambleLength+len(payload))
	for i := 0; i < same.PreambleLength; i++ {
		data = append(data, same.PreambleByte)
	}
	data = append(data, payload...)
	synth.ResetPhase()
	return synth.FSK(Bits(data), dsp.Baud)
}

// Bits serializes bytes LSB-first, the SAME transmission bit order.
func Bits(data []byte) []byte {
	bits := make([]byte, 0, len(data)*8)
	for _, b := range data {
		for i := 0; i < 8; i++ {
			bits = append(bits, (b>>i)&1)
		}
	}
	return bits
}
