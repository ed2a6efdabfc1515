// Package codec is the public face of the encoder and decoder. It wires the
// demodulator, frame scanner, and burst consolidator into a single streaming
// session and exposes one-call helpers for encoding and header validation.
package codec

import (
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/same-codec/internal/consolidate"
	"github.com/couchcryptid/same-codec/internal/demod"
	"github.com/couchcryptid/same-codec/internal/dsp"
	"github.com/couchcryptid/same-codec/internal/encode"
	"github.com/couchcryptid/same-codec/internal/frame"
	"github.com/couchcryptid/same-codec/internal/observability"
	"github.com/couchcryptid/same-codec/internal/same"
)

// Options configures a decode session. The zero value is usable: defaults are
// a real clock, a discard logger, the embedded code registry, and the
// consolidator's standard timeout.
type Options struct {
	SampleRate    int
	Registry      *same.Registry
	Clock         clockwork.Clock
	Logger        *slog.Logger
	Timeout       time.Duration
	MinConfidence float64
	Metrics       *observability.Metrics
}

func (o Options) withDefaults() Options {
	if o.SampleRate == 0 {
		o.SampleRate = encode.DefaultSampleRate
	}
	if o.Registry == nil {
		o.Registry = same.DefaultRegistry()
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.Timeout == 0 {
		o.Timeout = consolidate.DefaultTimeout
	}
	return o
}

// Encode renders a complete alert transmission for the given header. See
// encode.Options for knobs; this wrapper exists so callers outside the
// pipeline only import one package.
func Encode(h same.Header, opts encode.Options) (*encode.EncodedMessage, error) {
	return encode.Encode(h, opts)
}

// ValidateHeader checks a header against protocol constraints and the code
// registry without synthesizing audio.
func ValidateHeader(h same.Header) error {
	return h.Validate(same.DefaultRegistry())
}

// Decoder is a stateful streaming decode session. Feed PCM chunks with Write;
// alerts come back as consolidation completes. Not safe for concurrent use.
type Decoder struct {
	session *demod.Session
	scanner *frame.Scanner
	cons    *consolidate.Consolidator
	opts    Options

	lastDiscards   uint64
	lastCandidates uint64
	closed         bool
}

// NewDecoder builds a decode session for mono float PCM at the given sample
// rate.
func NewDecoder(opts Options) (*Decoder, error) {
	opts = opts.withDefaults()
	if opts.SampleRate < encode.MinSampleRate || opts.SampleRate > encode.MaxSampleRate {
		return nil, fmt.Errorf("sample rate %d out of range [%d, %d]",
			opts.SampleRate, encode.MinSampleRate, encode.MaxSampleRate)
	}

	session, err := demod.NewSession(opts.SampleRate, dsp.Baud)
	if err != nil {
		return nil, err
	}

	d := &Decoder{
		session: session,
		scanner: frame.NewScanner(opts.Logger),
		cons: consolidate.New(opts.Registry, opts.Clock, opts.Logger,
			consolidate.WithTimeout(opts.Timeout)),
		opts: opts,
	}
	if m := opts.Metrics; m != nil {
		m.PipelineRunning.Set(1)
	}
	return d, nil
}

// Write demodulates one chunk of samples and returns any alerts finalized by
// it. An empty chunk is a no-op.
func (d *Decoder) Write(chunk []float64) []same.Alert {
	if d.closed || len(chunk) == 0 {
		return nil
	}

	events := d.session.Process(chunk)
	candidates := d.scanner.Feed(events)

	var alerts []same.Alert
	for _, cand := range candidates {
		alerts = append(alerts, d.cons.Push(cand)...)
	}
	alerts = append(alerts, d.cons.Expire()...)

	d.observe(chunk, events, alerts)
	return d.filter(alerts)
}

// Expire finalizes any consolidation groups whose window has lapsed. Call it
// periodically when the input stream can go quiet for long stretches.
func (d *Decoder) Expire() []same.Alert {
	if d.closed {
		return nil
	}
	alerts := d.cons.Expire()
	d.observe(nil, nil, alerts)
	return d.filter(alerts)
}

// Close drains the demodulator tail, flushes all pending groups, and returns
// their alerts. The decoder accepts no input afterwards.
func (d *Decoder) Close() []same.Alert {
	if d.closed {
		return nil
	}
	d.closed = true

	events := d.session.Flush()
	var alerts []same.Alert
	for _, cand := range d.scanner.Feed(events) {
		alerts = append(alerts, d.cons.Push(cand)...)
	}
	alerts = append(alerts, d.cons.Flush()...)
	d.observe(nil, events, alerts)
	if m := d.opts.Metrics; m != nil {
		m.PipelineRunning.Set(0)
	}
	return d.filter(alerts)
}

// Pending reports how many consolidation groups are still open.
func (d *Decoder) Pending() int { return d.cons.Pending() }

func (d *Decoder) filter(alerts []same.Alert) []same.Alert {
	if d.opts.MinConfidence <= 0 {
		return alerts
	}
	kept := alerts[:0]
	for _, a := range alerts {
		if a.Confidence >= d.opts.MinConfidence {
			kept = append(kept, a)
			continue
		}
		d.opts.Logger.Debug("alert below confidence threshold",
			"confidence", a.Confidence, "raw", a.Raw)
	}
	return kept
}

func (d *Decoder) observe(chunk []float64, events []demod.BitEvent, alerts []same.Alert) {
	m := d.opts.Metrics
	if m == nil {
		return
	}
	m.SamplesProcessed.Add(float64(len(chunk)))
	m.BitsDemodulated.Add(float64(len(events)))

	if n := d.scanner.Candidates(); n > d.lastCandidates {
		m.CandidatesFramed.Add(float64(n - d.lastCandidates))
		d.lastCandidates = n
	}
	if n := d.scanner.Discards(); n > d.lastDiscards {
		m.FramingDiscards.Add(float64(n - d.lastDiscards))
		d.lastDiscards = n
	}

	for _, a := range alerts {
		kind := "header"
		if a.EOM {
			kind = "eom"
		}
		m.AlertsConsolidated.WithLabelValues(kind, strconv.Itoa(a.BurstCount)).Inc()
		m.AlertConfidence.Observe(a.Confidence)
	}
}

// DecodeStream consumes a sequence of PCM chunks and yields consolidated
// alerts as they become available. The decoder is flushed when the input
// sequence ends, so partially received alerts still surface.
func DecodeStream(chunks iter.Seq[[]float64], opts Options) iter.Seq[same.Alert] {
	return func(yield func(same.Alert) bool) {
		d, err := NewDecoder(opts)
		if err != nil {
			opts.withDefaults().Logger.Error("decoder init failed", "error", err)
			return
		}
		defer d.Close()

		for chunk := range chunks {
			for _, alert := range d.Write(chunk) {
				if !yield(alert) {
					return
				}
			}
		}
		for _, alert := range d.Close() {
			if !yield(alert) {
				return
			}
		}
	}
}
