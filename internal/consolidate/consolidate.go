// Package consolidate reconciles the redundant bursts of one SAME
// transmission into a single validated, confidence-scored alert.
//
// Candidates from the frame scanner are grouped by similarity: two bursts
// belong to the same logical alert when their parsed event code and location
// set agree, or failing a clean parse, when the raw strings sit within a
// small edit distance. A group finalizes as soon as it holds three bursts;
// incomplete groups finalize on a timeout long enough for three real
// repetitions at one-second spacing. A single plausible burst still yields
// an alert at timeout, capped below the confidence ceiling of a full
// three-burst consensus, because dropping a real alert is worse than
// surfacing one with a lower score.
package consolidate

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	lev "github.com/agnivade/levenshtein"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/same-codec/internal/frame"
	"github.com/couchcryptid/same-codec/internal/same"
)

// DefaultTimeout is how long a group waits for its remaining bursts:
// three bursts at ~1 s spacing plus roughly a second of header audio each,
// with slack for sluggish capture paths.
const DefaultTimeout = 6 * time.Second

// maxBursts is fixed by the protocol: each message repeats three times.
const maxBursts = 3

// Confidence ceilings for consolidations short of a full consensus.
const (
	singleBurstCeiling = 0.75
	twoBurstCeiling    = 0.90
)

// VerdictKind tags the outcome of the majority vote across a group.
type VerdictKind int

const (
	// Unanimous: every burst carried an identical payload.
	Unanimous VerdictKind = iota
	// Majority: bursts disagreed and the vote resolved the conflicts.
	Majority
	// SingleBurstOnly: one burst was received; there was nothing to vote.
	SingleBurstOnly
)

// Verdict is the vote outcome. Confidence scoring is a pure function of
// the verdict and the per-byte confidences; no other state leaks in.
type Verdict struct {
	Kind VerdictKind
	// Dissent is the index of the outvoted burst for Majority verdicts,
	// -1 otherwise.
	Dissent int
	// Text is the reconciled payload.
	Text string
	// ByteConfidence is the winning byte's confidence at each position.
	ByteConfidence []float64
	// AgreementRatio is the fraction of positions where all bursts agreed.
	AgreementRatio float64
}

type group struct {
	kind      frame.CandidateKind
	bursts    []frame.Candidate
	firstSeen time.Time
	lastSeen  time.Time

	// Parsed similarity key from the first cleanly-parsing burst.
	hasKey    bool
	eventCode string
	locations string // sorted, comma-joined
}

// Consolidator owns the in-flight groups for one receiver. It is not safe
// for concurrent use; each pipeline instance creates its own. Sharing one
// across receivers would cross-pollinate unrelated transmissions.
type Consolidator struct {
	registry *same.Registry
	clock    clockwork.Clock
	logger   *slog.Logger
	timeout  time.Duration
	groups   []*group
}

// Option configures a Consolidator.
type Option func(*Consolidator)

// WithTimeout overrides the group finalization timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Consolidator) { c.timeout = d }
}

// New creates a Consolidator. The clock is injected so tests drive timeouts
// deterministically; pass clockwork.NewRealClock() in production.
func New(registry *same.Registry, clock clockwork.Clock, logger *slog.Logger, opts ...Option) *Consolidator {
	c := &Consolidator{
		registry: registry,
		clock:    clock,
		logger:   logger,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Push adds a candidate to its matching group, or starts a new group. It
// returns any alerts that finalized: the pushed group when it reached three
// bursts, plus any other group whose timeout elapsed.
func (c *Consolidator) Push(cand frame.Candidate) []same.Alert {
	alerts := c.Expire()
	now := c.clock.Now()

	g := c.match(cand)
	if g == nil {
		g = &group{kind: cand.Kind, firstSeen: now}
		c.setKey(g, cand)
		c.groups = append(c.groups, g)
	}
	g.bursts = append(g.bursts, cand)
	g.lastSeen = now

	if len(g.bursts) == maxBursts {
		if alert := c.finalize(g); alert != nil {
			alerts = append(alerts, *alert)
		}
		c.remove(g)
	}
	return alerts
}

// Expire finalizes every group whose timeout has elapsed. Callers invoke it
// periodically when no candidates are arriving; Push calls it implicitly.
func (c *Consolidator) Expire() []same.Alert {
	now := c.clock.Now()
	var alerts []same.Alert
	var live []*group
	for _, g := range c.groups {
		if now.Sub(g.firstSeen) >= c.timeout {
			if alert := c.finalize(g); alert != nil {
				alerts = append(alerts, *alert)
			}
			continue
		}
		live = append(live, g)
	}
	c.groups = live
	return alerts
}

// Flush finalizes all in-flight groups regardless of age. Called on
// shutdown and at end of stream so partial receptions are not lost.
func (c *Consolidator) Flush() []same.Alert {
	var alerts []same.Alert
	for _, g := range c.groups {
		if alert := c.finalize(g); alert != nil {
			alerts = append(alerts, *alert)
		}
	}
	c.groups = nil
	return alerts
}

// Pending returns the number of in-flight groups.
func (c *Consolidator) Pending() int { return len(c.groups) }

// match finds the group this candidate belongs to. Similarity is judged on
// the parsed (event code, location set) pair when both sides parse, and on
// raw edit distance otherwise, so a burst with a corrupted byte still joins
// its siblings.
func (c *Consolidator) match(cand frame.Candidate) *group {
	event, locs, parsed := similarityKey(cand)
	for _, g := range c.groups {
		if g.kind != cand.Kind || len(g.bursts) >= maxBursts {
			continue
		}
		if cand.Kind == frame.KindEOM {
			return g
		}
		if parsed && g.hasKey && g.eventCode == event && g.locations == locs {
			return g
		}
		if withinEditDistance(g.bursts[0].Text, cand.Text) {
			return g
		}
	}
	return nil
}

func (c *Consolidator) setKey(g *group, cand frame.Candidate) {
	event, locs, parsed := similarityKey(cand)
	if parsed {
		g.hasKey, g.eventCode, g.locations = true, event, locs
	}
}

func (c *Consolidator) remove(g *group) {
	for i, other := range c.groups {
		if other == g {
			c.groups = append(c.groups[:i], c.groups[i+1:]...)
			return
		}
	}
}

func similarityKey(cand frame.Candidate) (event, locs string, ok bool) {
	if cand.Kind != frame.KindHeader {
		return "", "", false
	}
	h, err := same.ParseWireString(cand.Text)
	if err != nil {
		return "", "", false
	}
	sorted := append([]string(nil), h.LocationCodes...)
	sort.Strings(sorted)
	return h.EventCode, strings.Join(sorted, ","), true
}

func withinEditDistance(a, b string) bool {
	threshold := len(a) / 10
	if threshold < 3 {
		threshold = 3
	}
	return lev.ComputeDistance(a, b) <= threshold
}

// finalize votes across the group's bursts and builds the alert. It returns
// nil when the reconciled payload fails validation against the registry;
// such groups are logged and dropped.
func (c *Consolidator) finalize(g *group) *same.Alert {
	verdict := Vote(g.bursts)
	confidence := Confidence(verdict, len(g.bursts))

	alert := &same.Alert{
		Raw:        verdict.Text,
		Confidence: confidence,
		BurstCount: len(g.bursts),
		FirstSeen:  g.firstSeen,
		LastSeen:   g.lastSeen,
	}

	if g.kind == frame.KindEOM {
		if verdict.Text != same.EOM {
			c.logger.Warn("dropping malformed EOM consolidation", "raw", verdict.Text)
			return nil
		}
		alert.EOM = true
		return alert
	}

	header, err := same.ParseWireString(verdict.Text)
	if err != nil {
		c.logger.Warn("dropping unparseable consolidation",
			"raw", verdict.Text,
			"bursts", len(g.bursts),
			"error", err,
		)
		return nil
	}
	if err := header.Validate(c.registry); err != nil {
		c.logger.Warn("dropping registry-invalid consolidation",
			"raw", verdict.Text,
			"error", err,
		)
		return nil
	}
	alert.Header = &header
	return alert
}

// Vote reconciles burst payloads by per-character majority. Positions where
// every burst agrees count toward the agreement ratio; disagreements resolve
// by majority, or by per-byte confidence when only two bursts are present.
func Vote(bursts []frame.Candidate) Verdict {
	if len(bursts) == 1 {
		return Verdict{
			Kind:           SingleBurstOnly,
			Dissent:        -1,
			Text:           bursts[0].Text,
			ByteConfidence: bursts[0].ByteConfidence,
			AgreementRatio: 1.0,
		}
	}

	// Vote over the most common payload length; a burst whose length
	// deviates simply cannot contribute at positions it lacks.
	length := votedLength(bursts)

	text := make([]byte, length)
	confs := make([]float64, length)
	agreed := 0
	dissents := make([]int, len(bursts))

	for pos := 0; pos < length; pos++ {
		type vote struct {
			count int
			conf  float64
		}
		votes := map[byte]*vote{}
		for _, b := range bursts {
			if pos >= len(b.Text) {
				continue
			}
			ch := b.Text[pos]
			v := votes[ch]
			if v == nil {
				v = &vote{}
				votes[ch] = v
			}
			v.count++
			if b.ByteConfidence[pos] > v.conf {
				v.conf = b.ByteConfidence[pos]
			}
		}

		var winner byte
		var best vote
		for ch, v := range votes {
			if v.count > best.count || (v.count == best.count && v.conf > best.conf) {
				winner, best = ch, *v
			}
		}
		text[pos] = winner
		confs[pos] = best.conf
		if len(votes) == 1 && best.count == len(bursts) {
			agreed++
			continue
		}
		for i, b := range bursts {
			if pos >= len(b.Text) || b.Text[pos] != winner {
				dissents[i]++
			}
		}
	}

	if agreed == length {
		return Verdict{
			Kind:           Unanimous,
			Dissent:        -1,
			Text:           string(text),
			ByteConfidence: confs,
			AgreementRatio: 1.0,
		}
	}

	dissent := 0
	for i, d := range dissents {
		if d > dissents[dissent] {
			dissent = i
		}
	}
	return Verdict{
		Kind:           Majority,
		Dissent:        dissent,
		Text:           string(text),
		ByteConfidence: confs,
		AgreementRatio: float64(agreed) / float64(length),
	}
}

func votedLength(bursts []frame.Candidate) int {
	counts := map[int]int{}
	for _, b := range bursts {
		counts[len(b.Text)]++
	}
	best, bestCount := len(bursts[0].Text), 0
	for length, count := range counts {
		if count > bestCount || (count == bestCount && length > best) {
			best, bestCount = length, count
		}
	}
	return best
}

// Confidence scores a verdict: the agreement ratio scaled by the average
// per-byte confidence, capped by how many bursts backed the consensus.
func Confidence(v Verdict, burstCount int) float64 {
	avg := 0.0
	for _, c := range v.ByteConfidence {
		avg += c
	}
	if n := len(v.ByteConfidence); n > 0 {
		avg /= float64(n)
	}
	conf := v.AgreementRatio * avg

	switch burstCount {
	case 1:
		if conf > singleBurstCeiling {
			conf = singleBurstCeiling
		}
	case 2:
		if conf > twoBurstCeiling {
			conf = twoBurstCeiling
		}
	}
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}
