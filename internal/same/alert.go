package same

import "time"

// Alert is a consolidated, confidence-scored reception of one logical SAME
// transmission: up to three redundant header bursts reconciled into a single
// validated header, or an end-of-message marker. Ownership transfers to the
// caller on emission; the decoder keeps no reference.
type Alert struct {
	// Header is the reconciled header. Nil when EOM is true.
	Header *Header `json:"header,omitempty"`
	// EOM marks an end-of-message reception ("NNNN" bursts).
	EOM bool `json:"eom,omitempty"`
	// Raw is the reconciled wire string as voted across bursts.
	Raw string `json:"raw"`
	// Confidence in [0,1]: per-burst agreement ratio scaled by the average
	// per-byte demodulation confidence. Single-burst receptions are capped
	// below the ceiling of a full three-burst consensus.
	Confidence float64 `json:"confidence"`
	// BurstCount is how many bursts (1-3) contributed to the consolidation.
	BurstCount int       `json:"burst_count"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}
