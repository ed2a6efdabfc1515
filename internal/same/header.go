package same

import (
	"fmt"
	"strings"
	"time"
)

// Limits fixed by the SAME specification.
const (
	MinLocationCodes = 1
	MaxLocationCodes = 31
	StationIDLength  = 8
	MaxValidMinutes  = 9999
)

// EOM is the end-of-message marker transmitted after the audio portion.
const EOM = "NNNN"

// ValidationError reports a malformed or out-of-range header field. Encoding
// rejects the whole call on the first ValidationError; no audio is produced.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid header field %s: %s", e.Field, e.Reason)
}

// IssueTime is the JJJHHMM portion of a header: Julian day of year plus
// 24-hour UTC time. The zero value means "unset"; the encoder substitutes
// the current wall clock.
type IssueTime struct {
	Day    int // 1-366
	Hour   int // 0-23
	Minute int // 0-59
}

// IssueTimeAt converts a wall-clock instant to its SAME representation.
func IssueTimeAt(t time.Time) IssueTime {
	u := t.UTC()
	return IssueTime{Day: u.YearDay(), Hour: u.Hour(), Minute: u.Minute()}
}

// ParseIssueTime parses a 7-digit JJJHHMM string.
func ParseIssueTime(s string) (IssueTime, error) {
	if len(s) != 7 || !allDigits(s) {
		return IssueTime{}, fmt.Errorf("issue time %q: want 7 digits JJJHHMM", s)
	}
	it := IssueTime{
		Day:    atoi(s[0:3]),
		Hour:   atoi(s[3:5]),
		Minute: atoi(s[5:7]),
	}
	if err := it.Validate(); err != nil {
		return IssueTime{}, err
	}
	return it, nil
}

// IsZero reports whether the issue time is unset.
func (t IssueTime) IsZero() bool { return t == IssueTime{} }

// Validate checks the Julian day and 24-hour clock ranges.
func (t IssueTime) Validate() error {
	if t.Day < 1 || t.Day > 366 {
		return fmt.Errorf("julian day %d out of range 1-366", t.Day)
	}
	if t.Hour < 0 || t.Hour > 23 {
		return fmt.Errorf("hour %d out of range 0-23", t.Hour)
	}
	if t.Minute < 0 || t.Minute > 59 {
		return fmt.Errorf("minute %d out of range 0-59", t.Minute)
	}
	return nil
}

// String renders the JJJHHMM form, e.g. "0121415" for day 12 at 14:15 UTC.
func (t IssueTime) String() string {
	return fmt.Sprintf("%03d%02d%02d", t.Day, t.Hour, t.Minute)
}

// Header is the structured form of one SAME alert header.
type Header struct {
	Originator    string    `json:"originator"`     // 3-letter code, e.g. "WXR"
	EventCode     string    `json:"event_code"`     // 3-letter code, e.g. "TOR"
	LocationCodes []string  `json:"location_codes"` // 1-31 six-digit PSSCCC codes
	ValidMinutes  int       `json:"valid_minutes"`  // TTTT, must be > 0
	IssueTime     IssueTime `json:"issue_time"`     // zero value = "now" at encode
	StationID     string    `json:"station_id"`     // up to 8 chars, space-padded
}

// Validate checks every field against the structural rules and the code
// registry. It returns the first problem found as a *ValidationError.
func (h Header) Validate(reg *Registry) error {
	if len(h.Originator) != 3 || !allUpper(h.Originator) {
		return &ValidationError{Field: "originator", Reason: fmt.Sprintf("%q is not a 3-letter code", h.Originator)}
	}
	if reg != nil && !reg.ValidOriginator(h.Originator) {
		return &ValidationError{Field: "originator", Reason: fmt.Sprintf("%q is not a registered originator", h.Originator)}
	}
	if len(h.EventCode) != 3 || !allUpper(h.EventCode) {
		return &ValidationError{Field: "event_code", Reason: fmt.Sprintf("%q is not a 3-letter code", h.EventCode)}
	}
	if reg != nil && !reg.ValidEvent(h.EventCode) {
		return &ValidationError{Field: "event_code", Reason: fmt.Sprintf("%q is not a registered event code", h.EventCode)}
	}
	if n := len(h.LocationCodes); n < MinLocationCodes || n > MaxLocationCodes {
		return &ValidationError{Field: "location_codes", Reason: fmt.Sprintf("%d codes, want %d-%d", n, MinLocationCodes, MaxLocationCodes)}
	}
	for _, loc := range h.LocationCodes {
		if len(loc) != 6 || !allDigits(loc) {
			return &ValidationError{Field: "location_codes", Reason: fmt.Sprintf("%q is not a 6-digit PSSCCC code", loc)}
		}
	}
	if h.ValidMinutes <= 0 || h.ValidMinutes > MaxValidMinutes {
		return &ValidationError{Field: "valid_minutes", Reason: fmt.Sprintf("%d out of range 1-%d", h.ValidMinutes, MaxValidMinutes)}
	}
	if !h.IssueTime.IsZero() {
		if err := h.IssueTime.Validate(); err != nil {
			return &ValidationError{Field: "issue_time", Reason: err.Error()}
		}
	}
	if len(h.StationID) > StationIDLength {
		return &ValidationError{Field: "station_id", Reason: fmt.Sprintf("%q longer than %d characters", h.StationID, StationIDLength)}
	}
	if strings.TrimRight(h.StationID, " ") == "" {
		return &ValidationError{Field: "station_id", Reason: "empty"}
	}
	for _, c := range h.StationID {
		if c < 0x20 || c > 0x7e || c == '-' || c == '+' {
			return &ValidationError{Field: "station_id", Reason: fmt.Sprintf("character %q not allowed", c)}
		}
	}
	return nil
}

// paddedStationID returns the station identifier space-padded to 8 characters.
func (h Header) paddedStationID() string {
	return fmt.Sprintf("%-*s", StationIDLength, h.StationID)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func allUpper(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return len(s) > 0
}

// atoi is strconv.Atoi for strings already known to be all digits.
func atoi(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}
