package same

import (
	"fmt"
	"strings"
)

// WireHeaderPrefix marks the start of every header burst.
const WireHeaderPrefix = "ZCZC"

// Every burst is preceded by sixteen 0xAB bytes for clock recovery.
const (
	PreambleByte   byte = 0xAB
	PreambleLength      = 16
)

// MaxWireLength is the longest possible header string: "ZCZC-ORG-EEE-" plus
// 31 dash-separated location codes plus "+TTTT-JJJHHMM-LLLLLLLL-".
const MaxWireLength = 252

// WireString renders the dash-framed transmission form of the header. The
// header is assumed valid; call Validate first. An unset issue time renders
// as "0000000" and must be resolved by the encoder before transmission.
func (h Header) WireString() string {
	var b strings.Builder
	b.Grow(MaxWireLength)
	b.WriteString(WireHeaderPrefix)
	b.WriteByte('-')
	b.WriteString(h.Originator)
	b.WriteByte('-')
	b.WriteString(h.EventCode)
	for _, loc := range h.LocationCodes {
		b.WriteByte('-')
		b.WriteString(loc)
	}
	fmt.Fprintf(&b, "+%04d-%s-%s-", h.ValidMinutes, h.IssueTime.String(), h.paddedStationID())
	return b.String()
}

// ParseWireString parses a dash-framed header string back into its structured
// form. The input must be the exact transmission form including the trailing
// dash. Only structure and digit fields are checked here; registry lookups
// are the caller's concern.
func ParseWireString(s string) (Header, error) {
	var h Header
	if len(s) > MaxWireLength {
		return h, fmt.Errorf("header length %d exceeds %d", len(s), MaxWireLength)
	}
	if !strings.HasPrefix(s, WireHeaderPrefix+"-") {
		return h, fmt.Errorf("header does not start with %q", WireHeaderPrefix+"-")
	}
	if !strings.HasSuffix(s, "-") {
		return h, fmt.Errorf("header missing trailing dash")
	}
	plus := strings.IndexByte(s, '+')
	if plus < 0 {
		return h, fmt.Errorf("header missing '+' separator")
	}

	// Leading part: ZCZC-ORG-EEE-PSSCCC[-PSSCCC...]
	head := strings.Split(s[:plus], "-")
	if len(head) < 4 {
		return h, fmt.Errorf("header has %d fields before '+', want at least 4", len(head))
	}
	h.Originator = head[1]
	h.EventCode = head[2]
	if len(h.Originator) != 3 {
		return h, fmt.Errorf("originator %q is not 3 characters", h.Originator)
	}
	if len(h.EventCode) != 3 {
		return h, fmt.Errorf("event code %q is not 3 characters", h.EventCode)
	}
	locs := head[3:]
	if len(locs) > MaxLocationCodes {
		return h, fmt.Errorf("%d location codes exceeds %d", len(locs), MaxLocationCodes)
	}
	for _, loc := range locs {
		if len(loc) != 6 || !allDigits(loc) {
			return h, fmt.Errorf("location code %q is not 6 digits", loc)
		}
	}
	h.LocationCodes = locs

	// Trailing part: TTTT-JJJHHMM-LLLLLLLL- (the leading dash is consumed by
	// the '+' split, the trailing dash leaves an empty final field).
	tail := strings.Split(s[plus+1:], "-")
	if len(tail) != 4 || tail[3] != "" {
		return h, fmt.Errorf("header tail has wrong dash framing")
	}
	if len(tail[0]) != 4 || !allDigits(tail[0]) {
		return h, fmt.Errorf("valid period %q is not 4 digits", tail[0])
	}
	h.ValidMinutes = atoi(tail[0])
	it, err := ParseIssueTime(tail[1])
	if err != nil {
		return h, err
	}
	h.IssueTime = it
	if len(tail[2]) != StationIDLength {
		return h, fmt.Errorf("station id %q is not %d characters", tail[2], StationIDLength)
	}
	for _, c := range tail[2] {
		if c < 0x20 || c > 0x7e {
			return h, fmt.Errorf("station id contains non-printable character %q", c)
		}
	}
	h.StationID = tail[2]
	return h, nil
}
