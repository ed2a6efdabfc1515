// Package same models Specific Area Message Encoding (SAME) alert headers
// as defined by FCC Part 11 and used by the NOAA Weather Radio / Emergency
// Alert System.
//
// # Wire Format
//
// A SAME header is a dash-framed ASCII string:
//
//	ZCZC-ORG-EEE-PSSCCC[-PSSCCC...]+TTTT-JJJHHMM-LLLLLLLL-
//
// Field conventions:
//
//	ORG      3-letter originator code (PEP, CIV, WXR, EAS).
//	EEE      3-letter event code, e.g. TOR (Tornado Warning), RWT (Required
//	         Weekly Test). The full table lives in the embedded code registry.
//	PSSCCC   6-digit location code: P is a county subdivision (0 = whole
//	         county), SS the ANSI state number, CCC the county number.
//	         Between 1 and 31 codes, dash-separated.
//	TTTT     valid period in minutes, zero-padded to 4 digits.
//	JJJHHMM  issue time: Julian day of year (001-366) plus 24-hour UTC time.
//	LLLLLLLL 8-character station identifier, space-padded on the right.
//	         Dashes are not allowed inside the identifier; slashes are
//	         conventional (e.g. "KLOX/NWS").
//
// The end-of-message marker is the literal string "NNNN".
//
// # Transmission
//
// Each header is preceded by sixteen 0xAB preamble bytes and transmitted
// three times for redundancy, bytes serialized LSB-first at 520.83 baud AFSK
// (mark 2083.3 Hz, space 1562.5 Hz). Those concerns live in the dsp, encode,
// demod, and frame packages; this package only deals with the header itself.
package same
