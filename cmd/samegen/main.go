// Command samegen encodes an alert header into a raw PCM transmission.
//
// Usage:
//
//	go run ./cmd/samegen \
//	  -originator WXR -event TOR -locations 039173 \
//	  -minutes 45 -issue 0121415 -station KEAS \
//	  -out tornado.raw
//
// Output is signed 16-bit little-endian mono at the chosen sample rate;
// play it with e.g. `ffplay -f s16le -ar 22050 -ch_layout mono tornado.raw`.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/couchcryptid/same-codec/internal/adapter/pcm"
	"github.com/couchcryptid/same-codec/internal/codec"
	"github.com/couchcryptid/same-codec/internal/encode"
	"github.com/couchcryptid/same-codec/internal/same"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	originator := flag.String("originator", "WXR", "originator code (EAS, CIV, WXR, PEP)")
	event := flag.String("event", "", "three-letter event code, e.g. TOR")
	locations := flag.String("locations", "", "comma-separated six-digit PSSCCC location codes")
	minutes := flag.Int("minutes", 60, "valid period in minutes")
	issue := flag.String("issue", "", "issue time as JJJHHMM; empty means now")
	station := flag.String("station", "", "station identifier, up to 8 characters")
	rate := flag.Int("rate", encode.DefaultSampleRate, "output sample rate in Hz")
	attention := flag.Float64("attention", encode.MinAttentionSeconds, "attention tone duration in seconds")
	message := flag.String("message", "", "raw s16le file to splice in as the voice message")
	out := flag.String("out", "", "output file; empty writes to stdout")
	dryRun := flag.Bool("dry-run", false, "print the wire string without synthesizing audio")
	flag.Parse()

	if *event == "" || *locations == "" || *station == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -event, -locations, -station")
	}

	h := same.Header{
		Originator:    *originator,
		EventCode:     *event,
		LocationCodes: strings.Split(*locations, ","),
		ValidMinutes:  *minutes,
		StationID:     *station,
	}
	if *issue != "" {
		it, err := same.ParseIssueTime(*issue)
		if err != nil {
			return err
		}
		h.IssueTime = it
	}

	if *dryRun {
		if err := codec.ValidateHeader(h); err != nil {
			return err
		}
		fmt.Println(h.WireString())
		return nil
	}

	opts := encode.Options{
		SampleRate:       *rate,
		AttentionSeconds: *attention,
	}
	if *message != "" {
		audio, err := readMessageAudio(*message)
		if err != nil {
			return err
		}
		opts.MessageAudio = audio
	}

	msg, err := codec.Encode(h, opts)
	if err != nil {
		return err
	}

	dst := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		dst = f
	}

	if err := pcm.WriteS16LE(dst, msg.PCM()); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}

	fmt.Fprintf(os.Stderr, "%s\n%d Hz, %s\n", msg.Wire, msg.SampleRate, msg.Duration())
	return nil
}

func readMessageAudio(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := pcm.NewReader(f, pcm.FormatS16LE, 4096)
	if err != nil {
		return nil, err
	}
	var audio []float64
	for {
		chunk, err := r.Read()
		if err != nil {
			if err == io.EOF {
				return audio, nil
			}
			return nil, err
		}
		audio = append(audio, chunk...)
	}
}
