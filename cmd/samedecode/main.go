// Command samedecode decodes alert transmissions from a raw PCM file and
// prints consolidated alerts as JSON lines.
//
// Usage:
//
//	go run ./cmd/samedecode -rate 22050 -format s16le tornado.raw
//
// With no file argument it reads from stdin.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

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
	rate := flag.Int("rate", encode.DefaultSampleRate, "input sample rate in Hz")
	format := flag.String("format", "s16le", "sample format: s16le or f32le")
	minConfidence := flag.Float64("min-confidence", 0, "drop alerts below this confidence")
	verbose := flag.Bool("v", false, "log framing details to stderr")
	flag.Parse()

	src := os.Stdin
	if flag.NArg() > 0 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}

	f, err := pcm.ParseFormat(*format)
	if err != nil {
		return err
	}
	reader, err := pcm.NewReader(src, f, *rate/10)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	decoder, err := codec.NewDecoder(codec.Options{
		SampleRate:    *rate,
		Logger:        logger,
		MinConfidence: *minConfidence,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	emit := func(alerts []same.Alert) error {
		for _, alert := range alerts {
			if err := enc.Encode(alert); err != nil {
				return err
			}
		}
		return nil
	}

	for {
		chunk, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("read audio: %w", err)
		}
		if err := emit(decoder.Write(chunk)); err != nil {
			return err
		}
	}
	return emit(decoder.Close())
}
