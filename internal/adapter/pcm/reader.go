// Package pcm reads raw little-endian PCM from a stream and converts it to
// the mono float64 chunks the decoder consumes.
package pcm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Format identifies the raw sample encoding.
type Format string

const (
	FormatS16LE Format = "s16le"
	FormatF32LE Format = "f32le"
)

// ParseFormat maps a config string to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatS16LE, FormatF32LE:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown sample format %q", s)
}

func (f Format) bytesPerSample() int {
	if f == FormatF32LE {
		return 4
	}
	return 2
}

// Reader decodes fixed-duration chunks of raw PCM from an underlying stream.
type Reader struct {
	src        io.Reader
	format     Format
	buf        []byte
	samples    []float64
	chunkBytes int
}

// NewReader wraps src. chunkSamples sets how many samples each Read returns;
// the final chunk of a stream may be shorter.
func NewReader(src io.Reader, format Format, chunkSamples int) (*Reader, error) {
	if chunkSamples <= 0 {
		return nil, errors.New("chunk size must be positive")
	}
	if format != FormatS16LE && format != FormatF32LE {
		return nil, fmt.Errorf("unknown sample format %q", format)
	}
	return &Reader{
		src:        src,
		format:     format,
		buf:        make([]byte, chunkSamples*format.bytesPerSample()),
		samples:    make([]float64, chunkSamples),
		chunkBytes: chunkSamples * format.bytesPerSample(),
	}, nil
}

// Read returns the next chunk of samples, normalized to [-1, 1]. The returned
// slice is reused across calls; copy it if it must outlive the next Read. At
// end of stream it returns any final partial chunk, then (nil, io.EOF).
func (r *Reader) Read() ([]float64, error) {
	n, err := io.ReadFull(r.src, r.buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}

	bps := r.format.bytesPerSample()
	count := n / bps
	if count == 0 {
		return nil, io.EOF
	}

	out := r.samples[:count]
	switch r.format {
	case FormatF32LE:
		for i := 0; i < count; i++ {
			bits := binary.LittleEndian.Uint32(r.buf[i*4:])
			out[i] = float64(math.Float32frombits(bits))
		}
	default:
		for i := 0; i < count; i++ {
			v := int16(binary.LittleEndian.Uint16(r.buf[i*2:]))
			out[i] = float64(v) / 32768.0
		}
	}
	return out, nil
}

// WriteS16LE converts float samples to signed 16-bit little-endian and writes
// them to w, clipping anything outside [-1, 1].
func WriteS16LE(w io.Writer, samples []float64) error {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Round(s * 32767)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(v)))
	}
	_, err := w.Write(buf)
	return err
}
