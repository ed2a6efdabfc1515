package pcm

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func s16leBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func f32leBytes(samples []float32) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return buf
}

func TestReader_S16LE(t *testing.T) {
	src := bytes.NewReader(s16leBytes([]int16{0, 16384, -16384, 32767, -32768}))
	r, err := NewReader(src, FormatS16LE, 5)
	require.NoError(t, err)

	chunk, err := r.Read()
	require.NoError(t, err)
	require.Len(t, chunk, 5)
	assert.Zero(t, chunk[0])
	assert.InDelta(t, 0.5, chunk[1], 1e-4)
	assert.InDelta(t, -0.5, chunk[2], 1e-4)
	assert.InDelta(t, 1.0, chunk[3], 1e-4)
	assert.InDelta(t, -1.0, chunk[4], 1e-4)

	_, err = r.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_F32LE(t *testing.T) {
	src := bytes.NewReader(f32leBytes([]float32{0, 0.25, -0.75}))
	r, err := NewReader(src, FormatF32LE, 3)
	require.NoError(t, err)

	chunk, err := r.Read()
	require.NoError(t, err)
	require.Len(t, chunk, 3)
	assert.InDelta(t, 0.25, chunk[1], 1e-6)
	assert.InDelta(t, -0.75, chunk[2], 1e-6)
}

func TestReader_PartialFinalChunk(t *testing.T) {
	src := bytes.NewReader(s16leBytes([]int16{100, 200, 300}))
	r, err := NewReader(src, FormatS16LE, 2)
	require.NoError(t, err)

	chunk, err := r.Read()
	require.NoError(t, err)
	assert.Len(t, chunk, 2)

	chunk, err = r.Read()
	require.NoError(t, err)
	assert.Len(t, chunk, 1)

	_, err = r.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_RejectsBadArguments(t *testing.T) {
	_, err := NewReader(bytes.NewReader(nil), FormatS16LE, 0)
	assert.Error(t, err)

	_, err = NewReader(bytes.NewReader(nil), Format("u8"), 10)
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("s16le")
	require.NoError(t, err)
	assert.Equal(t, FormatS16LE, f)

	f, err = ParseFormat("f32le")
	require.NoError(t, err)
	assert.Equal(t, FormatF32LE, f)

	_, err = ParseFormat("mp3")
	assert.Error(t, err)
}

func TestWriteS16LE_RoundTripAndClipping(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, WriteS16LE(&out, []float64{0, 0.5, -0.5, 1.5, -1.5}))

	r, err := NewReader(bytes.NewReader(out.Bytes()), FormatS16LE, 5)
	require.NoError(t, err)
	chunk, err := r.Read()
	require.NoError(t, err)

	assert.Zero(t, chunk[0])
	assert.InDelta(t, 0.5, chunk[1], 1e-3)
	assert.InDelta(t, -0.5, chunk[2], 1e-3)
	assert.InDelta(t, 1.0, chunk[3], 1e-3)
	assert.InDelta(t, -1.0, chunk[4], 1e-3)
}
