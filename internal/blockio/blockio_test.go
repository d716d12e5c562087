package blockio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compressible(n int) []byte {
	return bytes.Repeat([]byte("abcdefgh"), n/8+1)[:n]
}

func TestFrameRoundTrip(t *testing.T) {
	data := compressible(4096)

	for _, c := range []Compression{None, LZ4, Zstd} {
		t.Run(c.String(), func(t *testing.T) {
			framed, err := Frame(data, c)
			require.NoError(t, err)

			got, err := Unframe(framed, c)
			require.NoError(t, err)
			assert.Equal(t, data, got)

			if c != None {
				assert.Less(t, len(framed), len(data), "repetitive data should shrink")
			}

			size, err := FrameSize(framed)
			require.NoError(t, err)
			assert.Equal(t, len(framed), size)
		})
	}
}

func TestFrameIncompressibleStoredRaw(t *testing.T) {
	// High-entropy data: compression cannot shrink it, so the frame
	// stores it raw under any algorithm.
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i * 167)
	}

	for _, c := range []Compression{LZ4, Zstd} {
		framed, err := Frame(data, c)
		require.NoError(t, err)
		assert.Equal(t, headerSize+len(data), len(framed), c.String())

		got, err := Unframe(framed, c)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	}
}

func TestUnframeRawAliasesInput(t *testing.T) {
	data := compressible(64)
	framed, err := Frame(data, None)
	require.NoError(t, err)

	got, err := Unframe(framed, None)
	require.NoError(t, err)
	assert.Same(t, &framed[headerSize], &got[0], "raw payload should be zero-copy")
}

func TestFrameEmpty(t *testing.T) {
	for _, c := range []Compression{None, LZ4, Zstd} {
		framed, err := Frame(nil, c)
		require.NoError(t, err)
		got, err := Unframe(framed, c)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

func TestUnframeTruncated(t *testing.T) {
	framed, err := Frame(compressible(128), Zstd)
	require.NoError(t, err)

	_, err = Unframe(framed[:4], Zstd)
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = Unframe(framed[:len(framed)-1], Zstd)
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = FrameSize(framed[:len(framed)-1])
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestUnknownCompression(t *testing.T) {
	_, err := Frame([]byte("x"), Compression(9))
	assert.Error(t, err)
	assert.False(t, Compression(9).Valid())
	assert.Equal(t, "unknown", Compression(9).String())
}
