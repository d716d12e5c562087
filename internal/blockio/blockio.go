// Package blockio frames byte blocks with optional compression.
//
// Segment column blocks pass through this framing. A block that does
// not shrink under compression is stored raw, so framing never
// inflates data beyond the fixed header.
package blockio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the block compression algorithm.
type Compression uint8

const (
	// None stores blocks uncompressed.
	None Compression = 0
	// LZ4 uses LZ4 block compression (fast, moderate ratio).
	LZ4 Compression = 1
	// Zstd uses zstd block compression (better ratio, slower).
	Zstd Compression = 2
)

// String returns the name of the compression algorithm.
func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// Valid reports whether c is a known algorithm.
func (c Compression) Valid() bool { return c <= Zstd }

// Block frame: [uncompressedSize uint32][compressedSize uint32][payload].
// compressedSize == 0 means the payload is stored raw.
const headerSize = 8

var (
	// ErrTruncated indicates a frame shorter than its header claims.
	ErrTruncated = errors.New("blockio: truncated block")

	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Frame encodes data as a framed block using the given algorithm.
func Frame(data []byte, c Compression) ([]byte, error) {
	var compressed []byte
	switch c {
	case None:
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("blockio: lz4 compress: %w", err)
		}
		if n > 0 && n < len(data) {
			compressed = buf[:n]
		}
	case Zstd:
		enc := getZstdEncoder()
		buf := enc.EncodeAll(data, make([]byte, 0, len(data)))
		zstdEncoderPool.Put(enc)
		if len(buf) < len(data) {
			compressed = buf
		}
	default:
		return nil, fmt.Errorf("blockio: unknown compression %d", c)
	}

	payload := data
	compressedSize := uint32(0)
	if compressed != nil {
		payload = compressed
		compressedSize = uint32(len(compressed))
	}

	out := make([]byte, headerSize+len(payload))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], compressedSize)
	copy(out[headerSize:], payload)
	return out, nil
}

// Unframe decodes a framed block. When the payload was stored raw the
// returned slice aliases data; callers treat it as read-only.
func Unframe(data []byte, c Compression) ([]byte, error) {
	if len(data) < headerSize {
		return nil, ErrTruncated
	}
	uncompressedSize := binary.LittleEndian.Uint32(data[0:])
	compressedSize := binary.LittleEndian.Uint32(data[4:])
	payload := data[headerSize:]

	if compressedSize == 0 {
		if uint32(len(payload)) < uncompressedSize {
			return nil, ErrTruncated
		}
		return payload[:uncompressedSize], nil
	}
	if uint32(len(payload)) < compressedSize {
		return nil, ErrTruncated
	}
	payload = payload[:compressedSize]

	switch c {
	case LZ4:
		out := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("blockio: lz4 decompress: %w", err)
		}
		if uint32(n) != uncompressedSize {
			return nil, fmt.Errorf("blockio: lz4 size mismatch: got %d, want %d", n, uncompressedSize)
		}
		return out, nil
	case Zstd:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(payload, make([]byte, 0, uncompressedSize))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("blockio: zstd decompress: %w", err)
		}
		if uint32(len(out)) != uncompressedSize {
			return nil, fmt.Errorf("blockio: zstd size mismatch: got %d, want %d", len(out), uncompressedSize)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("blockio: compressed block but compression is %s", c)
	}
}

// FrameSize returns the total frame length starting at data, so a
// decoder can step over a block without decompressing it.
func FrameSize(data []byte) (int, error) {
	if len(data) < headerSize {
		return 0, ErrTruncated
	}
	uncompressedSize := binary.LittleEndian.Uint32(data[0:])
	compressedSize := binary.LittleEndian.Uint32(data[4:])
	size := int(compressedSize)
	if compressedSize == 0 {
		size = int(uncompressedSize)
	}
	if len(data) < headerSize+size {
		return 0, ErrTruncated
	}
	return headerSize + size, nil
}
