package segment

import (
	"encoding/binary"
	"errors"

	"github.com/hupe1980/colgo/internal/blockio"
)

const (
	// MagicNumber identifies a segment file ("COL1").
	MagicNumber = 0x434F4C31
	// Version is the current format version.
	Version = 1
	// HeaderSize is the fixed byte length of the file header.
	HeaderSize = 88
)

var (
	// ErrInvalidMagic indicates the file is not a segment.
	ErrInvalidMagic = errors.New("invalid magic number")
	// ErrInvalidVersion indicates an unsupported format version.
	ErrInvalidVersion = errors.New("unsupported version")
)

// FileHeader describes the layout of a segment file.
//
// Layout after the header, in order: one framed value block per column
// in sorted column-name order, each optionally followed by a framed
// null bitmap block; a framed key index block; the column directory.
// The checksum covers everything after the header.
type FileHeader struct {
	Magic          uint32
	Version        uint32
	Sequence       uint64
	RowCount       uint32
	ColumnCount    uint32
	Fingerprint    uint64
	Compression    blockio.Compression
	DirOffset      uint64
	DirSize        uint64
	KeyIndexOffset uint64
	KeyIndexSize   uint64
	Checksum       uint32 // CRC32C of the body (everything after header)
}

// Encode serializes the header into a fixed-size buffer.
func (h *FileHeader) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:], h.Version)
	binary.LittleEndian.PutUint64(buf[8:], h.Sequence)
	binary.LittleEndian.PutUint32(buf[16:], h.RowCount)
	binary.LittleEndian.PutUint32(buf[20:], h.ColumnCount)
	binary.LittleEndian.PutUint64(buf[24:], h.Fingerprint)
	buf[32] = byte(h.Compression)
	// Padding [33:40]
	binary.LittleEndian.PutUint64(buf[40:], h.DirOffset)
	binary.LittleEndian.PutUint64(buf[48:], h.DirSize)
	binary.LittleEndian.PutUint64(buf[56:], h.KeyIndexOffset)
	binary.LittleEndian.PutUint64(buf[64:], h.KeyIndexSize)
	binary.LittleEndian.PutUint32(buf[72:], h.Checksum)
	// Reserved [76:88]
	return buf
}

// DecodeHeader parses and sanity-checks a file header.
func DecodeHeader(buf []byte) (*FileHeader, error) {
	if len(buf) < HeaderSize {
		return nil, errors.New("buffer too small for header")
	}
	h := &FileHeader{}
	h.Magic = binary.LittleEndian.Uint32(buf[0:])
	if h.Magic != MagicNumber {
		return nil, ErrInvalidMagic
	}
	h.Version = binary.LittleEndian.Uint32(buf[4:])
	if h.Version != Version {
		return nil, ErrInvalidVersion
	}
	h.Sequence = binary.LittleEndian.Uint64(buf[8:])
	h.RowCount = binary.LittleEndian.Uint32(buf[16:])
	h.ColumnCount = binary.LittleEndian.Uint32(buf[20:])
	h.Fingerprint = binary.LittleEndian.Uint64(buf[24:])
	h.Compression = blockio.Compression(buf[32])
	h.DirOffset = binary.LittleEndian.Uint64(buf[40:])
	h.DirSize = binary.LittleEndian.Uint64(buf[48:])
	h.KeyIndexOffset = binary.LittleEndian.Uint64(buf[56:])
	h.KeyIndexSize = binary.LittleEndian.Uint64(buf[64:])
	h.Checksum = binary.LittleEndian.Uint32(buf[72:])
	if !h.Compression.Valid() {
		return nil, errors.New("unknown compression type")
	}
	return h, nil
}

// dirEntry locates one column's blocks within the file.
// Offsets are absolute; NullSize == 0 means the column has no null
// bitmap (non-nullable, or simply no nulls in this segment).
type dirEntry struct {
	ValueOffset uint64
	ValueSize   uint64
	NullOffset  uint64
	NullSize    uint64
}

func encodeDirectory(names []string, entries map[string]dirEntry) []byte {
	size := 4
	for _, name := range names {
		size += 2 + len(name) + 32
	}
	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:], uint32(len(names)))
	off := 4
	for _, name := range names {
		e := entries[name]
		binary.LittleEndian.PutUint16(buf[off:], uint16(len(name)))
		off += 2
		copy(buf[off:], name)
		off += len(name)
		binary.LittleEndian.PutUint64(buf[off:], e.ValueOffset)
		binary.LittleEndian.PutUint64(buf[off+8:], e.ValueSize)
		binary.LittleEndian.PutUint64(buf[off+16:], e.NullOffset)
		binary.LittleEndian.PutUint64(buf[off+24:], e.NullSize)
		off += 32
	}
	return buf
}

func decodeDirectory(buf []byte) (map[string]dirEntry, error) {
	if len(buf) < 4 {
		return nil, errors.New("directory truncated")
	}
	count := binary.LittleEndian.Uint32(buf[0:])
	entries := make(map[string]dirEntry, count)
	off := 4
	for i := uint32(0); i < count; i++ {
		if off+2 > len(buf) {
			return nil, errors.New("directory truncated")
		}
		nameLen := int(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
		if off+nameLen+32 > len(buf) {
			return nil, errors.New("directory truncated")
		}
		name := string(buf[off : off+nameLen])
		off += nameLen
		entries[name] = dirEntry{
			ValueOffset: binary.LittleEndian.Uint64(buf[off:]),
			ValueSize:   binary.LittleEndian.Uint64(buf[off+8:]),
			NullOffset:  binary.LittleEndian.Uint64(buf[off+16:]),
			NullSize:    binary.LittleEndian.Uint64(buf[off+24:]),
		}
		off += 32
	}
	return entries, nil
}
