package segment

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"sort"

	"github.com/hupe1980/colgo/internal/blockio"
	"github.com/hupe1980/colgo/model"
	"github.com/hupe1980/colgo/schema"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Encode serializes a validated batch into a complete segment file
// image. The batch must already conform to ts; Encode does not
// re-validate.
//
// Columns are laid out in sorted name order so the layout is
// deterministic for a given schema and batch.
func Encode(ts schema.TableSchema, b *model.Batch, seq uint64, comp blockio.Compression) ([]byte, error) {
	names := ts.ColumnNames()
	entries := make(map[string]dirEntry, len(names))

	var body []byte
	offset := uint64(HeaderSize)

	appendBlock := func(raw []byte) (uint64, uint64, error) {
		framed, err := blockio.Frame(raw, comp)
		if err != nil {
			return 0, 0, err
		}
		blockOff := offset
		body = append(body, framed...)
		offset += uint64(len(framed))
		return blockOff, uint64(len(framed)), nil
	}

	for _, name := range names {
		col, ok := b.Column(name)
		if !ok {
			return nil, fmt.Errorf("segment: batch missing column %q", name)
		}
		raw, err := encodeValues(col)
		if err != nil {
			return nil, err
		}
		e := dirEntry{}
		if e.ValueOffset, e.ValueSize, err = appendBlock(raw); err != nil {
			return nil, err
		}
		if col.HasNulls() {
			nullRaw, err := col.Nulls().ToBytes()
			if err != nil {
				return nil, fmt.Errorf("segment: serialize null bitmap for %q: %w", name, err)
			}
			if e.NullOffset, e.NullSize, err = appendBlock(nullRaw); err != nil {
				return nil, err
			}
		}
		entries[name] = e
	}

	keyCol, _ := b.Column(ts.Key)
	keyIdxOff, keyIdxSize, err := appendBlock(encodeKeyIndex(keyCol))
	if err != nil {
		return nil, err
	}

	dir := encodeDirectory(names, entries)
	dirOff := offset
	body = append(body, dir...)

	h := FileHeader{
		Magic:          MagicNumber,
		Version:        Version,
		Sequence:       seq,
		RowCount:       uint32(b.RowCount()),
		ColumnCount:    uint32(len(names)),
		Fingerprint:    ts.Fingerprint(),
		Compression:    comp,
		DirOffset:      dirOff,
		DirSize:        uint64(len(dir)),
		KeyIndexOffset: keyIdxOff,
		KeyIndexSize:   keyIdxSize,
		Checksum:       crc32.Checksum(body, castagnoli),
	}

	out := make([]byte, 0, HeaderSize+len(body))
	out = append(out, h.Encode()...)
	out = append(out, body...)
	return out, nil
}

// encodeValues serializes a column's dense value array.
//
// Fixed-width types are raw little-endian arrays. Utf8 is rows+1
// uint32 offsets into a concatenated payload, murr-style, so a single
// value can be sliced out without materializing the column.
func encodeValues(col *model.Column) ([]byte, error) {
	rows := col.Len()
	switch col.DType() {
	case schema.DTypeFloat32:
		buf := make([]byte, 4*rows)
		for i, v := range col.Float32s() {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		return buf, nil
	case schema.DTypeInt64:
		buf := make([]byte, 8*rows)
		for i, v := range col.Int64s() {
			binary.LittleEndian.PutUint64(buf[i*8:], uint64(v))
		}
		return buf, nil
	case schema.DTypeBool:
		buf := make([]byte, rows)
		for i, v := range col.Bools() {
			if v {
				buf[i] = 1
			}
		}
		return buf, nil
	case schema.DTypeUtf8:
		strs := col.Strings()
		payloadLen := 0
		for _, s := range strs {
			payloadLen += len(s)
		}
		buf := make([]byte, 4*(rows+1)+payloadLen)
		payload := buf[4*(rows+1):]
		pos := uint32(0)
		for i, s := range strs {
			binary.LittleEndian.PutUint32(buf[i*4:], pos)
			copy(payload[pos:], s)
			pos += uint32(len(s))
		}
		binary.LittleEndian.PutUint32(buf[rows*4:], pos)
		return buf, nil
	default:
		return nil, fmt.Errorf("segment: column %q has invalid dtype", col.Name())
	}
}

// encodeKeyIndex builds the key index: row offsets sorted by key
// value, one entry per distinct key. When a key occurs more than once
// in the batch, the later row wins.
func encodeKeyIndex(keyCol *model.Column) []byte {
	last := make(map[model.Value]uint32, keyCol.Len())
	for row := 0; row < keyCol.Len(); row++ {
		last[keyCol.Value(row)] = uint32(row)
	}

	type entry struct {
		key model.Value
		row uint32
	}
	sorted := make([]entry, 0, len(last))
	for k, r := range last {
		sorted = append(sorted, entry{key: k, row: r})
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].key.Compare(sorted[j].key) < 0
	})

	buf := make([]byte, 4+4*len(sorted))
	binary.LittleEndian.PutUint32(buf[0:], uint32(len(sorted)))
	for i, e := range sorted {
		binary.LittleEndian.PutUint32(buf[4+i*4:], e.row)
	}
	return buf
}
