package segment

import (
	"encoding/binary"
	"hash/crc32"
	"math"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/colgo/internal/blockio"
	"github.com/hupe1980/colgo/internal/mmap"
	"github.com/hupe1980/colgo/model"
	"github.com/hupe1980/colgo/schema"
)

// Reader is a read-only view over one published segment file.
//
// The file is memory-mapped; columns are materialized lazily and only
// when requested, so a read that touches two columns never decodes the
// rest. Readers are safe for concurrent use.
type Reader struct {
	path string
	seq  uint64
	sch  schema.TableSchema
	m    *mmap.File
	hdr  *FileHeader
	dir  map[string]dirEntry

	mu    sync.RWMutex
	views map[string]*columnView

	keyOnce sync.Once
	keyErr  error
	keyIdx  []byte
	keyView *columnView
}

// Open maps the segment at path and verifies its integrity: magic,
// version, body checksum, schema fingerprint, and the sequence number
// embedded at write time (which must match the one recovered from the
// file name).
func Open(path string, ts schema.TableSchema, seq uint64) (*Reader, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := newReader(path, ts, seq, m)
	if err != nil {
		m.Close()
		return nil, err
	}
	return r, nil
}

func newReader(path string, ts schema.TableSchema, seq uint64, m *mmap.File) (*Reader, error) {
	if m.Size() < HeaderSize {
		return nil, corrupt(path, seq, "file shorter than header", nil)
	}
	hdr, err := DecodeHeader(m.Data)
	if err != nil {
		return nil, corrupt(path, seq, "bad header", err)
	}
	if hdr.Sequence != seq {
		return nil, corrupt(path, seq, "sequence number does not match file name", nil)
	}
	if sum := crc32.Checksum(m.Data[HeaderSize:], castagnoli); sum != hdr.Checksum {
		return nil, corrupt(path, seq, "checksum mismatch", nil)
	}
	if hdr.Fingerprint != ts.Fingerprint() {
		return nil, corrupt(path, seq, "schema fingerprint mismatch", nil)
	}

	dirEnd := hdr.DirOffset + hdr.DirSize
	if hdr.DirOffset < HeaderSize || dirEnd > uint64(m.Size()) {
		return nil, corrupt(path, seq, "directory out of bounds", nil)
	}
	dir, err := decodeDirectory(m.Data[hdr.DirOffset:dirEnd])
	if err != nil {
		return nil, corrupt(path, seq, "bad directory", err)
	}

	return &Reader{
		path:  path,
		seq:   seq,
		sch:   ts,
		m:     m,
		hdr:   hdr,
		dir:   dir,
		views: make(map[string]*columnView),
	}, nil
}

// Sequence returns the segment's per-table sequence number.
func (r *Reader) Sequence() uint64 { return r.seq }

// RowCount returns the number of rows in the segment.
func (r *Reader) RowCount() uint32 { return r.hdr.RowCount }

// Path returns the on-disk location of the segment.
func (r *Reader) Path() string { return r.path }

// Close unmaps the segment. The table manager owns the reader; the
// read path only borrows it.
func (r *Reader) Close() error { return r.m.Close() }

// Lookup returns the row offset of key within this segment, using
// binary search over the key index. Within a segment a duplicated key
// resolves to its last occurrence in write order.
func (r *Reader) Lookup(key model.Value) (uint32, bool, error) {
	r.keyOnce.Do(func() {
		r.keyIdx, r.keyErr = r.block(r.hdr.KeyIndexOffset, r.hdr.KeyIndexSize, "key index")
		if r.keyErr != nil {
			return
		}
		if len(r.keyIdx) < 4 {
			r.keyErr = corrupt(r.path, r.seq, "key index truncated", nil)
			return
		}
		r.keyView, r.keyErr = r.view(r.sch.Key)
	})
	if r.keyErr != nil {
		return 0, false, r.keyErr
	}

	count := int(binary.LittleEndian.Uint32(r.keyIdx[0:]))
	if len(r.keyIdx) < 4+4*count {
		return 0, false, corrupt(r.path, r.seq, "key index truncated", nil)
	}
	rowAt := func(i int) uint32 {
		return binary.LittleEndian.Uint32(r.keyIdx[4+i*4:])
	}

	i := sort.Search(count, func(i int) bool {
		return r.keyView.valueAt(rowAt(i)).Compare(key) >= 0
	})
	if i < count {
		row := rowAt(i)
		if r.keyView.valueAt(row).Equal(key) {
			return row, true, nil
		}
	}
	return 0, false, nil
}

// Value returns the value of the named column at the given row,
// materializing only that column.
func (r *Reader) Value(name string, row uint32) (model.Value, error) {
	v, err := r.view(name)
	if err != nil {
		return model.Value{}, err
	}
	return v.valueAt(row), nil
}

// view returns the lazily built view of a column.
func (r *Reader) view(name string) (*columnView, error) {
	r.mu.RLock()
	v, ok := r.views[name]
	r.mu.RUnlock()
	if ok {
		return v, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.views[name]; ok {
		return v, nil
	}

	cs, ok := r.sch.Columns[name]
	if !ok {
		return nil, corrupt(r.path, r.seq, "column "+name+" not in schema", nil)
	}
	e, ok := r.dir[name]
	if !ok {
		return nil, corrupt(r.path, r.seq, "column "+name+" missing from directory", nil)
	}

	data, err := r.block(e.ValueOffset, e.ValueSize, "column "+name)
	if err != nil {
		return nil, err
	}
	v = &columnView{dtype: cs.DType, rows: r.hdr.RowCount, data: data}
	if err := v.check(); err != nil {
		return nil, corrupt(r.path, r.seq, "column "+name+" truncated", err)
	}

	if e.NullSize > 0 {
		nullRaw, err := r.block(e.NullOffset, e.NullSize, "null bitmap "+name)
		if err != nil {
			return nil, err
		}
		rb := roaring.New()
		if err := rb.UnmarshalBinary(nullRaw); err != nil {
			return nil, corrupt(r.path, r.seq, "bad null bitmap for "+name, err)
		}
		v.nulls = rb
	}

	r.views[name] = v
	return v, nil
}

// block bounds-checks and unframes one block of the file. The frame's
// own size must agree with the extent recorded in the header or
// directory.
func (r *Reader) block(off, size uint64, what string) ([]byte, error) {
	if off < HeaderSize || off+size > uint64(r.m.Size()) {
		return nil, corrupt(r.path, r.seq, what+" out of bounds", nil)
	}
	n, err := blockio.FrameSize(r.m.Data[off : off+size])
	if err != nil {
		return nil, corrupt(r.path, r.seq, what+" frame truncated", err)
	}
	if uint64(n) != size {
		return nil, corrupt(r.path, r.seq, what+" frame size mismatch", nil)
	}
	data, err := blockio.Unframe(r.m.Data[off:off+size], r.hdr.Compression)
	if err != nil {
		return nil, corrupt(r.path, r.seq, "bad block for "+what, err)
	}
	return data, nil
}

// columnView is a decoded (or zero-copy, when uncompressed) view over
// one column's value block and null bitmap.
type columnView struct {
	dtype schema.DType
	rows  uint32
	data  []byte
	nulls *roaring.Bitmap
}

func (v *columnView) check() error {
	var need int
	if w := v.dtype.FixedWidth(); w > 0 {
		need = w * int(v.rows)
	} else {
		need = 4 * (int(v.rows) + 1)
		if len(v.data) >= need {
			payloadEnd := binary.LittleEndian.Uint32(v.data[4*v.rows:])
			need += int(payloadEnd)
		}
	}
	if len(v.data) < need {
		return blockio.ErrTruncated
	}
	return nil
}

func (v *columnView) valueAt(row uint32) model.Value {
	if v.nulls != nil && v.nulls.Contains(row) {
		return model.Null(v.dtype)
	}
	switch v.dtype {
	case schema.DTypeFloat32:
		bits := binary.LittleEndian.Uint32(v.data[row*4:])
		return model.Float32(math.Float32frombits(bits))
	case schema.DTypeInt64:
		return model.Int64(int64(binary.LittleEndian.Uint64(v.data[row*8:])))
	case schema.DTypeBool:
		return model.Bool(v.data[row] == 1)
	case schema.DTypeUtf8:
		start := binary.LittleEndian.Uint32(v.data[row*4:])
		end := binary.LittleEndian.Uint32(v.data[(row+1)*4:])
		payload := v.data[4*(v.rows+1):]
		return model.String(string(payload[start:end]))
	}
	return model.Value{}
}
