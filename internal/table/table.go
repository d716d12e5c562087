// Package table manages the per-table runtime state: the schema, the
// ordered list of published segments, write serialization, and the
// multi-segment read merge.
package table

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/colgo/internal/blockio"
	"github.com/hupe1980/colgo/internal/fs"
	"github.com/hupe1980/colgo/internal/segment"
	"github.com/hupe1980/colgo/model"
	"github.com/hupe1980/colgo/schema"
)

const (
	segSuffix = ".seg"
	tmpPrefix = ".tmp-"
)

// ErrKeyNotFound is returned on strict reads for keys absent from
// every segment.
var ErrKeyNotFound = errors.New("key not found")

// IOError indicates a failed durable write or read at the storage
// boundary. The failed segment never becomes visible.
type IOError struct {
	Table    string
	Sequence uint64
	Err      error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("segment io error: table %q seq %d: %v", e.Table, e.Sequence, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Config carries the dependencies a table needs.
type Config struct {
	Name        string
	Schema      schema.TableSchema
	Dir         string
	FS          fs.FileSystem
	Compression blockio.Compression
	Logger      *slog.Logger
}

// Table is the in-memory state of one table. Writes are serialized by
// a per-table mutex; reads never take it and instead load an immutable
// snapshot of the segment list.
type Table struct {
	name   string
	sch    schema.TableSchema
	dir    string
	fsys   fs.FileSystem
	comp   blockio.Compression
	logger *slog.Logger

	writeMu sync.Mutex
	nextSeq uint64 // guarded by writeMu

	segs atomic.Pointer[[]*segment.Reader]
}

// Open recovers a table from its directory: existing segment files are
// listed, ordered by sequence number, and opened without re-validating
// row data (segments are trusted once durably published; checksums
// still guard against corruption). Stale temp files from interrupted
// writes are deleted.
func Open(cfg Config) (*Table, error) {
	t := &Table{
		name:   cfg.Name,
		sch:    cfg.Schema,
		dir:    cfg.Dir,
		fsys:   cfg.FS,
		comp:   cfg.Compression,
		logger: cfg.Logger,
	}
	if t.fsys == nil {
		t.fsys = fs.Default
	}
	if t.logger == nil {
		t.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	entries, err := t.fsys.ReadDir(t.dir)
	if err != nil {
		return nil, &IOError{Table: t.name, Err: err}
	}

	var seqs []uint64
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, tmpPrefix) {
			_ = t.fsys.Remove(filepath.Join(t.dir, name))
			continue
		}
		seq, ok := parseSegName(name)
		if !ok {
			continue
		}
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	segs := make([]*segment.Reader, 0, len(seqs))
	for _, seq := range seqs {
		r, err := segment.Open(filepath.Join(t.dir, segFileName(seq)), t.sch, seq)
		if err != nil {
			for _, s := range segs {
				s.Close()
			}
			return nil, err
		}
		segs = append(segs, r)
	}
	if n := len(seqs); n > 0 {
		t.nextSeq = seqs[n-1] + 1
	}
	t.segs.Store(&segs)

	t.logger.Debug("table recovered",
		"table", t.name,
		"segments", len(segs),
	)
	return t, nil
}

// Schema returns the table's immutable schema.
func (t *Table) Schema() schema.TableSchema { return t.sch }

// SegmentCount returns the number of published segments.
func (t *Table) SegmentCount() int { return len(*t.segs.Load()) }

// Write validates the batch against the schema and appends exactly one
// new segment. The segment joins the in-memory list only after it has
// been durably published (written to a temp path, synced, renamed, and
// the directory synced); an I/O failure at any point leaves the
// segment list unchanged.
func (t *Table) Write(ctx context.Context, batch *model.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := batch.Conform(t.sch); err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	seq := t.nextSeq
	data, err := segment.Encode(t.sch, batch, seq, t.comp)
	if err != nil {
		return err
	}

	final := filepath.Join(t.dir, segFileName(seq))
	if err := t.publish(final, data); err != nil {
		return &IOError{Table: t.name, Sequence: seq, Err: err}
	}

	r, err := segment.Open(final, t.sch, seq)
	if err != nil {
		return err
	}

	old := *t.segs.Load()
	segs := make([]*segment.Reader, len(old), len(old)+1)
	copy(segs, old)
	segs = append(segs, r)
	t.segs.Store(&segs)
	t.nextSeq = seq + 1

	t.logger.Debug("segment published",
		"table", t.name,
		"seq", seq,
		"rows", batch.RowCount(),
		"bytes", len(data),
	)
	return nil
}

func (t *Table) publish(final string, data []byte) error {
	tmp := filepath.Join(t.dir, tmpPrefix+filepath.Base(final))
	f, err := t.fsys.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		t.fsys.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		t.fsys.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		t.fsys.Remove(tmp)
		return err
	}
	if err := t.fsys.Rename(tmp, final); err != nil {
		t.fsys.Remove(tmp)
		return err
	}
	return fs.SyncDir(t.fsys, t.dir)
}

// Read resolves keys against the segment list, newest segment first,
// so the most recent write of a key wins. Results preserve the
// requested key order and column order. Keys found in no segment are
// omitted, or reported as ErrKeyNotFound when strict is set.
func (t *Table) Read(ctx context.Context, keys []model.Value, columns []string, strict bool) (*model.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	keyType := t.sch.Columns[t.sch.Key].DType
	for _, col := range columns {
		if _, ok := t.sch.Columns[col]; !ok {
			return nil, &schema.MismatchError{Column: col, Reason: "not in table schema"}
		}
	}
	for i, key := range keys {
		if !key.ValidKey() {
			return nil, &schema.KeyError{Reason: fmt.Sprintf("key %d is null or not comparable", i)}
		}
		if key.DType() != keyType {
			return nil, &schema.KeyError{
				Reason: fmt.Sprintf("key %d has dtype %s, table key is %s", i, key.DType(), keyType),
			}
		}
	}

	segs := *t.segs.Load()

	res := &model.Result{Columns: columns}
	for _, key := range keys {
		r, row, found, err := lookup(segs, key)
		if err != nil {
			return nil, err
		}
		if !found {
			if strict {
				return nil, fmt.Errorf("%w: table %q key %#v", ErrKeyNotFound, t.name, key)
			}
			continue
		}
		out := make(model.Row, len(columns))
		for j, col := range columns {
			v, err := r.Value(col, row)
			if err != nil {
				return nil, err
			}
			out[j] = v
		}
		res.Keys = append(res.Keys, key)
		res.Rows = append(res.Rows, out)
	}
	return res, nil
}

// lookup scans segments newest-first and returns the first hit.
func lookup(segs []*segment.Reader, key model.Value) (*segment.Reader, uint32, bool, error) {
	for i := len(segs) - 1; i >= 0; i-- {
		row, ok, err := segs[i].Lookup(key)
		if err != nil {
			return nil, 0, false, err
		}
		if ok {
			return segs[i], row, true, nil
		}
	}
	return nil, 0, false, nil
}

// Close releases all segment readers.
func (t *Table) Close() error {
	var firstErr error
	for _, s := range *t.segs.Load() {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func segFileName(seq uint64) string {
	return fmt.Sprintf("%08d%s", seq, segSuffix)
}

func parseSegName(name string) (uint64, bool) {
	base, ok := strings.CutSuffix(name, segSuffix)
	if !ok || len(base) < 8 {
		return 0, false
	}
	seq, err := strconv.ParseUint(base, 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}
