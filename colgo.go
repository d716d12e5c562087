package colgo

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/colgo/catalog"
	"github.com/hupe1980/colgo/internal/table"
	"github.com/hupe1980/colgo/model"
	"github.com/hupe1980/colgo/schema"
)

// Store is an embedded, process-local storage engine for typed tabular
// data, rooted at a single directory. It binds the catalog, the
// per-table managers and the read path behind the five public
// operations.
//
// A Store is safe for concurrent use. Writes to the same table are
// serialized; writes to different tables and all reads proceed
// independently.
type Store struct {
	dir  string
	opts options
	cat  *catalog.Catalog

	mu     sync.RWMutex
	tables map[string]*table.Table
	failed map[string]error // tables whose recovery failed

	closed atomic.Bool
}

// Open opens (or initializes) a store rooted at dir and recovers all
// registered tables from disk. Tables are recovered in parallel; a
// corrupt table does not prevent the others from loading, but data
// operations on it keep returning its recovery error.
func Open(ctx context.Context, dir string, optFns ...Option) (*Store, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	cat, err := catalog.Open(opts.fsys, filepath.Join(dir, "tables"), opts.codec)
	if err != nil {
		return nil, err
	}

	s := &Store{
		dir:    dir,
		opts:   opts,
		cat:    cat,
		tables: make(map[string]*table.Table),
		failed: make(map[string]error),
	}

	for name, ferr := range cat.Failed() {
		s.failed[name] = translateError(name, ferr)
		s.opts.logger.LogRecovery(ctx, name, 0, ferr)
	}

	var tmu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for name, ts := range cat.List() {
		name, ts := name, ts
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := s.openTable(name, ts)
			tmu.Lock()
			if err != nil {
				s.failed[name] = translateError(name, err)
			} else {
				s.tables[name] = t
			}
			tmu.Unlock()
			s.opts.logger.LogRecovery(ctx, name, segmentCount(t), err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func segmentCount(t *table.Table) int {
	if t == nil {
		return 0
	}
	return t.SegmentCount()
}

func (s *Store) openTable(name string, ts schema.TableSchema) (*table.Table, error) {
	return table.Open(table.Config{
		Name:        name,
		Schema:      ts,
		Dir:         s.cat.Dir(name),
		FS:          s.opts.fsys,
		Compression: s.opts.compression,
		Logger:      s.opts.logger.Logger,
	})
}

// CreateTable registers a new table under the given schema. The schema
// is persisted durably before CreateTable returns and is immutable for
// the table's entire lifetime.
func (s *Store) CreateTable(ctx context.Context, name string, ts schema.TableSchema) error {
	start := time.Now()
	err := s.createTable(ctx, name, ts)
	s.opts.metrics.RecordCreateTable(time.Since(start), err)
	s.opts.logger.LogCreateTable(ctx, name, err)
	return err
}

func (s *Store) createTable(ctx context.Context, name string, ts schema.TableSchema) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.cat.Create(name, ts); err != nil {
		return translateError(name, err)
	}

	t, err := s.openTable(name, ts)
	if err != nil {
		return translateError(name, err)
	}

	s.mu.Lock()
	s.tables[name] = t
	s.mu.Unlock()
	return nil
}

// Write validates the batch against the table's schema and appends it
// as exactly one new immutable segment. On any validation or I/O error
// nothing becomes visible.
func (s *Store) Write(ctx context.Context, tableName string, batch *model.Batch) error {
	start := time.Now()
	err := s.write(ctx, tableName, batch)
	rows := 0
	if batch != nil {
		rows = batch.RowCount()
	}
	s.opts.metrics.RecordWrite(rows, time.Since(start), err)
	s.opts.logger.LogWrite(ctx, tableName, rows, err)
	return err
}

func (s *Store) write(ctx context.Context, tableName string, batch *model.Batch) error {
	if batch == nil {
		return &SchemaMismatchError{Table: tableName, Reason: "batch is nil"}
	}
	t, err := s.table(tableName)
	if err != nil {
		return err
	}
	return translateError(tableName, t.Write(ctx, batch))
}

// Read resolves the requested keys and columns. Rows are ordered by
// the requested key order, columns by the requested column order; the
// newest segment containing a key supplies its row (last-writer-wins).
// Keys absent from every segment are omitted unless the store was
// opened with MissingKeyError.
func (s *Store) Read(ctx context.Context, tableName string, keys []model.Value, columns []string) (*model.Result, error) {
	start := time.Now()
	res, err := s.read(ctx, tableName, keys, columns)
	found := 0
	if res != nil {
		found = res.Len()
	}
	s.opts.metrics.RecordRead(len(keys), found, time.Since(start), err)
	s.opts.logger.LogRead(ctx, tableName, len(keys), found, err)
	return res, err
}

func (s *Store) read(ctx context.Context, tableName string, keys []model.Value, columns []string) (*model.Result, error) {
	t, err := s.table(tableName)
	if err != nil {
		return nil, err
	}
	res, err := t.Read(ctx, keys, columns, s.opts.missingKey == MissingKeyError)
	if err != nil {
		return nil, translateError(tableName, err)
	}
	return res, nil
}

// ListTables returns the full table-name -> schema mapping. Tables
// whose schema record failed to load are excluded; their data
// operations report the failure.
func (s *Store) ListTables() (map[string]schema.TableSchema, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	return s.cat.List(), nil
}

// GetSchema returns the schema the table was created with, field for
// field.
func (s *Store) GetSchema(tableName string) (schema.TableSchema, error) {
	if s.closed.Load() {
		return schema.TableSchema{}, ErrStoreClosed
	}
	ts, err := s.cat.Get(tableName)
	if err != nil {
		s.mu.RLock()
		ferr, failed := s.failed[tableName]
		s.mu.RUnlock()
		if failed {
			return schema.TableSchema{}, fmt.Errorf("table %q failed to recover: %w", tableName, ferr)
		}
		return schema.TableSchema{}, translateError(tableName, err)
	}
	return ts, nil
}

// Close releases all segment mappings. The on-disk state is already
// durable; reopening the same directory restores the store.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, t := range s.tables {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// table resolves a name to its manager, surfacing recovery failures
// and unknown names.
func (s *Store) table(name string) (*table.Table, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tables[name]; ok {
		return t, nil
	}
	if err, ok := s.failed[name]; ok {
		return nil, fmt.Errorf("table %q failed to recover: %w", name, err)
	}
	return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
}
