// Package catalog maintains the durable table-name -> schema registry.
//
// Each table is a subdirectory of the catalog root holding a schema
// record plus the table's segment files. Creation is atomic: the
// directory is staged under a hidden name, the schema record is
// written and synced inside it, and a single rename publishes the
// table. A crash can therefore never leave a schema registered without
// its directory, or a visible directory without its schema.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hupe1980/colgo/codec"
	"github.com/hupe1980/colgo/internal/fs"
	"github.com/hupe1980/colgo/schema"
)

const (
	// SchemaFileName is the per-table schema record.
	SchemaFileName = "schema.json"

	stagePrefix = ".stage-"
)

var (
	// ErrTableExists is returned by Create for an already registered name.
	ErrTableExists = errors.New("table already exists")
	// ErrTableNotFound is returned for operations on unregistered names.
	ErrTableNotFound = errors.New("table not found")
)

// InvalidNameError indicates a table name unusable as a directory name.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid table name %q", e.Name)
}

// record is the persisted form of a schema, self-describing via the
// codec name so the file can be decoded after the default changes.
type record struct {
	Codec  string             `json:"codec"`
	Schema schema.TableSchema `json:"schema"`
}

// Catalog is the single source of truth for table existence. One
// instance is owned by the store; all mutations go through one lock.
type Catalog struct {
	fsys  fs.FileSystem
	root  string
	codec codec.Codec

	mu     sync.RWMutex
	tables map[string]schema.TableSchema
	failed map[string]error
}

// Open loads the catalog by scanning the root directory, the same
// structure Create writes. Stale staging directories left by a crash
// mid-create are removed; they were never visible as tables.
//
// A table whose schema record cannot be read does not abort the scan:
// it is recorded in Failed so the other tables stay available.
func Open(fsys fs.FileSystem, root string, c codec.Codec) (*Catalog, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	if c == nil {
		c = codec.Default
	}
	if err := fsys.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("catalog: create root: %w", err)
	}

	cat := &Catalog{
		fsys:   fsys,
		root:   root,
		codec:  c,
		tables: make(map[string]schema.TableSchema),
		failed: make(map[string]error),
	}

	entries, err := fsys.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("catalog: scan root: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() {
			continue
		}
		if strings.HasPrefix(name, stagePrefix) {
			_ = fsys.RemoveAll(filepath.Join(root, name))
			continue
		}
		if !schema.ValidTableName(name) {
			continue
		}
		ts, err := cat.readRecord(filepath.Join(root, name, SchemaFileName))
		if err != nil {
			cat.failed[name] = fmt.Errorf("bad schema record: %w", err)
			continue
		}
		cat.tables[name] = ts
	}
	return cat, nil
}

// Create registers a new table and durably persists its schema before
// returning. The registration and the directory appear in one atomic
// step (directory rename).
func (c *Catalog) Create(name string, ts schema.TableSchema) (string, error) {
	if !schema.ValidTableName(name) {
		return "", &InvalidNameError{Name: name}
	}
	if err := ts.Validate(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tables[name]; exists {
		return "", fmt.Errorf("%w: %s", ErrTableExists, name)
	}
	// A table with an unreadable record still owns its directory.
	if _, exists := c.failed[name]; exists {
		return "", fmt.Errorf("%w: %s", ErrTableExists, name)
	}

	data, err := c.codec.Marshal(record{Codec: c.codec.Name(), Schema: ts})
	if err != nil {
		return "", fmt.Errorf("catalog: encode schema: %w", err)
	}

	stage := filepath.Join(c.root, stagePrefix+name)
	dir := filepath.Join(c.root, name)
	if err := c.fsys.MkdirAll(stage, 0o750); err != nil {
		return "", fmt.Errorf("catalog: stage table dir: %w", err)
	}
	if err := fs.WriteAtomic(c.fsys, filepath.Join(stage, SchemaFileName), data, 0o640); err != nil {
		_ = c.fsys.RemoveAll(stage)
		return "", fmt.Errorf("catalog: persist schema: %w", err)
	}
	if err := c.fsys.Rename(stage, dir); err != nil {
		_ = c.fsys.RemoveAll(stage)
		return "", fmt.Errorf("catalog: publish table dir: %w", err)
	}
	if err := fs.SyncDir(c.fsys, c.root); err != nil {
		return "", fmt.Errorf("catalog: sync root: %w", err)
	}

	c.tables[name] = ts.Clone()
	return dir, nil
}

// Get returns the registered schema for name.
func (c *Catalog) Get(name string) (schema.TableSchema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ts, ok := c.tables[name]
	if !ok {
		return schema.TableSchema{}, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return ts.Clone(), nil
}

// List returns a copy of the full name -> schema mapping.
func (c *Catalog) List() map[string]schema.TableSchema {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]schema.TableSchema, len(c.tables))
	for name, ts := range c.tables {
		out[name] = ts.Clone()
	}
	return out
}

// Failed returns a copy of the name -> error mapping for tables whose
// schema record could not be read at open time. Their directories are
// left untouched on disk.
func (c *Catalog) Failed() map[string]error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]error, len(c.failed))
	for name, err := range c.failed {
		out[name] = err
	}
	return out
}

// Dir returns the on-disk directory of a registered table.
func (c *Catalog) Dir(name string) string {
	return filepath.Join(c.root, name)
}

func (c *Catalog) readRecord(path string) (schema.TableSchema, error) {
	f, err := c.fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return schema.TableSchema{}, fmt.Errorf("read schema record: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return schema.TableSchema{}, err
	}
	data := make([]byte, fi.Size())
	if _, err := f.ReadAt(data, 0); err != nil {
		return schema.TableSchema{}, fmt.Errorf("read schema record: %w", err)
	}

	var rec record
	if err := c.codec.Unmarshal(data, &rec); err != nil {
		return schema.TableSchema{}, fmt.Errorf("decode schema record: %w", err)
	}
	if rec.Codec != "" {
		if dec, ok := codec.ByName(rec.Codec); ok {
			// Re-decode with the codec that wrote the record. Both
			// built-in codecs are JSON-compatible so this is usually
			// a no-op, but it keeps the record self-describing.
			if err := dec.Unmarshal(data, &rec); err != nil {
				return schema.TableSchema{}, fmt.Errorf("decode schema record: %w", err)
			}
		}
	}
	if err := rec.Schema.Validate(); err != nil {
		return schema.TableSchema{}, fmt.Errorf("stored schema invalid: %w", err)
	}
	return rec.Schema, nil
}
