package colgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/colgo/catalog"
	"github.com/hupe1980/colgo/internal/segment"
	"github.com/hupe1980/colgo/internal/table"
	"github.com/hupe1980/colgo/schema"
)

var (
	// ErrTableAlreadyExists is returned by CreateTable for a name that
	// is already registered.
	ErrTableAlreadyExists = errors.New("table already exists")
	// ErrTableNotFound is returned by any operation referencing an
	// unregistered table name.
	ErrTableNotFound = errors.New("table not found")
	// ErrKeyNotFound is returned by strict reads for keys absent from
	// every segment.
	ErrKeyNotFound = errors.New("key not found")
	// ErrStoreClosed is returned after Close.
	ErrStoreClosed = errors.New("store is closed")
)

// SchemaMismatchError indicates a batch that violates the table's
// column set, types or nullability, or a read referencing an unknown
// column. Nothing is persisted when it is returned.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type SchemaMismatchError struct {
	Table  string
	Column string
	Reason string
	cause  error
}

func (e *SchemaMismatchError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("schema mismatch: table %q: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("schema mismatch: table %q column %q: %s", e.Table, e.Column, e.Reason)
}

func (e *SchemaMismatchError) Unwrap() error { return e.cause }

// InvalidKeyError indicates a null, wrong-typed or non-comparable key,
// either in a batch or in a read request.
type InvalidKeyError struct {
	Table  string
	Reason string
	cause  error
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid key: table %q: %s", e.Table, e.Reason)
}

func (e *InvalidKeyError) Unwrap() error { return e.cause }

// InvalidTableNameError indicates a table name unusable on disk.
type InvalidTableNameError struct {
	Name  string
	cause error
}

func (e *InvalidTableNameError) Error() string {
	return fmt.Sprintf("invalid table name %q", e.Name)
}

func (e *InvalidTableNameError) Unwrap() error { return e.cause }

// SegmentIOError indicates a failed durable write or read at the
// storage boundary. I/O errors are not retried internally; the
// underlying error is preserved for the caller's retry policy.
type SegmentIOError struct {
	Table    string
	Sequence uint64
	cause    error
}

func (e *SegmentIOError) Error() string {
	return fmt.Sprintf("segment io error: table %q seq %d: %v", e.Table, e.Sequence, e.cause)
}

func (e *SegmentIOError) Unwrap() error { return e.cause }

// CorruptSegmentError indicates a segment that failed to decode at
// recovery or read time. It is fatal for that segment's data and is
// surfaced rather than silently skipped.
type CorruptSegmentError struct {
	Table    string
	Sequence uint64
	Path     string
	cause    error
}

func (e *CorruptSegmentError) Error() string {
	return fmt.Sprintf("corrupt segment: table %q seq %d (%s): %v", e.Table, e.Sequence, e.Path, e.cause)
}

func (e *CorruptSegmentError) Unwrap() error { return e.cause }

// translateError maps internal error kinds onto the public taxonomy,
// attaching the table name for context.
func translateError(tableName string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, catalog.ErrTableExists) {
		return fmt.Errorf("%w: %s", ErrTableAlreadyExists, tableName)
	}
	if errors.Is(err, catalog.ErrTableNotFound) {
		return fmt.Errorf("%w: %s", ErrTableNotFound, tableName)
	}
	if errors.Is(err, table.ErrKeyNotFound) {
		return fmt.Errorf("%w: %w", ErrKeyNotFound, err)
	}

	var ine *catalog.InvalidNameError
	if errors.As(err, &ine) {
		return &InvalidTableNameError{Name: ine.Name, cause: err}
	}
	var sme *schema.MismatchError
	if errors.As(err, &sme) {
		return &SchemaMismatchError{Table: tableName, Column: sme.Column, Reason: sme.Reason, cause: err}
	}
	var ke *schema.KeyError
	if errors.As(err, &ke) {
		return &InvalidKeyError{Table: tableName, Reason: ke.Reason, cause: err}
	}
	var ioe *table.IOError
	if errors.As(err, &ioe) {
		return &SegmentIOError{Table: ioe.Table, Sequence: ioe.Sequence, cause: err}
	}
	var ce *segment.CorruptError
	if errors.As(err, &ce) {
		return &CorruptSegmentError{Table: tableName, Sequence: ce.Sequence, Path: ce.Path, cause: err}
	}

	return err
}
