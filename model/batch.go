package model

import (
	"fmt"

	"github.com/hupe1980/colgo/schema"
)

// Batch is one write's worth of rows, column-major. A batch is built
// by the caller, validated against the table schema once, and encoded
// into exactly one segment.
type Batch struct {
	cols   []*Column
	byName map[string]int
	rows   int
}

// NewBatch assembles columns into a batch. All columns must have the
// same length and unique names.
func NewBatch(cols ...*Column) (*Batch, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("batch has no columns")
	}
	b := &Batch{
		cols:   cols,
		byName: make(map[string]int, len(cols)),
		rows:   cols[0].Len(),
	}
	for i, c := range cols {
		if _, dup := b.byName[c.Name()]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name())
		}
		b.byName[c.Name()] = i
		if c.Len() != b.rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", c.Name(), c.Len(), b.rows)
		}
	}
	return b, nil
}

// RowCount returns the number of rows in the batch.
func (b *Batch) RowCount() int { return b.rows }

// Column returns the named column.
func (b *Batch) Column(name string) (*Column, bool) {
	i, ok := b.byName[name]
	if !ok {
		return nil, false
	}
	return b.cols[i], true
}

// Columns returns all columns in insertion order.
func (b *Batch) Columns() []*Column { return b.cols }

// Conform checks the batch against a table schema: every schema
// column present with the declared type, no extra columns, no nulls
// in non-nullable columns, and every key value non-null and
// comparable. It reports the first violation found; nothing is
// persisted on failure.
func (b *Batch) Conform(ts schema.TableSchema) error {
	for name := range b.byName {
		if _, ok := ts.Columns[name]; !ok {
			return &schema.MismatchError{Column: name, Reason: "not in table schema"}
		}
	}
	for name, cs := range ts.Columns {
		col, ok := b.Column(name)
		if !ok {
			return &schema.MismatchError{Column: name, Reason: "missing from batch"}
		}
		if col.DType() != cs.DType {
			return &schema.MismatchError{
				Column: name,
				Reason: fmt.Sprintf("dtype %s, schema declares %s", col.DType(), cs.DType),
			}
		}
	}
	key, _ := b.Column(ts.Key)
	for row := 0; row < b.rows; row++ {
		if !key.Value(row).ValidKey() {
			return &schema.KeyError{
				Reason: fmt.Sprintf("row %d: key is null or not comparable", row),
			}
		}
	}
	for name, cs := range ts.Columns {
		col, _ := b.Column(name)
		if !cs.Nullable && col.HasNulls() {
			return &schema.MismatchError{Column: name, Reason: "null value in non-nullable column"}
		}
	}
	return nil
}
