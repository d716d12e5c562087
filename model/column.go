package model

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/colgo/schema"
)

// Column is a single named, typed column of a batch: a dense value
// array plus a roaring set of null rows. Values are stored
// column-major so the segment encoder can serialize each column as
// one contiguous block.
type Column struct {
	name  string
	dtype schema.DType
	f32   []float32
	i64   []int64
	strs  []string
	bools []bool
	nulls *roaring.Bitmap
	rows  int
}

// NewColumn creates an empty column of the given type.
func NewColumn(name string, dtype schema.DType) *Column {
	return &Column{
		name:  name,
		dtype: dtype,
		nulls: roaring.New(),
	}
}

// ColumnOf builds a column from values, all of which must be of the
// given type (or nulls). Convenient for small batches and tests.
func ColumnOf(name string, dtype schema.DType, values ...Value) (*Column, error) {
	c := NewColumn(name, dtype)
	for _, v := range values {
		if v.DType() != dtype {
			return nil, c.typeError(v.DType())
		}
		if err := c.Append(v); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// DType returns the column type.
func (c *Column) DType() schema.DType { return c.dtype }

// Len returns the number of rows appended so far.
func (c *Column) Len() int { return c.rows }

// HasNulls reports whether any appended value was null.
func (c *Column) HasNulls() bool { return !c.nulls.IsEmpty() }

// Nulls returns the set of null row offsets. The caller must not
// mutate it.
func (c *Column) Nulls() *roaring.Bitmap { return c.nulls }

// IsNull reports whether the value at row is null.
func (c *Column) IsNull(row int) bool { return c.nulls.Contains(uint32(row)) }

// AppendString appends a non-null utf8 value.
func (c *Column) AppendString(v string) error {
	if c.dtype != schema.DTypeUtf8 {
		return c.typeError(schema.DTypeUtf8)
	}
	c.strs = append(c.strs, v)
	c.rows++
	return nil
}

// AppendFloat32 appends a non-null float32 value.
func (c *Column) AppendFloat32(v float32) error {
	if c.dtype != schema.DTypeFloat32 {
		return c.typeError(schema.DTypeFloat32)
	}
	c.f32 = append(c.f32, v)
	c.rows++
	return nil
}

// AppendInt64 appends a non-null int64 value.
func (c *Column) AppendInt64(v int64) error {
	if c.dtype != schema.DTypeInt64 {
		return c.typeError(schema.DTypeInt64)
	}
	c.i64 = append(c.i64, v)
	c.rows++
	return nil
}

// AppendBool appends a non-null bool value.
func (c *Column) AppendBool(v bool) error {
	if c.dtype != schema.DTypeBool {
		return c.typeError(schema.DTypeBool)
	}
	c.bools = append(c.bools, v)
	c.rows++
	return nil
}

// AppendNull appends a null. The backing array gets the type's zero
// value so row offsets stay dense.
func (c *Column) AppendNull() error {
	switch c.dtype {
	case schema.DTypeUtf8:
		c.strs = append(c.strs, "")
	case schema.DTypeFloat32:
		c.f32 = append(c.f32, 0)
	case schema.DTypeInt64:
		c.i64 = append(c.i64, 0)
	case schema.DTypeBool:
		c.bools = append(c.bools, false)
	default:
		return fmt.Errorf("column %q: invalid dtype", c.name)
	}
	c.nulls.Add(uint32(c.rows))
	c.rows++
	return nil
}

// Append appends a Value of the column's type (null or not).
func (c *Column) Append(v Value) error {
	if v.IsNull() {
		return c.AppendNull()
	}
	switch c.dtype {
	case schema.DTypeUtf8:
		s, ok := v.AsString()
		if !ok {
			return c.typeError(v.DType())
		}
		return c.AppendString(s)
	case schema.DTypeFloat32:
		f, ok := v.AsFloat32()
		if !ok {
			return c.typeError(v.DType())
		}
		return c.AppendFloat32(f)
	case schema.DTypeInt64:
		i, ok := v.AsInt64()
		if !ok {
			return c.typeError(v.DType())
		}
		return c.AppendInt64(i)
	case schema.DTypeBool:
		b, ok := v.AsBool()
		if !ok {
			return c.typeError(v.DType())
		}
		return c.AppendBool(b)
	}
	return fmt.Errorf("column %q: invalid dtype", c.name)
}

// Value returns the value at row.
func (c *Column) Value(row int) Value {
	if c.IsNull(row) {
		return Null(c.dtype)
	}
	switch c.dtype {
	case schema.DTypeUtf8:
		return String(c.strs[row])
	case schema.DTypeFloat32:
		return Float32(c.f32[row])
	case schema.DTypeInt64:
		return Int64(c.i64[row])
	case schema.DTypeBool:
		return Bool(c.bools[row])
	}
	return Value{}
}

// Float32s returns the backing float32 array. Null rows hold zero.
func (c *Column) Float32s() []float32 { return c.f32 }

// Int64s returns the backing int64 array. Null rows hold zero.
func (c *Column) Int64s() []int64 { return c.i64 }

// Strings returns the backing string array. Null rows hold "".
func (c *Column) Strings() []string { return c.strs }

// Bools returns the backing bool array. Null rows hold false.
func (c *Column) Bools() []bool { return c.bools }

func (c *Column) typeError(got schema.DType) error {
	return fmt.Errorf("column %q: cannot append %s to %s column", c.name, got, c.dtype)
}
