package model

import (
	"fmt"
	"math"

	"github.com/hupe1980/colgo/schema"
)

// Value is a single typed scalar: one cell of a batch, a key passed to
// a read, or a cell of a read result.
//
// The representation avoids reflection and interface boxing so values
// can be compared and hashed cheaply on the read path.
type Value struct {
	dtype schema.DType
	null  bool
	f32   float32
	i64   int64
	str   string
	b     bool
}

// String returns a non-null utf8 value.
func String(s string) Value { return Value{dtype: schema.DTypeUtf8, str: s} }

// Float32 returns a non-null float32 value.
func Float32(f float32) Value { return Value{dtype: schema.DTypeFloat32, f32: f} }

// Int64 returns a non-null int64 value.
func Int64(i int64) Value { return Value{dtype: schema.DTypeInt64, i64: i} }

// Bool returns a non-null bool value.
func Bool(b bool) Value { return Value{dtype: schema.DTypeBool, b: b} }

// Null returns a null value of the given type.
func Null(dtype schema.DType) Value { return Value{dtype: dtype, null: true} }

// DType returns the type of the value.
func (v Value) DType() schema.DType { return v.dtype }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.null }

// AsString returns the utf8 payload. The bool is false for nulls and
// non-utf8 values.
func (v Value) AsString() (string, bool) {
	if v.null || v.dtype != schema.DTypeUtf8 {
		return "", false
	}
	return v.str, true
}

// AsFloat32 returns the float32 payload.
func (v Value) AsFloat32() (float32, bool) {
	if v.null || v.dtype != schema.DTypeFloat32 {
		return 0, false
	}
	return v.f32, true
}

// AsInt64 returns the int64 payload.
func (v Value) AsInt64() (int64, bool) {
	if v.null || v.dtype != schema.DTypeInt64 {
		return 0, false
	}
	return v.i64, true
}

// AsBool returns the bool payload.
func (v Value) AsBool() (bool, bool) {
	if v.null || v.dtype != schema.DTypeBool {
		return false, false
	}
	return v.b, true
}

// Equal reports bit-exact equality. Two nulls of the same type are equal.
func (v Value) Equal(other Value) bool {
	if v.dtype != other.dtype || v.null != other.null {
		return false
	}
	if v.null {
		return true
	}
	switch v.dtype {
	case schema.DTypeUtf8:
		return v.str == other.str
	case schema.DTypeFloat32:
		return math.Float32bits(v.f32) == math.Float32bits(other.f32)
	case schema.DTypeInt64:
		return v.i64 == other.i64
	case schema.DTypeBool:
		return v.b == other.b
	}
	return false
}

// Compare orders two non-null values of the same type.
// It is only defined for comparable key values; the caller guarantees
// matching types.
func (v Value) Compare(other Value) int {
	switch v.dtype {
	case schema.DTypeUtf8:
		switch {
		case v.str < other.str:
			return -1
		case v.str > other.str:
			return 1
		}
		return 0
	case schema.DTypeFloat32:
		switch {
		case v.f32 < other.f32:
			return -1
		case v.f32 > other.f32:
			return 1
		}
		return 0
	case schema.DTypeInt64:
		switch {
		case v.i64 < other.i64:
			return -1
		case v.i64 > other.i64:
			return 1
		}
		return 0
	case schema.DTypeBool:
		switch {
		case !v.b && other.b:
			return -1
		case v.b && !other.b:
			return 1
		}
		return 0
	}
	return 0
}

// ValidKey reports whether v is usable as a key: non-null, a valid
// type, and totally ordered (NaN float keys are rejected).
func (v Value) ValidKey() bool {
	if v.null || !v.dtype.Valid() {
		return false
	}
	if v.dtype == schema.DTypeFloat32 && math.IsNaN(float64(v.f32)) {
		return false
	}
	return true
}

// GoString implements fmt.GoStringer so %#v prints a readable form in
// logs and error messages.
func (v Value) GoString() string {
	if v.null {
		return fmt.Sprintf("%s(null)", v.dtype)
	}
	switch v.dtype {
	case schema.DTypeUtf8:
		return fmt.Sprintf("utf8(%q)", v.str)
	case schema.DTypeFloat32:
		return fmt.Sprintf("float32(%v)", v.f32)
	case schema.DTypeInt64:
		return fmt.Sprintf("int64(%d)", v.i64)
	case schema.DTypeBool:
		return fmt.Sprintf("bool(%t)", v.b)
	}
	return "invalid"
}
