package schema

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"slices"
)

// DType identifies the scalar type of a column.
//
// The enumeration is closed: new types are added here, never via
// subtyping. Every member has a stable on-disk encoding; see the
// segment package for the binary layout.
type DType uint8

const (
	// DTypeInvalid is the zero value and never valid in a schema.
	DTypeInvalid DType = iota
	// DTypeUtf8 is a variable-length UTF-8 string.
	DTypeUtf8
	// DTypeFloat32 is a 32-bit IEEE-754 float.
	DTypeFloat32
	// DTypeInt64 is a 64-bit signed integer.
	DTypeInt64
	// DTypeBool is a boolean.
	DTypeBool
)

// String returns the stable lowercase name of the type.
// The same names are used in persisted schema records.
func (t DType) String() string {
	switch t {
	case DTypeUtf8:
		return "utf8"
	case DTypeFloat32:
		return "float32"
	case DTypeInt64:
		return "int64"
	case DTypeBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Valid reports whether t is a known member of the enumeration.
func (t DType) Valid() bool {
	return t >= DTypeUtf8 && t <= DTypeBool
}

// FixedWidth returns the on-disk width in bytes of a single value,
// or 0 for variable-width types.
func (t DType) FixedWidth() int {
	switch t {
	case DTypeFloat32:
		return 4
	case DTypeInt64:
		return 8
	case DTypeBool:
		return 1
	default:
		return 0
	}
}

// DTypeFromString parses a stable type name as produced by DType.String.
func DTypeFromString(s string) (DType, bool) {
	switch s {
	case "utf8":
		return DTypeUtf8, true
	case "float32":
		return DTypeFloat32, true
	case "int64":
		return DTypeInt64, true
	case "bool":
		return DTypeBool, true
	default:
		return DTypeInvalid, false
	}
}

// ColumnSchema describes a single column. It is immutable once part of
// a TableSchema that has been used to create a table.
type ColumnSchema struct {
	DType    DType `json:"dtype"`
	Nullable bool  `json:"nullable"`
}

// TableSchema describes a table: the name of the key column and the
// full column set. Column iteration order carries no meaning.
type TableSchema struct {
	Key     string                  `json:"key"`
	Columns map[string]ColumnSchema `json:"columns"`
}

var tableNameRe = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)

// ValidTableName reports whether name is usable as a table name.
// Table names become directory names on disk, so the charset is
// restricted accordingly.
func ValidTableName(name string) bool {
	return tableNameRe.MatchString(name)
}

// Validate checks the structural invariants of the schema itself:
// a non-empty column set, valid types, and a key column that exists
// and is non-nullable.
func (s TableSchema) Validate() error {
	if len(s.Columns) == 0 {
		return &MismatchError{Reason: "schema has no columns"}
	}
	for name, col := range s.Columns {
		if name == "" {
			return &MismatchError{Reason: "empty column name"}
		}
		if !col.DType.Valid() {
			return &MismatchError{Column: name, Reason: "unknown dtype"}
		}
	}
	if s.Key == "" {
		return &MismatchError{Reason: "schema has no key column"}
	}
	key, ok := s.Columns[s.Key]
	if !ok {
		return &MismatchError{Column: s.Key, Reason: "key column not present in columns"}
	}
	if key.Nullable {
		return &MismatchError{Column: s.Key, Reason: "key column must be non-nullable"}
	}
	return nil
}

// ColumnNames returns the column names in sorted order.
// Sorted order is the canonical order used on disk.
func (s TableSchema) ColumnNames() []string {
	names := make([]string, 0, len(s.Columns))
	for name := range s.Columns {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Equal reports field-for-field equality with other.
func (s TableSchema) Equal(other TableSchema) bool {
	if s.Key != other.Key || len(s.Columns) != len(other.Columns) {
		return false
	}
	for name, col := range s.Columns {
		o, ok := other.Columns[name]
		if !ok || o != col {
			return false
		}
	}
	return true
}

// Clone returns a deep copy. Handing out copies keeps the registered
// schema immutable even if the caller mutates the result.
func (s TableSchema) Clone() TableSchema {
	cols := make(map[string]ColumnSchema, len(s.Columns))
	for name, col := range s.Columns {
		cols[name] = col
	}
	return TableSchema{Key: s.Key, Columns: cols}
}

// Fingerprint returns a stable 64-bit identifier of the column
// set, types, nullability and key column. It is embedded in every
// segment written under this schema so drift is detected at read time.
func (s TableSchema) Fingerprint() uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "key=%s;", s.Key)
	for _, name := range s.ColumnNames() {
		col := s.Columns[name]
		fmt.Fprintf(h, "%s=%s,%t;", name, col.DType, col.Nullable)
	}
	return h.Sum64()
}
