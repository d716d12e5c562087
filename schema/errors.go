package schema

import "fmt"

// MismatchError indicates that a batch (or a schema itself) violates
// the declared column set, types or nullability.
type MismatchError struct {
	Column string
	Reason string
}

func (e *MismatchError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("schema mismatch: %s", e.Reason)
	}
	return fmt.Sprintf("schema mismatch: column %q: %s", e.Column, e.Reason)
}

// KeyError indicates an unusable key value: null, wrong-typed, or
// otherwise not comparable (e.g. a NaN float key).
type KeyError struct {
	Reason string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("invalid key: %s", e.Reason)
}
