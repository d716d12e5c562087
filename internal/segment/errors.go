package segment

import "fmt"

// CorruptError indicates a segment that fails to decode: bad magic,
// checksum mismatch, schema fingerprint drift, or truncated blocks.
// It is surfaced rather than silently skipped.
type CorruptError struct {
	Path     string
	Sequence uint64
	Reason   string
	Err      error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt segment %s (seq %d): %s", e.Path, e.Sequence, e.Reason)
}

func (e *CorruptError) Unwrap() error { return e.Err }

func corrupt(path string, seq uint64, reason string, err error) *CorruptError {
	return &CorruptError{Path: path, Sequence: seq, Reason: reason, Err: err}
}
