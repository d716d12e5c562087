package model

// Row is one result row, aligned to the requested column order.
type Row []Value

// Result is the outcome of a read. Rows are aligned to Keys: Keys[i]
// is the requested key that produced Rows[i], preserving the order in
// which the keys were requested. Keys absent from every segment are
// omitted (unless the store is configured to treat them as errors), so
// Keys may be shorter than the requested key list.
type Result struct {
	Columns []string
	Keys    []Value
	Rows    []Row
}

// Len returns the number of found keys.
func (r *Result) Len() int { return len(r.Rows) }
