// Package testutil provides fixtures shared by the store's tests:
// deterministic random batches, a canonical feature-table schema, and
// helpers for asserting read results.
//
// This package is intended for use in tests and benchmarks only.
package testutil

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/colgo/model"
	"github.com/hupe1980/colgo/schema"
)

// RNG is a seeded, thread-safe random source for reproducible fixtures.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// Int64 returns a pseudo-random int64.
func (r *RNG) Int64() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Int63()
}

// FeatureSchema returns the schema used across the test suite: a utf8
// key plus one column of every supported type.
func FeatureSchema() schema.TableSchema {
	return schema.TableSchema{
		Key: "id",
		Columns: map[string]schema.ColumnSchema{
			"id":     {DType: schema.DTypeUtf8},
			"score":  {DType: schema.DTypeFloat32, Nullable: true},
			"count":  {DType: schema.DTypeInt64},
			"active": {DType: schema.DTypeBool},
			"label":  {DType: schema.DTypeUtf8, Nullable: true},
		},
	}
}

// FeatureBatch builds a batch of rows rows against FeatureSchema with
// keys keyPrefix-0 .. keyPrefix-(rows-1). Roughly every third score
// and label is null.
func FeatureBatch(t *testing.T, rng *RNG, keyPrefix string, rows int) *model.Batch {
	t.Helper()

	ids := model.NewColumn("id", schema.DTypeUtf8)
	scores := model.NewColumn("score", schema.DTypeFloat32)
	counts := model.NewColumn("count", schema.DTypeInt64)
	actives := model.NewColumn("active", schema.DTypeBool)
	labels := model.NewColumn("label", schema.DTypeUtf8)

	for i := 0; i < rows; i++ {
		require.NoError(t, ids.AppendString(fmt.Sprintf("%s-%d", keyPrefix, i)))
		if i%3 == 1 {
			require.NoError(t, scores.AppendNull())
		} else {
			require.NoError(t, scores.AppendFloat32(rng.Float32()))
		}
		require.NoError(t, counts.AppendInt64(rng.Int64()))
		require.NoError(t, actives.AppendBool(i%2 == 0))
		if i%3 == 2 {
			require.NoError(t, labels.AppendNull())
		} else {
			require.NoError(t, labels.AppendString(fmt.Sprintf("label-%d", rng.Intn(10))))
		}
	}

	batch, err := model.NewBatch(ids, scores, counts, actives, labels)
	require.NoError(t, err)
	return batch
}

// Keys returns utf8 key values keyPrefix-0 .. keyPrefix-(n-1).
func Keys(keyPrefix string, n int) []model.Value {
	keys := make([]model.Value, n)
	for i := range keys {
		keys[i] = model.String(fmt.Sprintf("%s-%d", keyPrefix, i))
	}
	return keys
}

// BatchRow extracts one row of the batch in the given column order,
// mirroring what a read of that key should return.
func BatchRow(t *testing.T, batch *model.Batch, row int, columns []string) model.Row {
	t.Helper()

	out := make(model.Row, len(columns))
	for i, name := range columns {
		col, ok := batch.Column(name)
		require.True(t, ok, "column %q not in batch", name)
		out[i] = col.Value(row)
	}
	return out
}

// RequireRowsEqual asserts two rows are cell-for-cell equal.
func RequireRowsEqual(t *testing.T, want, got model.Row) {
	t.Helper()

	require.Len(t, got, len(want))
	for i := range want {
		require.True(t, want[i].Equal(got[i]),
			"cell %d: want %#v, got %#v", i, want[i], got[i])
	}
}
