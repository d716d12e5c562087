package colgo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/colgo/internal/fs"
	"github.com/hupe1980/colgo/model"
	"github.com/hupe1980/colgo/schema"
	"github.com/hupe1980/colgo/testutil"
)

func openStore(t *testing.T, dir string, optFns ...Option) *Store {
	t.Helper()
	store, err := Open(context.Background(), dir, optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, t.TempDir())
	rng := testutil.NewRNG(4711)

	require.NoError(t, store.CreateTable(ctx, "features", testutil.FeatureSchema()))

	batch := testutil.FeatureBatch(t, rng, "user", 100)
	require.NoError(t, store.Write(ctx, "features", batch))

	columns := []string{"score", "label", "count", "active"}
	res, err := store.Read(ctx, "features", testutil.Keys("user", 100), columns)
	require.NoError(t, err)
	require.Equal(t, 100, res.Len())

	for i := 0; i < 100; i++ {
		assert.True(t, res.Keys[i].Equal(model.String(batch.Columns()[0].Strings()[i])))
		testutil.RequireRowsEqual(t, testutil.BatchRow(t, batch, i, columns), res.Rows[i])
	}
}

func TestStoreCreateTableErrors(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, t.TempDir())

	require.NoError(t, store.CreateTable(ctx, "features", testutil.FeatureSchema()))

	t.Run("duplicate", func(t *testing.T) {
		err := store.CreateTable(ctx, "features", testutil.FeatureSchema())
		assert.ErrorIs(t, err, ErrTableAlreadyExists)
	})

	t.Run("invalid name", func(t *testing.T) {
		var ine *InvalidTableNameError
		err := store.CreateTable(ctx, "no/slashes", testutil.FeatureSchema())
		assert.ErrorAs(t, err, &ine)
	})

	t.Run("invalid schema", func(t *testing.T) {
		var sme *SchemaMismatchError
		err := store.CreateTable(ctx, "bad", schema.TableSchema{Key: "id"})
		assert.ErrorAs(t, err, &sme)
	})
}

func TestStoreUnknownTable(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, t.TempDir())
	rng := testutil.NewRNG(1)

	err := store.Write(ctx, "nope", testutil.FeatureBatch(t, rng, "k", 1))
	assert.ErrorIs(t, err, ErrTableNotFound)

	_, err = store.Read(ctx, "nope", testutil.Keys("k", 1), []string{"score"})
	assert.ErrorIs(t, err, ErrTableNotFound)

	_, err = store.GetSchema("nope")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestStoreSchemaMismatchWrites(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, t.TempDir())
	require.NoError(t, store.CreateTable(ctx, "features", testutil.FeatureSchema()))

	t.Run("extra column", func(t *testing.T) {
		ids, err := model.ColumnOf("id", schema.DTypeUtf8, model.String("a"))
		require.NoError(t, err)
		extra, err := model.ColumnOf("extra", schema.DTypeBool, model.Bool(true))
		require.NoError(t, err)
		b, err := model.NewBatch(ids, extra)
		require.NoError(t, err)

		var sme *SchemaMismatchError
		require.ErrorAs(t, store.Write(ctx, "features", b), &sme)
		assert.Equal(t, "extra", sme.Column)
	})

	t.Run("null key", func(t *testing.T) {
		rng := testutil.NewRNG(1)
		batch := testutil.FeatureBatch(t, rng, "k", 1)
		ids := model.NewColumn("id", schema.DTypeUtf8)
		require.NoError(t, ids.AppendNull())
		cols := []*model.Column{ids}
		for _, c := range batch.Columns() {
			if c.Name() != "id" {
				cols = append(cols, c)
			}
		}
		b, err := model.NewBatch(cols...)
		require.NoError(t, err)

		var ike *InvalidKeyError
		assert.ErrorAs(t, store.Write(ctx, "features", b), &ike)
	})
}

func TestStoreListAndGetSchema(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, t.TempDir())

	ts := testutil.FeatureSchema()
	require.NoError(t, store.CreateTable(ctx, "features", ts))

	got, err := store.GetSchema("features")
	require.NoError(t, err)
	assert.True(t, ts.Equal(got), "schema survives field for field")

	tables, err := store.ListTables()
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.True(t, ts.Equal(tables["features"]))
}

func TestStorePersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	rng := testutil.NewRNG(99)
	ts := testutil.FeatureSchema()

	store := openStore(t, dir)
	require.NoError(t, store.CreateTable(ctx, "features", ts))
	batch := testutil.FeatureBatch(t, rng, "user", 20)
	require.NoError(t, store.Write(ctx, "features", batch))
	require.NoError(t, store.Close())

	reopened := openStore(t, dir)
	got, err := reopened.GetSchema("features")
	require.NoError(t, err)
	assert.True(t, ts.Equal(got))

	columns := []string{"score", "count"}
	res, err := reopened.Read(ctx, "features", testutil.Keys("user", 20), columns)
	require.NoError(t, err)
	require.Equal(t, 20, res.Len())
	for i := range res.Rows {
		testutil.RequireRowsEqual(t, testutil.BatchRow(t, batch, i, columns), res.Rows[i])
	}
}

func TestStoreLastWriterWins(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, t.TempDir())

	require.NoError(t, store.CreateTable(ctx, "kv", schema.TableSchema{
		Key: "k",
		Columns: map[string]schema.ColumnSchema{
			"k": {DType: schema.DTypeUtf8},
			"v": {DType: schema.DTypeInt64},
		},
	}))

	write := func(k string, v int64) {
		ks, err := model.ColumnOf("k", schema.DTypeUtf8, model.String(k))
		require.NoError(t, err)
		vs, err := model.ColumnOf("v", schema.DTypeInt64, model.Int64(v))
		require.NoError(t, err)
		b, err := model.NewBatch(ks, vs)
		require.NoError(t, err)
		require.NoError(t, store.Write(ctx, "kv", b))
	}

	write("a", 1)
	write("b", 2)
	write("a", 10)

	res, err := store.Read(ctx, "kv",
		[]model.Value{model.String("a"), model.String("b")}, []string{"v"})
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())
	assert.True(t, res.Rows[0][0].Equal(model.Int64(10)))
	assert.True(t, res.Rows[1][0].Equal(model.Int64(2)))
}

func TestStoreMissingKeyPolicies(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	rng := testutil.NewRNG(7)

	store := openStore(t, dir)
	require.NoError(t, store.CreateTable(ctx, "features", testutil.FeatureSchema()))
	require.NoError(t, store.Write(ctx, "features", testutil.FeatureBatch(t, rng, "user", 5)))

	res, err := store.Read(ctx, "features",
		append(testutil.Keys("user", 5), model.String("ghost")), []string{"count"})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Len(), "missing key omitted by default")
	require.NoError(t, store.Close())

	strict := openStore(t, dir, WithMissingKeyPolicy(MissingKeyError))
	_, err = strict.Read(ctx, "features",
		[]model.Value{model.String("ghost")}, []string{"count"})
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestStoreCompressionRoundTrip(t *testing.T) {
	for _, comp := range []Compression{CompressionLZ4, CompressionZstd} {
		t.Run(comp.String(), func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			rng := testutil.NewRNG(13)

			store := openStore(t, dir, WithCompression(comp))
			require.NoError(t, store.CreateTable(ctx, "features", testutil.FeatureSchema()))
			batch := testutil.FeatureBatch(t, rng, "user", 200)
			require.NoError(t, store.Write(ctx, "features", batch))
			require.NoError(t, store.Close())

			// Readable after reopen, even without the compression option.
			reopened := openStore(t, dir)
			columns := []string{"label", "score"}
			res, err := reopened.Read(ctx, "features", testutil.Keys("user", 200), columns)
			require.NoError(t, err)
			require.Equal(t, 200, res.Len())
			for i := range res.Rows {
				testutil.RequireRowsEqual(t, testutil.BatchRow(t, batch, i, columns), res.Rows[i])
			}
		})
	}
}

func TestStoreClosed(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, t.TempDir())
	require.NoError(t, store.CreateTable(ctx, "features", testutil.FeatureSchema()))
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "double close is a no-op")

	rng := testutil.NewRNG(1)
	assert.ErrorIs(t, store.CreateTable(ctx, "x", testutil.FeatureSchema()), ErrStoreClosed)
	assert.ErrorIs(t, store.Write(ctx, "features", testutil.FeatureBatch(t, rng, "k", 1)), ErrStoreClosed)
	_, err := store.Read(ctx, "features", testutil.Keys("k", 1), []string{"score"})
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.GetSchema("features")
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.ListTables()
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestStoreWriteNilBatch(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, t.TempDir())
	require.NoError(t, store.CreateTable(ctx, "features", testutil.FeatureSchema()))

	var sme *SchemaMismatchError
	require.ErrorAs(t, store.Write(ctx, "features", nil), &sme)
	assert.Equal(t, "features", sme.Table)
}

func TestStoreWriteFaultInjection(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	rng := testutil.NewRNG(21)

	faulty := fs.NewFaultyFS(nil)
	store := openStore(t, dir, withFS(faulty))
	require.NoError(t, store.CreateTable(ctx, "features", testutil.FeatureSchema()))
	require.NoError(t, store.Write(ctx, "features", testutil.FeatureBatch(t, rng, "ok", 3)))

	faulty.AddRule(".tmp-", fs.Fault{FailOnSync: true})
	var ioe *SegmentIOError
	err := store.Write(ctx, "features", testutil.FeatureBatch(t, rng, "bad", 3))
	require.ErrorAs(t, err, &ioe)
	assert.Equal(t, "features", ioe.Table)

	// The failed write is invisible; earlier data is intact.
	res, err := store.Read(ctx, "features",
		append(testutil.Keys("ok", 3), testutil.Keys("bad", 3)...), []string{"count"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Len())
}

func TestStoreCorruptTableIsolation(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	rng := testutil.NewRNG(33)

	store := openStore(t, dir)
	require.NoError(t, store.CreateTable(ctx, "good", testutil.FeatureSchema()))
	require.NoError(t, store.CreateTable(ctx, "bad", testutil.FeatureSchema()))
	require.NoError(t, store.Write(ctx, "good", testutil.FeatureBatch(t, rng, "g", 3)))
	require.NoError(t, store.Write(ctx, "bad", testutil.FeatureBatch(t, rng, "b", 3)))
	require.NoError(t, store.Close())

	// Corrupt the bad table's only segment.
	segPath := filepath.Join(dir, "tables", "bad", "00000000.seg")
	data, err := os.ReadFile(segPath)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(segPath, data, 0o640))

	reopened := openStore(t, dir)

	// The healthy table still serves reads.
	res, err := reopened.Read(ctx, "good", testutil.Keys("g", 3), []string{"count"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Len())

	// The corrupt one fails its data operations but stays listed.
	var ce *CorruptSegmentError
	_, err = reopened.Read(ctx, "bad", testutil.Keys("b", 3), []string{"count"})
	assert.ErrorAs(t, err, &ce)
	tables, err := reopened.ListTables()
	require.NoError(t, err)
	assert.Len(t, tables, 2)
	_, err = reopened.GetSchema("bad")
	assert.NoError(t, err)
}

func TestStoreBadSchemaRecordIsolation(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	rng := testutil.NewRNG(44)

	store := openStore(t, dir)
	require.NoError(t, store.CreateTable(ctx, "good", testutil.FeatureSchema()))
	require.NoError(t, store.CreateTable(ctx, "bad", testutil.FeatureSchema()))
	require.NoError(t, store.Write(ctx, "good", testutil.FeatureBatch(t, rng, "g", 3)))
	require.NoError(t, store.Write(ctx, "bad", testutil.FeatureBatch(t, rng, "b", 3)))
	require.NoError(t, store.Close())

	// Corrupt the bad table's schema record.
	record := filepath.Join(dir, "tables", "bad", "schema.json")
	require.NoError(t, os.WriteFile(record, []byte("{not json"), 0o640))

	reopened := openStore(t, dir)

	// The healthy table is unaffected.
	res, err := reopened.Read(ctx, "good", testutil.Keys("g", 3), []string{"count"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Len())

	// The broken one reports its recovery failure on every operation.
	_, err = reopened.Read(ctx, "bad", testutil.Keys("b", 3), []string{"count"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTableNotFound)
	err = reopened.Write(ctx, "bad", testutil.FeatureBatch(t, rng, "b", 1))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTableNotFound)
	_, err = reopened.GetSchema("bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTableNotFound)

	tables, err := reopened.ListTables()
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Contains(t, tables, "good")

	// Its name stays reserved.
	err = reopened.CreateTable(ctx, "bad", testutil.FeatureSchema())
	assert.ErrorIs(t, err, ErrTableAlreadyExists)
}

func TestStoreMetrics(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}
	store := openStore(t, t.TempDir(), WithMetricsCollector(metrics))
	rng := testutil.NewRNG(5)

	require.NoError(t, store.CreateTable(ctx, "features", testutil.FeatureSchema()))
	require.NoError(t, store.Write(ctx, "features", testutil.FeatureBatch(t, rng, "k", 10)))
	_, err := store.Read(ctx, "features", testutil.Keys("k", 10), []string{"count"})
	require.NoError(t, err)
	_ = store.Write(ctx, "nope", testutil.FeatureBatch(t, rng, "k", 1))

	assert.Equal(t, int64(1), metrics.CreateTableCount.Load())
	assert.Equal(t, int64(2), metrics.WriteCount.Load())
	assert.Equal(t, int64(1), metrics.WriteErrs.Load())
	assert.Equal(t, int64(10), metrics.WriteRows.Load())
	assert.Equal(t, int64(1), metrics.ReadCount.Load())
	assert.Equal(t, int64(10), metrics.ReadKeys.Load())
	assert.Equal(t, int64(10), metrics.ReadFound.Load())
}

func TestStoreMultipleTables(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, t.TempDir())
	rng := testutil.NewRNG(2)

	for _, name := range []string{"alpha", "beta", "gamma"} {
		require.NoError(t, store.CreateTable(ctx, name, testutil.FeatureSchema()))
		require.NoError(t, store.Write(ctx, name, testutil.FeatureBatch(t, rng, name, 4)))
	}

	for _, name := range []string{"alpha", "beta", "gamma"} {
		res, err := store.Read(ctx, name, testutil.Keys(name, 4), []string{"count"})
		require.NoError(t, err)
		assert.Equal(t, 4, res.Len(), name)
	}
	tables, err := store.ListTables()
	require.NoError(t, err)
	assert.Len(t, tables, 3)
}
