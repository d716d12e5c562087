// Package colgo provides an embedded columnar table store for Go.
//
// Colgo is a process-local storage engine: a catalog of named tables,
// each backed by ordered, immutable on-disk segments. Writes append
// schema-validated batches; reads resolve typed keys to rows with
// last-writer-wins semantics across segments. All state lives under a
// single directory and survives restarts.
//
// # Quick Start
//
//	ctx := context.Background()
//	store, _ := colgo.Open(ctx, "./data")
//	defer store.Close()
//
//	ts := schema.TableSchema{
//	    Key: "id",
//	    Columns: map[string]schema.ColumnSchema{
//	        "id":    {DType: schema.DTypeUtf8},
//	        "score": {DType: schema.DTypeFloat32, Nullable: true},
//	    },
//	}
//	_ = store.CreateTable(ctx, "features", ts)
//
//	ids, _ := model.ColumnOf("id", schema.DTypeUtf8,
//	    model.String("a"), model.String("b"))
//	scores, _ := model.ColumnOf("score", schema.DTypeFloat32,
//	    model.Float32(0.5), model.Null(schema.DTypeFloat32))
//	batch, _ := model.NewBatch(ids, scores)
//	_ = store.Write(ctx, "features", batch)
//
//	res, _ := store.Read(ctx, "features",
//	    []model.Value{model.String("b")}, []string{"score"})
//
// # Durability Model
//
// Every Write produces exactly one segment file, published atomically
// (write to a temp path, fsync, rename, fsync the directory). A crash
// at any point leaves either the complete previous state or the
// complete new state; partially written segments are cleaned up on the
// next open. Segments are never modified or merged after publish.
//
// # Key Features
//
//   - Schema-validated appends with a typed column model (utf8,
//     float32, int64, bool, with per-column nullability)
//   - O(log rows) per-segment key lookups via an embedded sorted index
//   - Zero-copy column access from memory-mapped segments
//   - Optional LZ4 or Zstandard block compression
//   - Crash-safe catalog with atomic table creation
//
// The store is append-only: there is no delete, update-in-place, or
// compaction. Rewriting a key in a later batch supersedes the earlier
// row on read, but the old row still occupies segment space.
package colgo
