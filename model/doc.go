// Package model defines the core data types exchanged with the store.
//
// # Values and Keys
//
//   - Value: a single typed scalar (utf8, float32, int64, bool), possibly null
//   - keys are plain non-null Values of the table's key column type
//
// # Batches
//
// Writes take a Batch: a set of named, typed Columns of equal length.
// Columns are built incrementally:
//
//	id := model.NewColumn("id", schema.DTypeUtf8)
//	_ = id.AppendString("a")
//	score := model.NewColumn("score", schema.DTypeFloat32)
//	_ = score.AppendFloat32(1.0)
//	batch, _ := model.NewBatch(id, score)
//
// Null rows are tracked per column in a roaring bitmap, which is also
// the serialized null representation inside segment files.
//
// # Results
//
// Reads return a Result whose rows are aligned to the requested key
// order and the requested column order.
package model
