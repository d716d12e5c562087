// Package segment implements the immutable on-disk unit of appended
// rows.
//
// # File format
//
//	[FileHeader: 88 bytes]
//	[framed value block per column, sorted by name]
//	  [framed roaring null bitmap, only when the column has nulls]
//	[framed key index: row offsets sorted by key value]
//	[column directory: name -> block offsets/sizes]
//
// Blocks are framed by the blockio package and may be LZ4 or zstd
// compressed; the algorithm is recorded in the header. The header
// checksum (CRC32-Castagnoli) covers the whole body and is verified
// when a segment is opened, so corruption surfaces as a CorruptError
// at recovery or first read rather than as silently wrong data.
//
// Segments are written exactly once (see Encode) and never mutated;
// publication is the table manager's atomic rename.
package segment
