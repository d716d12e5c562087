package colgo

import (
	"github.com/hupe1980/colgo/codec"
	"github.com/hupe1980/colgo/internal/blockio"
	"github.com/hupe1980/colgo/internal/fs"
)

// Compression selects the algorithm applied to segment column blocks.
// It affects newly written segments only; existing segments record
// their own algorithm and stay readable.
type Compression = blockio.Compression

const (
	// CompressionNone stores column blocks uncompressed (the default);
	// uncompressed blocks are read zero-copy from the mapped file.
	CompressionNone = blockio.None
	// CompressionLZ4 trades a little CPU for smaller segments.
	CompressionLZ4 = blockio.LZ4
	// CompressionZstd compresses harder; suited to cold, large tables.
	CompressionZstd = blockio.Zstd
)

// MissingKeyPolicy controls how reads treat keys found in no segment.
type MissingKeyPolicy uint8

const (
	// MissingKeyOmit silently drops missing keys from the result.
	// The result's Keys field identifies which keys were found.
	MissingKeyOmit MissingKeyPolicy = iota
	// MissingKeyError fails the whole read with ErrKeyNotFound.
	MissingKeyError
)

type options struct {
	logger      *Logger
	metrics     MetricsCollector
	codec       codec.Codec
	fsys        fs.FileSystem
	compression Compression
	missingKey  MissingKeyPolicy
}

func defaultOptions() options {
	return options{
		logger:      NoopLogger(),
		metrics:     NoopMetricsCollector{},
		codec:       codec.Default,
		fsys:        fs.Default,
		compression: CompressionNone,
		missingKey:  MissingKeyOmit,
	}
}

// Option configures Open behavior.
type Option func(*options)

// WithLogger configures structured logging. Pass nil to keep logging
// disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetricsCollector configures a metrics collector. Pass nil to
// disable metrics collection.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metrics = m
	}
}

// WithCodec configures the codec used for catalog schema records.
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression configures compression for newly written segments.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMissingKeyPolicy configures how reads treat keys absent from
// every segment.
func WithMissingKeyPolicy(p MissingKeyPolicy) Option {
	return func(o *options) {
		o.missingKey = p
	}
}

// withFS injects a FileSystem; used by tests for fault injection.
func withFS(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys != nil {
			o.fsys = fsys
		}
	}
}
