package core

import "log/slog"

// Write path defaults. A WriteOptions value is threaded explicitly into every
// writer at construction; there is no process-wide configuration.
const (
	DefaultPageSizeThresholdBytes  = 64 * 1024
	DefaultMaxPointsPerPage        = 1024 * 1024
	DefaultChunkSizeThresholdBytes = 1024 * 1024
)

// WriteOptions carries the thresholds and codec defaults for the chunk write
// path.
type WriteOptions struct {
	// PageSizeThresholdBytes seals the current page once its uncompressed
	// size (including encoder tail bytes) reaches this bound.
	PageSizeThresholdBytes int
	// MaxPointsPerPage seals the current page once it holds this many points.
	MaxPointsPerPage int
	// ChunkSizeThresholdBytes is consulted by callers through
	// CheckIsChunkSizeOverThreshold; the writer itself does not enforce it.
	ChunkSizeThresholdBytes int64
	// TimeEncoding applies to the time chunk of aligned groups and to the
	// timestamp section of non-aligned pages. TimeCompression applies to the
	// time chunk only; non-aligned pages are compressed whole with the
	// series' own compression.
	TimeEncoding    EncodingType
	TimeCompression CompressionType
	// WritePageCRC appends a CRC32 of the compressed payload to every page
	// header of a multi-page chunk.
	WritePageCRC bool

	Logger *slog.Logger
}

// DefaultWriteOptions returns the default options. Sanitize takes its
// thresholds for threshold fields left zero.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{
		PageSizeThresholdBytes:  DefaultPageSizeThresholdBytes,
		MaxPointsPerPage:        DefaultMaxPointsPerPage,
		ChunkSizeThresholdBytes: DefaultChunkSizeThresholdBytes,
		TimeEncoding:            EncodingTS2Diff,
		TimeCompression:         CompressionLZ4,
		WritePageCRC:            false,
	}
}

// Sanitize replaces non-positive thresholds with their defaults and
// guarantees a usable logger. TimeEncoding, TimeCompression and WritePageCRC
// are kept as given; their zero values (PLAIN, uncompressed, no CRC) are not
// replaced.
func (o WriteOptions) Sanitize() WriteOptions {
	def := DefaultWriteOptions()
	if o.PageSizeThresholdBytes <= 0 {
		o.PageSizeThresholdBytes = def.PageSizeThresholdBytes
	}
	if o.MaxPointsPerPage <= 0 {
		o.MaxPointsPerPage = def.MaxPointsPerPage
	}
	if o.ChunkSizeThresholdBytes <= 0 {
		o.ChunkSizeThresholdBytes = def.ChunkSizeThresholdBytes
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
