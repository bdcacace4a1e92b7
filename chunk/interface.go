// Package chunk implements the in-memory write pipeline for one chunk group:
// per-series page buffers with streaming encoders, threshold-driven page
// sealing, chunk accumulation, and flushing through a FileWriter sink.
package chunk

import (
	"errors"

	"github.com/INLOpen/nexustsf/core"
	"github.com/INLOpen/nexustsf/stats"
)

// ErrAlreadyFlushed is returned when a chunk group writer is used after its
// one and only flush.
var ErrAlreadyFlushed = errors.New("chunk group writer already flushed")

// FileWriter is the lower-level append-only sink a chunk group flushes into.
// The file writer serialises its own append cursor; at most one chunk group
// writer holds it at a time.
type FileWriter interface {
	// StartChunkGroup emits the chunk-group header. It does not store the
	// group's start offset; the caller reads it from Pos beforehand.
	StartChunkGroup(deviceID string) error
	// StartFlushChunk emits a chunk header. statistics are inlined in the
	// header when the marker denotes a single-page chunk.
	StartFlushChunk(measurementID string, compression core.CompressionType,
		dataType core.DataType, encoding core.EncodingType,
		statistics stats.Statistics, dataSize int64, numPages int, marker byte) error
	// WriteBytesToStream appends raw bytes: page headers and payloads.
	WriteBytesToStream(data []byte) error
	// EndCurrentChunk records chunk metadata for the file index.
	EndCurrentChunk() error
	// EndChunkGroup emits the chunk-group footer.
	EndChunkGroup() error
	// Pos returns the current file offset.
	Pos() int64
}

// SeriesWriter is the capability set shared by the non-aligned ChunkWriter
// and the AlignedChunkWriter, as held by a ChunkGroupWriter.
type SeriesWriter interface {
	SealCurrentPage() error
	WriteToFileWriter(fw FileWriter) error
	EstimateMaxSeriesMemSize() int64
	CheckIsChunkSizeOverThreshold(size, pointNum int64, returnTrueIfChunkEmpty bool) bool
	CheckIsUnsealedPageOverThreshold(size, pointNum int64, returnTrueIfPageEmpty bool) bool
	ClearPageWriter()
	IsEmpty() bool
	GetCurrentChunkSize() int64
}
