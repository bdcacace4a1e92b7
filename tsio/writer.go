package tsio

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/INLOpen/nexustsf/chunk"
	"github.com/INLOpen/nexustsf/core"
	"github.com/INLOpen/nexustsf/stats"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// WriterOptions configures a file writer.
type WriterOptions struct {
	// WritePageCRC must match the WriteOptions of the chunk writers feeding
	// this file; it is recorded in the header so readers can parse page
	// headers.
	WritePageCRC bool
	// TimeEncoding must match the WriteOptions' time encoding; it governs
	// the embedded timestamp sections of non-aligned pages.
	TimeEncoding core.EncodingType
	Logger       *slog.Logger
	Tracer       trace.Tracer
}

// WriterOptionsFrom derives file-writer options from the chunk writers'
// options, keeping the header consistent with the pages that follow.
func WriterOptionsFrom(o core.WriteOptions) WriterOptions {
	o = o.Sanitize()
	return WriterOptions{
		WritePageCRC: o.WritePageCRC,
		TimeEncoding: o.TimeEncoding,
		Logger:       o.Logger,
	}
}

// Writer is the append-only sink a chunk group flushes into. It writes to a
// temporary file and renames it into place on Close, so a crash never leaves
// a file with a valid tail magic.
type Writer struct {
	filePath string
	file     *os.File
	offset   int64

	entries         []IndexEntry
	pendingChunk    *IndexEntry
	currentDeviceID string
	groupChunkCount int
	closed          bool

	logger *slog.Logger
	tracer trace.Tracer
}

var _ chunk.FileWriter = (*Writer)(nil)

// NewWriter creates the file and writes the header. The final path gains the
// content only after Close succeeds.
func NewWriter(path string, opts WriterOptions) (*Writer, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary chunk file %s: %w", tempPath, err)
	}
	var flags byte
	if opts.WritePageCRC {
		flags |= FlagPageCRC
	}
	header := make([]byte, 0, HeaderSize)
	header = append(header, MagicString...)
	header = append(header, FormatVersion, flags, byte(opts.TimeEncoding))
	if _, err := file.Write(header); err != nil {
		file.Close()
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to write chunk file header: %w", err)
	}
	return &Writer{
		filePath: tempPath,
		file:     file,
		offset:   int64(HeaderSize),
		logger:   opts.Logger,
		tracer:   opts.Tracer,
	}, nil
}

func (w *Writer) write(b []byte) error {
	n, err := w.file.Write(b)
	w.offset += int64(n)
	if err != nil {
		return fmt.Errorf("failed to append %d bytes at offset %d: %w", len(b), w.offset, err)
	}
	return nil
}

// StartChunkGroup emits the group's header and starts a new chunk count. It
// does not store the group's start offset; callers read it from Pos.
func (w *Writer) StartChunkGroup(deviceID string) error {
	if w.closed {
		return ErrClosed
	}
	w.currentDeviceID = deviceID
	w.groupChunkCount = 0
	buf := core.BufferPool.Get()
	defer core.BufferPool.Put(buf)
	buf.WriteByte(core.MarkerChunkGroupHeader)
	core.WriteVarString(buf, deviceID)
	return w.write(buf.Bytes())
}

// StartFlushChunk emits the chunk header. For single-page markers the
// statistics are inlined here and omitted from the page header.
func (w *Writer) StartFlushChunk(measurementID string, compression core.CompressionType,
	dataType core.DataType, encoding core.EncodingType,
	statistics stats.Statistics, dataSize int64, numPages int, marker byte) error {
	if w.closed {
		return ErrClosed
	}
	chunkOffset := w.offset
	buf := core.BufferPool.Get()
	defer core.BufferPool.Put(buf)
	buf.WriteByte(marker)
	core.WriteVarString(buf, measurementID)
	core.AppendUvarint(buf, uint64(dataSize))
	buf.WriteByte(byte(dataType))
	buf.WriteByte(byte(compression))
	buf.WriteByte(byte(encoding))
	core.AppendUvarint(buf, uint64(numPages))
	if core.IsSinglePageMarker(marker) {
		statistics.WriteTo(buf)
	}
	if err := w.write(buf.Bytes()); err != nil {
		return err
	}
	w.pendingChunk = &IndexEntry{
		DeviceID:      w.currentDeviceID,
		MeasurementID: measurementID,
		Offset:        chunkOffset,
		DataSize:      dataSize,
		DataType:      byte(dataType),
		Marker:        marker,
		NumPages:      numPages,
	}
	return nil
}

// WriteBytesToStream appends raw page bytes.
func (w *Writer) WriteBytesToStream(data []byte) error {
	if w.closed {
		return ErrClosed
	}
	return w.write(data)
}

// EndCurrentChunk records the pending chunk in the file index.
func (w *Writer) EndCurrentChunk() error {
	if w.closed {
		return ErrClosed
	}
	if w.pendingChunk == nil {
		return fmt.Errorf("EndCurrentChunk without StartFlushChunk")
	}
	w.entries = append(w.entries, *w.pendingChunk)
	w.pendingChunk = nil
	w.groupChunkCount++
	return nil
}

// EndChunkGroup emits the chunk-group footer: device id and chunk count.
func (w *Writer) EndChunkGroup() error {
	if w.closed {
		return ErrClosed
	}
	buf := core.BufferPool.Get()
	defer core.BufferPool.Put(buf)
	buf.WriteByte(core.MarkerChunkGroupFooter)
	core.WriteVarString(buf, w.currentDeviceID)
	core.AppendUvarint(buf, uint64(w.groupChunkCount))
	if err := w.write(buf.Bytes()); err != nil {
		return err
	}
	w.logger.Debug("ended chunk group", "device", w.currentDeviceID, "chunks", w.groupChunkCount)
	w.currentDeviceID = ""
	w.groupChunkCount = 0
	return nil
}

// Pos returns the current file offset.
func (w *Writer) Pos() int64 { return w.offset }

// Close writes the chunk index and tail magic, syncs, and renames the file
// into its final place.
func (w *Writer) Close() error {
	var span trace.Span
	if w.tracer != nil {
		_, span = w.tracer.Start(context.Background(), "tsio.Writer.Close")
		defer span.End()
	}
	if w.closed {
		return ErrClosed
	}

	indexOffset := w.offset
	buf := core.BufferPool.Get()
	defer core.BufferPool.Put(buf)
	core.AppendUvarint(buf, uint64(len(w.entries)))
	for i := range w.entries {
		e := &w.entries[i]
		core.WriteVarString(buf, e.DeviceID)
		core.WriteVarString(buf, e.MeasurementID)
		core.AppendUvarint(buf, uint64(e.Offset))
		core.AppendUvarint(buf, uint64(e.DataSize))
		buf.WriteByte(e.DataType)
		buf.WriteByte(e.Marker)
		core.AppendUvarint(buf, uint64(e.NumPages))
	}
	var tail [8]byte
	binary.LittleEndian.PutUint64(tail[:], uint64(indexOffset))
	buf.Write(tail[:])
	buf.WriteString(MagicString)
	if err := w.write(buf.Bytes()); err != nil {
		w.abort()
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return fmt.Errorf("failed to write chunk file tail: %w", err)
	}

	if err := w.file.Sync(); err != nil {
		w.abort()
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return fmt.Errorf("failed to sync chunk file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		w.file = nil
		w.abort()
		return fmt.Errorf("failed to close chunk file: %w", err)
	}
	w.file = nil

	finalPath := w.filePath[:len(w.filePath)-len(filepath.Ext(w.filePath))]
	if err := os.Rename(w.filePath, finalPath); err != nil {
		w.abort()
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return fmt.Errorf("failed to rename chunk file %s to %s: %w", w.filePath, finalPath, err)
	}
	w.filePath = finalPath
	w.closed = true

	if span != nil {
		span.SetAttributes(
			attribute.String("tsio.final_path", finalPath),
			attribute.Int64("tsio.bytes", w.offset),
			attribute.Int("tsio.chunks", len(w.entries)),
		)
	}
	w.logger.Debug("closed chunk file", "path", finalPath, "bytes", w.offset, "chunks", len(w.entries))
	return nil
}

func (w *Writer) abort() {
	if w.file != nil {
		w.file.Close()
		w.file = nil
	}
	if w.filePath != "" {
		os.Remove(w.filePath)
	}
	w.closed = true
}

// Abort closes the writer and removes the temporary file. Call it when a
// flush failed and the file must be discarded.
func (w *Writer) Abort() error {
	if w.closed {
		return nil
	}
	w.abort()
	return nil
}

// FilePath returns the file's path; the final path once Close succeeded.
func (w *Writer) FilePath() string { return w.filePath }
