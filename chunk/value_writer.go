package chunk

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/INLOpen/nexustsf/compressors"
	"github.com/INLOpen/nexustsf/core"
	"github.com/INLOpen/nexustsf/encoders"
	"github.com/INLOpen/nexustsf/schema"
	"github.com/INLOpen/nexustsf/stats"
)

// ValueChunkWriter accumulates one value series into pages and sealed
// chunks. Inside an aligned group it stores values only; standalone (behind
// the non-aligned ChunkWriter facade) it also carries its own timestamps.
type ValueChunkWriter struct {
	measurementID string
	dataType      core.DataType
	encoding      core.EncodingType
	compression   core.CompressionType
	compressor    core.Compressor
	opts          core.WriteOptions
	logger        *slog.Logger
	standalone    bool

	page       *valuePageWriter
	cb         chunkBuffer
	chunkStats stats.Statistics
	sealedRows int64
}

// NewValueChunkWriter creates a writer for one value series. standalone
// selects the non-aligned layout with an embedded timestamp section.
func NewValueChunkWriter(s schema.MeasurementSchema, standalone bool, opts core.WriteOptions) (*ValueChunkWriter, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	opts = opts.Sanitize()
	enc, err := encoders.NewEncoder(s.Encoding, s.Type)
	if err != nil {
		return nil, fmt.Errorf("measurement '%s': %w", s.MeasurementID, err)
	}
	var timeEnc core.Encoder
	if standalone {
		timeEnc, err = encoders.NewEncoder(opts.TimeEncoding, core.TypeInt64)
		if err != nil {
			return nil, fmt.Errorf("measurement '%s': %w", s.MeasurementID, err)
		}
	}
	comp, err := compressors.ForType(s.Compression)
	if err != nil {
		return nil, fmt.Errorf("measurement '%s': %w", s.MeasurementID, err)
	}
	return &ValueChunkWriter{
		measurementID: s.MeasurementID,
		dataType:      s.Type,
		encoding:      s.Encoding,
		compression:   s.Compression,
		compressor:    comp,
		opts:          opts,
		logger:        opts.Logger,
		standalone:    standalone,
		page:          newValuePageWriter(s.Type, enc, timeEnc),
		cb:            chunkBuffer{writeCRC: opts.WritePageCRC},
		chunkStats:    stats.New(s.Type),
	}, nil
}

func (w *ValueChunkWriter) MeasurementID() string   { return w.measurementID }
func (w *ValueChunkWriter) DataType() core.DataType { return w.dataType }

// Write records one point. A null advances the page's nullability bitmap
// without touching encoder or statistics.
func (w *ValueChunkWriter) Write(t int64, v core.Value, isNull bool) error {
	if err := w.page.write(t, v, isNull); err != nil {
		var tm *core.TypeMismatchError
		if errors.As(err, &tm) {
			tm.MeasurementID = w.measurementID
		}
		return err
	}
	return nil
}

// WriteBatchColumn writes rows [offset, offset+batchSize) of a typed column.
// The type dispatch happens once per call, not per row.
func (w *ValueChunkWriter) WriteBatchColumn(times []int64, col *schema.Column, batchSize, offset int) error {
	if core.KindForType(col.Type) != core.KindForType(w.dataType) {
		return &core.TypeMismatchError{
			MeasurementID: w.measurementID,
			Expected:      w.dataType,
			Got:           core.KindForType(col.Type),
		}
	}
	switch core.KindForType(w.dataType) {
	case core.KindBool:
		for i := offset; i < offset+batchSize; i++ {
			if err := w.page.write(times[i], core.BoolValue(col.Bools[i]), col.IsNull(i)); err != nil {
				return err
			}
		}
	case core.KindInt32:
		for i := offset; i < offset+batchSize; i++ {
			if err := w.page.write(times[i], core.Int32Value(col.I32s[i]), col.IsNull(i)); err != nil {
				return err
			}
		}
	case core.KindInt64:
		for i := offset; i < offset+batchSize; i++ {
			if err := w.page.write(times[i], core.Int64Value(col.I64s[i]), col.IsNull(i)); err != nil {
				return err
			}
		}
	case core.KindFloat:
		for i := offset; i < offset+batchSize; i++ {
			if err := w.page.write(times[i], core.FloatValue(col.F32s[i]), col.IsNull(i)); err != nil {
				return err
			}
		}
	case core.KindDouble:
		for i := offset; i < offset+batchSize; i++ {
			if err := w.page.write(times[i], core.DoubleValue(col.F64s[i]), col.IsNull(i)); err != nil {
				return err
			}
		}
	default:
		for i := offset; i < offset+batchSize; i++ {
			if err := w.page.write(times[i], core.BytesValue(col.Binaries[i]), col.IsNull(i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// pageOverThreshold reports whether the open page must be sealed.
func (w *ValueChunkWriter) pageOverThreshold() bool {
	return w.page.count >= w.opts.MaxPointsPerPage ||
		w.page.estimatedSize() >= w.opts.PageSizeThresholdBytes
}

// SealCurrentPage force-seals the open page: flush the encoder, finalise
// statistics, compress, append to the chunk buffer and reset the page.
// No-op when the page is empty.
func (w *ValueChunkWriter) SealCurrentPage() error {
	if w.page.count == 0 {
		return nil
	}
	payload, st, err := w.page.seal()
	if err != nil {
		return err
	}
	if err := sealPageInto(&w.cb, w.compressor, payload, st); err != nil {
		return err
	}
	if err := w.chunkStats.Merge(st); err != nil {
		return err
	}
	w.sealedRows += int64(w.page.count)
	w.logger.Debug("sealed page",
		"measurement", w.measurementID,
		"points", w.page.count,
		"uncompressed", len(payload))
	w.page.reset()
	return nil
}

// WritePageHeaderAndDataIntoBuff splices a pre-encoded, pre-compressed page
// into the chunk buffer without re-encoding. Statistics advance from the
// header.
func (w *ValueChunkWriter) WritePageHeaderAndDataIntoBuff(data []byte, header PageHeader) error {
	if header.Statistics == nil {
		return &core.PageError{Message: "spliced page header carries no statistics"}
	}
	if len(data) != header.CompressedSize {
		return &core.PageError{Message: fmt.Sprintf(
			"spliced page payload is %d bytes, header declares %d", len(data), header.CompressedSize)}
	}
	w.cb.addPage(header, data)
	if err := w.chunkStats.Merge(header.Statistics); err != nil {
		return err
	}
	w.sealedRows += header.Statistics.Count()
	return nil
}

// WriteToFileWriter seals the open page, emits the chunk header and all
// sealed pages in order, and resets the writer. Emits nothing for an empty
// series.
func (w *ValueChunkWriter) WriteToFileWriter(fw FileWriter) error {
	if err := w.SealCurrentPage(); err != nil {
		return err
	}
	numPages := w.cb.numPages()
	if numPages == 0 {
		return nil
	}
	marker := core.ChunkMarker(false, !w.standalone, numPages)
	dataSize := w.cb.dataSize()
	if err := fw.StartFlushChunk(w.measurementID, w.compression, w.dataType, w.encoding,
		w.chunkStats, dataSize, numPages, marker); err != nil {
		return fmt.Errorf("failed to start chunk for '%s': %w", w.measurementID, err)
	}
	if err := w.cb.writeTo(fw); err != nil {
		return fmt.Errorf("failed to write pages for '%s': %w", w.measurementID, err)
	}
	if err := fw.EndCurrentChunk(); err != nil {
		return fmt.Errorf("failed to end chunk for '%s': %w", w.measurementID, err)
	}
	w.cb.reset()
	w.chunkStats = stats.New(w.dataType)
	w.sealedRows = 0
	return nil
}

// EstimateMaxSeriesMemSize is an upper bound on bytes held but not flushed:
// encoder state, the open page and sealed (uncompressed-size accounted)
// pages.
func (w *ValueChunkWriter) EstimateMaxSeriesMemSize() int64 {
	return int64(w.page.estimatedSize()) + w.cb.estimateSize()
}

// CheckIsUnsealedPageOverThreshold reports whether the open page holds at
// least size bytes.
func (w *ValueChunkWriter) CheckIsUnsealedPageOverThreshold(size int64) bool {
	return int64(w.page.estimatedSize()) >= size
}

// CheckIsChunkSizeOverThreshold returns true iff the chunk is empty and the
// flag requests that, or the point count crossed pointNum, or the estimated
// size crossed size.
func (w *ValueChunkWriter) CheckIsChunkSizeOverThreshold(size, pointNum int64, returnTrueIfChunkEmpty bool) bool {
	if returnTrueIfChunkEmpty && w.IsEmpty() {
		return true
	}
	return w.GetPointNum() >= pointNum || w.EstimateMaxSeriesMemSize() >= size
}

// ClearPageWriter discards the open page.
func (w *ValueChunkWriter) ClearPageWriter() {
	w.page.reset()
}

// IsEmpty reports whether the writer holds no sealed pages and no open
// points.
func (w *ValueChunkWriter) IsEmpty() bool {
	return w.cb.numPages() == 0 && w.page.count == 0
}

// GetPointNum returns the number of rows recorded, nulls included, across
// sealed pages and the open page.
func (w *ValueChunkWriter) GetPointNum() int64 {
	return w.sealedRows + int64(w.page.count)
}

// GetCurrentChunkSize is the serialized size of the chunk header plus all
// sealed pages; the open page is excluded. Zero when nothing is sealed.
func (w *ValueChunkWriter) GetCurrentChunkSize() int64 {
	numPages := w.cb.numPages()
	if numPages == 0 {
		return 0
	}
	dataSize := w.cb.dataSize()
	header := int64(1 + core.VarStringSize(w.measurementID) +
		core.UvarintSize(uint64(dataSize)) + 3 +
		core.UvarintSize(uint64(numPages)))
	if numPages == 1 {
		header += int64(w.cb.pages[0].header.Statistics.SerializedSize())
	}
	return header + dataSize
}
