package chunk

import (
	"fmt"
	"log/slog"

	"github.com/INLOpen/nexustsf/compressors"
	"github.com/INLOpen/nexustsf/core"
	"github.com/INLOpen/nexustsf/encoders"
	"github.com/INLOpen/nexustsf/stats"
)

// TimeChunkWriter accumulates the shared time column of an aligned group.
// It has the shape of a ValueChunkWriter restricted to INT64 timestamps with the
// configured time encoding and compression, and it drives page-boundary
// decisions for the whole group.
type TimeChunkWriter struct {
	measurementID string
	encoding      core.EncodingType
	compression   core.CompressionType
	compressor    core.Compressor
	opts          core.WriteOptions
	logger        *slog.Logger

	page       *timePageWriter
	cb         chunkBuffer
	chunkStats stats.Statistics
	sealedRows int64
}

// NewTimeChunkWriter creates the time writer of an aligned group. The
// measurement id is empty for write-path groups; rewrites may carry one.
func NewTimeChunkWriter(measurementID string, opts core.WriteOptions) (*TimeChunkWriter, error) {
	opts = opts.Sanitize()
	enc, err := encoders.NewEncoder(opts.TimeEncoding, core.TypeInt64)
	if err != nil {
		return nil, fmt.Errorf("time chunk: %w", err)
	}
	comp, err := compressors.ForType(opts.TimeCompression)
	if err != nil {
		return nil, fmt.Errorf("time chunk: %w", err)
	}
	return &TimeChunkWriter{
		measurementID: measurementID,
		encoding:      opts.TimeEncoding,
		compression:   opts.TimeCompression,
		compressor:    comp,
		opts:          opts,
		logger:        opts.Logger,
		page:          newTimePageWriter(enc),
		cb:            chunkBuffer{writeCRC: opts.WritePageCRC},
		chunkStats:    stats.New(core.TypeInt64),
	}, nil
}

// Write appends one timestamp to the open page.
func (w *TimeChunkWriter) Write(t int64) error {
	return w.page.write(t)
}

// WriteBatch appends times[offset : offset+batchSize].
func (w *TimeChunkWriter) WriteBatch(times []int64, batchSize, offset int) error {
	return w.page.writeBatch(times, batchSize, offset)
}

// GetRemainingPointNumberForCurrentPage returns how many points may still be
// appended before the open page reaches the point-count bound. Aligned batch
// writes split at this boundary so all sub-writers seal together.
func (w *TimeChunkWriter) GetRemainingPointNumberForCurrentPage() int {
	remaining := w.opts.MaxPointsPerPage - w.page.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (w *TimeChunkWriter) pageOverThreshold() bool {
	return w.page.count >= w.opts.MaxPointsPerPage ||
		w.page.estimatedSize() >= w.opts.PageSizeThresholdBytes
}

// SealCurrentPage force-seals the open page. No-op when empty.
func (w *TimeChunkWriter) SealCurrentPage() error {
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
	w.logger.Debug("sealed time page", "points", w.page.count, "uncompressed", len(payload))
	w.page.reset()
	return nil
}

// WritePageHeaderAndDataIntoBuff splices a pre-encoded time page.
func (w *TimeChunkWriter) WritePageHeaderAndDataIntoBuff(data []byte, header PageHeader) error {
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

// WriteToFileWriter seals the open page and emits the time chunk.
func (w *TimeChunkWriter) WriteToFileWriter(fw FileWriter) error {
	if err := w.SealCurrentPage(); err != nil {
		return err
	}
	numPages := w.cb.numPages()
	if numPages == 0 {
		return nil
	}
	marker := core.ChunkMarker(true, false, numPages)
	dataSize := w.cb.dataSize()
	if err := fw.StartFlushChunk(w.measurementID, w.compression, core.TypeInt64, w.encoding,
		w.chunkStats, dataSize, numPages, marker); err != nil {
		return fmt.Errorf("failed to start time chunk: %w", err)
	}
	if err := w.cb.writeTo(fw); err != nil {
		return fmt.Errorf("failed to write time pages: %w", err)
	}
	if err := fw.EndCurrentChunk(); err != nil {
		return fmt.Errorf("failed to end time chunk: %w", err)
	}
	w.cb.reset()
	w.chunkStats = stats.New(core.TypeInt64)
	w.sealedRows = 0
	return nil
}

func (w *TimeChunkWriter) EstimateMaxSeriesMemSize() int64 {
	return int64(w.page.estimatedSize()) + w.cb.estimateSize()
}

func (w *TimeChunkWriter) CheckIsUnsealedPageOverThreshold(size, pointNum int64) bool {
	return int64(w.page.estimatedSize()) >= size || int64(w.page.count) >= pointNum
}

// CheckIsChunkSizeOverThreshold mirrors the value writer's policy.
func (w *TimeChunkWriter) CheckIsChunkSizeOverThreshold(size, pointNum int64, returnTrueIfChunkEmpty bool) bool {
	if returnTrueIfChunkEmpty && w.IsEmpty() {
		return true
	}
	return w.GetPointNum() >= pointNum || w.EstimateMaxSeriesMemSize() >= size
}

func (w *TimeChunkWriter) ClearPageWriter() {
	w.page.reset()
}

func (w *TimeChunkWriter) IsEmpty() bool {
	return w.cb.numPages() == 0 && w.page.count == 0
}

// GetPointNum returns timestamps recorded across sealed pages and the open
// page.
func (w *TimeChunkWriter) GetPointNum() int64 {
	return w.sealedRows + int64(w.page.count)
}

// UnsealedPointNum returns the points of the open page only.
func (w *TimeChunkWriter) UnsealedPointNum() int {
	return w.page.count
}

func (w *TimeChunkWriter) GetCurrentChunkSize() int64 {
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
