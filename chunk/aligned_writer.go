package chunk

import (
	"fmt"

	"github.com/INLOpen/nexustsf/core"
	"github.com/INLOpen/nexustsf/schema"
)

// AlignedChunkWriter writes a set of value series that share one time
// column. All sub-writers see the same sequence of timestamps; a page
// boundary in the time chunk is always matched by a simultaneous seal in
// every value chunk.
type AlignedChunkWriter struct {
	time   *TimeChunkWriter
	values []*ValueChunkWriter

	// valueIndex is the cursor of the per-column row ingress.
	valueIndex int
	// remainingPointsNumber caches how many points fit in the current time
	// page, so column batches can split exactly at the boundary.
	remainingPointsNumber int
}

var _ SeriesWriter = (*AlignedChunkWriter)(nil)

// NewAlignedChunkWriter creates an aligned writer for the given value
// schemas. The time chunk carries an empty measurement id and the configured
// time encoding and compression.
func NewAlignedChunkWriter(schemas []schema.MeasurementSchema, opts core.WriteOptions) (*AlignedChunkWriter, error) {
	tw, err := NewTimeChunkWriter("", opts)
	if err != nil {
		return nil, err
	}
	w := &AlignedChunkWriter{time: tw}
	for _, s := range schemas {
		if err := w.AddValueWriter(s); err != nil {
			return nil, err
		}
	}
	w.remainingPointsNumber = tw.GetRemainingPointNumberForCurrentPage()
	return w, nil
}

// AddValueWriter installs one more value column. Columns may only be added
// while the group holds no points, otherwise the lockstep invariant would
// break.
func (w *AlignedChunkWriter) AddValueWriter(s schema.MeasurementSchema) error {
	if !w.IsEmpty() {
		return fmt.Errorf("cannot add value column '%s' to a non-empty aligned group", s.MeasurementID)
	}
	vw, err := NewValueChunkWriter(s, false, w.time.opts)
	if err != nil {
		return err
	}
	w.values = append(w.values, vw)
	return nil
}

// ValueWriterCount returns the number of installed value columns.
func (w *AlignedChunkWriter) ValueWriterCount() int { return len(w.values) }

// ValueWriterByIndex exposes one value sub-writer, e.g. for page splicing.
func (w *AlignedChunkWriter) ValueWriterByIndex(i int) *ValueChunkWriter { return w.values[i] }

// TimeWriter exposes the time sub-writer.
func (w *AlignedChunkWriter) TimeWriter() *TimeChunkWriter { return w.time }

// WriteValue records one value for the column at the internal cursor and
// advances the cursor. CommitRow ends the row.
func (w *AlignedChunkWriter) WriteValue(t int64, v core.Value, isNull bool) error {
	if w.valueIndex >= len(w.values) {
		return fmt.Errorf("row already holds %d values", len(w.values))
	}
	if err := w.values[w.valueIndex].Write(t, v, isNull); err != nil {
		return err
	}
	w.valueIndex++
	return nil
}

// CommitRow writes the row's timestamp, resets the column cursor and applies
// the group-wide page policy.
func (w *AlignedChunkWriter) CommitRow(t int64) error {
	w.valueIndex = 0
	if err := w.time.Write(t); err != nil {
		return err
	}
	if w.pageOverThreshold() {
		if err := w.sealAllPages(); err != nil {
			return err
		}
	}
	w.remainingPointsNumber = w.time.GetRemainingPointNumberForCurrentPage()
	return nil
}

// WriteRow records a full row: one value per installed column, in declared
// order, with null entries advancing only the bitmap.
func (w *AlignedChunkWriter) WriteRow(t int64, row []core.Value) error {
	if len(row) != len(w.values) {
		return fmt.Errorf("row has %d values, aligned group has %d columns", len(row), len(w.values))
	}
	w.valueIndex = 0
	for _, v := range row {
		if err := w.WriteValue(t, v, v.IsNull()); err != nil {
			return err
		}
	}
	return w.CommitRow(t)
}

// WriteTime appends a bare timestamp, bypassing the page policy. Used by
// file rewrites that splice value pages separately.
func (w *AlignedChunkWriter) WriteTime(t int64) error {
	return w.time.Write(t)
}

// Write ingests a column batch. When the batch crosses the time page's
// remaining capacity r, it is split at r so a page boundary falls exactly
// there and every sub-writer seals together. Batches larger than a whole
// page split repeatedly.
func (w *AlignedChunkWriter) Write(times []int64, valueColumns []schema.Column, batchSize int) error {
	offset := 0
	for batchSize > w.remainingPointsNumber {
		written := w.remainingPointsNumber
		if err := w.batchWrite(times, valueColumns, written, offset); err != nil {
			return err
		}
		offset += written
		batchSize -= written
	}
	return w.batchWrite(times, valueColumns, batchSize, offset)
}

// batchWrite writes each value column first, then the time slice, and
// applies the shared page policy.
func (w *AlignedChunkWriter) batchWrite(times []int64, valueColumns []schema.Column, batchSize, offset int) error {
	if len(valueColumns) != len(w.values) {
		return fmt.Errorf("batch has %d columns, aligned group has %d", len(valueColumns), len(w.values))
	}
	for i := range valueColumns {
		if err := w.values[i].WriteBatchColumn(times, &valueColumns[i], batchSize, offset); err != nil {
			return err
		}
	}
	return w.writeTimes(times, batchSize, offset)
}

func (w *AlignedChunkWriter) writeTimes(times []int64, batchSize, offset int) error {
	if err := w.time.WriteBatch(times, batchSize, offset); err != nil {
		return err
	}
	if w.pageOverThreshold() {
		if err := w.sealAllPages(); err != nil {
			return err
		}
	}
	w.remainingPointsNumber = w.time.GetRemainingPointNumberForCurrentPage()
	return nil
}

// pageOverThreshold reports whether any sub-writer crossed the page policy.
func (w *AlignedChunkWriter) pageOverThreshold() bool {
	if w.time.pageOverThreshold() {
		return true
	}
	for _, vw := range w.values {
		if vw.pageOverThreshold() {
			return true
		}
	}
	return false
}

// sealAllPages seals the open page of every sub-writer, keeping page
// boundaries in lockstep.
func (w *AlignedChunkWriter) sealAllPages() error {
	if err := w.time.SealCurrentPage(); err != nil {
		return err
	}
	for _, vw := range w.values {
		if err := vw.SealCurrentPage(); err != nil {
			return err
		}
	}
	return nil
}

// RemainingPointsNumber returns the cached time-page capacity.
func (w *AlignedChunkWriter) RemainingPointsNumber() int { return w.remainingPointsNumber }

// WritePageHeaderAndDataIntoTimeBuff splices a pre-encoded time page.
func (w *AlignedChunkWriter) WritePageHeaderAndDataIntoTimeBuff(data []byte, header PageHeader) error {
	return w.time.WritePageHeaderAndDataIntoBuff(data, header)
}

// WritePageHeaderAndDataIntoValueBuff splices a pre-encoded value page into
// the column at valueIndex.
func (w *AlignedChunkWriter) WritePageHeaderAndDataIntoValueBuff(data []byte, header PageHeader, valueIndex int) error {
	return w.values[valueIndex].WritePageHeaderAndDataIntoBuff(data, header)
}

// SealCurrentPage seals every sub-writer's open page.
func (w *AlignedChunkWriter) SealCurrentPage() error {
	err := w.sealAllPages()
	w.remainingPointsNumber = w.time.GetRemainingPointNumberForCurrentPage()
	return err
}

// SealCurrentTimePage seals only the time sub-writer's page. Used by file
// rewrites that manage value pages separately.
func (w *AlignedChunkWriter) SealCurrentTimePage() error {
	err := w.time.SealCurrentPage()
	w.remainingPointsNumber = w.time.GetRemainingPointNumberForCurrentPage()
	return err
}

// SealCurrentValuePage seals the page of the value column at valueIndex.
func (w *AlignedChunkWriter) SealCurrentValuePage(valueIndex int) error {
	return w.values[valueIndex].SealCurrentPage()
}

// WriteToFileWriter emits the time chunk first, then every value chunk in
// declared order.
func (w *AlignedChunkWriter) WriteToFileWriter(fw FileWriter) error {
	if err := w.time.WriteToFileWriter(fw); err != nil {
		return err
	}
	for _, vw := range w.values {
		if err := vw.WriteToFileWriter(fw); err != nil {
			return err
		}
	}
	return nil
}

func (w *AlignedChunkWriter) EstimateMaxSeriesMemSize() int64 {
	total := w.time.EstimateMaxSeriesMemSize()
	for _, vw := range w.values {
		total += vw.EstimateMaxSeriesMemSize()
	}
	return total
}

// CheckIsChunkSizeOverThreshold consults the time writer for the point
// bound and every sub-writer for the size bound.
func (w *AlignedChunkWriter) CheckIsChunkSizeOverThreshold(size, pointNum int64, returnTrueIfChunkEmpty bool) bool {
	if returnTrueIfChunkEmpty && w.time.GetPointNum() == 0 {
		return true
	}
	if w.time.GetPointNum() >= pointNum || w.time.EstimateMaxSeriesMemSize() >= size {
		return true
	}
	for _, vw := range w.values {
		if vw.EstimateMaxSeriesMemSize() >= size {
			return true
		}
	}
	return false
}

func (w *AlignedChunkWriter) CheckIsUnsealedPageOverThreshold(size, pointNum int64, returnTrueIfPageEmpty bool) bool {
	if returnTrueIfPageEmpty && w.time.UnsealedPointNum() == 0 {
		return true
	}
	if w.time.CheckIsUnsealedPageOverThreshold(size, pointNum) {
		return true
	}
	for _, vw := range w.values {
		if vw.CheckIsUnsealedPageOverThreshold(size) {
			return true
		}
	}
	return false
}

func (w *AlignedChunkWriter) ClearPageWriter() {
	w.time.ClearPageWriter()
	for _, vw := range w.values {
		vw.ClearPageWriter()
	}
}

// IsEmpty reports whether the time column holds no points at all.
func (w *AlignedChunkWriter) IsEmpty() bool {
	return w.time.GetPointNum() == 0
}

func (w *AlignedChunkWriter) GetCurrentChunkSize() int64 {
	total := w.time.GetCurrentChunkSize()
	for _, vw := range w.values {
		total += vw.GetCurrentChunkSize()
	}
	return total
}
