package chunk

import (
	"github.com/INLOpen/nexustsf/core"
	"github.com/INLOpen/nexustsf/schema"
)

// ChunkWriter is the non-aligned single-series writer: a self-contained
// facade over a ValueChunkWriter that stores its own timestamps and decides
// page seals from its own size.
type ChunkWriter struct {
	schema schema.MeasurementSchema
	value  *ValueChunkWriter
}

var _ SeriesWriter = (*ChunkWriter)(nil)

// NewChunkWriter creates a self-contained writer for one independently
// timestamped series.
func NewChunkWriter(s schema.MeasurementSchema, opts core.WriteOptions) (*ChunkWriter, error) {
	vw, err := NewValueChunkWriter(s, true, opts)
	if err != nil {
		return nil, err
	}
	return &ChunkWriter{schema: s, value: vw}, nil
}

// Schema returns the immutable measurement schema the writer was installed
// with.
func (c *ChunkWriter) Schema() schema.MeasurementSchema { return c.schema }

// WritePoint records one point; a null value marks the row null. Seals the
// page when it crosses the size or point-count threshold.
func (c *ChunkWriter) WritePoint(t int64, v core.Value) error {
	if err := c.value.Write(t, v, v.IsNull()); err != nil {
		return err
	}
	if c.value.pageOverThreshold() {
		return c.value.SealCurrentPage()
	}
	return nil
}

// WriteColumnRange records rows [startRow, endRow) of a typed column,
// checking the page policy after every point so boundaries land exactly.
func (c *ChunkWriter) WriteColumnRange(times []int64, col *schema.Column, startRow, endRow int) error {
	for i := startRow; i < endRow; i++ {
		if err := c.value.Write(times[i], col.ValueAt(i), col.IsNull(i)); err != nil {
			return err
		}
		if c.value.pageOverThreshold() {
			if err := c.value.SealCurrentPage(); err != nil {
				return err
			}
		}
	}
	return nil
}

// WritePageHeaderAndDataIntoBuff splices a pre-encoded page.
func (c *ChunkWriter) WritePageHeaderAndDataIntoBuff(data []byte, header PageHeader) error {
	return c.value.WritePageHeaderAndDataIntoBuff(data, header)
}

func (c *ChunkWriter) SealCurrentPage() error {
	return c.value.SealCurrentPage()
}

func (c *ChunkWriter) WriteToFileWriter(fw FileWriter) error {
	return c.value.WriteToFileWriter(fw)
}

func (c *ChunkWriter) EstimateMaxSeriesMemSize() int64 {
	return c.value.EstimateMaxSeriesMemSize()
}

func (c *ChunkWriter) CheckIsChunkSizeOverThreshold(size, pointNum int64, returnTrueIfChunkEmpty bool) bool {
	return c.value.CheckIsChunkSizeOverThreshold(size, pointNum, returnTrueIfChunkEmpty)
}

func (c *ChunkWriter) CheckIsUnsealedPageOverThreshold(size, pointNum int64, returnTrueIfPageEmpty bool) bool {
	if returnTrueIfPageEmpty && c.value.page.count == 0 {
		return true
	}
	return int64(c.value.page.estimatedSize()) >= size || int64(c.value.page.count) >= pointNum
}

func (c *ChunkWriter) ClearPageWriter() {
	c.value.ClearPageWriter()
}

func (c *ChunkWriter) IsEmpty() bool {
	return c.value.IsEmpty()
}

// GetPointNum returns rows recorded, nulls included.
func (c *ChunkWriter) GetPointNum() int64 {
	return c.value.GetPointNum()
}

func (c *ChunkWriter) GetCurrentChunkSize() int64 {
	return c.value.GetCurrentChunkSize()
}
