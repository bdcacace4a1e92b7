package chunk

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/INLOpen/nexustsf/core"
	"github.com/INLOpen/nexustsf/schema"
	"github.com/INLOpen/nexustsf/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() core.WriteOptions {
	opts := core.DefaultWriteOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return opts
}

func newInt64Writer(t *testing.T, standalone bool, opts core.WriteOptions) *ValueChunkWriter {
	t.Helper()
	w, err := NewValueChunkWriter(schema.MeasurementSchema{
		MeasurementID: "s1",
		Type:          core.TypeInt64,
		Encoding:      core.EncodingPlain,
		Compression:   core.CompressionNone,
	}, standalone, opts)
	require.NoError(t, err)
	return w
}

func TestValueWriterSealAndFlush(t *testing.T) {
	w := newInt64Writer(t, true, testOptions())
	require.NoError(t, w.Write(1, core.Int64Value(10), false))
	require.NoError(t, w.Write(2, core.Int64Value(20), false))
	require.NoError(t, w.Write(3, core.NullValue(), true))

	assert.False(t, w.IsEmpty())
	assert.Equal(t, int64(3), w.GetPointNum())
	assert.Equal(t, int64(0), w.GetCurrentChunkSize(), "open page is excluded from chunk size")

	require.NoError(t, w.SealCurrentPage())
	assert.Equal(t, 1, w.cb.numPages())
	assert.Greater(t, w.GetCurrentChunkSize(), int64(0))

	st := w.chunkStats.(*stats.IntStats)
	assert.Equal(t, int64(2), st.Count(), "nulls are excluded from statistics")
	assert.Equal(t, int64(10), st.Min())
	assert.Equal(t, int64(20), st.Max())
	assert.Equal(t, int64(10), st.First())
	assert.Equal(t, int64(20), st.Last())
	assert.Equal(t, int64(30), st.Sum())

	mock := &mockFileWriter{}
	require.NoError(t, mock.StartChunkGroup("d1"))
	require.NoError(t, w.WriteToFileWriter(mock))

	require.Len(t, mock.groups[0].chunks, 1)
	c := mock.groups[0].chunks[0]
	assert.Equal(t, core.MarkerOnlyOnePageChunkHeader, c.marker)
	assert.Equal(t, 1, c.numPages)
	assert.Equal(t, "s1", c.measurementID)
	assert.Equal(t, int64(c.pageBytes.Len()), c.dataSize,
		"chunk dataSize must equal the sum of page header and payload bytes")
	assert.True(t, c.ended)

	assert.True(t, w.IsEmpty(), "flush must reset the writer")
	assert.Equal(t, int64(0), w.GetCurrentChunkSize())
	assert.Equal(t, int64(0), w.GetPointNum())
}

func TestValueWriterSealEmptyPageIsNoop(t *testing.T) {
	w := newInt64Writer(t, true, testOptions())
	require.NoError(t, w.SealCurrentPage())
	assert.Equal(t, 0, w.cb.numPages())
	assert.True(t, w.IsEmpty())
}

func TestValueWriterEmptyFlushEmitsNoChunk(t *testing.T) {
	w := newInt64Writer(t, true, testOptions())
	mock := &mockFileWriter{}
	require.NoError(t, mock.StartChunkGroup("d1"))
	require.NoError(t, w.WriteToFileWriter(mock))
	assert.Empty(t, mock.groups[0].chunks)
}

func TestValueWriterAlignedMarker(t *testing.T) {
	w := newInt64Writer(t, false, testOptions())
	require.NoError(t, w.Write(1, core.Int64Value(1), false))
	mock := &mockFileWriter{}
	require.NoError(t, mock.StartChunkGroup("d1"))
	require.NoError(t, w.WriteToFileWriter(mock))
	assert.Equal(t, core.MarkerOnlyOnePageValueChunkHeader, mock.groups[0].chunks[0].marker)
}

func TestValueWriterTypeMismatch(t *testing.T) {
	w := newInt64Writer(t, true, testOptions())
	err := w.Write(1, core.DoubleValue(1.5), false)
	require.Error(t, err)
	var tm *core.TypeMismatchError
	require.True(t, errors.As(err, &tm))
	assert.Equal(t, "s1", tm.MeasurementID)
	assert.Equal(t, core.TypeInt64, tm.Expected)
	assert.Equal(t, core.KindDouble, tm.Got)

	// A failed write must not leave partial state behind.
	assert.Equal(t, int64(0), w.GetPointNum())
	assert.Equal(t, int64(0), w.chunkStats.Count())
	assert.Equal(t, int64(0), w.page.st.Count())
}

func TestValueWriterPageThresholds(t *testing.T) {
	opts := testOptions()
	opts.MaxPointsPerPage = 4
	w := newInt64Writer(t, true, opts)
	for i := int64(0); i < 3; i++ {
		require.NoError(t, w.Write(i, core.Int64Value(i), false))
	}
	assert.False(t, w.pageOverThreshold())
	require.NoError(t, w.Write(3, core.Int64Value(3), false))
	assert.True(t, w.pageOverThreshold(), "point-count bound crossed")

	opts = testOptions()
	opts.PageSizeThresholdBytes = 64
	w = newInt64Writer(t, true, opts)
	for i := int64(0); !w.pageOverThreshold(); i++ {
		require.NoError(t, w.Write(i, core.Int64Value(i), false))
		require.Less(t, i, int64(100), "size bound never crossed")
	}
}

func TestCheckIsChunkSizeOverThreshold(t *testing.T) {
	w := newInt64Writer(t, true, testOptions())

	// Empty chunk: only the flag forces true.
	assert.True(t, w.CheckIsChunkSizeOverThreshold(1<<30, 1<<30, true))
	assert.False(t, w.CheckIsChunkSizeOverThreshold(1<<30, 1<<30, false))

	require.NoError(t, w.Write(1, core.Int64Value(1), false))
	assert.False(t, w.CheckIsChunkSizeOverThreshold(1<<30, 1<<30, true),
		"non-empty chunk under both bounds")
	assert.True(t, w.CheckIsChunkSizeOverThreshold(1<<30, 1, false), "point bound")
	assert.True(t, w.CheckIsChunkSizeOverThreshold(1, 1<<30, false), "size bound")
}

func TestEstimateMaxSeriesMemSizeMonotonicBetweenFlushes(t *testing.T) {
	opts := testOptions()
	opts.MaxPointsPerPage = 8
	opts.PageSizeThresholdBytes = 1 << 30
	w, err := NewValueChunkWriter(schema.MeasurementSchema{
		MeasurementID: "s1",
		Type:          core.TypeInt64,
		Encoding:      core.EncodingPlain,
		Compression:   core.CompressionSnappy,
	}, true, opts)
	require.NoError(t, err)

	var prev int64
	for i := int64(0); i < 100; i++ {
		require.NoError(t, w.Write(i, core.Int64Value(i), false))
		if w.pageOverThreshold() {
			require.NoError(t, w.SealCurrentPage())
		}
		est := w.EstimateMaxSeriesMemSize()
		assert.GreaterOrEqual(t, est, prev, "estimate must not shrink between flushes (i=%d)", i)
		prev = est
	}
}

func TestWritePageHeaderAndDataIntoBuffValidation(t *testing.T) {
	w := newInt64Writer(t, true, testOptions())

	st := stats.New(core.TypeInt64)
	require.NoError(t, st.Update(core.Int64Value(5)))

	err := w.WritePageHeaderAndDataIntoBuff([]byte{1, 2, 3}, PageHeader{
		UncompressedSize: 3, CompressedSize: 5, Statistics: st,
	})
	require.Error(t, err)
	assert.True(t, core.IsPageError(err), "size mismatch must be a PageError")

	err = w.WritePageHeaderAndDataIntoBuff([]byte{1, 2, 3}, PageHeader{
		UncompressedSize: 3, CompressedSize: 3,
	})
	require.Error(t, err)
	assert.True(t, core.IsPageError(err), "missing statistics must be a PageError")

	require.NoError(t, w.WritePageHeaderAndDataIntoBuff([]byte{1, 2, 3}, PageHeader{
		UncompressedSize: 3, CompressedSize: 3, Statistics: st,
	}))
	assert.Equal(t, 1, w.cb.numPages())
	assert.Equal(t, int64(1), w.chunkStats.Count())
}

func TestWriteBatchColumnWithNulls(t *testing.T) {
	w := newInt64Writer(t, false, testOptions())
	col := schema.NewColumn(core.TypeInt64, 4)
	require.NoError(t, col.SetValue(0, core.Int64Value(10)))
	require.NoError(t, col.SetValue(1, core.NullValue()))
	require.NoError(t, col.SetValue(2, core.Int64Value(30)))
	require.NoError(t, col.SetValue(3, core.NullValue()))

	times := []int64{1, 2, 3, 4}
	require.NoError(t, w.WriteBatchColumn(times, &col, 4, 0))
	assert.Equal(t, int64(4), w.GetPointNum())
	assert.Equal(t, 2, int(w.page.st.Count()), "only present values feed statistics")
	assert.Equal(t, byte(0b1010), w.page.nullBits[0])
}

func TestWriteBatchColumnTypeMismatch(t *testing.T) {
	w := newInt64Writer(t, false, testOptions())
	col := schema.NewColumn(core.TypeDouble, 1)
	err := w.WriteBatchColumn([]int64{1}, &col, 1, 0)
	require.Error(t, err)
	assert.True(t, core.IsTypeMismatch(err))
}
