package tsio_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/INLOpen/nexustsf/chunk"
	"github.com/INLOpen/nexustsf/core"
	"github.com/INLOpen/nexustsf/schema"
	"github.com/INLOpen/nexustsf/stats"
	"github.com/INLOpen/nexustsf/tsio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func testOptions() core.WriteOptions {
	opts := core.DefaultWriteOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return opts
}

// flushToFile flushes the group through a real file writer and decodes the
// result.
func flushToFile(t *testing.T, g *chunk.ChunkGroupWriter, opts core.WriteOptions) *tsio.FileData {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunks.tsf")
	fw, err := tsio.NewWriter(path, tsio.WriterOptionsFrom(opts))
	require.NoError(t, err)
	_, err = g.FlushToFileWriter(fw)
	require.NoError(t, err)
	require.NoError(t, fw.Close())
	fd, err := tsio.ReadFile(path)
	require.NoError(t, err)
	return fd
}

func TestNonAlignedSingleSeriesRoundTrip(t *testing.T) {
	opts := testOptions()
	opts.PageSizeThresholdBytes = 1 << 30

	g := chunk.NewChunkGroupWriter("root.sg.d1", opts)
	require.NoError(t, g.TryToAddSeriesWriter(schema.MeasurementSchema{
		MeasurementID: "s1",
		Type:          core.TypeInt64,
		Encoding:      core.EncodingPlain,
		Compression:   core.CompressionNone,
	}))
	for _, p := range []struct {
		t int64
		v core.Value
	}{
		{1, core.Int64Value(10)},
		{2, core.Int64Value(20)},
		{3, core.NullValue()},
	} {
		_, err := g.Write(p.t, []schema.DataPoint{{MeasurementID: "s1", Value: p.v}})
		require.NoError(t, err)
	}

	fd := flushToFile(t, g, opts)
	require.Len(t, fd.Groups, 1)
	group := fd.Groups[0]
	assert.Equal(t, "root.sg.d1", group.DeviceID)
	assert.False(t, group.Aligned)
	require.Len(t, group.Chunks, 1)

	c := group.Chunks[0]
	assert.Equal(t, core.MarkerOnlyOnePageChunkHeader, c.Marker)
	assert.Equal(t, 1, c.NumPages)
	assert.Equal(t, 3, c.PointCount())
	assert.Equal(t, []int64{1, 2, 3}, c.AllTimes())

	values := c.AllValues()
	require.Len(t, values, 3)
	assert.Equal(t, core.Int64Value(10), values[0])
	assert.Equal(t, core.Int64Value(20), values[1])
	assert.True(t, values[2].IsNull(), "nullability bitmap must preserve the null row")

	st := c.Statistics.(*stats.IntStats)
	assert.Equal(t, int64(2), st.Count(), "null is excluded from statistics")
	assert.Equal(t, int64(10), st.Min())
	assert.Equal(t, int64(20), st.Max())
	assert.Equal(t, int64(10), st.First())
	assert.Equal(t, int64(20), st.Last())
	assert.Equal(t, int64(30), st.Sum())
}

func alignedTestSchemas() []schema.MeasurementSchema {
	return []schema.MeasurementSchema{
		{MeasurementID: "v1", Type: core.TypeInt32, Encoding: core.EncodingPlain, Compression: core.CompressionNone},
		{MeasurementID: "v2", Type: core.TypeDouble, Encoding: core.EncodingPlain, Compression: core.CompressionNone},
	}
}

func TestAlignedGroupRoundTrip(t *testing.T) {
	opts := testOptions()
	g := chunk.NewAlignedChunkGroupWriter("root.sg.d2", opts)
	require.NoError(t, g.TryToAddSeriesWriters(alignedTestSchemas()))

	rows := []struct {
		t  int64
		v1 core.Value
		v2 core.Value
	}{
		{1, core.Int32Value(7), core.NullValue()},
		{2, core.NullValue(), core.DoubleValue(3.5)},
		{3, core.Int32Value(9), core.DoubleValue(4.5)},
	}
	for _, r := range rows {
		_, err := g.Write(r.t, []schema.DataPoint{
			{MeasurementID: "v1", Value: r.v1},
			{MeasurementID: "v2", Value: r.v2},
		})
		require.NoError(t, err)
	}

	fd := flushToFile(t, g, opts)
	require.Len(t, fd.Groups, 1)
	group := fd.Groups[0]
	assert.True(t, group.Aligned)
	require.Len(t, group.Chunks, 3)

	timeChunk := group.Chunks[0]
	assert.Equal(t, core.MarkerOnlyOnePageTimeChunkHeader, timeChunk.Marker)
	assert.Equal(t, "", timeChunk.MeasurementID)
	assert.Equal(t, []int64{1, 2, 3}, timeChunk.AllTimes())

	v1 := group.Chunks[1]
	assert.Equal(t, "v1", v1.MeasurementID)
	assert.Equal(t, 3, v1.PointCount())
	v1Values := v1.AllValues()
	assert.Equal(t, core.Int32Value(7), v1Values[0])
	assert.True(t, v1Values[1].IsNull())
	assert.Equal(t, core.Int32Value(9), v1Values[2])

	v2 := group.Chunks[2]
	assert.Equal(t, "v2", v2.MeasurementID)
	assert.Equal(t, 3, v2.PointCount())
	v2Values := v2.AllValues()
	assert.True(t, v2Values[0].IsNull())
	assert.Equal(t, core.DoubleValue(3.5), v2Values[1])
	assert.Equal(t, core.DoubleValue(4.5), v2Values[2])

	// Every chunk of an aligned group holds the same number of rows.
	assert.Equal(t, timeChunk.PointCount(), v1.PointCount())
	assert.Equal(t, timeChunk.PointCount(), v2.PointCount())
}

func TestAlignedColumnBatchMultiPageRoundTrip(t *testing.T) {
	opts := testOptions()
	opts.MaxPointsPerPage = 2

	g := chunk.NewAlignedChunkGroupWriter("root.sg.d3", opts)
	schemas := alignedTestSchemas()
	require.NoError(t, g.TryToAddSeriesWriters(schemas))

	tab := schema.NewTablet("root.sg.d3", schemas, 5)
	for r := 0; r < 5; r++ {
		tab.Timestamps[r] = int64(r + 1)
		require.NoError(t, tab.Columns[0].SetValue(r, core.Int32Value(int32(r*10))))
		require.NoError(t, tab.Columns[1].SetValue(r, core.DoubleValue(float64(r)/2)))
	}
	n, err := g.WriteTablet(tab)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	fd := flushToFile(t, g, opts)
	group := fd.Groups[0]
	require.Len(t, group.Chunks, 3)

	for _, c := range group.Chunks {
		require.Equal(t, 3, c.NumPages, "chunk %q", c.MeasurementID)
		sizes := make([]int, 0, 3)
		for i := range c.Pages {
			if c.Pages[i].Values != nil {
				sizes = append(sizes, len(c.Pages[i].Values))
			} else {
				sizes = append(sizes, len(c.Pages[i].Times))
			}
		}
		assert.Equal(t, []int{2, 2, 1}, sizes, "chunk %q", c.MeasurementID)
	}
	assert.Equal(t, core.MarkerTimeChunkHeader, group.Chunks[0].Marker,
		"multi-page time chunk switches to the multi-page marker")
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, group.Chunks[0].AllTimes(),
		"concatenated pages must reproduce the batch across the boundary")
	assert.Equal(t, core.MarkerValueChunkHeader, group.Chunks[1].Marker)
}

func TestSealThenFlushSinglePoint(t *testing.T) {
	opts := testOptions()
	g := chunk.NewChunkGroupWriter("d1", opts)
	require.NoError(t, g.TryToAddSeriesWriter(schema.MeasurementSchema{
		MeasurementID: "s1", Type: core.TypeDouble,
		Encoding: core.EncodingGorilla, Compression: core.CompressionSnappy,
	}))
	_, err := g.Write(42, []schema.DataPoint{{MeasurementID: "s1", Value: core.DoubleValue(1.5)}})
	require.NoError(t, err)
	w, ok := g.SeriesWriterByID("s1")
	require.True(t, ok)
	require.NoError(t, w.SealCurrentPage())

	fd := flushToFile(t, g, opts)
	c := fd.Groups[0].Chunks[0]
	assert.Equal(t, core.MarkerOnlyOnePageChunkHeader, c.Marker)
	assert.Equal(t, 1, c.NumPages)
	assert.Equal(t, 1, c.PointCount())
	assert.Equal(t, []int64{42}, c.AllTimes())
	assert.Equal(t, core.DoubleValue(1.5), c.AllValues()[0])
}

func TestRoundTripAcrossTypesEncodingsAndCompressions(t *testing.T) {
	opts := testOptions()
	opts.MaxPointsPerPage = 7
	opts.WritePageCRC = true

	schemas := []schema.MeasurementSchema{
		{MeasurementID: "flag", Type: core.TypeBoolean, Encoding: core.EncodingRLE, Compression: core.CompressionSnappy},
		{MeasurementID: "count", Type: core.TypeInt32, Encoding: core.EncodingTS2Diff, Compression: core.CompressionLZ4},
		{MeasurementID: "total", Type: core.TypeInt64, Encoding: core.EncodingPlain, Compression: core.CompressionZSTD},
		{MeasurementID: "ratio", Type: core.TypeFloat, Encoding: core.EncodingGorilla, Compression: core.CompressionGZIP},
		{MeasurementID: "temp", Type: core.TypeDouble, Encoding: core.EncodingGorilla, Compression: core.CompressionNone},
		{MeasurementID: "note", Type: core.TypeText, Encoding: core.EncodingPlain, Compression: core.CompressionSnappy},
	}
	g := chunk.NewChunkGroupWriter("root.sg.mixed", opts)
	require.NoError(t, g.TryToAddSeriesWriters(schemas))

	const rows = 25
	want := make(map[string][]core.Value)
	for r := 0; r < rows; r++ {
		points := []schema.DataPoint{
			{MeasurementID: "flag", Value: core.BoolValue(r%3 == 0)},
			{MeasurementID: "count", Value: core.Int32Value(int32(r * 100))},
			{MeasurementID: "total", Value: core.Int64Value(int64(r) << 33)},
			{MeasurementID: "ratio", Value: core.FloatValue(float32(r) / 4)},
			{MeasurementID: "temp", Value: core.DoubleValue(20.0 + float64(r)*0.1)},
			{MeasurementID: "note", Value: core.StringValue("row")},
		}
		if r%5 == 4 {
			points[2].Value = core.NullValue()
			points[4].Value = core.NullValue()
		}
		for _, p := range points {
			want[p.MeasurementID] = append(want[p.MeasurementID], p.Value)
		}
		_, err := g.Write(int64(r)*17, points)
		require.NoError(t, err)
	}

	fd := flushToFile(t, g, opts)
	group := fd.Groups[0]
	require.Len(t, group.Chunks, len(schemas))
	for i, s := range schemas {
		c := group.Chunks[i]
		require.Equal(t, s.MeasurementID, c.MeasurementID)
		assert.Equal(t, s.Compression, c.Compression)
		assert.Equal(t, s.Encoding, c.Encoding)
		assert.Equal(t, rows, c.PointCount(), "series %s", s.MeasurementID)
		assert.Equal(t, want[s.MeasurementID], c.AllValues(), "series %s", s.MeasurementID)
		wantTimes := make([]int64, rows)
		for r := range wantTimes {
			wantTimes[r] = int64(r) * 17
		}
		assert.Equal(t, wantTimes, c.AllTimes(), "series %s", s.MeasurementID)
		assert.Equal(t, 4, c.NumPages, "25 rows at 7 points per page")
	}
}

func TestFileIndexCoversAllChunks(t *testing.T) {
	opts := testOptions()
	g := chunk.NewAlignedChunkGroupWriter("d1", opts)
	require.NoError(t, g.TryToAddSeriesWriters(alignedTestSchemas()))
	_, err := g.Write(1, []schema.DataPoint{
		{MeasurementID: "v1", Value: core.Int32Value(1)},
		{MeasurementID: "v2", Value: core.DoubleValue(2)},
	})
	require.NoError(t, err)

	fd := flushToFile(t, g, opts)
	require.Len(t, fd.Index, 3)
	assert.Equal(t, "", fd.Index[0].MeasurementID)
	assert.Equal(t, "v1", fd.Index[1].MeasurementID)
	assert.Equal(t, "v2", fd.Index[2].MeasurementID)
	for i := 1; i < len(fd.Index); i++ {
		assert.Greater(t, fd.Index[i].Offset, fd.Index[i-1].Offset)
	}
}

func TestTruncatedFileIsRejected(t *testing.T) {
	opts := testOptions()
	g := chunk.NewChunkGroupWriter("d1", opts)
	require.NoError(t, g.TryToAddSeriesWriter(schema.MeasurementSchema{
		MeasurementID: "s1", Type: core.TypeInt64,
		Encoding: core.EncodingPlain, Compression: core.CompressionNone,
	}))
	_, err := g.Write(1, []schema.DataPoint{{MeasurementID: "s1", Value: core.Int64Value(1)}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "chunks.tsf")
	fw, err := tsio.NewWriter(path, tsio.WriterOptionsFrom(opts))
	require.NoError(t, err)
	_, err = g.FlushToFileWriter(fw)
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	_, err = tsio.Decode(data[:len(data)-4])
	assert.ErrorIs(t, err, tsio.ErrCorrupted, "a file without tail magic is incomplete")
}

func TestAbortRemovesTemporaryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.tsf")
	fw, err := tsio.NewWriter(path, tsio.WriterOptions{})
	require.NoError(t, err)
	require.NoError(t, fw.Abort())
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFlushWithTracerEmitsSpans(t *testing.T) {
	opts := testOptions()
	g := chunk.NewChunkGroupWriter("d1", opts)
	require.NoError(t, g.TryToAddSeriesWriter(schema.MeasurementSchema{
		MeasurementID: "s1", Type: core.TypeInt64,
		Encoding: core.EncodingPlain, Compression: core.CompressionNone,
	}))
	_, err := g.Write(1, []schema.DataPoint{{MeasurementID: "s1", Value: core.Int64Value(1)}})
	require.NoError(t, err)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { require.NoError(t, tp.Shutdown(context.Background())) }()

	wopts := tsio.WriterOptionsFrom(opts)
	wopts.Tracer = tp.Tracer("tsio-test")
	path := filepath.Join(t.TempDir(), "chunks.tsf")
	fw, err := tsio.NewWriter(path, wopts)
	require.NoError(t, err)
	_, err = g.FlushToFileWriter(fw)
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	spans := recorder.Ended()
	require.NotEmpty(t, spans, "closing a traced writer must record a span")
	assert.Equal(t, "tsio.Writer.Close", spans[0].Name())
}

func TestCloseRenamesTemporaryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.tsf")
	fw, err := tsio.NewWriter(path, tsio.WriterOptions{TimeEncoding: core.EncodingTS2Diff})
	require.NoError(t, err)
	require.NoError(t, fw.Close())
	assert.Equal(t, path, fw.FilePath())
	_, err = os.Stat(path)
	assert.NoError(t, err)
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
