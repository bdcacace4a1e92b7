package compressors

import (
	"bytes"
	"io"
	"testing"

	"github.com/INLOpen/nexustsf/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, c core.Compressor, data []byte) {
	t.Helper()

	compressed, err := c.Compress(data)
	require.NoError(t, err, "Compress() returned an unexpected error")

	rc, err := c.Decompress(compressed)
	require.NoError(t, err, "Decompress() returned an unexpected error")
	defer rc.Close()

	decompressed, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, decompressed),
		"decompressed data does not match original (len %d vs %d)", len(data), len(decompressed))

	// CompressTo must produce the same format Decompress expects.
	var buf bytes.Buffer
	require.NoError(t, c.CompressTo(&buf, data))
	rc2, err := c.Decompress(buf.Bytes())
	require.NoError(t, err)
	defer rc2.Close()
	decompressed2, err := io.ReadAll(rc2)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, decompressed2), "CompressTo output does not round-trip")
}

func TestCompressorsRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"repetitive data", bytes.Repeat([]byte("timeseries"), 200)},
		{"empty data", []byte{}},
		{"binary ramp", func() []byte {
			b := make([]byte, 4096)
			for i := range b {
				b[i] = byte(i / 16)
			}
			return b
		}()},
	}
	compressorsUnderTest := []core.Compressor{
		NewNoCompressionCompressor(),
		NewSnappyCompressor(),
		NewLz4Compressor(),
		NewZstdCompressor(),
		NewGzipCompressor(),
	}
	for _, c := range compressorsUnderTest {
		for _, tc := range testCases {
			t.Run(c.Type().String()+"/"+tc.name, func(t *testing.T) {
				roundTrip(t, c, tc.data)
			})
		}
	}
}

func TestLZ4IncompressibleFallsBackToRaw(t *testing.T) {
	c := NewLz4Compressor()
	// Short high-entropy input the lz4 block encoder refuses to compress.
	data := []byte{0x01, 0xF3, 0x58, 0x9A, 0x7C}
	out, err := c.Compress(data)
	require.NoError(t, err)
	assert.Equal(t, data, out, "incompressible input should pass through unchanged")

	var buf bytes.Buffer
	require.NoError(t, c.CompressTo(&buf, data))
	assert.Equal(t, data, buf.Bytes())
}

func TestForType(t *testing.T) {
	for _, ct := range []core.CompressionType{
		core.CompressionNone, core.CompressionSnappy, core.CompressionLZ4,
		core.CompressionZSTD, core.CompressionGZIP,
	} {
		c, err := ForType(ct)
		require.NoError(t, err)
		assert.Equal(t, ct, c.Type())
	}
	_, err := ForType(core.CompressionType(99))
	assert.Error(t, err)
}

func BenchmarkSnappyCompressTo(b *testing.B) {
	c := NewSnappyCompressor()
	data := bytes.Repeat([]byte(`{"metric":"cpu.usage","ts":1678886400,"value":99.8}`), 50)
	var buf bytes.Buffer
	b.ResetTimer()
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if err := c.CompressTo(&buf, data); err != nil {
			b.Fatalf("CompressTo() error: %v", err)
		}
	}
}
