package compressors

import (
	"bytes"
	"fmt"
	"io"

	"github.com/INLOpen/nexustsf/core"
	"github.com/klauspost/compress/gzip"
)

// GzipCompressor implements the Compressor interface using gzip.
type GzipCompressor struct{}

var _ core.Compressor = (*GzipCompressor)(nil)

func NewGzipCompressor() *GzipCompressor {
	return &GzipCompressor{}
}

func (c *GzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.CompressTo(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *GzipCompressor) Decompress(data []byte) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip decompress error: %w", err)
	}
	return zr, nil
}

func (c *GzipCompressor) Type() core.CompressionType {
	return core.CompressionGZIP
}

// CompressTo compresses src into dst using gzip.
func (c *GzipCompressor) CompressTo(dst *bytes.Buffer, src []byte) error {
	dst.Reset()
	zw := gzip.NewWriter(dst)
	if _, err := zw.Write(src); err != nil {
		_ = zw.Close()
		return fmt.Errorf("gzip compress write error: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("gzip compress close error: %w", err)
	}
	return nil
}
