package compressors

import (
	"bytes"
	"fmt"
	"io"

	"github.com/INLOpen/nexustsf/core"
	"github.com/golang/snappy"
)

// SnappyCompressor implements the Compressor interface using Snappy block
// format.
type SnappyCompressor struct{}

type snappyReadCloser struct {
	*bytes.Reader
}

// Close implements io.Closer. Snappy decodes fully in memory, so there are
// no resources to release.
func (src *snappyReadCloser) Close() error {
	return nil
}

var _ core.Compressor = (*SnappyCompressor)(nil)
var _ io.ReadCloser = (*snappyReadCloser)(nil)

func NewSnappyCompressor() *SnappyCompressor {
	return &SnappyCompressor{}
}

func (c *SnappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (c *SnappyCompressor) Decompress(data []byte) (io.ReadCloser, error) {
	decompressed, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy decompress error: %w", err)
	}
	return &snappyReadCloser{Reader: bytes.NewReader(decompressed)}, nil
}

func (c *SnappyCompressor) Type() core.CompressionType {
	return core.CompressionSnappy
}

// CompressTo compresses src into dst using the Snappy block format. The block
// format matches what Decompress expects; the streaming writer does not.
func (c *SnappyCompressor) CompressTo(dst *bytes.Buffer, src []byte) error {
	dst.Reset()
	dst.Write(snappy.Encode(nil, src))
	return nil
}
