package compressors

import (
	"fmt"

	"github.com/INLOpen/nexustsf/core"
)

// Stateless codecs are shared; zstd carries pools and is shared too.
var (
	noneInstance   = NewNoCompressionCompressor()
	snappyInstance = NewSnappyCompressor()
	lz4Instance    = NewLz4Compressor()
	zstdInstance   = NewZstdCompressor()
	gzipInstance   = NewGzipCompressor()
)

// ForType returns the shared compressor for the given compression type.
func ForType(ct core.CompressionType) (core.Compressor, error) {
	switch ct {
	case core.CompressionNone:
		return noneInstance, nil
	case core.CompressionSnappy:
		return snappyInstance, nil
	case core.CompressionLZ4:
		return lz4Instance, nil
	case core.CompressionZSTD:
		return zstdInstance, nil
	case core.CompressionGZIP:
		return gzipInstance, nil
	default:
		return nil, fmt.Errorf("unsupported compression type %d", ct)
	}
}
