package core

import (
	"bytes"
	"fmt"
	"io"
)

// DataType identifies the primitive type of a series.
// The value is stored on disk in every chunk header.
type DataType byte

const (
	TypeBoolean DataType = 0
	TypeInt32   DataType = 1
	TypeInt64   DataType = 2
	TypeFloat   DataType = 3
	TypeDouble  DataType = 4
	TypeText    DataType = 5
	TypeBlob    DataType = 6
	TypeString  DataType = 7
	// TypeTimestamp is an alias of TypeInt64 at the encoding level.
	TypeTimestamp DataType = 8
	// TypeDate is an alias of TypeInt32 at the encoding level.
	TypeDate DataType = 9
)

// Physical resolves alias types to the type actually encoded on disk.
func (dt DataType) Physical() DataType {
	switch dt {
	case TypeTimestamp:
		return TypeInt64
	case TypeDate:
		return TypeInt32
	default:
		return dt
	}
}

// IsBinary reports whether values of this type are variable-length byte slices.
func (dt DataType) IsBinary() bool {
	switch dt {
	case TypeText, TypeBlob, TypeString:
		return true
	default:
		return false
	}
}

func (dt DataType) String() string {
	switch dt {
	case TypeBoolean:
		return "BOOLEAN"
	case TypeInt32:
		return "INT32"
	case TypeInt64:
		return "INT64"
	case TypeFloat:
		return "FLOAT"
	case TypeDouble:
		return "DOUBLE"
	case TypeText:
		return "TEXT"
	case TypeBlob:
		return "BLOB"
	case TypeString:
		return "STRING"
	case TypeTimestamp:
		return "TIMESTAMP"
	case TypeDate:
		return "DATE"
	default:
		return "unknown"
	}
}

// ParseDataType parses the textual form used in configuration and schemas.
func ParseDataType(s string) (DataType, error) {
	for dt := TypeBoolean; dt <= TypeDate; dt++ {
		if dt.String() == s {
			return dt, nil
		}
	}
	return 0, fmt.Errorf("unknown data type %q", s)
}

// EncodingType identifies the value encoding used inside a page.
type EncodingType byte

const (
	EncodingPlain   EncodingType = 0
	EncodingTS2Diff EncodingType = 1
	EncodingGorilla EncodingType = 2
	EncodingRLE     EncodingType = 3
)

func (et EncodingType) String() string {
	switch et {
	case EncodingPlain:
		return "PLAIN"
	case EncodingTS2Diff:
		return "TS_2DIFF"
	case EncodingGorilla:
		return "GORILLA"
	case EncodingRLE:
		return "RLE"
	default:
		return "unknown"
	}
}

// ParseEncoding parses the textual form used in configuration and schemas.
func ParseEncoding(s string) (EncodingType, error) {
	switch s {
	case "PLAIN", "plain":
		return EncodingPlain, nil
	case "TS_2DIFF", "ts_2diff":
		return EncodingTS2Diff, nil
	case "GORILLA", "gorilla":
		return EncodingGorilla, nil
	case "RLE", "rle":
		return EncodingRLE, nil
	default:
		return 0, fmt.Errorf("unknown encoding %q", s)
	}
}

// CompressionType identifies the compression algorithm used.
// This will be stored on disk to know how to decompress.
type CompressionType byte

const (
	CompressionNone   CompressionType = 0
	CompressionSnappy CompressionType = 1
	CompressionLZ4    CompressionType = 2
	CompressionZSTD   CompressionType = 3
	CompressionGZIP   CompressionType = 4
)

func (ct CompressionType) String() string {
	switch ct {
	case CompressionNone:
		return "none"
	case CompressionSnappy:
		return "snappy"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	case CompressionGZIP:
		return "gzip"
	default:
		return "unknown"
	}
}

// ParseCompression parses the textual form used in configuration and schemas.
func ParseCompression(s string) (CompressionType, error) {
	switch s {
	case "UNCOMPRESSED", "none", "":
		return CompressionNone, nil
	case "SNAPPY", "snappy":
		return CompressionSnappy, nil
	case "LZ4", "lz4":
		return CompressionLZ4, nil
	case "ZSTD", "zstd":
		return CompressionZSTD, nil
	case "GZIP", "gzip":
		return CompressionGZIP, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

// Chunk header markers. The single-page variants let readers inline the page
// statistics in the chunk header; the time/value variants identify aligned
// layout.
const (
	MarkerChunkHeader                 byte = 0x05
	MarkerOnlyOnePageChunkHeader      byte = 0x01
	MarkerTimeChunkHeader             byte = 0x06
	MarkerValueChunkHeader            byte = 0x07
	MarkerOnlyOnePageTimeChunkHeader  byte = 0x02
	MarkerOnlyOnePageValueChunkHeader byte = 0x03

	// MarkerChunkGroupHeader and MarkerChunkGroupFooter delimit a chunk group.
	MarkerChunkGroupHeader byte = 0x00
	MarkerChunkGroupFooter byte = 0x1F
)

// ChunkMarker returns the header marker for a chunk of the given role and
// page count.
func ChunkMarker(timeChunk, valueChunk bool, numPages int) byte {
	switch {
	case timeChunk && numPages == 1:
		return MarkerOnlyOnePageTimeChunkHeader
	case timeChunk:
		return MarkerTimeChunkHeader
	case valueChunk && numPages == 1:
		return MarkerOnlyOnePageValueChunkHeader
	case valueChunk:
		return MarkerValueChunkHeader
	case numPages == 1:
		return MarkerOnlyOnePageChunkHeader
	default:
		return MarkerChunkHeader
	}
}

// IsSinglePageMarker reports whether the marker denotes a one-page chunk.
func IsSinglePageMarker(m byte) bool {
	return m == MarkerOnlyOnePageChunkHeader ||
		m == MarkerOnlyOnePageTimeChunkHeader ||
		m == MarkerOnlyOnePageValueChunkHeader
}

// IsTimeChunkMarker reports whether the marker denotes the time chunk of an
// aligned group.
func IsTimeChunkMarker(m byte) bool {
	return m == MarkerTimeChunkHeader || m == MarkerOnlyOnePageTimeChunkHeader
}

// IsValueChunkMarker reports whether the marker denotes a value chunk of an
// aligned group.
func IsValueChunkMarker(m byte) bool {
	return m == MarkerValueChunkHeader || m == MarkerOnlyOnePageValueChunkHeader
}

// Compressor defines the interface for compression and decompression algorithms.
type Compressor interface {
	// Compress compresses the input data.
	Compress(data []byte) ([]byte, error)
	// CompressTo compresses src into dst, reusing dst's storage.
	CompressTo(dst *bytes.Buffer, src []byte) error
	// Decompress decompresses the input data.
	Decompress(data []byte) (io.ReadCloser, error)
	// Type returns the CompressionType identifier for this compressor.
	Type() CompressionType
}

// Encoder is the streaming value encoder a page writer drives. Encoded bytes
// are appended to the supplied buffer; residual state is emitted by Flush.
type Encoder interface {
	// Encode appends the encoding of v to buf. v is never the null value;
	// nullability is tracked outside the encoder.
	Encode(v Value, buf *bytes.Buffer) error
	// Flush appends any residual encoder state to buf and resets the encoder.
	Flush(buf *bytes.Buffer) error
	// MaxTailByteSize is an upper bound on the bytes Flush may still emit.
	MaxTailByteSize() int
}

// ChecksumSize is the size of the CRC32 written after multi-page headers.
const ChecksumSize = 4
