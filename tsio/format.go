// Package tsio implements the append-only file writer the chunk write path
// flushes into, and the symmetric reader used for verification and bulk
// loading.
package tsio

import "errors"

// MagicString identifies a chunk file. It is written at the head of the file
// and again at the very end, after the chunk index; a missing tail magic
// marks an incomplete file.
const MagicString = "NEXUS-TSF-V1"

// MagicStringLen is the length of the MagicString.
const MagicStringLen = len(MagicString)

// FormatVersion is bumped on incompatible layout changes.
const FormatVersion byte = 1

// Header flags.
const (
	// FlagPageCRC marks that multi-page headers carry a CRC32 of the
	// compressed payload.
	FlagPageCRC byte = 1 << 0
)

// HeaderSize is magic + version + flags + time encoding. The time encoding
// of non-aligned timestamp sections is file-wide configuration, so it lives
// in the header rather than in every chunk.
const HeaderSize = MagicStringLen + 3

// TailSize is the fixed trailer: index offset (8 bytes) + magic.
const TailSize = 8 + MagicStringLen

var (
	ErrCorrupted = errors.New("chunk file is corrupted")
	ErrClosed    = errors.New("file writer is closed")
)

// IndexEntry locates one chunk inside the file. The index is written after
// the last chunk group so readers can seek without scanning.
type IndexEntry struct {
	DeviceID      string
	MeasurementID string
	Offset        int64
	DataSize      int64
	DataType      byte
	Marker        byte
	NumPages      int
}
