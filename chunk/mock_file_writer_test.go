package chunk

import (
	"bytes"
	"fmt"

	"github.com/INLOpen/nexustsf/core"
	"github.com/INLOpen/nexustsf/stats"
)

// recordedChunk captures one StartFlushChunk..EndCurrentChunk window.
type recordedChunk struct {
	measurementID string
	compression   core.CompressionType
	dataType      core.DataType
	encoding      core.EncodingType
	statistics    stats.Statistics
	dataSize      int64
	numPages      int
	marker        byte
	pageBytes     bytes.Buffer
	ended         bool
}

type recordedGroup struct {
	deviceID string
	chunks   []*recordedChunk
	ended    bool
}

// mockFileWriter records the FileWriter call sequence for assertions.
type mockFileWriter struct {
	pos     int64
	groups  []*recordedGroup
	current *recordedChunk
	failOn  string // method name that should return an error
}

var _ FileWriter = (*mockFileWriter)(nil)

func (m *mockFileWriter) StartChunkGroup(deviceID string) error {
	if m.failOn == "StartChunkGroup" {
		return fmt.Errorf("injected StartChunkGroup failure")
	}
	m.groups = append(m.groups, &recordedGroup{deviceID: deviceID})
	m.pos += int64(1 + core.VarStringSize(deviceID))
	return nil
}

func (m *mockFileWriter) StartFlushChunk(measurementID string, compression core.CompressionType,
	dataType core.DataType, encoding core.EncodingType,
	statistics stats.Statistics, dataSize int64, numPages int, marker byte) error {
	if m.failOn == "StartFlushChunk" {
		return fmt.Errorf("injected StartFlushChunk failure")
	}
	if len(m.groups) == 0 {
		return fmt.Errorf("StartFlushChunk before StartChunkGroup")
	}
	c := &recordedChunk{
		measurementID: measurementID,
		compression:   compression,
		dataType:      dataType,
		encoding:      encoding,
		statistics:    statistics,
		dataSize:      dataSize,
		numPages:      numPages,
		marker:        marker,
	}
	g := m.groups[len(m.groups)-1]
	g.chunks = append(g.chunks, c)
	m.current = c
	m.pos += int64(1 + core.VarStringSize(measurementID) + core.UvarintSize(uint64(dataSize)) + 3 +
		core.UvarintSize(uint64(numPages)))
	if core.IsSinglePageMarker(marker) {
		m.pos += int64(statistics.SerializedSize())
	}
	return nil
}

func (m *mockFileWriter) WriteBytesToStream(data []byte) error {
	if m.failOn == "WriteBytesToStream" {
		return fmt.Errorf("injected WriteBytesToStream failure")
	}
	if m.current == nil {
		return fmt.Errorf("WriteBytesToStream outside a chunk")
	}
	m.current.pageBytes.Write(data)
	m.pos += int64(len(data))
	return nil
}

func (m *mockFileWriter) EndCurrentChunk() error {
	if m.current == nil {
		return fmt.Errorf("EndCurrentChunk without StartFlushChunk")
	}
	m.current.ended = true
	m.current = nil
	return nil
}

func (m *mockFileWriter) EndChunkGroup() error {
	if len(m.groups) == 0 {
		return fmt.Errorf("EndChunkGroup before StartChunkGroup")
	}
	g := m.groups[len(m.groups)-1]
	g.ended = true
	m.pos += int64(1 + core.VarStringSize(g.deviceID) + core.UvarintSize(uint64(len(g.chunks))))
	return nil
}

func (m *mockFileWriter) Pos() int64 { return m.pos }
