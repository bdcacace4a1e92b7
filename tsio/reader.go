package tsio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math/bits"
	"os"

	"github.com/INLOpen/nexustsf/compressors"
	"github.com/INLOpen/nexustsf/core"
	"github.com/INLOpen/nexustsf/encoders"
	"github.com/INLOpen/nexustsf/stats"
)

// PageData is one decoded page. Times is populated for time chunks and
// non-aligned chunks; Values (nulls included) for value-bearing chunks.
type PageData struct {
	Times      []int64
	Values     []core.Value
	Statistics stats.Statistics
}

// ChunkData is one decoded chunk with its header fields.
type ChunkData struct {
	MeasurementID string
	DataType      core.DataType
	Compression   core.CompressionType
	Encoding      core.EncodingType
	Marker        byte
	NumPages      int
	DataSize      int64
	Statistics    stats.Statistics // inlined iff single-page marker
	Pages         []PageData
}

// PointCount sums the rows of all pages, nulls included.
func (c *ChunkData) PointCount() int {
	var n int
	for i := range c.Pages {
		if c.Pages[i].Values != nil {
			n += len(c.Pages[i].Values)
		} else {
			n += len(c.Pages[i].Times)
		}
	}
	return n
}

// AllValues concatenates the decoded values of all pages.
func (c *ChunkData) AllValues() []core.Value {
	var out []core.Value
	for i := range c.Pages {
		out = append(out, c.Pages[i].Values...)
	}
	return out
}

// AllTimes concatenates the decoded timestamps of all pages.
func (c *ChunkData) AllTimes() []int64 {
	var out []int64
	for i := range c.Pages {
		out = append(out, c.Pages[i].Times...)
	}
	return out
}

// ChunkGroupData is one decoded chunk group. For aligned groups the first
// chunk is the time chunk.
type ChunkGroupData struct {
	DeviceID   string
	Aligned    bool
	ChunkCount int
	Chunks     []ChunkData
}

// FileData is a fully decoded chunk file.
type FileData struct {
	Groups []ChunkGroupData
	Index  []IndexEntry
}

// ReadFile opens, validates and fully decodes a chunk file.
func ReadFile(path string) (*FileData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk file %s: %w", path, err)
	}
	return Decode(data)
}

// Decode parses an in-memory chunk file image.
func Decode(data []byte) (*FileData, error) {
	if len(data) < HeaderSize+TailSize {
		return nil, fmt.Errorf("%w: file too small (%d bytes)", ErrCorrupted, len(data))
	}
	if string(data[:MagicStringLen]) != MagicString {
		return nil, fmt.Errorf("%w: bad head magic", ErrCorrupted)
	}
	if data[MagicStringLen] != FormatVersion {
		return nil, fmt.Errorf("unsupported chunk file version %d", data[MagicStringLen])
	}
	flags := data[MagicStringLen+1]
	timeEncoding := core.EncodingType(data[MagicStringLen+2])
	if string(data[len(data)-MagicStringLen:]) != MagicString {
		return nil, fmt.Errorf("%w: missing tail magic, file is incomplete", ErrCorrupted)
	}
	indexOffset := int64(binary.LittleEndian.Uint64(data[len(data)-TailSize : len(data)-MagicStringLen]))
	if indexOffset < int64(HeaderSize) || indexOffset > int64(len(data)-TailSize) {
		return nil, fmt.Errorf("%w: index offset %d out of range", ErrCorrupted, indexOffset)
	}

	fd := &FileData{}
	if err := fd.decodeIndex(data[indexOffset : len(data)-TailSize]); err != nil {
		return nil, err
	}

	r := bufio.NewReader(bytes.NewReader(data[HeaderSize:indexOffset]))
	dc := &decodeContext{pageCRC: flags&FlagPageCRC != 0, timeEncoding: timeEncoding}
	for {
		marker, err := r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if marker != core.MarkerChunkGroupHeader {
			return nil, fmt.Errorf("%w: expected chunk group header, found marker 0x%02x", ErrCorrupted, marker)
		}
		group, err := decodeGroup(r, dc)
		if err != nil {
			return nil, err
		}
		fd.Groups = append(fd.Groups, *group)
	}
	return fd, nil
}

func (fd *FileData) decodeIndex(data []byte) error {
	r := bufio.NewReader(bytes.NewReader(data))
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return fmt.Errorf("%w: unreadable index count", ErrCorrupted)
	}
	for i := uint64(0); i < count; i++ {
		var e IndexEntry
		if e.DeviceID, err = core.ReadVarString(r); err != nil {
			return fmt.Errorf("%w: index entry %d", ErrCorrupted, i)
		}
		if e.MeasurementID, err = core.ReadVarString(r); err != nil {
			return fmt.Errorf("%w: index entry %d", ErrCorrupted, i)
		}
		off, err := binary.ReadUvarint(r)
		if err != nil {
			return fmt.Errorf("%w: index entry %d", ErrCorrupted, i)
		}
		size, err := binary.ReadUvarint(r)
		if err != nil {
			return fmt.Errorf("%w: index entry %d", ErrCorrupted, i)
		}
		var tm [2]byte
		if _, err := io.ReadFull(r, tm[:]); err != nil {
			return fmt.Errorf("%w: index entry %d", ErrCorrupted, i)
		}
		pages, err := binary.ReadUvarint(r)
		if err != nil {
			return fmt.Errorf("%w: index entry %d", ErrCorrupted, i)
		}
		e.Offset, e.DataSize = int64(off), int64(size)
		e.DataType, e.Marker = tm[0], tm[1]
		e.NumPages = int(pages)
		fd.Index = append(fd.Index, e)
	}
	return nil
}

// decodeContext carries the file-wide settings page decoding needs.
type decodeContext struct {
	pageCRC      bool
	timeEncoding core.EncodingType
}

func decodeGroup(r *bufio.Reader, dc *decodeContext) (*ChunkGroupData, error) {
	deviceID, err := core.ReadVarString(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk group device id: %w", err)
	}
	group := &ChunkGroupData{DeviceID: deviceID}
	for {
		marker, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: chunk group for '%s' has no footer", ErrCorrupted, deviceID)
		}
		if marker == core.MarkerChunkGroupFooter {
			footerDevice, err := core.ReadVarString(r)
			if err != nil {
				return nil, fmt.Errorf("failed to read chunk group footer: %w", err)
			}
			if footerDevice != deviceID {
				return nil, fmt.Errorf("%w: footer names device '%s', header named '%s'",
					ErrCorrupted, footerDevice, deviceID)
			}
			count, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, fmt.Errorf("failed to read chunk group chunk count: %w", err)
			}
			group.ChunkCount = int(count)
			if group.ChunkCount != len(group.Chunks) {
				return nil, fmt.Errorf("%w: footer declares %d chunks, found %d",
					ErrCorrupted, group.ChunkCount, len(group.Chunks))
			}
			return group, nil
		}
		chunkData, err := decodeChunk(r, marker, dc)
		if err != nil {
			return nil, err
		}
		if core.IsTimeChunkMarker(marker) {
			group.Aligned = true
		}
		group.Chunks = append(group.Chunks, *chunkData)
	}
}

func decodeChunk(r *bufio.Reader, marker byte, dc *decodeContext) (*ChunkData, error) {
	c := &ChunkData{Marker: marker}
	var err error
	if c.MeasurementID, err = core.ReadVarString(r); err != nil {
		return nil, fmt.Errorf("failed to read chunk measurement id: %w", err)
	}
	dataSize, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk data size: %w", err)
	}
	c.DataSize = int64(dataSize)
	var hdr [3]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("failed to read chunk codec bytes: %w", err)
	}
	c.DataType = core.DataType(hdr[0])
	c.Compression = core.CompressionType(hdr[1])
	c.Encoding = core.EncodingType(hdr[2])
	numPages, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk page count: %w", err)
	}
	c.NumPages = int(numPages)
	single := core.IsSinglePageMarker(marker)
	if single != (c.NumPages == 1) {
		return nil, fmt.Errorf("%w: marker 0x%02x with %d pages", ErrCorrupted, marker, c.NumPages)
	}
	if single {
		if c.Statistics, err = stats.Read(c.DataType, r); err != nil {
			return nil, err
		}
	}

	for i := 0; i < c.NumPages; i++ {
		page, err := decodePage(r, c, single, dc)
		if err != nil {
			return nil, fmt.Errorf("chunk '%s' page %d: %w", c.MeasurementID, i, err)
		}
		c.Pages = append(c.Pages, *page)
	}
	return c, nil
}

func decodePage(r *bufio.Reader, c *ChunkData, single bool, dc *decodeContext) (*PageData, error) {
	uncompressedSize, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read page uncompressed size: %w", err)
	}
	compressedSize, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read page compressed size: %w", err)
	}
	page := &PageData{}
	if !single {
		if page.Statistics, err = stats.Read(c.DataType, r); err != nil {
			return nil, err
		}
	}
	var storedCRC uint32
	if !single && dc.pageCRC {
		var tmp [4]byte
		if _, err := io.ReadFull(r, tmp[:]); err != nil {
			return nil, fmt.Errorf("failed to read page checksum: %w", err)
		}
		storedCRC = binary.LittleEndian.Uint32(tmp[:])
	}
	compressed := make([]byte, compressedSize)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, fmt.Errorf("failed to read page payload: %w", err)
	}
	if !single && dc.pageCRC {
		if crc32.ChecksumIEEE(compressed) != storedCRC {
			return nil, fmt.Errorf("%w: page checksum mismatch", ErrCorrupted)
		}
	}

	payload := compressed
	// Equal sizes signal a raw payload: the writer stores pages raw when
	// compression does not shrink them.
	if compressedSize != uncompressedSize {
		comp, err := compressors.ForType(c.Compression)
		if err != nil {
			return nil, err
		}
		rc, err := comp.Decompress(compressed)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		if payload, err = io.ReadAll(rc); err != nil {
			return nil, fmt.Errorf("failed to decompress page: %w", err)
		}
		if len(payload) != int(uncompressedSize) {
			return nil, fmt.Errorf("%w: page decompressed to %d bytes, header declares %d",
				ErrCorrupted, len(payload), uncompressedSize)
		}
	}

	st := page.Statistics
	if st == nil {
		st = c.Statistics
	}
	if core.IsTimeChunkMarker(c.Marker) {
		return page, decodeTimePage(page, payload, c, st)
	}
	return page, decodeValuePage(page, payload, c, core.IsValueChunkMarker(c.Marker), dc)
}

func decodeTimePage(page *PageData, payload []byte, c *ChunkData, st stats.Statistics) error {
	if st == nil {
		return fmt.Errorf("%w: time page without statistics", ErrCorrupted)
	}
	dec, err := encoders.NewDecoder(c.Encoding, core.TypeInt64)
	if err != nil {
		return err
	}
	values, err := dec.DecodeAll(payload, int(st.Count()))
	if err != nil {
		return err
	}
	page.Times = make([]int64, len(values))
	for i, v := range values {
		page.Times[i] = v.Int64()
	}
	return nil
}

// decodeValuePage parses a value page; non-aligned chunks carry an embedded
// timestamp section ahead of the bitmap, encoded with the file's time
// encoding.
func decodeValuePage(page *PageData, payload []byte, c *ChunkData, aligned bool, dc *decodeContext) error {
	r := bufio.NewReader(bytes.NewReader(payload))
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return fmt.Errorf("failed to read page point count: %w", err)
	}
	if !aligned {
		timeLen, err := binary.ReadUvarint(r)
		if err != nil {
			return fmt.Errorf("failed to read page time section length: %w", err)
		}
		timeBytes := make([]byte, timeLen)
		if _, err := io.ReadFull(r, timeBytes); err != nil {
			return fmt.Errorf("failed to read page time section: %w", err)
		}
		times, err := decodeTimes(timeBytes, int(count), dc.timeEncoding)
		if err != nil {
			return err
		}
		page.Times = times
	}
	bitmap := make([]byte, (count+7)/8)
	if _, err := io.ReadFull(r, bitmap); err != nil {
		return fmt.Errorf("failed to read page nullability bitmap: %w", err)
	}
	var nulls int
	for _, b := range bitmap {
		nulls += bits.OnesCount8(b)
	}
	present := int(count) - nulls
	rest, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	dec, err := encoders.NewDecoder(c.Encoding, c.DataType)
	if err != nil {
		return err
	}
	values, err := dec.DecodeAll(rest, present)
	if err != nil {
		return err
	}
	page.Values = make([]core.Value, count)
	vi := 0
	for i := 0; i < int(count); i++ {
		if bitmap[i/8]&(1<<uint(i%8)) != 0 {
			page.Values[i] = core.NullValue()
		} else {
			page.Values[i] = values[vi]
			vi++
		}
	}
	return nil
}

func decodeTimes(data []byte, n int, et core.EncodingType) ([]int64, error) {
	dec, err := encoders.NewDecoder(et, core.TypeInt64)
	if err != nil {
		return nil, err
	}
	values, err := dec.DecodeAll(data, n)
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(values))
	for i, v := range values {
		out[i] = v.Int64()
	}
	return out, nil
}
