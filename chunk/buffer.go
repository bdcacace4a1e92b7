package chunk

import (
	"bytes"
	"fmt"
	"hash/crc32"

	"github.com/INLOpen/nexustsf/core"
	"github.com/INLOpen/nexustsf/stats"
)

// PageHeader describes one sealed page. Statistics are omitted from the
// serialized header iff the page is the only page of its chunk; they are
// then inlined in the chunk header instead.
type PageHeader struct {
	UncompressedSize int
	CompressedSize   int
	Statistics       stats.Statistics
}

type sealedPage struct {
	header PageHeader
	data   []byte // compressed payload; raw when compression did not shrink
	crc    uint32
}

// chunkBuffer accumulates the sealed, compressed pages of one series chunk
// and knows their serialized size.
type chunkBuffer struct {
	writeCRC bool
	pages    []sealedPage
}

func (b *chunkBuffer) addPage(h PageHeader, payload []byte) {
	p := sealedPage{header: h, data: append([]byte(nil), payload...)}
	if b.writeCRC {
		p.crc = crc32.ChecksumIEEE(p.data)
	}
	b.pages = append(b.pages, p)
}

func (b *chunkBuffer) numPages() int { return len(b.pages) }

// pageSerializedSize is the on-disk size of page i: header plus payload.
// Statistics and CRC are omitted for the only page of a single-page chunk.
func (b *chunkBuffer) pageSerializedSize(i int) int {
	p := &b.pages[i]
	n := core.UvarintSize(uint64(p.header.UncompressedSize)) +
		core.UvarintSize(uint64(p.header.CompressedSize))
	if len(b.pages) > 1 {
		n += p.header.Statistics.SerializedSize()
		if b.writeCRC {
			n += core.ChecksumSize
		}
	}
	n += len(p.data)
	return n
}

// dataSize is the chunk's data size: the sum of all serialized pages.
func (b *chunkBuffer) dataSize() int64 {
	var n int64
	for i := range b.pages {
		n += int64(b.pageSerializedSize(i))
	}
	return n
}

// estimateSize is a monotonic upper bound on held bytes: uncompressed page
// sizes plus full headers, regardless of how many pages the chunk ends with.
func (b *chunkBuffer) estimateSize() int64 {
	var n int64
	for i := range b.pages {
		p := &b.pages[i]
		n += int64(core.UvarintSize(uint64(p.header.UncompressedSize)) +
			core.UvarintSize(uint64(p.header.CompressedSize)) +
			p.header.Statistics.SerializedSize() +
			core.ChecksumSize +
			p.header.UncompressedSize)
	}
	return n
}

// serializePage writes page i (header then payload) to buf.
func (b *chunkBuffer) serializePage(i int, buf *bytes.Buffer) {
	p := &b.pages[i]
	core.AppendUvarint(buf, uint64(p.header.UncompressedSize))
	core.AppendUvarint(buf, uint64(p.header.CompressedSize))
	if len(b.pages) > 1 {
		p.header.Statistics.WriteTo(buf)
		if b.writeCRC {
			var tmp [4]byte
			tmp[0] = byte(p.crc)
			tmp[1] = byte(p.crc >> 8)
			tmp[2] = byte(p.crc >> 16)
			tmp[3] = byte(p.crc >> 24)
			buf.Write(tmp[:])
		}
	}
	buf.Write(p.data)
}

// writeTo streams every sealed page to the file writer in insertion order.
func (b *chunkBuffer) writeTo(fw FileWriter) error {
	buf := core.BufferPool.Get()
	defer core.BufferPool.Put(buf)
	for i := range b.pages {
		buf.Reset()
		b.serializePage(i, buf)
		if err := fw.WriteBytesToStream(buf.Bytes()); err != nil {
			return fmt.Errorf("failed to write page %d: %w", i, err)
		}
	}
	return nil
}

func (b *chunkBuffer) reset() {
	b.pages = b.pages[:0]
}

// sealPageInto compresses payload and appends it to the chunk buffer. When
// compression does not shrink the payload it is stored raw; the reader
// detects this by compressedSize == uncompressedSize.
func sealPageInto(cb *chunkBuffer, compressor core.Compressor, payload []byte, st stats.Statistics) error {
	staging := core.BufferPool.Get()
	defer core.BufferPool.Put(staging)
	if err := compressor.CompressTo(staging, payload); err != nil {
		return fmt.Errorf("failed to compress page: %w", err)
	}
	comp := staging.Bytes()
	if len(comp) >= len(payload) {
		comp = payload
	}
	cb.addPage(PageHeader{
		UncompressedSize: len(payload),
		CompressedSize:   len(comp),
		Statistics:       st,
	}, comp)
	return nil
}
