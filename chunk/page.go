package chunk

import (
	"bytes"
	"fmt"

	"github.com/INLOpen/nexustsf/core"
	"github.com/INLOpen/nexustsf/stats"
)

// pageEstimateOverhead covers the payload length prefixes a seal will add.
const pageEstimateOverhead = 16

// timePageWriter buffers one page of encoded timestamps.
type timePageWriter struct {
	encoder core.Encoder
	buf     bytes.Buffer
	st      stats.Statistics
	count   int
}

func newTimePageWriter(encoder core.Encoder) *timePageWriter {
	return &timePageWriter{encoder: encoder, st: stats.New(core.TypeInt64)}
}

func (p *timePageWriter) write(t int64) error {
	if err := p.encoder.Encode(core.Int64Value(t), &p.buf); err != nil {
		return fmt.Errorf("failed to encode timestamp: %w", err)
	}
	if err := p.st.Update(core.Int64Value(t)); err != nil {
		return err
	}
	p.count++
	return nil
}

func (p *timePageWriter) writeBatch(times []int64, batchSize, offset int) error {
	for i := offset; i < offset+batchSize; i++ {
		if err := p.write(times[i]); err != nil {
			return err
		}
	}
	return nil
}

// estimatedSize is the uncompressed payload size the page would seal to,
// including bytes the encoder may still flush.
func (p *timePageWriter) estimatedSize() int {
	if p.count == 0 {
		return 0
	}
	return p.buf.Len() + p.encoder.MaxTailByteSize()
}

// seal flushes the encoder and returns the page payload and statistics.
// The payload aliases the page buffer and must be consumed before reset.
func (p *timePageWriter) seal() ([]byte, stats.Statistics, error) {
	if err := p.encoder.Flush(&p.buf); err != nil {
		return nil, nil, fmt.Errorf("failed to flush time encoder: %w", err)
	}
	return p.buf.Bytes(), p.st, nil
}

func (p *timePageWriter) reset() {
	p.buf.Reset()
	p.st = stats.New(core.TypeInt64)
	p.count = 0
}

// valuePageWriter buffers one page of one value series: a nullability bitmap
// plus encoded non-null values. When standalone (non-aligned series) it also
// carries its own timestamp section.
type valuePageWriter struct {
	dataType    core.DataType
	encoder     core.Encoder
	timeEncoder core.Encoder // nil for aligned value columns
	timeBuf     bytes.Buffer
	valueBuf    bytes.Buffer
	nullBits    []byte
	count       int
	st          stats.Statistics
}

func newValuePageWriter(dt core.DataType, encoder, timeEncoder core.Encoder) *valuePageWriter {
	return &valuePageWriter{
		dataType:    dt,
		encoder:     encoder,
		timeEncoder: timeEncoder,
		st:          stats.New(dt),
	}
}

// write records one row. Nulls advance the bitmap and point count but touch
// neither the encoder nor the statistics.
func (p *valuePageWriter) write(t int64, v core.Value, isNull bool) error {
	if !isNull && !v.MatchesType(p.dataType) {
		return &core.TypeMismatchError{Expected: p.dataType, Got: v.Kind()}
	}
	if p.timeEncoder != nil {
		if err := p.timeEncoder.Encode(core.Int64Value(t), &p.timeBuf); err != nil {
			return fmt.Errorf("failed to encode timestamp: %w", err)
		}
	}
	if !isNull {
		if err := p.encoder.Encode(v, &p.valueBuf); err != nil {
			return fmt.Errorf("failed to encode value: %w", err)
		}
		if err := p.st.Update(v); err != nil {
			return err
		}
	}
	if p.count%8 == 0 {
		p.nullBits = append(p.nullBits, 0)
	}
	if isNull {
		p.nullBits[p.count/8] |= 1 << uint(p.count%8)
	}
	p.count++
	return nil
}

func (p *valuePageWriter) estimatedSize() int {
	if p.count == 0 {
		return 0
	}
	n := p.valueBuf.Len() + p.encoder.MaxTailByteSize() + len(p.nullBits) + pageEstimateOverhead
	if p.timeEncoder != nil {
		n += p.timeBuf.Len() + p.timeEncoder.MaxTailByteSize()
	}
	return n
}

// seal flushes the encoders and assembles the page payload:
//
//	pointCount ∥ [timeSectionLen ∥ timeSection] ∥ nullBitmap ∥ valueSection
//
// The time section is present only for standalone (non-aligned) series.
func (p *valuePageWriter) seal() ([]byte, stats.Statistics, error) {
	if err := p.encoder.Flush(&p.valueBuf); err != nil {
		return nil, nil, fmt.Errorf("failed to flush value encoder: %w", err)
	}
	var payload bytes.Buffer
	payload.Grow(p.timeBuf.Len() + p.valueBuf.Len() + len(p.nullBits) + pageEstimateOverhead)
	core.AppendUvarint(&payload, uint64(p.count))
	if p.timeEncoder != nil {
		if err := p.timeEncoder.Flush(&p.timeBuf); err != nil {
			return nil, nil, fmt.Errorf("failed to flush time encoder: %w", err)
		}
		core.AppendUvarint(&payload, uint64(p.timeBuf.Len()))
		payload.Write(p.timeBuf.Bytes())
	}
	payload.Write(p.nullBits)
	payload.Write(p.valueBuf.Bytes())
	return payload.Bytes(), p.st, nil
}

func (p *valuePageWriter) reset() {
	p.timeBuf.Reset()
	p.valueBuf.Reset()
	p.nullBits = p.nullBits[:0]
	p.count = 0
	p.st = stats.New(p.dataType)
}
