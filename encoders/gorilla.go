package encoders

import (
	"bytes"
	"math"
	"math/bits"

	"github.com/INLOpen/nexustsf/core"
)

// gorillaEncoder implements the Facebook Gorilla XOR scheme for floats. The
// first value is stored raw; later values store the XOR against the previous
// value, reusing the previous leading/trailing-zero window when it still
// fits. Works on 32- or 64-bit lanes.
type gorillaEncoder struct {
	width       uint8 // 32 or 64
	leadingBits uint8 // bits used for the leading-zero count
	sizeBits    uint8 // bits used for the meaningful-length count
	kind        core.ValueKind

	w           bitWriter
	prev        uint64
	prevLeading uint8
	prevMeanLen uint8 // 0 means no window yet
	started     bool
}

func newGorilla32Encoder() *gorillaEncoder {
	return &gorillaEncoder{width: 32, leadingBits: 5, sizeBits: 5, kind: core.KindFloat}
}

func newGorilla64Encoder() *gorillaEncoder {
	return &gorillaEncoder{width: 64, leadingBits: 6, sizeBits: 6, kind: core.KindDouble}
}

var _ core.Encoder = (*gorillaEncoder)(nil)

func (e *gorillaEncoder) bitsOf(v core.Value) uint64 {
	if e.width == 32 {
		return uint64(math.Float32bits(v.Float()))
	}
	return math.Float64bits(v.Double())
}

func (e *gorillaEncoder) Encode(v core.Value, buf *bytes.Buffer) error {
	if v.Kind() != e.kind {
		return kindMismatch(e.kind, v)
	}
	cur := e.bitsOf(v)
	if !e.started {
		e.w.writeBits(cur, e.width, buf)
		e.prev = cur
		e.started = true
		return nil
	}

	xor := e.prev ^ cur
	e.prev = cur
	if xor == 0 {
		e.w.writeBit(0, buf)
		return nil
	}
	e.w.writeBit(1, buf)

	leading := uint8(bits.LeadingZeros64(xor)) - (64 - e.width)
	trailing := uint8(bits.TrailingZeros64(xor))
	meanLen := e.width - leading - trailing

	if e.prevMeanLen > 0 && leading >= e.prevLeading &&
		e.width-e.prevLeading-e.prevMeanLen <= trailing {
		// The previous window still covers all meaningful bits.
		e.w.writeBit(0, buf)
		shift := e.width - e.prevLeading - e.prevMeanLen
		e.w.writeBits(xor>>shift, e.prevMeanLen, buf)
		return nil
	}

	e.w.writeBit(1, buf)
	e.w.writeBits(uint64(leading), e.leadingBits, buf)
	// meanLen ranges 1..width; store meanLen-1 so width fits the field.
	e.w.writeBits(uint64(meanLen-1), e.sizeBits, buf)
	e.w.writeBits(xor>>trailing, meanLen, buf)
	e.prevLeading = leading
	e.prevMeanLen = meanLen
	return nil
}

func (e *gorillaEncoder) Flush(buf *bytes.Buffer) error {
	e.w.flushBits(buf)
	e.prev = 0
	e.prevLeading = 0
	e.prevMeanLen = 0
	e.started = false
	return nil
}

// MaxTailByteSize covers the partial byte held by the bit writer.
func (e *gorillaEncoder) MaxTailByteSize() int { return 1 }

// gorillaDecoder decodes the gorillaEncoder format.
type gorillaDecoder struct {
	bits uint8 // 32 or 64
}

var _ Decoder = (*gorillaDecoder)(nil)

func (d *gorillaDecoder) DecodeAll(data []byte, n int) ([]core.Value, error) {
	width := d.bits
	var leadingBits, sizeBits uint8 = 6, 6
	if width == 32 {
		leadingBits, sizeBits = 5, 5
	}

	r := newBitReader(data)
	out := make([]core.Value, 0, n)
	var prev uint64
	var prevLeading, prevMeanLen uint8

	emit := func(bitsVal uint64) {
		if width == 32 {
			out = append(out, core.FloatValue(math.Float32frombits(uint32(bitsVal))))
		} else {
			out = append(out, core.DoubleValue(math.Float64frombits(bitsVal)))
		}
	}

	for i := 0; i < n; i++ {
		if i == 0 {
			raw, err := r.readBits(width)
			if err != nil {
				return nil, err
			}
			prev = raw
			emit(raw)
			continue
		}
		ctrl, err := r.readBit()
		if err != nil {
			return nil, err
		}
		if ctrl == 0 {
			emit(prev)
			continue
		}
		newWindow, err := r.readBit()
		if err != nil {
			return nil, err
		}
		if newWindow != 0 {
			lead, err := r.readBits(leadingBits)
			if err != nil {
				return nil, err
			}
			meanLenMinus1, err := r.readBits(sizeBits)
			if err != nil {
				return nil, err
			}
			prevLeading = uint8(lead)
			prevMeanLen = uint8(meanLenMinus1) + 1
		}
		mean, err := r.readBits(prevMeanLen)
		if err != nil {
			return nil, err
		}
		shift := width - prevLeading - prevMeanLen
		prev ^= mean << shift
		emit(prev)
	}
	return out, nil
}
