package encoders

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/INLOpen/nexustsf/core"
)

// PlainEncoder writes values in their fixed-width little-endian form; byte
// slices are varint-length prefixed.
type PlainEncoder struct {
	kind core.ValueKind
}

var _ core.Encoder = (*PlainEncoder)(nil)

func (e *PlainEncoder) Encode(v core.Value, buf *bytes.Buffer) error {
	if v.Kind() != e.kind {
		return kindMismatch(e.kind, v)
	}
	switch e.kind {
	case core.KindBool:
		if v.Bool() {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case core.KindInt32:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(v.Int32()))
		buf.Write(tmp[:])
	case core.KindInt64:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(v.Int64()))
		buf.Write(tmp[:])
	case core.KindFloat:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(v.Float()))
		buf.Write(tmp[:])
	case core.KindDouble:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v.Double()))
		buf.Write(tmp[:])
	case core.KindBytes:
		core.AppendUvarint(buf, uint64(len(v.Bytes())))
		buf.Write(v.Bytes())
	default:
		return fmt.Errorf("plain encoder cannot encode %s", e.kind)
	}
	return nil
}

func (e *PlainEncoder) Flush(buf *bytes.Buffer) error { return nil }

func (e *PlainEncoder) MaxTailByteSize() int { return 0 }

// PlainDecoder decodes the PlainEncoder format.
type PlainDecoder struct {
	kind core.ValueKind
}

var _ Decoder = (*PlainDecoder)(nil)

func (d *PlainDecoder) DecodeAll(data []byte, n int) ([]core.Value, error) {
	out := make([]core.Value, 0, n)
	r := bytes.NewReader(data)
	for i := 0; i < n; i++ {
		switch d.kind {
		case core.KindBool:
			b, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("plain decode bool %d: %w", i, err)
			}
			out = append(out, core.BoolValue(b != 0))
		case core.KindInt32:
			var tmp [4]byte
			if _, err := io.ReadFull(r, tmp[:]); err != nil {
				return nil, fmt.Errorf("plain decode int32 %d: %w", i, err)
			}
			out = append(out, core.Int32Value(int32(binary.LittleEndian.Uint32(tmp[:]))))
		case core.KindInt64:
			var tmp [8]byte
			if _, err := io.ReadFull(r, tmp[:]); err != nil {
				return nil, fmt.Errorf("plain decode int64 %d: %w", i, err)
			}
			out = append(out, core.Int64Value(int64(binary.LittleEndian.Uint64(tmp[:]))))
		case core.KindFloat:
			var tmp [4]byte
			if _, err := io.ReadFull(r, tmp[:]); err != nil {
				return nil, fmt.Errorf("plain decode float %d: %w", i, err)
			}
			out = append(out, core.FloatValue(math.Float32frombits(binary.LittleEndian.Uint32(tmp[:]))))
		case core.KindDouble:
			var tmp [8]byte
			if _, err := io.ReadFull(r, tmp[:]); err != nil {
				return nil, fmt.Errorf("plain decode double %d: %w", i, err)
			}
			out = append(out, core.DoubleValue(math.Float64frombits(binary.LittleEndian.Uint64(tmp[:]))))
		case core.KindBytes:
			size, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, fmt.Errorf("plain decode bytes length %d: %w", i, err)
			}
			b := make([]byte, size)
			if _, err := io.ReadFull(r, b); err != nil {
				return nil, fmt.Errorf("plain decode bytes %d: %w", i, err)
			}
			out = append(out, core.BytesValue(b))
		default:
			return nil, fmt.Errorf("plain decoder cannot decode %s", d.kind)
		}
	}
	return out, nil
}
