package encoders

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/INLOpen/nexustsf/core"
)

// RLEEncoder emits (runLength, value) pairs. Suited to booleans and
// low-cardinality integer series.
type RLEEncoder struct {
	kind    core.ValueKind
	cur     int64
	runLen  uint64
	pending bool
}

var _ core.Encoder = (*RLEEncoder)(nil)

func (e *RLEEncoder) scalar(v core.Value) int64 {
	switch e.kind {
	case core.KindBool:
		if v.Bool() {
			return 1
		}
		return 0
	case core.KindInt32:
		return int64(v.Int32())
	default:
		return v.Int64()
	}
}

func (e *RLEEncoder) Encode(v core.Value, buf *bytes.Buffer) error {
	if v.Kind() != e.kind {
		return kindMismatch(e.kind, v)
	}
	s := e.scalar(v)
	if e.pending && s == e.cur {
		e.runLen++
		return nil
	}
	if e.pending {
		e.emitRun(buf)
	}
	e.cur = s
	e.runLen = 1
	e.pending = true
	return nil
}

func (e *RLEEncoder) emitRun(buf *bytes.Buffer) {
	core.AppendUvarint(buf, e.runLen)
	if e.kind == core.KindBool {
		buf.WriteByte(byte(e.cur))
	} else {
		core.AppendVarint(buf, e.cur)
	}
}

func (e *RLEEncoder) Flush(buf *bytes.Buffer) error {
	if e.pending {
		e.emitRun(buf)
	}
	e.cur = 0
	e.runLen = 0
	e.pending = false
	return nil
}

// MaxTailByteSize bounds the pending run: varint length plus value.
func (e *RLEEncoder) MaxTailByteSize() int {
	return 2 * binary.MaxVarintLen64
}

// RLEDecoder decodes the RLEEncoder format.
type RLEDecoder struct {
	kind core.ValueKind
}

var _ Decoder = (*RLEDecoder)(nil)

func (d *RLEDecoder) DecodeAll(data []byte, n int) ([]core.Value, error) {
	r := bytes.NewReader(data)
	out := make([]core.Value, 0, n)
	for len(out) < n {
		runLen, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("rle stream truncated at value %d of %d: %w", len(out), n, err)
		}
		var s int64
		if d.kind == core.KindBool {
			b, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("rle decode value byte: %w", err)
			}
			s = int64(b)
		} else {
			s, err = binary.ReadVarint(r)
			if err != nil {
				return nil, fmt.Errorf("rle decode value: %w", err)
			}
		}
		for j := uint64(0); j < runLen && len(out) < n; j++ {
			switch d.kind {
			case core.KindBool:
				out = append(out, core.BoolValue(s != 0))
			case core.KindInt32:
				out = append(out, core.Int32Value(int32(s)))
			default:
				out = append(out, core.Int64Value(s))
			}
		}
	}
	return out, nil
}
