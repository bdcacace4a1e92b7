package encoders

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/INLOpen/nexustsf/core"
)

// TS2DiffEncoder encodes integers as zig-zag varints of the delta-of-delta.
// Timestamps written at a fixed interval collapse to one byte per point.
type TS2DiffEncoder struct {
	kind      core.ValueKind
	prev      int64
	prevDelta int64
}

var _ core.Encoder = (*TS2DiffEncoder)(nil)

func (e *TS2DiffEncoder) Encode(v core.Value, buf *bytes.Buffer) error {
	if v.Kind() != e.kind {
		return kindMismatch(e.kind, v)
	}
	var cur int64
	if e.kind == core.KindInt32 {
		cur = int64(v.Int32())
	} else {
		cur = v.Int64()
	}
	// The first value is a delta against an implicit zero origin.
	delta := cur - e.prev
	core.AppendVarint(buf, delta-e.prevDelta)
	e.prev = cur
	e.prevDelta = delta
	return nil
}

func (e *TS2DiffEncoder) Flush(buf *bytes.Buffer) error {
	e.prev = 0
	e.prevDelta = 0
	return nil
}

func (e *TS2DiffEncoder) MaxTailByteSize() int { return 0 }

// TS2DiffDecoder decodes the TS2DiffEncoder format.
type TS2DiffDecoder struct {
	kind core.ValueKind
}

var _ Decoder = (*TS2DiffDecoder)(nil)

func (d *TS2DiffDecoder) DecodeAll(data []byte, n int) ([]core.Value, error) {
	r := bytes.NewReader(data)
	out := make([]core.Value, 0, n)
	var prev, prevDelta int64
	for i := 0; i < n; i++ {
		dod, err := binary.ReadVarint(r)
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("ts_2diff stream truncated at value %d of %d", i, n)
			}
			return nil, fmt.Errorf("ts_2diff decode value %d: %w", i, err)
		}
		delta := prevDelta + dod
		cur := prev + delta
		if d.kind == core.KindInt32 {
			out = append(out, core.Int32Value(int32(cur)))
		} else {
			out = append(out, core.Int64Value(cur))
		}
		prev = cur
		prevDelta = delta
	}
	return out, nil
}
