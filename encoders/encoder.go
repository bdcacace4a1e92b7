// Package encoders provides the streaming value encoders driven by page
// writers, and the symmetric decoders used by the read path.
package encoders

import (
	"fmt"

	"github.com/INLOpen/nexustsf/core"
)

// Decoder turns an encoded page section back into values. n is the number of
// values the section holds; the on-disk formats do not carry their own count.
type Decoder interface {
	DecodeAll(data []byte, n int) ([]core.Value, error)
}

// NewEncoder returns a fresh encoder for the given encoding and data type.
// Encoders are stateful and must not be shared across series.
func NewEncoder(et core.EncodingType, dt core.DataType) (core.Encoder, error) {
	kind := core.KindForType(dt)
	switch et {
	case core.EncodingPlain:
		return &PlainEncoder{kind: kind}, nil
	case core.EncodingTS2Diff:
		switch kind {
		case core.KindInt32, core.KindInt64:
			return &TS2DiffEncoder{kind: kind}, nil
		}
		return nil, fmt.Errorf("encoding %s does not support data type %s", et, dt)
	case core.EncodingGorilla:
		switch kind {
		case core.KindFloat:
			return newGorilla32Encoder(), nil
		case core.KindDouble:
			return newGorilla64Encoder(), nil
		}
		return nil, fmt.Errorf("encoding %s does not support data type %s", et, dt)
	case core.EncodingRLE:
		switch kind {
		case core.KindBool, core.KindInt32, core.KindInt64:
			return &RLEEncoder{kind: kind}, nil
		}
		return nil, fmt.Errorf("encoding %s does not support data type %s", et, dt)
	default:
		return nil, fmt.Errorf("unsupported encoding type %d", et)
	}
}

// NewDecoder returns the decoder matching NewEncoder(et, dt).
func NewDecoder(et core.EncodingType, dt core.DataType) (Decoder, error) {
	kind := core.KindForType(dt)
	switch et {
	case core.EncodingPlain:
		return &PlainDecoder{kind: kind}, nil
	case core.EncodingTS2Diff:
		switch kind {
		case core.KindInt32, core.KindInt64:
			return &TS2DiffDecoder{kind: kind}, nil
		}
		return nil, fmt.Errorf("encoding %s does not support data type %s", et, dt)
	case core.EncodingGorilla:
		switch kind {
		case core.KindFloat:
			return &gorillaDecoder{bits: 32}, nil
		case core.KindDouble:
			return &gorillaDecoder{bits: 64}, nil
		}
		return nil, fmt.Errorf("encoding %s does not support data type %s", et, dt)
	case core.EncodingRLE:
		switch kind {
		case core.KindBool, core.KindInt32, core.KindInt64:
			return &RLEDecoder{kind: kind}, nil
		}
		return nil, fmt.Errorf("encoding %s does not support data type %s", et, dt)
	default:
		return nil, fmt.Errorf("unsupported encoding type %d", et)
	}
}

func kindMismatch(want core.ValueKind, v core.Value) error {
	return fmt.Errorf("encoder expects %s values, got %s", want, v.Kind())
}
