// Package stats maintains the per-page and per-chunk value summaries readers
// use to prune. One Statistics instance covers one page or one chunk; page
// statistics are merged into chunk statistics at seal time.
package stats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/INLOpen/nexustsf/core"
)

// Statistics is the running summary for one series' data type. Update is
// only called with present (non-null) values; nulls never reach statistics.
type Statistics interface {
	DataType() core.DataType
	Count() int64
	Update(v core.Value) error
	Merge(other Statistics) error
	// SerializedSize is the exact number of bytes WriteTo emits.
	SerializedSize() int
	WriteTo(buf *bytes.Buffer)
}

// New creates empty statistics for the given data type.
func New(dt core.DataType) Statistics {
	switch dt.Physical() {
	case core.TypeBoolean:
		return &BooleanStats{dt: dt}
	case core.TypeInt32, core.TypeInt64:
		return &IntStats{dt: dt}
	case core.TypeFloat, core.TypeDouble:
		return &FloatStats{dt: dt}
	default:
		return &BinaryStats{dt: dt}
	}
}

// IntStats summarises INT32/INT64 series (and their DATE/TIMESTAMP aliases).
type IntStats struct {
	dt    core.DataType
	count int64
	min   int64
	max   int64
	first int64
	last  int64
	sum   int64
}

var _ Statistics = (*IntStats)(nil)

func (s *IntStats) DataType() core.DataType { return s.dt }
func (s *IntStats) Count() int64            { return s.count }
func (s *IntStats) Min() int64              { return s.min }
func (s *IntStats) Max() int64              { return s.max }
func (s *IntStats) First() int64            { return s.first }
func (s *IntStats) Last() int64             { return s.last }
func (s *IntStats) Sum() int64              { return s.sum }

func (s *IntStats) Update(v core.Value) error {
	var x int64
	switch v.Kind() {
	case core.KindInt32:
		x = int64(v.Int32())
	case core.KindInt64:
		x = v.Int64()
	default:
		return fmt.Errorf("int statistics cannot aggregate %s value", v.Kind())
	}
	if s.count == 0 {
		s.min, s.max, s.first = x, x, x
	} else {
		if x < s.min {
			s.min = x
		}
		if x > s.max {
			s.max = x
		}
	}
	s.last = x
	s.sum += x
	s.count++
	return nil
}

func (s *IntStats) Merge(other Statistics) error {
	o, ok := other.(*IntStats)
	if !ok {
		return fmt.Errorf("cannot merge %s statistics into int statistics", other.DataType())
	}
	if o.count == 0 {
		return nil
	}
	if s.count == 0 {
		*s = *o
		s.dt = o.dt
		return nil
	}
	if o.min < s.min {
		s.min = o.min
	}
	if o.max > s.max {
		s.max = o.max
	}
	s.last = o.last
	s.sum += o.sum
	s.count += o.count
	return nil
}

func (s *IntStats) SerializedSize() int {
	n := core.UvarintSize(uint64(s.count))
	if s.count > 0 {
		n += 5 * 8
	}
	return n
}

func (s *IntStats) WriteTo(buf *bytes.Buffer) {
	core.AppendUvarint(buf, uint64(s.count))
	if s.count == 0 {
		return
	}
	for _, x := range []int64{s.min, s.max, s.first, s.last, s.sum} {
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(x))
		buf.Write(tmp[:])
	}
}

// FloatStats summarises FLOAT/DOUBLE series.
type FloatStats struct {
	dt    core.DataType
	count int64
	min   float64
	max   float64
	first float64
	last  float64
	sum   float64
}

var _ Statistics = (*FloatStats)(nil)

func (s *FloatStats) DataType() core.DataType { return s.dt }
func (s *FloatStats) Count() int64            { return s.count }
func (s *FloatStats) Min() float64            { return s.min }
func (s *FloatStats) Max() float64            { return s.max }
func (s *FloatStats) First() float64          { return s.first }
func (s *FloatStats) Last() float64           { return s.last }
func (s *FloatStats) Sum() float64            { return s.sum }

func (s *FloatStats) Update(v core.Value) error {
	var x float64
	switch v.Kind() {
	case core.KindFloat:
		x = float64(v.Float())
	case core.KindDouble:
		x = v.Double()
	default:
		return fmt.Errorf("float statistics cannot aggregate %s value", v.Kind())
	}
	if s.count == 0 {
		s.min, s.max, s.first = x, x, x
	} else {
		if x < s.min {
			s.min = x
		}
		if x > s.max {
			s.max = x
		}
	}
	s.last = x
	s.sum += x
	s.count++
	return nil
}

func (s *FloatStats) Merge(other Statistics) error {
	o, ok := other.(*FloatStats)
	if !ok {
		return fmt.Errorf("cannot merge %s statistics into float statistics", other.DataType())
	}
	if o.count == 0 {
		return nil
	}
	if s.count == 0 {
		*s = *o
		s.dt = o.dt
		return nil
	}
	if o.min < s.min {
		s.min = o.min
	}
	if o.max > s.max {
		s.max = o.max
	}
	s.last = o.last
	s.sum += o.sum
	s.count += o.count
	return nil
}

func (s *FloatStats) SerializedSize() int {
	n := core.UvarintSize(uint64(s.count))
	if s.count > 0 {
		n += 5 * 8
	}
	return n
}

func (s *FloatStats) WriteTo(buf *bytes.Buffer) {
	core.AppendUvarint(buf, uint64(s.count))
	if s.count == 0 {
		return
	}
	for _, x := range []float64{s.min, s.max, s.first, s.last, s.sum} {
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(x))
		buf.Write(tmp[:])
	}
}

// BooleanStats summarises BOOLEAN series. Sum is the count of true values.
type BooleanStats struct {
	dt        core.DataType
	count     int64
	first     bool
	last      bool
	trueCount int64
}

var _ Statistics = (*BooleanStats)(nil)

func (s *BooleanStats) DataType() core.DataType { return s.dt }
func (s *BooleanStats) Count() int64            { return s.count }
func (s *BooleanStats) First() bool             { return s.first }
func (s *BooleanStats) Last() bool              { return s.last }
func (s *BooleanStats) TrueCount() int64        { return s.trueCount }

func (s *BooleanStats) Update(v core.Value) error {
	if v.Kind() != core.KindBool {
		return fmt.Errorf("boolean statistics cannot aggregate %s value", v.Kind())
	}
	x := v.Bool()
	if s.count == 0 {
		s.first = x
	}
	s.last = x
	if x {
		s.trueCount++
	}
	s.count++
	return nil
}

func (s *BooleanStats) Merge(other Statistics) error {
	o, ok := other.(*BooleanStats)
	if !ok {
		return fmt.Errorf("cannot merge %s statistics into boolean statistics", other.DataType())
	}
	if o.count == 0 {
		return nil
	}
	if s.count == 0 {
		s.first = o.first
	}
	s.last = o.last
	s.trueCount += o.trueCount
	s.count += o.count
	return nil
}

func (s *BooleanStats) SerializedSize() int {
	n := core.UvarintSize(uint64(s.count))
	if s.count > 0 {
		n += 2 + core.UvarintSize(uint64(s.trueCount))
	}
	return n
}

func (s *BooleanStats) WriteTo(buf *bytes.Buffer) {
	core.AppendUvarint(buf, uint64(s.count))
	if s.count == 0 {
		return
	}
	buf.WriteByte(boolByte(s.first))
	buf.WriteByte(boolByte(s.last))
	core.AppendUvarint(buf, uint64(s.trueCount))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// BinaryStats summarises TEXT/BLOB/STRING series. Min/max/sum carry no
// meaning for opaque bytes; only first/last are tracked.
type BinaryStats struct {
	dt    core.DataType
	count int64
	first []byte
	last  []byte
}

var _ Statistics = (*BinaryStats)(nil)

func (s *BinaryStats) DataType() core.DataType { return s.dt }
func (s *BinaryStats) Count() int64            { return s.count }
func (s *BinaryStats) First() []byte           { return s.first }
func (s *BinaryStats) Last() []byte            { return s.last }

func (s *BinaryStats) Update(v core.Value) error {
	if v.Kind() != core.KindBytes {
		return fmt.Errorf("binary statistics cannot aggregate %s value", v.Kind())
	}
	if s.count == 0 {
		s.first = append([]byte(nil), v.Bytes()...)
	}
	s.last = append(s.last[:0], v.Bytes()...)
	s.count++
	return nil
}

func (s *BinaryStats) Merge(other Statistics) error {
	o, ok := other.(*BinaryStats)
	if !ok {
		return fmt.Errorf("cannot merge %s statistics into binary statistics", other.DataType())
	}
	if o.count == 0 {
		return nil
	}
	if s.count == 0 {
		s.first = append([]byte(nil), o.first...)
	}
	s.last = append(s.last[:0], o.last...)
	s.count += o.count
	return nil
}

func (s *BinaryStats) SerializedSize() int {
	n := core.UvarintSize(uint64(s.count))
	if s.count > 0 {
		n += core.UvarintSize(uint64(len(s.first))) + len(s.first)
		n += core.UvarintSize(uint64(len(s.last))) + len(s.last)
	}
	return n
}

func (s *BinaryStats) WriteTo(buf *bytes.Buffer) {
	core.AppendUvarint(buf, uint64(s.count))
	if s.count == 0 {
		return
	}
	core.AppendUvarint(buf, uint64(len(s.first)))
	buf.Write(s.first)
	core.AppendUvarint(buf, uint64(len(s.last)))
	buf.Write(s.last)
}

// Read deserializes statistics previously written by WriteTo for the given
// data type.
func Read(dt core.DataType, r *bufio.Reader) (Statistics, error) {
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read statistics count: %w", err)
	}
	switch dt.Physical() {
	case core.TypeBoolean:
		s := &BooleanStats{dt: dt, count: int64(count)}
		if count == 0 {
			return s, nil
		}
		var tmp [2]byte
		if _, err := io.ReadFull(r, tmp[:]); err != nil {
			return nil, fmt.Errorf("failed to read boolean statistics: %w", err)
		}
		s.first, s.last = tmp[0] != 0, tmp[1] != 0
		tc, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read boolean true count: %w", err)
		}
		s.trueCount = int64(tc)
		return s, nil
	case core.TypeInt32, core.TypeInt64:
		s := &IntStats{dt: dt, count: int64(count)}
		if count == 0 {
			return s, nil
		}
		fields := []*int64{&s.min, &s.max, &s.first, &s.last, &s.sum}
		for _, f := range fields {
			var tmp [8]byte
			if _, err := io.ReadFull(r, tmp[:]); err != nil {
				return nil, fmt.Errorf("failed to read int statistics field: %w", err)
			}
			*f = int64(binary.LittleEndian.Uint64(tmp[:]))
		}
		return s, nil
	case core.TypeFloat, core.TypeDouble:
		s := &FloatStats{dt: dt, count: int64(count)}
		if count == 0 {
			return s, nil
		}
		fields := []*float64{&s.min, &s.max, &s.first, &s.last, &s.sum}
		for _, f := range fields {
			var tmp [8]byte
			if _, err := io.ReadFull(r, tmp[:]); err != nil {
				return nil, fmt.Errorf("failed to read float statistics field: %w", err)
			}
			*f = math.Float64frombits(binary.LittleEndian.Uint64(tmp[:]))
		}
		return s, nil
	default:
		s := &BinaryStats{dt: dt, count: int64(count)}
		if count == 0 {
			return s, nil
		}
		for _, f := range []*[]byte{&s.first, &s.last} {
			n, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, fmt.Errorf("failed to read binary statistics length: %w", err)
			}
			b := make([]byte, n)
			if _, err := io.ReadFull(r, b); err != nil {
				return nil, fmt.Errorf("failed to read binary statistics bytes: %w", err)
			}
			*f = b
		}
		return s, nil
	}
}
