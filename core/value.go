package core

import (
	"fmt"
	"math"
)

// ValueKind discriminates the variants of Value.
type ValueKind byte

const (
	KindNull ValueKind = iota
	KindBool
	KindInt32
	KindInt64
	KindFloat
	KindDouble
	KindBytes
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Value is a typed scalar or null. It replaces per-type method overloads on
// the write path: one write function takes a Value and dispatches on Kind.
type Value struct {
	kind ValueKind
	num  uint64
	raw  []byte
}

func NullValue() Value { return Value{kind: KindNull} }

func BoolValue(v bool) Value {
	var n uint64
	if v {
		n = 1
	}
	return Value{kind: KindBool, num: n}
}

func Int32Value(v int32) Value    { return Value{kind: KindInt32, num: uint64(int64(v))} }
func Int64Value(v int64) Value    { return Value{kind: KindInt64, num: uint64(v)} }
func FloatValue(v float32) Value  { return Value{kind: KindFloat, num: uint64(math.Float32bits(v))} }
func DoubleValue(v float64) Value { return Value{kind: KindDouble, num: math.Float64bits(v)} }
func BytesValue(v []byte) Value   { return Value{kind: KindBytes, raw: v} }
func StringValue(v string) Value  { return Value{kind: KindBytes, raw: []byte(v)} }

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }

func (v Value) Bool() bool      { return v.num != 0 }
func (v Value) Int32() int32    { return int32(int64(v.num)) }
func (v Value) Int64() int64    { return int64(v.num) }
func (v Value) Float() float32  { return math.Float32frombits(uint32(v.num)) }
func (v Value) Double() float64 { return math.Float64frombits(v.num) }
func (v Value) Bytes() []byte   { return v.raw }

// KindForType returns the Value kind that carries scalars of the given
// data type.
func KindForType(dt DataType) ValueKind {
	switch dt.Physical() {
	case TypeBoolean:
		return KindBool
	case TypeInt32:
		return KindInt32
	case TypeInt64:
		return KindInt64
	case TypeFloat:
		return KindFloat
	case TypeDouble:
		return KindDouble
	default:
		return KindBytes
	}
}

// MatchesType reports whether a non-null value may be written to a series of
// the given data type.
func (v Value) MatchesType(dt DataType) bool {
	return v.kind == KindForType(dt)
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.Bool())
	case KindInt32:
		return fmt.Sprintf("%d", v.Int32())
	case KindInt64:
		return fmt.Sprintf("%d", v.Int64())
	case KindFloat:
		return fmt.Sprintf("%g", v.Float())
	case KindDouble:
		return fmt.Sprintf("%g", v.Double())
	default:
		return fmt.Sprintf("%q", v.raw)
	}
}
