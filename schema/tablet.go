package schema

import (
	"fmt"

	"github.com/INLOpen/nexustsf/core"
)

// Bitmap is a dense present/null bitmap over a column. A set bit marks a
// null row; the zero value of a fresh bitmap means all rows present.
type Bitmap struct {
	bits []byte
	n    int
}

// NewBitmap creates a bitmap covering n rows, all present.
func NewBitmap(n int) *Bitmap {
	return &Bitmap{bits: make([]byte, (n+7)/8), n: n}
}

// Mark flags row i as null.
func (b *Bitmap) Mark(i int) {
	b.bits[i/8] |= 1 << uint(i%8)
}

// IsMarked reports whether row i is null.
func (b *Bitmap) IsMarked(i int) bool {
	return b.bits[i/8]&(1<<uint(i%8)) != 0
}

// Len returns the number of rows the bitmap covers.
func (b *Bitmap) Len() int { return b.n }

// Column is one typed column of a tablet. Exactly one of the value slices is
// populated, matching Type; Nulls is nil when every row is present.
type Column struct {
	Type     core.DataType
	Bools    []bool
	I32s     []int32
	I64s     []int64
	F32s     []float32
	F64s     []float64
	Binaries [][]byte
	Nulls    *Bitmap
}

// NewColumn allocates a column of the given type with n rows.
func NewColumn(dt core.DataType, n int) Column {
	c := Column{Type: dt}
	switch core.KindForType(dt) {
	case core.KindBool:
		c.Bools = make([]bool, n)
	case core.KindInt32:
		c.I32s = make([]int32, n)
	case core.KindInt64:
		c.I64s = make([]int64, n)
	case core.KindFloat:
		c.F32s = make([]float32, n)
	case core.KindDouble:
		c.F64s = make([]float64, n)
	default:
		c.Binaries = make([][]byte, n)
	}
	return c
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	switch core.KindForType(c.Type) {
	case core.KindBool:
		return len(c.Bools)
	case core.KindInt32:
		return len(c.I32s)
	case core.KindInt64:
		return len(c.I64s)
	case core.KindFloat:
		return len(c.F32s)
	case core.KindDouble:
		return len(c.F64s)
	default:
		return len(c.Binaries)
	}
}

// IsNull reports whether row i of the column is null.
func (c *Column) IsNull(i int) bool {
	return c.Nulls != nil && c.Nulls.IsMarked(i)
}

// ValueAt returns row i as a Value, or the null value.
func (c *Column) ValueAt(i int) core.Value {
	if c.IsNull(i) {
		return core.NullValue()
	}
	switch core.KindForType(c.Type) {
	case core.KindBool:
		return core.BoolValue(c.Bools[i])
	case core.KindInt32:
		return core.Int32Value(c.I32s[i])
	case core.KindInt64:
		return core.Int64Value(c.I64s[i])
	case core.KindFloat:
		return core.FloatValue(c.F32s[i])
	case core.KindDouble:
		return core.DoubleValue(c.F64s[i])
	default:
		return core.BytesValue(c.Binaries[i])
	}
}

// SetValue stores v at row i, marking null when v is the null value.
func (c *Column) SetValue(i int, v core.Value) error {
	if v.IsNull() {
		if c.Nulls == nil {
			c.Nulls = NewBitmap(c.Len())
		}
		c.Nulls.Mark(i)
		return nil
	}
	if core.KindForType(c.Type) != v.Kind() {
		return fmt.Errorf("column of type %s cannot hold %s value", c.Type, v.Kind())
	}
	switch v.Kind() {
	case core.KindBool:
		c.Bools[i] = v.Bool()
	case core.KindInt32:
		c.I32s[i] = v.Int32()
	case core.KindInt64:
		c.I64s[i] = v.Int64()
	case core.KindFloat:
		c.F32s[i] = v.Float()
	case core.KindDouble:
		c.F64s[i] = v.Double()
	default:
		c.Binaries[i] = v.Bytes()
	}
	return nil
}

// Tablet is a column-oriented batch of rows for one device.
type Tablet struct {
	DeviceID   string
	Schemas    []MeasurementSchema
	Timestamps []int64
	Columns    []Column
	RowCount   int
}

// NewTablet allocates a tablet with capacity rows for the given schemas.
func NewTablet(deviceID string, schemas []MeasurementSchema, rows int) *Tablet {
	t := &Tablet{
		DeviceID:   deviceID,
		Schemas:    schemas,
		Timestamps: make([]int64, rows),
		Columns:    make([]Column, len(schemas)),
		RowCount:   rows,
	}
	for i, s := range schemas {
		t.Columns[i] = NewColumn(s.Type, rows)
	}
	return t
}

// Validate checks the tablet's structural invariants: one column per schema,
// column types matching their schemas, and timestamps and every column
// holding at least RowCount rows. Column lengths are not compared with each
// other; rows past RowCount are ignored.
func (t *Tablet) Validate() error {
	if len(t.Schemas) != len(t.Columns) {
		return &core.ValidationError{Field: "columns",
			Message: fmt.Sprintf("%d columns for %d schemas", len(t.Columns), len(t.Schemas))}
	}
	if len(t.Timestamps) < t.RowCount {
		return &core.ValidationError{Field: "timestamps",
			Message: fmt.Sprintf("%d timestamps for %d rows", len(t.Timestamps), t.RowCount)}
	}
	for i := range t.Columns {
		if t.Columns[i].Type != t.Schemas[i].Type {
			return &core.ValidationError{Field: "columns",
				Message: fmt.Sprintf("column %d is %s, schema %s expects %s",
					i, t.Columns[i].Type, t.Schemas[i].MeasurementID, t.Schemas[i].Type)}
		}
		if t.Columns[i].Len() < t.RowCount {
			return &core.ValidationError{Field: "columns",
				Message: fmt.Sprintf("column %d has %d rows, tablet has %d", i, t.Columns[i].Len(), t.RowCount)}
		}
	}
	return nil
}
