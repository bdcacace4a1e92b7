package schema

import (
	"testing"

	"github.com/INLOpen/nexustsf/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasurementSchemaValidate(t *testing.T) {
	s := MeasurementSchema{MeasurementID: "s1", Type: core.TypeInt64}
	assert.NoError(t, s.Validate())

	s.MeasurementID = ""
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, core.IsValidationError(err))
}

func TestMeasurementSchemaEqual(t *testing.T) {
	a := MeasurementSchema{"s1", core.TypeInt64, core.EncodingPlain, core.CompressionNone}
	b := a
	assert.True(t, a.Equal(b))
	b.Compression = core.CompressionSnappy
	assert.False(t, a.Equal(b))
}

func TestBitmap(t *testing.T) {
	b := NewBitmap(10)
	assert.Equal(t, 10, b.Len())
	for i := 0; i < 10; i++ {
		assert.False(t, b.IsMarked(i))
	}
	b.Mark(0)
	b.Mark(9)
	assert.True(t, b.IsMarked(0))
	assert.True(t, b.IsMarked(9))
	assert.False(t, b.IsMarked(5))
}

func TestColumnSetAndGet(t *testing.T) {
	c := NewColumn(core.TypeDouble, 3)
	require.NoError(t, c.SetValue(0, core.DoubleValue(1.5)))
	require.NoError(t, c.SetValue(1, core.NullValue()))
	require.NoError(t, c.SetValue(2, core.DoubleValue(-2.0)))

	assert.Equal(t, core.DoubleValue(1.5), c.ValueAt(0))
	assert.True(t, c.ValueAt(1).IsNull())
	assert.True(t, c.IsNull(1))
	assert.False(t, c.IsNull(2))
	assert.Equal(t, 3, c.Len())
}

func TestColumnTypeMismatch(t *testing.T) {
	c := NewColumn(core.TypeInt32, 1)
	assert.Error(t, c.SetValue(0, core.DoubleValue(1)))
}

func TestTabletValidate(t *testing.T) {
	schemas := []MeasurementSchema{
		{"s1", core.TypeInt32, core.EncodingPlain, core.CompressionNone},
		{"s2", core.TypeDouble, core.EncodingGorilla, core.CompressionSnappy},
	}
	tab := NewTablet("root.sg.d1", schemas, 5)
	assert.NoError(t, tab.Validate())

	tab.Columns[1].Type = core.TypeFloat
	err := tab.Validate()
	require.Error(t, err)
	assert.True(t, core.IsValidationError(err))
}
