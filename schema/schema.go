// Package schema defines the input contracts of the write path: measurement
// schemas, single data points and column-oriented tablets.
package schema

import (
	"fmt"

	"github.com/INLOpen/nexustsf/core"
)

// MeasurementSchema describes one series. Immutable once installed in a
// writer.
type MeasurementSchema struct {
	MeasurementID string
	Type          core.DataType
	Encoding      core.EncodingType
	Compression   core.CompressionType
}

// Validate checks the schema's structural invariants.
func (s MeasurementSchema) Validate() error {
	if s.MeasurementID == "" {
		return &core.ValidationError{Field: "measurementId", Message: "must be non-empty"}
	}
	return nil
}

// Equal reports whether two schemas describe the same series identically.
func (s MeasurementSchema) Equal(o MeasurementSchema) bool {
	return s.MeasurementID == o.MeasurementID &&
		s.Type == o.Type &&
		s.Encoding == o.Encoding &&
		s.Compression == o.Compression
}

func (s MeasurementSchema) String() string {
	return fmt.Sprintf("%s(%s/%s/%s)", s.MeasurementID, s.Type, s.Encoding, s.Compression)
}

// DataPoint is one measurement value at the row's timestamp.
type DataPoint struct {
	MeasurementID string
	Value         core.Value
}
