package chunk

import (
	"fmt"
	"log/slog"

	"github.com/INLOpen/nexustsf/core"
	"github.com/INLOpen/nexustsf/schema"
)

// ChunkGroupWriter owns the series writers of one device, routes row or
// tablet ingress to them, and flushes the whole group to a file writer.
// Writers accept points until FlushToFileWriter is invoked once; afterwards
// the group writer is not reused. Not safe for concurrent use.
type ChunkGroupWriter struct {
	deviceID string
	opts     core.WriteOptions
	logger   *slog.Logger
	aligned  bool

	// Non-aligned groups: one self-contained writer per series, kept in
	// installation order.
	writers map[string]*ChunkWriter
	order   []string

	// Aligned groups: one shared writer; alignedIndex maps measurement ids
	// to value-column indexes.
	alignedWriter  *AlignedChunkWriter
	alignedIndex   map[string]int
	alignedSchemas []schema.MeasurementSchema

	maxMemSize int64
	flushed    bool
}

// NewChunkGroupWriter creates the writer for one non-aligned device.
func NewChunkGroupWriter(deviceID string, opts core.WriteOptions) *ChunkGroupWriter {
	opts = opts.Sanitize()
	return &ChunkGroupWriter{
		deviceID: deviceID,
		opts:     opts,
		logger:   opts.Logger,
		writers:  make(map[string]*ChunkWriter),
	}
}

// NewAlignedChunkGroupWriter creates the writer for one aligned device whose
// series share a single time column.
func NewAlignedChunkGroupWriter(deviceID string, opts core.WriteOptions) *ChunkGroupWriter {
	opts = opts.Sanitize()
	return &ChunkGroupWriter{
		deviceID:     deviceID,
		opts:         opts,
		logger:       opts.Logger,
		aligned:      true,
		alignedIndex: make(map[string]int),
	}
}

func (g *ChunkGroupWriter) DeviceID() string { return g.deviceID }
func (g *ChunkGroupWriter) IsAligned() bool  { return g.aligned }

// TryToAddSeriesWriter installs a series writer for the schema. Installing
// the same schema twice is a no-op; the same id under a different schema is
// a SchemaConflictError and leaves state untouched.
func (g *ChunkGroupWriter) TryToAddSeriesWriter(s schema.MeasurementSchema) error {
	if g.flushed {
		return ErrAlreadyFlushed
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if g.aligned {
		if idx, ok := g.alignedIndex[s.MeasurementID]; ok {
			if g.alignedSchemas[idx].Equal(s) {
				return nil
			}
			return &core.SchemaConflictError{
				MeasurementID: s.MeasurementID,
				Existing:      g.alignedSchemas[idx].String(),
				Requested:     s.String(),
			}
		}
		if g.alignedWriter == nil {
			aw, err := NewAlignedChunkWriter(nil, g.opts)
			if err != nil {
				return err
			}
			g.alignedWriter = aw
		}
		if err := g.alignedWriter.AddValueWriter(s); err != nil {
			return err
		}
		g.alignedIndex[s.MeasurementID] = len(g.alignedSchemas)
		g.alignedSchemas = append(g.alignedSchemas, s)
		return nil
	}

	if existing, ok := g.writers[s.MeasurementID]; ok {
		if existing.Schema().Equal(s) {
			return nil
		}
		return &core.SchemaConflictError{
			MeasurementID: s.MeasurementID,
			Existing:      existing.Schema().String(),
			Requested:     s.String(),
		}
	}
	w, err := NewChunkWriter(s, g.opts)
	if err != nil {
		return err
	}
	g.writers[s.MeasurementID] = w
	g.order = append(g.order, s.MeasurementID)
	return nil
}

// TryToAddSeriesWriters installs a list of series writers.
func (g *ChunkGroupWriter) TryToAddSeriesWriters(schemas []schema.MeasurementSchema) error {
	for _, s := range schemas {
		if err := g.TryToAddSeriesWriter(s); err != nil {
			return err
		}
	}
	return nil
}

// Write routes one row of data points, all sharing the timestamp, to their
// series writers. Every point's measurement must already be installed.
// Returns the number of points written.
func (g *ChunkGroupWriter) Write(t int64, points []schema.DataPoint) (int, error) {
	if g.flushed {
		return 0, ErrAlreadyFlushed
	}
	if g.aligned {
		return g.writeAlignedRow(t, points)
	}
	for _, p := range points {
		w, ok := g.writers[p.MeasurementID]
		if !ok {
			return 0, fmt.Errorf("no series writer installed for measurement '%s' of device '%s'",
				p.MeasurementID, g.deviceID)
		}
		if err := w.WritePoint(t, p.Value); err != nil {
			return 0, err
		}
	}
	g.noteMemUsage()
	return len(points), nil
}

func (g *ChunkGroupWriter) writeAlignedRow(t int64, points []schema.DataPoint) (int, error) {
	row := make([]core.Value, len(g.alignedSchemas))
	for i := range row {
		row[i] = core.NullValue()
	}
	for _, p := range points {
		idx, ok := g.alignedIndex[p.MeasurementID]
		if !ok {
			return 0, fmt.Errorf("no series writer installed for measurement '%s' of device '%s'",
				p.MeasurementID, g.deviceID)
		}
		row[idx] = p.Value
	}
	if err := g.alignedWriter.WriteRow(t, row); err != nil {
		return 0, err
	}
	g.noteMemUsage()
	return len(points), nil
}

// WriteTablet ingests a whole column-oriented batch.
func (g *ChunkGroupWriter) WriteTablet(t *schema.Tablet) (int, error) {
	return g.WriteTabletSlice(t, 0, t.RowCount, 0, len(t.Schemas))
}

// WriteTabletRows ingests the row range [startRow, endRow) of a tablet.
func (g *ChunkGroupWriter) WriteTabletRows(t *schema.Tablet, startRow, endRow int) (int, error) {
	return g.WriteTabletSlice(t, startRow, endRow, 0, len(t.Schemas))
}

// WriteTabletSlice ingests the row range [startRow, endRow) of the column
// range [startCol, endCol). Series outside the column range are untouched in
// non-aligned groups; in aligned groups they are advanced with nulls to keep
// the time axis shared.
func (g *ChunkGroupWriter) WriteTabletSlice(t *schema.Tablet, startRow, endRow, startCol, endCol int) (int, error) {
	if g.flushed {
		return 0, ErrAlreadyFlushed
	}
	if err := t.Validate(); err != nil {
		return 0, err
	}
	if startRow < 0 || endRow > t.RowCount || startRow > endRow {
		return 0, fmt.Errorf("invalid row range [%d, %d) for tablet with %d rows", startRow, endRow, t.RowCount)
	}
	if startCol < 0 || endCol > len(t.Schemas) || startCol > endCol {
		return 0, fmt.Errorf("invalid column range [%d, %d) for tablet with %d columns", startCol, endCol, len(t.Schemas))
	}

	var err error
	if g.aligned {
		err = g.writeAlignedTabletSlice(t, startRow, endRow, startCol, endCol)
	} else {
		err = g.writeTabletSlice(t, startRow, endRow, startCol, endCol)
	}
	if err != nil {
		return 0, err
	}
	g.noteMemUsage()
	return endRow - startRow, nil
}

func (g *ChunkGroupWriter) writeTabletSlice(t *schema.Tablet, startRow, endRow, startCol, endCol int) error {
	for ci := startCol; ci < endCol; ci++ {
		id := t.Schemas[ci].MeasurementID
		w, ok := g.writers[id]
		if !ok {
			return fmt.Errorf("no series writer installed for measurement '%s' of device '%s'", id, g.deviceID)
		}
		if err := w.WriteColumnRange(t.Timestamps, &t.Columns[ci], startRow, endRow); err != nil {
			return err
		}
	}
	return nil
}

func (g *ChunkGroupWriter) writeAlignedTabletSlice(t *schema.Tablet, startRow, endRow, startCol, endCol int) error {
	if g.alignedWriter == nil {
		if endCol > startCol {
			return fmt.Errorf("no series writers installed for device '%s'", g.deviceID)
		}
		return nil
	}
	// Fast path: the slice covers all installed columns in declared order,
	// so the batch form with its exact page-boundary split applies.
	if startRow == 0 && endRow == t.RowCount && g.sliceMatchesInstalled(t, startCol, endCol) {
		return g.alignedWriter.Write(t.Timestamps, t.Columns[startCol:endCol], t.RowCount)
	}

	// General path: per-row ingress; installed columns outside the slice
	// advance with nulls so the group keeps one time axis.
	colOf := make([]int, len(g.alignedSchemas))
	for i := range colOf {
		colOf[i] = -1
	}
	for ci := startCol; ci < endCol; ci++ {
		idx, ok := g.alignedIndex[t.Schemas[ci].MeasurementID]
		if !ok {
			return fmt.Errorf("no series writer installed for measurement '%s' of device '%s'",
				t.Schemas[ci].MeasurementID, g.deviceID)
		}
		colOf[idx] = ci
	}
	row := make([]core.Value, len(g.alignedSchemas))
	for r := startRow; r < endRow; r++ {
		for idx, ci := range colOf {
			if ci < 0 {
				row[idx] = core.NullValue()
			} else {
				row[idx] = t.Columns[ci].ValueAt(r)
			}
		}
		if err := g.alignedWriter.WriteRow(t.Timestamps[r], row); err != nil {
			return err
		}
	}
	return nil
}

func (g *ChunkGroupWriter) sliceMatchesInstalled(t *schema.Tablet, startCol, endCol int) bool {
	if endCol-startCol != len(g.alignedSchemas) {
		return false
	}
	for i, s := range g.alignedSchemas {
		if t.Schemas[startCol+i].MeasurementID != s.MeasurementID {
			return false
		}
	}
	return true
}

// FlushToFileWriter serializes every series chunk to the file writer in
// installation order (aligned: time chunk first), writes the chunk-group
// footer, and retires the group writer. Returns the bytes emitted.
func (g *ChunkGroupWriter) FlushToFileWriter(fw FileWriter) (int64, error) {
	if g.flushed {
		return 0, ErrAlreadyFlushed
	}
	startPos := fw.Pos()
	if err := fw.StartChunkGroup(g.deviceID); err != nil {
		return 0, fmt.Errorf("failed to start chunk group for device '%s': %w", g.deviceID, err)
	}
	if g.aligned {
		if g.alignedWriter != nil {
			if err := g.alignedWriter.WriteToFileWriter(fw); err != nil {
				return 0, err
			}
		}
	} else {
		for _, id := range g.order {
			if err := g.writers[id].WriteToFileWriter(fw); err != nil {
				return 0, err
			}
		}
	}
	if err := fw.EndChunkGroup(); err != nil {
		return 0, fmt.Errorf("failed to end chunk group for device '%s': %w", g.deviceID, err)
	}
	g.flushed = true
	written := fw.Pos() - startPos
	g.logger.Debug("flushed chunk group", "device", g.deviceID, "bytes", written)
	return written, nil
}

// noteMemUsage refreshes the group's memory high-water mark.
func (g *ChunkGroupWriter) noteMemUsage() {
	current := g.currentMemSize()
	if current > g.maxMemSize {
		g.maxMemSize = current
	}
}

func (g *ChunkGroupWriter) currentMemSize() int64 {
	if g.aligned {
		if g.alignedWriter == nil {
			return 0
		}
		return g.alignedWriter.EstimateMaxSeriesMemSize()
	}
	var total int64
	for _, id := range g.order {
		total += g.writers[id].EstimateMaxSeriesMemSize()
	}
	return total
}

// UpdateMaxGroupMemSize returns the observed high-water mark of the group's
// estimated memory footprint.
func (g *ChunkGroupWriter) UpdateMaxGroupMemSize() int64 {
	g.noteMemUsage()
	return g.maxMemSize
}

// GetCurrentChunkGroupSize is the serialized size of the chunk-group header
// plus all sealed chunk bytes. Open pages are excluded.
func (g *ChunkGroupWriter) GetCurrentChunkGroupSize() int64 {
	header := int64(1 + core.VarStringSize(g.deviceID))
	if g.aligned {
		if g.alignedWriter == nil {
			return header
		}
		return header + g.alignedWriter.GetCurrentChunkSize()
	}
	total := header
	for _, id := range g.order {
		total += g.writers[id].GetCurrentChunkSize()
	}
	return total
}

// SeriesWriterByID exposes an installed non-aligned series writer.
func (g *ChunkGroupWriter) SeriesWriterByID(id string) (*ChunkWriter, bool) {
	w, ok := g.writers[id]
	return w, ok
}

// AlignedWriter exposes the aligned writer of an aligned group, nil until a
// series is installed.
func (g *ChunkGroupWriter) AlignedWriter() *AlignedChunkWriter { return g.alignedWriter }
