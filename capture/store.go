// Package capture implements the live ingestion path: a UDP listener that
// decodes sensor datagrams and appends them into per-device columnar series
// behind a single lock, plus the snapshot that renders those series as a
// table for persistence.
package capture

import (
	"fmt"
	"sync"

	"github.com/c360/motionlog/device"
	"github.com/c360/motionlog/errors"
	"github.com/c360/motionlog/table"
	"github.com/c360/motionlog/wire"
)

// series holds one device's readings in arrival order. Row i across the four
// slices is the i-th reading ever appended for this device.
type series struct {
	entry device.Entry
	times []float64
	xs    []float64
	ys    []float64
	zs    []float64
}

// Store is the single piece of shared mutable state in the ingestion path:
// per-device columnar series guarded by one mutex. The read loop and the
// shutdown save path take the same lock, so a batch of appends and a snapshot
// never interleave at a finer grain than one full datagram.
type Store struct {
	mu     sync.Mutex
	series []*series
	byID   map[uint8]*series
}

// NewStore creates a store with one empty series per registered device, in
// registration order.
func NewStore(registry *device.Registry) *Store {
	entries := registry.Entries()
	s := &Store{
		series: make([]*series, 0, len(entries)),
		byID:   make(map[uint8]*series, len(entries)),
	}
	for _, e := range entries {
		ser := &series{entry: e}
		s.series = append(s.series, ser)
		s.byID[e.ID] = ser
	}
	return s
}

// Append folds one parsed batch into the store. Every reading lands in its
// device's four columns with the batch timestamp. A reading for an undeclared
// device is a fatal error and nothing from the batch is appended.
func (s *Store) Append(batch wire.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before touching any series so a bad batch
	// never leaves a torn append behind.
	for _, r := range batch.Readings {
		if _, ok := s.byID[r.Device]; !ok {
			return errors.WrapFatal(
				fmt.Errorf("found unspecified sensor %d, make sure to enter all devices: %w",
					r.Device, errors.ErrUnknownDevice),
				"Store", "Append", "device lookup")
		}
	}

	for _, r := range batch.Readings {
		ser := s.byID[r.Device]
		ser.times = append(ser.times, batch.Timestamp)
		ser.xs = append(ser.xs, r.X)
		ser.ys = append(ser.ys, r.Y)
		ser.zs = append(ser.zs, r.Z)
	}

	return nil
}

// Snapshot renders the current contents as a table under the store lock:
// five columns per device (time, x, y, z, blank spacer) in registration
// order. Appends running concurrently are either fully included or fully
// excluded.
func (s *Store) Snapshot() *table.Table {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &table.Table{Columns: make([]table.Column, 0, len(s.series)*device.ColumnsPerDevice)}
	for _, ser := range s.series {
		t.Columns = append(t.Columns,
			table.Column{Label: device.TimeLabel, Cells: formatCells(ser.times)},
			table.Column{Label: ser.entry.AxisLabel("X"), Cells: formatCells(ser.xs)},
			table.Column{Label: ser.entry.AxisLabel("Y"), Cells: formatCells(ser.ys)},
			table.Column{Label: ser.entry.AxisLabel("Z"), Cells: formatCells(ser.zs)},
			table.Column{Label: ""},
		)
	}
	return t
}

// Rows returns the number of readings appended for one device.
func (s *Store) Rows(id uint8) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ser, ok := s.byID[id]
	if !ok {
		return 0
	}
	return len(ser.times)
}

// TotalReadings returns the number of readings appended across all devices.
func (s *Store) TotalReadings() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, ser := range s.series {
		total += len(ser.times)
	}
	return total
}

func formatCells(values []float64) []string {
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = table.FormatFloat(v)
	}
	return cells
}
