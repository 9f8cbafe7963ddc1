package capture

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/motionlog/device"
	"github.com/c360/motionlog/errors"
	"github.com/c360/motionlog/wire"
)

func testRegistry(t *testing.T) *device.Registry {
	t.Helper()
	r, err := device.New([]device.Declaration{
		{ID: 1, Name: "chest"},
		{ID: 2, Name: "wrist"},
	})
	require.NoError(t, err)
	return r
}

func TestAppend_RowsInArrivalOrder(t *testing.T) {
	store := NewStore(testRegistry(t))

	const batches = 4
	for i := 0; i < batches; i++ {
		err := store.Append(wire.Batch{
			Timestamp: float64(i),
			Readings:  []wire.Reading{{Device: 1, X: float64(i) * 10}},
		})
		require.NoError(t, err)
	}

	assert.Equal(t, batches, store.Rows(1))
	assert.Equal(t, 0, store.Rows(2))

	snap := store.Snapshot()
	require.Len(t, snap.Columns, 10)
	assert.Equal(t, []string{"0", "1", "2", "3"}, snap.Columns[0].Cells)
	assert.Equal(t, []string{"0", "10", "20", "30"}, snap.Columns[1].Cells)
}

func TestAppend_UnknownDeviceIsFatal(t *testing.T) {
	store := NewStore(testRegistry(t))

	err := store.Append(wire.Batch{
		Timestamp: 1.0,
		Readings:  []wire.Reading{{Device: 9}},
	})
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestAppend_BadBatchLeavesNoTornAppend(t *testing.T) {
	store := NewStore(testRegistry(t))

	err := store.Append(wire.Batch{
		Timestamp: 1.0,
		Readings: []wire.Reading{
			{Device: 1, X: 5}, // declared
			{Device: 9},       // undeclared
		},
	})
	require.Error(t, err)
	assert.Equal(t, 0, store.Rows(1), "no reading from a rejected batch may land")
}

func TestSnapshot_Layout(t *testing.T) {
	store := NewStore(testRegistry(t))
	require.NoError(t, store.Append(wire.Batch{
		Timestamp: 0.5,
		Readings: []wire.Reading{
			{Device: 1, X: 1, Y: 2, Z: 3},
			{Device: 2, X: 4, Y: 5, Z: 6},
		},
	}))

	snap := store.Snapshot()
	require.Len(t, snap.Columns, 2*device.ColumnsPerDevice)

	assert.Equal(t, "Time (s)", snap.Columns[0].Label)
	assert.Equal(t, "chest: X (1)", snap.Columns[1].Label)
	assert.Equal(t, "chest: Y (1)", snap.Columns[2].Label)
	assert.Equal(t, "chest: Z (1)", snap.Columns[3].Label)
	assert.Equal(t, "", snap.Columns[4].Label, "spacer column has no label")
	assert.Equal(t, "Time (s)", snap.Columns[5].Label)
	assert.Equal(t, "wrist: X (2)", snap.Columns[6].Label)

	assert.Equal(t, []string{"0.5"}, snap.Columns[0].Cells)
	assert.Equal(t, []string{"6"}, snap.Columns[8].Cells)
	assert.Empty(t, snap.Columns[4].Cells)
}

func TestSnapshot_RaggedAcrossDevices(t *testing.T) {
	store := NewStore(testRegistry(t))
	require.NoError(t, store.Append(wire.Batch{
		Timestamp: 0.0,
		Readings:  []wire.Reading{{Device: 1}},
	}))
	require.NoError(t, store.Append(wire.Batch{
		Timestamp: 1.0,
		Readings:  []wire.Reading{{Device: 1}, {Device: 2}},
	}))

	snap := store.Snapshot()
	assert.Len(t, snap.Columns[0].Cells, 2, "device 1 time column")
	assert.Len(t, snap.Columns[5].Cells, 1, "device 2 time column")
	assert.Equal(t, 2, snap.Rows())
}

func TestStore_ConcurrentAppendAndSnapshot(t *testing.T) {
	store := NewStore(testRegistry(t))

	var wg sync.WaitGroup
	const writers = 4
	const perWriter = 200

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = store.Append(wire.Batch{
					Timestamp: float64(w*perWriter + i),
					Readings:  []wire.Reading{{Device: 1}, {Device: 2}},
				})
			}
		}(w)
	}

	// Snapshots taken mid-append must always see matched column lengths
	// within a device block.
	for i := 0; i < 50; i++ {
		snap := store.Snapshot()
		for b := 0; b < 2; b++ {
			base := b * device.ColumnsPerDevice
			n := len(snap.Columns[base].Cells)
			for axis := 1; axis <= 3; axis++ {
				require.Len(t, snap.Columns[base+axis].Cells, n,
					fmt.Sprintf("block %d axis %d out of step", b, axis))
			}
		}
	}

	wg.Wait()
	assert.Equal(t, writers*perWriter, store.Rows(1))
	assert.Equal(t, writers*perWriter, store.Rows(2))
}
