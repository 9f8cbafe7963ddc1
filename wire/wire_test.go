package wire

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/motionlog/errors"
)

func TestParseBatch_SingleReading(t *testing.T) {
	batch, err := ParseBatch([]byte("12.5,3,0.1,-0.2,9.81"))
	require.NoError(t, err)

	assert.Equal(t, 12.5, batch.Timestamp)
	require.Len(t, batch.Readings, 1)
	assert.Equal(t, uint8(3), batch.Readings[0].Device)
	assert.Equal(t, 0.1, batch.Readings[0].X)
	assert.Equal(t, -0.2, batch.Readings[0].Y)
	assert.Equal(t, 9.81, batch.Readings[0].Z)
}

func TestParseBatch_MultipleReadings(t *testing.T) {
	tests := []struct {
		name    string
		groups  int
		payload string
	}{
		{"two devices", 2, "1.0,1,0,0,0,2,1,1,1"},
		{"three devices", 3, "1.0,1,0,0,0,2,1,1,1,3,2,2,2"},
		{"five devices", 5, "0.25,0,1,2,3,1,4,5,6,2,7,8,9,3,10,11,12,4,13,14,15"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			batch, err := ParseBatch([]byte(test.payload))
			require.NoError(t, err)
			assert.Len(t, batch.Readings, test.groups)
		})
	}
}

func TestParseBatch_SharedTimestamp(t *testing.T) {
	batch, err := ParseBatch([]byte("42.125,1,0,0,0,2,0,0,0"))
	require.NoError(t, err)

	// All readings in a batch share the batch timestamp by construction;
	// the readings themselves carry no per-reading time.
	assert.Equal(t, 42.125, batch.Timestamp)
	assert.Len(t, batch.Readings, 2)
}

func TestParseBatch_WhitespaceTrimmed(t *testing.T) {
	plain, err := ParseBatch([]byte("1.5,7,0.25,0.5,0.75"))
	require.NoError(t, err)

	padded, err := ParseBatch([]byte(" 1.5 , 7 ,\t0.25 , 0.5 , 0.75 "))
	require.NoError(t, err)

	assert.Equal(t, plain, padded)
}

func TestParseBatch_WrongLength(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"missing z", "1.0,1,0.5,0.5"},
		{"extra field", "1.0,1,0.5,0.5,0.5,9"},
		{"only device id", "1.0,1"},
		{"second group truncated", "1.0,1,0,0,0,2,1"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseBatch([]byte(test.payload))
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
			assert.Contains(t, err.Error(), "wrong length")
		})
	}
}

func TestParseBatch_UnparsableFields(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"bad timestamp", "abc,1,0,0,0"},
		{"empty payload", ""},
		{"bad device id", "1.0,banana,0,0,0"},
		{"device id out of range", "1.0,256,0,0,0"},
		{"negative device id", "1.0,-1,0,0,0"},
		{"bad x", "1.0,1,nope,0,0"},
		{"bad z", "1.0,1,0,0,1.2.3"},
		{"second group bad", "1.0,1,0,0,0,2,x,0,0"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			batch, err := ParseBatch([]byte(test.payload))
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err), "parse errors must be Invalid class")
			assert.Empty(t, batch.Readings, "no partial batches")
		})
	}
}

func TestParseBatch_TimestampOnly(t *testing.T) {
	// A timestamp with zero readings is a valid, empty batch.
	batch, err := ParseBatch([]byte("3.25"))
	require.NoError(t, err)
	assert.Equal(t, 3.25, batch.Timestamp)
	assert.Empty(t, batch.Readings)
}

func TestParseBatch_AllDeviceIDs(t *testing.T) {
	for _, id := range []uint8{0, 1, 127, 255} {
		payload := fmt.Sprintf("1.0,%d,0,0,0", id)
		batch, err := ParseBatch([]byte(payload))
		require.NoError(t, err, "device id %d", id)
		assert.Equal(t, id, batch.Readings[0].Device)
	}
}
