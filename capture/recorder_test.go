package capture

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/motionlog/device"
	"github.com/c360/motionlog/errors"
	"github.com/c360/motionlog/metric"
)

func newTestRecorder(t *testing.T, registry *metric.MetricsRegistry) (*Recorder, *Store) {
	t.Helper()

	devs, err := device.New([]device.Declaration{
		{ID: 1, Name: "chest"},
		{ID: 2, Name: "wrist"},
	})
	require.NoError(t, err)

	store := NewStore(devs)
	rec := NewRecorder(RecorderDeps{
		Name:            "test-recorder",
		Config:          RecorderConfig{Listen: "127.0.0.1:0", ReadTimeout: 50 * time.Millisecond},
		Store:           store,
		MetricsRegistry: registry,
		Logger:          slog.Default(),
	})
	return rec, store
}

func sendDatagram(t *testing.T, addr net.Addr, payload string) {
	t.Helper()
	conn, err := net.Dial("udp", addr.String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte(payload))
	require.NoError(t, err)
}

func waitForRows(t *testing.T, store *Store, id uint8, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if store.Rows(id) >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("device %d never reached %d rows (have %d)", id, want, store.Rows(id))
}

func TestRecorder_Initialize(t *testing.T) {
	rec, _ := newTestRecorder(t, nil)
	require.NoError(t, rec.Initialize())
}

func TestRecorder_Initialize_BadAddress(t *testing.T) {
	store := NewStore(mustRegistry(t))
	rec := NewRecorder(RecorderDeps{
		Config: RecorderConfig{Listen: "not-an-address::"},
		Store:  store,
	})
	err := rec.Initialize()
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestRecorder_Initialize_NilStore(t *testing.T) {
	rec := NewRecorder(RecorderDeps{Config: RecorderConfig{Listen: "127.0.0.1:0"}})
	err := rec.Initialize()
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func mustRegistry(t *testing.T) *device.Registry {
	t.Helper()
	r, err := device.New([]device.Declaration{{ID: 1, Name: "chest"}})
	require.NoError(t, err)
	return r
}

func TestRecorder_ReceivesAndAppends(t *testing.T) {
	rec, store := newTestRecorder(t, nil)
	require.NoError(t, rec.Initialize())

	ctx := context.Background()
	require.NoError(t, rec.Start(ctx))
	defer rec.Stop(time.Second)

	addr := rec.LocalAddr()
	require.NotNil(t, addr)

	sendDatagram(t, addr, "0.5,1,0.1,0.2,0.3,2,1.1,1.2,1.3")
	waitForRows(t, store, 1, 1)
	waitForRows(t, store, 2, 1)

	sendDatagram(t, addr, "1.5,1,0.4,0.5,0.6")
	waitForRows(t, store, 1, 2)

	snap := store.Snapshot()
	assert.Equal(t, []string{"0.5", "1.5"}, snap.Columns[0].Cells)
	assert.Equal(t, []string{"1.1"}, snap.Columns[6].Cells)

	health := rec.Health()
	assert.True(t, health.Healthy)
	assert.GreaterOrEqual(t, health.Packets, int64(2))
	assert.GreaterOrEqual(t, health.Readings, int64(3))
}

func TestRecorder_MalformedDatagramsDropped(t *testing.T) {
	rec, store := newTestRecorder(t, metric.NewMetricsRegistry())
	require.NoError(t, rec.Initialize())
	require.NoError(t, rec.Start(context.Background()))
	defer rec.Stop(time.Second)

	addr := rec.LocalAddr()
	sendDatagram(t, addr, "garbage")
	sendDatagram(t, addr, "1.0,1,0.5") // wrong length
	sendDatagram(t, addr, "2.0,1,1,2,3")

	waitForRows(t, store, 1, 1)
	assert.Equal(t, 1, store.Rows(1), "only the well-formed datagram lands")
}

func TestRecorder_UnknownDeviceIsFatal(t *testing.T) {
	rec, _ := newTestRecorder(t, nil)
	require.NoError(t, rec.Initialize())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, rec.Start(ctx))
	defer rec.Stop(time.Second)

	sendDatagram(t, rec.LocalAddr(), "1.0,77,0,0,0")

	err := rec.Wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestRecorder_StopUnblocksWait(t *testing.T) {
	rec, _ := newTestRecorder(t, nil)
	require.NoError(t, rec.Initialize())
	require.NoError(t, rec.Start(context.Background()))

	stopped := make(chan error, 1)
	go func() {
		stopped <- rec.Stop(2 * time.Second)
	}()

	require.NoError(t, <-stopped)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, rec.Wait(ctx), "clean shutdown leaves no fatal error")

	health := rec.Health()
	assert.False(t, health.Healthy)
}

func TestRecorder_StartIdempotent(t *testing.T) {
	rec, _ := newTestRecorder(t, nil)
	require.NoError(t, rec.Initialize())
	require.NoError(t, rec.Start(context.Background()))
	defer rec.Stop(time.Second)

	require.NoError(t, rec.Start(context.Background()))
}
