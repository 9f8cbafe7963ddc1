package capture

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/motionlog/errors"
	"github.com/c360/motionlog/metric"
	"github.com/c360/motionlog/wire"
)

// RecorderConfig holds configuration for the UDP recorder
type RecorderConfig struct {
	// Listen is the UDP address to bind, e.g. "0.0.0.0:5555".
	Listen string
	// ReadTimeout bounds each blocking receive so the loop notices
	// cancellation even with no traffic. Correctness does not depend on it;
	// the save path takes the store lock directly.
	ReadTimeout time.Duration
}

// RecorderDeps holds runtime dependencies for the recorder
type RecorderDeps struct {
	Name            string
	Config          RecorderConfig
	Store           *Store
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Health reports the recorder's current status.
type Health struct {
	Healthy  bool
	Uptime   time.Duration
	Packets  int64
	Readings int64
	Errors   int64
}

// Recorder listens for sensor datagrams and appends parsed batches into the
// store. The receive call is never under the store lock, so shutdown is
// delayed by at most one in-flight receive.
type Recorder struct {
	name        string
	listen      string
	readTimeout time.Duration
	store       *Store
	logger      *slog.Logger

	// dropLimiter throttles malformed-datagram log lines so a chattering
	// sender cannot flood the log. The parse-failure counter still sees
	// every drop.
	dropLimiter *rate.Limiter

	// Lifecycle management
	shutdown  chan struct{}
	done      chan struct{}
	running   atomic.Bool
	startTime time.Time
	mu        sync.RWMutex
	wg        sync.WaitGroup
	conn      *net.UDPConn
	fatalErr  error

	// Counters (atomic for thread safety)
	packetsReceived  atomic.Int64
	readingsAppended atomic.Int64
	errorCount       atomic.Int64

	// Prometheus metrics
	metrics *Metrics
}

// DefaultReadTimeout is used when the config leaves ReadTimeout zero.
const DefaultReadTimeout = 500 * time.Millisecond

// NewRecorder creates a new recorder from its dependencies.
func NewRecorder(deps RecorderDeps) *Recorder {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "recorder", "listen", deps.Config.Listen)
	}

	readTimeout := deps.Config.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	name := deps.Name
	if name == "" {
		name = "recorder"
	}

	return &Recorder{
		name:        name,
		listen:      deps.Config.Listen,
		readTimeout: readTimeout,
		store:       deps.Store,
		logger:      logger,
		dropLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
		metrics:     newMetrics(deps.MetricsRegistry),
	}
}

// Initialize validates the recorder configuration without binding the socket.
func (r *Recorder) Initialize() error {
	if r.store == nil {
		return errors.WrapInvalid(fmt.Errorf("nil store"),
			"Recorder", "Initialize", "store validation")
	}
	if _, err := net.ResolveUDPAddr("udp", r.listen); err != nil {
		return errors.WrapInvalid(err, "Recorder", "Initialize", "listen address validation")
	}
	return nil
}

// Start binds the UDP socket and begins the read loop.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running.Load() {
		return nil // Already running, idempotent
	}

	r.shutdown = make(chan struct{})
	r.done = make(chan struct{})

	addr, err := net.ResolveUDPAddr("udp", r.listen)
	if err != nil {
		return errors.WrapInvalid(err, "Recorder", "Start", "resolving listen address")
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return errors.WrapFatal(err, "Recorder", "Start", "socket binding")
	}
	r.conn = conn

	r.running.Store(true)
	r.startTime = time.Now()

	r.logger.Info("recorder listening", "addr", conn.LocalAddr().String())

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(r.done)
		r.readLoop(ctx)
	}()

	return nil
}

// LocalAddr returns the bound socket address, or nil before Start.
func (r *Recorder) LocalAddr() net.Addr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

// Wait blocks until the read loop exits or the context is cancelled, and
// returns the loop's fatal error if one occurred.
func (r *Recorder) Wait(ctx context.Context) error {
	r.mu.RLock()
	done := r.done
	r.mu.RUnlock()

	select {
	case <-ctx.Done():
	case <-done:
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fatalErr
}

// Stop gracefully stops the recorder with the specified timeout.
func (r *Recorder) Stop(timeout time.Duration) error {
	if !r.running.Load() {
		return nil
	}

	r.running.Store(false)

	r.mu.Lock()
	if r.shutdown != nil {
		select {
		case <-r.shutdown:
		default:
			close(r.shutdown)
		}
	}
	// Close the socket to unblock an in-flight receive.
	if r.conn != nil {
		_ = r.conn.Close()
	}
	r.mu.Unlock()

	select {
	case <-r.done:
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"Recorder", "Stop", "graceful shutdown")
	}

	r.mu.Lock()
	r.conn = nil
	r.mu.Unlock()

	return nil
}

// Health returns the current health status of the recorder.
func (r *Recorder) Health() Health {
	r.mu.RLock()
	connected := r.conn != nil
	r.mu.RUnlock()

	return Health{
		Healthy:  r.running.Load() && connected,
		Uptime:   time.Since(r.startTime),
		Packets:  r.packetsReceived.Load(),
		Readings: r.readingsAppended.Load(),
		Errors:   r.errorCount.Load(),
	}
}

// readLoop receives datagrams until shutdown or a fatal error. Malformed
// payloads and benign timeouts keep the loop running; an unknown device id
// or a non-transient socket error terminates it.
func (r *Recorder) readLoop(ctx context.Context) {
	buf := make([]byte, 65536)

	for r.running.Load() {
		select {
		case <-ctx.Done():
			return
		case <-r.shutdown:
			return
		default:
		}

		r.mu.RLock()
		conn := r.conn
		r.mu.RUnlock()
		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(r.readTimeout))

		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}

			select {
			case <-ctx.Done():
				return
			case <-r.shutdown:
				return
			default:
			}

			r.errorCount.Add(1)
			if r.metrics != nil {
				r.metrics.socketErrors.Inc()
			}

			if errors.IsTransient(err) {
				r.logger.Warn("socket read interrupted, retrying", "error", err)
				continue
			}

			r.setFatal(errors.WrapFatal(err, "Recorder", "readLoop", "socket receive"))
			return
		}

		r.packetsReceived.Add(1)
		now := time.Now()
		if r.metrics != nil {
			r.metrics.packetsReceived.Inc()
			r.metrics.bytesReceived.Add(float64(n))
			r.metrics.datagramSize.Observe(float64(n))
			r.metrics.lastActivity.Set(float64(now.Unix()))
		}

		batch, err := wire.ParseBatch(buf[:n])
		if err != nil {
			if r.metrics != nil {
				r.metrics.parseFailures.Inc()
			}
			if r.dropLimiter.Allow() {
				r.logger.Warn("dropping malformed datagram", "error", err, "bytes", n)
			}
			continue
		}

		if err := r.store.Append(batch); err != nil {
			r.setFatal(err)
			return
		}

		r.readingsAppended.Add(int64(len(batch.Readings)))
		if r.metrics != nil {
			for _, reading := range batch.Readings {
				r.metrics.readingsAppended.
					WithLabelValues(fmt.Sprintf("%d", reading.Device)).Inc()
			}
		}
	}
}

func (r *Recorder) setFatal(err error) {
	r.mu.Lock()
	if r.fatalErr == nil {
		r.fatalErr = err
	}
	r.mu.Unlock()

	r.errorCount.Add(1)
	r.logger.Error("recorder terminating", "error", err)
}
